package ui

// Unicode symbols for status indicators.
const (
	SymbolSuccess  = "✓" // Operation succeeded
	SymbolFail     = "✗" // Operation failed
	SymbolPending  = "○" // Not checked yet
	SymbolComplete = "●" // Online
	SymbolSkipped  = "⊘" // Skipped or stale
)
