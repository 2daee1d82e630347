// Package ui holds the terminal styling shared by dutctl's commands and the
// monitor dashboard.
//
// # Color Scheme
//
// Colors are defined as ANSI codes for broad terminal compatibility:
//
//	ColorSuccess   (green)  - Online DUTs, completed operations
//	ColorError     (red)    - Failures and offline DUTs
//	ColorWarning   (yellow) - Stale registry entries
//	ColorInfo      (cyan)   - Informational messages
//	ColorMuted     (gray)   - Secondary text
//
// # Tables
//
// NewTable builds a styled Bubbles table for full-screen views; RenderTable
// prints a plain aligned table for command output.
package ui
