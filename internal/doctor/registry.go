package doctor

import (
	"context"
	"fmt"
	"os"

	"github.com/rileyhilliard/dutctl/internal/registry"
	"github.com/rileyhilliard/dutctl/internal/util"
)

// RegistryCheck opens the registry and counts its entries.
type RegistryCheck struct {
	Path string
}

func (c *RegistryCheck) Name() string     { return "registry" }
func (c *RegistryCheck) Category() string { return "FLEET" }

func (c *RegistryCheck) Run(context.Context) CheckResult {
	if _, err := os.Stat(c.Path); os.IsNotExist(err) {
		return CheckResult{
			Status:     StatusWarn,
			Message:    "No registry yet at " + c.Path,
			Suggestion: "Register a DUT: dutctl dut list --add HOST",
		}
	}

	store, err := registry.Open(c.Path)
	if err != nil {
		msg, suggestion := explain(err)
		return CheckResult{Status: StatusFail, Message: msg, Suggestion: suggestion}
	}
	defer store.Close()

	ids, err := store.IDs()
	if err != nil {
		msg, suggestion := explain(err)
		return CheckResult{Status: StatusFail, Message: msg, Suggestion: suggestion}
	}

	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("%d %s registered in %s", len(ids), util.Pluralize(len(ids), "DUT", "DUTs"), c.Path),
	}
}

func (c *RegistryCheck) Fix() error { return nil }
