package cli

import (
	"strings"

	"github.com/rileyhilliard/dutctl/internal/config"
	"github.com/rileyhilliard/dutctl/internal/registry"
	"github.com/spf13/cobra"
)

// addDUTFlag registers --dut on cmd, completing registered ids.
func addDUTFlag(cmd *cobra.Command, p *string) {
	cmd.Flags().StringVar(p, "dut", "", "DUT id or address")
	_ = cmd.RegisterFlagCompletionFunc("dut", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return registeredIDs(toComplete), cobra.ShellCompDirectiveNoFileComp
	})
}

// completeDUTArgs completes positional DUT arguments with registered ids.
func completeDUTArgs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return registeredIDs(toComplete), cobra.ShellCompDirectiveNoFileComp
}

// registeredIDs lists registry ids starting with prefix. Completion must not
// fail noisily, so any error yields no suggestions.
func registeredIDs(prefix string) []string {
	cfg, _, err := config.LoadAndValidate(Config())
	if err != nil {
		return nil
	}
	store, err := registry.Open(cfg.Registry.Path)
	if err != nil {
		return nil
	}
	defer store.Close()

	ids, err := store.IDs()
	if err != nil {
		return nil
	}
	var out []string
	for _, id := range ids {
		if strings.HasPrefix(id, prefix) {
			out = append(out, id)
		}
	}
	return out
}
