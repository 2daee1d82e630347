package cli

import (
	"fmt"

	"github.com/rileyhilliard/dutctl/internal/dut"
	"github.com/spf13/cobra"
)

var (
	infoDUT      string
	infoListKeys bool
	infoFormat   string
)

var infoCmd = &cobra.Command{
	Use:   "info --dut DUT [attribute...]",
	Short: "Print attributes of a DUT",
	Long: `Resolve attributes of one DUT and print them. With no attribute names,
the canonical set is resolved. Any failing query fails the command.

Examples:
  dutctl dut info --dut eve_NXAB12
  dutctl dut info --dut 192.168.7.2 board version uptime
  dutctl dut info --list-keys`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if infoListKeys {
			for _, k := range dut.KnownAttributes() {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		}
		return infoCommand(cmd, infoDUT, args)
	},
}

func init() {
	addDUTFlag(infoCmd, &infoDUT)
	infoCmd.Flags().BoolVar(&infoListKeys, "list-keys", false, "print every attribute name that can be resolved")
	infoCmd.Flags().StringVar(&infoFormat, "format", FormatJSON, "output format: json or yaml")
	dutCmd.AddCommand(infoCmd)
}

func infoCommand(cmd *cobra.Command, raw string, keys []string) error {
	if err := checkFormat(infoFormat, FormatJSON, FormatYAML); err != nil {
		return err
	}
	if len(keys) == 0 {
		keys = dut.CanonicalAttributes
	}
	if err := dut.ValidateAttributes(keys); err != nil {
		return err
	}

	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	t, err := a.target(raw)
	if err != nil {
		return err
	}
	attrs, err := a.resolver().Resolve(cmd.Context(), t.Descriptor, keys)
	if err != nil {
		return err
	}
	return writeStructured(a.stdout, infoFormat, attrs)
}
