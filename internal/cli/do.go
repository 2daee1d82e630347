package cli

import (
	"fmt"
	"strings"

	"github.com/rileyhilliard/dutctl/internal/action"
	"github.com/spf13/cobra"
)

var (
	doDUT         string
	doListActions bool
)

var doCmd = &cobra.Command{
	Use:   "do --dut DUT action...",
	Short: "Run named actions on a DUT",
	Long: `Run one or more named actions on a DUT, in order, over one connection.
The first failing action stops the rest. Every name is checked before
connecting.

Examples:
  dutctl dut do --dut eve_NXAB12 login
  dutctl dut do --dut 192.168.7.2 reboot
  dutctl dut do --list-actions`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if doListActions {
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(action.Names(), " "))
			return nil
		}
		return doCommand(cmd, doDUT, args)
	},
}

func init() {
	addDUTFlag(doCmd, &doDUT)
	doCmd.Flags().BoolVar(&doListActions, "list-actions", false, "print the available actions")
	dutCmd.AddCommand(doCmd)
}

func doCommand(cmd *cobra.Command, raw string, names []string) error {
	if err := action.Validate(names); err != nil {
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
	d := &action.Dispatcher{
		Dialer: a.dialer,
		Stdout: a.stdout,
		Stderr: a.stderr,
		Log:    a.log,
	}
	return d.Dispatch(cmd.Context(), t, names)
}
