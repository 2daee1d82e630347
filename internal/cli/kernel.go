package cli

import (
	"fmt"
	"strings"

	"github.com/rileyhilliard/dutctl/internal/errors"
	"github.com/rileyhilliard/dutctl/internal/exec"
	"github.com/spf13/cobra"
)

// kernelConfigCommand prints the running kernel's build config.
const kernelConfigCommand = "modprobe configs 2>/dev/null; zcat /proc/config.gz"

var kernelConfigCmd = &cobra.Command{
	Use:               "kernel-config DUT",
	Aliases:           []string{"kernel_config"},
	Short:             "Print the running kernel's config",
	Example:           `  dutctl dut kernel-config eve_NXAB12 | grep CONFIG_KVM`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeDUTArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		t, client, err := a.connect(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		defer client.Close()

		var stderr strings.Builder
		code, err := client.ExecStream(kernelConfigCommand, a.stdout, &stderr)
		if err != nil {
			return errors.Wrap(err, fmt.Sprintf("Reading the kernel config of %s failed", t.Label()))
		}
		if code != 0 {
			return errors.Wrap(exec.RemoteFailure(kernelConfigCommand, t.Label(), stderr.String(), code),
				fmt.Sprintf("Reading the kernel config of %s failed", t.Label()))
		}
		return nil
	},
}

// arcInfoLines pairs each printed label with its attribute.
var arcInfoLines = []struct {
	label string
	attr  string
}{
	{"arch", "arch"},
	{"ARC version", "arc_version"},
	{"ARC device", "arc_device"},
	{"image type", "arc_image"},
}

var arcInfoCmd = &cobra.Command{
	Use:               "arc-info DUT",
	Aliases:           []string{"arc_info"},
	Short:             "Print the Android (ARC) build on a DUT",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeDUTArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		t, err := a.target(args[0])
		if err != nil {
			return err
		}
		names := make([]string, len(arcInfoLines))
		for i, l := range arcInfoLines {
			names[i] = l.attr
		}
		attrs, err := a.resolver().Resolve(cmd.Context(), t.Descriptor, names)
		if err != nil {
			return err
		}
		for _, l := range arcInfoLines {
			fmt.Fprintf(a.stdout, "%s: %s\n", l.label, attrs[l.attr])
		}
		return nil
	},
}

func init() {
	dutCmd.AddCommand(kernelConfigCmd, arcInfoCmd)
}
