package cli

import (
	"fmt"
	"strings"

	"github.com/rileyhilliard/dutctl/internal/action"
	"github.com/rileyhilliard/dutctl/internal/errors"
	"github.com/rileyhilliard/dutctl/internal/util"
	"github.com/spf13/cobra"
)

var (
	shellDUT       string
	shellAutologin bool
)

var shellCmd = &cobra.Command{
	Use:   "shell --dut DUT [-- command...]",
	Short: "Open a shell on a DUT, or run one command",
	Long: `Open an interactive login shell on a DUT. With a command after --, run
it instead and exit with its status.

Examples:
  dutctl dut shell --dut eve_NXAB12
  dutctl dut shell --dut 192.168.7.2 -- cat /etc/lsb-release
  dutctl dut shell --dut eve_NXAB12 --autologin`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return shellCommand(cmd, shellDUT, shellAutologin, args)
	},
}

var (
	pushDUT  string
	pushDest string
)

var pushCmd = &cobra.Command{
	Use:   "push --dut DUT file...",
	Short: "Copy local files to a DUT",
	Example: `  dutctl dut push --dut eve_NXAB12 ./test.sh
  dutctl dut push --dut 192.168.7.2 --dest /usr/local/bin tool`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return pushCommand(cmd, pushDUT, pushDest, args)
	},
}

var (
	pullDUT  string
	pullDest string
)

var pullCmd = &cobra.Command{
	Use:   "pull --dut DUT file...",
	Short: "Copy files from a DUT",
	Example: `  dutctl dut pull --dut eve_NXAB12 /var/log/messages
  dutctl dut pull --dut 192.168.7.2 --dest ./logs /var/log/chrome/chrome`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return pullCommand(cmd, pullDUT, pullDest, args)
	},
}

func init() {
	addDUTFlag(shellCmd, &shellDUT)
	shellCmd.Flags().BoolVar(&shellAutologin, "autologin", false, "log in to a test account on the DUT first")
	addDUTFlag(pushCmd, &pushDUT)
	pushCmd.Flags().StringVar(&pushDest, "dest", "~/", "directory on the DUT")
	addDUTFlag(pullCmd, &pullDUT)
	pullCmd.Flags().StringVar(&pullDest, "dest", ".", "local directory")
	dutCmd.AddCommand(shellCmd, pushCmd, pullCmd)
}

func shellCommand(cmd *cobra.Command, raw string, autologin bool, args []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	t, client, err := a.connect(ctx, raw)
	if err != nil {
		return err
	}
	defer client.Close()

	if autologin {
		login, _ := action.Lookup("login")
		d := &action.Dispatcher{Stdout: a.stdout, Stderr: a.stderr, Log: a.log}
		if err := d.Run(ctx, client, login); err != nil {
			return errors.Wrap(err, fmt.Sprintf("Autologin on %s failed", t.Label()))
		}
	}

	if len(args) == 0 {
		a.log.Debug("opening a shell on %s", t.Label())
		if err := client.Shell(a.stdin, a.stdout, a.stderr); err != nil {
			return errors.Wrap(err, fmt.Sprintf("Shell on %s failed", t.Label()))
		}
		return nil
	}

	command := strings.Join(args, " ")
	code, err := client.ExecInteractive(command, a.stdin, a.stdout, a.stderr)
	if err != nil {
		return errors.Wrap(err, fmt.Sprintf("Couldn't run '%s' on %s", command, t.Label()))
	}
	if code != 0 {
		return errors.NewExitError(code)
	}
	return nil
}

func pushCommand(cmd *cobra.Command, raw, dest string, files []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	t, client, err := a.connect(cmd.Context(), raw)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Upload(files, dest); err != nil {
		return errors.Wrap(err, fmt.Sprintf("Copying to %s:%s failed", t.Label(), dest))
	}
	a.log.Info("copied %d %s to %s:%s", len(files), util.Pluralize(len(files), "file", "files"), t.Label(), dest)
	return nil
}

func pullCommand(cmd *cobra.Command, raw, dest string, files []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	t, client, err := a.connect(cmd.Context(), raw)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Download(files, dest); err != nil {
		return errors.Wrap(err, fmt.Sprintf("Copying from %s failed", t.Label()))
	}
	a.log.Info("copied %d %s from %s to %s", len(files), util.Pluralize(len(files), "file", "files"), t.Label(), dest)
	return nil
}

