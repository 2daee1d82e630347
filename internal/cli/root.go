package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rileyhilliard/dutctl/internal/errors"
	"github.com/rileyhilliard/dutctl/internal/logger"
	"github.com/spf13/cobra"
)

// Global flags
var (
	cfgFile string
	verbose bool
	quiet   bool
)

var rootCmd = &cobra.Command{
	Use:   "dutctl",
	Short: "Find, track and drive ChromeOS test devices over SSH",
	Long: `dutctl keeps a registry of the DUTs (devices under test) you work with,
finds new ones on the local network, and runs the everyday chores on them:
shells, file copies, reboots, log tails, VNC and a live status monitor.

DUTs can be addressed by registered id (model_serial) or by address:
  dutctl dut shell --dut eve_NXAB12
  dutctl dut shell --dut 192.168.7.2:2222
  dutctl dut shell --dut [fe80::1%eth0]`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose && quiet {
			return errors.New(errors.ErrConfig,
				"--verbose and --quiet cannot be used together",
				"Pick one.")
		}
		logger.SetDefault(logger.New(cmd.ErrOrStderr(), logLevel(verbose, quiet, os.Getenv("DUTCTL_DEBUG") != ""), ""))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.config/dutctl/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log every dial and query")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "only log warnings and errors")
}

// Config returns the --config flag value.
func Config() string {
	return cfgFile
}

func logLevel(verbose, quiet, debugEnv bool) string {
	switch {
	case verbose || debugEnv:
		return logger.LevelDebug
	case quiet:
		return logger.LevelWarn
	default:
		return logger.LevelInfo
	}
}

// Execute runs the root command and exits the process with its status.
// SIGINT and SIGTERM cancel the command's context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	os.Exit(exitCode(err, os.Stderr))
}

// exitCode reports err on w and picks the process exit status. Remote exit
// statuses pass through unchanged and interrupts exit 130, both silently.
func exitCode(err error, w io.Writer) int {
	if err == nil {
		return 0
	}
	if code, ok := errors.GetExitCode(err); ok {
		return code
	}
	if stderrors.Is(err, context.Canceled) {
		return 130
	}
	msg := err.Error()
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	fmt.Fprint(w, msg)
	return 1
}
