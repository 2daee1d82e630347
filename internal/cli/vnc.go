package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rileyhilliard/dutctl/internal/errors"
	"github.com/rileyhilliard/dutctl/internal/exec"
	"github.com/rileyhilliard/dutctl/pkg/sshutil"
	"github.com/spf13/cobra"
)

const (
	vncRemote  = "localhost:5900"
	vncCommand = "kmsvnc"
)

// vncPollInterval is how often the VNC session is checked.
var vncPollInterval = 5 * time.Second

var (
	vncDUT  string
	vncPort int
)

var vncCmd = &cobra.Command{
	Use:   "vnc --dut DUT",
	Short: "Serve a DUT's screen over VNC on a local port",
	Long: `Start kmsvnc on the DUT and forward its VNC port to this machine. Runs
until interrupted or until the DUT drops the session.

Examples:
  dutctl dut vnc --dut eve_NXAB12
  dutctl dut vnc --dut 192.168.7.2 --port 5901`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		port := vncPort
		if port == 0 {
			port = a.cfg.VNC.LocalPort
		}
		return runVNC(cmd.Context(), a, vncDUT, port, vncPollInterval)
	},
}

func init() {
	addDUTFlag(vncCmd, &vncDUT)
	vncCmd.Flags().IntVar(&vncPort, "port", 0, "local port (default from vnc.local_port, 5900)")
	dutCmd.AddCommand(vncCmd)
}

func runVNC(ctx context.Context, a *app, raw string, port int, interval time.Duration) error {
	t, client, err := a.connect(ctx, raw)
	if err != nil {
		return err
	}
	defer client.Close()

	tunnel, err := client.Forward(port, vncRemote)
	if err != nil {
		return errors.Wrap(err, fmt.Sprintf("Can't forward port %d to %s", port, t.Label()))
	}
	defer tunnel.Close()

	done := make(chan error, 1)
	go func() {
		done <- serveVNC(client, a.stderr)
	}()

	shown := false
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-done:
			return errors.Wrap(err, fmt.Sprintf("Failed to connect to %s", t.Label()))
		default:
		}
		if exited, err := tunnel.Exited(); exited {
			if err == nil {
				err = errors.New(errors.ErrConnectivity, "tunnel closed", "")
			}
			return errors.Wrap(err, fmt.Sprintf("Failed to connect to %s", t.Label()))
		}
		if !shown {
			fmt.Fprintf(a.stdout, "Connected. Please run `xtightvncviewer -encodings raw localhost:%d`\n", port)
			shown = true
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-done:
			return errors.Wrap(err, fmt.Sprintf("Failed to connect to %s", t.Label()))
		case <-ticker.C:
		}
	}
}

// serveVNC runs the VNC server on the DUT. It only returns once the
// server has stopped, always with an error.
func serveVNC(client sshutil.SSHClient, stderr io.Writer) error {
	var captured strings.Builder
	code, err := client.ExecStream(vncCommand, io.Discard, io.MultiWriter(stderr, &captured))
	if err != nil {
		return err
	}
	return exec.RemoteFailure(vncCommand, client.GetAddress(), captured.String(), code)
}
