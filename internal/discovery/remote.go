package discovery

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rileyhilliard/dutctl/internal/dut"
	"github.com/rileyhilliard/dutctl/internal/errors"
	"github.com/rileyhilliard/dutctl/internal/util"
)

// Delegate runs discovery on another host, for networks only that host can
// see. It copies the running executable to the remote home directory and
// streams back what the remote run prints.
type Delegate struct {
	Dialer dut.Dialer
	// Executable locates the binary to copy. Defaults to os.Executable.
	Executable func() (string, error)
	Stdout     io.Writer
	Stderr     io.Writer
}

// Command is the remote invocation for exe with the given arguments.
func Command(exe, iface string, extra []string) string {
	args := []string{util.RemotePath("~", filepath.Base(exe)), "dut", "discover"}
	if iface != "" {
		args = append(args, "--interface", util.ShellQuote(iface))
	}
	for _, a := range extra {
		args = append(args, util.ShellQuote(a))
	}
	return strings.Join(args, " ")
}

// Run uploads the executable to target and runs discovery there.
func (d *Delegate) Run(ctx context.Context, target dut.Descriptor, iface string, extra []string) error {
	locate := d.Executable
	if locate == nil {
		locate = os.Executable
	}
	exe, err := locate()
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, "Can't find the dutctl executable to copy", "")
	}

	client, err := d.Dialer.Dial(ctx, target)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Upload([]string{exe}, "~/"); err != nil {
		return errors.Wrap(err, fmt.Sprintf("Copying %s to %s failed", filepath.Base(exe), target.Address()))
	}

	cmd := Command(exe, iface, extra)
	code, err := client.ExecStream(cmd, d.Stdout, d.Stderr)
	if err != nil {
		return errors.Wrap(err, fmt.Sprintf("Remote discovery on %s failed", target.Address()))
	}
	if code != 0 {
		return errors.New(errors.ErrExec,
			fmt.Sprintf("Remote discovery on %s exited %d", target.Address(), code),
			"Run it by hand to see why: "+cmd)
	}
	return nil
}
