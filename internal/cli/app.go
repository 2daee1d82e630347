package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rileyhilliard/dutctl/internal/config"
	"github.com/rileyhilliard/dutctl/internal/dut"
	"github.com/rileyhilliard/dutctl/internal/errors"
	"github.com/rileyhilliard/dutctl/internal/host"
	"github.com/rileyhilliard/dutctl/internal/logger"
	"github.com/rileyhilliard/dutctl/internal/registry"
	"github.com/rileyhilliard/dutctl/pkg/sshutil"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// newDialer builds the SSH dialer every command connects through. Tests
// replace it with a mock.
var newDialer = func(cfg config.SSHConfig, log logger.Logger) dut.Dialer {
	return host.NewConnector(cfg, log)
}

// interactive reports whether prompts can be shown.
var interactive = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// isTerminal reports whether w is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// app is what a command needs once flags are parsed.
type app struct {
	cfg     *config.Config
	cfgPath string
	dialer  dut.Dialer
	log     logger.Logger
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
}

func loadApp(cmd *cobra.Command) (*app, error) {
	cfg, path, err := config.LoadAndValidate(Config())
	if err != nil {
		return nil, err
	}
	log := logger.Default()
	return &app{
		cfg:     cfg,
		cfgPath: path,
		dialer:  newDialer(cfg.SSH, log),
		log:     log,
		stdin:   cmd.InOrStdin(),
		stdout:  cmd.OutOrStdout(),
		stderr:  cmd.ErrOrStderr(),
	}, nil
}

// defaults fills in what a bare address leaves out.
func (a *app) defaults() dut.Descriptor {
	return dut.Descriptor{Port: a.cfg.SSH.Port}
}

func (a *app) openRegistry() (*registry.Store, error) {
	return registry.Open(a.cfg.Registry.Path)
}

func (a *app) resolver() *dut.Resolver {
	return dut.NewResolver(a.dialer, a.log)
}

// targets resolves DUT arguments, registered ids first.
func (a *app) targets(raws []string) ([]dut.Target, error) {
	for _, raw := range raws {
		if strings.TrimSpace(raw) == "" {
			return nil, errors.New(errors.ErrConfig,
				"Please specify --dut",
				"Pass a registered id (see 'dutctl dut list') or an address.")
		}
	}
	store, err := a.openRegistry()
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return dut.ResolveTargets(raws, store, a.defaults())
}

func (a *app) target(raw string) (dut.Target, error) {
	targets, err := a.targets([]string{raw})
	if err != nil {
		return dut.Target{}, err
	}
	return targets[0], nil
}

// connect resolves raw and dials it. Failures name the DUT.
func (a *app) connect(ctx context.Context, raw string) (dut.Target, sshutil.SSHClient, error) {
	t, err := a.target(raw)
	if err != nil {
		return dut.Target{}, nil, err
	}
	client, err := a.dialer.Dial(ctx, t.Descriptor)
	if err != nil {
		return t, nil, errors.Wrap(err, fmt.Sprintf("Can't connect to %s", t.Label()))
	}
	return t, client, nil
}
