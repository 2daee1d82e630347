package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rileyhilliard/dutctl/internal/config"
	"github.com/rileyhilliard/dutctl/internal/dut"
	"github.com/rileyhilliard/dutctl/internal/dut/duttest"
	"github.com/rileyhilliard/dutctl/internal/logger"
	"github.com/rileyhilliard/dutctl/internal/registry"
	sshtest "github.com/rileyhilliard/dutctl/pkg/sshutil/testing"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

// harness runs the real command tree against mock DUTs, a temp registry
// and a temp config file.
type harness struct {
	dir          string
	cfgPath      string
	registryPath string
	dialer       *sshtest.MockDialer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("DUTCTL_DEBUG", "")

	h := &harness{
		dir:          dir,
		cfgPath:      filepath.Join(dir, "config.yaml"),
		registryPath: filepath.Join(dir, "registry.db"),
		dialer:       sshtest.NewMockDialer(),
	}
	cfg := fmt.Sprintf(`version: 1
ssh:
  port: 22
registry:
  path: %s
discovery:
  probe_timeout: 2s
  max_parallel: 4
`, h.registryPath)
	require.NoError(t, os.WriteFile(h.cfgPath, []byte(cfg), 0o644))

	origDialer, origInteractive := newDialer, interactive
	origSelect, origConfirm := selectDUT, confirm
	origLogger := logger.Default()
	newDialer = func(config.SSHConfig, logger.Logger) dut.Dialer { return duttest.Dialer(h.dialer) }
	interactive = func() bool { return false }
	t.Cleanup(func() {
		newDialer, interactive = origDialer, origInteractive
		selectDUT, confirm = origSelect, origConfirm
		logger.SetDefault(origLogger)
	})
	return h
}

// run executes dutctl with args and returns what it printed.
func (h *harness) run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	return h.runContext(context.Background(), t, stdin, args...)
}

func (h *harness) runContext(ctx context.Context, t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var stdout, stderr bytes.Buffer
	rootCmd.SetArgs(append([]string{"--config", h.cfgPath}, args...))
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	t.Cleanup(func() {
		rootCmd.SetIn(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})

	err := rootCmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

// register puts a DUT straight into the registry.
func (h *harness) register(t *testing.T, id, host string) {
	t.Helper()
	store, err := registry.Open(h.registryPath)
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Set(id, dut.Descriptor{Host: host, Port: 22}))
}

func (h *harness) registered(t *testing.T) []string {
	t.Helper()
	store, err := registry.Open(h.registryPath)
	require.NoError(t, err)
	defer store.Close()
	ids, err := store.IDs()
	require.NoError(t, err)
	return ids
}

// resetFlags puts every flag in the tree back to its default, since the
// command tree is shared across test runs.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}
