package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rileyhilliard/dutctl/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, CurrentConfigVersion, cfg.Version)
	assert.Equal(t, "root", cfg.SSH.User)
	assert.Equal(t, 22, cfg.SSH.Port)
	assert.Equal(t, "~/.ssh/testing_rsa", cfg.SSH.IdentityFile)
	assert.Equal(t, 10*time.Second, cfg.SSH.ConnectTimeout)
	assert.False(t, cfg.SSH.StrictHostKeyChecking)
	assert.Equal(t, 15*time.Second, cfg.Discovery.ProbeTimeout)
	assert.Zero(t, cfg.Discovery.MaxParallel)
	assert.Equal(t, 1024, cfg.Discovery.MaxSubnetHosts)
	assert.Equal(t, 4022, cfg.Monitor.BasePort)
	assert.Equal(t, 5*time.Second, cfg.Monitor.Interval)
	assert.Equal(t, 5900, cfg.VNC.LocalPort)
	assert.NoError(t, Validate(cfg))
}

func TestLoad(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
version: 1
ssh:
  user: chronos
  port: 2222
  identity_file: ~/keys/dut
  connect_timeout: 3s
registry:
  path: /tmp/duts.db
discovery:
  probe_timeout: 30s
  max_parallel: 16
  dial_rate: 50
  ping_sweep: true
  interface: eth1
monitor:
  base_port: 5022
  interval: 2s
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "chronos", cfg.SSH.User)
	assert.Equal(t, 2222, cfg.SSH.Port)
	assert.Equal(t, filepath.Join(home, "keys", "dut"), cfg.SSH.IdentityFile)
	assert.Equal(t, 3*time.Second, cfg.SSH.ConnectTimeout)
	assert.Equal(t, "/tmp/duts.db", cfg.Registry.Path)
	assert.Equal(t, 30*time.Second, cfg.Discovery.ProbeTimeout)
	assert.Equal(t, 16, cfg.Discovery.MaxParallel)
	assert.InDelta(t, 50.0, cfg.Discovery.DialRate, 0.001)
	assert.True(t, cfg.Discovery.PingSweep)
	assert.Equal(t, "eth1", cfg.Discovery.Interface)
	assert.Equal(t, 5022, cfg.Monitor.BasePort)
	assert.Equal(t, 2*time.Second, cfg.Monitor.Interval)

	// Unset keys keep their defaults.
	assert.Equal(t, 1024, cfg.Discovery.MaxSubnetHosts)
	assert.Equal(t, 5900, cfg.VNC.LocalPort)
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".cache", "dutctl", "registry.db"), cfg.Registry.Path)
	assert.Equal(t, filepath.Join(home, ".ssh", "testing_rsa"), cfg.SSH.IdentityFile)
	assert.Equal(t, 4022, cfg.Monitor.BasePort)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("DUTCTL_SSH_USER", "tester")
	t.Setenv("DUTCTL_DISCOVERY_PROBE_TIMEOUT", "2s")
	t.Setenv("DUTCTL_MONITOR_BASE_PORT", "6000")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "tester", cfg.SSH.User)
	assert.Equal(t, 2*time.Second, cfg.Discovery.ProbeTimeout)
	assert.Equal(t, 6000, cfg.Monitor.BasePort)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrConfig))
	})

	t.Run("bad yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("ssh: [unclosed"), 0644))
		_, err := Load(path)
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrConfig))
	})
}

func TestFind(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path, err := Find("")
	require.NoError(t, err)
	assert.Empty(t, path, "no default config yet")

	def := filepath.Join(home, ConfigDir, ConfigFile)
	require.NoError(t, os.MkdirAll(filepath.Dir(def), 0755))
	require.NoError(t, os.WriteFile(def, []byte("version: 1\n"), 0644))

	path, err = Find("")
	require.NoError(t, err)
	assert.Equal(t, def, path)

	_, err = Find(filepath.Join(home, "missing.yaml"))
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestExpandTilde(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	assert.Equal(t, home, ExpandTilde("~"))
	assert.Equal(t, filepath.Join(home, "a", "b"), ExpandTilde("~/a/b"))
	assert.Equal(t, "/abs/path", ExpandTilde("/abs/path"))
	assert.Equal(t, "~other/x", ExpandTilde("~other/x"))
	assert.Equal(t, "", ExpandTilde(""))
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, WriteDefault(path, false))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, Validate(cfg))
	assert.Equal(t, DefaultConfig().SSH.ConnectTimeout, cfg.SSH.ConnectTimeout)
	assert.Equal(t, DefaultConfig().Monitor.BasePort, cfg.Monitor.BasePort)

	err = WriteDefault(path, false)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))

	require.NoError(t, os.WriteFile(path, []byte("junk"), 0o644))
	require.NoError(t, WriteDefault(path, true))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "version: 1")
}
