package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rileyhilliard/dutctl/internal/errors"
	"github.com/spf13/viper"
)

const (
	// ConfigDir is the directory for the config file, relative to home.
	ConfigDir = ".config/dutctl"
	// ConfigFile is the config file name.
	ConfigFile = "config.yaml"
	// EnvPrefix namespaces environment overrides, e.g. DUTCTL_SSH_USER.
	EnvPrefix = "DUTCTL"
)

// DefaultPath returns ~/.config/dutctl/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ConfigDir, ConfigFile)
}

// Find returns the config file to read: the explicit path if given (it
// must exist), else the default path if it exists, else "".
func Find(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			if os.IsNotExist(err) {
				return "", errors.WrapWithCode(err, errors.ErrConfig,
					"Specified config file not found: "+explicit,
					"Check the path is correct")
			}
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot access config file: "+explicit,
				"Check file permissions")
		}
		return explicit, nil
	}

	path := DefaultPath()
	if path == "" {
		return "", nil
	}
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	return "", nil
}

// Load reads the config at path layered over defaults and DUTCTL_*
// environment variables. An empty path means defaults plus environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if os.IsNotExist(err) {
				return nil, errors.WrapWithCode(err, errors.ErrConfig,
					"Config file not found: "+path,
					"Create it, or drop --config to use the defaults")
			}
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to read config file",
				"Check the file exists and is valid YAML")
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid config format",
			"Check the YAML syntax in "+path)
	}

	cfg.SSH.IdentityFile = ExpandTilde(cfg.SSH.IdentityFile)
	cfg.Registry.Path = ExpandTilde(cfg.Registry.Path)
	return cfg, nil
}

// LoadAndValidate finds, loads and validates the config in one go.
func LoadAndValidate(explicit string) (*Config, string, error) {
	path, err := Find(explicit)
	if err != nil {
		return nil, "", err
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, path, err
	}
	if err := Validate(cfg); err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// setDefaults registers every key so AutomaticEnv can override it even
// when the file doesn't mention it.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("version", d.Version)
	v.SetDefault("ssh.user", d.SSH.User)
	v.SetDefault("ssh.port", d.SSH.Port)
	v.SetDefault("ssh.identity_file", d.SSH.IdentityFile)
	v.SetDefault("ssh.connect_timeout", d.SSH.ConnectTimeout)
	v.SetDefault("ssh.strict_host_key_checking", d.SSH.StrictHostKeyChecking)
	v.SetDefault("registry.path", d.Registry.Path)
	v.SetDefault("discovery.probe_timeout", d.Discovery.ProbeTimeout)
	v.SetDefault("discovery.max_parallel", d.Discovery.MaxParallel)
	v.SetDefault("discovery.dial_rate", d.Discovery.DialRate)
	v.SetDefault("discovery.ping_sweep", d.Discovery.PingSweep)
	v.SetDefault("discovery.max_subnet_hosts", d.Discovery.MaxSubnetHosts)
	v.SetDefault("discovery.interface", d.Discovery.Interface)
	v.SetDefault("monitor.base_port", d.Monitor.BasePort)
	v.SetDefault("monitor.interval", d.Monitor.Interval)
	v.SetDefault("vnc.local_port", d.VNC.LocalPort)
}

// ExpandTilde replaces ~ or ~/path with the user's home directory.
// Use this for LOCAL paths only. Remote paths keep ~ for the remote shell.
func ExpandTilde(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}
