package config

import "time"

// CurrentConfigVersion is the schema version for the config file.
// Increment when making breaking changes to the config structure.
const CurrentConfigVersion = 1

// Config represents the dutctl config file.
type Config struct {
	Version   int             `yaml:"version" mapstructure:"version"`
	SSH       SSHConfig       `yaml:"ssh" mapstructure:"ssh"`
	Registry  RegistryConfig  `yaml:"registry" mapstructure:"registry"`
	Discovery DiscoveryConfig `yaml:"discovery" mapstructure:"discovery"`
	Monitor   MonitorConfig   `yaml:"monitor" mapstructure:"monitor"`
	VNC       VNCConfig       `yaml:"vnc" mapstructure:"vnc"`
}

// SSHConfig holds the connection defaults applied to every DUT descriptor
// that doesn't carry its own.
type SSHConfig struct {
	User string `yaml:"user" mapstructure:"user"`
	Port int    `yaml:"port" mapstructure:"port"`

	// IdentityFile is the private key DUTs accept. ChromeOS test images ship
	// with a well-known testing key.
	IdentityFile string `yaml:"identity_file" mapstructure:"identity_file"`

	ConnectTimeout        time.Duration `yaml:"connect_timeout" mapstructure:"connect_timeout"`
	StrictHostKeyChecking bool          `yaml:"strict_host_key_checking" mapstructure:"strict_host_key_checking"`
}

// RegistryConfig locates the persistent DUT registry.
type RegistryConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// DiscoveryConfig tunes batch probing.
type DiscoveryConfig struct {
	// ProbeTimeout bounds each candidate's resolution, connect included.
	ProbeTimeout time.Duration `yaml:"probe_timeout" mapstructure:"probe_timeout"`

	// MaxParallel caps concurrent probes. 0 means one goroutine per candidate.
	MaxParallel int `yaml:"max_parallel" mapstructure:"max_parallel"`

	// DialRate caps new connections per second. 0 means unlimited.
	DialRate float64 `yaml:"dial_rate" mapstructure:"dial_rate"`

	// PingSweep drops IPv4 candidates that don't answer ICMP before probing.
	PingSweep bool `yaml:"ping_sweep" mapstructure:"ping_sweep"`

	// MaxSubnetHosts refuses local scans of subnets larger than this.
	MaxSubnetHosts int `yaml:"max_subnet_hosts" mapstructure:"max_subnet_hosts"`

	// Interface is the default scan interface. Empty picks the default route's.
	Interface string `yaml:"interface" mapstructure:"interface"`
}

// MonitorConfig controls `dut monitor`.
type MonitorConfig struct {
	BasePort int           `yaml:"base_port" mapstructure:"base_port"`
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
}

// VNCConfig controls `dut vnc`.
type VNCConfig struct {
	LocalPort int `yaml:"local_port" mapstructure:"local_port"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentConfigVersion,
		SSH: SSHConfig{
			User:           "root",
			Port:           22,
			IdentityFile:   "~/.ssh/testing_rsa",
			ConnectTimeout: 10 * time.Second,
		},
		Registry: RegistryConfig{
			Path: "~/.cache/dutctl/registry.db",
		},
		Discovery: DiscoveryConfig{
			ProbeTimeout:   15 * time.Second,
			MaxSubnetHosts: 1024,
		},
		Monitor: MonitorConfig{
			BasePort: 4022,
			Interval: 5 * time.Second,
		},
		VNC: VNCConfig{
			LocalPort: 5900,
		},
	}
}
