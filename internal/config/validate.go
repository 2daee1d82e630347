package config

import (
	"fmt"
	"time"

	"github.com/rileyhilliard/dutctl/internal/errors"
)

// maxPort is the highest TCP port.
const maxPort = 65535

// Validate checks the config for errors and returns a structured error
// naming the first bad field.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New(errors.ErrConfig,
			"Config is nil",
			"This is unexpected - try reloading the configuration.")
	}

	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("This config is from the future (version %d, but dutctl only knows up to %d)", cfg.Version, CurrentConfigVersion),
			"Upgrade dutctl.")
	}

	if err := validatePort("ssh.port", cfg.SSH.Port); err != nil {
		return err
	}
	if err := validateTimeout("ssh.connect_timeout", cfg.SSH.ConnectTimeout); err != nil {
		return err
	}
	if cfg.Registry.Path == "" {
		return errors.New(errors.ErrConfig,
			"registry.path is empty",
			"Point it at a writable file, e.g. ~/.cache/dutctl/registry.db")
	}
	if err := validateTimeout("discovery.probe_timeout", cfg.Discovery.ProbeTimeout); err != nil {
		return err
	}
	if cfg.Discovery.MaxParallel < 0 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("discovery.max_parallel can't be negative (got %d)", cfg.Discovery.MaxParallel),
			"Use 0 for no limit.")
	}
	if cfg.Discovery.DialRate < 0 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("discovery.dial_rate can't be negative (got %g)", cfg.Discovery.DialRate),
			"Use 0 for no limit.")
	}
	if cfg.Discovery.MaxSubnetHosts <= 0 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("discovery.max_subnet_hosts must be positive (got %d)", cfg.Discovery.MaxSubnetHosts),
			"The default is 1024, enough for a /22.")
	}
	if err := validatePort("monitor.base_port", cfg.Monitor.BasePort); err != nil {
		return err
	}
	if err := validateTimeout("monitor.interval", cfg.Monitor.Interval); err != nil {
		return err
	}
	return validatePort("vnc.local_port", cfg.VNC.LocalPort)
}

// ValidateMonitorPorts checks that n targets fit above basePort.
func ValidateMonitorPorts(basePort, n int) error {
	if basePort+n-1 > maxPort {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Monitoring %d DUTs from port %d runs past %d", n, basePort, maxPort),
			"Lower monitor.base_port or monitor fewer DUTs.")
	}
	return nil
}

func validatePort(field string, port int) error {
	if port < 1 || port > maxPort {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("%s must be between 1 and %d (got %d)", field, maxPort, port),
			"Check the '"+field+"' setting.")
	}
	return nil
}

func validateTimeout(field string, d time.Duration) error {
	if d <= 0 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("%s must be positive (got %s)", field, d),
			"Use a Go duration like 10s or 1m.")
	}
	return nil
}
