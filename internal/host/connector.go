// Package host turns DUT descriptors into SSH connections and explains
// why a connection failed.
package host

import (
	"context"
	"time"

	"github.com/rileyhilliard/dutctl/internal/config"
	"github.com/rileyhilliard/dutctl/internal/dut"
	"github.com/rileyhilliard/dutctl/internal/logger"
	"github.com/rileyhilliard/dutctl/pkg/sshutil"
)

// dialFunc matches sshutil.Dial, swapped out in tests.
type dialFunc func(ctx context.Context, host string, opts sshutil.DialOptions) (sshutil.SSHClient, error)

// Connector dials DUTs with the user's SSH settings. It implements dut.Dialer.
type Connector struct {
	ssh  config.SSHConfig
	log  logger.Logger
	dial dialFunc
}

// NewConnector creates a Connector. A nil logger discards output.
func NewConnector(cfg config.SSHConfig, log logger.Logger) *Connector {
	if log == nil {
		log = logger.Noop()
	}
	return &Connector{
		ssh: cfg,
		log: log,
		dial: func(ctx context.Context, host string, opts sshutil.DialOptions) (sshutil.SSHClient, error) {
			return sshutil.Dial(ctx, host, opts)
		},
	}
}

// Defaults is the descriptor template for targets given without a port or key.
func (c *Connector) Defaults() dut.Descriptor {
	return dut.Descriptor{Port: c.ssh.Port, IdentityFile: c.ssh.IdentityFile}
}

// Dial connects to d. The descriptor's port and identity file win over the
// configured ones.
func (c *Connector) Dial(ctx context.Context, d dut.Descriptor) (sshutil.SSHClient, error) {
	opts := sshutil.DialOptions{
		User:                  c.ssh.User,
		Port:                  d.Port,
		IdentityFile:          d.IdentityFile,
		Timeout:               c.ssh.ConnectTimeout,
		StrictHostKeyChecking: c.ssh.StrictHostKeyChecking,
	}
	if opts.Port == 0 {
		opts.Port = c.ssh.Port
	}
	if opts.IdentityFile == "" {
		opts.IdentityFile = c.ssh.IdentityFile
	}

	start := time.Now()
	client, err := c.dial(ctx, d.Host, opts)
	if err != nil {
		c.log.Debug("dial %s: %s", d.Address(), Classify(err))
		return nil, err
	}
	c.log.Debug("dial %s: connected in %s", d.Address(), time.Since(start).Round(time.Millisecond))
	return client, nil
}
