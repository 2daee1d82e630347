// Package dut holds the core DUT types: how to reach a device (Descriptor),
// what it reports about itself (Attributes), and the Resolver that turns
// the first into the second over SSH.
package dut

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/rileyhilliard/dutctl/internal/errors"
)

// DefaultSSHPort is used when neither the target nor the defaults name a port.
const DefaultSSHPort = 22

// Descriptor is everything needed to reach a DUT right now. It is a value
// type; two descriptors are equal when all fields are.
type Descriptor struct {
	Host         string `json:"host" yaml:"host"`
	Port         int    `json:"port" yaml:"port"`
	IdentityFile string `json:"identity_file,omitempty" yaml:"identity_file,omitempty"`
}

// Address returns host:port, bracketing IPv6 hosts.
func (d Descriptor) Address() string {
	port := d.Port
	if port == 0 {
		port = DefaultSSHPort
	}
	return net.JoinHostPort(d.Host, strconv.Itoa(port))
}

func (d Descriptor) String() string {
	return d.Address()
}

// ParseDescriptor parses "host", "host:port", "[v6]", "[v6]:port" or a bare
// IPv6 address (zone allowed, e.g. fe80::1%eth0). Port and identity file
// fall back to defaults.
func ParseDescriptor(raw string, defaults Descriptor) (Descriptor, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Descriptor{}, errors.New(errors.ErrConfig,
			"Target host is empty",
			"Pass a DUT as host, host:port or [ipv6]:port")
	}

	host, portStr, err := splitTarget(raw)
	if err != nil {
		return Descriptor{}, err
	}
	if host == "" {
		return Descriptor{}, errors.New(errors.ErrConfig,
			fmt.Sprintf("Target '%s' has an empty host", raw),
			"Pass a DUT as host, host:port or [ipv6]:port")
	}
	if strings.ContainsAny(host, " \t/") {
		return Descriptor{}, errors.New(errors.ErrConfig,
			fmt.Sprintf("Target '%s' has an invalid host '%s'", raw, host),
			"Hosts can't contain spaces or slashes")
	}

	d := Descriptor{
		Host:         host,
		Port:         defaults.Port,
		IdentityFile: defaults.IdentityFile,
	}
	if d.Port == 0 {
		d.Port = DefaultSSHPort
	}
	if portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil || port < 1 || port > 65535 {
			return Descriptor{}, errors.New(errors.ErrConfig,
				fmt.Sprintf("Target '%s' has an invalid port '%s'", raw, portStr),
				"Ports are numbers between 1 and 65535")
		}
		d.Port = port
	}
	return d, nil
}

// splitTarget separates host and port without requiring a port.
func splitTarget(raw string) (host, port string, err error) {
	if strings.HasPrefix(raw, "[") {
		end := strings.Index(raw, "]")
		if end < 0 {
			return "", "", errors.New(errors.ErrConfig,
				fmt.Sprintf("Target '%s' is missing a closing ']'", raw),
				"Write IPv6 targets as [addr] or [addr]:port")
		}
		host = raw[1:end]
		rest := raw[end+1:]
		switch {
		case rest == "":
		case strings.HasPrefix(rest, ":"):
			port = rest[1:]
			if port == "" {
				return "", "", errors.New(errors.ErrConfig,
					fmt.Sprintf("Target '%s' has an empty port", raw),
					"Drop the trailing ':' or add a port")
			}
		default:
			return "", "", errors.New(errors.ErrConfig,
				fmt.Sprintf("Target '%s' has junk after ']'", raw),
				"Write IPv6 targets as [addr] or [addr]:port")
		}
		return host, port, nil
	}

	switch strings.Count(raw, ":") {
	case 0:
		return raw, "", nil
	case 1:
		host, port, _ = strings.Cut(raw, ":")
		if port == "" {
			return "", "", errors.New(errors.ErrConfig,
				fmt.Sprintf("Target '%s' has an empty port", raw),
				"Drop the trailing ':' or add a port")
		}
		return host, port, nil
	default:
		// Bare IPv6; a port needs brackets.
		return raw, "", nil
	}
}
