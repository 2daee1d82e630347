package doctor

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"os"

	"github.com/rileyhilliard/dutctl/internal/util"
	"github.com/rileyhilliard/dutctl/pkg/sshutil"
	"golang.org/x/crypto/ssh/agent"
)

// IdentityFileCheck verifies the DUT testing key is present and parses.
type IdentityFileCheck struct {
	Path string
}

func (c *IdentityFileCheck) Name() string     { return "identity_file" }
func (c *IdentityFileCheck) Category() string { return "SSH" }

func (c *IdentityFileCheck) Run(context.Context) CheckResult {
	if c.Path == "" {
		return CheckResult{
			Status:     StatusWarn,
			Message:    "No ssh.identity_file configured",
			Suggestion: "Point ssh.identity_file at the ChromiumOS testing key",
		}
	}

	signer, err := sshutil.LoadSigner(c.Path)
	if err != nil {
		var encErr *sshutil.EncryptedKeyError
		switch {
		case os.IsNotExist(err):
			return CheckResult{
				Status:     StatusFail,
				Message:    "Identity file not found: " + c.Path,
				Suggestion: "Copy the ChromiumOS testing_rsa key there, or change ssh.identity_file",
			}
		case stderrors.As(err, &encErr):
			return CheckResult{
				Status:     StatusWarn,
				Message:    "Identity file is passphrase protected: " + c.Path,
				Suggestion: "Load it into the agent: ssh-add " + c.Path,
			}
		default:
			return CheckResult{
				Status:     StatusFail,
				Message:    fmt.Sprintf("Identity file %s is not a private key", c.Path),
				Suggestion: err.Error(),
			}
		}
	}

	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("Identity file: %s (%s)", c.Path, signer.PublicKey().Type()),
	}
}

func (c *IdentityFileCheck) Fix() error { return nil }

// IdentityPermissionsCheck verifies the identity file isn't readable by
// others. ssh refuses such keys.
type IdentityPermissionsCheck struct {
	Path string
}

func (c *IdentityPermissionsCheck) Name() string     { return "identity_permissions" }
func (c *IdentityPermissionsCheck) Category() string { return "SSH" }

func (c *IdentityPermissionsCheck) Run(context.Context) CheckResult {
	info, err := os.Stat(c.Path)
	if err != nil {
		// identity_file reports the missing key
		return CheckResult{
			Status:  StatusPass,
			Message: "No identity file to check",
		}
	}

	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		return CheckResult{
			Status:     StatusWarn,
			Message:    fmt.Sprintf("Insecure permissions %04o on %s", perm, c.Path),
			Suggestion: "Fix: chmod 600 " + c.Path,
			Fixable:    true,
		}
	}

	return CheckResult{
		Status:  StatusPass,
		Message: "Identity file permissions OK",
	}
}

func (c *IdentityPermissionsCheck) Fix() error {
	if err := os.Chmod(c.Path, 0o600); err != nil {
		return fmt.Errorf("failed to fix permissions on %s: %w", c.Path, err)
	}
	return nil
}

// SSHAgentCheck reports whether an agent is reachable and how many keys it
// holds. The testing key on disk is enough, so a missing agent only warns.
type SSHAgentCheck struct {
	// Socket overrides SSH_AUTH_SOCK. Tests point it at a fake agent.
	Socket string
}

func (c *SSHAgentCheck) Name() string     { return "ssh_agent" }
func (c *SSHAgentCheck) Category() string { return "SSH" }

func (c *SSHAgentCheck) Run(ctx context.Context) CheckResult {
	socket := c.Socket
	if socket == "" {
		socket = os.Getenv("SSH_AUTH_SOCK")
	}
	if socket == "" {
		return CheckResult{
			Status:     StatusWarn,
			Message:    "SSH agent not running",
			Suggestion: "Only needed for passphrase protected keys: eval $(ssh-agent) && ssh-add",
		}
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socket)
	if err != nil {
		return CheckResult{
			Status:     StatusWarn,
			Message:    "SSH agent socket not accessible",
			Suggestion: "Restart the agent: eval $(ssh-agent)",
		}
	}
	defer conn.Close()

	keys, err := agent.NewClient(conn).List()
	if err != nil {
		return CheckResult{
			Status:     StatusWarn,
			Message:    "Cannot query SSH agent",
			Suggestion: "Check the agent: ssh-add -l",
		}
	}
	if len(keys) == 0 {
		return CheckResult{
			Status:     StatusWarn,
			Message:    "SSH agent running but no keys loaded",
			Suggestion: "Add a key with: ssh-add",
		}
	}

	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("SSH agent running with %d %s loaded", len(keys), util.Pluralize(len(keys), "key", "keys")),
	}
}

func (c *SSHAgentCheck) Fix() error { return nil }

// NewSSHChecks creates the checks for the key at identityFile.
func NewSSHChecks(identityFile string) []Check {
	return []Check{
		&IdentityFileCheck{Path: identityFile},
		&IdentityPermissionsCheck{Path: identityFile},
		&SSHAgentCheck{},
	}
}
