package sshutil

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kevinburke/ssh_config"
	"github.com/rileyhilliard/dutctl/internal/errors"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// DefaultConnectTimeout bounds the TCP connect plus SSH handshake when
// neither the options nor the context carry a deadline.
const DefaultConnectTimeout = 10 * time.Second

// Client wraps an SSH connection with additional metadata.
type Client struct {
	*ssh.Client
	Host    string // The original host used to connect
	Address string // The resolved address (host:port)
}

// DialOptions configures a connection. Zero values defer to ~/.ssh/config
// and then to built-in defaults (port 22, user root).
type DialOptions struct {
	User         string
	Port         int
	IdentityFile string
	Timeout      time.Duration

	// StrictHostKeyChecking verifies host keys against ~/.ssh/known_hosts.
	// Test devices are re-imaged and re-addressed constantly, so it is off by default.
	StrictHostKeyChecking bool
}

// Dial establishes an SSH connection to host. host is a hostname, an IP
// address (IPv6 link-local zones allowed), or an ~/.ssh/config alias.
//
// The context bounds the TCP connect and the handshake; once Dial returns the
// connection outlives it.
func Dial(ctx context.Context, host string, opts DialOptions) (*Client, error) {
	settings := resolveSSHSettings(host, opts)

	config, err := buildSSHConfig(settings, opts)
	if err != nil {
		var dutErr *errors.Error
		if stderrors.As(err, &dutErr) {
			return nil, err
		}
		return nil, errors.WrapWithCode(err, errors.ErrAuth,
			fmt.Sprintf("Couldn't set up SSH for '%s'", host),
			"Check the identity file exists and is readable")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	address := settings.address()
	dialer := net.Dialer{Deadline: deadline}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConnectivity,
			fmt.Sprintf("Can't reach '%s' at %s", host, address),
			suggestionForDialError(err))
	}

	// The handshake has no context of its own; a socket deadline bounds it,
	// and closing the socket aborts it on cancellation.
	_ = conn.SetDeadline(deadline)
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, config)
	stop()
	if err != nil {
		conn.Close()

		var hostKeyErr *HostKeyMismatchError
		if stderrors.As(err, &hostKeyErr) {
			return nil, errors.New(errors.ErrAuth, hostKeyErr.Error(), hostKeyErr.Suggestion())
		}
		if ctx.Err() != nil {
			return nil, errors.WrapWithCode(ctx.Err(), errors.ErrConnectivity,
				fmt.Sprintf("SSH handshake with '%s' was interrupted", host),
				"The probe timed out before the DUT answered.")
		}

		code := errors.ErrConnectivity
		if isAuthFailure(err) {
			code = errors.ErrAuth
		}
		return nil, errors.WrapWithCode(err, code,
			fmt.Sprintf("SSH handshake with '%s' didn't go through", host),
			suggestionForHandshakeError(err, settings.encryptedKeys))
	}
	_ = conn.SetDeadline(time.Time{})

	return &Client{
		Client:  ssh.NewClient(sshConn, chans, reqs),
		Host:    host,
		Address: address,
	}, nil
}

// Close closes the SSH connection.
func (c *Client) Close() error {
	if c.Client == nil {
		return nil
	}
	return c.Client.Close()
}

// GetHost returns the original host used to connect.
func (c *Client) GetHost() string {
	return c.Host
}

// GetAddress returns the resolved host:port address.
func (c *Client) GetAddress() string {
	return c.Address
}

// sshSettings holds resolved SSH connection parameters.
type sshSettings struct {
	hostname      string
	port          string
	user          string
	identityFiles []string
	encryptedKeys []string // Keys that exist but are encrypted
}

func (s *sshSettings) address() string {
	return net.JoinHostPort(s.hostname, s.port)
}

// resolveSSHSettings layers explicit options over ~/.ssh/config over defaults.
func resolveSSHSettings(host string, opts DialOptions) *sshSettings {
	settings := &sshSettings{
		hostname: host,
		port:     "22",
		user:     "root",
	}
	if opts.IdentityFile != "" {
		settings.identityFiles = append(settings.identityFiles, expandPath(opts.IdentityFile))
	}

	if cfg := loadSSHConfig(filepath.Join(homeDir(), ".ssh", "config")); cfg != nil {
		if hostname, _ := cfg.Get(host, "HostName"); hostname != "" {
			settings.hostname = hostname
		}
		if port, _ := cfg.Get(host, "Port"); port != "" {
			settings.port = port
		}
		if user, _ := cfg.Get(host, "User"); user != "" {
			settings.user = user
		}
		if identity, _ := cfg.Get(host, "IdentityFile"); identity != "" {
			settings.identityFiles = append(settings.identityFiles, expandPath(identity))
		}
	}

	if opts.Port > 0 && opts.Port != 22 {
		settings.port = strconv.Itoa(opts.Port)
	}
	if opts.User != "" {
		settings.user = opts.User
	}
	return settings
}

// loadSSHConfig decodes the user's SSH config, or returns nil when there is
// none or it can't be parsed. Match blocks are unsupported by ssh_config, so
// everything from the first Match onward is ignored.
func loadSSHConfig(path string) *ssh_config.Config {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	cfg, err := ssh_config.Decode(bytes.NewReader(stripMatchBlocks(content)))
	if err != nil {
		return nil
	}
	return cfg
}

func stripMatchBlocks(content []byte) []byte {
	lines := strings.Split(string(content), "\n")
	for i, line := range lines {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "match ") {
			return []byte(strings.Join(lines[:i], "\n"))
		}
	}
	return content
}

// buildSSHConfig creates an SSH client config with authentication methods.
// It also populates settings.encryptedKeys with any keys that exist but are encrypted.
//
// All keys share one publickey method: x/crypto/ssh tries each method name
// once, so separate PublicKeys entries would never get past the first.
func buildSSHConfig(settings *sshSettings, opts DialOptions) (*ssh.ClientConfig, error) {
	var fileSigners []ssh.Signer
	tried := make(map[string]bool)

	tryKeyFile := func(keyPath string) {
		if tried[keyPath] {
			return
		}
		tried[keyPath] = true
		signer, err := LoadSigner(keyPath)
		if err != nil {
			var encErr *EncryptedKeyError
			if stderrors.As(err, &encErr) {
				settings.encryptedKeys = append(settings.encryptedKeys, keyPath)
			}
			return
		}
		fileSigners = append(fileSigners, signer)
	}

	// The DUT testing key goes first: agents often hold many keys and sshd
	// gives up after MaxAuthTries.
	for _, keyPath := range settings.identityFiles {
		tryKeyFile(keyPath)
	}
	for _, name := range []string{"id_ed25519", "id_rsa", "id_ecdsa"} {
		tryKeyFile(filepath.Join(homeDir(), ".ssh", name))
	}

	agentSigners := sshAgent()
	if len(fileSigners) == 0 && agentSigners == nil {
		msg := "No SSH auth methods available"
		suggestion := "Set ssh.identity_file in the dutctl config, or load a key: ssh-add -l"
		if len(settings.encryptedKeys) > 0 {
			msg = fmt.Sprintf("Found SSH key(s) but they're encrypted: %s", strings.Join(settings.encryptedKeys, ", "))
			suggestion = "Add them to the agent: ssh-add " + strings.Join(settings.encryptedKeys, " ")
		}
		return nil, errors.New(errors.ErrAuth, msg, suggestion)
	}

	signers := func() ([]ssh.Signer, error) {
		all := append([]ssh.Signer(nil), fileSigners...)
		if agentSigners != nil {
			if more, err := agentSigners(); err == nil {
				all = append(all, more...)
			}
		}
		return all, nil
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey() //nolint:gosec // DUT addresses are reused across re-imaged devices
	if opts.StrictHostKeyChecking {
		var err error
		hostKeyCallback, err = createHostKeyCallback(filepath.Join(homeDir(), ".ssh", "known_hosts"))
		if err != nil {
			return nil, fmt.Errorf("failed to load known_hosts: %w", err)
		}
	}

	return &ssh.ClientConfig{
		User:            settings.user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeysCallback(signers)},
		HostKeyCallback: hostKeyCallback,
	}, nil
}

var (
	agentClient   agent.ExtendedAgent
	agentConn     net.Conn
	agentConnOnce sync.Once
)

// sshAgent returns the agent's signer source, or nil when no agent is
// running or it holds no keys. The agent connection is shared by every dial
// in the process.
func sshAgent() func() ([]ssh.Signer, error) {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return nil
	}

	agentConnOnce.Do(func() {
		conn, err := net.Dial("unix", socket)
		if err != nil {
			return
		}
		agentConn = conn
		agentClient = agent.NewClient(conn)
	})

	if agentClient == nil {
		return nil
	}
	signers, err := agentClient.Signers()
	if err != nil || len(signers) == 0 {
		return nil
	}
	return agentClient.Signers
}

// CloseAgent closes the SSH agent connection if one is open.
func CloseAgent() {
	if agentConn != nil {
		agentConn.Close()
	}
}

// LoadSigner parses a private key file.
// Returns EncryptedKeyError if the key requires a passphrase.
func LoadSigner(keyPath string) (ssh.Signer, error) {
	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, err
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if stderrors.As(err, &missing) || bytes.Contains(key, []byte("ENCRYPTED")) {
			return nil, &EncryptedKeyError{Path: keyPath}
		}
		return nil, err
	}
	return signer, nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}

func isAuthFailure(err error) bool {
	s := err.Error()
	return strings.Contains(s, "unable to authenticate") || strings.Contains(s, "no supported methods")
}

func suggestionForDialError(err error) string {
	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "connection refused"):
		return "Is sshd running on the DUT? It may still be booting."
	case strings.Contains(errStr, "no route to host"), strings.Contains(errStr, "network is unreachable"):
		return "Can't route to the DUT. Check the cable and the interface it is on."
	case strings.Contains(errStr, "timeout"):
		return "Connection timed out. The DUT might be offline or asleep."
	}
	return "Make sure the DUT is reachable: ping <host>"
}

func suggestionForHandshakeError(err error, encryptedKeys []string) string {
	errStr := err.Error()
	if isAuthFailure(err) {
		if len(encryptedKeys) > 0 {
			return "Your key(s) are encrypted. Add them to the agent: ssh-add " + strings.Join(encryptedKeys, " ")
		}
		return "Auth failed. Check ssh.identity_file points at the DUT testing key."
	}
	if strings.Contains(errStr, "host key") {
		return "Host key issue. Try connecting manually first: ssh root@<host>"
	}
	return "Something went wrong during SSH setup. Try: ssh root@<host>"
}

// EncryptedKeyError is returned when an SSH key requires a passphrase.
type EncryptedKeyError struct {
	Path string
}

func (e *EncryptedKeyError) Error() string {
	return fmt.Sprintf("SSH key at %s is encrypted (passphrase protected)", e.Path)
}

// HostKeyMismatchError provides helpful context when known_hosts verification fails.
type HostKeyMismatchError struct {
	Hostname     string
	ReceivedType string
	KnownHosts   string
}

func (e *HostKeyMismatchError) Error() string {
	return fmt.Sprintf("host key mismatch for %s: server sent %s key", e.Hostname, e.ReceivedType)
}

// Suggestion returns actionable steps to fix the host key mismatch.
func (e *HostKeyMismatchError) Suggestion() string {
	host := e.Hostname
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return fmt.Sprintf("The DUT was probably re-imaged. Remove the old entry: ssh-keygen -f %s -R %s",
		e.KnownHosts, host)
}

// createHostKeyCallback wraps the knownhosts callback to provide better error messages.
func createHostKeyCallback(knownHostsPath string) (ssh.HostKeyCallback, error) {
	if _, err := os.Stat(knownHostsPath); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(knownHostsPath), 0700); err != nil {
			return nil, fmt.Errorf("failed to create .ssh directory: %w", err)
		}
		if err := os.WriteFile(knownHostsPath, []byte{}, 0600); err != nil {
			return nil, fmt.Errorf("failed to create known_hosts: %w", err)
		}
	}

	callback, err := knownhosts.New(knownHostsPath)
	if err != nil {
		return nil, err
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := callback(hostname, remote, key)
		var keyErr *knownhosts.KeyError
		if stderrors.As(err, &keyErr) && len(keyErr.Want) > 0 {
			return &HostKeyMismatchError{
				Hostname:     hostname,
				ReceivedType: key.Type(),
				KnownHosts:   knownHostsPath,
			}
		}
		return err
	}, nil
}
