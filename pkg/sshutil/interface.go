package sshutil

import "io"

// SSHClient defines the remote execution and transfer capability the rest of
// dutctl is built on. Both the real Client and the mocks in
// pkg/sshutil/testing satisfy it.
type SSHClient interface {
	// Exec runs a command and returns stdout, stderr, and exit code.
	// Exit code is -1 if the command couldn't be executed at all.
	// A non-zero exit code with nil error means the command ran but failed.
	Exec(cmd string) (stdout, stderr []byte, exitCode int, err error)

	// ExecStream runs a command and streams output to the provided writers.
	ExecStream(cmd string, stdout, stderr io.Writer) (exitCode int, err error)

	// ExecInteractive runs a command with stdin attached.
	ExecInteractive(cmd string, stdin io.Reader, stdout, stderr io.Writer) (exitCode int, err error)

	// Shell starts an interactive login shell bound to the given streams.
	Shell(stdin io.Reader, stdout, stderr io.Writer) error

	// Forward listens on 127.0.0.1:localPort and forwards every accepted
	// connection to remoteAddr as seen from the remote host.
	Forward(localPort int, remoteAddr string) (Tunnel, error)

	// Upload copies local files into remoteDir.
	Upload(localPaths []string, remoteDir string) error

	// Download copies remote files into localDir.
	Download(remotePaths []string, localDir string) error

	// Close closes the SSH connection.
	Close() error

	// GetHost returns the original host used to connect.
	GetHost() string

	// GetAddress returns the resolved host:port address.
	GetAddress() string
}

// Tunnel is a running local port forward.
type Tunnel interface {
	// LocalPort is the port bound on 127.0.0.1.
	LocalPort() int

	// Exited reports whether the forward has stopped, and why.
	// A tunnel closed through Close reports (true, nil).
	Exited() (bool, error)

	// Close stops accepting connections and releases the port.
	Close() error
}
