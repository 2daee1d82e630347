package sshutil

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"github.com/rileyhilliard/dutctl/internal/errors"
	"golang.org/x/crypto/ssh"
	"golang.org/x/term"
)

// Exec runs a command on the remote host and returns the output.
// Exit code is -1 if the command couldn't be executed at all.
func (c *Client) Exec(cmd string) (stdout, stderr []byte, exitCode int, err error) {
	var stdoutBuf, stderrBuf bytes.Buffer
	exitCode, err = c.run(cmd, nil, &stdoutBuf, &stderrBuf)
	if err != nil {
		return nil, nil, exitCode, err
	}
	return stdoutBuf.Bytes(), stderrBuf.Bytes(), exitCode, nil
}

// ExecStream runs a command and streams output to the provided writers.
func (c *Client) ExecStream(cmd string, stdout, stderr io.Writer) (exitCode int, err error) {
	return c.run(cmd, nil, stdout, stderr)
}

// ExecInteractive runs a command with stdin attached, so prompts on the
// remote side can be answered.
func (c *Client) ExecInteractive(cmd string, stdin io.Reader, stdout, stderr io.Writer) (exitCode int, err error) {
	return c.run(cmd, stdin, stdout, stderr)
}

func (c *Client) run(cmd string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	session, err := c.Client.NewSession()
	if err != nil {
		return -1, errors.WrapWithCode(err, errors.ErrConnectivity,
			fmt.Sprintf("Failed to open an SSH session on %s", c.Address),
			"The connection may have dropped. Is the DUT rebooting?")
	}
	defer session.Close()

	session.Stdin = stdin
	session.Stdout = stdout
	session.Stderr = stderr

	if err := session.Run(cmd); err != nil {
		var exitErr *ssh.ExitError
		if stderrors.As(err, &exitErr) {
			return exitErr.ExitStatus(), nil
		}
		var missing *ssh.ExitMissingError
		if stderrors.As(err, &missing) {
			// The remote closed without a status, typical of `reboot`.
			return -1, nil
		}
		return -1, errors.WrapWithCode(err, errors.ErrExec,
			fmt.Sprintf("Failed to execute command on %s: %s", c.Address, cmd),
			"Check the command exists on the DUT.")
	}
	return 0, nil
}

// Shell starts an interactive shell session. When stdin is the local
// terminal it is switched to raw mode for the duration and the remote PTY
// takes its size.
func (c *Client) Shell(stdin io.Reader, stdout, stderr io.Writer) error {
	session, err := c.Client.NewSession()
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConnectivity,
			"Failed to create SSH session",
			"Connection may have been closed. Try reconnecting.")
	}
	defer session.Close()

	width, height := 80, 24
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if w, h, err := term.GetSize(int(f.Fd())); err == nil {
			width, height = w, h
		}
		state, err := term.MakeRaw(int(f.Fd()))
		if err == nil {
			defer term.Restore(int(f.Fd()), state) //nolint:errcheck // best-effort terminal restore
		}
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := session.RequestPty("xterm-256color", height, width, modes); err != nil {
		return errors.WrapWithCode(err, errors.ErrExec,
			"Failed to allocate PTY for shell",
			"The remote host may not support pseudo-terminals.")
	}

	session.Stdin = stdin
	session.Stdout = stdout
	session.Stderr = stderr

	if err := session.Shell(); err != nil {
		return errors.WrapWithCode(err, errors.ErrExec,
			"Failed to start shell",
			"Check that root has a login shell on the DUT.")
	}

	err = session.Wait()
	var exitErr *ssh.ExitError
	if stderrors.As(err, &exitErr) {
		return errors.NewExitError(exitErr.ExitStatus())
	}
	return err
}
