package sshutil

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rileyhilliard/dutctl/internal/errors"
	"github.com/rileyhilliard/dutctl/internal/util"
)

// Upload copies local files into remoteDir, creating it if needed. Each file
// is streamed over its own session and keeps its permission bits. remoteDir
// may start with "~/".
func (c *Client) Upload(localPaths []string, remoteDir string) error {
	if remoteDir == "" {
		remoteDir = "~/"
	}
	for _, local := range localPaths {
		if err := c.uploadOne(local, remoteDir); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) uploadOne(local, remoteDir string) error {
	f, err := os.Open(local)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Can't read %s", local),
			"Check the path and permissions of the local file.")
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, fmt.Sprintf("Can't stat %s", local), "")
	}
	if info.IsDir() {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("%s is a directory", local),
			"Only regular files can be pushed.")
	}

	dest := util.RemotePath(remoteDir, filepath.Base(local))
	cmd := fmt.Sprintf("mkdir -p %s && cat > %s && chmod %o %s",
		util.RemotePath(remoteDir), dest, info.Mode().Perm(), dest)

	var stderr bytes.Buffer
	code, err := c.ExecInteractive(cmd, f, nil, &stderr)
	if err != nil {
		return err
	}
	if code != 0 {
		return errors.New(errors.ErrExec,
			fmt.Sprintf("Copying %s to %s:%s failed (exit %d)", local, c.Address, remoteDir, code),
			strings.TrimSpace(stderr.String()))
	}
	return nil
}

// Download copies remote files into localDir, which must exist.
func (c *Client) Download(remotePaths []string, localDir string) error {
	if localDir == "" {
		localDir = "."
	}
	for _, remote := range remotePaths {
		if err := c.downloadOne(remote, localDir); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) downloadOne(remote, localDir string) error {
	dest := filepath.Join(localDir, path.Base(remote))
	f, err := os.Create(dest)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Can't create %s", dest),
			"Check the destination directory exists and is writable.")
	}

	var stderr bytes.Buffer
	code, err := c.ExecStream("cat "+util.RemotePath(remote), f, &stderr)
	closeErr := f.Close()
	if err == nil && code != 0 {
		err = errors.New(errors.ErrExec,
			fmt.Sprintf("Reading %s:%s failed (exit %d)", c.Address, remote, code),
			strings.TrimSpace(stderr.String()))
	}
	if err == nil && closeErr != nil {
		err = errors.WrapWithCode(closeErr, errors.ErrExec, fmt.Sprintf("Writing %s failed", dest), "")
	}
	if err != nil {
		os.Remove(dest)
		return err
	}
	return nil
}
