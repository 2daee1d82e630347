// Package util provides common utility functions used across the codebase.
package util

import (
	"path"
	"strings"
)

// ShellQuote single-quotes s for a POSIX shell.
func ShellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// RemotePath joins elem like path.Join and quotes the result for the DUT's
// shell. A leading "~" stays bare so the remote shell expands it to the
// login user's home. "~user" is quoted like any other text.
func RemotePath(elem ...string) string {
	p := path.Join(elem...)
	switch {
	case p == "~":
		return p
	case strings.HasPrefix(p, "~/"):
		return "~/" + ShellQuote(p[2:])
	}
	return ShellQuote(p)
}
