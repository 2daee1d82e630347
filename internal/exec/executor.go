// Package exec turns the exit status of commands into structured errors,
// and runs the few local helpers discovery needs.
package exec

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rileyhilliard/dutctl/internal/errors"
)

// commandNotFoundPatterns detect "command not found" from the shells found
// on DUTs and hosts. These require exit code 127.
var commandNotFoundPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)bash: (\S+): command not found`),
	regexp.MustCompile(`(?i)sh: \d+: (\S+): not found`),
	regexp.MustCompile(`(?i)-bash: (\S+): No such file or directory`),
	regexp.MustCompile(`(?i)(\S+): not found`),
	regexp.MustCompile(`(?i)(\S+): command not found`),
}

// dependencyNotFoundPatterns detect a script failing because something it
// calls is missing. These can have various exit codes.
var dependencyNotFoundPatterns = []*regexp.Regexp{
	// /bin/sh: zcat: not found (from scripts)
	regexp.MustCompile(`(?i)/bin/sh: (\S+): not found`),
	// env: python3: No such file or directory (from #!/usr/bin/env python3)
	regexp.MustCompile(`(?i)env: (\S+): No such file or directory`),
}

// IsCommandNotFound checks if the error output indicates a missing command.
// Returns the command name (if extractable) and whether it's a command-not-found error.
func IsCommandNotFound(stderr string, exitCode int) (string, bool) {
	if exitCode != 127 {
		return "", false
	}
	for _, pattern := range commandNotFoundPatterns {
		if matches := pattern.FindStringSubmatch(stderr); len(matches) > 1 {
			return strings.TrimSuffix(matches[1], ":"), true
		}
	}
	return "", true
}

// IsDependencyNotFound checks if a script failed because a command it runs is missing.
func IsDependencyNotFound(stderr string) (string, bool) {
	for _, pattern := range dependencyNotFoundPatterns {
		if matches := pattern.FindStringSubmatch(stderr); len(matches) > 1 {
			return matches[1], true
		}
	}
	return "", false
}

// RemoteFailure describes cmd exiting with exitCode on target. A missing
// executable gets its own message; anything else carries stderr as the
// suggestion.
func RemoteFailure(cmd, target, stderr string, exitCode int) error {
	cmdName, notFound := IsCommandNotFound(stderr, exitCode)
	if !notFound {
		cmdName, notFound = IsDependencyNotFound(stderr)
	}

	if notFound {
		if cmdName == "" {
			cmdName = "command"
			if parts := strings.Fields(cmd); len(parts) > 0 {
				cmdName = parts[0]
			}
		}
		return errors.New(errors.ErrExec,
			fmt.Sprintf("'%s' not found on %s", cmdName, target),
			fmt.Sprintf("'%s' ships with ChromeOS test images. Check the DUT runs one: dutctl dut info --dut %s release", cmdName, target))
	}

	return errors.New(errors.ErrExec,
		fmt.Sprintf("'%s' exited %d on %s", cmd, exitCode, target),
		strings.TrimSpace(stderr))
}
