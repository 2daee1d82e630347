// Package action runs named remote operations against one DUT, in order,
// stopping at the first one that fails.
package action

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/rileyhilliard/dutctl/internal/dut"
	"github.com/rileyhilliard/dutctl/internal/errors"
	"github.com/rileyhilliard/dutctl/internal/exec"
	"github.com/rileyhilliard/dutctl/internal/logger"
	"github.com/rileyhilliard/dutctl/internal/util"
	"github.com/rileyhilliard/dutctl/pkg/sshutil"
)

// Kind identifies an action.
type Kind int

const (
	Reboot Kind = iota
	Login
	TailMessages
)

// AutologinCommand signs the test account into the DUT's UI.
const AutologinCommand = "/usr/local/autotest/bin/autologin.py"

// Action is one entry of the dispatch table.
type Action struct {
	Kind    Kind
	Name    string
	Help    string
	Command string
	// Disconnects marks commands that drop the connection on success, so a
	// missing exit status is not a failure.
	Disconnects bool
}

var table = map[string]Action{
	"reboot": {
		Kind:        Reboot,
		Name:        "reboot",
		Help:        "reboot the DUT",
		Command:     "reboot; exit",
		Disconnects: true,
	},
	"login": {
		Kind:    Login,
		Name:    "login",
		Help:    "log in to the UI with the test account",
		Command: AutologinCommand,
	},
	"tail_messages": {
		Kind:    TailMessages,
		Name:    "tail_messages",
		Help:    "follow /var/log/messages",
		Command: "tail -f /var/log/messages",
	},
}

// Names lists the actions, sorted.
func Names() []string {
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the named action.
func Lookup(name string) (Action, bool) {
	a, ok := table[name]
	return a, ok
}

// Validate reports every unknown name at once. An empty list is invalid.
func Validate(names []string) error {
	if len(names) == 0 {
		return errors.New(errors.ErrInvalidAction,
			"No actions given",
			"Available actions: "+strings.Join(Names(), " "))
	}
	var unknown []string
	for _, name := range names {
		if _, ok := table[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		return errors.New(errors.ErrInvalidAction,
			fmt.Sprintf("Unknown %s: %s", util.Pluralize(len(unknown), "action", "actions"), strings.Join(unknown, ", ")),
			"See 'dutctl dut do --list-actions' for available actions.")
	}
	return nil
}

// Dispatcher runs actions with their output streamed to Stdout and Stderr.
type Dispatcher struct {
	Dialer dut.Dialer
	Stdout io.Writer
	Stderr io.Writer
	Log    logger.Logger
}

// Dispatch validates names, connects to target once, and runs each action
// in order. The first failure stops the rest and is reported as
// "DUT action: <name>". Cancelling ctx closes the connection.
func (d *Dispatcher) Dispatch(ctx context.Context, target dut.Target, names []string) error {
	if err := Validate(names); err != nil {
		return err
	}

	client, err := d.Dialer.Dial(ctx, target.Descriptor)
	if err != nil {
		return err
	}
	defer client.Close()
	stop := context.AfterFunc(ctx, func() { client.Close() })
	defer stop()

	for _, name := range names {
		a := table[name]
		d.log().Debug("%s: running %s", target.Label(), name)
		if err := d.Run(ctx, client, a); err != nil {
			return errors.Wrap(err, fmt.Sprintf("DUT action: %s", name))
		}
	}
	return nil
}

// Run executes a single action on an open connection.
func (d *Dispatcher) Run(ctx context.Context, client sshutil.SSHClient, a Action) error {
	var stderr strings.Builder
	errOut := io.Writer(&stderr)
	if d.Stderr != nil {
		errOut = io.MultiWriter(d.Stderr, &stderr)
	}
	stdout := d.Stdout
	if stdout == nil {
		stdout = io.Discard
	}

	code, err := client.ExecStream(a.Command, stdout, errOut)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil {
		return err
	}
	switch {
	case code == 0:
		return nil
	case code < 0 && a.Disconnects:
		return nil
	default:
		return exec.RemoteFailure(a.Command, client.GetAddress(), stderr.String(), code)
	}
}

func (d *Dispatcher) log() logger.Logger {
	if d.Log == nil {
		return logger.Noop()
	}
	return d.Log
}
