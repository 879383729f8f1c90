package device

import (
	"context"
	"errors"
	"fmt"
)

// ErrPrivilege is returned when a CLI session cannot enter privileged mode.
var ErrPrivilege = errors.New("failed to enter privileged mode")

// CLISession is an open interactive CLI session.
type CLISession interface {
	// Enable enters privileged mode if the session is not already there.
	Enable(ctx context.Context) error
	// SendConfigSet sends commands in order, entering and leaving
	// configuration mode around them, and returns the device output.
	SendConfigSet(ctx context.Context, commands []string) (string, error)
	Close() error
}

// CLIDialer opens CLI sessions.
type CLIDialer interface {
	DialCLI(ctx context.Context, p Params) (CLISession, error)
}

// NetconfSession is an open NETCONF session.
type NetconfSession interface {
	// Get issues a <get> RPC with a subtree filter and returns the reply data XML.
	Get(ctx context.Context, filter string) (string, error)
	Close() error
}

// NetconfDialer opens NETCONF sessions.
type NetconfDialer interface {
	DialNetconf(ctx context.Context, p Params) (NetconfSession, error)
}

// CommandError reports a command the device rejected.
type CommandError struct {
	Command string
	Output  string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("device rejected command %q: %s", e.Command, firstErrorLine(e.Output))
}

// interrupted converts a transport error into a context error when the
// session was torn down because ctx expired.
func interrupted(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", op, ctxErr)
	}
	return fmt.Errorf("%s: %w", op, err)
}
