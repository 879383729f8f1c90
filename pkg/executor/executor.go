// Package executor runs command sequences and queries against a device,
// one scoped session per call, and reduces every result to an Outcome.
package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/clbanning/mxj/v2"

	"github.com/newtron-network/devapi/pkg/command"
	"github.com/newtron-network/devapi/pkg/device"
	"github.com/newtron-network/devapi/pkg/devlock"
	"github.com/newtron-network/devapi/pkg/settings"
	"github.com/newtron-network/devapi/pkg/util"
)

func init() {
	// Attribute keys render as "@name", element text beside attributes as "#text".
	mxj.SetAttrPrefix("@")
}

// Runner executes one sequence over one protocol. Run owns the whole
// session lifecycle and never returns nil.
type Runner interface {
	Protocol() command.Protocol
	Run(ctx context.Context, p device.Params, seq command.Sequence) *Outcome
}

// Executor is the single place where dry-run mode is honored.
type Executor struct {
	runtime *settings.Runtime
	runners map[command.Protocol]Runner
	locker  devlock.Locker
}

// New creates an Executor dispatching to runners by protocol.
func New(rt *settings.Runtime, runners ...Runner) *Executor {
	e := &Executor{
		runtime: rt,
		runners: make(map[command.Protocol]Runner, len(runners)),
		locker:  devlock.Nop{},
	}
	for _, r := range runners {
		e.runners[r.Protocol()] = r
	}
	return e
}

// NewDefault creates an Executor over the real SSH CLI and NETCONF transports.
func NewDefault(rt *settings.Runtime) *Executor {
	return New(rt,
		&CLIRunner{Dialer: device.SSHDialer{}},
		&NetconfRunner{Dialer: device.NETCONFDialer{}},
	)
}

// WithLocker makes every non-dry-run execution hold the device lock.
func (e *Executor) WithLocker(l devlock.Locker) *Executor {
	e.locker = l
	return e
}

// Execute runs seq against the device described by p. In dry-run mode it
// returns the sequence as a preview without opening a session.
func (e *Executor) Execute(ctx context.Context, p device.Params, seq command.Sequence) *Outcome {
	log := util.WithSession(p.Host, string(seq.Protocol))

	if e.runtime.DryRun() {
		log.Info("Dry run: not contacting device")
		return DryRun(seq)
	}

	if seq.IsEmpty() {
		return Failed(ExecutionError, errors.New("empty command sequence"))
	}
	if p.Host == "" {
		return Failed(ConnectionError, errors.New("no device host configured"))
	}

	runner, ok := e.runners[seq.Protocol]
	if !ok {
		return Failed(ExecutionError, fmt.Errorf("no runner for protocol %q", seq.Protocol))
	}
	if p.Protocol != "" && p.Protocol != seq.Protocol {
		return Failed(ExecutionError, fmt.Errorf("%s parameters used for a %s sequence", p.Protocol, seq.Protocol))
	}

	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	release, err := e.locker.Acquire(ctx, p.Host)
	if err != nil {
		log.Warnf("Device lock: %v", err)
		return Failed(ConnectionError, err)
	}
	defer release()

	start := time.Now()
	out := runner.Run(ctx, p, seq)
	log = log.WithField("duration", time.Since(start).Round(time.Millisecond))
	if out.IsFailed() {
		log.Errorf("%s: %s", out.Kind, out.Detail)
	} else {
		log.Info("Execution succeeded")
	}
	return out
}

// ExecuteCommands runs a CLI command sequence.
func (e *Executor) ExecuteCommands(ctx context.Context, p device.Params, seq command.Sequence) *Outcome {
	seq.Protocol = command.ProtocolCLI
	return e.Execute(ctx, p, seq)
}

// ExecuteQuery runs a read-only NETCONF query with the given filter.
func (e *Executor) ExecuteQuery(ctx context.Context, p device.Params, filter command.Sequence) *Outcome {
	filter.Protocol = command.ProtocolNETCONF
	return e.Execute(ctx, p, filter)
}

// ============================================================================
// Runners
// ============================================================================

// CLIRunner applies command sequences over an interactive CLI session.
type CLIRunner struct {
	Dialer device.CLIDialer
}

func (r *CLIRunner) Protocol() command.Protocol { return command.ProtocolCLI }

// Run dials, enters privileged mode and sends the whole sequence as one
// config set. Failures before the first command is sent are
// ConnectionError; anything after is ExecutionError.
func (r *CLIRunner) Run(ctx context.Context, p device.Params, seq command.Sequence) *Outcome {
	sess, err := r.Dialer.DialCLI(ctx, p)
	if err != nil {
		return Failed(ConnectionError, fmt.Errorf("connecting to %s: %w", p.Address(), err))
	}
	defer closeSession(p, sess.Close)

	if err := sess.Enable(ctx); err != nil {
		return Failed(ConnectionError, fmt.Errorf("entering privileged mode on %s: %w", p.Host, err))
	}

	output, err := sess.SendConfigSet(ctx, seq.Commands)
	if err != nil {
		return Failed(ExecutionError, err)
	}
	return Applied(MessageApplied, output)
}

// NetconfRunner issues read-only <get> queries over NETCONF.
type NetconfRunner struct {
	Dialer device.NetconfDialer
}

func (r *NetconfRunner) Protocol() command.Protocol { return command.ProtocolNETCONF }

// Run dials, queries with the sequence filter and normalizes the reply.
func (r *NetconfRunner) Run(ctx context.Context, p device.Params, seq command.Sequence) *Outcome {
	sess, err := r.Dialer.DialNetconf(ctx, p)
	if err != nil {
		return Failed(ConnectionError, fmt.Errorf("connecting to %s: %w", p.Address(), err))
	}
	defer closeSession(p, sess.Close)

	data, err := sess.Get(ctx, seq.Filter)
	if err != nil {
		return Failed(ExecutionError, err)
	}

	doc, err := Normalize(data)
	if err != nil {
		return Failed(ExecutionError, err)
	}
	return AppliedDocument(doc)
}

// Normalize converts an XML document into nested maps: elements become
// keys, repeated elements become lists, attributes become "@name" keys.
func Normalize(data string) (map[string]interface{}, error) {
	if strings.TrimSpace(data) == "" {
		return nil, errors.New("parsing reply: empty document")
	}
	m, err := mxj.NewMapXml([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("parsing reply: %w", err)
	}
	return map[string]interface{}(m), nil
}

func closeSession(p device.Params, closeFn func() error) {
	if err := closeFn(); err != nil {
		util.WithSession(p.Host, string(p.Protocol)).Debugf("Closing session: %v", err)
	}
}
