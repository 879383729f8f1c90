package executor

import (
	"fmt"

	"github.com/newtron-network/devapi/pkg/command"
)

// Status tags which variant an Outcome is.
type Status string

const (
	StatusApplied Status = "applied"
	StatusDryRun  Status = "dry_run"
	StatusFailed  Status = "failed"
)

// Kind classifies a failed Outcome by the phase that failed.
type Kind string

const (
	// ConnectionError means no command reached the device: dial,
	// authentication, privilege escalation or the device lock failed.
	ConnectionError Kind = "ConnectionError"
	// ExecutionError means the session was up and a command or query
	// failed, was rejected, or timed out part way.
	ExecutionError Kind = "ExecutionError"
)

// MessageApplied is the message of a successful CLI configuration.
const MessageApplied = "Configuration applied successfully"

// Outcome is the result of one execution. Exactly one variant is populated,
// selected by Status:
//
//	StatusApplied: Message, Output (CLI) or Document (NETCONF)
//	StatusDryRun:  Preview
//	StatusFailed:  Kind, Detail
type Outcome struct {
	Status Status

	Message  string
	Output   string
	Document map[string]interface{}

	Preview command.Sequence

	Kind   Kind
	Detail string
}

// Applied returns a successful outcome with the raw device output.
func Applied(message, output string) *Outcome {
	return &Outcome{Status: StatusApplied, Message: message, Output: output}
}

// AppliedDocument returns a successful query outcome.
func AppliedDocument(doc map[string]interface{}) *Outcome {
	return &Outcome{Status: StatusApplied, Document: doc}
}

// DryRun returns a preview outcome. The sequence is copied.
func DryRun(preview command.Sequence) *Outcome {
	return &Outcome{Status: StatusDryRun, Preview: preview.Clone()}
}

// Failed returns a failed outcome carrying err's text as detail.
func Failed(kind Kind, err error) *Outcome {
	return &Outcome{Status: StatusFailed, Kind: kind, Detail: err.Error()}
}

func (o *Outcome) IsApplied() bool { return o.Status == StatusApplied }
func (o *Outcome) IsDryRun() bool  { return o.Status == StatusDryRun }
func (o *Outcome) IsFailed() bool  { return o.Status == StatusFailed }

func (o *Outcome) String() string {
	switch o.Status {
	case StatusApplied:
		if o.Document != nil {
			return "applied: document"
		}
		return "applied: " + o.Message
	case StatusDryRun:
		if o.Preview.Protocol == command.ProtocolNETCONF {
			return "dry run: filter"
		}
		return fmt.Sprintf("dry run: %d command(s)", len(o.Preview.Commands))
	case StatusFailed:
		return fmt.Sprintf("failed: %s: %s", o.Kind, o.Detail)
	}
	return string(o.Status)
}
