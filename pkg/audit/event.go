// Package audit records every device operation, applied or previewed, as a
// JSON-lines trail that can be queried back.
package audit

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/newtron-network/devapi/pkg/command"
	"github.com/newtron-network/devapi/pkg/executor"
)

// Operations recorded in the trail.
const (
	OpConfigureLoopback = "configure_loopback"
	OpDeleteLoopback    = "delete_loopback"
	OpListInterfaces    = "list_interfaces"
	OpSetDryRun         = "set_dry_run"
)

// Event is one audited operation
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Device    string    `json:"device,omitempty"`
	Operation string    `json:"operation"`

	Protocol command.Protocol `json:"protocol,omitempty"`
	Commands []string         `json:"commands,omitempty"`
	Filter   string           `json:"filter,omitempty"`

	Status   executor.Status `json:"status,omitempty"`
	Kind     executor.Kind   `json:"kind,omitempty"`
	Success  bool            `json:"success"`
	Error    string          `json:"error,omitempty"`
	DryRun   bool            `json:"dry_run"`
	Duration time.Duration   `json:"duration"`

	ClientIP string `json:"client_ip,omitempty"`
}

// Filter defines criteria for querying audit events
type Filter struct {
	Device      string
	Operation   string
	StartTime   time.Time
	EndTime     time.Time
	SuccessOnly bool
	FailureOnly bool
	Limit       int
	Offset      int
}

// NewEvent creates a new audit event
func NewEvent(device, operation string) *Event {
	return &Event{
		ID:        generateID(),
		Timestamp: time.Now(),
		Device:    device,
		Operation: operation,
	}
}

// WithSequence records what was, or would have been, sent
func (e *Event) WithSequence(seq command.Sequence) *Event {
	e.Protocol = seq.Protocol
	e.Commands = append([]string(nil), seq.Commands...)
	e.Filter = seq.Filter
	return e
}

// WithOutcome records the result of an execution.
func (e *Event) WithOutcome(o *executor.Outcome) *Event {
	e.Status = o.Status
	e.DryRun = o.IsDryRun()
	if o.IsFailed() {
		e.Success = false
		e.Kind = o.Kind
		e.Error = o.Detail
		return e
	}
	e.Success = true
	return e
}

// WithSuccess marks the event as successful
func (e *Event) WithSuccess() *Event {
	e.Success = true
	return e
}

// WithError marks the event as failed
func (e *Event) WithError(err error) *Event {
	e.Success = false
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// WithDuration sets the operation duration
func (e *Event) WithDuration(d time.Duration) *Event {
	e.Duration = d
	return e
}

// WithClient sets the requesting client address
func (e *Event) WithClient(ip string) *Event {
	e.ClientIP = ip
	return e
}

var idSeq atomic.Uint64

func generateID() string {
	return strconv.FormatInt(time.Now().UnixNano(), 36) + "-" + strconv.FormatUint(idSeq.Add(1), 36)
}

type clientKey struct{}

// ContextWithClient attaches the requesting client address to ctx.
func ContextWithClient(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientKey{}, ip)
}

// ClientFromContext returns the client address set by ContextWithClient.
func ClientFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientKey{}).(string)
	return ip
}
