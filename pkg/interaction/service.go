// Package interaction orchestrates loopback operations: it resolves
// connection parameters, builds the command sequence and hands it to the
// executor, recording each operation in the audit trail.
package interaction

import (
	"context"
	"fmt"
	"time"

	"github.com/newtron-network/devapi/pkg/audit"
	"github.com/newtron-network/devapi/pkg/command"
	"github.com/newtron-network/devapi/pkg/device"
	"github.com/newtron-network/devapi/pkg/executor"
	"github.com/newtron-network/devapi/pkg/settings"
	"github.com/newtron-network/devapi/pkg/util"
)

// Service is safe for concurrent use; the dry-run flag in its Runtime is
// the only state shared between calls.
type Service struct {
	runtime  *settings.Runtime
	provider *device.Provider
	executor *executor.Executor
	audit    audit.Logger
}

// New creates a Service. The executor must share rt.
func New(rt *settings.Runtime, exec *executor.Executor) *Service {
	return &Service{
		runtime:  rt,
		provider: device.NewProvider(rt),
		executor: exec,
		audit:    audit.Nop{},
	}
}

// WithAudit records every operation to l
func (s *Service) WithAudit(l audit.Logger) *Service {
	s.audit = l
	return s
}

// ConfigureLoopback creates or updates a loopback interface over the CLI.
// The returned error is a validation or configuration error; device
// failures are reported in the Outcome.
func (s *Service) ConfigureLoopback(ctx context.Context, intent LoopbackIntent) (*executor.Outcome, error) {
	start := time.Now()
	event := audit.NewEvent("", audit.OpConfigureLoopback)

	if err := intent.Validate(); err != nil {
		s.record(ctx, event.WithError(err), start)
		return nil, err
	}

	params, err := s.sessionParams(s.provider.CLISessionParams)
	if err != nil {
		s.record(ctx, event.WithError(err), start)
		return nil, err
	}
	event.Device = params.Host

	seq := command.BuildLoopbackCreate(intent.Number, intent.IPAddress, intent.SubnetMask)
	util.WithOperation(audit.OpConfigureLoopback).Infof("Loopback%d %s %s on %s",
		intent.Number, intent.IPAddress, intent.SubnetMask, params.Host)

	out := s.executor.ExecuteCommands(ctx, params, seq)
	s.record(ctx, event.WithSequence(seq).WithOutcome(out), start)
	return out, nil
}

// DeleteLoopback removes Loopback<number>. A blank or malformed number
// fails before any settings are read or the device is contacted.
func (s *Service) DeleteLoopback(ctx context.Context, number string) (*executor.Outcome, error) {
	start := time.Now()
	event := audit.NewEvent("", audit.OpDeleteLoopback)

	n, err := ParseLoopbackNumber(number)
	if err != nil {
		s.record(ctx, event.WithError(err), start)
		return nil, err
	}

	params, err := s.sessionParams(s.provider.CLISessionParams)
	if err != nil {
		s.record(ctx, event.WithError(err), start)
		return nil, err
	}
	event.Device = params.Host

	seq := command.BuildLoopbackDelete(n)
	util.WithOperation(audit.OpDeleteLoopback).Infof("Loopback%d on %s", n, params.Host)

	out := s.executor.ExecuteCommands(ctx, params, seq)
	if out.IsApplied() {
		out.Message = fmt.Sprintf("Loopback%d deleted successfully", n)
	}
	s.record(ctx, event.WithSequence(seq).WithOutcome(out), start)
	return out, nil
}

// ListInterfaces reads the interface configuration over NETCONF.
func (s *Service) ListInterfaces(ctx context.Context) (*executor.Outcome, error) {
	start := time.Now()
	event := audit.NewEvent("", audit.OpListInterfaces)

	params, err := s.sessionParams(s.provider.StructuredSessionParams)
	if err != nil {
		s.record(ctx, event.WithError(err), start)
		return nil, err
	}
	event.Device = params.Host

	seq := command.InterfaceQueryFilter()
	out := s.executor.ExecuteQuery(ctx, params, seq)
	s.record(ctx, event.WithSequence(seq).WithOutcome(out), start)
	return out, nil
}

// sessionParams resolves connection parameters. In dry-run mode the device
// is never contacted, so unusable settings only yield a warning and empty
// parameters for the preview.
func (s *Service) sessionParams(resolve func() (device.Params, error)) (device.Params, error) {
	params, err := resolve()
	if err != nil && s.runtime.DryRun() {
		util.Warnf("Dry run with unusable device settings: %v", err)
		return device.Params{}, nil
	}
	return params, err
}

// SetDryRun switches dry-run mode; it is visible to the next call.
func (s *Service) SetDryRun(ctx context.Context, dryRun bool) {
	start := time.Now()
	s.runtime.SetDryRun(dryRun)
	util.WithOperation(audit.OpSetDryRun).Infof("Dry run mode set to %v", dryRun)

	event := audit.NewEvent("", audit.OpSetDryRun).WithSuccess()
	event.DryRun = dryRun
	s.record(ctx, event, start)
}

// DryRun reports the current dry-run mode
func (s *Service) DryRun() bool {
	return s.runtime.DryRun()
}

// Audit returns recorded events matching filter
func (s *Service) Audit(filter audit.Filter) ([]*audit.Event, error) {
	return s.audit.Query(filter)
}

func (s *Service) record(ctx context.Context, event *audit.Event, start time.Time) {
	event.WithDuration(time.Since(start)).WithClient(audit.ClientFromContext(ctx))
	if err := s.audit.Log(event); err != nil {
		util.WithOperation(event.Operation).Warnf("Audit log: %v", err)
	}
}
