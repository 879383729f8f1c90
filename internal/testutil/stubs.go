package testutil

import (
	"context"
	"sync"

	"github.com/newtron-network/devapi/pkg/device"
)

// StubCLIDialer is a device.CLIDialer that records what it is asked to do.
type StubCLIDialer struct {
	DialErr   error
	EnableErr error
	SendErr   error
	Output    string

	mu     sync.Mutex
	dials  []device.Params
	sent   [][]string
	closed int
}

// DialCLI implements device.CLIDialer.
func (d *StubCLIDialer) DialCLI(_ context.Context, p device.Params) (device.CLISession, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials = append(d.dials, p)
	if d.DialErr != nil {
		return nil, d.DialErr
	}
	return &stubCLISession{d: d}, nil
}

// Dials returns the parameters of every dial attempt.
func (d *StubCLIDialer) Dials() []device.Params {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]device.Params(nil), d.dials...)
}

// Sent returns every command set sent, in order.
func (d *StubCLIDialer) Sent() [][]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([][]string(nil), d.sent...)
}

// Closed returns how many sessions were closed.
func (d *StubCLIDialer) Closed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

type stubCLISession struct {
	d *StubCLIDialer
}

func (s *stubCLISession) Enable(context.Context) error {
	return s.d.EnableErr
}

func (s *stubCLISession) SendConfigSet(_ context.Context, commands []string) (string, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	s.d.sent = append(s.d.sent, append([]string(nil), commands...))
	if s.d.SendErr != nil {
		return "", s.d.SendErr
	}
	return s.d.Output, nil
}

func (s *stubCLISession) Close() error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	s.d.closed++
	return nil
}

// StubNetconfDialer is a device.NetconfDialer returning canned reply data.
type StubNetconfDialer struct {
	DialErr error
	GetErr  error
	Data    string

	mu      sync.Mutex
	dials   []device.Params
	filters []string
	closed  int
}

// DialNetconf implements device.NetconfDialer.
func (d *StubNetconfDialer) DialNetconf(_ context.Context, p device.Params) (device.NetconfSession, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials = append(d.dials, p)
	if d.DialErr != nil {
		return nil, d.DialErr
	}
	return &stubNetconfSession{d: d}, nil
}

// Dials returns the parameters of every dial attempt.
func (d *StubNetconfDialer) Dials() []device.Params {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]device.Params(nil), d.dials...)
}

// Filters returns every filter requested, in order.
func (d *StubNetconfDialer) Filters() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.filters...)
}

// Closed returns how many sessions were closed.
func (d *StubNetconfDialer) Closed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

type stubNetconfSession struct {
	d *StubNetconfDialer
}

func (s *stubNetconfSession) Get(_ context.Context, filter string) (string, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	s.d.filters = append(s.d.filters, filter)
	if s.d.GetErr != nil {
		return "", s.d.GetErr
	}
	return s.d.Data, nil
}

func (s *stubNetconfSession) Close() error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	s.d.closed++
	return nil
}

// LockedLocker is a devlock.Locker whose device is always held elsewhere.
type LockedLocker struct {
	Err error
}

// Acquire returns l.Err
func (l LockedLocker) Acquire(context.Context, string) (func(), error) {
	return nil, l.Err
}
