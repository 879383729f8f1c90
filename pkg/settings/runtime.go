package settings

import (
	"os"
	"sync/atomic"
)

// Source yields the current device settings. It is evaluated on every
// call so that credential changes apply to the next request.
type Source func() (*DeviceSettings, error)

// FileSource re-reads path and the environment on every call.
func FileSource(path string) Source {
	return func() (*DeviceSettings, error) {
		s, err := LoadFrom(path)
		if err != nil {
			return nil, err
		}
		if err := s.ApplyEnv(os.LookupEnv); err != nil {
			return nil, err
		}
		return &s.Device, nil
	}
}

// StaticSource always returns a copy of d.
func StaticSource(d DeviceSettings) Source {
	return func() (*DeviceSettings, error) {
		c := d
		return &c, nil
	}
}

// Runtime is the process-wide runtime configuration shared by all
// requests: the dry-run flag and the device settings source. It is passed
// explicitly to the components that need it.
type Runtime struct {
	dryRun atomic.Bool
	source Source
}

// NewRuntime creates a Runtime with the given initial dry-run state
func NewRuntime(dryRun bool, source Source) *Runtime {
	r := &Runtime{source: source}
	r.dryRun.Store(dryRun)
	return r
}

// DryRun reports whether device operations are previewed only
func (r *Runtime) DryRun() bool {
	return r.dryRun.Load()
}

// SetDryRun is the only mutation path for the dry-run flag.
// Last write wins; requests already past their flag read are unaffected.
func (r *Runtime) SetDryRun(v bool) {
	r.dryRun.Store(v)
}

// Device returns the current device settings from the source
func (r *Runtime) Device() (*DeviceSettings, error) {
	return r.source()
}
