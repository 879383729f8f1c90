// Package testutil provides stub device transports and helpers shared by
// package tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/newtron-network/devapi/pkg/settings"
)

// TestDevice returns complete device settings for a device nobody listens on.
func TestDevice() settings.DeviceSettings {
	return settings.DeviceSettings{
		Host:           "192.0.2.1",
		SSHPort:        22,
		Username:       "admin",
		Password:       "admin",
		Secret:         "enable",
		TimeoutSeconds: 5,
	}
}

// Runtime returns a Runtime over TestDevice with the given dry-run mode.
func Runtime(dryRun bool) *settings.Runtime {
	return settings.NewRuntime(dryRun, settings.StaticSource(TestDevice()))
}

// Context returns a context with a reasonable timeout for tests.
// The cancel function is registered via t.Cleanup.
func Context(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}
