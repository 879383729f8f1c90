package devlock

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/newtron-network/devapi/pkg/util"
)

func TestKey(t *testing.T) {
	if got := Key("192.0.2.1"); got != "DEVAPI_LOCK|192.0.2.1" {
		t.Errorf("Key() = %q", got)
	}
}

func TestHolder(t *testing.T) {
	h := Holder()
	i := strings.LastIndex(h, ":")
	if i <= 0 || i == len(h)-1 {
		t.Errorf("Holder() = %q, want host:pid", h)
	}
}

func TestNop(t *testing.T) {
	var l Locker = Nop{}
	for i := 0; i < 2; i++ {
		release, err := l.Acquire(context.Background(), "r1")
		if err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
		release()
	}
}

func TestRedisLocker_Unreachable(t *testing.T) {
	l := NewRedisLocker("127.0.0.1:1", 0, time.Minute)
	defer l.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := l.Acquire(ctx, "r1")
	if err == nil {
		t.Fatal("Acquire() should fail without Redis")
	}
	if errors.Is(err, util.ErrDeviceLocked) {
		t.Errorf("unreachable Redis reported as contention: %v", err)
	}
}

func TestLeaseTTL(t *testing.T) {
	tests := []struct {
		name    string
		base    time.Duration
		timeout time.Duration
		min     time.Duration
		max     time.Duration
	}{
		{"no deadline keeps base", 2 * time.Minute, 0, 2 * time.Minute, 2 * time.Minute},
		{"short deadline keeps base", 2 * time.Minute, 30 * time.Second, 2 * time.Minute, 2 * time.Minute},
		{"long deadline extends lease", 2 * time.Minute, 5 * time.Minute, 5*time.Minute + leaseMargin - time.Second, 5*time.Minute + leaseMargin},
		{"floor of one second", 0, 0, time.Second, time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			if tt.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, tt.timeout)
				defer cancel()
			}
			got := leaseTTL(ctx, tt.base)
			if got < tt.min || got > tt.max {
				t.Errorf("leaseTTL() = %v, want between %v and %v", got, tt.min, tt.max)
			}
		})
	}
}
