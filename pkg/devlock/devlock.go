// Package devlock serializes configuration sessions per device with a
// distributed lock held in Redis.
package devlock

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/newtron-network/devapi/pkg/util"
)

// KeyPrefix is the Redis key prefix for device locks.
const KeyPrefix = "DEVAPI_LOCK|"

// Locker acquires and releases per-device locks.
type Locker interface {
	// Acquire takes the lock for device and returns a release function.
	// It returns util.ErrDeviceLocked when another holder has the lock.
	Acquire(ctx context.Context, device string) (release func(), err error)
}

// Key returns the Redis key for device
func Key(device string) string {
	return KeyPrefix + device
}

// Holder returns an identifier for this process: hostname:pid
func Holder() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return fmt.Sprintf("%s:%d", host, os.Getpid())
}

// Nop is a Locker that never contends.
type Nop struct{}

// Acquire always succeeds
func (Nop) Acquire(context.Context, string) (func(), error) {
	return func() {}, nil
}

// acquireScript takes the lock if the key is absent.
// Returns 1 on success, 0 if already locked.
var acquireScript = redis.NewScript(`
local key = KEYS[1]
if redis.call("EXISTS", key) == 1 then
	return 0
end
redis.call("HSET", key, "holder", ARGV[1], "acquired", ARGV[2], "ttl", ARGV[3])
redis.call("EXPIRE", key, tonumber(ARGV[3]))
return 1
`)

// releaseScript deletes the lock only for its holder.
// Returns 1 on success, 0 on holder mismatch, -1 if the key is gone.
var releaseScript = redis.NewScript(`
local key = KEYS[1]
if redis.call("EXISTS", key) == 0 then
	return -1
end
local current = redis.call("HGET", key, "holder")
if current ~= ARGV[1] then
	return 0
end
redis.call("DEL", key)
return 1
`)

// RedisLocker stores locks as DEVAPI_LOCK|<device> hashes with holder,
// acquired time and TTL. The TTL bounds how long a crashed holder can
// block the device.
type RedisLocker struct {
	client *redis.Client
	holder string
	ttl    time.Duration
}

// NewRedisLocker creates a RedisLocker for the Redis at addr.
func NewRedisLocker(addr string, db int, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		client: redis.NewClient(&redis.Options{
			Addr: addr,
			DB:   db,
		}),
		holder: Holder(),
		ttl:    ttl,
	}
}

// Ping tests the connection
func (l *RedisLocker) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Close closes the connection
func (l *RedisLocker) Close() error {
	return l.client.Close()
}

// Acquire implements Locker.
func (l *RedisLocker) Acquire(ctx context.Context, device string) (func(), error) {
	key := Key(device)
	now := time.Now().UTC().Format(time.RFC3339)
	ttl := int((leaseTTL(ctx, l.ttl) + time.Second - 1) / time.Second)

	result, err := acquireScript.Run(ctx, l.client, []string{key},
		l.holder, now, strconv.Itoa(ttl)).Int()
	if err != nil {
		return nil, fmt.Errorf("acquiring lock for %s: %w", device, err)
	}
	if result == 0 {
		holder, _, _ := l.CurrentHolder(ctx, device)
		if holder != "" {
			return nil, fmt.Errorf("%w by %s", util.ErrDeviceLocked, holder)
		}
		return nil, util.ErrDeviceLocked
	}

	util.WithDevice(device).Debugf("Lock acquired by %s", l.holder)
	release := func() {
		// The request context may already be done; release on a fresh one.
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.release(rctx, device); err != nil {
			util.WithDevice(device).Warnf("Releasing lock: %v", err)
		}
	}
	return release, nil
}

// leaseMargin covers closing the session after the caller's deadline.
const leaseMargin = 10 * time.Second

// leaseTTL returns how long a lock key lives: base, extended when the
// caller's deadline would let the session outlive it.
func leaseTTL(ctx context.Context, base time.Duration) time.Duration {
	ttl := base
	if deadline, ok := ctx.Deadline(); ok {
		if need := time.Until(deadline) + leaseMargin; need > ttl {
			ttl = need
		}
	}
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

func (l *RedisLocker) release(ctx context.Context, device string) error {
	result, err := releaseScript.Run(ctx, l.client, []string{Key(device)}, l.holder).Int()
	if err != nil {
		return fmt.Errorf("releasing lock for %s: %w", device, err)
	}
	if result == 0 {
		return fmt.Errorf("lock holder mismatch for %s", device)
	}
	return nil
}

// CurrentHolder returns the current lock holder and acquisition time for device.
// Returns ("", zero, nil) if no lock is held.
func (l *RedisLocker) CurrentHolder(ctx context.Context, device string) (string, time.Time, error) {
	vals, err := l.client.HGetAll(ctx, Key(device)).Result()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("getting lock holder for %s: %w", device, err)
	}
	if len(vals) == 0 {
		return "", time.Time{}, nil
	}

	acquired := time.Time{}
	if ts, ok := vals["acquired"]; ok {
		acquired, _ = time.Parse(time.RFC3339, ts)
	}
	return vals["holder"], acquired, nil
}
