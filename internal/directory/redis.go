package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	markerPrefix  = "pinv:"
	failurePrefix = "pinf:"
	legacyPrefix  = "legacy:"
)

const incrWithExpiry = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return current
`

// RedisDirectory keeps markers in Redis with a TTL standing in for the
// lifetime of the browser session.
type RedisDirectory struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDirectory builds a Redis-backed directory. ttl <= 0 uses 12h.
func NewRedisDirectory(client *redis.Client, ttl time.Duration) *RedisDirectory {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisDirectory{client: client, ttl: ttl}
}

func markerKey(scope, identityID string) string {
	return markerPrefix + scope + ":" + identityID
}

func failureKey(scope, identityID string) string {
	return failurePrefix + scope + ":" + identityID
}

// IsPinVerified reports whether the marker is present.
func (d *RedisDirectory) IsPinVerified(ctx context.Context, scope, identityID string) (bool, error) {
	if err := checkKey(scope, identityID); err != nil {
		return false, err
	}
	val, err := d.client.Get(ctx, markerKey(scope, identityID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read pin marker: %w", err)
	}
	return val == "true", nil
}

// MarkPinVerified sets the marker; repeating it only refreshes the TTL.
func (d *RedisDirectory) MarkPinVerified(ctx context.Context, scope, identityID string) error {
	if err := checkKey(scope, identityID); err != nil {
		return err
	}
	if err := d.client.Set(ctx, markerKey(scope, identityID), "true", d.ttl).Err(); err != nil {
		return fmt.Errorf("write pin marker: %w", err)
	}
	return nil
}

// ClearPinVerified removes the marker. Clearing an absent marker is a no-op.
func (d *RedisDirectory) ClearPinVerified(ctx context.Context, scope, identityID string) error {
	if err := checkKey(scope, identityID); err != nil {
		return err
	}
	if err := d.client.Del(ctx, markerKey(scope, identityID)).Err(); err != nil {
		return fmt.Errorf("clear pin marker: %w", err)
	}
	return nil
}

// RecordPinFailure increments the consecutive failure count and returns it.
func (d *RedisDirectory) RecordPinFailure(ctx context.Context, scope, identityID string) (int, error) {
	if err := checkKey(scope, identityID); err != nil {
		return 0, err
	}
	seconds := int(d.ttl.Seconds())
	count, err := d.client.Eval(ctx, incrWithExpiry, []string{failureKey(scope, identityID)}, seconds).Int()
	if err != nil {
		return 0, fmt.Errorf("record pin failure: %w", err)
	}
	return count, nil
}

// ResetPinFailures zeroes the failure count.
func (d *RedisDirectory) ResetPinFailures(ctx context.Context, scope, identityID string) error {
	if err := checkKey(scope, identityID); err != nil {
		return err
	}
	if err := d.client.Del(ctx, failureKey(scope, identityID)).Err(); err != nil {
		return fmt.Errorf("reset pin failures: %w", err)
	}
	return nil
}

// PurgeLegacy deletes the legacy auth flags cached for scope.
func (d *RedisDirectory) PurgeLegacy(ctx context.Context, scope string) error {
	if scope == "" {
		return errEmptyKey
	}
	keys := make([]string, 0, len(LegacyFlags))
	for _, flag := range LegacyFlags {
		keys = append(keys, legacyPrefix+scope+":"+flag)
	}
	if err := d.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("purge legacy flags: %w", err)
	}
	return nil
}
