package ratelimit

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// fixedWindowScript checks, increments and arms expiry atomically.
// KEYS[1] counter key; ARGV[1] limit; ARGV[2] window in milliseconds.
// Returns 1 when admitted, 0 when rejected.
var fixedWindowScript = redis.NewScript(`
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
if current >= tonumber(ARGV[1]) then
  return 0
end
current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 1
`)

// RedisFixedWindow is a fixed-window counter shared by every instance using
// the same Redis. Redis errors admit the request and are logged.
type RedisFixedWindow struct {
	client redis.UniversalClient
	limit  int
	period time.Duration
	prefix string
	log    logrus.FieldLogger
}

var _ Limiter = (*RedisFixedWindow)(nil)

// NewRedisFixedWindow creates a shared limiter on client.
func NewRedisFixedWindow(client redis.UniversalClient, limit int, period time.Duration, log logrus.FieldLogger) *RedisFixedWindow {
	return &RedisFixedWindow{
		client: client,
		limit:  limit,
		period: period,
		prefix: "hookah:ratelimit:",
		log:    log,
	}
}

// Admit runs the window script for key.
func (l *RedisFixedWindow) Admit(ctx context.Context, key string) bool {
	res, err := fixedWindowScript.Run(ctx, l.client, []string{l.prefix + key}, l.limit, l.period.Milliseconds()).Int()
	if err != nil {
		l.log.WithError(err).WithField("user_id", key).Warn("rate limiter unavailable, admitting request")
		return true
	}
	return res == 1
}
