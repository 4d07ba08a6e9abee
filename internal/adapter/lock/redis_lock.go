// Package lock serializes interview state transitions per application using
// a Redis key with a unique token. The token guards release so an expired
// holder cannot free a lock re-acquired by someone else.
package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/ai-interview-engine/internal/domain"
)

const luaCompareDelete = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// RedisLocker implements domain.SessionLocker on a Redis client.
type RedisLocker struct {
	redis  *redis.Client
	ttl    time.Duration
	script *redis.Script
}

// NewRedisLocker builds a locker; ttl bounds how long a crashed holder can
// block other writers.
func NewRedisLocker(rdb *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{
		redis:  rdb,
		ttl:    ttl,
		script: redis.NewScript(luaCompareDelete),
	}
}

// Acquire takes the per-application lock. While another transition holds it,
// the call fails fast with ErrConflict rather than queueing.
func (l *RedisLocker) Acquire(ctx domain.Context, applicationID string) (func(), error) {
	key := "interview:lock:" + applicationID
	token := uuid.NewString()

	ok, err := l.redis.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("op=lock.acquire: %w: %v", domain.ErrPersistence, err)
	}
	if !ok {
		return nil, fmt.Errorf("op=lock.acquire: session busy: %w", domain.ErrConflict)
	}

	release := func() {
		// Release runs on a fresh context so a cancelled request still frees
		// the lock instead of waiting out the TTL.
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := l.script.Run(rctx, l.redis, []string{key}, token).Err(); err != nil {
			slog.Error("session lock release failed",
				slog.String("application_id", applicationID), slog.Any("error", err))
		}
	}
	return release, nil
}
