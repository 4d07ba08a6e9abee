package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Pinger is the minimal interface for a database pool capable of Ping.
type Pinger interface{ Ping(ctx context.Context) error }

// KafkaPinger is the minimal interface for a Kafka client capable of Ping.
type KafkaPinger interface{ Ping(ctx context.Context) error }

var _ KafkaPinger = (*kgo.Client)(nil)

// BuildReadinessChecks returns three readiness checks: db, redis, and kafka.
func BuildReadinessChecks(pool Pinger, rdb *redis.Client, kc KafkaPinger) (
	func(ctx context.Context) error,
	func(ctx context.Context) error,
	func(ctx context.Context) error,
) {
	dbCheck := func(ctx context.Context) error {
		if pool == nil {
			return fmt.Errorf("db not configured")
		}
		return pool.Ping(ctx)
	}
	redisCheck := func(ctx context.Context) error {
		if rdb == nil {
			return fmt.Errorf("redis not configured")
		}
		return rdb.Ping(ctx).Err()
	}
	kafkaCheck := func(ctx context.Context) error {
		if kc == nil {
			return fmt.Errorf("kafka not configured")
		}
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return kc.Ping(ctx)
	}
	return dbCheck, redisCheck, kafkaCheck
}
