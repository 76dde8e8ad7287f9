package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// AlertLedger remembers which alerts were already sent so that instances
// sharing a Redis do not repeat each other.
type AlertLedger interface {
	// MarkOnce reports true for the first caller to mark key within ttl.
	MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Forget(ctx context.Context, keys ...string) error
}

type RedisAlertLedger struct {
	cli *redis.Client
}

func NewAlertLedger(c *redClient) *RedisAlertLedger {
	return &RedisAlertLedger{cli: c.cli}
}

func (l *RedisAlertLedger) MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.cli.SetNX(ctx, key, time.Now().Unix(), ttl).Result()
}

func (l *RedisAlertLedger) Forget(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return l.cli.Del(ctx, keys...).Err()
}
