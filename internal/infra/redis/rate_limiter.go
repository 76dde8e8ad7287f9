package redis

import (
	"context"
	"fmt"
	"time"
)

// RateLimiter is a fixed-window counter: the first hit in a window sets the
// expiry, later hits only increment.
type RateLimiter struct {
	client RedisClient
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client}
}

func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := r.client.Incr(ctx, key)
	if err != nil {
		return false, err
	}

	if count == 1 {
		err = r.client.Expire(ctx, key, window)
		if err != nil {
			return false, err
		}
	}

	if count > int64(limit) {
		return false, nil
	}

	return true, nil
}

// PhoneActionKey scopes a limit to one normalized phone number.
func PhoneActionKey(phone, action string) string {
	return fmt.Sprintf("rate_limit:phone:%s:%s", phone, action)
}

// ClientActionKey scopes a limit to one client address.
func ClientActionKey(addr, action string) string {
	return fmt.Sprintf("rate_limit:ip:%s:%s", addr, action)
}
