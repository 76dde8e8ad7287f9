package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"exam-access/internal/domain/ports/adapter"
)

var _ adapter.TokenStore = (*TokenStore)(nil)

const tokenSlotKey = "processor_token:azampay"

// TokenStore keeps the processor token slot in Redis so every instance
// behind the load balancer reuses the same credential.
type TokenStore struct {
	client RedisClient
	key    string
}

func NewTokenStore(client RedisClient) *TokenStore {
	return &TokenStore{client: client, key: tokenSlotKey}
}

func (s *TokenStore) Load(ctx context.Context) (adapter.TokenSlot, bool, error) {
	data, err := s.client.Get(ctx, s.key)
	if err != nil {
		if errors.Is(err, Nil) {
			return adapter.TokenSlot{}, false, nil
		}
		return adapter.TokenSlot{}, false, err
	}

	var slot adapter.TokenSlot
	if err := json.Unmarshal([]byte(data), &slot); err != nil {
		// A corrupt slot is treated as empty and overwritten on the next fetch.
		return adapter.TokenSlot{}, false, nil
	}
	return slot, slot.Token != "", nil
}

// Save overwrites the slot. The key expires with the token.
func (s *TokenStore) Save(ctx context.Context, slot adapter.TokenSlot) error {
	data, err := json.Marshal(slot)
	if err != nil {
		return err
	}
	ttl := time.Until(slot.ExpiresAt)
	if ttl <= 0 {
		return s.client.Del(ctx, s.key)
	}
	return s.client.Set(ctx, s.key, data, ttl)
}
