package payment

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"exam-access/internal/domain/ports/adapter"
	"exam-access/internal/infra/metrics"
)

// FetchTokenFunc asks the processor for a fresh access token.
type FetchTokenFunc func(ctx context.Context) (string, error)

// TokenCache serves one processor token until expiresAt - margin. Concurrent
// misses may each fetch; the last writer wins the slot.
type TokenCache struct {
	store  adapter.TokenStore
	fetch  FetchTokenFunc
	ttl    time.Duration
	margin time.Duration
	now    func() time.Time
	logger *zerolog.Logger
}

func NewTokenCache(store adapter.TokenStore, fetch FetchTokenFunc, ttl, margin time.Duration, logger *zerolog.Logger) *TokenCache {
	if store == nil {
		store = NewMemoryTokenStore()
	}
	return &TokenCache{
		store:  store,
		fetch:  fetch,
		ttl:    ttl,
		margin: margin,
		now:    time.Now,
		logger: logger,
	}
}

// Token returns the cached token when still fresh, otherwise fetches and
// stores a new one.
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	slot, ok, err := c.store.Load(ctx)
	if err != nil && c.logger != nil {
		c.logger.Warn().Err(err).Msg("token store read failed; fetching a fresh token")
	}
	if err == nil && ok && c.now().Before(slot.ExpiresAt.Add(-c.margin)) {
		metrics.IncCacheRequest("processor_token", "hit")
		return slot.Token, nil
	}

	metrics.IncCacheRequest("processor_token", "miss")
	return c.Refresh(ctx)
}

// Refresh fetches a token unconditionally and overwrites the slot.
func (c *TokenCache) Refresh(ctx context.Context) (string, error) {
	token, err := c.fetch(ctx)
	if err != nil {
		return "", err
	}
	slot := adapter.TokenSlot{Token: token, ExpiresAt: c.now().Add(c.ttl)}
	if err := c.store.Save(ctx, slot); err != nil && c.logger != nil {
		c.logger.Warn().Err(err).Msg("token store write failed")
	}
	return token, nil
}

// Invalidate empties the slot so the next Token call fetches.
func (c *TokenCache) Invalidate(ctx context.Context) {
	_ = c.store.Save(ctx, adapter.TokenSlot{})
}

var _ adapter.TokenStore = (*MemoryTokenStore)(nil)

// MemoryTokenStore is the in-process slot used by single-instance deployments.
type MemoryTokenStore struct {
	mu   sync.RWMutex
	slot adapter.TokenSlot
}

func NewMemoryTokenStore() *MemoryTokenStore { return &MemoryTokenStore{} }

func (s *MemoryTokenStore) Load(ctx context.Context) (adapter.TokenSlot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.slot, s.slot.Token != "", nil
}

func (s *MemoryTokenStore) Save(ctx context.Context, slot adapter.TokenSlot) error {
	s.mu.Lock()
	s.slot = slot
	s.mu.Unlock()
	return nil
}
