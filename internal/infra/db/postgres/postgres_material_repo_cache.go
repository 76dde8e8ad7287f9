package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"exam-access/internal/domain/model"
	"exam-access/internal/domain/ports/repository"
	"exam-access/internal/infra/metrics"
	red "exam-access/internal/infra/redis"

	"github.com/rs/zerolog"
)

var _ repository.MaterialRepository = (*materialRepoCacheDecorator)(nil)

// materialRepoCacheDecorator caches catalog reads. Only the catalog is
// cached; payment and code state always come from Postgres.
type materialRepoCacheDecorator struct {
	inner  repository.MaterialRepository
	cache  red.RedisClient
	ttl    time.Duration
	logger *zerolog.Logger
}

func NewMaterialRepoCacheDecorator(inner repository.MaterialRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.MaterialRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &materialRepoCacheDecorator{
		inner:  inner,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
	}
}

func materialKey(id string) string { return fmt.Sprintf("material:%s", id) }

func (d *materialRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Material, error) {
	key := materialKey(id)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var m model.Material
		if json.Unmarshal([]byte(val), &m) == nil {
			metrics.IncCacheRequest("material", "hit")
			return &m, nil
		}
	} else if err != red.Nil && d.logger != nil {
		d.logger.Warn().Err(err).Str("key", key).Msg("material cache read failed")
	}

	metrics.IncCacheRequest("material", "miss")
	m, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if m != nil {
		bytes, _ := json.Marshal(m)
		_ = d.cache.Set(ctx, key, bytes, d.ttl)
	}
	return m, nil
}
