package store

import (
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/google/uuid"

	"github.com/lexlab/tracer/internal/domain"
)

// RistrettoCache is a TTL-bounded learner-state cache. TTL expiry is the only
// invalidation within a process; cross-instance staleness is accepted and
// bounded by the TTL.
type RistrettoCache struct {
	cache *ristretto.Cache[string, *domain.MasteryState]
	ttl   time.Duration
}

func NewRistrettoCache(ttl time.Duration) (*RistrettoCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, *domain.MasteryState]{
		NumCounters: 100_000,
		MaxCost:     10_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &RistrettoCache{cache: c, ttl: ttl}, nil
}

func cacheKey(learnerID, tenantID uuid.UUID) string {
	return tenantID.String() + "/" + learnerID.String()
}

func (c *RistrettoCache) Get(learnerID, tenantID uuid.UUID) (*domain.MasteryState, bool) {
	return c.cache.Get(cacheKey(learnerID, tenantID))
}

func (c *RistrettoCache) Set(learnerID, tenantID uuid.UUID, state *domain.MasteryState) {
	c.cache.SetWithTTL(cacheKey(learnerID, tenantID), state, 1, c.ttl)
}

func (c *RistrettoCache) Del(learnerID, tenantID uuid.UUID) {
	c.cache.Del(cacheKey(learnerID, tenantID))
}

func (c *RistrettoCache) Close() {
	c.cache.Close()
}
