package core

import (
	"context"
	"sync"
	"time"

	"dbwarden/internal/checks"
	"dbwarden/internal/metrics"
	"dbwarden/internal/scope"
	"dbwarden/internal/threshold"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"
)

// chainKey identifies one cached chain read.
type chainKey struct {
	ref checks.Reference
	key scope.Key
}

// Cache is a read-through ChainReader that remembers chain reads for a bounded
// time. Writers must call Invalidate after changing rows of a reference;
// otherwise readers may see stale rows until the TTL elapses.
//
// Cached maps are shared between callers and must not be modified.
type Cache struct {
	next ChainReader
	lru  *expirable.LRU[chainKey, map[scope.Key]threshold.Config]

	// gens counts invalidations per reference and epoch counts purges. A miss
	// only stores its read when neither moved while it was in flight.
	mu    sync.Mutex
	gens  map[checks.Reference]uint64
	epoch uint64
}

type generation struct{ ref, epoch uint64 }

func (c *Cache) generation(ref checks.Reference) generation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return generation{ref: c.gens[ref], epoch: c.epoch}
}

// NewCache wraps next with a chain cache holding at most size entries for ttl.
func NewCache(next ChainReader, size int, ttl time.Duration) *Cache {
	if size <= 0 {
		size = 1024
	}
	return &Cache{
		next: next,
		lru:  expirable.NewLRU[chainKey, map[scope.Key]threshold.Config](size, nil, ttl),
		gens: make(map[checks.Reference]uint64),
	}
}

// GetChain implements ChainReader. The chain is always the ancestor list of
// its first key, so the first key identifies the read.
func (c *Cache) GetChain(ctx context.Context, ref checks.Reference, chain []scope.Key) (map[scope.Key]threshold.Config, error) {
	if len(chain) == 0 {
		return c.next.GetChain(ctx, ref, chain)
	}

	ck := chainKey{ref: ref, key: chain[0]}
	if rows, ok := c.lru.Get(ck); ok {
		metrics.CacheRequestsTotal.WithLabelValues("hit").Inc()
		return rows, nil
	}
	metrics.CacheRequestsTotal.WithLabelValues("miss").Inc()

	gen := c.generation(ref)
	rows, err := c.next.GetChain(ctx, ref, chain)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.gens[ref] == gen.ref && c.epoch == gen.epoch {
		c.lru.Add(ck, rows)
	}
	c.mu.Unlock()
	return rows, nil
}

// Invalidate drops every cached chain of ref.
func (c *Cache) Invalidate(ref checks.Reference) {
	c.mu.Lock()
	c.gens[ref]++
	c.mu.Unlock()

	dropped := 0
	for _, ck := range c.lru.Keys() {
		if ck.ref == ref && c.lru.Remove(ck) {
			dropped++
		}
	}
	if dropped > 0 {
		metrics.CacheInvalidationsTotal.Add(float64(dropped))
	}
	log.Debug().Str("reference", string(ref)).Int("dropped", dropped).Msg("Chain cache invalidated")
}

// Purge drops every cached chain.
func (c *Cache) Purge() {
	c.mu.Lock()
	c.epoch++
	c.mu.Unlock()
	c.lru.Purge()
}

// Len returns the number of cached chains.
func (c *Cache) Len() int {
	return c.lru.Len()
}
