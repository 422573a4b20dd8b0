// Package cache memoises per-query scorer results in Redis, keyed by the
// reference index fingerprint so that a changed reference list never
// serves stale matches.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/qgjoin/internal/scorer"
	"github.com/Adithya-Monish-Kumar-K/qgjoin/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/qgjoin/pkg/resilience"
)

const keyPrefix = "qgjoin:"

// Store is the key-value backend; *redis.Client satisfies it.
type Store interface {
	Lookup(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// entry stores the query next to its result so that a 64-bit key collision
// is detected on read.
type entry struct {
	Query  string        `json:"q"`
	Result scorer.Result `json:"r"`
}

type ResultCache struct {
	store       Store
	fingerprint uint64
	ttl         time.Duration
	group       singleflight.Group
	breaker     *resilience.Breaker
	metrics     *metrics.Metrics
	logger      *slog.Logger
	hits        atomic.Int64
	misses      atomic.Int64
}

// New returns a cache scoped to one index fingerprint. Store calls go
// through a circuit breaker so an unreachable store costs one failed call
// per cooldown instead of one per query.
func New(store Store, fingerprint uint64, ttl time.Duration, m *metrics.Metrics) *ResultCache {
	return &ResultCache{
		store:       store,
		fingerprint: fingerprint,
		ttl:         ttl,
		breaker:     resilience.NewBreaker("result-cache", resilience.BreakerConfig{}),
		metrics:     m,
		logger:      slog.Default().With("component", "result-cache"),
	}
}

// GetOrCompute returns the cached result for query, or runs compute,
// stores its result and returns it. Concurrent callers for the same query
// share one computation. Cache failures are logged and fall through to
// compute; compute errors are returned and never cached.
func (c *ResultCache) GetOrCompute(ctx context.Context, query string, compute func() (scorer.Result, error)) (scorer.Result, bool, error) {
	if res, ok := c.get(ctx, query); ok {
		return res, true, nil
	}
	key := c.key(query)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		res, err := compute()
		if err != nil {
			return nil, err
		}
		c.set(ctx, key, query, res)
		return res, nil
	})
	if err != nil {
		return scorer.Result{}, false, err
	}
	return val.(scorer.Result), false, nil
}

func (c *ResultCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Check reports whether the store is currently considered reachable.
func (c *ResultCache) Check(context.Context) error {
	return c.breaker.Check()
}

func (c *ResultCache) get(ctx context.Context, query string) (scorer.Result, bool) {
	key := c.key(query)
	var (
		data  string
		found bool
	)
	err := c.breaker.Do(func() error {
		var err error
		data, found, err = c.store.Lookup(ctx, key)
		return err
	})
	if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Error("cache get failed", "key", key, "error", err)
	}
	if err != nil || !found {
		c.miss()
		return scorer.Result{}, false
	}
	var e entry
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return scorer.Result{}, false
	}
	if e.Query != query {
		c.logger.Warn("cache key collision", "key", key)
		c.miss()
		return scorer.Result{}, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	return e.Result, true
}

func (c *ResultCache) set(ctx context.Context, key, query string, res scorer.Result) {
	data, err := json.Marshal(entry{Query: query, Result: res})
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Do(func() error {
		return c.store.Set(ctx, key, data, c.ttl)
	})
	if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

func (c *ResultCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

func (c *ResultCache) key(query string) string {
	return fmt.Sprintf("%s%016x:%016x", keyPrefix, c.fingerprint, xxhash.Sum64String(query))
}
