// Package cache memoizes query results in Redis. Keys are derived from the
// canonical postfix form of a query, so queries that differ only in spacing
// or case of their terms share an entry, and from a namespace identifying
// the index the results came from.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/boolean-search-engine/pkg/redis"
)

const keyPrefix = "bse:"

// Store is the subset of the Redis client the cache needs.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type QueryCache struct {
	store     Store
	ttl       time.Duration
	namespace string
	group     singleflight.Group
	metrics   *metrics.Metrics
	logger    *slog.Logger
	hits      atomic.Int64
	misses    atomic.Int64
}

// New creates a cache whose keys live under namespace. Rebuilding the index
// should change the namespace so stale results are never served.
func New(store Store, ttl time.Duration, namespace string, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		store:     store,
		ttl:       ttl,
		namespace: namespace,
		metrics:   m,
		logger:    slog.Default().With("component", "query-cache"),
	}
}

func (c *QueryCache) Get(ctx context.Context, postfix string) (index.PostingList, bool) {
	key := c.buildKey(postfix)
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.recordMiss()
		return nil, false
	}
	var ids index.PostingList
	if err := json.Unmarshal([]byte(data), &ids); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.recordMiss()
		return nil, false
	}
	c.recordHit()
	c.logger.Debug("cache hit", "postfix", postfix, "key", key)
	return ids, true
}

func (c *QueryCache) Set(ctx context.Context, postfix string, ids index.PostingList) {
	key := c.buildKey(postfix)
	data, err := json.Marshal(ids)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result for postfix or computes it once,
// sharing the computation between concurrent callers of the same query.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	postfix string,
	computeFn func() (index.PostingList, error),
) (index.PostingList, bool, error) {
	if ids, ok := c.Get(ctx, postfix); ok {
		return ids, true, nil
	}
	val, err, _ := c.group.Do(c.buildKey(postfix), func() (any, error) {
		ids, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, postfix, ids)
		return ids, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(index.PostingList), false, nil
}

// Invalidate deletes every entry of this cache's namespace.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+c.namespace+":*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) recordHit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *QueryCache) recordMiss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

func (c *QueryCache) buildKey(postfix string) string {
	hash := sha256.Sum256([]byte(postfix))
	return fmt.Sprintf("%s%s:%x", keyPrefix, c.namespace, hash[:16])
}
