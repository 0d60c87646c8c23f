package sources

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"dtmoney/internal/cache"
	"dtmoney/internal/core"
)

// CachedSource wraps a Source with a TTL result cache and coalesces
// concurrent identical searches into a single upstream call.
type CachedSource struct {
	next    Source
	results *cache.LRUCache[[]core.Transaction]
	group   singleflight.Group
	timeout time.Duration

	// generation changes on every invalidation; results from searches that
	// started under an older generation are not cached or shared.
	generation atomic.Uint64
	genMu      sync.Mutex
}

var _ Source = (*CachedSource)(nil)

// NewCachedSource builds the decorator. timeout bounds the shared upstream
// search, which is detached from any single caller's cancellation.
func NewCachedSource(next Source, size int, ttl, timeout time.Duration) *CachedSource {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &CachedSource{
		next:    next,
		results: cache.NewLRUCache[[]core.Transaction](size, ttl),
		timeout: timeout,
	}
}

// Results exposes the underlying cache so it can be registered for cleanup.
func (c *CachedSource) Results() *cache.LRUCache[[]core.Transaction] {
	return c.results
}

func (c *CachedSource) Search(ctx context.Context, query string) ([]core.Transaction, error) {
	key := NormalizeQuery(query)

	if items, found := c.results.Get(key); found {
		slog.DebugContext(ctx, "Search cache hit", "query", key, "count", len(items))
		return cloneTransactions(items), nil
	}

	gen := c.generation.Load()
	flightKey := strconv.FormatUint(gen, 10) + ":" + key

	ch := c.group.DoChan(flightKey, func() (any, error) {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		items, err := c.next.Search(sctx, query)
		if err != nil {
			return nil, err
		}
		c.genMu.Lock()
		if c.generation.Load() == gen {
			c.results.Set(key, items)
		}
		c.genMu.Unlock()
		return items, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("search %q: %w", query, res.Err)
		}
		if res.Shared {
			slog.DebugContext(ctx, "Search coalesced with in-flight call", "query", key)
		}
		return cloneTransactions(res.Val.([]core.Transaction)), nil
	}
}

// Create writes through and drops every cached result, since any of them
// may now be missing the new transaction.
func (c *CachedSource) Create(ctx context.Context, in core.NewTransaction) (core.Transaction, error) {
	t, err := c.next.Create(ctx, in)
	if err != nil {
		return core.Transaction{}, err
	}
	c.Invalidate()
	return t, nil
}

// Invalidate drops all cached results.
func (c *CachedSource) Invalidate() {
	c.genMu.Lock()
	c.generation.Add(1)
	c.genMu.Unlock()
	c.results.Purge()
}

func cloneTransactions(in []core.Transaction) []core.Transaction {
	if in == nil {
		return nil
	}
	out := make([]core.Transaction, len(in))
	copy(out, in)
	return out
}
