// Package querycache is the console's request cache. Reads are keyed by
// resource, operation and parameter tuple; mutations drop entries by tag.
package querycache

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pitabwire/crmconsole/internal/observability"
	"github.com/pitabwire/crmconsole/model"
)

// Key identifies one cached read. Scope separates callers that must not
// share results, such as two users of one console server; it takes no part
// in tag matching, so an invalidation reaches every scope.
type Key struct {
	Scope     string
	Resource  string
	Operation string
	ID        string
	Params    url.Values
}

// ListKey keys a list read by its full parameter tuple.
func ListKey(resource string, params url.Values) Key {
	return Key{Resource: resource, Operation: "list", Params: params}
}

// DetailKey keys a single-record read.
func DetailKey(resource, id string) Key {
	return Key{Resource: resource, Operation: "detail", ID: id}
}

// String renders the key canonically as resource/operation[/id][?params].
// Params are sorted by name, so equal tuples render equally.
func (k Key) String() string {
	var b strings.Builder
	b.WriteString(k.Resource)
	if k.Operation != "" {
		b.WriteByte('/')
		b.WriteString(k.Operation)
	}
	if k.ID != "" {
		b.WriteByte('/')
		b.WriteString(k.ID)
	}
	if len(k.Params) > 0 {
		b.WriteByte('?')
		b.WriteString(k.Params.Encode())
	}
	return b.String()
}

func (k Key) storeKey() string {
	if k.Scope == "" {
		return k.String()
	}
	return k.Scope + "|" + k.String()
}

// matches reports whether tag selects the key: the tag is the resource, the
// whole key, or a path prefix of it.
func (k Key) matches(tag string) bool {
	if k.Resource == tag {
		return true
	}
	s := k.String()
	return s == tag || strings.HasPrefix(s, tag+"/") || strings.HasPrefix(s, tag+"?")
}

type entry struct {
	key       Key
	value     any
	expiresAt time.Time
}

// Cache holds successful read results for a TTL.
type Cache struct {
	defaultTTL time.Duration
	maxEntries int
	metrics    *observability.Metrics
	now        func() time.Time

	group singleflight.Group

	mu      sync.RWMutex
	entries map[string]entry
	// epoch advances on every invalidation; a fetch that started in an older
	// epoch does not store its result.
	epoch uint64
}

// New creates a Cache. Non-positive arguments select 30s and 1000 entries.
func New(defaultTTL time.Duration, maxEntries int, metrics *observability.Metrics) *Cache {
	if defaultTTL <= 0 {
		defaultTTL = 30 * time.Second
	}
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &Cache{
		defaultTTL: defaultTTL,
		maxEntries: maxEntries,
		metrics:    metrics,
		now:        time.Now,
		entries:    make(map[string]entry),
	}
}

// Fetch returns the fresh cached value for key or calls fn. Concurrent
// fetches of one key share a single call. Only successes are stored. A
// non-positive ttl selects the cache default.
func Fetch[T any](ctx context.Context, c *Cache, key Key, ttl time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	v, err := c.fetch(ctx, key, ttl, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("querycache: %s holds %T", key, v)
	}
	return out, nil
}

func (c *Cache) fetch(ctx context.Context, key Key, ttl time.Duration, fn func(context.Context) (any, error)) (any, error) {
	s := key.storeKey()
	if v, ok := c.get(s); ok {
		c.metrics.RecordQueryCacheHit(key.Resource)
		return v, nil
	}
	c.metrics.RecordQueryCacheMiss(key.Resource)

	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	// The shared load ignores the first caller's cancellation; each API
	// attempt carries its own timeout.
	ch := c.group.DoChan(s, func() (any, error) {
		c.mu.RLock()
		epoch := c.epoch
		c.mu.RUnlock()

		v, err := fn(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		c.put(key, v, ttl, epoch)
		return v, nil
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, model.NewTimeoutError(ctx.Err())
		}
		return nil, model.NewTransportError(ctx.Err())
	}
}

func (c *Cache) get(s string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[s]
	if !ok || !c.now().Before(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

func (c *Cache) put(key Key, v any, ttl time.Duration, epoch uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if epoch != c.epoch {
		return
	}
	if len(c.entries) >= c.maxEntries {
		c.evict()
	}
	c.entries[key.storeKey()] = entry{key: key, value: v, expiresAt: c.now().Add(ttl)}
}

// evict removes expired entries, then the entry closest to expiry if the
// cache is still full. Must be called with mu held.
func (c *Cache) evict() {
	now := c.now()
	var (
		oldest    string
		oldestExp time.Time
	)
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
			continue
		}
		if oldest == "" || e.expiresAt.Before(oldestExp) {
			oldest, oldestExp = k, e.expiresAt
		}
	}
	if len(c.entries) >= c.maxEntries && oldest != "" {
		delete(c.entries, oldest)
	}
}

// Invalidate drops every entry selected by tag and returns how many were
// removed. Fetches in flight when Invalidate runs do not store results.
func (c *Cache) Invalidate(tag string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epoch++
	n := 0
	for k, e := range c.entries {
		if e.key.matches(tag) {
			delete(c.entries, k)
			n++
		}
	}
	c.metrics.RecordQueryCacheInvalidation(tag)
	return n
}

// InvalidateKey drops exactly one entry.
func (c *Cache) InvalidateKey(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epoch++
	delete(c.entries, key.storeKey())
}

// Clear drops everything. Logout calls it.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epoch++
	c.entries = make(map[string]entry)
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
