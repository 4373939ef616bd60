package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/example/ec-checkout/internal/metrics"
	"go.opentelemetry.io/otel/attribute"
)

type entry struct {
	value   []byte
	fields  map[string][]byte
	expires time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expires.IsZero() && !now.Before(e.expires)
}

// MemoryCache is a process-local Cache with per-entry expiry. A janitor
// goroutine evicts expired entries until Close is called.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]entry
	// versions counts deletes per key. Entries are kept after expiry so a
	// fill started before a delete can never match a later version.
	versions map[string]uint64
	metrics  *metrics.AppMetrics
	now      func() time.Time

	stop chan struct{}
	once sync.Once
}

func NewMemoryCache(m *metrics.AppMetrics, janitorInterval time.Duration) *MemoryCache {
	c := &MemoryCache{
		items:    make(map[string]entry),
		versions: make(map[string]uint64),
		metrics:  m,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	if janitorInterval > 0 {
		go c.janitor(janitorInterval)
	}
	return c
}

func (c *MemoryCache) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

func (c *MemoryCache) evictExpired() {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.items {
		if e.expired(now) {
			delete(c.items, k)
		}
	}
}

func (c *MemoryCache) Close() {
	c.once.Do(func() { close(c.stop) })
}

func (c *MemoryCache) record(ctx context.Context, key string, hit bool) {
	if c.metrics == nil {
		return
	}
	attrs := attribute.String("family", family(key))
	if hit {
		metrics.Inc(ctx, c.metrics.CacheHits, attrs)
	} else {
		metrics.Inc(ctx, c.metrics.CacheMisses, attrs)
	}
}

func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()

	if !ok || e.value == nil || e.expired(c.now()) {
		c.record(ctx, key, false)
		return nil, false, nil
	}
	c.record(ctx, key, true)
	return append([]byte(nil), e.value...), true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = entry{value: append([]byte(nil), value...), expires: c.expiry(ttl)}
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.items, k)
		c.versions[k]++
	}
	return nil
}

func (c *MemoryCache) Version(_ context.Context, key string) (uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.versions[key], nil
}

func (c *MemoryCache) SetIfVersion(_ context.Context, key string, version uint64, value []byte, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.versions[key] != version {
		return false, nil
	}
	c.items[key] = entry{value: append([]byte(nil), value...), expires: c.expiry(ttl)}
	return true, nil
}

func (c *MemoryCache) HashGet(ctx context.Context, key, field string) ([]byte, bool, error) {
	c.mu.RLock()
	e, ok := c.items[key]
	var v []byte
	if ok {
		v, ok = e.fields[field]
	}
	c.mu.RUnlock()

	if !ok || e.expired(c.now()) {
		c.record(ctx, key, false)
		return nil, false, nil
	}
	c.record(ctx, key, true)
	return append([]byte(nil), v...), true, nil
}

// HashSet stores field under key and resets the key's expiry to ttl.
func (c *MemoryCache) HashSet(_ context.Context, key, field string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.items[key]
	if !ok || e.expired(c.now()) || e.fields == nil {
		e = entry{fields: make(map[string][]byte)}
	}
	e.fields[field] = append([]byte(nil), value...)
	e.expires = c.expiry(ttl)
	c.items[key] = e
	return nil
}

func (c *MemoryCache) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return c.now().Add(ttl)
}

// family returns the key prefix before the first ':'.
func family(key string) string {
	prefix, _, _ := strings.Cut(key, ":")
	return prefix
}
