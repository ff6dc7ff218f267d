package openmeteo

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/couchcryptid/aurora-forecast-etl/internal/domain"
	"github.com/couchcryptid/aurora-forecast-etl/internal/observability"
	"github.com/jonboulle/clockwork"
)

// CachedClient wraps a CloudCoverProvider with an in-memory LRU cache whose
// entries expire after a TTL. Positions are rounded to two decimals (about
// 1 km) so nearby dashboard users share an entry.
type CachedClient struct {
	inner   domain.CloudCoverProvider
	cache   *lruCache
	ttl     time.Duration
	clock   clockwork.Clock
	metrics *observability.Metrics
}

// NewCachedClient creates a cache decorator around a cloud cover provider.
func NewCachedClient(inner domain.CloudCoverProvider, maxEntries int, ttl time.Duration, clock clockwork.Clock, metrics *observability.Metrics) *CachedClient {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &CachedClient{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		ttl:     ttl,
		clock:   clock,
		metrics: metrics,
	}
}

func (c *CachedClient) CurrentCloudCover(ctx context.Context, pos domain.Position) (domain.CloudCover, error) {
	rounded := domain.Position{Lat: round2(pos.Lat), Lon: round2(pos.Lon)}
	key := fmt.Sprintf("%.2f,%.2f", rounded.Lat, rounded.Lon)
	now := c.clock.Now()

	if result, ok := c.cache.get(key, now); ok {
		c.metrics.CloudCoverCache.WithLabelValues("hit").Inc()
		return result, nil
	}
	c.metrics.CloudCoverCache.WithLabelValues("miss").Inc()

	result, err := c.inner.CurrentCloudCover(ctx, rounded)
	if err != nil {
		return result, err
	}
	c.cache.put(key, result, now.Add(c.ttl))
	return result, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// lruCache is a simple thread-safe LRU cache for CloudCover readings.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key       string
	value     domain.CloudCover
	expiresAt time.Time
	prev      *entry
	next      *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

// get returns the live value for key. Expired entries are dropped.
func (c *lruCache) get(key string, now time.Time) (domain.CloudCover, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return domain.CloudCover{}, false
	}
	if !now.Before(e.expiresAt) {
		delete(c.entries, key)
		c.remove(e)
		return domain.CloudCover{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value domain.CloudCover, expiresAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		e.expiresAt = expiresAt
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value, expiresAt: expiresAt}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
