package openmeteo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/couchcryptid/aurora-forecast-etl/internal/domain"
	"github.com/couchcryptid/aurora-forecast-etl/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mock for cache tests ---

type countingProvider struct {
	calls   int
	percent float64
	err     error
	lastPos domain.Position
}

func (m *countingProvider) CurrentCloudCover(_ context.Context, pos domain.Position) (domain.CloudCover, error) {
	m.calls++
	m.lastPos = pos
	if m.err != nil {
		return domain.CloudCover{}, m.err
	}
	return domain.CloudCover{Position: pos, Time: "2024-05-10T17:00", Percent: m.percent}, nil
}

var tromso = domain.Position{Lat: 69.6492, Lon: 18.9553}

// --- CachedClient tests ---

func TestCachedClient_CacheHit(t *testing.T) {
	inner := &countingProvider{percent: 40}
	metrics := observability.NewMetricsForTesting()
	cached := NewCachedClient(inner, 10, 5*time.Minute, clockwork.NewFakeClock(), metrics)

	r1, err := cached.CurrentCloudCover(context.Background(), tromso)
	require.NoError(t, err)
	assert.Equal(t, 40.0, r1.Percent)

	r2, err := cached.CurrentCloudCover(context.Background(), tromso)
	require.NoError(t, err)
	assert.Equal(t, r1, r2)

	assert.Equal(t, 1, inner.calls, "should only call inner once")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CloudCoverCache.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CloudCoverCache.WithLabelValues("miss")))
}

func TestCachedClient_NearbyPositionsShareEntry(t *testing.T) {
	inner := &countingProvider{percent: 40}
	cached := NewCachedClient(inner, 10, 5*time.Minute, clockwork.NewFakeClock(), observability.NewMetricsForTesting())

	_, _ = cached.CurrentCloudCover(context.Background(), domain.Position{Lat: 69.6491, Lon: 18.9549})
	_, _ = cached.CurrentCloudCover(context.Background(), domain.Position{Lat: 69.6512, Lon: 18.9461})

	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, domain.Position{Lat: 69.65, Lon: 18.95}, inner.lastPos)
}

func TestCachedClient_Expiry(t *testing.T) {
	inner := &countingProvider{percent: 40}
	clock := clockwork.NewFakeClock()
	cached := NewCachedClient(inner, 10, 5*time.Minute, clock, observability.NewMetricsForTesting())

	_, _ = cached.CurrentCloudCover(context.Background(), tromso)
	clock.Advance(4 * time.Minute)
	_, _ = cached.CurrentCloudCover(context.Background(), tromso)
	assert.Equal(t, 1, inner.calls)

	clock.Advance(time.Minute)
	_, _ = cached.CurrentCloudCover(context.Background(), tromso)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedClient_ErrorsAreNotCached(t *testing.T) {
	inner := &countingProvider{err: errors.New("rate limited")}
	cached := NewCachedClient(inner, 10, 5*time.Minute, clockwork.NewFakeClock(), observability.NewMetricsForTesting())

	_, err := cached.CurrentCloudCover(context.Background(), tromso)
	require.Error(t, err)
	_, err = cached.CurrentCloudCover(context.Background(), tromso)
	require.Error(t, err)

	assert.Equal(t, 2, inner.calls)
}

// --- LRU cache unit tests ---

var (
	t0     = time.Date(2024, time.May, 10, 17, 0, 0, 0, time.UTC)
	future = t0.Add(time.Hour)
)

func TestLRUCache_BasicGetPut(t *testing.T) {
	c := newLRUCache(3)

	c.put("a", domain.CloudCover{Percent: 10}, future)
	c.put("b", domain.CloudCover{Percent: 20}, future)

	result, ok := c.get("a", t0)
	assert.True(t, ok)
	assert.Equal(t, 10.0, result.Percent)

	_, ok = c.get("missing", t0)
	assert.False(t, ok)
}

func TestLRUCache_Eviction(t *testing.T) {
	c := newLRUCache(2)

	c.put("a", domain.CloudCover{Percent: 10}, future)
	c.put("b", domain.CloudCover{Percent: 20}, future)
	c.put("c", domain.CloudCover{Percent: 30}, future) // evicts "a"

	_, ok := c.get("a", t0)
	assert.False(t, ok, "a should have been evicted")

	result, ok := c.get("b", t0)
	assert.True(t, ok)
	assert.Equal(t, 20.0, result.Percent)

	result, ok = c.get("c", t0)
	assert.True(t, ok)
	assert.Equal(t, 30.0, result.Percent)
}

func TestLRUCache_AccessPromotesEntry(t *testing.T) {
	c := newLRUCache(2)

	c.put("a", domain.CloudCover{Percent: 10}, future)
	c.put("b", domain.CloudCover{Percent: 20}, future)

	c.get("a", t0)

	// Inserting "c" evicts "b" (LRU), not "a".
	c.put("c", domain.CloudCover{Percent: 30}, future)

	_, ok := c.get("a", t0)
	assert.True(t, ok, "a was accessed recently, should not be evicted")

	_, ok = c.get("b", t0)
	assert.False(t, ok, "b should have been evicted")
}

func TestLRUCache_UpdateExisting(t *testing.T) {
	c := newLRUCache(2)

	c.put("a", domain.CloudCover{Percent: 10}, t0.Add(time.Minute))
	c.put("a", domain.CloudCover{Percent: 15}, future)

	result, ok := c.get("a", t0.Add(2*time.Minute))
	assert.True(t, ok, "update refreshes the expiry")
	assert.Equal(t, 15.0, result.Percent)
}

func TestLRUCache_ExpiredEntryIsDropped(t *testing.T) {
	c := newLRUCache(2)

	c.put("a", domain.CloudCover{Percent: 10}, t0.Add(time.Minute))
	_, ok := c.get("a", t0.Add(time.Minute))
	assert.False(t, ok)
	assert.Equal(t, 0, c.size())

	// The list stays consistent after dropping the only entry.
	c.put("b", domain.CloudCover{Percent: 20}, future)
	c.put("c", domain.CloudCover{Percent: 30}, future)
	c.put("d", domain.CloudCover{Percent: 40}, future)
	assert.Equal(t, 2, c.size())
}
