// Package spaceweather aggregates the dashboard view shown next to the aurora
// oval: the latest planetary Kp index, real-time solar wind speed, and the
// current cloud cover at the viewer's position.
package spaceweather

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/aurora-forecast-etl/internal/domain"
	"github.com/couchcryptid/aurora-forecast-etl/internal/observability"
	"github.com/jonboulle/clockwork"
)

const (
	sourceKp         = "kp"
	sourceSolarWind  = "solar_wind"
	sourceCloudCover = "cloud_cover"
)

// KpSource returns the latest planetary K-index reading.
type KpSource interface {
	LatestKpIndex(ctx context.Context) (domain.KpReading, error)
}

// SolarWindSource returns the latest solar wind plasma reading.
type SolarWindSource interface {
	LatestSolarWind(ctx context.Context) (domain.SolarWindReading, error)
}

// Service builds space-weather snapshots. Global readings are shared across
// callers for the configured TTL.
type Service struct {
	kp      KpSource
	wind    SolarWindSource
	clouds  domain.CloudCoverProvider
	ttl     time.Duration
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics

	mu        sync.Mutex
	kpCache   cached[domain.KpReading]
	windCache cached[domain.SolarWindReading]
}

type cached[T any] struct {
	value     T
	expiresAt time.Time
	ok        bool
}

func (c cached[T]) fresh(now time.Time) bool {
	return c.ok && now.Before(c.expiresAt)
}

// NewService creates a Service. clouds may be nil, in which case snapshots never
// carry cloud cover.
func NewService(kp KpSource, wind SolarWindSource, clouds domain.CloudCoverProvider, ttl time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{
		kp:      kp,
		wind:    wind,
		clouds:  clouds,
		ttl:     ttl,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
}

// Snapshot returns the current dashboard view. Each source fails independently:
// a failed source leaves its field nil. Cloud cover is looked up only when pos
// is non-nil.
func (s *Service) Snapshot(ctx context.Context, pos *domain.Position) domain.SpaceWeatherSnapshot {
	now := s.clock.Now()
	snap := domain.SpaceWeatherSnapshot{FetchedAt: now.UTC()}

	s.mu.Lock()
	kpCache, windCache := s.kpCache, s.windCache
	s.mu.Unlock()

	var wg sync.WaitGroup
	if kpCache.fresh(now) {
		snap.KpIndex = &kpCache.value
	} else {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r, ok := fetch(ctx, s, sourceKp, s.kp.LatestKpIndex); ok {
				snap.KpIndex = &r
				s.mu.Lock()
				s.kpCache = cached[domain.KpReading]{value: r, expiresAt: now.Add(s.ttl), ok: true}
				s.mu.Unlock()
			}
		}()
	}

	if windCache.fresh(now) {
		snap.SolarWind = &windCache.value
	} else {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r, ok := fetch(ctx, s, sourceSolarWind, s.wind.LatestSolarWind); ok {
				snap.SolarWind = &r
				s.mu.Lock()
				s.windCache = cached[domain.SolarWindReading]{value: r, expiresAt: now.Add(s.ttl), ok: true}
				s.mu.Unlock()
			}
		}()
	}

	if pos != nil && s.clouds != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lookup := func(ctx context.Context) (domain.CloudCover, error) {
				return s.clouds.CurrentCloudCover(ctx, *pos)
			}
			if r, ok := fetch(ctx, s, sourceCloudCover, lookup); ok {
				snap.CloudCover = &r
			}
		}()
	}

	wg.Wait()
	return snap
}

func fetch[T any](ctx context.Context, s *Service, source string, get func(context.Context) (T, error)) (T, bool) {
	v, err := get(ctx)
	if err != nil {
		s.logger.Warn("space weather source failed", "source", source, "error", err)
		s.metrics.SpaceWeatherRequests.WithLabelValues(source, "error").Inc()
		return v, false
	}
	s.metrics.SpaceWeatherRequests.WithLabelValues(source, "success").Inc()
	return v, true
}
