package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/aurora-forecast-etl/internal/domain"
	"github.com/couchcryptid/aurora-forecast-etl/internal/observability"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Fetcher retrieves the latest raw forecast document from upstream.
type Fetcher interface {
	Fetch(ctx context.Context) (domain.RawForecastDocument, error)
}

// Transformer converts a forecast document into a feature collection.
type Transformer interface {
	Transform(ctx context.Context, doc domain.RawForecastDocument) (domain.FeatureCollection, domain.TransformStats, error)
}

// Publisher writes the serialized collection to the object store.
type Publisher interface {
	Publish(ctx context.Context, body []byte) (domain.Artifact, error)
}

// RunLocker guards against overlapping runs across processes. unlock must be
// called when acquired is true.
type RunLocker interface {
	TryLock(ctx context.Context) (unlock func(), acquired bool, err error)
}

// RunRecorder persists the outcome of each run.
type RunRecorder interface {
	RecordRun(ctx context.Context, rec domain.RunRecord) error
}

// EventNotifier announces a published artifact to downstream subscribers.
type EventNotifier interface {
	NotifyPublished(ctx context.Context, event domain.PublishedEvent) error
}

// Options holds the optional collaborators of a Pipeline. Nil fields are skipped.
type Options struct {
	Locker   RunLocker
	Recorder RunRecorder
	Notifier EventNotifier

	// RunTimeout bounds a single run. Zero means no bound beyond the caller's context.
	RunTimeout time.Duration
	// Indent is passed to the GeoJSON encoder; empty produces compact output.
	Indent string
	// Clock drives the scheduler ticker. Defaults to the real clock.
	Clock clockwork.Clock
}

// Pipeline orchestrates the fetch-transform-publish run.
type Pipeline struct {
	fetcher     Fetcher
	transformer Transformer
	publisher   Publisher
	logger      *slog.Logger
	metrics     *observability.Metrics
	opts        Options

	mu    sync.Mutex
	ready atomic.Bool
}

// New creates a Pipeline with the given stages and observability.
func New(f Fetcher, t Transformer, p Publisher, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Pipeline {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Pipeline{
		fetcher:     f,
		transformer: t,
		publisher:   p,
		logger:      logger,
		metrics:     metrics,
		opts:        opts,
	}
}

// CheckReadiness returns nil once the pipeline has published at least one
// artifact, or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not published a forecast yet")
	}
	return nil
}

// Run executes RunOnce immediately and then every interval until the context
// is cancelled. Failed runs are logged and retried on the next tick.
func (p *Pipeline) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("run interval must be positive, got %s", interval)
	}
	p.logger.Info("scheduler started", "interval", interval)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	ticker := p.opts.Clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			p.logger.Info("scheduler stopping", "reason", ctx.Err())
			return nil
		}

		if _, err := p.RunOnce(ctx); errors.Is(err, domain.ErrRunInProgress) {
			p.logger.Info("scheduled run skipped", "reason", err)
		}

		select {
		case <-ctx.Done():
			p.logger.Info("scheduler stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
		}
	}
}

// RunOnce performs one complete fetch-transform-publish run. It returns
// domain.ErrRunInProgress without doing any work when another run holds the
// in-process or distributed lock.
func (p *Pipeline) RunOnce(ctx context.Context) (domain.RunRecord, error) {
	if !p.mu.TryLock() {
		p.metrics.RunsTotal.WithLabelValues(domain.OutcomeSkipped).Inc()
		return domain.RunRecord{Outcome: domain.OutcomeSkipped}, domain.ErrRunInProgress
	}
	defer p.mu.Unlock()

	if p.opts.Locker != nil {
		unlock, acquired, err := p.opts.Locker.TryLock(ctx)
		if err != nil {
			p.metrics.RunsTotal.WithLabelValues(domain.OutcomeError).Inc()
			p.logger.Error("acquire run lock failed", "error", err)
			return domain.RunRecord{Outcome: domain.OutcomeError, Error: err.Error()}, fmt.Errorf("acquire run lock: %w", err)
		}
		if !acquired {
			p.metrics.RunsTotal.WithLabelValues(domain.OutcomeSkipped).Inc()
			return domain.RunRecord{Outcome: domain.OutcomeSkipped}, domain.ErrRunInProgress
		}
		defer unlock()
	}

	start := time.Now()
	rec := domain.RunRecord{ID: uuid.NewString(), StartedAt: domain.Now()}
	logger := p.logger.With("run_id", rec.ID)

	runCtx := ctx
	if p.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.opts.RunTimeout)
		defer cancel()
	}

	err := p.execute(runCtx, &rec, logger)

	rec.FinishedAt = domain.Now()
	rec.Outcome = p.classify(err)
	if err != nil {
		rec.Error = err.Error()
	}

	p.metrics.RunsTotal.WithLabelValues(rec.Outcome).Inc()
	p.metrics.RunDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		logger.Error("forecast run failed", "outcome", rec.Outcome, "error", err)
	} else {
		p.ready.Store(true)
		p.metrics.LastSuccess.Set(float64(rec.FinishedAt.Unix()))
		logger.Info("forecast published",
			"path", rec.ArtifactPath,
			"features", rec.FeatureCount,
			"input", rec.InputCount,
			"observation_time", rec.ObservationTime,
			"forecast_time", rec.ForecastTime,
		)
	}

	p.record(ctx, rec, logger)
	return rec, err
}

// execute runs the three stages in order and fills rec as they complete.
func (p *Pipeline) execute(ctx context.Context, rec *domain.RunRecord, logger *slog.Logger) error {
	doc, err := p.fetcher.Fetch(ctx)
	if err != nil {
		return err
	}
	rec.InputCount = len(doc.Coordinates)
	rec.ObservationTime = domain.Deref(doc.ObservationTime)
	rec.ForecastTime = domain.Deref(doc.ForecastTime)
	p.metrics.InputCoordinates.Set(float64(rec.InputCount))

	fc, stats, err := p.transformer.Transform(ctx, doc)
	if err != nil {
		return err
	}
	rec.FeatureCount = stats.Output
	p.metrics.FeaturesPublished.Set(float64(stats.Output))
	p.metrics.FeaturesFiltered.Set(float64(stats.Filtered))
	logger.Debug("forecast transformed", "input", stats.Input, "output", stats.Output, "filtered", stats.Filtered)

	body, err := domain.MarshalCollection(fc, p.opts.Indent)
	if err != nil {
		return fmt.Errorf("encode feature collection: %w", err)
	}

	artifact, err := p.publisher.Publish(ctx, body)
	if err != nil {
		return err
	}
	rec.ArtifactPath = artifact.Path
	rec.ArtifactURL = artifact.URL

	p.notify(ctx, *rec, logger)
	return nil
}

// notify sends the published event. Failures are logged only; the artifact
// is already live.
func (p *Pipeline) notify(ctx context.Context, rec domain.RunRecord, logger *slog.Logger) {
	if p.opts.Notifier == nil {
		return
	}
	event := domain.PublishedEvent{
		RunID:           rec.ID,
		Path:            rec.ArtifactPath,
		URL:             rec.ArtifactURL,
		FeatureCount:    rec.FeatureCount,
		ObservationTime: rec.ObservationTime,
		ForecastTime:    rec.ForecastTime,
		PublishedAt:     domain.Now(),
	}
	if err := p.opts.Notifier.NotifyPublished(ctx, event); err != nil {
		logger.Warn("publish notification failed", "error", err)
	}
}

// record persists rec even when the run context was cancelled.
func (p *Pipeline) record(ctx context.Context, rec domain.RunRecord, logger *slog.Logger) {
	if p.opts.Recorder == nil {
		return
	}
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := p.opts.Recorder.RecordRun(recCtx, rec); err != nil {
		logger.Warn("record run failed", "error", err)
	}
}

func (p *Pipeline) classify(err error) string {
	if err == nil {
		return domain.OutcomeSuccess
	}

	var fetchErr *domain.FetchError
	var malformedErr *domain.MalformedInputError
	var publishErr *domain.PublishError

	switch {
	case errors.As(err, &fetchErr):
		p.metrics.FetchErrors.WithLabelValues(string(fetchErr.Kind)).Inc()
		return domain.OutcomeFetchError
	case errors.As(err, &malformedErr):
		return domain.OutcomeMalformedInput
	case errors.As(err, &publishErr):
		return domain.OutcomePublishError
	default:
		return domain.OutcomeError
	}
}
