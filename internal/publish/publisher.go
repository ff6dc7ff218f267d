package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/aurora-forecast-etl/internal/domain"
	"github.com/couchcryptid/aurora-forecast-etl/internal/observability"
)

// Mode selects how an existing artifact is replaced.
type Mode string

const (
	// ModeReplace overwrites the artifact with a single upsert upload.
	ModeReplace Mode = "replace"
	// ModeDeleteThenUpload removes the previous artifact first, then uploads.
	// A failed removal is logged and does not abort the publish.
	ModeDeleteThenUpload Mode = "delete-then-upload"
)

// ParseMode validates a PUBLISH_MODE value.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeReplace, ModeDeleteThenUpload:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown publish mode %q", s)
	}
}

// UploadOptions carries the object metadata for an upload.
type UploadOptions struct {
	ContentType  string
	CacheControl string // max-age in seconds
	Upsert       bool
}

// ObjectStore is the storage backend an artifact is published to.
type ObjectStore interface {
	// Remove deletes the object at path. It returns domain.ErrObjectNotFound
	// when nothing was stored there.
	Remove(ctx context.Context, path string) error
	// Upload writes body to path. Without Upsert it fails with
	// domain.ErrObjectExists when the path is occupied.
	Upload(ctx context.Context, path string, body []byte, opts UploadOptions) error
	// PublicURL returns the URL consumers fetch the object from.
	PublicURL(path string) string
}

// Options configures a Publisher.
type Options struct {
	Path         string
	CacheControl int
	Mode         Mode
	Timeout      time.Duration
}

// Publisher writes the serialized collection to a fixed object path.
type Publisher struct {
	store   ObjectStore
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewPublisher creates a Publisher. An empty mode means ModeReplace.
func NewPublisher(store ObjectStore, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Publisher {
	if opts.Mode == "" {
		opts.Mode = ModeReplace
	}
	return &Publisher{store: store, opts: opts, logger: logger, metrics: metrics}
}

// Publish stores body at the configured path and returns its description.
// Upload failures are returned as *domain.PublishError; publishing is never
// retried within a run.
func (p *Publisher) Publish(ctx context.Context, body []byte) (domain.Artifact, error) {
	start := time.Now()
	defer func() { p.metrics.PublishDuration.Observe(time.Since(start).Seconds()) }()

	path := p.opts.Path
	upsert := true

	if p.opts.Mode == ModeDeleteThenUpload {
		// A failed removal may leave the old object in place; fall back to
		// overwriting it so the run can still succeed.
		upsert = !p.removePrevious(ctx, path)
	}

	uploadCtx, cancel := p.withTimeout(ctx)
	defer cancel()

	err := p.store.Upload(uploadCtx, path, body, UploadOptions{
		ContentType:  domain.ContentTypeGeoJSON,
		CacheControl: strconv.Itoa(p.opts.CacheControl),
		Upsert:       upsert,
	})
	if err != nil {
		return domain.Artifact{}, &domain.PublishError{Path: path, Op: "upload", Err: err}
	}

	p.metrics.ArtifactBytes.Set(float64(len(body)))
	return domain.Artifact{
		Path:        path,
		URL:         p.store.PublicURL(path),
		Size:        len(body),
		ContentType: domain.ContentTypeGeoJSON,
	}, nil
}

// removePrevious deletes the current artifact and reports whether the path
// is known to be free.
func (p *Publisher) removePrevious(ctx context.Context, path string) bool {
	removeCtx, cancel := p.withTimeout(ctx)
	defer cancel()

	err := p.store.Remove(removeCtx, path)
	switch {
	case err == nil:
		p.logger.Debug("previous artifact removed", "path", path)
		return true
	case errors.Is(err, domain.ErrObjectNotFound):
		p.logger.Info("no previous artifact to remove", "path", path)
		return true
	default:
		p.logger.Warn("remove previous artifact failed, uploading anyway", "path", path, "error", err)
		p.metrics.DeleteFailures.Inc()
		return false
	}
}

func (p *Publisher) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.opts.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.opts.Timeout)
}
