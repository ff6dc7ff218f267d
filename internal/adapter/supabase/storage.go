package supabase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	storage_go "github.com/supabase-community/storage-go"

	"github.com/couchcryptid/aurora-forecast-etl/internal/domain"
	"github.com/couchcryptid/aurora-forecast-etl/internal/publish"
)

// Storage publishes artifacts to one Supabase Storage bucket.
// It implements publish.ObjectStore.
type Storage struct {
	endpoint   string
	serviceKey string
	bucket     string
	timeout    time.Duration
}

// NewStorage creates a storage client for bucket on the project at baseURL.
func NewStorage(baseURL, serviceKey, bucket string, timeout time.Duration) *Storage {
	return &Storage{
		endpoint:   strings.TrimRight(baseURL, "/") + "/storage/v1",
		serviceKey: serviceKey,
		bucket:     bucket,
		timeout:    timeout,
	}
}

// client returns a fresh SDK client. Upload options are stored as headers on
// the client itself, so one client per call keeps them from leaking into the
// next request.
func (s *Storage) client() *storage_go.Client {
	return storage_go.NewClient(s.endpoint, s.serviceKey, map[string]string{"apikey": s.serviceKey})
}

// Remove deletes the object at path. The API answers a bulk delete with the
// list of removed objects; an empty list means nothing was stored there.
func (s *Storage) Remove(ctx context.Context, path string) error {
	removed, err := call(ctx, s.timeout, func() ([]storage_go.FileUploadResponse, error) {
		return s.client().RemoveFile(s.bucket, []string{path})
	})
	if err != nil {
		return fmt.Errorf("storage remove %s: %w", path, err)
	}
	if len(removed) == 0 {
		return domain.ErrObjectNotFound
	}
	return nil
}

// Upload stores body at path with the given metadata. CacheControl is passed
// as seconds; the API turns it into a max-age directive.
func (s *Storage) Upload(ctx context.Context, path string, body []byte, opts publish.UploadOptions) error {
	fileOpts := storage_go.FileOptions{
		ContentType: &opts.ContentType,
		Upsert:      &opts.Upsert,
	}
	if opts.CacheControl != "" {
		fileOpts.CacheControl = &opts.CacheControl
	}

	_, err := call(ctx, s.timeout, func() (storage_go.FileUploadResponse, error) {
		return s.client().UploadFile(s.bucket, path, bytes.NewReader(body), fileOpts)
	})
	if err == nil {
		return nil
	}
	if conflict(err) && !opts.Upsert {
		return fmt.Errorf("%w: %w", domain.ErrObjectExists, err)
	}
	return fmt.Errorf("storage upload %s: %w", path, err)
}

// PublicURL returns the public-bucket download URL of path.
func (s *Storage) PublicURL(path string) string {
	return s.client().GetPublicUrl(s.bucket, path).SignedURL
}

// conflict reports a duplicate object. Older Storage versions answer 400
// with the duplicate reported only in the body.
func conflict(err error) bool {
	var se *storage_go.StorageError
	if !errors.As(err, &se) {
		return false
	}
	return se.Status == http.StatusConflict || strings.Contains(strings.ToLower(se.Message), "already exists")
}

type result[T any] struct {
	val T
	err error
}

// call runs fn, giving up when ctx is done or timeout elapses. The SDK takes
// no context, so an abandoned request finishes in the background.
func call[T any](ctx context.Context, timeout time.Duration, fn func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	done := make(chan result[T], 1)
	go func() {
		v, err := fn()
		done <- result[T]{val: v, err: err}
	}()

	select {
	case r := <-done:
		return r.val, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
