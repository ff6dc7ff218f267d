package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio/v2"

	"github.com/couchcryptid/aurora-forecast-etl/internal/domain"
	"github.com/couchcryptid/aurora-forecast-etl/internal/publish"
)

const metaSuffix = ".meta.json"

// Store publishes artifacts to a local directory, for development and for
// deployments that sit behind a static file server. Writes go to a temporary
// file that is renamed over the target, so readers see either the old or the
// new artifact. It implements publish.ObjectStore.
type Store struct {
	root      string
	publicURL string
}

// meta is the sidecar holding object metadata next to the artifact.
type meta struct {
	ContentType  string `json:"content_type"`
	CacheControl string `json:"cache_control"`
	UpdatedAt    int64  `json:"updated_at"` // unix milliseconds
}

// New creates a Store rooted at dir, creating the directory if needed.
func New(dir, publicBaseURL string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &Store{root: dir, publicURL: strings.TrimRight(publicBaseURL, "/")}, nil
}

// Remove deletes the artifact and its metadata.
func (s *Store) Remove(_ context.Context, path string) error {
	target, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.ErrObjectNotFound
		}
		return fmt.Errorf("remove %s: %w", path, err)
	}
	if err := os.Remove(target + metaSuffix); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s metadata: %w", path, err)
	}
	return nil
}

// Upload writes body to path.
func (s *Store) Upload(ctx context.Context, path string, body []byte, opts publish.UploadOptions) error {
	target, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if !opts.Upsert {
		if _, err := os.Stat(target); err == nil {
			return domain.ErrObjectExists
		}
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}

	m, err := json.Marshal(meta{
		ContentType:  opts.ContentType,
		CacheControl: opts.CacheControl,
		UpdatedAt:    domain.Now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	// The body lands first so a failed write never pairs new metadata with
	// the previous artifact.
	if err := writeAtomic(target, body); err != nil {
		return err
	}
	return writeAtomic(target+metaSuffix, m)
}

// ReadObject returns the artifact at path with its metadata.
func (s *Store) ReadObject(_ context.Context, path string) (domain.StoredObject, error) {
	target, err := s.resolve(path)
	if err != nil {
		return domain.StoredObject{}, err
	}
	body, err := os.ReadFile(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.StoredObject{}, domain.ErrObjectNotFound
		}
		return domain.StoredObject{}, fmt.Errorf("read %s: %w", path, err)
	}

	obj := domain.StoredObject{Body: body, ContentType: domain.ContentTypeGeoJSON}
	if raw, err := os.ReadFile(target + metaSuffix); err == nil {
		var m meta
		if json.Unmarshal(raw, &m) == nil {
			obj.ContentType = m.ContentType
			obj.CacheControl = m.CacheControl
			obj.UpdatedAt = unixMilli(m.UpdatedAt)
		}
	}
	return obj, nil
}

// PublicURL returns the service URL that serves the artifact at path.
func (s *Store) PublicURL(path string) string {
	return s.publicURL + "/v1/artifacts/" + path
}

// resolve maps an object path to a file under root, rejecting paths that
// would escape it.
func (s *Store) resolve(path string) (string, error) {
	clean := filepath.FromSlash(path)
	if !filepath.IsLocal(clean) || strings.HasSuffix(clean, metaSuffix) {
		return "", fmt.Errorf("invalid object path %q", path)
	}
	return filepath.Join(s.root, clean), nil
}

func writeAtomic(target string, data []byte) error {
	if err := renameio.WriteFile(target, data, 0o644, renameio.WithStaticPermissions(0o644)); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(target), err)
	}
	return nil
}

func unixMilli(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
