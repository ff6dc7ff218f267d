package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/aurora-forecast-etl/internal/domain"
	"github.com/couchcryptid/aurora-forecast-etl/internal/publish"
	goredis "github.com/go-redis/redis/v8"
)

// Hash fields of a stored artifact.
const (
	fieldBody         = "body"
	fieldContentType  = "content_type"
	fieldCacheControl = "cache_control"
	fieldUpdatedAt    = "updated_at"
)

// createScript writes the artifact hash only when the key is free, so a
// non-upsert upload never clobbers a concurrent writer.
var createScript = goredis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	return 0
end
redis.call("HSET", KEYS[1], "body", ARGV[1], "content_type", ARGV[2], "cache_control", ARGV[3], "updated_at", ARGV[4])
return 1
`)

// Store keeps published artifacts as Redis hashes, one key per object path.
// A single HSET replaces all fields atomically, so readers never observe a
// missing artifact during a replace. It implements publish.ObjectStore.
type Store struct {
	client    *goredis.Client
	keyPrefix string
	publicURL string
}

// NewStore creates a Store. publicBaseURL is the address of the service that
// serves artifacts back over HTTP.
func NewStore(client *goredis.Client, keyPrefix, publicBaseURL string) *Store {
	return &Store{
		client:    client,
		keyPrefix: keyPrefix,
		publicURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// Ping checks that the server is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Remove deletes the artifact at path.
func (s *Store) Remove(ctx context.Context, path string) error {
	n, err := s.client.Del(ctx, s.key(path)).Result()
	if err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	if n == 0 {
		return domain.ErrObjectNotFound
	}
	return nil
}

// Upload stores body and its metadata at path.
func (s *Store) Upload(ctx context.Context, path string, body []byte, opts publish.UploadOptions) error {
	updatedAt := strconv.FormatInt(domain.Now().UnixMilli(), 10)

	if opts.Upsert {
		err := s.client.HSet(ctx, s.key(path),
			fieldBody, body,
			fieldContentType, opts.ContentType,
			fieldCacheControl, opts.CacheControl,
			fieldUpdatedAt, updatedAt,
		).Err()
		if err != nil {
			return fmt.Errorf("redis hset: %w", err)
		}
		return nil
	}

	created, err := createScript.Run(ctx, s.client, []string{s.key(path)}, body, opts.ContentType, opts.CacheControl, updatedAt).Int()
	if err != nil {
		return fmt.Errorf("redis create: %w", err)
	}
	if created == 0 {
		return domain.ErrObjectExists
	}
	return nil
}

// ReadObject returns the artifact stored at path.
func (s *Store) ReadObject(ctx context.Context, path string) (domain.StoredObject, error) {
	fields, err := s.client.HGetAll(ctx, s.key(path)).Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return domain.StoredObject{}, fmt.Errorf("redis hgetall: %w", err)
	}
	body, ok := fields[fieldBody]
	if !ok {
		return domain.StoredObject{}, domain.ErrObjectNotFound
	}

	obj := domain.StoredObject{
		Body:         []byte(body),
		ContentType:  fields[fieldContentType],
		CacheControl: fields[fieldCacheControl],
	}
	if ms, err := strconv.ParseInt(fields[fieldUpdatedAt], 10, 64); err == nil {
		obj.UpdatedAt = time.UnixMilli(ms).UTC()
	}
	return obj, nil
}

// PublicURL returns the service URL that serves the artifact at path.
func (s *Store) PublicURL(path string) string {
	return s.publicURL + "/v1/artifacts/" + path
}

func (s *Store) key(path string) string {
	return s.keyPrefix + path
}
