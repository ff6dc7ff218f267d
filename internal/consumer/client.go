package consumer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/aurora-forecast-etl/internal/domain"
	"github.com/jonboulle/clockwork"
)

const maxArtifactBytes = 64 << 20

// Result is the artifact a Get call produced.
type Result struct {
	Collection domain.FeatureCollection
	Body       []byte
	FetchedAt  time.Time
	// FromCache is true when the persisted copy was served without a download.
	FromCache bool
	// RefreshErr is set when a due refresh failed and the cached copy was
	// served instead.
	RefreshErr error
}

// Client polls the published artifact with a staleness guard.
type Client struct {
	url        string
	store      StateStore
	interval   time.Duration
	httpClient *http.Client
	clock      clockwork.Clock
	logger     *slog.Logger
}

// NewClient creates a Client for the artifact at url. A non-positive interval
// means DefaultInterval.
func NewClient(url string, store StateStore, interval time.Duration, logger *slog.Logger) *Client {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Client{
		url:        url,
		store:      store,
		interval:   interval,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		clock:      clockwork.NewRealClock(),
		logger:     logger,
	}
}

// Get returns the current forecast collection. It downloads the artifact only
// when the persisted copy is stale or missing. If a due download fails and a
// persisted copy exists, that copy is returned with RefreshErr set; the last
// fetch time is only advanced by a successful download.
func (c *Client) Get(ctx context.Context) (Result, error) {
	st, found, err := c.store.Load(ctx, c.url)
	if err != nil {
		c.logger.Warn("load consumer state failed, refetching", "url", c.url, "error", err)
		found = false
	}

	now := c.clock.Now()
	if found && !IsStale(st.LastFetchedAt, now, c.interval) {
		if res, err := cachedResult(st); err == nil {
			return res, nil
		}
		c.logger.Warn("cached artifact unreadable, refetching", "url", c.url)
	}

	body, err := c.download(ctx)
	if err == nil {
		var fc domain.FeatureCollection
		fc, err = domain.UnmarshalCollection(body)
		if err == nil {
			if saveErr := c.store.Save(ctx, c.url, State{LastFetchedAt: now, Body: body}); saveErr != nil {
				c.logger.Warn("save consumer state failed", "url", c.url, "error", saveErr)
			}
			return Result{Collection: fc, Body: body, FetchedAt: now}, nil
		}
		err = fmt.Errorf("decode artifact: %w", err)
	}

	if found {
		if res, cacheErr := cachedResult(st); cacheErr == nil {
			c.logger.Warn("refresh failed, serving cached artifact", "url", c.url, "error", err,
				"age", now.Sub(st.LastFetchedAt))
			res.RefreshErr = err
			return res, nil
		}
	}
	return Result{}, err
}

func cachedResult(st State) (Result, error) {
	fc, err := domain.UnmarshalCollection(st.Body)
	if err != nil {
		return Result{}, err
	}
	return Result{Collection: fc, Body: st.Body, FetchedAt: st.LastFetchedAt, FromCache: true}, nil
}

func (c *Client) download(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", domain.ContentTypeGeoJSON+", application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download artifact: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download artifact: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxArtifactBytes))
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return body, nil
}
