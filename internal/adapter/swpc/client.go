package swpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/aurora-forecast-etl/internal/config"
	"github.com/couchcryptid/aurora-forecast-etl/internal/domain"
	"github.com/couchcryptid/aurora-forecast-etl/internal/observability"
	"github.com/couchcryptid/storm-data-shared/retry"
)

// maxBodyBytes caps a single upstream response. The OVATION grid is about 1 MB.
const maxBodyBytes = 32 << 20

const userAgent = "aurora-forecast-etl/1.0"

// Client reads the NOAA SWPC JSON products: the OVATION aurora grid, the
// planetary K-index, and real-time solar wind plasma.
// It implements pipeline.Fetcher.
type Client struct {
	ovationURL   string
	kpURL        string
	solarWindURL string
	httpClient   *http.Client
	retries      int

	// Exponential backoff between attempts: start at initialBackoff, double
	// each retry, cap at maxBackoff.
	initialBackoff time.Duration
	maxBackoff     time.Duration

	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewClient creates an SWPC client from the service configuration.
func NewClient(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		ovationURL:   cfg.OvationURL,
		kpURL:        cfg.KpIndexURL,
		solarWindURL: cfg.SolarWindURL,
		httpClient: &http.Client{
			Timeout: cfg.FetchTimeout,
		},
		retries:        cfg.FetchRetries,
		initialBackoff: 200 * time.Millisecond,
		maxBackoff:     5 * time.Second,
		logger:         logger,
		metrics:        metrics,
	}
}

// Fetch retrieves and parses the latest OVATION forecast document. Transport
// failures, non-2xx responses, and invalid JSON are returned as
// *domain.FetchError; a document with the wrong shape is returned as
// *domain.MalformedInputError.
func (c *Client) Fetch(ctx context.Context) (domain.RawForecastDocument, error) {
	body, attempts, err := c.get(ctx, c.ovationURL)
	if err != nil {
		return domain.RawForecastDocument{}, err
	}

	doc, err := domain.DecodeDocument(body)
	if errors.Is(err, domain.ErrInvalidJSON) {
		return domain.RawForecastDocument{}, &domain.FetchError{Kind: domain.FetchDecode, URL: c.ovationURL, Attempts: attempts, Err: err}
	}
	if err != nil {
		return domain.RawForecastDocument{}, err
	}

	c.logger.Debug("forecast fetched", "coordinates", len(doc.Coordinates), "bytes", len(body), "attempts", attempts)
	return doc, nil
}

// get performs a GET with bounded retries for transient failures. It returns
// the body and the number of attempts made.
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, int, error) {
	backoff := c.initialBackoff

	for attempt := 1; ; attempt++ {
		body, fetchErr := c.doRequest(ctx, rawURL)
		if fetchErr == nil {
			return body, attempt, nil
		}
		fetchErr.Attempts = attempt

		if attempt > c.retries || !retryable(fetchErr) || ctx.Err() != nil {
			return nil, attempt, fetchErr
		}

		c.logger.Warn("upstream request failed, retrying",
			"url", rawURL,
			"attempt", attempt,
			"backoff", backoff,
			"error", fetchErr.Err,
		)
		c.metrics.FetchRetries.Inc()

		if !retry.SleepWithContext(ctx, backoff) {
			return nil, attempt, fetchErr
		}
		backoff = retry.NextBackoff(backoff, c.maxBackoff)
	}
}

func (c *Client) doRequest(ctx context.Context, rawURL string) ([]byte, *domain.FetchError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &domain.FetchError{Kind: domain.FetchNetwork, URL: rawURL, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.FetchError{Kind: domain.FetchNetwork, URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &domain.FetchError{
			Kind:       domain.FetchStatus,
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status: %s", snippet),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, &domain.FetchError{Kind: domain.FetchNetwork, URL: rawURL, Err: fmt.Errorf("read body: %w", err)}
	}
	if len(body) > maxBodyBytes {
		return nil, &domain.FetchError{Kind: domain.FetchDecode, URL: rawURL, Err: fmt.Errorf("response exceeds %d bytes", maxBodyBytes)}
	}
	return body, nil
}

// retryable reports whether another attempt may succeed: transport errors,
// 5xx responses, and 429.
func retryable(err *domain.FetchError) bool {
	switch err.Kind {
	case domain.FetchNetwork:
		return true
	case domain.FetchStatus:
		return err.StatusCode >= 500 || err.StatusCode == http.StatusTooManyRequests
	default:
		return false
	}
}
