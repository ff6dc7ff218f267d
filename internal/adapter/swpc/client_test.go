package swpc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/aurora-forecast-etl/internal/domain"
	"github.com/couchcryptid/aurora-forecast-etl/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"

	ovationBody = `{
		"Observation Time": "2024-05-10T17:05:00Z",
		"Forecast Time": "2024-05-10T17:40:00Z",
		"Data Format": "[Longitude, Latitude, Aurora]",
		"coordinates": [[0, -90, 4], [0, -89, 0], [18, 69, 12]]
	}`
)

func testClient(baseURL string, retries int) *Client {
	return &Client{
		ovationURL:     baseURL + "/json/ovation_aurora_latest.json",
		kpURL:          baseURL + "/products/noaa-planetary-k-index.json",
		solarWindURL:   baseURL + "/products/solar-wind/plasma-7-day.json",
		httpClient:     &http.Client{Timeout: 5 * time.Second},
		retries:        retries,
		initialBackoff: time.Millisecond,
		maxBackoff:     4 * time.Millisecond,
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics:        observability.NewMetricsForTesting(),
	}
}

func TestClient_Fetch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/json/ovation_aurora_latest.json", r.URL.Path)
		assert.Equal(t, contentTypeJSON, r.Header.Get("Accept"))
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = io.WriteString(w, ovationBody)
	}))
	defer srv.Close()

	doc, err := testClient(srv.URL, 0).Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "2024-05-10T17:05:00Z", domain.Deref(doc.ObservationTime))
	assert.Equal(t, "2024-05-10T17:40:00Z", domain.Deref(doc.ForecastTime))
	assert.Len(t, doc.Coordinates, 3)
}

func TestClient_Fetch_StatusError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 3).Fetch(context.Background())
	require.Error(t, err)

	var fetchErr *domain.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, domain.FetchStatus, fetchErr.Kind)
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
	assert.Equal(t, 1, fetchErr.Attempts)
	assert.Equal(t, int32(1), calls.Load(), "4xx is not retried")
}

func TestClient_Fetch_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, ovationBody)
	}))
	defer srv.Close()

	c := testClient(srv.URL, 3)
	doc, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, doc.Coordinates, 3)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 2.0, testutil.ToFloat64(c.metrics.FetchRetries))
}

func TestClient_Fetch_RetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 2).Fetch(context.Background())

	var fetchErr *domain.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, domain.FetchStatus, fetchErr.Kind)
	assert.Equal(t, 3, fetchErr.Attempts)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_Fetch_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	baseURL := srv.URL
	srv.Close()

	_, err := testClient(baseURL, 1).Fetch(context.Background())

	var fetchErr *domain.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, domain.FetchNetwork, fetchErr.Kind)
	assert.Equal(t, 2, fetchErr.Attempts)
}

func TestClient_Fetch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	c := testClient(srv.URL, 0)
	c.httpClient.Timeout = 20 * time.Millisecond

	_, err := c.Fetch(context.Background())

	var fetchErr *domain.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, domain.FetchNetwork, fetchErr.Kind)
}

func TestClient_Fetch_InvalidJSON(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, `<html>maintenance</html>`)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 3).Fetch(context.Background())

	var fetchErr *domain.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, domain.FetchDecode, fetchErr.Kind)
	assert.True(t, errors.Is(err, domain.ErrInvalidJSON))
	assert.Equal(t, int32(1), calls.Load(), "decode failures are not retried")
}

func TestClient_Fetch_MalformedDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"Observation Time": "2024-05-10T17:05:00Z"}`)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 0).Fetch(context.Background())

	var malformedErr *domain.MalformedInputError
	require.ErrorAs(t, err, &malformedErr)
	assert.Equal(t, "coordinates", malformedErr.Path)

	var fetchErr *domain.FetchError
	assert.False(t, errors.As(err, &fetchErr))
}

func TestClient_Fetch_ContextCancelledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := testClient(srv.URL, 5)
	c.initialBackoff = time.Hour
	c.maxBackoff = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Fetch(ctx)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		err  *domain.FetchError
		want bool
	}{
		{&domain.FetchError{Kind: domain.FetchNetwork}, true},
		{&domain.FetchError{Kind: domain.FetchStatus, StatusCode: 500}, true},
		{&domain.FetchError{Kind: domain.FetchStatus, StatusCode: 503}, true},
		{&domain.FetchError{Kind: domain.FetchStatus, StatusCode: 429}, true},
		{&domain.FetchError{Kind: domain.FetchStatus, StatusCode: 404}, false},
		{&domain.FetchError{Kind: domain.FetchStatus, StatusCode: 403}, false},
		{&domain.FetchError{Kind: domain.FetchDecode}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, retryable(tt.err), "%s %d", tt.err.Kind, tt.err.StatusCode)
	}
}
