package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/aurora-forecast-etl/internal/domain"
)

// Client implements domain.CloudCoverProvider using the Open-Meteo forecast API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates an Open-Meteo client for the forecast endpoint at baseURL.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		logger:  logger,
	}
}

// CurrentCloudCover returns the current total cloud cover percentage at pos.
func (c *Client) CurrentCloudCover(ctx context.Context, pos domain.Position) (domain.CloudCover, error) {
	params := url.Values{
		"latitude":      {strconv.FormatFloat(pos.Lat, 'f', 4, 64)},
		"longitude":     {strconv.FormatFloat(pos.Lon, 'f', 4, 64)},
		"current":       {"cloud_cover"},
		"timezone":      {"GMT"},
		"forecast_days": {"1"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return domain.CloudCover{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.CloudCover{}, fmt.Errorf("cloud cover request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.CloudCover{}, fmt.Errorf("open-meteo API error: status %d: %s", resp.StatusCode, body)
	}

	var omResp response
	if err := json.NewDecoder(resp.Body).Decode(&omResp); err != nil {
		return domain.CloudCover{}, fmt.Errorf("decode response: %w", err)
	}
	if omResp.Current.CloudCover == nil {
		return domain.CloudCover{}, fmt.Errorf("open-meteo response has no current cloud_cover")
	}

	c.logger.Debug("cloud cover fetched", "lat", pos.Lat, "lon", pos.Lon, "percent", *omResp.Current.CloudCover)
	return domain.CloudCover{
		Position: pos,
		Time:     omResp.Current.Time,
		Percent:  *omResp.Current.CloudCover,
	}, nil
}

// Open-Meteo API response types.

type response struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Current   current `json:"current"`
}

type current struct {
	Time       string   `json:"time"`
	Interval   int      `json:"interval"`
	CloudCover *float64 `json:"cloud_cover"`
}
