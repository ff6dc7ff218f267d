package domain

import (
	"context"
	"time"
)

// Position is a WGS-84 coordinate supplied by a dashboard client.
type Position struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// KpReading is the latest planetary K-index value.
type KpReading struct {
	TimeTag string  `json:"time_tag"`
	Kp      float64 `json:"kp"`
}

// SolarWindReading is the latest real-time solar wind plasma speed.
type SolarWindReading struct {
	TimeTag  string  `json:"time_tag"`
	SpeedKmS float64 `json:"speed_km_s"`
}

// CloudCover is the current total cloud cover at a position.
type CloudCover struct {
	Position Position `json:"position"`
	Time     string   `json:"time"`
	Percent  float64  `json:"percent"`
}

// SpaceWeatherSnapshot is the dashboard view. A nil field means its upstream
// source failed; the other fields are still valid.
type SpaceWeatherSnapshot struct {
	KpIndex    *KpReading        `json:"kp_index"`
	SolarWind  *SolarWindReading `json:"solar_wind"`
	CloudCover *CloudCover       `json:"cloud_cover,omitempty"`
	FetchedAt  time.Time         `json:"fetched_at"`
}

// CloudCoverProvider looks up the current cloud cover at a position.
type CloudCoverProvider interface {
	CurrentCloudCover(ctx context.Context, pos Position) (CloudCover, error)
}
