package domain

import "time"

// Run outcomes recorded in the run log and the runs metric.
const (
	OutcomeSuccess        = "success"
	OutcomeFetchError     = "fetch_error"
	OutcomeMalformedInput = "malformed_input"
	OutcomePublishError   = "publish_error"
	OutcomeSkipped        = "skipped"
	OutcomeError          = "error"
)

// Artifact describes a published GeoJSON object.
type Artifact struct {
	Path        string `json:"path"`
	URL         string `json:"url"`
	Size        int    `json:"size"`
	ContentType string `json:"content_type"`
}

// StoredObject is an object read back from a store that can serve artifacts.
type StoredObject struct {
	Body         []byte
	ContentType  string
	CacheControl string // max-age in seconds
	UpdatedAt    time.Time
}

// RunRecord is the log entry of one pipeline run.
type RunRecord struct {
	ID              string    `json:"id"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	Outcome         string    `json:"outcome"`
	InputCount      int       `json:"input_count"`
	FeatureCount    int       `json:"feature_count"`
	ObservationTime string    `json:"observation_time,omitempty"`
	ForecastTime    string    `json:"forecast_time,omitempty"`
	ArtifactPath    string    `json:"artifact_path,omitempty"`
	ArtifactURL     string    `json:"artifact_url,omitempty"`
	Error           string    `json:"error,omitempty"`
}

// PublishedEvent announces a successfully published artifact to downstream
// subscribers.
type PublishedEvent struct {
	RunID           string    `json:"run_id"`
	Path            string    `json:"path"`
	URL             string    `json:"url"`
	FeatureCount    int       `json:"feature_count"`
	ObservationTime string    `json:"observation_time,omitempty"`
	ForecastTime    string    `json:"forecast_time,omitempty"`
	PublishedAt     time.Time `json:"published_at"`
}

// Deref returns the string behind p, or "" when p is nil.
func Deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
