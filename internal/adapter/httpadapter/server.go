package httpadapter

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/aurora-forecast-etl/internal/domain"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 200

	defaultWriteTimeout = 3 * time.Minute
	writeTimeoutMargin  = 30 * time.Second
)

// Runner triggers a forecast run on demand.
type Runner interface {
	RunOnce(ctx context.Context) (domain.RunRecord, error)
}

// RunLog lists recent runs, newest first.
type RunLog interface {
	RecentRuns(ctx context.Context, limit int) ([]domain.RunRecord, error)
}

// ArtifactReader reads a published artifact back from the object store.
type ArtifactReader interface {
	ReadObject(ctx context.Context, path string) (domain.StoredObject, error)
}

// SpaceWeather builds the dashboard snapshot for an optional viewer position.
type SpaceWeather interface {
	Snapshot(ctx context.Context, pos *domain.Position) domain.SpaceWeatherSnapshot
}

// Options wires the optional API routes. A nil field leaves its route unregistered.
type Options struct {
	Runner       Runner
	RunLog       RunLog
	Artifacts    ArtifactReader
	SpaceWeather SpaceWeather

	// RunTimeout bounds a manual run. The write timeout is derived from it so
	// POST /v1/runs can always answer.
	RunTimeout time.Duration
}

// Server exposes health, readiness, metrics, and the forecast API.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	opts       Options
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and the
// /v1 routes enabled by opts.
func NewServer(addr string, ready sharedobs.ReadinessChecker, logger *slog.Logger, opts Options) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:        addr,
			Handler:     mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: writeTimeout(opts.RunTimeout),
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
		opts:   opts,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	if opts.Runner != nil {
		mux.HandleFunc("POST /v1/runs", s.handleTriggerRun)
	}
	if opts.RunLog != nil {
		mux.HandleFunc("GET /v1/runs", s.handleListRuns)
	}
	if opts.Artifacts != nil {
		mux.HandleFunc("GET /v1/artifacts/{path...}", s.handleArtifact)
	}
	if opts.SpaceWeather != nil {
		mux.HandleFunc("GET /v1/space-weather", s.handleSpaceWeather)
	}

	return s
}

func writeTimeout(runTimeout time.Duration) time.Duration {
	if runTimeout <= 0 {
		return defaultWriteTimeout
	}
	return runTimeout + writeTimeoutMargin
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type runResponse struct {
	Message  string `json:"message"`
	Path     string `json:"path"`
	URL      string `json:"url"`
	RunID    string `json:"run_id"`
	Features int    `json:"features"`
}

type errorResponse struct {
	Error string `json:"error"`
	RunID string `json:"run_id,omitempty"`
}

func (s *Server) handleTriggerRun(w http.ResponseWriter, r *http.Request) {
	// Runs to completion even if the client disconnects.
	rec, err := s.opts.Runner.RunOnce(context.WithoutCancel(r.Context()))
	switch {
	case errors.Is(err, domain.ErrRunInProgress):
		sharedobs.WriteJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case err != nil:
		sharedobs.WriteJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error(), RunID: rec.ID})
	default:
		sharedobs.WriteJSON(w, http.StatusCreated, runResponse{
			Message:  "Optimized Aurora oval data inserted successfully",
			Path:     rec.ArtifactPath,
			URL:      rec.ArtifactURL,
			RunID:    rec.ID,
			Features: rec.FeatureCount,
		})
	}
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxRunsLimit {
			sharedobs.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be an integer between 1 and " + strconv.Itoa(maxRunsLimit)})
			return
		}
		limit = n
	}

	runs, err := s.opts.RunLog.RecentRuns(r.Context(), limit)
	if err != nil {
		s.logger.Error("list runs failed", "error", err)
		sharedobs.WriteJSON(w, http.StatusInternalServerError, errorResponse{Error: "list runs failed"})
		return
	}
	if runs == nil {
		runs = []domain.RunRecord{}
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	path := r.PathValue("path")
	obj, err := s.opts.Artifacts.ReadObject(r.Context(), path)
	if errors.Is(err, domain.ErrObjectNotFound) {
		sharedobs.WriteJSON(w, http.StatusNotFound, errorResponse{Error: "artifact not found"})
		return
	}
	if err != nil {
		s.logger.Error("read artifact failed", "path", path, "error", err)
		sharedobs.WriteJSON(w, http.StatusInternalServerError, errorResponse{Error: "read artifact failed"})
		return
	}

	contentType := obj.ContentType
	if contentType == "" {
		contentType = domain.ContentTypeGeoJSON
	}
	w.Header().Set("Content-Type", contentType)
	if obj.CacheControl != "" {
		w.Header().Set("Cache-Control", "public, max-age="+obj.CacheControl)
	}
	if !obj.UpdatedAt.IsZero() {
		w.Header().Set("Last-Modified", obj.UpdatedAt.UTC().Format(http.TimeFormat))
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(obj.Body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(obj.Body)
}

func (s *Server) handleSpaceWeather(w http.ResponseWriter, r *http.Request) {
	pos, err := parsePosition(r)
	if err != nil {
		sharedobs.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()
	sharedobs.WriteJSON(w, http.StatusOK, s.opts.SpaceWeather.Snapshot(ctx, pos))
}

// parsePosition reads the optional lat/lon query pair. Both or neither must be given.
func parsePosition(r *http.Request) (*domain.Position, error) {
	q := r.URL.Query()
	rawLat, rawLon := q.Get("lat"), q.Get("lon")
	if rawLat == "" && rawLon == "" {
		return nil, nil
	}
	if rawLat == "" || rawLon == "" {
		return nil, errors.New("lat and lon must be given together")
	}

	lat, err := strconv.ParseFloat(rawLat, 64)
	if err != nil || math.IsNaN(lat) || lat < -90 || lat > 90 {
		return nil, errors.New("lat must be a number between -90 and 90")
	}
	lon, err := strconv.ParseFloat(rawLon, 64)
	if err != nil || math.IsNaN(lon) || lon < -180 || lon > 180 {
		return nil, errors.New("lon must be a number between -180 and 180")
	}
	return &domain.Position{Lat: lat, Lon: lon}, nil
}
