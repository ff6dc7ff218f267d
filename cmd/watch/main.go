// Command watch is a reference consumer of the published aurora forecast. It
// polls the artifact through the staleness guard, so the object store is hit at
// most once per interval no matter how often the loop wakes, and keeps the last
// copy in a SQLite file that survives restarts. With -state "" the copy is
// kept in memory for the life of the process.
//
// Usage:
//
//	ARTIFACT_URL=http://localhost:8080/v1/artifacts/aurora_forecast.geojson go run ./cmd/watch
//	go run ./cmd/watch -url https://<project>.supabase.co/storage/v1/object/public/geojsons/aurora_forecast.geojson -once
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/couchcryptid/aurora-forecast-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/aurora-forecast-etl/internal/consumer"
	"github.com/couchcryptid/aurora-forecast-etl/internal/domain"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/joho/godotenv"
)

func main() {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	url := flag.String("url", sharedcfg.EnvOrDefault("ARTIFACT_URL", "http://localhost:8080/v1/artifacts/aurora_forecast.geojson"), "published GeoJSON artifact URL")
	statePath := flag.String("state", sharedcfg.EnvOrDefault("CONSUMER_STATE_PATH", "data/consumer.db"), "SQLite file holding the last fetched copy; empty keeps it in memory")
	interval := flag.Duration("interval", consumer.DefaultInterval, "minimum time between downloads")
	poll := flag.Duration("poll", time.Minute, "how often to check for a due refresh")
	once := flag.Bool("once", false, "fetch (or serve from cache) once and exit")
	flag.Parse()

	logger := sharedobs.NewLogger(sharedcfg.EnvOrDefault("LOG_LEVEL", "info"), sharedcfg.EnvOrDefault("LOG_FORMAT", "text"))

	store, closeStore, err := openState(*statePath)
	if err != nil {
		logger.Error("failed to open state store", "path", *statePath, "error", err)
		os.Exit(1)
	}
	defer closeStore()
	if *statePath == "" {
		logger.Info("consumer state kept in memory")
	}

	client := consumer.NewClient(*url, store, *interval, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ok := check(ctx, client, logger)
	if *once {
		if !ok {
			closeStore()
			os.Exit(1)
		}
		return
	}

	ticker := time.NewTicker(*poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("watch stopped")
			return
		case <-ticker.C:
			check(ctx, client, logger)
		}
	}
}

// openState opens the SQLite state file at path, or an in-process store when
// path is empty.
func openState(path string) (consumer.StateStore, func(), error) {
	if path == "" {
		return consumer.NewMemoryStore(), func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create state dir: %w", err)
	}
	store, err := sqlite.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { _ = store.Close() }, nil
}

// check reads the forecast and logs a summary. It reports whether a
// collection was available.
func check(ctx context.Context, client *consumer.Client, logger *slog.Logger) bool {
	res, err := client.Get(ctx)
	if err != nil {
		logger.Error("forecast unavailable", "error", err)
		return false
	}
	if res.RefreshErr != nil {
		logger.Warn("refresh failed, serving cached forecast", "error", res.RefreshErr, "fetched_at", res.FetchedAt)
	}

	var observation, forecast string
	if len(res.Collection.Features) > 0 {
		props := res.Collection.Features[0].Properties
		observation, forecast = domain.Deref(props.ObservationTime), domain.Deref(props.ForecastTime)
	}
	peak, _ := res.Collection.MaxAurora()

	logger.Info("aurora forecast",
		"features", len(res.Collection.Features),
		"max_aurora", peak,
		"observation_time", observation,
		"forecast_time", forecast,
		"from_cache", res.FromCache,
		"fetched_at", res.FetchedAt,
	)
	return true
}
