package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/couchcryptid/aurora-forecast-etl/internal/adapter/filestore"
	"github.com/couchcryptid/aurora-forecast-etl/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/aurora-forecast-etl/internal/adapter/kafka"
	"github.com/couchcryptid/aurora-forecast-etl/internal/adapter/openmeteo"
	"github.com/couchcryptid/aurora-forecast-etl/internal/adapter/postgres"
	redisadapter "github.com/couchcryptid/aurora-forecast-etl/internal/adapter/redis"
	"github.com/couchcryptid/aurora-forecast-etl/internal/adapter/supabase"
	"github.com/couchcryptid/aurora-forecast-etl/internal/adapter/swpc"
	"github.com/couchcryptid/aurora-forecast-etl/internal/config"
	"github.com/couchcryptid/aurora-forecast-etl/internal/domain"
	"github.com/couchcryptid/aurora-forecast-etl/internal/observability"
	"github.com/couchcryptid/aurora-forecast-etl/internal/pipeline"
	"github.com/couchcryptid/aurora-forecast-etl/internal/publish"
	"github.com/couchcryptid/aurora-forecast-etl/internal/spaceweather"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	goredis "github.com/go-redis/redis/v8"
	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"
)

func main() {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	store, artifacts, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open object store", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	closers = append(closers, closeStore)

	mode, err := publish.ParseMode(cfg.PublishMode)
	if err != nil {
		logger.Error("invalid publish mode", "error", err)
		os.Exit(1)
	}
	publisher := publish.NewPublisher(store, publish.Options{
		Path:         cfg.ObjectPath,
		CacheControl: cfg.CacheControl,
		Mode:         mode,
		Timeout:      cfg.PublishTimeout,
	}, logger, metrics)

	opts := pipeline.Options{RunTimeout: cfg.RunTimeout}
	var runLog httpadapter.RunLog
	var dbReady sharedobs.ReadinessChecker

	// Run log and distributed lock (optional, via DATABASE_URL).
	if cfg.DatabaseURL != "" {
		db, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		closers = append(closers, db.Close)
		if err := db.Migrate(ctx); err != nil {
			logger.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
		opts.Locker, opts.Recorder, runLog, dbReady = db, db, db, db
		logger.Info("postgres run log enabled")
	} else {
		logger.Info("postgres run log disabled")
	}

	// Publish notifications (optional, via KAFKA_BROKERS).
	if len(cfg.KafkaBrokers) > 0 {
		writer := kafkaadapter.NewWriter(cfg, logger)
		closers = append(closers, func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		})
		opts.Notifier = writer
		logger.Info("kafka notifications enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		logger.Info("kafka notifications disabled")
	}

	swpcClient := swpc.NewClient(cfg, logger, metrics)
	transformer := pipeline.NewTransformer(domain.TransformOptions{
		ExcludeZero:  cfg.ExcludeZero,
		IncludeTimes: cfg.IncludeTimes,
	})
	p := pipeline.New(swpcClient, transformer, publisher, logger, metrics, opts)

	clouds := openmeteo.NewCachedClient(
		openmeteo.NewClient(cfg.OpenMeteoURL, cfg.FetchTimeout, logger),
		cfg.CloudCacheSize, cfg.SpaceWeatherTTL, clockwork.NewRealClock(), metrics,
	)
	weather := spaceweather.NewService(swpcClient, swpcClient, clouds, cfg.SpaceWeatherTTL, clockwork.NewRealClock(), logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.AllReady(p, dbReady), logger, httpadapter.Options{
		Runner:       p,
		RunLog:       runLog,
		Artifacts:    artifacts,
		SpaceWeather: weather,
		RunTimeout:   cfg.RunTimeout,
	})

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start scheduler. With RUN_INTERVAL=0 runs are only triggered through POST /v1/runs.
	if cfg.RunInterval > 0 {
		go func() {
			if err := p.Run(ctx, cfg.RunInterval); err != nil {
				logger.Error("scheduler error", "error", err)
			}
		}()
	} else {
		logger.Info("scheduler disabled")
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}

// openStore builds the configured object store. The returned reader is nil
// when the backend serves artifacts itself.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (publish.ObjectStore, httpadapter.ArtifactReader, func(), error) {
	noop := func() {}

	switch cfg.StoreBackend {
	case config.StoreSupabase:
		logger.Info("using supabase storage", "bucket", cfg.StorageBucket, "path", cfg.ObjectPath)
		return supabase.NewStorage(cfg.SupabaseURL, cfg.SupabaseKey, cfg.StorageBucket, cfg.PublishTimeout), nil, noop, nil

	case config.StoreRedis:
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		store := redisadapter.NewStore(client, cfg.RedisKeyPrefix, cfg.PublicBaseURL)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := store.Ping(pingCtx); err != nil {
			client.Close()
			return nil, nil, nil, fmt.Errorf("connect to redis %s: %w", cfg.RedisAddr, err)
		}
		logger.Info("using redis store", "addr", cfg.RedisAddr, "prefix", cfg.RedisKeyPrefix)
		return store, store, func() { client.Close() }, nil

	default:
		store, err := filestore.New(cfg.StoreDir, cfg.PublicBaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Info("using file store", "dir", cfg.StoreDir)
		return store, store, noop, nil
	}
}
