package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSupabaseURL = "https://abc.supabase.co"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "http://localhost:8080", cfg.PublicBaseURL)

	assert.Equal(t, DefaultOvationURL, cfg.OvationURL)
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 3, cfg.FetchRetries)
	assert.True(t, cfg.ExcludeZero)
	assert.True(t, cfg.IncludeTimes)

	assert.Equal(t, StoreFile, cfg.StoreBackend)
	assert.Equal(t, "data/public", cfg.StoreDir)
	assert.Equal(t, "geojsons", cfg.StorageBucket)
	assert.Equal(t, "aurora_forecast.geojson", cfg.ObjectPath)
	assert.Equal(t, 3600, cfg.CacheControl)
	assert.Equal(t, "replace", cfg.PublishMode)
	assert.Equal(t, 30*time.Second, cfg.PublishTimeout)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, "orora:artifact:", cfg.RedisKeyPrefix)

	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "aurora-forecast-published", cfg.KafkaTopic)

	assert.Equal(t, 5*time.Minute, cfg.RunInterval)
	assert.Equal(t, 2*time.Minute, cfg.RunTimeout)
	assert.Equal(t, DefaultKpIndexURL, cfg.KpIndexURL)
	assert.Equal(t, DefaultSolarWindURL, cfg.SolarWindURL)
	assert.Equal(t, DefaultOpenMeteoURL, cfg.OpenMeteoURL)
	assert.Equal(t, 5*time.Minute, cfg.SpaceWeatherTTL)
	assert.Equal(t, 1000, cfg.CloudCacheSize)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("PUBLIC_BASE_URL", "https://orora.example.com/")
	t.Setenv("OVATION_URL", "http://localhost:9999/ovation.json")
	t.Setenv("FETCH_TIMEOUT", "5s")
	t.Setenv("FETCH_RETRIES", "0")
	t.Setenv("EXCLUDE_ZERO", "false")
	t.Setenv("INCLUDE_TIMES", "false")
	t.Setenv("STORE_BACKEND", "supabase")
	t.Setenv("SUPABASE_URL", testSupabaseURL+"/")
	t.Setenv("SUPABASE_SERVICE_KEY", "service-key")
	t.Setenv("STORAGE_BUCKET", "maps")
	t.Setenv("OBJECT_PATH", "aurora/latest.geojson")
	t.Setenv("CACHE_CONTROL", "60")
	t.Setenv("PUBLISH_MODE", "delete-then-upload")
	t.Setenv("DATABASE_URL", "postgres://localhost/orora")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_TOPIC", "forecasts")
	t.Setenv("RUN_INTERVAL", "0")
	t.Setenv("RUN_TIMEOUT", "45s")
	t.Setenv("SPACE_WEATHER_TTL", "1m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "https://orora.example.com", cfg.PublicBaseURL)
	assert.Equal(t, "http://localhost:9999/ovation.json", cfg.OvationURL)
	assert.Equal(t, 5*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 0, cfg.FetchRetries)
	assert.False(t, cfg.ExcludeZero)
	assert.False(t, cfg.IncludeTimes)
	assert.Equal(t, StoreSupabase, cfg.StoreBackend)
	assert.Equal(t, testSupabaseURL, cfg.SupabaseURL)
	assert.Equal(t, "service-key", cfg.SupabaseKey)
	assert.Equal(t, "maps", cfg.StorageBucket)
	assert.Equal(t, "aurora/latest.geojson", cfg.ObjectPath)
	assert.Equal(t, 60, cfg.CacheControl)
	assert.Equal(t, "delete-then-upload", cfg.PublishMode)
	assert.Equal(t, "postgres://localhost/orora", cfg.DatabaseURL)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "forecasts", cfg.KafkaTopic)
	assert.Equal(t, time.Duration(0), cfg.RunInterval)
	assert.Equal(t, 45*time.Second, cfg.RunTimeout)
	assert.Equal(t, time.Minute, cfg.SpaceWeatherTTL)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"SHUTDOWN_TIMEOUT", "not-a-duration"},
		{"SHUTDOWN_TIMEOUT", "-1s"},
		{"FETCH_TIMEOUT", "0s"},
		{"FETCH_TIMEOUT", "soon"},
		{"FETCH_RETRIES", "-1"},
		{"FETCH_RETRIES", "11"},
		{"EXCLUDE_ZERO", "maybe"},
		{"INCLUDE_TIMES", "2"},
		{"CACHE_CONTROL", "an hour"},
		{"PUBLISH_MODE", "overwrite"},
		{"PUBLISH_TIMEOUT", "-5s"},
		{"RUN_INTERVAL", "-5m"},
		{"RUN_INTERVAL", "10s"},
		{"RUN_TIMEOUT", "0"},
		{"RUN_TIMEOUT", "11m"},
		{"OVATION_URL", "ftp://example.com/feed.json"},
		{"OBJECT_PATH", "/absolute.geojson"},
		{"STORE_BACKEND", "s3"},
		{"REDIS_DB", "16"},
		{"SPACE_WEATHER_TTL", "never"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoad_RunTimeoutAtCap(t *testing.T) {
	t.Setenv("RUN_TIMEOUT", "10m")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, cfg.RunTimeout)
}

func TestLoad_SupabaseRequiresCredentials(t *testing.T) {
	t.Setenv("STORE_BACKEND", "supabase")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SUPABASE_URL")

	t.Setenv("SUPABASE_URL", testSupabaseURL)
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SUPABASE_SERVICE_KEY")
}

func TestLoad_StoreBackendCaseInsensitive(t *testing.T) {
	t.Setenv("STORE_BACKEND", "Redis")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreRedis, cfg.StoreBackend)
}
