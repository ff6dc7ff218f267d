package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Upstream endpoints used when the corresponding variable is unset.
const (
	DefaultOvationURL    = "https://services.swpc.noaa.gov/json/ovation_aurora_latest.json"
	DefaultKpIndexURL    = "https://services.swpc.noaa.gov/products/noaa-planetary-k-index.json"
	DefaultSolarWindURL  = "https://services.swpc.noaa.gov/products/solar-wind/plasma-7-day.json"
	DefaultOpenMeteoURL  = "https://api.open-meteo.com/v1/forecast"
	DefaultObjectPath    = "aurora_forecast.geojson"
	DefaultStorageBucket = "geojsons"
)

// Store backends selectable with STORE_BACKEND.
const (
	StoreFile     = "file"
	StoreSupabase = "supabase"
	StoreRedis    = "redis"
)

// maxRunTimeout keeps a manual run within the HTTP server's write deadline.
const maxRunTimeout = 10 * time.Minute

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	PublicBaseURL   string

	// Upstream feed.
	OvationURL   string
	FetchTimeout time.Duration
	FetchRetries int

	// Transform variant.
	ExcludeZero  bool
	IncludeTimes bool

	// Publishing.
	StoreBackend   string
	StoreDir       string
	SupabaseURL    string
	SupabaseKey    string
	StorageBucket  string
	ObjectPath     string
	CacheControl   int
	PublishMode    string
	PublishTimeout time.Duration

	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisKeyPrefix string

	// Optional run lock, run log, and publish events.
	DatabaseURL  string
	KafkaBrokers []string
	KafkaTopic   string

	// Scheduling.
	RunInterval time.Duration
	RunTimeout  time.Duration

	// Dashboard data.
	KpIndexURL      string
	SolarWindURL    string
	OpenMeteoURL    string
	SpaceWeatherTTL time.Duration
	CloudCacheSize  int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	fetchTimeout, err := parsePositiveDuration("FETCH_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	publishTimeout, err := parsePositiveDuration("PUBLISH_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	runTimeout, err := parsePositiveDuration("RUN_TIMEOUT", "2m")
	if err != nil {
		return nil, err
	}
	spaceWeatherTTL, err := parsePositiveDuration("SPACE_WEATHER_TTL", "5m")
	if err != nil {
		return nil, err
	}
	runInterval, err := parseRunInterval()
	if err != nil {
		return nil, err
	}

	fetchRetries, err := parseInt("FETCH_RETRIES", 3, 0, 10)
	if err != nil {
		return nil, err
	}
	cacheControl, err := parseInt("CACHE_CONTROL", 3600, 0, 31536000)
	if err != nil {
		return nil, err
	}
	redisDB, err := parseInt("REDIS_DB", 0, 0, 15)
	if err != nil {
		return nil, err
	}
	cloudCacheSize, err := parseInt("CLOUD_CACHE_SIZE", 1000, 1, 1000000)
	if err != nil {
		return nil, err
	}

	excludeZero, err := parseBool("EXCLUDE_ZERO", true)
	if err != nil {
		return nil, err
	}
	includeTimes, err := parseBool("INCLUDE_TIMES", true)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		PublicBaseURL:   strings.TrimRight(sharedcfg.EnvOrDefault("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),

		OvationURL:   sharedcfg.EnvOrDefault("OVATION_URL", DefaultOvationURL),
		FetchTimeout: fetchTimeout,
		FetchRetries: fetchRetries,

		ExcludeZero:  excludeZero,
		IncludeTimes: includeTimes,

		StoreBackend:   strings.ToLower(sharedcfg.EnvOrDefault("STORE_BACKEND", StoreFile)),
		StoreDir:       sharedcfg.EnvOrDefault("STORE_DIR", "data/public"),
		SupabaseURL:    strings.TrimRight(os.Getenv("SUPABASE_URL"), "/"),
		SupabaseKey:    os.Getenv("SUPABASE_SERVICE_KEY"),
		StorageBucket:  sharedcfg.EnvOrDefault("STORAGE_BUCKET", DefaultStorageBucket),
		ObjectPath:     sharedcfg.EnvOrDefault("OBJECT_PATH", DefaultObjectPath),
		CacheControl:   cacheControl,
		PublishMode:    sharedcfg.EnvOrDefault("PUBLISH_MODE", "replace"),
		PublishTimeout: publishTimeout,

		RedisAddr:      sharedcfg.EnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RedisDB:        redisDB,
		RedisKeyPrefix: sharedcfg.EnvOrDefault("REDIS_KEY_PREFIX", "orora:artifact:"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		KafkaTopic:  sharedcfg.EnvOrDefault("KAFKA_TOPIC", "aurora-forecast-published"),

		RunInterval: runInterval,
		RunTimeout:  runTimeout,

		KpIndexURL:      sharedcfg.EnvOrDefault("KP_INDEX_URL", DefaultKpIndexURL),
		SolarWindURL:    sharedcfg.EnvOrDefault("SOLAR_WIND_URL", DefaultSolarWindURL),
		OpenMeteoURL:    sharedcfg.EnvOrDefault("OPEN_METEO_URL", DefaultOpenMeteoURL),
		SpaceWeatherTTL: spaceWeatherTTL,
		CloudCacheSize:  cloudCacheSize,
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = sharedcfg.ParseBrokers(brokers)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if err := requireHTTPURL("OVATION_URL", c.OvationURL); err != nil {
		return err
	}
	switch c.StoreBackend {
	case StoreFile:
		if c.StoreDir == "" {
			return errors.New("STORE_DIR is required for the file backend")
		}
	case StoreSupabase:
		if c.SupabaseURL == "" {
			return errors.New("SUPABASE_URL is required for the supabase backend")
		}
		if err := requireHTTPURL("SUPABASE_URL", c.SupabaseURL); err != nil {
			return err
		}
		if c.SupabaseKey == "" {
			return errors.New("SUPABASE_SERVICE_KEY is required for the supabase backend")
		}
	case StoreRedis:
		if c.RedisAddr == "" {
			return errors.New("REDIS_ADDR is required for the redis backend")
		}
	default:
		return fmt.Errorf("invalid STORE_BACKEND %q: want file, supabase, or redis", c.StoreBackend)
	}
	if c.StorageBucket == "" {
		return errors.New("STORAGE_BUCKET is required")
	}
	if c.ObjectPath == "" || strings.HasPrefix(c.ObjectPath, "/") {
		return fmt.Errorf("invalid OBJECT_PATH %q: must be a non-empty relative path", c.ObjectPath)
	}
	if c.PublishMode != "replace" && c.PublishMode != "delete-then-upload" {
		return fmt.Errorf("invalid PUBLISH_MODE %q: want replace or delete-then-upload", c.PublishMode)
	}
	if c.RunTimeout > maxRunTimeout {
		return fmt.Errorf("invalid RUN_TIMEOUT %s: must not exceed %s", c.RunTimeout, maxRunTimeout)
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

// parseRunInterval accepts "0" to disable the in-process schedule.
func parseRunInterval() (time.Duration, error) {
	s := sharedcfg.EnvOrDefault("RUN_INTERVAL", "5m")
	if s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, errors.New("invalid RUN_INTERVAL")
	}
	if d > 0 && d < time.Minute {
		return 0, fmt.Errorf("invalid RUN_INTERVAL %s: must be at least 1m", d)
	}
	return d, nil
}

func parseInt(key string, def, lo, hi int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("invalid %s: must be an integer between %d and %d", key, lo, hi)
	}
	return n, nil
}

func parseBool(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s: must be true or false", key)
	}
	return b, nil
}

func requireHTTPURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid %s %q: must be an http(s) URL", key, raw)
	}
	return nil
}
