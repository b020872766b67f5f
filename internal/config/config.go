// Package config loads service settings from environment variables and
// the versioned normalization tables from YAML files. Any malformed
// setting or table is a load error: the service refuses to start rather
// than risk systematic silent corruption of the dataset.
package config

import (
	"errors"
	"os"
	"strings"
	"time"
)

// Default date layouts accepted by the normalizer, ordered. Entries are
// Go reference layouts separated by "|" (layouts themselves contain
// commas). Overridable via DATE_LAYOUTS.
const defaultDateLayouts = "01/02/2006|1/2/2006|2006-01-02|Monday, January 2, 2006|Monday, January 2, 2006 - 3:04pm"

// Config holds all service settings, populated from environment variables.
type Config struct {
	BaseURL        string
	SeasonStart    time.Time
	SeasonEnd      time.Time
	ListingPageCap int

	FetchWorkers   int
	FetchTimeout   time.Duration
	FetchRetries   int
	FetchCacheSize int

	BatchSize          int
	BatchFlushInterval time.Duration

	OutputDir string

	// Optional Postgres sink, enabled when a DSN is supplied.
	PostgresDSN     string
	PostgresEnabled bool

	// Optional Kafka publisher for downstream consumers.
	KafkaBrokers []string
	KafkaTopic   string
	KafkaEnabled bool

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	Timezone        string
	ZoneAliasPath   string
	DangerScalePath string
	DateLayouts     []string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	now := time.Now()

	seasonStart, err := parseDateEnv("SEASON_START", seasonStart(now))
	if err != nil {
		return nil, err
	}
	seasonEnd, err := parseDateEnv("SEASON_END", now)
	if err != nil {
		return nil, err
	}

	pageCap, err := parsePositiveIntEnv("LISTING_PAGE_CAP", 50)
	if err != nil {
		return nil, err
	}
	workers, err := parsePositiveIntEnv("FETCH_WORKERS", 4)
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := parseDurationEnv("FETCH_TIMEOUT", "15s")
	if err != nil {
		return nil, err
	}
	retries, err := parsePositiveIntEnv("FETCH_RETRIES", 3)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parsePositiveIntEnv("FETCH_CACHE_SIZE", 1000)
	if err != nil {
		return nil, err
	}
	batchSize, err := parsePositiveIntEnv("BATCH_SIZE", 50)
	if err != nil {
		return nil, err
	}
	flushInterval, err := parseDurationEnv("BATCH_FLUSH_INTERVAL", "500ms")
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := parseDurationEnv("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	pgDSN := os.Getenv("PG_DSN")

	brokers := splitList(os.Getenv("KAFKA_BROKERS"), ",")
	kafkaEnabled := len(brokers) > 0
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		BaseURL:        EnvOrDefault("SOURCE_BASE_URL", "https://utahavalanchecenter.org"),
		SeasonStart:    seasonStart,
		SeasonEnd:      seasonEnd,
		ListingPageCap: pageCap,

		FetchWorkers:   workers,
		FetchTimeout:   fetchTimeout,
		FetchRetries:   retries,
		FetchCacheSize: cacheSize,

		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		OutputDir: EnvOrDefault("OUTPUT_DIR", "data/out"),

		PostgresDSN:     pgDSN,
		PostgresEnabled: pgDSN != "",

		KafkaBrokers: brokers,
		KafkaTopic:   EnvOrDefault("KAFKA_TOPIC", "avalanche-observations"),
		KafkaEnabled: kafkaEnabled,

		HTTPAddr:        EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		Timezone:        EnvOrDefault("SOURCE_TIMEZONE", "America/Denver"),
		ZoneAliasPath:   EnvOrDefault("ZONE_ALIAS_TABLE", "configs/zone_aliases.yaml"),
		DangerScalePath: EnvOrDefault("DANGER_SCALE_TABLE", "configs/danger_scale.yaml"),
		DateLayouts:     splitList(EnvOrDefault("DATE_LAYOUTS", defaultDateLayouts), "|"),
	}

	if cfg.BaseURL == "" {
		return nil, errors.New("SOURCE_BASE_URL is required")
	}
	if cfg.SeasonEnd.Before(cfg.SeasonStart) {
		return nil, errors.New("SEASON_END is before SEASON_START")
	}
	if len(cfg.DateLayouts) == 0 {
		return nil, errors.New("DATE_LAYOUTS is required")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}

	return cfg, nil
}

// seasonStart returns the start of the avalanche season containing t:
// seasons run from the preceding August 1 through the end of July.
func seasonStart(t time.Time) time.Time {
	year := t.Year()
	if t.Month() < time.August {
		year--
	}
	return time.Date(year, time.August, 1, 0, 0, 0, 0, time.UTC)
}

func splitList(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
