package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/geosphere-warnings/internal/domain"
)

// DefaultEndpoint is the GeoSphere coordinate warnings endpoint.
const DefaultEndpoint = "https://warnapi.geosphere.at/v1/warnings/coords"

// Config holds all service settings, populated from environment variables.
type Config struct {
	// Monitored location.
	Latitude    float64
	Longitude   float64
	WarningType string

	// Warnings API polling.
	Endpoint        string
	RequestTimeout  time.Duration
	ScanInterval    time.Duration
	UnboundedPolicy domain.WindowPolicy

	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration
	RefreshPerMinute int

	// Kafka snapshot export.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string

	// Mapbox reverse geocoding of the monitored location.
	MapboxToken   string
	MapboxEnabled bool
	MapboxTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	lat, err := parseCoordinate("LATITUDE", "48.2082", 90)
	if err != nil {
		return nil, err
	}
	lon, err := parseCoordinate("LONGITUDE", "16.3738", 180)
	if err != nil {
		return nil, err
	}

	requestTimeout, err := parsePositiveDuration("REQUEST_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	scanInterval, err := parsePositiveDuration("SCAN_INTERVAL", "15m")
	if err != nil {
		return nil, err
	}
	mapboxTimeout, err := parsePositiveDuration("MAPBOX_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	policy, err := domain.ParseWindowPolicy(sharedcfg.EnvOrDefault("UNBOUNDED_WARNING_POLICY", "include"))
	if err != nil {
		return nil, fmt.Errorf("invalid UNBOUNDED_WARNING_POLICY: %w", err)
	}

	refreshPerMinute, err := strconv.Atoi(sharedcfg.EnvOrDefault("REFRESH_RATE_LIMIT", "6"))
	if err != nil || refreshPerMinute <= 0 {
		return nil, errors.New("invalid REFRESH_RATE_LIMIT")
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	cfg := &Config{
		Latitude:        lat,
		Longitude:       lon,
		WarningType:     sharedcfg.EnvOrDefault("WARNING_TYPE", "EVENT"),
		Endpoint:        sharedcfg.EnvOrDefault("GEOSPHERE_ENDPOINT", DefaultEndpoint),
		RequestTimeout:  requestTimeout,
		ScanInterval:    scanInterval,
		UnboundedPolicy: policy,

		HTTPAddr:         sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:         sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:        sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:  shutdownTimeout,
		RefreshPerMinute: refreshPerMinute,

		KafkaEnabled: os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers: sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "geosphere-warnings"),

		MapboxToken:   mapboxToken,
		MapboxEnabled: mapboxEnabled,
		MapboxTimeout: mapboxTimeout,
	}

	if cfg.WarningType == "" {
		return nil, errors.New("WARNING_TYPE is required")
	}
	if cfg.Endpoint == "" {
		return nil, errors.New("GEOSPHERE_ENDPOINT is required")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}
	if cfg.KafkaEnabled && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_TOPIC is not set")
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}

	return cfg, nil
}

func parseCoordinate(key, def string, limit float64) (float64, error) {
	v, err := strconv.ParseFloat(sharedcfg.EnvOrDefault(key, def), 64)
	if err != nil || math.IsNaN(v) || v < -limit || v > limit {
		return 0, fmt.Errorf("invalid %s: must be a number within ±%g", key, limit)
	}
	return v, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}
