package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Defaults for the poll loop and the upstream services. The bounding box
// covers Türkiye and the surrounding Aegean/Anatolian fault zones.
const (
	DefaultFeedURL    = "https://www.seismicportal.eu/fdsnws/event/1/query"
	DefaultGeocodeURL = "https://nominatim.openstreetmap.org/reverse"

	defaultClientTag = "quake-ingest/1.0 (+https://github.com/couchcryptid/quake-ingest)"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	DBPath   string
	HTTPAddr string

	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Poll loop.
	FetchInterval  time.Duration
	LookbackWindow time.Duration
	SummaryWindow  time.Duration

	// Feed query.
	FeedURL      string
	FeedTimeout  time.Duration
	MinLat       float64
	MaxLat       float64
	MinLon       float64
	MaxLon       float64
	MinMagnitude float64

	// Reverse geocoding.
	GeocodeURL       string
	GeocodeTimeout   time.Duration
	GeocodeDelay     time.Duration
	GeocodeZoom      int
	GeocodeCacheSize int
	ClientTag        string

	// Rendering.
	LocalTimezone string

	// Optional Kafka publishing of ingested events.
	KafkaBrokers []string
	KafkaTopic   string
	KafkaEnabled bool
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parsePositiveDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	fetchInterval, err := parsePositiveDuration("FETCH_INTERVAL", "30s")
	if err != nil {
		return nil, err
	}
	lookback, err := parsePositiveDuration("LOOKBACK_WINDOW", "2h")
	if err != nil {
		return nil, err
	}
	summaryWindow, err := parsePositiveDuration("SUMMARY_WINDOW", "24h")
	if err != nil {
		return nil, err
	}
	feedTimeout, err := parsePositiveDuration("FEED_TIMEOUT", "60s")
	if err != nil {
		return nil, err
	}
	geocodeTimeout, err := parsePositiveDuration("GEOCODE_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	geocodeDelay, err := parseNonNegativeDuration("GEOCODE_DELAY", "1.1s")
	if err != nil {
		return nil, err
	}

	minLat, err := parseFloat("MIN_LAT", 35.0)
	if err != nil {
		return nil, err
	}
	maxLat, err := parseFloat("MAX_LAT", 43.0)
	if err != nil {
		return nil, err
	}
	minLon, err := parseFloat("MIN_LON", 25.0)
	if err != nil {
		return nil, err
	}
	maxLon, err := parseFloat("MAX_LON", 45.0)
	if err != nil {
		return nil, err
	}
	minMag, err := parseFloat("MIN_MAGNITUDE", 2.0)
	if err != nil {
		return nil, err
	}

	zoom, err := parseInt("GEOCODE_ZOOM", 10)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parseInt("GEOCODE_CACHE_SIZE", 1024)
	if err != nil {
		return nil, err
	}

	brokers := parseBrokers(os.Getenv("KAFKA_BROKERS"))
	kafkaEnabled := len(brokers) > 0
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		DBPath:   envOrDefault("DB_PATH", "quake.db"),
		HTTPAddr: envOrDefault("HTTP_ADDR", ":8080"),

		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		FetchInterval:  fetchInterval,
		LookbackWindow: lookback,
		SummaryWindow:  summaryWindow,

		FeedURL:      envOrDefault("FEED_URL", DefaultFeedURL),
		FeedTimeout:  feedTimeout,
		MinLat:       minLat,
		MaxLat:       maxLat,
		MinLon:       minLon,
		MaxLon:       maxLon,
		MinMagnitude: minMag,

		GeocodeURL:       envOrDefault("GEOCODE_URL", DefaultGeocodeURL),
		GeocodeTimeout:   geocodeTimeout,
		GeocodeDelay:     geocodeDelay,
		GeocodeZoom:      zoom,
		GeocodeCacheSize: cacheSize,
		ClientTag:        envOrDefault("CLIENT_TAG", defaultClientTag),

		LocalTimezone: envOrDefault("LOCAL_TZ", "Europe/Istanbul"),

		KafkaBrokers: brokers,
		KafkaTopic:   envOrDefault("KAFKA_TOPIC", "quake-events"),
		KafkaEnabled: kafkaEnabled,
	}

	if cfg.DBPath == "" {
		return nil, errors.New("DB_PATH is required")
	}
	if cfg.ClientTag == "" {
		return nil, errors.New("CLIENT_TAG is required by the geocoder usage policy")
	}
	if cfg.MinLat >= cfg.MaxLat {
		return nil, errors.New("MIN_LAT must be less than MAX_LAT")
	}
	if cfg.GeocodeCacheSize <= 0 {
		return nil, errors.New("GEOCODE_CACHE_SIZE must be positive")
	}
	if cfg.MinLon >= cfg.MaxLon {
		return nil, errors.New("MIN_LON must be less than MAX_LON")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parsePositiveDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseNonNegativeDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseFloat(key string, fallback float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return v, nil
}

func parseInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return v, nil
}

func parseBrokers(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}
