package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all pipeline settings, populated from environment variables.
type Config struct {
	DataDir   string
	OutputDir string
	DataYear  int

	// Source endpoints. An empty URL skips the download stage for that
	// source and requires the file to already be on disk.
	AirQualityURL     string
	PedestrianBaseURL string
	DownloadTimeout   time.Duration

	// Geocoding.
	AreaDBPath           string
	GeocoderEnabled      bool
	NominatimBaseURL     string
	NominatimUserAgent   string
	NominatimTimeout     time.Duration
	NominatimMinInterval time.Duration

	// Explicit area→site assignments that beat nearest-site selection.
	AreaSiteOverrides map[string]string

	// Optional Kafka sink for joined rows.
	KafkaBrokers []string
	KafkaTopic   string

	// Optional status HTTP server; empty disables it.
	StatusAddr string

	LogLevel  string
	LogFormat string
}

// AirQualityFile is the local path of the raw air-quality source.
func (c *Config) AirQualityFile() string {
	return filepath.Join(c.DataDir, "air_quality", fmt.Sprintf("%d_air_quality_vic.csv", c.DataYear))
}

// PedestrianDir is the local directory holding the monthly pedestrian files.
func (c *Config) PedestrianDir() string {
	return filepath.Join(c.DataDir, "pedestrian")
}

// KafkaEnabled reports whether the joined-row sink is configured.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0 && c.KafkaTopic != ""
}

// Load reads configuration from the environment, applying defaults where
// unset. A .env file in the working directory is honored when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	year, err := parseInt("DATA_YEAR", 2022)
	if err != nil {
		return nil, err
	}

	downloadTimeout, err := parseDuration("DOWNLOAD_TIMEOUT", "2m")
	if err != nil {
		return nil, err
	}
	nominatimTimeout, err := parseDuration("NOMINATIM_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	nominatimInterval, err := parseDuration("NOMINATIM_MIN_INTERVAL", "1s")
	if err != nil {
		return nil, err
	}

	overrides, err := parseOverrides(os.Getenv("AREA_SITE_OVERRIDES"))
	if err != nil {
		return nil, err
	}

	dataDir := envOrDefault("DATA_DIR", "data")

	cfg := &Config{
		DataDir:   dataDir,
		OutputDir: envOrDefault("OUTPUT_DIR", dataDir),
		DataYear:  year,

		AirQualityURL:     os.Getenv("AIR_QUALITY_URL"),
		PedestrianBaseURL: os.Getenv("PEDESTRIAN_BASE_URL"),
		DownloadTimeout:   downloadTimeout,

		AreaDBPath:           envOrDefault("AREA_DB_PATH", filepath.Join(dataDir, "area_mapping", "area_mapping.db")),
		GeocoderEnabled:      envOrDefault("GEOCODER_ENABLED", "true") == "true",
		NominatimBaseURL:     envOrDefault("NOMINATIM_BASE_URL", "https://nominatim.openstreetmap.org"),
		NominatimUserAgent:   envOrDefault("NOMINATIM_USER_AGENT", "melbourne-footfall-etl"),
		NominatimTimeout:     nominatimTimeout,
		NominatimMinInterval: nominatimInterval,

		AreaSiteOverrides: overrides,

		KafkaBrokers: parseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   envOrDefault("KAFKA_TOPIC", "joined-footfall-air"),

		StatusAddr: os.Getenv("STATUS_ADDR"),

		LogLevel:  envOrDefault("LOG_LEVEL", "info"),
		LogFormat: envOrDefault("LOG_FORMAT", "json"),
	}

	if cfg.DataYear < 2000 || cfg.DataYear > 2100 {
		return nil, fmt.Errorf("DATA_YEAR %d out of range", cfg.DataYear)
	}
	if cfg.GeocoderEnabled && cfg.NominatimUserAgent == "" {
		return nil, errors.New("NOMINATIM_USER_AGENT must not be empty while the geocoder is enabled")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func parseDuration(key, fallback string) (time.Duration, error) {
	s := envOrDefault(key, fallback)
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q", key, s)
	}
	return d, nil
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

// parseOverrides parses "Area Name=Site Name,Other Area=Other Site".
func parseOverrides(s string) (map[string]string, error) {
	if s == "" {
		return nil, nil
	}
	overrides := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		area, site, ok := strings.Cut(pair, "=")
		area, site = strings.TrimSpace(area), strings.TrimSpace(site)
		if !ok || area == "" || site == "" {
			return nil, fmt.Errorf("invalid AREA_SITE_OVERRIDES entry %q", pair)
		}
		overrides[area] = site
	}
	return overrides, nil
}
