package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable Load reads, so ambient environment and .env
// files cannot leak into assertions.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DATA_DIR", "OUTPUT_DIR", "DATA_YEAR",
		"AIR_QUALITY_URL", "PEDESTRIAN_BASE_URL", "DOWNLOAD_TIMEOUT",
		"AREA_DB_PATH", "GEOCODER_ENABLED", "NOMINATIM_BASE_URL",
		"NOMINATIM_USER_AGENT", "NOMINATIM_TIMEOUT", "NOMINATIM_MIN_INTERVAL",
		"AREA_SITE_OVERRIDES", "KAFKA_BROKERS", "KAFKA_TOPIC",
		"STATUS_ADDR", "LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, "data", cfg.OutputDir)
	assert.Equal(t, 2022, cfg.DataYear)
	assert.Equal(t, 2*time.Minute, cfg.DownloadTimeout)
	assert.True(t, cfg.GeocoderEnabled)
	assert.Equal(t, "https://nominatim.openstreetmap.org", cfg.NominatimBaseURL)
	assert.Equal(t, time.Second, cfg.NominatimMinInterval)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.False(t, cfg.KafkaEnabled())
	assert.Empty(t, cfg.StatusAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)

	assert.Equal(t, filepath.Join("data", "air_quality", "2022_air_quality_vic.csv"), cfg.AirQualityFile())
	assert.Equal(t, filepath.Join("data", "pedestrian"), cfg.PedestrianDir())
	assert.Equal(t, filepath.Join("data", "area_mapping", "area_mapping.db"), cfg.AreaDBPath)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATA_DIR", "/var/lib/footfall")
	t.Setenv("DATA_YEAR", "2023")
	t.Setenv("GEOCODER_ENABLED", "false")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")
	t.Setenv("KAFKA_TOPIC", "joined")
	t.Setenv("AREA_SITE_OVERRIDES", "Bourke Street Mall=Melbourne CBD, Footscray Market=Footscray")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2023, cfg.DataYear)
	assert.Equal(t, filepath.Join("/var/lib/footfall", "air_quality", "2023_air_quality_vic.csv"), cfg.AirQualityFile())
	assert.False(t, cfg.GeocoderEnabled)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.KafkaEnabled())
	assert.Equal(t, map[string]string{
		"Bourke Street Mall": "Melbourne CBD",
		"Footscray Market":   "Footscray",
	}, cfg.AreaSiteOverrides)

	// OUTPUT_DIR falls back to DATA_DIR when unset.
	assert.Equal(t, "/var/lib/footfall", cfg.OutputDir)
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("bad year", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("DATA_YEAR", "not-a-year")
		_, err := Load()
		assert.ErrorContains(t, err, "DATA_YEAR")
	})

	t.Run("year out of range", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("DATA_YEAR", "1800")
		_, err := Load()
		assert.ErrorContains(t, err, "out of range")
	})

	t.Run("bad duration", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("DOWNLOAD_TIMEOUT", "fast")
		_, err := Load()
		assert.ErrorContains(t, err, "DOWNLOAD_TIMEOUT")
	})

	t.Run("bad override entry", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("AREA_SITE_OVERRIDES", "Bourke Street Mall")
		_, err := Load()
		assert.ErrorContains(t, err, "AREA_SITE_OVERRIDES")
	})
}
