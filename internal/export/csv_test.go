package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archeltaneka/melbourne-air-quality-pedestrian-traffic-analysis/internal/aggregate"
	"github.com/archeltaneka/melbourne-air-quality-pedestrian-traffic-analysis/internal/domain"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriteAirQualityFinal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "air_quality_final.csv")
	rows := []domain.HourlyAirSummary{
		{
			Timestamp: time.Date(2022, 3, 14, 9, 0, 0, 0, domain.AEST),
			Readings: domain.Readings{
				CO:   domain.ReadingOf(0.2),
				PM25: domain.ReadingOf(12.4),
			},
		},
	}

	require.NoError(t, WriteAirQualityFinal(path, rows))

	got := readCSV(t, path)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"datetime_AEST", "CO", "NO2", "O3", "PM2.5", "PM10"}, got[0])
	// Missing readings serialize as empty fields, never 0.
	assert.Equal(t, []string{"2022-03-14 09:00:00", "0.2", "", "", "12.4", ""}, got[1])
}

func TestWritePedestrianFinal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pedestrian_count_final.csv")
	rows := []domain.JoinedRow{
		{
			Area:      "Bourke Street Mall",
			Geo:       domain.Geo{Lat: -37.8136, Lon: 144.9631},
			Timestamp: time.Date(2022, 3, 14, 9, 0, 0, 0, domain.AEST),
			Count:     1543,
			Site:      "Melbourne CBD",
			Readings:  domain.Readings{PM25: domain.ReadingOf(12.4)},
		},
	}

	require.NoError(t, WritePedestrianFinal(path, rows))

	got := readCSV(t, path)
	require.Len(t, got, 2)
	assert.Equal(t,
		[]string{"datetime_AEST", "latitude", "longitude", "area", "pedestrian_count", "CO", "NO2", "O3", "PM2.5", "PM10"},
		got[0])
	assert.Equal(t,
		[]string{"2022-03-14 09:00:00", "-37.8136", "144.9631", "Bourke Street Mall", "1543", "", "", "", "12.4", ""},
		got[1])
}

func TestWriteAggregate(t *testing.T) {
	t.Run("hourly", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "joined_hourly.csv")
		rows := []aggregate.Row{
			{
				Area:           "Bourke Street Mall",
				Bucket:         9,
				Label:          "09:00",
				PedestrianMean: 1500,
				SampleCount:    2,
				Readings:       domain.Readings{PM25: domain.ReadingOf(12)},
			},
		}

		require.NoError(t, WriteAggregate(path, rows, aggregate.Hourly))

		got := readCSV(t, path)
		require.Len(t, got, 2)
		assert.Equal(t, "hour_of_day", got[0][0])
		assert.NotContains(t, got[0], "season")
		assert.Equal(t, []string{"9", "09:00", "Bourke Street Mall", "1500", "2", "", "", "", "12", ""}, got[1])
	})

	t.Run("monthly has season", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "joined_monthly.csv")
		rows := []aggregate.Row{
			{
				Area:           "Bourke Street Mall",
				Bucket:         1,
				Label:          "January",
				Season:         "summer",
				PedestrianMean: 900,
				SampleCount:    31,
			},
		}

		require.NoError(t, WriteAggregate(path, rows, aggregate.Monthly))

		got := readCSV(t, path)
		require.Len(t, got, 2)
		assert.Equal(t, []string{"month", "label", "season", "area", "pedestrian_count", "sample_count", "CO", "NO2", "O3", "PM2.5", "PM10"}, got[0])
		assert.Equal(t, "summer", got[1][2])
	})
}

func TestWriteOverwritesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "air_quality_final.csv")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))

	require.NoError(t, WriteAirQualityFinal(path, nil))

	got := readCSV(t, path)
	require.Len(t, got, 1)
	assert.Equal(t, "datetime_AEST", got[0][0])

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "air_quality_final.csv", entries[0].Name())
}

func TestParseTimestamp(t *testing.T) {
	ts, err := ParseTimestamp("2022-03-14 09:00:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2022, 3, 14, 9, 0, 0, 0, domain.AEST).Unix(), ts.Unix())
}
