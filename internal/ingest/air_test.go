package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadAirQuality(t *testing.T) {
	csvBody := "datetime_AEST,location_name,latitude,longitude,parameter_name,value\n" +
		"2022-03-14 09:00:00,Melbourne CBD,-37.8075,144.9700,PM2.5,12.4\n" +
		"2022-03-14 09:00:00,Melbourne CBD,-37.8075,144.9700,O3,0.021\n"
	path := writeFixture(t, "2022_air_quality_vic.csv", csvBody)

	records, skipped, err := ReadAirQuality(path)
	require.NoError(t, err)
	assert.Zero(t, skipped)
	require.Len(t, records, 2)

	assert.Equal(t, "Melbourne CBD", records[0].Site)
	assert.Equal(t, "2022-03-14 09:00:00", records[0].Timestamp)
	assert.Equal(t, "-37.8075", records[0].Lat)
	assert.Equal(t, "144.9700", records[0].Lon)
	assert.Equal(t, "PM2.5", records[0].Parameter)
	assert.Equal(t, "12.4", records[0].Value)
	assert.Equal(t, "2022_air_quality_vic.csv", records[0].SourceFile)
	assert.Equal(t, "O3", records[1].Parameter)
}

func TestReadAirQuality_ShuffledColumns(t *testing.T) {
	// Column positions must not be assumed; only names matter.
	csvBody := "value,parameter_name,datetime_AEST,location_name,longitude,latitude\n" +
		"12.4,PM2.5,2022-03-14 09:00:00,Melbourne CBD,144.9700,-37.8075\n"
	path := writeFixture(t, "air.csv", csvBody)

	records, _, err := ReadAirQuality(path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Melbourne CBD", records[0].Site)
	assert.Equal(t, "12.4", records[0].Value)
	assert.Equal(t, "-37.8075", records[0].Lat)
}

func TestReadAirQuality_MissingColumnIsFatal(t *testing.T) {
	csvBody := "datetime_AEST,location_name,latitude,longitude,value\n" +
		"2022-03-14 09:00:00,Melbourne CBD,-37.8075,144.9700,12.4\n"
	path := writeFixture(t, "air.csv", csvBody)

	_, _, err := ReadAirQuality(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing required column "parameter_name"`)
}

func TestReadAirQuality_MissingFileIsFatal(t *testing.T) {
	_, _, err := ReadAirQuality(filepath.Join(t.TempDir(), "absent.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open air quality source")
}

func TestReadAirQuality_RaggedRowsSkipped(t *testing.T) {
	csvBody := "datetime_AEST,location_name,latitude,longitude,parameter_name,value\n" +
		"2022-03-14 09:00:00,Melbourne CBD,-37.8075,144.9700,PM2.5,12.4\n" +
		"2022-03-14 10:00:00,Melbourne CBD\n" +
		"2022-03-14 11:00:00,Melbourne CBD,-37.8075,144.9700,PM2.5,13.0\n"
	path := writeFixture(t, "air.csv", csvBody)

	records, skipped, err := ReadAirQuality(path)
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	assert.Len(t, records, 2)
}
