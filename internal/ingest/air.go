// Package ingest reads the raw source files into raw record slices.
// Structural problems (missing file, missing required column) are errors and
// abort the run; malformed individual rows are skipped and counted.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/archeltaneka/melbourne-air-quality-pedestrian-traffic-analysis/internal/domain"
)

// airRequiredColumns is the structural contract of the EPA AirWatch export.
var airRequiredColumns = []string{
	"datetime_AEST",
	"location_name",
	"latitude",
	"longitude",
	"parameter_name",
	"value",
}

// ReadAirQuality reads the long-format EPA air-quality CSV. Returns the raw
// measurements, the number of skipped malformed rows, and a fatal error when
// the file is unreadable or a required column is absent.
func ReadAirQuality(path string) ([]domain.RawAirMeasurement, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open air quality source: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read air quality header: %w", err)
	}
	cols, err := columnIndex(header, airRequiredColumns)
	if err != nil {
		return nil, 0, fmt.Errorf("air quality source %s: %w", filepath.Base(path), err)
	}

	source := filepath.Base(path)
	var records []domain.RawAirMeasurement
	skipped := 0
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			skipped++
			continue
		}
		if len(row) < len(header) {
			skipped++
			continue
		}
		records = append(records, domain.RawAirMeasurement{
			Site:       row[cols["location_name"]],
			Timestamp:  row[cols["datetime_AEST"]],
			Lat:        row[cols["latitude"]],
			Lon:        row[cols["longitude"]],
			Parameter:  row[cols["parameter_name"]],
			Value:      row[cols["value"]],
			SourceFile: source,
		})
	}
	return records, skipped, nil
}

// columnIndex maps required column names to their positions, reporting the
// first missing column as a structural mismatch.
func columnIndex(header, required []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	for _, name := range required {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("missing required column %q", name)
		}
	}
	return index, nil
}
