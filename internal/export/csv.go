// Package export writes the final output tables. Every file is written to a
// temporary path and atomically renamed into place, so a crash mid-write
// leaves the previous output intact for the visualization layer.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/archeltaneka/melbourne-air-quality-pedestrian-traffic-analysis/internal/aggregate"
	"github.com/archeltaneka/melbourne-air-quality-pedestrian-traffic-analysis/internal/domain"
)

const timestampLayout = "2006-01-02 15:04:05"

// WriteAirQualityFinal writes the city-wide hourly air-quality table.
func WriteAirQualityFinal(path string, rows []domain.HourlyAirSummary) error {
	header := append([]string{"datetime_AEST"}, domain.Pollutants...)
	return writeAtomic(path, func(w *csv.Writer) error {
		if err := w.Write(header); err != nil {
			return err
		}
		for _, row := range rows {
			record := make([]string, 0, len(header))
			record = append(record, row.Timestamp.Format(timestampLayout))
			for _, r := range row.Slice() {
				record = append(record, formatReading(r))
			}
			if err := w.Write(record); err != nil {
				return err
			}
		}
		return nil
	})
}

// WritePedestrianFinal writes the joined pedestrian/air table.
func WritePedestrianFinal(path string, rows []domain.JoinedRow) error {
	header := append([]string{"datetime_AEST", "latitude", "longitude", "area", "pedestrian_count"}, domain.Pollutants...)
	return writeAtomic(path, func(w *csv.Writer) error {
		if err := w.Write(header); err != nil {
			return err
		}
		for _, row := range rows {
			record := make([]string, 0, len(header))
			record = append(record,
				row.Timestamp.Format(timestampLayout),
				formatFloat(row.Geo.Lat),
				formatFloat(row.Geo.Lon),
				row.Area,
				strconv.Itoa(row.Count),
			)
			for _, r := range row.Slice() {
				record = append(record, formatReading(r))
			}
			if err := w.Write(record); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteAggregate writes one granularity view. The bucket column is named for
// the granularity; monthly views carry the season label.
func WriteAggregate(path string, rows []aggregate.Row, g aggregate.Granularity) error {
	bucketColumn := map[aggregate.Granularity]string{
		aggregate.Hourly:  "hour_of_day",
		aggregate.Daily:   "day_of_week",
		aggregate.Monthly: "month",
	}[g]

	header := []string{bucketColumn, "label"}
	if g == aggregate.Monthly {
		header = append(header, "season")
	}
	header = append(header, "area", "pedestrian_count", "sample_count")
	header = append(header, domain.Pollutants...)

	return writeAtomic(path, func(w *csv.Writer) error {
		if err := w.Write(header); err != nil {
			return err
		}
		for _, row := range rows {
			record := make([]string, 0, len(header))
			record = append(record, strconv.Itoa(row.Bucket), row.Label)
			if g == aggregate.Monthly {
				record = append(record, row.Season)
			}
			record = append(record,
				row.Area,
				formatFloat(row.PedestrianMean),
				strconv.Itoa(row.SampleCount),
			)
			for _, r := range row.Slice() {
				record = append(record, formatReading(r))
			}
			if err := w.Write(record); err != nil {
				return err
			}
		}
		return nil
	})
}

// ParseTimestamp parses a timestamp previously written by this package,
// for consumers reloading the final tables.
func ParseTimestamp(s string) (time.Time, error) {
	return time.ParseInLocation(timestampLayout, s, domain.AEST)
}

// formatReading renders a missing reading as an empty field, never as 0.
func formatReading(r domain.Reading) string {
	if !r.Valid {
		return ""
	}
	return formatFloat(r.Value)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// writeAtomic writes CSV content to a temporary file next to path, then
// renames it into place.
func writeAtomic(path string, fn func(w *csv.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp output: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := fn(w); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp output: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("move %s into place: %w", path, err)
	}
	return nil
}
