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

// ReadPedestrian reads one wide-format monthly pedestrian CSV: a Date
// column, an Hour column, and one count column per sensor location. Each
// (row, location column) cell becomes one raw record. Returns the records,
// the number of skipped malformed rows, and a fatal error when the file is
// unreadable or lacks the Date/Hour columns.
func ReadPedestrian(path string) ([]domain.RawPedestrianRecord, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open pedestrian source: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read pedestrian header: %w", err)
	}

	dateIdx, hourIdx := -1, -1
	type locationColumn struct {
		name  string
		index int
	}
	var locations []locationColumn
	for i, name := range header {
		name = strings.TrimSpace(name)
		switch strings.ToLower(name) {
		case "date":
			dateIdx = i
		case "hour":
			hourIdx = i
		default:
			if name != "" {
				locations = append(locations, locationColumn{name: name, index: i})
			}
		}
	}
	if dateIdx < 0 {
		return nil, 0, fmt.Errorf("pedestrian source %s: missing required column %q", filepath.Base(path), "Date")
	}
	if hourIdx < 0 {
		return nil, 0, fmt.Errorf("pedestrian source %s: missing required column %q", filepath.Base(path), "Hour")
	}
	if len(locations) == 0 {
		return nil, 0, fmt.Errorf("pedestrian source %s: no location columns", filepath.Base(path))
	}

	source := filepath.Base(path)
	var records []domain.RawPedestrianRecord
	skipped := 0
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil || len(row) < len(header) {
			skipped++
			continue
		}
		for _, loc := range locations {
			records = append(records, domain.RawPedestrianRecord{
				Location:   loc.name,
				Date:       row[dateIdx],
				Hour:       row[hourIdx],
				Count:      row[loc.index],
				SourceFile: source,
			})
		}
	}
	return records, skipped, nil
}
