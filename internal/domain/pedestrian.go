package domain

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// pedestrianDateLayouts cover the date shapes seen across the monthly files.
var pedestrianDateLayouts = []string{
	"2/01/2006",
	"02/01/2006",
	"2006-01-02",
}

// PedestrianStats reports what normalization excluded from a raw pedestrian
// batch.
type PedestrianStats struct {
	Rejected      int // unparseable timestamp or invalid count
	Unresolved    int // location names with no canonical area
	Summed        int // duplicate (area, hour) observations merged by summing
	RejectSamples []string
}

func (s *PedestrianStats) reject(sample string) {
	s.Rejected++
	if len(s.RejectSamples) < maxRejectSamples {
		s.RejectSamples = append(s.RejectSamples, sample)
	}
}

// ParsePedestrianTimestamp combines the Date and Hour columns of a monthly
// pedestrian file into an AEST hour boundary.
func ParsePedestrianTimestamp(date, hour string) (time.Time, error) {
	date = strings.TrimSpace(date)
	hour = strings.TrimSpace(hour)
	if date == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	var day time.Time
	var err error
	for _, layout := range pedestrianDateLayouts {
		if day, err = time.ParseInLocation(layout, date, AEST); err == nil {
			break
		}
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized date %q", date)
	}

	h, err := strconv.Atoi(hour)
	if err != nil || h < 0 || h > 23 {
		return time.Time{}, fmt.Errorf("invalid hour %q", hour)
	}
	return day.Add(time.Duration(h) * time.Hour), nil
}

// parsePedestrianCount parses a raw count cell. Counts are non-negative
// integers; spreadsheet exports sometimes render them as "120.0", which is
// accepted. Negative and non-numeric values are invalid, not zero.
func parsePedestrianCount(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("empty count")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("non-numeric count %q", raw)
	}
	if v < 0 {
		return 0, fmt.Errorf("negative count %q", raw)
	}
	if v != math.Trunc(v) {
		return 0, fmt.Errorf("non-integer count %q", raw)
	}
	return int(v), nil
}

type areaHourKey struct {
	area string
	ts   time.Time
}

// NormalizePedestrian resolves each raw observation's location through the
// resolver and emits one canonical row per (area, hour). Records whose
// location cannot be resolved are excluded and counted; they never halt the
// batch. Duplicate (area, hour) observations are summed because co-located
// sensors measure disjoint foot traffic. Output is sorted by
// (area, timestamp) ascending.
func NormalizePedestrian(ctx context.Context, records []RawPedestrianRecord, resolver AreaResolver) ([]PedestrianRow, PedestrianStats) {
	var stats PedestrianStats
	rows := make(map[areaHourKey]*PedestrianRow)

	for _, rec := range records {
		ts, err := ParsePedestrianTimestamp(rec.Date, rec.Hour)
		if err != nil {
			stats.reject(fmt.Sprintf("%s: %q: %v", rec.SourceFile, rec.Location, err))
			continue
		}

		count, err := parsePedestrianCount(rec.Count)
		if err != nil {
			stats.reject(fmt.Sprintf("%s: %q at %s: %v", rec.SourceFile, rec.Location, ts.Format(time.DateTime), err))
			continue
		}

		area, ok := resolver.Resolve(ctx, rec.Location)
		if !ok {
			stats.Unresolved++
			continue
		}

		key := areaHourKey{area: area.Name, ts: ts}
		if row, exists := rows[key]; exists {
			row.Count += count
			stats.Summed++
			continue
		}
		rows[key] = &PedestrianRow{
			Area:      area.Name,
			Geo:       area.Geo,
			Timestamp: ts,
			Count:     count,
		}
	}

	out := make([]PedestrianRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Area != out[j].Area {
			return out[i].Area < out[j].Area
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, stats
}
