package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// excludedParameters are the AirWatch channels outside the pollutant set:
// nephelometer, wind, and sigma readings that ride along in the same export.
var excludedParameters = map[string]struct{}{
	"BSP":     {},
	"SWS":     {},
	"VWD":     {},
	"VWS":     {},
	"Sigma05": {},
	"BPM2.5":  {},
	"SIG05":   {},
	"DBT":     {},
	"SO2":     {},
}

// airTimestampLayouts are the timestamp shapes observed in AirWatch exports.
var airTimestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2/01/2006 15:04",
}

// AirStats reports what normalization excluded from a raw air-quality batch.
type AirStats struct {
	Rejected         int      // unparseable timestamps
	IgnoredParameter int      // non-pollutant channels
	Duplicates       int      // later-record-wins collisions
	RejectSamples    []string // up to maxRejectSamples examples for the run summary
}

const maxRejectSamples = 5

func (s *AirStats) reject(sample string) {
	s.Rejected++
	if len(s.RejectSamples) < maxRejectSamples {
		s.RejectSamples = append(s.RejectSamples, sample)
	}
}

// ParseAESTTimestamp parses a raw source timestamp into AEST, truncated to
// the hour boundary.
func ParseAESTTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range airTimestampLayouts {
		if t, err := time.ParseInLocation(layout, raw, AEST); err == nil {
			return t.Truncate(time.Hour), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

// ParseReadingValue parses a raw measurement cell. Empty, sentinel,
// non-numeric, and negative values all become the no-reading marker; they are
// indistinguishable downstream and must never collapse to zero.
func ParseReadingValue(raw string) Reading {
	raw = strings.TrimSpace(raw)
	switch raw {
	case "", "-", "NA", "N/A", "null":
		return NoReading
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return NoReading
	}
	return ReadingOf(v)
}

// parseFloatOrZero parses a coordinate string, returning 0 on failure.
func parseFloatOrZero(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

type siteHourKey struct {
	site string
	ts   time.Time
}

// NormalizeAirQuality pivots long-format raw measurements into one canonical
// row per (site, hour). Records with unparseable timestamps are rejected and
// counted. When two records collide on (site, hour, parameter) the later one
// in input order wins, which makes reruns over the same input deterministic.
// Output is sorted by (site, timestamp) ascending.
func NormalizeAirQuality(records []RawAirMeasurement) ([]AirQualityRow, AirStats) {
	type cellKey struct {
		siteHourKey
		parameter string
	}

	var stats AirStats
	rows := make(map[siteHourKey]*AirQualityRow)
	seen := make(map[cellKey]struct{})

	for _, rec := range records {
		if _, skip := excludedParameters[rec.Parameter]; skip {
			stats.IgnoredParameter++
			continue
		}

		ts, err := ParseAESTTimestamp(rec.Timestamp)
		if err != nil {
			stats.reject(fmt.Sprintf("%s: site %q: %v", rec.SourceFile, rec.Site, err))
			continue
		}

		key := siteHourKey{site: rec.Site, ts: ts}
		row, ok := rows[key]
		if !ok {
			row = &AirQualityRow{
				Site:      rec.Site,
				Geo:       Geo{Lat: parseFloatOrZero(rec.Lat), Lon: parseFloatOrZero(rec.Lon)},
				Timestamp: ts,
			}
			rows[key] = row
		}

		reading := ParseReadingValue(rec.Value)
		if !row.Set(rec.Parameter, reading) {
			stats.IgnoredParameter++
			continue
		}
		cell := cellKey{siteHourKey: key, parameter: rec.Parameter}
		if _, dup := seen[cell]; dup {
			stats.Duplicates++
		}
		seen[cell] = struct{}{}
	}

	out := make([]AirQualityRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Site != out[j].Site {
			return out[i].Site < out[j].Site
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, stats
}

// SummarizeHourly collapses per-site rows into one city-wide row per hour,
// averaging each pollutant over the sites with a valid reading. A pollutant
// no site reported stays missing. Output is sorted by timestamp.
func SummarizeHourly(rows []AirQualityRow) []HourlyAirSummary {
	type acc struct {
		sum   [5]float64
		count [5]int
	}
	byHour := make(map[time.Time]*acc)
	for _, row := range rows {
		a, ok := byHour[row.Timestamp]
		if !ok {
			a = &acc{}
			byHour[row.Timestamp] = a
		}
		for i, r := range row.Slice() {
			if r.Valid {
				a.sum[i] += r.Value
				a.count[i]++
			}
		}
	}

	out := make([]HourlyAirSummary, 0, len(byHour))
	for ts, a := range byHour {
		s := HourlyAirSummary{Timestamp: ts}
		for i, name := range Pollutants {
			if a.count[i] == 0 {
				continue
			}
			s.Set(name, ReadingOf(a.sum[i]/float64(a.count[i])))
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}
