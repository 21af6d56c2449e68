// Package aggregate derives the hourly/daily/monthly analysis views from
// joined rows. Views are pure functions of their input and are fully
// regenerated each run; they hold no state of their own.
package aggregate

import (
	"sort"
	"time"

	"github.com/archeltaneka/melbourne-air-quality-pedestrian-traffic-analysis/internal/domain"
)

// Granularity selects the time-bucketing level of a view.
type Granularity string

const (
	Hourly  Granularity = "hourly"  // hour of day, 0-23
	Daily   Granularity = "daily"   // ISO weekday, 1 (Monday) - 7 (Sunday)
	Monthly Granularity = "monthly" // calendar month, 1-12
)

// Row is one (area, bucket) group of a view. Pollutant means cover only the
// rows carrying a valid reading; a pollutant with no contributing reading
// stays missing. Season is set on monthly rows only.
type Row struct {
	Area           string
	Bucket         int
	Label          string
	Season         string
	PedestrianMean float64
	SampleCount    int
	domain.Readings
}

// Season returns the southern-hemisphere season for a calendar month.
func Season(month time.Month) string {
	switch month {
	case time.December, time.January, time.February:
		return "summer"
	case time.March, time.April, time.May:
		return "autumn"
	case time.June, time.July, time.August:
		return "winter"
	default:
		return "spring"
	}
}

// isoWeekday maps time.Weekday (Sunday=0) to ISO 8601 (Monday=1 ... Sunday=7).
func isoWeekday(d time.Weekday) int {
	if d == time.Sunday {
		return 7
	}
	return int(d)
}

func bucketOf(ts time.Time, g Granularity) (int, string) {
	switch g {
	case Hourly:
		return ts.Hour(), ts.Format("15:00")
	case Daily:
		return isoWeekday(ts.Weekday()), ts.Weekday().String()
	default:
		return int(ts.Month()), ts.Month().String()
	}
}

type groupKey struct {
	area   string
	bucket int
}

type accumulator struct {
	label    string
	pedSum   int
	count    int
	pollSum  [5]float64
	pollSeen [5]int
}

// Compute groups joined rows by (area, bucket) and takes the arithmetic mean
// of pedestrian counts and of each pollutant. Groups with zero contributing
// rows are never emitted. Output is sorted by (area, bucket), so recomputing
// over the same input yields identical output.
func Compute(rows []domain.JoinedRow, g Granularity) []Row {
	groups := make(map[groupKey]*accumulator)
	for _, row := range rows {
		bucket, label := bucketOf(row.Timestamp, g)
		key := groupKey{area: row.Area, bucket: bucket}
		acc, ok := groups[key]
		if !ok {
			acc = &accumulator{label: label}
			groups[key] = acc
		}
		acc.pedSum += row.Count
		acc.count++
		for i, r := range row.Slice() {
			if r.Valid {
				acc.pollSum[i] += r.Value
				acc.pollSeen[i]++
			}
		}
	}

	out := make([]Row, 0, len(groups))
	for key, acc := range groups {
		row := Row{
			Area:           key.area,
			Bucket:         key.bucket,
			Label:          acc.label,
			PedestrianMean: float64(acc.pedSum) / float64(acc.count),
			SampleCount:    acc.count,
		}
		if g == Monthly {
			row.Season = Season(time.Month(key.bucket))
		}
		for i, name := range domain.Pollutants {
			if acc.pollSeen[i] > 0 {
				row.Set(name, domain.ReadingOf(acc.pollSum[i]/float64(acc.pollSeen[i])))
			}
		}
		out = append(out, row)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Area != out[j].Area {
			return out[i].Area < out[j].Area
		}
		return out[i].Bucket < out[j].Bucket
	})
	return out
}
