package domain

import (
	"fmt"
	"math"
	"sort"
	"time"
)

const earthRadiusKm = 6371.0

// Haversine returns the great-circle distance between two coordinates in
// kilometres.
func Haversine(a, b Geo) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// JoinStats reports rows the join excluded.
type JoinStats struct {
	Unjoined      int // no assignable site, or no air row for the hour
	RejectSamples []string
}

func (s *JoinStats) drop(sample string) {
	s.Unjoined++
	if len(s.RejectSamples) < maxRejectSamples {
		s.RejectSamples = append(s.RejectSamples, sample)
	}
}

// AssignSites maps every area to its nearest monitoring site by haversine
// distance, ties broken by the lexicographically smaller site name so the
// assignment is a pure function of its inputs. Overrides (area name → site
// name) win unconditionally, including overrides naming a site absent from
// the air data, which leaves that area unjoinable.
func AssignSites(areas map[string]Geo, sites map[string]Geo, overrides map[string]string) map[string]string {
	siteNames := make([]string, 0, len(sites))
	for name := range sites {
		siteNames = append(siteNames, name)
	}
	sort.Strings(siteNames)

	assignment := make(map[string]string, len(areas))
	for area, geo := range areas {
		if site, ok := overrides[area]; ok {
			assignment[area] = site
			continue
		}
		best := ""
		bestDist := math.Inf(1)
		for _, site := range siteNames {
			if d := Haversine(geo, sites[site]); d < bestDist {
				best = site
				bestDist = d
			}
		}
		if best != "" {
			assignment[area] = best
		}
	}
	return assignment
}

// Join associates each pedestrian row with the air-quality row of its
// assigned monitoring site at the exact same hour. There is no forward or
// backward fill: a missing match drops the pedestrian row, counted in the
// stats, so no partially populated row passes downstream. Join is a pure
// function of its inputs; identical inputs always produce identical output.
func Join(ped []PedestrianRow, air []AirQualityRow, overrides map[string]string) ([]JoinedRow, JoinStats) {
	var stats JoinStats

	sites := make(map[string]Geo)
	airByKey := make(map[siteHourKey]AirQualityRow, len(air))
	for _, row := range air {
		if _, ok := sites[row.Site]; !ok {
			sites[row.Site] = row.Geo
		}
		airByKey[siteHourKey{site: row.Site, ts: row.Timestamp}] = row
	}

	areas := make(map[string]Geo)
	for _, row := range ped {
		if _, ok := areas[row.Area]; !ok {
			areas[row.Area] = row.Geo
		}
	}

	assignment := AssignSites(areas, sites, overrides)

	joined := make([]JoinedRow, 0, len(ped))
	for _, row := range ped {
		site, ok := assignment[row.Area]
		if !ok {
			stats.drop(fmt.Sprintf("%s: no monitoring site assignable", row.Area))
			continue
		}
		airRow, ok := airByKey[siteHourKey{site: site, ts: row.Timestamp}]
		if !ok {
			stats.drop(fmt.Sprintf("%s: no air data for site %q at %s",
				row.Area, site, row.Timestamp.Format(time.DateTime)))
			continue
		}
		joined = append(joined, JoinedRow{
			Area:      row.Area,
			Geo:       row.Geo,
			Timestamp: row.Timestamp,
			Count:     row.Count,
			Site:      site,
			Readings:  airRow.Readings,
		})
	}
	return joined, stats
}
