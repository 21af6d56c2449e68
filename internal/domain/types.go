package domain

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrAreaNotFound reports that a geocoding provider returned no match for a
// name. Distinct from transport errors so callers can tell "unknown place"
// apart from "service unreachable" when logging, though both end up in the
// skip-list.
var ErrAreaNotFound = errors.New("area not found")

// AEST is the fixed-offset Australian Eastern Standard Time zone (UTC+10,
// no daylight saving). Every canonical timestamp in the pipeline lives here.
var AEST = time.FixedZone("AEST", 10*60*60)

// Pollutants lists the tracked pollutant parameters in output column order.
var Pollutants = []string{"CO", "NO2", "O3", "PM2.5", "PM10"}

// Reading is a pollutant measurement that may be absent. Zero is a valid
// real reading, so absence is tracked explicitly rather than encoded as 0.
type Reading struct {
	Value float64
	Valid bool
}

// ReadingOf wraps a present measurement value.
func ReadingOf(v float64) Reading {
	return Reading{Value: v, Valid: true}
}

// NoReading is the distinguished "no measurement" marker.
var NoReading = Reading{}

// MarshalJSON encodes a missing reading as null, never as 0.
func (r Reading) MarshalJSON() ([]byte, error) {
	if !r.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(r.Value)
}

// UnmarshalJSON accepts null as the no-reading marker.
func (r *Reading) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = Reading{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*r = Reading{Value: v, Valid: true}
	return nil
}

// Readings holds one Reading per tracked pollutant.
type Readings struct {
	CO   Reading `json:"CO"`
	NO2  Reading `json:"NO2"`
	O3   Reading `json:"O3"`
	PM25 Reading `json:"PM2.5"`
	PM10 Reading `json:"PM10"`
}

// Set stores a reading under its source parameter name. Returns false for
// parameters outside the tracked pollutant set.
func (r *Readings) Set(parameter string, reading Reading) bool {
	switch parameter {
	case "CO":
		r.CO = reading
	case "NO2":
		r.NO2 = reading
	case "O3":
		r.O3 = reading
	case "PM2.5":
		r.PM25 = reading
	case "PM10":
		r.PM10 = reading
	default:
		return false
	}
	return true
}

// Slice returns the readings in Pollutants order.
func (r Readings) Slice() []Reading {
	return []Reading{r.CO, r.NO2, r.O3, r.PM25, r.PM10}
}

// Geo represents a WGS-84 latitude/longitude coordinate pair.
type Geo struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// RawAirMeasurement is one long-format row from the EPA AirWatch export.
// All fields arrive as text; parsing happens during normalization.
// Ephemeral: exists only between ingestion and normalization.
type RawAirMeasurement struct {
	Site       string
	Timestamp  string
	Lat        string
	Lon        string
	Parameter  string
	Value      string
	SourceFile string
}

// RawPedestrianRecord is one (location, hour) observation flattened out of a
// wide monthly pedestrian CSV.
type RawPedestrianRecord struct {
	Location   string
	Date       string
	Hour       string
	Count      string
	SourceFile string
}

// AirQualityRow is the canonical per-(site, hour) air-quality record.
type AirQualityRow struct {
	Site      string    `json:"site"`
	Geo       Geo       `json:"geo"`
	Timestamp time.Time `json:"datetime_aest"`
	Readings
}

// HourlyAirSummary collapses all sites reporting in one hour into a single
// city-wide row, the shape of the air_quality_final table.
type HourlyAirSummary struct {
	Timestamp time.Time
	Readings
}

// PedestrianRow is the canonical per-(area, hour) pedestrian record after
// area resolution and duplicate summing.
type PedestrianRow struct {
	Area      string    `json:"area"`
	Geo       Geo       `json:"geo"`
	Timestamp time.Time `json:"datetime_aest"`
	Count     int       `json:"pedestrian_count"`
}

// JoinedRow is a pedestrian observation enriched with the pollutant readings
// in effect at its assigned monitoring site for the same hour.
type JoinedRow struct {
	Area      string    `json:"area"`
	Geo       Geo       `json:"geo"`
	Timestamp time.Time `json:"datetime_aest"`
	Count     int       `json:"pedestrian_count"`
	Site      string    `json:"site"`
	Readings
}

// CanonicalArea is a stable geocoded pedestrian area.
type CanonicalArea struct {
	Name string
	Geo  Geo
}

// AreaResolver maps a raw pedestrian location string to a canonical area.
// The second return is false when the name cannot be resolved; callers
// exclude such records and count them, resolution failure is never fatal.
type AreaResolver interface {
	Resolve(ctx context.Context, rawName string) (CanonicalArea, bool)
}

// GeocodeResult is a successful lookup from a geocoding provider.
type GeocodeResult struct {
	Geo         Geo
	DisplayName string
}

// Geocoder converts a free-text area name to coordinates.
type Geocoder interface {
	// Geocode resolves name to a coordinate. Returns ErrAreaNotFound when
	// the provider has no match.
	Geocode(ctx context.Context, name string) (GeocodeResult, error)
}
