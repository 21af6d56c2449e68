// Package domain models the two Melbourne open datasets this pipeline aligns:
// EPA Victoria hourly air-quality readings and City of Melbourne pedestrian
// counts.
//
// # Data Sources
//
// Air quality comes from the EPA AirWatch yearly export: one row per
// (site, timestamp, parameter) in long format, with site coordinates repeated
// on every row. Only the five pollutant parameters CO, NO2, O3, PM2.5 and
// PM10 are kept; meteorological and instrument channels (BSP, SWS, VWD, VWS,
// Sigma05, BPM2.5, SIG05) are ignored.
//
// Pedestrian counts come from the City of Melbourne monthly downloads: wide
// CSVs with a Date column (day/month/year), an Hour column (0-23), and one
// column per sensor location. Location names are free text and drift across
// files ("Lincoln - Swanston (W)" vs "Lincoln - Swanston (West)"), which is
// why resolution against a canonical geocoded area set happens before any
// joining.
//
// # Timestamps
//
// All timestamps are normalized to Australian Eastern Standard Time, a fixed
// UTC+10 offset with no daylight saving adjustment, and truncated to the
// hour. The air source publishes hourly averages; the pedestrian source
// publishes one observation per sensor per hour.
//
// # Missing vs zero
//
// A pollutant value of zero is a real reading. Absent, non-numeric, sentinel
// ("-", "NA") and negative raw values all become the tagged no-reading state
// of [Reading] and stay distinguishable from zero through every downstream
// table, serializing as an empty CSV field and a JSON null.
//
// # Duplicate policy
//
// Two raw air records colliding on (site, hour, parameter) keep the later
// record in input order. Two pedestrian observations colliding on
// (area, hour) are summed: multiple sensors mapped to the same canonical
// area measure disjoint foot traffic, while repeated pollutant readings from
// one site do not add.
package domain
