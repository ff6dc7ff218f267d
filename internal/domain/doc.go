// Package domain models the NOAA SWPC OVATION aurora forecast and its GeoJSON
// rendition.
//
// # Data Source
//
// The OVATION Prime model output is published by the Space Weather Prediction
// Center at https://services.swpc.noaa.gov/json/ovation_aurora_latest.json and
// refreshed roughly every five minutes. The document is a single JSON object:
//
//	{
//	  "Observation Time": "2024-01-01T00:00:00Z",
//	  "Forecast Time":    "2024-01-01T00:30:00Z",
//	  "Data Format":      "[Longitude, Latitude, Aurora]",
//	  "coordinates":      [[0, -90, 4], [0, -89, 0], ...]
//	}
//
// # Grid Conventions
//
// Coordinates:
//
//	Each entry is [longitude, latitude, aurora]. The global grid has one cell
//	per integer degree (360 × 181 = 65160 cells). Longitudes run 0..359, not
//	-180..180; they are passed through untouched because map renderers that
//	consume the feed already expect the producer's convention.
//
// Aurora intensity:
//
//	An integer probability of visible aurora, normally 0–100. Most of the
//	globe is 0 at any moment, which is why the published artifact drops zero
//	cells by default: the filtered collection is typically under 5% of the
//	unfiltered size. Only values numerically equal to zero are dropped;
//	negative or out-of-range values are kept as a signal of upstream problems.
//
// Numbers:
//
//	Longitude, latitude and intensity are carried as [encoding/json.Number] so
//	the published text repeats the upstream literal exactly ("18.9553" stays
//	"18.9553", "4" never becomes "4.0").
//
// # Output
//
// [Transform] produces a GeoJSON FeatureCollection of Point features, one per
// retained cell, in input order. [MarshalCollection] renders it with a fixed key
// order so identical input always yields identical bytes.
package domain
