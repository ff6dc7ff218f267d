package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// TransformOptions selects the variant of the grid-to-GeoJSON conversion.
type TransformOptions struct {
	// ExcludeZero drops cells whose intensity is numerically zero.
	ExcludeZero bool
	// IncludeTimes copies the document timestamps into every feature.
	IncludeTimes bool
}

// TransformStats describes what a Transform call kept and dropped.
type TransformStats struct {
	Input    int
	Output   int
	Filtered int
}

// cell is one validated [lon, lat, aurora] entry.
type cell struct {
	lon, lat, aurora json.Number
}

// Transform converts the forecast grid to a FeatureCollection. Cells keep
// document order; coincident cells are not merged. An empty grid produces a
// collection with an empty (non-nil) feature list.
//
// The first entry with fewer than three elements or a non-numeric value among
// its first three aborts the transform with a *MalformedInputError. Extra
// trailing elements are ignored.
func Transform(doc RawForecastDocument, opts TransformOptions) (FeatureCollection, error) {
	fc, _, err := TransformWithStats(doc, opts)
	return fc, err
}

// TransformWithStats is Transform plus a count of kept and dropped cells.
func TransformWithStats(doc RawForecastDocument, opts TransformOptions) (FeatureCollection, TransformStats, error) {
	stats := TransformStats{Input: len(doc.Coordinates)}
	fc := FeatureCollection{
		Type:     TypeFeatureCollection,
		Features: make([]Feature, 0, len(doc.Coordinates)),
	}

	var observation, forecast *string
	if opts.IncludeTimes {
		observation, forecast = doc.ObservationTime, doc.ForecastTime
	}

	for i, raw := range doc.Coordinates {
		c, err := decodeCell(raw)
		if err != nil {
			return FeatureCollection{}, stats, malformed(fmt.Sprintf("%s[%d]", keyCoordinates, i), "%s", err)
		}
		if opts.ExcludeZero && IsZero(c.aurora) {
			stats.Filtered++
			continue
		}
		fc.Features = append(fc.Features, Feature{
			Type: TypeFeature,
			Geometry: Geometry{
				Type:        TypePoint,
				Coordinates: []json.Number{c.lon, c.lat},
			},
			Properties: Properties{
				Aurora:          c.aurora,
				ObservationTime: observation,
				ForecastTime:    forecast,
			},
		})
	}

	stats.Output = len(fc.Features)
	return fc, stats, nil
}

// decodeCell validates one coordinate entry. The returned error text is the
// reason only; the caller adds the index.
func decodeCell(raw json.RawMessage) (cell, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var elems []any
	if err := dec.Decode(&elems); err != nil || elems == nil {
		return cell{}, fmt.Errorf("entry is not an array")
	}
	if len(elems) < 3 {
		return cell{}, fmt.Errorf("entry has %d element(s), want [longitude, latitude, aurora]", len(elems))
	}

	names := [3]string{"longitude", "latitude", "aurora"}
	var nums [3]json.Number
	for j := range nums {
		n, ok := elems[j].(json.Number)
		if !ok {
			return cell{}, fmt.Errorf("%s is %s, want number", names[j], describe(elems[j]))
		}
		nums[j] = n
	}
	return cell{lon: nums[0], lat: nums[1], aurora: nums[2]}, nil
}

// IsZero reports whether the intensity literal n is numerically zero ("0", "0.0", "-0", "0e5").
// It reads the literal's mantissa digits, so values that would underflow
// float64 (such as 1e-400) are not zero.
func IsZero(n json.Number) bool {
	mantissa := strings.TrimPrefix(n.String(), "-")
	if i := strings.IndexAny(mantissa, "eE"); i >= 0 {
		mantissa = mantissa[:i]
	}
	if mantissa == "" {
		return false
	}
	for _, r := range mantissa {
		if r != '0' && r != '.' {
			return false
		}
	}
	return true
}

func describe(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "a string"
	case bool:
		return "a boolean"
	case []any:
		return "an array"
	case map[string]any:
		return "an object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
