package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// GeoJSON type literals.
const (
	TypeFeatureCollection = "FeatureCollection"
	TypeFeature           = "Feature"
	TypePoint             = "Point"

	// ContentTypeGeoJSON is the media type of the published artifact (RFC 7946).
	ContentTypeGeoJSON = "application/geo+json"
)

// FeatureCollection is a GeoJSON FeatureCollection. Field order fixes the
// serialized key order.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Feature is a GeoJSON Point feature carrying one forecast cell.
type Feature struct {
	Type       string     `json:"type"`
	Geometry   Geometry   `json:"geometry"`
	Properties Properties `json:"properties"`
}

// Geometry is a GeoJSON Point. Coordinates are [longitude, latitude].
type Geometry struct {
	Type        string        `json:"type"`
	Coordinates []json.Number `json:"coordinates"`
}

// Properties holds the forecast values of one cell. The timestamps are omitted
// when the timing variant is disabled or the source document lacks them.
type Properties struct {
	Aurora          json.Number `json:"aurora"`
	ObservationTime *string     `json:"observationTime,omitempty"`
	ForecastTime    *string     `json:"forecastTime,omitempty"`
}

// MarshalCollection renders fc as JSON. An empty indent produces compact
// output. HTML escaping is disabled so timestamps are emitted byte for byte.
// The result always ends in a newline.
func MarshalCollection(fc FeatureCollection, indent string) ([]byte, error) {
	if fc.Features == nil {
		fc.Features = []Feature{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(fc); err != nil {
		return nil, fmt.Errorf("encode feature collection: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalCollection parses a serialized FeatureCollection.
func UnmarshalCollection(data []byte) (FeatureCollection, error) {
	var fc FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return FeatureCollection{}, fmt.Errorf("decode feature collection: %w", err)
	}
	if fc.Type != TypeFeatureCollection {
		return FeatureCollection{}, fmt.Errorf("decode feature collection: type is %q, want %q", fc.Type, TypeFeatureCollection)
	}
	if fc.Features == nil {
		fc.Features = []Feature{}
	}
	return fc, nil
}

// MaxAurora returns the highest intensity in the collection and false when
// the collection is empty.
func (fc FeatureCollection) MaxAurora() (float64, bool) {
	var (
		maxVal float64
		found  bool
	)
	for _, f := range fc.Features {
		v, err := f.Properties.Aurora.Float64()
		if err != nil {
			continue
		}
		if !found || v > maxVal {
			maxVal = v
			found = true
		}
	}
	return maxVal, found
}
