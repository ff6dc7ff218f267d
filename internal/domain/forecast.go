package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Upstream JSON keys of the OVATION document.
const (
	keyObservationTime = "Observation Time"
	keyForecastTime    = "Forecast Time"
	keyDataFormat      = "Data Format"
	keyCoordinates     = "coordinates"
)

// RawForecastDocument is the OVATION document after JSON parsing. Coordinate
// entries stay raw until [Transform] validates them one by one, so a bad cell
// is reported with its index instead of failing the whole decode.
type RawForecastDocument struct {
	ObservationTime *string
	ForecastTime    *string
	DataFormat      string
	Coordinates     []json.RawMessage
}

// wireDocument mirrors the upstream key names for encoding.
type wireDocument struct {
	ObservationTime *string           `json:"Observation Time,omitempty"`
	ForecastTime    *string           `json:"Forecast Time,omitempty"`
	DataFormat      string            `json:"Data Format,omitempty"`
	Coordinates     []json.RawMessage `json:"coordinates"`
}

// MarshalJSON encodes the document with the upstream key names.
func (d RawForecastDocument) MarshalJSON() ([]byte, error) {
	coords := d.Coordinates
	if coords == nil {
		coords = []json.RawMessage{}
	}
	return json.Marshal(wireDocument{
		ObservationTime: d.ObservationTime,
		ForecastTime:    d.ForecastTime,
		DataFormat:      d.DataFormat,
		Coordinates:     coords,
	})
}

// DecodeDocument parses an OVATION document. Syntax errors wrap ErrInvalidJSON;
// a missing or non-array "coordinates" field or non-string timestamps yield a
// *MalformedInputError.
func DecodeDocument(data []byte) (RawForecastDocument, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return RawForecastDocument{}, malformed("document", "top-level value is %s, want object", typeErr.Value)
		}
		return RawForecastDocument{}, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if fields == nil {
		return RawForecastDocument{}, malformed("document", "top-level value is null, want object")
	}

	var doc RawForecastDocument

	rawCoords, ok := fields[keyCoordinates]
	if !ok {
		return RawForecastDocument{}, malformed(keyCoordinates, "field is missing")
	}
	if isNull(rawCoords) {
		return RawForecastDocument{}, malformed(keyCoordinates, "field is null, want array")
	}
	if err := json.Unmarshal(rawCoords, &doc.Coordinates); err != nil {
		return RawForecastDocument{}, malformed(keyCoordinates, "field is not an array")
	}
	if doc.Coordinates == nil {
		doc.Coordinates = []json.RawMessage{}
	}

	var err error
	if doc.ObservationTime, err = optionalString(fields, keyObservationTime); err != nil {
		return RawForecastDocument{}, err
	}
	if doc.ForecastTime, err = optionalString(fields, keyForecastTime); err != nil {
		return RawForecastDocument{}, err
	}
	// "Data Format" is informational only; a wrong type is not worth failing a run over.
	if raw, ok := fields[keyDataFormat]; ok {
		_ = json.Unmarshal(raw, &doc.DataFormat)
	}

	return doc, nil
}

// optionalString decodes a string field that may be absent or null.
func optionalString(fields map[string]json.RawMessage, key string) (*string, error) {
	raw, ok := fields[key]
	if !ok || isNull(raw) {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, malformed(key, "field is not a string")
	}
	return &s, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
