package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDocument(t *testing.T) {
	t.Run("full document", func(t *testing.T) {
		data := []byte(`{"Observation Time": "2024-05-10T17:05:00Z", "Forecast Time": "2024-05-10T17:40:00Z", "Data Format": "[Longitude, Latitude, Aurora]", "coordinates": [[0, -90, 4], [0, -89, 0]]}`)
		doc, err := DecodeDocument(data)
		require.NoError(t, err)

		assert.Equal(t, "2024-05-10T17:05:00Z", Deref(doc.ObservationTime))
		assert.Equal(t, "2024-05-10T17:40:00Z", Deref(doc.ForecastTime))
		assert.Equal(t, "[Longitude, Latitude, Aurora]", doc.DataFormat)
		require.Len(t, doc.Coordinates, 2)
		assert.JSONEq(t, `[0, -90, 4]`, string(doc.Coordinates[0]))
	})

	t.Run("timestamps optional", func(t *testing.T) {
		doc, err := DecodeDocument([]byte(`{"coordinates": [], "Observation Time": null}`))
		require.NoError(t, err)
		assert.Nil(t, doc.ObservationTime)
		assert.Nil(t, doc.ForecastTime)
		assert.NotNil(t, doc.Coordinates)
		assert.Empty(t, doc.Coordinates)
	})

	t.Run("wrong data format type is ignored", func(t *testing.T) {
		doc, err := DecodeDocument([]byte(`{"coordinates": [], "Data Format": 3}`))
		require.NoError(t, err)
		assert.Empty(t, doc.DataFormat)
	})
}

func TestDecodeDocument_InvalidJSON(t *testing.T) {
	for _, data := range []string{`{invalid json`, ``, `{"coordinates": [[1,2,3]]`} {
		_, err := DecodeDocument([]byte(data))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidJSON), "input %q: %v", data, err)
	}
}

func TestDecodeDocument_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data string
		path string
	}{
		{"top-level array", `[[1,2,3]]`, "document"},
		{"top-level null", `null`, "document"},
		{"missing coordinates", `{"Observation Time": "x"}`, "coordinates"},
		{"null coordinates", `{"coordinates": null}`, "coordinates"},
		{"coordinates object", `{"coordinates": {"0": [1,2,3]}}`, "coordinates"},
		{"coordinates string", `{"coordinates": "[[1,2,3]]"}`, "coordinates"},
		{"numeric observation time", `{"coordinates": [], "Observation Time": 1704067200}`, "Observation Time"},
		{"array forecast time", `{"coordinates": [], "Forecast Time": ["x"]}`, "Forecast Time"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeDocument([]byte(tt.data))
			require.Error(t, err)

			var malformedErr *MalformedInputError
			require.True(t, errors.As(err, &malformedErr), "want *MalformedInputError, got %T: %v", err, err)
			assert.Equal(t, tt.path, malformedErr.Path)
			assert.False(t, errors.Is(err, ErrInvalidJSON))
		})
	}
}

func TestRawForecastDocument_MarshalJSON(t *testing.T) {
	obs := "2024-01-01T00:00Z"
	doc := RawForecastDocument{
		ObservationTime: &obs,
		Coordinates:     []json.RawMessage{json.RawMessage(`[1,2,3]`)},
	}

	data, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Observation Time": "2024-01-01T00:00Z", "coordinates": [[1,2,3]]}`, string(data))

	back, err := DecodeDocument(data)
	require.NoError(t, err)
	assert.Equal(t, doc, back)
}
