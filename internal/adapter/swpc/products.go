package swpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/couchcryptid/aurora-forecast-etl/internal/domain"
)

// Column layout of the SWPC product tables. The first row is a header.
const (
	kpColumn    = 1 // ["time_tag", "Kp", "a_running", "station_count"]
	speedColumn = 2 // ["time_tag", "density", "speed", "temperature"]
)

// LatestKpIndex returns the most recent planetary K-index reading.
func (c *Client) LatestKpIndex(ctx context.Context) (domain.KpReading, error) {
	body, _, err := c.get(ctx, c.kpURL)
	if err != nil {
		return domain.KpReading{}, err
	}
	tag, kp, err := latestReading(body, kpColumn, "Kp")
	if err != nil {
		return domain.KpReading{}, fmt.Errorf("k-index: %w", err)
	}
	return domain.KpReading{TimeTag: tag, Kp: kp}, nil
}

// LatestSolarWind returns the most recent solar wind speed from the 7-day
// plasma product. Rows with a missing speed are skipped.
func (c *Client) LatestSolarWind(ctx context.Context) (domain.SolarWindReading, error) {
	body, _, err := c.get(ctx, c.solarWindURL)
	if err != nil {
		return domain.SolarWindReading{}, err
	}
	tag, speed, err := latestReading(body, speedColumn, "speed")
	if err != nil {
		return domain.SolarWindReading{}, fmt.Errorf("solar wind: %w", err)
	}
	return domain.SolarWindReading{TimeTag: tag, SpeedKmS: speed}, nil
}

// latestReading walks the product rows from the end and returns the first
// one whose value parses as a number. Rows are either arrays (value at
// column) or objects (value under key); the time tag is column 0 or
// "time_tag".
func latestReading(body []byte, column int, key string) (string, float64, error) {
	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return "", 0, fmt.Errorf("decode product table: %w", err)
	}

	for i := len(rows) - 1; i >= 0; i-- {
		v, err := decodeRow(rows[i])
		if err != nil {
			continue
		}
		var tag, value any
		switch row := v.(type) {
		case []any:
			if len(row) <= column {
				continue
			}
			tag, value = row[0], row[column]
		case map[string]any:
			tag, value = row["time_tag"], row[key]
		default:
			continue
		}
		f, ok := toFloat(value)
		if !ok {
			continue
		}
		s, _ := tag.(string)
		return s, f, nil
	}
	return "", 0, fmt.Errorf("no %s value in %d row(s)", key, len(rows))
}

func decodeRow(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	err := dec.Decode(&v)
	return v, err
}

func toFloat(v any) (float64, bool) {
	var s string
	switch t := v.(type) {
	case json.Number:
		s = t.String()
	case string:
		s = t
	default:
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}
