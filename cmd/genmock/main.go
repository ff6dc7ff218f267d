// Command genmock writes a deterministic synthetic OVATION aurora document
// covering the full global grid (longitude 0..359, latitude -90..90). The
// intensities form two auroral ovals so the service, cmd/convert, and
// cmd/validate can be exercised offline with realistic shapes and zero cells.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock/ovation_aurora_latest.json
//	go run ./cmd/genmock -out data/mock/ovation_kp8.json -kp 8
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/couchcryptid/aurora-forecast-etl/internal/domain"
	"github.com/jonboulle/clockwork"
)

// observedAt fixes the document timestamps so repeated runs are byte-identical.
var observedAt = time.Date(2024, time.May, 10, 17, 5, 0, 0, time.UTC)

// forecastLead is how far ahead of the observation OVATION forecasts.
const forecastLead = 35 * time.Minute

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path for the synthetic OVATION JSON document")
	kp := flag.Float64("kp", 5, "geomagnetic activity (0-9); higher pushes the oval equatorward and brightens it")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	if *kp < 0 || *kp > 9 {
		return fmt.Errorf("-kp must be between 0 and 9, got %v", *kp)
	}

	// Set a fixed clock for reproducible timestamps.
	domain.SetClock(clockwork.NewFakeClockAt(observedAt))
	defer domain.SetClock(nil)

	doc := generate(*kp)

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(*out, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", *out, err)
	}

	fc, stats, err := domain.TransformWithStats(doc, domain.TransformOptions{ExcludeZero: true})
	if err != nil {
		return fmt.Errorf("self-check transform: %w", err)
	}
	peak, _ := fc.MaxAurora()
	fmt.Printf("wrote %s: %d cells, %d non-zero, peak %.0f\n", *out, stats.Input, stats.Output, peak)
	return nil
}

// generate builds the grid in OVATION order: longitude-major, latitude ascending.
func generate(kp float64) domain.RawForecastDocument {
	observation := domain.Now().Format(time.RFC3339)
	forecast := domain.Now().Add(forecastLead).Format(time.RFC3339)

	coords := make([]json.RawMessage, 0, 360*181)
	for lon := 0; lon < 360; lon++ {
		for lat := -90; lat <= 90; lat++ {
			v := intensity(float64(lon), float64(lat), kp)
			coords = append(coords, json.RawMessage("["+strconv.Itoa(lon)+","+strconv.Itoa(lat)+","+strconv.Itoa(v)+"]"))
		}
	}

	return domain.RawForecastDocument{
		ObservationTime: &observation,
		ForecastTime:    &forecast,
		DataFormat:      "[Longitude, Latitude, Aurora]",
		Coordinates:     coords,
	}
}

// intensity models each oval as a Gaussian band whose latitude drops as kp
// rises, brighter on the night side (longitude 180 at the fixed time).
func intensity(lon, lat, kp float64) int {
	center := 67 - 2*kp // oval latitude in degrees
	width := 2.5 + 0.3*kp
	peak := 8 + 6*kp

	d := math.Abs(math.Abs(lat) - center)
	band := math.Exp(-(d * d) / (2 * width * width))
	night := 0.6 + 0.4*math.Cos((lon-180)*math.Pi/180)

	v := int(math.Round(peak * band * night))
	if v < 1 {
		return 0
	}
	return min(v, 100)
}
