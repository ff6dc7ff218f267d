// Command validate checks a published GeoJSON artifact against the OVATION
// document it was built from. It verifies feature counts under the chosen
// filter, coordinate and intensity parity, timestamp denormalization, and that
// re-running the transform reproduces the artifact exactly.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -source data/mock/ovation_aurora_latest.json \
//	  -geojson data/public/aurora_forecast.geojson \
//	  -exclude-zero -times \
//	  -report validation.yaml
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/couchcryptid/aurora-forecast-etl/internal/domain"
	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"
)

// maxErrorsPerPhase keeps reports readable when a whole grid is off.
const maxErrorsPerPhase = 20

// phase tracks pass/fail for a validation phase.
type phase struct {
	name    string
	errors  []string
	dropped int
}

func (p *phase) errorf(format string, args ...any) {
	if len(p.errors) >= maxErrorsPerPhase {
		p.dropped++
		return
	}
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// sourceCell is one coordinates entry read independently of the domain decoder.
type sourceCell struct {
	lon, lat, aurora json.Number
}

func main() {
	source := flag.String("source", "", "path to the OVATION source JSON document")
	geojson := flag.String("geojson", "", "path to the GeoJSON artifact to check")
	excludeZero := flag.Bool("exclude-zero", true, "artifact was built with zero-intensity cells removed")
	times := flag.Bool("times", true, "artifact carries observation and forecast timestamps")
	report := flag.String("report", "", "optional path for a YAML report")
	flag.Parse()

	if *source == "" || *geojson == "" {
		flag.Usage()
		os.Exit(1)
	}

	opts := domain.TransformOptions{ExcludeZero: *excludeZero, IncludeTimes: *times}
	if code := run(*source, *geojson, opts, *report); code != 0 {
		os.Exit(code)
	}
}

func run(sourcePath, geojsonPath string, opts domain.TransformOptions, reportPath string) int {
	fmt.Println("=== Aurora Forecast Integrity Validation ===")
	fmt.Println()

	sourceData, err := os.ReadFile(sourcePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: read source: %v\n", err)
		return 1
	}
	doc, err := domain.DecodeDocument(sourceData)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: parse source: %v\n", err)
		return 1
	}
	cells, err := decodeCells(doc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	artifactData, err := os.ReadFile(geojsonPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: read artifact: %v\n", err)
		return 1
	}
	fc, err := domain.UnmarshalCollection(artifactData)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: parse artifact: %v\n", err)
		return 1
	}

	kept := keptCells(cells, opts.ExcludeZero)

	// ── Run validation phases ──
	phases := []*phase{
		validateStructure(fc),
		validateCounts(fc, cells, kept, opts),
		validateParity(fc, kept),
		validateTimestamps(fc, doc, opts),
		validateDeterminism(doc, fc, opts),
	}

	// ── Report results ──
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors)+p.dropped)
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Cells: %d source, %d expected after filter, %d features in artifact\n",
		len(cells), len(kept), len(fc.Features))

	// Print detailed errors.
	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
		if p.dropped > 0 {
			fmt.Printf("  ... and %d more\n", p.dropped)
		}
	}

	if reportPath != "" {
		if err := writeReport(reportPath, sourcePath, geojsonPath, opts, phases); err != nil {
			fmt.Fprintf(os.Stderr, "write report: %v\n", err)
			return 1
		}
		fmt.Printf("\nReport written to %s\n", reportPath)
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func decodeCells(doc domain.RawForecastDocument) ([]sourceCell, error) {
	cells := make([]sourceCell, 0, len(doc.Coordinates))
	for i, raw := range doc.Coordinates {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var values []json.Number
		if err := dec.Decode(&values); err != nil || len(values) < 3 {
			return nil, fmt.Errorf("source coordinates[%d] is not a [lon, lat, aurora] triple: %s", i, raw)
		}
		cells = append(cells, sourceCell{lon: values[0], lat: values[1], aurora: values[2]})
	}
	return cells, nil
}

func keptCells(cells []sourceCell, excludeZero bool) []sourceCell {
	if !excludeZero {
		return cells
	}
	kept := make([]sourceCell, 0, len(cells))
	for _, c := range cells {
		if domain.IsZero(c.aurora) {
			continue
		}
		kept = append(kept, c)
	}
	return kept
}

// ── Phase 1: GeoJSON structure ──

func validateStructure(fc domain.FeatureCollection) *phase {
	p := &phase{name: "Phase 1: GeoJSON structure"}
	if fc.Type != domain.TypeFeatureCollection {
		p.errorf("collection type = %q, want %q", fc.Type, domain.TypeFeatureCollection)
	}
	for i, f := range fc.Features {
		if f.Type != domain.TypeFeature {
			p.errorf("features[%d].type = %q", i, f.Type)
		}
		if f.Geometry.Type != domain.TypePoint {
			p.errorf("features[%d].geometry.type = %q", i, f.Geometry.Type)
		}
		if len(f.Geometry.Coordinates) != 2 {
			p.errorf("features[%d] has %d coordinates, want 2", i, len(f.Geometry.Coordinates))
		}
		if f.Properties.Aurora == "" {
			p.errorf("features[%d] is missing aurora", i)
		}
	}
	return p
}

// ── Phase 2: Feature counts ──

func validateCounts(fc domain.FeatureCollection, cells, kept []sourceCell, opts domain.TransformOptions) *phase {
	p := &phase{name: "Phase 2: Feature count vs source"}
	if len(fc.Features) != len(kept) {
		p.errorf("artifact has %d features, source has %d cells (%d after filter, exclude-zero=%v)",
			len(fc.Features), len(cells), len(kept), opts.ExcludeZero)
	}
	if opts.ExcludeZero {
		for i, f := range fc.Features {
			if domain.IsZero(f.Properties.Aurora) {
				p.errorf("features[%d] has zero intensity but the filter is on", i)
			}
		}
	}
	return p
}

// ── Phase 3: Coordinate and intensity parity ──

func validateParity(fc domain.FeatureCollection, kept []sourceCell) *phase {
	p := &phase{name: "Phase 3: Coordinate and intensity parity"}
	n := min(len(fc.Features), len(kept))
	for i := 0; i < n; i++ {
		f, c := fc.Features[i], kept[i]
		if len(f.Geometry.Coordinates) != 2 {
			continue
		}
		if !sameNumber(f.Geometry.Coordinates[0], c.lon) || !sameNumber(f.Geometry.Coordinates[1], c.lat) {
			p.errorf("features[%d] at [%s, %s], source cell at [%s, %s]",
				i, f.Geometry.Coordinates[0], f.Geometry.Coordinates[1], c.lon, c.lat)
		}
		if !sameNumber(f.Properties.Aurora, c.aurora) {
			p.errorf("features[%d] aurora %s, source %s", i, f.Properties.Aurora, c.aurora)
		}
	}
	return p
}

// sameNumber compares by value so 1 and 1.0 match.
func sameNumber(a, b json.Number) bool {
	if a == b {
		return true
	}
	fa, errA := a.Float64()
	fb, errB := b.Float64()
	return errA == nil && errB == nil && fa == fb
}

// ── Phase 4: Timestamp denormalization ──

func validateTimestamps(fc domain.FeatureCollection, doc domain.RawForecastDocument, opts domain.TransformOptions) *phase {
	p := &phase{name: "Phase 4: Timestamp denormalization"}
	var wantObs, wantFc *string
	if opts.IncludeTimes {
		wantObs, wantFc = doc.ObservationTime, doc.ForecastTime
	}
	for i, f := range fc.Features {
		if !equalPtr(f.Properties.ObservationTime, wantObs) {
			p.errorf("features[%d].observationTime = %q, want %q", i,
				domain.Deref(f.Properties.ObservationTime), domain.Deref(wantObs))
		}
		if !equalPtr(f.Properties.ForecastTime, wantFc) {
			p.errorf("features[%d].forecastTime = %q, want %q", i,
				domain.Deref(f.Properties.ForecastTime), domain.Deref(wantFc))
		}
	}
	return p
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// ── Phase 5: Determinism ──

func validateDeterminism(doc domain.RawForecastDocument, fc domain.FeatureCollection, opts domain.TransformOptions) *phase {
	p := &phase{name: "Phase 5: Transform reproduces artifact"}

	first, err := domain.Transform(doc, opts)
	if err != nil {
		p.errorf("transform source: %v", err)
		return p
	}
	second, err := domain.Transform(doc, opts)
	if err != nil {
		p.errorf("transform source again: %v", err)
		return p
	}
	if diff := cmp.Diff(first, second); diff != "" {
		p.errorf("two transforms of the same document differ (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(first, fc); diff != "" {
		p.errorf("artifact differs from a fresh transform (-fresh +artifact):\n%s", diff)
	}
	return p
}

// ── YAML report ──

type reportPhase struct {
	Name   string   `yaml:"name"`
	Passed bool     `yaml:"passed"`
	Errors []string `yaml:"errors,omitempty"`
	More   int      `yaml:"more_errors,omitempty"`
}

type reportDoc struct {
	Source      string        `yaml:"source"`
	Artifact    string        `yaml:"artifact"`
	ExcludeZero bool          `yaml:"exclude_zero"`
	Times       bool          `yaml:"times"`
	Passed      bool          `yaml:"passed"`
	Phases      []reportPhase `yaml:"phases"`
}

func writeReport(path, source, artifact string, opts domain.TransformOptions, phases []*phase) error {
	doc := reportDoc{
		Source:      source,
		Artifact:    artifact,
		ExcludeZero: opts.ExcludeZero,
		Times:       opts.IncludeTimes,
		Passed:      true,
	}
	for _, p := range phases {
		doc.Phases = append(doc.Phases, reportPhase{Name: p.name, Passed: p.passed(), Errors: p.errors, More: p.dropped})
		doc.Passed = doc.Passed && p.passed()
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
