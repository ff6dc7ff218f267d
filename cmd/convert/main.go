// Command convert turns a locally saved OVATION aurora document into a GeoJSON
// FeatureCollection without touching any object store.
//
// Usage:
//
//	go run ./cmd/convert -preset basic                  # source.json -> output.geojson
//	go run ./cmd/convert -preset timed                  # Aurora_Latest.json -> aurora_forecast.geojson
//	go run ./cmd/convert -in latest.json -out oval.geojson -exclude-zero -indent ""
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/couchcryptid/aurora-forecast-etl/internal/domain"
)

type preset struct {
	in, out string
	opts    domain.TransformOptions
}

var presets = map[string]preset{
	"basic": {in: "source.json", out: "output.geojson"},
	"timed": {in: "Aurora_Latest.json", out: "aurora_forecast.geojson", opts: domain.TransformOptions{IncludeTimes: true}},
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	fs.SetOutput(stderr)
	presetName := fs.String("preset", "timed", "conversion preset: basic (intensity only) or timed (with timestamps)")
	in := fs.String("in", "", "input OVATION JSON file (default from preset)")
	out := fs.String("out", "", "output GeoJSON file (default from preset)")
	excludeZero := fs.Bool("exclude-zero", false, "drop cells with zero aurora intensity")
	indent := fs.String("indent", "  ", "JSON indent; empty for compact output")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	p, ok := presets[*presetName]
	if !ok {
		fmt.Fprintf(stderr, "unknown preset %q: want basic or timed\n", *presetName)
		return 1
	}
	if *in == "" {
		*in = p.in
	}
	if *out == "" {
		*out = p.out
	}
	opts := p.opts
	opts.ExcludeZero = *excludeZero

	stats, err := convert(*in, *out, opts, *indent)
	if err != nil {
		fmt.Fprintf(stderr, "convert: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "wrote %s: %d features (%d input cells, %d filtered)\n", *out, stats.Output, stats.Input, stats.Filtered)
	return 0
}

func convert(inPath, outPath string, opts domain.TransformOptions, indent string) (domain.TransformStats, error) {
	data, err := os.ReadFile(inPath)
	if err != nil {
		return domain.TransformStats{}, fmt.Errorf("read input: %w", err)
	}

	doc, err := domain.DecodeDocument(data)
	if err != nil {
		return domain.TransformStats{}, fmt.Errorf("parse %s: %w", inPath, err)
	}

	fc, stats, err := domain.TransformWithStats(doc, opts)
	if err != nil {
		return stats, fmt.Errorf("transform %s: %w", inPath, err)
	}

	body, err := domain.MarshalCollection(fc, indent)
	if err != nil {
		return stats, fmt.Errorf("encode: %w", err)
	}
	if err := os.WriteFile(outPath, body, 0o644); err != nil {
		return stats, fmt.Errorf("write output: %w", err)
	}
	return stats, nil
}
