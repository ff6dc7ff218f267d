package pipeline

import (
	"context"

	"github.com/couchcryptid/aurora-forecast-etl/internal/domain"
)

// ForecastTransformer implements Transformer with a fixed set of options.
type ForecastTransformer struct {
	opts domain.TransformOptions
}

// NewTransformer creates a ForecastTransformer.
func NewTransformer(opts domain.TransformOptions) *ForecastTransformer {
	return &ForecastTransformer{opts: opts}
}

func (t *ForecastTransformer) Transform(_ context.Context, doc domain.RawForecastDocument) (domain.FeatureCollection, domain.TransformStats, error) {
	return domain.TransformWithStats(doc, t.opts)
}
