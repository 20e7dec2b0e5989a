package tracing

import (
	"fmt"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const (
	// SamplerAlways samples all traces
	SamplerAlways = "always"

	// SamplerNever samples no traces
	SamplerNever = "never"

	// SamplerRatio samples a fraction of traces by trace id
	SamplerRatio = "ratio"

	// SamplerParentBased follows the parent decision and samples roots by
	// ratio
	SamplerParentBased = "parent_based"
)

// createSampler creates a sampler based on the strategy and ratio.
//
// Pair spans are children of the run span, so under "parent_based" either
// every pair of a run is traced or none is. Use "ratio" to sample pairs
// independently.
func createSampler(strategy string, ratio float64) (sdktrace.Sampler, error) {
	switch strategy {
	case SamplerAlways:
		return sdktrace.AlwaysSample(), nil

	case SamplerNever:
		return sdktrace.NeverSample(), nil

	case SamplerRatio, SamplerParentBased:
		if ratio < 0.0 || ratio > 1.0 {
			return nil, fmt.Errorf("sample ratio must be between 0.0 and 1.0, got %f", ratio)
		}
		if strategy == SamplerParentBased {
			return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio)), nil
		}
		return sdktrace.TraceIDRatioBased(ratio), nil

	default:
		return nil, fmt.Errorf("unknown sampler strategy: %s (valid: always, never, ratio, parent_based)", strategy)
	}
}

// SamplingConfig contains configuration for trace sampling.
type SamplingConfig struct {
	// Strategy is the sampling strategy
	Strategy string

	// Ratio is the sampling ratio for "ratio" and "parent_based" (0.0 to 1.0)
	Ratio float64
}

// ValidateSamplingConfig validates the sampling configuration.
func ValidateSamplingConfig(cfg SamplingConfig) error {
	_, err := createSampler(cfg.Strategy, cfg.Ratio)
	return err
}
