package engine

import (
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"mercator-hq/readbreak/pkg/spec"
)

// Config holds engine behaviour that is not part of the pipeline
// definition.
type Config struct {
	// WhitelistMiss is the policy for extract steps that do not set
	// on_whitelist_miss: "fail" (the step fails) or "record" (the miss is
	// stored and the step passes).
	// Default: "fail"
	WhitelistMiss string

	// EnableTrace records every step state transition in the per-read
	// Context. Useful for debugging and for the test command.
	// Default: false
	EnableTrace bool

	// Tracer receives one span per read pair when set.
	// Default: nil (no spans)
	Tracer trace.Tracer

	// Workers is the default concurrency of Process when the caller
	// passes zero.
	// Default: 1
	Workers int
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		WhitelistMiss: spec.WhitelistMissFail,
		Workers:       1,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.WhitelistMiss {
	case spec.WhitelistMissFail, spec.WhitelistMissRecord:
	default:
		return fmt.Errorf("whitelist_miss must be %q or %q, got %q",
			spec.WhitelistMissFail, spec.WhitelistMissRecord, c.WhitelistMiss)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	return nil
}
