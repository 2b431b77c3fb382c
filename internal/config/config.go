package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/tuskmem/internal/core"
)

type Config struct {
	App       AppConfig
	Capture   CaptureConfig
	Recall    RecallConfig
	Retention RetentionConfig
	Search    SearchConfig
	Backend   BackendConfig
}

// Parse reads every group from the environment and validates the result.
func Parse() (*Config, error) {
	c := &Config{}
	if err := env.Parse(c); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	c.App.RuntimePath = resolveRuntimePath(c.App.RuntimePath)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Default returns the configuration as if no variable were set.
func Default() *Config {
	c := &Config{}
	_ = env.ParseWithOptions(c, env.Options{Environment: map[string]string{}})
	c.App.RuntimePath = resolveRuntimePath(c.App.RuntimePath)
	return c
}

func (c *Config) Validate() error {
	nonNegative := []struct {
		field string
		value int
	}{
		{"capture min chars", c.Capture.MinChars},
		{"capture max per turn", c.Capture.MaxPerTurn},
		{"capture max chars", c.Capture.MaxChars},
		{"dedupe max check", c.Capture.DedupeMaxCheck},
		{"short-term scan", c.Recall.ShortTermScan},
		{"short-term max messages", c.Recall.ShortTermMaxMessages},
		{"short-term max chars", c.Recall.ShortTermMaxChars},
		{"long-term limit", c.Recall.LongTermLimit},
		{"retention days", c.Retention.Days},
		{"gc scan limit", c.Retention.ScanLimit},
		{"search candidates", c.Search.Candidates},
	}
	for _, n := range nonNegative {
		if n.value < 0 {
			return core.NewValidationError(n.field, "must not be negative")
		}
	}

	if c.Capture.DedupeWindow < 0 {
		return core.NewValidationError("dedupe window", "must not be negative")
	}
	if c.Search.SemanticWeight < 0 || c.Search.SemanticWeight > 1 {
		return core.NewValidationError("semantic weight", "must be within [0, 1]")
	}
	switch c.Search.Mode {
	case SearchModeHybrid, SearchModeLexical:
	default:
		return core.NewValidationError("search mode", fmt.Sprintf("unknown mode %q", c.Search.Mode))
	}
	if c.Backend.Timeout <= 0 {
		return core.NewValidationError("backend timeout", "must be positive")
	}
	return nil
}
