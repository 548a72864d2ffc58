// Package drover exposes the load harness for programmatic use: resolve
// a scenario from the catalog, run it against a target, and read the
// summary, without going through the CLI.
//
// Basic usage:
//
//	cfg := drover.DefaultConfig()
//	cfg.BaseURL = "http://localhost:8080"
//
//	summary, err := drover.Run(ctx, "smoke", cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !summary.Passed {
//	    log.Fatalf("thresholds failed: %+v", summary.Thresholds)
//	}
package drover

import (
	"context"

	"github.com/nkoretz/drover/internal/config"
	"github.com/nkoretz/drover/internal/runner"
	"github.com/nkoretz/drover/internal/scenario"
)

// Aliases so callers never have to name internal packages.
type (
	// Config is the runtime configuration of a run.
	Config = config.RunConfig

	// Stage is one window of a schedule override.
	Stage = config.StageConfig

	// Duration is a duration that marshals as "30s"-style strings.
	Duration = config.Duration

	// Summary is the final account of a run.
	Summary = runner.Summary

	// Scenario is one catalog entry.
	Scenario = scenario.Definition
)

// DefaultConfig returns a Config with every documented default filled in.
func DefaultConfig() *Config {
	return config.Default()
}

// LoadConfig reads a config file, choosing the format by extension:
// YAML, JSON, or JSONC.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// Scenarios lists the built-in scenario definitions in name order.
func Scenarios() []*Scenario {
	return runner.DefaultCatalog().Definitions()
}

// Run executes one built-in scenario to completion.
//
// The target's health endpoint is probed first; set cfg.StartTarget to
// fall back to the embedded stand-in service when nothing is listening.
// A run that finishes but misses its thresholds is not an error: check
// Summary.Passed.
func Run(ctx context.Context, name string, cfg *Config) (*Summary, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	r := runner.New(runner.DefaultCatalog())
	defer r.Close()

	if err := r.PrepareEnvironment(ctx, cfg); err != nil {
		return nil, err
	}
	return r.Execute(ctx, name, cfg)
}
