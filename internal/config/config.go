// Package config defines the runtime configuration surface of the harness.
//
// Configuration is resolved in three layers: built-in scenario defaults,
// then a config file, then command-line flags. Later layers win. The file
// format is chosen by extension: YAML (.yaml/.yml), JSON (.json), or JSONC
// (.jsonc, JSON with comments).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Output formats for the run summary.
const (
	OutputText = "text"
	OutputJSON = "json"
)

// Defaults applied by Default and by merge when a field is unset.
const (
	DefaultBaseURL       = "http://localhost:8080"
	DefaultHealthPath    = "/health"
	DefaultHTTPTimeout   = 30 * time.Second
	DefaultGracefulStop  = 30 * time.Second
	DefaultProbeAttempts = 5
	DefaultProbeDelay    = 500 * time.Millisecond
)

// StageConfig is one schedule stage as written in a config file or on the
// command line: ramp (or hold) to Target VUs over Duration.
type StageConfig struct {
	Duration Duration `json:"duration" yaml:"duration"`
	Target   int      `json:"target" yaml:"target"`
}

// RunConfig collects every recognized runtime option.
//
// Zero values mean "not set": the merge step fills them from the layer
// below, so a config file only has to name the options it changes.
type RunConfig struct {
	// BaseURL is the root of the target service.
	BaseURL string `json:"baseUrl" yaml:"baseUrl"`

	// Scenario names the catalog entry to run. The CLI argument wins over
	// this field.
	Scenario string `json:"scenario,omitempty" yaml:"scenario,omitempty"`

	// VUs with Duration replaces the scenario's stage list with a single
	// hold at this concurrency.
	VUs      int      `json:"vus,omitempty" yaml:"vus,omitempty"`
	Duration Duration `json:"duration,omitempty" yaml:"duration,omitempty"`

	// Stages replaces the scenario's schedule outright.
	Stages []StageConfig `json:"stages,omitempty" yaml:"stages,omitempty"`

	// StartVUs is the ramp origin of the first stage.
	StartVUs int `json:"startVUs,omitempty" yaml:"startVUs,omitempty"`

	// GracefulStop bounds the drain wait after the schedule ends.
	GracefulStop Duration `json:"gracefulStop,omitempty" yaml:"gracefulStop,omitempty"`

	// HTTPTimeout is the per-request client timeout.
	HTTPTimeout Duration `json:"httpTimeout,omitempty" yaml:"httpTimeout,omitempty"`

	// Insecure skips TLS certificate verification.
	Insecure bool `json:"insecure,omitempty" yaml:"insecure,omitempty"`

	// ThinkTime, when set, replaces the scenario's pacing with a fixed
	// wait between iterations.
	ThinkTime Duration `json:"thinkTime,omitempty" yaml:"thinkTime,omitempty"`

	// Thresholds adds or replaces threshold expressions per metric name.
	Thresholds map[string][]string `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`

	// Output selects the summary format: "text" or "json".
	Output string `json:"output,omitempty" yaml:"output,omitempty"`

	// Quiet reduces the summary to a single PASSED/FAILED line.
	Quiet bool `json:"quiet,omitempty" yaml:"quiet,omitempty"`

	// NoColor disables ANSI colors regardless of TTY detection.
	NoColor bool `json:"noColor,omitempty" yaml:"noColor,omitempty"`

	// Verbose enables debug-level diagnostics.
	Verbose bool `json:"verbose,omitempty" yaml:"verbose,omitempty"`

	// Archive is the path of the SQLite run archive; empty disables it.
	Archive string `json:"archive,omitempty" yaml:"archive,omitempty"`

	// HealthPath is probed before the run to confirm the target is up.
	HealthPath string `json:"healthPath,omitempty" yaml:"healthPath,omitempty"`

	// ProbeAttempts and ProbeDelay bound the readiness retry loop.
	ProbeAttempts int      `json:"probeAttempts,omitempty" yaml:"probeAttempts,omitempty"`
	ProbeDelay    Duration `json:"probeDelay,omitempty" yaml:"probeDelay,omitempty"`

	// StartTarget starts the embedded stand-in service when the probe
	// fails, then probes again.
	StartTarget bool `json:"startTarget,omitempty" yaml:"startTarget,omitempty"`
}

// Default returns a RunConfig with every documented default filled in.
func Default() *RunConfig {
	return &RunConfig{
		BaseURL:       DefaultBaseURL,
		HealthPath:    DefaultHealthPath,
		HTTPTimeout:   Duration(DefaultHTTPTimeout),
		GracefulStop:  Duration(DefaultGracefulStop),
		ProbeAttempts: DefaultProbeAttempts,
		ProbeDelay:    Duration(DefaultProbeDelay),
		Output:        OutputText,
	}
}

// Load reads a config file and parses it according to its extension.
func Load(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data, path)
}

// Parse parses config data. The format is chosen by the extension of
// path; an empty or unknown extension falls back to YAML.
func Parse(data []byte, path string) (*RunConfig, error) {
	var cfg RunConfig

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	case ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSONC config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	return &cfg, nil
}

// Merge overlays over onto c: any field set in over wins. Threshold maps
// merge by metric name, with over's expression list replacing c's for the
// same metric.
func (c *RunConfig) Merge(over *RunConfig) {
	if over == nil {
		return
	}

	if over.BaseURL != "" {
		c.BaseURL = over.BaseURL
	}
	if over.Scenario != "" {
		c.Scenario = over.Scenario
	}
	if over.VUs != 0 {
		c.VUs = over.VUs
	}
	if over.Duration != 0 {
		c.Duration = over.Duration
	}
	if len(over.Stages) > 0 {
		c.Stages = over.Stages
	}
	if over.StartVUs != 0 {
		c.StartVUs = over.StartVUs
	}
	if over.GracefulStop != 0 {
		c.GracefulStop = over.GracefulStop
	}
	if over.HTTPTimeout != 0 {
		c.HTTPTimeout = over.HTTPTimeout
	}
	if over.Insecure {
		c.Insecure = true
	}
	if over.ThinkTime != 0 {
		c.ThinkTime = over.ThinkTime
	}
	if len(over.Thresholds) > 0 {
		if c.Thresholds == nil {
			c.Thresholds = make(map[string][]string, len(over.Thresholds))
		}
		for metric, exprs := range over.Thresholds {
			c.Thresholds[metric] = exprs
		}
	}
	if over.Output != "" {
		c.Output = over.Output
	}
	if over.Quiet {
		c.Quiet = true
	}
	if over.NoColor {
		c.NoColor = true
	}
	if over.Verbose {
		c.Verbose = true
	}
	if over.Archive != "" {
		c.Archive = over.Archive
	}
	if over.HealthPath != "" {
		c.HealthPath = over.HealthPath
	}
	if over.ProbeAttempts != 0 {
		c.ProbeAttempts = over.ProbeAttempts
	}
	if over.ProbeDelay != 0 {
		c.ProbeDelay = over.ProbeDelay
	}
	if over.StartTarget {
		c.StartTarget = true
	}
}

// ParseStagesString parses the compact CLI stage syntax
// "30s:10,2m:10,30s:0" into a stage list.
func ParseStagesString(s string) ([]StageConfig, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("empty stages string")
	}

	parts := strings.Split(s, ",")
	stages := make([]StageConfig, 0, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)

		// Split on the last colon so durations like "1h30m" survive.
		idx := strings.LastIndex(part, ":")
		if idx < 0 {
			return nil, fmt.Errorf("invalid stage %q: expected duration:target", part)
		}

		dur, err := ParseDurationString(part[:idx])
		if err != nil {
			return nil, fmt.Errorf("invalid stage %q: %w", part, err)
		}

		target, err := strconv.Atoi(part[idx+1:])
		if err != nil {
			return nil, fmt.Errorf("invalid stage %q: target must be an integer", part)
		}

		stages = append(stages, StageConfig{Duration: Duration(dur), Target: target})
	}

	return stages, nil
}
