package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseDurationString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{name: "standard seconds", input: "30s", expected: 30 * time.Second},
		{name: "compound", input: "1h30m", expected: 90 * time.Minute},
		{name: "milliseconds", input: "500ms", expected: 500 * time.Millisecond},
		{name: "bare integer is seconds", input: "45", expected: 45 * time.Second},
		{name: "empty is zero", input: "", expected: 0},
		{name: "garbage", input: "soon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDurationString(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDurationString(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err == nil && got != tt.expected {
				t.Errorf("ParseDurationString(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParseStagesString(t *testing.T) {
	stages, err := ParseStagesString("30s:10,2m:10,30s:0")
	if err != nil {
		t.Fatalf("ParseStagesString() error = %v", err)
	}

	if len(stages) != 3 {
		t.Fatalf("got %d stages, want 3", len(stages))
	}
	if time.Duration(stages[0].Duration) != 30*time.Second || stages[0].Target != 10 {
		t.Errorf("stage 0 = %v:%d, want 30s:10", stages[0].Duration, stages[0].Target)
	}
	if time.Duration(stages[1].Duration) != 2*time.Minute || stages[1].Target != 10 {
		t.Errorf("stage 1 = %v:%d, want 2m:10", stages[1].Duration, stages[1].Target)
	}
	if stages[2].Target != 0 {
		t.Errorf("stage 2 target = %d, want 0", stages[2].Target)
	}
}

func TestParseStagesString_CompoundDuration(t *testing.T) {
	// The duration itself contains no colon, but make sure LastIndex
	// splitting keeps "1h30m" intact.
	stages, err := ParseStagesString("1h30m:5")
	if err != nil {
		t.Fatalf("ParseStagesString() error = %v", err)
	}
	if time.Duration(stages[0].Duration) != 90*time.Minute {
		t.Errorf("duration = %v, want 1h30m", stages[0].Duration)
	}
}

func TestParseStagesString_Invalid(t *testing.T) {
	for _, input := range []string{"", "30s", "abc:10", "30s:ten"} {
		if _, err := ParseStagesString(input); err == nil {
			t.Errorf("ParseStagesString(%q) should return error", input)
		}
	}
}

func TestLoad_YAML(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "run.yaml")

	yamlContent := `
baseUrl: http://localhost:9090
scenario: load
stages:
  - duration: 30s
    target: 10
  - duration: 10s
    target: 0
thresholds:
  errors: ["rate<0.1"]
output: json
`
	if err := os.WriteFile(tmpFile, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}

	cfg, err := Load(tmpFile)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.BaseURL != "http://localhost:9090" {
		t.Errorf("BaseURL = %v, want http://localhost:9090", cfg.BaseURL)
	}
	if cfg.Scenario != "load" {
		t.Errorf("Scenario = %v, want load", cfg.Scenario)
	}
	if len(cfg.Stages) != 2 || time.Duration(cfg.Stages[0].Duration) != 30*time.Second {
		t.Errorf("Stages = %+v, want two stages starting with 30s", cfg.Stages)
	}
	if got := cfg.Thresholds["errors"]; len(got) != 1 || got[0] != "rate<0.1" {
		t.Errorf("Thresholds[errors] = %v, want [rate<0.1]", got)
	}
	if cfg.Output != OutputJSON {
		t.Errorf("Output = %v, want json", cfg.Output)
	}
}

func TestLoad_JSONC(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "run.jsonc")

	content := `{
  // target service under test
  "baseUrl": "http://localhost:8080",
  "vus": 5,
  "duration": "1m" // hold for a minute
}`
	if err := os.WriteFile(tmpFile, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}

	cfg, err := Load(tmpFile)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.VUs != 5 {
		t.Errorf("VUs = %d, want 5", cfg.VUs)
	}
	if time.Duration(cfg.Duration) != time.Minute {
		t.Errorf("Duration = %v, want 1m", cfg.Duration)
	}
}

func TestLoad_NotFound(t *testing.T) {
	if _, err := Load("/nonexistent/path/run.yaml"); err == nil {
		t.Error("Load() should return error for nonexistent file")
	}
}

func TestMerge_Precedence(t *testing.T) {
	base := Default()
	base.Thresholds = map[string][]string{
		"http_req_duration": {"p(95)<500"},
		"errors":            {"rate<0.1"},
	}

	over := &RunConfig{
		BaseURL: "http://other:8080",
		VUs:     20,
		Thresholds: map[string][]string{
			"errors": {"rate<0.01"},
		},
	}

	base.Merge(over)

	if base.BaseURL != "http://other:8080" {
		t.Errorf("BaseURL = %v, want override", base.BaseURL)
	}
	if base.VUs != 20 {
		t.Errorf("VUs = %d, want 20", base.VUs)
	}
	// Unset fields keep the lower layer
	if base.HealthPath != DefaultHealthPath {
		t.Errorf("HealthPath = %v, want default", base.HealthPath)
	}
	// Threshold maps merge by metric; overridden key replaced, others kept
	if got := base.Thresholds["errors"]; len(got) != 1 || got[0] != "rate<0.01" {
		t.Errorf("Thresholds[errors] = %v, want [rate<0.01]", got)
	}
	if got := base.Thresholds["http_req_duration"]; len(got) != 1 || got[0] != "p(95)<500" {
		t.Errorf("Thresholds[http_req_duration] = %v, want untouched", got)
	}
}

func TestValidate_ZeroDurationStage(t *testing.T) {
	cfg := Default()
	cfg.Stages = []StageConfig{
		{Duration: Duration(30 * time.Second), Target: 10},
		{Duration: 0, Target: 0},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() should reject a zero-duration stage")
	}
	if !strings.Contains(err.Error(), "stages[1].duration") {
		t.Errorf("error should name stages[1].duration, got: %v", err)
	}
}

func TestValidate_NegativeTarget(t *testing.T) {
	cfg := Default()
	cfg.Stages = []StageConfig{
		{Duration: Duration(time.Second), Target: -1},
	}

	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should reject a negative stage target")
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := &RunConfig{
		BaseURL: "://not-a-url",
		VUs:     -1,
		Output:  "xml",
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() should fail")
	}

	verrs, ok := err.(*ValidationErrors)
	if !ok {
		t.Fatalf("error type = %T, want *ValidationErrors", err)
	}
	if len(verrs.Errors) < 3 {
		t.Errorf("got %d errors, want at least 3 (url, vus, output): %v", len(verrs.Errors), err)
	}
}

func TestValidate_ValidDefault(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Validate() on defaults returned error: %v", err)
	}
}
