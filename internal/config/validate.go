package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError is a single configuration problem, located by a dotted
// field path like "stages[2].duration".
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// ValidationErrors collects every problem found in one pass so users fix
// their config once, not field by field.
type ValidationErrors struct {
	Errors []*ValidationError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Add appends an error to the collection.
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, &ValidationError{Field: field, Message: message})
}

// HasErrors reports whether any errors were collected.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// Validate checks the structural rules of a resolved RunConfig. Threshold
// expressions are validated separately against the metric registry before
// the run starts.
func (c *RunConfig) Validate() error {
	errs := &ValidationErrors{}

	if c.BaseURL == "" {
		errs.Add("baseUrl", "base URL is required")
	} else if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs.Add("baseUrl", fmt.Sprintf("invalid URL: %q", c.BaseURL))
	}

	if c.VUs < 0 {
		errs.Add("vus", "vus cannot be negative")
	}
	if c.StartVUs < 0 {
		errs.Add("startVUs", "startVUs cannot be negative")
	}
	if c.VUs > 0 && c.Duration == 0 && len(c.Stages) == 0 {
		errs.Add("duration", "duration is required when vus is set without stages")
	}

	for i, stage := range c.Stages {
		prefix := fmt.Sprintf("stages[%d]", i)
		if stage.Duration <= 0 {
			errs.Add(prefix+".duration", "duration must be greater than 0")
		}
		if stage.Target < 0 {
			errs.Add(prefix+".target", "target cannot be negative")
		}
	}

	if c.Output != "" && c.Output != OutputText && c.Output != OutputJSON {
		errs.Add("output", fmt.Sprintf("unknown output format %q (expected %s or %s)", c.Output, OutputText, OutputJSON))
	}

	if c.ProbeAttempts < 0 {
		errs.Add("probeAttempts", "probeAttempts cannot be negative")
	}

	for metric, exprs := range c.Thresholds {
		if len(exprs) == 0 {
			errs.Add("thresholds."+metric, "at least one expression is required")
		}
		for i, expr := range exprs {
			if strings.TrimSpace(expr) == "" {
				errs.Add(fmt.Sprintf("thresholds.%s[%d]", metric, i), "expression cannot be empty")
			}
		}
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}
