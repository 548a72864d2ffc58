// Package scenario defines what a virtual user does on every iteration:
// which request to send, how to judge the response, and how long to wait
// before going again.
package scenario

import (
	"fmt"

	"github.com/nkoretz/drover/internal/config"
	"github.com/nkoretz/drover/internal/schedule"
)

// Definition is one catalog entry: a named traffic pattern together with
// its default schedule and pass criteria. Definitions are immutable once
// registered; runs override schedule and thresholds through config, never
// by mutating the definition.
type Definition struct {
	// Name is the catalog key.
	Name string

	// Description is a one-line summary shown by the list command.
	Description string

	// Schedule is the default load profile.
	Schedule schedule.Schedule

	// Thresholds are the default pass criteria, keyed by metric name.
	Thresholds map[string][]string

	// Requests are the weighted variants a VU picks from on each
	// iteration.
	Requests []RequestSpec

	// Batch, when set, takes the place of Requests: every iteration
	// issues each group's requests concurrently and joins the group
	// before moving to the next.
	Batch [][]RequestSpec

	// Pacing is the think time between iterations.
	Pacing Pacing
}

// Validate reports every structural problem that would make the
// definition unrunnable. Threshold expressions are checked separately
// against the metric registry, since custom metrics only exist once a
// run is assembled.
func (d *Definition) Validate() error {
	errs := &config.ValidationErrors{}

	if d.Name == "" {
		errs.Add("name", "scenario name is required")
	}

	switch {
	case len(d.Requests) == 0 && len(d.Batch) == 0:
		errs.Add("requests", "at least one request or batch group is required")
	case len(d.Requests) > 0 && len(d.Batch) > 0:
		errs.Add("requests", "requests and batch are mutually exclusive")
	}

	for i := range d.Requests {
		validateSpec(errs, fmt.Sprintf("requests[%d]", i), &d.Requests[i])
	}
	for g, group := range d.Batch {
		if len(group) == 0 {
			errs.Add(fmt.Sprintf("batch[%d]", g), "group must contain at least one request")
		}
		for i := range group {
			validateSpec(errs, fmt.Sprintf("batch[%d][%d]", g, i), &group[i])
		}
	}

	if verr := d.Schedule.Validate(); verr != nil {
		if ve, ok := verr.(*config.ValidationErrors); ok {
			for _, e := range ve.Errors {
				errs.Add("schedule."+e.Field, e.Message)
			}
		} else {
			errs.Add("schedule", verr.Error())
		}
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func validateSpec(errs *config.ValidationErrors, prefix string, spec *RequestSpec) {
	if spec.Method == "" {
		errs.Add(prefix+".method", "method is required")
	}
	if spec.Path == "" || spec.Path[0] != '/' {
		errs.Add(prefix+".path", "path must start with /")
	}
	if spec.Weight < 0 {
		errs.Add(prefix+".weight", "weight cannot be negative")
	}
}
