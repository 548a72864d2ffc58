package scenario_test

import (
	"strings"
	"testing"
	"time"

	"github.com/nkoretz/drover/internal/config"
	"github.com/nkoretz/drover/internal/scenario"
	"github.com/nkoretz/drover/internal/schedule"
)

func validDefinition() *scenario.Definition {
	return &scenario.Definition{
		Name:        "smoke",
		Description: "minimal sanity pass",
		Schedule: schedule.Schedule{
			Stages: []schedule.Stage{{Duration: 30 * time.Second, Target: 1}},
		},
		Requests: []scenario.RequestSpec{
			{Name: "root", Method: "GET", Path: "/", Weight: 1},
		},
	}
}

func TestDefinitionValidate(t *testing.T) {
	if err := validDefinition().Validate(); err != nil {
		t.Errorf("Validate() on a valid definition = %v", err)
	}
}

func TestDefinitionValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*scenario.Definition)
		field  string
	}{
		{
			name:   "missing name",
			mutate: func(d *scenario.Definition) { d.Name = "" },
			field:  "name",
		},
		{
			name:   "no requests",
			mutate: func(d *scenario.Definition) { d.Requests = nil },
			field:  "requests",
		},
		{
			name: "requests and batch together",
			mutate: func(d *scenario.Definition) {
				d.Batch = [][]scenario.RequestSpec{{{Method: "GET", Path: "/"}}}
			},
			field: "requests",
		},
		{
			name:   "missing method",
			mutate: func(d *scenario.Definition) { d.Requests[0].Method = "" },
			field:  "requests[0].method",
		},
		{
			name:   "relative path",
			mutate: func(d *scenario.Definition) { d.Requests[0].Path = "health" },
			field:  "requests[0].path",
		},
		{
			name:   "negative weight",
			mutate: func(d *scenario.Definition) { d.Requests[0].Weight = -2 },
			field:  "requests[0].weight",
		},
		{
			name: "empty batch group",
			mutate: func(d *scenario.Definition) {
				d.Requests = nil
				d.Batch = [][]scenario.RequestSpec{{}}
			},
			field: "batch[0]",
		},
		{
			name: "bad schedule",
			mutate: func(d *scenario.Definition) {
				d.Schedule.Stages = []schedule.Stage{{Duration: 0, Target: 5}}
			},
			field: "schedule.stages[0].duration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := validDefinition()
			tt.mutate(def)

			err := def.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			verrs, ok := err.(*config.ValidationErrors)
			if !ok {
				t.Fatalf("Validate() returned %T, want *config.ValidationErrors", err)
			}
			found := false
			for _, e := range verrs.Errors {
				if e.Field == tt.field {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("no error on field %q in %q", tt.field, strings.TrimSpace(verrs.Error()))
			}
		})
	}
}
