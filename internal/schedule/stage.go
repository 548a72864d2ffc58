// Package schedule converts a declarative list of stages into a live
// VU-count function of elapsed time and converges the actual number of
// running virtual users to it.
package schedule

import (
	"fmt"
	"time"

	"github.com/nkoretz/drover/internal/config"
)

// Stage is one window of the load profile: the VU target ramps linearly
// from the previous boundary to Target over Duration. Equal consecutive
// targets hold the level flat.
type Stage struct {
	Duration time.Duration
	Target   int
}

// Schedule is the full load profile of a run.
type Schedule struct {
	// StartVUs is the ramp origin of the first stage.
	StartVUs int

	// Stages are executed in order; their durations sum to the run time.
	Stages []Stage

	// GracefulStop bounds how long the controller waits for in-flight
	// iterations to finish after the last stage ends.
	GracefulStop time.Duration
}

// Validate rejects malformed schedules before any VU starts. A
// zero-duration stage is malformed: an instantaneous step is expressed as
// a short stage, not an empty one.
func (s Schedule) Validate() error {
	errs := &config.ValidationErrors{}

	if len(s.Stages) == 0 {
		errs.Add("stages", "at least one stage is required")
	}
	if s.StartVUs < 0 {
		errs.Add("startVUs", "startVUs cannot be negative")
	}
	for i, stage := range s.Stages {
		if stage.Duration <= 0 {
			errs.Add(fmt.Sprintf("stages[%d].duration", i), "duration must be greater than 0")
		}
		if stage.Target < 0 {
			errs.Add(fmt.Sprintf("stages[%d].target", i), "target cannot be negative")
		}
	}
	if s.GracefulStop < 0 {
		errs.Add("gracefulStop", "gracefulStop cannot be negative")
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// TotalDuration returns the sum of all stage durations.
func (s Schedule) TotalDuration() time.Duration {
	var total time.Duration
	for _, stage := range s.Stages {
		total += stage.Duration
	}
	return total
}

// TargetAt returns the VU target at the given elapsed time by
// piecewise-linear interpolation between stage boundaries: within stage i
// the target moves from the previous boundary's target to the stage's own,
// proportional to progress through the stage. The result is rounded to the
// nearest integer and clamped to >= 0. Past the last boundary it stays at
// the final target.
func (s Schedule) TargetAt(elapsed time.Duration) int {
	var stageStart time.Duration
	prev := s.StartVUs

	for _, stage := range s.Stages {
		stageEnd := stageStart + stage.Duration

		if elapsed < stageEnd {
			progress := float64(elapsed-stageStart) / float64(stage.Duration)
			if progress < 0 {
				progress = 0
			}
			if progress > 1 {
				progress = 1
			}

			target := float64(prev) + float64(stage.Target-prev)*progress
			if target < 0 {
				return 0
			}
			return int(target + 0.5)
		}

		prev = stage.Target
		stageStart = stageEnd
	}

	if len(s.Stages) > 0 {
		return s.Stages[len(s.Stages)-1].Target
	}
	return s.StartVUs
}

// StageAt returns the index of the stage covering the given elapsed time.
// Past the end it returns the last index.
func (s Schedule) StageAt(elapsed time.Duration) int {
	var stageStart time.Duration
	for i, stage := range s.Stages {
		stageEnd := stageStart + stage.Duration
		if elapsed < stageEnd {
			return i
		}
		stageStart = stageEnd
	}
	if len(s.Stages) == 0 {
		return 0
	}
	return len(s.Stages) - 1
}
