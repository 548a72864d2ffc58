package scenario

import (
	"math/rand"
	"time"
)

// PacingKind selects how think time between iterations is drawn.
type PacingKind int

const (
	// PacingNone skips think time entirely.
	PacingNone PacingKind = iota
	// PacingFixed waits a constant duration.
	PacingFixed
	// PacingUniform waits a uniform random duration in [Min, Max].
	PacingUniform
	// PacingRangePlus waits a uniform random duration in [Min, Max]
	// plus a constant offset.
	PacingRangePlus
)

func (k PacingKind) String() string {
	switch k {
	case PacingNone:
		return "none"
	case PacingFixed:
		return "fixed"
	case PacingUniform:
		return "uniform"
	case PacingRangePlus:
		return "range+offset"
	default:
		return "unknown"
	}
}

// Pacing models the think time a VU sleeps between iterations.
type Pacing struct {
	Kind   PacingKind
	Fixed  time.Duration
	Min    time.Duration
	Max    time.Duration
	Offset time.Duration
}

// NoPacing runs iterations back to back.
func NoPacing() Pacing {
	return Pacing{Kind: PacingNone}
}

// FixedPacing waits exactly d between iterations.
func FixedPacing(d time.Duration) Pacing {
	return Pacing{Kind: PacingFixed, Fixed: d}
}

// UniformPacing waits a uniform random duration in [min, max].
func UniformPacing(min, max time.Duration) Pacing {
	return Pacing{Kind: PacingUniform, Min: min, Max: max}
}

// RangePlusPacing waits a uniform random duration in [min, max] plus the
// constant offset.
func RangePlusPacing(min, max, offset time.Duration) Pacing {
	return Pacing{Kind: PacingRangePlus, Min: min, Max: max, Offset: offset}
}

// Next draws the wait before the following iteration. Never negative.
func (p Pacing) Next(rng *rand.Rand) time.Duration {
	var d time.Duration
	switch p.Kind {
	case PacingFixed:
		d = p.Fixed
	case PacingUniform:
		d = p.Min + p.span(rng)
	case PacingRangePlus:
		d = p.Min + p.span(rng) + p.Offset
	}
	if d < 0 {
		return 0
	}
	return d
}

func (p Pacing) span(rng *rand.Rand) time.Duration {
	if p.Max <= p.Min {
		return 0
	}
	return time.Duration(rng.Int63n(int64(p.Max - p.Min + 1)))
}
