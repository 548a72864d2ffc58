// Package metrics provides the typed accumulators shared by all virtual users.
//
// Three register kinds cover everything the harness records:
//
//   - Counter: monotonically increasing sum (request counts, bytes)
//   - Rate: fraction of boolean observations that were true (checks, errors)
//   - Trend: numeric samples with percentile/mean queries (latencies)
//
// All registers tolerate concurrent writers. Counters and rates are
// lock-free atomics; trends guard an HDR histogram with a mutex. Every
// update is a single additive merge, so no reader ever observes a torn
// value and no cross-register transaction exists.
package metrics

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Histogram bounds in microseconds: 1µs to 1 hour, 3 significant figures.
const (
	histogramMin     = 1
	histogramMax     = 3600000000
	histogramSigFigs = 3
)

// Register is implemented by Counter, Rate, and Trend.
type Register interface {
	register()
}

// Counter is a monotonically increasing sum of Add calls.
type Counter struct {
	n atomic.Int64
}

// NewCounter creates an empty counter.
func NewCounter() *Counter {
	return &Counter{}
}

// Add adds n to the counter. Negative values are ignored so the
// counter stays monotone.
func (c *Counter) Add(n int64) {
	if n < 0 {
		return
	}
	c.n.Add(n)
}

// Count returns the accumulated sum.
func (c *Counter) Count() int64 {
	return c.n.Load()
}

func (c *Counter) register() {}

// Rate tracks the fraction of boolean observations that were true.
type Rate struct {
	trues atomic.Int64
	total atomic.Int64
}

// NewRate creates an empty rate.
func NewRate() *Rate {
	return &Rate{}
}

// Add records one boolean observation.
func (r *Rate) Add(ok bool) {
	if ok {
		r.trues.Add(1)
	}
	r.total.Add(1)
}

// Rate returns trues/total. An empty register returns NaN rather than
// panicking on the zero division.
func (r *Rate) Rate() float64 {
	total := r.total.Load()
	if total == 0 {
		return math.NaN()
	}
	return float64(r.trues.Load()) / float64(total)
}

// Trues returns the number of true observations.
func (r *Rate) Trues() int64 {
	return r.trues.Load()
}

// Total returns the number of observations.
func (r *Rate) Total() int64 {
	return r.total.Load()
}

func (r *Rate) register() {}

// Trend is a multiset of duration samples supporting percentile and mean
// queries.
//
// Percentiles between the extremes come from an HDR histogram recording
// microseconds, which keeps updates O(1) at any throughput at the cost of
// ~0.1% quantization. Min, max, and mean are tracked exactly alongside the
// histogram so that P(0), P(100), and Mean are precise, not bucketed.
type Trend struct {
	mu    sync.Mutex
	hist  *hdrhistogram.Histogram
	count int64
	sum   float64
	min   float64
	max   float64
}

// NewTrend creates an empty trend.
func NewTrend() *Trend {
	return &Trend{
		hist: hdrhistogram.New(histogramMin, histogramMax, histogramSigFigs),
	}
}

// Add records a duration sample.
func (t *Trend) Add(d time.Duration) {
	t.AddMillis(float64(d) / float64(time.Millisecond))
}

// AddMillis records a sample given in milliseconds.
func (t *Trend) AddMillis(ms float64) {
	micros := int64(ms * 1000)
	if micros < histogramMin {
		micros = histogramMin
	}
	if micros > histogramMax {
		micros = histogramMax
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// RecordValue only fails outside the configured bounds, which the
	// clamp above rules out.
	_ = t.hist.RecordValue(micros)

	if t.count == 0 || ms < t.min {
		t.min = ms
	}
	if t.count == 0 || ms > t.max {
		t.max = ms
	}
	t.count++
	t.sum += ms
}

// Percentile returns the q-th percentile in milliseconds (0 <= q <= 100).
// P(0) is the exact minimum sample and P(100) the exact maximum; an empty
// trend returns 0.
func (t *Trend) Percentile(q float64) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.count == 0 {
		return 0
	}
	if q <= 0 {
		return t.min
	}
	if q >= 100 {
		return t.max
	}
	return float64(t.hist.ValueAtQuantile(q)) / 1000.0
}

// Mean returns the exact arithmetic mean in milliseconds, 0 when empty.
func (t *Trend) Mean() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.count == 0 {
		return 0
	}
	return t.sum / float64(t.count)
}

// Med returns the median (50th percentile) in milliseconds.
func (t *Trend) Med() float64 {
	return t.Percentile(50)
}

// Min returns the smallest recorded sample in milliseconds, 0 when empty.
func (t *Trend) Min() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.count == 0 {
		return 0
	}
	return t.min
}

// Max returns the largest recorded sample in milliseconds, 0 when empty.
func (t *Trend) Max() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.count == 0 {
		return 0
	}
	return t.max
}

// Count returns the number of recorded samples.
func (t *Trend) Count() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

func (t *Trend) register() {}

// Registry is a named collection of registers. Registers are created once
// at scenario-load time with the get-or-create methods and then written
// concurrently by all VUs through the returned handles; the map itself is
// never touched on the hot path.
type Registry struct {
	mu        sync.Mutex
	registers map[string]Register
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		registers: make(map[string]Register),
	}
}

// Counter returns the counter with the given name, creating it if needed.
// Returns an error if the name is already bound to a different kind.
func (r *Registry) Counter(name string) (*Counter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.registers[name]; ok {
		c, ok := existing.(*Counter)
		if !ok {
			return nil, fmt.Errorf("metric %q is already registered as %s", name, kindOf(existing))
		}
		return c, nil
	}

	c := NewCounter()
	r.registers[name] = c
	return c, nil
}

// Rate returns the rate with the given name, creating it if needed.
// Returns an error if the name is already bound to a different kind.
func (r *Registry) Rate(name string) (*Rate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.registers[name]; ok {
		rt, ok := existing.(*Rate)
		if !ok {
			return nil, fmt.Errorf("metric %q is already registered as %s", name, kindOf(existing))
		}
		return rt, nil
	}

	rt := NewRate()
	r.registers[name] = rt
	return rt, nil
}

// Trend returns the trend with the given name, creating it if needed.
// Returns an error if the name is already bound to a different kind.
func (r *Registry) Trend(name string) (*Trend, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.registers[name]; ok {
		tr, ok := existing.(*Trend)
		if !ok {
			return nil, fmt.Errorf("metric %q is already registered as %s", name, kindOf(existing))
		}
		return tr, nil
	}

	tr := NewTrend()
	r.registers[name] = tr
	return tr, nil
}

// Lookup returns the register bound to name, if any.
func (r *Registry) Lookup(name string) (Register, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.registers[name]
	return reg, ok
}

// Names returns all registered metric names, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.registers))
	for name := range r.registers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func kindOf(reg Register) string {
	switch reg.(type) {
	case *Counter:
		return "counter"
	case *Rate:
		return "rate"
	case *Trend:
		return "trend"
	default:
		return "unknown"
	}
}
