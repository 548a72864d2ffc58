package scenario

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptrace"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nkoretz/drover/internal/metrics"
)

// userAgent identifies generated traffic in target access logs.
const userAgent = "drover/1.0"

// VUState is the lifecycle state of a virtual user.
type VUState int32

const (
	// VUStateIdle means the VU is between iterations.
	VUStateIdle VUState = iota
	// VUStateRunning means an iteration is in flight.
	VUStateRunning
	// VUStateStopping means a stop was requested; the current iteration
	// finishes but no new one starts.
	VUStateStopping
	// VUStateStopped means the VU's goroutine has exited.
	VUStateStopped
)

func (s VUState) String() string {
	switch s {
	case VUStateIdle:
		return "idle"
	case VUStateRunning:
		return "running"
	case VUStateStopping:
		return "stopping"
	case VUStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Env is the world a VU acts on: where to send traffic, the shared
// client to send it with, and the registers to report into. Every VU of
// a run holds the same Env; the registers are the only mutable state
// VUs share.
type Env struct {
	// BaseURL prefixes every request path.
	BaseURL string

	// Client is the shared HTTP client.
	Client *http.Client

	// Metrics receives every observation.
	Metrics *metrics.Builtin

	// RunID tags outbound requests so target logs can be correlated
	// with a run.
	RunID string
}

// VU is a single virtual user. It repeatedly executes one iteration of
// its scenario: pick a request (or a batch group), send it, judge the
// response, record the registers, then pace before the next round.
//
// The schedule controller owns the VU's goroutine and calls
// RunIteration in a loop; the VU owns what an iteration means.
type VU struct {
	// ID is unique within a run and never reused.
	ID int

	def *Definition
	env Env

	state     atomic.Int32
	iteration atomic.Int64

	stopOnce sync.Once
	stopCh   chan struct{}

	// rng drives weighted request choice and pacing jitter. Only the
	// VU's own goroutine touches it.
	rng *rand.Rand
}

// NewVU creates a virtual user for the given scenario definition.
func NewVU(id int, def *Definition, env Env) *VU {
	return &VU{
		ID:     id,
		def:    def,
		env:    env,
		stopCh: make(chan struct{}),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano() + int64(id))),
	}
}

// State returns the current lifecycle state.
func (vu *VU) State() VUState {
	return VUState(vu.state.Load())
}

// Iteration returns how many iterations this VU has started.
func (vu *VU) Iteration() int64 {
	return vu.iteration.Load()
}

// RunIteration executes one full scenario iteration: a single weighted
// request, or one batch group issued concurrently. Request failures are
// absorbed into the registers; the returned error only reports that the
// VU can no longer iterate at all.
func (vu *VU) RunIteration(ctx context.Context) error {
	if s := vu.State(); s == VUStateStopping || s == VUStateStopped {
		return fmt.Errorf("vu %d is %s", vu.ID, s)
	}
	vu.state.Store(int32(VUStateRunning))
	iter := vu.iteration.Add(1)

	start := time.Now()
	if len(vu.def.Batch) > 0 {
		vu.runGroup(ctx, iter)
	} else {
		spec := WeightedChoice(vu.rng, vu.def.Requests)
		if spec == nil {
			vu.state.CompareAndSwap(int32(VUStateRunning), int32(VUStateIdle))
			return fmt.Errorf("scenario %q defines no requests", vu.def.Name)
		}
		out := vu.execute(ctx, spec)
		vu.record(spec, out)
	}

	m := vu.env.Metrics
	m.Iterations.Add(1)
	m.IterationDuration.Add(time.Since(start))

	vu.pace(ctx)

	// CompareAndSwap so a concurrent stop request is not overwritten.
	vu.state.CompareAndSwap(int32(VUStateRunning), int32(VUStateIdle))
	return nil
}

// runGroup issues one batch group concurrently and joins it. Groups
// rotate round-robin across iterations so every group gets equal play.
func (vu *VU) runGroup(ctx context.Context, iter int64) {
	group := vu.def.Batch[int((iter-1)%int64(len(vu.def.Batch)))]

	g, gctx := errgroup.WithContext(ctx)
	for i := range group {
		spec := &group[i]
		g.Go(func() error {
			out := vu.execute(gctx, spec)
			vu.record(spec, out)
			return nil
		})
	}
	// Goroutines never return errors; Wait is purely the join point.
	_ = g.Wait()
}

// execute sends one HTTP request and shapes the response into an
// Outcome. Transport errors land in Outcome.Err rather than aborting
// the iteration.
func (vu *VU) execute(ctx context.Context, spec *RequestSpec) *Outcome {
	out := &Outcome{}

	req, err := vu.buildRequest(ctx, spec)
	if err != nil {
		out.Err = fmt.Errorf("building request %s: %w", spec.Name, err)
		return out
	}

	start := time.Now()
	var firstByte time.Time
	trace := &httptrace.ClientTrace{
		GotFirstResponseByte: func() {
			firstByte = time.Now()
		},
	}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), trace))

	resp, err := vu.env.Client.Do(req)
	if err != nil {
		out.Duration = time.Since(start)
		out.Err = err
		return out
	}
	defer resp.Body.Close()

	out.Status = resp.StatusCode
	if !firstByte.IsZero() {
		out.Waiting = firstByte.Sub(start)
	}

	body, err := io.ReadAll(resp.Body)
	out.Duration = time.Since(start)
	if err != nil {
		out.Err = fmt.Errorf("reading response body: %w", err)
		return out
	}
	out.Body = body
	out.BytesReceived = int64(len(body))
	return out
}

// buildRequest assembles the HTTP request for a spec.
func (vu *VU) buildRequest(ctx context.Context, spec *RequestSpec) (*http.Request, error) {
	url := strings.TrimSuffix(vu.env.BaseURL, "/") + spec.Path

	var body io.Reader
	if spec.Body != "" {
		body = strings.NewReader(spec.Body)
	}

	req, err := http.NewRequestWithContext(ctx, spec.Method, url, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", userAgent)
	if vu.env.RunID != "" {
		req.Header.Set("X-Run-Id", vu.env.RunID)
	}
	for key, value := range spec.Headers {
		req.Header.Set(key, value)
	}
	if spec.Body != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// record feeds one outcome into the registers.
//
// Error accounting distinguishes organic failures from designed ones.
// A network error is always organic, whatever the spec wanted. An error
// status on a spec that expected one counts into expected_errors and
// keeps the errors rate clean; an error status nobody asked for, or a
// success where an error was expected, is organic.
func (vu *VU) record(spec *RequestSpec, out *Outcome) {
	m := vu.env.Metrics

	m.Requests.Add(1)
	m.RequestDuration.Add(out.Duration)
	if out.Waiting > 0 {
		m.RequestWaiting.Add(out.Waiting)
	}
	if out.BytesReceived > 0 {
		m.DataReceived.Add(out.BytesReceived)
	}

	switch {
	case out.Err != nil:
		m.Errors.Add(true)
	case spec.ExpectError && out.Status >= 400:
		m.ExpectedErrors.Add(1)
		m.Errors.Add(false)
	case spec.ExpectError:
		// Expected an error and got a success: the target misbehaved.
		m.Errors.Add(true)
	default:
		m.Errors.Add(out.Status >= 400)
	}

	for _, check := range spec.Checks {
		m.Checks.Add(check.Run(out))
	}
}

// pace sleeps the scenario's think time between iterations, waking
// early on cancellation or a stop request.
func (vu *VU) pace(ctx context.Context) {
	d := vu.def.Pacing.Next(vu.rng)
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-vu.stopCh:
	case <-time.After(d):
	}
}

// RequestStop asks the VU to exit after its current iteration. Safe to
// call more than once and from any goroutine.
func (vu *VU) RequestStop() {
	if vu.state.Load() == int32(VUStateStopped) {
		return
	}
	vu.state.Store(int32(VUStateStopping))
	vu.stopOnce.Do(func() { close(vu.stopCh) })
}

// Stopping reports whether a stop has been requested.
func (vu *VU) Stopping() bool {
	s := vu.State()
	return s == VUStateStopping || s == VUStateStopped
}

// MarkStopped records that the VU's goroutine has exited.
func (vu *VU) MarkStopped() {
	vu.state.Store(int32(VUStateStopped))
}
