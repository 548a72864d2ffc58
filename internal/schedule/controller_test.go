package schedule_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nkoretz/drover/internal/schedule"
)

// fakePool hands out fake workers and tracks what the controller does
// with them: how many were spawned, in what order they were retired, how
// many iterations ran concurrently, and whether any iteration was cut
// off mid-flight.
type fakePool struct {
	iterTime time.Duration

	mu        sync.Mutex
	spawned   []*fakeWorker
	stopOrder []int
	inFlight  int
	peak      int
	aborted   int
}

func (p *fakePool) spawn(id int) schedule.Worker {
	p.mu.Lock()
	defer p.mu.Unlock()
	w := &fakeWorker{id: id, iterTime: p.iterTime, pool: p}
	p.spawned = append(p.spawned, w)
	return w
}

func (p *fakePool) enter() {
	p.mu.Lock()
	p.inFlight++
	if p.inFlight > p.peak {
		p.peak = p.inFlight
	}
	p.mu.Unlock()
}

func (p *fakePool) exit(abortedMidFlight bool) {
	p.mu.Lock()
	p.inFlight--
	if abortedMidFlight {
		p.aborted++
	}
	p.mu.Unlock()
}

func (p *fakePool) recordStop(id int) {
	p.mu.Lock()
	p.stopOrder = append(p.stopOrder, id)
	p.mu.Unlock()
}

func (p *fakePool) snapshot() (spawned, peak, inFlight, aborted int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.spawned), p.peak, p.inFlight, p.aborted
}

type fakeWorker struct {
	id       int
	iterTime time.Duration
	stopping atomic.Bool
	stopped  atomic.Bool
	pool     *fakePool
}

func (w *fakeWorker) RunIteration(ctx context.Context) error {
	w.pool.enter()
	select {
	case <-ctx.Done():
		w.pool.exit(true)
		return ctx.Err()
	case <-time.After(w.iterTime):
		w.pool.exit(false)
		return nil
	}
}

func (w *fakeWorker) RequestStop() {
	if !w.stopping.Swap(true) {
		w.pool.recordStop(w.id)
	}
}

func (w *fakeWorker) Stopping() bool { return w.stopping.Load() }
func (w *fakeWorker) MarkStopped()   { w.stopped.Store(true) }

func TestController_RampUpAndDrain(t *testing.T) {
	pool := &fakePool{iterTime: 20 * time.Millisecond}
	sched := schedule.Schedule{
		Stages: []schedule.Stage{
			{Duration: 400 * time.Millisecond, Target: 3},
			{Duration: 300 * time.Millisecond, Target: 3},
		},
		GracefulStop: time.Second,
	}

	c := schedule.NewController(sched, pool.spawn)
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v, want nil", err)
	}

	spawned, _, inFlight, aborted := pool.snapshot()
	if spawned != 3 {
		t.Errorf("spawned %d workers, want 3", spawned)
	}
	if inFlight != 0 {
		t.Errorf("%d iterations still in flight after Run returned", inFlight)
	}
	if aborted != 0 {
		t.Errorf("%d iterations were aborted mid-flight, want 0", aborted)
	}
	if got := c.ActiveVUs(); got != 0 {
		t.Errorf("ActiveVUs() = %d after Run, want 0", got)
	}
	if got := c.Iterations(); got == 0 {
		t.Error("Iterations() = 0 after a full run, want > 0")
	}
	if got := c.Progress(); got != 1 {
		t.Errorf("Progress() = %v after Run, want 1", got)
	}

	pool.mu.Lock()
	defer pool.mu.Unlock()
	for _, w := range pool.spawned {
		if !w.stopped.Load() {
			t.Errorf("worker %d never marked stopped", w.id)
		}
	}
}

func TestController_RampDownSpawnsFreshWorkers(t *testing.T) {
	pool := &fakePool{iterTime: 10 * time.Millisecond}
	sched := schedule.Schedule{
		Stages: []schedule.Stage{
			{Duration: 300 * time.Millisecond, Target: 2},
			{Duration: 300 * time.Millisecond, Target: 0},
			{Duration: 300 * time.Millisecond, Target: 2},
		},
		GracefulStop: time.Second,
	}

	c := schedule.NewController(sched, pool.spawn)
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v, want nil", err)
	}

	// The second ramp-up must create new workers instead of reviving the
	// ones retired during the trough.
	spawned, _, _, _ := pool.snapshot()
	if spawned < 3 {
		t.Errorf("spawned %d workers across down-then-up profile, want at least 3", spawned)
	}

	// Ramp-down retires the newest worker first.
	pool.mu.Lock()
	defer pool.mu.Unlock()
	if len(pool.stopOrder) < 2 {
		t.Fatalf("recorded %d stops, want at least 2", len(pool.stopOrder))
	}
	if pool.stopOrder[0] != 2 {
		t.Errorf("first retired worker = %d, want newest worker 2", pool.stopOrder[0])
	}
	if pool.stopOrder[1] != 1 {
		t.Errorf("second retired worker = %d, want 1", pool.stopOrder[1])
	}
}

func TestController_DrainWaitsForIterations(t *testing.T) {
	pool := &fakePool{iterTime: 150 * time.Millisecond}
	sched := schedule.Schedule{
		Stages: []schedule.Stage{
			{Duration: 250 * time.Millisecond, Target: 2},
		},
		GracefulStop: 2 * time.Second,
	}

	c := schedule.NewController(sched, pool.spawn)
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v, want nil", err)
	}

	_, _, inFlight, aborted := pool.snapshot()
	if inFlight != 0 {
		t.Errorf("%d iterations in flight after drain", inFlight)
	}
	if aborted != 0 {
		t.Errorf("%d iterations aborted despite a generous graceful stop", aborted)
	}
}

func TestController_GracefulStopTimeoutAborts(t *testing.T) {
	pool := &fakePool{iterTime: 10 * time.Second}
	sched := schedule.Schedule{
		Stages: []schedule.Stage{
			{Duration: 200 * time.Millisecond, Target: 1},
		},
		GracefulStop: 100 * time.Millisecond,
	}

	c := schedule.NewController(sched, pool.spawn)
	start := time.Now()
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v, want nil", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("Run took %v, want prompt return after graceful stop expired", elapsed)
	}

	_, _, inFlight, aborted := pool.snapshot()
	if aborted == 0 {
		t.Error("expected the stuck iteration to be aborted after the graceful stop expired")
	}
	if inFlight != 0 {
		t.Errorf("%d iterations in flight after forced drain", inFlight)
	}
}

func TestController_ContextCancelDrainsGracefully(t *testing.T) {
	pool := &fakePool{iterTime: 20 * time.Millisecond}
	sched := schedule.Schedule{
		Stages: []schedule.Stage{
			{Duration: 30 * time.Second, Target: 2},
		},
		GracefulStop: time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(250 * time.Millisecond)
		cancel()
	}()

	c := schedule.NewController(sched, pool.spawn)
	start := time.Now()
	err := c.Run(ctx)
	if err != context.Canceled {
		t.Fatalf("Run() = %v, want context.Canceled", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Run took %v after cancel, want prompt return", elapsed)
	}

	_, _, inFlight, aborted := pool.snapshot()
	if inFlight != 0 {
		t.Errorf("%d iterations in flight after cancel", inFlight)
	}
	if aborted != 0 {
		t.Errorf("%d iterations aborted, want cancel to drain gracefully", aborted)
	}
	if got := c.ActiveVUs(); got != 0 {
		t.Errorf("ActiveVUs() = %d after cancel, want 0", got)
	}
}

func TestController_InvalidScheduleFailsFast(t *testing.T) {
	pool := &fakePool{iterTime: time.Millisecond}
	sched := schedule.Schedule{
		Stages: []schedule.Stage{
			{Duration: 0, Target: 5},
		},
	}

	c := schedule.NewController(sched, pool.spawn)
	if err := c.Run(context.Background()); err == nil {
		t.Fatal("Run() = nil, want validation error for zero-duration stage")
	}

	spawned, _, _, _ := pool.snapshot()
	if spawned != 0 {
		t.Errorf("spawned %d workers from an invalid schedule, want 0", spawned)
	}
}
