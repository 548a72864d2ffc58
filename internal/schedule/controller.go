package schedule

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

// adjustInterval is how often the controller compares live VU count
// against the interpolated target. 100ms keeps ramps smooth without
// burning cycles on idle schedules.
const adjustInterval = 100 * time.Millisecond

const defaultGracefulStop = 30 * time.Second

// Worker is one virtual user as seen by the controller. The controller
// owns the goroutine and the iteration loop; the worker owns what an
// iteration means.
type Worker interface {
	// RunIteration performs one full iteration. The context passed in is
	// only canceled when the graceful-stop budget expires, so in-flight
	// work is never aborted by an ordinary ramp-down or schedule end.
	RunIteration(ctx context.Context) error

	// RequestStop asks the worker to exit after its current iteration.
	RequestStop()

	// Stopping reports whether a stop has been requested.
	Stopping() bool

	// MarkStopped records that the worker's goroutine has exited.
	MarkStopped()
}

// SpawnFunc creates a new worker. IDs are sequential and never reused;
// a ramp-down followed by a ramp-up spawns fresh workers rather than
// reviving retired ones.
type SpawnFunc func(id int) Worker

// Controller drives the live VU count toward the schedule's target,
// spawning and retiring workers as stages progress.
type Controller struct {
	schedule Schedule
	spawn    SpawnFunc

	startTime    time.Time
	activeVUs    atomic.Int32
	targetVUs    atomic.Int32
	iterations   atomic.Int64
	currentStage atomic.Int32
	running      atomic.Bool

	wg        sync.WaitGroup
	workers   []Worker
	workersMu sync.Mutex
	nextID    int

	// iterCtx lives past the run context so that in-flight iterations can
	// finish after the schedule ends; drain cancels it only when the
	// graceful-stop budget runs out.
	iterCtx    context.Context
	iterCancel context.CancelFunc
}

// NewController builds a controller for the given schedule. Workers are
// created lazily through spawn as the target climbs.
func NewController(sched Schedule, spawn SpawnFunc) *Controller {
	return &Controller{
		schedule: sched,
		spawn:    spawn,
	}
}

// Run executes the schedule from start to finish. It returns once every
// stage has elapsed and the remaining workers have drained, or earlier
// if ctx is canceled. Cancellation still drains gracefully: workers
// finish their current iteration before exiting.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.schedule.Validate(); err != nil {
		return err
	}

	c.iterCtx, c.iterCancel = context.WithCancel(context.Background())
	defer c.iterCancel()

	c.startTime = time.Now()
	c.running.Store(true)
	defer c.running.Store(false)

	runCtx, cancel := context.WithTimeout(ctx, c.schedule.TotalDuration())
	defer cancel()

	controllerDone := make(chan struct{})
	go func() {
		defer close(controllerDone)
		c.adjustLoop(runCtx)
	}()

	<-runCtx.Done()
	<-controllerDone

	c.drain()

	// Hitting the schedule's end is the normal exit, not an error.
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

func (c *Controller) adjustLoop(ctx context.Context) {
	ticker := time.NewTicker(adjustInterval)
	defer ticker.Stop()

	c.adjust(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.adjust(ctx)
		}
	}
}

// adjust converges the live worker count toward the target for the
// current moment in the schedule.
func (c *Controller) adjust(ctx context.Context) {
	elapsed := time.Since(c.startTime)
	target := c.schedule.TargetAt(elapsed)
	c.targetVUs.Store(int32(target))
	c.currentStage.Store(int32(c.schedule.StageAt(elapsed)))

	c.workersMu.Lock()
	defer c.workersMu.Unlock()

	current := len(c.workers)
	if current == target {
		return
	}

	log.WithFields(log.Fields{
		"current": current,
		"target":  target,
	}).Debug("scaling virtual users")

	if target > current {
		for i := current; i < target; i++ {
			c.nextID++
			w := c.spawn(c.nextID)
			c.workers = append(c.workers, w)
			c.wg.Add(1)
			go c.runWorker(ctx, w)
		}
		return
	}

	// Retire the most recently spawned workers first. They finish their
	// current iteration before exiting.
	for i := current - 1; i >= target; i-- {
		c.workers[i].RequestStop()
	}
	c.workers = c.workers[:target]
}

// runWorker is the per-VU goroutine. It loops iterations until the run
// window closes or the worker is retired, then exits without cutting an
// iteration short.
func (c *Controller) runWorker(runCtx context.Context, w Worker) {
	defer c.wg.Done()
	defer w.MarkStopped()

	c.activeVUs.Add(1)
	defer c.activeVUs.Add(-1)

	for {
		select {
		case <-runCtx.Done():
			return
		default:
		}
		if w.Stopping() {
			return
		}

		err := w.RunIteration(c.iterCtx)
		if err != nil {
			if c.iterCtx.Err() != nil || w.Stopping() {
				return
			}
			// Iteration-level failures are the worker's business to
			// record; the loop keeps going.
		}
		c.iterations.Add(1)
	}
}

// drain asks every remaining worker to stop and waits for in-flight
// iterations to complete, bounded by the schedule's graceful-stop
// budget. Past the budget, outstanding iterations are aborted.
func (c *Controller) drain() {
	c.workersMu.Lock()
	for _, w := range c.workers {
		w.RequestStop()
	}
	c.workers = nil
	c.workersMu.Unlock()

	graceful := c.schedule.GracefulStop
	if graceful <= 0 {
		graceful = defaultGracefulStop
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(graceful):
		log.Warn("graceful stop timeout expired with iterations still in flight")
		c.iterCancel()
		<-done
	}
}

// ActiveVUs reports how many worker goroutines are currently live.
func (c *Controller) ActiveVUs() int {
	return int(c.activeVUs.Load())
}

// TargetVUs reports the most recently computed schedule target.
func (c *Controller) TargetVUs() int {
	return int(c.targetVUs.Load())
}

// Iterations reports the total number of completed iterations.
func (c *Controller) Iterations() int64 {
	return c.iterations.Load()
}

// Elapsed reports time since Run started, or zero before Run.
func (c *Controller) Elapsed() time.Duration {
	if c.startTime.IsZero() {
		return 0
	}
	return time.Since(c.startTime)
}

// Progress reports run completion in [0, 1].
func (c *Controller) Progress() float64 {
	total := c.schedule.TotalDuration()
	if c.startTime.IsZero() {
		return 0
	}
	if total <= 0 {
		return 1
	}
	p := float64(time.Since(c.startTime)) / float64(total)
	if p > 1 {
		return 1
	}
	return p
}

// CurrentStage reports the active stage index and the stage count.
func (c *Controller) CurrentStage() (int, int) {
	return int(c.currentStage.Load()), len(c.schedule.Stages)
}

// Running reports whether Run is currently executing.
func (c *Controller) Running() bool {
	return c.running.Load()
}
