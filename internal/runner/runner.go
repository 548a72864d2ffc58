// Package runner assembles a run from its parts: the catalog entry, the
// config overrides, the metric registers, compiled thresholds, and the
// VU schedule controller. It owns the run lifecycle from environment
// probe to archived summary.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/nkoretz/drover/internal/archive"
	"github.com/nkoretz/drover/internal/config"
	"github.com/nkoretz/drover/internal/metrics"
	"github.com/nkoretz/drover/internal/scenario"
	"github.com/nkoretz/drover/internal/schedule"
	"github.com/nkoretz/drover/internal/threshold"
)

// progressInterval is how often a running scenario logs its position.
const progressInterval = 5 * time.Second

// Latency is the request-duration digest of a run, in milliseconds.
type Latency struct {
	Min float64 `json:"min"`
	Med float64 `json:"med"`
	Avg float64 `json:"avg"`
	P90 float64 `json:"p90"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
	Max float64 `json:"max"`
}

// Summary is the final account of a run: traffic volume, outcome rates,
// the latency digest, and the threshold verdicts.
type Summary struct {
	RunID          string             `json:"runId"`
	Scenario       string             `json:"scenario"`
	StartedAt      time.Time          `json:"startedAt"`
	Duration       config.Duration    `json:"duration"`
	Iterations     int64              `json:"iterations"`
	Requests       int64              `json:"requests"`
	Failures       int64              `json:"failures"`
	ErrorRate      float64            `json:"errorRate"`
	Checks         int64              `json:"checks"`
	CheckRate      float64            `json:"checkRate"`
	ExpectedErrors int64              `json:"expectedErrors"`
	BytesReceived  int64              `json:"bytesReceived"`
	Latency        Latency            `json:"latency"`
	Thresholds     []threshold.Result `json:"thresholds"`
	Passed         bool               `json:"passed"`
	Interrupted    bool               `json:"interrupted,omitempty"`
}

// Execute runs one scenario to completion and returns its summary.
//
// The catalog entry is resolved first, then config overrides are folded
// into a run-local copy, thresholds are compiled against a fresh register
// set, and the schedule controller drives VUs until the profile ends or
// ctx is canceled. Cancellation is not an error: the run drains, the
// summary is marked interrupted, and thresholds are evaluated over what
// was collected.
func (r *Runner) Execute(ctx context.Context, name string, cfg *config.RunConfig) (*Summary, error) {
	def, err := r.catalog.Resolve(name)
	if err != nil {
		return nil, err
	}

	runDef, sched, thresholds, err := resolveOptions(def, cfg)
	if err != nil {
		return nil, err
	}

	reg := metrics.NewRegistry()
	builtin, err := metrics.NewBuiltin(reg)
	if err != nil {
		return nil, err
	}

	compiled, err := threshold.Compile(reg, thresholds)
	if err != nil {
		return nil, err
	}

	clientCfg := scenario.DefaultClientConfig()
	if cfg.HTTPTimeout != 0 {
		clientCfg.Timeout = time.Duration(cfg.HTTPTimeout)
	}
	clientCfg.InsecureSkipVerify = cfg.Insecure

	env := scenario.Env{
		BaseURL: cfg.BaseURL,
		Client:  scenario.NewClient(clientCfg),
		Metrics: builtin,
		RunID:   uuid.NewString(),
	}

	ctrl := schedule.NewController(sched, func(id int) schedule.Worker {
		return scenario.NewVU(id, runDef, env)
	})

	log.WithFields(log.Fields{
		"runId":    env.RunID,
		"scenario": runDef.Name,
		"baseUrl":  cfg.BaseURL,
		"duration": sched.TotalDuration().String(),
		"stages":   len(sched.Stages),
	}).Info("starting scenario")

	started := time.Now()

	progressDone := make(chan struct{})
	go logProgress(ctrl, progressDone)

	runErr := ctrl.Run(ctx)
	close(progressDone)

	interrupted := false
	if runErr != nil {
		if !errors.Is(runErr, context.Canceled) && !errors.Is(runErr, context.DeadlineExceeded) {
			return nil, runErr
		}
		interrupted = true
		log.Warn("run interrupted, reporting partial results")
	}

	results, passed := threshold.Evaluate(compiled)
	summary := buildSummary(env.RunID, runDef.Name, started, builtin, results, passed)
	summary.Interrupted = interrupted

	log.WithFields(log.Fields{
		"runId":      summary.RunID,
		"iterations": summary.Iterations,
		"requests":   summary.Requests,
		"passed":     summary.Passed,
	}).Info("scenario finished")

	if cfg.Archive != "" {
		if err := archiveRun(cfg.Archive, summary); err != nil {
			log.WithError(err).Warn("failed to archive run")
		}
	}

	return summary, nil
}

// resolveOptions folds config overrides into a run-local copy of the
// definition. VUs+Duration collapses the schedule to a single hold;
// Stages replaces it outright; ThinkTime replaces the pacing; threshold
// overrides merge per metric name.
func resolveOptions(def *scenario.Definition, cfg *config.RunConfig) (*scenario.Definition, schedule.Schedule, map[string][]string, error) {
	runDef := *def

	sched := def.Schedule
	switch {
	case len(cfg.Stages) > 0:
		stages := make([]schedule.Stage, len(cfg.Stages))
		for i, st := range cfg.Stages {
			stages[i] = schedule.Stage{Duration: time.Duration(st.Duration), Target: st.Target}
		}
		sched.Stages = stages
		if cfg.StartVUs != 0 {
			sched.StartVUs = cfg.StartVUs
		}
	case cfg.VUs > 0 || cfg.Duration > 0:
		errs := &config.ValidationErrors{}
		if cfg.VUs <= 0 {
			errs.Add("vus", "vus must be set together with duration")
		}
		if cfg.Duration <= 0 {
			errs.Add("duration", "duration must be set together with vus")
		}
		if errs.HasErrors() {
			return nil, schedule.Schedule{}, nil, errs
		}
		sched.StartVUs = cfg.VUs
		sched.Stages = []schedule.Stage{{Duration: time.Duration(cfg.Duration), Target: cfg.VUs}}
	}
	if cfg.GracefulStop != 0 {
		sched.GracefulStop = time.Duration(cfg.GracefulStop)
	}
	if err := sched.Validate(); err != nil {
		return nil, schedule.Schedule{}, nil, err
	}

	if cfg.ThinkTime != 0 {
		runDef.Pacing = scenario.FixedPacing(time.Duration(cfg.ThinkTime))
	}

	thresholds := make(map[string][]string, len(def.Thresholds)+len(cfg.Thresholds))
	for metric, exprs := range def.Thresholds {
		thresholds[metric] = exprs
	}
	for metric, exprs := range cfg.Thresholds {
		thresholds[metric] = exprs
	}

	return &runDef, sched, thresholds, nil
}

// logProgress periodically reports where the run is: elapsed time,
// schedule progress, live VU count, and iterations so far.
func logProgress(ctrl *schedule.Controller, done <-chan struct{}) {
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			log.WithFields(log.Fields{
				"elapsed":    ctrl.Elapsed().Round(time.Second).String(),
				"progress":   int(ctrl.Progress() * 100),
				"activeVUs":  ctrl.ActiveVUs(),
				"targetVUs":  ctrl.TargetVUs(),
				"iterations": ctrl.Iterations(),
			}).Info("run progress")
		}
	}
}

func buildSummary(runID, name string, started time.Time, b *metrics.Builtin, results []threshold.Result, passed bool) *Summary {
	dur := b.RequestDuration

	return &Summary{
		RunID:          runID,
		Scenario:       name,
		StartedAt:      started,
		Duration:       config.Duration(time.Since(started)),
		Iterations:     b.Iterations.Count(),
		Requests:       b.Requests.Count(),
		Failures:       b.Errors.Trues(),
		ErrorRate:      asRate(b.Errors.Rate()),
		Checks:         b.Checks.Total(),
		CheckRate:      asRate(b.Checks.Rate()),
		ExpectedErrors: b.ExpectedErrors.Count(),
		BytesReceived:  b.DataReceived.Count(),
		Latency: Latency{
			Min: dur.Min(),
			Med: dur.Med(),
			Avg: dur.Mean(),
			P90: dur.Percentile(90),
			P95: dur.Percentile(95),
			P99: dur.Percentile(99),
			Max: dur.Max(),
		},
		Thresholds: results,
		Passed:     passed,
	}
}

// asRate maps the empty-register NaN to 0 so summaries and archives stay
// JSON-clean. Threshold evaluation sees the raw NaN and fails on it.
func asRate(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}

// archiveRun appends the summary to the SQLite archive at path.
func archiveRun(path string, s *Summary) error {
	store, err := archive.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	blob, err := json.Marshal(s)
	if err != nil {
		return err
	}

	return store.Save(&archive.Record{
		RunID:      s.RunID,
		Scenario:   s.Scenario,
		StartedAt:  s.StartedAt,
		Duration:   time.Duration(s.Duration),
		Iterations: s.Iterations,
		Requests:   s.Requests,
		ErrorRate:  s.ErrorRate,
		CheckRate:  s.CheckRate,
		P95:        s.Latency.P95,
		Passed:     s.Passed,
		Summary:    string(blob),
	})
}
