package runner_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkoretz/drover/internal/config"
	"github.com/nkoretz/drover/internal/runner"
	"github.com/nkoretz/drover/internal/scenario"
	"github.com/nkoretz/drover/internal/schedule"
)

// Server behaviors for integration runs.
type serverType int

const (
	serverNormal serverType = iota
	serverMixed
)

// newBehaviorServer serves /health plus a root endpoint with the given
// behavior: serverNormal answers 200 after ~10ms, serverMixed fails
// every fifth request.
func newBehaviorServer(t *testing.T, st serverType) *httptest.Server {
	t.Helper()

	var count atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"healthy"}`))
			return
		}

		n := count.Add(1)
		switch st {
		case serverMixed:
			time.Sleep(5 * time.Millisecond)
			if n%5 == 0 {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":"occasional error"}`))
				return
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(fmt.Sprintf(`{"status":"ok","request":%d}`, n)))
		default:
			time.Sleep(10 * time.Millisecond)
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(fmt.Sprintf(`{"status":"ok","request":%d}`, n)))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func okRequest() scenario.RequestSpec {
	return scenario.RequestSpec{
		Name:   "ok",
		Method: http.MethodGet,
		Path:   "/",
		Weight: 1,
		Checks: []scenario.Check{scenario.StatusIs(http.StatusOK)},
	}
}

func TestRunnerIntegration_RampingSchedule(t *testing.T) {
	srv := newBehaviorServer(t, serverNormal)

	def := &scenario.Definition{
		Name:        "ramping",
		Description: "ramp up, hold, ramp down",
		Schedule: schedule.Schedule{
			Stages: []schedule.Stage{
				{Duration: 300 * time.Millisecond, Target: 4},
				{Duration: 400 * time.Millisecond, Target: 4},
				{Duration: 300 * time.Millisecond, Target: 0},
			},
			GracefulStop: 5 * time.Second,
		},
		Thresholds: map[string][]string{
			"http_req_duration": {"p(95)<2000"},
			"errors":            {"rate<0.1"},
		},
		Requests: []scenario.RequestSpec{okRequest()},
	}

	c := runner.NewCatalog()
	require.NoError(t, c.Register(def))

	cfg := config.Default()
	cfg.BaseURL = srv.URL

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	summary, err := runner.New(c).Execute(ctx, "ramping", cfg)
	require.NoError(t, err)
	require.NotNil(t, summary)

	assert.True(t, summary.Passed, "thresholds: %+v", summary.Thresholds)
	assert.True(t, summary.Iterations > 0, "should have completed iterations")
	assert.Equal(t, summary.Iterations, summary.Requests, "one request per iteration")
	assert.GreaterOrEqual(t, summary.Latency.P95, 9.5, "handler sleeps 10ms per request")
	assert.True(t, time.Duration(summary.Duration) >= 900*time.Millisecond, "run should cover the schedule")

	t.Logf("Ramping Results:")
	t.Logf("  Iterations: %d", summary.Iterations)
	t.Logf("  P95 Latency: %.2fms", summary.Latency.P95)
	t.Logf("  Error Rate: %.4f", summary.ErrorRate)
}

func TestRunnerIntegration_MixedTraffic(t *testing.T) {
	srv := newBehaviorServer(t, serverMixed)

	def := &scenario.Definition{
		Name:        "mixed",
		Description: "every fifth request fails",
		Schedule: schedule.Schedule{
			StartVUs:     3,
			Stages:       []schedule.Stage{{Duration: 800 * time.Millisecond, Target: 3}},
			GracefulStop: 5 * time.Second,
		},
		Thresholds: map[string][]string{
			"errors": {"rate<0.1"},
		},
		Requests: []scenario.RequestSpec{okRequest()},
	}

	c := runner.NewCatalog()
	require.NoError(t, c.Register(def))

	cfg := config.Default()
	cfg.BaseURL = srv.URL

	summary, err := runner.New(c).Execute(context.Background(), "mixed", cfg)
	require.NoError(t, err)

	assert.False(t, summary.Passed, "a 20 percent error rate should miss rate<0.1")
	assert.InDelta(t, 0.2, summary.ErrorRate, 0.1, "error rate should sit near one in five")
	assert.Equal(t, summary.Failures, int64(float64(summary.Requests)*summary.ErrorRate+0.5))

	t.Logf("Mixed Traffic Results: requests=%d errors=%d rate=%.4f",
		summary.Requests, summary.Failures, summary.ErrorRate)
}

func TestRunnerIntegration_BatchScenario(t *testing.T) {
	srv := newBehaviorServer(t, serverNormal)

	def := &scenario.Definition{
		Name:        "grouped",
		Description: "three concurrent requests per iteration",
		Schedule: schedule.Schedule{
			StartVUs:     2,
			Stages:       []schedule.Stage{{Duration: 700 * time.Millisecond, Target: 2}},
			GracefulStop: 5 * time.Second,
		},
		Thresholds: map[string][]string{
			"errors": {"rate<0.1"},
		},
		Batch: [][]scenario.RequestSpec{
			{okRequest(), okRequest(), okRequest()},
		},
		Pacing: scenario.FixedPacing(50 * time.Millisecond),
	}

	c := runner.NewCatalog()
	require.NoError(t, c.Register(def))

	cfg := config.Default()
	cfg.BaseURL = srv.URL

	summary, err := runner.New(c).Execute(context.Background(), "grouped", cfg)
	require.NoError(t, err)

	assert.True(t, summary.Iterations > 0)
	assert.Equal(t, summary.Iterations*3, summary.Requests, "every iteration issues the whole group")
	assert.True(t, summary.Passed, "thresholds: %+v", summary.Thresholds)

	t.Logf("Batch Results: iterations=%d requests=%d", summary.Iterations, summary.Requests)
}

func TestRunnerIntegration_ThresholdOverride(t *testing.T) {
	srv := newBehaviorServer(t, serverNormal)

	def := &scenario.Definition{
		Name:        "overridden",
		Description: "config thresholds replace scenario defaults per metric",
		Schedule: schedule.Schedule{
			StartVUs:     2,
			Stages:       []schedule.Stage{{Duration: 500 * time.Millisecond, Target: 2}},
			GracefulStop: 5 * time.Second,
		},
		Thresholds: map[string][]string{
			"http_req_duration": {"p(95)<2000"},
		},
		Requests: []scenario.RequestSpec{okRequest()},
	}

	c := runner.NewCatalog()
	require.NoError(t, c.Register(def))

	cfg := config.Default()
	cfg.BaseURL = srv.URL
	cfg.Thresholds = map[string][]string{
		"http_req_duration": {"p(95)<0.001"},
	}

	summary, err := runner.New(c).Execute(context.Background(), "overridden", cfg)
	require.NoError(t, err)

	require.Len(t, summary.Thresholds, 1)
	assert.Equal(t, "p(95)<0.001", summary.Thresholds[0].Expression)
	assert.False(t, summary.Thresholds[0].Passed, "10ms latency cannot beat a microsecond limit")
	assert.False(t, summary.Passed)
}
