package runner

import (
	"net/http"
	"time"

	"github.com/nkoretz/drover/internal/scenario"
	"github.com/nkoretz/drover/internal/schedule"
)

// calculateSchema pins the shape every calculator response must have.
const calculateSchema = `{
	"type": "object",
	"required": ["result", "operation"],
	"properties": {
		"result": {"type": "number"},
		"operation": {"type": "string"}
	}
}`

var jsonHeaders = map[string]string{"Content-Type": "application/json"}

func healthRequest(weight int) scenario.RequestSpec {
	return scenario.RequestSpec{
		Name:   "health",
		Method: http.MethodGet,
		Path:   "/health",
		Weight: weight,
		Checks: []scenario.Check{
			scenario.StatusIs(http.StatusOK),
			scenario.JSONField("status", "healthy"),
		},
	}
}

func rootRequest(weight int) scenario.RequestSpec {
	return scenario.RequestSpec{
		Name:   "root",
		Method: http.MethodGet,
		Path:   "/",
		Weight: weight,
		Checks: []scenario.Check{
			scenario.StatusIs(http.StatusOK),
			scenario.NonEmptyBody(),
		},
	}
}

func userRequest(weight int) scenario.RequestSpec {
	return scenario.RequestSpec{
		Name:   "user",
		Method: http.MethodGet,
		Path:   "/user/42",
		Weight: weight,
		Checks: []scenario.Check{
			scenario.StatusIs(http.StatusOK),
			scenario.JSONField("name", "User 42"),
		},
	}
}

func addRequest(weight int) scenario.RequestSpec {
	return scenario.RequestSpec{
		Name:    "add",
		Method:  http.MethodPost,
		Path:    "/calculate/add",
		Body:    `{"a":5,"b":3}`,
		Headers: jsonHeaders,
		Weight:  weight,
		Checks: []scenario.Check{
			scenario.StatusIs(http.StatusOK),
			scenario.JSONField("result", "8"),
			scenario.MustJSONSchema("calculate response", calculateSchema),
		},
	}
}

func divideRequest(weight int) scenario.RequestSpec {
	return scenario.RequestSpec{
		Name:    "divide",
		Method:  http.MethodPost,
		Path:    "/calculate/divide",
		Body:    `{"a":10,"b":4}`,
		Headers: jsonHeaders,
		Weight:  weight,
		Checks: []scenario.Check{
			scenario.StatusIs(http.StatusOK),
			scenario.JSONField("operation", "division"),
		},
	}
}

// businessMix is the weighted traffic blend the ramping scenarios share:
// reads dominate, writes follow, health pings trail.
func businessMix() []scenario.RequestSpec {
	return []scenario.RequestSpec{
		userRequest(4),
		addRequest(3),
		divideRequest(2),
		healthRequest(1),
	}
}

func builtins() []*scenario.Definition {
	return []*scenario.Definition{
		{
			Name:        "smoke",
			Description: "1 VU for 1m; confirms the target answers at all",
			Schedule: schedule.Schedule{
				StartVUs: 1,
				Stages:   []schedule.Stage{{Duration: time.Minute, Target: 1}},
			},
			Thresholds: map[string][]string{
				"checks":            {"rate>0.99"},
				"http_req_duration": {"p(95)<500"},
			},
			Requests: []scenario.RequestSpec{
				healthRequest(1),
				rootRequest(1),
				{
					Name:   "user",
					Method: http.MethodGet,
					Path:   "/user/42",
					Weight: 1,
					Checks: []scenario.Check{
						scenario.StatusIs(http.StatusOK),
						scenario.JSONField("name", "User 42"),
						scenario.MaxDuration(2 * time.Second),
					},
				},
			},
			Pacing: scenario.FixedPacing(time.Second),
		},
		{
			Name:        "load",
			Description: "ramp to 10 VUs, hold 5m; expected traffic level",
			Schedule: schedule.Schedule{
				Stages: []schedule.Stage{
					{Duration: 2 * time.Minute, Target: 10},
					{Duration: 5 * time.Minute, Target: 10},
					{Duration: time.Minute, Target: 0},
				},
			},
			Thresholds: map[string][]string{
				"http_req_duration": {"p(95)<500"},
				"errors":            {"rate<0.1"},
			},
			Requests: businessMix(),
			Pacing:   scenario.RangePlusPacing(0, 2*time.Second, time.Second),
		},
		{
			Name:        "stress",
			Description: "staircase to 30 VUs; finds the ceiling",
			Schedule: schedule.Schedule{
				Stages: []schedule.Stage{
					{Duration: time.Minute, Target: 10},
					{Duration: 2 * time.Minute, Target: 10},
					{Duration: time.Minute, Target: 20},
					{Duration: 2 * time.Minute, Target: 20},
					{Duration: time.Minute, Target: 30},
					{Duration: 2 * time.Minute, Target: 30},
					{Duration: 2 * time.Minute, Target: 0},
				},
			},
			Thresholds: map[string][]string{
				"http_req_duration": {"p(95)<2000"},
				"errors":            {"rate<0.1"},
			},
			Requests: businessMix(),
			Pacing:   scenario.UniformPacing(100*time.Millisecond, time.Second),
		},
		{
			Name:        "spike",
			Description: "sudden surge to 50 VUs, then recovery",
			Schedule: schedule.Schedule{
				Stages: []schedule.Stage{
					{Duration: 30 * time.Second, Target: 5},
					{Duration: 10 * time.Second, Target: 50},
					{Duration: time.Minute, Target: 50},
					{Duration: 10 * time.Second, Target: 5},
					{Duration: 30 * time.Second, Target: 0},
				},
			},
			Thresholds: map[string][]string{
				"errors": {"rate<0.15"},
			},
			Requests: []scenario.RequestSpec{
				userRequest(3),
				healthRequest(1),
			},
			Pacing: scenario.UniformPacing(100*time.Millisecond, 500*time.Millisecond),
		},
		{
			Name:        "soak",
			Description: "expected traffic held for 30m; exposes leaks and drift",
			Schedule: schedule.Schedule{
				Stages: []schedule.Stage{
					{Duration: 2 * time.Minute, Target: 10},
					{Duration: 30 * time.Minute, Target: 10},
					{Duration: 2 * time.Minute, Target: 0},
				},
			},
			Thresholds: map[string][]string{
				"http_req_duration": {"p(95)<800"},
				"errors":            {"rate<0.05"},
			},
			Requests: append(businessMix(), rootRequest(1)),
			Pacing:   scenario.RangePlusPacing(0, 2*time.Second, time.Second),
		},
		{
			Name:        "error-paths",
			Description: "designed negative tests against the error endpoints",
			Schedule: schedule.Schedule{
				StartVUs: 2,
				Stages:   []schedule.Stage{{Duration: time.Minute, Target: 2}},
			},
			Thresholds: map[string][]string{
				"checks": {"rate>0.99"},
				"errors": {"rate<0.01"},
			},
			Requests: []scenario.RequestSpec{
				{
					Name:        "simulated-error",
					Method:      http.MethodGet,
					Path:        "/simulate/error",
					Weight:      1,
					ExpectError: true,
					Checks: []scenario.Check{
						scenario.StatusIs(http.StatusInternalServerError),
						scenario.BodyContains("Simulated error occurred"),
					},
				},
				{
					Name:        "divide-by-zero",
					Method:      http.MethodPost,
					Path:        "/calculate/divide",
					Body:        `{"a":1,"b":0}`,
					Headers:     jsonHeaders,
					Weight:      1,
					ExpectError: true,
					Checks: []scenario.Check{
						scenario.StatusIs(http.StatusBadRequest),
						scenario.BodyContains("Cannot divide by zero"),
					},
				},
			},
			Pacing: scenario.FixedPacing(time.Second),
		},
		{
			Name:        "batch",
			Description: "concurrent request group per iteration",
			Schedule: schedule.Schedule{
				StartVUs: 3,
				Stages:   []schedule.Stage{{Duration: time.Minute, Target: 3}},
			},
			Thresholds: map[string][]string{
				"http_req_duration": {"p(95)<500"},
			},
			Batch: [][]scenario.RequestSpec{
				{healthRequest(1), userRequest(1), rootRequest(1)},
			},
			Pacing: scenario.FixedPacing(time.Second),
		},
	}
}
