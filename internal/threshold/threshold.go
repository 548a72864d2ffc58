// Package threshold compiles pass criteria like "p(95)<500" and
// evaluates them once against final register state. Compilation happens
// before any VU starts so a bad expression or a dangling metric name
// never costs a run.
package threshold

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/nkoretz/drover/internal/config"
	"github.com/nkoretz/drover/internal/metrics"
)

type aggKind int

const (
	aggRate aggKind = iota
	aggCount
	aggAvg
	aggMed
	aggMin
	aggMax
	aggPercentile
)

// exprPattern captures aggregate, optional percentile argument,
// comparison operator, and numeric limit. Longer operators come first
// in the alternation so "<=" never half-matches as "<".
var exprPattern = regexp.MustCompile(
	`^(rate|count|avg|mean|med|min|max|p\(\s*([0-9]+(?:\.[0-9]+)?)\s*\))\s*(<=|>=|<|>)\s*([0-9]+(?:\.[0-9]+)?)$`)

// Threshold is one compiled expression bound to its register. Trend
// aggregates are in milliseconds, matching what the trends record.
type Threshold struct {
	// Metric is the register name the expression applies to.
	Metric string

	// Expression is the normalized source text.
	Expression string

	agg      aggKind
	quantile float64
	op       string
	limit    float64

	rate    *metrics.Rate
	counter *metrics.Counter
	trend   *metrics.Trend
}

// Parse compiles a single expression for the named metric. The register
// binding happens separately in Compile; Parse alone accepts any metric
// name.
func Parse(metric, expr string) (*Threshold, error) {
	normalized := strings.ToLower(strings.TrimSpace(expr))

	m := exprPattern.FindStringSubmatch(normalized)
	if m == nil {
		return nil, fmt.Errorf("invalid threshold expression %q (want e.g. \"p(95)<500\", \"rate<0.01\", \"count>100\")", expr)
	}

	t := &Threshold{
		Metric:     metric,
		Expression: normalized,
		op:         m[3],
	}

	limit, err := strconv.ParseFloat(m[4], 64)
	if err != nil {
		return nil, fmt.Errorf("invalid threshold limit %q: %w", m[4], err)
	}
	t.limit = limit

	switch {
	case strings.HasPrefix(m[1], "p("):
		q, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid percentile %q: %w", m[2], err)
		}
		if q < 0 || q > 100 {
			return nil, fmt.Errorf("percentile %v out of range [0, 100]", q)
		}
		t.agg = aggPercentile
		t.quantile = q
	case m[1] == "rate":
		t.agg = aggRate
	case m[1] == "count":
		t.agg = aggCount
	case m[1] == "avg" || m[1] == "mean":
		t.agg = aggAvg
	case m[1] == "med":
		t.agg = aggMed
	case m[1] == "min":
		t.agg = aggMin
	case m[1] == "max":
		t.agg = aggMax
	}

	return t, nil
}

// Compile parses every expression and binds each to its register.
// Unknown metrics and aggregate/kind mismatches are configuration
// errors; all of them are collected in one pass. Results follow metric
// name order so verdicts print deterministically.
func Compile(reg *metrics.Registry, thresholds map[string][]string) ([]*Threshold, error) {
	errs := &config.ValidationErrors{}
	var compiled []*Threshold

	names := make([]string, 0, len(thresholds))
	for name := range thresholds {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		register, ok := reg.Lookup(name)
		if !ok {
			errs.Add("thresholds."+name, "unknown metric")
			continue
		}

		for i, expr := range thresholds[name] {
			t, err := Parse(name, expr)
			if err != nil {
				errs.Add(fmt.Sprintf("thresholds.%s[%d]", name, i), err.Error())
				continue
			}
			if err := t.bind(register); err != nil {
				errs.Add(fmt.Sprintf("thresholds.%s[%d]", name, i), err.Error())
				continue
			}
			compiled = append(compiled, t)
		}
	}

	if errs.HasErrors() {
		return nil, errs
	}
	return compiled, nil
}

// bind attaches the register, rejecting aggregates the register kind
// cannot answer.
func (t *Threshold) bind(reg metrics.Register) error {
	switch t.agg {
	case aggRate:
		r, ok := reg.(*metrics.Rate)
		if !ok {
			return fmt.Errorf("rate() requires a rate metric, %q is a %s", t.Metric, kindName(reg))
		}
		t.rate = r
	case aggCount:
		c, ok := reg.(*metrics.Counter)
		if !ok {
			return fmt.Errorf("count() requires a counter metric, %q is a %s", t.Metric, kindName(reg))
		}
		t.counter = c
	default:
		tr, ok := reg.(*metrics.Trend)
		if !ok {
			return fmt.Errorf("%s requires a trend metric, %q is a %s", t.aggName(), t.Metric, kindName(reg))
		}
		t.trend = tr
	}
	return nil
}

func (t *Threshold) aggName() string {
	switch t.agg {
	case aggRate:
		return "rate"
	case aggCount:
		return "count"
	case aggAvg:
		return "avg"
	case aggMed:
		return "med"
	case aggMin:
		return "min"
	case aggMax:
		return "max"
	case aggPercentile:
		return fmt.Sprintf("p(%g)", t.quantile)
	default:
		return "unknown"
	}
}

func kindName(reg metrics.Register) string {
	switch reg.(type) {
	case *metrics.Counter:
		return "counter"
	case *metrics.Rate:
		return "rate"
	case *metrics.Trend:
		return "trend"
	default:
		return "unknown"
	}
}

// value reads the aggregate from the bound register.
func (t *Threshold) value() float64 {
	switch t.agg {
	case aggRate:
		return t.rate.Rate()
	case aggCount:
		return float64(t.counter.Count())
	case aggAvg:
		return t.trend.Mean()
	case aggMed:
		return t.trend.Med()
	case aggMin:
		return t.trend.Min()
	case aggMax:
		return t.trend.Max()
	case aggPercentile:
		return t.trend.Percentile(t.quantile)
	default:
		return math.NaN()
	}
}

// Result is the verdict for one expression.
type Result struct {
	Metric     string  `json:"metric"`
	Expression string  `json:"expression"`
	Value      float64 `json:"value"`
	Passed     bool    `json:"passed"`
}

// MarshalJSON renders a NaN value as null; encoding/json rejects NaN
// floats outright.
func (r Result) MarshalJSON() ([]byte, error) {
	type alias Result
	aux := struct {
		alias
		Value *float64 `json:"value"`
	}{alias: alias(r)}
	if !math.IsNaN(r.Value) {
		aux.Value = &r.Value
	}
	return json.Marshal(aux)
}

// Evaluate reads every threshold's aggregate and compares it against
// the limit. A NaN aggregate fails: a threshold on a register that never
// saw an observation cannot vouch for anything. The second return is
// the overall verdict.
func Evaluate(thresholds []*Threshold) ([]Result, bool) {
	results := make([]Result, 0, len(thresholds))
	passed := true

	for _, t := range thresholds {
		value := t.value()
		ok := !math.IsNaN(value) && compare(value, t.op, t.limit)
		if !ok {
			passed = false
		}
		results = append(results, Result{
			Metric:     t.Metric,
			Expression: t.Expression,
			Value:      value,
			Passed:     ok,
		})
	}

	return results, passed
}

func compare(value float64, op string, limit float64) bool {
	switch op {
	case "<":
		return value < limit
	case "<=":
		return value <= limit
	case ">":
		return value > limit
	case ">=":
		return value >= limit
	default:
		return false
	}
}
