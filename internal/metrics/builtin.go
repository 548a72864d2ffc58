package metrics

// Builtin metric names. Thresholds reference these, so the names are part
// of the configuration surface.
const (
	MetricRequests          = "http_reqs"
	MetricRequestDuration   = "http_req_duration"
	MetricRequestWaiting    = "http_req_waiting"
	MetricChecks            = "checks"
	MetricErrors            = "errors"
	MetricExpectedErrors    = "expected_errors"
	MetricIterations        = "iterations"
	MetricIterationDuration = "iteration_duration"
	MetricDataReceived      = "data_received"
)

// Builtin holds the standard register set created once per run and shared
// by reference with every VU.
//
// Errors tracks organic failures only: network errors and unexpected
// status codes. Responses a request declared it wanted (negative-path
// tests hitting an error endpoint on purpose) count into ExpectedErrors
// instead, so designed failure traffic never moves the error rate.
type Builtin struct {
	Requests          *Counter
	RequestDuration   *Trend
	RequestWaiting    *Trend
	Checks            *Rate
	Errors            *Rate
	ExpectedErrors    *Counter
	Iterations        *Counter
	IterationDuration *Trend
	DataReceived      *Counter
}

// NewBuiltin registers the standard set on the given registry.
func NewBuiltin(r *Registry) (*Builtin, error) {
	b := &Builtin{}
	var err error

	if b.Requests, err = r.Counter(MetricRequests); err != nil {
		return nil, err
	}
	if b.RequestDuration, err = r.Trend(MetricRequestDuration); err != nil {
		return nil, err
	}
	if b.RequestWaiting, err = r.Trend(MetricRequestWaiting); err != nil {
		return nil, err
	}
	if b.Checks, err = r.Rate(MetricChecks); err != nil {
		return nil, err
	}
	if b.Errors, err = r.Rate(MetricErrors); err != nil {
		return nil, err
	}
	if b.ExpectedErrors, err = r.Counter(MetricExpectedErrors); err != nil {
		return nil, err
	}
	if b.Iterations, err = r.Counter(MetricIterations); err != nil {
		return nil, err
	}
	if b.IterationDuration, err = r.Trend(MetricIterationDuration); err != nil {
		return nil, err
	}
	if b.DataReceived, err = r.Counter(MetricDataReceived); err != nil {
		return nil, err
	}

	return b, nil
}
