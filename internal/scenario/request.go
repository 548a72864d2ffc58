package scenario

import (
	"math/rand"
)

// RequestSpec is one request variant a VU can issue: method and path
// relative to the run's base URL, an optional JSON body, the checks to
// apply to the response, and a selection weight.
//
// ExpectError marks a designed negative test. An error status arriving on
// an ExpectError request counts into the expected_errors counter and is
// recorded as a non-failure in the errors rate, so intentional error
// traffic never inflates the organic failure rate. A success arriving
// instead means the negative test itself misbehaved and is recorded as a
// failure.
type RequestSpec struct {
	// Name identifies the request in logs.
	Name string

	// Method and Path form the call; the full URL is BaseURL + Path.
	Method string
	Path   string

	// Body is sent verbatim; a non-empty body implies a JSON content type
	// unless Headers says otherwise.
	Body string

	// Headers are set on every request built from this spec.
	Headers map[string]string

	// Weight biases random selection. Values below 1 count as 1.
	Weight int

	// ExpectError marks the spec as an intentional negative test.
	ExpectError bool

	// Checks are evaluated against every response to this request.
	Checks []Check
}

// WeightedChoice picks one spec at random, with probability proportional
// to its weight. Equal weights make the choice uniform. Returns nil for
// an empty slice.
func WeightedChoice(rng *rand.Rand, specs []RequestSpec) *RequestSpec {
	if len(specs) == 0 {
		return nil
	}
	if len(specs) == 1 {
		return &specs[0]
	}

	total := 0
	for i := range specs {
		total += weightOf(&specs[i])
	}

	n := rng.Intn(total)
	for i := range specs {
		n -= weightOf(&specs[i])
		if n < 0 {
			return &specs[i]
		}
	}
	return &specs[len(specs)-1]
}

func weightOf(spec *RequestSpec) int {
	if spec.Weight < 1 {
		return 1
	}
	return spec.Weight
}
