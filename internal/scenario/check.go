package scenario

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
)

// Outcome is what one HTTP call produced: status, body, and wall time.
// It is built per call, consumed by checks and metric recording, then
// discarded.
type Outcome struct {
	// Status is the HTTP status code, 0 when the call never completed.
	Status int

	// Body is the full response body.
	Body []byte

	// BytesReceived is the body length in bytes.
	BytesReceived int64

	// Duration is the wall time from request start to body fully read.
	Duration time.Duration

	// Waiting is the time to first response byte, 0 if never reached.
	Waiting time.Duration

	// Err is the network-level failure, if any. A non-nil Err fails
	// every check: there is no response to assert against.
	Err error
}

// Failed reports whether the call failed outright: a network error or an
// error-class status code.
func (o *Outcome) Failed() bool {
	return o.Err != nil || o.Status >= 400
}

// Check is a named boolean assertion over an outcome. Checks are tallied
// into the checks rate and never abort an iteration.
type Check struct {
	Name string
	fn   func(*Outcome) bool
}

// Run evaluates the check. An outcome with a network error fails
// unconditionally.
func (c Check) Run(o *Outcome) bool {
	if o.Err != nil {
		return false
	}
	return c.fn(o)
}

// StatusIs asserts the exact status code.
func StatusIs(code int) Check {
	return Check{
		Name: fmt.Sprintf("status is %d", code),
		fn: func(o *Outcome) bool {
			return o.Status == code
		},
	}
}

// StatusBelow asserts the status code is strictly below bound.
func StatusBelow(bound int) Check {
	return Check{
		Name: fmt.Sprintf("status below %d", bound),
		fn: func(o *Outcome) bool {
			return o.Status < bound
		},
	}
}

// NonEmptyBody asserts the response carried at least one body byte.
func NonEmptyBody() Check {
	return Check{
		Name: "non-empty body",
		fn: func(o *Outcome) bool {
			return len(o.Body) > 0
		},
	}
}

// BodyContains asserts the body contains the given substring.
func BodyContains(substr string) Check {
	return Check{
		Name: fmt.Sprintf("body contains %q", substr),
		fn: func(o *Outcome) bool {
			return strings.Contains(string(o.Body), substr)
		},
	}
}

// JSONField asserts the value at a gjson path stringifies to want.
// A missing path fails.
func JSONField(path, want string) Check {
	return Check{
		Name: fmt.Sprintf("json %s == %s", path, want),
		fn: func(o *Outcome) bool {
			result := gjson.GetBytes(o.Body, path)
			return result.Exists() && result.String() == want
		},
	}
}

// JSONSchema asserts the body validates against a JSON Schema. The
// schema is compiled once here; a malformed schema is a configuration
// bug surfaced before any VU starts.
func JSONSchema(name, schema string) (Check, error) {
	compiled, err := jsonschema.CompileString("schema.json", schema)
	if err != nil {
		return Check{}, fmt.Errorf("invalid schema for check %q: %w", name, err)
	}

	return Check{
		Name: name,
		fn: func(o *Outcome) bool {
			var doc interface{}
			if err := json.Unmarshal(o.Body, &doc); err != nil {
				return false
			}
			return compiled.Validate(doc) == nil
		},
	}, nil
}

// MustJSONSchema is JSONSchema for schemas known at compile time, such
// as the built-in catalog's.
func MustJSONSchema(name, schema string) Check {
	c, err := JSONSchema(name, schema)
	if err != nil {
		panic(err)
	}
	return c
}

// MaxDuration asserts the call completed within d.
func MaxDuration(d time.Duration) Check {
	return Check{
		Name: fmt.Sprintf("duration under %s", d),
		fn: func(o *Outcome) bool {
			return o.Duration <= d
		},
	}
}
