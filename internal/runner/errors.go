package runner

import (
	"fmt"
	"strings"
)

// NotFoundError reports a scenario name the catalog does not know. It
// carries the known names so the message tells the user what would have
// worked.
type NotFoundError struct {
	Name  string
	Known []string
}

func (e *NotFoundError) Error() string {
	known := strings.Join(e.Known, ", ")
	if e.Name == "" {
		return fmt.Sprintf("no scenario specified (known scenarios: %s)", known)
	}
	return fmt.Sprintf("unknown scenario %q (known scenarios: %s)", e.Name, known)
}

// EnvironmentError means the target service could not be reached before
// the run. It maps to its own exit code so wrappers can distinguish "the
// harness is misconfigured" from "the environment is not up".
type EnvironmentError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *EnvironmentError) Error() string {
	return fmt.Sprintf("target %s unreachable after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *EnvironmentError) Unwrap() error {
	return e.Err
}
