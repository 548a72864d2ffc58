package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/nkoretz/drover/internal/cli"
	"github.com/nkoretz/drover/internal/config"
	"github.com/nkoretz/drover/internal/runner"
)

// Exit codes, so wrappers and CI can tell outcomes apart:
// 0 passed, 1 thresholds failed or runtime error, 2 configuration
// error, 3 environment not ready.
const (
	exitOK            = 0
	exitFailed        = 1
	exitConfiguration = 2
	exitEnvironment   = 3
)

// Main runs the CLI and maps the resulting error onto an exit code.
// Exported to make the mapping testable.
func Main() int {
	err := cli.Execute()
	if err == nil {
		return exitOK
	}

	// The run summary has already told the story for a failed verdict.
	if !errors.Is(err, cli.ErrThresholdsFailed) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}

	return exitCode(err)
}

func exitCode(err error) int {
	var verrs *config.ValidationErrors
	var notFound *runner.NotFoundError
	var envErr *runner.EnvironmentError

	switch {
	case errors.As(err, &verrs), errors.As(err, &notFound):
		return exitConfiguration
	case errors.As(err, &envErr):
		return exitEnvironment
	default:
		return exitFailed
	}
}

func main() {
	os.Exit(Main())
}
