package output

import (
	"fmt"

	"github.com/nkoretz/drover/internal/archive"
)

// PrintHistory renders archived runs, newest first.
func (p *Printer) PrintHistory(records []archive.Record) {
	if len(records) == 0 {
		p.println(p.scheme.Dim.Sprint("no archived runs"))
		return
	}

	p.println(p.scheme.Title.Sprintf("%-20s  %-12s  %-9s  %8s  %8s  %7s  %9s  %s",
		"STARTED", "SCENARIO", "DURATION", "ITERS", "REQS", "ERRORS", "P95", "RESULT"))

	for _, rec := range records {
		verdict := p.scheme.Pass.Sprint("PASS")
		if !rec.Passed {
			verdict = p.scheme.Fail.Sprint("FAIL")
		}

		p.println(fmt.Sprintf("%-20s  %-12s  %-9s  %8d  %8d  %6.1f%%  %9s  %s",
			rec.StartedAt.Local().Format("2006-01-02 15:04:05"),
			rec.Scenario,
			formatDuration(rec.Duration),
			rec.Iterations,
			rec.Requests,
			rec.ErrorRate*100,
			formatMillis(rec.P95),
			verdict))
	}
}
