// Package output renders run summaries and scenario listings for the
// terminal, with colors when the destination is one.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/nkoretz/drover/internal/runner"
	"github.com/nkoretz/drover/internal/scenario"
)

const rule = "━"

// Printer renders summaries to a writer using a color scheme.
type Printer struct {
	w      io.Writer
	scheme *ColorScheme
	quiet  bool
}

// NewPrinter creates a printer. A nil scheme disables colors.
func NewPrinter(w io.Writer, scheme *ColorScheme, quiet bool) *Printer {
	if scheme == nil {
		scheme = NoColorScheme()
	}
	return &Printer{w: w, scheme: scheme, quiet: quiet}
}

// PrintSummary renders the final account of a run: verdict header,
// traffic volume, latency distribution, and per-threshold results.
// In quiet mode it prints a single PASSED or FAILED line.
func (p *Printer) PrintSummary(s *runner.Summary) {
	if p.quiet {
		if s.Passed {
			p.println(p.scheme.Pass.Sprint("PASSED"))
		} else {
			p.println(p.scheme.Fail.Sprint("FAILED"))
		}
		return
	}

	status := p.scheme.Pass.Sprint("Completed ✓")
	switch {
	case !s.Passed:
		status = p.scheme.Fail.Sprint("Failed ✗")
	case s.Interrupted:
		status = p.scheme.Warn.Sprint("Interrupted ⚠")
	}

	line := p.scheme.Dim.Sprint(strings.Repeat(rule, 56))

	p.println("")
	p.println(line)
	p.println(fmt.Sprintf("%s - %s", p.scheme.Title.Sprint(s.Scenario), status))
	p.println(line)
	p.println("")

	p.field("Run ID", s.RunID)
	p.field("Duration", formatDuration(time.Duration(s.Duration)))
	p.field("Iterations", formatNumber(s.Iterations))
	p.field("Requests", formatNumber(s.Requests))

	successRate := 1 - s.ErrorRate
	rateColor := p.scheme.Pass
	if successRate < 0.99 {
		rateColor = p.scheme.Warn
	}
	if successRate < 0.95 {
		rateColor = p.scheme.Fail
	}
	p.println(fmt.Sprintf("%s %s", p.pad("Success Rate:"), rateColor.Sprintf("%.1f%%", successRate*100)))

	if s.Checks > 0 {
		passed := int64(s.CheckRate*float64(s.Checks) + 0.5)
		p.println(fmt.Sprintf("%s %s", p.pad("Checks:"),
			p.scheme.Value.Sprintf("%.1f%% (%d of %d)", s.CheckRate*100, passed, s.Checks)))
	}
	if s.ExpectedErrors > 0 {
		p.field("Expected Errors", formatNumber(s.ExpectedErrors))
	}
	p.field("Data Received", formatBytes(s.BytesReceived))
	p.println("")

	p.println(p.scheme.Title.Sprint("Latency Distribution:"))
	p.latency("Min", s.Latency.Min)
	p.latency("Med", s.Latency.Med)
	p.latency("Avg", s.Latency.Avg)
	p.latency("P90", s.Latency.P90)
	p.latency("P95", s.Latency.P95)
	p.latency("P99", s.Latency.P99)
	p.latency("Max", s.Latency.Max)
	p.println("")

	if len(s.Thresholds) > 0 {
		p.println(p.scheme.Title.Sprint("Thresholds:"))
		for _, t := range s.Thresholds {
			mark := p.scheme.Pass.Sprint("✓")
			if !t.Passed {
				mark = p.scheme.Fail.Sprint("✗")
			}
			p.println(fmt.Sprintf("  %s %s: %s (actual: %s)", mark, t.Metric, t.Expression, formatValue(t.Value)))
		}
		p.println("")
	}
}

// PrintJSON renders the summary as indented JSON.
func (p *Printer) PrintJSON(s *runner.Summary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(p.w, string(data))
	return err
}

// PrintScenarios renders the catalog listing.
func (p *Printer) PrintScenarios(defs []*scenario.Definition) {
	width := len("NAME")
	for _, def := range defs {
		if len(def.Name) > width {
			width = len(def.Name)
		}
	}

	p.println(p.scheme.Title.Sprintf("%-*s  %-9s  %s", width, "NAME", "DURATION", "DESCRIPTION"))
	for _, def := range defs {
		p.println(fmt.Sprintf("%s  %-9s  %s",
			p.scheme.Value.Sprintf("%-*s", width, def.Name),
			formatDuration(def.Schedule.TotalDuration()),
			def.Description))
	}
}

func (p *Printer) field(label, value string) {
	p.println(fmt.Sprintf("%s %s", p.pad(label+":"), p.scheme.Value.Sprint(value)))
}

func (p *Printer) latency(label string, ms float64) {
	p.println(fmt.Sprintf("  %-5s %s", label+":", formatMillis(ms)))
}

func (p *Printer) pad(label string) string {
	return p.scheme.Label.Sprintf("%-16s", label)
}

func (p *Printer) println(s string) {
	fmt.Fprintln(p.w, s)
}

// formatDuration renders a duration the way a person reads one: ms below
// a second, then seconds, then minutes and hours.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%02dm", h, m)
}

// formatMillis renders a millisecond value at a precision that matches
// its magnitude.
func formatMillis(ms float64) string {
	switch {
	case math.IsNaN(ms):
		return "n/a"
	case ms <= 0:
		return "0ms"
	case ms < 10:
		return fmt.Sprintf("%.2fms", ms)
	case ms < 1000:
		return fmt.Sprintf("%.1fms", ms)
	default:
		return fmt.Sprintf("%.2fs", ms/1000)
	}
}

// formatNumber adds thousands separators.
func formatNumber(n int64) string {
	str := strconv.FormatInt(n, 10)
	neg := false
	if strings.HasPrefix(str, "-") {
		neg = true
		str = str[1:]
	}
	if len(str) <= 3 {
		if neg {
			return "-" + str
		}
		return str
	}

	var b strings.Builder
	offset := len(str) % 3
	if offset > 0 {
		b.WriteString(str[:offset])
	}
	for i := offset; i < len(str); i += 3 {
		if b.Len() > 0 {
			b.WriteString(",")
		}
		b.WriteString(str[i : i+3])
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

// formatBytes renders a byte count in binary units.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGT"[exp])
}

// formatValue renders a threshold's observed value, trimming noise
// digits. NaN means the metric never saw a sample.
func formatValue(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	s := strconv.FormatFloat(v, 'f', 3, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	return s
}
