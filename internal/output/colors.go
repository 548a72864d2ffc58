package output

import (
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// ColorScheme defines the colors used for different elements in the
// summary output.
type ColorScheme struct {
	Title    *color.Color
	Label    *color.Color
	Value    *color.Color
	Pass     *color.Color
	Fail     *color.Color
	Warn     *color.Color
	Interest *color.Color
	Dim      *color.Color
}

// DefaultColorScheme returns the default color scheme.
func DefaultColorScheme() *ColorScheme {
	return &ColorScheme{
		Title:    color.New(color.FgWhite, color.Bold),
		Label:    color.New(color.FgYellow),
		Value:    color.New(color.FgCyan),
		Pass:     color.New(color.FgGreen, color.Bold),
		Fail:     color.New(color.FgRed, color.Bold),
		Warn:     color.New(color.FgYellow, color.Bold),
		Interest: color.New(color.FgMagenta, color.Bold),
		Dim:      color.New(color.Faint),
	}
}

// NoColorScheme returns a color scheme with all colors disabled.
func NoColorScheme() *ColorScheme {
	scheme := DefaultColorScheme()

	scheme.Title.DisableColor()
	scheme.Label.DisableColor()
	scheme.Value.DisableColor()
	scheme.Pass.DisableColor()
	scheme.Fail.DisableColor()
	scheme.Warn.DisableColor()
	scheme.Interest.DisableColor()
	scheme.Dim.DisableColor()

	return scheme
}

// SchemeFor picks the scheme for a writer: colors only when the writer
// is a terminal, NO_COLOR is unset, and colors were not disabled
// explicitly.
func SchemeFor(w io.Writer, noColor bool) *ColorScheme {
	if noColor || os.Getenv("NO_COLOR") != "" || !isTerminal(w) {
		return NoColorScheme()
	}
	return DefaultColorScheme()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
