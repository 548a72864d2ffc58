package output

import (
	"bytes"
	"os"
	"testing"
)

func TestSchemeForNonTerminal(t *testing.T) {
	scheme := SchemeFor(&bytes.Buffer{}, false)
	if got := scheme.Pass.Sprint("ok"); got != "ok" {
		t.Errorf("non-terminal writer should get plain text, got %q", got)
	}
}

func TestSchemeForNoColorFlag(t *testing.T) {
	scheme := SchemeFor(os.Stdout, true)
	if got := scheme.Fail.Sprint("bad"); got != "bad" {
		t.Errorf("no-color flag should disable colors, got %q", got)
	}
}

func TestSchemeForNoColorEnv(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	scheme := SchemeFor(os.Stdout, false)
	if got := scheme.Title.Sprint("title"); got != "title" {
		t.Errorf("NO_COLOR should disable colors, got %q", got)
	}
}

func TestNoColorSchemePrintsPlain(t *testing.T) {
	scheme := NoColorScheme()
	if got := scheme.Warn.Sprintf("%d slow", 3); got != "3 slow" {
		t.Errorf("disabled scheme should format plainly, got %q", got)
	}
}
