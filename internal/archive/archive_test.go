package archive_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/nkoretz/drover/internal/archive"
)

func openTestStore(t *testing.T) *archive.Store {
	t.Helper()
	store, err := archive.Open(filepath.Join(t.TempDir(), "drover.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleRecord(scenario string, started time.Time, passed bool) *archive.Record {
	return &archive.Record{
		RunID:      "run-" + scenario,
		Scenario:   scenario,
		StartedAt:  started,
		Duration:   90 * time.Second,
		Iterations: 1200,
		Requests:   1200,
		ErrorRate:  0.004,
		CheckRate:  0.998,
		P95:        213.5,
		Passed:     passed,
		Summary:    `{"scenario":"` + scenario + `"}`,
	}
}

func TestSaveAndList(t *testing.T) {
	store := openTestStore(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, name := range []string{"smoke", "load", "stress"} {
		rec := sampleRecord(name, base.Add(time.Duration(i)*time.Minute), true)
		if err := store.Save(rec); err != nil {
			t.Fatalf("Save(%s) error = %v", name, err)
		}
		if rec.ID == 0 {
			t.Errorf("Save(%s) left ID unset", name)
		}
	}

	records, err := store.List(10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("List() returned %d records, want 3", len(records))
	}

	// Newest first.
	want := []string{"stress", "load", "smoke"}
	for i, rec := range records {
		if rec.Scenario != want[i] {
			t.Errorf("records[%d].Scenario = %q, want %q", i, rec.Scenario, want[i])
		}
	}
}

func TestRoundTrip(t *testing.T) {
	store := openTestStore(t)

	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	in := sampleRecord("soak", started, false)
	if err := store.Save(in); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	records, err := store.List(1)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	out := records[0]

	if out.RunID != in.RunID || out.Scenario != in.Scenario {
		t.Errorf("identity fields = %q/%q, want %q/%q", out.RunID, out.Scenario, in.RunID, in.Scenario)
	}
	if !out.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", out.StartedAt, started)
	}
	if out.Duration != in.Duration {
		t.Errorf("Duration = %v, want %v", out.Duration, in.Duration)
	}
	if out.Iterations != in.Iterations || out.Requests != in.Requests {
		t.Errorf("counts = %d/%d, want %d/%d", out.Iterations, out.Requests, in.Iterations, in.Requests)
	}
	if out.ErrorRate != in.ErrorRate || out.CheckRate != in.CheckRate || out.P95 != in.P95 {
		t.Errorf("rates = %v/%v/%v, want %v/%v/%v",
			out.ErrorRate, out.CheckRate, out.P95, in.ErrorRate, in.CheckRate, in.P95)
	}
	if out.Passed != in.Passed {
		t.Errorf("Passed = %v, want %v", out.Passed, in.Passed)
	}
	if out.Summary != in.Summary {
		t.Errorf("Summary = %q, want %q", out.Summary, in.Summary)
	}
}

func TestListLimit(t *testing.T) {
	store := openTestStore(t)

	base := time.Now()
	for i := 0; i < 5; i++ {
		rec := sampleRecord("smoke", base.Add(time.Duration(i)*time.Second), true)
		if err := store.Save(rec); err != nil {
			t.Fatal(err)
		}
	}

	records, err := store.List(2)
	if err != nil {
		t.Fatalf("List(2) error = %v", err)
	}
	if len(records) != 2 {
		t.Errorf("List(2) returned %d records", len(records))
	}
}

func TestCountAndClear(t *testing.T) {
	store := openTestStore(t)

	if n, err := store.Count(); err != nil || n != 0 {
		t.Fatalf("Count() on empty store = %d, %v", n, err)
	}

	if err := store.Save(sampleRecord("smoke", time.Now(), true)); err != nil {
		t.Fatal(err)
	}
	if n, _ := store.Count(); n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if n, _ := store.Count(); n != 0 {
		t.Errorf("Count() after Clear = %d, want 0", n)
	}
}

func TestOpenCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "drover.db")
	store, err := archive.Open(path)
	if err != nil {
		t.Fatalf("Open() with missing parents error = %v", err)
	}
	defer store.Close()

	if err := store.Save(sampleRecord("smoke", time.Now(), true)); err != nil {
		t.Errorf("Save() error = %v", err)
	}
}

func TestReopenKeepsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drover.db")

	store, err := archive.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Save(sampleRecord("spike", time.Now(), false)); err != nil {
		t.Fatal(err)
	}
	store.Close()

	reopened, err := archive.Open(path)
	if err != nil {
		t.Fatalf("reopening archive: %v", err)
	}
	defer reopened.Close()

	if n, _ := reopened.Count(); n != 1 {
		t.Errorf("Count() after reopen = %d, want 1", n)
	}
}
