package reporter

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dikeworks/floxrun/internal/batch"
)

func TestResultLineCompleted(t *testing.T) {
	res := &batch.Result{
		Name:       "DP0375_sloot1",
		State:      batch.StateCompleted,
		Duration:   83 * time.Second,
		PipeLength: 11.48,
	}
	got := ResultLine(res)
	want := "Scenario 'DP0375_sloot1': calculation took 83s, pipe length = 11.48m"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestResultLineNoModel(t *testing.T) {
	res := &batch.Result{Name: "DP0400", State: batch.StateNoModel, Error: "no aquifer in soil profile"}
	got := ResultLine(res)
	want := "No model could be created for scenario 'DP0400'"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestResultLineFailed(t *testing.T) {
	res := &batch.Result{Name: "DP0410", State: batch.StateFailed, Error: "engine exited: exit status 1"}
	got := ResultLine(res)
	want := "Scenario 'DP0410' has no result, got message 'engine exited: exit status 1'"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestResultLineLicenseBlocked(t *testing.T) {
	res := &batch.Result{Name: "DP0420", State: batch.StateLicenseBlocked, Error: "no engine license seat available"}
	got := ResultLine(res)
	if !strings.Contains(got, "has no result") || !strings.Contains(got, "no engine license seat available") {
		t.Fatalf("got %q", got)
	}
}

func TestResultLineSkippedEmpty(t *testing.T) {
	for _, state := range []batch.ScenarioState{batch.StatePending, batch.StateSkipped, batch.StateBuilding} {
		res := &batch.Result{Name: "x", State: state}
		if got := ResultLine(res); got != "" {
			t.Fatalf("state %v produced line %q", state, got)
		}
	}
}

func TestResultsWriterAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")
	w, err := NewResultsWriter(path)
	if err != nil {
		t.Fatal(err)
	}

	done := &batch.Result{Name: "a", State: batch.StateCompleted, Duration: 5 * time.Second, PipeLength: 3.2}
	pending := &batch.Result{Name: "b", State: batch.StatePending}
	if err := w.Append(done); err != nil {
		t.Fatal(err)
	}
	if err := w.Append(pending); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("lines = %v", lines)
	}
	if lines[0] != "Scenario 'a': calculation took 5s, pipe length = 3.2m" {
		t.Fatalf("line = %q", lines[0])
	}
}

func TestJSONReportRoundTrip(t *testing.T) {
	report := &batch.RunReport{
		RunID:    "abc123def456",
		Datasets: []string{"snapshot.json"},
		Results: map[string]*batch.Result{
			"a": {Name: "a", State: batch.StateCompleted, PipeLength: 7.5, EngineUsed: "dgeoflow-2024"},
			"b": {Name: "b", State: batch.StateFailed, Error: "boom"},
		},
		Total:     2,
		Completed: 1,
		Failed:    1,
	}

	path := filepath.Join(t.TempDir(), ReportFileName)
	if err := WriteJSONReport(report, path); err != nil {
		t.Fatal(err)
	}

	loaded, err := ReadJSONReport(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.RunID != "abc123def456" || loaded.Total != 2 {
		t.Fatalf("loaded = %+v", loaded)
	}
	if loaded.Results["a"].PipeLength != 7.5 {
		t.Fatalf("pipe length = %v", loaded.Results["a"].PipeLength)
	}
	if loaded.Results["b"].State != batch.StateFailed {
		t.Fatalf("state = %v", loaded.Results["b"].State)
	}
}

func TestReadJSONReportMissing(t *testing.T) {
	if _, err := ReadJSONReport(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing report")
	}
}

func TestTextReporterStatusSections(t *testing.T) {
	var buf bytes.Buffer
	r := NewTextReporter(&buf, false)

	results := map[string]*batch.Result{
		"run":     {Name: "run", State: batch.StateCalculating, StartedAt: time.Now(), LastMsg: "meshing"},
		"done":    {Name: "done", State: batch.StateCompleted, PipeLength: 12.3, Duration: time.Minute, EngineUsed: "dgeoflow-2024"},
		"fail":    {Name: "fail", State: batch.StateFailed, Error: "idle timeout: no console output for 5m0s"},
		"nomodel": {Name: "nomodel", State: batch.StateNoModel, Error: "no aquifer in soil profile"},
		"blocked": {Name: "blocked", State: batch.StateLicenseBlocked, RetryAt: time.Now().Add(time.Hour)},
		"wait":    {Name: "wait", State: batch.StatePending},
	}
	r.PrintStatus(results)

	out := buf.String()
	for _, want := range []string{
		"RUNNING", "COMPLETED", "FAILED", "NO MODEL", "LICENSE BLOCKED", "PENDING",
		"pipe length  12.30 m",
		"(dgeoflow-2024)",
		"idle timeout",
		"retry in",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestTextReporterSummary(t *testing.T) {
	var buf bytes.Buffer
	r := NewTextReporter(&buf, false)
	r.PrintSummary(&batch.RunReport{
		Total: 5, Completed: 3, Failed: 1, NoModel: 1,
		TotalDuration: 90 * time.Second,
	})
	out := buf.String()
	for _, want := range []string{"Total: 5", "Completed: 3", "Failed: 1", "No model: 1", "1m30s"} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestEngineSuffix(t *testing.T) {
	single := &batch.Result{State: batch.StateCompleted, EngineUsed: "dgeoflow-2024",
		Attempts: []batch.AttemptInfo{{Engine: "dgeoflow-2024"}}}
	if got := engineSuffix(single); got != " (dgeoflow-2024)" {
		t.Fatalf("single = %q", got)
	}

	fallback := &batch.Result{State: batch.StateCompleted, EngineUsed: "dgeoflow-2023",
		Attempts: []batch.AttemptInfo{{Engine: "dgeoflow-2024"}, {Engine: "dgeoflow-2023"}}}
	if got := engineSuffix(fallback); got != " (via dgeoflow-2023)" {
		t.Fatalf("fallback = %q", got)
	}

	failed := &batch.Result{State: batch.StateFailed,
		Attempts: []batch.AttemptInfo{{Engine: "dgeoflow-2024"}, {Engine: "dgeoflow-2023"}}}
	if got := engineSuffix(failed); got != " (tried dgeoflow-2024→dgeoflow-2023)" {
		t.Fatalf("failed = %q", got)
	}
}
