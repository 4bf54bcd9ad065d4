package preflight

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dikeworks/floxrun/internal/config"
)

const sampleDataset = `{
  "locations": [
    {
      "name": "DP0375_sloot1",
      "dijkpaal": 375,
      "ondergrond": 1,
      "uittredepunt": -17,
      "max_zp_wp": -1.2,
      "slootpeil": -2,
      "waterstand_bij_norm": 3.1,
      "points": {"MV_bin": [40, -1], "MV_bui": [-30, 0.2]}
    }
  ],
  "soil_profiles": [
    {
      "id": 1,
      "layers": [
        {"soil_name": "DK", "top": 2, "bottom": 0},
        {"soil_name": "ZZZZ", "top": 0, "bottom": -5},
        {"soil_name": "ZA", "top": -5, "bottom": -12, "is_aquifer": 1, "aquifer_number": 1}
      ]
    }
  ]
}`

func writeDataset(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snapshot.json")
	if err := os.WriteFile(path, []byte(sampleDataset), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func validSettings(t *testing.T) *config.Settings {
	t.Helper()
	console := filepath.Join(t.TempDir(), "console")
	if err := os.WriteFile(console, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return &config.Settings{
		OutputDir:     t.TempDir(),
		DefaultEngine: "main",
		Engines: map[string]*config.EngineProfile{
			"main": {Type: "dgeoflow", Path: console},
		},
	}
}

func TestRunAllGreen(t *testing.T) {
	settings := validSettings(t)
	report := Run(settings, []string{writeDataset(t)})

	if report.HasCritical() {
		t.Fatalf("unexpected critical findings: %+v", report.Findings)
	}
	// the ZZZZ layer is an unknown soil code
	found := false
	for _, f := range report.Findings {
		if f.Check == "soil-codes" && strings.Contains(f.Message, "ZZZZ") {
			found = true
		}
	}
	if !found {
		t.Fatalf("unknown soil code not flagged: %+v", report.Findings)
	}
}

func TestRunMissingConsole(t *testing.T) {
	settings := validSettings(t)
	settings.Engines["main"].Path = "/nonexistent/console"

	report := Run(settings, []string{writeDataset(t)})
	if !report.HasCritical() {
		t.Fatalf("missing console not critical: %+v", report.Findings)
	}
}

func TestRunScriptEngineNotInPath(t *testing.T) {
	settings := validSettings(t)
	settings.Engines["main"] = &config.EngineProfile{Type: "script", Command: "definitely-not-a-command"}

	report := Run(settings, []string{writeDataset(t)})
	if !report.HasCritical() {
		t.Fatalf("missing command not critical: %+v", report.Findings)
	}
}

func TestRunNoDatasets(t *testing.T) {
	report := Run(validSettings(t), nil)
	if !report.HasCritical() {
		t.Fatalf("no datasets not critical: %+v", report.Findings)
	}
}

func TestRunBadDataset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(path, []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	report := Run(validSettings(t), []string{path})
	if !report.HasCritical() {
		t.Fatalf("broken dataset not critical: %+v", report.Findings)
	}
}

func TestRunDanglingProfileReference(t *testing.T) {
	content := strings.Replace(sampleDataset, `"ondergrond": 1`, `"ondergrond": 99`, 1)
	path := filepath.Join(t.TempDir(), "snapshot.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	report := Run(validSettings(t), []string{path})
	found := false
	for _, f := range report.Findings {
		if f.Check == "profile-refs" && f.Severity == SeverityWarning {
			found = true
		}
	}
	if !found {
		t.Fatalf("dangling profile not flagged: %+v", report.Findings)
	}
}

func TestRunInvertedDijkpaalRange(t *testing.T) {
	settings := validSettings(t)
	settings.FromDijkpaal = 400
	settings.ToDijkpaal = 368

	report := Run(settings, []string{writeDataset(t)})
	if !report.HasCritical() {
		t.Fatalf("inverted range not critical: %+v", report.Findings)
	}
}

func TestTextFormatter(t *testing.T) {
	report := &Report{
		Checked: []string{"settings", "engines"},
		Findings: []Finding{
			{Check: "engine-main", Severity: SeverityCritical, Message: "console not found", Hint: "install it"},
			{Check: "soil-codes", Severity: SeverityWarning, Message: "unknown soil code"},
		},
	}

	var buf bytes.Buffer
	if err := NewTextFormatter(false).Format(&buf, report); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"CRITICAL", "WARNING", "console not found", "install it", "A run would fail"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestTextFormatterReady(t *testing.T) {
	var buf bytes.Buffer
	if err := NewTextFormatter(false).Format(&buf, &Report{Checked: []string{"settings"}}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Ready to run") {
		t.Fatalf("output = %s", buf.String())
	}
}

func TestParseSeverity(t *testing.T) {
	if ParseSeverity("critical") != SeverityCritical || ParseSeverity("WARNING") != SeverityWarning {
		t.Fatal("parse failed")
	}
	if ParseSeverity("bogus") != 0 {
		t.Fatal("bogus parsed")
	}
}
