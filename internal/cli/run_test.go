package cli

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dikeworks/floxrun/internal/batch"
	"github.com/dikeworks/floxrun/internal/config"
	"github.com/dikeworks/floxrun/internal/engine"
	"github.com/dikeworks/floxrun/internal/flox"
	"github.com/dikeworks/floxrun/internal/reporter"
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
      "bovengrens_slootpeil": -1.8,
      "ondergrens_slootpeil": -2.2,
      "waterstand_bij_norm": 3.1,
      "points": {"MV_bin": [40, -1], "MV_bui": [-30, 0.2]}
    },
    {
      "name": "DP0400",
      "dijkpaal": 400,
      "ondergrond": 1,
      "uittredepunt": -15,
      "max_zp_wp": -1.0,
      "slootpeil": -1.9,
      "bovengrens_slootpeil": -1.7,
      "ondergrens_slootpeil": -2.1,
      "waterstand_bij_norm": 3.0,
      "points": {"MV_bin": [38, -0.8], "MV_bui": [-28, 0.1]}
    }
  ],
  "soil_profiles": [
    {"id": 1, "layers": [{"soil_name": "ZA", "top": -5, "bottom": -12, "is_aquifer": 1, "aquifer_number": 1}]}
  ]
}`

func testSettings() *config.Settings {
	return &config.Settings{
		OutputDir: "output",
		Model:     flox.DefaultBuildParams(),
	}
}

func writeDataset(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dataset.json")
	if err := os.WriteFile(path, []byte(sampleDataset), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadScenarios(t *testing.T) {
	path := writeDataset(t)

	scenarios, issues, paths, err := loadScenarios([]string{path}, testSettings(), "", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(scenarios) != 2 || len(issues) != 0 {
		t.Fatalf("scenarios=%d issues=%d", len(scenarios), len(issues))
	}
	if len(paths) != 1 || paths[0] != path {
		t.Fatalf("paths = %v", paths)
	}
}

func TestLoadScenariosFilter(t *testing.T) {
	path := writeDataset(t)

	scenarios, _, _, err := loadScenarios([]string{path}, testSettings(), "DP0375*", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(scenarios) != 1 || scenarios[0].Name != "DP0375_sloot1" {
		t.Fatalf("scenarios = %+v", scenarios)
	}
}

func TestLoadScenariosDijkpaalRange(t *testing.T) {
	path := writeDataset(t)

	scenarios, _, _, err := loadScenarios([]string{path}, testSettings(), "", 390, 410)
	if err != nil {
		t.Fatal(err)
	}
	if len(scenarios) != 1 || scenarios[0].Dijkpaal != 400 {
		t.Fatalf("scenarios = %+v", scenarios)
	}
}

func TestLoadScenariosNothingLeft(t *testing.T) {
	path := writeDataset(t)

	if _, _, _, err := loadScenarios([]string{path}, testSettings(), "nomatch*", 0, 0); err == nil {
		t.Fatal("empty filter result accepted")
	}
}

func TestExecRunResultErr(t *testing.T) {
	ok := &execRunResult{report: &batch.RunReport{Completed: 3}}
	if err := ok.err(); err != nil {
		t.Fatalf("clean run returned error: %v", err)
	}

	failed := &execRunResult{report: &batch.RunReport{Failed: 2}}
	if err := failed.err(); err == nil {
		t.Fatal("failed run returned nil error")
	}

	blocked := &execRunResult{report: &batch.RunReport{
		LicenseBlocked: 1,
		RetryAt:        time.Now().Add(30 * time.Minute),
	}}
	var le *engine.LicenseError
	if err := blocked.err(); !errors.As(err, &le) {
		t.Fatalf("license-blocked run returned %T, want *engine.LicenseError", err)
	}
}

func TestDryRunWritesNoModelSentences(t *testing.T) {
	// a profile without an aquifer converts fine but cannot become a
	// model; the sentence must land in results.csv even without the
	// engine
	dir := t.TempDir()
	broken := strings.ReplaceAll(sampleDataset,
		`"is_aquifer": 1, "aquifer_number": 1`,
		`"is_aquifer": 0, "aquifer_number": 0`)
	path := filepath.Join(dir, "dataset.json")
	if err := os.WriteFile(path, []byte(broken), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := testSettings()
	scenarios, issues, paths, err := loadScenarios([]string{path}, cfg, "", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(scenarios) != 2 || len(issues) != 0 {
		t.Fatalf("scenarios=%d issues=%v", len(scenarios), issues)
	}

	res, err := executeRun(execRunConfig{
		datasets:  paths,
		scenarios: scenarios,
		settings:  cfg,
		outputDir: filepath.Join(dir, "output"),
		dryRun:    true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.report.NoModel != 2 {
		t.Fatalf("no_model = %d, want 2", res.report.NoModel)
	}

	data, err := os.ReadFile(filepath.Join(res.runDir, reporter.ResultsFileName))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "No model could be created for scenario 'DP0375_sloot1'") {
		t.Fatalf("results.csv missing NoModel sentence:\n%s", data)
	}
	if strings.Contains(string(data), "pipe length") {
		t.Fatalf("dry run wrote a calculation sentence:\n%s", data)
	}
}

func TestFindLatestRunDir(t *testing.T) {
	outputDir := t.TempDir()
	for _, name := range []string{"20260101-100000", "20260102-100000", "20260103-100000"} {
		if err := os.MkdirAll(filepath.Join(outputDir, name), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	// only the middle run has a report; the newest is still in flight
	if err := os.WriteFile(filepath.Join(outputDir, "20260102-100000", "report.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(outputDir, "20260103-100000", "scenarios"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := findLatestRunDir(outputDir, true)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(got) != "20260102-100000" {
		t.Fatalf("latest with report = %s", got)
	}

	got, err = findLatestRunDir(outputDir, false)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(got) != "20260103-100000" {
		t.Fatalf("latest in flight = %s", got)
	}
}

func TestFindLatestRunDirEmpty(t *testing.T) {
	if _, err := findLatestRunDir(t.TempDir(), true); err == nil {
		t.Fatal("empty output dir accepted")
	}
}

func TestBuildExecutorNoEngines(t *testing.T) {
	cfg := execRunConfig{settings: testSettings()}
	if _, err := buildExecutor(cfg, t.TempDir()); err == nil {
		t.Fatal("missing engine config accepted")
	}

	cfg.dryRun = true
	ex, err := buildExecutor(cfg, t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if !ex.DryRun {
		t.Fatal("dry run flag lost")
	}
}

func TestBuildExecutorProfiles(t *testing.T) {
	s := testSettings()
	s.DefaultEngine = "dgeoflow-2024"
	s.EngineFallbacks = []string{"dgeoflow-2023"}
	s.Engines = map[string]*config.EngineProfile{
		"dgeoflow-2024": {Type: "dgeoflow", Path: "/opt/dgeoflow/2024/console"},
		"dgeoflow-2023": {Type: "dgeoflow", Path: "/opt/dgeoflow/2023/console"},
	}
	s.LicenseCooldown = 45 * time.Minute

	ex, err := buildExecutor(execRunConfig{settings: s, idleTimeout: 2 * time.Minute}, t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if len(ex.Order) != 2 || ex.Order[0] != "dgeoflow-2024" {
		t.Fatalf("order = %v", ex.Order)
	}
	p := ex.Profiles["dgeoflow-2023"]
	if p == nil || p.IdleTimeout != 2*time.Minute || p.LicenseCooldown != 45*time.Minute {
		t.Fatalf("profile = %+v", p)
	}
}
