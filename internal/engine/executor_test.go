//go:build !windows

package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dikeworks/floxrun/internal/batch"
	"github.com/dikeworks/floxrun/internal/dike"
	"github.com/dikeworks/floxrun/internal/flox"
)

func executorScenario(t *testing.T) *dike.Scenario {
	t.Helper()
	cs, err := dike.NewCrossSection([]dike.Point{
		{X: -30, Z: 0.2, Type: dike.MVBuiten},
		{X: 0, Z: 4, Type: dike.Kruin2},
		{X: 10, Z: 0, Type: dike.Teen1},
		{X: 14, Z: -1.5, Type: dike.Sloot1A},
		{X: 16, Z: -2.5, Type: dike.Sloot1C},
		{X: 18, Z: -2.5, Type: dike.Sloot1D},
		{X: 40, Z: -1, Type: dike.MVBinnen},
	})
	if err != nil {
		t.Fatal(err)
	}
	return &dike.Scenario{
		Name:     "DP0375_sloot1",
		Dijkpaal: 375,
		CrossSection: cs,
		SoilProfile: &dike.SoilProfile{ID: 12, Layers: []dike.SoilLayer{
			{SoilName: "DK", Top: 2, Bottom: 0},
			{SoilName: "ZA", Top: 0, Bottom: -12, IsAquifer: 1, AquiferNumber: 1},
		}},
		ExitPointX:     17,
		DitchLevel:     -2.0,
		MaxPolderLevel: -1.2,
		NormWaterLevel: 3.1,
	}
}

func newExecutor(t *testing.T, profiles map[string]*Profile, order []string) *Executor {
	t.Helper()
	return &Executor{
		Profiles:     profiles,
		Order:        order,
		Params:       flox.DefaultBuildParams(),
		Blacklist:    NewBlacklist(),
		Graylist:     NewGraylist(),
		ScenariosDir: filepath.Join(t.TempDir(), "scenarios"),
	}
}

func scriptProfile(name, script string) *Profile {
	return &Profile{
		Name:    name,
		Type:    "script",
		Command: "sh",
		Args:    []string{"-c", script},
	}
}

func run(t *testing.T, e *Executor, sc *dike.Scenario) *batch.Result {
	t.Helper()
	job := &batch.Job{Scenario: sc}
	return e.RunScenario(context.Background(), job, func(*batch.Result) {})
}

func TestExecutorDryRun(t *testing.T) {
	e := newExecutor(t, nil, nil)
	e.DryRun = true
	res := run(t, e, executorScenario(t))

	if res.State != batch.StateCompleted {
		t.Fatalf("state = %v: %s", res.State, res.Error)
	}
	for _, name := range []string{"DP0375_sloot1.flox", "DP0375_sloot1.log", "scenario.json"} {
		if _, err := os.Stat(filepath.Join(res.OutputDir, name)); err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
	}
}

func TestExecutorNoModel(t *testing.T) {
	sc := executorScenario(t)
	sc.SoilProfile.Layers[1].IsAquifer = 0
	sc.SoilProfile.Layers[1].AquiferNumber = 0

	e := newExecutor(t, nil, nil)
	res := run(t, e, sc)

	if res.State != batch.StateNoModel {
		t.Fatalf("state = %v", res.State)
	}
	if !strings.Contains(res.Error, "aquifer") {
		t.Fatalf("error = %q", res.Error)
	}
	// build log still written for the operator
	data, err := os.ReadFile(filepath.Join(res.OutputDir, "DP0375_sloot1.log"))
	if err != nil || !strings.Contains(string(data), "aquifer") {
		t.Fatalf("build log missing or empty: %v", err)
	}
}

// preCalculated builds a model with results attached, for stub engines
// to "calculate" by copying it over the input.
func preCalculated(t *testing.T, sc *dike.Scenario, pipeLength float64) string {
	t.Helper()
	m, _, err := flox.Build(sc, flox.DefaultBuildParams())
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "calculated.flox")
	if err := flox.Write(path, m); err != nil {
		t.Fatal(err)
	}
	if err := flox.AppendResults(path, &flox.Results{PipeLength: pipeLength}); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExecutorSuccess(t *testing.T) {
	sc := executorScenario(t)
	calculated := preCalculated(t, sc, 11.48)

	// the stub console "calculates" by replacing the model with the
	// precomputed archive; $0 is the model path appended by the invoker
	p := scriptProfile("stub", `echo "meshing"; echo "solving"; cp `+calculated+` "$0"`)
	e := newExecutor(t, map[string]*Profile{"stub": p}, []string{"stub"})
	res := run(t, e, sc)

	if res.State != batch.StateCompleted {
		t.Fatalf("state = %v: %s", res.State, res.Error)
	}
	if res.PipeLength != 11.48 {
		t.Fatalf("pipe length = %v", res.PipeLength)
	}
	if res.EngineUsed != "stub" {
		t.Fatalf("engine used = %q", res.EngineUsed)
	}
	if res.LastMsg != "solving" {
		t.Fatalf("last msg = %q", res.LastMsg)
	}
	data, err := os.ReadFile(filepath.Join(res.OutputDir, "calc.log"))
	if err != nil || !strings.Contains(string(data), "meshing") {
		t.Fatalf("calc.log missing: %v", err)
	}
}

func TestExecutorRelativeScenariosDir(t *testing.T) {
	sc := executorScenario(t)
	calculated := preCalculated(t, sc, 5.5)

	// the console runs with cwd set to the attempt dir; a scenarios dir
	// relative to our cwd must still yield a model path it can resolve
	origDir, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(origDir) })
	p := scriptProfile("stub", `test -f "$0" || exit 3; cp `+calculated+` "$0"`)
	e := &Executor{
		Profiles:     map[string]*Profile{"stub": p},
		Order:        []string{"stub"},
		Params:       flox.DefaultBuildParams(),
		Blacklist:    NewBlacklist(),
		Graylist:     NewGraylist(),
		ScenariosDir: filepath.Join("output", "run1", "scenarios"),
	}
	res := run(t, e, sc)

	if res.State != batch.StateCompleted {
		t.Fatalf("state = %v: %s", res.State, res.Error)
	}
	if res.PipeLength != 5.5 {
		t.Fatalf("pipe length = %v", res.PipeLength)
	}
	if !filepath.IsAbs(res.OutputDir) {
		t.Fatalf("output dir not absolute: %s", res.OutputDir)
	}
}

func TestExecutorExitZeroWithoutResults(t *testing.T) {
	p := scriptProfile("stub", `echo "error: calculation did not converge"; true`)
	e := newExecutor(t, map[string]*Profile{"stub": p}, []string{"stub"})
	res := run(t, e, executorScenario(t))

	if res.State != batch.StateFailed {
		t.Fatalf("state = %v", res.State)
	}
	if !strings.Contains(res.Error, "no results") {
		t.Fatalf("error = %q", res.Error)
	}
	if !strings.Contains(res.Error, "did not converge") {
		t.Fatalf("calc.log diagnosis missing from %q", res.Error)
	}
}

func TestExecutorCascadesOnCrash(t *testing.T) {
	sc := executorScenario(t)
	calculated := preCalculated(t, sc, 9.3)

	crash := scriptProfile("new", `echo "Unhandled exception in solver" >&2; exit 1`)
	good := scriptProfile("old", `cp `+calculated+` "$0"`)
	e := newExecutor(t, map[string]*Profile{"new": crash, "old": good}, []string{"new", "old"})
	res := run(t, e, sc)

	if res.State != batch.StateCompleted {
		t.Fatalf("state = %v: %s", res.State, res.Error)
	}
	if res.EngineUsed != "old" {
		t.Fatalf("engine used = %q", res.EngineUsed)
	}
	if len(res.Attempts) != 2 {
		t.Fatalf("attempts = %+v", res.Attempts)
	}
	if res.Attempts[0].Signature != "unhandled exception" {
		t.Fatalf("first attempt = %+v", res.Attempts[0])
	}
	if !e.Graylist.IsGraylisted(sc.Name) {
		t.Fatal("crash not recorded on the graylist")
	}
	// retry ran in its own attempt directory
	if res.Attempts[1].OutputDir == res.Attempts[0].OutputDir {
		t.Fatal("fallback attempt reused the first attempt dir")
	}
}

func TestExecutorLicenseBlocked(t *testing.T) {
	p := scriptProfile("only", `echo "FlexNet Licensing error: no license available" >&2; exit 1`)
	p.LicenseCooldown = time.Hour
	e := newExecutor(t, map[string]*Profile{"only": p}, []string{"only"})
	res := run(t, e, executorScenario(t))

	if res.State != batch.StateLicenseBlocked {
		t.Fatalf("state = %v: %s", res.State, res.Error)
	}
	if res.RetryAt.IsZero() {
		t.Fatal("retry_at not set")
	}
	if !e.Blacklist.IsBlocked("only") {
		t.Fatal("engine not blacklisted after license failure")
	}
}

func TestExecutorSkipsBlacklistedEngine(t *testing.T) {
	sc := executorScenario(t)
	calculated := preCalculated(t, sc, 7.7)

	blocked := scriptProfile("blocked", `exit 1`)
	good := scriptProfile("good", `cp `+calculated+` "$0"`)
	e := newExecutor(t, map[string]*Profile{"blocked": blocked, "good": good}, []string{"blocked", "good"})
	e.Blacklist.Block("blocked", time.Now().Add(time.Hour))
	res := run(t, e, sc)

	if res.State != batch.StateCompleted {
		t.Fatalf("state = %v: %s", res.State, res.Error)
	}
	if res.EngineUsed != "good" {
		t.Fatalf("engine used = %q", res.EngineUsed)
	}
	if res.Attempts[0].State != batch.StateLicenseBlocked {
		t.Fatalf("blacklisted attempt = %+v", res.Attempts[0])
	}
}

func TestDiagnoseCalcLog(t *testing.T) {
	dir := t.TempDir()
	lines := "meshing ok\nsolver started\nERROR: matrix is singular\n"
	if err := os.WriteFile(filepath.Join(dir, "calc.log"), []byte(lines), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := DiagnoseCalcLog(dir); got != "ERROR: matrix is singular" {
		t.Fatalf("diagnosis = %q", got)
	}
	if got := DiagnoseCalcLog(t.TempDir()); got != "" {
		t.Fatalf("diagnosis without calc.log = %q", got)
	}
}
