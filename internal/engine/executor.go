package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dikeworks/floxrun/internal/batch"
	"github.com/dikeworks/floxrun/internal/dike"
	"github.com/dikeworks/floxrun/internal/flox"
)

// Executor builds the model for a scenario and runs it through the
// engine cascade. Its RunScenario method is the batch loop's RunFunc.
type Executor struct {
	Profiles map[string]*Profile
	// Order lists the profile names to try: the default engine first,
	// then the configured fallbacks (usually older console versions).
	Order []string

	Params    flox.BuildParams
	Blacklist *Blacklist
	Graylist  *Graylist

	// ScenariosDir is <run_dir>/scenarios; each scenario gets a
	// subdirectory named after it.
	ScenariosDir string

	// DryRun builds and serializes the model but never invokes the
	// console.
	DryRun bool
}

// scenarioMeta is the scenario.json dropped next to the model for
// traceability.
type scenarioMeta struct {
	Name           string  `json:"name"`
	Dijkpaal       int     `json:"dijkpaal"`
	ExitPointX     float64 `json:"exit_point_x"`
	DitchNumber    string  `json:"ditch_number,omitempty"`
	DitchLevel     float64 `json:"ditch_level"`
	MaxPolderLevel float64 `json:"max_polder_level"`
	NormWaterLevel float64 `json:"norm_water_level"`
}

// RunScenario executes one scenario end to end: build, serialize,
// calculate, extract.
func (e *Executor) RunScenario(ctx context.Context, job *batch.Job, update func(*batch.Result)) *batch.Result {
	sc := job.Scenario
	safe := batch.SafeName(sc.Name)
	// The console runs with its working directory set to the attempt
	// dir, so the model path it receives must not depend on our cwd.
	outDir, err := filepath.Abs(filepath.Join(e.ScenariosDir, safe))
	if err != nil {
		outDir = filepath.Join(e.ScenariosDir, safe)
	}

	res := &batch.Result{Name: sc.Name, State: batch.StateBuilding, OutputDir: outDir, StartedAt: time.Now()}
	update(res)

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		res.Failedf("create output dir: %v", err)
		return res
	}

	model, buildLog, buildErr := flox.Build(sc, e.Params)
	if buildErr != nil {
		buildLog = append(buildLog, buildErr.Error())
	}
	writeBuildLog(filepath.Join(outDir, safe+".log"), buildLog)
	writeScenarioMeta(filepath.Join(outDir, "scenario.json"), sc)

	if buildErr != nil {
		res.State = batch.StateNoModel
		res.Error = buildErr.Error()
		return res
	}

	modelPath := filepath.Join(outDir, safe+".flox")
	if err := flox.Write(modelPath, model); err != nil {
		res.Failedf("write model: %v", err)
		return res
	}

	if e.DryRun {
		res.State = batch.StateCompleted
		res.LastMsg = "dry run: model built, engine skipped"
		return res
	}

	res.State = batch.StateCalculating
	update(res)

	return e.cascade(ctx, sc, res, modelPath, outDir, update)
}

// cascade tries the configured engine profiles in order. License
// exhaustion and console crashes advance to the next profile; any other
// failure is final.
func (e *Executor) cascade(ctx context.Context, sc *dike.Scenario, res *batch.Result,
	modelPath, outDir string, update func(*batch.Result)) *batch.Result {

	var retryAt time.Time
	sawLicense := false
	lastSignature := ""

	for i, name := range e.Order {
		p, ok := e.Profiles[name]
		if !ok {
			res.Failedf("engine profile %q not configured", name)
			return res
		}

		if e.Blacklist != nil && e.Blacklist.IsBlocked(name) {
			until := e.Blacklist.BlockedUntil(name)
			sawLicense = true
			if until.After(retryAt) {
				retryAt = until
			}
			res.Attempts = append(res.Attempts, batch.AttemptInfo{
				Engine: name,
				State:  batch.StateLicenseBlocked,
				Error:  "license pool blocked until " + until.Format(time.Kitchen),
			})
			continue
		}

		attemptDir := outDir
		if i > 0 {
			attemptDir = filepath.Join(outDir, fmt.Sprintf("attempt-%d-%s", i+1, batch.SafeName(name)))
			if err := os.MkdirAll(attemptDir, 0o755); err != nil {
				res.Failedf("create attempt dir: %v", err)
				return res
			}
		}

		invoker, err := NewInvoker(p)
		if err != nil {
			res.Failedf("%v", err)
			return res
		}

		started := time.Now()
		inv := invoker.Invoke(&InvokeContext{
			Ctx:       ctx,
			ModelPath: modelPath,
			OutputDir: attemptDir,
			OnProgress: func(line string) {
				res.LastMsg = line
				update(res)
			},
		})
		attempt := batch.AttemptInfo{
			Engine:    name,
			Duration:  time.Since(started),
			OutputDir: attemptDir,
		}
		if inv.LastMsg != "" {
			res.LastMsg = inv.LastMsg
		}

		switch {
		case inv.License:
			sawLicense = true
			if inv.RetryAt.After(retryAt) {
				retryAt = inv.RetryAt
			}
			if e.Blacklist != nil {
				e.Blacklist.Block(name, inv.RetryAt)
			}
			attempt.State = batch.StateLicenseBlocked
			attempt.Error = "no license seat available"
			res.Attempts = append(res.Attempts, attempt)
			continue

		case inv.Idled:
			attempt.State = batch.StateFailed
			attempt.Error = fmt.Sprintf("idle timeout: no console output for %s", p.IdleTimeout)
			res.Attempts = append(res.Attempts, attempt)
			res.Failedf("%s", attempt.Error)
			res.EngineUsed = name
			return res

		case inv.CrashSignature != "":
			lastSignature = inv.CrashSignature
			if e.Graylist != nil {
				e.Graylist.RecordCrash(sc.Name, name, inv.CrashSignature)
			}
			attempt.State = batch.StateFailed
			attempt.Signature = inv.CrashSignature
			attempt.Error = "console crashed: " + inv.CrashSignature
			res.Attempts = append(res.Attempts, attempt)
			continue

		case inv.ExitErr != nil:
			attempt.State = batch.StateFailed
			attempt.Error = exitError(ctx, inv.ExitErr, attemptDir)
			res.Attempts = append(res.Attempts, attempt)
			res.Failedf("%s", attempt.Error)
			res.EngineUsed = name
			return res
		}

		// exit 0 — results must be present in the calculated model
		results, err := flox.ReadResults(modelPath)
		if err != nil {
			attempt.State = batch.StateFailed
			attempt.Error = "engine exited 0 but produced no results"
			if diag := DiagnoseCalcLog(attemptDir); diag != "" {
				attempt.Error += ": " + diag
			}
			res.Attempts = append(res.Attempts, attempt)
			res.Failedf("%s", attempt.Error)
			res.EngineUsed = name
			return res
		}

		attempt.State = batch.StateCompleted
		res.Attempts = append(res.Attempts, attempt)
		res.State = batch.StateCompleted
		res.Error = ""
		res.PipeLength = results.PipeLength
		res.EngineUsed = name
		return res
	}

	if sawLicense {
		res.State = batch.StateLicenseBlocked
		res.RetryAt = retryAt
		res.Error = "no engine license seat available"
		return res
	}
	if lastSignature != "" {
		res.CrashSignature = lastSignature
		res.Failedf("console crashed on all engines: %s", lastSignature)
		return res
	}
	res.Failedf("no engine profiles configured")
	return res
}

func exitError(ctx context.Context, err error, attemptDir string) string {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return "max runtime exceeded"
	case ctx.Err() != nil:
		return "cancelled"
	}
	msg := fmt.Sprintf("engine exited: %v", err)
	if diag := DiagnoseCalcLog(attemptDir); diag != "" {
		msg += ": " + diag
	}
	return msg
}

func writeBuildLog(path string, lines []string) {
	if len(lines) == 0 {
		lines = []string{"model built with no remarks"}
	}
	os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644)
}

func writeScenarioMeta(path string, sc *dike.Scenario) {
	meta := scenarioMeta{
		Name:           sc.Name,
		Dijkpaal:       sc.Dijkpaal,
		ExitPointX:     sc.ExitPointX,
		DitchNumber:    sc.DitchNumber,
		DitchLevel:     sc.DitchLevel,
		MaxPolderLevel: sc.MaxPolderLevel,
		NormWaterLevel: sc.NormWaterLevel,
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return
	}
	os.WriteFile(path, append(data, '\n'), 0o644)
}
