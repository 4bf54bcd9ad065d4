package sentinel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dikeworks/floxrun/internal/batch"
	"github.com/dikeworks/floxrun/internal/dataset"
)

// ProcessResult records the outcome of one dataset batch.
type ProcessResult struct {
	Dataset        string        `json:"dataset"`
	RunID          string        `json:"run_id,omitempty"`
	RunDir         string        `json:"run_dir,omitempty"`
	Scenarios      int           `json:"scenarios"`
	Completed      int           `json:"completed"`
	Failed         int           `json:"failed"`
	NoModel        int           `json:"no_model,omitempty"`
	LicenseBlocked int           `json:"license_blocked,omitempty"`
	Duration       time.Duration `json:"duration,omitempty"`
	Error          string        `json:"error,omitempty"`
	StartedAt      time.Time     `json:"started_at"`
	EndedAt        time.Time     `json:"ended_at"`
}

// ExecFunc runs a batch over the dataset file and returns the report.
// It decouples the sentinel from the cli package to avoid import cycles.
type ExecFunc func(ctx context.Context, datasetPath string) (*batch.RunReport, error)

// Processor handles the lifecycle of a single dataset file.
type Processor struct {
	dirs    Dirs
	execFn  ExecFunc
	tracker *CompletionTracker
	state   *State
}

// NewProcessor creates a dataset processor. tracker and state may be
// nil.
func NewProcessor(dirs Dirs, execFn ExecFunc, tracker *CompletionTracker, state *State) *Processor {
	return &Processor{
		dirs:    dirs,
		execFn:  execFn,
		tracker: tracker,
		state:   state,
	}
}

// Process validates, runs and records the result for a single dataset
// file dropped into the incoming directory.
func (p *Processor) Process(ctx context.Context, path string) error {
	name := filepath.Base(path)
	stem := resultStem(name)

	if p.tracker != nil && p.tracker.IsProcessed(name) {
		slog.Info("dataset already processed, skipping", "dataset", name)
		_ = os.Remove(path)
		return nil
	}

	slog.Info("processing dataset", "dataset", name)
	p.setPhase(PhaseValidating, name)

	// 1. Validate before committing to a run.
	snapshot, err := dataset.Load(path)
	if err == nil {
		err = dataset.Validate(snapshot)
	}
	if err != nil {
		slog.Error("invalid dataset", "dataset", name, "error", err)
		_ = moveFile(path, filepath.Join(p.dirs.Failed, name))
		p.setPhase(PhaseIdle, "")
		return p.writeFailed(stem, name, fmt.Sprintf("invalid dataset: %v", err))
	}

	// 2. Move to processing/ so a crash is visible as an orphan.
	procPath := filepath.Join(p.dirs.Processing, name)
	if err := moveFile(path, procPath); err != nil {
		p.setPhase(PhaseIdle, "")
		return fmt.Errorf("move to processing: %w", err)
	}

	// 3. Run the batch.
	p.setPhase(PhaseRunning, name)
	start := time.Now()
	report, execErr := p.execFn(ctx, procPath)
	elapsed := time.Since(start)
	p.setPhase(PhaseIdle, "")

	pr := ProcessResult{
		Dataset:   name,
		Duration:  elapsed,
		StartedAt: start,
		EndedAt:   time.Now(),
	}
	if report != nil {
		pr.RunID = report.RunID
		pr.Scenarios = report.Total
		pr.Completed = report.Completed
		pr.Failed = report.Failed
		pr.NoModel = report.NoModel
		pr.LicenseBlocked = report.LicenseBlocked
	}

	if execErr != nil {
		pr.Error = execErr.Error()
		slog.Warn("dataset batch failed", "dataset", name, "error", execErr)
		_ = moveFile(procPath, filepath.Join(p.dirs.Failed, name))
		p.addHistory(pr)
		return p.writeResult(p.dirs.Failed, stem, pr)
	}

	slog.Info("dataset batch finished",
		"dataset", name,
		"completed", pr.Completed,
		"failed", pr.Failed,
		"duration", elapsed.Round(time.Second))

	if p.tracker != nil {
		p.tracker.Record(name, pr.RunID, pr.Scenarios)
	}
	_ = moveFile(procPath, filepath.Join(p.dirs.Done, name))
	p.addHistory(pr)
	return p.writeResult(p.dirs.Done, stem, pr)
}

func (p *Processor) setPhase(phase Phase, msg string) {
	if p.state != nil {
		p.state.SetPhase(phase, msg)
	}
}

func (p *Processor) addHistory(pr ProcessResult) {
	if p.state != nil {
		p.state.AddHistory(pr)
	}
}

// writeFailed writes a failure result without execution.
func (p *Processor) writeFailed(stem, name, errMsg string) error {
	return p.writeResult(p.dirs.Failed, stem, ProcessResult{
		Dataset:   name,
		Error:     errMsg,
		StartedAt: time.Now(),
		EndedAt:   time.Now(),
	})
}

// writeResult writes a ProcessResult next to the moved dataset file.
func (p *Processor) writeResult(dir, stem string, pr ProcessResult) error {
	data, err := json.MarshalIndent(pr, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	path := filepath.Join(dir, stem+".result.json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename result: %w", err)
	}
	return nil
}

// resultStem strips the dataset extension for result file naming.
func resultStem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// moveFile moves a file from src to dst. Falls back to copy+remove
// when rename fails (cross-device, bind mounts).
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return err
	}
	return os.Remove(src)
}
