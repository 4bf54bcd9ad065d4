// Package batch holds the scenario job model and the sequential run
// loop. It knows nothing about engines; the engine package plugs in
// through the RunFunc.
package batch

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/dikeworks/floxrun/internal/dike"
)

// ScenarioState represents the execution state of a scenario.
type ScenarioState int

const (
	StatePending ScenarioState = iota
	StateBuilding
	StateCalculating
	StateCompleted
	StateFailed
	StateSkipped
	StateNoModel        // model construction impossible for this record
	StateLicenseBlocked // no engine license seat available
)

func (s ScenarioState) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateBuilding:
		return "BUILDING"
	case StateCalculating:
		return "CALCULATING"
	case StateCompleted:
		return "COMPLETED"
	case StateFailed:
		return "FAILED"
	case StateSkipped:
		return "SKIPPED"
	case StateNoModel:
		return "NO_MODEL"
	case StateLicenseBlocked:
		return "LICENSE_BLOCKED"
	default:
		return "UNKNOWN"
	}
}

// Job is one scenario queued for execution.
type Job struct {
	Scenario *dike.Scenario
	Timeout  time.Duration // per-scenario runtime cap, 0 = none
}

// AttemptInfo records a single engine attempt within a fallback cascade.
type AttemptInfo struct {
	Engine    string        `json:"engine"`
	State     ScenarioState `json:"state"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
	OutputDir string        `json:"output_dir,omitempty"`
	Signature string        `json:"crash_signature,omitempty"`
}

// Result captures the outcome of executing a single scenario.
type Result struct {
	Name      string        `json:"name"`
	State     ScenarioState `json:"state"`
	StartedAt time.Time     `json:"started_at,omitempty"`
	EndedAt   time.Time     `json:"ended_at,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
	OutputDir string        `json:"output_dir,omitempty"`
	LastMsg   string        `json:"last_message,omitempty"`
	Error     string        `json:"error,omitempty"`
	RetryAt   time.Time     `json:"retry_at,omitempty"`

	PipeLength float64 `json:"pipe_length,omitempty"` // m, set when completed

	EngineUsed     string        `json:"engine_used,omitempty"`
	CrashSignature string        `json:"crash_signature,omitempty"`
	Attempts       []AttemptInfo `json:"attempts,omitempty"`
}

// RunReport is the final output of a floxrun execution.
type RunReport struct {
	RunID          string             `json:"run_id"`
	ParentRunID    string             `json:"parent_run_id,omitempty"`
	Timestamp      time.Time          `json:"timestamp"`
	Datasets       []string           `json:"datasets"`
	Filter         string             `json:"filter,omitempty"`
	FromDijkpaal   int                `json:"from_dijkpaal,omitempty"`
	ToDijkpaal     int                `json:"to_dijkpaal,omitempty"`
	OutputDir      string             `json:"output_dir"`
	DryRun         bool               `json:"dry_run,omitempty"`
	Results        map[string]*Result `json:"results"`
	Total          int                `json:"total"`
	Completed      int                `json:"completed"`
	Failed         int                `json:"failed"`
	Skipped        int                `json:"skipped"`
	NoModel        int                `json:"no_model"`
	LicenseBlocked int                `json:"license_blocked"`
	TotalDuration  time.Duration      `json:"total_duration"`
	RetryAt        time.Time          `json:"retry_at,omitempty"`
}

// NewRunID derives a short stable identifier from the run timestamp and
// the dataset files.
func NewRunID(timestamp time.Time, datasets []string) string {
	h := sha256.Sum256([]byte(timestamp.Format(time.RFC3339Nano) + "|" + strings.Join(datasets, "|")))
	return hex.EncodeToString(h[:])[:12]
}

// Summarize recomputes the report counters from the results map.
func (r *RunReport) Summarize() {
	r.Total = len(r.Results)
	r.Completed, r.Failed, r.Skipped, r.NoModel, r.LicenseBlocked = 0, 0, 0, 0, 0
	r.RetryAt = time.Time{}
	for _, res := range r.Results {
		switch res.State {
		case StateCompleted:
			r.Completed++
		case StateFailed:
			r.Failed++
		case StateSkipped:
			r.Skipped++
		case StateNoModel:
			r.NoModel++
		case StateLicenseBlocked:
			r.LicenseBlocked++
			if !res.RetryAt.IsZero() && (r.RetryAt.IsZero() || res.RetryAt.After(r.RetryAt)) {
				r.RetryAt = res.RetryAt
			}
		}
	}
}

// SafeName maps a scenario name onto a filesystem-safe directory name.
func SafeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "scenario"
	}
	return b.String()
}

// RunDirName returns the timestamped directory name for a new run.
func RunDirName(t time.Time) string {
	return t.Format("20060102-150405")
}

func (r *Result) Failedf(format string, args ...any) {
	r.State = StateFailed
	r.Error = fmt.Sprintf(format, args...)
}
