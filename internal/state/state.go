// Package state tracks scenario outcomes across floxrun invocations so
// an interrupted batch can resume without redoing completed work.
package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Status constants for persistent scenario state.
const (
	StatusCompleted   = "completed"
	StatusFailed      = "failed"
	StatusInProgress  = "in_progress"
	StatusInterrupted = "interrupted"
)

// Entry represents the persistent state of a single scenario across
// runs.
type Entry struct {
	Status     string    `json:"status"`
	StartedAt  time.Time `json:"started,omitempty"`
	FinishedAt time.Time `json:"finished,omitempty"`
	RunDir     string    `json:"run_dir,omitempty"`
	Engine     string    `json:"engine,omitempty"`
	PipeLength float64   `json:"pipe_length,omitempty"`
	Error      string    `json:"error,omitempty"`
	RunID      string    `json:"run_id,omitempty"`
}

type stateFile struct {
	Scenarios map[string]*Entry `json:"scenarios"`
}

// Tracker provides persistent scenario state tracking across runs.
// Thread-safe with sync.RWMutex. Writes are atomic (tmp → rename).
type Tracker struct {
	mu        sync.RWMutex
	scenarios map[string]*Entry
	path      string
}

// DefaultPath returns the state file path inside an output directory.
func DefaultPath(outputDir string) string {
	return filepath.Join(outputDir, "floxrun-state.json")
}

// Load reads the state file from disk. Returns an empty tracker if the
// file does not exist or is corrupt.
func Load(path string) *Tracker {
	t := &Tracker{
		scenarios: make(map[string]*Entry),
		path:      path,
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return t
	}
	var sf stateFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return t
	}
	if sf.Scenarios != nil {
		t.scenarios = sf.Scenarios
	}
	return t
}

// RecoverInterrupted marks any stale in_progress scenarios as
// interrupted. Returns the number of scenarios recovered.
func (t *Tracker) RecoverInterrupted() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	count := 0
	for _, e := range t.scenarios {
		if e.Status == StatusInProgress {
			e.Status = StatusInterrupted
			e.FinishedAt = time.Now()
			e.Error = "interrupted: process killed before completion"
			count++
		}
	}
	if count > 0 {
		_ = t.saveLocked()
	}
	return count
}

// MarkStarted records a scenario as in_progress.
func (t *Tracker) MarkStarted(name, runID, runDir string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.scenarios[name] = &Entry{
		Status:    StatusInProgress,
		StartedAt: time.Now(),
		RunID:     runID,
		RunDir:    runDir,
	}
	_ = t.saveLocked()
}

// MarkCompleted records a scenario as successfully calculated.
func (t *Tracker) MarkCompleted(name, engine string, pipeLength float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.scenarios[name]
	if e == nil {
		e = &Entry{StartedAt: time.Now()}
		t.scenarios[name] = e
	}
	e.Status = StatusCompleted
	e.FinishedAt = time.Now()
	e.Engine = engine
	e.PipeLength = pipeLength
	e.Error = ""
	_ = t.saveLocked()
}

// MarkFailed records a scenario as failed.
func (t *Tracker) MarkFailed(name, errMsg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.scenarios[name]
	if e == nil {
		e = &Entry{StartedAt: time.Now()}
		t.scenarios[name] = e
	}
	e.Status = StatusFailed
	e.FinishedAt = time.Now()
	e.Error = errMsg
	_ = t.saveLocked()
}

// Get returns a copy of the entry for the given scenario, or nil if
// not tracked.
func (t *Tracker) Get(name string) *Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if e, ok := t.scenarios[name]; ok {
		cpy := *e
		return &cpy
	}
	return nil
}

// Entries returns a copy of all tracked scenarios.
func (t *Tracker) Entries() map[string]*Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	result := make(map[string]*Entry, len(t.scenarios))
	for k, v := range t.scenarios {
		cpy := *v
		result[k] = &cpy
	}
	return result
}

// Count returns the number of tracked scenarios.
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.scenarios)
}

// Reset removes a single scenario entry, allowing re-execution.
func (t *Tracker) Reset(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.scenarios, name)
	_ = t.saveLocked()
}

// Clear removes all state and deletes the state file.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.scenarios = make(map[string]*Entry)
	_ = os.Remove(t.path)
}

func (t *Tracker) saveLocked() error {
	sf := stateFile{Scenarios: t.scenarios}
	data, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return err
	}
	tmp := t.path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, t.path)
}
