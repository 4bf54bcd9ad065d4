package sentinel

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ProcessedDataset records when a dataset file was run.
type ProcessedDataset struct {
	Dataset   string    `json:"dataset"`
	RunID     string    `json:"run_id"`
	Scenarios int       `json:"scenarios"`
	Timestamp time.Time `json:"timestamp"`
}

// CompletionTracker tracks which dataset files have been run to avoid
// re-running a snapshot that is dropped twice. Persists to a JSON file
// on disk.
type CompletionTracker struct {
	mu        sync.RWMutex
	processed map[string]*ProcessedDataset
	path      string
}

// DefaultTrackerPath returns the default path for the completion
// tracker.
func DefaultTrackerPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".floxrun", "sentinel", "processed.json")
}

// NewCompletionTracker creates a tracker that persists to the given
// path. Loads existing state from disk if present.
func NewCompletionTracker(path string) *CompletionTracker {
	ct := &CompletionTracker{
		processed: make(map[string]*ProcessedDataset),
		path:      path,
	}
	ct.Load()
	return ct
}

// IsProcessed returns true if the dataset file has been run before.
func (ct *CompletionTracker) IsProcessed(dataset string) bool {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	_, ok := ct.processed[dataset]
	return ok
}

// Record marks a dataset as processed and persists to disk.
func (ct *CompletionTracker) Record(dataset, runID string, scenarios int) {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	ct.processed[dataset] = &ProcessedDataset{
		Dataset:   dataset,
		RunID:     runID,
		Scenarios: scenarios,
		Timestamp: time.Now(),
	}
	_ = ct.saveLocked()
}

// Count returns the number of processed datasets.
func (ct *CompletionTracker) Count() int {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return len(ct.processed)
}

// Entries returns all processed datasets.
func (ct *CompletionTracker) Entries() []*ProcessedDataset {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	entries := make([]*ProcessedDataset, 0, len(ct.processed))
	for _, e := range ct.processed {
		entries = append(entries, e)
	}
	return entries
}

// Load reads tracker state from disk. Missing or corrupt files are
// ignored.
func (ct *CompletionTracker) Load() {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	data, err := os.ReadFile(ct.path)
	if err != nil {
		return
	}
	var entries []*ProcessedDataset
	if err := json.Unmarshal(data, &entries); err != nil {
		return
	}
	for _, e := range entries {
		ct.processed[e.Dataset] = e
	}
}

func (ct *CompletionTracker) saveLocked() error {
	entries := make([]*ProcessedDataset, 0, len(ct.processed))
	for _, e := range ct.processed {
		entries = append(entries, e)
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(ct.path), 0o755); err != nil {
		return err
	}
	tmp := ct.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, ct.path)
}

// Clear removes all entries and deletes the persistence file.
func (ct *CompletionTracker) Clear() {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	ct.processed = make(map[string]*ProcessedDataset)
	_ = os.Remove(ct.path)
}
