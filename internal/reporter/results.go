package reporter

import (
	"fmt"
	"os"
	"sync"

	"github.com/dikeworks/floxrun/internal/batch"
)

// ResultsFileName is the per-run sentence log the downstream assessment
// sheet imports.
const ResultsFileName = "results.csv"

// ResultsWriter appends one sentence per finished scenario and flushes
// after every line, so a crash mid-batch loses nothing already written.
// The sentence wording is fixed: downstream tooling greps for it.
type ResultsWriter struct {
	mu sync.Mutex
	f  *os.File
}

// NewResultsWriter opens (or creates) the results file for appending.
func NewResultsWriter(path string) (*ResultsWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open results file: %w", err)
	}
	return &ResultsWriter{f: f}, nil
}

// Append writes the sentence for a finished scenario. Pending and
// skipped scenarios produce no line.
func (w *ResultsWriter) Append(res *batch.Result) error {
	line := ResultLine(res)
	if line == "" {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := fmt.Fprintln(w.f, line); err != nil {
		return fmt.Errorf("append result: %w", err)
	}
	return w.f.Sync()
}

// Close closes the underlying file.
func (w *ResultsWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Close()
}

// ResultLine renders the sentence for a result, or "" when the state
// carries no sentence.
func ResultLine(res *batch.Result) string {
	switch res.State {
	case batch.StateCompleted:
		return fmt.Sprintf("Scenario '%s': calculation took %ds, pipe length = %gm",
			res.Name, int(res.Duration.Seconds()), res.PipeLength)
	case batch.StateNoModel:
		return fmt.Sprintf("No model could be created for scenario '%s'", res.Name)
	case batch.StateFailed, batch.StateLicenseBlocked:
		return fmt.Sprintf("Scenario '%s' has no result, got message '%s'", res.Name, res.Error)
	default:
		return ""
	}
}
