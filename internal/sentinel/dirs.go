package sentinel

import (
	"os"
	"path/filepath"
)

// Dirs holds the directory layout for sentinel state.
type Dirs struct {
	Incoming   string // drop dir: new dataset snapshots land here
	Processing string // datasets currently being run
	Done       string // datasets that ran to completion
	Failed     string // datasets that failed validation or execution
}

// NewDirs creates a Dirs from the drop and state directories.
func NewDirs(dropDir, stateDir string) Dirs {
	return Dirs{
		Incoming:   dropDir,
		Processing: filepath.Join(stateDir, "processing"),
		Done:       filepath.Join(stateDir, "done"),
		Failed:     filepath.Join(stateDir, "failed"),
	}
}

// EnsureDirs creates all sentinel directories.
func EnsureDirs(d Dirs) error {
	for _, dir := range []string{d.Incoming, d.Processing, d.Done, d.Failed} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}
