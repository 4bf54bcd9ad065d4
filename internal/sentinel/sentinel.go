// Package sentinel runs the hot-folder daemon: dataset snapshots
// dropped into a watched directory are validated and batch-run
// automatically.
package sentinel

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDefault is the debounce interval for file events. Copying a
// large snapshot into the drop dir emits several writes; the last one
// wins.
const debounceDefault = 200 * time.Millisecond

// pollDefault is the polling interval when fsnotify is unavailable.
const pollDefault = 5 * time.Second

// Config holds sentinel daemon configuration.
type Config struct {
	DropDir      string        // where dataset snapshots land
	StateDir     string        // sentinel working state
	PollMode     bool          // fall back to polling if fsnotify unavailable
	PollInterval time.Duration // poll interval, default 5s
	ExecFn       ExecFunc      // batch execution (injected by cli to break import cycle)
	Tracker      *CompletionTracker
	State        *State
}

// Sentinel watches for dataset snapshots and auto-runs them.
type Sentinel struct {
	cfg       Config
	dirs      Dirs
	processor *Processor
}

// New creates a sentinel with validated configuration.
func New(cfg Config) (*Sentinel, error) {
	if cfg.DropDir == "" {
		return nil, fmt.Errorf("drop directory is required")
	}
	if cfg.StateDir == "" {
		return nil, fmt.Errorf("state directory is required")
	}
	if cfg.ExecFn == nil {
		return nil, fmt.Errorf("execution function is required")
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = pollDefault
	}

	dirs := NewDirs(cfg.DropDir, cfg.StateDir)
	processor := NewProcessor(dirs, cfg.ExecFn, cfg.Tracker, cfg.State)

	return &Sentinel{
		cfg:       cfg,
		dirs:      dirs,
		processor: processor,
	}, nil
}

// PIDPath returns the lock file for a state directory.
func PIDPath(stateDir string) string {
	return filepath.Join(stateDir, "sentinel.pid")
}

// Run starts the sentinel daemon. Blocks until ctx is cancelled.
func (s *Sentinel) Run(ctx context.Context) error {
	if err := EnsureDirs(s.dirs); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	pidPath := PIDPath(s.cfg.StateDir)
	if err := acquirePIDLock(pidPath); err != nil {
		return fmt.Errorf("acquire PID lock: %w", err)
	}
	defer func() { _ = os.Remove(pidPath) }()

	slog.Info("sentinel starting",
		"drop", s.cfg.DropDir,
		"state", s.cfg.StateDir,
	)

	// Recovery: datasets left in processing/ were interrupted mid-run.
	if err := s.recoverOrphans(); err != nil {
		return fmt.Errorf("recover orphans: %w", err)
	}

	// Process any snapshots already waiting in the drop dir.
	if err := s.scanExisting(ctx); err != nil {
		return fmt.Errorf("scan existing: %w", err)
	}

	if s.cfg.PollMode {
		return s.runPollWatcher(ctx)
	}
	return s.runFSWatcher(ctx)
}

// RunOnce processes everything currently in the drop dir and returns.
func (s *Sentinel) RunOnce(ctx context.Context) error {
	if err := EnsureDirs(s.dirs); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}
	if err := s.recoverOrphans(); err != nil {
		return fmt.Errorf("recover orphans: %w", err)
	}
	return s.scanExisting(ctx)
}

// scanExisting processes any dataset files already in the drop dir.
func (s *Sentinel) scanExisting(ctx context.Context) error {
	entries, err := os.ReadDir(s.cfg.DropDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !isDatasetFile(e.Name()) {
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		path := filepath.Join(s.cfg.DropDir, e.Name())
		if err := s.processor.Process(ctx, path); err != nil {
			slog.Error("process existing", "file", e.Name(), "error", err)
		}
	}
	return nil
}

// runFSWatcher watches the drop dir using fsnotify.
func (s *Sentinel) runFSWatcher(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(s.cfg.DropDir); err != nil {
		return fmt.Errorf("watch dir: %w", err)
	}

	slog.Info("watching for datasets", "mode", "fsnotify", "dir", s.cfg.DropDir)

	var mu sync.Mutex
	pending := make(map[string]*time.Timer)

	for {
		select {
		case <-ctx.Done():
			mu.Lock()
			for _, t := range pending {
				t.Stop()
			}
			mu.Unlock()
			slog.Info("sentinel stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !isDatasetFile(filepath.Base(event.Name)) {
				continue
			}

			path := event.Name
			mu.Lock()
			if t, exists := pending[path]; exists {
				t.Stop()
			}
			pending[path] = time.AfterFunc(debounceDefault, func() {
				if err := s.processor.Process(ctx, path); err != nil {
					slog.Error("process dataset", "file", filepath.Base(path), "error", err)
				}
				mu.Lock()
				delete(pending, path)
				mu.Unlock()
			})
			mu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

// runPollWatcher watches the drop dir using polling.
func (s *Sentinel) runPollWatcher(ctx context.Context) error {
	slog.Info("watching for datasets", "mode", "poll", "dir", s.cfg.DropDir, "interval", s.cfg.PollInterval)

	seen := make(map[string]bool)
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("sentinel stopped")
			return nil
		case <-ticker.C:
			entries, err := os.ReadDir(s.cfg.DropDir)
			if err != nil {
				continue
			}
			for _, e := range entries {
				if e.IsDir() || !isDatasetFile(e.Name()) {
					continue
				}
				path := filepath.Join(s.cfg.DropDir, e.Name())
				if seen[path] {
					continue
				}
				seen[path] = true
				if err := s.processor.Process(ctx, path); err != nil {
					slog.Error("process dataset", "file", e.Name(), "error", err)
				}
			}
		}
	}
}

// recoverOrphans moves datasets left in processing/ to failed results.
func (s *Sentinel) recoverOrphans() error {
	entries, err := os.ReadDir(s.dirs.Processing)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, e := range entries {
		if e.IsDir() || !isDatasetFile(e.Name()) {
			continue
		}
		name := e.Name()
		slog.Warn("recovering orphaned dataset", "dataset", name)

		_ = s.processor.writeFailed(resultStem(name), name,
			"interrupted: dataset was running when sentinel stopped")
		_ = moveFile(filepath.Join(s.dirs.Processing, name), filepath.Join(s.dirs.Failed, name))
	}
	return nil
}

// isDatasetFile returns true for snapshot files the loader understands.
func isDatasetFile(name string) bool {
	if strings.HasSuffix(name, ".tmp") || strings.HasSuffix(name, ".result.json") {
		return false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".db", ".sqlite":
		return true
	}
	return false
}

// acquirePIDLock writes the current PID and checks for stale locks.
func acquirePIDLock(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	if data, err := os.ReadFile(path); err == nil {
		pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
		if err == nil {
			if process, err := os.FindProcess(pid); err == nil {
				if err := process.Signal(syscall.Signal(0)); err == nil {
					return fmt.Errorf("another sentinel is running (PID %d)", pid)
				}
			}
		}
		_ = os.Remove(path)
	}

	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

// ReadPID returns the PID recorded in the lock file, or 0.
func ReadPID(stateDir string) int {
	data, err := os.ReadFile(PIDPath(stateDir))
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}
