package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"syscall"
	"time"
)

// DefaultLockPath is where concurrent floxrun processes coordinate.
// One console run at a time per machine keeps the license seat usage
// predictable.
const DefaultLockPath = "/tmp/floxrun-engine.lock"

// LockInfo describes the owner of the engine lock.
type LockInfo struct {
	PID       int       `json:"pid"`
	RunDir    string    `json:"run_dir,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// Acquire creates the engine lock file. Returns nil on success. If the
// lock exists and the owning PID is dead, the stale lock is reclaimed.
func Acquire(path, runDir string) error {
	info := LockInfo{
		PID:       os.Getpid(),
		RunDir:    runDir,
		StartedAt: time.Now(),
	}

	err := writeLock(path, &info)
	if err == nil {
		return nil
	}
	if !errors.Is(err, os.ErrExist) {
		return fmt.Errorf("create lock %s: %w", path, err)
	}

	// lock exists — check if stale
	existing, readErr := ReadLock(path)
	if readErr != nil {
		return fmt.Errorf("engine is locked (could not read lock %s: %v)", path, readErr)
	}

	if isProcessAlive(existing.PID) {
		return fmt.Errorf("engine locked by PID %d since %s",
			existing.PID, existing.StartedAt.Format(time.RFC3339))
	}

	slog.Warn("reclaiming stale engine lock", "path", path, "stale_pid", existing.PID)
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove stale lock: %w", err)
	}
	if err := writeLock(path, &info); err != nil {
		return fmt.Errorf("acquire after stale removal: %w", err)
	}
	return nil
}

// WaitAndAcquire retries Acquire until it succeeds or the context is
// cancelled.
func WaitAndAcquire(ctx context.Context, path, runDir string, poll time.Duration) error {
	if poll <= 0 {
		poll = 5 * time.Second
	}
	for {
		err := Acquire(path, runDir)
		if err == nil {
			return nil
		}
		slog.Debug("waiting for engine lock", "path", path, "error", err)
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for engine lock: %w", context.Cause(ctx))
		case <-time.After(poll):
		}
	}
}

// Release removes the lock file. It is idempotent.
func Release(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to release engine lock", "path", path, "error", err)
	}
}

// ReadLock reads the lock file.
func ReadLock(path string) (*LockInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var info LockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("parse lock: %w", err)
	}
	return &info, nil
}

// writeLock atomically creates the lock file using O_CREATE|O_EXCL.
func writeLock(path string, info *LockInfo) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	encErr := json.NewEncoder(f).Encode(info)
	closeErr := f.Close()
	if encErr != nil {
		return encErr
	}
	return closeErr
}

// isProcessAlive checks if a process with the given PID exists and is
// running.
func isProcessAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// signal 0 checks existence without actually sending a signal
	err = proc.Signal(syscall.Signal(0))
	return err == nil
}
