package engine

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Blacklist tracks engine profiles that should be skipped because their
// license pool is exhausted. It is safe for concurrent use and persists
// to disk so state survives across floxrun invocations.
type Blacklist struct {
	mu    sync.RWMutex
	until map[string]time.Time // engine name → blocked until
	path  string               // persistence file path (empty = no persistence)
}

// blacklistEntry is the JSON-serializable form of a blacklist record.
type blacklistEntry struct {
	Engine  string    `json:"engine"`
	RetryAt time.Time `json:"retry_at"`
}

// DefaultBlacklistPath returns ~/.floxrun/blacklist.json.
func DefaultBlacklistPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".floxrun", "blacklist.json")
}

// NewBlacklist creates a new empty blacklist.
func NewBlacklist() *Blacklist {
	return &Blacklist{until: make(map[string]time.Time)}
}

// LoadBlacklist reads a persisted blacklist from disk. Only entries
// with retry_at in the future are loaded; expired entries are
// discarded. Missing or empty file is not an error.
func LoadBlacklist(path string) *Blacklist {
	bl := &Blacklist{
		until: make(map[string]time.Time),
		path:  path,
	}
	if path == "" {
		return bl
	}

	data, err := os.ReadFile(path)
	if err != nil {
		// missing file is normal (first run)
		return bl
	}

	var entries []blacklistEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		slog.Warn("corrupt blacklist file, starting fresh", "path", path, "error", err)
		return bl
	}

	now := time.Now()
	for _, e := range entries {
		if e.RetryAt.After(now) {
			bl.until[e.Engine] = e.RetryAt
			slog.Info("loaded blacklist entry", "engine", e.Engine, "retry_at", e.RetryAt.Format(time.Kitchen))
		}
	}
	return bl
}

// Block marks an engine as blocked until the given time and persists.
func (b *Blacklist) Block(engine string, until time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	// only extend the block, never shorten it
	if existing, ok := b.until[engine]; ok && existing.After(until) {
		return
	}
	b.until[engine] = until
	b.saveLocked()
}

// IsBlocked returns true if the engine is currently blocked.
func (b *Blacklist) IsBlocked(engine string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	until, ok := b.until[engine]
	if !ok {
		return false
	}
	return time.Now().Before(until)
}

// BlockedUntil returns the block expiry for an engine, zero when not
// blocked.
func (b *Blacklist) BlockedUntil(engine string) time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	until := b.until[engine]
	if time.Now().Before(until) {
		return until
	}
	return time.Time{}
}

// Entries returns a copy of all active (non-expired) entries.
func (b *Blacklist) Entries() map[string]time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	now := time.Now()
	result := make(map[string]time.Time)
	for engine, until := range b.until {
		if until.After(now) {
			result[engine] = until
		}
	}
	return result
}

// Clear removes all entries and deletes the persistence file.
func (b *Blacklist) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.until = make(map[string]time.Time)
	if b.path != "" {
		_ = os.Remove(b.path)
	}
}

// saveLocked writes the current blacklist to disk. Caller must hold b.mu.
func (b *Blacklist) saveLocked() {
	if b.path == "" {
		return
	}

	now := time.Now()
	var entries []blacklistEntry
	for engine, until := range b.until {
		if until.After(now) {
			entries = append(entries, blacklistEntry{Engine: engine, RetryAt: until})
		}
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		slog.Warn("failed to marshal blacklist", "error", err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		slog.Warn("failed to create blacklist dir", "error", err)
		return
	}

	// atomic write via temp file
	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		slog.Warn("failed to write blacklist", "error", err)
		return
	}
	if err := os.Rename(tmp, b.path); err != nil {
		slog.Warn("failed to rename blacklist", "error", err)
		_ = os.Remove(tmp)
	}
}
