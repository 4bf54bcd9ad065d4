package engine

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Graylist tracks scenarios whose geometry crashes the console
// intermittently. Graylisted scenarios still run, but the record tells
// the operator which geometries need manual cleanup before they are
// worth retrying. It is safe for concurrent use and persists to disk.
type Graylist struct {
	mu      sync.RWMutex
	entries map[string]graylistEntry // scenario name → record
	path    string
}

// graylistEntry is the JSON-serializable form of a graylist record.
type graylistEntry struct {
	Scenario  string    `json:"scenario"`
	Engine    string    `json:"engine,omitempty"`
	Signature string    `json:"signature,omitempty"`
	AddedAt   time.Time `json:"added_at"`
	Crashes   int       `json:"crashes"`
}

// DefaultGraylistPath returns ~/.floxrun/graylist.json.
func DefaultGraylistPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".floxrun", "graylist.json")
}

// NewGraylist creates a new empty graylist.
func NewGraylist() *Graylist {
	return &Graylist{entries: make(map[string]graylistEntry)}
}

// LoadGraylist reads a persisted graylist from disk. Missing or empty
// file is not an error.
func LoadGraylist(path string) *Graylist {
	gl := &Graylist{
		entries: make(map[string]graylistEntry),
		path:    path,
	}
	if path == "" {
		return gl
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return gl
	}

	var entries []graylistEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		slog.Warn("corrupt graylist file, starting fresh", "path", path, "error", err)
		return gl
	}
	for _, e := range entries {
		gl.entries[e.Scenario] = e
	}
	return gl
}

// RecordCrash notes a console crash on a scenario and persists.
func (g *Graylist) RecordCrash(scenario, engine, signature string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.entries[scenario]
	if !ok {
		e = graylistEntry{Scenario: scenario, AddedAt: time.Now()}
	}
	e.Engine = engine
	e.Signature = signature
	e.Crashes++
	g.entries[scenario] = e
	g.saveLocked()
}

// IsGraylisted returns true if the scenario has recorded crashes.
func (g *Graylist) IsGraylisted(scenario string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.entries[scenario]
	return ok
}

// GraylistInfo holds public info about a graylisted scenario.
type GraylistInfo struct {
	Engine    string
	Signature string
	AddedAt   time.Time
	Crashes   int
}

// Entries returns a copy of all graylist entries.
func (g *Graylist) Entries() map[string]GraylistInfo {
	g.mu.RLock()
	defer g.mu.RUnlock()
	result := make(map[string]GraylistInfo, len(g.entries))
	for name, e := range g.entries {
		result[name] = GraylistInfo{
			Engine:    e.Engine,
			Signature: e.Signature,
			AddedAt:   e.AddedAt,
			Crashes:   e.Crashes,
		}
	}
	return result
}

// Clear removes all entries and deletes the persistence file.
func (g *Graylist) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entries = make(map[string]graylistEntry)
	if g.path != "" {
		_ = os.Remove(g.path)
	}
}

// saveLocked writes the current graylist to disk. Caller must hold g.mu.
func (g *Graylist) saveLocked() {
	if g.path == "" {
		return
	}

	var entries []graylistEntry
	for _, e := range g.entries {
		entries = append(entries, e)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		slog.Warn("failed to marshal graylist", "error", err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(g.path), 0o755); err != nil {
		slog.Warn("failed to create graylist dir", "error", err)
		return
	}

	tmp := g.path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		slog.Warn("failed to write graylist", "error", err)
		return
	}
	if err := os.Rename(tmp, g.path); err != nil {
		slog.Warn("failed to rename graylist", "error", err)
		_ = os.Remove(tmp)
	}
}
