package sentinel

import (
	"sync"
	"time"

	"github.com/dikeworks/floxrun/internal/batch"
)

// Phase represents the current sentinel loop phase.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseValidating
	PhaseRunning
	PhaseCooldown
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseValidating:
		return "VALIDATING"
	case PhaseRunning:
		return "RUNNING"
	case PhaseCooldown:
		return "COOLDOWN"
	default:
		return "UNKNOWN"
	}
}

// EngineHealth tracks per-engine status for dashboard display.
type EngineHealth struct {
	Name         string
	Blacklisted  bool
	BlockedUntil time.Time
}

// CurrentRunState tracks progress of the active batch.
type CurrentRunState struct {
	Dataset   string
	RunID     string
	StartedAt time.Time
	Total     int
	Results   map[string]*batch.Result
}

// Snapshot is an immutable copy of State for dashboard rendering.
type Snapshot struct {
	Phase          Phase
	PhaseMsg       string
	CurrentRun     *CurrentRunState
	History        []ProcessResult
	Engines        []EngineHealth
	StartedAt      time.Time
	RetryAt        time.Time
	TotalCompleted int
	TotalFailed    int
	TotalDatasets  int
}

const maxHistory = 50

// State is the shared state container. The sentinel loop writes; the
// dashboard reads via Snapshot().
type State struct {
	mu sync.RWMutex

	phase    Phase
	phaseMsg string

	currentRun *CurrentRunState
	history    []ProcessResult
	engines    []EngineHealth

	startedAt time.Time
	retryAt   time.Time

	totalCompleted int
	totalFailed    int
	totalDatasets  int

	// events channel for dashboard notification (buffered, non-blocking)
	events chan struct{}
}

// NewState creates a new state container.
func NewState() *State {
	return &State{
		startedAt: time.Now(),
		events:    make(chan struct{}, 1),
	}
}

// Events returns the notification channel for dashboard subscription.
func (s *State) Events() <-chan struct{} {
	return s.events
}

// Snapshot returns an immutable copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Phase:          s.phase,
		PhaseMsg:       s.phaseMsg,
		CurrentRun:     s.currentRun,
		StartedAt:      s.startedAt,
		RetryAt:        s.retryAt,
		TotalCompleted: s.totalCompleted,
		TotalFailed:    s.totalFailed,
		TotalDatasets:  s.totalDatasets,
	}

	if len(s.history) > 0 {
		snap.History = make([]ProcessResult, len(s.history))
		copy(snap.History, s.history)
	}
	if len(s.engines) > 0 {
		snap.Engines = make([]EngineHealth, len(s.engines))
		copy(snap.Engines, s.engines)
	}

	return snap
}

// SetPhase updates the current phase and detail message.
func (s *State) SetPhase(p Phase, msg string) {
	s.mu.Lock()
	s.phase = p
	s.phaseMsg = msg
	s.mu.Unlock()
	s.notify()
}

// SetCurrentRun sets the active batch state.
func (s *State) SetCurrentRun(run *CurrentRunState) {
	s.mu.Lock()
	s.currentRun = run
	s.mu.Unlock()
	s.notify()
}

// UpdateRunResults updates the results map of the current batch.
func (s *State) UpdateRunResults(results map[string]*batch.Result) {
	s.mu.Lock()
	if s.currentRun != nil {
		s.currentRun.Results = results
	}
	s.mu.Unlock()
	s.notify()
}

// AddHistory prepends a dataset result to the history (most recent
// first).
func (s *State) AddHistory(pr ProcessResult) {
	s.mu.Lock()
	s.history = append([]ProcessResult{pr}, s.history...)
	if len(s.history) > maxHistory {
		s.history = s.history[:maxHistory]
	}
	s.totalCompleted += pr.Completed
	s.totalFailed += pr.Failed
	s.totalDatasets++
	s.mu.Unlock()
	s.notify()
}

// SetEngines updates the engine health list.
func (s *State) SetEngines(engines []EngineHealth) {
	s.mu.Lock()
	s.engines = engines
	s.mu.Unlock()
	s.notify()
}

// SetRetryAt sets the time the license pool is expected to free up.
func (s *State) SetRetryAt(t time.Time) {
	s.mu.Lock()
	s.retryAt = t
	s.mu.Unlock()
	s.notify()
}

// notify sends a non-blocking signal to the events channel.
func (s *State) notify() {
	select {
	case s.events <- struct{}{}:
	default:
	}
}
