package batch

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// RunFunc executes one scenario. The update callback publishes
// intermediate states (building, calculating, progress lines) while the
// job is in flight; the returned result is final.
type RunFunc func(ctx context.Context, job *Job, update func(*Result)) *Result

// Loop runs scenarios strictly one at a time. The vendor console holds
// a license seat per process, so there is never a reason to parallelize
// here.
type Loop struct {
	// FailFast stops the batch after the first failed scenario.
	FailFast bool

	// OnUpdate is called after every state change, including the
	// intermediate ones published by the RunFunc. May be nil.
	OnUpdate func(name string, r *Result)

	jobs []*Job
	run  RunFunc

	mu      sync.Mutex
	results map[string]*Result
}

// NewLoop prepares a loop over the given jobs. Jobs are ordered by
// dijkpaal, then name.
func NewLoop(jobs []*Job, run RunFunc) *Loop {
	sorted := make([]*Job, len(jobs))
	copy(sorted, jobs)
	SortJobs(sorted)

	l := &Loop{
		jobs:    sorted,
		run:     run,
		results: make(map[string]*Result, len(jobs)),
	}
	for _, j := range sorted {
		l.results[j.Scenario.Name] = &Result{Name: j.Scenario.Name, State: StatePending}
	}
	return l
}

// SortJobs orders jobs by dijkpaal, then name.
func SortJobs(jobs []*Job) {
	sort.Slice(jobs, func(i, j int) bool {
		a, b := jobs[i].Scenario, jobs[j].Scenario
		if a.Dijkpaal != b.Dijkpaal {
			return a.Dijkpaal < b.Dijkpaal
		}
		return a.Name < b.Name
	})
}

// Execute runs all jobs and returns the final results. Cancelling the
// context lets the in-flight scenario finish its cleanup and marks the
// rest skipped.
func (l *Loop) Execute(ctx context.Context) map[string]*Result {
	failed := false
	for i, job := range l.jobs {
		name := job.Scenario.Name

		if ctx.Err() != nil {
			l.skipRemaining(i, "interrupted")
			break
		}
		if failed && l.FailFast {
			l.skipRemaining(i, "fail-fast: earlier scenario failed")
			break
		}

		slog.Debug("starting scenario", "scenario", name, "dijkpaal", job.Scenario.Dijkpaal)

		jobCtx := ctx
		var cancel context.CancelFunc
		if job.Timeout > 0 {
			jobCtx, cancel = context.WithTimeout(ctx, job.Timeout)
		}

		started := time.Now()
		res := l.run(jobCtx, job, func(r *Result) {
			l.store(name, r)
		})
		if cancel != nil {
			cancel()
		}

		if res == nil {
			res = &Result{Name: name}
			res.Failedf("engine returned no result")
		}
		if res.StartedAt.IsZero() {
			res.StartedAt = started
		}
		if res.EndedAt.IsZero() {
			res.EndedAt = time.Now()
		}
		if res.Duration == 0 {
			res.Duration = res.EndedAt.Sub(res.StartedAt)
		}
		l.store(name, res)

		if res.State == StateFailed {
			failed = true
		}
	}
	return l.Results()
}

func (l *Loop) skipRemaining(from int, reason string) {
	for _, job := range l.jobs[from:] {
		name := job.Scenario.Name
		l.store(name, &Result{Name: name, State: StateSkipped, Error: reason})
		slog.Debug("skipping scenario", "scenario", name, "reason", reason)
	}
}

func (l *Loop) store(name string, r *Result) {
	cp := *r
	cp.Name = name
	cp.Attempts = append([]AttemptInfo(nil), r.Attempts...)

	l.mu.Lock()
	l.results[name] = &cp
	l.mu.Unlock()

	if l.OnUpdate != nil {
		l.OnUpdate(name, &cp)
	}
}

// Results returns a deep copy of the current results, safe for
// concurrent readers while the loop is running.
func (l *Loop) Results() map[string]*Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]*Result, len(l.results))
	for name, r := range l.results {
		cp := *r
		cp.Attempts = append([]AttemptInfo(nil), r.Attempts...)
		out[name] = &cp
	}
	return out
}
