package batch

import (
	"context"
	"testing"
	"time"

	"github.com/dikeworks/floxrun/internal/dike"
)

func jobsFor(names ...string) []*Job {
	var jobs []*Job
	for i, name := range names {
		jobs = append(jobs, &Job{Scenario: &dike.Scenario{Name: name, Dijkpaal: 400 - i}})
	}
	return jobs
}

func TestLoopRunsInDijkpaalOrder(t *testing.T) {
	jobs := []*Job{
		{Scenario: &dike.Scenario{Name: "b", Dijkpaal: 380}},
		{Scenario: &dike.Scenario{Name: "a", Dijkpaal: 370}},
		{Scenario: &dike.Scenario{Name: "c", Dijkpaal: 370}},
	}

	var order []string
	l := NewLoop(jobs, func(ctx context.Context, job *Job, update func(*Result)) *Result {
		order = append(order, job.Scenario.Name)
		return &Result{State: StateCompleted}
	})
	results := l.Execute(context.Background())

	want := []string{"a", "c", "b"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
	if len(results) != 3 {
		t.Fatalf("got %d results", len(results))
	}
	for name, r := range results {
		if r.State != StateCompleted {
			t.Fatalf("%s state = %v", name, r.State)
		}
		if r.Duration < 0 || r.StartedAt.IsZero() || r.EndedAt.IsZero() {
			t.Fatalf("%s timing not filled: %+v", name, r)
		}
	}
}

func TestLoopFailFast(t *testing.T) {
	jobs := jobsFor("x", "y", "z")
	var ran int
	l := NewLoop(jobs, func(ctx context.Context, job *Job, update func(*Result)) *Result {
		ran++
		r := &Result{}
		r.Failedf("boom")
		return r
	})
	l.FailFast = true
	results := l.Execute(context.Background())

	if ran != 1 {
		t.Fatalf("ran %d scenarios, want 1", ran)
	}
	skipped := 0
	for _, r := range results {
		if r.State == StateSkipped {
			skipped++
		}
	}
	if skipped != 2 {
		t.Fatalf("got %d skipped, want 2", skipped)
	}
}

func TestLoopWithoutFailFastContinues(t *testing.T) {
	jobs := jobsFor("x", "y")
	var ran int
	l := NewLoop(jobs, func(ctx context.Context, job *Job, update func(*Result)) *Result {
		ran++
		r := &Result{}
		r.Failedf("boom")
		return r
	})
	l.Execute(context.Background())
	if ran != 2 {
		t.Fatalf("ran %d scenarios, want 2", ran)
	}
}

func TestLoopInterruptSkipsRemaining(t *testing.T) {
	jobs := jobsFor("x", "y", "z")
	ctx, cancel := context.WithCancel(context.Background())

	var ran int
	l := NewLoop(jobs, func(ctx context.Context, job *Job, update func(*Result)) *Result {
		ran++
		cancel() // interrupt arrives while the first scenario runs
		return &Result{State: StateCompleted}
	})
	results := l.Execute(ctx)

	if ran != 1 {
		t.Fatalf("ran %d scenarios, want 1", ran)
	}
	var completed, skipped int
	for _, r := range results {
		switch r.State {
		case StateCompleted:
			completed++
		case StateSkipped:
			skipped++
		}
	}
	if completed != 1 || skipped != 2 {
		t.Fatalf("completed=%d skipped=%d", completed, skipped)
	}
}

func TestLoopTimeoutContext(t *testing.T) {
	jobs := []*Job{{Scenario: &dike.Scenario{Name: "slow"}, Timeout: 10 * time.Millisecond}}
	l := NewLoop(jobs, func(ctx context.Context, job *Job, update func(*Result)) *Result {
		select {
		case <-ctx.Done():
			r := &Result{}
			r.Failedf("timed out")
			return r
		case <-time.After(5 * time.Second):
			return &Result{State: StateCompleted}
		}
	})
	results := l.Execute(context.Background())
	if results["slow"].State != StateFailed {
		t.Fatalf("state = %v, want FAILED", results["slow"].State)
	}
}

func TestLoopIntermediateUpdates(t *testing.T) {
	jobs := jobsFor("x")
	var states []ScenarioState
	l := NewLoop(jobs, func(ctx context.Context, job *Job, update func(*Result)) *Result {
		update(&Result{State: StateBuilding})
		update(&Result{State: StateCalculating, LastMsg: "meshing"})
		return &Result{State: StateCompleted, PipeLength: 11.48}
	})
	l.OnUpdate = func(name string, r *Result) {
		states = append(states, r.State)
	}
	results := l.Execute(context.Background())

	want := []ScenarioState{StateBuilding, StateCalculating, StateCompleted}
	if len(states) != len(want) {
		t.Fatalf("updates = %v", states)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("updates = %v, want %v", states, want)
		}
	}
	if results["x"].PipeLength != 11.48 {
		t.Fatalf("pipe length = %v", results["x"].PipeLength)
	}
}

func TestSummarize(t *testing.T) {
	retry := time.Now().Add(time.Hour)
	report := &RunReport{Results: map[string]*Result{
		"a": {State: StateCompleted},
		"b": {State: StateFailed},
		"c": {State: StateSkipped},
		"d": {State: StateNoModel},
		"e": {State: StateLicenseBlocked, RetryAt: retry},
	}}
	report.Summarize()

	if report.Total != 5 || report.Completed != 1 || report.Failed != 1 ||
		report.Skipped != 1 || report.NoModel != 1 || report.LicenseBlocked != 1 {
		t.Fatalf("counts = %+v", report)
	}
	if !report.RetryAt.Equal(retry) {
		t.Fatalf("retry_at = %v", report.RetryAt)
	}
}

func TestSafeName(t *testing.T) {
	if got := SafeName("DP0375_sloot1"); got != "DP0375_sloot1" {
		t.Fatalf("SafeName = %q", got)
	}
	if got := SafeName("dp 375/sloot:1"); got != "dp_375_sloot_1" {
		t.Fatalf("SafeName = %q", got)
	}
	if got := SafeName(""); got != "scenario" {
		t.Fatalf("SafeName = %q", got)
	}
}

func TestNewRunIDStable(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := NewRunID(ts, []string{"x.json"})
	b := NewRunID(ts, []string{"x.json"})
	if a != b || len(a) != 12 {
		t.Fatalf("run ids %q %q", a, b)
	}
	if NewRunID(ts, []string{"y.json"}) == a {
		t.Fatal("different datasets must give different ids")
	}
}
