package state

import (
	"testing"

	"github.com/dikeworks/floxrun/internal/dike"
)

func scenarios(names ...string) []*dike.Scenario {
	var out []*dike.Scenario
	for _, n := range names {
		out = append(out, &dike.Scenario{Name: n})
	}
	return out
}

func TestFilterScenarios(t *testing.T) {
	tr := Load(DefaultPath(t.TempDir()))
	tr.MarkCompleted("done", "eng", 5)
	tr.MarkFailed("broken", "boom")
	tr.MarkStarted("stale", "run1", "")
	tr.RecoverInterrupted()

	scs := scenarios("done", "broken", "stale", "fresh")

	filtered, skipped := FilterScenarios(scs, tr, false)
	if len(filtered) != 1 || filtered[0].Name != "fresh" {
		t.Fatalf("filtered = %v", filtered)
	}
	if len(skipped) != 3 {
		t.Fatalf("skipped = %v", skipped)
	}

	// --retry re-admits failed and interrupted, never completed
	filtered, skipped = FilterScenarios(scs, tr, true)
	if len(filtered) != 3 {
		t.Fatalf("retry filtered = %v", filtered)
	}
	for _, sc := range filtered {
		if sc.Name == "done" {
			t.Fatal("completed scenario re-admitted by --retry")
		}
	}
	if len(skipped) != 1 || skipped[0].Name != "done" {
		t.Fatalf("retry skipped = %v", skipped)
	}
}

func TestFilterScenariosEmptyTracker(t *testing.T) {
	tr := Load(DefaultPath(t.TempDir()))
	scs := scenarios("a", "b")
	filtered, skipped := FilterScenarios(scs, tr, false)
	if len(filtered) != 2 || len(skipped) != 0 {
		t.Fatalf("filtered=%d skipped=%d", len(filtered), len(skipped))
	}
}
