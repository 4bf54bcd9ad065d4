package state

import (
	"log/slog"

	"github.com/dikeworks/floxrun/internal/dike"
)

// SkippedScenario records why a scenario was filtered out by state
// tracking.
type SkippedScenario struct {
	Name   string
	Reason string
}

// FilterScenarios removes scenarios that should not run based on
// persistent state. Completed scenarios are always skipped. Failed and
// interrupted scenarios are skipped unless retry is true.
func FilterScenarios(scenarios []*dike.Scenario, tracker *Tracker, retry bool) ([]*dike.Scenario, []SkippedScenario) {
	var filtered []*dike.Scenario
	var skipped []SkippedScenario

	for _, sc := range scenarios {
		entry := tracker.Get(sc.Name)
		if entry == nil {
			filtered = append(filtered, sc)
			continue
		}

		reason := ""
		switch entry.Status {
		case StatusCompleted:
			reason = "completed in previous run"
		case StatusFailed:
			if !retry {
				reason = "failed (use --retry to re-execute)"
			}
		case StatusInterrupted:
			if !retry {
				reason = "interrupted (use --retry to re-execute)"
			}
		}

		if reason == "" {
			filtered = append(filtered, sc)
			continue
		}
		skipped = append(skipped, SkippedScenario{Name: sc.Name, Reason: reason})
		slog.Info("skipping scenario", "scenario", sc.Name, "reason", reason)
	}

	return filtered, skipped
}
