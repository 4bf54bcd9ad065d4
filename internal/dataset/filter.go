package dataset

import (
	"strings"

	"github.com/dikeworks/floxrun/internal/dike"
)

// FilterDijkpaal keeps scenarios within the inclusive [from, to] range.
// A zero bound leaves that side open.
func FilterDijkpaal(scenarios []*dike.Scenario, from, to int) []*dike.Scenario {
	if from == 0 && to == 0 {
		return scenarios
	}
	var filtered []*dike.Scenario
	for _, sc := range scenarios {
		if from != 0 && sc.Dijkpaal < from {
			continue
		}
		if to != 0 && sc.Dijkpaal > to {
			continue
		}
		filtered = append(filtered, sc)
	}
	return filtered
}

// FilterName keeps scenarios whose name matches the pattern.
func FilterName(scenarios []*dike.Scenario, pattern string) []*dike.Scenario {
	if pattern == "" {
		return scenarios
	}
	var filtered []*dike.Scenario
	for _, sc := range scenarios {
		if matchGlob(sc.Name, pattern) {
			filtered = append(filtered, sc)
		}
	}
	return filtered
}

// matchGlob does simple glob matching supporting * wildcard.
func matchGlob(s, pattern string) bool {
	// handle exact match
	if s == pattern {
		return true
	}

	// handle * at end: "prefix*"
	if strings.HasSuffix(pattern, "*") {
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(s, prefix)
	}

	// handle * at start: "*suffix"
	if strings.HasPrefix(pattern, "*") {
		suffix := strings.TrimPrefix(pattern, "*")
		return strings.HasSuffix(s, suffix)
	}

	// handle * in middle: "prefix*suffix"
	if idx := strings.Index(pattern, "*"); idx >= 0 {
		prefix := pattern[:idx]
		suffix := pattern[idx+1:]
		return strings.HasPrefix(s, prefix) && strings.HasSuffix(s, suffix)
	}

	return false
}
