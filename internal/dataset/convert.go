package dataset

import (
	"fmt"
	"math"

	"github.com/dikeworks/floxrun/internal/dike"
)

// ParseIssue records why a location was skipped during conversion.
type ParseIssue struct {
	Name   string
	Reason string
}

func (i ParseIssue) String() string {
	return fmt.Sprintf("skipping location %s: %s", i.Name, i.Reason)
}

// Convert turns snapshot records into calculation scenarios. The
// cross-section is mirrored and clipped to [limitLeft, limitRight];
// the exit point moves with the mirror. Layers without a recorded
// bottom get top minus bottomOffset. Records that cannot be converted
// are reported as issues, never as errors: one bad record must not
// abort the batch.
func Convert(s *Snapshot, limitLeft, limitRight, bottomOffset float64) ([]*dike.Scenario, []ParseIssue) {
	profiles := make(map[int64]*SoilProfile, len(s.SoilProfiles))
	for i := range s.SoilProfiles {
		profiles[s.SoilProfiles[i].ID] = &s.SoilProfiles[i]
	}

	var scenarios []*dike.Scenario
	var issues []ParseIssue
	skip := func(name, format string, args ...any) {
		issues = append(issues, ParseIssue{Name: name, Reason: fmt.Sprintf(format, args...)})
	}

	for _, loc := range s.Locations {
		sp, ok := profiles[loc.Ondergrond]
		if !ok {
			skip(loc.Name, "soil profile %d not found", loc.Ondergrond)
			continue
		}
		if bad := firstNonFinite(loc); bad != "" {
			skip(loc.Name, "non-finite value for %s", bad)
			continue
		}

		points, err := assemblePoints(loc.Points)
		if err != nil {
			skip(loc.Name, "%v", err)
			continue
		}
		cs, err := dike.NewCrossSection(points)
		if err != nil {
			skip(loc.Name, "%v", err)
			continue
		}
		cs.Mirror()
		cs.LimitLeft(limitLeft)
		cs.LimitRight(limitRight)

		scenarios = append(scenarios, &dike.Scenario{
			Name:            loc.Name,
			Dijkpaal:        loc.Dijkpaal,
			CrossSection:    cs,
			SoilProfile:     resolveProfile(sp, bottomOffset),
			ExitPointX:      -loc.Uittredepunt,
			DitchNumber:     loc.Slootnummer,
			MaxPolderLevel:  loc.MaxZpWp,
			DitchLevelUpper: loc.BovengrensSlootpeil,
			DitchLevelLower: loc.OndergrensSlootpeil,
			DitchLevel:      loc.Slootpeil,
			NormWaterLevel:  loc.WaterstandBijNorm,
		})
	}
	return scenarios, issues
}

// assemblePoints orders the record's point map along the canonical
// point sequence. The profile endpoints MV_bin and MV_bui are required.
func assemblePoints(m map[string][2]float64) ([]dike.Point, error) {
	for _, required := range []string{"MV_bin", "MV_bui"} {
		if _, ok := m[required]; !ok {
			return nil, fmt.Errorf("missing point %s", required)
		}
	}
	var points []dike.Point
	for _, id := range dike.PointIDs {
		xz, ok := m[id]
		if !ok {
			continue
		}
		if math.IsNaN(xz[0]) || math.IsNaN(xz[1]) {
			continue
		}
		t, _ := dike.PointTypeByID(id)
		points = append(points, dike.Point{X: xz[0], Z: xz[1], Type: t})
	}
	return points, nil
}

// resolveProfile converts a stored profile, filling in missing layer
// bottoms with top minus the bottom offset.
func resolveProfile(sp *SoilProfile, bottomOffset float64) *dike.SoilProfile {
	p := &dike.SoilProfile{ID: sp.ID, Layers: make([]dike.SoilLayer, 0, len(sp.Layers))}
	for _, l := range sp.Layers {
		bottom := l.Top - bottomOffset
		if l.Bottom != nil {
			bottom = *l.Bottom
		}
		p.Layers = append(p.Layers, dike.SoilLayer{
			SoilName:      l.SoilName,
			Top:           l.Top,
			Bottom:        bottom,
			IsAquifer:     l.IsAquifer,
			AquiferNumber: l.AquiferNumber,
		})
	}
	return p
}

func firstNonFinite(loc Location) string {
	checks := []struct {
		name  string
		value float64
	}{
		{"uittredepunt", loc.Uittredepunt},
		{"max_zp_wp", loc.MaxZpWp},
		{"bovengrens_slootpeil", loc.BovengrensSlootpeil},
		{"ondergrens_slootpeil", loc.OndergrensSlootpeil},
		{"slootpeil", loc.Slootpeil},
		{"waterstand_bij_norm", loc.WaterstandBijNorm},
	}
	for _, c := range checks {
		if math.IsNaN(c.value) || math.IsInf(c.value, 0) {
			return c.name
		}
	}
	return ""
}
