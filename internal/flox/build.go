package flox

import (
	"fmt"
	"time"

	"github.com/dikeworks/floxrun/internal/dike"
)

// Build maps a scenario onto the engine input schema. It returns the
// model together with a build log. A non-nil error means no model could
// be constructed at all; the caller records the scenario as NO_MODEL.
func Build(sc *dike.Scenario, p BuildParams) (*Model, []string, error) {
	var log []string
	logf := func(format string, args ...any) {
		log = append(log, fmt.Sprintf(format, args...))
	}

	cs := sc.CrossSection
	profile := sc.SoilProfile
	if profile == nil || len(profile.Layers) == 0 {
		return nil, log, fmt.Errorf("scenario %s: soil profile is empty", sc.Name)
	}
	aquifer := profile.Aquifer()
	if aquifer == nil {
		return nil, log, fmt.Errorf("scenario %s: soil profile %d has no aquifer layer", sc.Name, profile.ID)
	}

	left := cs.Left()
	right := cs.Right()
	ditchTop, hasDitch := cs.PointByType(dike.Sloot1A)
	if hasDitch {
		right = ditchTop.X + p.DitchExtent
		logf("ditch at x=%.2f, extending geometry to x=%.2f", ditchTop.X, right)
	}

	if sc.ExitPointX < left || sc.ExitPointX > right {
		return nil, log, fmt.Errorf("scenario %s: exit point x=%.2f outside geometry [%.2f, %.2f]",
			sc.Name, sc.ExitPointX, left, right)
	}

	soils, soilLog := buildSoils(profile, sc.Dijkpaal, p)
	log = append(log, soilLog...)

	geom := buildGeometry(cs, profile, left, right, p)

	riverHead := sc.NormWaterLevel + p.SeaLevelRise
	logf("river head %.2f m NAP (waterstand_bij_norm %.2f + sea_level_rise %.2f)",
		riverHead, sc.NormWaterLevel, p.SeaLevelRise)

	boundaries := buildBoundaries(sc, cs, profile, left, right, riverHead, p, logf)

	pipe := Pipe{
		Start:    XZ{X: left, Z: aquifer.Top},
		End:      XZ{X: sc.ExitPointX, Z: aquifer.Top},
		D70:      p.D70,
		MeshSize: p.PipeMeshSize,
	}
	logf("pipe along aquifer %s top %.2f m NAP, x %.2f to %.2f",
		aquifer.SoilName, aquifer.Top, left, sc.ExitPointX)

	m := &Model{
		ProjectInfo: ProjectInfo{
			Name:        sc.Name,
			Application: "floxrun",
			Created:     time.Now().Format(time.RFC3339),
		},
		Soils:    soils,
		Geometry: geom,
		Scenario: ScenarioConfig{
			Boundaries:  boundaries,
			Pipe:        pipe,
			MinMeshSize: p.MinMeshSize,
		},
	}
	return m, log, nil
}

// buildSoils derives material definitions for every distinct layer in
// the profile, applying the sand permeability overrides.
func buildSoils(profile *dike.SoilProfile, dijkpaal int, p BuildParams) ([]Soil, []string) {
	var log []string
	seen := make(map[string]struct{})
	var soils []Soil
	for _, l := range profile.Layers {
		if _, ok := seen[l.SoilName]; ok {
			continue
		}
		seen[l.SoilName] = struct{}{}

		sp, known := dike.LookupSoil(l.SoilName)
		if !known {
			sp = dike.DefaultSoilParameters()
			log = append(log, fmt.Sprintf("unknown soil code %q, using defaults", l.SoilName))
		}
		kh, kv := sp.KHor, sp.KVer
		switch {
		case dike.Pleistocene(l.SoilName):
			kh = p.KPleistocene
			kv = kh / p.AnisotropyFactor
		case dike.SandLike(l.SoilName):
			kh = p.SandPermeability(dijkpaal)
			kv = kh / p.AnisotropyFactor
		}
		soils = append(soils, Soil{Name: l.SoilName, KHor: kh, KVer: kv, Color: sp.Color})
	}
	return soils, log
}

func buildGeometry(cs *dike.CrossSection, profile *dike.SoilProfile, left, right float64, p BuildParams) Geometry {
	g := Geometry{}
	for _, l := range profile.Layers {
		g.Layers = append(g.Layers, LayerGeometry{
			SoilName: l.SoilName,
			Left:     left,
			Right:    right,
			Top:      l.Top,
			Bottom:   l.Bottom,
		})
	}
	if p.UseSurfaceBoundary {
		for _, pt := range cs.Points {
			if pt.X < left || pt.X > right {
				continue
			}
			g.Surface = append(g.Surface, XZ{X: pt.X, Z: pt.Z})
		}
	}
	return g
}

func buildBoundaries(sc *dike.Scenario, cs *dike.CrossSection, profile *dike.SoilProfile,
	left, right, riverHead float64, p BuildParams, logf func(string, ...any)) []HeadBoundary {

	var boundaries []HeadBoundary

	// river boundary on the left edge, segmented at the layer lines of
	// the profile cut at the surface level there
	leftZ, ok := cs.SurfaceAt(left)
	if !ok {
		leftZ = cs.Points[0].Z
	}
	cut := profile.Clone()
	cut.CutTopAt(leftZ)
	var riverPts []XZ
	for _, z := range cut.ZCoordinates() {
		riverPts = append(riverPts, XZ{X: left, Z: z})
	}
	if len(riverPts) < 2 {
		bottom, _ := profile.Bottom()
		riverPts = []XZ{{X: left, Z: bottom}, {X: left, Z: leftZ}}
	}
	boundaries = append(boundaries, HeadBoundary{Label: "river", Points: riverPts, Head: riverHead})

	// right edge
	rightZ, ok := cs.SurfaceAt(right)
	if !ok {
		rightZ = cs.Points[len(cs.Points)-1].Z
	}
	bottom, _ := profile.Bottom()
	boundaries = append(boundaries, HeadBoundary{
		Label:  "right",
		Points: []XZ{{X: right, Z: bottom}, {X: right, Z: rightZ}},
		Head:   riverHead - p.RightBoundaryOffset,
	})

	ditchC, okC := cs.PointByType(dike.Sloot1C)
	ditchD, okD := cs.PointByType(dike.Sloot1D)
	if okC && okD {
		boundaries = append(boundaries, HeadBoundary{
			Label:  "ditch",
			Points: []XZ{{X: ditchC.X, Z: ditchC.Z}, {X: ditchD.X, Z: ditchD.Z}},
			Head:   sc.DitchLevel,
		})

		x0 := ditchC.X + p.DitchBoundaryOffset
		x1 := x0 + p.PolderBoundaryWidth
		z0, ok0 := cs.SurfaceAt(x0)
		z1, ok1 := cs.SurfaceAt(x1)
		if ok0 && ok1 {
			boundaries = append(boundaries, HeadBoundary{
				Label:  "polder",
				Points: []XZ{{X: x0, Z: z0}, {X: x1, Z: z1}},
				Head:   sc.MaxPolderLevel,
			})
		} else {
			logf("polder strip [%.2f, %.2f] outside surface line, skipped", x0, x1)
		}
	} else {
		logf("no ditch points on cross-section, ditch and polder boundaries skipped")
	}
	return boundaries
}
