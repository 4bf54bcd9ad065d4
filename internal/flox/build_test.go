package flox

import (
	"math"
	"strings"
	"testing"

	"github.com/dikeworks/floxrun/internal/dike"
)

func testScenario(t *testing.T) *dike.Scenario {
	t.Helper()
	cs, err := dike.NewCrossSection([]dike.Point{
		{X: -30, Z: 0.2, Type: dike.MVBuiten},
		{X: -6, Z: 0.5, Type: dike.Teen2},
		{X: 0, Z: 4, Type: dike.Kruin2},
		{X: 4, Z: 4, Type: dike.Kruin1},
		{X: 10, Z: 0, Type: dike.Teen1},
		{X: 14, Z: -1.5, Type: dike.Sloot1A},
		{X: 16, Z: -2.5, Type: dike.Sloot1C},
		{X: 18, Z: -2.5, Type: dike.Sloot1D},
		{X: 20, Z: -1.5, Type: dike.Sloot1B},
		{X: 40, Z: -1, Type: dike.MVBinnen},
	})
	if err != nil {
		t.Fatal(err)
	}
	return &dike.Scenario{
		Name:     "DP0375_sloot1",
		Dijkpaal: 375,
		CrossSection: cs,
		SoilProfile: &dike.SoilProfile{ID: 12, Layers: []dike.SoilLayer{
			{SoilName: "DK", Top: 2, Bottom: 0},
			{SoilName: "HV", Top: 0, Bottom: -5},
			{SoilName: "ZA", Top: -5, Bottom: -12, IsAquifer: 1, AquiferNumber: 1},
		}},
		ExitPointX:     17,
		DitchLevel:     -2.0,
		MaxPolderLevel: -1.2,
		NormWaterLevel: 3.1,
	}
}

func TestBuildModel(t *testing.T) {
	sc := testScenario(t)
	p := DefaultBuildParams()

	m, log, err := Build(sc, p)
	if err != nil {
		t.Fatalf("Build: %v (log %v)", err, log)
	}

	if m.ProjectInfo.Name != sc.Name {
		t.Fatalf("project name = %q", m.ProjectInfo.Name)
	}
	if len(m.Soils) != 3 {
		t.Fatalf("got %d soils, want 3", len(m.Soils))
	}

	// ZA is tidal sand at dijkpaal 375
	var za *Soil
	for i := range m.Soils {
		if m.Soils[i].Name == "ZA" {
			za = &m.Soils[i]
		}
	}
	if za == nil {
		t.Fatal("no ZA soil")
	}
	if za.KHor != p.KTidalSand {
		t.Fatalf("ZA k_hor = %v, want k_tidal_sand %v", za.KHor, p.KTidalSand)
	}
	if za.KVer != p.KTidalSand/p.AnisotropyFactor {
		t.Fatalf("ZA k_ver = %v", za.KVer)
	}

	// geometry extends to Sloot_1a.x + ditch_extent
	wantRight := 14 + p.DitchExtent
	for _, l := range m.Geometry.Layers {
		if l.Right != wantRight {
			t.Fatalf("layer right = %v, want %v", l.Right, wantRight)
		}
	}

	// pipe runs along the aquifer top to the exit point
	pipe := m.Scenario.Pipe
	if pipe.Start.X != -30 || pipe.Start.Z != -5 || pipe.End.X != 17 {
		t.Fatalf("pipe = %+v", pipe)
	}

	heads := map[string]float64{}
	for _, b := range m.Scenario.Boundaries {
		heads[b.Label] = b.Head
	}
	if heads["river"] != sc.NormWaterLevel+p.SeaLevelRise {
		t.Fatalf("river head = %v", heads["river"])
	}
	if heads["right"] != heads["river"]-p.RightBoundaryOffset {
		t.Fatalf("right head = %v", heads["right"])
	}
	if heads["ditch"] != sc.DitchLevel {
		t.Fatalf("ditch head = %v", heads["ditch"])
	}
	if heads["polder"] != sc.MaxPolderLevel {
		t.Fatalf("polder head = %v", heads["polder"])
	}
}

func TestBuildPleistoceneOutsideTidalRange(t *testing.T) {
	sc := testScenario(t)
	sc.Dijkpaal = 500 // outside both tidal ranges
	sc.SoilProfile.Layers[2].SoilName = "PL"
	p := DefaultBuildParams()

	m, _, err := Build(sc, p)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range m.Soils {
		if s.Name == "PL" && s.KHor != p.KPleistocene {
			t.Fatalf("PL k_hor = %v, want %v", s.KHor, p.KPleistocene)
		}
	}
}

func TestBuildPleistoceneIgnoresTidalRange(t *testing.T) {
	sc := testScenario(t)
	sc.SoilProfile.Layers[2].SoilName = "PL" // dijkpaal 375 is tidal
	p := DefaultBuildParams()

	m, _, err := Build(sc, p)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range m.Soils {
		if s.Name == "PL" && s.KHor != p.KPleistocene {
			t.Fatalf("PL must always take k_pleistocene, got %v", s.KHor)
		}
	}
}

func TestBuildUnknownSoilWarns(t *testing.T) {
	sc := testScenario(t)
	sc.SoilProfile.Layers[0].SoilName = "QQ"

	m, log, err := Build(sc, DefaultBuildParams())
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, line := range log {
		if strings.Contains(line, "unknown soil code") {
			found = true
		}
	}
	if !found {
		t.Fatalf("no warning in build log: %v", log)
	}
	for _, s := range m.Soils {
		if s.Name == "QQ" && s.Color != dike.DefaultSoilColor {
			t.Fatalf("unknown soil color = %q", s.Color)
		}
	}
}

func TestBuildNoAquifer(t *testing.T) {
	sc := testScenario(t)
	sc.SoilProfile.Layers[2].IsAquifer = 0
	sc.SoilProfile.Layers[2].AquiferNumber = 0

	if _, _, err := Build(sc, DefaultBuildParams()); err == nil {
		t.Fatal("expected error for profile without aquifer")
	}
}

func TestBuildEmptyProfile(t *testing.T) {
	sc := testScenario(t)
	sc.SoilProfile = &dike.SoilProfile{ID: 1}

	if _, _, err := Build(sc, DefaultBuildParams()); err == nil {
		t.Fatal("expected error for empty profile")
	}
}

func TestBuildExitPointOutsideGeometry(t *testing.T) {
	sc := testScenario(t)
	sc.ExitPointX = 500

	if _, _, err := Build(sc, DefaultBuildParams()); err == nil {
		t.Fatal("expected error for exit point outside geometry")
	}
}

func TestInTidalRange(t *testing.T) {
	p := DefaultBuildParams()
	for _, dp := range []int{292, 375, 484, 512, 519} {
		if !p.InTidalRange(dp) {
			t.Fatalf("dijkpaal %d should be tidal", dp)
		}
	}
	for _, dp := range []int{291, 485, 511, 520, 0} {
		if p.InTidalRange(dp) {
			t.Fatalf("dijkpaal %d should not be tidal", dp)
		}
	}
	if math.Abs(p.SandPermeability(375)-p.KTidalSand) > 1e-9 {
		t.Fatal("tidal dijkpaal must take k_tidal_sand")
	}
	if math.Abs(p.SandPermeability(600)-p.KPleistocene) > 1e-9 {
		t.Fatal("non-tidal dijkpaal must take k_pleistocene")
	}
}
