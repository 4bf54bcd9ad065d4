package dike

import (
	"math"
	"testing"
)

func testProfile() *SoilProfile {
	return &SoilProfile{ID: 7, Layers: []SoilLayer{
		{SoilName: "DK", Top: 2, Bottom: 0},
		{SoilName: "HV", Top: 0, Bottom: -5},
		{SoilName: "PL", Top: -5, Bottom: -10, IsAquifer: 1, AquiferNumber: 1},
	}}
}

func TestSoilProfileTopBottom(t *testing.T) {
	p := testProfile()
	top, err := p.Top()
	if err != nil || top != 2 {
		t.Fatalf("Top() = %v, %v", top, err)
	}
	bot, err := p.Bottom()
	if err != nil || bot != -10 {
		t.Fatalf("Bottom() = %v, %v", bot, err)
	}

	empty := &SoilProfile{ID: 1}
	if _, err := empty.Top(); err == nil {
		t.Fatal("expected error for empty profile")
	}
}

func TestSoilProfileZCoordinates(t *testing.T) {
	zs := testProfile().ZCoordinates()
	want := []float64{-10, -5, 0, 2}
	if len(zs) != len(want) {
		t.Fatalf("ZCoordinates() = %v, want %v", zs, want)
	}
	for i := range want {
		if zs[i] != want[i] {
			t.Fatalf("ZCoordinates() = %v, want %v", zs, want)
		}
	}
}

func TestSoilProfileCutTopAtBoundary(t *testing.T) {
	p := testProfile()
	p.CutTopAt(0.0)
	if len(p.Layers) != 2 {
		t.Fatalf("got %d layers, want 2", len(p.Layers))
	}
	if p.Layers[0].SoilName != "HV" || p.Layers[0].Top != 0 {
		t.Fatalf("unexpected top layer %+v", p.Layers[0])
	}
}

func TestSoilProfileCutTopAtInsideLayer(t *testing.T) {
	p := testProfile()
	p.CutTopAt(-1.0)
	if len(p.Layers) != 2 {
		t.Fatalf("got %d layers, want 2", len(p.Layers))
	}
	if p.Layers[0].SoilName != "HV" || p.Layers[0].Top != -1.0 {
		t.Fatalf("unexpected top layer %+v", p.Layers[0])
	}
	if p.Layers[0].Bottom != -5 {
		t.Fatalf("trim must not touch layer bottom, got %+v", p.Layers[0])
	}
}

func TestSoilProfileCutTopAboveProfile(t *testing.T) {
	p := testProfile()
	p.CutTopAt(5.0)
	if len(p.Layers) != 3 {
		t.Fatalf("cut above profile must be a no-op, got %d layers", len(p.Layers))
	}
}

func TestSoilProfileCutTopBelowProfile(t *testing.T) {
	p := testProfile()
	p.CutTopAt(-15.0)
	if len(p.Layers) != 0 {
		t.Fatalf("cut below profile must empty it, got %d layers", len(p.Layers))
	}
}

func TestSoilProfileAquifer(t *testing.T) {
	p := testProfile()
	aq := p.Aquifer()
	if aq == nil || aq.SoilName != "PL" {
		t.Fatalf("Aquifer() = %+v", aq)
	}

	// mismatched aquifer numbering does not count
	p.Layers[2].IsAquifer = 2
	if p.Aquifer() != nil {
		t.Fatal("mismatched aquifer number must not match")
	}

	// zero on both sides does not count either
	p.Layers[2].IsAquifer = 0
	p.Layers[2].AquiferNumber = 0
	if p.Aquifer() != nil {
		t.Fatal("zero aquifer number must not match")
	}
}

func TestSoilProfileClone(t *testing.T) {
	p := testProfile()
	cp := p.Clone()
	cp.CutTopAt(-1.0)
	if len(p.Layers) != 3 {
		t.Fatal("mutating a clone changed the original")
	}
}

func TestSoilLayerHeight(t *testing.T) {
	l := SoilLayer{Top: 2, Bottom: -3}
	if math.Abs(l.Height()-5) > 1e-9 {
		t.Fatalf("Height() = %v, want 5", l.Height())
	}
}
