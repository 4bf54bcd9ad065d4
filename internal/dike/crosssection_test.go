package dike

import (
	"math"
	"testing"
)

// surveyed inner-to-outer: MV_bin first, MV_bui last, x ascending
func testSection(t *testing.T) *CrossSection {
	t.Helper()
	cs, err := NewCrossSection([]Point{
		{X: -40, Z: -1, Type: MVBinnen},
		{X: -20, Z: -1.5, Type: Sloot1B},
		{X: -18, Z: -2.5, Type: Sloot1D},
		{X: -16, Z: -2.5, Type: Sloot1C},
		{X: -14, Z: -1.5, Type: Sloot1A},
		{X: -10, Z: 0, Type: Teen1},
		{X: -4, Z: 4, Type: Kruin1},
		{X: 0, Z: 4, Type: Kruin2},
		{X: 6, Z: 0.5, Type: Teen2},
		{X: 30, Z: 0.2, Type: MVBuiten},
	})
	if err != nil {
		t.Fatal(err)
	}
	return cs
}

func TestNewCrossSectionTooFewPoints(t *testing.T) {
	if _, err := NewCrossSection([]Point{{X: 0, Z: 0}}); err == nil {
		t.Fatal("expected error for single point")
	}
}

func TestCrossSectionMirror(t *testing.T) {
	cs := testSection(t)
	cs.Mirror()

	if cs.Points[0].Type != MVBuiten || cs.Points[0].X != -30 {
		t.Fatalf("unexpected first point %+v", cs.Points[0])
	}
	last := cs.Points[len(cs.Points)-1]
	if last.Type != MVBinnen || last.X != 40 {
		t.Fatalf("unexpected last point %+v", last)
	}
	for i := 1; i < len(cs.Points); i++ {
		if cs.Points[i].X < cs.Points[i-1].X {
			t.Fatalf("points not ascending after mirror: %v", cs.Points)
		}
	}
}

func TestCrossSectionExtents(t *testing.T) {
	cs := testSection(t)
	if cs.Left() != -40 || cs.Right() != 30 {
		t.Fatalf("extents = [%v, %v]", cs.Left(), cs.Right())
	}
	if cs.Width() != 70 {
		t.Fatalf("Width() = %v", cs.Width())
	}
	if cs.Top() != 4 || cs.Bottom() != -2.5 {
		t.Fatalf("vertical extents = [%v, %v]", cs.Bottom(), cs.Top())
	}
}

func TestCrossSectionLimitLeftInterpolates(t *testing.T) {
	cs := testSection(t)
	cs.Mirror()
	// mirrored MV_bui sits at x=-30, Teen_2 at x=-6
	cs.LimitLeft(-18)

	first := cs.Points[0]
	if first.X != -18 {
		t.Fatalf("left endpoint at x=%v, want -18", first.X)
	}
	if first.Type != MVBuiten {
		t.Fatalf("left endpoint retyped to %v, want MV_bui", first.Type)
	}
	// linear between (-30, 0.2) and (-6, 0.5)
	want := 0.2 + (-18.0 - -30.0)/(-6.0 - -30.0)*(0.5-0.2)
	if math.Abs(first.Z-want) > 1e-9 {
		t.Fatalf("interpolated z = %v, want %v", first.Z, want)
	}
}

func TestCrossSectionLimitRightInterpolates(t *testing.T) {
	cs := testSection(t)
	cs.Mirror()
	// mirrored Sloot_1b sits at x=20, MV_bin at x=40
	cs.LimitRight(30)

	last := cs.Points[len(cs.Points)-1]
	if last.X != 30 {
		t.Fatalf("right endpoint at x=%v, want 30", last.X)
	}
	if last.Type != MVBinnen {
		t.Fatalf("right endpoint retyped to %v, want MV_bin", last.Type)
	}
	want := -1.5 + (30.0-20.0)/(40.0-20.0)*(-1.0 - -1.5)
	if math.Abs(last.Z-want) > 1e-9 {
		t.Fatalf("interpolated z = %v, want %v", last.Z, want)
	}
}

func TestCrossSectionLimitsOutsideProfile(t *testing.T) {
	cs := testSection(t)
	cs.Mirror()
	n := len(cs.Points)
	cs.LimitLeft(-100)
	cs.LimitRight(100)
	if len(cs.Points) != n {
		t.Fatalf("limits outside profile changed the point count: %d -> %d", n, len(cs.Points))
	}
}

func TestCrossSectionPointByType(t *testing.T) {
	cs := testSection(t)
	p, ok := cs.PointByType(Sloot1C)
	if !ok || p.X != -16 {
		t.Fatalf("PointByType(Sloot1C) = %+v, %v", p, ok)
	}
	if _, ok := cs.PointByType(Weg1); ok {
		t.Fatal("found a point type that is not on the profile")
	}
}

func TestCrossSectionSurfaceAt(t *testing.T) {
	cs := testSection(t)
	cs.Mirror()

	// between mirrored Kruin_2 (0, 4) and Kruin_1 (4, 4)
	z, ok := cs.SurfaceAt(2)
	if !ok {
		t.Fatal("x=2 should be inside the profile")
	}
	if math.Abs(z-4) > 1e-9 {
		t.Fatalf("SurfaceAt(2) = %v, want 4", z)
	}

	if _, ok := cs.SurfaceAt(1000); ok {
		t.Fatal("x outside the profile must report false")
	}
}
