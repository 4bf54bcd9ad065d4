package dike

import "fmt"

// CrossSection holds the surface line of a dike profile as an ordered
// list of points, leftmost first.
type CrossSection struct {
	Points []Point `json:"points"`
}

// NewCrossSection builds a cross-section from points. At least two points
// are required to form a surface line.
func NewCrossSection(points []Point) (*CrossSection, error) {
	if len(points) < 2 {
		return nil, fmt.Errorf("cross-section needs at least 2 points, got %d", len(points))
	}
	cs := &CrossSection{Points: make([]Point, len(points))}
	copy(cs.Points, points)
	return cs, nil
}

// Left returns the smallest x on the profile.
func (cs *CrossSection) Left() float64 {
	x := cs.Points[0].X
	for _, p := range cs.Points[1:] {
		if p.X < x {
			x = p.X
		}
	}
	return x
}

// Right returns the largest x on the profile.
func (cs *CrossSection) Right() float64 {
	x := cs.Points[0].X
	for _, p := range cs.Points[1:] {
		if p.X > x {
			x = p.X
		}
	}
	return x
}

// Width returns the horizontal extent of the profile.
func (cs *CrossSection) Width() float64 { return cs.Right() - cs.Left() }

// Top returns the highest z on the profile.
func (cs *CrossSection) Top() float64 {
	z := cs.Points[0].Z
	for _, p := range cs.Points[1:] {
		if p.Z > z {
			z = p.Z
		}
	}
	return z
}

// Bottom returns the lowest z on the profile.
func (cs *CrossSection) Bottom() float64 {
	z := cs.Points[0].Z
	for _, p := range cs.Points[1:] {
		if p.Z < z {
			z = p.Z
		}
	}
	return z
}

// Mirror flips the profile around x=0 and reverses point order, so a
// profile surveyed inner-to-outer reads left-to-right afterwards.
func (cs *CrossSection) Mirror() {
	mirrored := make([]Point, len(cs.Points))
	for i, p := range cs.Points {
		mirrored[len(cs.Points)-1-i] = Point{X: -p.X, Z: p.Z, Type: p.Type}
	}
	cs.Points = mirrored
}

// LimitLeft clips the profile at the given x on the left side, inserting
// an interpolated point at the crossing. The new left endpoint is retyped
// MVBuiten so downstream lookups keep working after the clip.
func (cs *CrossSection) LimitLeft(left float64) {
	var points []Point
	for i := 1; i < len(cs.Points); i++ {
		p1 := cs.Points[i-1]
		p2 := cs.Points[i]
		switch {
		case p2.X < left:
			continue
		case p1.X < left && p2.X > left:
			z := p1.Z + (left-p1.X)/(p2.X-p1.X)*(p2.Z-p1.Z)
			points = append(points, Point{X: left, Z: z, Type: MVBuiten})
			points = append(points, p2)
		default:
			if i == 1 {
				points = append(points, p1)
			}
			points = append(points, p2)
		}
	}
	if len(points) == 0 {
		return
	}
	// in case a point sits exactly on the limit
	points[0].Type = MVBuiten
	cs.Points = points
}

// LimitRight clips the profile at the given x on the right side, inserting
// an interpolated point at the crossing. The new right endpoint is retyped
// MVBinnen.
func (cs *CrossSection) LimitRight(right float64) {
	var points []Point
	for i := 1; i < len(cs.Points); i++ {
		p1 := cs.Points[i-1]
		p2 := cs.Points[i]
		if p1.X < right && p2.X > right {
			z := p1.Z + (right-p1.X)/(p2.X-p1.X)*(p2.Z-p1.Z)
			if i == 1 {
				points = append(points, p1)
			}
			points = append(points, Point{X: right, Z: z, Type: MVBinnen})
			break
		}
		if i == 1 {
			points = append(points, p1)
		}
		points = append(points, p2)
	}
	if len(points) == 0 {
		return
	}
	// in case a point sits exactly on the limit
	points[len(points)-1].Type = MVBinnen
	cs.Points = points
}

// PointByType returns the first point of the given type.
func (cs *CrossSection) PointByType(t PointType) (Point, bool) {
	for _, p := range cs.Points {
		if p.Type == t {
			return p, true
		}
	}
	return Point{}, false
}

// SurfaceAt returns the interpolated surface level at x. The second
// return value is false when x lies outside the profile.
func (cs *CrossSection) SurfaceAt(x float64) (float64, bool) {
	for i := 1; i < len(cs.Points); i++ {
		p1 := cs.Points[i-1]
		p2 := cs.Points[i]
		if x < p1.X || x > p2.X {
			continue
		}
		if p2.X == p1.X {
			return p1.Z, true
		}
		return p1.Z + (x-p1.X)/(p2.X-p1.X)*(p2.Z-p1.Z), true
	}
	return 0, false
}
