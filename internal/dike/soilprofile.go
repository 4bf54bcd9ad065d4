package dike

import (
	"fmt"
	"sort"
)

// BottomOffset is used when a soil layer has no recorded bottom: the
// layer bottom becomes its top minus this offset (m).
const BottomOffset = 10.0

// SoilLayer is a single stratigraphic layer, top and bottom in m NAP.
// A layer is the piping-relevant aquifer when IsAquifer equals
// AquiferNumber and the number is positive.
type SoilLayer struct {
	SoilName      string  `json:"soil_name"`
	Top           float64 `json:"top"`
	Bottom        float64 `json:"bottom"`
	IsAquifer     int     `json:"is_aquifer"`
	AquiferNumber int     `json:"aquifer_number"`
}

// Height returns the layer thickness.
func (l SoilLayer) Height() float64 { return l.Top - l.Bottom }

// SoilProfile is an ordered stack of layers, top layer first.
type SoilProfile struct {
	ID     int64       `json:"id"`
	Layers []SoilLayer `json:"layers"`
}

// Top returns the level of the highest layer.
func (p *SoilProfile) Top() (float64, error) {
	if len(p.Layers) == 0 {
		return 0, fmt.Errorf("soil profile %d has no layers", p.ID)
	}
	return p.Layers[0].Top, nil
}

// Bottom returns the level of the deepest layer.
func (p *SoilProfile) Bottom() (float64, error) {
	if len(p.Layers) == 0 {
		return 0, fmt.Errorf("soil profile %d has no layers", p.ID)
	}
	return p.Layers[len(p.Layers)-1].Bottom, nil
}

// Aquifer returns the layer where the pipe may develop, or nil when the
// profile has none.
func (p *SoilProfile) Aquifer() *SoilLayer {
	for i := range p.Layers {
		l := &p.Layers[i]
		if l.AquiferNumber > 0 && l.IsAquifer == l.AquiferNumber {
			return l
		}
	}
	return nil
}

// ZCoordinates returns all distinct layer boundary levels, ascending.
func (p *SoilProfile) ZCoordinates() []float64 {
	seen := make(map[float64]struct{}, len(p.Layers)*2)
	for _, l := range p.Layers {
		seen[l.Top] = struct{}{}
		seen[l.Bottom] = struct{}{}
	}
	zs := make([]float64, 0, len(seen))
	for z := range seen {
		zs = append(zs, z)
	}
	sort.Float64s(zs)
	return zs
}

// CutTopAt removes everything above z. A cut exactly on a layer boundary
// removes the layer above it; a cut inside a layer trims its top. Cutting
// above the profile is a no-op; cutting below the bottom empties it.
func (p *SoilProfile) CutTopAt(z float64) {
	var layers []SoilLayer
	for _, l := range p.Layers {
		switch {
		case l.Bottom >= z:
			continue
		case l.Top > z:
			l.Top = z
			layers = append(layers, l)
		default:
			layers = append(layers, l)
		}
	}
	p.Layers = layers
}

// Clone returns a deep copy of the profile.
func (p *SoilProfile) Clone() *SoilProfile {
	cp := &SoilProfile{ID: p.ID, Layers: make([]SoilLayer, len(p.Layers))}
	copy(cp.Layers, p.Layers)
	return cp
}
