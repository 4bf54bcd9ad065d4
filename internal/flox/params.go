package flox

import "github.com/dikeworks/floxrun/internal/dike"

// BuildParams are the model construction parameters. The zero value is
// not usable; start from DefaultBuildParams and override from settings.
type BuildParams struct {
	SeaLevelRise        float64  `yaml:"sea_level_rise"`
	KTidalSand          float64  `yaml:"k_tidal_sand"`
	KPleistocene        float64  `yaml:"k_pleistocene"`
	AnisotropyFactor    float64  `yaml:"anisotropy_factor"`
	UseSurfaceBoundary  bool     `yaml:"use_surface_boundary"`
	PolderBoundaryWidth float64  `yaml:"polder_boundary_width"`
	DitchBoundaryOffset float64  `yaml:"ditch_boundary_offset"`
	RightBoundaryOffset float64  `yaml:"right_boundary_offset"`
	LimitLeft           float64  `yaml:"limit_left"`
	LimitRight          float64  `yaml:"limit_right"`
	BottomOffset        float64  `yaml:"bottom_offset"`
	MinMeshSize         float64  `yaml:"min_mesh_size"`
	PipeMeshSize        float64  `yaml:"pipe_mesh_size"`
	D70                 float64  `yaml:"d70"`
	DitchExtent         float64  `yaml:"ditch_extent"`
	TidalSandRanges     [][2]int `yaml:"tidal_sand_ranges"`
}

// DefaultBuildParams returns the regional defaults.
func DefaultBuildParams() BuildParams {
	return BuildParams{
		SeaLevelRise:        0.5,
		KTidalSand:          6,
		KPleistocene:        13,
		AnisotropyFactor:    2,
		UseSurfaceBoundary:  true,
		PolderBoundaryWidth: 1.0,
		DitchBoundaryOffset: 1.0,
		RightBoundaryOffset: 3.0,
		LimitLeft:           -50,
		LimitRight:          100,
		BottomOffset:        dike.BottomOffset,
		MinMeshSize:         2,
		PipeMeshSize:        0.5,
		D70:                 100,
		DitchExtent:         40,
		TidalSandRanges:     [][2]int{{292, 484}, {512, 519}},
	}
}

// InTidalRange reports whether the dijkpaal lies in a tidal sand range.
func (p BuildParams) InTidalRange(dijkpaal int) bool {
	for _, r := range p.TidalSandRanges {
		if dijkpaal >= r[0] && dijkpaal <= r[1] {
			return true
		}
	}
	return false
}

// SandPermeability returns k_zand for the dijkpaal: tidal sand inside a
// tidal range, pleistocene sand outside.
func (p BuildParams) SandPermeability(dijkpaal int) float64 {
	if p.InTidalRange(dijkpaal) {
		return p.KTidalSand
	}
	return p.KPleistocene
}
