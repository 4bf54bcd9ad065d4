// Package flox builds and serializes engine input models. A .flox file
// is a zip archive of JSON members: projectinfo.json, soils.json,
// geometry.json and scenario.json. The calculation console adds
// results.json to the archive when it finishes.
package flox

// ProjectInfo identifies the model to the console.
type ProjectInfo struct {
	Name        string `json:"name"`
	Application string `json:"application"`
	Created     string `json:"created"`
}

// Soil is one material definition, permeabilities in m/day.
type Soil struct {
	Name  string  `json:"name"`
	KHor  float64 `json:"k_hor"`
	KVer  float64 `json:"k_ver"`
	Color string  `json:"color"`
}

// XZ is a 2D point, x in m, z in m NAP.
type XZ struct {
	X float64 `json:"x"`
	Z float64 `json:"z"`
}

// LayerGeometry is the rectangular extent of one soil layer.
type LayerGeometry struct {
	SoilName string  `json:"soil_name"`
	Left     float64 `json:"left"`
	Right    float64 `json:"right"`
	Top      float64 `json:"top"`
	Bottom   float64 `json:"bottom"`
}

// Geometry holds the layered subsoil and the surface polyline.
type Geometry struct {
	Layers  []LayerGeometry `json:"layers"`
	Surface []XZ            `json:"surface,omitempty"`
}

// HeadBoundary fixes the hydraulic head along a polyline.
type HeadBoundary struct {
	Label  string  `json:"label"`
	Points []XZ    `json:"points"`
	Head   float64 `json:"head"`
}

// Pipe configures the erosion pipe along the aquifer top.
type Pipe struct {
	Start    XZ      `json:"start"`
	End      XZ      `json:"end"`
	D70      float64 `json:"d70"`
	MeshSize float64 `json:"mesh_size"`
}

// ScenarioConfig carries the boundary conditions and mesh settings.
type ScenarioConfig struct {
	Boundaries  []HeadBoundary `json:"boundaries"`
	Pipe        Pipe           `json:"pipe"`
	MinMeshSize float64        `json:"min_mesh_size"`
}

// Results is the member the console writes after a calculation.
type Results struct {
	PipeLength float64 `json:"pipe_length"`
}

// Model is the full engine input.
type Model struct {
	ProjectInfo ProjectInfo
	Soils       []Soil
	Geometry    Geometry
	Scenario    ScenarioConfig
}
