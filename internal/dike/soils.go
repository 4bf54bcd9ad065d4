package dike

import "strings"

// SoilParameters holds the permeabilities (m/day) and plot color for a
// soil code from the regional parameter register.
type SoilParameters struct {
	KHor  float64
	KVer  float64
	Color string
}

// DefaultSoilColor is used for codes missing from the register.
const DefaultSoilColor = "#b5aeae"

// soilParameters is the regional soil parameter register. Codes can be
// overridden with the sand permeability, see SandLike.
var soilParameters = map[string]SoilParameters{
	"AA":   {KHor: 5, KVer: 5, Color: "#b5aeae"},
	"AV":   {KHor: 1e-3, KVer: 1e-3, Color: "#b5aeae"},
	"BV":   {KHor: 1e-3, KVer: 1e-3, Color: "#996d22"},
	"CK":   {KHor: 1e-3, KVer: 1e-3, Color: "#a2e69c"},
	"CK14": {KHor: 1e-3, KVer: 1e-3, Color: "#a2e69c"},
	"CK16": {KHor: 1e-3, KVer: 1e-3, Color: "#38ab6c"},
	"CK18": {KHor: 1e-3, KVer: 1e-3, Color: "#1df00a"},
	"CZ":   {KHor: 1e-2, KVer: 1e-2, Color: "#b5aeae"},
	"DK":   {KHor: 1e-3, KVer: 1e-3, Color: "#73c99a"},
	"DK14": {KHor: 1e-3, KVer: 1e-3, Color: "#73c99a"},
	"DK16": {KHor: 1e-3, KVer: 1e-3, Color: "#098742"},
	"DK18": {KHor: 1e-3, KVer: 1e-3, Color: "#b5aeae"},
	"DZ":   {KHor: 5, KVer: 5, Color: "#07e86c"},
	"HV":   {KHor: 1e-3, KVer: 1e-3, Color: "#c29904"},
	"Kla":  {KHor: 1e-2, KVer: 1e-2, Color: "#1b6936"},
	"PL":   {KHor: 2, KVer: 2, Color: "#eaff00"},
	"PLa":  {KHor: 2, KVer: 2, Color: "#eaff00"},
	"ZA":   {KHor: 2, KVer: 2, Color: "#d8e35f"},
	"ZAa":  {KHor: 2, KVer: 2, Color: "#d8e35f"},
}

// sandLikeCodes get the sand permeability instead of the register values.
var sandLikeCodes = map[string]struct{}{
	"AA":  {},
	"DZ":  {},
	"PL":  {},
	"PLa": {},
	"ZA":  {},
	"ZAa": {},
	"CZ":  {},
}

// BaseSoilCode strips the variant suffix from a layer name: "DK_v1" → "DK".
func BaseSoilCode(name string) string {
	if i := strings.Index(name, "_"); i >= 0 {
		return name[:i]
	}
	return name
}

// LookupSoil returns the register parameters for a layer name. The second
// return value is false for unknown codes; the caller decides whether to
// warn and fall back to DefaultSoilParameters.
func LookupSoil(name string) (SoilParameters, bool) {
	p, ok := soilParameters[BaseSoilCode(name)]
	return p, ok
}

// DefaultSoilParameters is the fallback for unknown codes: low
// permeability, grey.
func DefaultSoilParameters() SoilParameters {
	return SoilParameters{KHor: 1e-3, KVer: 1e-3, Color: DefaultSoilColor}
}

// SandLike reports whether a layer name carries a code that takes the
// sand permeability override.
func SandLike(name string) bool {
	_, ok := sandLikeCodes[BaseSoilCode(name)]
	return ok
}

// Pleistocene reports whether the code is a pleistocene sand, which
// always takes the pleistocene permeability regardless of dijkpaal.
func Pleistocene(name string) bool {
	code := BaseSoilCode(name)
	return code == "PL" || code == "PLa"
}

// SoilCodes returns all codes in the register.
func SoilCodes() []string {
	codes := make([]string, 0, len(soilParameters))
	for c := range soilParameters {
		codes = append(codes, c)
	}
	return codes
}
