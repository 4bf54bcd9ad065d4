package dike

// Scenario is one location record from the dataset: a cross-section with
// its stratigraphy and the water levels needed for a piping calculation.
// All levels are in m NAP.
type Scenario struct {
	Name     string
	Dijkpaal int

	CrossSection *CrossSection
	SoilProfile  *SoilProfile

	// ExitPointX is where the pipe is expected to surface (uittredepunt),
	// in the mirrored coordinate frame of the cross-section.
	ExitPointX float64

	DitchNumber     string
	MaxPolderLevel  float64 // max_zp_wp
	DitchLevelUpper float64 // bovengrens_slootpeil
	DitchLevelLower float64 // ondergrens_slootpeil
	DitchLevel      float64 // slootpeil
	NormWaterLevel  float64 // waterstand_bij_norm
}

// HasDitch reports whether the cross-section carries ditch points.
func (s *Scenario) HasDitch() bool {
	_, ok := s.CrossSection.PointByType(Sloot1A)
	return ok
}
