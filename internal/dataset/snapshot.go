// Package dataset loads scenario snapshots exported from the data
// warehouse, validates them and converts the records into calculation
// scenarios.
package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Location is one warehouse record. Field names follow the export
// columns; levels in m NAP.
type Location struct {
	Name                string                `json:"name"`
	Dijkpaal            int                   `json:"dijkpaal"`
	Ondergrond          int64                 `json:"ondergrond"`
	Uittredepunt        float64               `json:"uittredepunt"`
	Slootnummer         string                `json:"slootnummer"`
	MaxZpWp             float64               `json:"max_zp_wp"`
	BovengrensSlootpeil float64               `json:"bovengrens_slootpeil"`
	OndergrensSlootpeil float64               `json:"ondergrens_slootpeil"`
	Slootpeil           float64               `json:"slootpeil"`
	WaterstandBijNorm   float64               `json:"waterstand_bij_norm"`
	Points              map[string][2]float64 `json:"points"`
}

// SoilLayer mirrors the warehouse layer record. Bottom is optional in
// the export; a missing bottom resolves to top minus the bottom offset
// at conversion time.
type SoilLayer struct {
	SoilName      string   `json:"soil_name"`
	Top           float64  `json:"top"`
	Bottom        *float64 `json:"bottom"`
	IsAquifer     int      `json:"is_aquifer"`
	AquiferNumber int      `json:"aquifer_number"`
}

// SoilProfile is a stored stratigraphy, referenced by locations via the
// ondergrond id.
type SoilProfile struct {
	ID     int64       `json:"id"`
	Layers []SoilLayer `json:"layers"`
}

// Snapshot is a full dataset: locations plus the soil profiles they
// reference.
type Snapshot struct {
	Locations    []Location    `json:"locations"`
	SoilProfiles []SoilProfile `json:"soil_profiles"`

	// Sources lists the files this snapshot was loaded from.
	Sources []string `json:"-"`
}

// Load reads a snapshot, dispatching on the file extension: .json for
// JSON exports, .db/.sqlite for SQLite exports.
func Load(path string) (*Snapshot, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return loadJSON(path)
	case ".db", ".sqlite":
		return loadSQLite(path)
	default:
		return nil, fmt.Errorf("unsupported dataset format %q (want .json, .db or .sqlite)", filepath.Ext(path))
	}
}

func loadJSON(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse dataset %s: %w", path, err)
	}
	s.Sources = []string{path}
	return &s, nil
}

// Validate checks snapshot-level consistency. Errors here are fatal;
// per-record problems are handled during conversion instead.
func Validate(s *Snapshot) error {
	if len(s.Locations) == 0 {
		return fmt.Errorf("dataset contains no locations")
	}

	names := make(map[string]struct{}, len(s.Locations))
	for _, loc := range s.Locations {
		if loc.Name == "" {
			return fmt.Errorf("location with empty name")
		}
		if _, dup := names[loc.Name]; dup {
			return fmt.Errorf("duplicate location name: %q", loc.Name)
		}
		names[loc.Name] = struct{}{}
	}

	ids := make(map[int64]struct{}, len(s.SoilProfiles))
	for _, p := range s.SoilProfiles {
		if _, dup := ids[p.ID]; dup {
			return fmt.Errorf("duplicate soil profile id: %d", p.ID)
		}
		ids[p.ID] = struct{}{}
		if len(p.Layers) == 0 {
			return fmt.Errorf("soil profile %d has no layers", p.ID)
		}
	}
	return nil
}

// ResolveGlob expands a dataset path pattern. A literal path is
// returned as-is; a pattern with no matches is an error.
func ResolveGlob(pattern string) ([]string, error) {
	if !strings.ContainsAny(pattern, "*?[") {
		return []string{pattern}, nil
	}
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("bad glob pattern %q: %w", pattern, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no dataset files match %q", pattern)
	}
	return matches, nil
}

// LoadMulti loads and merges several snapshot files. Duplicate location
// names across files are an error.
func LoadMulti(paths []string) (*Snapshot, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no dataset files given")
	}
	merged := &Snapshot{}
	seen := make(map[string]string) // name → source file
	for _, path := range paths {
		s, err := Load(path)
		if err != nil {
			return nil, err
		}
		for _, loc := range s.Locations {
			if prev, dup := seen[loc.Name]; dup {
				return nil, fmt.Errorf("location %q appears in both %s and %s", loc.Name, prev, path)
			}
			seen[loc.Name] = path
		}
		merged.Locations = append(merged.Locations, s.Locations...)
		merged.SoilProfiles = append(merged.SoilProfiles, s.SoilProfiles...)
		merged.Sources = append(merged.Sources, path)
	}
	return merged, nil
}
