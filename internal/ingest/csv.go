// Package ingest converts raw warehouse CSV exports into dataset
// snapshots that the run command can load directly.
package ingest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dikeworks/floxrun/internal/dataset"
	"github.com/dikeworks/floxrun/internal/dike"
)

// Issue records a CSV row that could not be converted.
type Issue struct {
	File   string
	Line   int
	Reason string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s:%d: %s", filepath.Base(i.File), i.Line, i.Reason)
}

// Convert reads a locations export and a soil export and assembles a
// snapshot. Rows that cannot be converted are reported as issues, not
// errors; a bad export file is an error.
func Convert(locationsCSV, soilsCSV string) (*dataset.Snapshot, []Issue, error) {
	profiles, issues, err := readSoils(soilsCSV)
	if err != nil {
		return nil, nil, err
	}

	locations, locIssues, err := readLocations(locationsCSV)
	if err != nil {
		return nil, nil, err
	}
	issues = append(issues, locIssues...)

	return &dataset.Snapshot{
		Locations:    locations,
		SoilProfiles: profiles,
		Sources:      []string{locationsCSV, soilsCSV},
	}, issues, nil
}

// WriteSnapshot writes the snapshot as an indented JSON file.
func WriteSnapshot(s *dataset.Snapshot, path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// header maps a lowercased column name to its index.
type header map[string]int

func readHeader(record []string) header {
	h := make(header, len(record))
	for i, col := range record {
		name := strings.ToLower(strings.TrimSpace(col))
		// one export generation misspelled the outer surface point
		if name == "xmvb_bui" {
			name = "xmv_bui"
		}
		h[name] = i
	}
	return h
}

func (h header) str(record []string, col string) (string, bool) {
	i, ok := h[col]
	if !ok || i >= len(record) {
		return "", false
	}
	return strings.TrimSpace(record[i]), true
}

// num parses a float column. Empty cells and literal nan parse to NaN.
func (h header) num(record []string, col string) (float64, error) {
	s, ok := h.str(record, col)
	if !ok || s == "" || strings.EqualFold(s, "nan") {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("column %s: %w", col, err)
	}
	return v, nil
}

func (h header) integer(record []string, col string) (int, error) {
	s, ok := h.str(record, col)
	if !ok || s == "" {
		return 0, nil
	}
	// exports write integers as floats ("375.0")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("column %s: %w", col, err)
	}
	return int(v), nil
}

func readRecords(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open export: %w", err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("%s: export has no data rows", path)
	}
	return records, nil
}

func readLocations(path string) ([]dataset.Location, []Issue, error) {
	records, err := readRecords(path)
	if err != nil {
		return nil, nil, err
	}
	h := readHeader(records[0])

	var locations []dataset.Location
	var issues []Issue

	for n, record := range records[1:] {
		line := n + 2
		loc, reason := parseLocation(h, record)
		if reason != "" {
			issues = append(issues, Issue{File: path, Line: line, Reason: reason})
			continue
		}
		locations = append(locations, loc)
	}
	return locations, issues, nil
}

func parseLocation(h header, record []string) (dataset.Location, string) {
	var loc dataset.Location

	name, _ := h.str(record, "name")
	if name == "" {
		return loc, "missing name"
	}
	loc.Name = name

	dp, err := h.integer(record, "dijkpaal")
	if err != nil {
		return loc, err.Error()
	}
	if dp == 0 {
		dp = dijkpaalFromName(name)
	}
	loc.Dijkpaal = dp

	ondergrond, err := h.integer(record, "ondergrond")
	if err != nil {
		return loc, err.Error()
	}
	loc.Ondergrond = int64(ondergrond)

	loc.Slootnummer, _ = h.str(record, "slootnummer")

	levels := []struct {
		col string
		dst *float64
	}{
		{"uittredepunt", &loc.Uittredepunt},
		{"max_zp_wp_mnap", &loc.MaxZpWp},
		{"bovengrens_slootpeil_mnap", &loc.BovengrensSlootpeil},
		{"ondergrens_slootpeil_mnap", &loc.OndergrensSlootpeil},
		{"slootpeil_mnap", &loc.Slootpeil},
		{"waterstand_bij_norm_mnap", &loc.WaterstandBijNorm},
	}
	for _, lv := range levels {
		v, err := h.num(record, lv.col)
		if err != nil {
			return loc, err.Error()
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return loc, fmt.Sprintf("column %s is not a finite number", lv.col)
		}
		*lv.dst = v
	}

	// characteristic points: x<id>/y<id> column pairs, lowercased ids.
	// Missing or NaN points are simply absent from the record; the
	// converter decides whether enough points remain.
	loc.Points = make(map[string][2]float64)
	for _, id := range dike.PointIDs {
		lower := strings.ToLower(id)
		x, errX := h.num(record, "x"+lower)
		y, errY := h.num(record, "y"+lower)
		if errX != nil || errY != nil {
			continue
		}
		if math.IsNaN(x) || math.IsNaN(y) {
			continue
		}
		loc.Points[id] = [2]float64{x, y}
	}
	if len(loc.Points) == 0 {
		return loc, "no characteristic points"
	}

	return loc, ""
}

// dijkpaalFromName extracts the dijkpaal from names like DP0375_sloot1.
func dijkpaalFromName(name string) int {
	if !strings.HasPrefix(name, "DP") {
		return 0
	}
	digits := ""
	for _, r := range name[2:] {
		if r < '0' || r > '9' {
			break
		}
		digits += string(r)
	}
	if digits == "" {
		return 0
	}
	v, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return v
}

func readSoils(path string) ([]dataset.SoilProfile, []Issue, error) {
	records, err := readRecords(path)
	if err != nil {
		return nil, nil, err
	}
	h := readHeader(records[0])

	var profiles []dataset.SoilProfile
	index := make(map[int64]int) // profile id → slice index
	var issues []Issue

	for n, record := range records[1:] {
		line := n + 2

		id, err := h.integer(record, "profile")
		if err != nil {
			issues = append(issues, Issue{File: path, Line: line, Reason: err.Error()})
			continue
		}

		layer, reason := parseSoilLayer(h, record)
		if reason != "" {
			issues = append(issues, Issue{File: path, Line: line, Reason: reason})
			continue
		}

		pi, ok := index[int64(id)]
		if !ok {
			profiles = append(profiles, dataset.SoilProfile{ID: int64(id)})
			pi = len(profiles) - 1
			index[int64(id)] = pi
		}
		profiles[pi].Layers = append(profiles[pi].Layers, layer)
	}
	return profiles, issues, nil
}

func parseSoilLayer(h header, record []string) (dataset.SoilLayer, string) {
	var layer dataset.SoilLayer

	layer.SoilName, _ = h.str(record, "soil_name")
	if layer.SoilName == "" {
		return layer, "missing soil_name"
	}

	top, err := h.num(record, "top_level")
	if err != nil {
		return layer, err.Error()
	}
	if math.IsNaN(top) {
		return layer, "column top_level is not a finite number"
	}
	layer.Top = top

	bottom, err := h.num(record, "botm_level")
	if err != nil {
		return layer, err.Error()
	}
	if !math.IsNaN(bottom) {
		layer.Bottom = &bottom
	}

	if layer.IsAquifer, err = h.integer(record, "is_aquifer"); err != nil {
		return layer, err.Error()
	}
	if layer.AquiferNumber, err = h.integer(record, "aq_nr"); err != nil {
		return layer, err.Error()
	}

	return layer, ""
}
