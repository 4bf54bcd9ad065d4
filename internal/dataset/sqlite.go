package dataset

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// loadSQLite reads a snapshot from a SQLite export. Column names match
// the JSON keys; the points column holds the point map as JSON text.
// Layer order within a profile follows insertion order.
func loadSQLite(path string) (*Snapshot, error) {
	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open dataset db: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s := &Snapshot{Sources: []string{path}}
	if err := readLocations(ctx, db, s); err != nil {
		return nil, fmt.Errorf("dataset db %s: %w", path, err)
	}
	if err := readSoilProfiles(ctx, db, s); err != nil {
		return nil, fmt.Errorf("dataset db %s: %w", path, err)
	}
	return s, nil
}

func readLocations(ctx context.Context, db *sql.DB, s *Snapshot) error {
	rows, err := db.QueryContext(ctx, `
		SELECT name, dijkpaal, ondergrond, uittredepunt, slootnummer,
		       max_zp_wp, bovengrens_slootpeil, ondergrens_slootpeil,
		       slootpeil, waterstand_bij_norm, points
		FROM locations ORDER BY dijkpaal, name`)
	if err != nil {
		return fmt.Errorf("query locations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var loc Location
		var points string
		if err := rows.Scan(&loc.Name, &loc.Dijkpaal, &loc.Ondergrond,
			&loc.Uittredepunt, &loc.Slootnummer, &loc.MaxZpWp,
			&loc.BovengrensSlootpeil, &loc.OndergrensSlootpeil,
			&loc.Slootpeil, &loc.WaterstandBijNorm, &points); err != nil {
			return fmt.Errorf("scan location: %w", err)
		}
		if err := json.Unmarshal([]byte(points), &loc.Points); err != nil {
			return fmt.Errorf("location %q: parse points: %w", loc.Name, err)
		}
		s.Locations = append(s.Locations, loc)
	}
	return rows.Err()
}

func readSoilProfiles(ctx context.Context, db *sql.DB, s *Snapshot) error {
	rows, err := db.QueryContext(ctx, `SELECT id FROM soil_profiles ORDER BY id`)
	if err != nil {
		return fmt.Errorf("query soil_profiles: %w", err)
	}
	byID := make(map[int64]int)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scan soil profile: %w", err)
		}
		byID[id] = len(s.SoilProfiles)
		s.SoilProfiles = append(s.SoilProfiles, SoilProfile{ID: id})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	layers, err := db.QueryContext(ctx, `
		SELECT profile_id, soil_name, top, bottom, is_aquifer, aquifer_number
		FROM soil_layers ORDER BY profile_id, rowid`)
	if err != nil {
		return fmt.Errorf("query soil_layers: %w", err)
	}
	defer layers.Close()

	for layers.Next() {
		var profileID int64
		var l SoilLayer
		var bottom sql.NullFloat64
		if err := layers.Scan(&profileID, &l.SoilName, &l.Top, &bottom,
			&l.IsAquifer, &l.AquiferNumber); err != nil {
			return fmt.Errorf("scan soil layer: %w", err)
		}
		if bottom.Valid {
			b := bottom.Float64
			l.Bottom = &b
		}
		idx, ok := byID[profileID]
		if !ok {
			return fmt.Errorf("soil layer references unknown profile %d", profileID)
		}
		s.SoilProfiles[idx].Layers = append(s.SoilProfiles[idx].Layers, l)
	}
	return layers.Err()
}
