package flox

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

const (
	memberProject  = "projectinfo.json"
	memberSoils    = "soils.json"
	memberGeometry = "geometry.json"
	memberScenario = "scenario.json"
	memberResults  = "results.json"
)

// Write serializes the model as a .flox archive at path.
func Write(path string, m *Model) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	zw := zip.NewWriter(f)

	members := []struct {
		name string
		v    any
	}{
		{memberProject, m.ProjectInfo},
		{memberSoils, m.Soils},
		{memberGeometry, m.Geometry},
		{memberScenario, m.Scenario},
	}
	for _, mb := range members {
		w, err := zw.Create(mb.name)
		if err != nil {
			f.Close()
			return fmt.Errorf("write %s in %s: %w", mb.name, path, err)
		}
		data, err := json.MarshalIndent(mb.v, "", "  ")
		if err != nil {
			f.Close()
			return fmt.Errorf("encode %s: %w", mb.name, err)
		}
		if _, err := w.Write(data); err != nil {
			f.Close()
			return fmt.Errorf("write %s in %s: %w", mb.name, path, err)
		}
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return fmt.Errorf("finish %s: %w", path, err)
	}
	return f.Close()
}

// Read loads a .flox archive. Missing optional members are tolerated;
// a missing required member is an error.
func Read(path string) (*Model, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer zr.Close()

	m := &Model{}
	required := map[string]any{
		memberProject:  &m.ProjectInfo,
		memberSoils:    &m.Soils,
		memberGeometry: &m.Geometry,
		memberScenario: &m.Scenario,
	}
	for name, dst := range required {
		if err := readMember(&zr.Reader, name, dst); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return m, nil
}

// ReadResults extracts the results member the console writes into the
// calculated archive. A missing member means the calculation produced
// no result.
func ReadResults(path string) (*Results, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer zr.Close()

	var res Results
	if err := readMember(&zr.Reader, memberResults, &res); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &res, nil
}

// HasResults reports whether the archive carries a results member.
func HasResults(path string) bool {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return false
	}
	defer zr.Close()
	for _, f := range zr.File {
		if f.Name == memberResults {
			return true
		}
	}
	return false
}

// AppendResults rewrites the archive with a results member added, the
// way the console does after a calculation. Used by stub engines and
// fixtures.
func AppendResults(path string, res *Results) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		zr.Close()
		return err
	}
	zw := zip.NewWriter(f)
	for _, zf := range zr.File {
		if zf.Name == memberResults {
			continue
		}
		w, err := zw.Create(zf.Name)
		if err == nil {
			var rc io.ReadCloser
			rc, err = zf.Open()
			if err == nil {
				_, err = io.Copy(w, rc)
				rc.Close()
			}
		}
		if err != nil {
			zr.Close()
			zw.Close()
			f.Close()
			os.Remove(tmp)
			return fmt.Errorf("copy member %s: %w", zf.Name, err)
		}
	}
	zr.Close()

	w, err := zw.Create(memberResults)
	if err == nil {
		var data []byte
		data, err = json.MarshalIndent(res, "", "  ")
		if err == nil {
			_, err = w.Write(data)
		}
	}
	if err != nil {
		zw.Close()
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write results member: %w", err)
	}
	if err := zw.Close(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func readMember(zr *zip.Reader, name string, dst any) error {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("open member %s: %w", name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return fmt.Errorf("read member %s: %w", name, err)
		}
		if err := json.Unmarshal(data, dst); err != nil {
			return fmt.Errorf("decode member %s: %w", name, err)
		}
		return nil
	}
	return fmt.Errorf("member %s not found", name)
}
