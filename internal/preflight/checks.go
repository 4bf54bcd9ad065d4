package preflight

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/dikeworks/floxrun/internal/config"
	"github.com/dikeworks/floxrun/internal/dataset"
	"github.com/dikeworks/floxrun/internal/dike"
	"github.com/dikeworks/floxrun/internal/engine"
)

// Run executes all checks against the given settings and returns the
// aggregated report. Checks never abort each other; every problem that
// can be detected is reported in one pass.
func Run(settings *config.Settings, datasets []string) *Report {
	r := &Report{}

	checkSettings(r, settings)
	checkEngines(r, settings)
	checkOutputDir(r, settings.OutputDir)
	checkDatasets(r, datasets)
	checkDijkpaalRange(r, settings.FromDijkpaal, settings.ToDijkpaal)
	checkEngineLock(r)

	return r
}

func (r *Report) add(check string, sev Severity, msg, hint string) {
	r.Findings = append(r.Findings, Finding{Check: check, Severity: sev, Message: msg, Hint: hint})
}

func (r *Report) checked(name string) {
	r.Checked = append(r.Checked, name)
}

func checkSettings(r *Report, settings *config.Settings) {
	r.checked("settings")
	if err := settings.Validate(); err != nil {
		r.add("settings", SeverityCritical, err.Error(), "fix the engines block in floxrun.yaml")
		return
	}
	if len(settings.EngineOrder()) == 0 {
		r.add("settings", SeverityWarning,
			"no default_engine configured",
			"only --dry-run will work without an engine")
	}
}

func checkEngines(r *Report, settings *config.Settings) {
	r.checked("engines")
	for _, name := range settings.EngineOrder() {
		profile, ok := settings.Engines[name]
		if !ok {
			continue // reported by checkSettings
		}
		switch profile.Type {
		case "dgeoflow":
			info, err := os.Stat(profile.Path)
			if err != nil {
				r.add("engine-"+name, SeverityCritical,
					fmt.Sprintf("console executable %s not found", profile.Path),
					"check the path in the engines block, or install the console")
				continue
			}
			if info.IsDir() {
				r.add("engine-"+name, SeverityCritical,
					fmt.Sprintf("console path %s is a directory", profile.Path), "")
			}
		case "script":
			if _, err := exec.LookPath(profile.Command); err != nil {
				r.add("engine-"+name, SeverityCritical,
					fmt.Sprintf("command %q not found in PATH", profile.Command), "")
			}
		}
	}
}

func checkOutputDir(r *Report, dir string) {
	r.checked("output-dir")
	if dir == "" {
		r.add("output-dir", SeverityCritical, "output_dir is empty", "")
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		r.add("output-dir", SeverityCritical,
			fmt.Sprintf("cannot create output directory %s: %v", dir, err), "")
		return
	}
	// probe writability; MkdirAll succeeds on an existing read-only dir
	probe := filepath.Join(dir, ".floxrun-preflight")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		r.add("output-dir", SeverityCritical,
			fmt.Sprintf("output directory %s is not writable: %v", dir, err), "")
		return
	}
	_ = os.Remove(probe)
}

func checkDatasets(r *Report, patterns []string) {
	r.checked("datasets")
	if len(patterns) == 0 {
		r.add("datasets", SeverityCritical, "no datasets configured",
			"set datasets in floxrun.yaml or pass --dataset")
		return
	}

	var paths []string
	for _, pattern := range patterns {
		matches, err := dataset.ResolveGlob(pattern)
		if err != nil {
			r.add("datasets", SeverityCritical, err.Error(), "")
			return
		}
		paths = append(paths, matches...)
	}

	snapshot, err := dataset.LoadMulti(paths)
	if err != nil {
		r.add("datasets", SeverityCritical, err.Error(), "")
		return
	}
	if err := dataset.Validate(snapshot); err != nil {
		r.add("datasets", SeverityCritical, err.Error(), "")
		return
	}

	checkSoilCodes(r, snapshot)
	checkProfileReferences(r, snapshot)
}

// checkSoilCodes flags soil names that will fall back to default
// permeability during model building.
func checkSoilCodes(r *Report, snapshot *dataset.Snapshot) {
	r.checked("soil-codes")
	seen := make(map[string]bool)
	for _, profile := range snapshot.SoilProfiles {
		for _, layer := range profile.Layers {
			if seen[layer.SoilName] {
				continue
			}
			seen[layer.SoilName] = true
			if _, ok := dike.LookupSoil(layer.SoilName); !ok {
				r.add("soil-codes", SeverityWarning,
					fmt.Sprintf("unknown soil code %q in profile %d", layer.SoilName, profile.ID),
					"unknown codes get default low permeability and grey color")
			}
		}
	}
}

func checkProfileReferences(r *Report, snapshot *dataset.Snapshot) {
	r.checked("profile-refs")
	ids := make(map[int64]bool, len(snapshot.SoilProfiles))
	for _, p := range snapshot.SoilProfiles {
		ids[p.ID] = true
	}
	for _, loc := range snapshot.Locations {
		if !ids[loc.Ondergrond] {
			r.add("profile-refs", SeverityWarning,
				fmt.Sprintf("location %q references missing soil profile %d", loc.Name, loc.Ondergrond),
				"the location will be skipped during conversion")
		}
	}
}

func checkDijkpaalRange(r *Report, from, to int) {
	r.checked("dijkpaal-range")
	if from != 0 && to != 0 && from > to {
		r.add("dijkpaal-range", SeverityCritical,
			fmt.Sprintf("from_dijkpaal %d is greater than to_dijkpaal %d", from, to), "")
	}
}

// checkEngineLock reports when another floxrun process holds the engine
// lock; a run would block waiting for it.
func checkEngineLock(r *Report) {
	r.checked("engine-lock")
	info, err := engine.ReadLock(engine.DefaultLockPath)
	if err != nil || info == nil {
		return
	}
	r.add("engine-lock", SeverityInfo,
		fmt.Sprintf("engine lock held by pid %d (run dir %s)", info.PID, info.RunDir),
		"a new run will wait for the lock")
}
