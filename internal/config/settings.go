// Package config loads persistent CLI defaults from floxrun.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dikeworks/floxrun/internal/flox"
)

// DefaultFileName is the settings file looked up in the working
// directory when --config is not given.
const DefaultFileName = "floxrun.yaml"

// Settings holds persistent CLI defaults loaded from a config file.
type Settings struct {
	OutputDir    string   `yaml:"output_dir"`
	Datasets     []string `yaml:"datasets"` // file paths or globs
	FromDijkpaal int      `yaml:"from_dijkpaal"`
	ToDijkpaal   int      `yaml:"to_dijkpaal"`

	MaxRuntime  time.Duration `yaml:"max_runtime"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
	FailFast    bool          `yaml:"fail_fast"`
	TUI         bool          `yaml:"tui"`
	PostRun     string        `yaml:"post_run"` // shell command to run after report is written; $FLOXRUN_RUN_DIR is set

	// Engine config: which console to invoke and what to fall back to
	DefaultEngine   string                    `yaml:"default_engine"`
	EngineFallbacks []string                  `yaml:"engine_fallbacks"`
	Engines         map[string]*EngineProfile `yaml:"engines"`
	LicenseCooldown time.Duration             `yaml:"license_cooldown,omitempty"`

	// Model construction parameters. Pre-seeded with the regional
	// defaults, so the model block only needs the overrides.
	Model flox.BuildParams `yaml:"model"`

	// Sentinel hot-folder daemon
	Sentinel *SentinelConfig `yaml:"sentinel,omitempty"`
}

// EngineProfile describes one installed vendor console.
type EngineProfile struct {
	Type    string            `yaml:"type"`              // "dgeoflow" or "script"
	Path    string            `yaml:"path,omitempty"`    // console executable
	Command string            `yaml:"command,omitempty"` // script engines
	Args    []string          `yaml:"args,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"`
}

// SentinelConfig holds settings for the drop-folder daemon.
type SentinelConfig struct {
	DropDir      string        `yaml:"drop_dir"`
	PollInterval time.Duration `yaml:"poll_interval,omitempty"`
}

// LoadSettings reads a YAML config file into Settings.
// If the file does not exist, it returns defaults and nil error.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaults(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	s := defaults()
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	return s, nil
}

func defaults() *Settings {
	return &Settings{
		OutputDir: "output",
		Model:     flox.DefaultBuildParams(),
	}
}

// EngineOrder returns the engine cascade: default engine first, then
// fallbacks, duplicates removed.
func (s *Settings) EngineOrder() []string {
	var order []string
	seen := make(map[string]bool)
	for _, name := range append([]string{s.DefaultEngine}, s.EngineFallbacks...) {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		order = append(order, name)
	}
	return order
}

// Validate checks engine references. A config without engines is valid
// (dry-run only); a default_engine or fallback that names a missing
// profile is not.
func (s *Settings) Validate() error {
	for _, name := range s.EngineOrder() {
		profile, ok := s.Engines[name]
		if !ok {
			return fmt.Errorf("engine %q referenced but not defined in engines", name)
		}
		switch profile.Type {
		case "dgeoflow":
			if profile.Path == "" {
				return fmt.Errorf("engine %q: dgeoflow profile needs path", name)
			}
		case "script":
			if profile.Command == "" {
				return fmt.Errorf("engine %q: script profile needs command", name)
			}
		default:
			return fmt.Errorf("engine %q: unknown type %q", name, profile.Type)
		}
	}
	return nil
}
