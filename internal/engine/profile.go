// Package engine launches the external calculation console, classifies
// its failures and manages the fallback cascade across installed
// console versions.
package engine

import (
	"fmt"
	"time"
)

// Profile describes one named engine installation from the settings
// file.
type Profile struct {
	Name string
	Type string // "dgeoflow" or "script"

	// Path is the console executable (dgeoflow profiles).
	Path string
	// Command is the wrapper command (script profiles).
	Command string

	Args []string
	Env  map[string]string

	IdleTimeout     time.Duration
	LicenseCooldown time.Duration
}

// Invocation is the raw outcome of one console run, before the cascade
// interprets it.
type Invocation struct {
	ExitErr        error
	Idled          bool
	License        bool
	RetryAt        time.Time
	CrashSignature string
	LastMsg        string
}

// Invoker runs a calculation on a single model file.
type Invoker interface {
	Name() string
	Invoke(ctx *InvokeContext) *Invocation
}

// NewInvoker builds the invoker for a profile.
func NewInvoker(p *Profile) (Invoker, error) {
	switch p.Type {
	case "dgeoflow":
		if p.Path == "" {
			return nil, fmt.Errorf("engine %q: dgeoflow profile needs a path", p.Name)
		}
		return &DGeoFlowInvoker{profile: p}, nil
	case "script":
		if p.Command == "" {
			return nil, fmt.Errorf("engine %q: script profile needs a command", p.Name)
		}
		return &ScriptInvoker{profile: p}, nil
	default:
		return nil, fmt.Errorf("engine %q: unknown type %q", p.Name, p.Type)
	}
}

// MapToEnvSlice converts an env map to KEY=VALUE entries.
func MapToEnvSlice(m map[string]string) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+v)
	}
	return out
}
