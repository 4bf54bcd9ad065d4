package engine

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// InvokeContext carries everything an invoker needs for one console run.
type InvokeContext struct {
	Ctx       context.Context
	ModelPath string
	OutputDir string
	// OnProgress receives console progress lines as they arrive. May be
	// nil.
	OnProgress func(line string)
}

// DGeoFlowInvoker runs the vendor console directly:
// <path> [args...] <model.flox>.
type DGeoFlowInvoker struct {
	profile *Profile
}

func (r *DGeoFlowInvoker) Name() string { return r.profile.Name }

func (r *DGeoFlowInvoker) Invoke(ic *InvokeContext) *Invocation {
	args := append(append([]string(nil), r.profile.Args...), ic.ModelPath)
	return runConsole(ic, r.profile, r.profile.Path, args)
}

// ScriptInvoker runs a wrapper command (farm submission script, older
// console behind a shim) with the model path appended.
type ScriptInvoker struct {
	profile *Profile
}

func (r *ScriptInvoker) Name() string { return r.profile.Name }

func (r *ScriptInvoker) Invoke(ic *InvokeContext) *Invocation {
	args := append(append([]string(nil), r.profile.Args...), ic.ModelPath)
	return runConsole(ic, r.profile, r.profile.Command, args)
}

func runConsole(ic *InvokeContext, p *Profile, bin string, args []string) *Invocation {
	inv := &Invocation{}

	slog.Debug("spawning engine", "engine", p.Name, "bin", bin, "model", ic.ModelPath)

	// idle-aware context: kills the console when it stops printing
	// solver progress
	idleCtx, idleCancel := context.WithCancel(ic.Ctx)
	defer idleCancel()

	cmd := exec.CommandContext(idleCtx, bin, args...)
	setupProcessGroup(cmd)
	cmd.Dir = ic.OutputDir
	if len(p.Env) > 0 {
		cmd.Env = append(os.Environ(), MapToEnvSlice(p.Env)...)
	}

	cooldown := p.LicenseCooldown
	if cooldown <= 0 {
		cooldown = 30 * time.Minute
	}
	cw := newCrashWriter(newLogWriter(ic.OutputDir, "stderr.log"))
	lw := newLicenseWriter(cw, cooldown, idleCancel)
	cmd.Stderr = lw

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		inv.ExitErr = fmt.Errorf("stdout pipe: %w", err)
		return inv
	}

	if err := cmd.Start(); err != nil {
		inv.ExitErr = fmt.Errorf("start %s: %w", bin, err)
		return inv
	}

	idleReader := newIdleTimeoutReader(stdout, p.IdleTimeout, idleCancel)
	defer idleReader.Stop()

	inv.LastMsg = captureCalcLog(idleReader, ic.OutputDir, ic.OnProgress)

	exitErr := cmd.Wait()

	inv.Idled = idleReader.Idled()
	if lw.Detected() {
		inv.License = true
		inv.RetryAt = lw.RetryAt()
		return inv
	}
	if cw.Detected() {
		inv.CrashSignature = cw.Signature()
	}
	inv.ExitErr = exitErr
	return inv
}

// captureCalcLog tees console stdout into calc.log and keeps the last
// non-empty line as the progress message.
func captureCalcLog(r io.Reader, outputDir string, onProgress func(string)) string {
	log := newLogWriter(outputDir, "calc.log")

	var lastMsg string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		fmt.Fprintln(log, line)
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lastMsg = trimmed
			if onProgress != nil {
				onProgress(trimmed)
			}
		}
	}
	if c, ok := log.(io.Closer); ok {
		c.Close()
	}
	return lastMsg
}

// newLogWriter creates a file writer for capturing console output.
func newLogWriter(dir, name string) io.Writer {
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		slog.Warn("cannot create log file", "path", path, "error", err)
		return io.Discard
	}
	return f
}
