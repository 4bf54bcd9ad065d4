package reporter

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dikeworks/floxrun/internal/batch"
)

// ScenarioSnapshot holds the observed state of a single scenario from
// disk.
type ScenarioSnapshot struct {
	Name       string
	State      string // "running", "completed", "failed", "no model", "queued"
	LineCount  int
	StartedAt  time.Time
	LastLine   string
	PipeLength float64
	fileOffset int64
}

// WatchReporter monitors a run directory and renders a top-like
// display. It reads only what the run writes to disk, so it can attach
// to a batch started by another process.
type WatchReporter struct {
	w         io.Writer
	color     bool
	runDir    string
	snapshots map[string]*ScenarioSnapshot
	lastLines int
	frame     int
	runStart  time.Time
}

// NewWatchReporter creates a watch reporter for the given run directory.
func NewWatchReporter(w io.Writer, color bool, runDir string) *WatchReporter {
	return &WatchReporter{
		w:         w,
		color:     color,
		runDir:    runDir,
		snapshots: make(map[string]*ScenarioSnapshot),
	}
}

// Run starts the watch loop, refreshing every 1s until stop is closed
// or the run completes.
func (wr *WatchReporter) Run(stop <-chan struct{}) error {
	if err := wr.discoverScenarios(); err != nil {
		return err
	}
	wr.runStart = wr.earliestDirTime()
	wr.refresh()
	wr.render()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			fmt.Fprintln(wr.w)
			return nil
		case <-ticker.C:
			_ = wr.discoverScenarios()
			wr.refresh()
			wr.render()
			if wr.runCompleted() {
				fmt.Fprintf(wr.w, "\n%srun completed%s\n", wr.c(colorGreen), wr.c(colorReset))
				return nil
			}
		}
	}
}

func (wr *WatchReporter) scenariosDir() string {
	return filepath.Join(wr.runDir, "scenarios")
}

func (wr *WatchReporter) discoverScenarios() error {
	entries, err := os.ReadDir(wr.scenariosDir())
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		if _, exists := wr.snapshots[name]; !exists {
			snap := &ScenarioSnapshot{
				Name:  name,
				State: "queued",
			}
			// calc.log mod time is the best start-time proxy on disk
			logPath := filepath.Join(wr.scenariosDir(), name, "calc.log")
			if info, err := os.Stat(logPath); err == nil {
				snap.StartedAt = info.ModTime()
				snap.State = "running"
			}
			wr.snapshots[name] = snap
		}
	}
	return nil
}

func (wr *WatchReporter) earliestDirTime() time.Time {
	var earliest time.Time
	for _, snap := range wr.snapshots {
		if !snap.StartedAt.IsZero() && (earliest.IsZero() || snap.StartedAt.Before(earliest)) {
			earliest = snap.StartedAt
		}
	}
	if earliest.IsZero() {
		// fallback: stat the run directory itself
		if info, err := os.Stat(wr.runDir); err == nil {
			earliest = info.ModTime()
		} else {
			earliest = time.Now()
		}
	}
	return earliest
}

func (wr *WatchReporter) refresh() {
	for name, snap := range wr.snapshots {
		logPath := filepath.Join(wr.scenariosDir(), name, "calc.log")
		wr.readNewLines(snap, logPath)
	}
	wr.applyReport()
}

func (wr *WatchReporter) readNewLines(snap *ScenarioSnapshot, path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer func() { _ = f.Close() }()

	if snap.fileOffset > 0 {
		if _, err := f.Seek(snap.fileOffset, io.SeekStart); err != nil {
			return
		}
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 256*1024), 256*1024)
	bytesRead := int64(0)

	for scanner.Scan() {
		line := scanner.Text()
		bytesRead += int64(len(line)) + 1 // +1 for newline
		snap.LineCount++
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			snap.LastLine = trimmed
		}
	}

	snap.fileOffset += bytesRead

	if snap.LineCount > 0 {
		if snap.State == "queued" {
			snap.State = "running"
		}
		if snap.StartedAt.IsZero() {
			if info, err := os.Stat(path); err == nil {
				snap.StartedAt = info.ModTime()
			} else {
				snap.StartedAt = time.Now()
			}
		}
	}
}

// applyReport overlays final states from report.json once the run has
// written it.
func (wr *WatchReporter) applyReport() {
	report, err := ReadJSONReport(filepath.Join(wr.runDir, ReportFileName))
	if err != nil {
		return
	}
	for name, res := range report.Results {
		snap, ok := wr.snapshots[batch.SafeName(name)]
		if !ok {
			snap = &ScenarioSnapshot{Name: name}
			wr.snapshots[batch.SafeName(name)] = snap
		}
		switch res.State {
		case batch.StateCompleted:
			snap.State = "completed"
			snap.PipeLength = res.PipeLength
		case batch.StateNoModel:
			snap.State = "no model"
			snap.LastLine = res.Error
		case batch.StateFailed, batch.StateLicenseBlocked:
			snap.State = "failed"
			snap.LastLine = res.Error
		}
	}
}

func (wr *WatchReporter) runCompleted() bool {
	_, err := os.Stat(filepath.Join(wr.runDir, ReportFileName))
	return err == nil
}

func (wr *WatchReporter) render() {
	lines := wr.buildLines()

	if wr.lastLines > 0 {
		fmt.Fprintf(wr.w, "\033[%dA", wr.lastLines)
	}

	for _, line := range lines {
		fmt.Fprintf(wr.w, "\033[K%s\n", line)
	}

	wr.lastLines = len(lines)
	wr.frame++
}

func (wr *WatchReporter) buildLines() []string {
	var running, completed, failed, queued []*ScenarioSnapshot

	for _, snap := range wr.snapshots {
		switch snap.State {
		case "running":
			running = append(running, snap)
		case "completed":
			completed = append(completed, snap)
		case "failed", "no model":
			failed = append(failed, snap)
		default:
			queued = append(queued, snap)
		}
	}

	sortByName(running)
	sortByName(completed)
	sortByName(failed)
	sortByName(queued)

	runName := filepath.Base(wr.runDir)
	elapsed := time.Since(wr.runStart).Truncate(time.Second)
	runState := "running"
	if wr.runCompleted() {
		runState = "completed"
	}

	spinner := spinnerFrames[wr.frame%len(spinnerFrames)]

	var lines []string

	lines = append(lines, fmt.Sprintf("floxrun watch — %s (%s %s)", runName, runState, elapsed))
	lines = append(lines, fmt.Sprintf("scenarios: %s%d running%s, %s%d completed%s, %s%d failed%s, %s%d queued%s",
		wr.c(colorCyan), len(running), wr.c(colorReset),
		wr.c(colorGreen), len(completed), wr.c(colorReset),
		wr.c(colorRed), len(failed), wr.c(colorReset),
		wr.c(colorDim), len(queued), wr.c(colorReset)))
	lines = append(lines, "")

	lines = append(lines, fmt.Sprintf("  %-30s %-10s %6s %8s   %s", "SCENARIO", "STATE", "LINES", "ELAPSED", "LAST OUTPUT"))

	// failed first
	for _, snap := range failed {
		lines = append(lines, wr.fmtFailed(snap))
	}

	for _, snap := range running {
		lines = append(lines, wr.fmtRunning(snap, spinner))
	}

	// completed (cap at 10)
	shown := 0
	for _, snap := range completed {
		if shown >= 10 {
			break
		}
		lines = append(lines, wr.fmtCompleted(snap))
		shown++
	}
	if remaining := len(completed) - shown; remaining > 0 {
		lines = append(lines, fmt.Sprintf("  %s... %d more completed%s", wr.c(colorDim), remaining, wr.c(colorReset)))
	}

	// queued (cap at 5)
	shown = 0
	for _, snap := range queued {
		if shown >= 5 {
			break
		}
		lines = append(lines, wr.fmtQueued(snap))
		shown++
	}
	if remaining := len(queued) - shown; remaining > 0 {
		lines = append(lines, fmt.Sprintf("  %s... %d more queued%s", wr.c(colorDim), remaining, wr.c(colorReset)))
	}

	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("  %sctrl+c to quit | refreshing every 1s%s", wr.c(colorDim), wr.c(colorReset)))

	return lines
}

func (wr *WatchReporter) fmtRunning(snap *ScenarioSnapshot, spinner string) string {
	elapsed := wr.elapsedStr(snap)
	last := snap.LastLine
	if len(last) > 45 {
		last = last[:45] + "..."
	}
	return fmt.Sprintf("  %s%s %-28s %-10s %6d %8s   %s%s",
		wr.c(colorCyan), spinner, snap.Name, "running", snap.LineCount, elapsed, last, wr.c(colorReset))
}

func (wr *WatchReporter) fmtCompleted(snap *ScenarioSnapshot) string {
	elapsed := wr.elapsedStr(snap)
	return fmt.Sprintf("  %s✓ %-28s %-10s %6d %8s   pipe %.2f m%s",
		wr.c(colorGreen), snap.Name, "done", snap.LineCount, elapsed, snap.PipeLength, wr.c(colorReset))
}

func (wr *WatchReporter) fmtFailed(snap *ScenarioSnapshot) string {
	elapsed := wr.elapsedStr(snap)
	last := snap.LastLine
	if len(last) > 45 {
		last = last[:45] + "..."
	}
	return fmt.Sprintf("  %s✗ %-28s %-10s %6d %8s   %s%s",
		wr.c(colorRed), snap.Name, snap.State, snap.LineCount, elapsed, last, wr.c(colorReset))
}

func (wr *WatchReporter) fmtQueued(snap *ScenarioSnapshot) string {
	return fmt.Sprintf("  %s─ %-28s %-10s %6s %8s   %s%s",
		wr.c(colorDim), snap.Name, "queued", "-", "-", "-", wr.c(colorReset))
}

func (wr *WatchReporter) elapsedStr(snap *ScenarioSnapshot) string {
	if snap.StartedAt.IsZero() {
		return "-"
	}
	return time.Since(snap.StartedAt).Truncate(time.Second).String()
}

func (wr *WatchReporter) c(code string) string {
	if !wr.color {
		return ""
	}
	return code
}

func sortByName(snaps []*ScenarioSnapshot) {
	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].Name < snaps[j].Name
	})
}
