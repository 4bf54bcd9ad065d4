package reporter

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dikeworks/floxrun/internal/batch"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const maxScenarioLines = 20

// LiveReporter provides a live-updating terminal display during batch
// execution.
type LiveReporter struct {
	w          io.Writer
	color      bool
	getResults func() map[string]*batch.Result
	stop       chan struct{}
	done       chan struct{}
	lastLines  int
	frame      int
	mu         sync.Mutex
}

// NewLiveReporter creates a live reporter that polls results via
// getResults.
func NewLiveReporter(w io.Writer, color bool, getResults func() map[string]*batch.Result) *LiveReporter {
	return &LiveReporter{
		w:          w,
		color:      color,
		getResults: getResults,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start begins the periodic refresh loop.
func (lr *LiveReporter) Start() {
	go lr.loop()
}

// Stop halts the refresh loop and clears the live display.
func (lr *LiveReporter) Stop() {
	close(lr.stop)
	<-lr.done
	lr.clearLastFrame()
}

func (lr *LiveReporter) loop() {
	defer close(lr.done)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-lr.stop:
			return
		case <-ticker.C:
			lr.render()
		}
	}
}

func (lr *LiveReporter) clearLastFrame() {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	if lr.lastLines > 0 {
		fmt.Fprintf(lr.w, "\033[%dA", lr.lastLines)
		for i := 0; i < lr.lastLines; i++ {
			fmt.Fprintf(lr.w, "\033[K\n")
		}
		fmt.Fprintf(lr.w, "\033[%dA", lr.lastLines)
	}
}

func (lr *LiveReporter) render() {
	lr.mu.Lock()
	defer lr.mu.Unlock()

	results := lr.getResults()
	lines := lr.buildLines(results)

	// move cursor up to overwrite previous frame
	if lr.lastLines > 0 {
		fmt.Fprintf(lr.w, "\033[%dA", lr.lastLines)
	}
	for _, line := range lines {
		fmt.Fprintf(lr.w, "\033[K%s\n", line)
	}

	lr.lastLines = len(lines)
	lr.frame++
}

// Render produces the display lines for a given results snapshot.
// Exported for testing.
func (lr *LiveReporter) Render(results map[string]*batch.Result) []string {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	return lr.buildLines(results)
}

func (lr *LiveReporter) buildLines(results map[string]*batch.Result) []string {
	var failed, active, completed, blocked, queued []*batch.Result

	for _, name := range sortedNames(results) {
		res := results[name]
		switch res.State {
		case batch.StateFailed, batch.StateNoModel:
			failed = append(failed, res)
		case batch.StateBuilding, batch.StateCalculating:
			active = append(active, res)
		case batch.StateCompleted:
			completed = append(completed, res)
		case batch.StateSkipped:
			failed = append(failed, res) // show skipped with failed
		case batch.StateLicenseBlocked:
			blocked = append(blocked, res)
		default:
			queued = append(queued, res)
		}
	}

	// sort completed by end time (most recent first)
	sort.Slice(completed, func(i, j int) bool {
		return completed[i].EndedAt.After(completed[j].EndedAt)
	})

	total := len(results)
	spinner := spinnerFrames[lr.frame%len(spinnerFrames)]

	var lines []string
	lines = append(lines, fmt.Sprintf("floxrun — %d scenarios", total))
	lines = append(lines, "")

	shown := 0
	for _, res := range failed {
		if shown >= maxScenarioLines {
			break
		}
		lines = append(lines, lr.formatFailed(res))
		shown++
	}
	for _, res := range active {
		if shown >= maxScenarioLines {
			break
		}
		lines = append(lines, lr.formatActive(res, spinner))
		shown++
	}
	shownCompleted := 0
	for _, res := range completed {
		if shown >= maxScenarioLines {
			break
		}
		lines = append(lines, lr.formatCompleted(res))
		shown++
		shownCompleted++
	}
	if remaining := len(completed) - shownCompleted; remaining > 0 {
		lines = append(lines, fmt.Sprintf("  %s... %d more completed%s", lr.c(colorDim), remaining, lr.c(colorReset)))
		shown++
	}
	shownBlocked := 0
	for _, res := range blocked {
		if shown >= maxScenarioLines {
			break
		}
		lines = append(lines, lr.formatBlocked(res))
		shown++
		shownBlocked++
	}
	if remaining := len(blocked) - shownBlocked; remaining > 0 {
		lines = append(lines, fmt.Sprintf("  %s... %d more license-blocked%s", lr.c(colorDim), remaining, lr.c(colorReset)))
		shown++
	}
	shownQueued := 0
	for _, res := range queued {
		if shown >= maxScenarioLines {
			break
		}
		lines = append(lines, fmt.Sprintf("  %s─ %-10s %-28s%s", lr.c(colorDim), "queued", res.Name, lr.c(colorReset)))
		shown++
		shownQueued++
	}
	if remaining := len(queued) - shownQueued; remaining > 0 {
		lines = append(lines, fmt.Sprintf("  %s─ queued     %d more scenarios%s", lr.c(colorDim), remaining, lr.c(colorReset)))
	}

	lines = append(lines, "")
	lines = append(lines, lr.progressLine(len(completed), len(active), len(failed), len(blocked), len(queued)))

	return lines
}

func (lr *LiveReporter) formatFailed(res *batch.Result) string {
	icon := "✗"
	label := "FAILED"
	switch res.State {
	case batch.StateSkipped:
		icon = "⊘"
		label = "skipped"
	case batch.StateNoModel:
		icon = "∅"
		label = "no model"
	}
	errMsg := res.Error
	if len(errMsg) > 120 {
		errMsg = errMsg[:120] + "..."
	}
	return fmt.Sprintf("  %s%s %-10s %-28s %s%s",
		lr.c(colorRed), icon, label, res.Name, errMsg, lr.c(colorReset))
}

func (lr *LiveReporter) formatActive(res *batch.Result, spinner string) string {
	label := strings.ToLower(res.State.String())
	elapsed := time.Since(res.StartedAt).Truncate(time.Second)
	msg := res.LastMsg
	if len(msg) > 60 {
		msg = msg[:60] + "..."
	}
	return fmt.Sprintf("  %s%s %-11s %-28s %-8s %s%s",
		lr.c(colorCyan), spinner, label, res.Name, elapsed, msg, lr.c(colorReset))
}

func (lr *LiveReporter) formatCompleted(res *batch.Result) string {
	dur := res.Duration.Truncate(time.Second)
	suffix := ""
	if res.EngineUsed != "" {
		if len(res.Attempts) > 1 {
			suffix = " [via " + res.EngineUsed + "]"
		} else {
			suffix = " [" + res.EngineUsed + "]"
		}
	}
	return fmt.Sprintf("  %s✓ %-10s %-28s pipe %6.2f m  %s%s%s",
		lr.c(colorGreen), "done", res.Name, res.PipeLength, dur, suffix, lr.c(colorReset))
}

func (lr *LiveReporter) formatBlocked(res *batch.Result) string {
	info := "no license seat"
	if !res.RetryAt.IsZero() {
		remaining := time.Until(res.RetryAt).Truncate(time.Minute)
		if remaining > 0 {
			info = fmt.Sprintf("retry in %s", remaining)
		}
	}
	return fmt.Sprintf("  %s⏸ %-10s %-28s %s%s",
		lr.c(colorYellow), "license", res.Name, info, lr.c(colorReset))
}

func (lr *LiveReporter) progressLine(done, active, failed, blocked, queued int) string {
	parts := []string{}
	if done > 0 {
		parts = append(parts, fmt.Sprintf("%s%d done%s", lr.c(colorGreen), done, lr.c(colorReset)))
	}
	if active > 0 {
		parts = append(parts, fmt.Sprintf("%s%d running%s", lr.c(colorCyan), active, lr.c(colorReset)))
	}
	if failed > 0 {
		parts = append(parts, fmt.Sprintf("%s%d failed%s", lr.c(colorRed), failed, lr.c(colorReset)))
	}
	if blocked > 0 {
		parts = append(parts, fmt.Sprintf("%s%d license-blocked%s", lr.c(colorYellow), blocked, lr.c(colorReset)))
	}
	if queued > 0 {
		parts = append(parts, fmt.Sprintf("%s%d queued%s", lr.c(colorDim), queued, lr.c(colorReset)))
	}
	return fmt.Sprintf("  progress: %s", strings.Join(parts, ", "))
}

func (lr *LiveReporter) c(code string) string {
	if !lr.color {
		return ""
	}
	return code
}
