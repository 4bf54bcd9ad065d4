// Package reporter renders batch progress and outcomes: plain text,
// results.csv sentences, JSON reports, a live ticker and a bubbletea
// TUI.
package reporter

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dikeworks/floxrun/internal/batch"
)

const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorDim    = "\033[2m"
)

// TextReporter writes human-readable output to a writer.
type TextReporter struct {
	w     io.Writer
	color bool
}

// NewTextReporter creates a text reporter. If w is nil, defaults to
// os.Stdout. color enables ANSI codes.
func NewTextReporter(w io.Writer, color bool) *TextReporter {
	if w == nil {
		w = os.Stdout
	}
	return &TextReporter{w: w, color: color}
}

// PrintHeader writes the initial banner.
func (r *TextReporter) PrintHeader(total int, engine string) {
	fmt.Fprintf(r.w, "floxrun — %d scenarios, engine %s\n\n", total, engine)
}

// PrintStatus writes a snapshot of all scenario states.
func (r *TextReporter) PrintStatus(results map[string]*batch.Result) {
	var active, completed, failed, skipped, noModel, licenseBlocked, pending []*batch.Result

	for _, name := range sortedNames(results) {
		res := results[name]
		switch res.State {
		case batch.StateBuilding, batch.StateCalculating:
			active = append(active, res)
		case batch.StateCompleted:
			completed = append(completed, res)
		case batch.StateFailed:
			failed = append(failed, res)
		case batch.StateSkipped:
			skipped = append(skipped, res)
		case batch.StateNoModel:
			noModel = append(noModel, res)
		case batch.StateLicenseBlocked:
			licenseBlocked = append(licenseBlocked, res)
		default:
			pending = append(pending, res)
		}
	}

	total := len(results)

	r.printSection("RUNNING", colorCyan, active, total, func(res *batch.Result) string {
		elapsed := time.Since(res.StartedAt).Truncate(time.Second)
		msg := res.LastMsg
		if msg == "" {
			msg = strings.ToLower(res.State.String())
		}
		return fmt.Sprintf("    %-28s %-40s %s", res.Name, msg, elapsed)
	})

	r.printSection("COMPLETED", colorGreen, completed, total, func(res *batch.Result) string {
		dur := res.Duration.Truncate(time.Second)
		return fmt.Sprintf("    %-28s pipe length %6.2f m  %s  ✓%s", res.Name, res.PipeLength, dur, engineSuffix(res))
	})

	r.printSection("FAILED", colorRed, failed, total, func(res *batch.Result) string {
		dur := res.Duration.Truncate(time.Second)
		return fmt.Sprintf("    %-28s %s  ✗ %s%s", res.Name, dur, res.Error, engineSuffix(res))
	})

	if len(noModel) > 0 {
		fmt.Fprintf(r.w, "  %sNO MODEL  [%d/%d]%s\n", r.c(colorYellow), len(noModel), total, r.c(colorReset))
		for _, res := range noModel {
			fmt.Fprintf(r.w, "    %-28s  (%s)\n", res.Name, res.Error)
		}
		fmt.Fprintln(r.w)
	}

	if len(licenseBlocked) > 0 {
		fmt.Fprintf(r.w, "  %sLICENSE BLOCKED  [%d/%d]%s\n", r.c(colorYellow), len(licenseBlocked), total, r.c(colorReset))
		for _, res := range licenseBlocked {
			info := "no seat available"
			if !res.RetryAt.IsZero() {
				remaining := time.Until(res.RetryAt).Truncate(time.Minute)
				if remaining > 0 {
					info = fmt.Sprintf("retry in %s", remaining)
				} else {
					info = fmt.Sprintf("retry after %s", res.RetryAt.Format(time.Kitchen))
				}
			}
			fmt.Fprintf(r.w, "    %-28s  %s⏸ %s%s\n", res.Name, r.c(colorYellow), info, r.c(colorReset))
		}
		fmt.Fprintln(r.w)
	}

	if len(skipped) > 0 {
		fmt.Fprintf(r.w, "  %sSKIPPED  [%d/%d]%s\n", r.c(colorYellow), len(skipped), total, r.c(colorReset))
		for _, res := range skipped {
			fmt.Fprintf(r.w, "    %s%-28s%s  (%s)\n", r.c(colorDim), res.Name, r.c(colorReset), res.Error)
		}
		fmt.Fprintln(r.w)
	}

	if len(pending) > 0 {
		fmt.Fprintf(r.w, "  %sPENDING  [%d/%d]%s\n", r.c(colorDim), len(pending), total, r.c(colorReset))
		for _, res := range pending {
			fmt.Fprintf(r.w, "    %s%-28s%s\n", r.c(colorDim), res.Name, r.c(colorReset))
		}
		fmt.Fprintln(r.w)
	}
}

// PrintSummary writes the final summary line.
func (r *TextReporter) PrintSummary(report *batch.RunReport) {
	fmt.Fprintf(r.w, "\n%s--- Summary ---%s\n", r.c(colorCyan), r.c(colorReset))
	fmt.Fprintf(r.w, "Total: %d  ", report.Total)
	fmt.Fprintf(r.w, "%sCompleted: %d%s  ", r.c(colorGreen), report.Completed, r.c(colorReset))
	fmt.Fprintf(r.w, "%sFailed: %d%s  ", r.c(colorRed), report.Failed, r.c(colorReset))
	fmt.Fprintf(r.w, "%sSkipped: %d%s  ", r.c(colorYellow), report.Skipped, r.c(colorReset))
	if report.NoModel > 0 {
		fmt.Fprintf(r.w, "%sNo model: %d%s  ", r.c(colorYellow), report.NoModel, r.c(colorReset))
	}
	if report.LicenseBlocked > 0 {
		fmt.Fprintf(r.w, "%sLicense blocked: %d%s  ", r.c(colorYellow), report.LicenseBlocked, r.c(colorReset))
	}
	fmt.Fprintf(r.w, "Duration: %s", report.TotalDuration.Truncate(time.Second))
	if report.LicenseBlocked > 0 && !report.RetryAt.IsZero() {
		remaining := time.Until(report.RetryAt).Truncate(time.Minute)
		if remaining > 0 {
			fmt.Fprintf(r.w, "  (license pool frees in %s)", remaining)
		}
	}
	fmt.Fprintln(r.w)
}

// SkippedInfo describes a scenario skipped due to persistent state.
type SkippedInfo struct {
	Name   string
	Reason string
}

// PrintSkippedByState writes the list of scenarios skipped due to
// persistent state.
func (r *TextReporter) PrintSkippedByState(skipped []SkippedInfo) {
	fmt.Fprintf(r.w, "%sSkipped by state:%s\n", r.c(colorDim), r.c(colorReset))
	for _, s := range skipped {
		fmt.Fprintf(r.w, "  %s%-30s%s  %s\n", r.c(colorDim), s.Name, r.c(colorReset), s.Reason)
	}
	fmt.Fprintln(r.w)
}

// PrintParseIssues writes per-record conversion problems.
func (r *TextReporter) PrintParseIssues(issues []string) {
	fmt.Fprintf(r.w, "%sRecords skipped during load:%s\n", r.c(colorYellow), r.c(colorReset))
	for _, line := range issues {
		fmt.Fprintf(r.w, "  %s\n", line)
	}
	fmt.Fprintln(r.w)
}

// PrintDryRun writes the execution plan without running anything.
func (r *TextReporter) PrintDryRun(jobs []*batch.Job) {
	fmt.Fprint(r.w, "Execution plan (dry-run):\n\n")
	for i, job := range jobs {
		sc := job.Scenario
		fmt.Fprintf(r.w, "  %d. [dp %d] %s\n", i+1, sc.Dijkpaal, sc.Name)
		fmt.Fprintf(r.w, "     exit point x=%.2f, norm water level %.2f m NAP\n\n", sc.ExitPointX, sc.NormWaterLevel)
	}
}

func (r *TextReporter) printSection(label, color string, items []*batch.Result, total int, formatter func(*batch.Result) string) {
	fmt.Fprintf(r.w, "  %s%s  [%d/%d]%s\n", r.c(color), label, len(items), total, r.c(colorReset))
	for _, res := range items {
		fmt.Fprintln(r.w, formatter(res))
	}
	fmt.Fprintln(r.w)
}

func (r *TextReporter) c(code string) string {
	if !r.color {
		return ""
	}
	return code
}

// engineSuffix returns engine/cascade info for display.
// Completed on the default engine: " (dgeoflow-2024)"
// Completed via fallback: " (via dgeoflow-2023)"
// Failed after cascade: " (tried dgeoflow-2024→dgeoflow-2023)"
func engineSuffix(res *batch.Result) string {
	if len(res.Attempts) > 1 {
		if res.State == batch.StateCompleted && res.EngineUsed != "" {
			return fmt.Sprintf(" (via %s)", res.EngineUsed)
		}
		var tried []string
		for _, a := range res.Attempts {
			tried = append(tried, a.Engine)
		}
		return fmt.Sprintf(" (tried %s)", strings.Join(tried, "→"))
	}
	if res.EngineUsed != "" {
		return fmt.Sprintf(" (%s)", res.EngineUsed)
	}
	return ""
}

func sortedNames(results map[string]*batch.Result) []string {
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
