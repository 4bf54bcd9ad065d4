package reporter

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dikeworks/floxrun/internal/batch"
)

// TUI styles
var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	failedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))  // red
	runStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("14")) // cyan
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10")) // green
	blockedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")) // yellow
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))  // gray
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	pauseStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)

type tickMsg time.Time

// TUIModel is the Bubbletea model for the floxrun live display.
type TUIModel struct {
	jobs       []*batch.Job
	getResults func() map[string]*batch.Result
	cancelRun  func() // called on 'q' to cancel the run context

	results      map[string]*batch.Result
	scrollOffset int
	paused       bool
	frame        int
	width        int
	height       int
	done         bool // set when the batch loop finishes
}

// NewTUIModel creates a new TUI model.
func NewTUIModel(jobs []*batch.Job, getResults func() map[string]*batch.Result, cancelRun func()) TUIModel {
	return TUIModel{
		jobs:       jobs,
		getResults: getResults,
		cancelRun:  cancelRun,
		results:    make(map[string]*batch.Result),
	}
}

// Init implements tea.Model.
func (m TUIModel) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m TUIModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.cancelRun != nil {
				m.cancelRun()
			}
			m.done = true
			return m, tea.Quit

		case "p", " ":
			m.paused = !m.paused

		case "j", "down":
			m.scrollDown(1)

		case "k", "up":
			m.scrollUp(1)

		case "g", "home":
			m.scrollOffset = 0

		case "G", "end":
			m.scrollOffset = m.maxScroll()

		case "pgdown":
			m.scrollDown(m.visibleScenarios())

		case "pgup":
			m.scrollUp(m.visibleScenarios())
		}

	case tickMsg:
		if !m.paused {
			m.results = m.getResults()
		}
		m.frame++
		return m, tickCmd()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	}

	return m, nil
}

func (m *TUIModel) scrollDown(n int) {
	m.scrollOffset += n
	if max := m.maxScroll(); m.scrollOffset > max {
		m.scrollOffset = max
	}
}

func (m *TUIModel) scrollUp(n int) {
	m.scrollOffset -= n
	if m.scrollOffset < 0 {
		m.scrollOffset = 0
	}
}

func (m TUIModel) visibleScenarios() int {
	// header(1) + progress(1) + blank(1) + help(1) = 4 reserved lines
	avail := m.height - 4
	if avail < 3 {
		return 3
	}
	return avail
}

func (m TUIModel) maxScroll() int {
	total := len(m.jobs)
	vis := m.visibleScenarios()
	if total <= vis {
		return 0
	}
	return total - vis
}

// View implements tea.Model.
func (m TUIModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder

	total := len(m.jobs)
	var completed, running, failed, blocked, queued int
	for _, res := range m.results {
		switch res.State {
		case batch.StateCompleted:
			completed++
		case batch.StateBuilding, batch.StateCalculating:
			running++
		case batch.StateFailed, batch.StateSkipped, batch.StateNoModel:
			failed++
		case batch.StateLicenseBlocked:
			blocked++
		default:
			queued++
		}
	}
	// scenarios not yet in results are queued
	queued += total - len(m.results)

	header := fmt.Sprintf("floxrun — %d scenarios", total)
	if m.paused {
		header += "  " + pauseStyle.Render("⏸ PAUSED")
	}
	b.WriteString(headerStyle.Render(header))
	b.WriteString("\n")

	b.WriteString(m.progressLine(completed, running, failed, blocked, queued))
	b.WriteString("\n")

	scenarioLines := m.buildScenarioLines()

	// apply scroll window
	vis := m.visibleScenarios()
	start := m.scrollOffset
	end := start + vis
	if end > len(scenarioLines) {
		end = len(scenarioLines)
	}
	if start > len(scenarioLines) {
		start = len(scenarioLines)
	}

	// scroll hints
	if start > 0 {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  ↑ %d more above", start)))
		b.WriteString("\n")
	}

	for i := start; i < end; i++ {
		b.WriteString(scenarioLines[i])
		b.WriteString("\n")
	}

	if end < len(scenarioLines) {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  ↓ %d more below", len(scenarioLines)-end)))
		b.WriteString("\n")
	}

	// pad to fill screen
	used := 2 + (end - start) + 1 // header + progress + scenarios + help
	if start > 0 {
		used++
	}
	if end < len(scenarioLines) {
		used++
	}
	for i := used; i < m.height-1; i++ {
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("  ↑↓/jk: scroll  g/G: top/bottom  p: pause  q: quit"))

	return b.String()
}

func (m TUIModel) buildScenarioLines() []string {
	type entry struct {
		job *batch.Job
		res *batch.Result
	}

	// collect and sort: failed → running → completed → license-blocked → queued
	var failed, running, done, blocked, queued []entry

	for _, job := range m.jobs {
		res := m.results[job.Scenario.Name]
		e := entry{job: job, res: res}

		if res == nil {
			queued = append(queued, e)
			continue
		}

		switch res.State {
		case batch.StateFailed, batch.StateSkipped, batch.StateNoModel:
			failed = append(failed, e)
		case batch.StateBuilding, batch.StateCalculating:
			running = append(running, e)
		case batch.StateCompleted:
			done = append(done, e)
		case batch.StateLicenseBlocked:
			blocked = append(blocked, e)
		default:
			queued = append(queued, e)
		}
	}

	spinner := spinnerFrames[m.frame%len(spinnerFrames)]
	var lines []string

	for _, e := range failed {
		lines = append(lines, m.fmtFailed(e.res))
	}
	for _, e := range running {
		lines = append(lines, m.fmtRunning(e.res, spinner))
	}
	for _, e := range done {
		lines = append(lines, m.fmtDone(e.res))
	}
	for _, e := range blocked {
		lines = append(lines, m.fmtBlocked(e.res))
	}
	for _, e := range queued {
		lines = append(lines, m.fmtQueued(e.job))
	}

	return lines
}

func (m TUIModel) fmtFailed(res *batch.Result) string {
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
	if len(errMsg) > 60 {
		errMsg = errMsg[:60] + "..."
	}
	return failedStyle.Render(fmt.Sprintf("  %s %-10s %-28s %s", icon, label, res.Name, errMsg))
}

func (m TUIModel) fmtRunning(res *batch.Result, spinner string) string {
	label := strings.ToLower(res.State.String())
	elapsed := time.Since(res.StartedAt).Truncate(time.Second)
	msg := res.LastMsg
	if len(msg) > 45 {
		msg = msg[:45] + "..."
	}
	return runStyle.Render(fmt.Sprintf("  %s %-11s %-28s %-8s %s", spinner, label, res.Name, elapsed, msg))
}

func (m TUIModel) fmtDone(res *batch.Result) string {
	dur := res.Duration.Truncate(time.Second)
	suffix := ""
	if res.EngineUsed != "" && len(res.Attempts) > 1 {
		suffix = " [via " + res.EngineUsed + "]"
	}
	return doneStyle.Render(fmt.Sprintf("  ✓ %-10s %-28s pipe %6.2f m  %s%s", "done", res.Name, res.PipeLength, dur, suffix))
}

func (m TUIModel) fmtBlocked(res *batch.Result) string {
	info := "no license seat"
	if !res.RetryAt.IsZero() {
		remaining := time.Until(res.RetryAt).Truncate(time.Minute)
		if remaining > 0 {
			info = fmt.Sprintf("retry in %s", remaining)
		}
	}
	return blockedStyle.Render(fmt.Sprintf("  ⏸ %-10s %-28s %s", "license", res.Name, info))
}

func (m TUIModel) fmtQueued(job *batch.Job) string {
	sc := job.Scenario
	return dimStyle.Render(fmt.Sprintf("  ─ %-10s %-28s dp %d", "queued", sc.Name, sc.Dijkpaal))
}

func (m TUIModel) progressLine(done, running, failed, blocked, queued int) string {
	var parts []string
	if done > 0 {
		parts = append(parts, doneStyle.Render(fmt.Sprintf("%d done", done)))
	}
	if running > 0 {
		parts = append(parts, runStyle.Render(fmt.Sprintf("%d running", running)))
	}
	if failed > 0 {
		parts = append(parts, failedStyle.Render(fmt.Sprintf("%d failed", failed)))
	}
	if blocked > 0 {
		parts = append(parts, blockedStyle.Render(fmt.Sprintf("%d license-blocked", blocked)))
	}
	if queued > 0 {
		parts = append(parts, dimStyle.Render(fmt.Sprintf("%d queued", queued)))
	}
	return fmt.Sprintf("  %s", strings.Join(parts, "  "))
}
