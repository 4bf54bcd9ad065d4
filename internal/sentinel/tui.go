package sentinel

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dikeworks/floxrun/internal/batch"
)

type tuiTickMsg time.Time

// DashboardModel is the Bubbletea model for the sentinel dashboard.
type DashboardModel struct {
	state    *State
	snapshot Snapshot
	tab      int // 0=overview, 1=current batch, 2=history
	scroll   int
	frame    int
	width    int
	height   int
	cancelFn func()
}

// NewDashboardModel creates a new sentinel dashboard model.
func NewDashboardModel(state *State, cancelFn func()) DashboardModel {
	return DashboardModel{
		state:    state,
		cancelFn: cancelFn,
	}
}

// Init implements tea.Model.
func (m DashboardModel) Init() tea.Cmd {
	return tuiTickCmd()
}

func tuiTickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return tuiTickMsg(t)
	})
}

// Update implements tea.Model.
func (m DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.cancelFn != nil {
				m.cancelFn()
			}
			return m, tea.Quit
		case "1":
			m.tab = 0
			m.scroll = 0
		case "2":
			m.tab = 1
			m.scroll = 0
		case "3":
			m.tab = 2
			m.scroll = 0
		case "tab":
			m.tab = (m.tab + 1) % 3
			m.scroll = 0
		case "j", "down":
			m.scroll++
		case "k", "up":
			if m.scroll > 0 {
				m.scroll--
			}
		case "g":
			m.scroll = 0
		}

	case tuiTickMsg:
		m.snapshot = m.state.Snapshot()
		m.frame++
		return m, tuiTickCmd()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	}
	return m, nil
}

// View implements tea.Model.
func (m DashboardModel) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	b.WriteString(m.renderTabs())
	b.WriteString("\n\n")

	contentHeight := m.height - 7 // header + tabs + footer
	if contentHeight < 3 {
		contentHeight = 3
	}
	content := m.renderContent()
	lines := strings.Split(content, "\n")

	// apply scroll
	if m.scroll > len(lines)-contentHeight {
		m.scroll = max(0, len(lines)-contentHeight)
	}
	end := m.scroll + contentHeight
	if end > len(lines) {
		end = len(lines)
	}
	visible := lines[m.scroll:end]
	b.WriteString(strings.Join(visible, "\n"))

	// pad to fill screen
	for i := len(visible); i < contentHeight; i++ {
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.renderFooter())

	return b.String()
}

func (m DashboardModel) renderHeader() string {
	snap := m.snapshot
	uptime := time.Since(snap.StartedAt).Round(time.Second)

	spinner := ""
	if snap.Phase == PhaseValidating || snap.Phase == PhaseRunning {
		spinner = spinnerChars[m.frame%len(spinnerChars)] + " "
	}

	phase := phaseStyle.Render(snap.Phase.String())
	if snap.PhaseMsg != "" {
		phase += " " + dimStyle.Render("("+snap.PhaseMsg+")")
	}

	return headerStyle.Render("floxrun sentinel") +
		dimStyle.Render(fmt.Sprintf(" — %s — %d datasets", uptime, snap.TotalDatasets)) +
		"\n" + spinner + phase
}

func (m DashboardModel) renderTabs() string {
	tabs := []string{"Overview", "Current Batch", "History"}
	var parts []string
	for i, name := range tabs {
		label := fmt.Sprintf(" %d %s ", i+1, name)
		if i == m.tab {
			parts = append(parts, tabActiveStyle.Render(label))
		} else {
			parts = append(parts, tabStyle.Render(label))
		}
	}
	return strings.Join(parts, "  ")
}

func (m DashboardModel) renderContent() string {
	switch m.tab {
	case 0:
		return m.renderOverview()
	case 1:
		return m.renderCurrentBatch()
	case 2:
		return m.renderHistory()
	default:
		return ""
	}
}

func (m DashboardModel) renderOverview() string {
	snap := m.snapshot
	var b strings.Builder

	b.WriteString(fmt.Sprintf("  Scenarios completed: %s  failed: %s  Datasets: %d\n",
		doneStyle.Render(fmt.Sprintf("%d", snap.TotalCompleted)),
		failedStyle.Render(fmt.Sprintf("%d", snap.TotalFailed)),
		snap.TotalDatasets))

	// license cooldown timer
	if !snap.RetryAt.IsZero() {
		remaining := time.Until(snap.RetryAt).Round(time.Second)
		if remaining > 0 {
			b.WriteString(fmt.Sprintf("  License pool frees in: %s\n", warnStyle.Render(remaining.String())))
		}
	}

	// engine health
	if len(snap.Engines) > 0 {
		b.WriteString("\n  Engines:\n")
		for _, e := range snap.Engines {
			status := doneStyle.Render("ok")
			if e.Blacklisted {
				status = failedStyle.Render("license-blocked until " + e.BlockedUntil.Format("15:04"))
			}
			b.WriteString(fmt.Sprintf("    %s: %s\n", e.Name, status))
		}
	}

	// recent datasets
	if len(snap.History) > 0 {
		b.WriteString("\n  Recent datasets:\n")
		count := 5
		if len(snap.History) < count {
			count = len(snap.History)
		}
		for _, h := range snap.History[:count] {
			status := doneStyle.Render("ok")
			if h.Error != "" {
				status = failedStyle.Render("error")
			} else if h.Failed > 0 {
				status = failedStyle.Render(fmt.Sprintf("%d failed", h.Failed))
			}
			b.WriteString(fmt.Sprintf("    %s  %s  %d/%d scenarios  %s  %s\n",
				h.Dataset, h.StartedAt.Format("15:04:05"),
				h.Completed, h.Scenarios,
				h.Duration.Round(time.Second), status))
		}
	}

	return b.String()
}

func (m DashboardModel) renderCurrentBatch() string {
	snap := m.snapshot
	if snap.CurrentRun == nil || snap.Phase != PhaseRunning {
		return "  " + dimStyle.Render("No active batch")
	}

	run := snap.CurrentRun
	var b strings.Builder

	var running, completed, failed, blocked int
	for _, r := range run.Results {
		switch r.State {
		case batch.StateBuilding, batch.StateCalculating:
			running++
		case batch.StateCompleted:
			completed++
		case batch.StateFailed, batch.StateNoModel:
			failed++
		case batch.StateLicenseBlocked:
			blocked++
		}
	}
	queued := run.Total - running - completed - failed - blocked

	elapsed := time.Since(run.StartedAt).Round(time.Second)
	b.WriteString(fmt.Sprintf("  %s — %d/%d done  %s running  %s failed  %d queued  %s elapsed\n\n",
		run.Dataset,
		completed, run.Total,
		runStyle.Render(fmt.Sprintf("%d", running)),
		failedStyle.Render(fmt.Sprintf("%d", failed)),
		queued, elapsed))

	for name, r := range run.Results {
		var icon, style string
		switch r.State {
		case batch.StateCompleted:
			icon = "✓"
			style = doneStyle.Render(fmt.Sprintf("%-10s", "done"))
		case batch.StateFailed, batch.StateNoModel:
			icon = "✗"
			style = failedStyle.Render(fmt.Sprintf("%-10s", "FAILED"))
		case batch.StateBuilding, batch.StateCalculating:
			icon = spinnerChars[m.frame%len(spinnerChars)]
			style = runStyle.Render(fmt.Sprintf("%-10s", strings.ToLower(r.State.String())))
		case batch.StateLicenseBlocked:
			icon = "⏸"
			style = warnStyle.Render(fmt.Sprintf("%-10s", "license"))
		default:
			icon = "─"
			style = dimStyle.Render(fmt.Sprintf("%-10s", "queued"))
		}

		info := ""
		if r.Duration > 0 {
			info = dimStyle.Render(r.Duration.Round(time.Second).String())
		}
		if r.EngineUsed != "" {
			info += " " + dimStyle.Render(r.EngineUsed)
		}

		b.WriteString(fmt.Sprintf("  %s %s %-30s %s\n", icon, style, name, info))
	}

	return b.String()
}

func (m DashboardModel) renderHistory() string {
	snap := m.snapshot
	if len(snap.History) == 0 {
		return "  " + dimStyle.Render("No processed datasets")
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("  %-28s %-10s %-10s %-8s %-10s %s\n",
		"DATASET", "TIME", "SCENARIOS", "DONE", "DURATION", "STATUS"))
	b.WriteString("  " + strings.Repeat("─", 76) + "\n")

	for _, h := range snap.History {
		status := doneStyle.Render("ok")
		if h.Error != "" {
			status = failedStyle.Render("error")
		} else if h.Failed > 0 {
			status = failedStyle.Render(fmt.Sprintf("%d fail", h.Failed))
		}
		if h.LicenseBlocked > 0 {
			status += " " + warnStyle.Render(fmt.Sprintf("%d lic", h.LicenseBlocked))
		}

		b.WriteString(fmt.Sprintf("  %-28s %-10s %-10d %-8d %-10s %s\n",
			h.Dataset,
			h.StartedAt.Format("15:04:05"),
			h.Scenarios,
			h.Completed,
			h.Duration.Round(time.Second),
			status))
	}

	return b.String()
}

func (m DashboardModel) renderFooter() string {
	var engines []string
	for _, e := range m.snapshot.Engines {
		status := doneStyle.Render("ok")
		if e.Blacklisted {
			status = failedStyle.Render("bl")
		}
		engines = append(engines, fmt.Sprintf("%s(%s)", e.Name, status))
	}

	footer := ""
	if len(engines) > 0 {
		footer = dimStyle.Render("engines: "+strings.Join(engines, " ")) + "\n"
	}
	footer += helpStyle.Render("1-3: tabs  tab: next  j/k: scroll  g: top  q: quit")
	return footer
}
