package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/ozgurcan/studyr/internal/engine"
	"github.com/ozgurcan/studyr/internal/export"
	"github.com/ozgurcan/studyr/internal/model"
)

// App is the root Bubble Tea model.
type App struct {
	engine *engine.Engine
	width  int
	height int

	activeView    viewState
	showHelp      bool
	exportPicking bool
	exportCursor  int

	dashboard dashboardModel
	subjects  subjectsModel
	planner   plannerModel
	stats     statsModel
	settings  settingsModel

	help   help.Model
	status string
}

func NewApp(e *engine.Engine) App {
	h := help.New()
	h.ShowAll = false

	return App{
		engine:     e,
		activeView: viewDashboard,
		dashboard:  newDashboardModel(e),
		subjects:   newSubjectsModel(e),
		planner:    newPlannerModel(e),
		stats:      newStatsModel(e),
		settings:   newSettingsModel(e),
		help:       h,
	}
}

func (a App) Init() tea.Cmd {
	return tea.Batch(
		a.dashboard.Init(),
		tickCmd(),
		waitForChange(a.engine),
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// waitForChange blocks on the engine's cross-process change channel and wakes
// the UI when another instance wrote the active profile's data.
func waitForChange(e *engine.Engine) tea.Cmd {
	return func() tea.Msg {
		<-e.Changes()
		return storeChangedMsg{}
	}
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		contentHeight := a.height - 4 // header + footer
		a.dashboard.setSize(a.width, contentHeight)
		a.subjects.setSize(a.width, contentHeight)
		a.planner.setSize(a.width, contentHeight)
		a.stats.setSize(a.width, contentHeight)
		a.settings.setSize(a.width, contentHeight)
		return a, nil

	case tea.KeyMsg:
		if a.exportPicking {
			return a.updateExportPicker(msg)
		}

		// If a child view is capturing input (form or picker), delegate first.
		if a.isFormActive() {
			return a.updateActiveView(msg)
		}

		switch {
		case key.Matches(msg, keys.Export):
			a.exportPicking = true
			a.exportCursor = 0
			return a, nil
		case key.Matches(msg, keys.Quit):
			return a, tea.Quit
		case key.Matches(msg, keys.Help):
			a.showHelp = !a.showHelp
			a.help.ShowAll = a.showHelp
			return a, nil
		case key.Matches(msg, keys.Profiles):
			a.activeView = viewSettings
			return a, a.settings.refresh()
		case key.Matches(msg, keys.Tab1):
			a.activeView = viewDashboard
			return a, a.dashboard.refresh()
		case key.Matches(msg, keys.Tab2):
			a.activeView = viewSubjects
			return a, a.subjects.refresh()
		case key.Matches(msg, keys.Tab3):
			a.activeView = viewPlanner
			return a, a.planner.refresh()
		case key.Matches(msg, keys.Tab4):
			a.activeView = viewStats
			return a, a.stats.refresh()
		case key.Matches(msg, keys.Tab5):
			a.activeView = viewSettings
			return a, a.settings.refresh()
		case key.Matches(msg, keys.Tab):
			a.activeView = (a.activeView + 1) % 5
			return a, a.refreshCurrentView()
		}

	case tickMsg:
		cmds = append(cmds, tickCmd())
		if cmd := a.tickEngine(); cmd != nil {
			cmds = append(cmds, cmd)
		}
		var cmd tea.Cmd
		a.dashboard, cmd = a.dashboard.update(msg)
		if cmd != nil {
			cmds = append(cmds, cmd)
		}
		return a, tea.Batch(cmds...)

	case dashboardDataMsg:
		// Always route to the dashboard: the footer's timer indicator reads
		// its state whichever tab is active.
		var cmd tea.Cmd
		a.dashboard, cmd = a.dashboard.update(msg)
		return a, cmd

	case storeChangedMsg:
		if err := a.engine.Adopt(); err != nil {
			a.status = fmt.Sprintf("Reload error: %v", err)
		} else {
			a.status = "Data updated by another instance"
		}
		return a, tea.Batch(waitForChange(a.engine), a.refreshAll())

	case statusMsg:
		a.status = msg.text
		return a, nil

	case timerStartedMsg:
		a.status = "Timer started"
		return a, nil

	case timerStoppedMsg:
		if msg.recorded {
			a.status = "Session saved: " + formatSeconds(msg.session.DurationSeconds)
		}
		return a, nil

	case exportDoneMsg:
		a.status = "Exported to " + msg.path
		a.exportPicking = false
		return a, nil
	}

	return a.updateActiveView(msg)
}

// tickEngine advances interval cycling once per second and surfaces phase
// transitions as status messages.
func (a *App) tickEngine() tea.Cmd {
	res, err := a.engine.Tick()
	if err != nil {
		a.status = fmt.Sprintf("Timer error: %v", err)
		return nil
	}
	if !res.Transition {
		return nil
	}
	switch res.To {
	case model.PhaseFocus:
		a.status = "Break over, back to focus \a"
	case model.PhaseLongBreak:
		a.status = "Focus done, take a long break \a"
	default:
		a.status = "Focus done, take a break \a"
	}
	return a.dashboard.refresh()
}

func (a App) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch a.activeView {
	case viewDashboard:
		a.dashboard, cmd = a.dashboard.update(msg)
	case viewSubjects:
		a.subjects, cmd = a.subjects.update(msg)
	case viewPlanner:
		a.planner, cmd = a.planner.update(msg)
	case viewStats:
		a.stats, cmd = a.stats.update(msg)
	case viewSettings:
		a.settings, cmd = a.settings.update(msg)
	}
	return a, cmd
}

func (a App) isFormActive() bool {
	switch a.activeView {
	case viewDashboard:
		return a.dashboard.formActive || a.dashboard.picking != pickNone
	case viewSubjects:
		return a.subjects.formActive
	case viewPlanner:
		return a.planner.formActive
	case viewSettings:
		return a.settings.formActive
	}
	return false
}

func (a App) refreshCurrentView() tea.Cmd {
	switch a.activeView {
	case viewDashboard:
		return a.dashboard.refresh()
	case viewSubjects:
		return a.subjects.refresh()
	case viewPlanner:
		return a.planner.refresh()
	case viewStats:
		return a.stats.refresh()
	case viewSettings:
		return a.settings.refresh()
	}
	return nil
}

func (a App) refreshAll() tea.Cmd {
	return tea.Batch(
		a.dashboard.refresh(),
		a.subjects.refresh(),
		a.planner.refresh(),
		a.stats.refresh(),
		a.settings.refresh(),
	)
}

func (a App) View() string {
	if a.width == 0 {
		return "Loading..."
	}

	header := a.renderHeader()
	footer := a.renderFooter()

	var content string
	switch a.activeView {
	case viewDashboard:
		content = a.dashboard.view()
	case viewSubjects:
		content = a.subjects.view()
	case viewPlanner:
		content = a.planner.view()
	case viewStats:
		content = a.stats.view()
	case viewSettings:
		content = a.settings.view()
	}

	headerHeight := lipgloss.Height(header)
	footerHeight := lipgloss.Height(footer)
	contentHeight := a.height - headerHeight - footerHeight
	if contentHeight < 1 {
		contentHeight = 1
	}

	if a.exportPicking {
		content = a.renderExportPicker()
	}

	content = lipgloss.NewStyle().
		Width(a.width).
		Height(contentHeight).
		Render(content)

	return lipgloss.JoinVertical(lipgloss.Left, header, content, footer)
}

func (a App) renderHeader() string {
	var tabs []string
	for i, name := range viewNames {
		if viewState(i) == a.activeView {
			tabs = append(tabs, activeTabStyle.Render(name))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(name))
		}
	}

	tabRow := lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...)

	title := lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).Render("studyr")
	profile := mutedStyle.Render(" " + a.activeProfileName())
	gap := a.width - lipgloss.Width(title) - lipgloss.Width(profile) - lipgloss.Width(tabRow) - 4
	if gap < 1 {
		gap = 1
	}
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return headerStyle.Render(
		lipgloss.JoinHorizontal(lipgloss.Bottom, title, profile, spacer, tabRow),
	)
}

func (a App) activeProfileName() string {
	idx := a.engine.Profiles()
	for _, p := range idx.Profiles {
		if p.ID == idx.ActiveID {
			return p.Name
		}
	}
	return ""
}

func (a App) renderFooter() string {
	helpView := a.help.View(keys)

	status := ""
	if a.status != "" {
		status = mutedStyle.Render(" " + a.status)
	}

	// Timer indicator in footer
	timerInfo := ""
	if a.dashboard.isRunning() {
		elapsed := a.dashboard.elapsed()
		if a.dashboard.isPaused() {
			timerInfo = warningStyle.Render(" ⏸ " + formatDuration(elapsed))
		} else {
			timerInfo = successStyle.Render(" ● " + formatDuration(elapsed))
		}
	}

	left := footerStyle.Render(helpView)
	right := timerInfo + status

	gap := a.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return lipgloss.JoinHorizontal(lipgloss.Bottom, left, spacer, right)
}

func (a App) renderExportPicker() string {
	title := titleStyle.Render("Export Format")
	formats := []string{"Sessions CSV", "Full backup (JSON)"}
	var rows []string
	rows = append(rows, title)
	rows = append(rows, "")
	for i, f := range formats {
		cursor := "  "
		style := normalItemStyle
		if i == a.exportCursor {
			cursor = "> "
			style = selectedItemStyle
		}
		rows = append(rows, style.Render(cursor+f))
	}
	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  enter: export  esc: cancel"))

	w := a.width - 4
	return activePanelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (a App) updateExportPicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if a.exportCursor > 0 {
			a.exportCursor--
		}
	case key.Matches(msg, keys.Down):
		if a.exportCursor < 1 {
			a.exportCursor++
		}
	case key.Matches(msg, keys.Enter):
		a.exportPicking = false
		return a, a.doExport(a.exportCursor)
	case key.Matches(msg, keys.Back):
		a.exportPicking = false
	}
	return a, nil
}

func (a App) doExport(format int) tea.Cmd {
	return func() tea.Msg {
		home, _ := os.UserHomeDir()
		dateStr := time.Now().Format("2006-01-02")

		var path string
		if format == 0 {
			path = filepath.Join(home, fmt.Sprintf("studyr-sessions-%s.csv", dateStr))
			if err := export.SessionsToCSV(a.engine.Data(), path); err != nil {
				return statusMsg{text: fmt.Sprintf("CSV error: %v", err), isError: true}
			}
		} else {
			path = filepath.Join(home, fmt.Sprintf("studyr-backup-%s.json", dateStr))
			payload, err := a.engine.Export()
			if err != nil {
				return statusMsg{text: fmt.Sprintf("Export error: %v", err), isError: true}
			}
			if err := os.WriteFile(path, payload, 0o644); err != nil {
				return statusMsg{text: fmt.Sprintf("Export error: %v", err), isError: true}
			}
		}

		return exportDoneMsg{path: path}
	}
}
