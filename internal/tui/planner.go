package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/ozgurcan/studyr/internal/analytics"
	"github.com/ozgurcan/studyr/internal/engine"
	"github.com/ozgurcan/studyr/internal/model"
)

// plannerModel is the daily-task view: today's plan, tomorrow's queue and the
// completion streak that the rollover machinery feeds.
type plannerModel struct {
	engine *engine.Engine
	width  int
	height int

	data   model.UserData
	cursor int

	formActive bool
	form       *huh.Form

	formTitle    *string
	formPriority *string
	formDay      *string // "today" or "tomorrow"
}

func newPlannerModel(e *engine.Engine) plannerModel {
	title, prio, day := "", string(model.PriorityMedium), "today"
	return plannerModel{
		engine:       e,
		formTitle:    &title,
		formPriority: &prio,
		formDay:      &day,
	}
}

func (m *plannerModel) setSize(w, h int) {
	m.width = w
	m.height = h
}

func (m plannerModel) refresh() tea.Cmd {
	return func() tea.Msg {
		return plannerDataMsg{data: m.engine.Data()}
	}
}

// visible returns today's tasks followed by tomorrow's, the order the cursor
// walks them in.
func (m plannerModel) visible() []model.DailyTask {
	today := time.Now().Local().Format("2006-01-02")
	tomorrow := time.Now().Local().AddDate(0, 0, 1).Format("2006-01-02")

	var out []model.DailyTask
	for _, t := range m.data.DailyTasks {
		if t.ScheduledFor == today {
			out = append(out, t)
		}
	}
	for _, t := range m.data.DailyTasks {
		if t.ScheduledFor == tomorrow {
			out = append(out, t)
		}
	}
	return out
}

func (m plannerModel) update(msg tea.Msg) (plannerModel, tea.Cmd) {
	if m.formActive && m.form != nil {
		return m.updateForm(msg)
	}

	switch msg := msg.(type) {
	case plannerDataMsg:
		m.data = msg.data
		if n := len(m.visible()); m.cursor >= n {
			m.cursor = max(0, n-1)
		}
		return m, nil

	case tea.KeyMsg:
		tasks := m.visible()
		switch {
		case key.Matches(msg, keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, keys.Down):
			if m.cursor < len(tasks)-1 {
				m.cursor++
			}
		case key.Matches(msg, keys.New):
			return m.showForm()
		case key.Matches(msg, keys.Toggle):
			if m.cursor < len(tasks) {
				if err := m.engine.ToggleDailyTask(tasks[m.cursor].ID); err != nil {
					return m, errStatus(err)
				}
				return m, m.refresh()
			}
		case key.Matches(msg, keys.Delete):
			if m.cursor < len(tasks) {
				if err := m.engine.DeleteDailyTask(tasks[m.cursor].ID); err != nil {
					return m, errStatus(err)
				}
				return m, m.refresh()
			}
		}
	}
	return m, nil
}

func (m plannerModel) showForm() (plannerModel, tea.Cmd) {
	*m.formTitle = ""
	*m.formPriority = string(model.PriorityMedium)
	*m.formDay = "today"

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Task").Value(m.formTitle),
			huh.NewSelect[string]().Title("Priority").
				Options(
					huh.NewOption("High", string(model.PriorityHigh)),
					huh.NewOption("Medium", string(model.PriorityMedium)),
					huh.NewOption("Low", string(model.PriorityLow)),
				).Value(m.formPriority),
			huh.NewSelect[string]().Title("Planned for").
				Options(
					huh.NewOption("Today", "today"),
					huh.NewOption("Tomorrow", "tomorrow"),
				).Value(m.formDay),
		),
	).WithShowHelp(true).WithShowErrors(true)

	m.formActive = true
	return m, m.form.Init()
}

func (m plannerModel) updateForm(msg tea.Msg) (plannerModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			m.formActive = false
			m.form = nil
			return m, nil
		}
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		m.formActive = false
		title := strings.TrimSpace(*m.formTitle)
		if title == "" {
			return m, m.refresh()
		}
		day := time.Now().Local()
		if *m.formDay == "tomorrow" {
			day = day.AddDate(0, 0, 1)
		}
		if _, err := m.engine.AddDailyTask(title, model.Priority(*m.formPriority), day.Format("2006-01-02")); err != nil {
			return m, errStatus(err)
		}
		return m, m.refresh()
	}

	return m, cmd
}

func (m plannerModel) view() string {
	w := m.width - 4

	if m.formActive && m.form != nil {
		title := titleStyle.Render("Plan Task")
		return panelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, "", m.form.View()),
		)
	}

	now := time.Now()
	today := now.Local().Format("2006-01-02")
	tomorrow := now.Local().AddDate(0, 0, 1).Format("2006-01-02")

	st := m.data.DayStats[today]
	rate := analytics.CompletionRate(st.Completed, st.Total)
	current := analytics.CurrentStreak(m.data.DayStats, now)
	longest := analytics.LongestStreak(m.data.DayStats)

	header := lipgloss.JoinHorizontal(lipgloss.Bottom,
		titleStyle.Render("Planner"), "  ",
		mutedStyle.Render(now.Local().Format("Mon, Jan 02")), "  ",
		highlightStyle.Render(fmt.Sprintf("%d/%d done (%.1f%%)", st.Completed, st.Total, rate)), "  ",
		successStyle.Render(fmt.Sprintf("streak %d", current)),
		mutedStyle.Render(fmt.Sprintf(" (best %d)", longest)),
	)

	var rows []string
	rows = append(rows, header)
	rows = append(rows, "")
	rows = append(rows, subtitleStyle.Render("Today"))

	idx := 0
	todayCount := 0
	for _, t := range m.visible() {
		if t.ScheduledFor != today {
			continue
		}
		rows = append(rows, m.taskRow(idx, t))
		idx++
		todayCount++
	}
	if todayCount == 0 {
		rows = append(rows, mutedStyle.Render("  Nothing planned. Press n to add a task."))
	}

	rows = append(rows, "")
	rows = append(rows, subtitleStyle.Render("Tomorrow"))
	tomorrowCount := 0
	for _, t := range m.visible() {
		if t.ScheduledFor != tomorrow {
			continue
		}
		rows = append(rows, m.taskRow(idx, t))
		idx++
		tomorrowCount++
	}
	if tomorrowCount == 0 {
		rows = append(rows, mutedStyle.Render("  Nothing queued."))
	}

	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  n: new  space: toggle  d: delete"))

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (m plannerModel) taskRow(i int, t model.DailyTask) string {
	cursor := "  "
	style := normalItemStyle
	if i == m.cursor {
		cursor = "> "
		style = selectedItemStyle
	}
	check := "[ ]"
	if t.Completed {
		check = "[x]"
	}
	row := style.Render(fmt.Sprintf("%s%s %-32s", cursor, check, t.Title)) +
		" " + priorityTag(t.Priority)
	if t.IsRolledOver {
		row += warningStyle.Render(fmt.Sprintf("  ↻%d", t.RolloverCount))
	}
	return row
}
