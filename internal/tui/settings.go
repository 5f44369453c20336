package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/ozgurcan/studyr/internal/engine"
	"github.com/ozgurcan/studyr/internal/model"
)

type settingsModel struct {
	engine *engine.Engine
	width  int
	height int

	settings model.Settings
	profiles model.ProfileIndex
	cursor   int // selection in the profile list

	formActive bool
	form       *huh.Form
	formType   string // "settings", "profile"

	// Form values as pointers (survive value copies)
	focusMin    *string
	shortMin    *string
	longMin     *string
	interval    *string
	autoAdvance *bool
	goalHours   *string
	weekStart   *string
	profileName *string
}

func newSettingsModel(e *engine.Engine) settingsModel {
	fm, sm, lm, iv := "", "", "", ""
	gh, ws, pn := "", "", ""
	aa := false
	return settingsModel{
		engine:      e,
		focusMin:    &fm,
		shortMin:    &sm,
		longMin:     &lm,
		interval:    &iv,
		autoAdvance: &aa,
		goalHours:   &gh,
		weekStart:   &ws,
		profileName: &pn,
	}
}

func (m *settingsModel) setSize(w, h int) {
	m.width = w
	m.height = h
}

func (m settingsModel) refresh() tea.Cmd {
	return func() tea.Msg {
		return settingsDataMsg{data: m.engine.Data(), profiles: m.engine.Profiles()}
	}
}

func (m settingsModel) update(msg tea.Msg) (settingsModel, tea.Cmd) {
	if m.formActive && m.form != nil {
		return m.updateForm(msg)
	}

	switch msg := msg.(type) {
	case settingsDataMsg:
		m.settings = msg.data.Settings
		m.profiles = msg.profiles
		if m.cursor >= len(m.profiles.Profiles) {
			m.cursor = max(0, len(m.profiles.Profiles)-1)
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Edit), key.Matches(msg, keys.Enter):
			if key.Matches(msg, keys.Enter) && m.cursor < len(m.profiles.Profiles) {
				return m.switchProfile()
			}
			return m.showSettingsForm()
		case key.Matches(msg, keys.New):
			return m.showProfileForm()
		case key.Matches(msg, keys.Delete):
			if m.cursor < len(m.profiles.Profiles) {
				if err := m.engine.DeleteProfile(m.profiles.Profiles[m.cursor].ID); err != nil {
					return m, errStatus(err)
				}
				return m, m.refresh()
			}
		case key.Matches(msg, keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, keys.Down):
			if m.cursor < len(m.profiles.Profiles)-1 {
				m.cursor++
			}
		}
	}
	return m, nil
}

func (m settingsModel) switchProfile() (settingsModel, tea.Cmd) {
	p := m.profiles.Profiles[m.cursor]
	if err := m.engine.SwitchProfile(p.ID); err != nil {
		return m, errStatus(err)
	}
	return m, tea.Batch(m.refresh(), func() tea.Msg {
		return statusMsg{text: "Switched to profile " + p.Name}
	})
}

func (m settingsModel) showSettingsForm() (settingsModel, tea.Cmd) {
	*m.focusMin = secsToMin(m.settings.FocusSeconds)
	*m.shortMin = secsToMin(m.settings.ShortBreakSeconds)
	*m.longMin = secsToMin(m.settings.LongBreakSeconds)
	*m.interval = strconv.Itoa(m.settings.LongBreakInterval)
	*m.autoAdvance = m.settings.AutoAdvance
	*m.goalHours = secsToHours(m.settings.DailyGoalSeconds)
	*m.weekStart = m.settings.WeekStart
	m.formType = "settings"

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Focus length (min)").Value(m.focusMin),
			huh.NewInput().Title("Short break (min)").Value(m.shortMin),
			huh.NewInput().Title("Long break (min)").Value(m.longMin),
			huh.NewInput().Title("Focus phases per long break").Value(m.interval),
			huh.NewConfirm().Title("Auto-advance phases").Value(m.autoAdvance),
		).Title("Pomodoro"),
		huh.NewGroup(
			huh.NewInput().Title("Daily goal (hours)").Value(m.goalHours),
			huh.NewSelect[string]().Title("Week starts on").
				Options(
					huh.NewOption("Monday", "monday"),
					huh.NewOption("Sunday", "sunday"),
				).Value(m.weekStart),
		).Title("General"),
	).WithShowHelp(true).WithShowErrors(true)

	m.formActive = true
	return m, m.form.Init()
}

func (m settingsModel) showProfileForm() (settingsModel, tea.Cmd) {
	*m.profileName = ""
	m.formType = "profile"

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Profile Name").Value(m.profileName),
		),
	).WithShowHelp(true).WithShowErrors(true)

	m.formActive = true
	return m, m.form.Init()
}

func (m settingsModel) updateForm(msg tea.Msg) (settingsModel, tea.Cmd) {
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
		switch m.formType {
		case "settings":
			return m.saveSettings()
		case "profile":
			name := strings.TrimSpace(*m.profileName)
			if name == "" {
				return m, m.refresh()
			}
			if _, err := m.engine.CreateProfile(name); err != nil {
				return m, errStatus(err)
			}
			return m, m.refresh()
		}
	}

	return m, cmd
}

// saveSettings parses the form fields; the engine clamps anything that is
// still out of range.
func (m settingsModel) saveSettings() (settingsModel, tea.Cmd) {
	s := m.settings
	s.FocusSeconds = minToSecs(*m.focusMin, s.FocusSeconds)
	s.ShortBreakSeconds = minToSecs(*m.shortMin, s.ShortBreakSeconds)
	s.LongBreakSeconds = minToSecs(*m.longMin, s.LongBreakSeconds)
	if n, err := strconv.Atoi(strings.TrimSpace(*m.interval)); err == nil {
		s.LongBreakInterval = n
	}
	s.AutoAdvance = *m.autoAdvance
	s.DailyGoalSeconds = hoursToSecs(*m.goalHours, s.DailyGoalSeconds)
	s.WeekStart = *m.weekStart

	if err := m.engine.UpdateSettings(s); err != nil {
		return m, errStatus(err)
	}
	return m, m.refresh()
}

func (m settingsModel) view() string {
	w := m.width - 4

	if m.formActive && m.form != nil {
		title := titleStyle.Render("Settings")
		if m.formType == "profile" {
			title = titleStyle.Render("New Profile")
		}
		return panelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, "", m.form.View()),
		)
	}

	var rows []string
	rows = append(rows, titleStyle.Render("Settings"))
	rows = append(rows, "")

	entries := []struct{ label, value string }{
		{"Focus length", fmt.Sprintf("%s min", secsToMin(m.settings.FocusSeconds))},
		{"Short break", fmt.Sprintf("%s min", secsToMin(m.settings.ShortBreakSeconds))},
		{"Long break", fmt.Sprintf("%s min", secsToMin(m.settings.LongBreakSeconds))},
		{"Long break interval", strconv.Itoa(m.settings.LongBreakInterval)},
		{"Auto-advance", boolLabel(m.settings.AutoAdvance)},
		{"Daily goal", fmt.Sprintf("%s hours", secsToHours(m.settings.DailyGoalSeconds))},
		{"Week starts on", m.settings.WeekStart},
	}
	for _, e := range entries {
		label := lipgloss.NewStyle().Width(24).Render(e.label)
		rows = append(rows, fmt.Sprintf("  %s %s", label, highlightStyle.Render(e.value)))
	}

	rows = append(rows, "")
	rows = append(rows, subtitleStyle.Render("Profiles"))
	for i, p := range m.profiles.Profiles {
		cursor := "  "
		style := normalItemStyle
		if i == m.cursor {
			cursor = "> "
			style = selectedItemStyle
		}
		marker := "  "
		if p.ID == m.profiles.ActiveID {
			marker = successStyle.Render("● ")
		}
		rows = append(rows, style.Render(cursor+marker+p.Name))
	}

	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  e: edit settings  enter: switch profile  n: new profile  d: delete profile"))

	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func boolLabel(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func secsToMin(secs int) string {
	return strconv.Itoa(secs / 60)
}

func secsToHours(secs int64) string {
	return fmt.Sprintf("%.1f", float64(secs)/3600)
}

// minToSecs parses a minute count, keeping the previous value on bad input.
func minToSecs(s string, prev int) int {
	if mins, err := strconv.Atoi(strings.TrimSpace(s)); err == nil && mins > 0 {
		return mins * 60
	}
	return prev
}

func hoursToSecs(s string, prev int64) int64 {
	if hours, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil && hours > 0 {
		return int64(hours * 3600)
	}
	return prev
}
