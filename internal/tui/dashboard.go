package tui

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/ozgurcan/studyr/internal/analytics"
	"github.com/ozgurcan/studyr/internal/engine"
	"github.com/ozgurcan/studyr/internal/model"
	"github.com/ozgurcan/studyr/internal/timer"
)

type pickState int

const (
	pickNone pickState = iota
	pickSubject
	pickTask
	pickSwitch
)

type dashboardModel struct {
	engine *engine.Engine
	width  int
	height int

	data   model.UserData
	recent []model.StudySession

	cursor int // selection in the recent list

	picking       pickState
	pickerCursor  int
	pickSubjectID string

	formActive    bool
	form          *huh.Form
	formKind      string // "reflect", "duration"
	formSessionID string

	// Form values as pointers (survive value copies)
	formRating  *string
	formComment *string
	formMinutes *string
}

func newDashboardModel(e *engine.Engine) dashboardModel {
	rating, comment, minutes := string(model.RatingAverage), "", ""
	return dashboardModel{
		engine:      e,
		formRating:  &rating,
		formComment: &comment,
		formMinutes: &minutes,
	}
}

func (d dashboardModel) Init() tea.Cmd {
	return d.refresh()
}

func (d *dashboardModel) setSize(w, h int) {
	d.width = w
	d.height = h
}

func (d dashboardModel) refresh() tea.Cmd {
	return func() tea.Msg {
		return dashboardDataMsg{data: d.engine.Data()}
	}
}

func (d dashboardModel) activeSession() *model.StudySession {
	for i := range d.data.Sessions {
		if d.data.Sessions[i].Active() {
			return &d.data.Sessions[i]
		}
	}
	return nil
}

func (d dashboardModel) isRunning() bool {
	s := d.activeSession()
	return s != nil
}

func (d dashboardModel) isPaused() bool {
	s := d.activeSession()
	return s != nil && s.Status == model.StatusPaused
}

func (d dashboardModel) elapsed() time.Duration {
	return timer.Elapsed(d.data.Timer, time.Now())
}

func (d dashboardModel) update(msg tea.Msg) (dashboardModel, tea.Cmd) {
	if d.formActive && d.form != nil {
		return d.updateForm(msg)
	}

	switch msg := msg.(type) {
	case dashboardDataMsg:
		d.data = msg.data
		d.recent = recentCompleted(msg.data.Sessions, 5)
		if d.cursor >= len(d.recent) {
			d.cursor = max(0, len(d.recent)-1)
		}
		return d, nil

	case tickMsg:
		// Elapsed time is derived from the snapshot on render; the tick only
		// forces a redraw.
		return d, nil

	case tea.KeyMsg:
		if d.picking != pickNone {
			return d.updatePicker(msg)
		}

		switch {
		case key.Matches(msg, keys.Start):
			if d.activeSession() != nil {
				return d, nil
			}
			if len(d.data.Subjects) == 0 {
				return d, func() tea.Msg {
					return statusMsg{text: "No subjects yet. Press 2 to create one.", isError: true}
				}
			}
			d.picking = pickSubject
			d.pickerCursor = 0
			return d, nil

		case key.Matches(msg, keys.Stop):
			return d.stopTimer()

		case key.Matches(msg, keys.Pause):
			return d.togglePause()

		case key.Matches(msg, keys.Switch):
			if s := d.activeSession(); s != nil && s.Status == model.StatusRunning {
				if len(d.openTasks()) == 0 {
					return d, func() tea.Msg {
						return statusMsg{text: "No open tasks to switch to", isError: true}
					}
				}
				d.picking = pickSwitch
				d.pickerCursor = 0
			}
			return d, nil

		case key.Matches(msg, keys.Mode):
			return d.toggleMode()

		case key.Matches(msg, keys.Continue):
			if d.cursor < len(d.recent) {
				if _, err := d.engine.ContinueSession(d.recent[d.cursor].ID); err != nil {
					return d, errStatus(err)
				}
				return d, tea.Batch(d.refresh(), func() tea.Msg { return timerStartedMsg{} })
			}

		case key.Matches(msg, keys.Reflect):
			if d.cursor < len(d.recent) {
				return d.showReflectForm(d.recent[d.cursor])
			}

		case key.Matches(msg, keys.Edit):
			if d.cursor < len(d.recent) {
				return d.showDurationForm(d.recent[d.cursor])
			}

		case key.Matches(msg, keys.Delete):
			if d.cursor < len(d.recent) {
				if err := d.engine.DeleteSession(d.recent[d.cursor].ID); err != nil {
					return d, errStatus(err)
				}
				return d, d.refresh()
			}

		case key.Matches(msg, keys.Up):
			if d.cursor > 0 {
				d.cursor--
			}

		case key.Matches(msg, keys.Down):
			if d.cursor < len(d.recent)-1 {
				d.cursor++
			}
		}
	}
	return d, nil
}

func (d dashboardModel) togglePause() (dashboardModel, tea.Cmd) {
	s := d.activeSession()
	if s == nil {
		return d, nil
	}
	var err error
	if d.data.Timer.IsRunning {
		err = d.engine.PauseTimer()
	} else {
		err = d.engine.ResumeTimer()
	}
	if err != nil {
		return d, errStatus(err)
	}
	return d, d.refresh()
}

func (d dashboardModel) toggleMode() (dashboardModel, tea.Cmd) {
	mode := model.ModePomodoro
	if d.data.Timer.Mode == model.ModePomodoro {
		mode = model.ModeStopwatch
	}
	if err := d.engine.SetTimerMode(mode); err != nil {
		return d, errStatus(err)
	}
	return d, tea.Batch(d.refresh(), func() tea.Msg {
		return statusMsg{text: "Timer mode: " + string(mode)}
	})
}

func (d dashboardModel) stopTimer() (dashboardModel, tea.Cmd) {
	done, recorded, err := d.engine.StopTimer()
	if err != nil {
		if err == engine.ErrNoActiveSession {
			return d, nil
		}
		return d, errStatus(err)
	}
	if !recorded {
		return d, tea.Batch(d.refresh(), func() tea.Msg {
			return statusMsg{text: "Session too short, discarded"}
		})
	}
	d, cmd := d.showReflectForm(done)
	return d, tea.Batch(
		cmd,
		func() tea.Msg { return timerStoppedMsg{session: done, recorded: true} },
	)
}

// --- Pickers ---

func (d dashboardModel) openTasks() []model.Task {
	var out []model.Task
	for _, t := range d.data.Tasks {
		if !t.Completed {
			out = append(out, t)
		}
	}
	return out
}

func (d dashboardModel) subjectTasks(subjectID string) []model.Task {
	var out []model.Task
	for _, t := range d.data.Tasks {
		if !t.Completed && t.SubjectID == subjectID {
			out = append(out, t)
		}
	}
	return out
}

func (d dashboardModel) updatePicker(msg tea.KeyMsg) (dashboardModel, tea.Cmd) {
	var size int
	switch d.picking {
	case pickSubject:
		size = len(d.data.Subjects)
	case pickTask:
		size = len(d.subjectTasks(d.pickSubjectID)) + 1 // leading "(no task)"
	case pickSwitch:
		size = len(d.openTasks())
	}

	switch {
	case key.Matches(msg, keys.Up):
		if d.pickerCursor > 0 {
			d.pickerCursor--
		}
	case key.Matches(msg, keys.Down):
		if d.pickerCursor < size-1 {
			d.pickerCursor++
		}
	case key.Matches(msg, keys.Back):
		d.picking = pickNone
	case key.Matches(msg, keys.Enter):
		return d.pickerSelect()
	}
	return d, nil
}

func (d dashboardModel) pickerSelect() (dashboardModel, tea.Cmd) {
	switch d.picking {
	case pickSubject:
		if d.pickerCursor >= len(d.data.Subjects) {
			d.picking = pickNone
			return d, nil
		}
		subject := d.data.Subjects[d.pickerCursor]
		if len(d.subjectTasks(subject.ID)) == 0 {
			d.picking = pickNone
			return d.startTimer(subject.ID, "")
		}
		d.pickSubjectID = subject.ID
		d.picking = pickTask
		d.pickerCursor = 0
		return d, nil

	case pickTask:
		taskID := ""
		if d.pickerCursor > 0 {
			tasks := d.subjectTasks(d.pickSubjectID)
			if d.pickerCursor-1 < len(tasks) {
				taskID = tasks[d.pickerCursor-1].ID
			}
		}
		d.picking = pickNone
		return d.startTimer(d.pickSubjectID, taskID)

	case pickSwitch:
		tasks := d.openTasks()
		if d.pickerCursor < len(tasks) {
			id := tasks[d.pickerCursor].ID
			d.picking = pickNone
			if err := d.engine.SwitchTask(id); err != nil {
				return d, errStatus(err)
			}
			return d, d.refresh()
		}
		d.picking = pickNone
	}
	return d, nil
}

func (d dashboardModel) startTimer(subjectID, taskID string) (dashboardModel, tea.Cmd) {
	if _, err := d.engine.StartTimer(subjectID, taskID); err != nil {
		return d, errStatus(err)
	}
	return d, tea.Batch(d.refresh(), func() tea.Msg { return timerStartedMsg{} })
}

// --- Forms ---

func (d dashboardModel) showReflectForm(s model.StudySession) (dashboardModel, tea.Cmd) {
	*d.formRating = string(model.RatingAverage)
	*d.formComment = ""
	d.formKind = "reflect"
	d.formSessionID = s.ID

	d.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().Title("How did it go?").
				Options(
					huh.NewOption("Productive", string(model.RatingProductive)),
					huh.NewOption("Average", string(model.RatingAverage)),
					huh.NewOption("Distracted", string(model.RatingDistracted)),
				).Value(d.formRating),
			huh.NewInput().Title("Notes (optional)").Value(d.formComment),
		),
	).WithShowHelp(true).WithShowErrors(true)

	d.formActive = true
	return d, d.form.Init()
}

func (d dashboardModel) showDurationForm(s model.StudySession) (dashboardModel, tea.Cmd) {
	*d.formMinutes = strconv.FormatInt(s.DurationSeconds/60, 10)
	d.formKind = "duration"
	d.formSessionID = s.ID

	d.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Duration (minutes, 1-1440)").Value(d.formMinutes),
		),
	).WithShowHelp(true).WithShowErrors(true)

	d.formActive = true
	return d, d.form.Init()
}

func (d dashboardModel) updateForm(msg tea.Msg) (dashboardModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			d.formActive = false
			d.form = nil
			return d, nil
		}
	}

	form, cmd := d.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		d.form = f
	}

	if d.form.State == huh.StateCompleted {
		d.formActive = false
		switch d.formKind {
		case "reflect":
			if err := d.engine.SaveReflection(d.formSessionID, model.Rating(*d.formRating), *d.formComment); err != nil {
				return d, errStatus(err)
			}
		case "duration":
			minutes, err := strconv.Atoi(strings.TrimSpace(*d.formMinutes))
			if err != nil {
				return d, func() tea.Msg {
					return statusMsg{text: "Duration must be a number of minutes", isError: true}
				}
			}
			if err := d.engine.EditSessionDuration(d.formSessionID, minutes); err != nil {
				return d, errStatus(err)
			}
		}
		return d, d.refresh()
	}

	return d, cmd
}

// --- Rendering ---

func (d dashboardModel) view() string {
	if d.width < 20 {
		return "Terminal too small"
	}

	contentWidth := d.width - 4

	if d.formActive && d.form != nil {
		title := titleStyle.Render("Session Reflection")
		if d.formKind == "duration" {
			title = titleStyle.Render("Edit Duration")
		}
		return panelStyle.Width(contentWidth).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, "", d.form.View()),
		)
	}

	timerPanel := d.renderTimerPanel(contentWidth)
	todayPanel := d.renderTodayPanel(contentWidth)

	var bottomPanel string
	if d.picking != pickNone {
		bottomPanel = d.renderPicker(contentWidth)
	} else {
		bottomPanel = d.renderRecentPanel(contentWidth)
	}

	return lipgloss.JoinVertical(lipgloss.Left, timerPanel, todayPanel, bottomPanel)
}

func (d dashboardModel) renderTimerPanel(w int) string {
	s := d.activeSession()
	if s == nil {
		timeDisplay := timerStyle.Width(w - 6).Render("00:00:00")
		indicator := mutedStyle.Render("■  STOPPED")
		hint := mutedStyle.Render("Press s to start studying  ·  m: " + string(d.data.Timer.Mode))
		content := lipgloss.JoinVertical(lipgloss.Center, timeDisplay, indicator, hint)
		return panelStyle.Width(w).Render(content)
	}

	now := time.Now()
	timeStr := formatDuration(timer.Elapsed(d.data.Timer, now))

	var timeDisplay, indicator string
	if d.data.Timer.IsRunning {
		timeDisplay = timerRunningStyle.Width(w - 6).Render(timeStr)
		indicator = successStyle.Render("●  RUNNING")
	} else {
		timeDisplay = timerPausedStyle.Width(w - 6).Render(timeStr)
		indicator = warningStyle.Render("⏸  PAUSED")
	}

	subjectLine := highlightStyle.Render(d.subjectName(s.SubjectID))
	if name := d.taskTitle(s.ActiveTaskID); name != "" {
		subjectLine += mutedStyle.Render(" / " + name)
	}

	rows := []string{timeDisplay, indicator, subjectLine}
	if d.data.Timer.Mode == model.ModePomodoro {
		rows = append(rows, d.renderPhaseLine(now))
	}

	content := lipgloss.JoinVertical(lipgloss.Center, rows...)
	return activePanelStyle.Width(w).Render(content)
}

func (d dashboardModel) renderPhaseLine(now time.Time) string {
	cfg := timer.FromSettings(d.data.Settings)
	remaining := cfg.PhaseDuration(d.data.Timer.Phase) - timer.PhaseElapsed(d.data.Timer, now)

	var label string
	switch d.data.Timer.Phase {
	case model.PhaseShortBreak:
		label = successStyle.Render("SHORT BREAK")
	case model.PhaseLongBreak:
		label = highlightStyle.Render("LONG BREAK")
	default:
		label = accentStyle.Render("FOCUS")
	}

	var dots []string
	interval := cfg.LongBreakInterval
	if interval <= 0 {
		interval = 4
	}
	done := d.data.Timer.CycleCount % interval
	if done == 0 && d.data.Timer.CycleCount > 0 {
		done = interval
	}
	for i := 0; i < interval; i++ {
		if i < done {
			dots = append(dots, successStyle.Render("●"))
		} else {
			dots = append(dots, mutedStyle.Render("○"))
		}
	}

	return fmt.Sprintf("%s %s  %s", label, formatClock(remaining), strings.Join(dots, " "))
}

func (d dashboardModel) renderTodayPanel(w int) string {
	now := time.Now()
	today := analytics.DailyTotals(d.data.Sessions, now, 1)
	var todaySecs int64
	if len(today) == 1 {
		todaySecs = today[0].Seconds
	}

	goal := d.data.Settings.DailyGoalSeconds
	title := titleStyle.Render("Today")
	total := highlightStyle.Render(formatSeconds(todaySecs))
	header := fmt.Sprintf("%s  %s / %s goal", title, total, formatHours(goal))

	pct := 0
	if goal > 0 {
		pct = int(todaySecs * 100 / goal)
	}
	barWidth := min(w-10, 40)
	filled := min(barWidth, barWidth*pct/100)
	bar := successStyle.Render(strings.Repeat("█", filled)) +
		mutedStyle.Render(strings.Repeat("░", barWidth-filled))

	score, rated := analytics.ProductivityScore(d.data.Sessions, dayStartMs(now), now.UnixMilli())
	scoreLine := mutedStyle.Render("No reflections yet today")
	if rated > 0 {
		scoreLine = fmt.Sprintf("Focus score %s over %d rated sessions",
			highlightStyle.Render(fmt.Sprintf("%.1f/3", score)), rated)
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		header,
		fmt.Sprintf("  %s %d%%", bar, pct),
		"  "+scoreLine,
	)
	return panelStyle.Width(w).Render(content)
}

func (d dashboardModel) renderRecentPanel(w int) string {
	title := titleStyle.Render("Recent Sessions")
	if len(d.recent) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			title,
			mutedStyle.Render("No sessions yet"),
		)
		return panelStyle.Width(w).Render(content)
	}

	var rows []string
	rows = append(rows, title)
	for i, s := range d.recent {
		cursor := "  "
		style := normalItemStyle
		if i == d.cursor {
			cursor = "> "
			style = selectedItemStyle
		}
		startStr := time.UnixMilli(s.StartTime).Local().Format("Jan 02 15:04")
		rating := " "
		switch s.ReflectionRating {
		case model.RatingProductive:
			rating = successStyle.Render("+")
		case model.RatingAverage:
			rating = warningStyle.Render("~")
		case model.RatingDistracted:
			rating = errorStyle.Render("-")
		}
		row := style.Render(fmt.Sprintf("%s%s  %-16s %8s", cursor, startStr,
			d.subjectName(s.SubjectID), formatSeconds(s.DurationSeconds))) + " " + rating
		rows = append(rows, row)
	}
	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  c: continue  r: reflect  e: edit  d: delete"))

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (d dashboardModel) renderPicker(w int) string {
	var title string
	var rows []string

	switch d.picking {
	case pickSubject:
		title = "Select Subject"
		for i, s := range d.data.Subjects {
			rows = append(rows, d.pickerRow(i, subjectDot(s)+" "+s.Name))
		}
	case pickTask:
		title = "Select Task"
		rows = append(rows, d.pickerRow(0, "(no task)"))
		for i, t := range d.subjectTasks(d.pickSubjectID) {
			rows = append(rows, d.pickerRow(i+1, t.Title))
		}
	case pickSwitch:
		title = "Switch To Task"
		for i, t := range d.openTasks() {
			rows = append(rows, d.pickerRow(i, t.Title))
		}
	}

	all := []string{titleStyle.Render(title)}
	all = append(all, rows...)
	all = append(all, "", mutedStyle.Render("  enter: select  esc: cancel"))
	return activePanelStyle.Width(w).Render(strings.Join(all, "\n"))
}

func (d dashboardModel) pickerRow(i int, label string) string {
	cursor := "  "
	style := normalItemStyle
	if i == d.pickerCursor {
		cursor = "> "
		style = selectedItemStyle
	}
	return style.Render(cursor + label)
}

func (d dashboardModel) subjectName(id string) string {
	for _, s := range d.data.Subjects {
		if s.ID == id {
			return s.Name
		}
	}
	return "(no subject)"
}

func (d dashboardModel) taskTitle(id string) string {
	for _, t := range d.data.Tasks {
		if t.ID == id {
			return t.Title
		}
	}
	return ""
}

func subjectDot(s model.Subject) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(s.Color)).Render("●")
}

func errStatus(err error) tea.Cmd {
	return func() tea.Msg {
		return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
	}
}

func dayStartMs(now time.Time) int64 {
	now = now.Local()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local).UnixMilli()
}

// recentCompleted returns the newest n completed sessions, newest first.
func recentCompleted(sessions []model.StudySession, n int) []model.StudySession {
	var out []model.StudySession
	for _, s := range sessions {
		if s.Status == model.StatusCompleted {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndTime > out[j].EndTime })
	if len(out) > n {
		out = out[:n]
	}
	return out
}
