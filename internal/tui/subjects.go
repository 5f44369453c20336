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

var subjectColors = []string{"#7AA2F7", "#9ECE6A", "#F7768E", "#E0AF68", "#BB9AF7", "#7DCFFF", "#FF9E64", "#2AC3DE"}

type subjectsModel struct {
	engine *engine.Engine
	width  int
	height int

	data model.UserData

	cursor       int
	taskCursor   int
	viewingTasks bool // true = viewing tasks of the selected subject

	formActive bool
	form       *huh.Form
	formType   string // "subject", "edit_subject", "task", "edit_task"

	// Form field pointers (survive value copies)
	formName     *string
	formColor    *string
	formPriority *string
	formDeadline *string

	editingID string
}

func newSubjectsModel(e *engine.Engine) subjectsModel {
	name, color := "", subjectColors[0]
	prio, deadline := string(model.PriorityMedium), ""
	return subjectsModel{
		engine:       e,
		formName:     &name,
		formColor:    &color,
		formPriority: &prio,
		formDeadline: &deadline,
	}
}

func (m *subjectsModel) setSize(w, h int) {
	m.width = w
	m.height = h
}

func (m subjectsModel) refresh() tea.Cmd {
	return func() tea.Msg {
		return subjectsDataMsg{data: m.engine.Data()}
	}
}

func (m subjectsModel) selectedSubject() *model.Subject {
	if m.cursor < len(m.data.Subjects) {
		return &m.data.Subjects[m.cursor]
	}
	return nil
}

func (m subjectsModel) subjectTasks() []model.Task {
	s := m.selectedSubject()
	if s == nil {
		return nil
	}
	var out []model.Task
	for _, t := range m.data.Tasks {
		if t.SubjectID == s.ID {
			out = append(out, t)
		}
	}
	return out
}

func (m subjectsModel) update(msg tea.Msg) (subjectsModel, tea.Cmd) {
	if m.formActive && m.form != nil {
		return m.updateForm(msg)
	}

	switch msg := msg.(type) {
	case subjectsDataMsg:
		m.data = msg.data
		if m.cursor >= len(m.data.Subjects) {
			m.cursor = max(0, len(m.data.Subjects)-1)
		}
		if n := len(m.subjectTasks()); m.taskCursor >= n {
			m.taskCursor = max(0, n-1)
		}
		return m, nil

	case tea.KeyMsg:
		if m.viewingTasks {
			return m.updateTaskView(msg)
		}
		return m.updateSubjectList(msg)
	}
	return m, nil
}

func (m subjectsModel) updateSubjectList(msg tea.KeyMsg) (subjectsModel, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, keys.Down):
		if m.cursor < len(m.data.Subjects)-1 {
			m.cursor++
		}
	case key.Matches(msg, keys.Enter):
		if len(m.data.Subjects) > 0 {
			m.viewingTasks = true
			m.taskCursor = 0
		}
	case key.Matches(msg, keys.New):
		return m.showSubjectForm(nil)
	case key.Matches(msg, keys.Edit):
		if s := m.selectedSubject(); s != nil {
			return m.showSubjectForm(s)
		}
	case key.Matches(msg, keys.Delete):
		if s := m.selectedSubject(); s != nil {
			if err := m.engine.DeleteSubject(s.ID); err != nil {
				return m, errStatus(err)
			}
			return m, m.refresh()
		}
	}
	return m, nil
}

func (m subjectsModel) updateTaskView(msg tea.KeyMsg) (subjectsModel, tea.Cmd) {
	tasks := m.subjectTasks()
	switch {
	case key.Matches(msg, keys.Back):
		m.viewingTasks = false
		return m, nil
	case key.Matches(msg, keys.Up):
		if m.taskCursor > 0 {
			m.taskCursor--
		}
	case key.Matches(msg, keys.Down):
		if m.taskCursor < len(tasks)-1 {
			m.taskCursor++
		}
	case key.Matches(msg, keys.New):
		return m.showTaskForm(nil)
	case key.Matches(msg, keys.Edit):
		if m.taskCursor < len(tasks) {
			return m.showTaskForm(&tasks[m.taskCursor])
		}
	case key.Matches(msg, keys.Toggle):
		if m.taskCursor < len(tasks) {
			if err := m.engine.ToggleTask(tasks[m.taskCursor].ID); err != nil {
				return m, errStatus(err)
			}
			return m, m.refresh()
		}
	case key.Matches(msg, keys.Delete):
		if m.taskCursor < len(tasks) {
			if err := m.engine.DeleteTask(tasks[m.taskCursor].ID); err != nil {
				return m, errStatus(err)
			}
			return m, m.refresh()
		}
	}
	return m, nil
}

// --- Forms ---

func (m subjectsModel) showSubjectForm(edit *model.Subject) (subjectsModel, tea.Cmd) {
	if edit != nil {
		*m.formName = edit.Name
		*m.formColor = edit.Color
		m.formType = "edit_subject"
		m.editingID = edit.ID
	} else {
		*m.formName = ""
		*m.formColor = subjectColors[0]
		m.formType = "subject"
	}

	colorOptions := make([]huh.Option[string], len(subjectColors))
	for i, c := range subjectColors {
		colorOptions[i] = huh.NewOption(fmt.Sprintf("● %s", c), c)
	}

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Subject Name").Value(m.formName),
			huh.NewSelect[string]().Title("Color").Options(colorOptions...).Value(m.formColor),
		),
	).WithShowHelp(true).WithShowErrors(true)

	m.formActive = true
	return m, m.form.Init()
}

func (m subjectsModel) showTaskForm(edit *model.Task) (subjectsModel, tea.Cmd) {
	if edit != nil {
		*m.formName = edit.Title
		*m.formPriority = string(edit.Priority)
		*m.formDeadline = ""
		if edit.Deadline > 0 {
			*m.formDeadline = time.UnixMilli(edit.Deadline).Local().Format("2006-01-02")
		}
		m.formType = "edit_task"
		m.editingID = edit.ID
	} else {
		*m.formName = ""
		*m.formPriority = string(model.PriorityMedium)
		*m.formDeadline = ""
		m.formType = "task"
	}

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Task Title").Value(m.formName),
			huh.NewSelect[string]().Title("Priority").
				Options(
					huh.NewOption("High", string(model.PriorityHigh)),
					huh.NewOption("Medium", string(model.PriorityMedium)),
					huh.NewOption("Low", string(model.PriorityLow)),
				).Value(m.formPriority),
			huh.NewInput().Title("Deadline (YYYY-MM-DD, blank for none)").Value(m.formDeadline),
		),
	).WithShowHelp(true).WithShowErrors(true)

	m.formActive = true
	return m, m.form.Init()
}

func (m subjectsModel) updateForm(msg tea.Msg) (subjectsModel, tea.Cmd) {
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
		return m.submitForm()
	}

	return m, cmd
}

func (m subjectsModel) submitForm() (subjectsModel, tea.Cmd) {
	name := strings.TrimSpace(*m.formName)
	if name == "" {
		return m, m.refresh()
	}

	switch m.formType {
	case "subject":
		if _, err := m.engine.AddSubject(name, *m.formColor); err != nil {
			return m, errStatus(err)
		}
	case "edit_subject":
		if err := m.engine.UpdateSubject(m.editingID, name, *m.formColor); err != nil {
			return m, errStatus(err)
		}
	case "task", "edit_task":
		deadlineMs, err := parseDeadline(*m.formDeadline)
		if err != nil {
			return m, func() tea.Msg {
				return statusMsg{text: "Deadline must be YYYY-MM-DD", isError: true}
			}
		}
		prio := model.Priority(*m.formPriority)
		if m.formType == "task" {
			s := m.selectedSubject()
			if s == nil {
				return m, m.refresh()
			}
			if _, err := m.engine.AddTask(name, s.ID, prio, deadlineMs); err != nil {
				return m, errStatus(err)
			}
		} else if err := m.engine.UpdateTask(m.editingID, name, prio, deadlineMs); err != nil {
			return m, errStatus(err)
		}
	}
	return m, m.refresh()
}

// parseDeadline turns a local calendar date into the stored end-of-day
// instant. A blank string means no deadline.
func parseDeadline(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	day, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return 0, err
	}
	return engine.EndOfDayMs(day), nil
}

// --- Rendering ---

func (m subjectsModel) view() string {
	if m.formActive && m.form != nil {
		title := titleStyle.Render("New Subject")
		switch m.formType {
		case "edit_subject":
			title = titleStyle.Render("Edit Subject")
		case "task":
			title = titleStyle.Render("New Task")
		case "edit_task":
			title = titleStyle.Render("Edit Task")
		}
		content := lipgloss.JoinVertical(lipgloss.Left, title, "", m.form.View())
		return panelStyle.Width(m.width - 4).Render(content)
	}

	if m.viewingTasks {
		return m.renderTaskView()
	}
	return m.renderSubjectList()
}

func (m subjectsModel) renderSubjectList() string {
	w := m.width - 4
	title := titleStyle.Render("Subjects")

	if len(m.data.Subjects) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			title,
			"",
			mutedStyle.Render("No subjects yet. Press n to create one."),
		)
		return panelStyle.Width(w).Render(content)
	}

	var rows []string
	rows = append(rows, title)
	rows = append(rows, "")

	header := mutedStyle.Render(fmt.Sprintf("  %-3s %-24s %8s %8s", "", "Name", "Tasks", "Time"))
	rows = append(rows, header)

	for i, s := range m.data.Subjects {
		cursor := "  "
		style := normalItemStyle
		if i == m.cursor {
			cursor = "> "
			style = selectedItemStyle
		}
		open, total := 0, int64(0)
		for _, t := range m.data.Tasks {
			if t.SubjectID != s.ID {
				continue
			}
			if !t.Completed {
				open++
			}
			total += t.TotalTimeSeconds
		}
		row := style.Render(fmt.Sprintf("%s%s %-24s %8d %8s", cursor, subjectDot(s), s.Name, open, formatHours(total)))
		rows = append(rows, row)
	}

	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  n: new  e: edit  d: delete  enter: tasks"))

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (m subjectsModel) renderTaskView() string {
	w := m.width - 4
	s := m.selectedSubject()
	if s == nil {
		return panelStyle.Width(w).Render(mutedStyle.Render("No subject selected"))
	}
	title := titleStyle.Render(fmt.Sprintf("%s %s — Tasks", subjectDot(*s), s.Name))

	tasks := m.subjectTasks()
	if len(tasks) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			title,
			"",
			mutedStyle.Render("No tasks. Press n to add one."),
		)
		return panelStyle.Width(w).Render(content)
	}

	now := time.Now()
	var rows []string
	rows = append(rows, title)
	rows = append(rows, "")

	for i, t := range tasks {
		cursor := "  "
		style := normalItemStyle
		if i == m.taskCursor {
			cursor = "> "
			style = selectedItemStyle
		}
		check := "[ ]"
		if t.Completed {
			check = "[x]"
		}
		row := style.Render(fmt.Sprintf("%s%s %-28s", cursor, check, t.Title)) +
			" " + priorityTag(t.Priority)
		if t.Deadline > 0 {
			row += mutedStyle.Render("  due " + time.UnixMilli(t.Deadline).Local().Format("Jan 02"))
		}
		if t.IsBacklog {
			row += "  " + backlogBadge(t, now)
		}
		if t.TotalTimeSeconds > 0 {
			row += mutedStyle.Render("  " + formatHours(t.TotalTimeSeconds))
		}
		rows = append(rows, row)
	}

	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  n: new  e: edit  space: toggle  d: delete  esc: back"))

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func priorityTag(p model.Priority) string {
	switch p {
	case model.PriorityHigh:
		return priorityHighStyle.Render("high")
	case model.PriorityLow:
		return priorityLowStyle.Render("low ")
	default:
		return priorityMediumStyle.Render("med ")
	}
}

// backlogBadge renders the overdue marker, colored by escalated priority.
func backlogBadge(t model.Task, now time.Time) string {
	days := analytics.DaysInBacklog(t, now)
	label := fmt.Sprintf("overdue %dd", days)
	switch analytics.BacklogPriority(t, now) {
	case model.PriorityHigh:
		return errorStyle.Render(label)
	case model.PriorityMedium:
		return warningStyle.Render(label)
	default:
		return mutedStyle.Render(label)
	}
}
