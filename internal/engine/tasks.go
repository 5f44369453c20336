package engine

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ozgurcan/studyr/internal/model"
)

// AddSubject creates a subject. The color is free-form; the TUI passes hex.
func (e *Engine) AddSubject(name, color string) (model.Subject, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Subject{}, errors.New("add subject: empty name")
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	s := model.Subject{ID: uuid.NewString(), Name: name, Color: color}
	e.data.Subjects = append(e.data.Subjects, s)
	return s, e.persistLocked()
}

func (e *Engine) UpdateSubject(id, name, color string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("update subject: empty name")
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range e.data.Subjects {
		if e.data.Subjects[i].ID == id {
			e.data.Subjects[i].Name = name
			e.data.Subjects[i].Color = color
			return e.persistLocked()
		}
	}
	return fmt.Errorf("update subject: %s not found", id)
}

// DeleteSubject removes a subject and nulls every reference to it. Tasks and
// sessions survive; only the link is cleared.
func (e *Engine) DeleteSubject(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	found := false
	for i := range e.data.Subjects {
		if e.data.Subjects[i].ID == id {
			e.data.Subjects = append(e.data.Subjects[:i], e.data.Subjects[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("delete subject: %s not found", id)
	}

	for i := range e.data.Tasks {
		if e.data.Tasks[i].SubjectID == id {
			e.data.Tasks[i].SubjectID = ""
		}
	}
	for i := range e.data.Sessions {
		if e.data.Sessions[i].SubjectID == id {
			e.data.Sessions[i].SubjectID = ""
		}
	}
	if e.data.Timer.SubjectID == id {
		e.data.Timer.SubjectID = ""
	}
	return e.persistLocked()
}

// AddTask creates a task, optionally under a subject and with a deadline
// expressed as an end-of-day instant in milliseconds (0 for none).
func (e *Engine) AddTask(title, subjectID string, priority model.Priority, deadlineMs int64) (model.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return model.Task{}, errors.New("add task: empty title")
	}
	switch priority {
	case model.PriorityHigh, model.PriorityMedium, model.PriorityLow:
	default:
		priority = model.PriorityMedium
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	t := model.Task{
		ID:        uuid.NewString(),
		Title:     title,
		SubjectID: subjectID,
		Priority:  priority,
		Deadline:  deadlineMs,
		Bucket:    model.BucketDaily,
		CreatedAt: e.now().UnixMilli(),
	}
	e.data.Tasks = append(e.data.Tasks, t)
	refreshBacklog(e.data.Tasks, e.now())
	return t, e.persistLocked()
}

func (e *Engine) UpdateTask(id, title string, priority model.Priority, deadlineMs int64) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return errors.New("update task: empty title")
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	t := e.taskByID(id)
	if t == nil {
		return fmt.Errorf("update task: %s not found", id)
	}
	t.Title = title
	t.Priority = priority
	if t.Deadline != deadlineMs {
		t.Deadline = deadlineMs
		t.BacklogSince = 0
	}
	refreshBacklog(e.data.Tasks, e.now())
	return e.persistLocked()
}

// ToggleTask flips completion. Completing a backlogged task clears its
// backlog state; re-opening one past its deadline puts it straight back.
func (e *Engine) ToggleTask(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	t := e.taskByID(id)
	if t == nil {
		return fmt.Errorf("toggle task: %s not found", id)
	}
	t.Completed = !t.Completed
	refreshBacklog(e.data.Tasks, e.now())
	return e.persistLocked()
}

// DeleteTask removes the task object. Session history that references it is
// preserved; aggregation simply skips unknown ids.
func (e *Engine) DeleteTask(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range e.data.Tasks {
		if e.data.Tasks[i].ID == id {
			e.data.Tasks = append(e.data.Tasks[:i], e.data.Tasks[i+1:]...)
			return e.persistLocked()
		}
	}
	return fmt.Errorf("delete task: %s not found", id)
}

func (e *Engine) taskByID(id string) *model.Task {
	for i := range e.data.Tasks {
		if e.data.Tasks[i].ID == id {
			return &e.data.Tasks[i]
		}
	}
	return nil
}

// EndOfDayMs converts a local calendar day to the deadline instant tasks
// store: the last second of that day.
func EndOfDayMs(day time.Time) int64 {
	return endOfDay(day).UnixMilli()
}
