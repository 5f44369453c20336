package engine

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ozgurcan/studyr/internal/model"
)

const isoDate = "2006-01-02"

// AddDailyTask plans a date-scoped task. Planning is deliberately short-range:
// only today and tomorrow are accepted.
func (e *Engine) AddDailyTask(title string, priority model.Priority, dateISO string) (model.DailyTask, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return model.DailyTask{}, errors.New("add daily task: empty title")
	}
	day, err := time.ParseInLocation(isoDate, dateISO, time.Local)
	if err != nil {
		return model.DailyTask{}, fmt.Errorf("add daily task: bad date %q: %w", dateISO, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	today := dateOnly(e.now())
	if !day.Equal(today) && !day.Equal(today.AddDate(0, 0, 1)) {
		return model.DailyTask{}, fmt.Errorf("add daily task: %s is not today or tomorrow", dateISO)
	}
	switch priority {
	case model.PriorityHigh, model.PriorityMedium, model.PriorityLow:
	default:
		priority = model.PriorityMedium
	}

	t := model.DailyTask{
		ID:           uuid.NewString(),
		Title:        title,
		Priority:     priority,
		ScheduledFor: dateISO,
	}
	e.data.DailyTasks = append(e.data.DailyTasks, t)

	st := e.statsFor(dateISO)
	st.Total++
	bumpPriority(&st, priority, 1)
	e.data.DayStats[dateISO] = st

	return t, e.persistLocked()
}

// ToggleDailyTask flips completion and keeps the day's counters in step.
func (e *Engine) ToggleDailyTask(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range e.data.DailyTasks {
		t := &e.data.DailyTasks[i]
		if t.ID != id {
			continue
		}
		t.Completed = !t.Completed

		st := e.statsFor(t.ScheduledFor)
		if t.Completed {
			st.Completed++
		} else if st.Completed > 0 {
			st.Completed--
		}
		e.data.DayStats[t.ScheduledFor] = st
		return e.persistLocked()
	}
	return fmt.Errorf("toggle daily task: %s not found", id)
}

func (e *Engine) DeleteDailyTask(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range e.data.DailyTasks {
		t := e.data.DailyTasks[i]
		if t.ID != id {
			continue
		}
		e.data.DailyTasks = append(e.data.DailyTasks[:i], e.data.DailyTasks[i+1:]...)

		st := e.statsFor(t.ScheduledFor)
		if st.Total > 0 {
			st.Total--
		}
		if t.Completed && st.Completed > 0 {
			st.Completed--
		}
		bumpPriority(&st, t.Priority, -1)
		e.data.DayStats[t.ScheduledFor] = st
		return e.persistLocked()
	}
	return fmt.Errorf("delete daily task: %s not found", id)
}

// rollOver runs once per calendar day: incomplete past tasks move to today
// with their rollover count incremented, completed past tasks are pruned.
// The pruned tasks' day stats stay behind as history, which is what streak
// and completion-rate analytics read.
func rollOver(d *model.UserData, now time.Time) {
	today := dateOnly(now).Format(isoDate)
	if d.LastRolloverDate == today {
		return
	}

	kept := d.DailyTasks[:0]
	for _, t := range d.DailyTasks {
		if t.ScheduledFor >= today {
			kept = append(kept, t)
			continue
		}
		if t.Completed {
			continue // pruned; its DayStats entry remains
		}

		t.ScheduledFor = today
		t.IsRolledOver = true
		t.RolloverCount++
		kept = append(kept, t)

		st := d.DayStats[today]
		st.Total++
		st.Rollover++
		bumpPriority(&st, t.Priority, 1)
		d.DayStats[today] = st
	}
	d.DailyTasks = kept
	d.LastRolloverDate = today
}

func (e *Engine) statsFor(dateISO string) model.DayStats {
	if e.data.DayStats == nil {
		e.data.DayStats = map[string]model.DayStats{}
	}
	return e.data.DayStats[dateISO]
}

func bumpPriority(st *model.DayStats, p model.Priority, delta int) {
	if st.ByPriority == nil {
		st.ByPriority = map[model.Priority]int{}
	}
	st.ByPriority[p] += delta
	if st.ByPriority[p] <= 0 {
		delete(st.ByPriority, p)
	}
}

func dateOnly(t time.Time) time.Time {
	t = t.Local()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.Local)
}
