package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ozgurcan/studyr/internal/aggregate"
	"github.com/ozgurcan/studyr/internal/ledger"
	"github.com/ozgurcan/studyr/internal/model"
	"github.com/ozgurcan/studyr/internal/timer"
)

// ErrSessionActive rejects operations that would create a second active
// session.
var ErrSessionActive = errors.New("a session is already active")

// ErrNoActiveSession rejects timer operations with nothing to act on.
var ErrNoActiveSession = errors.New("no active session")

const (
	minEditMinutes = 1
	maxEditMinutes = 1440
)

// StartTimer begins tracking against a subject and optional task. It creates
// the running ledger record and starts the live snapshot together; the record
// is durable immediately, so a crash mid-session leaves a recoverable session
// rather than lost time.
func (e *Engine) StartTimer(subjectID, taskID string) (model.StudySession, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.activeLocked() != nil {
		return model.StudySession{}, ErrSessionActive
	}

	now := e.now()
	s := model.StudySession{
		ID:                 uuid.NewString(),
		SubjectID:          subjectID,
		Status:             model.StatusRunning,
		StartTime:          now.UnixMilli(),
		LastStartTimestamp: now.UnixMilli(),
		TaskAllocations:    map[string]int64{},
	}
	if taskID != "" {
		s.TaskIDs = []string{taskID}
		s.ActiveTaskID = taskID
	}
	e.data.Sessions = append(e.data.Sessions, s)

	t := e.data.Timer
	if t.Mode == model.ModePomodoro {
		t.Phase = model.PhaseFocus
		t.PhaseAccumulatedMs = 0
		t.CycleCount = 0
	}
	t.SubjectID = subjectID
	t.TaskID = taskID
	e.data.Timer = timer.Start(t, now)

	return s.Clone(), e.persistLocked()
}

// PauseTimer folds the running slice into the session and stops the clock.
func (e *Engine) PauseTimer() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.activeLocked()
	if s == nil {
		return ErrNoActiveSession
	}
	now := e.now()
	foldRunning(s, now.UnixMilli())
	s.Status = model.StatusPaused
	e.data.Timer = timer.Pause(e.data.Timer, now)
	return e.persistLocked()
}

// ResumeTimer restarts a paused session. In interval-cycling mode the
// session itself only accrues during focus phases; resuming mid-break
// restarts the break clock without un-pausing the session.
func (e *Engine) ResumeTimer() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.activeLocked()
	if s == nil {
		return ErrNoActiveSession
	}
	now := e.now()
	e.data.Timer = timer.Start(e.data.Timer, now)
	if accruing(e.data.Timer) {
		s.Status = model.StatusRunning
		s.LastStartTimestamp = now.UnixMilli()
	}
	return e.persistLocked()
}

// StopTimer completes the active session. A session that never accrued a
// whole second is discarded instead of being recorded. The completed session
// is returned so the host can prompt for a reflection.
func (e *Engine) StopTimer() (model.StudySession, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.activeLocked()
	if s == nil {
		return model.StudySession{}, false, ErrNoActiveSession
	}
	now := e.now()
	foldRunning(s, now.UnixMilli())

	reset, _ := timer.Stop(e.data.Timer, now)
	e.data.Timer = reset

	if s.DurationSeconds == 0 {
		e.removeSession(s.ID)
		return model.StudySession{}, false, e.persistLocked()
	}

	s.Status = model.StatusCompleted
	s.EndTime = now.UnixMilli()
	s.ActiveTaskID = ""
	s.LastStartTimestamp = 0
	ledger.Rebalance(s.TaskAllocations, s.TaskIDs, "", s.DurationSeconds)
	done := s.Clone()

	aggregate.Recompute(e.data.Tasks, e.data.Sessions)
	return done, true, e.persistLocked()
}

// SwitchTask moves the accrual target of the running session to another
// task: the slice earned so far goes to the old task, the clock keeps
// running against the new one.
func (e *Engine) SwitchTask(taskID string) error {
	if taskID == "" {
		return errors.New("switch task: empty task id")
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.activeLocked()
	if s == nil || s.Status != model.StatusRunning {
		return ErrNoActiveSession
	}
	now := e.now()
	foldRunning(s, now.UnixMilli())

	if !containsID(s.TaskIDs, taskID) {
		s.TaskIDs = append(s.TaskIDs, taskID)
	}
	s.ActiveTaskID = taskID
	s.Status = model.StatusRunning
	s.LastStartTimestamp = now.UnixMilli()
	e.data.Timer.TaskID = taskID
	return e.persistLocked()
}

// SetTimerMode switches between stopwatch and interval cycling. A running
// session is folded and paused first so no time is attributed ambiguously.
func (e *Engine) SetTimerMode(mode model.TimerMode) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	if s := e.activeLocked(); s != nil && s.Status == model.StatusRunning {
		foldRunning(s, now.UnixMilli())
		s.Status = model.StatusPaused
	}
	e.data.Timer = timer.SetMode(e.data.Timer, mode, now)
	return e.persistLocked()
}

// Tick advances interval cycling. Crossing a focus boundary folds and pauses
// the session; entering a focus phase under auto-advance resumes it. The
// result is returned for the host's phase-change notification.
func (e *Engine) Tick() (timer.TickResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	res := timer.Tick(e.data.Timer, timer.FromSettings(e.data.Settings), now)
	if !res.Transition {
		return res, nil
	}
	e.data.Timer = res.Snapshot

	if s := e.activeLocked(); s != nil {
		if res.From == model.PhaseFocus {
			foldRunning(s, now.UnixMilli())
			s.Status = model.StatusPaused
		}
		if res.To == model.PhaseFocus && res.Snapshot.IsRunning {
			s.Status = model.StatusRunning
			s.LastStartTimestamp = now.UnixMilli()
		}
	}
	return res, e.persistLocked()
}

// Elapsed is the active session's total elapsed time at now.
func (e *Engine) Elapsed(now time.Time) time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return timer.Elapsed(e.data.Timer, now)
}

// SaveReflection attaches a self-assessment to a completed session.
func (e *Engine) SaveReflection(id string, rating model.Rating, comment string) error {
	switch rating {
	case model.RatingProductive, model.RatingAverage, model.RatingDistracted:
	default:
		return fmt.Errorf("save reflection: invalid rating %q", rating)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.sessionByID(id)
	if s == nil {
		return fmt.Errorf("save reflection: session %s not found", id)
	}
	if s.Status != model.StatusCompleted {
		return errors.New("save reflection: session not completed")
	}
	s.ReflectionRating = rating
	s.ReflectionComment = comment
	return e.persistLocked()
}

// EditSessionDuration corrects a completed session's length, bounded to one
// minute through 24 hours. Allocations are rebalanced to the new total.
func (e *Engine) EditSessionDuration(id string, minutes int) error {
	if minutes < minEditMinutes || minutes > maxEditMinutes {
		return fmt.Errorf("edit duration: %d minutes out of range [%d,%d]", minutes, minEditMinutes, maxEditMinutes)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.sessionByID(id)
	if s == nil {
		return fmt.Errorf("edit duration: session %s not found", id)
	}
	if s.Status != model.StatusCompleted {
		return errors.New("edit duration: session not completed")
	}

	s.DurationSeconds = int64(minutes) * 60
	s.EndTime = s.StartTime + s.DurationSeconds*1000
	ledger.Rebalance(s.TaskAllocations, s.TaskIDs, "", s.DurationSeconds)

	aggregate.Recompute(e.data.Tasks, e.data.Sessions)
	return e.persistLocked()
}

// ContinueSession re-opens a completed session's task set as a fresh running
// session. The original record is untouched; history is append-only.
func (e *Engine) ContinueSession(id string) (model.StudySession, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.activeLocked() != nil {
		return model.StudySession{}, ErrSessionActive
	}
	src := e.sessionByID(id)
	if src == nil {
		return model.StudySession{}, fmt.Errorf("continue session: %s not found", id)
	}
	if src.Status != model.StatusCompleted {
		return model.StudySession{}, errors.New("continue session: source not completed")
	}

	now := e.now()
	s := model.StudySession{
		ID:                 uuid.NewString(),
		SubjectID:          src.SubjectID,
		TaskIDs:            append([]string(nil), src.TaskIDs...),
		Status:             model.StatusRunning,
		StartTime:          now.UnixMilli(),
		LastStartTimestamp: now.UnixMilli(),
		TaskAllocations:    map[string]int64{},
	}
	if len(s.TaskIDs) > 0 {
		s.ActiveTaskID = s.TaskIDs[0]
	}
	e.data.Sessions = append(e.data.Sessions, s)

	t := e.data.Timer
	if t.Mode == model.ModePomodoro {
		t.Phase = model.PhaseFocus
		t.PhaseAccumulatedMs = 0
		t.CycleCount = 0
	}
	t.SubjectID = s.SubjectID
	t.TaskID = s.ActiveTaskID
	e.data.Timer = timer.Start(t, now)

	return s.Clone(), e.persistLocked()
}

// DeleteSession removes a session from the ledger. Deleting the active one
// also resets the live snapshot.
func (e *Engine) DeleteSession(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.sessionByID(id)
	if s == nil {
		return fmt.Errorf("delete session: %s not found", id)
	}
	wasActive := s.Active()
	e.removeSession(id)
	if wasActive {
		reset := model.DefaultTimerSnapshot()
		reset.Mode = e.data.Timer.Mode
		e.data.Timer = reset
	}
	aggregate.Recompute(e.data.Tasks, e.data.Sessions)
	return e.persistLocked()
}

func (e *Engine) removeSession(id string) {
	for i := range e.data.Sessions {
		if e.data.Sessions[i].ID == id {
			e.data.Sessions = append(e.data.Sessions[:i], e.data.Sessions[i+1:]...)
			return
		}
	}
}

// foldRunning banks the wall-clock slice since the last resume into the
// session's duration and its active task's allocation. Idempotent once the
// resume timestamp is cleared.
func foldRunning(s *model.StudySession, nowMs int64) {
	if s.Status != model.StatusRunning || s.LastStartTimestamp <= 0 {
		return
	}
	secs := (nowMs - s.LastStartTimestamp) / 1000
	if secs < 0 {
		secs = 0
	}
	if s.DurationSeconds+secs > model.MaxSessionSeconds {
		secs = model.MaxSessionSeconds - s.DurationSeconds
	}
	s.DurationSeconds += secs
	s.LastStartTimestamp = 0

	target := s.ActiveTaskID
	if target == "" && len(s.TaskIDs) > 0 {
		target = s.TaskIDs[0]
	}
	if target != "" && secs > 0 {
		if s.TaskAllocations == nil {
			s.TaskAllocations = map[string]int64{}
		}
		s.TaskAllocations[target] += secs
	}
}

// accruing reports whether the snapshot's current state counts as study time.
func accruing(t model.TimerSnapshot) bool {
	return t.IsRunning && (t.Mode != model.ModePomodoro || t.Phase == model.PhaseFocus)
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
