package engine

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/ozgurcan/studyr/internal/kv"
	"github.com/ozgurcan/studyr/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clock is a settable time source shared with the engine under test.
type clock struct{ t time.Time }

func (c *clock) now() time.Time               { return c.t }
func (c *clock) advance(d time.Duration)      { c.t = c.t.Add(d) }
func (c *clock) today() string                { return c.t.Format(isoDate) }
func (c *clock) plusDays(days int) time.Time  { return c.t.AddDate(0, 0, days) }

func newTestEngine(t *testing.T) (*Engine, *kv.Memory, *clock) {
	t.Helper()
	store := kv.NewMemoryMap()
	e, err := New(store)
	require.NoError(t, err)
	t.Cleanup(e.Close)

	c := &clock{t: time.Date(2026, 8, 20, 9, 0, 0, 0, time.Local)}
	e.now = c.now
	// Re-run the load cycle so rollover bookkeeping is dated by the test
	// clock instead of the wall clock New used.
	require.NoError(t, e.Adopt())
	return e, store, c
}

// ============================================================
// Bootstrap
// ============================================================

func TestDefaultProfileCreatedOnFirstRun(t *testing.T) {
	e, _, _ := newTestEngine(t)

	idx := e.Profiles()
	require.Len(t, idx.Profiles, 1)
	assert.Equal(t, "Default", idx.Profiles[0].Name)
	assert.Equal(t, idx.Profiles[0].ID, idx.ActiveID)

	d := e.Data()
	assert.Equal(t, model.DefaultSettings(), d.Settings)
	assert.Equal(t, model.ModeStopwatch, d.Timer.Mode)
}

func TestSecondEngineSharesProfileIndex(t *testing.T) {
	store := kv.NewMemoryMap()
	a, err := New(store)
	require.NoError(t, err)
	defer a.Close()

	b, err := New(store)
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, a.Profiles(), b.Profiles())
	require.Len(t, b.Profiles().Profiles, 1)
}

// ============================================================
// Timer lifecycle
// ============================================================

func TestTimerLifecycleWithTaskSplit(t *testing.T) {
	e, _, c := newTestEngine(t)

	taskA, err := e.AddTask("Graph theory", "", model.PriorityHigh, 0)
	require.NoError(t, err)
	taskB, err := e.AddTask("Essay draft", "", model.PriorityLow, 0)
	require.NoError(t, err)

	started, err := e.StartTimer("sub1", taskA.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRunning, started.Status)

	// A second start is rejected outright.
	_, err = e.StartTimer("sub1", taskB.ID)
	assert.ErrorIs(t, err, ErrSessionActive)

	c.advance(10 * time.Minute)
	require.NoError(t, e.SwitchTask(taskB.ID))

	active, ok := e.ActiveSession()
	require.True(t, ok)
	assert.Equal(t, []string{taskA.ID, taskB.ID}, active.TaskIDs)
	assert.Equal(t, taskB.ID, active.ActiveTaskID)
	assert.EqualValues(t, 600, active.TaskAllocations[taskA.ID])

	c.advance(5 * time.Minute)
	done, materialized, err := e.StopTimer()
	require.NoError(t, err)
	require.True(t, materialized)

	assert.Equal(t, model.StatusCompleted, done.Status)
	assert.EqualValues(t, 900, done.DurationSeconds)
	assert.EqualValues(t, 600, done.TaskAllocations[taskA.ID])
	assert.EqualValues(t, 300, done.TaskAllocations[taskB.ID])
	assert.Equal(t, done.StartTime+900_000, done.EndTime)

	// Aggregates reflect the completed session.
	d := e.Data()
	for _, task := range d.Tasks {
		switch task.ID {
		case taskA.ID:
			assert.EqualValues(t, 600, task.TotalTimeSeconds)
		case taskB.ID:
			assert.EqualValues(t, 300, task.TotalTimeSeconds)
		}
		assert.Equal(t, 1, task.SessionCount)
	}

	_, ok = e.ActiveSession()
	assert.False(t, ok)
	assert.False(t, d.Timer.IsRunning)
}

func TestPauseResumeAccrual(t *testing.T) {
	e, _, c := newTestEngine(t)

	_, err := e.StartTimer("sub", "")
	require.NoError(t, err)

	c.advance(time.Minute)
	require.NoError(t, e.PauseTimer())

	active, _ := e.ActiveSession()
	assert.Equal(t, model.StatusPaused, active.Status)
	assert.EqualValues(t, 60, active.DurationSeconds)
	assert.Zero(t, active.LastStartTimestamp)

	// The pause gap does not count.
	c.advance(time.Hour)
	require.NoError(t, e.ResumeTimer())
	c.advance(30 * time.Second)

	done, materialized, err := e.StopTimer()
	require.NoError(t, err)
	require.True(t, materialized)
	assert.EqualValues(t, 90, done.DurationSeconds)
}

func TestStopWithZeroElapsedDiscards(t *testing.T) {
	e, _, _ := newTestEngine(t)

	_, err := e.StartTimer("sub", "")
	require.NoError(t, err)

	_, materialized, err := e.StopTimer()
	require.NoError(t, err)
	assert.False(t, materialized)
	assert.Empty(t, e.Data().Sessions)
}

func TestPomodoroPhaseTransitionPausesSession(t *testing.T) {
	e, _, c := newTestEngine(t)
	require.NoError(t, e.SetTimerMode(model.ModePomodoro))

	_, err := e.StartTimer("sub", "")
	require.NoError(t, err)

	c.advance(25 * time.Minute)
	res, err := e.Tick()
	require.NoError(t, err)
	require.True(t, res.Transition)
	assert.Equal(t, model.PhaseFocus, res.From)
	assert.Equal(t, model.PhaseShortBreak, res.To)

	// Without auto-advance the session waits at the boundary.
	active, ok := e.ActiveSession()
	require.True(t, ok)
	assert.Equal(t, model.StatusPaused, active.Status)
	assert.EqualValues(t, 1500, active.DurationSeconds)
}

func TestPomodoroAutoAdvanceBreakDoesNotAccrue(t *testing.T) {
	e, _, c := newTestEngine(t)

	settings := model.DefaultSettings()
	settings.AutoAdvance = true
	require.NoError(t, e.UpdateSettings(settings))
	require.NoError(t, e.SetTimerMode(model.ModePomodoro))

	_, err := e.StartTimer("sub", "")
	require.NoError(t, err)

	c.advance(25 * time.Minute)
	res, err := e.Tick()
	require.NoError(t, err)
	require.True(t, res.Transition)
	require.True(t, res.Snapshot.IsRunning)

	// Mid-break: session is paused even though the clock runs.
	active, _ := e.ActiveSession()
	assert.Equal(t, model.StatusPaused, active.Status)

	c.advance(5 * time.Minute)
	res, err = e.Tick()
	require.NoError(t, err)
	require.True(t, res.Transition)
	assert.Equal(t, model.PhaseFocus, res.To)

	// Back in focus: accrual resumes.
	active, _ = e.ActiveSession()
	assert.Equal(t, model.StatusRunning, active.Status)

	c.advance(10 * time.Minute)
	done, _, err := e.StopTimer()
	require.NoError(t, err)
	assert.EqualValues(t, 1500+600, done.DurationSeconds) // breaks excluded
}

// ============================================================
// Session operations
// ============================================================

func completeOneSession(t *testing.T, e *Engine, c *clock, taskIDs ...string) model.StudySession {
	t.Helper()
	first := ""
	if len(taskIDs) > 0 {
		first = taskIDs[0]
	}
	_, err := e.StartTimer("sub", first)
	require.NoError(t, err)
	if len(taskIDs) > 1 {
		for _, id := range taskIDs[1:] {
			c.advance(10 * time.Minute)
			require.NoError(t, e.SwitchTask(id))
		}
	}
	c.advance(5 * time.Minute)
	done, materialized, err := e.StopTimer()
	require.NoError(t, err)
	require.True(t, materialized)
	return done
}

func TestSaveReflection(t *testing.T) {
	e, _, c := newTestEngine(t)
	done := completeOneSession(t, e, c)

	require.NoError(t, e.SaveReflection(done.ID, model.RatingProductive, "deep work"))

	got := e.Data().Sessions[0]
	assert.Equal(t, model.RatingProductive, got.ReflectionRating)
	assert.Equal(t, "deep work", got.ReflectionComment)

	assert.Error(t, e.SaveReflection(done.ID, "amazing", ""))
	assert.Error(t, e.SaveReflection("missing", model.RatingAverage, ""))
}

func TestEditSessionDuration(t *testing.T) {
	e, _, c := newTestEngine(t)
	taskA, _ := e.AddTask("A", "", model.PriorityMedium, 0)
	taskB, _ := e.AddTask("B", "", model.PriorityMedium, 0)
	done := completeOneSession(t, e, c, taskA.ID, taskB.ID) // A:600, B:300

	require.NoError(t, e.EditSessionDuration(done.ID, 10))

	got := e.Data().Sessions[0]
	assert.EqualValues(t, 600, got.DurationSeconds)
	assert.Equal(t, got.StartTime+600_000, got.EndTime)

	var sum int64
	for _, v := range got.TaskAllocations {
		assert.GreaterOrEqual(t, v, int64(0))
		sum += v
	}
	assert.EqualValues(t, 600, sum)
}

func TestEditSessionDurationBounds(t *testing.T) {
	e, _, c := newTestEngine(t)
	done := completeOneSession(t, e, c)

	assert.Error(t, e.EditSessionDuration(done.ID, 0))
	assert.Error(t, e.EditSessionDuration(done.ID, 1441))
	assert.NoError(t, e.EditSessionDuration(done.ID, 1))
	assert.NoError(t, e.EditSessionDuration(done.ID, 1440))
}

func TestContinueSession(t *testing.T) {
	e, _, c := newTestEngine(t)
	taskA, _ := e.AddTask("A", "", model.PriorityMedium, 0)
	done := completeOneSession(t, e, c, taskA.ID)

	cont, err := e.ContinueSession(done.ID)
	require.NoError(t, err)
	assert.NotEqual(t, done.ID, cont.ID)
	assert.Equal(t, done.TaskIDs, cont.TaskIDs)
	assert.Equal(t, model.StatusRunning, cont.Status)

	// Only one session can be active.
	_, err = e.ContinueSession(done.ID)
	assert.ErrorIs(t, err, ErrSessionActive)

	// The original record is untouched.
	for _, s := range e.Data().Sessions {
		if s.ID == done.ID {
			assert.Equal(t, model.StatusCompleted, s.Status)
		}
	}
}

func TestContinueSessionResetsIntervalPhase(t *testing.T) {
	e, store, c := newTestEngine(t)

	// A completed session alongside a snapshot stranded mid-break, as a
	// foreign context can leave behind.
	payload := fmt.Sprintf(`{
		"version": %d,
		"updatedAt": "2026-08-20T00:00:00Z",
		"data": {
			"sessions": [
				{"id":"done","subjectId":"sub","status":"completed","startTime":100000,"endTime":400000,"accumulatedTime":300}
			],
			"timer": {"mode":"pomodoro","phase":"shortBreak","isRunning":false,"accumulated":0,"phaseAccumulated":60000,"cycleCount":3}
		}
	}`, dataVersion)
	require.NoError(t, store.Set(dataKey(e.Profiles().ActiveID), payload))
	require.NoError(t, e.Adopt())
	require.Equal(t, model.PhaseShortBreak, e.Data().Timer.Phase)

	cont, err := e.ContinueSession("done")
	require.NoError(t, err)
	assert.Equal(t, model.StatusRunning, cont.Status)

	// Continuing starts a fresh focus cycle, never a leftover break.
	snap := e.Data().Timer
	assert.Equal(t, model.PhaseFocus, snap.Phase)
	assert.Zero(t, snap.PhaseAccumulatedMs)
	assert.Zero(t, snap.CycleCount)

	// The first boundary crossed is focus into break, and the session
	// accrued the whole phase.
	c.advance(25 * time.Minute)
	res, err := e.Tick()
	require.NoError(t, err)
	require.True(t, res.Transition)
	assert.Equal(t, model.PhaseFocus, res.From)

	active, ok := e.ActiveSession()
	require.True(t, ok)
	assert.EqualValues(t, 1500, active.DurationSeconds)
}

func TestDeleteActiveSessionResetsTimer(t *testing.T) {
	e, _, c := newTestEngine(t)
	_, err := e.StartTimer("sub", "")
	require.NoError(t, err)
	c.advance(time.Minute)

	active, _ := e.ActiveSession()
	require.NoError(t, e.DeleteSession(active.ID))

	assert.Empty(t, e.Data().Sessions)
	assert.False(t, e.Data().Timer.IsRunning)
	assert.Zero(t, e.Data().Timer.AccumulatedMs)
}

// ============================================================
// Tasks and backlog
// ============================================================

func TestOverdueTaskEntersBacklog(t *testing.T) {
	e, _, c := newTestEngine(t)

	deadline := EndOfDayMs(c.plusDays(-8))
	task, err := e.AddTask("Overdue", "", model.PriorityLow, deadline)
	require.NoError(t, err)

	got := *findTask(t, e, task.ID)
	assert.True(t, got.IsBacklog)
	assert.Equal(t, model.BucketBacklog, got.Bucket)
	assert.Equal(t, deadline, got.BacklogSince)

	// Completing clears the backlog state.
	require.NoError(t, e.ToggleTask(task.ID))
	got = *findTask(t, e, task.ID)
	assert.True(t, got.Completed)
	assert.False(t, got.IsBacklog)
	assert.Equal(t, model.BucketDaily, got.Bucket)
	assert.Zero(t, got.BacklogSince)

	// Re-opening past the deadline puts it straight back.
	require.NoError(t, e.ToggleTask(task.ID))
	got = *findTask(t, e, task.ID)
	assert.True(t, got.IsBacklog)
}

func TestFutureDeadlineStaysDaily(t *testing.T) {
	e, _, c := newTestEngine(t)
	task, err := e.AddTask("Soon", "", model.PriorityHigh, EndOfDayMs(c.plusDays(2)))
	require.NoError(t, err)

	got := *findTask(t, e, task.ID)
	assert.False(t, got.IsBacklog)
	assert.Equal(t, model.BucketDaily, got.Bucket)
}

func TestDeleteSubjectNullsReferences(t *testing.T) {
	e, _, c := newTestEngine(t)

	sub, err := e.AddSubject("Math", "#ff0000")
	require.NoError(t, err)
	task, err := e.AddTask("Algebra", sub.ID, model.PriorityMedium, 0)
	require.NoError(t, err)

	_, err = e.StartTimer(sub.ID, task.ID)
	require.NoError(t, err)
	c.advance(time.Minute)
	_, _, err = e.StopTimer()
	require.NoError(t, err)

	require.NoError(t, e.DeleteSubject(sub.ID))

	d := e.Data()
	assert.Empty(t, d.Subjects)
	assert.Empty(t, findTask(t, e, task.ID).SubjectID)
	assert.Empty(t, d.Sessions[0].SubjectID)
}

func findTask(t *testing.T, e *Engine, id string) *model.Task {
	t.Helper()
	for i, task := range e.Data().Tasks {
		if task.ID == id {
			return &e.Data().Tasks[i]
		}
	}
	t.Fatalf("task %s not found", id)
	return nil
}

// ============================================================
// Daily tasks and rollover
// ============================================================

func TestAddDailyTaskDateRestriction(t *testing.T) {
	e, _, c := newTestEngine(t)

	_, err := e.AddDailyTask("today", model.PriorityHigh, c.today())
	assert.NoError(t, err)
	_, err = e.AddDailyTask("tomorrow", model.PriorityLow, c.plusDays(1).Format(isoDate))
	assert.NoError(t, err)

	_, err = e.AddDailyTask("yesterday", model.PriorityLow, c.plusDays(-1).Format(isoDate))
	assert.Error(t, err)
	_, err = e.AddDailyTask("next week", model.PriorityLow, c.plusDays(7).Format(isoDate))
	assert.Error(t, err)
	_, err = e.AddDailyTask("garbage", model.PriorityLow, "2026-13-99")
	assert.Error(t, err)
}

func TestDailyTaskStats(t *testing.T) {
	e, _, c := newTestEngine(t)

	a, _ := e.AddDailyTask("one", model.PriorityHigh, c.today())
	b, _ := e.AddDailyTask("two", model.PriorityLow, c.today())

	st := e.Data().DayStats[c.today()]
	assert.Equal(t, 2, st.Total)
	assert.Equal(t, 1, st.ByPriority[model.PriorityHigh])

	require.NoError(t, e.ToggleDailyTask(a.ID))
	st = e.Data().DayStats[c.today()]
	assert.Equal(t, 1, st.Completed)

	require.NoError(t, e.DeleteDailyTask(b.ID))
	st = e.Data().DayStats[c.today()]
	assert.Equal(t, 1, st.Total)
	assert.Zero(t, st.ByPriority[model.PriorityLow])
}

func TestRolloverMovesIncompleteAndPrunesCompleted(t *testing.T) {
	e, _, c := newTestEngine(t)
	day1 := c.today()

	open, err := e.AddDailyTask("open", model.PriorityMedium, day1)
	require.NoError(t, err)
	closed, err := e.AddDailyTask("closed", model.PriorityLow, day1)
	require.NoError(t, err)
	require.NoError(t, e.ToggleDailyTask(closed.ID))

	c.advance(24 * time.Hour)
	day2 := c.today()
	require.NoError(t, e.Adopt())

	d := e.Data()
	require.Len(t, d.DailyTasks, 1) // completed one pruned
	got := d.DailyTasks[0]
	assert.Equal(t, open.ID, got.ID)
	assert.Equal(t, day2, got.ScheduledFor)
	assert.True(t, got.IsRolledOver)
	assert.Equal(t, 1, got.RolloverCount)
	assert.Equal(t, day2, d.LastRolloverDate)

	// Yesterday's stats stay behind as history.
	assert.Equal(t, 2, d.DayStats[day1].Total)
	assert.Equal(t, 1, d.DayStats[day1].Completed)
	// Today's stats count the rolled task.
	assert.Equal(t, 1, d.DayStats[day2].Total)
	assert.Equal(t, 1, d.DayStats[day2].Rollover)
}

func TestRolloverRunsOncePerDay(t *testing.T) {
	e, _, c := newTestEngine(t)
	_, err := e.AddDailyTask("open", model.PriorityMedium, c.today())
	require.NoError(t, err)

	c.advance(24 * time.Hour)
	require.NoError(t, e.Adopt())
	require.NoError(t, e.Adopt()) // same day, second pass is a no-op

	d := e.Data()
	require.Len(t, d.DailyTasks, 1)
	assert.Equal(t, 1, d.DailyTasks[0].RolloverCount)
	assert.Equal(t, 1, d.DayStats[c.today()].Rollover)
}

// ============================================================
// Export / import
// ============================================================

func TestExportImportRoundTrip(t *testing.T) {
	e, _, c := newTestEngine(t)
	taskA, _ := e.AddTask("A", "", model.PriorityMedium, 0)
	done := completeOneSession(t, e, c, taskA.ID)
	require.NoError(t, e.SaveReflection(done.ID, model.RatingAverage, "ok"))
	_, err := e.AddDailyTask("plan", model.PriorityHigh, c.today())
	require.NoError(t, err)

	before := e.Data()
	payload, err := e.Export()
	require.NoError(t, err)

	// Wreck the state, then restore.
	require.NoError(t, e.DeleteSession(done.ID))
	require.NoError(t, e.DeleteTask(taskA.ID))

	require.NoError(t, e.Import(payload))
	assert.Equal(t, before, e.Data())
}

func TestImportRejectsGarbageAtomically(t *testing.T) {
	e, _, c := newTestEngine(t)
	completeOneSession(t, e, c)
	before := e.Data()

	assert.Error(t, e.Import([]byte("not json")))
	assert.Error(t, e.Import([]byte(`{"unrelated":true}`)))
	assert.Equal(t, before, e.Data())
}

// ============================================================
// Cross-context convergence
// ============================================================

func TestCrossContextAdoption(t *testing.T) {
	store := kv.NewMemoryMap()
	a, err := New(store)
	require.NoError(t, err)
	defer a.Close()
	b, err := New(store)
	require.NoError(t, err)
	defer b.Close()

	_, err = a.AddSubject("Shared", "#00ff00")
	require.NoError(t, err)

	// b saw a foreign write; a's own write is muted.
	select {
	case <-b.Changes():
	default:
		t.Fatal("b should have been notified of a's write")
	}
	select {
	case <-a.Changes():
		t.Fatal("a must not be notified of its own write")
	default:
	}

	require.NoError(t, b.Adopt())
	require.Len(t, b.Data().Subjects, 1)
	assert.Equal(t, "Shared", b.Data().Subjects[0].Name)

	// Convergence is a fixed point: adopting canonical data writes nothing,
	// so no notification ping-pong starts.
	select {
	case <-a.Changes():
		t.Fatal("b's adoption of canonical data must not write")
	default:
	}
}

func TestCrashedSessionRecoveredOnReload(t *testing.T) {
	store := kv.NewMemoryMap()
	a, err := New(store)
	require.NoError(t, err)

	_, err = a.StartTimer("sub", "")
	require.NoError(t, err)
	a.Close() // simulated crash: running record stays in the ledger

	b, err := New(store)
	require.NoError(t, err)
	defer b.Close()

	active, ok := b.ActiveSession()
	require.True(t, ok)
	assert.Equal(t, model.StatusRunning, active.Status)

	// The live snapshot is rebuilt from the ledger record.
	snap := b.Data().Timer
	assert.True(t, snap.IsRunning)
	assert.Equal(t, active.LastStartTimestamp, snap.StartedAtMs)
	assert.Equal(t, "sub", snap.SubjectID)
}

func TestDuplicateActiveRecordsHealedOnLoad(t *testing.T) {
	e, store, _ := newTestEngine(t)

	// Two running records, as left behind by two crashed contexts.
	payload := fmt.Sprintf(`{
		"version": %d,
		"updatedAt": "2026-08-20T00:00:00Z",
		"data": {
			"sessions": [
				{"id":"old","status":"running","startTime":100000,"accumulatedTime":60,"lastStartTimestamp":160000},
				{"id":"new","status":"running","startTime":200000,"accumulatedTime":60,"lastStartTimestamp":260000}
			]
		}
	}`, dataVersion)
	require.NoError(t, store.Set(dataKey(e.Profiles().ActiveID), payload))
	require.NoError(t, e.Adopt())

	sessions := e.Data().Sessions
	require.Len(t, sessions, 2)
	active := 0
	for _, s := range sessions {
		if s.Active() {
			active++
			assert.Equal(t, "new", s.ID)
		} else {
			assert.Equal(t, model.StatusCompleted, s.Status)
			assert.EqualValues(t, 160_000, s.EndTime)
		}
	}
	assert.Equal(t, 1, active)
}

// ============================================================
// Schema migrations
// ============================================================

func TestLoadMigratesV1Payload(t *testing.T) {
	e, store, c := newTestEngine(t)

	v1 := `{
		"version": 1,
		"updatedAt": "2025-01-01T00:00:00Z",
		"data": {
			"subjects": [{"id":"sub","name":"Math","color":"#fff"}],
			"history": [{"id":"1","taskId":"t1","startTime":1700000000000,"duration":120000,"isActive":false}],
			"tasks": [{"id":"t1","title":"Algebra","priority":"high","dueDate":"2026-08-10"}],
			"pomodoro": {"work":30,"break":10,"longBreak":20,"count":3}
		}
	}`
	require.NoError(t, store.Set(dataKey(e.Profiles().ActiveID), v1))
	require.NoError(t, e.Adopt())

	d := e.Data()

	// history -> sessions, with the legacy ms duration and task id converted.
	require.Len(t, d.Sessions, 1)
	s := d.Sessions[0]
	assert.Equal(t, model.StatusCompleted, s.Status)
	assert.EqualValues(t, 120, s.DurationSeconds)
	assert.Equal(t, []string{"t1"}, s.TaskIDs)

	// dueDate -> end-of-day deadline; the date is past, so it backlogs.
	require.Len(t, d.Tasks, 1)
	wantDeadline := EndOfDayMs(time.Date(2026, 8, 10, 0, 0, 0, 0, time.Local))
	assert.Equal(t, wantDeadline, d.Tasks[0].Deadline)
	assert.True(t, d.Tasks[0].IsBacklog)

	// pomodoro minutes -> flat settings seconds.
	assert.Equal(t, 1800, d.Settings.FocusSeconds)
	assert.Equal(t, 600, d.Settings.ShortBreakSeconds)
	assert.Equal(t, 1200, d.Settings.LongBreakSeconds)
	assert.Equal(t, 3, d.Settings.LongBreakInterval)

	// The healed payload is written back at the current version.
	rawStored, ok, err := store.Get(dataKey(e.Profiles().ActiveID))
	require.NoError(t, err)
	require.True(t, ok)
	var env struct {
		Version int `json:"version"`
	}
	require.NoError(t, json.Unmarshal([]byte(rawStored), &env))
	assert.Equal(t, dataVersion, env.Version)

	_ = c
}

func TestForwardVersionDiscardsToDefaults(t *testing.T) {
	e, store, _ := newTestEngine(t)

	future := fmt.Sprintf(`{"version": %d, "updatedAt":"2026-01-01T00:00:00Z", "data":{"subjects":[{"id":"x","name":"Future"}]}}`, dataVersion+1)
	require.NoError(t, store.Set(dataKey(e.Profiles().ActiveID), future))
	require.NoError(t, e.Adopt())

	assert.Empty(t, e.Data().Subjects)
	assert.Equal(t, model.DefaultSettings(), e.Data().Settings)
}

// ============================================================
// Profiles
// ============================================================

func TestProfileLifecycle(t *testing.T) {
	e, _, _ := newTestEngine(t)

	_, err := e.AddSubject("Only in default", "#123456")
	require.NoError(t, err)

	p, err := e.CreateProfile("Work")
	require.NoError(t, err)
	require.NoError(t, e.SwitchProfile(p.ID))

	assert.Equal(t, p.ID, e.Profiles().ActiveID)
	assert.Empty(t, e.Data().Subjects) // fresh data set

	require.NoError(t, e.RenameProfile(p.ID, "Deep Work"))
	assert.Equal(t, "Deep Work", e.ActiveProfile().Name)

	// Switching back restores the original data.
	def := e.Profiles().Profiles[0]
	require.NoError(t, e.SwitchProfile(def.ID))
	require.Len(t, e.Data().Subjects, 1)

	// Deleting the non-active profile leaves the active one alone.
	require.NoError(t, e.DeleteProfile(p.ID))
	assert.Len(t, e.Profiles().Profiles, 1)

	// The last profile cannot go.
	assert.Error(t, e.DeleteProfile(def.ID))
}

func TestDeleteActiveProfileSwitches(t *testing.T) {
	e, _, _ := newTestEngine(t)
	p, err := e.CreateProfile("Second")
	require.NoError(t, err)
	require.NoError(t, e.SwitchProfile(p.ID))

	require.NoError(t, e.DeleteProfile(p.ID))
	assert.NotEqual(t, p.ID, e.Profiles().ActiveID)
	require.Len(t, e.Profiles().Profiles, 1)
}

func TestDeleteProfileRemovesDataKeySilently(t *testing.T) {
	e, store, _ := newTestEngine(t)

	p, err := e.CreateProfile("Scratch")
	require.NoError(t, err)
	require.NoError(t, e.SwitchProfile(p.ID))
	_, err = e.AddSubject("Only here", "#abcdef")
	require.NoError(t, err)

	def := e.Profiles().Profiles[0]
	require.NoError(t, e.SwitchProfile(def.ID))

	// Store subscribers run synchronously on the deleting goroutine; the
	// delete must return with the engine still subscribed.
	require.NoError(t, e.DeleteProfile(p.ID))

	_, found, err := store.Get(dataKey(p.ID))
	require.NoError(t, err)
	assert.False(t, found, "deleted profile's data key should be gone")

	// The removal is our own write, never reported as a foreign change.
	select {
	case <-e.Changes():
		t.Fatal("profile deletion must not signal a foreign change")
	default:
	}
}
