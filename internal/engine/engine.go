// Package engine is the state container behind the UI: it owns the active
// profile's UserData, runs the load cycle that turns raw persisted records
// into canonical state, and persists the full envelope after every mutation.
//
// The load cycle (read, migrate, normalize, roll over daily tasks, refresh
// backlog, recompute aggregates) runs at startup, on profile switch and
// whenever another context writes the active data key. Because every step is
// idempotent, two contexts converging on the same payload settle without
// write ping-pong.
package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ozgurcan/studyr/internal/aggregate"
	"github.com/ozgurcan/studyr/internal/kv"
	"github.com/ozgurcan/studyr/internal/ledger"
	"github.com/ozgurcan/studyr/internal/model"
	"github.com/ozgurcan/studyr/internal/storage"
)

type Engine struct {
	store kv.Store
	now   func() time.Time

	mu       sync.Mutex
	profiles model.ProfileIndex
	data     model.UserData

	profileCodec *storage.Codec
	dataCodec    *storage.Codec

	// selfWrite mutes change notifications caused by our own persists.
	selfWrite atomic.Bool
	// activeKey mirrors dataCodec.Key() so onStoreChange never takes mu;
	// store subscribers run synchronously and must not block.
	activeKey atomic.Value

	changes     chan struct{}
	unsubscribe func()
}

// New opens the engine against a key-value store, creating a default profile
// on first run and loading the active profile's data.
func New(store kv.Store) (*Engine, error) {
	e := &Engine{
		store:        store,
		now:          time.Now,
		profileCodec: storage.NewCodec(store, profilesKey, profileVersion, nil, nil),
		changes:      make(chan struct{}, 1),
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ensureProfileLocked(); err != nil {
		return nil, err
	}
	e.setDataCodecLocked(e.profiles.ActiveID)
	if err := e.reloadLocked(); err != nil {
		return nil, err
	}

	e.unsubscribe = store.Subscribe(e.onStoreChange)
	return e, nil
}

// Close detaches from the store's change notifications.
func (e *Engine) Close() {
	if e.unsubscribe != nil {
		e.unsubscribe()
	}
}

// Data returns a detached snapshot of the active profile's state.
func (e *Engine) Data() model.UserData {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.data.Clone()
}

// ActiveSession returns the single running or paused session, if any.
func (e *Engine) ActiveSession() (model.StudySession, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s := e.activeLocked(); s != nil {
		return s.Clone(), true
	}
	return model.StudySession{}, false
}

// Changes signals that another context wrote the active data key. The host
// drains it and calls Adopt.
func (e *Engine) Changes() <-chan struct{} { return e.changes }

// Adopt re-runs the full load cycle against whatever is persisted now.
// Safe to call at any time; reconciliation is idempotent.
func (e *Engine) Adopt() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureProfileLocked(); err != nil {
		return err
	}
	e.setDataCodecLocked(e.profiles.ActiveID)
	return e.reloadLocked()
}

func (e *Engine) setDataCodecLocked(id string) {
	e.dataCodec = e.codecFor(id)
	e.activeKey.Store(e.dataCodec.Key())
}

// onStoreChange runs on the writer's goroutine, including our own when a
// persist happens under mu. It must stay lock-free.
func (e *Engine) onStoreChange(ch kv.Change) {
	if e.selfWrite.Load() {
		return
	}
	key, _ := e.activeKey.Load().(string)
	if ch.Key != profilesKey && ch.Key != key {
		return
	}
	select {
	case e.changes <- struct{}{}:
	default:
	}
}

// reloadLocked reads the persisted payload, reconciles it into canonical
// state and writes the canonical form back only when it differs. The
// write-back is what heals legacy or corrupted payloads in place.
func (e *Engine) reloadLocked() error {
	stored, found := e.dataCodec.LoadRaw()

	raw := model.DefaultRawUserData()
	if found {
		if err := json.Unmarshal(stored, &raw); err != nil {
			raw = model.DefaultRawUserData()
			found = false
		}
	}

	e.data = e.reconcile(raw)

	canonical, err := json.Marshal(e.data)
	if err != nil {
		return fmt.Errorf("encode user data: %w", err)
	}
	if found && bytes.Equal(canonical, stored) {
		return nil
	}
	return e.persistLocked()
}

// reconcile turns a lenient wire payload into canonical state. Every step is
// a pure function of (payload, now), so repeating it is a no-op.
func (e *Engine) reconcile(raw model.RawUserData) model.UserData {
	now := e.now()

	d := model.DefaultUserData()
	d.Subjects = raw.Subjects
	d.Tasks = raw.Tasks
	d.DailyTasks = raw.DailyTasks
	if raw.DayStats != nil {
		d.DayStats = raw.DayStats
	}
	if raw.Settings != nil {
		d.Settings = sanitizeSettings(*raw.Settings)
	}
	if raw.Timer != nil {
		d.Timer = *raw.Timer
	}
	d.LastRolloverDate = raw.LastRolloverDate

	d.Sessions, _ = ledger.Normalize(raw.Sessions)

	rollOver(&d, now)
	refreshBacklog(d.Tasks, now)
	aggregate.Recompute(d.Tasks, d.Sessions)
	reconcileTimer(&d)

	return d
}

// persistLocked writes the full canonical envelope. Own writes are muted so
// the change subscription only reports foreign ones.
func (e *Engine) persistLocked() error {
	e.selfWrite.Store(true)
	defer e.selfWrite.Store(false)
	return e.dataCodec.SaveRaw(e.data)
}

func (e *Engine) activeLocked() *model.StudySession {
	if i := ledger.ActiveIndex(e.data.Sessions); i >= 0 {
		return &e.data.Sessions[i]
	}
	return nil
}

func (e *Engine) sessionByID(id string) *model.StudySession {
	for i := range e.data.Sessions {
		if e.data.Sessions[i].ID == id {
			return &e.data.Sessions[i]
		}
	}
	return nil
}

// sanitizeSettings replaces out-of-range values with defaults field by
// field, so one bad setting never resets the rest.
func sanitizeSettings(s model.Settings) model.Settings {
	def := model.DefaultSettings()
	if s.FocusSeconds <= 0 {
		s.FocusSeconds = def.FocusSeconds
	}
	if s.ShortBreakSeconds <= 0 {
		s.ShortBreakSeconds = def.ShortBreakSeconds
	}
	if s.LongBreakSeconds <= 0 {
		s.LongBreakSeconds = def.LongBreakSeconds
	}
	if s.LongBreakInterval <= 0 {
		s.LongBreakInterval = def.LongBreakInterval
	}
	if s.DailyGoalSeconds <= 0 {
		s.DailyGoalSeconds = def.DailyGoalSeconds
	}
	if s.WeekStart != "monday" && s.WeekStart != "sunday" {
		s.WeekStart = def.WeekStart
	}
	return s
}

// UpdateSettings sanitizes and persists new user settings.
func (e *Engine) UpdateSettings(s model.Settings) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.data.Settings = sanitizeSettings(s)
	return e.persistLocked()
}

// reconcileTimer forces the live snapshot to agree with the session ledger:
// the ledger record is the durable truth, the snapshot merely mirrors it.
func reconcileTimer(d *model.UserData) {
	i := ledger.ActiveIndex(d.Sessions)
	if i < 0 {
		if d.Timer.IsRunning || d.Timer.AccumulatedMs != 0 || d.Timer.SubjectID != "" {
			reset := model.DefaultTimerSnapshot()
			reset.Mode = d.Timer.Mode
			d.Timer = reset
		}
		return
	}

	s := d.Sessions[i]
	t := d.Timer
	t.SubjectID = s.SubjectID
	t.TaskID = s.ActiveTaskID
	t.AccumulatedMs = s.DurationSeconds * 1000
	t.IsRunning = s.Status == model.StatusRunning && s.LastStartTimestamp > 0
	if t.IsRunning {
		t.StartedAtMs = s.LastStartTimestamp
		if t.PhaseStartedAtMs == 0 {
			t.PhaseStartedAtMs = s.LastStartTimestamp
		}
	} else {
		t.StartedAtMs = 0
		t.PhaseStartedAtMs = 0
	}
	d.Timer = t
}

// refreshBacklog re-derives each task's bucket from its deadline. The entry
// timestamp is the deadline instant itself, so priority escalation reflects
// how long the task has actually been overdue, not when the app last ran.
func refreshBacklog(tasks []model.Task, now time.Time) {
	nowMs := now.UnixMilli()
	for i := range tasks {
		t := &tasks[i]
		overdue := !t.Completed && t.Deadline > 0 && t.Deadline < nowMs
		if overdue {
			t.IsBacklog = true
			t.Bucket = model.BucketBacklog
			if t.BacklogSince == 0 {
				t.BacklogSince = t.Deadline
			}
		} else {
			t.IsBacklog = false
			t.Bucket = model.BucketDaily
			t.BacklogSince = 0
		}
	}
}
