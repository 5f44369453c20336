package model

// Priority of a task.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// SessionStatus is the lifecycle state of a study session. Completed is
// terminal.
type SessionStatus string

const (
	StatusRunning   SessionStatus = "running"
	StatusPaused    SessionStatus = "paused"
	StatusCompleted SessionStatus = "completed"
)

// Rating is the self-reported reflection on a finished session.
type Rating string

const (
	RatingProductive Rating = "productive"
	RatingAverage    Rating = "average"
	RatingDistracted Rating = "distracted"
)

// TimerMode selects between a free-running stopwatch and interval cycling.
type TimerMode string

const (
	ModeStopwatch TimerMode = "stopwatch"
	ModePomodoro  TimerMode = "pomodoro"
)

// Phase is the sub-state of an interval-cycling timer.
type Phase string

const (
	PhaseFocus      Phase = "focus"
	PhaseShortBreak Phase = "shortBreak"
	PhaseLongBreak  Phase = "longBreak"
)

// Bucket classifies a task as on-schedule or overdue.
type Bucket string

const (
	BucketDaily   Bucket = "daily"
	BucketBacklog Bucket = "backlog"
)

// MaxSessionSeconds caps a single session's duration (~166 hours). Anything
// above it is treated as a corrupted multi-day value and clamped.
const MaxSessionSeconds int64 = 600_000

// Profile isolates one user's data set. Each profile owns exactly one
// UserData blob under its own storage key.
type Profile struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"createdAt"` // unix ms
	UpdatedAt int64  `json:"updatedAt"` // unix ms
}

// ProfileIndex is the persisted list of profiles plus the active one.
type ProfileIndex struct {
	Profiles []Profile `json:"profiles"`
	ActiveID string    `json:"activeId"`
}

type Subject struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Task is a unit of work under an optional subject. TotalTimeSeconds,
// SessionCount and LastWorkedAt are caches recomputed from the session
// ledger on every load cycle; storage is never trusted for them.
type Task struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	SubjectID string   `json:"subjectId,omitempty"`
	Priority  Priority `json:"priority"`
	Completed bool     `json:"completed"`
	Deadline  int64    `json:"deadline,omitempty"` // unix ms, 0 = none

	IsBacklog    bool   `json:"isBacklog"`
	BacklogSince int64  `json:"backlogSince,omitempty"` // unix ms, set once on entry
	Bucket       Bucket `json:"bucket"`

	TotalTimeSeconds int64 `json:"totalTimeSeconds"`
	SessionCount     int   `json:"sessionCount"`
	LastWorkedAt     int64 `json:"lastWorkedAt,omitempty"` // unix ms

	CreatedAt int64 `json:"createdAt"` // unix ms
}

// StudySession is a block of tracked time, optionally split across several
// tasks. Invariant after normalization: the allocation values sum exactly to
// DurationSeconds and none is negative.
type StudySession struct {
	ID              string           `json:"id"`
	SubjectID       string           `json:"subjectId,omitempty"`
	TaskIDs         []string         `json:"taskIds,omitempty"`
	TaskAllocations map[string]int64 `json:"taskAllocations,omitempty"` // taskID -> seconds
	ActiveTaskID    string           `json:"activeTaskId,omitempty"`    // accruing task while running
	Status          SessionStatus    `json:"status"`

	StartTime       int64 `json:"startTime"`         // unix ms
	EndTime         int64 `json:"endTime,omitempty"` // unix ms, 0 while not completed
	DurationSeconds int64 `json:"accumulatedTime"`   // canonical duration, whole seconds

	// LastStartTimestamp is the wall-clock instant the running phase last
	// resumed. Zero unless Status is running.
	LastStartTimestamp int64 `json:"lastStartTimestamp,omitempty"` // unix ms

	ReflectionRating  Rating `json:"reflectionRating,omitempty"`
	ReflectionComment string `json:"reflectionComment,omitempty"`
}

// Active reports whether the session still holds the single active slot.
func (s StudySession) Active() bool {
	return s.Status == StatusRunning || s.Status == StatusPaused
}

// TimerSnapshot is the live counterpart of an in-progress session. All
// elapsed-time math is a pure function of this snapshot and a caller-supplied
// now, so the host can tick at any cadence.
type TimerSnapshot struct {
	Mode      TimerMode `json:"mode"`
	Phase     Phase     `json:"phase"`
	IsRunning bool      `json:"isRunning"`

	StartedAtMs   int64 `json:"startedAt,omitempty"` // unix ms, 0 unless running
	AccumulatedMs int64 `json:"accumulated"`

	// Phase-local pair, reset on every phase transition. The outer
	// accumulator keeps counting across phase resets.
	PhaseStartedAtMs   int64 `json:"phaseStartedAt,omitempty"`
	PhaseAccumulatedMs int64 `json:"phaseAccumulated"`

	CycleCount int `json:"cycleCount"` // completed focus phases

	SubjectID string `json:"subjectId,omitempty"`
	TaskID    string `json:"taskId,omitempty"`
}

// DailyTask is a date-scoped task, schedulable for today or tomorrow only.
// Incomplete tasks whose date has passed are rolled forward, never dropped.
type DailyTask struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Priority      Priority `json:"priority"`
	ScheduledFor  string   `json:"scheduledFor"` // ISO date "2006-01-02"
	Completed     bool     `json:"completed"`
	IsRolledOver  bool     `json:"isRolledOver"`
	RolloverCount int      `json:"rolloverCount"`
}

// DayStats holds per-date aggregate counters for daily tasks. Maintained
// incrementally alongside daily task mutations; live dates must match a
// from-scratch recomputation.
type DayStats struct {
	Total      int              `json:"total"`
	Completed  int              `json:"completed"`
	Rollover   int              `json:"rollover"`
	ByPriority map[Priority]int `json:"byPriority,omitempty"`
}

type Settings struct {
	FocusSeconds      int    `json:"focusSeconds"`
	ShortBreakSeconds int    `json:"shortBreakSeconds"`
	LongBreakSeconds  int    `json:"longBreakSeconds"`
	LongBreakInterval int    `json:"longBreakInterval"` // focus phases per long break
	AutoAdvance       bool   `json:"autoAdvance"`
	DailyGoalSeconds  int64  `json:"dailyGoalSeconds"`
	WeekStart         string `json:"weekStart"` // "monday" or "sunday"
}

func DefaultSettings() Settings {
	return Settings{
		FocusSeconds:      1500,
		ShortBreakSeconds: 300,
		LongBreakSeconds:  900,
		LongBreakInterval: 4,
		AutoAdvance:       false,
		DailyGoalSeconds:  14400,
		WeekStart:         "monday",
	}
}

func DefaultTimerSnapshot() TimerSnapshot {
	return TimerSnapshot{Mode: ModeStopwatch, Phase: PhaseFocus}
}

// UserData is the canonical per-profile aggregate. Derived state (task
// totals, buckets, the active session index) is always a pure function of
// the session ledger, recomputed at load time.
type UserData struct {
	Subjects         []Subject           `json:"subjects"`
	Tasks            []Task              `json:"tasks"`
	Sessions         []StudySession      `json:"sessions"`
	DailyTasks       []DailyTask         `json:"dailyTasks"`
	DayStats         map[string]DayStats `json:"dayStats"`
	Settings         Settings            `json:"settings"`
	Timer            TimerSnapshot       `json:"timer"`
	LastRolloverDate string              `json:"lastRolloverDate"`
}

// Clone deep-copies the aggregate so callers can hold a snapshot while the
// engine keeps mutating its own state.
func (d UserData) Clone() UserData {
	out := d
	out.Subjects = append([]Subject(nil), d.Subjects...)
	out.Tasks = append([]Task(nil), d.Tasks...)
	out.DailyTasks = append([]DailyTask(nil), d.DailyTasks...)

	out.Sessions = make([]StudySession, len(d.Sessions))
	for i, s := range d.Sessions {
		out.Sessions[i] = s.Clone()
	}

	out.DayStats = make(map[string]DayStats, len(d.DayStats))
	for date, st := range d.DayStats {
		if st.ByPriority != nil {
			by := make(map[Priority]int, len(st.ByPriority))
			for p, n := range st.ByPriority {
				by[p] = n
			}
			st.ByPriority = by
		}
		out.DayStats[date] = st
	}
	return out
}

// Clone deep-copies the session, detaching its task set and allocations.
func (s StudySession) Clone() StudySession {
	out := s
	out.TaskIDs = append([]string(nil), s.TaskIDs...)
	if s.TaskAllocations != nil {
		out.TaskAllocations = make(map[string]int64, len(s.TaskAllocations))
		for id, v := range s.TaskAllocations {
			out.TaskAllocations[id] = v
		}
	}
	return out
}

func DefaultUserData() UserData {
	return UserData{
		DayStats: map[string]DayStats{},
		Settings: DefaultSettings(),
		Timer:    DefaultTimerSnapshot(),
	}
}
