package model

// Wire shapes form the parse boundary between storage and the canonical
// model. They tolerate legacy fields, missing fields and loosely typed
// values; nothing downstream of ledger normalization ever sees them.

// RawSession is the lenient on-disk shape of a session record. It decodes
// both the current shape and the legacy one (boolean activity flag, single
// task id, millisecond duration).
type RawSession struct {
	ID        any      `json:"id"` // string expected, anything tolerated
	SubjectID string   `json:"subjectId,omitempty"`
	TaskIDs   []string `json:"taskIds,omitempty"`

	// Legacy single-task field, unioned into TaskIDs during normalization.
	LegacyTaskID string `json:"taskId,omitempty"`

	TaskAllocations map[string]float64 `json:"taskAllocations,omitempty"`
	ActiveTaskID    string             `json:"activeTaskId,omitempty"`

	Status string `json:"status,omitempty"`
	// Legacy activity flag: true -> paused, false -> completed.
	IsActive *bool `json:"isActive,omitempty"`

	StartTime float64  `json:"startTime,omitempty"` // unix ms
	EndTime   *float64 `json:"endTime,omitempty"`   // unix ms

	// Current duration field, whole seconds.
	AccumulatedTime *float64 `json:"accumulatedTime,omitempty"`
	// Legacy duration field, milliseconds.
	LegacyDurationMs *float64 `json:"duration,omitempty"`

	LastStartTimestamp *float64 `json:"lastStartTimestamp,omitempty"` // unix ms

	ReflectionRating  string `json:"reflectionRating,omitempty"`
	ReflectionComment string `json:"reflectionComment,omitempty"`
}

// RawUserData is the lenient wire shape of a full UserData blob. Its
// sessions pass through ledger normalization before anything else touches
// them; the remaining fields decode strictly enough to be used as-is.
type RawUserData struct {
	Subjects         []Subject           `json:"subjects"`
	Tasks            []Task              `json:"tasks"`
	Sessions         []RawSession        `json:"sessions"`
	DailyTasks       []DailyTask         `json:"dailyTasks"`
	DayStats         map[string]DayStats `json:"dayStats"`
	Settings         *Settings           `json:"settings"`
	Timer            *TimerSnapshot      `json:"timer"`
	LastRolloverDate string              `json:"lastRolloverDate"`
}

func DefaultRawUserData() RawUserData {
	return RawUserData{DayStats: map[string]DayStats{}}
}

// RawFromSession converts a canonical session back to its wire shape.
// Used when re-normalizing in-memory data without a storage round trip.
func RawFromSession(s StudySession) RawSession {
	acc := float64(s.DurationSeconds)
	r := RawSession{
		ID:           s.ID,
		SubjectID:    s.SubjectID,
		TaskIDs:      s.TaskIDs,
		ActiveTaskID: s.ActiveTaskID,
		Status:       string(s.Status),
		StartTime:    float64(s.StartTime),

		AccumulatedTime:   &acc,
		ReflectionRating:  string(s.ReflectionRating),
		ReflectionComment: s.ReflectionComment,
	}
	if len(s.TaskAllocations) > 0 {
		r.TaskAllocations = make(map[string]float64, len(s.TaskAllocations))
		for id, secs := range s.TaskAllocations {
			r.TaskAllocations[id] = float64(secs)
		}
	}
	if s.EndTime > 0 {
		end := float64(s.EndTime)
		r.EndTime = &end
	}
	if s.LastStartTimestamp > 0 {
		last := float64(s.LastStartTimestamp)
		r.LastStartTimestamp = &last
	}
	return r
}
