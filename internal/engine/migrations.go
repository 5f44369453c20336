package engine

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ozgurcan/studyr/internal/model"
	"github.com/ozgurcan/studyr/internal/storage"
)

const (
	keyPrefix   = "studyr:"
	profilesKey = keyPrefix + "profiles"

	profileVersion = 1
	dataVersion    = 3
)

func dataKey(profileID string) string {
	return keyPrefix + "data:" + profileID
}

func (e *Engine) codecFor(profileID string) *storage.Codec {
	return storage.NewCodec(e.store, dataKey(profileID), dataVersion, dataMigrations(), nil)
}

// dataMigrations upgrades persisted UserData payloads one version at a time.
// Migrations operate on generic maps so they stay decoupled from the current
// struct shapes.
func dataMigrations() map[int]storage.Migration {
	return map[int]storage.Migration{
		1: migrateDataV1,
		2: migrateDataV2,
	}
}

// v1 stored sessions under "history" and task deadlines as ISO date strings
// under "dueDate". v2 renames the ledger and converts each due date to an
// end-of-day local timestamp in milliseconds.
func migrateDataV1(data json.RawMessage) (json.RawMessage, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode v1 payload: %w", err)
	}

	if history, ok := m["history"]; ok {
		m["sessions"] = history
		delete(m, "history")
	}

	if tasks, ok := m["tasks"].([]any); ok {
		for _, raw := range tasks {
			task, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			due, ok := task["dueDate"].(string)
			delete(task, "dueDate")
			if !ok || due == "" {
				continue
			}
			day, err := time.ParseInLocation("2006-01-02", due, time.Local)
			if err != nil {
				continue
			}
			task["deadline"] = endOfDay(day).UnixMilli()
		}
	}

	return json.Marshal(m)
}

// v2 kept interval-cycling configuration in a nested "pomodoro" object with
// minute granularity. v3 flattens it into the settings block and seeds the
// daily-task bookkeeping fields.
func migrateDataV2(data json.RawMessage) (json.RawMessage, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode v2 payload: %w", err)
	}

	settings := model.DefaultSettings()
	if pomo, ok := m["pomodoro"].(map[string]any); ok {
		if v, ok := pomo["work"].(float64); ok && v > 0 {
			settings.FocusSeconds = int(v) * 60
		}
		if v, ok := pomo["break"].(float64); ok && v > 0 {
			settings.ShortBreakSeconds = int(v) * 60
		}
		if v, ok := pomo["longBreak"].(float64); ok && v > 0 {
			settings.LongBreakSeconds = int(v) * 60
		}
		if v, ok := pomo["count"].(float64); ok && v > 0 {
			settings.LongBreakInterval = int(v)
		}
		delete(m, "pomodoro")
	}
	m["settings"] = settings

	if _, ok := m["dayStats"]; !ok {
		m["dayStats"] = map[string]any{}
	}
	if _, ok := m["lastRolloverDate"]; !ok {
		m["lastRolloverDate"] = ""
	}

	return json.Marshal(m)
}

func endOfDay(day time.Time) time.Time {
	day = day.Local()
	return time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, 0, time.Local)
}
