// Package ledger turns raw persisted session records into the canonical,
// invariant-satisfying shape. Records may arrive from an older schema, a
// corrupted write or a concurrent browsing context; each one is repaired
// independently, and a single bad record never takes down the dataset.
//
// Post-conditions, for every normalized list:
//   - each session's allocations sum exactly to its duration, none negative
//   - at most one session is running or paused
//   - durations sit in [0, MaxSessionSeconds]
package ledger

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/ozgurcan/studyr/internal/model"
)

// Normalize repairs every record and then resolves duplicate active
// sessions. dropped counts records too corrupt to coerce into a minimally
// valid session.
func Normalize(raws []model.RawSession) (sessions []model.StudySession, dropped int) {
	for _, r := range raws {
		s, ok := normalizeRecord(r)
		if !ok {
			dropped++
			continue
		}
		sessions = append(sessions, s)
	}
	resolveDuplicateActive(sessions)
	return sessions, dropped
}

// ActiveIndex returns the index of the single active (running or paused)
// session, or -1. Valid only on a normalized list.
func ActiveIndex(sessions []model.StudySession) int {
	for i, s := range sessions {
		if s.Active() {
			return i
		}
	}
	return -1
}

func normalizeRecord(r model.RawSession) (model.StudySession, bool) {
	var s model.StudySession

	s.ID = coerceID(r.ID)

	// A record with neither a start instant nor any duration source carries
	// no usable information; drop it rather than invent a session.
	if r.StartTime <= 0 && r.AccumulatedTime == nil && r.LegacyDurationMs == nil {
		return s, false
	}

	s.SubjectID = r.SubjectID
	s.Status = resolveStatus(r)
	s.DurationSeconds = resolveDuration(r)
	if r.StartTime > 0 {
		s.StartTime = int64(r.StartTime)
	}
	s.EndTime = resolveEndTime(r, s)
	s.TaskIDs = resolveTaskSet(r)

	if r.ActiveTaskID != "" && contains(s.TaskIDs, r.ActiveTaskID) {
		s.ActiveTaskID = r.ActiveTaskID
	}
	if s.Status != model.StatusRunning {
		s.ActiveTaskID = ""
	}

	s.TaskAllocations = resolveAllocations(r, s)
	Rebalance(s.TaskAllocations, s.TaskIDs, s.ActiveTaskID, s.DurationSeconds)

	if s.Status == model.StatusRunning && r.LastStartTimestamp != nil && *r.LastStartTimestamp > 0 {
		s.LastStartTimestamp = int64(*r.LastStartTimestamp)
	}

	switch model.Rating(r.ReflectionRating) {
	case model.RatingProductive, model.RatingAverage, model.RatingDistracted:
		s.ReflectionRating = model.Rating(r.ReflectionRating)
	}
	s.ReflectionComment = r.ReflectionComment

	return s, true
}

// coerceID trusts a non-empty string id, renders a numeric legacy id, and
// generates a fresh one for anything else.
func coerceID(id any) string {
	switch v := id.(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return fmt.Sprintf("%.0f", v)
	}
	return uuid.NewString()
}

// resolveStatus trusts an explicit valid status and otherwise infers one
// from the legacy activity flag.
func resolveStatus(r model.RawSession) model.SessionStatus {
	switch model.SessionStatus(r.Status) {
	case model.StatusRunning, model.StatusPaused, model.StatusCompleted:
		return model.SessionStatus(r.Status)
	}
	if r.IsActive != nil && *r.IsActive {
		return model.StatusPaused
	}
	return model.StatusCompleted
}

// resolveDuration prefers the explicit seconds field over the legacy
// millisecond one and clamps into [0, MaxSessionSeconds].
func resolveDuration(r model.RawSession) int64 {
	var secs int64
	switch {
	case r.AccumulatedTime != nil:
		secs = int64(*r.AccumulatedTime)
	case r.LegacyDurationMs != nil:
		secs = int64(*r.LegacyDurationMs) / 1000
	}
	if secs < 0 {
		return 0
	}
	if secs > model.MaxSessionSeconds {
		return model.MaxSessionSeconds
	}
	return secs
}

// resolveEndTime is nil (zero) while not completed; otherwise the later of
// the stored end time and startTime + duration, never earlier than start.
func resolveEndTime(r model.RawSession, s model.StudySession) int64 {
	if s.Status != model.StatusCompleted {
		return 0
	}
	end := s.StartTime + s.DurationSeconds*1000
	if r.EndTime != nil && int64(*r.EndTime) > end {
		end = int64(*r.EndTime)
	}
	if end < s.StartTime {
		end = s.StartTime
	}
	return end
}

// resolveTaskSet unions the explicit task-id list with the legacy single id,
// de-duplicated, order preserved.
func resolveTaskSet(r model.RawSession) []string {
	var ids []string
	seen := map[string]bool{}
	add := func(id string) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		ids = append(ids, id)
	}
	for _, id := range r.TaskIDs {
		add(id)
	}
	add(r.LegacyTaskID)
	return ids
}

// resolveAllocations sanitizes the stored map down to the resolved task ids
// with non-negative integer seconds. An empty map with a usable fallback
// task and a positive duration gets the whole duration.
func resolveAllocations(r model.RawSession, s model.StudySession) map[string]int64 {
	alloc := map[string]int64{}
	for _, id := range s.TaskIDs {
		if v, ok := r.TaskAllocations[id]; ok && v > 0 {
			alloc[id] = int64(v)
		}
	}
	if len(alloc) == 0 && s.DurationSeconds > 0 && len(s.TaskIDs) > 0 {
		alloc[preferredTask(s.TaskIDs, s.ActiveTaskID)] = s.DurationSeconds
	}
	return alloc
}

func preferredTask(order []string, activeID string) string {
	if activeID != "" && contains(order, activeID) {
		return activeID
	}
	return order[0]
}

// Rebalance adjusts alloc in place so its values sum exactly to total,
// never letting any allocation go negative. The adjustment order is
// deterministic: the active task first, then declared task order. When
// nothing else can absorb the difference the whole total lands on the
// preferred task.
func Rebalance(alloc map[string]int64, order []string, activeID string, total int64) {
	if len(order) == 0 {
		for id := range alloc {
			delete(alloc, id)
		}
		return
	}

	// Drop negatives and ids outside the task set before balancing.
	inSet := map[string]bool{}
	for _, id := range order {
		inSet[id] = true
	}
	for id, v := range alloc {
		if !inSet[id] || v < 0 {
			delete(alloc, id)
		}
	}

	walk := make([]string, 0, len(order))
	pref := preferredTask(order, activeID)
	walk = append(walk, pref)
	for _, id := range order {
		if id != pref {
			walk = append(walk, id)
		}
	}

	var sum int64
	for _, v := range alloc {
		sum += v
	}
	diff := total - sum
	if diff == 0 {
		return
	}

	if diff > 0 {
		alloc[pref] += diff
		return
	}

	deficit := -diff
	for _, id := range walk {
		if deficit == 0 {
			break
		}
		take := alloc[id]
		if take > deficit {
			take = deficit
		}
		if take > 0 {
			alloc[id] -= take
			deficit -= take
		}
	}
	if deficit > 0 {
		// Allocations could not absorb the difference; concentrate the
		// whole duration on the preferred task.
		for id := range alloc {
			delete(alloc, id)
		}
		alloc[pref] = total
	}
}

// resolveDuplicateActive keeps only the most recently started active session
// and force-completes the rest as of their own recorded duration. No time is
// invented or destroyed.
func resolveDuplicateActive(sessions []model.StudySession) {
	keep := -1
	for i, s := range sessions {
		if !s.Active() {
			continue
		}
		if keep == -1 || s.StartTime > sessions[keep].StartTime {
			keep = i
		}
	}
	for i := range sessions {
		if i == keep || !sessions[i].Active() {
			continue
		}
		forceComplete(&sessions[i])
	}
}

func forceComplete(s *model.StudySession) {
	s.Status = model.StatusCompleted
	s.LastStartTimestamp = 0
	s.ActiveTaskID = ""
	end := s.StartTime + s.DurationSeconds*1000
	if end < s.StartTime {
		end = s.StartTime
	}
	s.EndTime = end
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
