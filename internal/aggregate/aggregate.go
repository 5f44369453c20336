// Package aggregate recomputes the per-task rollup caches from the session
// ledger. The caches are pure derived state: recomputing from the same
// ledger always yields the same values, so the fold can run after every
// load or mutation without drift.
package aggregate

import "github.com/ozgurcan/studyr/internal/model"

// Recompute zeroes every task's cached totals and folds the completed
// sessions back in. Running and paused sessions are excluded; their time
// only counts once the session completes.
func Recompute(tasks []model.Task, sessions []model.StudySession) {
	idx := make(map[string]int, len(tasks))
	for i := range tasks {
		tasks[i].TotalTimeSeconds = 0
		tasks[i].SessionCount = 0
		tasks[i].LastWorkedAt = 0
		idx[tasks[i].ID] = i
	}

	for _, s := range sessions {
		if s.Status != model.StatusCompleted {
			continue
		}
		for taskID, secs := range s.TaskAllocations {
			i, ok := idx[taskID]
			if !ok {
				continue
			}
			tasks[i].TotalTimeSeconds += secs
		}
		for _, taskID := range s.TaskIDs {
			i, ok := idx[taskID]
			if !ok {
				continue
			}
			tasks[i].SessionCount++
			if s.EndTime > tasks[i].LastWorkedAt {
				tasks[i].LastWorkedAt = s.EndTime
			}
		}
	}
}

// SubjectTotals sums completed session durations per subject, in seconds.
func SubjectTotals(sessions []model.StudySession) map[string]int64 {
	totals := map[string]int64{}
	for _, s := range sessions {
		if s.Status != model.StatusCompleted || s.SubjectID == "" {
			continue
		}
		totals[s.SubjectID] += s.DurationSeconds
	}
	return totals
}
