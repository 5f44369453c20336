package analytics

import (
	"testing"
	"time"

	"github.com/ozgurcan/studyr/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 8, 20, 15, 0, 0, 0, time.Local)

func backlogTask(daysAgo int) model.Task {
	return model.Task{
		ID:           "t",
		IsBacklog:    true,
		BacklogSince: now.AddDate(0, 0, -daysAgo).UnixMilli(),
	}
}

// ============================================================
// Backlog priority
// ============================================================

func TestBacklogPriorityEscalation(t *testing.T) {
	assert.Equal(t, model.PriorityLow, BacklogPriority(backlogTask(0), now))
	assert.Equal(t, model.PriorityLow, BacklogPriority(backlogTask(2), now))
	assert.Equal(t, model.PriorityMedium, BacklogPriority(backlogTask(3), now))
	assert.Equal(t, model.PriorityMedium, BacklogPriority(backlogTask(6), now))
	assert.Equal(t, model.PriorityHigh, BacklogPriority(backlogTask(7), now))
	assert.Equal(t, model.PriorityHigh, BacklogPriority(backlogTask(30), now))
}

func TestDaysInBacklog(t *testing.T) {
	assert.Equal(t, 5, DaysInBacklog(backlogTask(5), now))
	assert.Zero(t, DaysInBacklog(model.Task{IsBacklog: false}, now))

	// Clock skew: backlogSince in the future clamps to 0.
	future := model.Task{IsBacklog: true, BacklogSince: now.Add(time.Hour).UnixMilli()}
	assert.Zero(t, DaysInBacklog(future, now))
}

// ============================================================
// Completion rate
// ============================================================

func TestCompletionRate(t *testing.T) {
	assert.Equal(t, 0.0, CompletionRate(0, 0))
	assert.Equal(t, 100.0, CompletionRate(4, 4))
	assert.Equal(t, 50.0, CompletionRate(2, 4))
	assert.Equal(t, 33.3, CompletionRate(1, 3))
	assert.Equal(t, 66.7, CompletionRate(2, 3))
}

// ============================================================
// Streaks
// ============================================================

func statsFor(dates ...string) map[string]model.DayStats {
	m := map[string]model.DayStats{}
	for _, d := range dates {
		m[d] = model.DayStats{Total: 3, Completed: 2}
	}
	return m
}

func TestLongestStreak(t *testing.T) {
	assert.Zero(t, LongestStreak(nil))
	assert.Equal(t, 1, LongestStreak(statsFor("2026-08-01")))

	stats := statsFor("2026-08-01", "2026-08-02", "2026-08-03", "2026-08-10", "2026-08-11")
	assert.Equal(t, 3, LongestStreak(stats))
}

func TestLongestStreakIgnoresZeroCompletionDays(t *testing.T) {
	stats := statsFor("2026-08-01", "2026-08-03")
	stats["2026-08-02"] = model.DayStats{Total: 2, Completed: 0} // gap
	assert.Equal(t, 1, LongestStreak(stats))
}

func TestCurrentStreak(t *testing.T) {
	stats := statsFor("2026-08-18", "2026-08-19", "2026-08-20")
	assert.Equal(t, 3, CurrentStreak(stats, now))
}

func TestCurrentStreakGraceForToday(t *testing.T) {
	// Nothing completed today yet; yesterday and before still count.
	stats := statsFor("2026-08-18", "2026-08-19")
	assert.Equal(t, 2, CurrentStreak(stats, now))
}

func TestCurrentStreakBrokenByGap(t *testing.T) {
	stats := statsFor("2026-08-16", "2026-08-17", "2026-08-20")
	assert.Equal(t, 1, CurrentStreak(stats, now))
	assert.Zero(t, CurrentStreak(statsFor("2026-08-10"), now))
}

// ============================================================
// Productivity score
// ============================================================

func rated(rating model.Rating, endMs int64) model.StudySession {
	return model.StudySession{
		Status:           model.StatusCompleted,
		EndTime:          endMs,
		ReflectionRating: rating,
	}
}

func TestProductivityScore(t *testing.T) {
	sessions := []model.StudySession{
		rated(model.RatingProductive, 1000),
		rated(model.RatingAverage, 2000),
		rated(model.RatingDistracted, 3000),
	}
	score, count := ProductivityScore(sessions, 0, 5000)
	require.Equal(t, 3, count)
	assert.InDelta(t, 2.0, score, 1e-9)
}

func TestProductivityScoreRespectsRange(t *testing.T) {
	sessions := []model.StudySession{
		rated(model.RatingProductive, 1000),
		rated(model.RatingDistracted, 9000), // outside
	}
	score, count := ProductivityScore(sessions, 0, 5000)
	assert.Equal(t, 1, count)
	assert.InDelta(t, 3.0, score, 1e-9)
}

func TestProductivityScoreNoRatedSessions(t *testing.T) {
	unrated := model.StudySession{Status: model.StatusCompleted, EndTime: 1000}
	score, count := ProductivityScore([]model.StudySession{unrated}, 0, 5000)
	assert.Zero(t, count)
	assert.Zero(t, score)
}

// ============================================================
// Daily totals
// ============================================================

func TestDailyTotalsContiguousAxis(t *testing.T) {
	day := func(daysAgo int, secs int64) model.StudySession {
		end := now.AddDate(0, 0, -daysAgo)
		return model.StudySession{
			Status:          model.StatusCompleted,
			EndTime:         end.UnixMilli(),
			DurationSeconds: secs,
		}
	}
	sessions := []model.StudySession{day(0, 600), day(0, 300), day(2, 1200)}

	totals := DailyTotals(sessions, now, 3)
	require.Len(t, totals, 3)
	assert.Equal(t, "2026-08-18", totals[0].Date)
	assert.EqualValues(t, 1200, totals[0].Seconds)
	assert.EqualValues(t, 0, totals[1].Seconds) // empty middle day present
	assert.Equal(t, "2026-08-20", totals[2].Date)
	assert.EqualValues(t, 900, totals[2].Seconds)
}

func TestDailyTotalsExcludesActiveAndOutOfRange(t *testing.T) {
	running := model.StudySession{Status: model.StatusRunning, DurationSeconds: 999}
	old := model.StudySession{
		Status:          model.StatusCompleted,
		EndTime:         now.AddDate(0, 0, -10).UnixMilli(),
		DurationSeconds: 999,
	}
	totals := DailyTotals([]model.StudySession{running, old}, now, 3)
	for _, d := range totals {
		assert.Zero(t, d.Seconds, "day %s", d.Date)
	}
}
