// Package analytics derives read-only views from tasks, sessions and daily
// stats. Everything here is a pure function of its inputs and a supplied
// clock instant; nothing is persisted, so stale values cannot accumulate.
package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/ozgurcan/studyr/internal/model"
)

const dayMs = 24 * 60 * 60 * 1000

// DaysInBacklog is the whole number of days since the task entered the
// backlog, 0 for tasks that are not backlogged.
func DaysInBacklog(task model.Task, now time.Time) int {
	if !task.IsBacklog || task.BacklogSince <= 0 {
		return 0
	}
	d := (now.UnixMilli() - task.BacklogSince) / dayMs
	if d < 0 {
		return 0
	}
	return int(d)
}

// BacklogPriority escalates with age: a week overdue is high, three days is
// medium, anything younger is low. Recomputed on read, never stored.
func BacklogPriority(task model.Task, now time.Time) model.Priority {
	switch days := DaysInBacklog(task, now); {
	case days >= 7:
		return model.PriorityHigh
	case days >= 3:
		return model.PriorityMedium
	default:
		return model.PriorityLow
	}
}

// CompletionRate is completed/total as a percentage rounded to one decimal.
// An empty day reports 0, not NaN.
func CompletionRate(completed, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(completed)/float64(total)*1000) / 10
}

// LongestStreak is the longest run of consecutive dates whose stats show at
// least one completed task.
func LongestStreak(stats map[string]model.DayStats) int {
	days := completedDays(stats)
	if len(days) == 0 {
		return 0
	}

	longest, run := 1, 1
	for i := 1; i < len(days); i++ {
		// AddDate rather than a 24h delta so DST days still chain.
		if days[i-1].AddDate(0, 0, 1).Equal(days[i]) {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}
	return longest
}

// CurrentStreak counts back from today while each preceding date has at
// least one completion. A day with no completions yet today does not break
// the streak; counting then starts from yesterday.
func CurrentStreak(stats map[string]model.DayStats, now time.Time) int {
	day := dateOnly(now)
	if !dayCompleted(stats, day) {
		day = day.AddDate(0, 0, -1)
	}

	streak := 0
	for dayCompleted(stats, day) {
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}

// ProductivityScore averages reflection ratings over completed sessions that
// ended inside [fromMs, toMs]. It reports the rated-session count alongside
// the average so a true zero can be told apart from "no data".
func ProductivityScore(sessions []model.StudySession, fromMs, toMs int64) (float64, int) {
	var sum, count int
	for _, s := range sessions {
		if s.Status != model.StatusCompleted {
			continue
		}
		if s.EndTime < fromMs || s.EndTime > toMs {
			continue
		}
		switch s.ReflectionRating {
		case model.RatingProductive:
			sum += 3
		case model.RatingAverage:
			sum += 2
		case model.RatingDistracted:
			sum += 1
		default:
			continue
		}
		count++
	}
	if count == 0 {
		return 0, 0
	}
	return float64(sum) / float64(count), count
}

// DayTotal is one bar of the daily study-time trend.
type DayTotal struct {
	Date    string // ISO date, local
	Seconds int64
}

// DailyTotals buckets completed session time by local end date over the last
// n days ending today. Days without sessions appear with zero seconds so a
// chart renders a contiguous axis.
func DailyTotals(sessions []model.StudySession, now time.Time, n int) []DayTotal {
	if n <= 0 {
		return nil
	}
	totals := make([]DayTotal, n)
	index := make(map[string]int, n)
	start := dateOnly(now).AddDate(0, 0, -(n - 1))
	for i := 0; i < n; i++ {
		date := start.AddDate(0, 0, i).Format("2006-01-02")
		totals[i] = DayTotal{Date: date}
		index[date] = i
	}

	for _, s := range sessions {
		if s.Status != model.StatusCompleted || s.EndTime <= 0 {
			continue
		}
		date := time.UnixMilli(s.EndTime).Local().Format("2006-01-02")
		if i, ok := index[date]; ok {
			totals[i].Seconds += s.DurationSeconds
		}
	}
	return totals
}

func completedDays(stats map[string]model.DayStats) []time.Time {
	var days []time.Time
	for date, st := range stats {
		if st.Completed <= 0 {
			continue
		}
		d, err := time.ParseInLocation("2006-01-02", date, time.Local)
		if err != nil {
			continue
		}
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}

func dayCompleted(stats map[string]model.DayStats, day time.Time) bool {
	st, ok := stats[day.Format("2006-01-02")]
	return ok && st.Completed > 0
}

func dateOnly(t time.Time) time.Time {
	t = t.Local()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.Local)
}
