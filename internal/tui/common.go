package tui

import (
	"fmt"
	"time"

	"github.com/ozgurcan/studyr/internal/model"
)

// viewState represents the currently active view.
type viewState int

const (
	viewDashboard viewState = iota
	viewSubjects
	viewPlanner
	viewStats
	viewSettings
)

var viewNames = []string{"Dashboard", "Subjects", "Planner", "Stats", "Settings"}

// --- Messages ---

type timerStartedMsg struct{}

type timerStoppedMsg struct {
	session  model.StudySession
	recorded bool
}

type statusMsg struct {
	text    string
	isError bool
}

type tickMsg time.Time

// storeChangedMsg fires when another process wrote the active profile's data.
type storeChangedMsg struct{}

type exportDoneMsg struct {
	path string
}

type dashboardDataMsg struct {
	data model.UserData
}

type subjectsDataMsg struct {
	data model.UserData
}

type plannerDataMsg struct {
	data model.UserData
}

type statsDataMsg struct {
	data model.UserData
}

type settingsDataMsg struct {
	data     model.UserData
	profiles model.ProfileIndex
}

// --- Helpers ---

func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func formatSeconds(secs int64) string {
	return formatDuration(time.Duration(secs) * time.Second)
}

func formatHours(secs int64) string {
	h := float64(secs) / 3600
	return fmt.Sprintf("%.1fh", h)
}

func formatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d", m, s)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
