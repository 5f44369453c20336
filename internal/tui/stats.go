package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/ozgurcan/studyr/internal/aggregate"
	"github.com/ozgurcan/studyr/internal/analytics"
	"github.com/ozgurcan/studyr/internal/engine"
	"github.com/ozgurcan/studyr/internal/model"
)

type statsRange int

const (
	rangeWeek statsRange = iota
	rangeFortnight
)

type statsModel struct {
	engine *engine.Engine
	width  int
	height int

	data   model.UserData
	span   statsRange
	totals []analytics.DayTotal

	chart barchart.Model
}

func newStatsModel(e *engine.Engine) statsModel {
	return statsModel{
		engine: e,
		chart:  barchart.New(60, 12),
	}
}

func (m *statsModel) setSize(w, h int) {
	m.width = w
	m.height = h
}

func (m statsModel) days() int {
	if m.span == rangeFortnight {
		return 14
	}
	return 7
}

func (m statsModel) refresh() tea.Cmd {
	return func() tea.Msg {
		return statsDataMsg{data: m.engine.Data()}
	}
}

func (m statsModel) update(msg tea.Msg) (statsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case statsDataMsg:
		m.data = msg.data
		m.totals = analytics.DailyTotals(m.data.Sessions, time.Now(), m.days())
		m.buildChart()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Left), key.Matches(msg, keys.Right):
			if m.span == rangeWeek {
				m.span = rangeFortnight
			} else {
				m.span = rangeWeek
			}
			return m, m.refresh()
		}
	}
	return m, nil
}

func (m *statsModel) buildChart() {
	chartWidth := m.width - 8
	if chartWidth < 20 {
		chartWidth = 20
	}
	chartHeight := 12
	if m.height > 30 {
		chartHeight = 16
	}

	m.chart = barchart.New(chartWidth, chartHeight)

	goal := float64(m.data.Settings.DailyGoalSeconds) / 3600

	var bars []barchart.BarData
	for _, dt := range m.totals {
		day, _ := time.ParseInLocation("2006-01-02", dt.Date, time.Local)
		label := day.Format("Mon 02")

		hours := float64(dt.Seconds) / 3600
		style := lipgloss.NewStyle().Foreground(colorPrimary)
		if goal > 0 && hours >= goal {
			style = lipgloss.NewStyle().Foreground(colorSuccess)
		}
		if dt.Seconds == 0 {
			style = lipgloss.NewStyle().Foreground(colorSubtle)
		}

		bars = append(bars, barchart.BarData{
			Label:  label,
			Values: []barchart.BarValue{{Name: dt.Date, Value: hours, Style: style}},
		})
	}

	m.chart.PushAll(bars)
	m.chart.Draw()
}

func (m statsModel) view() string {
	w := m.width - 4

	weekTab := inactiveTabStyle.Render("7 days")
	fortnightTab := inactiveTabStyle.Render("14 days")
	if m.span == rangeWeek {
		weekTab = activeTabStyle.Render("7 days")
	} else {
		fortnightTab = activeTabStyle.Render("14 days")
	}
	spanTabs := lipgloss.JoinHorizontal(lipgloss.Bottom, weekTab, fortnightTab)

	header := lipgloss.JoinHorizontal(lipgloss.Bottom,
		titleStyle.Render("Stats"), "  ", spanTabs,
	)

	chartView := m.chart.View()
	summary := m.renderSummary()
	table := m.renderSubjectTable(w)
	nav := mutedStyle.Render("  ←/→: switch range")

	return panelStyle.Width(w).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			header, "", chartView, "", summary, "", table, "", nav,
		),
	)
}

func (m statsModel) renderSummary() string {
	now := time.Now()

	var periodSecs int64
	goalDays := 0
	for _, dt := range m.totals {
		periodSecs += dt.Seconds
		if m.data.Settings.DailyGoalSeconds > 0 && dt.Seconds >= m.data.Settings.DailyGoalSeconds {
			goalDays++
		}
	}

	fromMs := now.AddDate(0, 0, -(m.days() - 1)).UnixMilli()
	score, rated := analytics.ProductivityScore(m.data.Sessions, fromMs, now.UnixMilli())
	scoreStr := mutedStyle.Render("no reflections")
	if rated > 0 {
		scoreStr = highlightStyle.Render(fmt.Sprintf("%.1f/3 (%d rated)", score, rated))
	}

	today := now.Local().Format("2006-01-02")
	st := m.data.DayStats[today]

	lines := []string{
		fmt.Sprintf("  Studied %s over %d days, goal met on %s",
			highlightStyle.Render(formatHours(periodSecs)), m.days(),
			successStyle.Render(fmt.Sprintf("%d days", goalDays))),
		fmt.Sprintf("  Focus score %s  ·  today's plan %s",
			scoreStr,
			highlightStyle.Render(fmt.Sprintf("%.1f%%", analytics.CompletionRate(st.Completed, st.Total)))),
		fmt.Sprintf("  Streak %s current, %s best",
			successStyle.Render(fmt.Sprintf("%d", analytics.CurrentStreak(m.data.DayStats, now))),
			highlightStyle.Render(fmt.Sprintf("%d", analytics.LongestStreak(m.data.DayStats)))),
	}
	return strings.Join(lines, "\n")
}

func (m statsModel) renderSubjectTable(w int) string {
	totals := aggregate.SubjectTotals(m.data.Sessions)
	if len(totals) == 0 {
		return mutedStyle.Render("  No study time recorded yet")
	}

	var rows []string
	rows = append(rows, mutedStyle.Render(fmt.Sprintf("  %-24s %10s", "Subject", "Total")))
	rows = append(rows, mutedStyle.Render("  "+strings.Repeat("─", max(0, min(w-6, 36)))))

	for _, s := range m.data.Subjects {
		secs, ok := totals[s.ID]
		if !ok {
			continue
		}
		rows = append(rows, fmt.Sprintf("  %s %-22s %10s", subjectDot(s), s.Name, formatSeconds(secs)))
	}
	if secs, ok := totals[""]; ok {
		rows = append(rows, fmt.Sprintf("  %s %-22s %10s", mutedStyle.Render("●"), "(no subject)", formatSeconds(secs)))
	}

	return strings.Join(rows, "\n")
}
