// Package timer implements the drift-resistant timer as pure functions of
// (snapshot, now). The host drives it from a periodic tick at any cadence;
// correctness never depends on when the tick fires, because elapsed time is
// always derived from stored start timestamps, not from counting ticks.
package timer

import (
	"time"

	"github.com/ozgurcan/studyr/internal/model"
)

// Config holds the interval-cycling durations, read from user settings.
type Config struct {
	FocusDuration      time.Duration
	ShortBreakDuration time.Duration
	LongBreakDuration  time.Duration
	LongBreakInterval  int // long break after every Nth focus phase
	AutoAdvance        bool
}

func FromSettings(s model.Settings) Config {
	return Config{
		FocusDuration:      time.Duration(s.FocusSeconds) * time.Second,
		ShortBreakDuration: time.Duration(s.ShortBreakSeconds) * time.Second,
		LongBreakDuration:  time.Duration(s.LongBreakSeconds) * time.Second,
		LongBreakInterval:  s.LongBreakInterval,
		AutoAdvance:        s.AutoAdvance,
	}
}

func (c Config) PhaseDuration(p model.Phase) time.Duration {
	switch p {
	case model.PhaseShortBreak:
		return c.ShortBreakDuration
	case model.PhaseLongBreak:
		return c.LongBreakDuration
	default:
		return c.FocusDuration
	}
}

// Elapsed returns the snapshot's total elapsed time at now. Constant while
// paused, monotonically non-decreasing in now while running, never negative.
func Elapsed(s model.TimerSnapshot, now time.Time) time.Duration {
	return elapsedMs(s.AccumulatedMs, s.StartedAtMs, s.IsRunning, now)
}

// PhaseElapsed is Elapsed against the phase-local pair. It is independent of
// the outer accumulator, which is what lets a stopwatch total survive
// interval-cycling phase resets.
func PhaseElapsed(s model.TimerSnapshot, now time.Time) time.Duration {
	return elapsedMs(s.PhaseAccumulatedMs, s.PhaseStartedAtMs, s.IsRunning, now)
}

func elapsedMs(accumulated, startedAt int64, running bool, now time.Time) time.Duration {
	ms := accumulated
	if running && startedAt > 0 {
		if delta := now.UnixMilli() - startedAt; delta > 0 {
			ms += delta
		}
	}
	if ms < 0 {
		ms = 0
	}
	return time.Duration(ms) * time.Millisecond
}

// Start begins or resumes the clock. Starting a running snapshot is a no-op.
func Start(s model.TimerSnapshot, now time.Time) model.TimerSnapshot {
	if s.IsRunning {
		return s
	}
	s.IsRunning = true
	s.StartedAtMs = now.UnixMilli()
	s.PhaseStartedAtMs = now.UnixMilli()
	return s
}

// Pause folds the running time into both accumulators and stops the clock.
// Pausing twice is a no-op on the second call.
func Pause(s model.TimerSnapshot, now time.Time) model.TimerSnapshot {
	if !s.IsRunning {
		return s
	}
	s.AccumulatedMs = int64(Elapsed(s, now) / time.Millisecond)
	s.PhaseAccumulatedMs = int64(PhaseElapsed(s, now) / time.Millisecond)
	s.IsRunning = false
	s.StartedAtMs = 0
	s.PhaseStartedAtMs = 0
	return s
}

// Stop folds and resets the snapshot to defaults, preserving the mode, and
// reports the total elapsed time the snapshot had accrued. Whether that
// elapsed time becomes a session is the caller's decision.
func Stop(s model.TimerSnapshot, now time.Time) (model.TimerSnapshot, time.Duration) {
	elapsed := Elapsed(s, now)
	reset := model.DefaultTimerSnapshot()
	reset.Mode = s.Mode
	return reset, elapsed
}

// SetMode switches between stopwatch and interval cycling. The outer
// accumulator is preserved; the phase-local pair and cycle count reset.
func SetMode(s model.TimerSnapshot, mode model.TimerMode, now time.Time) model.TimerSnapshot {
	if s.Mode == mode {
		return s
	}
	s = Pause(s, now)
	s.Mode = mode
	s.Phase = model.PhaseFocus
	s.PhaseAccumulatedMs = 0
	s.CycleCount = 0
	return s
}

// TickResult reports what a tick did to the snapshot.
type TickResult struct {
	Snapshot model.TimerSnapshot

	// Transition is true when a phase boundary was crossed.
	Transition bool
	From, To   model.Phase

	// PhaseTime is the completed phase's elapsed time. Only a focus phase's
	// time is ever logged as study time.
	PhaseTime time.Duration
}

// Tick checks an interval-cycling snapshot against its configured phase
// duration and advances the phase once it is reached. With AutoAdvance the
// next phase starts immediately; otherwise the clock stops at the boundary
// and waits for the user.
func Tick(s model.TimerSnapshot, cfg Config, now time.Time) TickResult {
	res := TickResult{Snapshot: s}
	if !s.IsRunning || s.Mode != model.ModePomodoro {
		return res
	}
	phaseDur := cfg.PhaseDuration(s.Phase)
	if phaseDur <= 0 || PhaseElapsed(s, now) < phaseDur {
		return res
	}

	from := s.Phase
	s = Pause(s, now)
	res.PhaseTime = time.Duration(s.PhaseAccumulatedMs) * time.Millisecond

	var to model.Phase
	if from == model.PhaseFocus {
		s.CycleCount++
		if cfg.LongBreakInterval > 0 && s.CycleCount%cfg.LongBreakInterval == 0 {
			to = model.PhaseLongBreak
		} else {
			to = model.PhaseShortBreak
		}
	} else {
		to = model.PhaseFocus
	}

	s.Phase = to
	s.PhaseAccumulatedMs = 0
	if cfg.AutoAdvance {
		s.IsRunning = true
		s.StartedAtMs = now.UnixMilli()
		s.PhaseStartedAtMs = now.UnixMilli()
	}

	res.Snapshot = s
	res.Transition = true
	res.From = from
	res.To = to
	return res
}
