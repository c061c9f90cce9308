// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import "time"

// Schedule is a persisted recurring focus-session definition.
// Records live in the encrypted store keyed by ID.
type Schedule struct {
	ID                   string        `json:"id"`
	Name                 string        `json:"name"`
	DurationMinutes      int           `json:"duration_minutes"`
	StartTime            string        `json:"start_time"` // "HH:MM", same-day window
	EndTime              string        `json:"end_time"`   // "HH:MM"
	DaysOfWeek           []string      `json:"days_of_week"`
	FocusMode            string        `json:"focus_mode"`
	AutoStart            bool          `json:"auto_start"`
	BreakDurationMinutes int           `json:"break_duration_minutes"`
	MaxSessions          int           `json:"max_sessions"`
	Notifications        Notifications `json:"notifications"`
	CreatedAt            time.Time     `json:"created_at"`
	IsActive             bool          `json:"is_active"`
	CompletedSessions    int           `json:"completed_sessions"`
	TotalTimeFocused     int           `json:"total_time_focused"` // minutes
}

// Notifications configures per-schedule reminder behavior.
// Opaque to the scheduler; carried through to the session layer.
type Notifications struct {
	Enabled       bool `json:"enabled"`
	MinutesBefore int  `json:"minutes_before"`
	Sound         bool `json:"sound"`
}

// SessionEvent is emitted when a schedule fires and a focus session
// should begin.
type SessionEvent struct {
	ScheduleID           string
	ScheduleName         string
	DurationMinutes      int
	FocusMode            string
	BreakDurationMinutes int
	FiredAt              time.Time
}

// MonitorSnapshot captures the monitor's state at a point in time
// (for the status command and tests).
type MonitorSnapshot struct {
	AllowedApp  string
	Monitoring  bool
	BlockedSeen []string
}

// UserStats aggregates usage statistics fed into suggestion generation.
type UserStats struct {
	PeakProductiveHour    int // 0-23, hour with most completed focus time
	AverageSessionMinutes int
	CompletedSessions     int
}

// Suggestion is a schedule template proposed from usage stats.
// Advisory only; never persisted until the user creates it.
type Suggestion struct {
	Name            string
	StartTime       string
	EndTime         string
	DaysOfWeek      []string
	DurationMinutes int
	FocusMode       string
	Reason          string
}

// UpcomingSession is one projected occurrence of a schedule within
// a lookahead horizon.
type UpcomingSession struct {
	Schedule  Schedule
	Date      time.Time // midnight of the occurrence day
	StartTime string
}
