// Package trigger implements cron-like recurring triggers for schedules.
// One registry owns all armed triggers and evaluates them once per minute.
package trigger

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/focuslock/sessiond/internal/domain"
)

// weekdayNames maps weekday names to their calendar index (Sunday = 0).
var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// Expression describes when a trigger fires: a minute-of-day on a set
// of weekdays.
type Expression struct {
	Hour     int
	Minute   int
	Weekdays map[time.Weekday]bool
}

// ParseExpression builds an Expression from an "HH:MM" start time and
// weekday names. Returns an error for out-of-range times or unknown
// weekday names; nothing is registered for an invalid expression.
func ParseExpression(startTime string, daysOfWeek []string) (Expression, error) {
	hour, minute, err := ParseTimeOfDay(startTime)
	if err != nil {
		return Expression{}, err
	}

	if len(daysOfWeek) == 0 {
		return Expression{}, fmt.Errorf("at least one weekday is required")
	}

	weekdays := make(map[time.Weekday]bool, len(daysOfWeek))
	for _, day := range daysOfWeek {
		wd, err := ParseWeekday(day)
		if err != nil {
			return Expression{}, err
		}
		weekdays[wd] = true
	}

	return Expression{Hour: hour, Minute: minute, Weekdays: weekdays}, nil
}

// ParseWeekday maps a weekday name to its calendar index.
func ParseWeekday(name string) (time.Weekday, error) {
	wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("unknown weekday: %q", name)
	}
	return wd, nil
}

// ParseTimeOfDay parses "HH:MM" within 00:00-23:59.
func ParseTimeOfDay(s string) (hour, minute int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time %q: %w", s, err)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time %q: %w", s, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("time %q out of range 00:00-23:59", s)
	}
	return hour, minute, nil
}

// Matches reports whether the expression fires at the given instant.
func (e Expression) Matches(t time.Time) bool {
	return e.Weekdays[t.Weekday()] && t.Hour() == e.Hour && t.Minute() == e.Minute
}

type armed struct {
	expr      Expression
	fn        func()
	lastFired time.Time // minute granularity, guards double fire within one minute
}

// Registry owns armed triggers and fires their callbacks when the
// clock matches. A single evaluation loop serves all triggers.
type Registry struct {
	mu     sync.Mutex
	armed  map[string]*armed
	clock  domain.Clock
	logger *zap.Logger
}

// NewRegistry creates an empty trigger registry.
func NewRegistry(clock domain.Clock, logger *zap.Logger) *Registry {
	return &Registry{
		armed:  make(map[string]*armed),
		clock:  clock,
		logger: logger,
	}
}

// Arm registers (or replaces) the trigger for id.
func (r *Registry) Arm(id string, expr Expression, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.armed[id] = &armed{expr: expr, fn: fn}
}

// Disarm removes the trigger for id. Removing an unknown id is a no-op.
func (r *Registry) Disarm(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.armed, id)
}

// IsArmed reports whether a trigger is registered for id.
func (r *Registry) IsArmed(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.armed[id]
	return ok
}

// ArmedCount returns the number of registered triggers.
func (r *Registry) ArmedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.armed)
}

// Tick evaluates all armed triggers against now, firing matching
// callbacks at most once per clock minute. Callbacks run sequentially
// outside the registry lock so they may arm/disarm triggers.
func (r *Registry) Tick(now time.Time) {
	minute := now.Truncate(time.Minute)

	r.mu.Lock()
	var due []func()
	for id, a := range r.armed {
		if !a.expr.Matches(now) || a.lastFired.Equal(minute) {
			continue
		}
		a.lastFired = minute
		r.logger.Debug("trigger fired", zap.String("id", id))
		due = append(due, a.fn)
	}
	r.mu.Unlock()

	for _, fn := range due {
		fn()
	}
}

// Run evaluates triggers once per minute until the context is canceled.
func (r *Registry) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("trigger registry stopping")
			return ctx.Err()
		case <-ticker.C:
			r.Tick(r.clock.Now())
		}
	}
}
