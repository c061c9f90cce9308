package usecase

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/focuslock/sessiond/internal/domain"
	"github.com/focuslock/sessiond/internal/trigger"
)

// ScheduleConfig is the user-supplied definition of a recurring session.
type ScheduleConfig struct {
	Name                 string
	DurationMinutes      int
	StartTime            string // "HH:MM"
	EndTime              string // "HH:MM", same-day window
	DaysOfWeek           []string
	FocusMode            string
	AutoStart            bool
	BreakDurationMinutes int
	MaxSessions          int
	Notifications        domain.Notifications
}

// ScheduleUpdate carries partial updates; nil fields are left unchanged.
type ScheduleUpdate struct {
	Name                 *string
	DurationMinutes      *int
	StartTime            *string
	EndTime              *string
	DaysOfWeek           []string
	FocusMode            *string
	BreakDurationMinutes *int
	MaxSessions          *int
	Notifications        *domain.Notifications
}

// Scheduler persists recurring focus-session definitions and fires them
// at the right wall-clock time, bounded by per-schedule session caps.
// All mutations are serialized behind one mutex so concurrently firing
// triggers cannot interleave store writes.
type Scheduler struct {
	mu        sync.Mutex
	store     domain.ScheduleStore
	triggers  *trigger.Registry
	notifier  domain.Notifier
	clock     domain.Clock
	logger    *zap.Logger
	retention time.Duration
}

// NewScheduler creates a scheduler. Call InitializeStoredSchedules to
// re-arm persisted schedules after construction.
func NewScheduler(
	store domain.ScheduleStore,
	triggers *trigger.Registry,
	notifier domain.Notifier,
	clock domain.Clock,
	retention time.Duration,
	logger *zap.Logger,
) *Scheduler {
	return &Scheduler{
		store:     store,
		triggers:  triggers,
		notifier:  notifier,
		clock:     clock,
		retention: retention,
		logger:    logger,
	}
}

// CreateRecurringSession validates, persists, and registers a new
// schedule. The derived trigger expression is validated before anything
// is stored, so an invalid definition never produces a silently-dead
// schedule. Returns the new schedule id.
func (s *Scheduler) CreateRecurringSession(cfg ScheduleConfig) (string, error) {
	expr, err := trigger.ParseExpression(cfg.StartTime, cfg.DaysOfWeek)
	if err != nil {
		return "", fmt.Errorf("invalid schedule: %w", err)
	}
	if _, _, err := trigger.ParseTimeOfDay(cfg.EndTime); err != nil {
		return "", fmt.Errorf("invalid schedule: %w", err)
	}
	if cfg.MaxSessions < 1 {
		return "", fmt.Errorf("invalid schedule: max sessions must be >= 1")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sched := domain.Schedule{
		ID:                   uuid.NewString(),
		Name:                 cfg.Name,
		DurationMinutes:      cfg.DurationMinutes,
		StartTime:            cfg.StartTime,
		EndTime:              cfg.EndTime,
		DaysOfWeek:           cfg.DaysOfWeek,
		FocusMode:            cfg.FocusMode,
		AutoStart:            cfg.AutoStart,
		BreakDurationMinutes: cfg.BreakDurationMinutes,
		MaxSessions:          cfg.MaxSessions,
		Notifications:        cfg.Notifications,
		CreatedAt:            s.clock.Now(),
		IsActive:             cfg.AutoStart,
	}

	if err := s.store.Save(sched); err != nil {
		return "", err
	}

	if sched.IsActive {
		s.armLocked(sched.ID, expr)
	}

	s.logger.Info("schedule created",
		zap.String("id", sched.ID),
		zap.String("name", sched.Name),
		zap.String("start", sched.StartTime),
		zap.Strings("days", sched.DaysOfWeek),
		zap.Bool("armed", sched.IsActive))

	return sched.ID, nil
}

// armLocked registers the trigger for id. Caller holds s.mu.
func (s *Scheduler) armLocked(id string, expr trigger.Expression) {
	s.triggers.Arm(id, expr, func() { s.fire(id) })
}

// fire is the trigger callback: load the fresh record and execute it.
func (s *Scheduler) fire(id string) {
	sched, err := s.store.Get(id)
	if err != nil {
		s.logger.Warn("fired trigger for missing schedule",
			zap.String("id", id),
			zap.Error(err))
		s.triggers.Disarm(id)
		return
	}
	s.ExecuteScheduledSession(sched)
}

// ExecuteScheduledSession runs the fire-time checks and, if they pass,
// emits the session-start event and persists the updated counters.
// Re-checking the window guards against trigger granularity; reaching
// the session cap auto-pauses the schedule instead of erroring. The
// record is re-read under the mutex so a delete racing the fire cannot
// be resurrected by the counter write.
func (s *Scheduler) ExecuteScheduledSession(sched *domain.Schedule) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fresh, err := s.store.Get(sched.ID)
	if err != nil {
		s.logger.Warn("schedule gone before execution",
			zap.String("id", sched.ID),
			zap.Error(err))
		s.triggers.Disarm(sched.ID)
		return
	}
	sched = fresh

	now := s.clock.Now()
	if !withinWindow(now, sched.StartTime, sched.EndTime) {
		s.logger.Debug("fire outside schedule window, skipping",
			zap.String("id", sched.ID),
			zap.String("window", sched.StartTime+"-"+sched.EndTime))
		return
	}

	if sched.CompletedSessions >= sched.MaxSessions {
		s.logger.Info("session cap reached, pausing schedule",
			zap.String("id", sched.ID),
			zap.Int("max_sessions", sched.MaxSessions))
		s.triggers.Disarm(sched.ID)
		sched.IsActive = false
		if err := s.store.Save(*sched); err != nil {
			s.logger.Warn("failed to persist auto-pause",
				zap.String("id", sched.ID),
				zap.Error(err))
		}
		return
	}

	s.notifier.SessionStarted(domain.SessionEvent{
		ScheduleID:           sched.ID,
		ScheduleName:         sched.Name,
		DurationMinutes:      sched.DurationMinutes,
		FocusMode:            sched.FocusMode,
		BreakDurationMinutes: sched.BreakDurationMinutes,
		FiredAt:              now,
	})

	sched.CompletedSessions++
	sched.TotalTimeFocused += sched.DurationMinutes
	if err := s.store.Save(*sched); err != nil {
		s.logger.Warn("failed to persist session counters",
			zap.String("id", sched.ID),
			zap.Error(err))
	}
}

// PauseSchedule disarms the trigger and marks the schedule inactive.
func (s *Scheduler) PauseSchedule(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sched, err := s.store.Get(id)
	if err != nil {
		return err
	}

	s.triggers.Disarm(id)
	sched.IsActive = false
	if err := s.store.Save(*sched); err != nil {
		return err
	}

	s.logger.Info("schedule paused", zap.String("id", id))
	return nil
}

// ResumeSchedule re-validates the trigger expression, re-arms it, and
// marks the schedule active.
func (s *Scheduler) ResumeSchedule(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sched, err := s.store.Get(id)
	if err != nil {
		return err
	}

	expr, err := trigger.ParseExpression(sched.StartTime, sched.DaysOfWeek)
	if err != nil {
		return fmt.Errorf("stored schedule %s has invalid trigger: %w", id, err)
	}

	s.armLocked(id, expr)
	sched.IsActive = true
	if err := s.store.Save(*sched); err != nil {
		return err
	}

	s.logger.Info("schedule resumed", zap.String("id", id))
	return nil
}

// DeleteSchedule disarms the trigger and removes the record.
func (s *Scheduler) DeleteSchedule(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.store.Get(id); err != nil {
		return err
	}

	s.triggers.Disarm(id)
	if err := s.store.Delete(id); err != nil {
		return err
	}

	s.logger.Info("schedule deleted", zap.String("id", id))
	return nil
}

// UpdateSchedule merges updates into the record and rebuilds the
// trigger, since the expression derives from time/day fields that may
// have changed. Disarm + validate-new + arm, never a dangling trigger.
func (s *Scheduler) UpdateSchedule(id string, updates ScheduleUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sched, err := s.store.Get(id)
	if err != nil {
		return err
	}

	if updates.Name != nil {
		sched.Name = *updates.Name
	}
	if updates.DurationMinutes != nil {
		sched.DurationMinutes = *updates.DurationMinutes
	}
	if updates.StartTime != nil {
		sched.StartTime = *updates.StartTime
	}
	if updates.EndTime != nil {
		if _, _, err := trigger.ParseTimeOfDay(*updates.EndTime); err != nil {
			return fmt.Errorf("invalid update: %w", err)
		}
		sched.EndTime = *updates.EndTime
	}
	if updates.DaysOfWeek != nil {
		sched.DaysOfWeek = updates.DaysOfWeek
	}
	if updates.FocusMode != nil {
		sched.FocusMode = *updates.FocusMode
	}
	if updates.BreakDurationMinutes != nil {
		sched.BreakDurationMinutes = *updates.BreakDurationMinutes
	}
	if updates.MaxSessions != nil {
		if *updates.MaxSessions < 1 {
			return fmt.Errorf("invalid update: max sessions must be >= 1")
		}
		sched.MaxSessions = *updates.MaxSessions
	}
	if updates.Notifications != nil {
		sched.Notifications = *updates.Notifications
	}

	expr, err := trigger.ParseExpression(sched.StartTime, sched.DaysOfWeek)
	if err != nil {
		return fmt.Errorf("invalid update: %w", err)
	}

	if err := s.store.Save(*sched); err != nil {
		return err
	}

	s.triggers.Disarm(id)
	if sched.IsActive {
		s.armLocked(id, expr)
	}

	s.logger.Info("schedule updated", zap.String("id", id))
	return nil
}

// GetSchedule returns one schedule by id.
func (s *Scheduler) GetSchedule(id string) (*domain.Schedule, error) {
	return s.store.Get(id)
}

// ListSchedules returns all persisted schedules.
func (s *Scheduler) ListSchedules() ([]domain.Schedule, error) {
	return s.store.List()
}

// GetTodaysSessions returns active schedules whose weekday set includes
// today. Read-only projection.
func (s *Scheduler) GetTodaysSessions() ([]domain.Schedule, error) {
	schedules, err := s.store.List()
	if err != nil {
		return nil, err
	}

	today := s.clock.Now().Weekday()
	var result []domain.Schedule
	for _, sched := range schedules {
		if sched.IsActive && scheduleOnWeekday(sched, today) {
			result = append(result, sched)
		}
	}
	return result, nil
}

// GetUpcomingSessions projects one entry per matching day over the next
// `days` days, sorted by date then time-of-day. Read-only projection.
func (s *Scheduler) GetUpcomingSessions(days int) ([]domain.UpcomingSession, error) {
	schedules, err := s.store.List()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var result []domain.UpcomingSession
	for offset := 0; offset < days; offset++ {
		date := midnight.AddDate(0, 0, offset)
		for _, sched := range schedules {
			if sched.IsActive && scheduleOnWeekday(sched, date.Weekday()) {
				result = append(result, domain.UpcomingSession{
					Schedule:  sched,
					Date:      date,
					StartTime: sched.StartTime,
				})
			}
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].StartTime < result[j].StartTime
	})
	return result, nil
}

// InitializeStoredSchedules re-arms the triggers of persisted active
// schedules at process start. A schedule whose stored expression no
// longer validates is skipped with a warning; after this call the armed
// set matches the persisted active set exactly.
func (s *Scheduler) InitializeStoredSchedules() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	schedules, err := s.store.List()
	if err != nil {
		return err
	}

	armed := 0
	for _, sched := range schedules {
		if !sched.IsActive {
			continue
		}
		expr, err := trigger.ParseExpression(sched.StartTime, sched.DaysOfWeek)
		if err != nil {
			s.logger.Warn("skipping schedule with invalid stored trigger",
				zap.String("id", sched.ID),
				zap.String("name", sched.Name),
				zap.Error(err))
			continue
		}
		s.armLocked(sched.ID, expr)
		armed++
	}

	s.logger.Info("stored schedules initialized",
		zap.Int("total", len(schedules)),
		zap.Int("armed", armed))
	return nil
}

// CleanupOldSchedules deletes schedules that are both session-exhausted
// and older than the retention window. Idempotent; returns the number
// deleted.
func (s *Scheduler) CleanupOldSchedules() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	schedules, err := s.store.List()
	if err != nil {
		return 0, err
	}

	cutoff := s.clock.Now().Add(-s.retention)
	deleted := 0
	for _, sched := range schedules {
		if sched.CompletedSessions < sched.MaxSessions {
			continue
		}
		if sched.CreatedAt.After(cutoff) {
			continue
		}

		s.triggers.Disarm(sched.ID)
		if err := s.store.Delete(sched.ID); err != nil {
			s.logger.Warn("cleanup failed to delete schedule",
				zap.String("id", sched.ID),
				zap.Error(err))
			continue
		}
		deleted++
	}

	if deleted > 0 {
		s.logger.Info("cleaned up exhausted schedules", zap.Int("deleted", deleted))
	}
	return deleted, nil
}

// withinWindow reports whether now's time-of-day lies in [start, end].
func withinWindow(now time.Time, start, end string) bool {
	startH, startM, err := trigger.ParseTimeOfDay(start)
	if err != nil {
		return false
	}
	endH, endM, err := trigger.ParseTimeOfDay(end)
	if err != nil {
		return false
	}

	minutes := now.Hour()*60 + now.Minute()
	return minutes >= startH*60+startM && minutes <= endH*60+endM
}

func scheduleOnWeekday(sched domain.Schedule, day time.Weekday) bool {
	for _, name := range sched.DaysOfWeek {
		if wd, err := trigger.ParseWeekday(name); err == nil && wd == day {
			return true
		}
	}
	return false
}
