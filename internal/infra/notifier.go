package infra

import (
	"go.uber.org/zap"

	"github.com/focuslock/sessiond/internal/domain"
)

// SessionNotifier implements domain.Notifier. Events are logged and
// fanned out on a buffered channel for an embedding host (the UI layer
// consumes from Events). A full channel drops the event rather than
// blocking the scheduler.
type SessionNotifier struct {
	events chan domain.SessionEvent
	logger *zap.Logger
}

// NewSessionNotifier creates a notifier with the given fan-out buffer.
func NewSessionNotifier(buffer int, logger *zap.Logger) *SessionNotifier {
	if buffer < 1 {
		buffer = 16
	}
	return &SessionNotifier{
		events: make(chan domain.SessionEvent, buffer),
		logger: logger,
	}
}

// SessionStarted delivers a scheduled-session-start event.
func (n *SessionNotifier) SessionStarted(e domain.SessionEvent) {
	n.logger.Info("scheduled session start",
		zap.String("schedule_id", e.ScheduleID),
		zap.String("schedule", e.ScheduleName),
		zap.Int("duration_minutes", e.DurationMinutes),
		zap.String("focus_mode", e.FocusMode),
		zap.Int("break_minutes", e.BreakDurationMinutes))

	select {
	case n.events <- e:
	default:
		n.logger.Warn("session event dropped, consumer too slow",
			zap.String("schedule_id", e.ScheduleID))
	}
}

// Events exposes the fan-out channel for consumers.
func (n *SessionNotifier) Events() <-chan domain.SessionEvent {
	return n.events
}

// Ensure SessionNotifier implements domain.Notifier.
var _ domain.Notifier = (*SessionNotifier)(nil)
