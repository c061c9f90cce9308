package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/focuslock/sessiond/internal/domain"
	"github.com/focuslock/sessiond/internal/trigger"
)

// memStore implements domain.ScheduleStore in memory for testing
type memStore struct {
	records map[string]domain.Schedule
	saveErr error
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]domain.Schedule)}
}

func (s *memStore) Save(sched domain.Schedule) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.records[sched.ID] = sched
	return nil
}

func (s *memStore) Get(id string) (*domain.Schedule, error) {
	sched, ok := s.records[id]
	if !ok {
		return nil, domain.ErrScheduleNotFound
	}
	rec := sched
	return &rec, nil
}

func (s *memStore) Delete(id string) error {
	if _, ok := s.records[id]; !ok {
		return domain.ErrScheduleNotFound
	}
	delete(s.records, id)
	return nil
}

func (s *memStore) List() ([]domain.Schedule, error) {
	result := make([]domain.Schedule, 0, len(s.records))
	for _, sched := range s.records {
		result = append(result, sched)
	}
	return result, nil
}

func (s *memStore) Close() error { return nil }

// recordingNotifier implements domain.Notifier for testing
type recordingNotifier struct {
	events []domain.SessionEvent
}

func (n *recordingNotifier) SessionStarted(e domain.SessionEvent) {
	n.events = append(n.events, e)
}

// movableClock implements domain.Clock with a settable time
type movableClock struct {
	now time.Time
}

func (c *movableClock) Now() time.Time { return c.now }

// mondayAt returns 2026-01-05 (a Monday) at the given time of day.
func mondayAt(hour, minute int) time.Time {
	return time.Date(2026, 1, 5, hour, minute, 0, 0, time.UTC)
}

type schedulerFixture struct {
	scheduler *Scheduler
	store     *memStore
	triggers  *trigger.Registry
	notifier  *recordingNotifier
	clock     *movableClock
}

func newFixture() *schedulerFixture {
	store := newMemStore()
	clock := &movableClock{now: mondayAt(12, 0)}
	triggers := trigger.NewRegistry(clock, zap.NewNop())
	notifier := &recordingNotifier{}
	scheduler := NewScheduler(store, triggers, notifier, clock, 30*24*time.Hour, zap.NewNop())
	return &schedulerFixture{
		scheduler: scheduler,
		store:     store,
		triggers:  triggers,
		notifier:  notifier,
		clock:     clock,
	}
}

func eveningStudy() ScheduleConfig {
	return ScheduleConfig{
		Name:                 "Evening Study",
		DurationMinutes:      45,
		StartTime:            "18:00",
		EndTime:              "20:00",
		DaysOfWeek:           []string{"Monday"},
		FocusMode:            "deep-work",
		AutoStart:            true,
		BreakDurationMinutes: 10,
		MaxSessions:          5,
	}
}

func TestCreateRecurringSession(t *testing.T) {
	f := newFixture()

	id, err := f.scheduler.CreateRecurringSession(eveningStudy())
	require.NoError(t, err)
	require.NotEmpty(t, id)

	sched, err := f.scheduler.GetSchedule(id)
	require.NoError(t, err)
	assert.Equal(t, "Evening Study", sched.Name)
	assert.True(t, sched.IsActive)
	assert.Zero(t, sched.CompletedSessions)
	assert.True(t, f.triggers.IsArmed(id))
}

func TestCreateRecurringSessionNoAutoStart(t *testing.T) {
	f := newFixture()

	cfg := eveningStudy()
	cfg.AutoStart = false
	id, err := f.scheduler.CreateRecurringSession(cfg)
	require.NoError(t, err)

	sched, err := f.scheduler.GetSchedule(id)
	require.NoError(t, err)
	assert.False(t, sched.IsActive)
	assert.False(t, f.triggers.IsArmed(id))
}

func TestCreateRecurringSessionInvalidNothingPersisted(t *testing.T) {
	f := newFixture()

	tests := []struct {
		name   string
		mutate func(*ScheduleConfig)
	}{
		{"start hour out of range", func(c *ScheduleConfig) { c.StartTime = "25:00" }},
		{"start minute out of range", func(c *ScheduleConfig) { c.StartTime = "18:75" }},
		{"end time invalid", func(c *ScheduleConfig) { c.EndTime = "whenever" }},
		{"unknown weekday", func(c *ScheduleConfig) { c.DaysOfWeek = []string{"Monday", "Blursday"} }},
		{"no weekdays", func(c *ScheduleConfig) { c.DaysOfWeek = nil }},
		{"zero sessions", func(c *ScheduleConfig) { c.MaxSessions = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := eveningStudy()
			tt.mutate(&cfg)

			id, err := f.scheduler.CreateRecurringSession(cfg)
			assert.Error(t, err)
			assert.Empty(t, id)
			assert.Empty(t, f.store.records, "invalid schedule must not persist")
			assert.Zero(t, f.triggers.ArmedCount())
		})
	}
}

func TestExecuteFiresWithinWindow(t *testing.T) {
	f := newFixture()

	id, err := f.scheduler.CreateRecurringSession(eveningStudy())
	require.NoError(t, err)

	f.clock.now = mondayAt(18, 5)
	sched, _ := f.scheduler.GetSchedule(id)
	f.scheduler.ExecuteScheduledSession(sched)

	require.Len(t, f.notifier.events, 1)
	e := f.notifier.events[0]
	assert.Equal(t, id, e.ScheduleID)
	assert.Equal(t, 45, e.DurationMinutes)
	assert.Equal(t, "deep-work", e.FocusMode)
	assert.Equal(t, 10, e.BreakDurationMinutes)

	updated, _ := f.scheduler.GetSchedule(id)
	assert.Equal(t, 1, updated.CompletedSessions)
	assert.Equal(t, 45, updated.TotalTimeFocused)
}

func TestExecuteOutsideWindowNoOp(t *testing.T) {
	f := newFixture()

	id, err := f.scheduler.CreateRecurringSession(eveningStudy())
	require.NoError(t, err)

	f.clock.now = mondayAt(20, 30) // past end time
	sched, _ := f.scheduler.GetSchedule(id)
	f.scheduler.ExecuteScheduledSession(sched)

	assert.Empty(t, f.notifier.events)
	updated, _ := f.scheduler.GetSchedule(id)
	assert.Zero(t, updated.CompletedSessions)
}

func TestSessionCapAutoPauses(t *testing.T) {
	f := newFixture()

	cfg := eveningStudy()
	cfg.MaxSessions = 2
	id, err := f.scheduler.CreateRecurringSession(cfg)
	require.NoError(t, err)

	f.clock.now = mondayAt(18, 0)
	for i := 0; i < 3; i++ {
		sched, _ := f.scheduler.GetSchedule(id)
		f.scheduler.ExecuteScheduledSession(sched)
	}

	assert.Len(t, f.notifier.events, 2, "the N+1-th fire must not emit")

	updated, _ := f.scheduler.GetSchedule(id)
	assert.Equal(t, 2, updated.CompletedSessions)
	assert.False(t, updated.IsActive, "cap-exceeded schedule is auto-paused")
	assert.False(t, f.triggers.IsArmed(id))
}

func TestTriggerFireDrivesExecution(t *testing.T) {
	f := newFixture()

	id, err := f.scheduler.CreateRecurringSession(eveningStudy())
	require.NoError(t, err)

	f.clock.now = mondayAt(18, 0)
	f.triggers.Tick(f.clock.now)

	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, id, f.notifier.events[0].ScheduleID)

	// Same minute again: the registry suppresses the double fire.
	f.triggers.Tick(f.clock.now.Add(30 * time.Second))
	assert.Len(t, f.notifier.events, 1)
}

func TestPauseResume(t *testing.T) {
	f := newFixture()

	id, err := f.scheduler.CreateRecurringSession(eveningStudy())
	require.NoError(t, err)

	require.NoError(t, f.scheduler.PauseSchedule(id))
	sched, _ := f.scheduler.GetSchedule(id)
	assert.False(t, sched.IsActive)
	assert.False(t, f.triggers.IsArmed(id))

	require.NoError(t, f.scheduler.ResumeSchedule(id))
	sched, _ = f.scheduler.GetSchedule(id)
	assert.True(t, sched.IsActive)
	assert.True(t, f.triggers.IsArmed(id))
}

func TestUnknownIDReturnsNotFound(t *testing.T) {
	f := newFixture()

	assert.ErrorIs(t, f.scheduler.PauseSchedule("nope"), domain.ErrScheduleNotFound)
	assert.ErrorIs(t, f.scheduler.ResumeSchedule("nope"), domain.ErrScheduleNotFound)
	assert.ErrorIs(t, f.scheduler.DeleteSchedule("nope"), domain.ErrScheduleNotFound)
	assert.ErrorIs(t, f.scheduler.UpdateSchedule("nope", ScheduleUpdate{}), domain.ErrScheduleNotFound)
	_, err := f.scheduler.GetSchedule("nope")
	assert.ErrorIs(t, err, domain.ErrScheduleNotFound)
}

func TestDeleteSchedule(t *testing.T) {
	f := newFixture()

	id, err := f.scheduler.CreateRecurringSession(eveningStudy())
	require.NoError(t, err)

	require.NoError(t, f.scheduler.DeleteSchedule(id))
	assert.False(t, f.triggers.IsArmed(id))
	_, err = f.scheduler.GetSchedule(id)
	assert.ErrorIs(t, err, domain.ErrScheduleNotFound)

	// Deleted id behaves like any unknown id afterwards.
	assert.ErrorIs(t, f.scheduler.PauseSchedule(id), domain.ErrScheduleNotFound)
}

func TestUpdateScheduleRebuildsTrigger(t *testing.T) {
	f := newFixture()

	id, err := f.scheduler.CreateRecurringSession(eveningStudy())
	require.NoError(t, err)

	newName := "Late Study"
	newStart := "19:00"
	require.NoError(t, f.scheduler.UpdateSchedule(id, ScheduleUpdate{
		Name:      &newName,
		StartTime: &newStart,
	}))

	sched, err := f.scheduler.GetSchedule(id)
	require.NoError(t, err)
	assert.Equal(t, "Late Study", sched.Name)
	assert.Equal(t, "19:00", sched.StartTime)
	assert.Equal(t, "20:00", sched.EndTime, "untouched fields survive")

	// Old trigger time no longer fires, new one does.
	f.clock.now = mondayAt(18, 0)
	f.triggers.Tick(f.clock.now)
	assert.Empty(t, f.notifier.events)

	f.clock.now = mondayAt(19, 0)
	f.triggers.Tick(f.clock.now)
	assert.Len(t, f.notifier.events, 1)
}

func TestUpdateScheduleInvalidRejected(t *testing.T) {
	f := newFixture()

	id, err := f.scheduler.CreateRecurringSession(eveningStudy())
	require.NoError(t, err)

	bad := "26:00"
	err = f.scheduler.UpdateSchedule(id, ScheduleUpdate{StartTime: &bad})
	assert.Error(t, err)

	sched, _ := f.scheduler.GetSchedule(id)
	assert.Equal(t, "18:00", sched.StartTime, "rejected update must not persist")
	assert.True(t, f.triggers.IsArmed(id), "trigger survives a rejected update")
}

func TestUpdateScheduleRejectsZeroMaxSessions(t *testing.T) {
	f := newFixture()

	id, err := f.scheduler.CreateRecurringSession(eveningStudy())
	require.NoError(t, err)

	zero := 0
	err = f.scheduler.UpdateSchedule(id, ScheduleUpdate{MaxSessions: &zero})
	assert.Error(t, err)

	sched, _ := f.scheduler.GetSchedule(id)
	assert.Equal(t, 5, sched.MaxSessions, "rejected update must not persist")
}

func TestExecuteAfterDeleteDoesNotResurrect(t *testing.T) {
	f := newFixture()

	id, err := f.scheduler.CreateRecurringSession(eveningStudy())
	require.NoError(t, err)

	f.clock.now = mondayAt(18, 5)
	stale, err := f.scheduler.GetSchedule(id)
	require.NoError(t, err)

	// A cleanup sweep (or user delete) wins the race before execution.
	require.NoError(t, f.scheduler.DeleteSchedule(id))

	f.scheduler.ExecuteScheduledSession(stale)

	assert.Empty(t, f.notifier.events)
	_, err = f.scheduler.GetSchedule(id)
	assert.ErrorIs(t, err, domain.ErrScheduleNotFound, "deleted record must stay deleted")
	assert.False(t, f.triggers.IsArmed(id))
}

func TestGetTodaysSessions(t *testing.T) {
	f := newFixture()

	_, err := f.scheduler.CreateRecurringSession(eveningStudy()) // Monday
	require.NoError(t, err)

	tuesday := eveningStudy()
	tuesday.Name = "Tuesday Study"
	tuesday.DaysOfWeek = []string{"Tuesday"}
	_, err = f.scheduler.CreateRecurringSession(tuesday)
	require.NoError(t, err)

	f.clock.now = mondayAt(9, 0)
	today, err := f.scheduler.GetTodaysSessions()
	require.NoError(t, err)
	require.Len(t, today, 1)
	assert.Equal(t, "Evening Study", today[0].Name)
}

func TestGetUpcomingSessions(t *testing.T) {
	f := newFixture()

	_, err := f.scheduler.CreateRecurringSession(eveningStudy()) // Monday 18:00
	require.NoError(t, err)

	morning := eveningStudy()
	morning.Name = "Morning Pages"
	morning.StartTime = "08:00"
	morning.EndTime = "09:00"
	morning.DaysOfWeek = []string{"Monday", "Wednesday"}
	_, err = f.scheduler.CreateRecurringSession(morning)
	require.NoError(t, err)

	f.clock.now = mondayAt(0, 0)
	upcoming, err := f.scheduler.GetUpcomingSessions(7)
	require.NoError(t, err)

	// Monday x2, Wednesday x1 within the 7-day horizon.
	require.Len(t, upcoming, 3)
	assert.Equal(t, "Morning Pages", upcoming[0].Schedule.Name, "sorted by time within a day")
	assert.Equal(t, "Evening Study", upcoming[1].Schedule.Name)
	assert.Equal(t, time.Wednesday, upcoming[2].Date.Weekday())
}

func TestInitializeStoredSchedules(t *testing.T) {
	f := newFixture()

	f.store.records["good"] = domain.Schedule{
		ID: "good", Name: "Good", StartTime: "10:00", EndTime: "11:00",
		DaysOfWeek: []string{"Friday"}, MaxSessions: 3, IsActive: true,
	}
	f.store.records["paused"] = domain.Schedule{
		ID: "paused", Name: "Paused", StartTime: "10:00", EndTime: "11:00",
		DaysOfWeek: []string{"Friday"}, MaxSessions: 3, IsActive: false,
	}
	f.store.records["corrupt"] = domain.Schedule{
		ID: "corrupt", Name: "Corrupt", StartTime: "99:99", EndTime: "11:00",
		DaysOfWeek: []string{"Friday"}, MaxSessions: 3, IsActive: true,
	}

	require.NoError(t, f.scheduler.InitializeStoredSchedules())

	assert.True(t, f.triggers.IsArmed("good"))
	assert.False(t, f.triggers.IsArmed("paused"))
	assert.False(t, f.triggers.IsArmed("corrupt"), "invalid stored expression is skipped")
	assert.Equal(t, 1, f.triggers.ArmedCount(), "armed set matches persisted active set")
}

func TestCleanupOldSchedulesIdempotent(t *testing.T) {
	f := newFixture()

	old := f.clock.now.Add(-40 * 24 * time.Hour)
	f.store.records["exhausted-old"] = domain.Schedule{
		ID: "exhausted-old", StartTime: "10:00", EndTime: "11:00",
		DaysOfWeek: []string{"Friday"}, MaxSessions: 2, CompletedSessions: 2,
		CreatedAt: old,
	}
	f.store.records["exhausted-recent"] = domain.Schedule{
		ID: "exhausted-recent", StartTime: "10:00", EndTime: "11:00",
		DaysOfWeek: []string{"Friday"}, MaxSessions: 2, CompletedSessions: 2,
		CreatedAt: f.clock.now.Add(-24 * time.Hour),
	}
	f.store.records["old-but-live"] = domain.Schedule{
		ID: "old-but-live", StartTime: "10:00", EndTime: "11:00",
		DaysOfWeek: []string{"Friday"}, MaxSessions: 5, CompletedSessions: 2,
		CreatedAt: old,
	}

	deleted, err := f.scheduler.CleanupOldSchedules()
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = f.scheduler.GetSchedule("exhausted-old")
	assert.ErrorIs(t, err, domain.ErrScheduleNotFound)
	_, err = f.scheduler.GetSchedule("exhausted-recent")
	assert.NoError(t, err)
	_, err = f.scheduler.GetSchedule("old-but-live")
	assert.NoError(t, err)

	// Second sweep deletes nothing additional.
	deleted, err = f.scheduler.CleanupOldSchedules()
	require.NoError(t, err)
	assert.Zero(t, deleted)
}
