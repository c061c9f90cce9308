//go:build integration

package integration

import (
	"crypto/rand"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/focuslock/sessiond/internal/domain"
	"github.com/focuslock/sessiond/internal/infra"
	"github.com/focuslock/sessiond/internal/trigger"
	"github.com/focuslock/sessiond/internal/usecase"
)

// simClock implements domain.Clock with a settable simulated time.
type simClock struct {
	now time.Time
}

func (c *simClock) Now() time.Time { return c.now }

// collectingNotifier records emitted session events.
type collectingNotifier struct {
	events []domain.SessionEvent
}

func (n *collectingNotifier) SessionStarted(e domain.SessionEvent) {
	n.events = append(n.events, e)
}

var _ = Describe("Recurring schedules", func() {
	var (
		store     *infra.EncryptedScheduleStore
		clock     *simClock
		triggers  *trigger.Registry
		notifier  *collectingNotifier
		scheduler *usecase.Scheduler
	)

	// 2026-01-05 is a Monday.
	monday := func(hour, minute int) time.Time {
		return time.Date(2026, 1, 5, hour, minute, 0, 0, time.UTC)
	}

	BeforeEach(func() {
		key := make([]byte, 32)
		_, err := rand.Read(key)
		Expect(err).NotTo(HaveOccurred())

		tmpDir, err := os.MkdirTemp("", "sessiond-integration-*")
		Expect(err).NotTo(HaveOccurred())

		store, err = infra.NewEncryptedScheduleStore(tmpDir, key)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() {
			store.Close()
			os.RemoveAll(tmpDir)
		})

		clock = &simClock{now: monday(12, 0)}
		logger := zap.NewNop()
		triggers = trigger.NewRegistry(clock, logger)
		notifier = &collectingNotifier{}
		scheduler = usecase.NewScheduler(store, triggers, notifier, clock,
			30*24*time.Hour, logger)
	})

	Describe("Evening Study on a simulated Monday", func() {
		var id string

		BeforeEach(func() {
			var err error
			id, err = scheduler.CreateRecurringSession(usecase.ScheduleConfig{
				Name:                 "Evening Study",
				DurationMinutes:      90,
				StartTime:            "18:00",
				EndTime:              "20:00",
				DaysOfWeek:           []string{"Monday"},
				FocusMode:            "deep-work",
				AutoStart:            true,
				BreakDurationMinutes: 10,
				MaxSessions:          1,
			})
			Expect(err).NotTo(HaveOccurred())
		})

		Context("when the trigger fires inside the window", func() {
			It("emits one session-start event and persists the counters", func() {
				clock.now = monday(18, 5)
				sched, err := scheduler.GetSchedule(id)
				Expect(err).NotTo(HaveOccurred())
				scheduler.ExecuteScheduledSession(sched)

				Expect(notifier.events).To(HaveLen(1))
				Expect(notifier.events[0].ScheduleName).To(Equal("Evening Study"))
				Expect(notifier.events[0].DurationMinutes).To(Equal(90))

				persisted, err := scheduler.GetSchedule(id)
				Expect(err).NotTo(HaveOccurred())
				Expect(persisted.CompletedSessions).To(Equal(1))
				Expect(persisted.TotalTimeFocused).To(Equal(90))
			})

			It("does not emit a second event the same day once the cap is hit", func() {
				clock.now = monday(18, 5)
				sched, _ := scheduler.GetSchedule(id)
				scheduler.ExecuteScheduledSession(sched)

				clock.now = monday(18, 30)
				sched, _ = scheduler.GetSchedule(id)
				scheduler.ExecuteScheduledSession(sched)

				Expect(notifier.events).To(HaveLen(1))

				persisted, _ := scheduler.GetSchedule(id)
				Expect(persisted.CompletedSessions).To(Equal(1))
				Expect(persisted.IsActive).To(BeFalse(), "cap exceeded pauses the schedule")
				Expect(triggers.IsArmed(id)).To(BeFalse())
			})
		})

		Context("when the clock is outside the window", func() {
			It("skips the fire without touching the record", func() {
				clock.now = monday(21, 0)
				sched, _ := scheduler.GetSchedule(id)
				scheduler.ExecuteScheduledSession(sched)

				Expect(notifier.events).To(BeEmpty())
				persisted, _ := scheduler.GetSchedule(id)
				Expect(persisted.CompletedSessions).To(BeZero())
			})
		})

		Context("across a process restart", func() {
			It("re-arms persisted active schedules and fires them", func() {
				// Simulate restart: fresh registry and scheduler over the same store.
				logger := zap.NewNop()
				triggers2 := trigger.NewRegistry(clock, logger)
				notifier2 := &collectingNotifier{}
				scheduler2 := usecase.NewScheduler(store, triggers2, notifier2, clock,
					30*24*time.Hour, logger)

				Expect(scheduler2.InitializeStoredSchedules()).To(Succeed())
				Expect(triggers2.IsArmed(id)).To(BeTrue())

				clock.now = monday(18, 0)
				triggers2.Tick(clock.now)
				Expect(notifier2.events).To(HaveLen(1))
			})
		})
	})

	Describe("housekeeping", func() {
		It("deletes exhausted schedules older than the retention window, idempotently", func() {
			id, err := scheduler.CreateRecurringSession(usecase.ScheduleConfig{
				Name:        "Ancient",
				StartTime:   "10:00",
				EndTime:     "11:00",
				DaysOfWeek:  []string{"Friday"},
				AutoStart:   true,
				MaxSessions: 1,
			})
			Expect(err).NotTo(HaveOccurred())

			// Exhaust it and age it past retention.
			sched, _ := scheduler.GetSchedule(id)
			sched.CompletedSessions = 1
			sched.CreatedAt = clock.now.Add(-45 * 24 * time.Hour)
			Expect(store.Save(*sched)).To(Succeed())

			deleted, err := scheduler.CleanupOldSchedules()
			Expect(err).NotTo(HaveOccurred())
			Expect(deleted).To(Equal(1))

			deleted, err = scheduler.CleanupOldSchedules()
			Expect(err).NotTo(HaveOccurred())
			Expect(deleted).To(BeZero())
		})
	})
})
