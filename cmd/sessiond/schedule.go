package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/focuslock/sessiond/internal/domain"
	"github.com/focuslock/sessiond/internal/infra"
	"github.com/focuslock/sessiond/internal/usecase"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage recurring focus sessions",
}

var (
	addName        string
	addStart       string
	addEnd         string
	addDays        []string
	addDuration    int
	addFocusMode   string
	addAutoStart   bool
	addBreak       int
	addMaxSessions int
	addNotify      bool

	updName      string
	updStart     string
	updEnd       string
	updDays      []string
	updDuration  int
	updMax       int
	updFocusMode string

	upcomingDays int
	suggestPeak  int
	suggestAvg   int
	suggestDone  int
)

var scheduleAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a recurring focus session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withScheduler(func(s *usecase.Scheduler) error {
			id, err := s.CreateRecurringSession(usecase.ScheduleConfig{
				Name:                 addName,
				DurationMinutes:      addDuration,
				StartTime:            addStart,
				EndTime:              addEnd,
				DaysOfWeek:           addDays,
				FocusMode:            addFocusMode,
				AutoStart:            addAutoStart,
				BreakDurationMinutes: addBreak,
				MaxSessions:          addMaxSessions,
				Notifications:        domain.Notifications{Enabled: addNotify, MinutesBefore: 5},
			})
			if err != nil {
				return err
			}
			fmt.Printf("Created schedule %s\n", id)
			return nil
		})
	},
}

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all schedules",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withScheduler(func(s *usecase.Scheduler) error {
			schedules, err := s.ListSchedules()
			if err != nil {
				return err
			}
			printSchedules(schedules)
			return nil
		})
	},
}

var schedulePauseCmd = &cobra.Command{
	Use:   "pause <id>",
	Short: "Pause a schedule without deleting it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withScheduler(func(s *usecase.Scheduler) error {
			if err := s.PauseSchedule(args[0]); err != nil {
				return err
			}
			fmt.Println("Paused.")
			return nil
		})
	},
}

var scheduleResumeCmd = &cobra.Command{
	Use:   "resume <id>",
	Short: "Resume a paused schedule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withScheduler(func(s *usecase.Scheduler) error {
			if err := s.ResumeSchedule(args[0]); err != nil {
				return err
			}
			fmt.Println("Resumed.")
			return nil
		})
	},
}

var scheduleRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a schedule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withScheduler(func(s *usecase.Scheduler) error {
			if err := s.DeleteSchedule(args[0]); err != nil {
				return err
			}
			fmt.Println("Deleted.")
			return nil
		})
	},
}

var scheduleUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update schedule fields (rebuilds the trigger)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withScheduler(func(s *usecase.Scheduler) error {
			var updates usecase.ScheduleUpdate
			if cmd.Flags().Changed("name") {
				updates.Name = &updName
			}
			if cmd.Flags().Changed("start") {
				updates.StartTime = &updStart
			}
			if cmd.Flags().Changed("end") {
				updates.EndTime = &updEnd
			}
			if cmd.Flags().Changed("days") {
				updates.DaysOfWeek = updDays
			}
			if cmd.Flags().Changed("duration") {
				updates.DurationMinutes = &updDuration
			}
			if cmd.Flags().Changed("max-sessions") {
				updates.MaxSessions = &updMax
			}
			if cmd.Flags().Changed("focus-mode") {
				updates.FocusMode = &updFocusMode
			}
			if err := s.UpdateSchedule(args[0], updates); err != nil {
				return err
			}
			fmt.Println("Updated.")
			return nil
		})
	},
}

var scheduleTodayCmd = &cobra.Command{
	Use:   "today",
	Short: "Show active schedules for today",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withScheduler(func(s *usecase.Scheduler) error {
			schedules, err := s.GetTodaysSessions()
			if err != nil {
				return err
			}
			printSchedules(schedules)
			return nil
		})
	},
}

var scheduleUpcomingCmd = &cobra.Command{
	Use:   "upcoming",
	Short: "Project upcoming sessions over the next days",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withScheduler(func(s *usecase.Scheduler) error {
			sessions, err := s.GetUpcomingSessions(upcomingDays)
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Println("Nothing scheduled.")
				return nil
			}
			for _, u := range sessions {
				fmt.Printf("%s %s  %-20s %dm\n",
					u.Date.Format("Mon 2006-01-02"), u.StartTime,
					u.Schedule.Name, u.Schedule.DurationMinutes)
			}
			return nil
		})
	},
}

var scheduleSuggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Suggest schedules from usage statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		suggestions := usecase.GenerateSmartSuggestions(domain.UserStats{
			PeakProductiveHour:    suggestPeak,
			AverageSessionMinutes: suggestAvg,
			CompletedSessions:     suggestDone,
		})
		if len(suggestions) == 0 {
			fmt.Println("No suggestions.")
			return nil
		}
		for _, sug := range suggestions {
			fmt.Printf("%-16s %s-%s [%s] %dm - %s\n",
				sug.Name, sug.StartTime, sug.EndTime,
				strings.Join(sug.DaysOfWeek, ","), sug.DurationMinutes, sug.Reason)
		}
		return nil
	},
}

func init() {
	scheduleAddCmd.Flags().StringVar(&addName, "name", "", "Schedule name")
	scheduleAddCmd.Flags().StringVar(&addStart, "start", "", "Start time HH:MM")
	scheduleAddCmd.Flags().StringVar(&addEnd, "end", "", "End time HH:MM")
	scheduleAddCmd.Flags().StringSliceVar(&addDays, "days", nil, "Weekdays, e.g. Monday,Wednesday")
	scheduleAddCmd.Flags().IntVar(&addDuration, "duration", 45, "Session length in minutes")
	scheduleAddCmd.Flags().StringVar(&addFocusMode, "focus-mode", "deep-work", "Focus mode label")
	scheduleAddCmd.Flags().BoolVar(&addAutoStart, "auto-start", true, "Arm the schedule immediately")
	scheduleAddCmd.Flags().IntVar(&addBreak, "break", 10, "Break length in minutes")
	scheduleAddCmd.Flags().IntVar(&addMaxSessions, "max-sessions", 100, "Session cap before auto-pause")
	scheduleAddCmd.Flags().BoolVar(&addNotify, "notify", true, "Enable reminders")
	_ = scheduleAddCmd.MarkFlagRequired("name")
	_ = scheduleAddCmd.MarkFlagRequired("start")
	_ = scheduleAddCmd.MarkFlagRequired("end")
	_ = scheduleAddCmd.MarkFlagRequired("days")

	scheduleUpdateCmd.Flags().StringVar(&updName, "name", "", "Schedule name")
	scheduleUpdateCmd.Flags().StringVar(&updStart, "start", "", "Start time HH:MM")
	scheduleUpdateCmd.Flags().StringVar(&updEnd, "end", "", "End time HH:MM")
	scheduleUpdateCmd.Flags().StringSliceVar(&updDays, "days", nil, "Weekdays")
	scheduleUpdateCmd.Flags().IntVar(&updDuration, "duration", 0, "Session length in minutes")
	scheduleUpdateCmd.Flags().IntVar(&updMax, "max-sessions", 0, "Session cap")
	scheduleUpdateCmd.Flags().StringVar(&updFocusMode, "focus-mode", "", "Focus mode label")

	scheduleUpcomingCmd.Flags().IntVar(&upcomingDays, "days", 7, "Lookahead horizon in days")

	scheduleSuggestCmd.Flags().IntVar(&suggestPeak, "peak-hour", 9, "Peak productive hour (0-23)")
	scheduleSuggestCmd.Flags().IntVar(&suggestAvg, "avg-minutes", 45, "Average session length")
	scheduleSuggestCmd.Flags().IntVar(&suggestDone, "completed", 0, "Completed session count")

	scheduleCmd.AddCommand(scheduleAddCmd, scheduleListCmd, schedulePauseCmd,
		scheduleResumeCmd, scheduleRmCmd, scheduleUpdateCmd,
		scheduleTodayCmd, scheduleUpcomingCmd, scheduleSuggestCmd)
}

// withScheduler wires the persistence stack for a one-shot CLI call.
func withScheduler(fn func(*usecase.Scheduler) error) error {
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err
	}

	logger := zap.NewNop()
	scheduler, store, _, _, err := buildScheduler(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(scheduler)
}

func printSchedules(schedules []domain.Schedule) {
	if len(schedules) == 0 {
		fmt.Println("No schedules.")
		return
	}
	for _, s := range schedules {
		state := "paused"
		if s.IsActive {
			state = "active"
		}
		fmt.Printf("%s  %-20s %s-%s [%s] %s  sessions %d/%d\n",
			s.ID, s.Name, s.StartTime, s.EndTime,
			strings.Join(s.DaysOfWeek, ","), state,
			s.CompletedSessions, s.MaxSessions)
	}
}
