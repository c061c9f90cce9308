package usecase

import (
	"fmt"

	"github.com/focuslock/sessiond/internal/domain"
)

var weekdaysOnly = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}

// GenerateSmartSuggestions maps aggregate usage statistics to schedule
// templates the user has not created yet. Pure and advisory: nothing is
// persisted, no triggers are registered.
func GenerateSmartSuggestions(stats domain.UserStats) []domain.Suggestion {
	sessionMinutes := stats.AverageSessionMinutes
	if sessionMinutes < 25 {
		sessionMinutes = 25
	}
	if sessionMinutes > 120 {
		sessionMinutes = 120
	}

	var suggestions []domain.Suggestion

	if stats.PeakProductiveHour >= 0 && stats.PeakProductiveHour <= 23 {
		start := stats.PeakProductiveHour
		// A window shorter than the session is useless; give the whole hour
		// plus however many full hours the session needs.
		windowHours := 1 + sessionMinutes/60
		end := start + windowHours
		if end > 23 {
			end = 23
		}
		suggestions = append(suggestions, domain.Suggestion{
			Name:            "Peak Focus",
			StartTime:       fmt.Sprintf("%02d:00", start),
			EndTime:         fmt.Sprintf("%02d:00", end),
			DaysOfWeek:      weekdaysOnly,
			DurationMinutes: sessionMinutes,
			FocusMode:       "deep-work",
			Reason:          fmt.Sprintf("you complete the most focus time around %02d:00", start),
		})
	}

	// Morning routine for users whose peak is not already the morning.
	if stats.PeakProductiveHour < 8 || stats.PeakProductiveHour > 10 {
		suggestions = append(suggestions, domain.Suggestion{
			Name:            "Morning Kickoff",
			StartTime:       "09:00",
			EndTime:         "11:00",
			DaysOfWeek:      weekdaysOnly,
			DurationMinutes: sessionMinutes,
			FocusMode:       "deep-work",
			Reason:          "a consistent morning block builds the habit fastest",
		})
	}

	// Short daily review for users who already sustain long sessions.
	if stats.AverageSessionMinutes >= 45 && stats.CompletedSessions >= 10 {
		suggestions = append(suggestions, domain.Suggestion{
			Name:            "Evening Review",
			StartTime:       "20:00",
			EndTime:         "21:00",
			DaysOfWeek:      []string{"Monday", "Wednesday", "Friday"},
			DurationMinutes: 25,
			FocusMode:       "review",
			Reason:          "a short review block consolidates long deep-work sessions",
		})
	}

	return suggestions
}
