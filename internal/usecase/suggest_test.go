package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/focuslock/sessiond/internal/domain"
	"github.com/focuslock/sessiond/internal/trigger"
)

func TestGenerateSmartSuggestionsPeakHour(t *testing.T) {
	suggestions := GenerateSmartSuggestions(domain.UserStats{
		PeakProductiveHour:    14,
		AverageSessionMinutes: 50,
		CompletedSessions:     5,
	})

	require.NotEmpty(t, suggestions)
	peak := suggestions[0]
	assert.Equal(t, "Peak Focus", peak.Name)
	assert.Equal(t, "14:00", peak.StartTime)
	assert.Equal(t, 50, peak.DurationMinutes)
}

func TestGenerateSmartSuggestionsClampsSessionLength(t *testing.T) {
	short := GenerateSmartSuggestions(domain.UserStats{PeakProductiveHour: 10, AverageSessionMinutes: 5})
	assert.Equal(t, 25, short[0].DurationMinutes)

	long := GenerateSmartSuggestions(domain.UserStats{PeakProductiveHour: 10, AverageSessionMinutes: 300})
	assert.Equal(t, 120, long[0].DurationMinutes)
}

func TestGenerateSmartSuggestionsReviewRequiresHistory(t *testing.T) {
	novice := GenerateSmartSuggestions(domain.UserStats{
		PeakProductiveHour: 14, AverageSessionMinutes: 60, CompletedSessions: 2,
	})
	for _, s := range novice {
		assert.NotEqual(t, "Evening Review", s.Name)
	}

	veteran := GenerateSmartSuggestions(domain.UserStats{
		PeakProductiveHour: 14, AverageSessionMinutes: 60, CompletedSessions: 30,
	})
	names := make([]string, len(veteran))
	for i, s := range veteran {
		names[i] = s.Name
	}
	assert.Contains(t, names, "Evening Review")
}

func TestSuggestionsAreValidScheduleConfigs(t *testing.T) {
	suggestions := GenerateSmartSuggestions(domain.UserStats{
		PeakProductiveHour: 22, AverageSessionMinutes: 90, CompletedSessions: 20,
	})

	for _, s := range suggestions {
		_, err := trigger.ParseExpression(s.StartTime, s.DaysOfWeek)
		assert.NoError(t, err, "suggestion %q must be directly creatable", s.Name)
		_, _, err = trigger.ParseTimeOfDay(s.EndTime)
		assert.NoError(t, err)
	}
}
