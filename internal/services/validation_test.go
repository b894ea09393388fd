package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyplanner-backend/internal/models"
)

func TestValidatePreference_Defaults(t *testing.T) {
	assert.NoError(t, ValidatePreference(models.DefaultStudyPreference(testUserID)))
}

func TestValidatePreference_ReportsJSONFieldNames(t *testing.T) {
	pref := &models.StudyPreference{
		PreferredDayParts:  []models.DayPart{"brunch"},
		SessionDuration:    5,
		BreakDuration:      0,
		MinSessionsPerWeek: 0,
		ExcludedTimes: []models.ExcludedTime{
			{Weekday: time.Monday, Start: models.NewClockTime(12, 0), End: models.NewClockTime(11, 0)},
			{Weekday: time.Tuesday, AllDay: true},
		},
	}

	err := ValidatePreference(pref)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))

	assert.Equal(t, "is required", verr.Fields["preferred_days"])
	assert.Contains(t, verr.Fields, "preferred_day_parts[0]")
	assert.Equal(t, "must be at least 15", verr.Fields["session_duration"])
	assert.Contains(t, verr.Fields, "min_sessions_per_week")
	assert.Equal(t, "end must be after start", verr.Fields["excluded_times[0]"])
	assert.NotContains(t, verr.Fields, "excluded_times[1]")
}

func TestValidatePreference_Nil(t *testing.T) {
	var verr *ValidationError
	assert.True(t, errors.As(ValidatePreference(nil), &verr))
}

func TestValidateFeedback(t *testing.T) {
	assert.NoError(t, ValidateFeedback(nil))
	assert.NoError(t, ValidateFeedback(&models.SessionFeedback{Productivity: 5, Difficulty: 1}))

	err := ValidateFeedback(&models.SessionFeedback{Difficulty: 6})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "difficulty")
}
