package services

import (
	"math"
	"time"

	"studyplanner-backend/internal/models"
)

const (
	pointsPerMinute = 10

	hardModuleDifficulty = 4
	hardModuleBonus      = 0.2
	assessmentBonus      = 0.3
	assessmentWindow     = 48 * time.Hour
)

// levelThresholds[i] is the XP at which level i+1 starts.
var levelThresholds = []int{
	0, 1000, 2500, 5000, 8000, 12000, 17000, 23000, 30000, 40000,
	52000, 66000, 83000, 103000, 127000, 155000, 190000, 250000, 350000, 550000,
}

// SessionPoints scores a completed session. Both bonuses are fractions of the base, so they
// add rather than compound.
func SessionPoints(s *models.StudySession, module *models.Module) int {
	base := s.DurationMinutes() * pointsPerMinute
	if base <= 0 {
		return 0
	}

	bonus := 0.0
	if module != nil {
		if module.Difficulty != nil && *module.Difficulty >= hardModuleDifficulty {
			bonus += hardModuleBonus
		}
		if assessmentDue(s.Date, module.AssessmentDates) {
			bonus += assessmentBonus
		}
	}
	return base + int(math.Round(float64(base)*bonus))
}

// assessmentDue reports whether an assessment falls within the window following the session date.
func assessmentDue(sessionDate time.Time, assessments []time.Time) bool {
	day := models.DateOnly(sessionDate)
	for _, a := range assessments {
		gap := models.DateOnly(a).Sub(day)
		if gap >= 0 && gap <= assessmentWindow {
			return true
		}
	}
	return false
}

// LevelFor maps total XP onto the ladder and returns the level plus the XP still needed for the
// next one (0 at the top level).
func LevelFor(xp int) (level, toNext int) {
	level = 1
	for i, threshold := range levelThresholds {
		if xp >= threshold {
			level = i + 1
		}
	}
	if level < len(levelThresholds) {
		toNext = levelThresholds[level] - xp
	}
	return level, toNext
}
