package services

import (
	"time"

	"github.com/google/uuid"

	"studyplanner-backend/internal/models"
)

// progressFacts are the counters achievements are measured against, all derived from
// completed sessions.
type progressFacts struct {
	completed         int
	minutes           int
	longestStreak     int
	weekendSessions   int
	morningSessions   int
	eveningSessions   int
	maxModuleSessions int
}

type achievementDef struct {
	Code        string
	Name        string
	Description string
	Category    models.AchievementCategory
	Target      int
	measure     func(f progressFacts) int
}

var achievementCatalogue = []achievementDef{
	{
		Code: "first_steps", Name: "First Steps", Description: "Complete 5 study sessions",
		Category: models.CategoryStudyVolume, Target: 5,
		measure: func(f progressFacts) int { return f.completed },
	},
	{
		Code: "dedicated_learner", Name: "Dedicated Learner", Description: "Complete 50 study sessions",
		Category: models.CategoryStudyVolume, Target: 50,
		measure: func(f progressFacts) int { return f.completed },
	},
	{
		Code: "steady_learner", Name: "Steady Learner", Description: "Study 7 days in a row",
		Category: models.CategoryConsistency, Target: 7,
		measure: func(f progressFacts) int { return f.longestStreak },
	},
	{
		Code: "unstoppable", Name: "Unstoppable", Description: "Study 30 days in a row",
		Category: models.CategoryConsistency, Target: 30,
		measure: func(f progressFacts) int { return f.longestStreak },
	},
	{
		Code: "weekend_warrior", Name: "Weekend Warrior", Description: "Complete 10 sessions on weekends",
		Category: models.CategoryConsistency, Target: 10,
		measure: func(f progressFacts) int { return f.weekendSessions },
	},
	{
		Code: "early_bird", Name: "Early Bird", Description: "Complete 10 morning sessions",
		Category: models.CategoryTimeOfDay, Target: 10,
		measure: func(f progressFacts) int { return f.morningSessions },
	},
	{
		Code: "night_owl", Name: "Night Owl", Description: "Complete 10 evening or night sessions",
		Category: models.CategoryTimeOfDay, Target: 10,
		measure: func(f progressFacts) int { return f.eveningSessions },
	},
	{
		Code: "module_devotee", Name: "Module Devotee", Description: "Complete 20 sessions in a single module",
		Category: models.CategoryModule, Target: 20,
		measure: func(f progressFacts) int { return f.maxModuleSessions },
	},
	{
		Code: "time_master", Name: "Time Master", Description: "Study for 50 hours in total",
		Category: models.CategoryHours, Target: 50,
		measure: func(f progressFacts) int { return f.minutes / 60 },
	},
}

func collectFacts(completed []*models.StudySession, longestStreak int) progressFacts {
	f := progressFacts{completed: len(completed), longestStreak: longestStreak}
	perModule := map[uuid.UUID]int{}

	for _, s := range completed {
		f.minutes += s.DurationMinutes()
		perModule[s.ModuleID]++

		if wd := s.Date.Weekday(); wd == time.Saturday || wd == time.Sunday {
			f.weekendSessions++
		}
		switch models.DayPartOf(s.StartTime) {
		case models.DayPartMorning:
			f.morningSessions++
		case models.DayPartEvening, models.DayPartNight:
			f.eveningSessions++
		}
	}

	for _, n := range perModule {
		f.maxModuleSessions = max(f.maxModuleSessions, n)
	}
	return f
}

// evaluateAchievements merges freshly measured progress into the stored rows, creating missing
// catalogue entries. Status is derived from progress alone, so evaluating from stored rows and
// from nothing agree. It returns every row plus the codes that reached completed in this pass.
func evaluateAchievements(userID uuid.UUID, stored []*models.Achievement, f progressFacts, now time.Time) ([]*models.Achievement, []string) {
	byCode := make(map[string]*models.Achievement, len(stored))
	for _, a := range stored {
		byCode[a.Code] = a
	}

	out := make([]*models.Achievement, 0, len(achievementCatalogue))
	var newlyCompleted []string

	for _, def := range achievementCatalogue {
		a, ok := byCode[def.Code]
		if !ok {
			a = &models.Achievement{UserID: userID, Code: def.Code, Status: models.AchievementLocked}
		}
		a.Name = def.Name
		a.Description = def.Description
		a.Category = def.Category
		a.Target = def.Target
		a.Progress = min(def.measure(f), def.Target)

		prev := a.Status
		switch {
		case a.Progress >= def.Target:
			a.Status = models.AchievementCompleted
		case a.Progress > 0:
			a.Status = models.AchievementUnlocked
		default:
			a.Status = models.AchievementLocked
		}
		if a.Status == models.AchievementCompleted && prev != models.AchievementCompleted {
			newlyCompleted = append(newlyCompleted, a.Code)
		}

		// The timestamps record the first time a level was reached and survive a withdrawn
		// completion.
		if a.Status.AtLeast(models.AchievementUnlocked) && a.UnlockedAt == nil {
			t := now
			a.UnlockedAt = &t
		}
		if a.Status == models.AchievementCompleted && a.CompletedAt == nil {
			t := now
			a.CompletedAt = &t
		}

		out = append(out, a)
	}

	return out, newlyCompleted
}
