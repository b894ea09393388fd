package models

import (
	"time"

	"github.com/google/uuid"
)

type StudyStreak struct {
	UserID        uuid.UUID      `json:"user_id"`
	CurrentStreak int            `json:"current_streak"`
	LongestStreak int            `json:"longest_streak"`
	LastStudyDate *time.Time     `json:"last_study_date,omitempty"`
	History       map[string]int `json:"history"` // "2006-01-02" → completed sessions that day
	RecentDays    []StreakDay    `json:"recent_days,omitempty"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

type StreakDay struct {
	Date     string `json:"date"`
	Weekday  string `json:"weekday"`
	Studied  bool   `json:"studied"`
	Sessions int    `json:"sessions"`
}

type ModuleStats struct {
	ModuleID        uuid.UUID `json:"module_id"`
	ModuleName      string    `json:"module_name"`
	Sessions        int       `json:"sessions"`
	Minutes         int       `json:"minutes"`
	Hours           float64   `json:"hours"`
	WeeklyAvgHours  float64   `json:"weekly_avg_hours"`
	AvgProductivity float64   `json:"avg_productivity"`
}

type StudyStats struct {
	UserID            uuid.UUID     `json:"user_id"`
	TotalPlanned      int           `json:"total_planned"`
	TotalCompleted    int           `json:"total_completed"`
	TotalMissed       int           `json:"total_missed"`
	TotalMinutes      int           `json:"total_minutes"`
	AvgProductivity   float64       `json:"avg_productivity"`
	MostStudiedModule string        `json:"most_studied_module,omitempty"`
	ModuleBreakdown   []ModuleStats `json:"module_breakdown"`
	XP                int           `json:"xp"`
	Level             int           `json:"level"`
	NextLevelXP       int           `json:"next_level_xp"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

type AchievementCategory string

const (
	CategoryConsistency AchievementCategory = "consistency"
	CategoryTimeOfDay   AchievementCategory = "time-of-day"
	CategoryStudyVolume AchievementCategory = "study-volume"
	CategoryModule      AchievementCategory = "module"
	CategoryHours       AchievementCategory = "hours"
)

func (c AchievementCategory) Valid() bool {
	switch c {
	case CategoryConsistency, CategoryTimeOfDay, CategoryStudyVolume, CategoryModule, CategoryHours:
		return true
	}
	return false
}

type AchievementStatus string

const (
	AchievementLocked    AchievementStatus = "locked"
	AchievementUnlocked  AchievementStatus = "unlocked"
	AchievementCompleted AchievementStatus = "completed"
)

func (s AchievementStatus) rank() int {
	switch s {
	case AchievementUnlocked:
		return 1
	case AchievementCompleted:
		return 2
	}
	return 0
}

// AtLeast reports whether s is the same as or further along than other.
func (s AchievementStatus) AtLeast(other AchievementStatus) bool {
	return s.rank() >= other.rank()
}

type Achievement struct {
	ID          uuid.UUID           `json:"id"`
	UserID      uuid.UUID           `json:"user_id"`
	Code        string              `json:"code"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Category    AchievementCategory `json:"category"`
	Progress    int                 `json:"progress"`
	Target      int                 `json:"target"`
	Status      AchievementStatus   `json:"status"`
	UnlockedAt  *time.Time          `json:"unlocked_at,omitempty"`
	CompletedAt *time.Time          `json:"completed_at,omitempty"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

func (a *Achievement) ProgressPercent() int {
	if a.Target <= 0 {
		return 0
	}
	pct := a.Progress * 100 / a.Target
	if pct > 100 {
		return 100
	}
	return pct
}

type ProductivityPattern struct {
	DayPart         DayPart `json:"day_part"`
	Sessions        int     `json:"sessions"`
	AvgProductivity float64 `json:"avg_productivity"`
}

type ModuleRating struct {
	ModuleID        uuid.UUID `json:"module_id"`
	ModuleName      string    `json:"module_name"`
	AvgProductivity float64   `json:"avg_productivity"`
	RatedSessions   int       `json:"rated_sessions"`
}

type Recommendations struct {
	BestModule        *ModuleRating `json:"best_module,omitempty"`
	WorstModule       *ModuleRating `json:"worst_module,omitempty"`
	BestTimeOfDay     DayPart       `json:"best_time_of_day,omitempty"`
	AvgProductivity   float64       `json:"avg_productivity"`
	RatedSessions     int           `json:"rated_sessions"`
	SuggestedDuration int           `json:"suggested_duration,omitempty"`
	Suggestions       []string      `json:"suggestions"`
}
