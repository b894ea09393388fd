package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyplanner-backend/internal/models"
)

func TestBuildStreak(t *testing.T) {
	d := date(2026, 10, 1)

	cases := []struct {
		name             string
		days             []time.Time
		current, longest int
	}{
		{"no completions", nil, 0, 0},
		{"single day", []time.Time{d}, 1, 1},
		{"three consecutive days", []time.Time{d, d.AddDate(0, 0, 1), d.AddDate(0, 0, 2)}, 3, 3},
		{"gap resets", []time.Time{d, d.AddDate(0, 0, 5)}, 1, 1},
		{"same day twice is a no-op", []time.Time{d, d, d.AddDate(0, 0, 1)}, 2, 2},
		{"unsorted input", []time.Time{d.AddDate(0, 0, 2), d, d.AddDate(0, 0, 1)}, 3, 3},
		{"longest survives reset", []time.Time{d, d.AddDate(0, 0, 1), d.AddDate(0, 0, 2), d.AddDate(0, 0, 10)}, 1, 3},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := BuildStreak(testUserID, tc.days)
			assert.Equal(t, tc.current, s.CurrentStreak)
			assert.Equal(t, tc.longest, s.LongestStreak)
		})
	}
}

func TestBuildStreak_History(t *testing.T) {
	d := date(2026, 10, 1)
	s := BuildStreak(testUserID, []time.Time{d, d, d.AddDate(0, 0, 1)})

	assert.Equal(t, map[string]int{"2026-10-01": 2, "2026-10-02": 1}, s.History)
	require.NotNil(t, s.LastStudyDate)
	assert.Equal(t, d.AddDate(0, 0, 1), *s.LastStudyDate)
}

func TestLevelFor(t *testing.T) {
	cases := []struct {
		xp, level, toNext int
	}{
		{0, 1, 1000},
		{999, 1, 1},
		{1000, 2, 1500},
		{2499, 2, 1},
		{2500, 3, 2500},
		{550000, 20, 0},
		{900000, 20, 0},
	}
	for _, tc := range cases {
		level, toNext := LevelFor(tc.xp)
		assert.Equal(t, tc.level, level, "level for %d XP", tc.xp)
		assert.Equal(t, tc.toNext, toNext, "XP to next level for %d XP", tc.xp)
	}
}

func TestSessionPoints(t *testing.T) {
	s := scheduledSession(date(2026, 10, 20), models.NewClockTime(9, 0), models.NewClockTime(10, 0))

	plain := testModule(algorithmsID, "Algorithms", 15)
	assert.Equal(t, 600, SessionPoints(s, plain))
	assert.Equal(t, 600, SessionPoints(s, nil))

	hard := testModule(algorithmsID, "Algorithms", 15)
	hard.Difficulty = intp(5)
	assert.Equal(t, 720, SessionPoints(s, hard))

	examSoon := testModule(algorithmsID, "Algorithms", 15)
	examSoon.AssessmentDates = []time.Time{date(2026, 10, 22)}
	assert.Equal(t, 780, SessionPoints(s, examSoon))

	both := testModule(algorithmsID, "Algorithms", 15)
	both.Difficulty = intp(4)
	both.AssessmentDates = []time.Time{date(2026, 10, 21)}
	assert.Equal(t, 900, SessionPoints(s, both))

	pastExam := testModule(algorithmsID, "Algorithms", 15)
	pastExam.AssessmentDates = []time.Time{date(2026, 10, 19), date(2026, 10, 23)}
	assert.Equal(t, 600, SessionPoints(s, pastExam))
}

func completedAt(day time.Time, start models.ClockTime, points int, productivity int) *models.StudySession {
	s := scheduledSession(day, start, start+60)
	s.Status = models.SessionCompleted
	s.PointsEarned = points
	at := start.On(day, time.UTC).Add(time.Hour)
	s.CompletedAt = &at
	if productivity > 0 {
		s.Feedback = &models.SessionFeedback{Productivity: productivity}
	}
	return s
}

func TestBuildStats(t *testing.T) {
	now := time.Date(2026, 10, 21, 12, 0, 0, 0, time.UTC)
	other := completedAt(date(2026, 10, 20), models.NewClockTime(14, 0), 600, 2)
	other.ModuleID = uuid.MustParse(databasesID)
	other.ModuleName = "Databases"

	missed := scheduledSession(date(2026, 10, 19), models.NewClockTime(9, 0), models.NewClockTime(10, 0))
	missed.Status = models.SessionMissed
	superseded := scheduledSession(date(2026, 10, 19), models.NewClockTime(11, 0), models.NewClockTime(12, 0))
	superseded.Status = models.SessionRescheduled

	all := []*models.StudySession{
		completedAt(date(2026, 10, 19), models.NewClockTime(9, 0), 600, 4),
		completedAt(date(2026, 10, 20), models.NewClockTime(9, 0), 720, 0),
		other,
		missed,
		superseded,
		scheduledSession(date(2026, 10, 22), models.NewClockTime(9, 0), models.NewClockTime(10, 0)),
	}

	stats := BuildStats(testUserID, all, now)
	assert.Equal(t, 5, stats.TotalPlanned)
	assert.Equal(t, 3, stats.TotalCompleted)
	assert.Equal(t, 1, stats.TotalMissed)
	assert.Equal(t, 180, stats.TotalMinutes)
	assert.Equal(t, 1920, stats.XP)
	assert.Equal(t, 2, stats.Level)
	assert.Equal(t, 580, stats.NextLevelXP)
	assert.Equal(t, 3.0, stats.AvgProductivity)
	assert.Equal(t, "Algorithms", stats.MostStudiedModule)

	require.Len(t, stats.ModuleBreakdown, 2)
	alg := stats.ModuleBreakdown[0]
	assert.Equal(t, 2, alg.Sessions)
	assert.Equal(t, 2.0, alg.Hours)
	assert.Equal(t, 2.0, alg.WeeklyAvgHours)
	assert.Equal(t, 4.0, alg.AvgProductivity)
}

func TestEvaluateAchievements_StatusFollowsProgress(t *testing.T) {
	now := time.Date(2026, 10, 21, 12, 0, 0, 0, time.UTC)

	list, completed := evaluateAchievements(testUserID, nil, progressFacts{completed: 5, minutes: 300}, now)
	require.Len(t, list, len(achievementCatalogue))
	assert.Equal(t, []string{"first_steps"}, completed)

	byCode := map[string]*models.Achievement{}
	for _, a := range list {
		byCode[a.Code] = a
	}
	assert.Equal(t, models.AchievementCompleted, byCode["first_steps"].Status)
	assert.NotNil(t, byCode["first_steps"].CompletedAt)
	assert.Equal(t, models.AchievementUnlocked, byCode["dedicated_learner"].Status)
	assert.Equal(t, 10, byCode["dedicated_learner"].ProgressPercent())
	assert.Equal(t, models.AchievementUnlocked, byCode["time_master"].Status)
	assert.Equal(t, models.AchievementLocked, byCode["night_owl"].Status)
	assert.Nil(t, byCode["night_owl"].UnlockedAt)
}

func TestEvaluateAchievements_IncrementalMatchesFresh(t *testing.T) {
	now := time.Date(2026, 10, 21, 12, 0, 0, 0, time.UTC)
	five := progressFacts{completed: 5, minutes: 300, maxModuleSessions: 5}
	four := progressFacts{completed: 4, minutes: 240, maxModuleSessions: 4}

	stored, _ := evaluateAchievements(testUserID, nil, five, now)
	// A rescheduled completion is withdrawn, leaving four.
	incremental, completed := evaluateAchievements(testUserID, stored, four, now.Add(time.Hour))
	assert.Empty(t, completed)
	fresh, _ := evaluateAchievements(testUserID, nil, four, now.Add(time.Hour))

	require.Len(t, incremental, len(fresh))
	for i := range fresh {
		assert.Equal(t, fresh[i].Code, incremental[i].Code)
		assert.Equal(t, fresh[i].Progress, incremental[i].Progress, fresh[i].Code)
		assert.Equal(t, fresh[i].Status, incremental[i].Status, fresh[i].Code)
	}

	for _, a := range incremental {
		if a.Code == "first_steps" {
			assert.Equal(t, 4, a.Progress)
			assert.Equal(t, models.AchievementUnlocked, a.Status)
			require.NotNil(t, a.CompletedAt, "the first completion time is kept")
			assert.True(t, a.CompletedAt.Equal(now))
		}
	}

	// Earning it again reports a new completion but keeps the original timestamp.
	again, completed := evaluateAchievements(testUserID, incremental, five, now.Add(2*time.Hour))
	assert.Equal(t, []string{"first_steps"}, completed)
	for _, a := range again {
		if a.Code == "first_steps" {
			assert.Equal(t, models.AchievementCompleted, a.Status)
			assert.True(t, a.CompletedAt.Equal(now))
		}
	}
}

func TestCollectFacts(t *testing.T) {
	saturday := date(2026, 10, 24)
	sessions := []*models.StudySession{
		completedAt(saturday, models.NewClockTime(8, 0), 600, 0),
		completedAt(date(2026, 10, 20), models.NewClockTime(19, 0), 600, 0),
		completedAt(date(2026, 10, 21), models.NewClockTime(22, 0), 600, 0),
	}
	f := collectFacts(sessions, 2)

	assert.Equal(t, 3, f.completed)
	assert.Equal(t, 180, f.minutes)
	assert.Equal(t, 1, f.weekendSessions)
	assert.Equal(t, 1, f.morningSessions)
	assert.Equal(t, 2, f.eveningSessions)
	assert.Equal(t, 3, f.maxModuleSessions)
	assert.Equal(t, 2, f.longestStreak)
}

func newTestTracker(sessions ...*models.StudySession) (*ProgressTracker, *fakeProgressStore, *fakePublisher) {
	progress := newFakeProgressStore()
	pub := &fakePublisher{}
	tracker := NewProgressTracker(newFakeSessionStore(sessions...), progress, nil, pub, nil, time.UTC, nopLogger())
	tracker.now = fixedClock(time.Date(2026, 10, 21, 18, 0, 0, 0, time.UTC))
	return tracker, progress, pub
}

func TestTracker_RecomputeIsIdempotent(t *testing.T) {
	tracker, progress, pub := newTestTracker(
		completedAt(date(2026, 10, 19), models.NewClockTime(9, 0), 600, 4),
		completedAt(date(2026, 10, 20), models.NewClockTime(9, 0), 600, 0),
		completedAt(date(2026, 10, 21), models.NewClockTime(9, 0), 600, 0),
	)
	ctx := context.Background()

	first, err := tracker.Recompute(ctx, testUserID)
	require.NoError(t, err)
	second, err := tracker.Recompute(ctx, testUserID)
	require.NoError(t, err)

	assert.Equal(t, 1800, first.XP)
	assert.Equal(t, first.XP, second.XP)
	assert.Equal(t, 3, first.CurrentStreak)
	assert.Equal(t, first.CurrentStreak, second.CurrentStreak)
	assert.Len(t, progress.achievements[testUserID], len(achievementCatalogue))
	assert.Equal(t, []string{models.WSProgressUpdated, models.WSProgressUpdated}, pub.types())
}

func TestTracker_StreakIsCreatedLazily(t *testing.T) {
	tracker, progress, _ := newTestTracker(
		completedAt(date(2026, 10, 20), models.NewClockTime(9, 0), 600, 0),
		completedAt(date(2026, 10, 21), models.NewClockTime(9, 0), 600, 0),
	)

	streak, err := tracker.Streak(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Equal(t, 2, streak.CurrentStreak)
	assert.Contains(t, progress.streaks, testUserID)

	require.Len(t, streak.RecentDays, recentStreakDays)
	last := streak.RecentDays[len(streak.RecentDays)-1]
	assert.Equal(t, "2026-10-21", last.Date)
	assert.Equal(t, "Wed", last.Weekday)
	assert.True(t, last.Studied)
	assert.False(t, streak.RecentDays[0].Studied)
}

func TestTracker_LapsedStreakReportsZero(t *testing.T) {
	tracker, _, _ := newTestTracker(
		completedAt(date(2026, 10, 10), models.NewClockTime(9, 0), 600, 0),
		completedAt(date(2026, 10, 11), models.NewClockTime(9, 0), 600, 0),
	)

	streak, err := tracker.Streak(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Equal(t, 0, streak.CurrentStreak)
	assert.Equal(t, 2, streak.LongestStreak)
}

func TestTracker_AchievementsByCategory(t *testing.T) {
	tracker, _, _ := newTestTracker(completedAt(date(2026, 10, 21), models.NewClockTime(9, 0), 600, 0))
	ctx := context.Background()

	timeOfDay, err := tracker.Achievements(ctx, testUserID, models.CategoryTimeOfDay)
	require.NoError(t, err)
	require.Len(t, timeOfDay, 2)
	for _, a := range timeOfDay {
		assert.Equal(t, models.CategoryTimeOfDay, a.Category)
	}

	all, err := tracker.Achievements(ctx, testUserID, "")
	require.NoError(t, err)
	assert.Len(t, all, len(achievementCatalogue))

	_, err = tracker.Achievements(ctx, testUserID, "social")
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestTracker_StatsLazilyComputed(t *testing.T) {
	tracker, _, _ := newTestTracker(completedAt(date(2026, 10, 21), models.NewClockTime(9, 0), 1000, 0))

	stats, err := tracker.Stats(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Equal(t, 1000, stats.XP)
	assert.Equal(t, 2, stats.Level)
}

func TestTracker_StatsCache(t *testing.T) {
	progress := newFakeProgressStore()
	cache := newFakeStatsCache()
	tracker := NewProgressTracker(
		newFakeSessionStore(completedAt(date(2026, 10, 21), models.NewClockTime(9, 0), 600, 0)),
		progress, cache, &fakePublisher{}, nil, time.UTC, nopLogger(),
	)
	tracker.now = fixedClock(time.Date(2026, 10, 21, 18, 0, 0, 0, time.UTC))
	ctx := context.Background()

	stats, err := tracker.Stats(ctx, testUserID)
	require.NoError(t, err)
	assert.Equal(t, 600, stats.XP)
	assert.Contains(t, cache.entries, testUserID, "a store read fills the cache")

	cache.entries[testUserID] = &models.StudyStats{UserID: testUserID, XP: 42}
	cached, err := tracker.Stats(ctx, testUserID)
	require.NoError(t, err)
	assert.Equal(t, 42, cached.XP, "cached stats are served without hitting the store")

	invalidations := cache.invalidated
	_, err = tracker.Recompute(ctx, testUserID)
	require.NoError(t, err)
	assert.Greater(t, cache.invalidated, invalidations)
	assert.NotContains(t, cache.entries, testUserID)
}

func TestTracker_Analytics(t *testing.T) {
	databases := completedAt(date(2026, 10, 20), models.NewClockTime(14, 0), 600, 2)
	databases.ModuleID = uuid.MustParse(databasesID)
	databases.ModuleName = "Databases"

	superseded := scheduledSession(date(2026, 10, 20), models.NewClockTime(9, 0), models.NewClockTime(10, 0))
	superseded.Status = models.SessionRescheduled
	missed := scheduledSession(date(2026, 10, 14), models.NewClockTime(9, 0), models.NewClockTime(10, 0))
	missed.Status = models.SessionMissed

	tracker, _, _ := newTestTracker(
		completedAt(date(2026, 10, 19), models.NewClockTime(9, 0), 600, 4),
		completedAt(date(2026, 10, 21), models.NewClockTime(9, 0), 600, 4),
		databases, superseded, missed,
	)
	tracker.now = fixedClock(time.Date(2026, 10, 21, 18, 0, 0, 0, time.UTC))

	a, err := tracker.Analytics(context.Background(), testUserID)
	require.NoError(t, err)

	assert.Equal(t, 3, a.Stats.TotalCompleted)
	assert.Equal(t, 1, a.Stats.TotalMissed)

	require.Len(t, a.ModuleTimeDistribution, 2)
	assert.Equal(t, "Algorithms", a.ModuleTimeDistribution[0].ModuleName)
	assert.Equal(t, 2.0, a.ModuleTimeDistribution[0].Hours)
	assert.Equal(t, 66.67, a.ModuleTimeDistribution[0].Share)
	assert.Equal(t, 33.33, a.ModuleTimeDistribution[1].Share)

	require.Len(t, a.SessionsTimeline, 7)
	assert.Equal(t, "2026-10-15", a.SessionsTimeline[0].Date)
	assert.Equal(t, models.TimelineDay{Date: "2026-10-21", Weekday: "Wed", Sessions: 1, Completed: 1}, a.SessionsTimeline[6])
	assert.Equal(t, 1, a.SessionsTimeline[5].Sessions, "rescheduled originals are not counted")
	assert.Zero(t, a.SessionsTimeline[1].Sessions)

	require.Len(t, a.ProductivityPatterns, 4)
	assert.Equal(t, models.ProductivityPattern{DayPart: models.DayPartMorning, Sessions: 2, AvgProductivity: 4}, a.ProductivityPatterns[0])
	assert.Equal(t, models.ProductivityPattern{DayPart: models.DayPartAfternoon, Sessions: 1, AvgProductivity: 2}, a.ProductivityPatterns[1])
}
