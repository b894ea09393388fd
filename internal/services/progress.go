package services

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"studyplanner-backend/internal/metrics"
	"studyplanner-backend/internal/models"
	"studyplanner-backend/internal/repository"
)

const (
	recentStreakDays      = 14
	analyticsTimelineDays = 7
)

// ProgressTracker derives streak, stats, XP and achievements from completed sessions. Every
// write is a full recompute, so running it twice yields the same state.
type ProgressTracker struct {
	sessions  SessionStore
	progress  ProgressStore
	cache     StatsCache
	publisher UpdatePublisher
	metrics   *metrics.Metrics
	loc       *time.Location
	now       func() time.Time
	log       *zap.Logger
}

func NewProgressTracker(
	sessions SessionStore,
	progress ProgressStore,
	cache StatsCache,
	publisher UpdatePublisher,
	m *metrics.Metrics,
	loc *time.Location,
	log *zap.Logger,
) *ProgressTracker {
	if loc == nil {
		loc = time.UTC
	}
	return &ProgressTracker{
		sessions:  sessions,
		progress:  progress,
		cache:     cache,
		publisher: publisher,
		metrics:   m,
		loc:       loc,
		now:       time.Now,
		log:       log,
	}
}

// Recompute rebuilds and stores every derived aggregate for the user.
func (t *ProgressTracker) Recompute(ctx context.Context, userID uuid.UUID) (*models.ProgressUpdate, error) {
	all, err := t.sessions.ListByUser(ctx, userID, models.SessionFilter{})
	if err != nil {
		return nil, storeError("list sessions", err, "")
	}

	now := t.now()
	completed := completedSessions(all)

	streak := BuildStreak(userID, completionDays(completed, t.loc))
	if err := t.progress.SaveStreak(ctx, streak); err != nil {
		return nil, storeError("save streak", err, "")
	}

	stats := BuildStats(userID, all, now)
	if err := t.progress.SaveStats(ctx, stats); err != nil {
		return nil, storeError("save stats", err, "")
	}
	if t.cache != nil {
		t.cache.Invalidate(ctx, userID)
	}

	stored, err := t.progress.ListAchievements(ctx, userID)
	if err != nil {
		return nil, storeError("list achievements", err, "")
	}
	achievements, newlyCompleted := evaluateAchievements(userID, stored, collectFacts(completed, streak.LongestStreak), now)
	if err := t.progress.SaveAchievements(ctx, achievements); err != nil {
		return nil, storeError("save achievements", err, "")
	}

	update := &models.ProgressUpdate{
		XP:                    stats.XP,
		Level:                 stats.Level,
		CurrentStreak:         streak.CurrentStreak,
		CompletedAchievements: newlyCompleted,
	}
	t.publish(ctx, userID, models.WSMessage{Type: models.WSProgressUpdated, Payload: update})

	t.log.Debug("progress recomputed",
		zap.String("user_id", userID.String()),
		zap.Int("xp", stats.XP),
		zap.Int("level", stats.Level),
		zap.Int("streak", streak.CurrentStreak),
	)
	return update, nil
}

// Streak returns the stored streak with the recent-days calendar attached. A streak that was not
// extended today or yesterday reports a current value of zero.
func (t *ProgressTracker) Streak(ctx context.Context, userID uuid.UUID) (*models.StudyStreak, error) {
	streak, err := t.progress.GetStreak(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		if _, err := t.Recompute(ctx, userID); err != nil {
			return nil, err
		}
		streak, err = t.progress.GetStreak(ctx, userID)
	}
	if err != nil {
		return nil, storeError("load streak", err, "Streak not found")
	}

	today := models.DateOnly(t.now().In(t.loc))
	if streak.LastStudyDate != nil && today.Sub(models.DateOnly(*streak.LastStudyDate)) > 24*time.Hour {
		streak.CurrentStreak = 0
	}
	streak.RecentDays = recentDays(streak.History, today, recentStreakDays)
	return streak, nil
}

func (t *ProgressTracker) Stats(ctx context.Context, userID uuid.UUID) (*models.StudyStats, error) {
	if t.cache != nil {
		if stats, ok := t.cache.GetStats(ctx, userID); ok {
			return stats, nil
		}
	}

	stats, err := t.progress.GetStats(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		if _, err := t.Recompute(ctx, userID); err != nil {
			return nil, err
		}
		stats, err = t.progress.GetStats(ctx, userID)
	}
	if err != nil {
		return nil, storeError("load stats", err, "Stats not found")
	}

	if t.cache != nil {
		t.cache.SetStats(ctx, stats)
	}
	return stats, nil
}

// Achievements lists the user's achievements, optionally narrowed to one category.
func (t *ProgressTracker) Achievements(ctx context.Context, userID uuid.UUID, category models.AchievementCategory) ([]*models.Achievement, error) {
	if category != "" && !category.Valid() {
		return nil, newValidationError("category", "unknown achievement category")
	}

	list, err := t.progress.ListAchievements(ctx, userID)
	if err != nil {
		return nil, storeError("list achievements", err, "")
	}
	if len(list) == 0 {
		if _, err := t.Recompute(ctx, userID); err != nil {
			return nil, err
		}
		if list, err = t.progress.ListAchievements(ctx, userID); err != nil {
			return nil, storeError("list achievements", err, "")
		}
	}

	if category == "" {
		return list, nil
	}
	filtered := make([]*models.Achievement, 0, len(list))
	for _, a := range list {
		if a.Category == category {
			filtered = append(filtered, a)
		}
	}
	return filtered, nil
}

// Analytics assembles the chart data: fresh stats, completed hours per module, a seven-day
// session timeline ending today and the day-part productivity patterns.
func (t *ProgressTracker) Analytics(ctx context.Context, userID uuid.UUID) (*models.StudyAnalytics, error) {
	all, err := t.sessions.ListByUser(ctx, userID, models.SessionFilter{})
	if err != nil {
		return nil, storeError("list sessions", err, "")
	}

	now := t.now()
	stats := BuildStats(userID, all, now)
	return &models.StudyAnalytics{
		Stats:                  stats,
		ModuleTimeDistribution: moduleTimeDistribution(stats),
		SessionsTimeline:       sessionsTimeline(all, models.DateOnly(now.In(t.loc)), analyticsTimelineDays),
		ProductivityPatterns:   productivityPatterns(completedSessions(all)),
	}, nil
}

func (t *ProgressTracker) publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage) {
	if t.publisher == nil {
		return
	}
	if err := t.publisher.Publish(ctx, userID, msg); err != nil {
		t.log.Warn("failed to publish update", zap.String("type", msg.Type), zap.Error(err))
	}
}

// ──── Pure derivations ────

func completedSessions(all []*models.StudySession) []*models.StudySession {
	var out []*models.StudySession
	for _, s := range all {
		if s.Status == models.SessionCompleted {
			out = append(out, s)
		}
	}
	return out
}

// completionDays returns the calendar day each session was completed on, in loc. Sessions with
// no completion timestamp count on their scheduled date.
func completionDays(completed []*models.StudySession, loc *time.Location) []time.Time {
	days := make([]time.Time, 0, len(completed))
	for _, s := range completed {
		if s.CompletedAt != nil {
			days = append(days, models.DateOnly(s.CompletedAt.In(loc)))
		} else {
			days = append(days, models.DateOnly(s.Date))
		}
	}
	return days
}

// BuildStreak folds completion days in chronological order: the same day is a no-op, the next
// day extends the run and any gap restarts it at one.
func BuildStreak(userID uuid.UUID, days []time.Time) *models.StudyStreak {
	streak := &models.StudyStreak{UserID: userID, History: map[string]int{}}
	if len(days) == 0 {
		return streak
	}

	sorted := make([]time.Time, len(days))
	for i, d := range days {
		sorted[i] = models.DateOnly(d)
		streak.History[sorted[i].Format(models.DateLayout)]++
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	var last time.Time
	for i, day := range sorted {
		switch {
		case i == 0:
			streak.CurrentStreak = 1
		case day.Equal(last):
			continue
		case day.Sub(last) == 24*time.Hour:
			streak.CurrentStreak++
		default:
			streak.CurrentStreak = 1
		}
		last = day
		streak.LongestStreak = max(streak.LongestStreak, streak.CurrentStreak)
	}

	streak.LastStudyDate = &last
	return streak
}

func recentDays(history map[string]int, today time.Time, n int) []models.StreakDay {
	out := make([]models.StreakDay, 0, n)
	for i := n - 1; i >= 0; i-- {
		day := today.AddDate(0, 0, -i)
		key := day.Format(models.DateLayout)
		out = append(out, models.StreakDay{
			Date:     key,
			Weekday:  day.Weekday().String()[:3],
			Studied:  history[key] > 0,
			Sessions: history[key],
		})
	}
	return out
}

// BuildStats aggregates totals, the per-module breakdown and XP from a user's full session set.
func BuildStats(userID uuid.UUID, all []*models.StudySession, now time.Time) *models.StudyStats {
	stats := &models.StudyStats{UserID: userID, ModuleBreakdown: []models.ModuleStats{}}

	type moduleAcc struct {
		stats      models.ModuleStats
		ratingSum  int
		ratedCount int
		first      time.Time
	}
	perModule := map[uuid.UUID]*moduleAcc{}
	ratingSum, ratedCount := 0, 0

	for _, s := range all {
		switch s.Status {
		case models.SessionRescheduled:
			continue
		case models.SessionMissed:
			stats.TotalMissed++
		case models.SessionCompleted:
			stats.TotalCompleted++
			stats.TotalMinutes += s.DurationMinutes()
			stats.XP += s.PointsEarned

			acc, ok := perModule[s.ModuleID]
			if !ok {
				acc = &moduleAcc{
					stats: models.ModuleStats{ModuleID: s.ModuleID, ModuleName: s.ModuleName},
					first: s.Date,
				}
				perModule[s.ModuleID] = acc
			}
			acc.stats.Sessions++
			acc.stats.Minutes += s.DurationMinutes()
			if s.Date.Before(acc.first) {
				acc.first = s.Date
			}
			if s.Feedback != nil && s.Feedback.Productivity > 0 {
				acc.ratingSum += s.Feedback.Productivity
				acc.ratedCount++
				ratingSum += s.Feedback.Productivity
				ratedCount++
			}
		}
		stats.TotalPlanned++
	}

	if ratedCount > 0 {
		stats.AvgProductivity = round2(float64(ratingSum) / float64(ratedCount))
	}

	for _, acc := range perModule {
		ms := acc.stats
		ms.Hours = round2(float64(ms.Minutes) / 60)
		weeks := math.Max(1, math.Ceil(now.Sub(acc.first).Hours()/(24*7)))
		ms.WeeklyAvgHours = round2(ms.Hours / weeks)
		if acc.ratedCount > 0 {
			ms.AvgProductivity = round2(float64(acc.ratingSum) / float64(acc.ratedCount))
		}
		stats.ModuleBreakdown = append(stats.ModuleBreakdown, ms)
	}
	sort.Slice(stats.ModuleBreakdown, func(i, j int) bool {
		a, b := stats.ModuleBreakdown[i], stats.ModuleBreakdown[j]
		if a.Minutes != b.Minutes {
			return a.Minutes > b.Minutes
		}
		return a.ModuleName < b.ModuleName
	})
	if len(stats.ModuleBreakdown) > 0 {
		stats.MostStudiedModule = stats.ModuleBreakdown[0].ModuleName
	}

	stats.Level, stats.NextLevelXP = LevelFor(stats.XP)
	return stats
}

func moduleTimeDistribution(stats *models.StudyStats) []models.ModuleTime {
	out := make([]models.ModuleTime, 0, len(stats.ModuleBreakdown))
	for _, ms := range stats.ModuleBreakdown {
		mt := models.ModuleTime{
			ModuleID:   ms.ModuleID,
			ModuleName: ms.ModuleName,
			Sessions:   ms.Sessions,
			Hours:      round2(float64(ms.Minutes) / 60),
		}
		if stats.TotalMinutes > 0 {
			mt.Share = round2(float64(ms.Minutes) * 100 / float64(stats.TotalMinutes))
		}
		out = append(out, mt)
	}
	return out
}

// sessionsTimeline counts sessions per scheduled day over the n days ending today. Rescheduled
// originals are left out since their replacement is counted on its own day.
func sessionsTimeline(all []*models.StudySession, today time.Time, n int) []models.TimelineDay {
	type counts struct{ sessions, completed int }
	byDay := map[string]*counts{}
	for _, s := range all {
		if s.Status == models.SessionRescheduled {
			continue
		}
		key := models.DateOnly(s.Date).Format(models.DateLayout)
		c, ok := byDay[key]
		if !ok {
			c = &counts{}
			byDay[key] = c
		}
		c.sessions++
		if s.Status == models.SessionCompleted {
			c.completed++
		}
	}

	out := make([]models.TimelineDay, 0, n)
	for i := n - 1; i >= 0; i-- {
		day := today.AddDate(0, 0, -i)
		key := day.Format(models.DateLayout)
		td := models.TimelineDay{Date: key, Weekday: day.Weekday().String()[:3]}
		if c, ok := byDay[key]; ok {
			td.Sessions, td.Completed = c.sessions, c.completed
		}
		out = append(out, td)
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
