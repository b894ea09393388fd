package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"studyplanner-backend/internal/models"
	"studyplanner-backend/internal/repository"
)

const (
	lowProductivity  = 3.0
	highProductivity = 4.0
	durationStep     = 15
	minSuggested     = 25
	maxSuggested     = 120
)

// InsightService turns completed-session feedback into advice and keeps the resulting tips.
type InsightService struct {
	sessions    SessionStore
	preferences PreferenceStore
	tips        TipStore
	now         func() time.Time
}

func NewInsightService(sessions SessionStore, preferences PreferenceStore, tips TipStore) *InsightService {
	return &InsightService{sessions: sessions, preferences: preferences, tips: tips, now: time.Now}
}

func (s *InsightService) completed(ctx context.Context, userID uuid.UUID) ([]*models.StudySession, error) {
	sessions, err := s.sessions.ListByUser(ctx, userID, models.SessionFilter{Status: models.SessionCompleted})
	if err != nil {
		return nil, storeError("list sessions", err, "")
	}
	return sessions, nil
}

// preference returns the stored preferences, or the defaults when the user has none yet.
func (s *InsightService) preference(ctx context.Context, userID uuid.UUID) (*models.StudyPreference, error) {
	pref, err := s.preferences.GetByUser(ctx, userID)
	switch {
	case err == nil:
		return pref, nil
	case errors.Is(err, repository.ErrNotFound):
		return models.DefaultStudyPreference(userID), nil
	default:
		return nil, storeError("load preferences", err, "")
	}
}

// Patterns reports session counts and average productivity per day-part, in day order.
func (s *InsightService) Patterns(ctx context.Context, userID uuid.UUID) ([]models.ProductivityPattern, error) {
	sessions, err := s.completed(ctx, userID)
	if err != nil {
		return nil, err
	}
	return productivityPatterns(sessions), nil
}

func (s *InsightService) recommend(ctx context.Context, userID uuid.UUID) (*models.Recommendations, []tipDraft, error) {
	sessions, err := s.completed(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	pref, err := s.preference(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	rec, drafts := buildRecommendations(sessions, pref.SessionDuration)
	return rec, drafts, nil
}

func (s *InsightService) Recommendations(ctx context.Context, userID uuid.UUID) (*models.Recommendations, error) {
	rec, _, err := s.recommend(ctx, userID)
	return rec, err
}

// ──── Tips ────

// Tips stores any current suggestion the user has never seen as a pending tip and returns the
// pending ones, newest first. A message that was accepted or rejected is not offered again.
func (s *InsightService) Tips(ctx context.Context, userID uuid.UUID) ([]*models.AITip, error) {
	_, drafts, err := s.recommend(ctx, userID)
	if err != nil {
		return nil, err
	}

	stored, err := s.tips.ListByUser(ctx, userID)
	if err != nil {
		return nil, storeError("list tips", err, "")
	}
	seen := make(map[string]bool, len(stored))
	for _, t := range stored {
		seen[t.Message] = true
	}

	now := s.now().UTC()
	var fresh []*models.AITip
	for _, d := range drafts {
		if seen[d.message] {
			continue
		}
		seen[d.message] = true
		fresh = append(fresh, &models.AITip{
			ID:                uuid.New(),
			UserID:            userID,
			Category:          d.category,
			Message:           d.message,
			SuggestedDuration: d.duration,
			Status:            models.TipPending,
			CreatedAt:         now,
		})
	}
	if err := s.tips.CreateBatch(ctx, fresh); err != nil {
		return nil, storeError("save tips", err, "")
	}

	pending := make([]*models.AITip, 0, len(stored)+len(fresh))
	pending = append(pending, fresh...)
	for _, t := range stored {
		if t.Status == models.TipPending {
			pending = append(pending, t)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].CreatedAt.After(pending[j].CreatedAt)
	})
	return pending, nil
}

// AcceptTip resolves a pending tip as accepted. Accepting a duration tip also updates the
// preferred session length.
func (s *InsightService) AcceptTip(ctx context.Context, userID, tipID uuid.UUID) (*models.AITip, error) {
	tip, err := s.pendingTip(ctx, userID, tipID)
	if err != nil {
		return nil, err
	}

	if tip.Category == models.TipDuration && tip.SuggestedDuration > 0 {
		pref, err := s.preference(ctx, userID)
		if err != nil {
			return nil, err
		}
		if pref.SessionDuration != tip.SuggestedDuration {
			pref.SessionDuration = tip.SuggestedDuration
			if err := s.preferences.Upsert(ctx, pref); err != nil {
				return nil, storeError("save preferences", err, "")
			}
		}
	}
	return s.resolveTip(ctx, tip, models.TipAccepted)
}

func (s *InsightService) RejectTip(ctx context.Context, userID, tipID uuid.UUID) (*models.AITip, error) {
	tip, err := s.pendingTip(ctx, userID, tipID)
	if err != nil {
		return nil, err
	}
	return s.resolveTip(ctx, tip, models.TipRejected)
}

// pendingTip loads a tip owned by the user. Another user's tip reads as not found.
func (s *InsightService) pendingTip(ctx context.Context, userID, tipID uuid.UUID) (*models.AITip, error) {
	tip, err := s.tips.GetByID(ctx, tipID)
	if err != nil {
		return nil, storeError("load tip", err, "Tip not found")
	}
	if tip.UserID != userID {
		return nil, &NotFoundError{Message: "Tip not found"}
	}
	if tip.Status != models.TipPending {
		return nil, &ConflictError{Message: fmt.Sprintf("Tip has already been %s", tip.Status)}
	}
	return tip, nil
}

func (s *InsightService) resolveTip(ctx context.Context, tip *models.AITip, status models.TipStatus) (*models.AITip, error) {
	at := s.now().UTC()
	tip.Status = status
	tip.ResolvedAt = &at

	err := s.tips.Resolve(ctx, tip)
	if errors.Is(err, repository.ErrVersionConflict) {
		return nil, &ConflictError{Message: "Tip has already been resolved"}
	}
	if err != nil {
		return nil, storeError("resolve tip", err, "Tip not found")
	}
	return tip, nil
}

func productivityPatterns(sessions []*models.StudySession) []models.ProductivityPattern {
	type acc struct{ sessions, sum, rated int }
	parts := map[models.DayPart]*acc{}
	for _, p := range models.DayParts {
		parts[p] = &acc{}
	}

	for _, sess := range sessions {
		a := parts[models.DayPartOf(sess.StartTime)]
		a.sessions++
		if sess.Feedback != nil && sess.Feedback.Productivity > 0 {
			a.sum += sess.Feedback.Productivity
			a.rated++
		}
	}

	out := make([]models.ProductivityPattern, 0, len(models.DayParts))
	for _, p := range models.DayParts {
		a := parts[p]
		pattern := models.ProductivityPattern{DayPart: p, Sessions: a.sessions}
		if a.rated > 0 {
			pattern.AvgProductivity = round2(float64(a.sum) / float64(a.rated))
		}
		out = append(out, pattern)
	}
	return out
}

// tipDraft is one suggestion tagged with what it is about, ready to be stored as a tip.
type tipDraft struct {
	category models.TipCategory
	message  string
	duration int
}

func buildRecommendations(sessions []*models.StudySession, currentDuration int) (*models.Recommendations, []tipDraft) {
	rec := &models.Recommendations{Suggestions: []string{}}
	var drafts []tipDraft
	suggest := func(category models.TipCategory, duration int, message string) {
		rec.Suggestions = append(rec.Suggestions, message)
		drafts = append(drafts, tipDraft{category: category, message: message, duration: duration})
	}

	ratings := map[uuid.UUID]*models.ModuleRating{}
	sum := 0
	for _, s := range sessions {
		if s.Feedback == nil || s.Feedback.Productivity == 0 {
			continue
		}
		r, ok := ratings[s.ModuleID]
		if !ok {
			r = &models.ModuleRating{ModuleID: s.ModuleID, ModuleName: s.ModuleName}
			ratings[s.ModuleID] = r
		}
		// Accumulate the sum for now; converted to an average below.
		r.AvgProductivity += float64(s.Feedback.Productivity)
		r.RatedSessions++
		sum += s.Feedback.Productivity
		rec.RatedSessions++
	}

	if rec.RatedSessions == 0 {
		suggest(models.TipFeedback, 0,
			"Rate your productivity when completing sessions to get personalised recommendations.")
		return rec, drafts
	}
	rec.AvgProductivity = round2(float64(sum) / float64(rec.RatedSessions))

	ranked := make([]*models.ModuleRating, 0, len(ratings))
	for _, r := range ratings {
		r.AvgProductivity = round2(r.AvgProductivity / float64(r.RatedSessions))
		ranked = append(ranked, r)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].AvgProductivity != ranked[j].AvgProductivity {
			return ranked[i].AvgProductivity > ranked[j].AvgProductivity
		}
		return ranked[i].ModuleName < ranked[j].ModuleName
	})
	rec.BestModule = ranked[0]
	if len(ranked) > 1 {
		rec.WorstModule = ranked[len(ranked)-1]
		suggest(models.TipModule, 0, fmt.Sprintf(
			"You are least productive in %s. Try scheduling it at your best time of day or in shorter blocks.",
			rec.WorstModule.ModuleName))
	}

	var best *models.ProductivityPattern
	patterns := productivityPatterns(sessions)
	for i := range patterns {
		if patterns[i].AvgProductivity > 0 && (best == nil || patterns[i].AvgProductivity > best.AvgProductivity) {
			best = &patterns[i]
		}
	}
	if best != nil {
		rec.BestTimeOfDay = best.DayPart
		suggest(models.TipTimeOfDay, 0, fmt.Sprintf(
			"Your most productive time is the %s. Plan demanding modules then.", best.DayPart))
	}

	switch {
	case rec.AvgProductivity < lowProductivity:
		rec.SuggestedDuration = max(minSuggested, currentDuration-durationStep)
		suggest(models.TipDuration, rec.SuggestedDuration, fmt.Sprintf(
			"Average productivity is %.1f/5. Shorter sessions of %d minutes may help you stay focused.",
			rec.AvgProductivity, rec.SuggestedDuration))
	case rec.AvgProductivity >= highProductivity:
		rec.SuggestedDuration = min(maxSuggested, currentDuration+durationStep)
		suggest(models.TipDuration, rec.SuggestedDuration, fmt.Sprintf(
			"Average productivity is %.1f/5. You could extend sessions to %d minutes.",
			rec.AvgProductivity, rec.SuggestedDuration))
	default:
		rec.SuggestedDuration = currentDuration
	}

	return rec, drafts
}
