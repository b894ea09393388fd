package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyplanner-backend/internal/models"
)

func TestProductivityPatterns(t *testing.T) {
	sessions := []*models.StudySession{
		completedAt(date(2026, 10, 19), models.NewClockTime(9, 0), 600, 5),
		completedAt(date(2026, 10, 20), models.NewClockTime(10, 0), 600, 3),
		completedAt(date(2026, 10, 20), models.NewClockTime(18, 0), 600, 2),
		completedAt(date(2026, 10, 21), models.NewClockTime(14, 0), 600, 0),
	}

	patterns := productivityPatterns(sessions)
	require.Len(t, patterns, 4)
	assert.Equal(t, models.ProductivityPattern{DayPart: models.DayPartMorning, Sessions: 2, AvgProductivity: 4}, patterns[0])
	assert.Equal(t, models.ProductivityPattern{DayPart: models.DayPartAfternoon, Sessions: 1}, patterns[1])
	assert.Equal(t, models.ProductivityPattern{DayPart: models.DayPartEvening, Sessions: 1, AvgProductivity: 2}, patterns[2])
	assert.Equal(t, models.ProductivityPattern{DayPart: models.DayPartNight}, patterns[3])
}

func TestBuildRecommendations_NoFeedback(t *testing.T) {
	rec, _ := buildRecommendations(nil, 60)
	assert.Zero(t, rec.RatedSessions)
	assert.Nil(t, rec.BestModule)
	assert.Len(t, rec.Suggestions, 1)
}

func TestBuildRecommendations_LowProductivityShortensSessions(t *testing.T) {
	weak := completedAt(date(2026, 10, 20), models.NewClockTime(19, 0), 600, 1)
	weak.ModuleID = uuid.MustParse(databasesID)
	weak.ModuleName = "Databases"

	rec, _ := buildRecommendations([]*models.StudySession{
		completedAt(date(2026, 10, 19), models.NewClockTime(9, 0), 600, 3),
		weak,
	}, 60)

	assert.Equal(t, 2, rec.RatedSessions)
	assert.Equal(t, 2.0, rec.AvgProductivity)
	require.NotNil(t, rec.BestModule)
	require.NotNil(t, rec.WorstModule)
	assert.Equal(t, "Algorithms", rec.BestModule.ModuleName)
	assert.Equal(t, "Databases", rec.WorstModule.ModuleName)
	assert.Equal(t, models.DayPartMorning, rec.BestTimeOfDay)
	assert.Equal(t, 45, rec.SuggestedDuration)
}

func TestBuildRecommendations_HighProductivityExtendsSessions(t *testing.T) {
	rec, _ := buildRecommendations([]*models.StudySession{
		completedAt(date(2026, 10, 19), models.NewClockTime(9, 0), 600, 5),
		completedAt(date(2026, 10, 20), models.NewClockTime(9, 0), 600, 4),
	}, 120)

	assert.Equal(t, 4.5, rec.AvgProductivity)
	assert.Nil(t, rec.WorstModule)
	assert.Equal(t, 120, rec.SuggestedDuration, "capped at the maximum")
}

func TestInsightService_UsesStoredDuration(t *testing.T) {
	store := newFakeSessionStore(completedAt(date(2026, 10, 19), models.NewClockTime(9, 0), 600, 1))
	pref := models.DefaultStudyPreference(testUserID)
	pref.SessionDuration = 30
	prefs := &fakePreferenceStore{byUser: map[uuid.UUID]*models.StudyPreference{testUserID: pref}}

	rec, err := NewInsightService(store, prefs, newFakeTipStore()).Recommendations(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Equal(t, 25, rec.SuggestedDuration)
}

func lowProductivityStore() *fakeSessionStore {
	weak := completedAt(date(2026, 10, 20), models.NewClockTime(19, 0), 600, 1)
	weak.ModuleID = uuid.MustParse(databasesID)
	weak.ModuleName = "Databases"
	return newFakeSessionStore(
		completedAt(date(2026, 10, 19), models.NewClockTime(9, 0), 600, 3),
		weak,
	)
}

func TestBuildRecommendations_TipsFollowSuggestions(t *testing.T) {
	rec, drafts := buildRecommendations(lowProductivityStore().mustList(t), 60)

	require.Len(t, drafts, len(rec.Suggestions))
	categories := make([]models.TipCategory, 0, len(drafts))
	for i, d := range drafts {
		assert.Equal(t, rec.Suggestions[i], d.message)
		categories = append(categories, d.category)
	}
	assert.Equal(t, []models.TipCategory{models.TipModule, models.TipTimeOfDay, models.TipDuration}, categories)
	assert.Equal(t, 45, drafts[2].duration)
}

func TestInsightService_TipsAreStoredOnce(t *testing.T) {
	tips := newFakeTipStore()
	svc := NewInsightService(lowProductivityStore(), &fakePreferenceStore{}, tips)
	svc.now = fixedClock(time.Date(2026, 10, 21, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	first, err := svc.Tips(ctx, testUserID)
	require.NoError(t, err)
	require.Len(t, first, 3)
	for _, tip := range first {
		assert.Equal(t, models.TipPending, tip.Status)
		assert.Equal(t, testUserID, tip.UserID)
	}

	again, err := svc.Tips(ctx, testUserID)
	require.NoError(t, err)
	assert.Len(t, again, 3)
	assert.Len(t, tips.byID, 3, "the same suggestions are not stored twice")
}

func TestInsightService_ResolvedTipsAreNotOfferedAgain(t *testing.T) {
	tips := newFakeTipStore()
	svc := NewInsightService(lowProductivityStore(), &fakePreferenceStore{}, tips)
	ctx := context.Background()

	list, err := svc.Tips(ctx, testUserID)
	require.NoError(t, err)
	var module *models.AITip
	for _, tip := range list {
		if tip.Category == models.TipModule {
			module = tip
		}
	}
	require.NotNil(t, module)

	rejected, err := svc.RejectTip(ctx, testUserID, module.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TipRejected, rejected.Status)
	require.NotNil(t, rejected.ResolvedAt)

	list, err = svc.Tips(ctx, testUserID)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	for _, tip := range list {
		assert.NotEqual(t, module.ID, tip.ID)
	}
}

func TestInsightService_AcceptDurationTipUpdatesPreferences(t *testing.T) {
	prefs := &fakePreferenceStore{}
	svc := NewInsightService(lowProductivityStore(), prefs, newFakeTipStore())
	ctx := context.Background()

	list, err := svc.Tips(ctx, testUserID)
	require.NoError(t, err)
	var duration *models.AITip
	for _, tip := range list {
		if tip.Category == models.TipDuration {
			duration = tip
		}
	}
	require.NotNil(t, duration)

	accepted, err := svc.AcceptTip(ctx, testUserID, duration.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TipAccepted, accepted.Status)
	require.Contains(t, prefs.byUser, testUserID)
	assert.Equal(t, 45, prefs.byUser[testUserID].SessionDuration)
}

func TestInsightService_ResolveTipErrors(t *testing.T) {
	pending := &models.AITip{ID: uuid.New(), UserID: testUserID, Category: models.TipModule, Message: "a", Status: models.TipPending}
	accepted := &models.AITip{ID: uuid.New(), UserID: testUserID, Category: models.TipModule, Message: "b", Status: models.TipAccepted}
	foreign := &models.AITip{ID: uuid.New(), UserID: otherUserID, Category: models.TipModule, Message: "c", Status: models.TipPending}
	svc := NewInsightService(newFakeSessionStore(), &fakePreferenceStore{}, newFakeTipStore(pending, accepted, foreign))
	ctx := context.Background()

	_, err := svc.AcceptTip(ctx, testUserID, uuid.New())
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf, "unknown tip")

	_, err = svc.RejectTip(ctx, testUserID, foreign.ID)
	assert.ErrorAs(t, err, &nf, "another user's tip")

	_, err = svc.RejectTip(ctx, testUserID, accepted.ID)
	var conflict *ConflictError
	assert.ErrorAs(t, err, &conflict)

	_, err = svc.AcceptTip(ctx, testUserID, pending.ID)
	require.NoError(t, err)
	_, err = svc.RejectTip(ctx, testUserID, pending.ID)
	assert.ErrorAs(t, err, &conflict, "a tip resolves once")
}
