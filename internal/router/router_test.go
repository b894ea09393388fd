package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"studyplanner-backend/internal/handlers"
	"studyplanner-backend/internal/metrics"
	"studyplanner-backend/internal/middleware"
	"studyplanner-backend/internal/models"
)

type streakOnly struct{}

func (streakOnly) Streak(_ context.Context, userID uuid.UUID) (*models.StudyStreak, error) {
	return &models.StudyStreak{UserID: userID, CurrentStreak: 2}, nil
}

func (streakOnly) Stats(_ context.Context, userID uuid.UUID) (*models.StudyStats, error) {
	return &models.StudyStats{UserID: userID}, nil
}

func (streakOnly) Achievements(context.Context, uuid.UUID, models.AchievementCategory) ([]*models.Achievement, error) {
	return nil, nil
}

func (streakOnly) Analytics(_ context.Context, userID uuid.UUID) (*models.StudyAnalytics, error) {
	return &models.StudyAnalytics{Stats: &models.StudyStats{UserID: userID}}, nil
}

func newTestRouter(t *testing.T) (http.Handler, *middleware.JWTAuth) {
	t.Helper()
	reg := prometheus.NewRegistry()
	auth := middleware.NewJWTAuth("router-secret")
	limiter := middleware.NewRateLimiter(5, time.Minute)
	t.Cleanup(limiter.Stop)

	return New(Deps{
		JWTAuth:         auth,
		Schedule:        handlers.NewScheduleHandler(nil),
		Sessions:        handlers.NewStudySessionHandler(nil),
		Progress:        handlers.NewProgressHandler(streakOnly{}, nil),
		Metrics:         metrics.New(reg),
		Gatherer:        reg,
		GenerateLimiter: limiter,
		FrontendURL:     "http://localhost:5173",
		Log:             zap.NewNop(),
	}), auth
}

func TestRouter_PublicRoutes(t *testing.T) {
	h, _ := newTestRouter(t)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "studyplanner_http_requests_total")
}

func TestRouter_StudyRoutesRequireAuth(t *testing.T) {
	h, auth := newTestRouter(t)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/study/streak", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	token, err := auth.GenerateAccessToken(uuid.New(), time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/study/streak", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"current_streak":2`)
}

func TestRouter_AnalyticsAndTipRoutes(t *testing.T) {
	h, auth := newTestRouter(t)

	for _, target := range []string{"/api/v1/study/tips", "/api/v1/study/analytics"} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code, target)
	}

	token, err := auth.GenerateAccessToken(uuid.New(), time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/study/analytics", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"analytics"`)
}
