package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"studyplanner-backend/internal/middleware"
	"studyplanner-backend/internal/models"
)

type ProgressService interface {
	Streak(ctx context.Context, userID uuid.UUID) (*models.StudyStreak, error)
	Stats(ctx context.Context, userID uuid.UUID) (*models.StudyStats, error)
	Achievements(ctx context.Context, userID uuid.UUID, category models.AchievementCategory) ([]*models.Achievement, error)
	Analytics(ctx context.Context, userID uuid.UUID) (*models.StudyAnalytics, error)
}

type InsightProvider interface {
	Recommendations(ctx context.Context, userID uuid.UUID) (*models.Recommendations, error)
	Patterns(ctx context.Context, userID uuid.UUID) ([]models.ProductivityPattern, error)
	Tips(ctx context.Context, userID uuid.UUID) ([]*models.AITip, error)
	AcceptTip(ctx context.Context, userID, tipID uuid.UUID) (*models.AITip, error)
	RejectTip(ctx context.Context, userID, tipID uuid.UUID) (*models.AITip, error)
}

type ProgressHandler struct {
	progress ProgressService
	insights InsightProvider
}

func NewProgressHandler(progress ProgressService, insights InsightProvider) *ProgressHandler {
	return &ProgressHandler{progress: progress, insights: insights}
}

func (h *ProgressHandler) Streak(w http.ResponseWriter, r *http.Request) {
	streak, err := h.progress.Streak(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"streak": streak})
}

func (h *ProgressHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.progress.Stats(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"stats": stats})
}

type achievementView struct {
	*models.Achievement
	ProgressPercent int `json:"progress_percent"`
}

func (h *ProgressHandler) Achievements(w http.ResponseWriter, r *http.Request) {
	category := models.AchievementCategory(r.URL.Query().Get("category"))

	list, err := h.progress.Achievements(r.Context(), middleware.GetUserID(r.Context()), category)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	views := make([]achievementView, 0, len(list))
	completed := 0
	for _, a := range list {
		views = append(views, achievementView{Achievement: a, ProgressPercent: a.ProgressPercent()})
		if a.Status == models.AchievementCompleted {
			completed++
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"achievements": views,
		"completed":    completed,
		"total":        len(views),
	})
}

func (h *ProgressHandler) Recommendations(w http.ResponseWriter, r *http.Request) {
	rec, err := h.insights.Recommendations(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"recommendations": rec})
}

func (h *ProgressHandler) Patterns(w http.ResponseWriter, r *http.Request) {
	patterns, err := h.insights.Patterns(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"patterns": patterns})
}

func (h *ProgressHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	analytics, err := h.progress.Analytics(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"analytics": analytics})
}

// ──── Tips ────

func (h *ProgressHandler) Tips(w http.ResponseWriter, r *http.Request) {
	tips, err := h.insights.Tips(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tips": tips})
}

func (h *ProgressHandler) AcceptTip(w http.ResponseWriter, r *http.Request) {
	h.resolveTip(w, r, h.insights.AcceptTip)
}

func (h *ProgressHandler) RejectTip(w http.ResponseWriter, r *http.Request) {
	h.resolveTip(w, r, h.insights.RejectTip)
}

func (h *ProgressHandler) resolveTip(w http.ResponseWriter, r *http.Request,
	resolve func(ctx context.Context, userID, tipID uuid.UUID) (*models.AITip, error)) {
	tipID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid tip ID", r))
		return
	}

	tip, err := resolve(r.Context(), middleware.GetUserID(r.Context()), tipID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tip": tip})
}
