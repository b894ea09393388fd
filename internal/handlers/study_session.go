package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"studyplanner-backend/internal/middleware"
	"studyplanner-backend/internal/models"
	"studyplanner-backend/internal/services"
)

type SessionService interface {
	Get(ctx context.Context, userID, sessionID uuid.UUID) (*models.StudySession, error)
	Start(ctx context.Context, userID, sessionID uuid.UUID) (*models.StudySession, error)
	Complete(ctx context.Context, userID, sessionID uuid.UUID, feedback *models.SessionFeedback) (*models.StudySession, error)
	Reschedule(ctx context.Context, userID, sessionID uuid.UUID, in services.RescheduleInput) (*models.StudySession, error)
}

type StudySessionHandler struct {
	sessions SessionService
}

func NewStudySessionHandler(sessions SessionService) *StudySessionHandler {
	return &StudySessionHandler{sessions: sessions}
}

func sessionIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid session ID", r))
		return uuid.Nil, false
	}
	return sessionID, true
}

func (h *StudySessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}

	session, err := h.sessions.Get(r.Context(), userID, sessionID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"session": session})
}

func (h *StudySessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}

	session, err := h.sessions.Start(r.Context(), userID, sessionID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"session": session})
}

// Complete accepts optional feedback in the body.
func (h *StudySessionHandler) Complete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}

	var feedback models.SessionFeedback
	present, err := decodeOptionalJSON(r, &feedback)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	var fb *models.SessionFeedback
	if present {
		fb = &feedback
	}

	session, err := h.sessions.Complete(r.Context(), userID, sessionID, fb)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"session": session})
}

func (h *StudySessionHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}

	var req struct {
		Date      string            `json:"date"`
		StartTime *models.ClockTime `json:"start_time"`
		EndTime   *models.ClockTime `json:"end_time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	fields := map[string]string{}
	date, err := parseDate(req.Date)
	if err != nil {
		fields["date"] = "must be a date in YYYY-MM-DD format"
	}
	if req.StartTime == nil {
		fields["start_time"] = "is required"
	}
	if len(fields) > 0 {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", fields, r))
		return
	}

	session, err := h.sessions.Reschedule(r.Context(), userID, sessionID, services.RescheduleInput{
		Date:      date,
		StartTime: *req.StartTime,
		EndTime:   req.EndTime,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{"session": session})
}
