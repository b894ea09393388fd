package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"studyplanner-backend/internal/middleware"
	"studyplanner-backend/internal/models"
)

type ScheduleService interface {
	Generate(ctx context.Context, userID uuid.UUID, req models.GenerateScheduleRequest) (*models.ScheduleBatch, error)
	List(ctx context.Context, userID uuid.UUID, filter models.SessionFilter) ([]*models.StudySession, error)
	Preferences(ctx context.Context, userID uuid.UUID) (*models.StudyPreference, error)
	SavePreferences(ctx context.Context, userID uuid.UUID, pref *models.StudyPreference) (*models.StudyPreference, error)
}

type ScheduleHandler struct {
	schedule ScheduleService
}

func NewScheduleHandler(schedule ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{schedule: schedule}
}

func (h *ScheduleHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	pref, err := h.schedule.Preferences(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"preferences": pref})
}

func (h *ScheduleHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var pref models.StudyPreference
	if err := json.NewDecoder(r.Body).Decode(&pref); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	saved, err := h.schedule.SavePreferences(r.Context(), userID, &pref)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"preferences": saved})
}

func (h *ScheduleHandler) Generate(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var body struct {
		StartDate      string `json:"start_date"`
		DaysAhead      int    `json:"days_ahead"`
		SaveToCalendar bool   `json:"save_to_calendar"`
	}
	if _, err := decodeOptionalJSON(r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	req := models.GenerateScheduleRequest{DaysAhead: body.DaysAhead, SaveToCalendar: body.SaveToCalendar}
	if body.StartDate != "" {
		start, err := parseDate(body.StartDate)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
				map[string]string{"start_date": "must be a date in YYYY-MM-DD format"}, r))
			return
		}
		req.StartDate = &start
	}

	batch, err := h.schedule.Generate(r.Context(), userID, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, batch)
}

func (h *ScheduleHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	q := r.URL.Query()

	filter := models.SessionFilter{Status: models.SessionStatus(q.Get("status"))}
	fields := map[string]string{}

	if v := q.Get("start_date"); v != "" {
		if d, err := parseDate(v); err == nil {
			filter.StartDate = &d
		} else {
			fields["start_date"] = "must be a date in YYYY-MM-DD format"
		}
	}
	if v := q.Get("end_date"); v != "" {
		if d, err := parseDate(v); err == nil {
			filter.EndDate = &d
		} else {
			fields["end_date"] = "must be a date in YYYY-MM-DD format"
		}
	}
	if v := q.Get("module_id"); v != "" {
		if id, err := uuid.Parse(v); err == nil {
			filter.ModuleID = &id
		} else {
			fields["module_id"] = "must be a valid id"
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			filter.Limit = n
		} else {
			fields["limit"] = "must be between 1 and 500"
		}
	}
	if len(fields) > 0 {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", fields, r))
		return
	}

	sessions, err := h.schedule.List(r.Context(), userID, filter)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"total":    len(sessions),
	})
}
