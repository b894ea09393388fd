package models

import (
	"fmt"

	"github.com/google/uuid"
)

// WebSocket message types
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

const (
	WSSessionUpdated    = "session_updated"
	WSScheduleGenerated = "schedule_generated"
	WSProgressUpdated   = "progress_updated"
)

// UserUpdatesChannel is the Redis pub/sub channel carrying one user's live updates.
func UserUpdatesChannel(userID uuid.UUID) string {
	return fmt.Sprintf("user_updates:%s", userID)
}

type SessionUpdate struct {
	SessionID      uuid.UUID     `json:"session_id"`
	Status         SessionStatus `json:"status"`
	PreviousStatus SessionStatus `json:"previous_status"`
	PointsEarned   int           `json:"points_earned"`
	Automatic      bool          `json:"automatic"`
}

type ScheduleGenerated struct {
	BatchID     uuid.UUID `json:"batch_id"`
	Sessions    int       `json:"sessions"`
	AIGenerated bool      `json:"ai_generated"`
}

type ProgressUpdate struct {
	XP                    int      `json:"xp"`
	Level                 int      `json:"level"`
	CurrentStreak         int      `json:"current_streak"`
	CompletedAchievements []string `json:"completed_achievements,omitempty"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
