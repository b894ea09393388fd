package models

import (
	"time"

	"github.com/google/uuid"
)

type SessionStatus string

const (
	SessionScheduled   SessionStatus = "scheduled"
	SessionInProgress  SessionStatus = "in_progress"
	SessionCompleted   SessionStatus = "completed"
	SessionMissed      SessionStatus = "missed"
	SessionRescheduled SessionStatus = "rescheduled"
)

var sessionTransitions = map[SessionStatus][]SessionStatus{
	SessionScheduled:  {SessionInProgress, SessionCompleted, SessionMissed, SessionRescheduled},
	SessionInProgress: {SessionCompleted},
	SessionCompleted:  {SessionRescheduled},
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	for _, allowed := range sessionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s SessionStatus) Valid() bool {
	switch s {
	case SessionScheduled, SessionInProgress, SessionCompleted, SessionMissed, SessionRescheduled:
		return true
	}
	return false
}

type SessionFeedback struct {
	Productivity int      `json:"productivity,omitempty" validate:"omitempty,min=1,max=5"`
	Difficulty   int      `json:"difficulty,omitempty" validate:"omitempty,min=1,max=5"`
	Notes        string   `json:"notes,omitempty" validate:"max=2000"`
	Topics       []string `json:"topics,omitempty" validate:"max=20,dive,max=100"`
}

type StudySession struct {
	ID              uuid.UUID        `json:"id"`
	UserID          uuid.UUID        `json:"user_id"`
	ModuleID        uuid.UUID        `json:"module_id"`
	ModuleName      string           `json:"module_name"`
	Title           string           `json:"title"`
	Date            time.Time        `json:"date"`
	StartTime       ClockTime        `json:"start_time"`
	EndTime         ClockTime        `json:"end_time"`
	Status          SessionStatus    `json:"status"`
	Feedback        *SessionFeedback `json:"feedback,omitempty"`
	PointsEarned    int              `json:"points_earned"`
	BatchID         uuid.UUID        `json:"batch_id"`
	IsAIGenerated   bool             `json:"is_ai_generated"`
	RescheduledFrom *uuid.UUID       `json:"rescheduled_from,omitempty"`
	RescheduledTo   *uuid.UUID       `json:"rescheduled_to,omitempty"`
	StartedAt       *time.Time       `json:"started_at,omitempty"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty"`
	Version         int              `json:"version"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

func (s *StudySession) DurationMinutes() int {
	return int(s.EndTime - s.StartTime)
}

func (s *StudySession) EndsAt(loc *time.Location) time.Time {
	return s.EndTime.On(s.Date, loc)
}

// Unresolved sessions are still waiting on a start, completion or sweep.
func (s *StudySession) Unresolved() bool {
	return s.Status == SessionScheduled || s.Status == SessionInProgress
}

// SessionFilter narrows list queries; zero values mean "any".
type SessionFilter struct {
	Status    SessionStatus
	StartDate *time.Time
	EndDate   *time.Time
	ModuleID  *uuid.UUID
	Limit     int
}
