package models

import (
	"time"

	"github.com/google/uuid"
)

type TipCategory string

const (
	TipFeedback  TipCategory = "feedback"
	TipModule    TipCategory = "module"
	TipTimeOfDay TipCategory = "time_of_day"
	TipDuration  TipCategory = "duration"
)

type TipStatus string

const (
	TipPending  TipStatus = "pending"
	TipAccepted TipStatus = "accepted"
	TipRejected TipStatus = "rejected"
)

// AITip is a stored recommendation the user can accept or reject once.
type AITip struct {
	ID       uuid.UUID   `json:"id"`
	UserID   uuid.UUID   `json:"user_id"`
	Category TipCategory `json:"category"`
	Message  string      `json:"message"`
	Status   TipStatus   `json:"status"`

	// SuggestedDuration is set on duration tips and applied to the preferences on accept.
	SuggestedDuration int `json:"suggested_duration,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

type ModuleTime struct {
	ModuleID   uuid.UUID `json:"module_id"`
	ModuleName string    `json:"module_name"`
	Sessions   int       `json:"sessions"`
	Hours      float64   `json:"hours"`
	Share      float64   `json:"share"` // percent of all completed minutes
}

type TimelineDay struct {
	Date      string `json:"date"`
	Weekday   string `json:"weekday"`
	Sessions  int    `json:"sessions"`
	Completed int    `json:"completed"`
}

type StudyAnalytics struct {
	Stats                  *StudyStats           `json:"stats"`
	ModuleTimeDistribution []ModuleTime          `json:"module_time_distribution"`
	SessionsTimeline       []TimelineDay         `json:"sessions_timeline"`
	ProductivityPatterns   []ProductivityPattern `json:"productivity_patterns"`
}
