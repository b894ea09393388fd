package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	ModuleStatusActive   = "active"
	ModuleStatusInactive = "inactive"

	DefaultModuleCredits = 15
)

// Module is owned by the modules feature; the study engine only reads it.
type Module struct {
	ID              uuid.UUID   `json:"id"`
	UserID          uuid.UUID   `json:"user_id"`
	Name            string      `json:"name"`
	Code            string      `json:"code,omitempty"`
	Credits         *int        `json:"credits,omitempty"`
	Status          string      `json:"status"`
	Difficulty      *int        `json:"difficulty,omitempty"`
	AssessmentDates []time.Time `json:"assessment_dates,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
}

func (m *Module) IsActive() bool {
	return m.Status == ModuleStatusActive
}

// EffectiveCredits falls back to DefaultModuleCredits when credits are unset.
func (m *Module) EffectiveCredits() int {
	if m.Credits == nil {
		return DefaultModuleCredits
	}
	return *m.Credits
}

func (m *Module) Weight() float64 {
	return float64(m.EffectiveCredits()) / float64(DefaultModuleCredits)
}
