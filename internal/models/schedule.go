package models

import (
	"time"

	"github.com/google/uuid"
)

type GenerateScheduleRequest struct {
	StartDate      *time.Time
	DaysAhead      int
	SaveToCalendar bool
}

// ScheduleBatch is the outcome of one generation run. Degraded marks a run that could not
// gather its inputs or persist its result and therefore returned no sessions.
type ScheduleBatch struct {
	BatchID     uuid.UUID       `json:"batch_id"`
	Sessions    []*StudySession `json:"sessions"`
	AIGenerated bool            `json:"ai_generated"`
	Degraded    bool            `json:"degraded"`
	StartDate   string          `json:"start_date"`
	EndDate     string          `json:"end_date"`
}
