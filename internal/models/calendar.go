package models

import (
	"time"

	"github.com/google/uuid"
)

const CalendarEventTypeStudySession = "study_session"

// BusyEvent is a calendar entry that blocks study time.
type BusyEvent struct {
	Date   time.Time  `json:"date"`
	Start  *ClockTime `json:"start_time,omitempty"`
	End    *ClockTime `json:"end_time,omitempty"`
	AllDay bool       `json:"all_day"`
}

// BlocksWholeDay is true for all-day events and for events missing either bound.
func (e BusyEvent) BlocksWholeDay() bool {
	return e.AllDay || e.Start == nil || e.End == nil
}

type CalendarEvent struct {
	ID              uuid.UUID  `json:"id"`
	UserID          uuid.UUID  `json:"user_id"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	Date            time.Time  `json:"date"`
	Start           *ClockTime `json:"start_time,omitempty"`
	End             *ClockTime `json:"end_time,omitempty"`
	AllDay          bool       `json:"all_day"`
	EventType       string     `json:"event_type"`
	LinkedSessionID *uuid.UUID `json:"linked_session_id,omitempty"`
	LinkedModuleID  *uuid.UUID `json:"linked_module_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// AsBusyEvent projects a calendar entry onto the fields conflict filtering needs.
func (e *CalendarEvent) AsBusyEvent() BusyEvent {
	return BusyEvent{Date: e.Date, Start: e.Start, End: e.End, AllDay: e.AllDay}
}
