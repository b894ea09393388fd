package models

import (
	"time"

	"github.com/google/uuid"
)

type DayPart string

const (
	DayPartMorning   DayPart = "morning"
	DayPartAfternoon DayPart = "afternoon"
	DayPartEvening   DayPart = "evening"
	DayPartNight     DayPart = "night"
)

// DayParts in chronological order.
var DayParts = []DayPart{DayPartMorning, DayPartAfternoon, DayPartEvening, DayPartNight}

var dayPartBounds = map[DayPart][2]ClockTime{
	DayPartMorning:   {NewClockTime(8, 0), NewClockTime(12, 0)},
	DayPartAfternoon: {NewClockTime(12, 0), NewClockTime(17, 0)},
	DayPartEvening:   {NewClockTime(17, 0), NewClockTime(21, 0)},
	DayPartNight:     {NewClockTime(21, 0), EndOfDay},
}

// Bounds returns the fixed window of the day-part.
func (p DayPart) Bounds() (start, end ClockTime, ok bool) {
	b, ok := dayPartBounds[p]
	return b[0], b[1], ok
}

// DayPartOf buckets a start time. Early hours before the morning window count as morning,
// hours after midnight count as night.
func DayPartOf(t ClockTime) DayPart {
	switch {
	case t < NewClockTime(5, 0):
		return DayPartNight
	case t < NewClockTime(12, 0):
		return DayPartMorning
	case t < NewClockTime(17, 0):
		return DayPartAfternoon
	case t < NewClockTime(21, 0):
		return DayPartEvening
	default:
		return DayPartNight
	}
}

type StudyPreference struct {
	UserID             uuid.UUID      `json:"user_id"`
	PreferredDays      []time.Weekday `json:"preferred_days" validate:"required,min=1,max=7,dive,min=0,max=6"`
	PreferredDayParts  []DayPart      `json:"preferred_day_parts" validate:"required,min=1,max=4,dive,oneof=morning afternoon evening night"`
	SessionDuration    int            `json:"session_duration" validate:"min=15,max=240"`
	BreakDuration      int            `json:"break_duration" validate:"min=0,max=120"`
	MinSessionsPerWeek int            `json:"min_sessions_per_week" validate:"min=1,max=50"`
	ExcludedTimes      []ExcludedTime `json:"excluded_times" validate:"max=50,dive"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// ExcludedTime recurs every week on its weekday.
type ExcludedTime struct {
	Weekday time.Weekday `json:"weekday" validate:"min=0,max=6"`
	Start   ClockTime    `json:"start"`
	End     ClockTime    `json:"end"`
	AllDay  bool         `json:"all_day"`
	Label   string       `json:"label,omitempty" validate:"max=100"`
}

// DefaultStudyPreference is used when a user has not saved preferences yet.
func DefaultStudyPreference(userID uuid.UUID) *StudyPreference {
	return &StudyPreference{
		UserID:             userID,
		PreferredDays:      []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		PreferredDayParts:  []DayPart{DayPartMorning, DayPartAfternoon},
		SessionDuration:    60,
		BreakDuration:      15,
		MinSessionsPerWeek: 5,
	}
}

// TimeSlot is a candidate study interval before a module is assigned to it.
type TimeSlot struct {
	Weekday time.Weekday `json:"weekday"`
	Start   ClockTime    `json:"start"`
	End     ClockTime    `json:"end"`
	DayPart DayPart      `json:"day_part"`
}

func (s TimeSlot) Duration() int {
	return int(s.End - s.Start)
}
