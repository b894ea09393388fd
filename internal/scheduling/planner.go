// Package scheduling holds the deterministic schedule pipeline: slot planning, availability
// filtering and weighted module allocation. Nothing here touches storage or the network.
package scheduling

import (
	"time"

	"studyplanner-backend/internal/models"
)

// SlotMap maps a weekday to its slots in chronological order.
type SlotMap map[time.Weekday][]models.TimeSlot

// WeekOrder is the order weekdays are flattened in.
var WeekOrder = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday,
}

// Count returns the total number of slots across all weekdays.
func (m SlotMap) Count() int {
	n := 0
	for _, slots := range m {
		n += len(slots)
	}
	return n
}

// Flatten lists every slot in week order, then chronologically within a day.
func (m SlotMap) Flatten() []models.TimeSlot {
	out := make([]models.TimeSlot, 0, m.Count())
	for _, day := range WeekOrder {
		out = append(out, m[day]...)
	}
	return out
}

// PlanSlots builds candidate slots for every preferred weekday and day-part. Slots are exactly
// SessionDuration long and advance by SessionDuration+BreakDuration; generation inside a
// day-part stops once the next slot would run past the part's end.
func PlanSlots(pref *models.StudyPreference) SlotMap {
	out := make(SlotMap)
	if pref == nil || pref.SessionDuration <= 0 {
		return out
	}

	duration := models.ClockTime(pref.SessionDuration)
	step := duration + models.ClockTime(max(pref.BreakDuration, 0))

	wantPart := make(map[models.DayPart]bool, len(pref.PreferredDayParts))
	for _, p := range pref.PreferredDayParts {
		wantPart[p] = true
	}

	seenDay := make(map[time.Weekday]bool, len(pref.PreferredDays))
	for _, day := range pref.PreferredDays {
		if seenDay[day] || day < time.Sunday || day > time.Saturday {
			continue
		}
		seenDay[day] = true

		var slots []models.TimeSlot
		// Day-parts are iterated in chronological order so a day's slots stay sorted.
		for _, part := range models.DayParts {
			if !wantPart[part] {
				continue
			}
			partStart, partEnd, _ := part.Bounds()
			for start := partStart; start+duration <= partEnd; start += step {
				slots = append(slots, models.TimeSlot{
					Weekday: day,
					Start:   start,
					End:     start + duration,
					DayPart: part,
				})
			}
		}
		if len(slots) > 0 {
			out[day] = slots
		}
	}

	return out
}
