package scheduling

import (
	"time"

	"studyplanner-backend/internal/models"
)

type blockedRange struct {
	start, end models.ClockTime
	allDay     bool
}

// FilterAvailability drops every slot that overlaps a busy event or an excluded range on the
// same weekday. Busy events are matched by the weekday of their date; excluded ranges recur
// weekly. The input map is left untouched.
func FilterAvailability(slots SlotMap, events []models.BusyEvent, excluded []models.ExcludedTime) SlotMap {
	blocked := make(map[time.Weekday][]blockedRange)

	for _, ev := range events {
		day := ev.Date.Weekday()
		if ev.BlocksWholeDay() {
			blocked[day] = append(blocked[day], blockedRange{allDay: true})
			continue
		}
		blocked[day] = append(blocked[day], blockedRange{start: *ev.Start, end: *ev.End})
	}

	for _, ex := range excluded {
		blocked[ex.Weekday] = append(blocked[ex.Weekday], blockedRange{
			start:  ex.Start,
			end:    ex.End,
			allDay: ex.AllDay,
		})
	}

	out := make(SlotMap, len(slots))
	for day, daySlots := range slots {
		ranges := blocked[day]
		var kept []models.TimeSlot
		for _, slot := range daySlots {
			if !isBlocked(slot, ranges) {
				kept = append(kept, slot)
			}
		}
		if len(kept) > 0 {
			out[day] = kept
		}
	}

	return out
}

func isBlocked(slot models.TimeSlot, ranges []blockedRange) bool {
	for _, r := range ranges {
		if r.allDay || models.Overlaps(slot.Start, slot.End, r.start, r.end) {
			return true
		}
	}
	return false
}
