package scheduling

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"studyplanner-backend/internal/models"
)

// Allocation is the number of sessions a module receives in one run.
type Allocation struct {
	Module *models.Module
	Weight float64
	Count  int
}

type AllocationInput struct {
	UserID             uuid.UUID
	Slots              SlotMap
	Modules            []*models.Module
	MinSessionsPerWeek int
	// ReferenceDate anchors "next occurrence of weekday"; usually today in the user's zone.
	ReferenceDate time.Time
	BatchID       uuid.UUID
}

// PrioritizeModules keeps active modules with a positive weight, ordered by weight
// descending and then by id.
func PrioritizeModules(modules []*models.Module) []*models.Module {
	var out []*models.Module
	for _, m := range modules {
		if m != nil && m.IsActive() && m.Weight() > 0 {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		wi, wj := out[i].Weight(), out[j].Weight()
		if wi != wj {
			return wi > wj
		}
		return lessID(out[i].ID, out[j].ID)
	})
	return out
}

// AllocateCounts splits total sessions across modules by weight share. Each module starts
// with max(1, floor(share*total)). Rounding overshoot is taken back one at a time from the
// largest allocation (lowest id on ties). Undershoot is handed out by largest fractional
// remainder, in priority order on ties.
func AllocateCounts(modules []*models.Module, total int) []Allocation {
	prioritized := PrioritizeModules(modules)
	if len(prioritized) == 0 || total <= 0 {
		return nil
	}

	sumWeights := 0.0
	for _, m := range prioritized {
		sumWeights += m.Weight()
	}

	allocs := make([]Allocation, len(prioritized))
	remainders := make([]float64, len(prioritized))
	sum := 0
	for i, m := range prioritized {
		exact := m.Weight() / sumWeights * float64(total)
		count := max(1, int(math.Floor(exact)))
		allocs[i] = Allocation{Module: m, Weight: m.Weight(), Count: count}
		remainders[i] = exact - math.Floor(exact)
		sum += count
	}

	for sum > total {
		idx := largestAllocation(allocs)
		allocs[idx].Count--
		sum--
	}

	for sum < total {
		best := -1
		for i := range allocs {
			if best == -1 || remainders[i] > remainders[best] {
				best = i
			}
		}
		allocs[best].Count++
		remainders[best] = -1
		sum++
		if allRemaindersSpent(remainders) {
			for i := range remainders {
				remainders[i] = 0
			}
		}
	}

	return allocs
}

func largestAllocation(allocs []Allocation) int {
	idx := 0
	for i := 1; i < len(allocs); i++ {
		if allocs[i].Count > allocs[idx].Count ||
			(allocs[i].Count == allocs[idx].Count && lessID(allocs[i].Module.ID, allocs[idx].Module.ID)) {
			idx = i
		}
	}
	return idx
}

func allRemaindersSpent(r []float64) bool {
	for _, v := range r {
		if v >= 0 {
			return false
		}
	}
	return true
}

// Allocate pairs modules with filtered slots and returns the session drafts of one batch.
// Slots are consumed strictly front-to-back; modules take turns in priority order until each
// has used its allocation.
func Allocate(in AllocationInput) []*models.StudySession {
	slots := in.Slots.Flatten()
	total := min(in.MinSessionsPerWeek, len(slots))

	allocs := AllocateCounts(in.Modules, total)
	if len(allocs) == 0 {
		return nil
	}

	order := interleave(allocs)
	batchID := in.BatchID
	if batchID == uuid.Nil {
		batchID = uuid.New()
	}

	sessions := make([]*models.StudySession, 0, len(order))
	for i, module := range order {
		slot := slots[i]
		sessions = append(sessions, &models.StudySession{
			ID:         uuid.New(),
			UserID:     in.UserID,
			ModuleID:   module.ID,
			ModuleName: module.Name,
			Title:      fmt.Sprintf("Study: %s", module.Name),
			Date:       NextOccurrence(in.ReferenceDate, slot.Weekday),
			StartTime:  slot.Start,
			EndTime:    slot.End,
			Status:     models.SessionScheduled,
			BatchID:    batchID,
			Version:    1,
		})
	}

	return sessions
}

func interleave(allocs []Allocation) []*models.Module {
	remaining := make([]int, len(allocs))
	total := 0
	for i, a := range allocs {
		remaining[i] = a.Count
		total += a.Count
	}

	order := make([]*models.Module, 0, total)
	for len(order) < total {
		for i, a := range allocs {
			if remaining[i] > 0 {
				order = append(order, a.Module)
				remaining[i]--
			}
		}
	}
	return order
}

// NextOccurrence returns the next date strictly after ref that falls on day. When ref is
// already that weekday the result is a week later.
func NextOccurrence(ref time.Time, day time.Weekday) time.Time {
	base := models.DateOnly(ref)
	diff := (int(day) - int(base.Weekday()) + 7) % 7
	if diff == 0 {
		diff = 7
	}
	return base.AddDate(0, 0, diff)
}

func lessID(a, b uuid.UUID) bool {
	return bytes.Compare(a[:], b[:]) < 0
}
