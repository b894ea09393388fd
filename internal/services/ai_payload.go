package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"studyplanner-backend/internal/models"
)

var (
	errUnparseablePayload = errors.New("no schedule payload found in response")
	errInvalidPayload     = errors.New("schedule payload failed validation")
)

// ScheduleContext is everything the AI collaborator sees for one generation run. EndDate is
// exclusive. Now and Location bound entries dated today.
type ScheduleContext struct {
	UserID      uuid.UUID
	Preferences *models.StudyPreference
	Modules     []*models.Module
	Busy        []models.BusyEvent
	History     []*models.StudySession
	StartDate   time.Time
	EndDate     time.Time
	Now         time.Time
	Location    *time.Location
}

type aiSessionEntry struct {
	ModuleID  string `json:"module_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Title     string `json:"title"`
}

// extractPayload finds the session array in free-form model output. It tries the whole text,
// then the first fenced block, then the outermost brackets. Objects wrapping the array under
// "sessions" or "study_sessions" are accepted.
func extractPayload(raw string) ([]aiSessionEntry, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, errUnparseablePayload
	}

	candidates := []string{text}
	if fenced, ok := fencedBlock(text); ok {
		candidates = append(candidates, fenced)
	}
	if start, end := strings.Index(text, "["), strings.LastIndex(text, "]"); start >= 0 && end > start {
		candidates = append(candidates, text[start:end+1])
	}

	for _, c := range candidates {
		if entries, ok := decodeEntries(c); ok {
			return entries, nil
		}
	}
	return nil, errUnparseablePayload
}

func fencedBlock(text string) (string, bool) {
	open := strings.Index(text, "```")
	if open < 0 {
		return "", false
	}
	rest := text[open+3:]
	// Drop the info string ("json") on the opening fence line.
	if nl := strings.Index(rest, "\n"); nl >= 0 {
		rest = rest[nl+1:]
	}
	closing := strings.Index(rest, "```")
	if closing < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:closing]), true
}

func decodeEntries(s string) ([]aiSessionEntry, bool) {
	var entries []aiSessionEntry
	if err := json.Unmarshal([]byte(s), &entries); err == nil {
		return entries, true
	}

	var wrapped struct {
		Sessions      []aiSessionEntry `json:"sessions"`
		StudySessions []aiSessionEntry `json:"study_sessions"`
	}
	if err := json.Unmarshal([]byte(s), &wrapped); err != nil {
		return nil, false
	}
	if wrapped.StudySessions != nil {
		return wrapped.StudySessions, true
	}
	if wrapped.Sessions != nil {
		return wrapped.Sessions, true
	}
	return nil, false
}

// buildAISessions validates every entry against the run's context and converts them into
// drafts. A single bad entry rejects the whole payload.
func buildAISessions(entries []aiSessionEntry, sc ScheduleContext, batchID uuid.UUID) ([]*models.StudySession, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: empty schedule", errInvalidPayload)
	}

	modules := make(map[uuid.UUID]*models.Module, len(sc.Modules))
	for _, m := range sc.Modules {
		modules[m.ID] = m
	}

	windowStart := models.DateOnly(sc.StartDate)
	windowEnd := models.DateOnly(sc.EndDate)
	loc := sc.Location
	if loc == nil {
		loc = time.UTC
	}

	sessions := make([]*models.StudySession, 0, len(entries))
	for i, e := range entries {
		moduleID, err := uuid.Parse(strings.TrimSpace(e.ModuleID))
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: bad module_id %q", errInvalidPayload, i, e.ModuleID)
		}
		module, ok := modules[moduleID]
		if !ok {
			return nil, fmt.Errorf("%w: entry %d: unknown module %s", errInvalidPayload, i, moduleID)
		}

		date, err := time.Parse(models.DateLayout, strings.TrimSpace(e.Date))
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: bad date %q", errInvalidPayload, i, e.Date)
		}
		if date.Before(windowStart) || !date.Before(windowEnd) {
			return nil, fmt.Errorf("%w: entry %d: date %s outside window", errInvalidPayload, i, e.Date)
		}

		start, err := models.ParseClock(strings.TrimSpace(e.StartTime))
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: bad start_time: %v", errInvalidPayload, i, err)
		}
		end, err := models.ParseClock(strings.TrimSpace(e.EndTime))
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: bad end_time: %v", errInvalidPayload, i, err)
		}
		if end <= start {
			return nil, fmt.Errorf("%w: entry %d: end_time must be after start_time", errInvalidPayload, i)
		}
		if !sc.Now.IsZero() && !end.On(date, loc).After(sc.Now) {
			return nil, fmt.Errorf("%w: entry %d: %s %s has already ended", errInvalidPayload, i, e.Date, end)
		}

		title := strings.TrimSpace(e.Title)
		if title == "" {
			title = fmt.Sprintf("Study: %s", module.Name)
		}

		sessions = append(sessions, &models.StudySession{
			ID:            uuid.New(),
			UserID:        sc.UserID,
			ModuleID:      module.ID,
			ModuleName:    module.Name,
			Title:         title,
			Date:          date,
			StartTime:     start,
			EndTime:       end,
			Status:        models.SessionScheduled,
			BatchID:       batchID,
			IsAIGenerated: true,
			Version:       1,
		})
	}

	var excluded []models.ExcludedTime
	if sc.Preferences != nil {
		excluded = sc.Preferences.ExcludedTimes
	}
	if err := checkConflicts(sessions, sc.Busy, excluded); err != nil {
		return nil, err
	}
	return sessions, nil
}

// checkConflicts rejects drafts that overlap each other, a busy event on the same date, or a
// recurring excluded range on the same weekday.
func checkConflicts(sessions []*models.StudySession, busy []models.BusyEvent, excluded []models.ExcludedTime) error {
	byDate := map[string][]*models.StudySession{}
	for _, s := range sessions {
		key := s.Date.Format(models.DateLayout)
		for _, other := range byDate[key] {
			if models.Overlaps(s.StartTime, s.EndTime, other.StartTime, other.EndTime) {
				return fmt.Errorf("%w: sessions overlap on %s", errInvalidPayload, key)
			}
		}
		byDate[key] = append(byDate[key], s)
	}

	for _, ev := range busy {
		key := models.DateOnly(ev.Date).Format(models.DateLayout)
		for _, s := range byDate[key] {
			if ev.BlocksWholeDay() || models.Overlaps(s.StartTime, s.EndTime, *ev.Start, *ev.End) {
				return fmt.Errorf("%w: session on %s conflicts with a calendar event", errInvalidPayload, key)
			}
		}
	}

	for _, ex := range excluded {
		for _, s := range sessions {
			if s.Date.Weekday() != ex.Weekday {
				continue
			}
			if ex.AllDay || models.Overlaps(s.StartTime, s.EndTime, ex.Start, ex.End) {
				return fmt.Errorf("%w: session on %s overlaps excluded time on %s",
					errInvalidPayload, s.Date.Format(models.DateLayout), ex.Weekday)
			}
		}
	}
	return nil
}
