package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"studyplanner-backend/internal/models"
)

type CalendarRepo struct {
	pool *pgxpool.Pool
}

func NewCalendarRepo(pool *pgxpool.Pool) *CalendarRepo {
	return &CalendarRepo{pool: pool}
}

// ListBusyInRange returns the user's non-study events dated in [from, to).
func (r *CalendarRepo) ListBusyInRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]models.BusyEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT event_date, start_minute, end_minute, all_day
		FROM calendar_events
		WHERE user_id = $1 AND event_date >= $2 AND event_date < $3 AND event_type <> $4
		ORDER BY event_date, start_minute NULLS FIRST
	`, userID, models.DateOnly(from), models.DateOnly(to), models.CalendarEventTypeStudySession)
	if err != nil {
		return nil, fmt.Errorf("failed to query busy events: %w", err)
	}
	defer rows.Close()

	var events []models.BusyEvent
	for rows.Next() {
		var ev models.BusyEvent
		var start, end *int
		if err := rows.Scan(&ev.Date, &start, &end, &ev.AllDay); err != nil {
			return nil, fmt.Errorf("failed to scan busy event: %w", err)
		}
		ev.Start = clockPtr(start)
		ev.End = clockPtr(end)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// CreateEvents writes the events in a single batch.
func (r *CalendarRepo) CreateEvents(ctx context.Context, events []*models.CalendarEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, ev := range events {
		if ev.ID == uuid.Nil {
			ev.ID = uuid.New()
		}
		batch.Queue(`
			INSERT INTO calendar_events (id, user_id, title, description, event_date, start_minute,
				end_minute, all_day, event_type, linked_session_id, linked_module_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING created_at
		`, ev.ID, ev.UserID, ev.Title, ev.Description, models.DateOnly(ev.Date), intPtr(ev.Start),
			intPtr(ev.End), ev.AllDay, ev.EventType, ev.LinkedSessionID, ev.LinkedModuleID)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for _, ev := range events {
		if err := results.QueryRow().Scan(&ev.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert calendar event for %s: %w", ev.Date.Format(models.DateLayout), err)
		}
	}
	return nil
}

func clockPtr(v *int) *models.ClockTime {
	if v == nil {
		return nil
	}
	c := models.ClockTime(*v)
	return &c
}

func intPtr(c *models.ClockTime) *int {
	if c == nil {
		return nil
	}
	v := int(*c)
	return &v
}
