package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"studyplanner-backend/internal/models"
)

type PreferenceRepo struct {
	pool *pgxpool.Pool
}

func NewPreferenceRepo(pool *pgxpool.Pool) *PreferenceRepo {
	return &PreferenceRepo{pool: pool}
}

func (r *PreferenceRepo) GetByUser(ctx context.Context, userID uuid.UUID) (*models.StudyPreference, error) {
	var days []int
	var parts []string
	var excluded []byte

	p := &models.StudyPreference{UserID: userID}
	err := r.pool.QueryRow(ctx, `
		SELECT preferred_days, preferred_day_parts, session_duration, break_duration,
			min_sessions_per_week, excluded_times, updated_at
		FROM study_preferences WHERE user_id = $1
	`, userID).Scan(&days, &parts, &p.SessionDuration, &p.BreakDuration,
		&p.MinSessionsPerWeek, &excluded, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load study preferences: %w", err)
	}

	for _, d := range days {
		p.PreferredDays = append(p.PreferredDays, time.Weekday(d))
	}
	for _, part := range parts {
		p.PreferredDayParts = append(p.PreferredDayParts, models.DayPart(part))
	}
	if len(excluded) > 0 {
		if err := json.Unmarshal(excluded, &p.ExcludedTimes); err != nil {
			return nil, fmt.Errorf("failed to decode excluded times: %w", err)
		}
	}
	return p, nil
}

func (r *PreferenceRepo) Upsert(ctx context.Context, p *models.StudyPreference) error {
	days := make([]int, 0, len(p.PreferredDays))
	for _, d := range p.PreferredDays {
		days = append(days, int(d))
	}
	parts := make([]string, 0, len(p.PreferredDayParts))
	for _, part := range p.PreferredDayParts {
		parts = append(parts, string(part))
	}
	excluded := p.ExcludedTimes
	if excluded == nil {
		excluded = []models.ExcludedTime{}
	}
	excludedJSON, err := json.Marshal(excluded)
	if err != nil {
		return fmt.Errorf("failed to encode excluded times: %w", err)
	}

	err = r.pool.QueryRow(ctx, `
		INSERT INTO study_preferences (user_id, preferred_days, preferred_day_parts, session_duration,
			break_duration, min_sessions_per_week, excluded_times, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			preferred_days = EXCLUDED.preferred_days,
			preferred_day_parts = EXCLUDED.preferred_day_parts,
			session_duration = EXCLUDED.session_duration,
			break_duration = EXCLUDED.break_duration,
			min_sessions_per_week = EXCLUDED.min_sessions_per_week,
			excluded_times = EXCLUDED.excluded_times,
			updated_at = NOW()
		RETURNING updated_at
	`, p.UserID, days, parts, p.SessionDuration, p.BreakDuration, p.MinSessionsPerWeek, excludedJSON,
	).Scan(&p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save study preferences: %w", err)
	}
	return nil
}
