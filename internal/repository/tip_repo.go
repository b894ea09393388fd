package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"studyplanner-backend/internal/models"
)

type TipRepo struct {
	pool *pgxpool.Pool
}

func NewTipRepo(pool *pgxpool.Pool) *TipRepo {
	return &TipRepo{pool: pool}
}

const tipColumns = `id, user_id, category, message, suggested_duration, status, created_at, resolved_at`

func scanTip(row rowScanner) (*models.AITip, error) {
	t := &models.AITip{}
	var category, status string
	if err := row.Scan(&t.ID, &t.UserID, &category, &t.Message, &t.SuggestedDuration,
		&status, &t.CreatedAt, &t.ResolvedAt); err != nil {
		return nil, err
	}
	t.Category = models.TipCategory(category)
	t.Status = models.TipStatus(status)
	return t, nil
}

// ListByUser returns every tip of the user regardless of status, newest first.
func (r *TipRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.AITip, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+tipColumns+` FROM ai_tips
		WHERE user_id = $1 ORDER BY created_at DESC, message`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tips: %w", err)
	}
	defer rows.Close()

	var tips []*models.AITip
	for rows.Next() {
		t, err := scanTip(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tip: %w", err)
		}
		tips = append(tips, t)
	}
	return tips, rows.Err()
}

func (r *TipRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.AITip, error) {
	t, err := scanTip(r.pool.QueryRow(ctx, `SELECT `+tipColumns+` FROM ai_tips WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load tip: %w", err)
	}
	return t, nil
}

// CreateBatch inserts new tips. A message the user already has is skipped.
func (r *TipRepo) CreateBatch(ctx context.Context, tips []*models.AITip) error {
	if len(tips) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, t := range tips {
		if t.ID == uuid.Nil {
			t.ID = uuid.New()
		}
		batch.Queue(`INSERT INTO ai_tips (id, user_id, category, message, suggested_duration, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (user_id, message) DO NOTHING`,
			t.ID, t.UserID, string(t.Category), t.Message, t.SuggestedDuration, string(t.Status), t.CreatedAt)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()
	for _, t := range tips {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert tip %s: %w", t.ID, err)
		}
	}
	return nil
}

// Resolve moves a pending tip to its final status. ErrVersionConflict means it was already
// resolved.
func (r *TipRepo) Resolve(ctx context.Context, t *models.AITip) error {
	tag, err := r.pool.Exec(ctx, `UPDATE ai_tips SET status = $2, resolved_at = $3
		WHERE id = $1 AND status = 'pending'`, t.ID, string(t.Status), t.ResolvedAt)
	if err != nil {
		return fmt.Errorf("failed to resolve tip: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	return nil
}
