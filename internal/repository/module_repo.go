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

// ModuleRepo reads modules; the modules feature owns writes.
type ModuleRepo struct {
	pool *pgxpool.Pool
}

func NewModuleRepo(pool *pgxpool.Pool) *ModuleRepo {
	return &ModuleRepo{pool: pool}
}

const moduleColumns = `id, user_id, name, code, credits, status, difficulty, assessment_dates, created_at`

func scanModule(row rowScanner) (*models.Module, error) {
	m := &models.Module{}
	err := row.Scan(&m.ID, &m.UserID, &m.Name, &m.Code, &m.Credits, &m.Status, &m.Difficulty,
		&m.AssessmentDates, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *ModuleRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Module, error) {
	m, err := scanModule(r.pool.QueryRow(ctx, "SELECT "+moduleColumns+" FROM modules WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load module %s: %w", id, err)
	}
	return m, nil
}

func (r *ModuleRepo) ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]*models.Module, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT "+moduleColumns+" FROM modules WHERE user_id = $1 AND status = $2 ORDER BY id",
		userID, models.ModuleStatusActive,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query modules: %w", err)
	}
	defer rows.Close()

	var modules []*models.Module
	for rows.Next() {
		m, err := scanModule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan module: %w", err)
		}
		modules = append(modules, m)
	}
	return modules, rows.Err()
}
