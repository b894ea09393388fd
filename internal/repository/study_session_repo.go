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

type StudySessionRepo struct {
	pool *pgxpool.Pool
}

func NewStudySessionRepo(pool *pgxpool.Pool) *StudySessionRepo {
	return &StudySessionRepo{pool: pool}
}

const sessionColumns = `id, user_id, module_id, module_name, title, session_date, start_minute, end_minute,
	status, feedback, points_earned, batch_id, is_ai_generated, rescheduled_from, rescheduled_to,
	started_at, completed_at, version, created_at, updated_at`

const insertSessionQuery = `INSERT INTO study_sessions (id, user_id, module_id, module_name, title,
	session_date, start_minute, end_minute, status, feedback, points_earned, batch_id,
	is_ai_generated, rescheduled_from, version)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, 1)
	RETURNING created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.StudySession, error) {
	s := &models.StudySession{}
	var start, end int
	var status string
	var feedback []byte

	err := row.Scan(
		&s.ID, &s.UserID, &s.ModuleID, &s.ModuleName, &s.Title, &s.Date, &start, &end,
		&status, &feedback, &s.PointsEarned, &s.BatchID, &s.IsAIGenerated,
		&s.RescheduledFrom, &s.RescheduledTo, &s.StartedAt, &s.CompletedAt,
		&s.Version, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.StartTime = models.ClockTime(start)
	s.EndTime = models.ClockTime(end)
	s.Status = models.SessionStatus(status)
	if len(feedback) > 0 && string(feedback) != "null" {
		s.Feedback = &models.SessionFeedback{}
		if err := json.Unmarshal(feedback, s.Feedback); err != nil {
			return nil, fmt.Errorf("failed to decode feedback for session %s: %w", s.ID, err)
		}
	}
	return s, nil
}

func marshalFeedback(f *models.SessionFeedback) ([]byte, error) {
	if f == nil {
		return nil, nil
	}
	return json.Marshal(f)
}

func insertSessionArgs(s *models.StudySession) ([]any, error) {
	feedback, err := marshalFeedback(s.Feedback)
	if err != nil {
		return nil, err
	}
	return []any{
		s.ID, s.UserID, s.ModuleID, s.ModuleName, s.Title, models.DateOnly(s.Date),
		int(s.StartTime), int(s.EndTime), string(s.Status), feedback, s.PointsEarned, s.BatchID,
		s.IsAIGenerated, s.RescheduledFrom,
	}, nil
}

// CreateBatch inserts all sessions of one generation run atomically.
func (r *StudySessionRepo) CreateBatch(ctx context.Context, sessions []*models.StudySession) error {
	if len(sessions) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin session batch: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, s := range sessions {
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
		s.Version = 1
		args, err := insertSessionArgs(s)
		if err != nil {
			return fmt.Errorf("failed to encode session %s: %w", s.ID, err)
		}
		batch.Queue(insertSessionQuery, args...)
	}

	results := tx.SendBatch(ctx, batch)
	for _, s := range sessions {
		if err := results.QueryRow().Scan(&s.CreatedAt, &s.UpdatedAt); err != nil {
			results.Close()
			return fmt.Errorf("failed to insert session %s: %w", s.ID, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to flush session batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit session batch: %w", err)
	}
	return nil
}

func (r *StudySessionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.StudySession, error) {
	row := r.pool.QueryRow(ctx, "SELECT "+sessionColumns+" FROM study_sessions WHERE id = $1", id)
	s, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	return s, nil
}

func (r *StudySessionRepo) ListByUser(ctx context.Context, userID uuid.UUID, filter models.SessionFilter) ([]*models.StudySession, error) {
	args := []any{userID}
	argIdx := 2
	where := "WHERE user_id = $1"

	if filter.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.StartDate != nil {
		where += fmt.Sprintf(" AND session_date >= $%d", argIdx)
		args = append(args, models.DateOnly(*filter.StartDate))
		argIdx++
	}
	if filter.EndDate != nil {
		where += fmt.Sprintf(" AND session_date <= $%d", argIdx)
		args = append(args, models.DateOnly(*filter.EndDate))
		argIdx++
	}
	if filter.ModuleID != nil {
		where += fmt.Sprintf(" AND module_id = $%d", argIdx)
		args = append(args, *filter.ModuleID)
		argIdx++
	}

	query := "SELECT " + sessionColumns + " FROM study_sessions " + where +
		" ORDER BY session_date ASC, start_minute ASC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, filter.Limit)
	}

	return r.query(ctx, query, args...)
}

// ListUnresolvedBefore returns scheduled/in-progress sessions dated on or before the given day,
// across all users. Callers decide which of them have actually ended.
func (r *StudySessionRepo) ListUnresolvedBefore(ctx context.Context, date time.Time, limit int) ([]*models.StudySession, error) {
	query := "SELECT " + sessionColumns + ` FROM study_sessions
		WHERE status IN ('scheduled', 'in_progress') AND session_date <= $1
		ORDER BY session_date ASC, end_minute ASC
		LIMIT $2`
	return r.query(ctx, query, models.DateOnly(date), limit)
}

func (r *StudySessionRepo) query(ctx context.Context, query string, args ...any) ([]*models.StudySession, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.StudySession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sessions: %w", err)
	}
	return sessions, nil
}

const updateSessionQuery = `UPDATE study_sessions
	SET status = $3, feedback = $4, points_earned = $5, started_at = $6, completed_at = $7,
		rescheduled_to = $8, version = version + 1, updated_at = NOW()
	WHERE id = $1 AND version = $2
	RETURNING version, updated_at`

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func updateSession(ctx context.Context, q rowQuerier, s *models.StudySession) error {
	feedback, err := marshalFeedback(s.Feedback)
	if err != nil {
		return fmt.Errorf("failed to encode feedback: %w", err)
	}

	err = q.QueryRow(ctx, updateSessionQuery,
		s.ID, s.Version, string(s.Status), feedback, s.PointsEarned, s.StartedAt, s.CompletedAt, s.RescheduledTo,
	).Scan(&s.Version, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrVersionConflict
	}
	if err != nil {
		return fmt.Errorf("failed to update session %s: %w", s.ID, err)
	}
	return nil
}

// UpdateState writes the mutable lifecycle fields if the stored version still matches
// s.Version. On success s.Version is advanced.
func (r *StudySessionRepo) UpdateState(ctx context.Context, s *models.StudySession) error {
	return updateSession(ctx, r.pool, s)
}

// Reschedule supersedes origin and inserts its replacement in one transaction.
func (r *StudySessionRepo) Reschedule(ctx context.Context, origin, replacement *models.StudySession) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin reschedule: %w", err)
	}
	defer tx.Rollback(ctx)

	replacement.Version = 1
	args, err := insertSessionArgs(replacement)
	if err != nil {
		return fmt.Errorf("failed to encode replacement session: %w", err)
	}
	if err := tx.QueryRow(ctx, insertSessionQuery, args...).Scan(&replacement.CreatedAt, &replacement.UpdatedAt); err != nil {
		return fmt.Errorf("failed to insert replacement session: %w", err)
	}

	if err := updateSession(ctx, tx, origin); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit reschedule: %w", err)
	}
	return nil
}
