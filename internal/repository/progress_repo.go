package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"studyplanner-backend/internal/models"
)

// ProgressRepo stores the derived streak, stats and achievement rows. Every write is a full
// overwrite of recomputed state.
type ProgressRepo struct {
	pool *pgxpool.Pool
}

func NewProgressRepo(pool *pgxpool.Pool) *ProgressRepo {
	return &ProgressRepo{pool: pool}
}

// ──── Streak ────

func (r *ProgressRepo) GetStreak(ctx context.Context, userID uuid.UUID) (*models.StudyStreak, error) {
	s := &models.StudyStreak{UserID: userID}
	var history []byte
	err := r.pool.QueryRow(ctx, `
		SELECT current_streak, longest_streak, last_study_date, history, updated_at
		FROM study_streaks WHERE user_id = $1
	`, userID).Scan(&s.CurrentStreak, &s.LongestStreak, &s.LastStudyDate, &history, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load streak: %w", err)
	}

	s.History = map[string]int{}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &s.History); err != nil {
			return nil, fmt.Errorf("failed to decode streak history: %w", err)
		}
	}
	return s, nil
}

func (r *ProgressRepo) SaveStreak(ctx context.Context, s *models.StudyStreak) error {
	history := s.History
	if history == nil {
		history = map[string]int{}
	}
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("failed to encode streak history: %w", err)
	}

	err = r.pool.QueryRow(ctx, `
		INSERT INTO study_streaks (user_id, current_streak, longest_streak, last_study_date, history, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			current_streak = EXCLUDED.current_streak,
			longest_streak = EXCLUDED.longest_streak,
			last_study_date = EXCLUDED.last_study_date,
			history = EXCLUDED.history,
			updated_at = NOW()
		RETURNING updated_at
	`, s.UserID, s.CurrentStreak, s.LongestStreak, s.LastStudyDate, historyJSON).Scan(&s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save streak: %w", err)
	}
	return nil
}

// ──── Stats ────

func (r *ProgressRepo) GetStats(ctx context.Context, userID uuid.UUID) (*models.StudyStats, error) {
	s := &models.StudyStats{UserID: userID}
	var breakdown []byte
	err := r.pool.QueryRow(ctx, `
		SELECT total_planned, total_completed, total_missed, total_minutes, avg_productivity,
			most_studied_module, module_breakdown, xp, level, next_level_xp, updated_at
		FROM study_stats WHERE user_id = $1
	`, userID).Scan(&s.TotalPlanned, &s.TotalCompleted, &s.TotalMissed, &s.TotalMinutes,
		&s.AvgProductivity, &s.MostStudiedModule, &breakdown, &s.XP, &s.Level, &s.NextLevelXP, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load stats: %w", err)
	}

	if len(breakdown) > 0 {
		if err := json.Unmarshal(breakdown, &s.ModuleBreakdown); err != nil {
			return nil, fmt.Errorf("failed to decode module breakdown: %w", err)
		}
	}
	return s, nil
}

func (r *ProgressRepo) SaveStats(ctx context.Context, s *models.StudyStats) error {
	breakdown := s.ModuleBreakdown
	if breakdown == nil {
		breakdown = []models.ModuleStats{}
	}
	breakdownJSON, err := json.Marshal(breakdown)
	if err != nil {
		return fmt.Errorf("failed to encode module breakdown: %w", err)
	}

	err = r.pool.QueryRow(ctx, `
		INSERT INTO study_stats (user_id, total_planned, total_completed, total_missed, total_minutes,
			avg_productivity, most_studied_module, module_breakdown, xp, level, next_level_xp, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			total_planned = EXCLUDED.total_planned,
			total_completed = EXCLUDED.total_completed,
			total_missed = EXCLUDED.total_missed,
			total_minutes = EXCLUDED.total_minutes,
			avg_productivity = EXCLUDED.avg_productivity,
			most_studied_module = EXCLUDED.most_studied_module,
			module_breakdown = EXCLUDED.module_breakdown,
			xp = EXCLUDED.xp,
			level = EXCLUDED.level,
			next_level_xp = EXCLUDED.next_level_xp,
			updated_at = NOW()
		RETURNING updated_at
	`, s.UserID, s.TotalPlanned, s.TotalCompleted, s.TotalMissed, s.TotalMinutes, s.AvgProductivity,
		s.MostStudiedModule, breakdownJSON, s.XP, s.Level, s.NextLevelXP,
	).Scan(&s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save stats: %w", err)
	}
	return nil
}

// ──── Achievements ────

func (r *ProgressRepo) ListAchievements(ctx context.Context, userID uuid.UUID) ([]*models.Achievement, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, code, name, description, category, progress, target, status,
			unlocked_at, completed_at, updated_at
		FROM achievements WHERE user_id = $1 ORDER BY category, target, code
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query achievements: %w", err)
	}
	defer rows.Close()

	var achievements []*models.Achievement
	for rows.Next() {
		a := &models.Achievement{}
		var category, status string
		if err := rows.Scan(&a.ID, &a.UserID, &a.Code, &a.Name, &a.Description, &category,
			&a.Progress, &a.Target, &status, &a.UnlockedAt, &a.CompletedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan achievement: %w", err)
		}
		a.Category = models.AchievementCategory(category)
		a.Status = models.AchievementStatus(status)
		achievements = append(achievements, a)
	}
	return achievements, rows.Err()
}

// SaveAchievements upserts by (user_id, code).
func (r *ProgressRepo) SaveAchievements(ctx context.Context, achievements []*models.Achievement) error {
	if len(achievements) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, a := range achievements {
		if a.ID == uuid.Nil {
			a.ID = uuid.New()
		}
		batch.Queue(`
			INSERT INTO achievements (id, user_id, code, name, description, category, progress, target,
				status, unlocked_at, completed_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
			ON CONFLICT (user_id, code) DO UPDATE SET
				name = EXCLUDED.name,
				description = EXCLUDED.description,
				category = EXCLUDED.category,
				progress = EXCLUDED.progress,
				target = EXCLUDED.target,
				status = EXCLUDED.status,
				unlocked_at = EXCLUDED.unlocked_at,
				completed_at = EXCLUDED.completed_at,
				updated_at = NOW()
			RETURNING id, updated_at
		`, a.ID, a.UserID, a.Code, a.Name, a.Description, string(a.Category), a.Progress, a.Target,
			string(a.Status), a.UnlockedAt, a.CompletedAt)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for _, a := range achievements {
		if err := results.QueryRow().Scan(&a.ID, &a.UpdatedAt); err != nil {
			return fmt.Errorf("failed to save achievement %s: %w", a.Code, err)
		}
	}
	return nil
}
