package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"studyplanner-backend/internal/models"
)

// The stores below are satisfied by the pgx repositories in internal/repository. Services depend
// on these interfaces so tests can substitute in-memory fakes.

type SessionStore interface {
	CreateBatch(ctx context.Context, sessions []*models.StudySession) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.StudySession, error)
	ListByUser(ctx context.Context, userID uuid.UUID, filter models.SessionFilter) ([]*models.StudySession, error)
	ListUnresolvedBefore(ctx context.Context, date time.Time, limit int) ([]*models.StudySession, error)
	UpdateState(ctx context.Context, s *models.StudySession) error
	Reschedule(ctx context.Context, origin, replacement *models.StudySession) error
}

type PreferenceStore interface {
	GetByUser(ctx context.Context, userID uuid.UUID) (*models.StudyPreference, error)
	Upsert(ctx context.Context, p *models.StudyPreference) error
}

type ModuleStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Module, error)
	ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]*models.Module, error)
}

type CalendarStore interface {
	ListBusyInRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]models.BusyEvent, error)
	CreateEvents(ctx context.Context, events []*models.CalendarEvent) error
}

type ProgressStore interface {
	GetStreak(ctx context.Context, userID uuid.UUID) (*models.StudyStreak, error)
	SaveStreak(ctx context.Context, s *models.StudyStreak) error
	GetStats(ctx context.Context, userID uuid.UUID) (*models.StudyStats, error)
	SaveStats(ctx context.Context, s *models.StudyStats) error
	ListAchievements(ctx context.Context, userID uuid.UUID) ([]*models.Achievement, error)
	SaveAchievements(ctx context.Context, achievements []*models.Achievement) error
}

type TipStore interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.AITip, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.AITip, error)
	CreateBatch(ctx context.Context, tips []*models.AITip) error
	Resolve(ctx context.Context, tip *models.AITip) error
}
