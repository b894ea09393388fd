package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"studyplanner-backend/internal/metrics"
	"studyplanner-backend/internal/models"
	"studyplanner-backend/internal/repository"
	"studyplanner-backend/internal/scheduling"
)

const (
	maxDaysAhead   = 60
	historyLimit   = 200
	aiServiceLabel = "gemini"
)

type OrchestratorConfig struct {
	DaysAhead int
	AITimeout time.Duration
	Location  *time.Location
}

// ScheduleOrchestrator produces session batches. It asks the AI collaborator first and falls
// back to the deterministic planner → filter → allocator pipeline. Failures while gathering
// inputs or persisting degrade to an empty batch instead of failing the request.
type ScheduleOrchestrator struct {
	sessions    SessionStore
	preferences PreferenceStore
	modules     ModuleStore
	calendar    CalendarStore
	ai          AIScheduler
	publisher   UpdatePublisher
	metrics     *metrics.Metrics
	cfg         OrchestratorConfig
	now         func() time.Time
	log         *zap.Logger
}

// NewScheduleOrchestrator wires the orchestrator. ai may be nil, in which case every run uses
// the heuristic pipeline.
func NewScheduleOrchestrator(
	sessions SessionStore,
	preferences PreferenceStore,
	modules ModuleStore,
	calendar CalendarStore,
	ai AIScheduler,
	publisher UpdatePublisher,
	m *metrics.Metrics,
	cfg OrchestratorConfig,
	log *zap.Logger,
) *ScheduleOrchestrator {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.DaysAhead <= 0 {
		cfg.DaysAhead = 14
	}
	return &ScheduleOrchestrator{
		sessions:    sessions,
		preferences: preferences,
		modules:     modules,
		calendar:    calendar,
		ai:          ai,
		publisher:   publisher,
		metrics:     m,
		cfg:         cfg,
		now:         time.Now,
		log:         log,
	}
}

func (o *ScheduleOrchestrator) Generate(ctx context.Context, userID uuid.UUID, req models.GenerateScheduleRequest) (*models.ScheduleBatch, error) {
	days := req.DaysAhead
	if days == 0 {
		days = o.cfg.DaysAhead
	}
	if days < 1 || days > maxDaysAhead {
		return nil, newValidationError("days_ahead", fmt.Sprintf("must be between 1 and %d", maxDaysAhead))
	}

	start := models.DateOnly(o.now().In(o.cfg.Location))
	if req.StartDate != nil {
		start = models.DateOnly(*req.StartDate)
	}
	end := start.AddDate(0, 0, days)

	batch := &models.ScheduleBatch{
		BatchID:   uuid.New(),
		Sessions:  []*models.StudySession{},
		StartDate: start.Format(models.DateLayout),
		EndDate:   end.AddDate(0, 0, -1).Format(models.DateLayout),
	}
	logger := o.log.With(zap.String("user_id", userID.String()), zap.String("batch_id", batch.BatchID.String()))

	sc, err := o.gather(ctx, userID, start, end)
	if err != nil {
		logger.Warn("schedule generation degraded: failed to gather context", zap.Error(err))
		o.metrics.ObserveGeneration("empty")
		batch.Degraded = true
		return batch, nil
	}

	if len(scheduling.PrioritizeModules(sc.Modules)) == 0 {
		logger.Info("no active modules to schedule")
		o.metrics.ObserveGeneration("empty")
		return batch, nil
	}

	sessions, aiOK := o.fromAI(ctx, sc, batch.BatchID, logger)
	if !aiOK {
		sessions = o.fromHeuristic(sc, batch.BatchID)
	}
	if len(sessions) == 0 {
		o.metrics.ObserveGeneration("empty")
		return batch, nil
	}

	if err := o.sessions.CreateBatch(ctx, sessions); err != nil {
		logger.Warn("schedule generation degraded: failed to persist batch", zap.Error(err))
		o.metrics.ObserveGeneration("empty")
		batch.Degraded = true
		return batch, nil
	}

	if req.SaveToCalendar {
		if err := o.calendar.CreateEvents(ctx, calendarEventsFor(sessions)); err != nil {
			logger.Warn("failed to mirror sessions to calendar", zap.Error(err))
		}
	}

	batch.Sessions = sessions
	batch.AIGenerated = aiOK
	if aiOK {
		o.metrics.ObserveGeneration("ai")
	} else {
		o.metrics.ObserveGeneration("heuristic")
	}

	o.publish(ctx, userID, models.WSMessage{
		Type: models.WSScheduleGenerated,
		Payload: models.ScheduleGenerated{
			BatchID:     batch.BatchID,
			Sessions:    len(sessions),
			AIGenerated: aiOK,
		},
	})

	logger.Info("schedule generated", zap.Int("sessions", len(sessions)), zap.Bool("ai_generated", aiOK))
	return batch, nil
}

// gather loads the run's inputs concurrently. Missing preferences fall back to the defaults.
func (o *ScheduleOrchestrator) gather(ctx context.Context, userID uuid.UUID, start, end time.Time) (ScheduleContext, error) {
	sc := ScheduleContext{
		UserID:    userID,
		StartDate: start,
		EndDate:   end,
		Now:       o.now(),
		Location:  o.cfg.Location,
	}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		pref, err := o.preferences.GetByUser(gctx, userID)
		if errors.Is(err, repository.ErrNotFound) {
			sc.Preferences = models.DefaultStudyPreference(userID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("preferences: %w", err)
		}
		sc.Preferences = pref
		return nil
	})
	g.Go(func() error {
		modules, err := o.modules.ListActiveByUser(gctx, userID)
		if err != nil {
			return fmt.Errorf("modules: %w", err)
		}
		sc.Modules = modules
		return nil
	})
	g.Go(func() error {
		busy, err := o.calendar.ListBusyInRange(gctx, userID, start, end)
		if err != nil {
			return fmt.Errorf("calendar: %w", err)
		}
		sc.Busy = busy
		return nil
	})
	g.Go(func() error {
		history, err := o.sessions.ListByUser(gctx, userID, models.SessionFilter{
			Status: models.SessionCompleted,
			Limit:  historyLimit,
		})
		if err != nil {
			return fmt.Errorf("history: %w", err)
		}
		sc.History = history
		return nil
	})

	if err := g.Wait(); err != nil {
		return ScheduleContext{}, err
	}
	return sc, nil
}

func (o *ScheduleOrchestrator) fromAI(ctx context.Context, sc ScheduleContext, batchID uuid.UUID, logger *zap.Logger) ([]*models.StudySession, bool) {
	if o.ai == nil {
		o.metrics.ObserveAIFallback("disabled")
		return nil, false
	}

	aiCtx, cancel := withAITimeout(ctx, o.cfg.AITimeout)
	defer cancel()

	raw, err := o.ai.SuggestSchedule(aiCtx, sc)
	if err != nil {
		reason := "error"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(aiCtx.Err(), context.DeadlineExceeded) {
			reason = "timeout"
		}
		o.fallback(logger, reason, &ExternalServiceError{Service: aiServiceLabel, Err: err})
		return nil, false
	}

	entries, err := extractPayload(raw)
	if err != nil {
		o.fallback(logger, "unparseable", &ExternalServiceError{Service: aiServiceLabel, Err: err})
		return nil, false
	}

	sessions, err := buildAISessions(entries, sc, batchID)
	if err != nil {
		o.fallback(logger, "invalid", &ExternalServiceError{Service: aiServiceLabel, Err: err})
		return nil, false
	}
	return sessions, true
}

func (o *ScheduleOrchestrator) fallback(logger *zap.Logger, reason string, err error) {
	logger.Warn("AI schedule discarded, using heuristic", zap.String("reason", reason), zap.Error(err))
	o.metrics.ObserveAIFallback(reason)
}

func (o *ScheduleOrchestrator) fromHeuristic(sc ScheduleContext, batchID uuid.UUID) []*models.StudySession {
	slots := scheduling.PlanSlots(sc.Preferences)
	free := scheduling.FilterAvailability(slots, sc.Busy, sc.Preferences.ExcludedTimes)
	return scheduling.Allocate(scheduling.AllocationInput{
		UserID:             sc.UserID,
		Slots:              free,
		Modules:            sc.Modules,
		MinSessionsPerWeek: sc.Preferences.MinSessionsPerWeek,
		ReferenceDate:      sc.StartDate,
		BatchID:            batchID,
	})
}

func calendarEventsFor(sessions []*models.StudySession) []*models.CalendarEvent {
	events := make([]*models.CalendarEvent, 0, len(sessions))
	for _, s := range sessions {
		sessionID, moduleID := s.ID, s.ModuleID
		start, end := s.StartTime, s.EndTime
		events = append(events, &models.CalendarEvent{
			UserID:          s.UserID,
			Title:           s.Title,
			Description:     fmt.Sprintf("Study session for %s", s.ModuleName),
			Date:            s.Date,
			Start:           &start,
			End:             &end,
			EventType:       models.CalendarEventTypeStudySession,
			LinkedSessionID: &sessionID,
			LinkedModuleID:  &moduleID,
		})
	}
	return events
}

// List returns the user's sessions matching filter.
func (o *ScheduleOrchestrator) List(ctx context.Context, userID uuid.UUID, filter models.SessionFilter) ([]*models.StudySession, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, newValidationError("status", "unknown session status")
	}
	if filter.StartDate != nil && filter.EndDate != nil && filter.EndDate.Before(*filter.StartDate) {
		return nil, newValidationError("end_date", "must not be before start_date")
	}

	sessions, err := o.sessions.ListByUser(ctx, userID, filter)
	if err != nil {
		return nil, storeError("list sessions", err, "")
	}
	if sessions == nil {
		sessions = []*models.StudySession{}
	}
	return sessions, nil
}

// Preferences returns the stored preferences or the defaults when none were saved.
func (o *ScheduleOrchestrator) Preferences(ctx context.Context, userID uuid.UUID) (*models.StudyPreference, error) {
	pref, err := o.preferences.GetByUser(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return models.DefaultStudyPreference(userID), nil
	}
	if err != nil {
		return nil, storeError("load preferences", err, "")
	}
	return pref, nil
}

func (o *ScheduleOrchestrator) SavePreferences(ctx context.Context, userID uuid.UUID, pref *models.StudyPreference) (*models.StudyPreference, error) {
	if err := ValidatePreference(pref); err != nil {
		return nil, err
	}
	pref.UserID = userID
	if pref.ExcludedTimes == nil {
		pref.ExcludedTimes = []models.ExcludedTime{}
	}
	if err := o.preferences.Upsert(ctx, pref); err != nil {
		return nil, storeError("save preferences", err, "")
	}
	return pref, nil
}

func (o *ScheduleOrchestrator) publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage) {
	if o.publisher == nil {
		return
	}
	if err := o.publisher.Publish(ctx, userID, msg); err != nil {
		o.log.Warn("failed to publish update", zap.String("type", msg.Type), zap.Error(err))
	}
}
