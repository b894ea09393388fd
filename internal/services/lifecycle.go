package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"studyplanner-backend/internal/metrics"
	"studyplanner-backend/internal/models"
	"studyplanner-backend/internal/repository"
)

const (
	sweepBatchLimit = 500

	triggerUser  = "user"
	triggerSweep = "sweep"
)

// ProgressRecomputer is the slice of ProgressTracker the lifecycle needs.
type ProgressRecomputer interface {
	Recompute(ctx context.Context, userID uuid.UUID) (*models.ProgressUpdate, error)
}

type RescheduleInput struct {
	Date      time.Time
	StartTime models.ClockTime
	// EndTime defaults to StartTime plus the origin's duration when nil.
	EndTime *models.ClockTime
}

// SweepResult counts what one sweep pass did. Skipped sessions have not ended yet or were
// resolved concurrently.
type SweepResult struct {
	Completed int `json:"completed"`
	Missed    int `json:"missed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// SessionLifecycle drives the session state machine. Every write is a version-checked
// compare-and-swap; losing a race surfaces as ConflictError.
type SessionLifecycle struct {
	sessions  SessionStore
	modules   ModuleStore
	progress  ProgressRecomputer
	publisher UpdatePublisher
	metrics   *metrics.Metrics
	loc       *time.Location
	now       func() time.Time
	log       *zap.Logger
}

func NewSessionLifecycle(
	sessions SessionStore,
	modules ModuleStore,
	progress ProgressRecomputer,
	publisher UpdatePublisher,
	m *metrics.Metrics,
	loc *time.Location,
	log *zap.Logger,
) *SessionLifecycle {
	if loc == nil {
		loc = time.UTC
	}
	return &SessionLifecycle{
		sessions:  sessions,
		modules:   modules,
		progress:  progress,
		publisher: publisher,
		metrics:   m,
		loc:       loc,
		now:       time.Now,
		log:       log,
	}
}

// Get loads a session owned by userID. Sessions of other users are reported as missing.
func (l *SessionLifecycle) Get(ctx context.Context, userID, sessionID uuid.UUID) (*models.StudySession, error) {
	s, err := l.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, storeError("load session", err, "Session not found")
	}
	if s.UserID != userID {
		return nil, &NotFoundError{Message: "Session not found"}
	}
	return s, nil
}

func (l *SessionLifecycle) Start(ctx context.Context, userID, sessionID uuid.UUID) (*models.StudySession, error) {
	s, err := l.Get(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if !s.Status.CanTransitionTo(models.SessionInProgress) {
		return nil, illegalTransition("start", s.Status)
	}

	prev := s.Status
	startedAt := l.now()
	s.Status = models.SessionInProgress
	s.StartedAt = &startedAt

	if err := l.sessions.UpdateState(ctx, s); err != nil {
		return nil, storeError("start session", err, "Session not found")
	}

	l.afterTransition(ctx, s, prev, triggerUser)
	return s, nil
}

// Complete finishes a scheduled or in-progress session and awards points. Completing an already
// completed session returns it unchanged.
func (l *SessionLifecycle) Complete(ctx context.Context, userID, sessionID uuid.UUID, feedback *models.SessionFeedback) (*models.StudySession, error) {
	if err := ValidateFeedback(feedback); err != nil {
		return nil, err
	}

	s, err := l.Get(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if s.Status == models.SessionCompleted {
		return s, nil
	}
	if !s.Status.CanTransitionTo(models.SessionCompleted) {
		return nil, illegalTransition("complete", s.Status)
	}

	prev := s.Status
	if err := l.markCompleted(ctx, s, feedback); err != nil {
		return nil, err
	}
	l.afterTransition(ctx, s, prev, triggerUser)

	if _, err := l.progress.Recompute(ctx, s.UserID); err != nil {
		l.log.Error("progress recompute failed after completion",
			zap.String("session_id", s.ID.String()), zap.Error(err))
		return nil, err
	}
	return s, nil
}

// Reschedule supersedes the origin with a new scheduled session at the requested time. Both
// writes commit together; the origin keeps a forward link and the replacement a back link.
func (l *SessionLifecycle) Reschedule(ctx context.Context, userID, sessionID uuid.UUID, in RescheduleInput) (*models.StudySession, error) {
	s, err := l.Get(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if !s.Status.CanTransitionTo(models.SessionRescheduled) {
		return nil, illegalTransition("reschedule", s.Status)
	}

	end := in.StartTime + models.ClockTime(s.DurationMinutes())
	if in.EndTime != nil {
		end = *in.EndTime
	}
	if err := l.validateNewTime(in.Date, in.StartTime, end); err != nil {
		return nil, err
	}

	originID := s.ID
	replacement := &models.StudySession{
		ID:              uuid.New(),
		UserID:          s.UserID,
		ModuleID:        s.ModuleID,
		ModuleName:      s.ModuleName,
		Title:           s.Title,
		Date:            models.DateOnly(in.Date),
		StartTime:       in.StartTime,
		EndTime:         end,
		Status:          models.SessionScheduled,
		BatchID:         s.BatchID,
		RescheduledFrom: &originID,
	}

	prev := s.Status
	s.Status = models.SessionRescheduled
	s.RescheduledTo = &replacement.ID

	if err := l.sessions.Reschedule(ctx, s, replacement); err != nil {
		return nil, storeError("reschedule session", err, "Session not found")
	}
	l.afterTransition(ctx, s, prev, triggerUser)

	// The origin's points no longer count once it stops being completed.
	if prev == models.SessionCompleted {
		if _, err := l.progress.Recompute(ctx, s.UserID); err != nil {
			l.log.Error("progress recompute failed after reschedule",
				zap.String("session_id", s.ID.String()), zap.Error(err))
			return nil, err
		}
	}
	return replacement, nil
}

func (l *SessionLifecycle) validateNewTime(date time.Time, start, end models.ClockTime) error {
	fields := map[string]string{}
	if date.IsZero() {
		fields["date"] = "is required"
	} else if models.DateOnly(date).Before(models.DateOnly(l.now().In(l.loc))) {
		fields["date"] = "must not be in the past"
	}
	if !start.Valid() {
		fields["start_time"] = "must be a valid HH:MM time"
	}
	if !end.Valid() {
		fields["end_time"] = "must be a valid HH:MM time within the same day"
	} else if end <= start {
		fields["end_time"] = "must be after start_time"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Sweep resolves sessions whose end time has passed: in-progress ones complete, untouched ones
// are missed. A failing session is counted and skipped so the rest of the pass continues.
func (l *SessionLifecycle) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	began := time.Now()
	now := l.now()

	candidates, err := l.sessions.ListUnresolvedBefore(ctx, now.In(l.loc), sweepBatchLimit)
	if err != nil {
		return result, &PersistenceError{Op: "list unresolved sessions", Err: err}
	}

	completedFor := map[uuid.UUID]bool{}
	for _, s := range candidates {
		if !s.Unresolved() || !s.EndsAt(l.loc).Before(now) {
			result.Skipped++
			continue
		}

		prev := s.Status
		var err error
		if s.Status == models.SessionInProgress {
			err = l.markCompleted(ctx, s, nil)
		} else {
			s.Status = models.SessionMissed
			err = l.sessions.UpdateState(ctx, s)
		}

		switch {
		case errors.Is(err, repository.ErrVersionConflict):
			result.Skipped++
			continue
		case err != nil:
			var conflict *ConflictError
			if errors.As(err, &conflict) {
				result.Skipped++
				continue
			}
			result.Failed++
			l.log.Warn("sweep: failed to resolve session",
				zap.String("session_id", s.ID.String()),
				zap.String("status", string(prev)),
				zap.Error(err),
			)
			continue
		}

		if s.Status == models.SessionCompleted {
			result.Completed++
			completedFor[s.UserID] = true
		} else {
			result.Missed++
		}
		l.afterTransition(ctx, s, prev, triggerSweep)
	}

	for userID := range completedFor {
		if _, err := l.progress.Recompute(ctx, userID); err != nil {
			l.log.Warn("sweep: progress recompute failed", zap.String("user_id", userID.String()), zap.Error(err))
		}
	}

	l.metrics.ObserveSweep(result.Completed, result.Missed, result.Skipped, result.Failed, time.Since(began).Seconds())
	return result, nil
}

// markCompleted sets completion fields, scores the session and writes it.
func (l *SessionLifecycle) markCompleted(ctx context.Context, s *models.StudySession, feedback *models.SessionFeedback) error {
	module, err := l.modules.GetByID(ctx, s.ModuleID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return &PersistenceError{Op: "load module", Err: err}
	}

	completedAt := l.now()
	s.Status = models.SessionCompleted
	s.CompletedAt = &completedAt
	if feedback != nil {
		s.Feedback = feedback
	}
	s.PointsEarned = SessionPoints(s, module)

	if err := l.sessions.UpdateState(ctx, s); err != nil {
		return storeError("complete session", err, "Session not found")
	}
	return nil
}

func (l *SessionLifecycle) afterTransition(ctx context.Context, s *models.StudySession, prev models.SessionStatus, trigger string) {
	l.metrics.ObserveTransition(string(prev), string(s.Status), trigger)

	if l.publisher == nil {
		return
	}
	msg := models.WSMessage{
		Type: models.WSSessionUpdated,
		Payload: models.SessionUpdate{
			SessionID:      s.ID,
			Status:         s.Status,
			PreviousStatus: prev,
			PointsEarned:   s.PointsEarned,
			Automatic:      trigger == triggerSweep,
		},
	}
	if err := l.publisher.Publish(ctx, s.UserID, msg); err != nil {
		l.log.Warn("failed to publish session update", zap.String("session_id", s.ID.String()), zap.Error(err))
	}
}

func illegalTransition(action string, from models.SessionStatus) error {
	return &ConflictError{Message: fmt.Sprintf("Cannot %s a session that is %s", action, from)}
}
