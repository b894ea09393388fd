package services

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"studyplanner-backend/internal/models"
	"studyplanner-backend/internal/repository"
)

// ──── Sessions ────

type fakeSessionStore struct {
	mu        sync.Mutex
	byID      map[uuid.UUID]*models.StudySession
	batches   [][]*models.StudySession
	createErr error
	listErr   error
	updateErr map[uuid.UUID]error
}

func newFakeSessionStore(sessions ...*models.StudySession) *fakeSessionStore {
	f := &fakeSessionStore{byID: map[uuid.UUID]*models.StudySession{}, updateErr: map[uuid.UUID]error{}}
	for _, s := range sessions {
		f.put(s)
	}
	return f
}

func (f *fakeSessionStore) put(s *models.StudySession) {
	if s.Version == 0 {
		s.Version = 1
	}
	clone := *s
	f.byID[s.ID] = &clone
}

func (f *fakeSessionStore) stored(id uuid.UUID) *models.StudySession {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *f.byID[id]
	return &clone
}

func (f *fakeSessionStore) CreateBatch(_ context.Context, sessions []*models.StudySession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	for _, s := range sessions {
		f.put(s)
	}
	f.batches = append(f.batches, sessions)
	return nil
}

func (f *fakeSessionStore) GetByID(_ context.Context, id uuid.UUID) (*models.StudySession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *s
	return &clone, nil
}

func (f *fakeSessionStore) ListByUser(_ context.Context, userID uuid.UUID, filter models.SessionFilter) ([]*models.StudySession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*models.StudySession
	for _, s := range f.byID {
		if s.UserID != userID || (filter.Status != "" && s.Status != filter.Status) {
			continue
		}
		clone := *s
		out = append(out, &clone)
	}
	sortSessions(out)
	return out, nil
}

func (f *fakeSessionStore) ListUnresolvedBefore(_ context.Context, date time.Time, limit int) ([]*models.StudySession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	cutoff := models.DateOnly(date)
	var out []*models.StudySession
	for _, s := range f.byID {
		if s.Unresolved() && !s.Date.After(cutoff) {
			clone := *s
			out = append(out, &clone)
		}
	}
	sortSessions(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeSessionStore) cas(s *models.StudySession) error {
	if err := f.updateErr[s.ID]; err != nil {
		return err
	}
	current, ok := f.byID[s.ID]
	if !ok || current.Version != s.Version {
		return repository.ErrVersionConflict
	}
	s.Version++
	clone := *s
	f.byID[s.ID] = &clone
	return nil
}

func (f *fakeSessionStore) UpdateState(_ context.Context, s *models.StudySession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cas(s)
}

func (f *fakeSessionStore) Reschedule(_ context.Context, origin, replacement *models.StudySession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.cas(origin); err != nil {
		return err
	}
	replacement.Version = 1
	f.put(replacement)
	return nil
}

func sortSessions(out []*models.StudySession) {
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].StartTime < out[j].StartTime
	})
}

// ──── Preferences, modules, calendar ────

type fakePreferenceStore struct {
	byUser map[uuid.UUID]*models.StudyPreference
	err    error
}

func (f *fakePreferenceStore) GetByUser(_ context.Context, userID uuid.UUID) (*models.StudyPreference, error) {
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.byUser[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return p, nil
}

func (f *fakePreferenceStore) Upsert(_ context.Context, p *models.StudyPreference) error {
	if f.err != nil {
		return f.err
	}
	if f.byUser == nil {
		f.byUser = map[uuid.UUID]*models.StudyPreference{}
	}
	f.byUser[p.UserID] = p
	return nil
}

type fakeModuleStore struct {
	modules []*models.Module
	err     error
}

func (f *fakeModuleStore) GetByID(_ context.Context, id uuid.UUID) (*models.Module, error) {
	for _, m := range f.modules {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeModuleStore) ListActiveByUser(_ context.Context, userID uuid.UUID) ([]*models.Module, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*models.Module
	for _, m := range f.modules {
		if m.UserID == userID && m.IsActive() {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakeCalendarStore struct {
	busy    []models.BusyEvent
	created []*models.CalendarEvent
	err     error
}

func (f *fakeCalendarStore) ListBusyInRange(_ context.Context, _ uuid.UUID, _, _ time.Time) ([]models.BusyEvent, error) {
	return f.busy, f.err
}

func (f *fakeCalendarStore) CreateEvents(_ context.Context, events []*models.CalendarEvent) error {
	f.created = append(f.created, events...)
	return nil
}

// ──── Progress ────

type fakeProgressStore struct {
	mu           sync.Mutex
	streaks      map[uuid.UUID]*models.StudyStreak
	stats        map[uuid.UUID]*models.StudyStats
	achievements map[uuid.UUID][]*models.Achievement
}

func newFakeProgressStore() *fakeProgressStore {
	return &fakeProgressStore{
		streaks:      map[uuid.UUID]*models.StudyStreak{},
		stats:        map[uuid.UUID]*models.StudyStats{},
		achievements: map[uuid.UUID][]*models.Achievement{},
	}
}

func (f *fakeProgressStore) GetStreak(_ context.Context, userID uuid.UUID) (*models.StudyStreak, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.streaks[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *s
	return &clone, nil
}

func (f *fakeProgressStore) SaveStreak(_ context.Context, s *models.StudyStreak) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *s
	f.streaks[s.UserID] = &clone
	return nil
}

func (f *fakeProgressStore) GetStats(_ context.Context, userID uuid.UUID) (*models.StudyStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.stats[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *s
	return &clone, nil
}

func (f *fakeProgressStore) SaveStats(_ context.Context, s *models.StudyStats) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *s
	f.stats[s.UserID] = &clone
	return nil
}

func (f *fakeProgressStore) ListAchievements(_ context.Context, userID uuid.UUID) ([]*models.Achievement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Achievement
	for _, a := range f.achievements[userID] {
		clone := *a
		out = append(out, &clone)
	}
	return out, nil
}

func (f *fakeProgressStore) SaveAchievements(_ context.Context, achievements []*models.Achievement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range achievements {
		if a.ID == uuid.Nil {
			a.ID = uuid.New()
		}
	}
	if len(achievements) > 0 {
		userID := achievements[0].UserID
		saved := make([]*models.Achievement, 0, len(achievements))
		for _, a := range achievements {
			clone := *a
			saved = append(saved, &clone)
		}
		f.achievements[userID] = saved
	}
	return nil
}

// ──── Collaborators ────

type fakePublisher struct {
	mu   sync.Mutex
	sent []models.WSMessage
}

func (f *fakePublisher) Publish(_ context.Context, _ uuid.UUID, msg models.WSMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakePublisher) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, m := range f.sent {
		out = append(out, m.Type)
	}
	return out
}

type fakeRecomputer struct {
	calls []uuid.UUID
	err   error
}

func (f *fakeRecomputer) Recompute(_ context.Context, userID uuid.UUID) (*models.ProgressUpdate, error) {
	f.calls = append(f.calls, userID)
	return &models.ProgressUpdate{}, f.err
}

type fakeAI struct {
	raw   string
	err   error
	block bool
	calls int
}

func (f *fakeAI) SuggestSchedule(ctx context.Context, _ ScheduleContext) (string, error) {
	f.calls++
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.raw, f.err
}

// ──── Fixtures ────

var (
	testUserID  = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	otherUserID = uuid.MustParse("22222222-2222-2222-2222-222222222222")
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func intp(v int) *int { return &v }

func testModule(id string, name string, credits int) *models.Module {
	return &models.Module{
		ID:      uuid.MustParse(id),
		UserID:  testUserID,
		Name:    name,
		Credits: intp(credits),
		Status:  models.ModuleStatusActive,
	}
}

func scheduledSession(day time.Time, start, end models.ClockTime) *models.StudySession {
	return &models.StudySession{
		ID:         uuid.New(),
		UserID:     testUserID,
		ModuleID:   uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000001"),
		ModuleName: "Algorithms",
		Title:      "Study: Algorithms",
		Date:       day,
		StartTime:  start,
		EndTime:    end,
		Status:     models.SessionScheduled,
		BatchID:    uuid.New(),
		Version:    1,
	}
}

func nopLogger() *zap.Logger { return zap.NewNop() }

type fakeStatsCache struct {
	mu          sync.Mutex
	entries     map[uuid.UUID]*models.StudyStats
	invalidated int
}

func newFakeStatsCache() *fakeStatsCache {
	return &fakeStatsCache{entries: map[uuid.UUID]*models.StudyStats{}}
}

func (c *fakeStatsCache) GetStats(_ context.Context, userID uuid.UUID) (*models.StudyStats, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.entries[userID]
	return s, ok
}

func (c *fakeStatsCache) SetStats(_ context.Context, stats *models.StudyStats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[stats.UserID] = stats
}

func (c *fakeStatsCache) Invalidate(_ context.Context, userID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
	c.invalidated++
}

// ──── Tips ────

type fakeTipStore struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*models.AITip
}

func newFakeTipStore(tips ...*models.AITip) *fakeTipStore {
	f := &fakeTipStore{byID: map[uuid.UUID]*models.AITip{}}
	for _, t := range tips {
		clone := *t
		f.byID[t.ID] = &clone
	}
	return f
}

func (f *fakeTipStore) ListByUser(_ context.Context, userID uuid.UUID) ([]*models.AITip, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.AITip
	for _, t := range f.byID {
		if t.UserID == userID {
			clone := *t
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeTipStore) GetByID(_ context.Context, id uuid.UUID) (*models.AITip, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *t
	return &clone, nil
}

func (f *fakeTipStore) CreateBatch(_ context.Context, tips []*models.AITip) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range tips {
		clone := *t
		f.byID[t.ID] = &clone
	}
	return nil
}

func (f *fakeTipStore) Resolve(_ context.Context, tip *models.AITip) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.byID[tip.ID]
	if !ok || t.Status != models.TipPending {
		return repository.ErrVersionConflict
	}
	clone := *tip
	f.byID[tip.ID] = &clone
	return nil
}

func (f *fakeSessionStore) mustList(t *testing.T) []*models.StudySession {
	t.Helper()
	out, err := f.ListByUser(context.Background(), testUserID, models.SessionFilter{})
	if err != nil {
		t.Fatal(err)
	}
	return out
}
