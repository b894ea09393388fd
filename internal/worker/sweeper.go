// Package worker runs the background session sweep.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"studyplanner-backend/internal/services"
)

const sweepLockKey = "sweep_lock"

type SessionSweeper interface {
	Sweep(ctx context.Context) (services.SweepResult, error)
}

// Lock is a cross-instance mutex with an expiry.
type Lock interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type RedisLock struct {
	redis *redis.Client
}

func NewRedisLock(redisClient *redis.Client) *RedisLock {
	return &RedisLock{redis: redisClient}
}

func (l *RedisLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.redis.SetNX(ctx, key, "1", ttl).Result()
}

func (l *RedisLock) Release(ctx context.Context, key string) error {
	return l.redis.Del(ctx, key).Err()
}

// Sweeper triggers SessionSweeper on a fixed interval. Runs never overlap within one process
// and the Redis lock keeps other instances out while a pass is in flight.
type Sweeper struct {
	scheduler *gocron.Scheduler
	sessions  SessionSweeper
	lock      Lock
	interval  time.Duration
	log       *zap.Logger
}

func NewSweeper(sessions SessionSweeper, lock Lock, interval time.Duration, log *zap.Logger) *Sweeper {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Sweeper{
		scheduler: s,
		sessions:  sessions,
		lock:      lock,
		interval:  interval,
		log:       log,
	}
}

func (s *Sweeper) Start() error {
	if _, err := s.scheduler.Every(s.interval).Do(func() {
		s.RunOnce(context.Background())
	}); err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}
	s.scheduler.StartAsync()
	s.log.Info("session sweeper started", zap.Duration("interval", s.interval))
	return nil
}

func (s *Sweeper) Stop() {
	s.scheduler.Stop()
	s.log.Info("session sweeper stopped")
}

// RunOnce performs a single locked sweep. ran is false when another instance holds the lock.
func (s *Sweeper) RunOnce(ctx context.Context) (result services.SweepResult, ran bool) {
	ctx, cancel := context.WithTimeout(ctx, s.interval)
	defer cancel()

	acquired, err := s.lock.Acquire(ctx, sweepLockKey, s.interval)
	if err != nil {
		s.log.Warn("sweep: failed to acquire lock", zap.Error(err))
		return result, false
	}
	if !acquired {
		s.log.Debug("sweep: lock held by another instance")
		return result, false
	}
	defer func() {
		if err := s.lock.Release(context.Background(), sweepLockKey); err != nil {
			s.log.Warn("sweep: failed to release lock", zap.Error(err))
		}
	}()

	result, err = s.sessions.Sweep(ctx)
	if err != nil {
		s.log.Error("sweep failed", zap.Error(err))
		return result, true
	}

	if result.Completed+result.Missed+result.Failed > 0 {
		s.log.Info("sweep finished",
			zap.Int("completed", result.Completed),
			zap.Int("missed", result.Missed),
			zap.Int("skipped", result.Skipped),
			zap.Int("failed", result.Failed),
		)
	}
	return result, true
}
