package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"studyplanner-backend/internal/config"
	"studyplanner-backend/internal/database"
	"studyplanner-backend/internal/handlers"
	"studyplanner-backend/internal/logger"
	"studyplanner-backend/internal/metrics"
	"studyplanner-backend/internal/middleware"
	"studyplanner-backend/internal/repository"
	"studyplanner-backend/internal/router"
	"studyplanner-backend/internal/services"
	"studyplanner-backend/internal/websocket"
	"studyplanner-backend/internal/worker"
)

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()

	// ──── Step 2: Initialize Logger ────
	log := logger.New(cfg.LogLevel, cfg.LogFile)
	defer log.Sync()
	log.Info("starting study planner backend", zap.String("env", cfg.Env))

	ctx := context.Background()

	// ──── Step 3: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("postgres connection failed", zap.Error(err))
	}
	defer pool.Close()
	log.Info("postgres connected")

	// ──── Step 4: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal("redis connection failed", zap.Error(err))
	}
	defer redisClients.Close()
	log.Info("redis connected")

	// ──── Step 5: Run Database Migrations ────
	if err := database.RunMigrations(ctx, pool, "migrations", log); err != nil {
		log.Fatal("database migration failed", zap.Error(err))
	}
	log.Info("database migrations applied")

	// ──── Initialize Repositories ────
	sessionRepo := repository.NewStudySessionRepo(pool)
	preferenceRepo := repository.NewPreferenceRepo(pool)
	moduleRepo := repository.NewModuleRepo(pool)
	calendarRepo := repository.NewCalendarRepo(pool)
	progressRepo := repository.NewProgressRepo(pool)
	tipRepo := repository.NewTipRepo(pool)

	// ──── Step 6: Initialize Metrics ────
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// ──── Step 7: Initialize Gemini Client ────
	var ai services.AIScheduler
	if cfg.AIEnabled() {
		gemini, err := services.NewGeminiScheduler(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiConcurrentReqs, log)
		if err != nil {
			log.Fatal("gemini client initialization failed", zap.Error(err))
		}
		defer gemini.Close()
		ai = gemini
		log.Info("gemini scheduler initialized", zap.String("model", cfg.GeminiModel))
	} else {
		log.Warn("GEMINI_API_KEY not set, schedules use the heuristic planner only")
	}

	// ──── Initialize Services ────
	publisher := services.NewRedisPublisher(redisClients.Cache)
	statsCache := services.NewRedisStatsCache(redisClients.Cache, log)

	progress := services.NewProgressTracker(sessionRepo, progressRepo, statsCache, publisher, m, cfg.Location, log)
	lifecycle := services.NewSessionLifecycle(sessionRepo, moduleRepo, progress, publisher, m, cfg.Location, log)
	orchestrator := services.NewScheduleOrchestrator(
		sessionRepo,
		preferenceRepo,
		moduleRepo,
		calendarRepo,
		ai,
		publisher,
		m,
		services.OrchestratorConfig{
			DaysAhead: cfg.ScheduleDaysAhead,
			AITimeout: cfg.AIScheduleTimeout,
			Location:  cfg.Location,
		},
		log,
	)
	insights := services.NewInsightService(sessionRepo, preferenceRepo, tipRepo)

	// ──── Step 8: Start Session Sweeper ────
	sweeper := worker.NewSweeper(lifecycle, worker.NewRedisLock(redisClients.Cache), cfg.SweepInterval, log)
	if err := sweeper.Start(); err != nil {
		log.Fatal("session sweeper failed to start", zap.Error(err))
	}

	// ──── Step 9: Start WebSocket Hub ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	wsHub := websocket.NewHub(websocket.NewRedisSubscriber(redisClients.PubSub), jwtAuth, cfg.FrontendURL, log)

	// ──── Step 10: Start HTTP Server ────
	generateLimiter := middleware.NewRateLimiter(cfg.GenerateRatePerMinute, time.Minute)
	r := router.New(router.Deps{
		JWTAuth:         jwtAuth,
		Schedule:        handlers.NewScheduleHandler(orchestrator),
		Sessions:        handlers.NewStudySessionHandler(lifecycle),
		Progress:        handlers.NewProgressHandler(progress, insights),
		WebSocket:       wsHub.HandleWebSocket,
		Metrics:         m,
		Gatherer:        registry,
		GenerateLimiter: generateLimiter,
		FrontendURL:     cfg.FrontendURL,
		Log:             log,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second, // schedule generation waits on the AI timeout
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("shutting down")
		sweeper.Stop()
		generateLimiter.Stop()
		wsHub.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Info("study planner backend ready",
		zap.String("api", fmt.Sprintf("http://localhost:%s/api/v1", cfg.Port)),
		zap.String("ws", fmt.Sprintf("ws://localhost:%s/api/v1/ws", cfg.Port)),
	)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal("server error", zap.Error(err))
	}
}
