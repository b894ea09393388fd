package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"studyplanner-backend/internal/handlers"
	"studyplanner-backend/internal/metrics"
	"studyplanner-backend/internal/middleware"
)

type Deps struct {
	JWTAuth         *middleware.JWTAuth
	Schedule        *handlers.ScheduleHandler
	Sessions        *handlers.StudySessionHandler
	Progress        *handlers.ProgressHandler
	WebSocket       http.HandlerFunc
	Metrics         *metrics.Metrics
	Gatherer        prometheus.Gatherer
	GenerateLimiter *middleware.RateLimiter
	FrontendURL     string
	Log             *zap.Logger
}

func New(d Deps) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer(d.Log))
	r.Use(middleware.RequestLogger(d.Log, d.Metrics))
	r.Use(middleware.CORS(d.FrontendURL))

	generateLimiter := d.GenerateLimiter
	if generateLimiter == nil {
		generateLimiter = middleware.NewRateLimiter(5, time.Minute)
	}

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Study Routes ────
		r.Route("/study", func(r chi.Router) {
			r.Use(d.JWTAuth.Middleware)

			r.Get("/preferences", d.Schedule.GetPreferences)
			r.Put("/preferences", d.Schedule.UpdatePreferences)

			r.With(generateLimiter.Middleware).Post("/schedule/generate", d.Schedule.Generate)

			r.Route("/sessions", func(r chi.Router) {
				r.Get("/", d.Schedule.ListSessions)
				r.Get("/{id}", d.Sessions.Get)
				r.Post("/{id}/start", d.Sessions.Start)
				r.Post("/{id}/complete", d.Sessions.Complete)
				r.Post("/{id}/reschedule", d.Sessions.Reschedule)
			})

			// ──── Progress ────
			r.Get("/streak", d.Progress.Streak)
			r.Get("/achievements", d.Progress.Achievements)
			r.Get("/stats", d.Progress.Stats)
			r.Get("/recommendations", d.Progress.Recommendations)
			r.Get("/patterns", d.Progress.Patterns)
			r.Get("/analytics", d.Progress.Analytics)

			// ──── AI Tips ────
			r.Get("/tips", d.Progress.Tips)
			r.Post("/tips/{id}/accept", d.Progress.AcceptTip)
			r.Post("/tips/{id}/reject", d.Progress.RejectTip)
		})

		// ──── WebSocket ────
		if d.WebSocket != nil {
			r.Get("/ws", d.WebSocket)
		}
	})

	return r
}
