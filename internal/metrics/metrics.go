// Package metrics exposes the Prometheus collectors for the HTTP layer and the study engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "studyplanner"

type Metrics struct {
	ReqCount    *prometheus.CounterVec
	ReqDuration *prometheus.HistogramVec

	ScheduleGenerations *prometheus.CounterVec
	AIFallbacks         *prometheus.CounterVec
	SessionTransitions  *prometheus.CounterVec
	SweepSessions       *prometheus.CounterVec
	SweepDuration       prometheus.Histogram
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ReqCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		ReqDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Request duration seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		ScheduleGenerations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "schedule_generations_total",
				Help:      "Schedule generation runs by the path that produced the batch (ai, heuristic, empty)",
			},
			[]string{"path"},
		),
		AIFallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ai_schedule_fallbacks_total",
				Help:      "AI scheduling attempts that fell back to the heuristic pipeline",
			},
			[]string{"reason"},
		),
		SessionTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_transitions_total",
				Help:      "Study session state transitions",
			},
			[]string{"from", "to", "trigger"},
		),
		SweepSessions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sweep_sessions_total",
				Help:      "Sessions handled by the periodic sweep by outcome",
			},
			[]string{"outcome"},
		),
		SweepDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sweep_duration_seconds",
				Help:      "Duration of one sweep pass",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}

	reg.MustRegister(
		m.ReqCount, m.ReqDuration,
		m.ScheduleGenerations, m.AIFallbacks, m.SessionTransitions,
		m.SweepSessions, m.SweepDuration,
	)
	return m
}

// The recorders below are nil-safe so components can run without metrics in tests.

func (m *Metrics) ObserveRequest(method, path, status string, seconds float64) {
	if m == nil {
		return
	}
	m.ReqCount.WithLabelValues(method, path, status).Inc()
	m.ReqDuration.WithLabelValues(method, path).Observe(seconds)
}

func (m *Metrics) ObserveGeneration(path string) {
	if m == nil {
		return
	}
	m.ScheduleGenerations.WithLabelValues(path).Inc()
}

func (m *Metrics) ObserveAIFallback(reason string) {
	if m == nil {
		return
	}
	m.AIFallbacks.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveTransition(from, to, trigger string) {
	if m == nil {
		return
	}
	m.SessionTransitions.WithLabelValues(from, to, trigger).Inc()
}

func (m *Metrics) ObserveSweep(completed, missed, skipped, failed int, seconds float64) {
	if m == nil {
		return
	}
	m.SweepSessions.WithLabelValues("completed").Add(float64(completed))
	m.SweepSessions.WithLabelValues("missed").Add(float64(missed))
	m.SweepSessions.WithLabelValues("skipped").Add(float64(skipped))
	m.SweepSessions.WithLabelValues("failed").Add(float64(failed))
	m.SweepDuration.Observe(seconds)
}
