package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	guardDecisions  *prometheus.CounterVec
	loginAttempts   *prometheus.CounterVec
	jobsTotal       *prometheus.CounterVec
}

// NewMetrics initialises the registry and the application metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "roommend_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "roommend_http_request_duration_seconds",
		Help:    "HTTP request duration by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	guard := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "roommend_guard_decisions_total",
		Help: "Route guard outcomes by requirement mode and decision.",
	}, []string{"mode", "decision"})
	logins := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "roommend_login_attempts_total",
		Help: "Credential checks by outcome.",
	}, []string{"outcome"})
	jobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "roommend_jobs_total",
		Help: "Background jobs processed by task type and status.",
	}, []string{"task", "status"})
	registry.MustRegister(requests, duration, guard, logins, jobs)
	jobs.WithLabelValues("none", "ok").Add(0)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		guardDecisions:  guard,
		loginAttempts:   logins,
		jobsTotal:       jobs,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// RecordGuardDecision counts a route guard outcome.
func (m *Metrics) RecordGuardDecision(mode, decision string) {
	if m == nil {
		return
	}
	m.guardDecisions.WithLabelValues(mode, decision).Inc()
}

// RecordLoginAttempt counts a credential check.
func (m *Metrics) RecordLoginAttempt(outcome string) {
	if m == nil {
		return
	}
	m.loginAttempts.WithLabelValues(outcome).Inc()
}

// RecordJob counts a processed background job.
func (m *Metrics) RecordJob(task string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.jobsTotal.WithLabelValues(task, status).Inc()
}

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
