package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsHandlerExposesPrometheusMetrics(t *testing.T) {
	metrics := NewMetrics()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	metrics.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}

	body := rr.Body.String()
	if !strings.Contains(body, "roommend_jobs_total") {
		t.Fatalf("expected body to contain roommend_jobs_total, got: %s", body)
	}
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rr.Code)
	}

	metricsRR := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(metricsRR, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	metricsBody := metricsRR.Body.String()
	if !strings.Contains(metricsBody, "http_requests_total{code=\"418\",route=\"/test\"} 1") {
		t.Fatalf("expected metrics to record request, got: %s", metricsBody)
	}
	if !strings.Contains(metricsBody, "http_request_duration_seconds_bucket{route=\"/test\"") {
		t.Fatalf("expected duration histogram to be present, got: %s", metricsBody)
	}
}

func TestMetricsRecordsGuardAndLoginOutcomes(t *testing.T) {
	metrics := NewMetrics()
	metrics.RecordGuardDecision("all", "redirect_unauthorized")
	metrics.RecordGuardDecision("all", "redirect_unauthorized")
	metrics.RecordLoginAttempt("rejected")

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rr.Body.String()

	if !strings.Contains(body, `roommend_guard_decisions_total{decision="redirect_unauthorized",mode="all"} 2`) {
		t.Fatalf("expected guard decisions to be counted, got: %s", body)
	}
	if !strings.Contains(body, `roommend_login_attempts_total{outcome="rejected"} 1`) {
		t.Fatalf("expected login attempt to be counted, got: %s", body)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	metrics.RecordGuardDecision("any", "allow")
	metrics.RecordLoginAttempt("success")
	metrics.RecordJob("auth:record_login", nil)

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 from nil metrics, got %d", rr.Code)
	}
}

func TestRecordJobSplitsByStatus(t *testing.T) {
	metrics := NewMetrics()
	metrics.RecordJob("auth:record_login", nil)
	metrics.RecordJob("auth:record_login", nil)
	metrics.RecordJob("auth:record_login", context.DeadlineExceeded)

	if got := testutil.ToFloat64(metrics.jobsTotal.WithLabelValues("auth:record_login", "ok")); got != 2 {
		t.Fatalf("expected 2 ok jobs, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.jobsTotal.WithLabelValues("auth:record_login", "error")); got != 1 {
		t.Fatalf("expected 1 failed job, got %v", got)
	}
}
