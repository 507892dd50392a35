package rbac

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/roommend/roommend/internal/platform/httpx"
)

// DecisionRecorder receives every guard outcome, typically for metrics.
type DecisionRecorder interface {
	RecordGuardDecision(mode string, decision string)
}

// Guard enforces requirements on HTTP handlers. It is evaluated on every
// request, so changes to the identity or to the requirement apply immediately.
type Guard struct {
	// Principal resolves the client of the request.
	Principal func(ctx context.Context) Principal
	Logger    *slog.Logger
	Recorder  DecisionRecorder
	// Loading renders DecisionLoading for HTML routes. Defaults to a plain text page.
	Loading          http.Handler
	LoginPath        string
	UnauthorizedPath string
}

// Require protects HTML routes: anonymous clients are redirected to the login
// page and under-privileged ones to the access denied page.
func (g Guard) Require(req Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch g.evaluate(r, req) {
			case DecisionAllow:
				next.ServeHTTP(w, r)
			case DecisionLoading:
				g.loading().ServeHTTP(w, r)
			case DecisionRedirectLogin:
				http.Redirect(w, r, g.loginLocation(r), http.StatusSeeOther)
			case DecisionRedirectUnauthorized:
				http.Redirect(w, r, g.unauthorizedPath(), http.StatusSeeOther)
			}
		})
	}
}

// RequireAPI protects JSON routes with RFC7807 problem responses instead of redirects.
func (g Guard) RequireAPI(req Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch g.evaluate(r, req) {
			case DecisionAllow:
				next.ServeHTTP(w, r)
			case DecisionLoading:
				w.Header().Set("Retry-After", "1")
				httpx.Problem(w, http.StatusServiceUnavailable, "Identity Loading", "identity is still being resolved")
			case DecisionRedirectLogin:
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
			case DecisionRedirectUnauthorized:
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing required permission")
			}
		})
	}
}

func (g Guard) evaluate(r *http.Request, req Requirement) Decision {
	var p Principal
	if g.Principal != nil {
		p = g.Principal(r.Context())
	}
	decision := Decide(p, req)
	if g.Recorder != nil {
		g.Recorder.RecordGuardDecision(req.Mode.String(), decision.String())
	}
	if decision == DecisionRedirectUnauthorized && g.Logger != nil {
		g.Logger.Info("guard denied request",
			slog.String("path", r.URL.Path),
			slog.Any("required", req.Permissions),
			slog.String("mode", req.Mode.String()))
	}
	return decision
}

func (g Guard) loading() http.Handler {
	if g.Loading != nil {
		return g.Loading
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Refresh", "1")
		_, _ = w.Write([]byte("Loading..."))
	})
}

func (g Guard) loginLocation(r *http.Request) string {
	path := g.LoginPath
	if path == "" {
		path = "/login"
	}
	if r.Method != http.MethodGet {
		return path
	}
	return path + "?next=" + url.QueryEscape(r.URL.RequestURI())
}

func (g Guard) unauthorizedPath() string {
	if g.UnauthorizedPath == "" {
		return "/unauthorized"
	}
	return g.UnauthorizedPath
}
