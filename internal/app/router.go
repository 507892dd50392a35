package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/roommend/roommend/internal/auth"
	"github.com/roommend/roommend/internal/dashboard"
	"github.com/roommend/roommend/internal/observability"
	"github.com/roommend/roommend/internal/rbac"
	"github.com/roommend/roommend/internal/roles"
	"github.com/roommend/roommend/internal/session"
	"github.com/roommend/roommend/internal/shared"
	"github.com/roommend/roommend/internal/users"
	"github.com/roommend/roommend/internal/view"
	"github.com/roommend/roommend/jobs"
	"github.com/roommend/roommend/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	Templates      *view.Engine
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Metrics        *observability.Metrics

	// Authenticator verifies credentials for both the login form and the API.
	Authenticator auth.Authenticator
	// Refresher re-checks signed-in users on every request. Optional.
	Refresher auth.Refresher
	Registry  *session.Registry

	AuthHandler        *auth.Handler
	DashboardHandler   *dashboard.Handler
	RolesHandler       *roles.Handler
	UsersHandler       *users.Handler
	PermissionsHandler *rbac.PermissionsHandler
	SessionAPI         *session.APIHandler
	JobHandler         *jobs.Handler
}

// NewGuard builds the route guard used by every protected handler.
func NewGuard(logger *slog.Logger, templates *view.Engine, metrics *observability.Metrics) rbac.Guard {
	guard := rbac.Guard{
		Principal:        auth.PrincipalFromContext,
		Logger:           logger,
		LoginPath:        "/login",
		UnauthorizedPath: "/unauthorized",
	}
	if metrics != nil {
		guard.Recorder = metrics
	}
	if templates != nil {
		guard.Loading = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "no-store")
			if err := templates.Render(w, "pages/loading.html", view.TemplateData{Title: "Loading"}); err != nil {
				logger.Error("render loading", slog.Any("error", err))
			}
		})
	}
	return guard
}

// NewRouter constructs the chi.Router with Roommend defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	mwConfig := MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}
	for _, mw := range GlobalMiddleware(mwConfig) {
		r.Use(mw)
	}
	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := web.Static()
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(session.BearerMiddleware(params.Registry, params.Authenticator, params.Refresher, params.Logger))
		if params.SessionAPI != nil {
			params.SessionAPI.MountRoutes(r)
		}
		if params.PermissionsHandler != nil {
			r.Route("/permissions", params.PermissionsHandler.MountAPI)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	r.Group(func(r chi.Router) {
		for _, mw := range BrowserMiddleware(mwConfig) {
			r.Use(mw)
		}
		r.Use(auth.IdentityMiddleware(params.Authenticator, params.Refresher, params.Logger))

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, auth.DefaultLanding, http.StatusSeeOther)
		})
		if params.AuthHandler != nil {
			params.AuthHandler.MountRoutes(r)
		}
		r.Route("/app", func(r chi.Router) {
			if params.DashboardHandler != nil {
				params.DashboardHandler.MountRoutes(r)
			}
			if params.RolesHandler != nil {
				r.Route("/settings/roles", params.RolesHandler.MountRoutes)
			}
			if params.UsersHandler != nil {
				r.Route("/settings/users", params.UsersHandler.MountRoutes)
			}
			if params.PermissionsHandler != nil {
				r.Route("/settings/permissions", params.PermissionsHandler.MountRoutes)
			}
		})
	})

	return r
}

// staticCacheHandler wraps a file server with Cache-Control headers.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
