package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/roommend/roommend/internal/auth"
	"github.com/roommend/roommend/internal/platform/httpx"
	"github.com/roommend/roommend/internal/rbac"
	"github.com/roommend/roommend/internal/shared"
)

type tokenContextKey struct{}

// APIHandler exposes the registry to bearer-token clients.
type APIHandler struct {
	logger    *slog.Logger
	registry  *Registry
	authn     auth.Authenticator
	guard     rbac.Guard
	validator *validator.Validate
}

// NewAPIHandler builds an APIHandler.
func NewAPIHandler(logger *slog.Logger, registry *Registry, authn auth.Authenticator, guard rbac.Guard) *APIHandler {
	return &APIHandler{
		logger:    logger,
		registry:  registry,
		authn:     authn,
		guard:     guard,
		validator: validator.New(),
	}
}

// MountRoutes registers the session endpoints. r must already run BearerMiddleware.
func (h *APIHandler) MountRoutes(r chi.Router) {
	r.Post("/sessions", h.createSession)
	r.With(h.guard.RequireAPI(rbac.Requirement{})).Delete("/sessions", h.deleteSession)
	r.With(h.guard.RequireAPI(rbac.Requirement{})).Get("/me", h.me)
}

type credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type sessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      auth.User `json:"user"`
	Role      rbac.Role `json:"role"`
}

type meResponse struct {
	User        auth.User         `json:"user"`
	Role        rbac.Role         `json:"role"`
	Permissions []rbac.Permission `json:"permissions"`
}

func (h *APIHandler) createSession(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "request body must be JSON")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "email and password are required")
		return
	}
	provider := auth.NewProvider(h.authn, auth.NewMemoryStorage(), h.logger)
	provider.Restore(r.Context())
	identity, err := provider.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if !errors.Is(err, shared.ErrInvalidCredentials) {
			h.logger.Error("api login", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	sess, err := h.registry.Create(r.Context(), identity)
	if err != nil {
		h.logger.Error("register session", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sessionResponse{Token: sess.ID, ExpiresAt: sess.ExpiresAt, User: sess.User, Role: sess.Role})
}

func (h *APIHandler) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Destroy(r.Context(), tokenFromContext(r.Context())); err != nil {
		h.logger.Error("destroy session", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if provider := auth.ProviderFromContext(r.Context()); provider != nil {
		provider.Logout()
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) me(w http.ResponseWriter, r *http.Request) {
	provider := auth.ProviderFromContext(r.Context())
	if provider == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}
	identity, ok := provider.Identity()
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}
	perms := identity.Role.Permissions
	if perms == nil {
		perms = []rbac.Permission{}
	}
	httpx.JSON(w, http.StatusOK, meResponse{User: identity.User, Role: identity.Role, Permissions: perms})
}

// BearerMiddleware resolves the Authorization bearer token against the
// registry and attaches a restored Provider to the request. Requests without
// a live session get an anonymous provider. Sessions of users revoked since
// login, as reported by refresher, are destroyed.
func BearerMiddleware(registry *Registry, authn auth.Authenticator, refresher auth.Refresher, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			storage := auth.NewMemoryStorage()
			token := bearerToken(r)
			found := false
			if token != "" {
				sess, err := registry.Get(ctx, token)
				switch {
				case err == nil:
					if err := auth.WriteIdentity(storage, sess.Identity()); err != nil {
						logger.Error("encode session identity", slog.Any("error", err))
					}
					found = true
				case errors.Is(err, ErrNotFound):
				default:
					logger.Error("resolve session", slog.Any("error", err))
					httpx.RespondError(w, err)
					return
				}
			}
			provider := auth.NewProvider(authn, storage, logger)
			provider.Restore(ctx)
			if err := provider.Revalidate(ctx, refresher); err != nil {
				logger.WarnContext(ctx, "revalidate session identity", slog.Any("error", err))
			}
			switch {
			case found && provider.State() == auth.StateAuthenticated:
				ctx = context.WithValue(ctx, tokenContextKey{}, token)
			case found:
				if err := registry.Destroy(ctx, token); err != nil {
					logger.WarnContext(ctx, "destroy revoked session", slog.Any("error", err))
				}
			}
			next.ServeHTTP(w, r.WithContext(auth.ContextWithProvider(ctx, provider)))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func tokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenContextKey{}).(string)
	return token
}
