package dashboard

import (
	"log/slog"
	"net/http"

	"github.com/roommend/roommend/internal/auth"
	"github.com/roommend/roommend/internal/shared"
	"github.com/roommend/roommend/internal/view"
)

// Decorator fills the page chrome from the request: CSRF token, pending
// flash message, and for signed-in users the viewer card and the sidebar.
func Decorator(csrf *shared.CSRFManager, logger *slog.Logger) func(r *http.Request, data *view.TemplateData) {
	return func(r *http.Request, data *view.TemplateData) {
		ctx := r.Context()
		if sess := shared.SessionFromContext(ctx); sess != nil {
			if data.CSRFToken == "" && csrf != nil {
				token, err := csrf.EnsureToken(ctx, sess)
				if err != nil {
					logger.Warn("issue csrf token", slog.Any("error", err))
				}
				data.CSRFToken = token
			}
			if data.Flash == nil {
				data.Flash = sess.PopFlash()
			}
		}
		provider := auth.ProviderFromContext(ctx)
		if provider == nil {
			return
		}
		identity, ok := provider.Identity()
		if !ok {
			return
		}
		name := identity.User.FullName()
		if name == "" {
			name = identity.User.Email
		}
		data.Viewer = &view.Viewer{Name: name, Email: identity.User.Email, RoleName: identity.Role.Name}
		data.Nav = VisibleMenu(&identity.Role, data.CurrentPath)
	}
}
