package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/roommend/roommend/internal/platform/httpx"
	"github.com/roommend/roommend/internal/view"
)

// PermissionsHandler exposes the permission catalog.
type PermissionsHandler struct {
	logger    *slog.Logger
	templates *view.Engine
	guard     Guard
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(logger *slog.Logger, templates *view.Engine, guard Guard) *PermissionsHandler {
	return &PermissionsHandler{logger: logger, templates: templates, guard: guard}
}

// MountRoutes registers the catalog page.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.With(h.guard.Require(RequireAll(PermManageRoles))).Get("/", h.listPermissions)
}

// MountAPI registers the JSON catalog for any authenticated client.
func (h *PermissionsHandler) MountAPI(r chi.Router) {
	r.With(h.guard.RequireAPI(Requirement{})).Get("/", h.listPermissionsJSON)
}

func (h *PermissionsHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	data := view.TemplateData{Title: "Permissions", Data: map[string]any{"Groups": PermissionsByCategory()}}
	if err := h.templates.RenderPage(w, r, http.StatusOK, "pages/permissions.html", data); err != nil {
		h.logger.Error("render permissions", slog.Any("error", err))
	}
}

func (h *PermissionsHandler) listPermissionsJSON(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": ListPermissions()})
}
