package roles

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/roommend/roommend/internal/auth"
	"github.com/roommend/roommend/internal/rbac"
	"github.com/roommend/roommend/internal/shared"
	"github.com/roommend/roommend/internal/view"
)

// Handler manages role management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *rbac.Service
	templates *view.Engine
	guard     rbac.Guard
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *rbac.Service, templates *view.Engine, guard rbac.Guard) *Handler {
	return &Handler{logger: logger, service: service, templates: templates, guard: guard, validator: validator.New()}
}

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(rbac.RequireAll(rbac.PermManageRoles)))
		r.Get("/", h.listRoles)
		r.Get("/new", h.showCreateRoleForm)
		r.Post("/", h.createRole)
		r.Get("/{roleID}/edit", h.showEditRoleForm)
		r.Post("/{roleID}", h.updateRole)
		r.Post("/{roleID}/delete", h.deleteRole)
	})
}

type formErrors map[string]string

type roleForm struct {
	Name        string `validate:"required,max=100"`
	Description string `validate:"max=500"`
	Permissions []string
	Selected    map[string]bool
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	identity, ok := currentIdentity(r)
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	roles, err := h.service.ListRoles(r.Context(), identity.User.OrganizationID)
	if err != nil {
		h.logger.Error("list roles failed", slog.Any("error", err))
		h.render(w, r, "pages/roles_list.html", "Roles", map[string]any{"Roles": []rbac.Role{}, "Errors": formErrors{"general": shared.UserSafeMessage(err)}}, http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/roles_list.html", "Roles", map[string]any{"Roles": roles, "Errors": formErrors{}}, http.StatusOK)
}

func (h *Handler) showCreateRoleForm(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, "New Role", "/app/settings/roles", roleForm{Selected: map[string]bool{}}, formErrors{}, http.StatusOK)
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	identity, ok := currentIdentity(r)
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	form, errs, ok := h.parseForm(r)
	if !ok {
		h.renderForm(w, r, "New Role", "/app/settings/roles", form, errs, http.StatusBadRequest)
		return
	}
	role, err := h.service.CreateRole(r.Context(), identity.User.OrganizationID, form.Name, form.Description, form.Permissions)
	if err != nil {
		h.renderForm(w, r, "New Role", "/app/settings/roles", form, h.errorsFor(err), statusFor(err))
		return
	}
	h.logger.Info("role created", slog.String("role_id", role.ID), slog.String("by", identity.User.ID))
	redirectWithFlash(w, r, "/app/settings/roles", "success", "Role "+role.Name+" created")
}

func (h *Handler) showEditRoleForm(w http.ResponseWriter, r *http.Request) {
	role, ok := h.loadOwnedRole(w, r)
	if !ok {
		return
	}
	if role.IsSystemRole {
		redirectWithFlash(w, r, "/app/settings/roles", "error", shared.UserSafeMessage(shared.ErrProtectedEntity))
		return
	}
	form := roleForm{Name: role.Name, Description: role.Description, Permissions: rbac.Strings(role.Permissions)}
	form.Selected = selection(form.Permissions)
	h.renderForm(w, r, "Edit Role", "/app/settings/roles/"+role.ID, form, formErrors{}, http.StatusOK)
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	role, ok := h.loadOwnedRole(w, r)
	if !ok {
		return
	}
	action := "/app/settings/roles/" + role.ID
	form, errs, ok := h.parseForm(r)
	if !ok {
		h.renderForm(w, r, "Edit Role", action, form, errs, http.StatusBadRequest)
		return
	}
	updated, err := h.service.UpdateRole(r.Context(), role.ID, form.Name, form.Description, form.Permissions)
	if err != nil {
		if errors.Is(err, shared.ErrProtectedEntity) {
			redirectWithFlash(w, r, "/app/settings/roles", "error", shared.UserSafeMessage(err))
			return
		}
		h.renderForm(w, r, "Edit Role", action, form, h.errorsFor(err), statusFor(err))
		return
	}
	redirectWithFlash(w, r, "/app/settings/roles", "success", "Role "+updated.Name+" updated")
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	role, ok := h.loadOwnedRole(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteRole(r.Context(), role.ID); err != nil {
		if !errors.Is(err, shared.ErrProtectedEntity) && !errors.Is(err, shared.ErrValidation) {
			h.logger.Error("delete role failed", slog.String("role_id", role.ID), slog.Any("error", err))
		}
		redirectWithFlash(w, r, "/app/settings/roles", "error", shared.UserSafeMessage(err))
		return
	}
	redirectWithFlash(w, r, "/app/settings/roles", "success", "Role "+role.Name+" deleted")
}

func (h *Handler) loadOwnedRole(w http.ResponseWriter, r *http.Request) (rbac.Role, bool) {
	identity, ok := currentIdentity(r)
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return rbac.Role{}, false
	}
	role, err := h.service.GetRole(r.Context(), chi.URLParam(r, "roleID"))
	if err == nil && role.OrganizationID != identity.User.OrganizationID {
		err = shared.ErrNotFound
	}
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			h.logger.Error("load role failed", slog.Any("error", err))
		}
		redirectWithFlash(w, r, "/app/settings/roles", "error", shared.UserSafeMessage(err))
		return rbac.Role{}, false
	}
	return role, true
}

func (h *Handler) parseForm(r *http.Request) (roleForm, formErrors, bool) {
	errs := formErrors{}
	if err := r.ParseForm(); err != nil {
		errs["general"] = "Invalid form submission"
		return roleForm{Selected: map[string]bool{}}, errs, false
	}
	form := roleForm{
		Name:        r.PostFormValue("name"),
		Description: r.PostFormValue("description"),
		Permissions: r.PostForm["permissions"],
	}
	form.Selected = selection(form.Permissions)
	if err := h.validator.Struct(form); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				switch fe.Field() {
				case "Name":
					errs["name"] = "Role name is required and must be at most 100 characters"
				case "Description":
					errs["general"] = "Description must be at most 500 characters"
				}
			}
		}
		return form, errs, false
	}
	return form, errs, true
}

func (h *Handler) errorsFor(err error) formErrors {
	var verr *shared.ValidationError
	if errors.As(err, &verr) {
		switch verr.Field {
		case "name", "permissions":
			return formErrors{verr.Field: verr.Message}
		default:
			return formErrors{"general": verr.Message}
		}
	}
	h.logger.Error("save role failed", slog.Any("error", err))
	return formErrors{"general": shared.UserSafeMessage(err)}
}

func statusFor(err error) int {
	if errors.Is(err, shared.ErrValidation) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, title, action string, form roleForm, errs formErrors, status int) {
	h.render(w, r, "pages/role_form.html", title, map[string]any{
		"Action": action,
		"Form":   form,
		"Groups": rbac.PermissionsByCategory(),
		"Errors": errs,
	}, status)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template, title string, data map[string]any, status int) {
	viewData := view.TemplateData{Title: title, Data: data}
	if err := h.templates.RenderPage(w, r, status, template, viewData); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
	}
}

func currentIdentity(r *http.Request) (auth.Identity, bool) {
	provider := auth.ProviderFromContext(r.Context())
	if provider == nil {
		return auth.Identity{}, false
	}
	return provider.Identity()
}

func selection(perms []string) map[string]bool {
	out := make(map[string]bool, len(perms))
	for _, p := range perms {
		out[p] = true
	}
	return out
}

func redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	shared.Flash(r.Context(), kind, message)
	http.Redirect(w, r, location, http.StatusSeeOther)
}
