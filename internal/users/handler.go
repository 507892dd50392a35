package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/roommend/roommend/internal/auth"
	"github.com/roommend/roommend/internal/rbac"
	"github.com/roommend/roommend/internal/shared"
	"github.com/roommend/roommend/internal/view"
)

// RoleLister lists the roles users can be assigned to.
type RoleLister interface {
	ListRoles(ctx context.Context, organizationID string) ([]rbac.Role, error)
}

// Handler manages user management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	roles     RoleLister
	templates *view.Engine
	guard     rbac.Guard
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, roles RoleLister, templates *view.Engine, guard rbac.Guard) *Handler {
	return &Handler{logger: logger, service: service, roles: roles, templates: templates, guard: guard}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(rbac.RequireAll(rbac.PermManageUsers)))
		r.Get("/", h.listUsers)
		r.Get("/new", h.showCreateUserForm)
		r.Post("/", h.createUser)
		r.Post("/{userID}/role", h.changeRole)
		r.Post("/{userID}/deactivate", h.deactivateUser)
	})
}

type formErrors map[string]string

const usersPath = "/app/settings/users"

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	identity, ok := currentIdentity(r)
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	orgID := identity.User.OrganizationID
	data := map[string]any{"Users": []auth.User{}, "Roles": []rbac.Role{}, "Errors": formErrors{}}
	users, err := h.service.ListUsers(r.Context(), orgID)
	if err == nil {
		data["Users"] = users
		var roles []rbac.Role
		roles, err = h.roles.ListRoles(r.Context(), orgID)
		data["Roles"] = roles
	}
	if err != nil {
		h.logger.Error("list users failed", slog.Any("error", err))
		data["Errors"] = formErrors{"general": shared.UserSafeMessage(err)}
		h.render(w, r, "pages/users_list.html", "Users", data, http.StatusInternalServerError)
		return
	}
	if usage, err := h.service.CheckUserLimit(r.Context(), orgID); err == nil {
		data["Seats"] = usage
	} else {
		h.logger.Warn("seat usage unavailable", slog.Any("error", err))
	}
	h.render(w, r, "pages/users_list.html", "Users", data, http.StatusOK)
}

func (h *Handler) showCreateUserForm(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, NewUser{}, formErrors{}, http.StatusOK)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	identity, ok := currentIdentity(r)
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.renderForm(w, r, NewUser{}, formErrors{"general": "Invalid form submission"}, http.StatusBadRequest)
		return
	}
	in := NewUser{
		FirstName: r.PostFormValue("first_name"),
		LastName:  r.PostFormValue("last_name"),
		Email:     r.PostFormValue("email"),
		Phone:     r.PostFormValue("phone"),
		Password:  r.PostFormValue("password"),
		RoleID:    r.PostFormValue("role_id"),
	}
	user, err := h.service.CreateUser(r.Context(), identity.User.OrganizationID, in)
	if err != nil {
		in.Password = ""
		var verr *shared.ValidationError
		switch {
		case errors.Is(err, ErrUserLimitReached):
			h.renderForm(w, r, in, formErrors{"general": "Your plan's user limit has been reached"}, http.StatusConflict)
		case errors.As(err, &verr):
			h.renderForm(w, r, in, formErrors{fieldKey(verr.Field): verr.Message}, http.StatusBadRequest)
		default:
			h.logger.Error("create user failed", slog.Any("error", err))
			h.renderForm(w, r, in, formErrors{"general": shared.UserSafeMessage(err)}, http.StatusInternalServerError)
		}
		return
	}
	h.logger.Info("user created", slog.String("user_id", user.ID), slog.String("by", identity.User.ID))
	redirectWithFlash(w, r, usersPath, "success", fmt.Sprintf("User %s created", user.FullName()))
}

func (h *Handler) changeRole(w http.ResponseWriter, r *http.Request) {
	identity, ok := currentIdentity(r)
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	err := h.service.ChangeRole(r.Context(), identity.User.OrganizationID, chi.URLParam(r, "userID"), r.PostFormValue("role_id"))
	if err != nil {
		h.flashError(r, "change role failed", err)
	} else {
		shared.Flash(r.Context(), "success", "Role updated")
	}
	http.Redirect(w, r, usersPath, http.StatusSeeOther)
}

func (h *Handler) deactivateUser(w http.ResponseWriter, r *http.Request) {
	identity, ok := currentIdentity(r)
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	err := h.service.Deactivate(r.Context(), identity.User.OrganizationID, identity.User.ID, chi.URLParam(r, "userID"))
	if err != nil {
		h.flashError(r, "deactivate user failed", err)
	} else {
		shared.Flash(r.Context(), "success", "User deactivated")
	}
	http.Redirect(w, r, usersPath, http.StatusSeeOther)
}

func (h *Handler) flashError(r *http.Request, msg string, err error) {
	if !errors.Is(err, shared.ErrValidation) && !errors.Is(err, shared.ErrNotFound) {
		h.logger.Error(msg, slog.Any("error", err))
	}
	var verr *shared.ValidationError
	if errors.As(err, &verr) {
		shared.Flash(r.Context(), "error", verr.Message)
		return
	}
	shared.Flash(r.Context(), "error", shared.UserSafeMessage(err))
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, form NewUser, errs formErrors, status int) {
	var roles []rbac.Role
	if identity, ok := currentIdentity(r); ok {
		var err error
		roles, err = h.roles.ListRoles(r.Context(), identity.User.OrganizationID)
		if err != nil {
			h.logger.Error("list roles failed", slog.Any("error", err))
		}
	}
	h.render(w, r, "pages/user_form.html", "New User", map[string]any{"Form": form, "Roles": roles, "Errors": errs}, status)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template, title string, data map[string]any, status int) {
	viewData := view.TemplateData{Title: title, Data: data}
	if err := h.templates.RenderPage(w, r, status, template, viewData); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
	}
}

func fieldKey(field string) string {
	if field == "" {
		return "general"
	}
	return field
}

func currentIdentity(r *http.Request) (auth.Identity, bool) {
	provider := auth.ProviderFromContext(r.Context())
	if provider == nil {
		return auth.Identity{}, false
	}
	return provider.Identity()
}

func redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	shared.Flash(r.Context(), kind, message)
	http.Redirect(w, r, location, http.StatusSeeOther)
}
