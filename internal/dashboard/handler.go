package dashboard

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/roommend/roommend/internal/auth"
	"github.com/roommend/roommend/internal/rbac"
	"github.com/roommend/roommend/internal/view"
)

// Page is a module page behind the route guard.
type Page struct {
	Slug        string
	Title       string
	Description string
	Requirement rbac.Requirement
}

// Pages lists the module pages mounted under /app.
var Pages = []Page{
	{Slug: "reservations", Title: "Reservations", Description: "Bookings, arrivals and departures.", Requirement: rbac.RequireAll(rbac.PermManageReservations)},
	{Slug: "rooms", Title: "Rooms", Description: "Room inventory and status.", Requirement: rbac.RequireAll(rbac.PermManageRooms)},
	{Slug: "guests", Title: "Guests", Description: "Guest profiles and history.", Requirement: rbac.RequireAll(rbac.PermViewGuests)},
	{Slug: "orders", Title: "Restaurant", Description: "Restaurant orders and menu.", Requirement: rbac.RequireAny(rbac.PermManageOrders, rbac.PermManageMenu)},
	{Slug: "inventory", Title: "Inventory", Description: "Stock levels and supplies.", Requirement: rbac.RequireAll(rbac.PermManageInventory)},
	{Slug: "housekeeping", Title: "Housekeeping", Description: "Cleaning tasks and room readiness.", Requirement: rbac.RequireAll(rbac.PermManageTasks)},
	{Slug: "staff", Title: "Staff", Description: "Team members and shifts.", Requirement: rbac.RequireAll(rbac.PermManageStaff)},
	{Slug: "reports", Title: "Reports", Description: "Occupancy and revenue analytics.", Requirement: rbac.RequireAll(rbac.PermViewReports)},
}

// SettingsRequirement guards the settings landing page.
var SettingsRequirement = rbac.RequireAny(rbac.PermAccessSettings, rbac.PermManageRoles)

type settingsLink struct {
	Label       string
	Href        string
	Description string
	Permission  rbac.Permission
}

var settingsLinks = []settingsLink{
	{Label: "Roles & Permissions", Href: "/app/settings/roles", Description: "Create roles and choose what they can do.", Permission: rbac.PermManageRoles},
	{Label: "Users", Href: "/app/settings/users", Description: "Invite staff and assign roles.", Permission: rbac.PermManageUsers},
	{Label: "Permission catalog", Href: "/app/settings/permissions", Description: "Every permission known to the system.", Permission: rbac.PermManageRoles},
}

// Handler serves the dashboard and module pages.
type Handler struct {
	logger    *slog.Logger
	templates *view.Engine
	guard     rbac.Guard
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, templates *view.Engine, guard rbac.Guard) *Handler {
	return &Handler{logger: logger, templates: templates, guard: guard}
}

// MountRoutes registers the /app pages.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.guard.Require(rbac.Requirement{})).Get("/", h.showDashboard)
	for _, page := range Pages {
		r.With(h.guard.Require(page.Requirement)).Get("/"+page.Slug, h.showPage(page))
	}
	r.With(h.guard.Require(SettingsRequirement)).Get("/settings", h.showSettings)
}

type shortcut struct {
	Label string
	Href  string
	Icon  string
}

func (h *Handler) showDashboard(w http.ResponseWriter, r *http.Request) {
	role := currentRole(r)
	shortcuts := []shortcut{}
	for _, m := range Menu[1:] {
		if m.Visible(role) {
			shortcuts = append(shortcuts, shortcut{Label: m.Label, Href: m.Href, Icon: m.Icon})
		}
	}
	h.render(w, r, "pages/dashboard.html", view.TemplateData{Title: "Dashboard", Data: map[string]any{"Shortcuts": shortcuts}})
}

func (h *Handler) showPage(page Page) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.render(w, r, "pages/placeholder.html", view.TemplateData{Title: page.Title, Data: map[string]any{"Description": page.Description}})
	}
}

func (h *Handler) showSettings(w http.ResponseWriter, r *http.Request) {
	role := currentRole(r)
	links := []settingsLink{}
	for _, l := range settingsLinks {
		if rbac.HasPermission(role, l.Permission) {
			links = append(links, l)
		}
	}
	h.render(w, r, "pages/settings.html", view.TemplateData{Title: "Settings", Data: map[string]any{"Links": links}})
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, name string, data view.TemplateData) {
	if err := h.templates.RenderPage(w, r, http.StatusOK, name, data); err != nil {
		h.logger.Error("render page", slog.String("page", name), slog.Any("error", err))
	}
}

func currentRole(r *http.Request) *rbac.Role {
	if p := auth.ProviderFromContext(r.Context()); p != nil {
		return p.CurrentRole()
	}
	return nil
}
