// Package dashboard renders the signed-in area: the landing dashboard, the
// module pages and the permission-filtered navigation.
package dashboard

import (
	"strings"

	"github.com/roommend/roommend/internal/rbac"
	"github.com/roommend/roommend/internal/view"
)

// MenuItem is a sidebar entry. Items without permissions are always visible;
// others need any one of their permissions.
type MenuItem struct {
	Label       string
	Href        string
	Icon        string
	Permissions []rbac.Permission
}

// Menu is the sidebar in display order.
var Menu = []MenuItem{
	{Label: "Dashboard", Href: "/app", Icon: "📊"},
	{Label: "Reservations", Href: "/app/reservations", Icon: "📅", Permissions: []rbac.Permission{rbac.PermManageReservations, rbac.PermViewGuests}},
	{Label: "Rooms", Href: "/app/rooms", Icon: "🏨", Permissions: []rbac.Permission{rbac.PermManageRooms}},
	{Label: "Guests", Href: "/app/guests", Icon: "👥", Permissions: []rbac.Permission{rbac.PermViewGuests, rbac.PermManageGuests}},
	{Label: "Restaurant", Href: "/app/orders", Icon: "🍽️", Permissions: []rbac.Permission{rbac.PermManageOrders, rbac.PermManageMenu}},
	{Label: "Inventory", Href: "/app/inventory", Icon: "📦", Permissions: []rbac.Permission{rbac.PermManageInventory}},
	{Label: "Housekeeping", Href: "/app/housekeeping", Icon: "🧹", Permissions: []rbac.Permission{rbac.PermManageTasks}},
	{Label: "Staff", Href: "/app/staff", Icon: "👨‍💼", Permissions: []rbac.Permission{rbac.PermManageStaff}},
	{Label: "Reports", Href: "/app/reports", Icon: "📈", Permissions: []rbac.Permission{rbac.PermViewReports}},
	{Label: "Settings", Href: "/app/settings", Icon: "⚙️", Permissions: []rbac.Permission{rbac.PermAccessSettings, rbac.PermManageRoles}},
}

// Visible reports whether role may see the item.
func (m MenuItem) Visible(role *rbac.Role) bool {
	return len(m.Permissions) == 0 || rbac.HasAnyPermission(role, m.Permissions)
}

// VisibleMenu filters Menu for role and marks the entry matching currentPath.
func VisibleMenu(role *rbac.Role, currentPath string) []view.NavItem {
	var items []view.NavItem
	for _, m := range Menu {
		if !m.Visible(role) {
			continue
		}
		items = append(items, view.NavItem{Label: m.Label, Href: m.Href, Icon: m.Icon, Active: isActive(m.Href, currentPath)})
	}
	return items
}

func isActive(href, path string) bool {
	if href == "/app" {
		return path == "/app" || path == "/app/"
	}
	return path == href || strings.HasPrefix(path, href+"/")
}
