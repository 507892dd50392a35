package rbac

import (
	"fmt"
	"strings"

	"github.com/roommend/roommend/internal/shared"
)

// Permission is an atomic capability identifier. Identifiers are matched
// case-sensitively and are persisted on role records, so they must never be
// renamed without migrating stored roles.
type Permission string

// Permission identifiers known to the system.
const (
	PermManageUsers        Permission = "manage_users"
	PermManageRoles        Permission = "manage_roles"
	PermManageRooms        Permission = "manage_rooms"
	PermManageReservations Permission = "manage_reservations"
	PermViewGuests         Permission = "view_guests"
	PermManageGuests       Permission = "manage_guests"
	PermCheckIn            Permission = "check_in"
	PermCheckOut           Permission = "check_out"
	PermManageMenu         Permission = "manage_menu"
	PermManageOrders       Permission = "manage_orders"
	PermUpdateOrderStatus  Permission = "update_order_status"
	PermManageInventory    Permission = "manage_inventory"
	PermManageStaff        Permission = "manage_staff"
	PermUpdateRoomStatus   Permission = "update_room_status"
	PermManageTasks        Permission = "manage_tasks"
	PermViewReports        Permission = "view_reports"
	PermAccessSettings     Permission = "access_settings"
)

// PermissionInfo describes a catalog entry for display.
type PermissionInfo struct {
	ID       Permission `json:"id"`
	Label    string     `json:"label"`
	Category string     `json:"category"`
}

// PermissionGroup is a category with its permissions, in catalog order.
type PermissionGroup struct {
	Category    string           `json:"category"`
	Permissions []PermissionInfo `json:"permissions"`
}

var catalog = []PermissionInfo{
	{ID: PermManageUsers, Label: "Manage Users", Category: "User Management"},
	{ID: PermManageRoles, Label: "Manage Roles", Category: "User Management"},
	{ID: PermManageRooms, Label: "Manage Rooms", Category: "Room Management"},
	{ID: PermManageReservations, Label: "Manage Reservations", Category: "Booking"},
	{ID: PermViewGuests, Label: "View Guests", Category: "Guest Management"},
	{ID: PermManageGuests, Label: "Manage Guests", Category: "Guest Management"},
	{ID: PermCheckIn, Label: "Check-in Guests", Category: "Booking"},
	{ID: PermCheckOut, Label: "Check-out Guests", Category: "Booking"},
	{ID: PermManageMenu, Label: "Manage Menu Items", Category: "Restaurant"},
	{ID: PermManageOrders, Label: "Manage Orders", Category: "Restaurant"},
	{ID: PermUpdateOrderStatus, Label: "Update Order Status", Category: "Restaurant"},
	{ID: PermManageInventory, Label: "Manage Inventory", Category: "Inventory"},
	{ID: PermManageStaff, Label: "Manage Staff", Category: "Staff"},
	{ID: PermUpdateRoomStatus, Label: "Update Room Status", Category: "Room Management"},
	{ID: PermManageTasks, Label: "Manage Housekeeping Tasks", Category: "Housekeeping"},
	{ID: PermViewReports, Label: "View Reports", Category: "Analytics"},
	{ID: PermAccessSettings, Label: "Access Settings", Category: "System"},
}

var catalogIndex = func() map[Permission]int {
	idx := make(map[Permission]int, len(catalog))
	for i, p := range catalog {
		idx[p.ID] = i
	}
	return idx
}()

// ListPermissions returns the catalog in its fixed order.
func ListPermissions() []PermissionInfo {
	out := make([]PermissionInfo, len(catalog))
	copy(out, catalog)
	return out
}

// LookupPermission returns the catalog entry for id.
func LookupPermission(id Permission) (PermissionInfo, bool) {
	i, ok := catalogIndex[id]
	if !ok {
		return PermissionInfo{}, false
	}
	return catalog[i], true
}

// Known reports whether p is part of the catalog.
func (p Permission) Known() bool {
	_, ok := catalogIndex[p]
	return ok
}

func (p Permission) String() string {
	return string(p)
}

// PermissionsByCategory groups the catalog by category. Categories appear in
// the order of their first entry.
func PermissionsByCategory() []PermissionGroup {
	var groups []PermissionGroup
	pos := make(map[string]int)
	for _, p := range catalog {
		i, ok := pos[p.Category]
		if !ok {
			i = len(groups)
			pos[p.Category] = i
			groups = append(groups, PermissionGroup{Category: p.Category})
		}
		groups[i].Permissions = append(groups[i].Permissions, p)
	}
	return groups
}

// ParsePermissions converts raw identifiers into catalog permissions.
// Blank entries are skipped and duplicates collapsed; unknown identifiers are
// rejected.
func ParsePermissions(raw []string) ([]Permission, error) {
	seen := make(map[Permission]struct{}, len(raw))
	out := make([]Permission, 0, len(raw))
	var unknown []string
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		p := Permission(r)
		if !p.Known() {
			unknown = append(unknown, r)
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	if len(unknown) > 0 {
		return nil, shared.NewValidationError("permissions", fmt.Sprintf("unknown permission(s): %s", strings.Join(unknown, ", ")))
	}
	return out, nil
}

// Strings converts permissions to their identifiers.
func Strings(perms []Permission) []string {
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}
