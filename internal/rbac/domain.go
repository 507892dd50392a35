package rbac

import "time"

// Role is a named, organization-scoped bundle of permissions.
type Role struct {
	ID             string       `json:"id"`
	OrganizationID string       `json:"organization_id"`
	Name           string       `json:"name"`
	Description    string       `json:"description,omitempty"`
	Permissions    []Permission `json:"permissions"`
	IsSystemRole   bool         `json:"is_system_role"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// Grants is a nil-safe shorthand for HasPermission.
func (r *Role) Grants(p Permission) bool {
	return HasPermission(r, p)
}
