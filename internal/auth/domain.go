package auth

import (
	"strings"
	"time"

	"github.com/roommend/roommend/internal/rbac"
)

// User represents an account of an organization.
type User struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	Email          string     `json:"email"`
	PasswordHash   string     `json:"-"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	Phone          string     `json:"phone,omitempty"`
	RoleID         string     `json:"role_id"`
	IsActive       bool       `json:"is_active"`
	LastLogin      *time.Time `json:"last_login,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// FullName joins first and last name.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Identity is the authenticated user together with its role.
type Identity struct {
	User User      `json:"user"`
	Role rbac.Role `json:"role"`
}
