package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/roommend/roommend/internal/shared"
)

// RoleRepository is the persistence port for roles. GetRole returns
// shared.ErrNotFound for unknown ids.
type RoleRepository interface {
	ListRoles(ctx context.Context, organizationID string) ([]Role, error)
	GetRole(ctx context.Context, id string) (Role, error)
	CreateRole(ctx context.Context, role Role) error
	UpdateRole(ctx context.Context, role Role) error
	DeleteRole(ctx context.Context, id string) error
}

// Service orchestrates role management.
type Service struct {
	repo  RoleRepository
	now   func() time.Time
	newID func() string
}

// NewService constructs a Service backed by repo.
func NewService(repo RoleRepository) *Service {
	return &Service{
		repo:  repo,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// ListRoles returns the roles of an organization.
func (s *Service) ListRoles(ctx context.Context, organizationID string) ([]Role, error) {
	return s.repo.ListRoles(ctx, organizationID)
}

// GetRole fetches a role by ID.
func (s *Service) GetRole(ctx context.Context, id string) (Role, error) {
	return s.repo.GetRole(ctx, id)
}

// CreateRole validates and stores a new custom role.
func (s *Service) CreateRole(ctx context.Context, organizationID, name, description string, permissions []string) (Role, error) {
	organizationID = strings.TrimSpace(organizationID)
	if organizationID == "" {
		return Role{}, shared.NewValidationError("organization_id", "organization is required")
	}
	name, perms, err := validateRoleInput(name, permissions)
	if err != nil {
		return Role{}, err
	}
	now := s.now()
	role := Role{
		ID:             s.newID(),
		OrganizationID: organizationID,
		Name:           name,
		Description:    strings.TrimSpace(description),
		Permissions:    perms,
		IsSystemRole:   false,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.CreateRole(ctx, role); err != nil {
		return Role{}, fmt.Errorf("rbac: create role: %w", err)
	}
	return role, nil
}

// UpdateRole replaces name, description and the whole permission set of a
// custom role. System roles are refused.
func (s *Service) UpdateRole(ctx context.Context, id, name, description string, permissions []string) (Role, error) {
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return Role{}, err
	}
	if role.IsSystemRole {
		return Role{}, shared.ErrProtectedEntity
	}
	name, perms, err := validateRoleInput(name, permissions)
	if err != nil {
		return Role{}, err
	}
	role.Name = name
	role.Description = strings.TrimSpace(description)
	role.Permissions = perms
	role.UpdatedAt = s.now()
	if err := s.repo.UpdateRole(ctx, role); err != nil {
		return Role{}, fmt.Errorf("rbac: update role: %w", err)
	}
	return role, nil
}

// DeleteRole removes a custom role. Unknown roles are ignored; system roles
// are refused with shared.ErrProtectedEntity.
func (s *Service) DeleteRole(ctx context.Context, id string) error {
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil
		}
		return err
	}
	if role.IsSystemRole {
		return shared.ErrProtectedEntity
	}
	if err := s.repo.DeleteRole(ctx, id); err != nil && !errors.Is(err, shared.ErrNotFound) {
		return fmt.Errorf("rbac: delete role: %w", err)
	}
	return nil
}

// EnsureAssignable returns the role when it may be assigned to a user of organizationID.
func (s *Service) EnsureAssignable(ctx context.Context, roleID, organizationID string) (Role, error) {
	role, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Role{}, shared.NewValidationError("role_id", "unknown role")
		}
		return Role{}, err
	}
	if role.OrganizationID != organizationID {
		return Role{}, shared.NewValidationError("role_id", "role belongs to another organization")
	}
	return role, nil
}

func validateRoleInput(name string, permissions []string) (string, []Permission, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", nil, shared.NewValidationError("name", "role name is required")
	}
	perms, err := ParsePermissions(permissions)
	if err != nil {
		return "", nil, err
	}
	return name, perms, nil
}
