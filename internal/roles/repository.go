package roles

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roommend/roommend/internal/platform/db"
	"github.com/roommend/roommend/internal/rbac"
	"github.com/roommend/roommend/internal/shared"
)

// Repository provides PostgreSQL backed persistence for roles.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const roleColumns = `id, organization_id, name, COALESCE(description, ''), permissions, is_system_role, created_at, updated_at`

// ListRoles returns the roles of an organization, system roles first.
func (r *Repository) ListRoles(ctx context.Context, organizationID string) ([]rbac.Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles WHERE organization_id = $1 ORDER BY is_system_role DESC, name`, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []rbac.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

// GetRole fetches a role by ID.
func (r *Repository) GetRole(ctx context.Context, id string) (rbac.Role, error) {
	role, err := scanRole(r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return rbac.Role{}, shared.ErrNotFound
		}
		return rbac.Role{}, err
	}
	return role, nil
}

// CreateRole inserts a new role.
func (r *Repository) CreateRole(ctx context.Context, role rbac.Role) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO roles (id, organization_id, name, description, permissions, is_system_role, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8)`,
		role.ID, role.OrganizationID, role.Name, role.Description, rbac.Strings(role.Permissions), role.IsSystemRole, role.CreatedAt, role.UpdatedAt)
	return mapWriteError(err)
}

// UpdateRole replaces name, description and permissions of a role.
func (r *Repository) UpdateRole(ctx context.Context, role rbac.Role) error {
	tag, err := r.pool.Exec(ctx, `UPDATE roles SET name = $2, description = NULLIF($3, ''), permissions = $4, updated_at = $5 WHERE id = $1`,
		role.ID, role.Name, role.Description, rbac.Strings(role.Permissions), role.UpdatedAt)
	if err != nil {
		return mapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// DeleteRole removes a role. Roles still assigned to users cannot be removed.
func (r *Repository) DeleteRole(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1 AND NOT is_system_role`, id)
	if err != nil {
		return mapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func mapWriteError(err error) error {
	switch {
	case err == nil:
		return nil
	case db.IsUniqueViolation(err, ""):
		return shared.NewValidationError("name", "a role with this name already exists")
	case db.IsForeignKeyViolation(err, ""):
		return shared.NewValidationError("", "role is still assigned to users")
	default:
		return err
	}
}

func scanRole(row pgx.Row) (rbac.Role, error) {
	var (
		role  rbac.Role
		perms []string
	)
	if err := row.Scan(&role.ID, &role.OrganizationID, &role.Name, &role.Description, &perms, &role.IsSystemRole, &role.CreatedAt, &role.UpdatedAt); err != nil {
		return rbac.Role{}, err
	}
	role.Permissions = make([]rbac.Permission, len(perms))
	for i, p := range perms {
		role.Permissions[i] = rbac.Permission(p)
	}
	return role, nil
}

var _ rbac.RoleRepository = (*Repository)(nil)
