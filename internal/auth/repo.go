package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roommend/roommend/internal/rbac"
	"github.com/roommend/roommend/internal/shared"
)

// Repository is the credential/identity store. Lookups return
// shared.ErrNotFound for missing records.
type Repository interface {
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	FindUserByID(ctx context.Context, id string) (*User, error)
	FindRoleByID(ctx context.Context, id string) (*rbac.Role, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const selectUser = `SELECT id, organization_id, email, password_hash, first_name, last_name, COALESCE(phone, ''),
	role_id, is_active, last_login, created_at, updated_at FROM users`

// FindUserByEmail fetches a user by case-insensitive email.
func (r *PGRepository) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	row := r.pool.QueryRow(ctx, selectUser+` WHERE lower(email) = lower($1)`, email)
	user, err := ScanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// FindUserByID fetches a user by identifier.
func (r *PGRepository) FindUserByID(ctx context.Context, id string) (*User, error) {
	user, err := ScanUser(r.pool.QueryRow(ctx, selectUser+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// FindRoleByID fetches a role by its identifier.
func (r *PGRepository) FindRoleByID(ctx context.Context, id string) (*rbac.Role, error) {
	var (
		role  rbac.Role
		perms []string
	)
	err := r.pool.QueryRow(ctx, `SELECT id, organization_id, name, COALESCE(description, ''), permissions, is_system_role, created_at, updated_at
		FROM roles WHERE id = $1`, id).Scan(&role.ID, &role.OrganizationID, &role.Name, &role.Description, &perms, &role.IsSystemRole, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	role.Permissions = make([]rbac.Permission, len(perms))
	for i, p := range perms {
		role.Permissions[i] = rbac.Permission(p)
	}
	return &role, nil
}

// TouchLastLogin stores the last successful login time of a user.
func (r *PGRepository) TouchLastLogin(ctx context.Context, userID string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET last_login = $2 WHERE id = $1 AND (last_login IS NULL OR last_login < $2)`, userID, at.UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ScanUser reads a row selected with the users column list.
func ScanUser(row pgx.Row) (User, error) {
	var user User
	err := row.Scan(&user.ID, &user.OrganizationID, &user.Email, &user.PasswordHash, &user.FirstName, &user.LastName, &user.Phone,
		&user.RoleID, &user.IsActive, &user.LastLogin, &user.CreatedAt, &user.UpdatedAt)
	return user, err
}

var _ Repository = (*PGRepository)(nil)
