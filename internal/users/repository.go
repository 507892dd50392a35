package users

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roommend/roommend/internal/auth"
	"github.com/roommend/roommend/internal/platform/db"
	"github.com/roommend/roommend/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, organization_id, email, password_hash, first_name, last_name, COALESCE(phone, ''),
	role_id, is_active, last_login, created_at, updated_at`

// ListUsers returns the users of an organization.
func (r *Repository) ListUsers(ctx context.Context, organizationID string) ([]auth.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE organization_id = $1 ORDER BY first_name, last_name`, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []auth.User
	for rows.Next() {
		user, err := auth.ScanUser(rows)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = ""
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

// GetUser fetches a user by ID.
func (r *Repository) GetUser(ctx context.Context, id string) (auth.User, error) {
	user, err := auth.ScanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return auth.User{}, shared.ErrNotFound
		}
		return auth.User{}, err
	}
	user.PasswordHash = ""
	return user, nil
}

// CreateUser inserts a user while holding the organization row, so the seat
// limit cannot be exceeded by concurrent inserts.
func (r *Repository) CreateUser(ctx context.Context, user auth.User) error {
	err := db.WithTx(ctx, r.pool, pgx.ReadCommitted, func(tx pgx.Tx) error {
		var limit int
		err := tx.QueryRow(ctx, `SELECT COALESCE(max_users, $2) FROM organizations WHERE id = $1 FOR UPDATE`, user.OrganizationID, DefaultMaxUsers).Scan(&limit)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return shared.NewValidationError("organization_id", "unknown organization")
			}
			return err
		}
		var used int
		if err := tx.QueryRow(ctx, `SELECT count(*) FROM users WHERE organization_id = $1 AND is_active`, user.OrganizationID).Scan(&used); err != nil {
			return err
		}
		if !(SeatUsage{Used: used, Limit: limit}).Available() {
			return ErrUserLimitReached
		}
		_, err = tx.Exec(ctx, `INSERT INTO users (id, organization_id, email, password_hash, first_name, last_name, phone, role_id, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10, $11)`,
			user.ID, user.OrganizationID, user.Email, user.PasswordHash, user.FirstName, user.LastName, user.Phone,
			user.RoleID, user.IsActive, user.CreatedAt, user.UpdatedAt)
		return err
	})
	if db.IsUniqueViolation(err, "") {
		return shared.NewValidationError("Email", "is already registered")
	}
	return err
}

// UpdateUserRole assigns a role to a user.
func (r *Repository) UpdateUserRole(ctx context.Context, userID, roleID string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET role_id = $2, updated_at = $3 WHERE id = $1`, userID, roleID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// DeactivateUser marks a user inactive.
func (r *Repository) DeactivateUser(ctx context.Context, userID string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET is_active = FALSE, updated_at = $2 WHERE id = $1`, userID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SeatUsage counts active users against the organization limit.
func (r *Repository) SeatUsage(ctx context.Context, organizationID string) (SeatUsage, error) {
	var usage SeatUsage
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(o.max_users, $2),
			(SELECT count(*) FROM users u WHERE u.organization_id = o.id AND u.is_active)
		FROM organizations o WHERE o.id = $1`, organizationID, DefaultMaxUsers).Scan(&usage.Limit, &usage.Used)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SeatUsage{}, shared.ErrNotFound
		}
		return SeatUsage{}, err
	}
	return usage, nil
}

var _ RepositoryPort = (*Repository)(nil)
