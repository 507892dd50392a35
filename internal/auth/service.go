package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/cases"

	"github.com/roommend/roommend/internal/rbac"
	"github.com/roommend/roommend/internal/shared"
)

// LoginRecorder is notified after every successful authentication.
type LoginRecorder interface {
	RecordLogin(ctx context.Context, userID string, at time.Time) error
}

// AttemptRecorder counts authentication outcomes.
type AttemptRecorder interface {
	RecordLoginAttempt(outcome string)
}

// Service wraps authentication business rules.
type Service struct {
	repo     Repository
	logins   LoginRecorder
	attempts AttemptRecorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs a new Service. logins and attempts may be nil.
func NewService(repo Repository, logins LoginRecorder, attempts AttemptRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		logins:   logins,
		attempts: attempts,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// NormalizeEmail folds case and trims whitespace so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return cases.Fold().String(strings.TrimSpace(email))
}

// Authenticate validates credentials and resolves the user's role. Unknown
// emails, inactive users, wrong passwords and unresolvable roles all yield
// shared.ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (Identity, error) {
	identity, err := s.authenticate(ctx, email, password)
	switch {
	case err == nil:
		s.recordAttempt("success")
	case errors.Is(err, shared.ErrInvalidCredentials):
		s.recordAttempt("rejected")
	default:
		s.recordAttempt("error")
	}
	return identity, err
}

func (s *Service) authenticate(ctx context.Context, email, password string) (Identity, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return Identity{}, shared.ErrInvalidCredentials
	}
	user, err := s.repo.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Identity{}, shared.ErrInvalidCredentials
		}
		return Identity{}, fmt.Errorf("auth: find user: %w", err)
	}
	if !user.IsActive || user.PasswordHash == "" {
		return Identity{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return Identity{}, shared.ErrInvalidCredentials
	}
	role, err := s.roleOf(ctx, user)
	if err != nil {
		return Identity{}, err
	}

	now := s.now()
	if s.logins != nil {
		if err := s.logins.RecordLogin(ctx, user.ID, now); err != nil {
			s.logger.WarnContext(ctx, "record login", slog.String("user_id", user.ID), slog.Any("error", err))
		}
	}
	identity := Identity{User: *user, Role: *role}
	identity.User.PasswordHash = ""
	identity.User.LastLogin = &now
	return identity, nil
}

// Refresh reloads the identity of a signed-in user. Users that were removed or
// deactivated, or whose role is gone, yield shared.ErrInvalidCredentials.
func (s *Service) Refresh(ctx context.Context, userID string) (Identity, error) {
	user, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Identity{}, shared.ErrInvalidCredentials
		}
		return Identity{}, fmt.Errorf("auth: find user: %w", err)
	}
	if !user.IsActive {
		return Identity{}, shared.ErrInvalidCredentials
	}
	role, err := s.roleOf(ctx, user)
	if err != nil {
		return Identity{}, err
	}
	identity := Identity{User: *user, Role: *role}
	identity.User.PasswordHash = ""
	return identity, nil
}

func (s *Service) roleOf(ctx context.Context, user *User) (*rbac.Role, error) {
	role, err := s.repo.FindRoleByID(ctx, user.RoleID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("auth: find role: %w", err)
	}
	if role.OrganizationID != user.OrganizationID {
		s.logger.WarnContext(ctx, "user role belongs to another organization", slog.String("user_id", user.ID), slog.String("role_id", role.ID))
		return nil, shared.ErrInvalidCredentials
	}
	return role, nil
}

func (s *Service) recordAttempt(outcome string) {
	if s.attempts != nil {
		s.attempts.RecordLoginAttempt(outcome)
	}
}

var (
	_ Authenticator = (*Service)(nil)
	_ Refresher     = (*Service)(nil)
)
