package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/roommend/roommend/internal/auth"
	"github.com/roommend/roommend/internal/rbac"
	"github.com/roommend/roommend/internal/shared"
)

// DefaultMaxUsers is the seat limit of organizations without an explicit one.
const DefaultMaxUsers = 5

// ErrUserLimitReached is returned when an organization has no free seats.
var ErrUserLimitReached = errors.New("users: organization user limit reached")

// SeatUsage describes how many seats of an organization are taken.
type SeatUsage struct {
	Used  int
	Limit int
}

// Available reports whether another active user can be added.
func (s SeatUsage) Available() bool {
	return s.Used < s.Limit
}

// NewUser is the input for CreateUser.
type NewUser struct {
	FirstName string `validate:"required,max=100"`
	LastName  string `validate:"required,max=100"`
	Email     string `validate:"required,email"`
	Phone     string `validate:"max=40"`
	Password  string `validate:"required,min=8"`
	RoleID    string `validate:"required"`
}

// RepositoryPort defines data access methods for users. CreateUser must
// return ErrUserLimitReached when the organization is full.
type RepositoryPort interface {
	ListUsers(ctx context.Context, organizationID string) ([]auth.User, error)
	GetUser(ctx context.Context, id string) (auth.User, error)
	CreateUser(ctx context.Context, user auth.User) error
	UpdateUserRole(ctx context.Context, userID, roleID string, at time.Time) error
	DeactivateUser(ctx context.Context, userID string, at time.Time) error
	SeatUsage(ctx context.Context, organizationID string) (SeatUsage, error)
}

// RoleChecker validates role assignments.
type RoleChecker interface {
	EnsureAssignable(ctx context.Context, roleID, organizationID string) (rbac.Role, error)
}

// Service handles user business logic.
type Service struct {
	repo      RepositoryPort
	roles     RoleChecker
	validator *validator.Validate
	now       func() time.Time
	newID     func() string
	cost      int
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, roles RoleChecker) *Service {
	return &Service{
		repo:      repo,
		roles:     roles,
		validator: validator.New(),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
		cost:      bcrypt.DefaultCost,
	}
}

// ListUsers returns the users of an organization.
func (s *Service) ListUsers(ctx context.Context, organizationID string) ([]auth.User, error) {
	return s.repo.ListUsers(ctx, organizationID)
}

// CheckUserLimit reports the seat usage of an organization.
func (s *Service) CheckUserLimit(ctx context.Context, organizationID string) (SeatUsage, error) {
	return s.repo.SeatUsage(ctx, organizationID)
}

// CreateUser validates input, hashes the password and stores the user.
func (s *Service) CreateUser(ctx context.Context, organizationID string, in NewUser) (auth.User, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = auth.NormalizeEmail(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	if err := s.validator.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return auth.User{}, shared.NewValidationError(verrs[0].Field(), fieldMessage(verrs[0]))
		}
		return auth.User{}, err
	}
	if _, err := s.roles.EnsureAssignable(ctx, in.RoleID, organizationID); err != nil {
		return auth.User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return auth.User{}, fmt.Errorf("users: hash password: %w", err)
	}
	now := s.now()
	user := auth.User{
		ID:             s.newID(),
		OrganizationID: organizationID,
		Email:          in.Email,
		PasswordHash:   string(hash),
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		Phone:          in.Phone,
		RoleID:         in.RoleID,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, ErrUserLimitReached) || errors.Is(err, shared.ErrValidation) {
			return auth.User{}, err
		}
		return auth.User{}, fmt.Errorf("users: create user: %w", err)
	}
	user.PasswordHash = ""
	return user, nil
}

// ChangeRole assigns roleID to a user of the organization.
func (s *Service) ChangeRole(ctx context.Context, organizationID, userID, roleID string) error {
	if _, err := s.ownedUser(ctx, organizationID, userID); err != nil {
		return err
	}
	if _, err := s.roles.EnsureAssignable(ctx, roleID, organizationID); err != nil {
		return err
	}
	return s.repo.UpdateUserRole(ctx, userID, roleID, s.now())
}

// Deactivate disables a user of the organization. Users cannot deactivate themselves.
func (s *Service) Deactivate(ctx context.Context, organizationID, actorID, userID string) error {
	if actorID == userID {
		return shared.NewValidationError("", "you cannot deactivate your own account")
	}
	if _, err := s.ownedUser(ctx, organizationID, userID); err != nil {
		return err
	}
	return s.repo.DeactivateUser(ctx, userID, s.now())
}

func (s *Service) ownedUser(ctx context.Context, organizationID, userID string) (auth.User, error) {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return auth.User{}, err
	}
	if user.OrganizationID != organizationID {
		return auth.User{}, shared.ErrNotFound
	}
	return user, nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "is invalid"
	}
}
