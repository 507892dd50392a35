package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/roommend/roommend/internal/rbac"
	"github.com/roommend/roommend/internal/shared"
)

// State is the lifecycle state of a Provider.
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateAuthenticated
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// ErrLoginInProgress is returned when a login is submitted while another one
// for the same client is still pending.
var ErrLoginInProgress = errors.New("auth: login already in progress")

// Authenticator verifies credentials and resolves the identity.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (Identity, error)
}

// Refresher reloads the current identity of a user. It returns
// shared.ErrInvalidCredentials when the user may no longer sign in.
type Refresher interface {
	Refresh(ctx context.Context, userID string) (Identity, error)
}

// Provider tracks the identity of one client and persists it to Storage so
// it survives restarts.
type Provider struct {
	authn   Authenticator
	storage Storage
	logger  *slog.Logger

	mu       sync.Mutex
	state    State
	identity *Identity
	pending  bool
}

// NewProvider returns an uninitialized provider. Call Restore before use.
func NewProvider(authn Authenticator, storage Storage, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{authn: authn, storage: storage, logger: logger}
}

// Restore loads a previously persisted identity. Unreadable storage is
// cleared and the provider becomes anonymous; it never fails.
func (p *Provider) Restore(ctx context.Context) State {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateUninitialized {
		return p.state
	}
	p.state = StateLoading

	identity, err := readIdentity(p.storage)
	switch {
	case err == nil:
		p.identity = &identity
		p.state = StateAuthenticated
	case errors.Is(err, errIdentityMissing):
		p.state = StateAnonymous
	default:
		p.logger.WarnContext(ctx, "discarding stored identity", slog.Any("error", err))
		ClearIdentity(p.storage)
		p.state = StateAnonymous
	}
	return p.state
}

// Login authenticates the client. Failures leave the previous state in
// place. If ctx is done by the time credentials are verified the outcome is
// discarded.
func (p *Provider) Login(ctx context.Context, email, password string) (Identity, error) {
	p.mu.Lock()
	if p.pending {
		p.mu.Unlock()
		return Identity{}, ErrLoginInProgress
	}
	p.pending = true
	previous := p.state
	p.state = StateLoading
	p.mu.Unlock()

	identity, err := p.authn.Authenticate(ctx, email, password)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = false
	if ctxErr := ctx.Err(); ctxErr != nil {
		p.state = settled(previous)
		return Identity{}, ctxErr
	}
	if err != nil {
		p.state = settled(previous)
		return Identity{}, err
	}
	if err := WriteIdentity(p.storage, identity); err != nil {
		p.state = settled(previous)
		return Identity{}, err
	}
	p.identity = &identity
	p.state = StateAuthenticated
	return identity, nil
}

// Logout forgets the identity and clears storage. Safe to call repeatedly.
func (p *Provider) Logout() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.identity = nil
	ClearIdentity(p.storage)
	p.state = StateAnonymous
}

// Revalidate reconciles a restored identity with the current user record.
// A revoked user is signed out; a changed user or role replaces the stored
// identity. Lookup failures are returned and leave the identity untouched.
func (p *Provider) Revalidate(ctx context.Context, refresher Refresher) error {
	current, ok := p.Identity()
	if !ok || refresher == nil {
		return nil
	}
	fresh, err := refresher.Refresh(ctx, current.User.ID)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateAuthenticated || p.identity == nil || p.identity.User.ID != current.User.ID {
		return nil
	}
	switch {
	case errors.Is(err, shared.ErrInvalidCredentials):
		p.logger.InfoContext(ctx, "signing out revoked user", slog.String("user_id", current.User.ID))
		p.identity = nil
		ClearIdentity(p.storage)
		p.state = StateAnonymous
		return nil
	case err != nil:
		return err
	}
	if sameGrant(current, fresh) {
		return nil
	}
	fresh.User.LastLogin = current.User.LastLogin
	if err := WriteIdentity(p.storage, fresh); err != nil {
		return err
	}
	p.identity = &fresh
	return nil
}

// State returns the current lifecycle state.
func (p *Provider) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Pending reports whether a login is awaiting the credential check.
func (p *Provider) Pending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending
}

// Identity returns the authenticated identity.
func (p *Provider) Identity() (Identity, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateAuthenticated || p.identity == nil {
		return Identity{}, false
	}
	return *p.identity, true
}

// HasPermission is false unless the provider is authenticated.
func (p *Provider) HasPermission(perm rbac.Permission) bool {
	return rbac.HasPermission(p.CurrentRole(), perm)
}

// HasAnyPermission is false unless the provider is authenticated.
func (p *Provider) HasAnyPermission(perms []rbac.Permission) bool {
	return rbac.HasAnyPermission(p.CurrentRole(), perms)
}

// HasAllPermissions is false unless the provider is authenticated.
func (p *Provider) HasAllPermissions(perms []rbac.Permission) bool {
	role := p.CurrentRole()
	if role == nil {
		return false
	}
	return rbac.HasAllPermissions(role, perms)
}

// IdentityState implements rbac.Principal.
func (p *Provider) IdentityState() rbac.IdentityState {
	switch p.State() {
	case StateAuthenticated:
		return rbac.IdentityAuthenticated
	case StateAnonymous:
		return rbac.IdentityAnonymous
	default:
		return rbac.IdentityLoading
	}
}

// CurrentRole implements rbac.Principal. It returns a copy of the role, or
// nil when not authenticated.
func (p *Provider) CurrentRole() *rbac.Role {
	identity, ok := p.Identity()
	if !ok {
		return nil
	}
	role := identity.Role
	return &role
}

func sameGrant(a, b Identity) bool {
	return a.User.UpdatedAt.Equal(b.User.UpdatedAt) &&
		a.User.RoleID == b.User.RoleID &&
		a.Role.ID == b.Role.ID &&
		a.Role.UpdatedAt.Equal(b.Role.UpdatedAt)
}

func settled(s State) State {
	if s == StateAuthenticated {
		return s
	}
	return StateAnonymous
}

var _ rbac.Principal = (*Provider)(nil)
