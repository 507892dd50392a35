// Package session keeps the server-side registry of authenticated sessions
// used by bearer-token API clients.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roommend/roommend/internal/auth"
	"github.com/roommend/roommend/internal/rbac"
)

// DefaultTTL is the lifetime of a registered session.
const DefaultTTL = 24 * time.Hour

var (
	// ErrNotFound is returned for unknown and expired sessions.
	ErrNotFound = errors.New("session: not found")
	// ErrExpired is returned when a store is asked to save a session that has already expired.
	ErrExpired = errors.New("session: already expired")
)

// Session is one authenticated user/role pair with an expiry.
type Session struct {
	ID        string    `json:"id"`
	User      auth.User `json:"user"`
	Role      rbac.Role `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether now is past ExpiresAt. A session is still live at
// exactly ExpiresAt.
func (s Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Store persists sessions. Get returns ErrNotFound for unknown ids.
type Store interface {
	Save(ctx context.Context, sess Session) error
	Get(ctx context.Context, id string) (Session, error)
	Delete(ctx context.Context, id string) error
}

// Option customises a Registry.
type Option func(*Registry)

// WithTTL overrides DefaultTTL. Non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(r *Registry) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// Registry issues and resolves sessions. Expired sessions are evicted when
// they are looked up; there is no background sweep.
type Registry struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
	newID func() string
}

// NewRegistry builds a Registry over store.
func NewRegistry(store Store, opts ...Option) *Registry {
	r := &Registry{
		store: store,
		ttl:   DefaultTTL,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// TTL returns the configured session lifetime.
func (r *Registry) TTL() time.Duration {
	return r.ttl
}

// Create registers a new session for identity.
func (r *Registry) Create(ctx context.Context, identity auth.Identity) (Session, error) {
	now := r.now().UTC()
	sess := Session{
		ID:        r.newID(),
		User:      identity.User,
		Role:      identity.Role,
		CreatedAt: now,
		ExpiresAt: now.Add(r.ttl),
	}
	sess.User.PasswordHash = ""
	if err := r.store.Save(ctx, sess); err != nil {
		return Session{}, fmt.Errorf("session: save: %w", err)
	}
	return sess, nil
}

// Get resolves a live session. Expired sessions are deleted and reported as ErrNotFound.
func (r *Registry) Get(ctx context.Context, id string) (Session, error) {
	if id == "" {
		return Session{}, ErrNotFound
	}
	sess, err := r.store.Get(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if sess.Expired(r.now()) {
		if err := r.store.Delete(ctx, id); err != nil {
			return Session{}, fmt.Errorf("session: evict expired: %w", err)
		}
		return Session{}, ErrNotFound
	}
	return sess, nil
}

// Destroy removes a session. Unknown ids are not an error.
func (r *Registry) Destroy(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return r.store.Delete(ctx, id)
}

// IsLoggedIn reports whether id refers to a live session.
func (r *Registry) IsLoggedIn(ctx context.Context, id string) bool {
	_, err := r.Get(ctx, id)
	return err == nil
}

// Identity returns the user/role pair of the session.
func (s Session) Identity() auth.Identity {
	return auth.Identity{User: s.User, Role: s.Role}
}
