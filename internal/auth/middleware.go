package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"

	"golang.org/x/sync/singleflight"

	"github.com/roommend/roommend/internal/shared"
)

// IdentityMiddleware gives every request its own Provider over the cookie
// session slots and restores it before the handler runs. With a non-nil
// refresher the restored identity is checked against the user store, so
// deactivations and role changes apply on the next request.
func IdentityMiddleware(authn Authenticator, refresher Refresher, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var storage Storage
			if sess := shared.SessionFromContext(r.Context()); sess != nil {
				storage = sess
			} else {
				storage = NewMemoryStorage()
			}
			provider := NewProvider(authn, storage, logger)
			provider.Restore(r.Context())
			if err := provider.Revalidate(r.Context(), refresher); err != nil {
				logger.WarnContext(r.Context(), "revalidate identity", slog.Any("error", err))
			}
			next.ServeHTTP(w, r.WithContext(ContextWithProvider(r.Context(), provider)))
		})
	}
}

// CoalescingAuthenticator collapses identical concurrent credential checks
// from the same cookie session into one call.
type CoalescingAuthenticator struct {
	next  Authenticator
	group singleflight.Group
}

// NewCoalescingAuthenticator wraps next.
func NewCoalescingAuthenticator(next Authenticator) *CoalescingAuthenticator {
	return &CoalescingAuthenticator{next: next}
}

// Authenticate implements Authenticator. The shared check runs detached from
// the cancellation of whichever caller started it; each caller stops waiting
// when its own ctx is done.
func (c *CoalescingAuthenticator) Authenticate(ctx context.Context, email, password string) (Identity, error) {
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(flightKey(ctx, email, password), func() (any, error) {
		return c.next.Authenticate(detached, email, password)
	})
	select {
	case <-ctx.Done():
		return Identity{}, ctx.Err()
	case res := <-ch:
		identity, _ := res.Val.(Identity)
		return identity, res.Err
	}
}

func flightKey(ctx context.Context, email, password string) string {
	sessionID := ""
	if sess := shared.SessionFromContext(ctx); sess != nil {
		sessionID = sess.ID
	}
	sum := sha256.Sum256([]byte(NormalizeEmail(email) + "\x00" + password))
	return sessionID + ":" + hex.EncodeToString(sum[:])
}
