package rbac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type principalKey struct{}

type recordedDecision struct{ mode, decision string }

type decisionLog []recordedDecision

func (d *decisionLog) RecordGuardDecision(mode, decision string) {
	*d = append(*d, recordedDecision{mode, decision})
}

func newGuard(rec DecisionRecorder) Guard {
	return Guard{
		Principal: func(ctx context.Context) Principal {
			p, _ := ctx.Value(principalKey{}).(Principal)
			return p
		},
		Recorder: rec,
	}
}

func serve(t *testing.T, mw func(http.Handler) http.Handler, method, target string, p Principal) *httptest.ResponseRecorder {
	t.Helper()
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("protected"))
	}))
	req := httptest.NewRequest(method, target, nil)
	if p != nil {
		req = req.WithContext(context.WithValue(req.Context(), principalKey{}, p))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGuardRequireHTML(t *testing.T) {
	log := &decisionLog{}
	guard := newGuard(log)
	mw := guard.Require(RequireAll(PermManageUsers))

	rec := serve(t, mw, http.MethodGet, "/app/settings/users?page=2", stubPrincipal{state: IdentityAuthenticated, role: adminRole})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "protected", rec.Body.String())

	rec = serve(t, mw, http.MethodGet, "/app/settings/users?page=2", stubPrincipal{state: IdentityAuthenticated, role: housekeepingRole})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/unauthorized", rec.Header().Get("Location"))

	rec = serve(t, mw, http.MethodGet, "/app/settings/users?page=2", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login?next=%2Fapp%2Fsettings%2Fusers%3Fpage%3D2", rec.Header().Get("Location"))

	rec = serve(t, mw, http.MethodPost, "/app/settings/users", stubPrincipal{state: IdentityAnonymous})
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	rec = serve(t, mw, http.MethodGet, "/app/settings/users", stubPrincipal{state: IdentityLoading})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Loading...", rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "protected")

	require.Len(t, *log, 5)
	assert.Equal(t, recordedDecision{"all", "allow"}, (*log)[0])
	assert.Equal(t, recordedDecision{"all", "redirect_unauthorized"}, (*log)[1])
	assert.Equal(t, recordedDecision{"all", "loading"}, (*log)[4])
}

func TestGuardCustomPaths(t *testing.T) {
	guard := newGuard(nil)
	guard.LoginPath = "/signin"
	guard.UnauthorizedPath = "/denied"
	guard.Loading = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	mw := guard.Require(RequireAny(PermAccessSettings, PermManageRoles))

	rec := serve(t, mw, http.MethodGet, "/app/settings", stubPrincipal{state: IdentityAuthenticated, role: housekeepingRole})
	assert.Equal(t, "/denied", rec.Header().Get("Location"))

	rec = serve(t, mw, http.MethodGet, "/app/settings", stubPrincipal{state: IdentityAnonymous})
	assert.Equal(t, "/signin?next=%2Fapp%2Fsettings", rec.Header().Get("Location"))

	rec = serve(t, mw, http.MethodGet, "/app/settings", stubPrincipal{state: IdentityLoading})
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestGuardRequireAPI(t *testing.T) {
	guard := newGuard(nil)
	mw := guard.RequireAPI(RequireAll(PermViewReports))

	assert.Equal(t, http.StatusOK, serve(t, mw, http.MethodGet, "/api/reports", stubPrincipal{state: IdentityAuthenticated, role: adminRole}).Code)
	assert.Equal(t, http.StatusForbidden, serve(t, mw, http.MethodGet, "/api/reports", stubPrincipal{state: IdentityAuthenticated, role: housekeepingRole}).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(t, mw, http.MethodGet, "/api/reports", nil).Code)

	rec := serve(t, mw, http.MethodGet, "/api/reports", stubPrincipal{state: IdentityLoading})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}
