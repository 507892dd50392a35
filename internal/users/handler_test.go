package users

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roommend/roommend/internal/auth"
	"github.com/roommend/roommend/internal/rbac"
	"github.com/roommend/roommend/internal/shared"
	"github.com/roommend/roommend/internal/view"
)

type fixture struct {
	router http.Handler
	repo   *memoryRepo
	sess   *shared.Session
}

func newFixture(t *testing.T, roleID string) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine, err := view.NewEngine()
	require.NoError(t, err)

	admin := auth.User{ID: "admin", OrganizationID: "org-1", Email: "admin@grandbohabs.com", FirstName: "Ada", LastName: "Admin", RoleID: roleID, IsActive: true}
	repo := newMemoryRepo(admin)
	guard := rbac.Guard{Principal: auth.PrincipalFromContext, Logger: logger}
	h := NewHandler(logger, newTestService(repo), testRoles, engine, guard)

	f := &fixture{repo: repo, sess: &shared.Session{ID: "sess-1"}}
	require.NoError(t, auth.WriteIdentity(f.sess, auth.Identity{User: admin, Role: testRoles[roleID]}))

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(shared.ContextWithSession(req.Context(), f.sess)))
		})
	})
	r.Use(auth.IdentityMiddleware(nil, nil, logger))
	r.Route(usersPath, h.MountRoutes)
	f.router = r
	return f
}

func (f *fixture) do(method, path string, form url.Values) *httptest.ResponseRecorder {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestListUsersShowsSeats(t *testing.T) {
	f := newFixture(t, "role-admin")
	rec := f.do(http.MethodGet, usersPath+"/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "admin@grandbohabs.com")
	assert.Contains(t, body, "1 of 5 seats used")
	assert.Contains(t, body, "Never")
}

func TestUsersRequireManageUsers(t *testing.T) {
	f := newFixture(t, "role-fd")
	rec := f.do(http.MethodGet, usersPath+"/", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/unauthorized", rec.Header().Get("Location"))
}

func TestCreateUserForm(t *testing.T) {
	f := newFixture(t, "role-admin")
	rec := f.do(http.MethodPost, usersPath+"/", url.Values{
		"first_name": {"Maria"},
		"last_name":  {"Santos"},
		"email":      {"maria@grandbohabs.com"},
		"password":   {"welcome-123"},
		"role_id":    {"role-fd"},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Len(t, f.repo.users, 2)
	flash := f.sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "User Maria Santos created", flash.Message)
}

func TestCreateUserFormErrors(t *testing.T) {
	f := newFixture(t, "role-admin")
	rec := f.do(http.MethodPost, usersPath+"/", url.Values{
		"first_name": {"Maria"},
		"last_name":  {"Santos"},
		"email":      {"maria@grandbohabs.com"},
		"password":   {"short"},
		"role_id":    {"role-fd"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "must be at least 8 characters")
	assert.Len(t, f.repo.users, 1)
}

func TestCreateUserLimitReached(t *testing.T) {
	f := newFixture(t, "role-admin")
	f.repo.limits["org-1"] = 1
	rec := f.do(http.MethodPost, usersPath+"/", url.Values{
		"first_name": {"Maria"},
		"last_name":  {"Santos"},
		"email":      {"maria@grandbohabs.com"},
		"password":   {"welcome-123"},
		"role_id":    {"role-fd"},
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "user limit has been reached")
}

func TestDeactivateSelfRefused(t *testing.T) {
	f := newFixture(t, "role-admin")
	rec := f.do(http.MethodPost, usersPath+"/admin/deactivate", url.Values{})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.True(t, f.repo.users["admin"].IsActive)
	flash := f.sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "you cannot deactivate your own account", flash.Message)
}
