package roles

import (
	"context"
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

type memoryRepo struct {
	roles map[string]rbac.Role
}

func (m *memoryRepo) ListRoles(ctx context.Context, organizationID string) ([]rbac.Role, error) {
	var out []rbac.Role
	for _, r := range m.roles {
		if r.OrganizationID == organizationID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memoryRepo) GetRole(ctx context.Context, id string) (rbac.Role, error) {
	r, ok := m.roles[id]
	if !ok {
		return rbac.Role{}, shared.ErrNotFound
	}
	return r, nil
}

func (m *memoryRepo) CreateRole(ctx context.Context, role rbac.Role) error {
	m.roles[role.ID] = role
	return nil
}

func (m *memoryRepo) UpdateRole(ctx context.Context, role rbac.Role) error {
	m.roles[role.ID] = role
	return nil
}

func (m *memoryRepo) DeleteRole(ctx context.Context, id string) error {
	delete(m.roles, id)
	return nil
}

var (
	adminRole = rbac.Role{ID: "role-admin", OrganizationID: "org-1", Name: "Admin", IsSystemRole: true,
		Permissions: []rbac.Permission{rbac.PermManageRoles, rbac.PermManageUsers}}
	housekeepingRole = rbac.Role{ID: "role-hk", OrganizationID: "org-1", Name: "Housekeeping", IsSystemRole: true,
		Permissions: []rbac.Permission{rbac.PermManageTasks}}
	customRole  = rbac.Role{ID: "role-bar", OrganizationID: "org-1", Name: "Bartender", Permissions: []rbac.Permission{rbac.PermManageMenu}}
	foreignRole = rbac.Role{ID: "role-x", OrganizationID: "org-2", Name: "Elsewhere"}
)

type fixture struct {
	router http.Handler
	repo   *memoryRepo
	sess   *shared.Session
}

func newFixture(t *testing.T, role rbac.Role) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine, err := view.NewEngine()
	require.NoError(t, err)
	repo := &memoryRepo{roles: map[string]rbac.Role{
		adminRole.ID: adminRole, housekeepingRole.ID: housekeepingRole, customRole.ID: customRole, foreignRole.ID: foreignRole,
	}}
	guard := rbac.Guard{Principal: auth.PrincipalFromContext, Logger: logger}
	h := NewHandler(logger, rbac.NewService(repo), engine, guard)

	f := &fixture{repo: repo, sess: &shared.Session{ID: "sess-1"}}
	identity := auth.Identity{
		User: auth.User{ID: "user-1", OrganizationID: "org-1", Email: "admin@grandbohabs.com", RoleID: role.ID, IsActive: true},
		Role: role,
	}
	require.NoError(t, auth.WriteIdentity(f.sess, identity))

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(shared.ContextWithSession(req.Context(), f.sess)))
		})
	})
	r.Use(auth.IdentityMiddleware(nil, nil, logger))
	r.Route("/app/settings/roles", h.MountRoutes)
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

func TestListRoles(t *testing.T) {
	f := newFixture(t, adminRole)
	rec := f.do(http.MethodGet, "/app/settings/roles/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Bartender")
	assert.Contains(t, body, "Housekeeping")
	assert.NotContains(t, body, "Elsewhere")
	assert.Contains(t, body, "/app/settings/roles/role-bar/edit")
	assert.NotContains(t, body, "/app/settings/roles/role-admin/edit")
}

func TestRolesRequireManageRoles(t *testing.T) {
	f := newFixture(t, housekeepingRole)
	rec := f.do(http.MethodGet, "/app/settings/roles/", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/unauthorized", rec.Header().Get("Location"))
}

func TestCreateRole(t *testing.T) {
	f := newFixture(t, adminRole)
	rec := f.do(http.MethodPost, "/app/settings/roles/", url.Values{
		"name":        {"Night Auditor"},
		"permissions": {"view_reports", "check_out"},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/app/settings/roles", rec.Header().Get("Location"))

	var created *rbac.Role
	for _, r := range f.repo.roles {
		if r.Name == "Night Auditor" {
			r := r
			created = &r
		}
	}
	require.NotNil(t, created)
	assert.Equal(t, "org-1", created.OrganizationID)
	assert.False(t, created.IsSystemRole)
	assert.Equal(t, []rbac.Permission{rbac.PermViewReports, rbac.PermCheckOut}, created.Permissions)
}

func TestCreateRoleRejectsUnknownPermission(t *testing.T) {
	f := newFixture(t, adminRole)
	rec := f.do(http.MethodPost, "/app/settings/roles/", url.Values{
		"name":        {"Pilot"},
		"permissions": {"fly_drones"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown permission(s): fly_drones")
	assert.Len(t, f.repo.roles, 4)
}

func TestCreateRoleRequiresName(t *testing.T) {
	f := newFixture(t, adminRole)
	rec := f.do(http.MethodPost, "/app/settings/roles/", url.Values{"name": {""}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Role name is required")
}

func TestUpdateRole(t *testing.T) {
	f := newFixture(t, adminRole)
	rec := f.do(http.MethodPost, "/app/settings/roles/role-bar", url.Values{
		"name":        {"Head Bartender"},
		"permissions": {"manage_orders"},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "Head Bartender", f.repo.roles["role-bar"].Name)
	assert.Equal(t, []rbac.Permission{rbac.PermManageOrders}, f.repo.roles["role-bar"].Permissions)
}

func TestEditFormPreselectsPermissions(t *testing.T) {
	f := newFixture(t, adminRole)
	rec := f.do(http.MethodGet, "/app/settings/roles/role-bar/edit", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `value="manage_menu" checked`)
}

func TestDeleteSystemRoleRefused(t *testing.T) {
	f := newFixture(t, adminRole)
	rec := f.do(http.MethodPost, "/app/settings/roles/role-hk/delete", url.Values{})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Contains(t, f.repo.roles, "role-hk")
	flash := f.sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "error", flash.Kind)
}

func TestDeleteCustomRole(t *testing.T) {
	f := newFixture(t, adminRole)
	rec := f.do(http.MethodPost, "/app/settings/roles/role-bar/delete", url.Values{})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.NotContains(t, f.repo.roles, "role-bar")
}

func TestForeignRoleIsHidden(t *testing.T) {
	f := newFixture(t, adminRole)
	rec := f.do(http.MethodPost, "/app/settings/roles/role-x/delete", url.Values{})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Contains(t, f.repo.roles, "role-x")
	flash := f.sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "The requested record was not found", flash.Message)
}
