package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubPrincipal struct {
	state IdentityState
	role  *Role
}

func (s stubPrincipal) IdentityState() IdentityState { return s.state }
func (s stubPrincipal) CurrentRole() *Role           { return s.role }

var (
	adminRole = &Role{Name: "Admin", Permissions: []Permission{
		PermManageUsers, PermManageRoles, PermManageRooms, PermManageReservations, PermViewGuests,
		PermManageGuests, PermCheckIn, PermCheckOut, PermManageMenu, PermManageOrders,
		PermUpdateOrderStatus, PermManageInventory, PermManageStaff, PermUpdateRoomStatus,
		PermManageTasks, PermViewReports, PermAccessSettings,
	}}
	housekeepingRole = &Role{Name: "Housekeeping", Permissions: []Permission{PermUpdateRoomStatus, PermManageTasks}}
)

func TestDecide(t *testing.T) {
	admin := stubPrincipal{state: IdentityAuthenticated, role: adminRole}
	housekeeper := stubPrincipal{state: IdentityAuthenticated, role: housekeepingRole}
	anonymous := stubPrincipal{state: IdentityAnonymous}
	loading := stubPrincipal{state: IdentityLoading}

	cases := []struct {
		name string
		p    Principal
		req  Requirement
		want Decision
	}{
		{"admin passes all", admin, RequireAll(PermManageUsers), DecisionAllow},
		{"housekeeper missing permission", housekeeper, RequireAll(PermManageUsers), DecisionRedirectUnauthorized},
		{"anonymous goes to login", anonymous, RequireAll(PermManageUsers), DecisionRedirectLogin},
		{"loading renders loading", loading, RequireAll(PermManageUsers), DecisionLoading},
		{"nil principal goes to login", nil, Requirement{}, DecisionRedirectLogin},
		{"anonymous with empty requirement goes to login", anonymous, Requirement{}, DecisionRedirectLogin},
		{"empty all requirement allows", housekeeper, RequireAll(), DecisionAllow},
		{"empty any requirement allows", housekeeper, RequireAny(), DecisionAllow},
		{"any mode one match", housekeeper, RequireAny(PermAccessSettings, PermManageTasks), DecisionAllow},
		{"any mode no match", housekeeper, RequireAny(PermAccessSettings, PermManageRoles), DecisionRedirectUnauthorized},
		{"all mode partial match", housekeeper, RequireAll(PermManageTasks, PermManageStaff), DecisionRedirectUnauthorized},
		{"authenticated without role", stubPrincipal{state: IdentityAuthenticated}, RequireAll(PermManageTasks), DecisionRedirectUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Decide(tc.p, tc.req))
		})
	}
}

func TestDecideReevaluatesAfterRoleChange(t *testing.T) {
	role := &Role{Permissions: []Permission{PermManageTasks}}
	p := stubPrincipal{state: IdentityAuthenticated, role: role}
	req := RequireAll(PermManageStaff)
	assert.Equal(t, DecisionRedirectUnauthorized, Decide(p, req))

	role.Permissions = append(role.Permissions, PermManageStaff)
	assert.Equal(t, DecisionAllow, Decide(p, req))
}

func TestDecisionAndModeStrings(t *testing.T) {
	assert.Equal(t, "allow", DecisionAllow.String())
	assert.Equal(t, "redirect_login", DecisionRedirectLogin.String())
	assert.Equal(t, "redirect_unauthorized", DecisionRedirectUnauthorized.String())
	assert.Equal(t, "loading", DecisionLoading.String())
	assert.Equal(t, "all", ModeAll.String())
	assert.Equal(t, "any", ModeAny.String())
}
