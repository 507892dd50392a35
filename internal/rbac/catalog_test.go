package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roommend/roommend/internal/shared"
)

func TestListPermissionsOrder(t *testing.T) {
	perms := ListPermissions()
	require.Len(t, perms, 17)
	assert.Equal(t, PermManageUsers, perms[0].ID)
	assert.Equal(t, PermAccessSettings, perms[len(perms)-1].ID)

	seen := make(map[Permission]bool)
	for _, p := range perms {
		assert.False(t, seen[p.ID], "duplicate %s", p.ID)
		seen[p.ID] = true
		assert.NotEmpty(t, p.Label)
		assert.NotEmpty(t, p.Category)
	}
}

func TestListPermissionsReturnsCopy(t *testing.T) {
	perms := ListPermissions()
	perms[0].Label = "tampered"
	assert.Equal(t, "Manage Users", ListPermissions()[0].Label)
}

func TestLookupPermission(t *testing.T) {
	info, ok := LookupPermission(PermCheckIn)
	require.True(t, ok)
	assert.Equal(t, "Booking", info.Category)

	_, ok = LookupPermission("Manage_Users")
	assert.False(t, ok)
	assert.False(t, Permission("delete_everything").Known())
}

func TestPermissionsByCategory(t *testing.T) {
	groups := PermissionsByCategory()
	require.NotEmpty(t, groups)
	assert.Equal(t, "User Management", groups[0].Category)

	total := 0
	for _, g := range groups {
		total += len(g.Permissions)
		for _, p := range g.Permissions {
			assert.Equal(t, g.Category, p.Category)
		}
	}
	assert.Equal(t, len(ListPermissions()), total)
}

func TestParsePermissions(t *testing.T) {
	perms, err := ParsePermissions([]string{" view_guests", "check_in", "", "view_guests"})
	require.NoError(t, err)
	assert.Equal(t, []Permission{PermViewGuests, PermCheckIn}, perms)

	_, err = ParsePermissions([]string{"view_guests", "fly_drones"})
	require.ErrorIs(t, err, shared.ErrValidation)
	assert.Contains(t, err.Error(), "fly_drones")

	perms, err = ParsePermissions(nil)
	require.NoError(t, err)
	assert.Empty(t, perms)
}
