package rbac

// HasPermission reports whether role holds p. A nil role holds nothing.
func HasPermission(role *Role, p Permission) bool {
	if role == nil {
		return false
	}
	for _, granted := range role.Permissions {
		if granted == p {
			return true
		}
	}
	return false
}

// HasAnyPermission reports whether role holds at least one of perms.
// An empty list is never satisfied.
func HasAnyPermission(role *Role, perms []Permission) bool {
	for _, p := range perms {
		if HasPermission(role, p) {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether role holds every one of perms.
// An empty list is always satisfied, even for a nil role.
func HasAllPermissions(role *Role, perms []Permission) bool {
	for _, p := range perms {
		if !HasPermission(role, p) {
			return false
		}
	}
	return true
}
