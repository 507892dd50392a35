package rbac

// IdentityState is the authentication state the guard observes.
type IdentityState int

const (
	// IdentityLoading means the identity is still being resolved.
	IdentityLoading IdentityState = iota
	// IdentityAnonymous means no identity is authenticated.
	IdentityAnonymous
	// IdentityAuthenticated means a user and role are available.
	IdentityAuthenticated
)

// Principal describes the client the guard evaluates.
type Principal interface {
	IdentityState() IdentityState
	CurrentRole() *Role
}

// Mode selects how a requirement list is matched.
type Mode int

const (
	// ModeAll requires every listed permission.
	ModeAll Mode = iota
	// ModeAny requires at least one listed permission.
	ModeAny
)

func (m Mode) String() string {
	if m == ModeAny {
		return "any"
	}
	return "all"
}

// Requirement is the permission gate of a protected view.
type Requirement struct {
	Permissions []Permission
	Mode        Mode
}

// RequireAll builds a requirement satisfied by roles holding every permission.
func RequireAll(perms ...Permission) Requirement {
	return Requirement{Permissions: perms, Mode: ModeAll}
}

// RequireAny builds a requirement satisfied by roles holding one of perms.
func RequireAny(perms ...Permission) Requirement {
	return Requirement{Permissions: perms, Mode: ModeAny}
}

// SatisfiedBy reports whether role meets the requirement. A requirement
// without permissions is met by any role, in both modes.
func (r Requirement) SatisfiedBy(role *Role) bool {
	if len(r.Permissions) == 0 {
		return true
	}
	if r.Mode == ModeAny {
		return HasAnyPermission(role, r.Permissions)
	}
	return HasAllPermissions(role, r.Permissions)
}

// Decision is the outcome of a guard evaluation.
type Decision int

const (
	// DecisionLoading renders a neutral loading indicator and navigates nowhere.
	DecisionLoading Decision = iota
	// DecisionRedirectLogin sends the client to the login entry point.
	DecisionRedirectLogin
	// DecisionRedirectUnauthorized sends the client to the access denied view.
	DecisionRedirectUnauthorized
	// DecisionAllow renders the protected content.
	DecisionAllow
)

func (d Decision) String() string {
	switch d {
	case DecisionLoading:
		return "loading"
	case DecisionRedirectLogin:
		return "redirect_login"
	case DecisionRedirectUnauthorized:
		return "redirect_unauthorized"
	case DecisionAllow:
		return "allow"
	default:
		return "unknown"
	}
}

// Decide evaluates req for p. Authentication is always checked before
// permissions; a nil principal counts as anonymous.
func Decide(p Principal, req Requirement) Decision {
	if p == nil {
		return DecisionRedirectLogin
	}
	switch p.IdentityState() {
	case IdentityLoading:
		return DecisionLoading
	case IdentityAuthenticated:
	default:
		return DecisionRedirectLogin
	}
	if !req.SatisfiedBy(p.CurrentRole()) {
		return DecisionRedirectUnauthorized
	}
	return DecisionAllow
}
