package rbac

// Role names. Keep these stable; they are part of auth contracts.
const (
	// RoleAdmin is staff with full dashboard access, including manual
	// balance adjustments.
	RoleAdmin = "admin"
	// RoleSupport is staff with read-only dashboard access.
	RoleSupport = "support"
	// RoleClient is a portal user scoped to a single billing account.
	RoleClient = "client"
)

func IsAdmin(role string) bool { return role == RoleAdmin }

func IsStaff(role string) bool { return role == RoleAdmin || role == RoleSupport }
