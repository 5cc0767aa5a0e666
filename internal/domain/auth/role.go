package auth

// Role is carried in the access token. Users and their roles are managed by
// the identity service that issues tokens.
type Role string

const (
	RoleOwner    Role = "owner"
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleOwner, RoleManager, RoleEmployee:
		return true
	}
	return false
}

// CanManagePayroll reports whether the role may run, settle and decide payroll.
func (r Role) CanManagePayroll() bool {
	return r == RoleOwner || r == RoleManager
}
