package domain

import "fmt"

// Role enumerates account roles. Staff roles are closed so that a typo in
// a call site fails at parse time instead of silently skipping a guard.
type Role string

const (
	RoleClient         Role = "client"
	RoleAdministration Role = "administration"
	RoleSysadmin       Role = "sysadmin"
	RoleInfrastructure Role = "infrastructure"
	RoleWSAdmin        Role = "wsadmin"
)

// AdministrativeRoles are the roles eligible to assign and work tickets.
var AdministrativeRoles = []Role{
	RoleAdministration,
	RoleSysadmin,
	RoleInfrastructure,
	RoleWSAdmin,
}

// IsAdministrative reports whether the role may act as a ticket manager.
func (r Role) IsAdministrative() bool {
	switch r {
	case RoleAdministration, RoleSysadmin, RoleInfrastructure, RoleWSAdmin:
		return true
	}
	return false
}

// ParseRole validates a raw role string.
func ParseRole(raw string) (Role, error) {
	switch Role(raw) {
	case RoleClient, RoleAdministration, RoleSysadmin, RoleInfrastructure, RoleWSAdmin:
		return Role(raw), nil
	}
	return "", fmt.Errorf("unknown role %q", raw)
}
