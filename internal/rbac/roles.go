// Package rbac is the single source of truth for roles, permissions and the
// role hierarchy. Every table here is built once at package init and never
// mutated afterwards, so all lookups are pure functions.
package rbac

import "sort"

// Role is the job-level tag stored on a user and embedded in session tokens.
type Role string

const (
	RoleEmployee        Role = "employee"
	RoleRecruiter       Role = "recruiter"
	RoleAccountant      Role = "accountant"
	RoleBranchManager   Role = "branch_manager"
	RoleChiefAccountant Role = "chief_accountant"
	RoleHR              Role = "hr"
	RoleGeneralManager  Role = "general_manager"
	RoleCEO             Role = "ceo"
	RoleAdmin           Role = "admin"
)

// roleLevels orders roles for "can manage" checks (higher = more authority).
// Roles on the same level cannot manage each other.
var roleLevels = map[Role]int{
	RoleEmployee:        10,
	RoleRecruiter:       20,
	RoleAccountant:      20,
	RoleBranchManager:   40,
	RoleChiefAccountant: 50,
	RoleHR:              60,
	RoleGeneralManager:  80,
	RoleCEO:             90,
	RoleAdmin:           100,
}

// Normalize maps a raw role string to a known Role. Unknown or empty values
// fall back to the lowest-privilege role.
func Normalize(raw string) Role {
	r := Role(raw)
	if _, ok := roleLevels[r]; ok {
		return r
	}
	return RoleEmployee
}

// Valid reports whether raw names a known role.
func Valid(raw string) bool {
	_, ok := roleLevels[Role(raw)]
	return ok
}

// Level returns the hierarchy level of a role (unknown roles rank as employee).
func Level(r Role) int {
	return roleLevels[Normalize(string(r))]
}

// CanManageRole is true iff acting outranks target strictly.
func CanManageRole(acting, target Role) bool {
	return Level(acting) > Level(target)
}

// RoleIn reports whether r is one of allowed. It is the only place where role
// lists are compared.
func RoleIn(r Role, allowed ...Role) bool {
	r = Normalize(string(r))
	for _, a := range allowed {
		if a == r {
			return true
		}
	}
	return false
}

// Roles returns every known role ordered by level, then name.
func Roles() []Role {
	out := make([]Role, 0, len(roleLevels))
	for r := range roleLevels {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		li, lj := roleLevels[out[i]], roleLevels[out[j]]
		if li != lj {
			return li < lj
		}
		return out[i] < out[j]
	})
	return out
}

// RoleStrings is used by DTO validation tags and error messages.
func RoleStrings() []string {
	roles := Roles()
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}
