package rbac

import "sort"

// Permission is a capability tag in "area:action" form.
type Permission string

const (
	PermDashboardView Permission = "dashboard:view"

	PermEmployeesView       Permission = "employees:view"
	PermEmployeesEdit       Permission = "employees:edit"
	PermEmployeesEditSalary Permission = "employees:edit_salary"
	PermEmployeesDelete     Permission = "employees:delete"

	PermAttendanceView Permission = "attendance:view"
	PermAttendanceEdit Permission = "attendance:edit"
	PermShiftsView     Permission = "shifts:view"
	PermShiftsEdit     Permission = "shifts:edit"

	PermPayrollView    Permission = "payroll:view"
	PermPayrollEdit    Permission = "payroll:edit"
	PermPayrollApprove Permission = "payroll:approve"

	PermRecruitmentView Permission = "recruitment:view"
	PermRecruitmentEdit Permission = "recruitment:edit"

	PermCashView Permission = "cash:view"
	PermCashEdit Permission = "cash:edit"

	PermBranchesView       Permission = "branches:view"
	PermBranchesManage     Permission = "branches:manage"
	// PermBranchesAll grants scope over every branch, not only the home branch
	// and granted ones.
	PermBranchesAll        Permission = "branches:all"
	PermBranchAccessManage Permission = "branch_access:manage"
	PermUsersManage        Permission = "users:manage"
	PermPINsManage         Permission = "pins:manage"
	PermOperatorSwitch     Permission = "operator:switch"
	PermOperatorLogView    Permission = "operator_log:view"
)

var allPermissions = []Permission{
	PermDashboardView,
	PermEmployeesView, PermEmployeesEdit, PermEmployeesEditSalary, PermEmployeesDelete,
	PermAttendanceView, PermAttendanceEdit, PermShiftsView, PermShiftsEdit,
	PermPayrollView, PermPayrollEdit, PermPayrollApprove,
	PermRecruitmentView, PermRecruitmentEdit,
	PermCashView, PermCashEdit,
	PermBranchesView, PermBranchesManage, PermBranchesAll,
	PermBranchAccessManage, PermUsersManage, PermPINsManage,
	PermOperatorSwitch, PermOperatorLogView,
}

var baseEmployee = []Permission{
	PermDashboardView,
	PermShiftsView,
	PermAttendanceView,
	PermOperatorSwitch,
}

// rolePermissions is built once in init from the grant lists below.
var rolePermissions = map[Role]map[Permission]struct{}{}

var roleGrants = map[Role][][]Permission{
	RoleEmployee: {baseEmployee},
	RoleRecruiter: {baseEmployee, {
		PermEmployeesView,
		PermRecruitmentView,
		PermRecruitmentEdit,
	}},
	RoleAccountant: {baseEmployee, {
		PermCashView,
		PermCashEdit,
		PermPayrollView,
	}},
	RoleBranchManager: {baseEmployee, {
		PermEmployeesView,
		PermEmployeesEdit,
		PermAttendanceEdit,
		PermShiftsEdit,
		PermCashView,
		PermCashEdit,
		PermRecruitmentView,
		PermBranchesView,
		PermPINsManage,
		PermOperatorLogView,
	}},
	RoleChiefAccountant: {baseEmployee, {
		PermEmployeesView,
		PermEmployeesEditSalary,
		PermCashView,
		PermCashEdit,
		PermPayrollView,
		PermPayrollEdit,
		PermPayrollApprove,
		PermBranchesView,
		PermBranchesAll,
		PermOperatorLogView,
	}},
	RoleHR: {baseEmployee, {
		PermEmployeesView,
		PermEmployeesEdit,
		PermEmployeesEditSalary,
		PermEmployeesDelete,
		PermAttendanceEdit,
		PermShiftsEdit,
		PermPayrollView,
		PermPayrollEdit,
		PermRecruitmentView,
		PermRecruitmentEdit,
		PermBranchesView,
		PermBranchesAll,
		PermBranchAccessManage,
		PermUsersManage,
		PermPINsManage,
		PermOperatorLogView,
	}},
	RoleGeneralManager: {allPermissions},
	RoleCEO:            {allPermissions},
	RoleAdmin:          {allPermissions},
}

func init() {
	for role, groups := range roleGrants {
		set := make(map[Permission]struct{})
		for _, g := range groups {
			for _, p := range g {
				set[p] = struct{}{}
			}
		}
		rolePermissions[role] = set
	}
}

// HasPermission reports whether role holds perm. Unknown roles are evaluated
// as employee.
func HasPermission(role Role, perm Permission) bool {
	_, ok := rolePermissions[Normalize(string(role))][perm]
	return ok
}

// HasAnyPermission is false for an empty list.
func HasAnyPermission(role Role, perms ...Permission) bool {
	for _, p := range perms {
		if HasPermission(role, p) {
			return true
		}
	}
	return false
}

// HasAllPermissions is true for an empty list.
func HasAllPermissions(role Role, perms ...Permission) bool {
	for _, p := range perms {
		if !HasPermission(role, p) {
			return false
		}
	}
	return true
}

// PermissionsFor returns a sorted copy of the role's permission set.
func PermissionsFor(role Role) []Permission {
	set := rolePermissions[Normalize(string(role))]
	out := make([]Permission, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// PermissionNames is PermissionsFor as plain strings, for responses.
func PermissionNames(role Role) []string {
	perms := PermissionsFor(role)
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}

// AllPermissions returns every known permission.
func AllPermissions() []Permission {
	out := make([]Permission, len(allPermissions))
	copy(out, allPermissions)
	return out
}
