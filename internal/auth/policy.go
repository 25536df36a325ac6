package auth

import "strings"

// Policy is a named authorization check. A policy without a permission is
// satisfied by any active system admin.
type Policy struct {
	Name       string
	Permission Permission
}

var (
	IsSystemAdmin      = Policy{Name: "IsSystemAdmin"}
	CanManageAdmins    = Policy{Name: "CanManageAdmins", Permission: PermManageAdmins}
	CanManageUsers     = Policy{Name: "CanManageUsers", Permission: PermManageUsers}
	CanManageCompanies = Policy{Name: "CanManageCompanies", Permission: PermManageCompanies}
	CanViewReports     = Policy{Name: "CanViewReports", Permission: PermViewReports}
	CanManageSystem    = Policy{Name: "CanManageSystem", Permission: PermManageSystem}
	CanAccessBilling   = Policy{Name: "CanAccessBilling", Permission: PermAccessBilling}
	CanManageSupport   = Policy{Name: "CanManageSupport", Permission: PermManageSupport}
)

// Policies is the closed set of named policies.
var Policies = []Policy{
	IsSystemAdmin,
	CanManageAdmins,
	CanManageUsers,
	CanManageCompanies,
	CanViewReports,
	CanManageSystem,
	CanAccessBilling,
	CanManageSupport,
}

// PolicyByName finds a policy by its exact name.
func PolicyByName(name string) (Policy, bool) {
	name = strings.TrimSpace(name)
	for _, p := range Policies {
		if p.Name == name {
			return p, true
		}
	}
	return Policy{}, false
}
