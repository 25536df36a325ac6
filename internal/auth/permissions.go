package auth

import "time"

// Permission is a platform capability granted through an AdminRole flag.
type Permission uint8

const (
	PermManageAdmins Permission = iota + 1
	PermManageUsers
	PermManageCompanies
	PermViewReports
	PermManageSystem
	PermAccessBilling
	PermManageSupport
)

// Permissions lists every defined permission.
var Permissions = []Permission{
	PermManageAdmins,
	PermManageUsers,
	PermManageCompanies,
	PermViewReports,
	PermManageSystem,
	PermAccessBilling,
	PermManageSupport,
}

func (p Permission) String() string {
	switch p {
	case PermManageAdmins:
		return "manage_admins"
	case PermManageUsers:
		return "manage_users"
	case PermManageCompanies:
		return "manage_companies"
	case PermViewReports:
		return "view_reports"
	case PermManageSystem:
		return "manage_system"
	case PermAccessBilling:
		return "access_billing"
	case PermManageSupport:
		return "manage_support"
	default:
		return "unknown"
	}
}

// AdminRole is a named bundle of capability flags for system admins.
type AdminRole struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	ManageAdmins    bool      `json:"manage_admins"`
	ManageUsers     bool      `json:"manage_users"`
	ManageCompanies bool      `json:"manage_companies"`
	ViewReports     bool      `json:"view_reports"`
	ManageSystem    bool      `json:"manage_system"`
	AccessBilling   bool      `json:"access_billing"`
	ManageSupport   bool      `json:"manage_support"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"created_at"`
}

// HasPermission reads the role flag for p. Unknown permissions are denied.
func HasPermission(role AdminRole, p Permission) bool {
	switch p {
	case PermManageAdmins:
		return role.ManageAdmins
	case PermManageUsers:
		return role.ManageUsers
	case PermManageCompanies:
		return role.ManageCompanies
	case PermViewReports:
		return role.ViewReports
	case PermManageSystem:
		return role.ManageSystem
	case PermAccessBilling:
		return role.AccessBilling
	case PermManageSupport:
		return role.ManageSupport
	default:
		return false
	}
}

// BuiltinRoles is the reference set of admin roles seeded at install time.
func BuiltinRoles() []AdminRole {
	return []AdminRole{
		{
			ID: "role_platform_owner", Name: "Platform Owner",
			Description:  "Full platform access",
			ManageAdmins: true, ManageUsers: true, ManageCompanies: true, ViewReports: true,
			ManageSystem: true, AccessBilling: true, ManageSupport: true, Active: true,
		},
		{
			ID: "role_operations", Name: "Operations",
			Description: "Manages companies and their users",
			ManageUsers: true, ManageCompanies: true, ViewReports: true, ManageSupport: true, Active: true,
		},
		{
			ID: "role_billing", Name: "Billing",
			Description:   "Billing and revenue reports",
			AccessBilling: true, ViewReports: true, Active: true,
		},
		{
			ID: "role_support", Name: "Support",
			Description:   "Customer support",
			ManageSupport: true, ViewReports: true, Active: true,
		},
		{
			ID: "role_auditor", Name: "Auditor",
			Description: "Read-only reporting",
			ViewReports: true, Active: true,
		},
	}
}
