package auth

import "testing"

func TestHasPermissionFailsClosed(t *testing.T) {
	var empty AdminRole
	for _, p := range Permissions {
		if HasPermission(empty, p) {
			t.Fatalf("role with no flags granted %s", p)
		}
	}
	full := BuiltinRoles()[0]
	if HasPermission(full, Permission(0)) || HasPermission(full, Permission(200)) {
		t.Fatalf("unknown permission must be denied")
	}
}

func TestHasPermissionReadsMatchingFlag(t *testing.T) {
	cases := []struct {
		role AdminRole
		perm Permission
	}{
		{AdminRole{ManageAdmins: true}, PermManageAdmins},
		{AdminRole{ManageUsers: true}, PermManageUsers},
		{AdminRole{ManageCompanies: true}, PermManageCompanies},
		{AdminRole{ViewReports: true}, PermViewReports},
		{AdminRole{ManageSystem: true}, PermManageSystem},
		{AdminRole{AccessBilling: true}, PermAccessBilling},
		{AdminRole{ManageSupport: true}, PermManageSupport},
	}
	for _, tc := range cases {
		for _, p := range Permissions {
			want := p == tc.perm
			if got := HasPermission(tc.role, p); got != want {
				t.Fatalf("role for %s: HasPermission(%s) = %v, want %v", tc.perm, p, got, want)
			}
		}
	}
}

func TestPolicyByName(t *testing.T) {
	p, ok := PolicyByName("CanViewReports")
	if !ok || p.Permission != PermViewReports {
		t.Fatalf("unexpected policy %+v ok=%v", p, ok)
	}
	if _, ok := PolicyByName("canviewreports"); ok {
		t.Fatalf("policy names are case-sensitive")
	}
	if p, ok := PolicyByName("IsSystemAdmin"); !ok || p.Permission != 0 {
		t.Fatalf("IsSystemAdmin must carry no permission")
	}
}
