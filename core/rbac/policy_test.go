package rbac

import "testing"

func TestRoleRanking(t *testing.T) {
	if !AtLeast(RoleOwner, RoleMember) || !AtLeast(RoleAdmin, RoleMember) {
		t.Fatalf("higher roles must satisfy lower requirements")
	}
	if AtLeast(RoleMember, RoleAdmin) || AtLeast(RoleAdmin, RoleOwner) {
		t.Fatalf("lower roles must not satisfy higher requirements")
	}
	if AtLeast("stranger", RoleMember) {
		t.Fatalf("unknown role must rank below everything")
	}
}

func TestPolicyInheritance(t *testing.T) {
	p, err := NewPolicy()
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	cases := []struct {
		role string
		perm Permission
		want bool
	}{
		{RoleMember, PermWikiEdit, true},
		{RoleMember, PermWorkspaceManage, false},
		{RoleMember, PermWorkspaceDelete, false},
		{RoleAdmin, PermWikiEdit, true},
		{RoleAdmin, PermWorkspaceManage, true},
		{RoleAdmin, PermWorkspaceDelete, false},
		{RoleOwner, PermWikiEdit, true},
		{RoleOwner, PermWorkspaceManage, true},
		{RoleOwner, PermWorkspaceDelete, true},
		{"stranger", PermWikiView, false},
	}
	for _, tc := range cases {
		if got := p.Allowed(tc.role, tc.perm); got != tc.want {
			t.Fatalf("Allowed(%s, %s) = %v, want %v", tc.role, tc.perm, got, tc.want)
		}
	}
}
