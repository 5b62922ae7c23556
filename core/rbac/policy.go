package rbac

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

type Permission string

const (
	PermWorkspaceView   Permission = "workspace.view"
	PermWorkspaceManage Permission = "workspace.manage"
	PermWorkspaceDelete Permission = "workspace.delete"
	PermMembersView     Permission = "members.view"
	PermMembersManage   Permission = "members.manage"
	PermInvitesManage   Permission = "invites.manage"
	PermWikiView        Permission = "wiki.view"
	PermWikiEdit        Permission = "wiki.edit"
	PermWikiDelete      Permission = "wiki.delete"
	PermTasksView       Permission = "tasks.view"
	PermTasksEdit       Permission = "tasks.edit"
	PermAgentsManage    Permission = "agents.manage"
	PermFeedView        Permission = "feed.view"
	PermFeedPost        Permission = "feed.post"
)

const policyModel = `
[request_definition]
r = sub, obj

[policy_definition]
p = sub, obj

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj
`

// rolePermissions maps each workspace role to the permissions it grants
// directly. Inheritance (owner > admin > member) is expressed through
// grouping policies, so a role only lists what it adds.
var rolePermissions = map[string][]Permission{
	RoleMember: {
		PermWorkspaceView,
		PermMembersView,
		PermWikiView,
		PermWikiEdit,
		PermTasksView,
		PermTasksEdit,
		PermFeedView,
		PermFeedPost,
	},
	RoleAdmin: {
		PermWorkspaceManage,
		PermMembersManage,
		PermInvitesManage,
		PermWikiDelete,
		PermAgentsManage,
	},
	RoleOwner: {
		PermWorkspaceDelete,
	},
}

type Policy struct {
	enforcer *casbin.Enforcer
}

func NewPolicy() (*Policy, error) {
	m, err := model.NewModelFromString(policyModel)
	if err != nil {
		return nil, fmt.Errorf("rbac model: %w", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("rbac enforcer: %w", err)
	}
	for role, perms := range rolePermissions {
		for _, p := range perms {
			if _, err := e.AddPolicy(role, string(p)); err != nil {
				return nil, err
			}
		}
	}
	if _, err := e.AddGroupingPolicy(RoleAdmin, RoleMember); err != nil {
		return nil, err
	}
	if _, err := e.AddGroupingPolicy(RoleOwner, RoleAdmin); err != nil {
		return nil, err
	}
	return &Policy{enforcer: e}, nil
}

func (p *Policy) Allowed(role string, perm Permission) bool {
	if p == nil || p.enforcer == nil {
		return false
	}
	ok, err := p.enforcer.Enforce(role, string(perm))
	return err == nil && ok
}
