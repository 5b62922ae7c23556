// Package members implements workspace membership and access checks:
// role-ranked membership, per-board grants and the last-owner guard.
package members

import (
	"context"
	"errors"
	"fmt"

	"missionctl/core/apperr"
	"missionctl/core/rbac"
	"missionctl/core/store"
	"missionctl/core/utils"
)

type Service struct {
	members store.MembersStore
	audits  store.AuditStore
	logger  *utils.Logger
}

func NewService(members store.MembersStore, audits store.AuditStore, logger *utils.Logger) *Service {
	return &Service{members: members, audits: audits, logger: logger}
}

func (s *Service) Store() store.MembersStore {
	return s.members
}

// HasAccess reports whether the user is a member of the workspace and, when
// requiredRole is non-empty, whether their role ranks at least as high.
func (s *Service) HasAccess(ctx context.Context, workspaceID, userID int64, requiredRole string) (bool, error) {
	m, err := s.members.GetByUser(ctx, workspaceID, userID)
	if err != nil {
		return false, err
	}
	if m == nil {
		return false, nil
	}
	if requiredRole == "" {
		return true, nil
	}
	return rbac.AtLeast(m.Role, requiredRole), nil
}

// Membership returns the caller's membership or a forbidden error.
func (s *Service) Membership(ctx context.Context, workspaceID, userID int64) (*store.Member, error) {
	m, err := s.members.GetByUser(ctx, workspaceID, userID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, apperr.Forbidden("not a member of this workspace")
	}
	return m, nil
}

func (s *Service) List(ctx context.Context, workspaceID int64) ([]store.Member, error) {
	return s.members.List(ctx, workspaceID)
}

func (s *Service) Add(ctx context.Context, actor string, m *store.Member) (*store.Member, error) {
	if !rbac.ValidRole(m.Role) {
		return nil, apperr.Validation("unknown role %q", m.Role)
	}
	if _, err := s.members.Add(ctx, m); err != nil {
		if errors.Is(err, store.ErrAlreadyMember) {
			return nil, apperr.Conflict("user is already a member of this workspace")
		}
		return nil, err
	}
	s.audit(ctx, actor, "member.add", fmt.Sprintf("workspace=%d user=%d role=%s", m.WorkspaceID, m.UserID, m.Role))
	return m, nil
}

// ChangeRole updates a member's role. Demoting the last owner is refused so
// every workspace always has at least one owner.
func (s *Service) ChangeRole(ctx context.Context, actor string, memberID int64, newRole string) (*store.Member, error) {
	if !rbac.ValidRole(newRole) {
		return nil, apperr.Validation("unknown role %q", newRole)
	}
	m, err := s.members.Get(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, apperr.NotFound("member %d not found", memberID)
	}
	if m.Role == newRole {
		return m, nil
	}
	if m.Role == rbac.RoleOwner && newRole != rbac.RoleOwner {
		owners, err := s.members.CountByRole(ctx, m.WorkspaceID, rbac.RoleOwner)
		if err != nil {
			return nil, err
		}
		if owners <= 1 {
			return nil, apperr.Conflict("cannot demote the last owner of the workspace")
		}
	}
	if err := s.members.UpdateRole(ctx, memberID, newRole); err != nil {
		return nil, err
	}
	m.Role = newRole
	s.audit(ctx, actor, "member.change_role", fmt.Sprintf("member=%d role=%s", memberID, newRole))
	return m, nil
}

// Remove deletes a membership. Removing the last owner is refused.
func (s *Service) Remove(ctx context.Context, actor string, memberID int64) error {
	m, err := s.members.Get(ctx, memberID)
	if err != nil {
		return err
	}
	if m == nil {
		return apperr.NotFound("member %d not found", memberID)
	}
	if m.Role == rbac.RoleOwner {
		owners, err := s.members.CountByRole(ctx, m.WorkspaceID, rbac.RoleOwner)
		if err != nil {
			return err
		}
		if owners <= 1 {
			return apperr.Conflict("cannot remove the last owner of the workspace")
		}
	}
	if err := s.members.Remove(ctx, memberID); err != nil {
		if errors.Is(err, store.ErrNoMember) {
			return apperr.NotFound("member %d not found", memberID)
		}
		return err
	}
	s.audit(ctx, actor, "member.remove", fmt.Sprintf("member=%d workspace=%d", memberID, m.WorkspaceID))
	return nil
}

func (s *Service) GrantBoard(ctx context.Context, actor string, g *store.BoardGrant) error {
	m, err := s.members.Get(ctx, g.MemberID)
	if err != nil {
		return err
	}
	if m == nil {
		return apperr.NotFound("member %d not found", g.MemberID)
	}
	g.WorkspaceID = m.WorkspaceID
	if err := s.members.GrantBoard(ctx, g); err != nil {
		return err
	}
	s.audit(ctx, actor, "member.grant_board",
		fmt.Sprintf("member=%d board=%s read=%t write=%t", g.MemberID, g.BoardID, g.CanRead, g.CanWrite))
	return nil
}

func (s *Service) RevokeBoard(ctx context.Context, actor string, memberID int64, boardID string) error {
	if err := s.members.RevokeBoard(ctx, memberID, boardID); err != nil {
		return err
	}
	s.audit(ctx, actor, "member.revoke_board", fmt.Sprintf("member=%d board=%s", memberID, boardID))
	return nil
}

// CanAccessBoard resolves board-level access: admins and owners bypass
// per-board grants, members need an explicit grant row.
func (s *Service) CanAccessBoard(ctx context.Context, workspaceID, userID int64, boardID string, write bool) (bool, error) {
	m, err := s.members.GetByUser(ctx, workspaceID, userID)
	if err != nil {
		return false, err
	}
	if m == nil {
		return false, nil
	}
	if rbac.AtLeast(m.Role, rbac.RoleAdmin) {
		return true, nil
	}
	canRead, canWrite, err := s.members.BoardAccess(ctx, m.ID, boardID)
	if err != nil {
		return false, err
	}
	if write {
		return canWrite, nil
	}
	return canRead || canWrite, nil
}

func (s *Service) audit(ctx context.Context, actor, action, details string) {
	if s.audits == nil {
		return
	}
	if err := s.audits.Append(ctx, actor, action, details); err != nil {
		s.logger.Errorf("members: audit %s: %v", action, err)
	}
}
