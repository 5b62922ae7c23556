// Package invites implements token-based workspace invitations: creation
// with collision-checked random tokens, revocation and atomic acceptance.
package invites

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"missionctl/config"
	"missionctl/core/apperr"
	"missionctl/core/rbac"
	"missionctl/core/store"
	"missionctl/core/utils"
)

const tokenLen = 32

type Service struct {
	cfg     *config.AppConfig
	invites store.InvitesStore
	ws      store.WorkspacesStore
	audits  store.AuditStore
	logger  *utils.Logger
}

func NewService(cfg *config.AppConfig, invites store.InvitesStore, ws store.WorkspacesStore, audits store.AuditStore, logger *utils.Logger) *Service {
	return &Service{cfg: cfg, invites: invites, ws: ws, audits: audits, logger: logger}
}

// Create issues an invite with a fresh random token. The token column is
// unique, so an astronomically unlikely collision is retried a few times
// instead of surfacing to the caller.
func (s *Service) Create(ctx context.Context, inviter *store.Member, email, role string, grants []store.InviteBoardGrant) (*store.Invite, error) {
	email = utils.NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperr.Validation("a valid email is required")
	}
	if !rbac.ValidRole(role) {
		return nil, apperr.Validation("unknown role %q", role)
	}
	if role == rbac.RoleOwner && inviter.Role != rbac.RoleOwner {
		return nil, apperr.Forbidden("only an owner can invite another owner")
	}
	w, err := s.ws.Get(ctx, inviter.WorkspaceID)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, apperr.NotFound("workspace %d not found", inviter.WorkspaceID)
	}

	inv := &store.Invite{
		WorkspaceID:   inviter.WorkspaceID,
		Email:         email,
		Role:          role,
		InvitedBy:     &inviter.UserID,
		InvitedByName: inviter.UserName,
	}
	if s.cfg.Invites.TTL > 0 {
		expires := utils.NowUTC().Add(s.cfg.Invites.TTL)
		inv.ExpiresAt = &expires
	}

	retries := s.cfg.Invites.TokenRetries
	if retries < 1 {
		retries = 1
	}
	for attempt := 0; attempt < retries; attempt++ {
		token, err := utils.RandHex(tokenLen)
		if err != nil {
			return nil, err
		}
		inv.Token = token
		_, err = s.invites.Create(ctx, inv, grants)
		if err == nil {
			s.audit(ctx, inviter.UserName, "invite.create",
				fmt.Sprintf("workspace=%d email=%s role=%s", inv.WorkspaceID, email, role))
			return inv, nil
		}
		if !errors.Is(err, store.ErrTokenCollision) {
			return nil, err
		}
		s.logger.Errorf("invites: token collision, retrying (%d/%d)", attempt+1, retries)
	}
	return nil, apperr.Conflict("could not generate a unique invite token")
}

func (s *Service) List(ctx context.Context, workspaceID int64) ([]store.Invite, error) {
	return s.invites.List(ctx, workspaceID)
}

func (s *Service) Get(ctx context.Context, inviteID int64) (*store.Invite, error) {
	inv, err := s.invites.Get(ctx, inviteID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, apperr.NotFound("invite %d not found", inviteID)
	}
	return inv, nil
}

func (s *Service) Lookup(ctx context.Context, token string) (*store.Invite, error) {
	inv, err := s.invites.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, apperr.NotFound("invite not found")
	}
	return inv, nil
}

func (s *Service) Revoke(ctx context.Context, actor string, inviteID int64) error {
	err := s.invites.Revoke(ctx, inviteID)
	switch {
	case err == nil:
		s.audit(ctx, actor, "invite.revoke", fmt.Sprintf("invite=%d", inviteID))
		return nil
	case errors.Is(err, store.ErrNoInvite):
		return apperr.NotFound("invite %d not found", inviteID)
	case errors.Is(err, store.ErrInviteUsed):
		return apperr.Conflict("invite has already been accepted")
	default:
		return err
	}
}

// Accept redeems the token for the given user. The invite email must match
// the user's email after normalization. Acceptance, membership creation and
// board-grant copying happen in one transaction; a concurrent accept of the
// same token fails with a conflict.
func (s *Service) Accept(ctx context.Context, token string, user *store.User) (*store.Member, error) {
	inv, err := s.Lookup(ctx, token)
	if err != nil {
		return nil, err
	}
	if utils.NormalizeEmail(user.Email) != utils.NormalizeEmail(inv.Email) {
		return nil, apperr.Forbidden("invite was issued for a different email address")
	}
	m, err := s.invites.Accept(ctx, token, user.ID, user.FullName, utils.NormalizeEmail(user.Email))
	switch {
	case err == nil:
		s.audit(ctx, user.Username, "invite.accept",
			fmt.Sprintf("invite=%d workspace=%d", inv.ID, inv.WorkspaceID))
		return m, nil
	case errors.Is(err, store.ErrNoInvite):
		return nil, apperr.NotFound("invite not found")
	case errors.Is(err, store.ErrInviteUsed):
		return nil, apperr.Conflict("invite has already been accepted")
	case errors.Is(err, store.ErrInviteExpired):
		return nil, apperr.Conflict("invite has expired")
	case errors.Is(err, store.ErrAlreadyMember):
		return nil, apperr.Conflict("user is already a member of this workspace")
	default:
		return nil, err
	}
}

func (s *Service) audit(ctx context.Context, actor, action, details string) {
	if s.audits == nil {
		return
	}
	if err := s.audits.Append(ctx, actor, action, details); err != nil {
		s.logger.Errorf("invites: audit %s: %v", action, err)
	}
}
