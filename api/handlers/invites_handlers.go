package handlers

import (
	"net/http"

	"missionctl/core/apperr"
	"missionctl/core/auth"
	"missionctl/core/invites"
	"missionctl/core/members"
	"missionctl/core/store"
	"missionctl/core/utils"
)

type InvitesHandler struct {
	svc    *invites.Service
	users  store.UsersStore
	logger *utils.Logger
}

func NewInvitesHandler(svc *invites.Service, users store.UsersStore, logger *utils.Logger) *InvitesHandler {
	return &InvitesHandler{svc: svc, users: users, logger: logger}
}

func (h *InvitesHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller := members.FromContext(r.Context())
	var req struct {
		Email  string                   `json:"email"`
		Role   string                   `json:"role"`
		Boards []store.InviteBoardGrant `json:"boards"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	inv, err := h.svc.Create(r.Context(), caller, req.Email, req.Role, req.Boards)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

func (h *InvitesHandler) List(w http.ResponseWriter, r *http.Request) {
	caller := members.FromContext(r.Context())
	list, err := h.svc.List(r.Context(), caller.WorkspaceID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invites": list})
}

func (h *InvitesHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	caller := members.FromContext(r.Context())
	inviteID, err := pathID(r, "invite_id")
	if err != nil {
		writeError(w, err)
		return
	}
	inv, err := h.svc.Get(r.Context(), inviteID)
	if err != nil {
		writeError(w, err)
		return
	}
	if inv.WorkspaceID != caller.WorkspaceID {
		writeError(w, apperr.NotFound("invite %d not found", inviteID))
		return
	}
	if err := h.svc.Revoke(r.Context(), caller.UserName, inviteID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Lookup lets an invitee inspect an invite before accepting. The token is
// the capability, so no workspace membership is required.
func (h *InvitesHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	token := urlParam(r, "token")
	inv, err := h.svc.Lookup(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"workspace_id": inv.WorkspaceID,
		"email":        inv.Email,
		"role":         inv.Role,
		"invited_by":   inv.InvitedByName,
		"expires_at":   inv.ExpiresAt,
		"accepted":     inv.AcceptedAt != nil,
	})
}

func (h *InvitesHandler) Accept(w http.ResponseWriter, r *http.Request) {
	sess := r.Context().Value(auth.SessionContextKey).(*store.SessionRecord)
	token := urlParam(r, "token")
	user, err := h.users.Get(r.Context(), sess.UserID)
	if err != nil || user == nil {
		writeError(w, apperr.Unauthorized("session user not found"))
		return
	}
	m, err := h.svc.Accept(r.Context(), token, user)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}
