package handlers

import (
	"net/http"

	"missionctl/core/apperr"
	"missionctl/core/members"
	"missionctl/core/rbac"
	"missionctl/core/store"
	"missionctl/core/utils"
)

type MembersHandler struct {
	svc    *members.Service
	users  store.UsersStore
	logger *utils.Logger
}

func NewMembersHandler(svc *members.Service, users store.UsersStore, logger *utils.Logger) *MembersHandler {
	return &MembersHandler{svc: svc, users: users, logger: logger}
}

func (h *MembersHandler) List(w http.ResponseWriter, r *http.Request) {
	m := members.FromContext(r.Context())
	list, err := h.svc.List(r.Context(), m.WorkspaceID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": list})
}

func (h *MembersHandler) Add(w http.ResponseWriter, r *http.Request) {
	caller := members.FromContext(r.Context())
	var req struct {
		UserID int64  `json:"user_id"`
		Role   string `json:"role"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Role == rbac.RoleOwner && caller.Role != rbac.RoleOwner {
		writeError(w, apperr.Forbidden("only an owner can add another owner"))
		return
	}
	user, err := h.users.Get(r.Context(), req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	if user == nil {
		writeError(w, apperr.NotFound("user %d not found", req.UserID))
		return
	}
	m := &store.Member{
		WorkspaceID: caller.WorkspaceID,
		UserID:      user.ID,
		UserName:    user.FullName,
		Email:       utils.NormalizeEmail(user.Email),
		Role:        req.Role,
		InvitedBy:   &caller.UserID,
	}
	added, err := h.svc.Add(r.Context(), caller.UserName, m)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, added)
}

func (h *MembersHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	caller := members.FromContext(r.Context())
	memberID, err := pathID(r, "member_id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Role string `json:"role"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	target, err := h.targetInWorkspace(r, caller, memberID)
	if err != nil {
		writeError(w, err)
		return
	}
	// Promoting to owner, or touching an owner, needs owner rank.
	if (req.Role == rbac.RoleOwner || target.Role == rbac.RoleOwner) && caller.Role != rbac.RoleOwner {
		writeError(w, apperr.Forbidden("only an owner can change owner roles"))
		return
	}
	updated, err := h.svc.ChangeRole(r.Context(), caller.UserName, memberID, req.Role)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *MembersHandler) Remove(w http.ResponseWriter, r *http.Request) {
	caller := members.FromContext(r.Context())
	memberID, err := pathID(r, "member_id")
	if err != nil {
		writeError(w, err)
		return
	}
	target, err := h.targetInWorkspace(r, caller, memberID)
	if err != nil {
		writeError(w, err)
		return
	}
	if target.Role == rbac.RoleOwner && caller.Role != rbac.RoleOwner {
		writeError(w, apperr.Forbidden("only an owner can remove an owner"))
		return
	}
	if err := h.svc.Remove(r.Context(), caller.UserName, memberID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *MembersHandler) GrantBoard(w http.ResponseWriter, r *http.Request) {
	caller := members.FromContext(r.Context())
	memberID, err := pathID(r, "member_id")
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := h.targetInWorkspace(r, caller, memberID); err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		BoardID  string `json:"board_id"`
		CanRead  bool   `json:"can_read"`
		CanWrite bool   `json:"can_write"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.BoardID == "" {
		writeError(w, apperr.Validation("board_id is required"))
		return
	}
	g := &store.BoardGrant{
		MemberID: memberID,
		BoardID:  req.BoardID,
		CanRead:  req.CanRead,
		CanWrite: req.CanWrite,
	}
	if err := h.svc.GrantBoard(r.Context(), caller.UserName, g); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (h *MembersHandler) RevokeBoard(w http.ResponseWriter, r *http.Request) {
	caller := members.FromContext(r.Context())
	memberID, err := pathID(r, "member_id")
	if err != nil {
		writeError(w, err)
		return
	}
	boardID := urlParam(r, "board_id")
	if boardID == "" {
		writeError(w, apperr.Validation("board_id is required"))
		return
	}
	if _, err := h.targetInWorkspace(r, caller, memberID); err != nil {
		writeError(w, err)
		return
	}
	if err := h.svc.RevokeBoard(r.Context(), caller.UserName, memberID, boardID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *MembersHandler) ListBoardGrants(w http.ResponseWriter, r *http.Request) {
	caller := members.FromContext(r.Context())
	memberID, err := pathID(r, "member_id")
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := h.targetInWorkspace(r, caller, memberID); err != nil {
		writeError(w, err)
		return
	}
	grants, err := h.svc.Store().ListBoardGrants(r.Context(), memberID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"grants": grants})
}

func (h *MembersHandler) targetInWorkspace(r *http.Request, caller *store.Member, memberID int64) (*store.Member, error) {
	target, err := h.svc.Store().Get(r.Context(), memberID)
	if err != nil {
		return nil, err
	}
	if target == nil || target.WorkspaceID != caller.WorkspaceID {
		return nil, apperr.NotFound("member %d not found", memberID)
	}
	return target, nil
}
