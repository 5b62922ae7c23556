package handlers

import (
	"net/http"
	"strings"

	"missionctl/config"
	"missionctl/core/apperr"
	"missionctl/core/auth"
	"missionctl/core/store"
	"missionctl/core/utils"
)

const (
	SessionCookieName = "mission_session"
	CSRFCookieName    = "mission_csrf"
)

type AuthHandler struct {
	cfg            *config.AppConfig
	users          store.UsersStore
	members        store.MembersStore
	sessionManager *auth.SessionManager
	audits         store.AuditStore
	logger         *utils.Logger
}

func NewAuthHandler(cfg *config.AppConfig, users store.UsersStore, members store.MembersStore, sm *auth.SessionManager, audits store.AuditStore, logger *utils.Logger) *AuthHandler {
	return &AuthHandler{cfg: cfg, users: users, members: members, sessionManager: sm, audits: audits, logger: logger}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var cred auth.Credentials
	if !decodeJSON(w, r, &cred) {
		return
	}
	cred.Username = strings.ToLower(strings.TrimSpace(cred.Username))
	if !utils.ValidateUsername(cred.Username) {
		writeError(w, apperr.Validation("invalid username"))
		return
	}
	user, err := h.users.GetByUsername(r.Context(), cred.Username)
	if err != nil || user == nil || !user.Active {
		_ = h.audits.Append(r.Context(), cred.Username, "auth.login_failed", "user missing or inactive")
		writeError(w, apperr.Unauthorized("invalid credentials"))
		return
	}
	if !auth.VerifyPassword(cred.Password, h.cfg.Pepper, user.PasswordHash, user.Salt) {
		_ = h.audits.Append(r.Context(), cred.Username, "auth.login_failed", "invalid password")
		writeError(w, apperr.Unauthorized("invalid credentials"))
		return
	}
	sess, err := h.sessionManager.Create(r.Context(), user, clientAddr(r), r.UserAgent())
	if err != nil {
		h.logger.Errorf("auth: session create failed for %s: %v", cred.Username, err)
		writeError(w, err)
		return
	}
	_ = h.audits.Append(r.Context(), user.Username, "auth.login_success", "")
	h.setSessionCookies(w, sess)
	writeJSON(w, http.StatusOK, map[string]any{
		"user": userDTO(user),
		"csrf": sess.CSRFToken,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		_ = h.sessionManager.Delete(r.Context(), cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{Name: SessionCookieName, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	http.SetCookie(w, &http.Cookie{Name: CSRFCookieName, Value: "", Path: "/", MaxAge: -1})
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Me returns the authenticated user together with their workspace
// memberships, which the UI uses to build the workspace switcher.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sess := r.Context().Value(auth.SessionContextKey).(*store.SessionRecord)
	user, err := h.users.Get(r.Context(), sess.UserID)
	if err != nil || user == nil {
		writeError(w, apperr.Unauthorized("session user not found"))
		return
	}
	memberships, err := h.members.ListForUser(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":        userDTO(user),
		"memberships": memberships,
	})
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	sess := r.Context().Value(auth.SessionContextKey).(*store.SessionRecord)
	var req struct {
		Current string `json:"current_password"`
		New     string `json:"new_password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if !utils.ValidatePassword(req.New) {
		writeError(w, apperr.Validation("password must be between 8 and 256 characters"))
		return
	}
	user, err := h.users.Get(r.Context(), sess.UserID)
	if err != nil || user == nil {
		writeError(w, apperr.Unauthorized("session user not found"))
		return
	}
	if !auth.VerifyPassword(req.Current, h.cfg.Pepper, user.PasswordHash, user.Salt) {
		writeError(w, apperr.Forbidden("current password is incorrect"))
		return
	}
	hash, salt, err := auth.HashPassword(req.New, h.cfg.Pepper)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.users.UpdatePassword(r.Context(), user.ID, hash, salt); err != nil {
		writeError(w, err)
		return
	}
	// Rotate the session so old cookies stop working.
	sessNew, err := h.sessionManager.Rotate(r.Context(), sess.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	_ = h.audits.Append(r.Context(), user.Username, "auth.password_changed", "")
	h.setSessionCookies(w, sessNew)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *AuthHandler) setSessionCookies(w http.ResponseWriter, sess *store.SessionRecord) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  sess.ExpiresAt,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    sess.CSRFToken,
		Path:     "/",
		HttpOnly: false,
		SameSite: http.SameSiteLaxMode,
		Expires:  sess.ExpiresAt,
	})
}

func userDTO(u *store.User) map[string]any {
	return map[string]any{
		"id":        u.ID,
		"username":  u.Username,
		"email":     u.Email,
		"full_name": u.FullName,
		"active":    u.Active,
	}
}

func clientAddr(r *http.Request) string {
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i > 0 {
		host = host[:i]
	}
	return host
}
