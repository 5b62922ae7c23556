package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"missionctl/api"
	"missionctl/api/handlers"
	"missionctl/core/auth"
	"missionctl/core/events"
	"missionctl/core/rbac"
	"missionctl/core/store"
	"missionctl/core/tasks"
	"missionctl/core/wiki"
)

func newAPIHandler(t *testing.T, env *testEnv) http.Handler {
	t.Helper()
	policy, err := rbac.NewPolicy()
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	hub := events.NewHub(env.logger)
	t.Cleanup(hub.Close)
	sm := auth.NewSessionManager(store.NewSessionsStore(env.db), env.cfg, env.logger)
	srv := api.NewServer(env.cfg, api.ServerDeps{
		Users:          env.users,
		Agents:         store.NewAgentsStore(env.db),
		Audits:         store.NewAuditStore(env.db),
		Feed:           env.feed,
		SessionManager: sm,
		Policy:         policy,
		WorkspacesSvc:  env.workspacesSvc,
		MembersSvc:     env.membersSvc,
		InvitesSvc:     env.invitesSvc,
		WikiSvc:        env.wikiSvc,
		TasksSvc:       tasks.NewService(env.tasksStore, env.workspaces, hub, env.logger),
		Hub:            hub,
	}, env.logger)
	return srv.Handler()
}

// Each client carries its own remote address so the login rate limiter
// never couples unrelated tests.
var clientSeq int

func nextAddr() string {
	clientSeq++
	return fmt.Sprintf("10.9.%d.%d:4000", clientSeq/200, clientSeq%200+1)
}

type apiClient struct {
	handler http.Handler
	addr    string
	cookies []*http.Cookie
	csrf    string
}

func postLogin(t *testing.T, h http.Handler, username, password string) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
	req.RemoteAddr = nextAddr()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func loginAs(t *testing.T, h http.Handler, username string) *apiClient {
	t.Helper()
	rec := postLogin(t, h, username, "password123")
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: status %d body %s", username, rec.Code, rec.Body.String())
	}
	var resp struct {
		CSRF string `json:"csrf"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.CSRF == "" {
		t.Fatalf("login %s: bad response %s", username, rec.Body.String())
	}
	return &apiClient{handler: h, addr: nextAddr(), cookies: rec.Result().Cookies(), csrf: resp.CSRF}
}

func (c *apiClient) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.RemoteAddr = c.addr
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	if method != http.MethodGet && method != http.MethodHead {
		req.Header.Set("X-CSRF-Token", c.csrf)
	}
	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse error body %q: %v", rec.Body.String(), err)
	}
	return resp.Error.Code
}

func TestLoginValidatesInput(t *testing.T) {
	env := setupEnv(t)
	h := newAPIHandler(t, env)
	env.mustUser(t, "alice", "alice@acme.test")

	rec := postLogin(t, h, "bad user!", "password123")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed username: status %d, want 400", rec.Code)
	}
	if code := errorCode(t, rec); code != "validation" {
		t.Fatalf("malformed username: code %q, want validation", code)
	}

	rec = postLogin(t, h, "alice", "wrong-password")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: status %d, want 401", rec.Code)
	}

	rec = postLogin(t, h, "alice", "password123")
	if rec.Code != http.StatusOK {
		t.Fatalf("valid login: status %d body %s", rec.Code, rec.Body.String())
	}
}

func TestChangePasswordRejectsWeakPassword(t *testing.T) {
	env := setupEnv(t)
	h := newAPIHandler(t, env)
	env.mustUser(t, "alice", "alice@acme.test")
	alice := loginAs(t, h, "alice")

	rec := alice.do(t, http.MethodPost, "/api/auth/change-password",
		map[string]string{"current_password": "password123", "new_password": "short"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("weak password: status %d, want 400", rec.Code)
	}
	if code := errorCode(t, rec); code != "validation" {
		t.Fatalf("weak password: code %q, want validation", code)
	}
}

func TestCommentDeleteIsWorkspaceScoped(t *testing.T) {
	env := setupEnv(t)
	h := newAPIHandler(t, env)
	ctx := context.Background()

	alice := env.mustUser(t, "alice", "alice@acme.test")
	bob := env.mustUser(t, "bob", "bob@globex.test")
	wsA := env.mustWorkspace(t, "Acme", "acme")
	wsB := env.mustWorkspace(t, "Globex", "globex")
	env.mustMember(t, wsA.ID, alice, rbac.RoleOwner)
	env.mustMember(t, wsB.ID, bob, rbac.RoleOwner)

	page := env.mustPage(t, wsB.ID, nil, "Globex Handbook")
	comment, err := env.wikiSvc.AddComment(ctx, wiki.Actor{ID: bob.ID, Name: bob.FullName}, &store.WikiComment{
		WorkspaceID: wsB.ID,
		PageID:      page.ID,
		Content:     "internal note",
	})
	if err != nil {
		t.Fatalf("add comment: %v", err)
	}

	// Alice holds the owner role in A, but the comment lives in B. The id
	// must read as not found and the comment must survive.
	aliceCl := loginAs(t, h, "alice")
	rec := aliceCl.do(t, http.MethodDelete,
		fmt.Sprintf("/api/workspaces/%d/wiki/comments/%d", wsA.ID, comment.ID), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("cross-workspace delete: status %d, want 404 (body %s)", rec.Code, rec.Body.String())
	}
	if _, err := env.wikiSvc.GetComment(ctx, comment.ID); err != nil {
		t.Fatalf("comment must survive a cross-workspace delete: %v", err)
	}

	bobCl := loginAs(t, h, "bob")
	rec = bobCl.do(t, http.MethodDelete,
		fmt.Sprintf("/api/workspaces/%d/wiki/comments/%d", wsB.ID, comment.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("same-workspace delete: status %d body %s", rec.Code, rec.Body.String())
	}
	if _, err := env.wikiSvc.GetComment(ctx, comment.ID); err == nil {
		t.Fatalf("comment must be gone after the owner deletes it")
	}
}

func TestMemberRoleIsDeniedAdminRoutes(t *testing.T) {
	env := setupEnv(t)
	h := newAPIHandler(t, env)

	alice := env.mustUser(t, "alice", "alice@acme.test")
	carol := env.mustUser(t, "carol", "carol@acme.test")
	ws := env.mustWorkspace(t, "Acme", "acme")
	env.mustMember(t, ws.ID, alice, rbac.RoleOwner)
	env.mustMember(t, ws.ID, carol, rbac.RoleMember)

	carolCl := loginAs(t, h, "carol")
	rec := carolCl.do(t, http.MethodGet, fmt.Sprintf("/api/workspaces/%d/invites", ws.ID), nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("member listing invites: status %d, want 403", rec.Code)
	}
	rec = carolCl.do(t, http.MethodGet, fmt.Sprintf("/api/workspaces/%d/wiki/tree", ws.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("member reading wiki tree: status %d body %s", rec.Code, rec.Body.String())
	}
}

func TestCSRFTokenIsBoundToSession(t *testing.T) {
	env := setupEnv(t)
	env.cfg.CSRFKey = "csrf-signing-key"
	h := newAPIHandler(t, env)
	env.mustUser(t, "alice", "alice@acme.test")
	alice := loginAs(t, h, "alice")

	rec := alice.do(t, http.MethodPost, "/api/workspaces",
		map[string]string{"name": "Acme", "slug": "acme"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("signed token must pass: status %d body %s", rec.Code, rec.Body.String())
	}

	// Plant a token that matches cookie, header and the stored session row
	// but is not the HMAC of the session id. The middleware must reject it.
	var sessionID string
	for _, ck := range alice.cookies {
		if ck.Name == handlers.SessionCookieName {
			sessionID = ck.Value
		}
	}
	if sessionID == "" {
		t.Fatalf("session cookie missing")
	}
	forged := "not-an-hmac-token"
	if _, err := env.db.Exec(`UPDATE sessions SET csrf_token=? WHERE id=?`, forged, sessionID); err != nil {
		t.Fatalf("plant token: %v", err)
	}
	alice.csrf = forged
	for _, ck := range alice.cookies {
		if ck.Name == handlers.CSRFCookieName {
			ck.Value = forged
		}
	}
	rec = alice.do(t, http.MethodPost, "/api/workspaces",
		map[string]string{"name": "Globex", "slug": "globex"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("unsigned token must be rejected: status %d body %s", rec.Code, rec.Body.String())
	}
}
