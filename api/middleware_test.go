package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"missionctl/core/auth"
	"missionctl/core/members"
	"missionctl/core/rbac"
	"missionctl/core/store"
)

func TestWithSessionRejectsMissingCookie(t *testing.T) {
	s := &Server{}
	h := s.withSession(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, "/api/workspaces", nil)
	rr := httptest.NewRecorder()
	h(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestRequireWorkspaceRoleRejectsBadWorkspaceID(t *testing.T) {
	s := &Server{}
	h := s.requireWorkspaceRole(rbac.RoleMember)(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, "/api/workspaces/abc/wiki/tree", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("workspace_id", "abc")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	req = req.WithContext(context.WithValue(req.Context(), auth.SessionContextKey, &store.SessionRecord{
		UserID:   7,
		Username: "alice",
	}))
	rr := httptest.NewRecorder()
	h(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-numeric workspace id, got %d", rr.Code)
	}
}

func TestRequireWorkspaceRoleRejectsMissingSession(t *testing.T) {
	s := &Server{}
	h := s.requireWorkspaceRole(rbac.RoleMember)(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, "/api/workspaces/1/wiki/tree", nil)
	rr := httptest.NewRecorder()
	h(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestRequirePermissionChecksPolicy(t *testing.T) {
	policy, err := rbac.NewPolicy()
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	s := &Server{policy: policy}
	handler := s.requirePermission(rbac.PermWorkspaceManage)(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// No resolved membership at all.
	req := httptest.NewRequest(http.MethodPatch, "/api/workspaces/1", nil)
	rr := httptest.NewRecorder()
	handler(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without membership, got %d", rr.Code)
	}

	// A plain member cannot manage the workspace.
	req = httptest.NewRequest(http.MethodPatch, "/api/workspaces/1", nil)
	req = req.WithContext(members.WithMember(req.Context(), &store.Member{ID: 1, Role: rbac.RoleMember}))
	rr = httptest.NewRecorder()
	handler(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for member role, got %d", rr.Code)
	}

	// Admins inherit workspace.manage.
	req = httptest.NewRequest(http.MethodPatch, "/api/workspaces/1", nil)
	req = req.WithContext(members.WithMember(req.Context(), &store.Member{ID: 2, Role: rbac.RoleAdmin}))
	rr = httptest.NewRecorder()
	handler(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin role, got %d", rr.Code)
	}
}

func TestRequestLimiterExhaustsAndIsolatesKeys(t *testing.T) {
	l := newLimiter(3, time.Hour)
	for i := 0; i < 3; i++ {
		if !l.allow("10.0.0.1") {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
	}
	if l.allow("10.0.0.1") {
		t.Fatalf("4th attempt should be denied")
	}
	// A different client has its own bucket.
	if !l.allow("10.0.0.2") {
		t.Fatalf("other client should not be throttled")
	}
}

func TestStatusRecorderCapturesCodeAndSize(t *testing.T) {
	rr := httptest.NewRecorder()
	rec := &statusRecorder{ResponseWriter: rr, status: http.StatusOK}
	rec.WriteHeader(http.StatusTeapot)
	if _, err := rec.Write([]byte("short and stout")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if rec.status != http.StatusTeapot {
		t.Fatalf("status not recorded: %d", rec.status)
	}
	if rec.size != len("short and stout") {
		t.Fatalf("size not recorded: %d", rec.size)
	}
}

func TestClientIPStripsPort(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.RemoteAddr = "203.0.113.9:54321"
	if got := clientIP(req); got != "203.0.113.9" {
		t.Fatalf("expected 203.0.113.9, got %s", got)
	}
}
