package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"missionctl/core/rbac"
)

func (s *Server) mountRoutes(r chi.Router) {
	h := s.newRouteHandlers()

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", s.rateLimitMiddleware(h.auth.Login))
		r.Post("/auth/logout", s.withSession(h.auth.Logout))
		r.Get("/auth/me", s.withSession(h.auth.Me))
		r.Post("/auth/change-password", s.withSession(h.auth.ChangePassword))

		// Invite redemption is token-scoped, not workspace-scoped.
		r.Get("/invites/{token}", s.withSession(h.invites.Lookup))
		r.Post("/invites/{token}/accept", s.withSession(h.invites.Accept))

		r.Get("/agents", s.withSession(h.agents.List))
		r.Post("/agents", s.withSession(h.agents.Create))
		r.Patch("/agents/{agent_id}", s.withSession(h.agents.SetActive))

		r.Get("/workspaces", s.withSession(h.workspaces.List))
		r.Post("/workspaces", s.withSession(h.workspaces.Create))

		r.Route("/workspaces/{workspace_id}", func(r chi.Router) {
			// Every workspace route carries a minimum role plus a policy
			// permission, checked in that order.
			member := func(perm rbac.Permission, next http.HandlerFunc) http.HandlerFunc {
				return s.withSession(s.requireWorkspaceRole(rbac.RoleMember)(s.requirePermission(perm)(next)))
			}
			admin := func(perm rbac.Permission, next http.HandlerFunc) http.HandlerFunc {
				return s.withSession(s.requireWorkspaceRole(rbac.RoleAdmin)(s.requirePermission(perm)(next)))
			}
			owner := func(perm rbac.Permission, next http.HandlerFunc) http.HandlerFunc {
				return s.withSession(s.requireWorkspaceRole(rbac.RoleOwner)(s.requirePermission(perm)(next)))
			}

			r.Get("/", member(rbac.PermWorkspaceView, h.workspaces.Get))
			r.Patch("/", admin(rbac.PermWorkspaceManage, h.workspaces.Update))
			r.Post("/default", admin(rbac.PermWorkspaceManage, h.workspaces.SetDefault))
			r.Delete("/", owner(rbac.PermWorkspaceDelete, h.workspaces.Delete))

			r.Get("/members", member(rbac.PermMembersView, h.members.List))
			r.Post("/members", admin(rbac.PermMembersManage, h.members.Add))
			r.Patch("/members/{member_id}/role", admin(rbac.PermMembersManage, h.members.ChangeRole))
			r.Delete("/members/{member_id}", admin(rbac.PermMembersManage, h.members.Remove))
			r.Get("/members/{member_id}/boards", admin(rbac.PermMembersManage, h.members.ListBoardGrants))
			r.Post("/members/{member_id}/boards", admin(rbac.PermMembersManage, h.members.GrantBoard))
			r.Delete("/members/{member_id}/boards/{board_id}", admin(rbac.PermMembersManage, h.members.RevokeBoard))

			r.Get("/invites", admin(rbac.PermInvitesManage, h.invites.List))
			r.Post("/invites", admin(rbac.PermInvitesManage, h.invites.Create))
			r.Delete("/invites/{invite_id}", admin(rbac.PermInvitesManage, h.invites.Revoke))

			r.Get("/wiki/tree", member(rbac.PermWikiView, h.wiki.Tree))
			r.Get("/wiki/search", member(rbac.PermWikiView, h.wiki.Search))
			r.Post("/wiki/pages", member(rbac.PermWikiEdit, h.wiki.CreatePage))
			r.Get("/wiki/pages/{page_id}", member(rbac.PermWikiView, h.wiki.GetPage))
			r.Patch("/wiki/pages/{page_id}", member(rbac.PermWikiEdit, h.wiki.UpdatePage))
			r.Delete("/wiki/pages/{page_id}", admin(rbac.PermWikiDelete, h.wiki.DeletePage))
			r.Post("/wiki/pages/{page_id}/move", member(rbac.PermWikiEdit, h.wiki.MovePage))
			r.Post("/wiki/pages/{page_id}/reorder", member(rbac.PermWikiEdit, h.wiki.ReorderChildren))
			r.Get("/wiki/pages/{page_id}/history", member(rbac.PermWikiView, h.wiki.ListHistory))
			r.Post("/wiki/pages/{page_id}/restore/{version}", member(rbac.PermWikiEdit, h.wiki.RestoreVersion))
			r.Get("/wiki/pages/{page_id}/comments", member(rbac.PermWikiView, h.wiki.ListComments))
			r.Post("/wiki/pages/{page_id}/comments", member(rbac.PermWikiEdit, h.wiki.AddComment))
			r.Delete("/wiki/comments/{comment_id}", member(rbac.PermWikiEdit, h.wiki.DeleteComment))

			r.Get("/tasks", member(rbac.PermTasksView, h.tasks.List))
			r.Post("/tasks", member(rbac.PermTasksEdit, h.tasks.Create))
			r.Get("/tasks/{task_id}", member(rbac.PermTasksView, h.tasks.Get))
			r.Patch("/tasks/{task_id}", member(rbac.PermTasksEdit, h.tasks.Update))
			r.Delete("/tasks/{task_id}", member(rbac.PermTasksEdit, h.tasks.Delete))
			r.Get("/epics", member(rbac.PermTasksView, h.tasks.ListEpics))
			r.Post("/epics", member(rbac.PermTasksEdit, h.tasks.CreateEpic))
			r.Delete("/epics/{epic_id}", admin(rbac.PermTasksEdit, h.tasks.DeleteEpic))

			r.Get("/messages", member(rbac.PermFeedView, h.feed.ListMessages))
			r.Post("/messages", member(rbac.PermFeedPost, h.feed.PostMessage))
			r.Get("/activities", member(rbac.PermFeedView, h.feed.ListActivities))
			r.Get("/alerts", member(rbac.PermFeedView, h.feed.ListAlerts))
			r.Post("/alerts/{alert_id}/read", member(rbac.PermFeedPost, h.feed.MarkAlertRead))

			r.Get("/events", member(rbac.PermFeedView, h.events.Subscribe))
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}
