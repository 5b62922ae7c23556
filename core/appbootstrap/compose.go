package appbootstrap

import (
	"database/sql"

	"missionctl/api"
	"missionctl/config"
	"missionctl/core/auth"
	"missionctl/core/events"
	"missionctl/core/invites"
	"missionctl/core/members"
	"missionctl/core/rbac"
	"missionctl/core/store"
	"missionctl/core/tasks"
	"missionctl/core/utils"
	"missionctl/core/wiki"
	"missionctl/core/workspaces"
)

type runtimeComposition struct {
	serverDeps api.ServerDeps
	hub        *events.Hub
	workers    []api.BackgroundWorker
}

func composeRuntime(cfg *config.AppConfig, db *sql.DB, logger *utils.Logger) (*runtimeComposition, error) {
	users := store.NewUsersStore(db)
	sessions := store.NewSessionsStore(db)
	audits := store.NewAuditStore(db)
	agents := store.NewAgentsStore(db)
	feed := store.NewFeedStore(db)
	workspacesStore := store.NewWorkspacesStore(db)
	membersStore := store.NewMembersStore(db)
	invitesStore := store.NewInvitesStore(db)
	wikiStore := store.NewWikiStore(db)
	tasksStore := store.NewTasksStore(db)

	policy, err := rbac.NewPolicy()
	if err != nil {
		return nil, err
	}
	hub := events.NewHub(logger)
	sessionManager := auth.NewSessionManager(sessions, cfg, logger)

	workspacesSvc := workspaces.NewService(cfg, workspacesStore, hub, audits, logger)
	membersSvc := members.NewService(membersStore, audits, logger)
	invitesSvc := invites.NewService(cfg, invitesStore, workspacesStore, audits, logger)
	wikiSvc := wiki.NewService(cfg, wikiStore, feed, hub, logger)
	tasksSvc := tasks.NewService(tasksStore, workspacesStore, hub, logger)
	reconciler := workspaces.NewReconciler(cfg, workspacesStore, logger)

	return &runtimeComposition{
		serverDeps: api.ServerDeps{
			Users:          users,
			Agents:         agents,
			Audits:         audits,
			Feed:           feed,
			SessionManager: sessionManager,
			Policy:         policy,
			WorkspacesSvc:  workspacesSvc,
			MembersSvc:     membersSvc,
			InvitesSvc:     invitesSvc,
			WikiSvc:        wikiSvc,
			TasksSvc:       tasksSvc,
			Hub:            hub,
		},
		hub:     hub,
		workers: []api.BackgroundWorker{reconciler},
	}, nil
}
