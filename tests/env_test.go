package tests

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"missionctl/config"
	"missionctl/core/auth"
	"missionctl/core/events"
	"missionctl/core/invites"
	"missionctl/core/members"
	"missionctl/core/store"
	"missionctl/core/utils"
	"missionctl/core/wiki"
	"missionctl/core/workspaces"
)

type testEnv struct {
	cfg    *config.AppConfig
	db     *sql.DB
	logger *utils.Logger

	users      store.UsersStore
	workspaces store.WorkspacesStore
	members    store.MembersStore
	invitesSt  store.InvitesStore
	wikiStore  store.WikiStore
	tasksStore store.TasksStore
	feed       store.FeedStore

	workspacesSvc *workspaces.Service
	membersSvc    *members.Service
	invitesSvc    *invites.Service
	wikiSvc       *wiki.Service
	reconciler    *workspaces.Reconciler
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.AppConfig{
		DBDriver:   "sqlite",
		DBPath:     filepath.Join(dir, "missionctl.db"),
		Pepper:     "pepper",
		SessionTTL: time.Hour,
		Workspaces: config.WorkspacesConfig{MaxCount: 5, CascadeBatchSize: 50},
		Wiki:       config.WikiConfig{HistoryLimit: 0, MaxTreeDepth: 32},
		Invites:    config.InvitesConfig{TokenRetries: 3, TTL: 24 * time.Hour},
		Reconciler: config.ReconcilerConfig{Enabled: true, Schedule: "@every 10m"},
	}
	logger := utils.NewLogger()
	db, err := store.NewDB(cfg, logger)
	if err != nil {
		t.Fatalf("db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := store.ApplyMigrations(context.Background(), db, logger); err != nil {
		t.Fatalf("migrations: %v", err)
	}

	env := &testEnv{
		cfg:        cfg,
		db:         db,
		logger:     logger,
		users:      store.NewUsersStore(db),
		workspaces: store.NewWorkspacesStore(db),
		members:    store.NewMembersStore(db),
		invitesSt:  store.NewInvitesStore(db),
		wikiStore:  store.NewWikiStore(db),
		tasksStore: store.NewTasksStore(db),
		feed:       store.NewFeedStore(db),
	}
	audits := store.NewAuditStore(db)
	hub := events.NewHub(logger)
	t.Cleanup(hub.Close)
	env.workspacesSvc = workspaces.NewService(cfg, env.workspaces, hub, audits, logger)
	env.membersSvc = members.NewService(env.members, audits, logger)
	env.invitesSvc = invites.NewService(cfg, env.invitesSt, env.workspaces, audits, logger)
	env.wikiSvc = wiki.NewService(cfg, env.wikiStore, env.feed, hub, logger)
	env.reconciler = workspaces.NewReconciler(cfg, env.workspaces, logger)
	return env
}

func (e *testEnv) mustWorkspace(t *testing.T, name, slug string) *store.Workspace {
	t.Helper()
	w, err := e.workspacesSvc.Create(context.Background(), "tester", name, slug, 0, "", "")
	if err != nil {
		t.Fatalf("create workspace %s: %v", slug, err)
	}
	return w
}

func (e *testEnv) mustUser(t *testing.T, username, email string) *store.User {
	t.Helper()
	hash, salt := auth.MustHashPassword("password123", e.cfg.Pepper)
	u := &store.User{
		Username:     username,
		Email:        email,
		FullName:     username,
		PasswordHash: hash,
		Salt:         salt,
		Active:       true,
	}
	if _, err := e.users.Create(context.Background(), u); err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u
}

func (e *testEnv) mustMember(t *testing.T, workspaceID int64, u *store.User, role string) *store.Member {
	t.Helper()
	m := &store.Member{
		WorkspaceID: workspaceID,
		UserID:      u.ID,
		UserName:    u.FullName,
		Email:       u.Email,
		Role:        role,
	}
	if _, err := e.members.Add(context.Background(), m); err != nil {
		t.Fatalf("add member %s: %v", u.Username, err)
	}
	return m
}

func (e *testEnv) mustPage(t *testing.T, workspaceID int64, parentID *int64, title string) *store.WikiPage {
	t.Helper()
	p := &store.WikiPage{
		WorkspaceID: workspaceID,
		Title:       title,
		Content:     "content of " + title,
		ParentID:    parentID,
	}
	created, err := e.wikiSvc.CreatePage(context.Background(), wiki.Actor{ID: 1, Name: "tester"}, p)
	if err != nil {
		t.Fatalf("create page %s: %v", title, err)
	}
	return created
}
