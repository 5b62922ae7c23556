package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

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

// BackgroundWorker is anything started alongside the HTTP server and
// stopped on shutdown.
type BackgroundWorker interface {
	StartWithContext(ctx context.Context)
	StopWithContext(ctx context.Context) error
}

type ServerDeps struct {
	Users          store.UsersStore
	Agents         store.AgentsStore
	Audits         store.AuditStore
	Feed           store.FeedStore
	SessionManager *auth.SessionManager
	Policy         *rbac.Policy
	WorkspacesSvc  *workspaces.Service
	MembersSvc     *members.Service
	InvitesSvc     *invites.Service
	WikiSvc        *wiki.Service
	TasksSvc       *tasks.Service
	Hub            *events.Hub
}

type Server struct {
	cfg    *config.AppConfig
	logger *utils.Logger

	users          store.UsersStore
	agents         store.AgentsStore
	audits         store.AuditStore
	feed           store.FeedStore
	sessionManager *auth.SessionManager
	policy         *rbac.Policy
	workspacesSvc  *workspaces.Service
	membersSvc     *members.Service
	invitesSvc     *invites.Service
	wikiSvc        *wiki.Service
	tasksSvc       *tasks.Service
	hub            *events.Hub

	activityTracker *sessionActivity
}

func NewServer(cfg *config.AppConfig, deps ServerDeps, logger *utils.Logger) *Server {
	return &Server{
		cfg:             cfg,
		logger:          logger,
		users:           deps.Users,
		agents:          deps.Agents,
		audits:          deps.Audits,
		feed:            deps.Feed,
		sessionManager:  deps.SessionManager,
		policy:          deps.Policy,
		workspacesSvc:   deps.WorkspacesSvc,
		membersSvc:      deps.MembersSvc,
		invitesSvc:      deps.InvitesSvc,
		wikiSvc:         deps.WikiSvc,
		tasksSvc:        deps.TasksSvc,
		hub:             deps.Hub,
		activityTracker: newSessionActivity(),
	}
}

// Handler builds the routing tree with the standard middleware stack.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.recoverMiddleware)
	r.Use(s.loggingMiddleware)
	s.mountRoutes(r)
	return r
}
