package api

import "missionctl/api/handlers"

type routeHandlers struct {
	auth       *handlers.AuthHandler
	workspaces *handlers.WorkspacesHandler
	members    *handlers.MembersHandler
	invites    *handlers.InvitesHandler
	wiki       *handlers.WikiHandler
	tasks      *handlers.TasksHandler
	agents     *handlers.AgentsHandler
	feed       *handlers.FeedHandler
	events     *handlers.EventsHandler
}

func (s *Server) newRouteHandlers() routeHandlers {
	return routeHandlers{
		auth:       handlers.NewAuthHandler(s.cfg, s.users, s.membersSvc.Store(), s.sessionManager, s.audits, s.logger),
		workspaces: handlers.NewWorkspacesHandler(s.workspacesSvc, s.logger),
		members:    handlers.NewMembersHandler(s.membersSvc, s.users, s.logger),
		invites:    handlers.NewInvitesHandler(s.invitesSvc, s.users, s.logger),
		wiki:       handlers.NewWikiHandler(s.wikiSvc, s.logger),
		tasks:      handlers.NewTasksHandler(s.tasksSvc, s.logger),
		agents:     handlers.NewAgentsHandler(s.agents, s.logger),
		feed:       handlers.NewFeedHandler(s.feed, s.hub, s.logger),
		events:     handlers.NewEventsHandler(s.hub, s.logger),
	}
}
