package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"

	"missionctl/core/events"
	"missionctl/core/members"
	"missionctl/core/utils"
)

type EventsHandler struct {
	hub      *events.Hub
	upgrader websocket.Upgrader
	logger   *utils.Logger
}

func NewEventsHandler(hub *events.Hub, logger *utils.Logger) *EventsHandler {
	return &EventsHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Cookie auth plus CSRF-exempt GET: restrict to same origin.
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origin == "http://"+r.Host || origin == "https://"+r.Host
			},
		},
		logger: logger,
	}
}

// Subscribe upgrades the connection and streams the workspace's events.
func (h *EventsHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	m := members.FromContext(r.Context())
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Errorf("events: upgrade: %v", err)
		return
	}
	h.hub.Register(conn, m.WorkspaceID)
}
