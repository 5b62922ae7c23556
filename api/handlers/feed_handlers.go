package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"missionctl/core/apperr"
	"missionctl/core/events"
	"missionctl/core/members"
	"missionctl/core/store"
	"missionctl/core/utils"
)

type FeedHandler struct {
	feed   store.FeedStore
	hub    *events.Hub
	logger *utils.Logger
}

func NewFeedHandler(feed store.FeedStore, hub *events.Hub, logger *utils.Logger) *FeedHandler {
	return &FeedHandler{feed: feed, hub: hub, logger: logger}
}

func (h *FeedHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	m := members.FromContext(r.Context())
	list, err := h.feed.ListMessages(r.Context(), m.WorkspaceID, queryLimit(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": list})
}

func (h *FeedHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	m := members.FromContext(r.Context())
	var req struct {
		Content string `json:"content"`
		AgentID *int64 `json:"agent_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		writeError(w, apperr.Validation("content is required"))
		return
	}
	msg := &store.Message{
		WorkspaceID: m.WorkspaceID,
		AgentID:     req.AgentID,
		FromID:      &m.UserID,
		FromName:    m.UserName,
		Content:     req.Content,
	}
	if _, err := h.feed.AddMessage(r.Context(), msg); err != nil {
		writeError(w, err)
		return
	}
	if h.hub != nil {
		h.hub.Publish(events.Event{Type: "message.posted", WorkspaceID: m.WorkspaceID, Payload: msg})
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (h *FeedHandler) ListActivities(w http.ResponseWriter, r *http.Request) {
	m := members.FromContext(r.Context())
	list, err := h.feed.ListActivities(r.Context(), m.WorkspaceID, queryLimit(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activities": list})
}

func (h *FeedHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	m := members.FromContext(r.Context())
	unreadOnly := r.URL.Query().Get("unread") == "true"
	list, err := h.feed.ListAlerts(r.Context(), m.WorkspaceID, unreadOnly)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": list})
}

func (h *FeedHandler) MarkAlertRead(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "alert_id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.feed.MarkAlertRead(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func queryLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return 0
	}
	return n
}
