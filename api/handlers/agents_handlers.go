package handlers

import (
	"net/http"
	"strings"

	"missionctl/core/apperr"
	"missionctl/core/store"
	"missionctl/core/utils"
)

type AgentsHandler struct {
	agents store.AgentsStore
	logger *utils.Logger
}

func NewAgentsHandler(agents store.AgentsStore, logger *utils.Logger) *AgentsHandler {
	return &AgentsHandler{agents: agents, logger: logger}
}

func (h *AgentsHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.agents.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"agents": list})
}

func (h *AgentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name   string `json:"name"`
		Role   string `json:"role"`
		Model  string `json:"model"`
		Avatar string `json:"avatar"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, apperr.Validation("name is required"))
		return
	}
	existing, err := h.agents.GetByName(r.Context(), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	if existing != nil {
		writeError(w, apperr.Conflict("agent %q already exists", req.Name))
		return
	}
	a := &store.Agent{Name: req.Name, Role: req.Role, Model: req.Model, Avatar: req.Avatar, Active: true}
	if _, err := h.agents.Create(r.Context(), a); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *AgentsHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "agent_id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Active bool `json:"active"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.agents.SetActive(r.Context(), id, req.Active); err != nil {
		if err == store.ErrNoAgent {
			writeError(w, apperr.NotFound("agent %d not found", id))
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
