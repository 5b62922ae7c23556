package handlers

import (
	"net/http"

	"missionctl/core/apperr"
	"missionctl/core/members"
	"missionctl/core/store"
	"missionctl/core/tasks"
	"missionctl/core/utils"
)

type TasksHandler struct {
	svc    *tasks.Service
	logger *utils.Logger
}

func NewTasksHandler(svc *tasks.Service, logger *utils.Logger) *TasksHandler {
	return &TasksHandler{svc: svc, logger: logger}
}

func (h *TasksHandler) List(w http.ResponseWriter, r *http.Request) {
	m := members.FromContext(r.Context())
	list, err := h.svc.ListTasks(r.Context(), m.WorkspaceID, r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": list})
}

func (h *TasksHandler) Create(w http.ResponseWriter, r *http.Request) {
	m := members.FromContext(r.Context())
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Status      string `json:"status"`
		Priority    string `json:"priority"`
		EpicID      *int64 `json:"epic_id"`
		AssigneeID  *int64 `json:"assignee_agent_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	t := &store.Task{
		WorkspaceID: m.WorkspaceID,
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		EpicID:      req.EpicID,
		AssigneeID:  req.AssigneeID,
		CreatedBy:   &m.UserID,
	}
	created, err := h.svc.CreateTask(r.Context(), t)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *TasksHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, ok := h.taskFromPath(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *TasksHandler) Update(w http.ResponseWriter, r *http.Request) {
	t, ok := h.taskFromPath(w, r)
	if !ok {
		return
	}
	var req struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		Status      *string `json:"status"`
		Priority    *string `json:"priority"`
		EpicID      *int64  `json:"epic_id"`
		ClearEpic   bool    `json:"clear_epic"`
		AssigneeID  *int64  `json:"assignee_agent_id"`
		Position    *int    `json:"position"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	updated, err := h.svc.UpdateTask(r.Context(), t.ID, store.TaskUpdate{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		EpicID:      req.EpicID,
		ClearEpic:   req.ClearEpic,
		AssigneeID:  req.AssigneeID,
		Position:    req.Position,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *TasksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	t, ok := h.taskFromPath(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteTask(r.Context(), t.ID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *TasksHandler) ListEpics(w http.ResponseWriter, r *http.Request) {
	m := members.FromContext(r.Context())
	list, err := h.svc.ListEpics(r.Context(), m.WorkspaceID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"epics": list})
}

func (h *TasksHandler) CreateEpic(w http.ResponseWriter, r *http.Request) {
	m := members.FromContext(r.Context())
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Color       string `json:"color"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	e := &store.Epic{
		WorkspaceID: m.WorkspaceID,
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
	}
	created, err := h.svc.CreateEpic(r.Context(), e)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *TasksHandler) DeleteEpic(w http.ResponseWriter, r *http.Request) {
	m := members.FromContext(r.Context())
	epicID, err := pathID(r, "epic_id")
	if err != nil {
		writeError(w, err)
		return
	}
	epic, err := h.svc.Store().GetEpic(r.Context(), epicID)
	if err != nil {
		writeError(w, err)
		return
	}
	if epic == nil || epic.WorkspaceID != m.WorkspaceID {
		writeError(w, apperr.NotFound("epic %d not found", epicID))
		return
	}
	if err := h.svc.DeleteEpic(r.Context(), epicID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *TasksHandler) taskFromPath(w http.ResponseWriter, r *http.Request) (*store.Task, bool) {
	m := members.FromContext(r.Context())
	taskID, err := pathID(r, "task_id")
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	t, err := h.svc.GetTask(r.Context(), taskID)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	if t.WorkspaceID != m.WorkspaceID {
		writeError(w, apperr.NotFound("task %d not found", taskID))
		return nil, false
	}
	return t, true
}
