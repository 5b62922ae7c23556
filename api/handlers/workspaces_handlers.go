package handlers

import (
	"net/http"

	"missionctl/core/apperr"
	"missionctl/core/auth"
	"missionctl/core/store"
	"missionctl/core/utils"
	"missionctl/core/workspaces"
)

type WorkspacesHandler struct {
	svc    *workspaces.Service
	logger *utils.Logger
}

func NewWorkspacesHandler(svc *workspaces.Service, logger *utils.Logger) *WorkspacesHandler {
	return &WorkspacesHandler{svc: svc, logger: logger}
}

type workspacePayload struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	BudgetCents int64  `json:"budget_cents"`
	BrandColor  string `json:"brand_color"`
	LogoURL     string `json:"logo_url"`
}

func (h *WorkspacesHandler) Create(w http.ResponseWriter, r *http.Request) {
	sess := r.Context().Value(auth.SessionContextKey).(*store.SessionRecord)
	var req workspacePayload
	if !decodeJSON(w, r, &req) {
		return
	}
	ws, err := h.svc.Create(r.Context(), sess.Username, req.Name, req.Slug, req.BudgetCents, req.BrandColor, req.LogoURL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ws)
}

func (h *WorkspacesHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"workspaces": list})
}

func (h *WorkspacesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "workspace_id")
	if err != nil {
		writeError(w, err)
		return
	}
	ws, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

// Update accepts name and branding fields only. A slug in the payload is a
// validation error rather than a silent ignore.
func (h *WorkspacesHandler) Update(w http.ResponseWriter, r *http.Request) {
	sess := r.Context().Value(auth.SessionContextKey).(*store.SessionRecord)
	id, err := pathID(r, "workspace_id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Name        *string `json:"name"`
		Slug        *string `json:"slug"`
		BudgetCents *int64  `json:"budget_cents"`
		BrandColor  *string `json:"brand_color"`
		LogoURL     *string `json:"logo_url"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Slug != nil {
		writeError(w, apperr.Validation("slug is immutable"))
		return
	}
	ws, err := h.svc.Update(r.Context(), sess.Username, id, store.WorkspaceUpdate{
		Name:        req.Name,
		BudgetCents: req.BudgetCents,
		BrandColor:  req.BrandColor,
		LogoURL:     req.LogoURL,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

func (h *WorkspacesHandler) SetDefault(w http.ResponseWriter, r *http.Request) {
	sess := r.Context().Value(auth.SessionContextKey).(*store.SessionRecord)
	id, err := pathID(r, "workspace_id")
	if err != nil {
		writeError(w, err)
		return
	}
	ws, err := h.svc.SetDefault(r.Context(), sess.Username, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

func (h *WorkspacesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sess := r.Context().Value(auth.SessionContextKey).(*store.SessionRecord)
	id, err := pathID(r, "workspace_id")
	if err != nil {
		writeError(w, err)
		return
	}
	report, err := h.svc.Delete(r.Context(), sess.Username, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
