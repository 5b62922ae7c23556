package handlers

import (
	"net/http"
	"strconv"

	"missionctl/core/apperr"
	"missionctl/core/members"
	"missionctl/core/store"
	"missionctl/core/utils"
	"missionctl/core/wiki"
)

type WikiHandler struct {
	svc    *wiki.Service
	logger *utils.Logger
}

func NewWikiHandler(svc *wiki.Service, logger *utils.Logger) *WikiHandler {
	return &WikiHandler{svc: svc, logger: logger}
}

func actorFrom(r *http.Request) wiki.Actor {
	m := members.FromContext(r.Context())
	return wiki.Actor{ID: m.UserID, Name: m.UserName}
}

func (h *WikiHandler) Tree(w http.ResponseWriter, r *http.Request) {
	m := members.FromContext(r.Context())
	tree, err := h.svc.Tree(r.Context(), m.WorkspaceID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tree": tree})
}

func (h *WikiHandler) CreatePage(w http.ResponseWriter, r *http.Request) {
	m := members.FromContext(r.Context())
	var req struct {
		Title    string  `json:"title"`
		Content  string  `json:"content"`
		ParentID *int64  `json:"parent_id"`
		EpicID   *int64  `json:"epic_id"`
		TaskIDs  []int64 `json:"task_ids"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	page := &store.WikiPage{
		WorkspaceID: m.WorkspaceID,
		Title:       req.Title,
		Content:     req.Content,
		ParentID:    req.ParentID,
		EpicID:      req.EpicID,
		TaskIDs:     req.TaskIDs,
	}
	created, err := h.svc.CreatePage(r.Context(), actorFrom(r), page)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *WikiHandler) GetPage(w http.ResponseWriter, r *http.Request) {
	page, ok := h.pageFromPath(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *WikiHandler) UpdatePage(w http.ResponseWriter, r *http.Request) {
	page, ok := h.pageFromPath(w, r)
	if !ok {
		return
	}
	var req struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	updated, err := h.svc.UpdatePage(r.Context(), actorFrom(r), page.ID, req.Title, req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *WikiHandler) DeletePage(w http.ResponseWriter, r *http.Request) {
	page, ok := h.pageFromPath(w, r)
	if !ok {
		return
	}
	report, err := h.svc.DeletePage(r.Context(), actorFrom(r), page.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *WikiHandler) MovePage(w http.ResponseWriter, r *http.Request) {
	page, ok := h.pageFromPath(w, r)
	if !ok {
		return
	}
	var req struct {
		NewParentID int64 `json:"new_parent_id"`
		Position    int   `json:"position"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	moved, err := h.svc.MovePage(r.Context(), actorFrom(r), page.ID, req.NewParentID, req.Position)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, moved)
}

func (h *WikiHandler) ReorderChildren(w http.ResponseWriter, r *http.Request) {
	page, ok := h.pageFromPath(w, r)
	if !ok {
		return
	}
	var req struct {
		OrderedChildIDs []int64 `json:"ordered_child_ids"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.ReorderChildren(r.Context(), actorFrom(r), page.ID, req.OrderedChildIDs); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *WikiHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	page, ok := h.pageFromPath(w, r)
	if !ok {
		return
	}
	history, err := h.svc.ListHistory(r.Context(), page.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

func (h *WikiHandler) RestoreVersion(w http.ResponseWriter, r *http.Request) {
	page, ok := h.pageFromPath(w, r)
	if !ok {
		return
	}
	version, err := strconv.Atoi(urlParam(r, "version"))
	if err != nil || version < 1 {
		writeError(w, apperr.Validation("invalid version"))
		return
	}
	restored, err := h.svc.RestoreVersion(r.Context(), actorFrom(r), page.ID, version)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, restored)
}

func (h *WikiHandler) Search(w http.ResponseWriter, r *http.Request) {
	m := members.FromContext(r.Context())
	hits, err := h.svc.Search(r.Context(), m.WorkspaceID, r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"hits": hits})
}

func (h *WikiHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	page, ok := h.pageFromPath(w, r)
	if !ok {
		return
	}
	comments, err := h.svc.ListComments(r.Context(), page.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": comments})
}

func (h *WikiHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	page, ok := h.pageFromPath(w, r)
	if !ok {
		return
	}
	var req struct {
		Content  string `json:"content"`
		ParentID *int64 `json:"parent_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	comment := &store.WikiComment{
		WorkspaceID: page.WorkspaceID,
		PageID:      page.ID,
		ParentID:    req.ParentID,
		Content:     req.Content,
	}
	created, err := h.svc.AddComment(r.Context(), actorFrom(r), comment)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *WikiHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	m := members.FromContext(r.Context())
	commentID, err := pathID(r, "comment_id")
	if err != nil {
		writeError(w, err)
		return
	}
	// Same scoping rule as pageFromPath: a comment id from a foreign
	// workspace reads as not found.
	comment, err := h.svc.GetComment(r.Context(), commentID)
	if err != nil {
		writeError(w, err)
		return
	}
	if comment.WorkspaceID != m.WorkspaceID {
		writeError(w, apperr.NotFound("comment %d not found", commentID))
		return
	}
	deleted, err := h.svc.DeleteComment(r.Context(), actorFrom(r), commentID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
}

// pageFromPath loads the page named by {page_id} and verifies it belongs
// to the workspace in the route, so a page id cannot be probed through a
// foreign workspace.
func (h *WikiHandler) pageFromPath(w http.ResponseWriter, r *http.Request) (*store.WikiPage, bool) {
	m := members.FromContext(r.Context())
	pageID, err := pathID(r, "page_id")
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	page, err := h.svc.GetPage(r.Context(), pageID)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	if page.WorkspaceID != m.WorkspaceID {
		writeError(w, apperr.NotFound("page %d not found", pageID))
		return nil, false
	}
	return page, true
}
