// Package wiki implements the knowledge-base tree: nested pages with
// version history, threaded comments and full-text search.
package wiki

import (
	"context"
	"errors"
	"strings"

	"missionctl/config"
	"missionctl/core/apperr"
	"missionctl/core/events"
	"missionctl/core/store"
	"missionctl/core/utils"
)

// Actor identifies who performs an operation, for audit fields and the
// activity feed.
type Actor struct {
	ID   int64
	Name string
}

type Service struct {
	cfg    *config.AppConfig
	pages  store.WikiStore
	feed   store.FeedStore
	hub    *events.Hub
	logger *utils.Logger
}

func NewService(cfg *config.AppConfig, pages store.WikiStore, feed store.FeedStore, hub *events.Hub, logger *utils.Logger) *Service {
	return &Service{cfg: cfg, pages: pages, feed: feed, hub: hub, logger: logger}
}

func (s *Service) CreatePage(ctx context.Context, actor Actor, p *store.WikiPage) (*store.WikiPage, error) {
	p.Title = strings.TrimSpace(p.Title)
	if p.Title == "" {
		return nil, apperr.Validation("title is required")
	}
	if p.ParentID != nil && s.cfg.Wiki.MaxTreeDepth > 0 {
		d, err := s.depth(ctx, *p.ParentID)
		if err != nil {
			return nil, err
		}
		if d+1 > s.cfg.Wiki.MaxTreeDepth {
			return nil, apperr.Validation("tree depth limit of %d exceeded", s.cfg.Wiki.MaxTreeDepth)
		}
	}
	p.CreatedBy = actor.ID
	p.CreatedByName = actor.Name
	p.UpdatedBy = actor.ID
	p.UpdatedByName = actor.Name
	if _, err := s.pages.CreatePage(ctx, p); err != nil {
		return nil, s.mapErr(err)
	}
	s.recordActivity(ctx, actor, p.WorkspaceID, "wiki.page.created", p.ID)
	s.publish(p.WorkspaceID, "wiki.page.created", p)
	return p, nil
}

func (s *Service) GetPage(ctx context.Context, id int64) (*store.WikiPage, error) {
	p, err := s.pages.GetPage(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperr.NotFound("page %d not found", id)
	}
	return p, nil
}

func (s *Service) Tree(ctx context.Context, workspaceID int64) ([]*store.WikiTreeNode, error) {
	return s.pages.Tree(ctx, workspaceID)
}

func (s *Service) ListChildren(ctx context.Context, workspaceID int64, parentID *int64) ([]store.WikiPage, error) {
	return s.pages.ListChildren(ctx, workspaceID, parentID)
}

func (s *Service) UpdatePage(ctx context.Context, actor Actor, pageID int64, title, content string) (*store.WikiPage, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperr.Validation("title is required")
	}
	p, err := s.pages.UpdateContent(ctx, pageID, title, content, actor.ID, actor.Name, s.cfg.Wiki.HistoryLimit)
	if err != nil {
		return nil, s.mapErr(err)
	}
	s.recordActivity(ctx, actor, p.WorkspaceID, "wiki.page.updated", p.ID)
	s.publish(p.WorkspaceID, "wiki.page.updated", p)
	return p, nil
}

func (s *Service) RestoreVersion(ctx context.Context, actor Actor, pageID int64, version int) (*store.WikiPage, error) {
	p, err := s.pages.RestoreVersion(ctx, pageID, version, actor.ID, actor.Name)
	if err != nil {
		return nil, s.mapErr(err)
	}
	s.recordActivity(ctx, actor, p.WorkspaceID, "wiki.page.restored", p.ID)
	s.publish(p.WorkspaceID, "wiki.page.updated", p)
	return p, nil
}

// DeletePage removes the page and its whole subtree, returning what was
// deleted per table.
func (s *Service) DeletePage(ctx context.Context, actor Actor, pageID int64) (*store.WikiDeleteReport, error) {
	p, err := s.GetPage(ctx, pageID)
	if err != nil {
		return nil, err
	}
	report, err := s.pages.DeleteSubtree(ctx, pageID)
	if err != nil {
		return nil, s.mapErr(err)
	}
	s.recordActivity(ctx, actor, p.WorkspaceID, "wiki.page.deleted", pageID)
	s.publish(p.WorkspaceID, "wiki.page.deleted", report)
	return report, nil
}

func (s *Service) MovePage(ctx context.Context, actor Actor, pageID, newParentID int64, position int) (*store.WikiPage, error) {
	if pageID == newParentID {
		return nil, apperr.Validation("page cannot be its own parent")
	}
	if s.cfg.Wiki.MaxTreeDepth > 0 {
		p, err := s.GetPage(ctx, pageID)
		if err != nil {
			return nil, err
		}
		parentDepth, err := s.depth(ctx, newParentID)
		if err != nil {
			return nil, err
		}
		subtreeHeight, err := s.height(ctx, p)
		if err != nil {
			return nil, err
		}
		if parentDepth+subtreeHeight > s.cfg.Wiki.MaxTreeDepth {
			return nil, apperr.Validation("tree depth limit of %d exceeded", s.cfg.Wiki.MaxTreeDepth)
		}
	}
	if err := s.pages.Move(ctx, pageID, newParentID, position); err != nil {
		return nil, s.mapErr(err)
	}
	p, err := s.GetPage(ctx, pageID)
	if err != nil {
		return nil, err
	}
	s.recordActivity(ctx, actor, p.WorkspaceID, "wiki.page.moved", pageID)
	s.publish(p.WorkspaceID, "wiki.tree.changed", nil)
	return p, nil
}

func (s *Service) ReorderChildren(ctx context.Context, actor Actor, parentID int64, orderedChildIDs []int64) error {
	if err := s.pages.Reorder(ctx, parentID, orderedChildIDs); err != nil {
		return s.mapErr(err)
	}
	p, err := s.pages.GetPage(ctx, parentID)
	if err == nil && p != nil {
		s.recordActivity(ctx, actor, p.WorkspaceID, "wiki.page.reordered", parentID)
		s.publish(p.WorkspaceID, "wiki.tree.changed", nil)
	}
	return nil
}

func (s *Service) Search(ctx context.Context, workspaceID int64, query string) ([]store.WikiSearchHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperr.Validation("query is required")
	}
	return s.pages.Search(ctx, workspaceID, query)
}

func (s *Service) ListHistory(ctx context.Context, pageID int64) ([]store.WikiPageHistory, error) {
	if _, err := s.GetPage(ctx, pageID); err != nil {
		return nil, err
	}
	return s.pages.ListHistory(ctx, pageID)
}

func (s *Service) AddComment(ctx context.Context, actor Actor, c *store.WikiComment) (*store.WikiComment, error) {
	c.Content = strings.TrimSpace(c.Content)
	if c.Content == "" {
		return nil, apperr.Validation("comment content is required")
	}
	c.FromID = actor.ID
	c.FromName = actor.Name
	if _, err := s.pages.AddComment(ctx, c); err != nil {
		return nil, s.mapErr(err)
	}
	s.publish(c.WorkspaceID, "wiki.comment.added", c)
	return c, nil
}

func (s *Service) ListComments(ctx context.Context, pageID int64) ([]store.WikiComment, error) {
	if _, err := s.GetPage(ctx, pageID); err != nil {
		return nil, err
	}
	return s.pages.ListComments(ctx, pageID)
}

// GetComment loads a single comment by id.
func (s *Service) GetComment(ctx context.Context, id int64) (*store.WikiComment, error) {
	c, err := s.pages.GetComment(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperr.NotFound("comment %d not found", id)
	}
	return c, nil
}

// DeleteComment removes a comment and every reply nested under it.
func (s *Service) DeleteComment(ctx context.Context, actor Actor, commentID int64) (int, error) {
	c, err := s.GetComment(ctx, commentID)
	if err != nil {
		return 0, err
	}
	n, err := s.pages.DeleteCommentTree(ctx, commentID)
	if err != nil {
		return 0, s.mapErr(err)
	}
	s.publish(c.WorkspaceID, "wiki.comment.deleted", map[string]any{"comment_id": commentID, "deleted": n})
	return n, nil
}

// depth counts the pages on the path from the root down to and including
// the given page.
func (s *Service) depth(ctx context.Context, pageID int64) (int, error) {
	d := 0
	id := pageID
	for {
		p, err := s.pages.GetPage(ctx, id)
		if err != nil {
			return 0, err
		}
		if p == nil {
			return 0, apperr.NotFound("page %d not found", id)
		}
		d++
		if p.ParentID == nil {
			return d, nil
		}
		id = *p.ParentID
	}
}

// height counts the levels of the subtree rooted at the page, including
// the page itself.
func (s *Service) height(ctx context.Context, p *store.WikiPage) (int, error) {
	children, err := s.pages.ListChildren(ctx, p.WorkspaceID, &p.ID)
	if err != nil {
		return 0, err
	}
	deepest := 0
	for i := range children {
		h, err := s.height(ctx, &children[i])
		if err != nil {
			return 0, err
		}
		if h > deepest {
			deepest = h
		}
	}
	return deepest + 1, nil
}

func (s *Service) recordActivity(ctx context.Context, actor Actor, workspaceID int64, action string, entityID int64) {
	if s.feed == nil {
		return
	}
	id := entityID
	if _, err := s.feed.RecordActivity(ctx, &store.Activity{
		WorkspaceID: workspaceID,
		ActorID:     &actor.ID,
		ActorName:   actor.Name,
		Action:      action,
		EntityType:  "wiki_page",
		EntityID:    &id,
	}); err != nil {
		s.logger.Errorf("wiki: record activity %s: %v", action, err)
	}
}

func (s *Service) publish(workspaceID int64, eventType string, payload any) {
	if s.hub == nil {
		return
	}
	s.hub.Publish(events.Event{Type: eventType, WorkspaceID: workspaceID, Payload: payload})
}

func (s *Service) mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNoPage):
		return apperr.NotFound("page not found")
	case errors.Is(err, store.ErrNoParent):
		return apperr.NotFound("parent page not found")
	case errors.Is(err, store.ErrNoComment):
		return apperr.NotFound("comment not found")
	case errors.Is(err, store.ErrNoParentComment):
		return apperr.Validation("parent comment does not belong to the same page")
	case errors.Is(err, store.ErrNoHistoryVersion):
		return apperr.NotFound("history version not found")
	case errors.Is(err, store.ErrCycle):
		return apperr.Validation("move would create a cycle")
	case errors.Is(err, store.ErrChildSetMismatch):
		return apperr.Validation("ordered ids must match the current children exactly")
	case errors.Is(err, store.ErrCrossWorkspace):
		return apperr.Validation("pages belong to different workspaces")
	default:
		return err
	}
}
