// Package workspaces manages tenant lifecycle: creation under a hard cap,
// the single-default invariant, branding updates and cascading deletion of
// every workspace-scoped table.
package workspaces

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"missionctl/config"
	"missionctl/core/apperr"
	"missionctl/core/events"
	"missionctl/core/store"
	"missionctl/core/utils"
)

type Service struct {
	cfg    *config.AppConfig
	ws     store.WorkspacesStore
	hub    *events.Hub
	audits store.AuditStore
	logger *utils.Logger
}

func NewService(cfg *config.AppConfig, ws store.WorkspacesStore, hub *events.Hub, audits store.AuditStore, logger *utils.Logger) *Service {
	return &Service{cfg: cfg, ws: ws, hub: hub, audits: audits, logger: logger}
}

// Store exposes the backing store for composition with other services.
func (s *Service) Store() store.WorkspacesStore {
	return s.ws
}

func (s *Service) Create(ctx context.Context, actor, name, slug string, budgetCents int64, brandColor, logoURL string) (*store.Workspace, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	slug = strings.ToLower(strings.TrimSpace(slug))
	if !utils.ValidateSlug(slug) {
		return nil, apperr.Validation("slug must be lowercase letters, digits and hyphens")
	}
	existing, err := s.ws.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.Conflict("slug %q is already in use", slug)
	}
	count, err := s.ws.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count >= s.cfg.Workspaces.MaxCount {
		return nil, apperr.LimitExceeded("workspace limit of %d reached", s.cfg.Workspaces.MaxCount)
	}
	w := &store.Workspace{
		Name:        name,
		Slug:        slug,
		IsDefault:   count == 0,
		BudgetCents: budgetCents,
		BrandColor:  brandColor,
		LogoURL:     logoURL,
	}
	if _, err := s.ws.Create(ctx, w); err != nil {
		return nil, err
	}
	s.audit(ctx, actor, "workspace.create", fmt.Sprintf("id=%d slug=%s", w.ID, w.Slug))
	s.publish(w.ID, "workspace.created", w)
	return w, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*store.Workspace, error) {
	w, err := s.ws.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, apperr.NotFound("workspace %d not found", id)
	}
	return w, nil
}

func (s *Service) List(ctx context.Context) ([]store.Workspace, error) {
	return s.ws.List(ctx)
}

// Update changes name and branding only. There is deliberately no way to
// change a slug once assigned.
func (s *Service) Update(ctx context.Context, actor string, id int64, upd store.WorkspaceUpdate) (*store.Workspace, error) {
	if upd.Name != nil && strings.TrimSpace(*upd.Name) == "" {
		return nil, apperr.Validation("name cannot be empty")
	}
	w, err := s.ws.Update(ctx, id, upd)
	if err != nil {
		if errors.Is(err, store.ErrNoWorkspace) {
			return nil, apperr.NotFound("workspace %d not found", id)
		}
		return nil, err
	}
	s.audit(ctx, actor, "workspace.update", fmt.Sprintf("id=%d", id))
	s.publish(id, "workspace.updated", w)
	return w, nil
}

func (s *Service) SetDefault(ctx context.Context, actor string, id int64) (*store.Workspace, error) {
	w, err := s.ws.SetDefault(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNoWorkspace) {
			return nil, apperr.NotFound("workspace %d not found", id)
		}
		return nil, err
	}
	s.audit(ctx, actor, "workspace.set_default", fmt.Sprintf("id=%d", id))
	s.publish(id, "workspace.updated", w)
	return w, nil
}

// Delete cascade-deletes the workspace and everything scoped to it. The
// default workspace and the last remaining workspace cannot be deleted.
func (s *Service) Delete(ctx context.Context, actor string, id int64) (*store.CascadeReport, error) {
	w, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if w.IsDefault {
		return nil, apperr.Conflict("cannot delete the default workspace, reassign the default first")
	}
	count, err := s.ws.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count <= 1 {
		return nil, apperr.Conflict("cannot delete the last workspace")
	}
	report, err := s.ws.CascadeDelete(ctx, id, s.cfg.Workspaces.CascadeBatchSize)
	if err != nil {
		if errors.Is(err, store.ErrNoWorkspace) {
			return nil, apperr.NotFound("workspace %d not found", id)
		}
		return report, err
	}
	s.audit(ctx, actor, "workspace.delete",
		fmt.Sprintf("id=%d slug=%s records=%d", id, w.Slug, report.TotalRecordsDeleted))
	s.publish(id, "workspace.deleted", report)
	return report, nil
}

func (s *Service) audit(ctx context.Context, actor, action, details string) {
	if s.audits == nil {
		return
	}
	if err := s.audits.Append(ctx, actor, action, details); err != nil {
		s.logger.Errorf("workspaces: audit %s: %v", action, err)
	}
}

func (s *Service) publish(workspaceID int64, eventType string, payload any) {
	if s.hub == nil {
		return
	}
	s.hub.Publish(events.Event{Type: eventType, WorkspaceID: workspaceID, Payload: payload})
}
