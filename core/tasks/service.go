// Package tasks implements the workspace backlog: epics and tasks with
// per-workspace sequential identifiers.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"missionctl/core/apperr"
	"missionctl/core/events"
	"missionctl/core/store"
	"missionctl/core/utils"
)

type Service struct {
	tasks  store.TasksStore
	ws     store.WorkspacesStore
	hub    *events.Hub
	logger *utils.Logger
}

func NewService(tasks store.TasksStore, ws store.WorkspacesStore, hub *events.Hub, logger *utils.Logger) *Service {
	return &Service{tasks: tasks, ws: ws, hub: hub, logger: logger}
}

func (s *Service) Store() store.TasksStore {
	return s.tasks
}

// CreateTask assigns the next TASK-N identifier from the workspace counter
// and inserts the task.
func (s *Service) CreateTask(ctx context.Context, t *store.Task) (*store.Task, error) {
	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" {
		return nil, apperr.Validation("title is required")
	}
	if t.EpicID != nil {
		epic, err := s.tasks.GetEpic(ctx, *t.EpicID)
		if err != nil {
			return nil, err
		}
		if epic == nil || epic.WorkspaceID != t.WorkspaceID {
			return nil, apperr.NotFound("epic %d not found", *t.EpicID)
		}
	}
	seq, err := s.ws.NextTaskNumber(ctx, t.WorkspaceID)
	if err != nil {
		return nil, err
	}
	t.Identifier = fmt.Sprintf("TASK-%d", seq)
	if t.Status == "" {
		t.Status = "backlog"
	}
	if t.Priority == "" {
		t.Priority = "normal"
	}
	if _, err := s.tasks.CreateTask(ctx, t); err != nil {
		return nil, err
	}
	s.publish(t.WorkspaceID, "task.created", t)
	return t, nil
}

func (s *Service) GetTask(ctx context.Context, id int64) (*store.Task, error) {
	t, err := s.tasks.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, apperr.NotFound("task %d not found", id)
	}
	return t, nil
}

func (s *Service) ListTasks(ctx context.Context, workspaceID int64, status string) ([]store.Task, error) {
	return s.tasks.ListTasks(ctx, workspaceID, status)
}

func (s *Service) UpdateTask(ctx context.Context, id int64, upd store.TaskUpdate) (*store.Task, error) {
	t, err := s.tasks.UpdateTask(ctx, id, upd)
	if err != nil {
		if errors.Is(err, store.ErrNoTask) {
			return nil, apperr.NotFound("task %d not found", id)
		}
		return nil, err
	}
	s.publish(t.WorkspaceID, "task.updated", t)
	return t, nil
}

func (s *Service) DeleteTask(ctx context.Context, id int64) error {
	t, err := s.GetTask(ctx, id)
	if err != nil {
		return err
	}
	if err := s.tasks.DeleteTask(ctx, id); err != nil {
		if errors.Is(err, store.ErrNoTask) {
			return apperr.NotFound("task %d not found", id)
		}
		return err
	}
	s.publish(t.WorkspaceID, "task.deleted", map[string]int64{"id": id})
	return nil
}

func (s *Service) CreateEpic(ctx context.Context, e *store.Epic) (*store.Epic, error) {
	e.Name = strings.TrimSpace(e.Name)
	if e.Name == "" {
		return nil, apperr.Validation("name is required")
	}
	if e.Status == "" {
		e.Status = "open"
	}
	if _, err := s.tasks.CreateEpic(ctx, e); err != nil {
		return nil, err
	}
	s.publish(e.WorkspaceID, "epic.created", e)
	return e, nil
}

func (s *Service) ListEpics(ctx context.Context, workspaceID int64) ([]store.Epic, error) {
	return s.tasks.ListEpics(ctx, workspaceID)
}

// DeleteEpic removes the epic; its tasks are detached, not deleted.
func (s *Service) DeleteEpic(ctx context.Context, id int64) error {
	e, err := s.tasks.GetEpic(ctx, id)
	if err != nil {
		return err
	}
	if e == nil {
		return apperr.NotFound("epic %d not found", id)
	}
	if err := s.tasks.DeleteEpic(ctx, id); err != nil {
		if errors.Is(err, store.ErrNoEpic) {
			return apperr.NotFound("epic %d not found", id)
		}
		return err
	}
	s.publish(e.WorkspaceID, "epic.deleted", map[string]int64{"id": id})
	return nil
}

func (s *Service) publish(workspaceID int64, eventType string, payload any) {
	if s.hub == nil {
		return
	}
	s.hub.Publish(events.Event{Type: eventType, WorkspaceID: workspaceID, Payload: payload})
}
