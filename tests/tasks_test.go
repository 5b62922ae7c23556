package tests

import (
	"context"
	"testing"

	"missionctl/core/apperr"
	"missionctl/core/store"
	"missionctl/core/tasks"
)

func (e *testEnv) tasksService() *tasks.Service {
	return tasks.NewService(e.tasksStore, e.workspaces, nil, e.logger)
}

func TestTaskIdentifiersAreSequentialPerWorkspace(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	svc := env.tasksService()
	a := env.mustWorkspace(t, "A", "a")
	b := env.mustWorkspace(t, "B", "b")

	for i, want := range []string{"TASK-1", "TASK-2", "TASK-3"} {
		task, err := svc.CreateTask(ctx, &store.Task{WorkspaceID: a.ID, Title: "work"})
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		if task.Identifier != want {
			t.Fatalf("expected %s, got %s", want, task.Identifier)
		}
	}
	// The counter is per workspace, not global.
	task, err := svc.CreateTask(ctx, &store.Task{WorkspaceID: b.ID, Title: "other"})
	if err != nil {
		t.Fatalf("create in b: %v", err)
	}
	if task.Identifier != "TASK-1" {
		t.Fatalf("expected TASK-1 in fresh workspace, got %s", task.Identifier)
	}
}

func TestTaskDefaultsAndValidation(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	svc := env.tasksService()
	w := env.mustWorkspace(t, "Acme", "acme")

	if _, err := svc.CreateTask(ctx, &store.Task{WorkspaceID: w.ID, Title: "   "}); !apperr.IsCode(err, "validation") {
		t.Fatalf("expected validation for blank title, got %v", err)
	}
	task, err := svc.CreateTask(ctx, &store.Task{WorkspaceID: w.ID, Title: "fix it"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if task.Status != "backlog" || task.Priority != "normal" {
		t.Fatalf("defaults not applied: %s/%s", task.Status, task.Priority)
	}
}

func TestTaskCannotJoinForeignEpic(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	svc := env.tasksService()
	a := env.mustWorkspace(t, "A", "a")
	b := env.mustWorkspace(t, "B", "b")

	epic, err := svc.CreateEpic(ctx, &store.Epic{WorkspaceID: a.ID, Name: "launch"})
	if err != nil {
		t.Fatalf("epic: %v", err)
	}
	if _, err := svc.CreateTask(ctx, &store.Task{WorkspaceID: b.ID, Title: "t", EpicID: &epic.ID}); !apperr.IsCode(err, "not_found") {
		t.Fatalf("expected not_found for cross-tenant epic, got %v", err)
	}
}

func TestDeleteEpicDetachesTasks(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	svc := env.tasksService()
	w := env.mustWorkspace(t, "Acme", "acme")

	epic, err := svc.CreateEpic(ctx, &store.Epic{WorkspaceID: w.ID, Name: "launch"})
	if err != nil {
		t.Fatalf("epic: %v", err)
	}
	task, err := svc.CreateTask(ctx, &store.Task{WorkspaceID: w.ID, Title: "inside", EpicID: &epic.ID})
	if err != nil {
		t.Fatalf("task: %v", err)
	}
	if err := svc.DeleteEpic(ctx, epic.ID); err != nil {
		t.Fatalf("delete epic: %v", err)
	}
	got, err := svc.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.EpicID != nil {
		t.Fatalf("task still attached to deleted epic")
	}
}
