package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNoTask = errors.New("task not found")
	ErrNoEpic = errors.New("epic not found")
)

type Epic struct {
	ID          int64     `json:"id"`
	WorkspaceID int64     `json:"workspace_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	Color       string    `json:"color"`
	Position    int       `json:"position"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Task struct {
	ID          int64     `json:"id"`
	WorkspaceID int64     `json:"workspace_id"`
	Identifier  string    `json:"identifier"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	Priority    string    `json:"priority"`
	EpicID      *int64    `json:"epic_id,omitempty"`
	AssigneeID  *int64    `json:"assignee_agent_id,omitempty"`
	Position    int       `json:"position"`
	CreatedBy   *int64    `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type TaskUpdate struct {
	Title       *string
	Description *string
	Status      *string
	Priority    *string
	EpicID      *int64
	ClearEpic   bool
	AssigneeID  *int64
	Position    *int
}

type TasksStore interface {
	CreateEpic(ctx context.Context, e *Epic) (int64, error)
	GetEpic(ctx context.Context, id int64) (*Epic, error)
	ListEpics(ctx context.Context, workspaceID int64) ([]Epic, error)
	DeleteEpic(ctx context.Context, id int64) error

	CreateTask(ctx context.Context, t *Task) (int64, error)
	GetTask(ctx context.Context, id int64) (*Task, error)
	GetTaskByIdentifier(ctx context.Context, workspaceID int64, identifier string) (*Task, error)
	ListTasks(ctx context.Context, workspaceID int64, status string) ([]Task, error)
	ListTasksByIDs(ctx context.Context, ids []int64) ([]Task, error)
	UpdateTask(ctx context.Context, id int64, upd TaskUpdate) (*Task, error)
	DeleteTask(ctx context.Context, id int64) error
}

type tasksStore struct {
	db *sql.DB
}

func NewTasksStore(db *sql.DB) TasksStore {
	return &tasksStore{db: db}
}

const epicColumns = `id, workspace_id, name, description, status, color, position, created_at, updated_at`
const taskColumns = `id, workspace_id, identifier, title, description, status, priority, epic_id, assignee_agent_id, position, created_by, created_at, updated_at`

func (s *tasksStore) CreateEpic(ctx context.Context, e *Epic) (int64, error) {
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO epics(workspace_id, name, description, status, color, position, created_at, updated_at)
		VALUES(?,?,?,?,?,?,?,?)`,
		e.WorkspaceID, e.Name, e.Description, e.Status, e.Color, e.Position, now, now)
	if err != nil {
		return 0, err
	}
	id, _ := res.LastInsertId()
	e.ID = id
	return id, nil
}

func (s *tasksStore) GetEpic(ctx context.Context, id int64) (*Epic, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+epicColumns+` FROM epics WHERE id=?`, id)
	var e Epic
	if err := row.Scan(&e.ID, &e.WorkspaceID, &e.Name, &e.Description, &e.Status, &e.Color, &e.Position, &e.CreatedAt, &e.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

func (s *tasksStore) ListEpics(ctx context.Context, workspaceID int64) ([]Epic, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+epicColumns+` FROM epics WHERE workspace_id=? ORDER BY position, id`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Epic
	for rows.Next() {
		var e Epic
		if err := rows.Scan(&e.ID, &e.WorkspaceID, &e.Name, &e.Description, &e.Status, &e.Color, &e.Position, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// DeleteEpic detaches the epic's tasks rather than deleting them.
func (s *tasksStore) DeleteEpic(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE tasks SET epic_id=NULL WHERE epic_id=?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM epics WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNoEpic
	}
	return tx.Commit()
}

func (s *tasksStore) CreateTask(ctx context.Context, t *Task) (int64, error) {
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks(workspace_id, identifier, title, description, status, priority, epic_id, assignee_agent_id, position, created_by, created_at, updated_at)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.WorkspaceID, t.Identifier, t.Title, t.Description, t.Status, t.Priority,
		nullableID(t.EpicID), nullableID(t.AssigneeID), t.Position, nullableID(t.CreatedBy), now, now)
	if err != nil {
		return 0, err
	}
	id, _ := res.LastInsertId()
	t.ID = id
	return id, nil
}

func (s *tasksStore) GetTask(ctx context.Context, id int64) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id)
	return scanTask(row)
}

func (s *tasksStore) GetTaskByIdentifier(ctx context.Context, workspaceID int64, identifier string) (*Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE workspace_id=? AND identifier=?`, workspaceID, identifier)
	return scanTask(row)
}

func (s *tasksStore) ListTasks(ctx context.Context, workspaceID int64, status string) ([]Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE workspace_id=?`
	args := []any{workspaceID}
	if status != "" {
		query += ` AND status=?`
		args = append(args, status)
	}
	query += ` ORDER BY position, id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

func (s *tasksStore) ListTasksByIDs(ctx context.Context, ids []int64) ([]Task, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s FROM tasks WHERE id IN (%s) ORDER BY position, id`, taskColumns, placeholders(len(ids))),
		int64Args(ids)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

func (s *tasksStore) UpdateTask(ctx context.Context, id int64, upd TaskUpdate) (*Task, error) {
	t, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrNoTask
	}
	if upd.Title != nil {
		t.Title = *upd.Title
	}
	if upd.Description != nil {
		t.Description = *upd.Description
	}
	if upd.Status != nil {
		t.Status = *upd.Status
	}
	if upd.Priority != nil {
		t.Priority = *upd.Priority
	}
	if upd.ClearEpic {
		t.EpicID = nil
	} else if upd.EpicID != nil {
		t.EpicID = upd.EpicID
	}
	if upd.AssigneeID != nil {
		t.AssigneeID = upd.AssigneeID
	}
	if upd.Position != nil {
		t.Position = *upd.Position
	}
	t.UpdatedAt = time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		UPDATE tasks SET title=?, description=?, status=?, priority=?, epic_id=?, assignee_agent_id=?, position=?, updated_at=?
		WHERE id=?`,
		t.Title, t.Description, t.Status, t.Priority,
		nullableID(t.EpicID), nullableID(t.AssigneeID), t.Position, t.UpdatedAt, id)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *tasksStore) DeleteTask(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNoTask
	}
	return nil
}

func scanTask(row *sql.Row) (*Task, error) {
	var t Task
	var epicID, assigneeID, createdBy sql.NullInt64
	if err := row.Scan(&t.ID, &t.WorkspaceID, &t.Identifier, &t.Title, &t.Description, &t.Status, &t.Priority,
		&epicID, &assigneeID, &t.Position, &createdBy, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	t.EpicID = scanNullableID(epicID)
	t.AssigneeID = scanNullableID(assigneeID)
	t.CreatedBy = scanNullableID(createdBy)
	return &t, nil
}

func collectTasks(rows *sql.Rows) ([]Task, error) {
	var res []Task
	for rows.Next() {
		var t Task
		var epicID, assigneeID, createdBy sql.NullInt64
		if err := rows.Scan(&t.ID, &t.WorkspaceID, &t.Identifier, &t.Title, &t.Description, &t.Status, &t.Priority,
			&epicID, &assigneeID, &t.Position, &createdBy, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		t.EpicID = scanNullableID(epicID)
		t.AssigneeID = scanNullableID(assigneeID)
		t.CreatedBy = scanNullableID(createdBy)
		res = append(res, t)
	}
	return res, rows.Err()
}
