package store

import (
	"context"
	"database/sql"
	"time"
)

type Message struct {
	ID          int64     `json:"id"`
	WorkspaceID int64     `json:"workspace_id"`
	AgentID     *int64    `json:"agent_id,omitempty"`
	FromID      *int64    `json:"from_id,omitempty"`
	FromName    string    `json:"from_name"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
}

type Activity struct {
	ID          int64     `json:"id"`
	WorkspaceID int64     `json:"workspace_id"`
	ActorID     *int64    `json:"actor_id,omitempty"`
	ActorName   string    `json:"actor_name"`
	Action      string    `json:"action"`
	EntityType  string    `json:"entity_type"`
	EntityID    *int64    `json:"entity_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type Alert struct {
	ID          int64     `json:"id"`
	WorkspaceID int64     `json:"workspace_id"`
	Kind        string    `json:"kind"`
	Message     string    `json:"message"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"created_at"`
}

// FeedStore covers the workspace activity surfaces: chat messages, the
// activity timeline and alerts.
type FeedStore interface {
	AddMessage(ctx context.Context, m *Message) (int64, error)
	ListMessages(ctx context.Context, workspaceID int64, limit int) ([]Message, error)
	RecordActivity(ctx context.Context, a *Activity) (int64, error)
	ListActivities(ctx context.Context, workspaceID int64, limit int) ([]Activity, error)
	AddAlert(ctx context.Context, a *Alert) (int64, error)
	ListAlerts(ctx context.Context, workspaceID int64, unreadOnly bool) ([]Alert, error)
	MarkAlertRead(ctx context.Context, id int64) error
}

type feedStore struct {
	db *sql.DB
}

func NewFeedStore(db *sql.DB) FeedStore {
	return &feedStore{db: db}
}

func (s *feedStore) AddMessage(ctx context.Context, m *Message) (int64, error) {
	m.CreatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO messages(workspace_id, agent_id, from_id, from_name, content, created_at)
		VALUES(?,?,?,?,?,?)`,
		m.WorkspaceID, nullableID(m.AgentID), nullableID(m.FromID), m.FromName, m.Content, m.CreatedAt)
	if err != nil {
		return 0, err
	}
	id, _ := res.LastInsertId()
	m.ID = id
	return id, nil
}

func (s *feedStore) ListMessages(ctx context.Context, workspaceID int64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workspace_id, agent_id, from_id, from_name, content, created_at
		FROM messages WHERE workspace_id=? ORDER BY id DESC LIMIT ?`, workspaceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Message
	for rows.Next() {
		var m Message
		var agentID, fromID sql.NullInt64
		if err := rows.Scan(&m.ID, &m.WorkspaceID, &agentID, &fromID, &m.FromName, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.AgentID = scanNullableID(agentID)
		m.FromID = scanNullableID(fromID)
		res = append(res, m)
	}
	return res, rows.Err()
}

func (s *feedStore) RecordActivity(ctx context.Context, a *Activity) (int64, error) {
	a.CreatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO activities(workspace_id, actor_id, actor_name, action, entity_type, entity_id, created_at)
		VALUES(?,?,?,?,?,?,?)`,
		a.WorkspaceID, nullableID(a.ActorID), a.ActorName, a.Action, a.EntityType, nullableID(a.EntityID), a.CreatedAt)
	if err != nil {
		return 0, err
	}
	id, _ := res.LastInsertId()
	a.ID = id
	return id, nil
}

func (s *feedStore) ListActivities(ctx context.Context, workspaceID int64, limit int) ([]Activity, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workspace_id, actor_id, actor_name, action, entity_type, entity_id, created_at
		FROM activities WHERE workspace_id=? ORDER BY id DESC LIMIT ?`, workspaceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Activity
	for rows.Next() {
		var a Activity
		var actorID, entityID sql.NullInt64
		if err := rows.Scan(&a.ID, &a.WorkspaceID, &actorID, &a.ActorName, &a.Action, &a.EntityType, &entityID, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.ActorID = scanNullableID(actorID)
		a.EntityID = scanNullableID(entityID)
		res = append(res, a)
	}
	return res, rows.Err()
}

func (s *feedStore) AddAlert(ctx context.Context, a *Alert) (int64, error) {
	a.CreatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO alerts(workspace_id, kind, message, read, created_at)
		VALUES(?,?,?,?,?)`,
		a.WorkspaceID, a.Kind, a.Message, boolToInt(a.Read), a.CreatedAt)
	if err != nil {
		return 0, err
	}
	id, _ := res.LastInsertId()
	a.ID = id
	return id, nil
}

func (s *feedStore) ListAlerts(ctx context.Context, workspaceID int64, unreadOnly bool) ([]Alert, error) {
	query := `SELECT id, workspace_id, kind, message, read, created_at FROM alerts WHERE workspace_id=?`
	if unreadOnly {
		query += ` AND read=0`
	}
	query += ` ORDER BY id DESC`
	rows, err := s.db.QueryContext(ctx, query, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Alert
	for rows.Next() {
		var a Alert
		if err := rows.Scan(&a.ID, &a.WorkspaceID, &a.Kind, &a.Message, &a.Read, &a.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (s *feedStore) MarkAlertRead(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE alerts SET read=1 WHERE id=?`, id)
	return err
}
