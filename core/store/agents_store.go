package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var ErrNoAgent = errors.New("agent not found")

type Agent struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Model     string    `json:"model"`
	Avatar    string    `json:"avatar"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type AgentsStore interface {
	Create(ctx context.Context, a *Agent) (int64, error)
	Get(ctx context.Context, id int64) (*Agent, error)
	GetByName(ctx context.Context, name string) (*Agent, error)
	List(ctx context.Context) ([]Agent, error)
	SetActive(ctx context.Context, id int64, active bool) error
}

type agentsStore struct {
	db *sql.DB
}

func NewAgentsStore(db *sql.DB) AgentsStore {
	return &agentsStore{db: db}
}

const agentColumns = `id, name, role, model, avatar, active, created_at`

func (s *agentsStore) Create(ctx context.Context, a *Agent) (int64, error) {
	a.CreatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO agents(name, role, model, avatar, active, created_at)
		VALUES(?,?,?,?,?,?)`,
		a.Name, a.Role, a.Model, a.Avatar, boolToInt(a.Active), a.CreatedAt)
	if err != nil {
		return 0, err
	}
	id, _ := res.LastInsertId()
	a.ID = id
	return id, nil
}

func (s *agentsStore) Get(ctx context.Context, id int64) (*Agent, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+agentColumns+` FROM agents WHERE id=?`, id)
	return scanAgent(row)
}

func (s *agentsStore) GetByName(ctx context.Context, name string) (*Agent, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+agentColumns+` FROM agents WHERE name=?`, name)
	return scanAgent(row)
}

func (s *agentsStore) List(ctx context.Context) ([]Agent, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+agentColumns+` FROM agents ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Agent
	for rows.Next() {
		var a Agent
		if err := rows.Scan(&a.ID, &a.Name, &a.Role, &a.Model, &a.Avatar, &a.Active, &a.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (s *agentsStore) SetActive(ctx context.Context, id int64, active bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE agents SET active=? WHERE id=?`, boolToInt(active), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNoAgent
	}
	return nil
}

func scanAgent(row *sql.Row) (*Agent, error) {
	var a Agent
	if err := row.Scan(&a.ID, &a.Name, &a.Role, &a.Model, &a.Avatar, &a.Active, &a.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}
