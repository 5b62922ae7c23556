package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var ErrNoWorkspace = errors.New("workspace not found")

type Workspace struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	IsDefault   bool      `json:"is_default"`
	BudgetCents int64     `json:"budget_cents"`
	BrandColor  string    `json:"brand_color"`
	LogoURL     string    `json:"logo_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// WorkspaceUpdate carries the mutable fields. Slug is immutable by design
// and has no representation here.
type WorkspaceUpdate struct {
	Name        *string
	BudgetCents *int64
	BrandColor  *string
	LogoURL     *string
}

type CascadeReport struct {
	DeletedID           int64            `json:"deleted_id"`
	DeletedData         *Workspace       `json:"deleted_data"`
	PerTable            map[string]int64 `json:"per_table"`
	TotalRecordsDeleted int64            `json:"total_records_deleted"`
}

// workspaceScopedTables are the tables swept by cascade delete and the
// orphan reconciler, in deletion order (children before owners).
var workspaceScopedTables = []string{
	"wiki_comments",
	"wiki_pages",
	"tasks",
	"epics",
	"messages",
	"activities",
	"alerts",
	"board_access",
	"invite_board_access",
	"invites",
	"organization_members",
	"workspace_settings",
}

const taskCounterKey = "task_counter"

type WorkspacesStore interface {
	Create(ctx context.Context, w *Workspace) (int64, error)
	Get(ctx context.Context, id int64) (*Workspace, error)
	GetBySlug(ctx context.Context, slug string) (*Workspace, error)
	List(ctx context.Context) ([]Workspace, error)
	Count(ctx context.Context) (int, error)
	Update(ctx context.Context, id int64, upd WorkspaceUpdate) (*Workspace, error)
	SetDefault(ctx context.Context, id int64) (*Workspace, error)
	CascadeDelete(ctx context.Context, id int64, batchSize int) (*CascadeReport, error)
	SweepOrphans(ctx context.Context, batchSize int) (map[string]int64, error)

	GetSetting(ctx context.Context, workspaceID int64, key string) (string, error)
	SetSetting(ctx context.Context, workspaceID int64, key, value string) error
	NextTaskNumber(ctx context.Context, workspaceID int64) (int64, error)
}

type workspacesStore struct {
	db *sql.DB
}

func NewWorkspacesStore(db *sql.DB) WorkspacesStore {
	return &workspacesStore{db: db}
}

const workspaceColumns = `id, name, slug, is_default, budget_cents, brand_color, logo_url, created_at, updated_at`

func (s *workspacesStore) Create(ctx context.Context, w *Workspace) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if w.IsDefault {
		// Defensive: the invariant says no other default can exist when the
		// first workspace is created, but clear anyway.
		if _, err := tx.ExecContext(ctx, `UPDATE workspaces SET is_default=0 WHERE is_default=1`); err != nil {
			return 0, err
		}
	}
	now := time.Now().UTC()
	w.CreatedAt = now
	w.UpdatedAt = now
	res, err := tx.ExecContext(ctx, `
		INSERT INTO workspaces(name, slug, is_default, budget_cents, brand_color, logo_url, created_at, updated_at)
		VALUES(?,?,?,?,?,?,?,?)`,
		w.Name, w.Slug, boolToInt(w.IsDefault), w.BudgetCents, w.BrandColor, w.LogoURL, now, now)
	if err != nil {
		return 0, err
	}
	id, _ := res.LastInsertId()
	w.ID = id
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO workspace_settings(workspace_id, key, value) VALUES(?,?,?)`,
		id, taskCounterKey, "0"); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *workspacesStore) Get(ctx context.Context, id int64) (*Workspace, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+workspaceColumns+` FROM workspaces WHERE id=?`, id)
	return scanWorkspace(row)
}

func (s *workspacesStore) GetBySlug(ctx context.Context, slug string) (*Workspace, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+workspaceColumns+` FROM workspaces WHERE slug=?`, slug)
	return scanWorkspace(row)
}

func (s *workspacesStore) List(ctx context.Context) ([]Workspace, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+workspaceColumns+` FROM workspaces ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Workspace
	for rows.Next() {
		var w Workspace
		if err := rows.Scan(&w.ID, &w.Name, &w.Slug, &w.IsDefault, &w.BudgetCents, &w.BrandColor, &w.LogoURL, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, w)
	}
	return res, rows.Err()
}

func (s *workspacesStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM workspaces`).Scan(&n)
	return n, err
}

func (s *workspacesStore) Update(ctx context.Context, id int64, upd WorkspaceUpdate) (*Workspace, error) {
	cur, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, ErrNoWorkspace
	}
	if upd.Name != nil {
		cur.Name = *upd.Name
	}
	if upd.BudgetCents != nil {
		cur.BudgetCents = *upd.BudgetCents
	}
	if upd.BrandColor != nil {
		cur.BrandColor = *upd.BrandColor
	}
	if upd.LogoURL != nil {
		cur.LogoURL = *upd.LogoURL
	}
	cur.UpdatedAt = time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		UPDATE workspaces SET name=?, budget_cents=?, brand_color=?, logo_url=?, updated_at=? WHERE id=?`,
		cur.Name, cur.BudgetCents, cur.BrandColor, cur.LogoURL, cur.UpdatedAt, id)
	if err != nil {
		return nil, err
	}
	return cur, nil
}

func (s *workspacesStore) SetDefault(ctx context.Context, id int64) (*Workspace, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT `+workspaceColumns+` FROM workspaces WHERE id=?`, id)
	w, err := scanWorkspace(row)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, ErrNoWorkspace
	}
	if w.IsDefault {
		return w, nil
	}
	// Clear and set inside one transaction so exactly one default is ever
	// observable.
	if _, err := tx.ExecContext(ctx, `UPDATE workspaces SET is_default=0 WHERE is_default=1`); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE workspaces SET is_default=1, updated_at=? WHERE id=?`, time.Now().UTC(), id); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	w.IsDefault = true
	return w, nil
}

// CascadeDelete removes every row scoped to the workspace, then the
// workspace itself. Deletion is batched per table to bound statement cost,
// which makes the cascade non-atomic as a whole: the report exists so
// callers can detect a partial cascade, and the reconciler sweeps up
// anything left behind by a crash.
func (s *workspacesStore) CascadeDelete(ctx context.Context, id int64, batchSize int) (*CascadeReport, error) {
	w, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, ErrNoWorkspace
	}
	if batchSize <= 0 {
		batchSize = 500
	}
	report := &CascadeReport{DeletedID: id, DeletedData: w, PerTable: map[string]int64{}}

	// History and search rows hang off pages, not the workspace; clear them
	// while the page rows still exist to join against.
	n, err := s.deleteByPageJoin(ctx, "wiki_page_history", id, batchSize)
	if err != nil {
		return report, err
	}
	report.PerTable["wiki_page_history"] = n
	if _, err := s.db.ExecContext(ctx, `DELETE FROM wiki_fts WHERE workspace_id=?`, id); err != nil {
		return report, err
	}

	for _, table := range workspaceScopedTables {
		n, err := s.deleteScopedBatched(ctx, table, id, batchSize)
		if err != nil {
			return report, err
		}
		report.PerTable[table] = n
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM workspaces WHERE id=?`, id); err != nil {
		return report, err
	}
	for _, n := range report.PerTable {
		report.TotalRecordsDeleted += n
	}
	return report, nil
}

func (s *workspacesStore) deleteScopedBatched(ctx context.Context, table string, workspaceID int64, batchSize int) (int64, error) {
	var total int64
	for {
		res, err := s.db.ExecContext(ctx,
			`DELETE FROM `+table+` WHERE id IN (SELECT id FROM `+table+` WHERE workspace_id=? LIMIT ?)`,
			workspaceID, batchSize)
		if err != nil {
			return total, err
		}
		n, _ := res.RowsAffected()
		total += n
		if n < int64(batchSize) {
			return total, nil
		}
	}
}

func (s *workspacesStore) deleteByPageJoin(ctx context.Context, table string, workspaceID int64, batchSize int) (int64, error) {
	var total int64
	for {
		res, err := s.db.ExecContext(ctx,
			`DELETE FROM `+table+` WHERE id IN (
				SELECT h.id FROM `+table+` h
				JOIN wiki_pages p ON p.id = h.page_id
				WHERE p.workspace_id=? LIMIT ?)`,
			workspaceID, batchSize)
		if err != nil {
			return total, err
		}
		n, _ := res.RowsAffected()
		total += n
		if n < int64(batchSize) {
			return total, nil
		}
	}
}

// SweepOrphans deletes rows in workspace-scoped tables whose workspace no
// longer exists. It closes the gap left by a cascade delete that crashed
// partway through.
func (s *workspacesStore) SweepOrphans(ctx context.Context, batchSize int) (map[string]int64, error) {
	if batchSize <= 0 {
		batchSize = 500
	}
	swept := map[string]int64{}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM wiki_page_history WHERE page_id IN (
			SELECT p.id FROM wiki_pages p WHERE p.workspace_id NOT IN (SELECT id FROM workspaces))`)
	if err != nil {
		return swept, err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		swept["wiki_page_history"] = n
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM wiki_fts WHERE workspace_id NOT IN (SELECT id FROM workspaces)`); err != nil {
		return swept, err
	}
	for _, table := range workspaceScopedTables {
		var total int64
		for {
			res, err := s.db.ExecContext(ctx,
				`DELETE FROM `+table+` WHERE id IN (
					SELECT id FROM `+table+` WHERE workspace_id NOT IN (SELECT id FROM workspaces) LIMIT ?)`,
				batchSize)
			if err != nil {
				return swept, err
			}
			n, _ := res.RowsAffected()
			total += n
			if n < int64(batchSize) {
				break
			}
		}
		if total > 0 {
			swept[table] = total
		}
	}
	return swept, nil
}

func (s *workspacesStore) GetSetting(ctx context.Context, workspaceID int64, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM workspace_settings WHERE workspace_id=? AND key=?`, workspaceID, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

func (s *workspacesStore) SetSetting(ctx context.Context, workspaceID int64, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workspace_settings(workspace_id, key, value) VALUES(?,?,?)
		ON CONFLICT(workspace_id, key) DO UPDATE SET value=excluded.value`,
		workspaceID, key, value)
	return err
}

func (s *workspacesStore) NextTaskNumber(ctx context.Context, workspaceID int64) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO workspace_settings(workspace_id, key, value) VALUES(?,?, '1')
		ON CONFLICT(workspace_id, key)
		DO UPDATE SET value = CAST(workspace_settings.value AS INTEGER) + 1
		RETURNING CAST(value AS INTEGER)`,
		workspaceID, taskCounterKey).Scan(&seq)
	return seq, err
}

func scanWorkspace(row *sql.Row) (*Workspace, error) {
	var w Workspace
	if err := row.Scan(&w.ID, &w.Name, &w.Slug, &w.IsDefault, &w.BudgetCents, &w.BrandColor, &w.LogoURL, &w.CreatedAt, &w.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &w, nil
}
