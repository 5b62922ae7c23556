package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var (
	ErrNoMember      = errors.New("member not found")
	ErrAlreadyMember = errors.New("user is already a member")
)

type Member struct {
	ID          int64     `json:"id"`
	WorkspaceID int64     `json:"workspace_id"`
	UserID      int64     `json:"user_id"`
	UserName    string    `json:"user_name"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
	InvitedBy   *int64    `json:"invited_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type BoardGrant struct {
	ID          int64  `json:"id"`
	WorkspaceID int64  `json:"workspace_id"`
	MemberID    int64  `json:"member_id"`
	BoardID     string `json:"board_id"`
	CanRead     bool   `json:"can_read"`
	CanWrite    bool   `json:"can_write"`
}

type MembersStore interface {
	Add(ctx context.Context, m *Member) (int64, error)
	Get(ctx context.Context, id int64) (*Member, error)
	GetByUser(ctx context.Context, workspaceID, userID int64) (*Member, error)
	List(ctx context.Context, workspaceID int64) ([]Member, error)
	ListForUser(ctx context.Context, userID int64) ([]Member, error)
	UpdateRole(ctx context.Context, id int64, role string) error
	Remove(ctx context.Context, id int64) error
	CountByRole(ctx context.Context, workspaceID int64, role string) (int, error)

	GrantBoard(ctx context.Context, g *BoardGrant) error
	RevokeBoard(ctx context.Context, memberID int64, boardID string) error
	ListBoardGrants(ctx context.Context, memberID int64) ([]BoardGrant, error)
	BoardAccess(ctx context.Context, memberID int64, boardID string) (canRead, canWrite bool, err error)
}

type membersStore struct {
	db *sql.DB
}

func NewMembersStore(db *sql.DB) MembersStore {
	return &membersStore{db: db}
}

const memberColumns = `id, workspace_id, user_id, user_name, email, role, invited_by, created_at`

func (s *membersStore) Add(ctx context.Context, m *Member) (int64, error) {
	existing, err := s.GetByUser(ctx, m.WorkspaceID, m.UserID)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		return 0, ErrAlreadyMember
	}
	m.CreatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO organization_members(workspace_id, user_id, user_name, email, role, invited_by, created_at)
		VALUES(?,?,?,?,?,?,?)`,
		m.WorkspaceID, m.UserID, m.UserName, m.Email, m.Role, nullableID(m.InvitedBy), m.CreatedAt)
	if err != nil {
		return 0, err
	}
	id, _ := res.LastInsertId()
	m.ID = id
	return id, nil
}

func (s *membersStore) Get(ctx context.Context, id int64) (*Member, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM organization_members WHERE id=?`, id)
	return scanMember(row)
}

func (s *membersStore) GetByUser(ctx context.Context, workspaceID, userID int64) (*Member, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM organization_members WHERE workspace_id=? AND user_id=?`,
		workspaceID, userID)
	return scanMember(row)
}

func (s *membersStore) List(ctx context.Context, workspaceID int64) ([]Member, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+memberColumns+` FROM organization_members WHERE workspace_id=? ORDER BY created_at, id`,
		workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMembers(rows)
}

func (s *membersStore) ListForUser(ctx context.Context, userID int64) ([]Member, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+memberColumns+` FROM organization_members WHERE user_id=? ORDER BY workspace_id`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMembers(rows)
}

func (s *membersStore) UpdateRole(ctx context.Context, id int64, role string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE organization_members SET role=? WHERE id=?`, role, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNoMember
	}
	return nil
}

// Remove drops the member and their board grants in one transaction so no
// dangling grants survive the member row.
func (s *membersStore) Remove(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM board_access WHERE member_id=?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM organization_members WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNoMember
	}
	return tx.Commit()
}

func (s *membersStore) CountByRole(ctx context.Context, workspaceID int64, role string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM organization_members WHERE workspace_id=? AND role=?`,
		workspaceID, role).Scan(&n)
	return n, err
}

func (s *membersStore) GrantBoard(ctx context.Context, g *BoardGrant) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO board_access(workspace_id, member_id, board_id, can_read, can_write)
		VALUES(?,?,?,?,?)
		ON CONFLICT(member_id, board_id)
		DO UPDATE SET can_read=excluded.can_read, can_write=excluded.can_write`,
		g.WorkspaceID, g.MemberID, g.BoardID, boolToInt(g.CanRead), boolToInt(g.CanWrite))
	return err
}

func (s *membersStore) RevokeBoard(ctx context.Context, memberID int64, boardID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM board_access WHERE member_id=? AND board_id=?`, memberID, boardID)
	return err
}

func (s *membersStore) ListBoardGrants(ctx context.Context, memberID int64) ([]BoardGrant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workspace_id, member_id, board_id, can_read, can_write
		FROM board_access WHERE member_id=? ORDER BY board_id`, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []BoardGrant
	for rows.Next() {
		var g BoardGrant
		if err := rows.Scan(&g.ID, &g.WorkspaceID, &g.MemberID, &g.BoardID, &g.CanRead, &g.CanWrite); err != nil {
			return nil, err
		}
		res = append(res, g)
	}
	return res, rows.Err()
}

// BoardAccess reports the effective grant for a member on a board. A member
// with no grant row has no board-level access at all.
func (s *membersStore) BoardAccess(ctx context.Context, memberID int64, boardID string) (bool, bool, error) {
	var canRead, canWrite bool
	err := s.db.QueryRowContext(ctx,
		`SELECT can_read, can_write FROM board_access WHERE member_id=? AND board_id=?`,
		memberID, boardID).Scan(&canRead, &canWrite)
	if errors.Is(err, sql.ErrNoRows) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return canRead, canWrite, nil
}

func scanMember(row *sql.Row) (*Member, error) {
	var m Member
	var invitedBy sql.NullInt64
	if err := row.Scan(&m.ID, &m.WorkspaceID, &m.UserID, &m.UserName, &m.Email, &m.Role, &invitedBy, &m.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	m.InvitedBy = scanNullableID(invitedBy)
	return &m, nil
}

func collectMembers(rows *sql.Rows) ([]Member, error) {
	var res []Member
	for rows.Next() {
		var m Member
		var invitedBy sql.NullInt64
		if err := rows.Scan(&m.ID, &m.WorkspaceID, &m.UserID, &m.UserName, &m.Email, &m.Role, &invitedBy, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.InvitedBy = scanNullableID(invitedBy)
		res = append(res, m)
	}
	return res, rows.Err()
}
