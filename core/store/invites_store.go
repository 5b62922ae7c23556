package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNoInvite       = errors.New("invite not found")
	ErrInviteUsed     = errors.New("invite already accepted")
	ErrInviteExpired  = errors.New("invite expired")
	ErrTokenCollision = errors.New("invite token collision")
)

type Invite struct {
	ID            int64      `json:"id"`
	WorkspaceID   int64      `json:"workspace_id"`
	Email         string     `json:"email"`
	Role          string     `json:"role"`
	Token         string     `json:"token"`
	InvitedBy     *int64     `json:"invited_by,omitempty"`
	InvitedByName string     `json:"invited_by_name"`
	CreatedAt     time.Time  `json:"created_at"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	AcceptedBy    *int64     `json:"accepted_by,omitempty"`
	AcceptedAt    *time.Time `json:"accepted_at,omitempty"`
}

// InviteBoardGrant is a board grant attached to a pending invite. It is
// copied into board_access when the invite is accepted.
type InviteBoardGrant struct {
	BoardID  string `json:"board_id"`
	CanRead  bool   `json:"can_read"`
	CanWrite bool   `json:"can_write"`
}

type InvitesStore interface {
	Create(ctx context.Context, inv *Invite, grants []InviteBoardGrant) (int64, error)
	Get(ctx context.Context, id int64) (*Invite, error)
	GetByToken(ctx context.Context, token string) (*Invite, error)
	List(ctx context.Context, workspaceID int64) ([]Invite, error)
	ListGrants(ctx context.Context, inviteID int64) ([]InviteBoardGrant, error)
	Revoke(ctx context.Context, id int64) error
	Accept(ctx context.Context, token string, userID int64, userName, email string) (*Member, error)
}

type invitesStore struct {
	db *sql.DB
}

func NewInvitesStore(db *sql.DB) InvitesStore {
	return &invitesStore{db: db}
}

const inviteColumns = `id, workspace_id, email, role, token, invited_by, invited_by_name, created_at, expires_at, accepted_by, accepted_at`

func (s *invitesStore) Create(ctx context.Context, inv *Invite, grants []InviteBoardGrant) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	inv.CreatedAt = time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO invites(workspace_id, email, role, token, invited_by, invited_by_name, created_at, expires_at)
		VALUES(?,?,?,?,?,?,?,?)`,
		inv.WorkspaceID, inv.Email, inv.Role, inv.Token,
		nullableID(inv.InvitedBy), inv.InvitedByName, inv.CreatedAt, inv.ExpiresAt)
	if err != nil {
		if isTokenCollision(err) {
			return 0, ErrTokenCollision
		}
		return 0, err
	}
	id, _ := res.LastInsertId()
	inv.ID = id
	for _, g := range grants {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO invite_board_access(invite_id, workspace_id, board_id, can_read, can_write)
			VALUES(?,?,?,?,?)`,
			id, inv.WorkspaceID, g.BoardID, boolToInt(g.CanRead), boolToInt(g.CanWrite)); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *invitesStore) Get(ctx context.Context, id int64) (*Invite, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+inviteColumns+` FROM invites WHERE id=?`, id)
	return scanInvite(row)
}

func (s *invitesStore) GetByToken(ctx context.Context, token string) (*Invite, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+inviteColumns+` FROM invites WHERE token=?`, token)
	return scanInvite(row)
}

func (s *invitesStore) List(ctx context.Context, workspaceID int64) ([]Invite, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+inviteColumns+` FROM invites WHERE workspace_id=? ORDER BY created_at DESC, id DESC`,
		workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Invite
	for rows.Next() {
		inv, err := scanInviteRows(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *inv)
	}
	return res, rows.Err()
}

func (s *invitesStore) ListGrants(ctx context.Context, inviteID int64) ([]InviteBoardGrant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT board_id, can_read, can_write FROM invite_board_access WHERE invite_id=? ORDER BY board_id`,
		inviteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []InviteBoardGrant
	for rows.Next() {
		var g InviteBoardGrant
		if err := rows.Scan(&g.BoardID, &g.CanRead, &g.CanWrite); err != nil {
			return nil, err
		}
		res = append(res, g)
	}
	return res, rows.Err()
}

func (s *invitesStore) Revoke(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM invite_board_access WHERE invite_id=?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM invites WHERE id=? AND accepted_at IS NULL`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		inv, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		if inv == nil {
			return ErrNoInvite
		}
		return ErrInviteUsed
	}
	return tx.Commit()
}

// Accept marks the invite as used, creates the membership and copies the
// invite's board grants, all in one transaction. The accepted_at update is
// a compare-and-set: two concurrent accepts of the same token resolve to
// exactly one winner, the loser sees ErrInviteUsed.
func (s *invitesStore) Accept(ctx context.Context, token string, userID int64, userName, email string) (*Member, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT `+inviteColumns+` FROM invites WHERE token=?`, token)
	inv, err := scanInvite(row)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, ErrNoInvite
	}
	if inv.ExpiresAt != nil && time.Now().UTC().After(*inv.ExpiresAt) {
		return nil, ErrInviteExpired
	}

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE invites SET accepted_by=?, accepted_at=? WHERE id=? AND accepted_at IS NULL`,
		userID, now, inv.ID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrInviteUsed
	}

	var existingID int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM organization_members WHERE workspace_id=? AND user_id=?`,
		inv.WorkspaceID, userID).Scan(&existingID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err == nil {
		return nil, ErrAlreadyMember
	}

	m := &Member{
		WorkspaceID: inv.WorkspaceID,
		UserID:      userID,
		UserName:    userName,
		Email:       email,
		Role:        inv.Role,
		InvitedBy:   inv.InvitedBy,
		CreatedAt:   now,
	}
	ins, err := tx.ExecContext(ctx, `
		INSERT INTO organization_members(workspace_id, user_id, user_name, email, role, invited_by, created_at)
		VALUES(?,?,?,?,?,?,?)`,
		m.WorkspaceID, m.UserID, m.UserName, m.Email, m.Role, nullableID(m.InvitedBy), m.CreatedAt)
	if err != nil {
		return nil, err
	}
	m.ID, _ = ins.LastInsertId()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO board_access(workspace_id, member_id, board_id, can_read, can_write)
		SELECT workspace_id, ?, board_id, can_read, can_write
		FROM invite_board_access WHERE invite_id=?`,
		m.ID, inv.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return m, nil
}

// isTokenCollision recognizes a unique violation on the invites token
// column from either driver: sqlite reports the column in the message,
// postgres reports SQLSTATE 23505 with the constraint name.
func isTokenCollision(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && strings.Contains(pgErr.ConstraintName, "token")
	}
	return strings.Contains(err.Error(), "invites.token")
}

func scanInvite(row *sql.Row) (*Invite, error) {
	var inv Invite
	var invitedBy, acceptedBy sql.NullInt64
	var expiresAt, acceptedAt sql.NullTime
	if err := row.Scan(&inv.ID, &inv.WorkspaceID, &inv.Email, &inv.Role, &inv.Token,
		&invitedBy, &inv.InvitedByName, &inv.CreatedAt, &expiresAt, &acceptedBy, &acceptedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	inv.InvitedBy = scanNullableID(invitedBy)
	inv.AcceptedBy = scanNullableID(acceptedBy)
	if expiresAt.Valid {
		t := expiresAt.Time
		inv.ExpiresAt = &t
	}
	if acceptedAt.Valid {
		t := acceptedAt.Time
		inv.AcceptedAt = &t
	}
	return &inv, nil
}

func scanInviteRows(rows *sql.Rows) (*Invite, error) {
	var inv Invite
	var invitedBy, acceptedBy sql.NullInt64
	var expiresAt, acceptedAt sql.NullTime
	if err := rows.Scan(&inv.ID, &inv.WorkspaceID, &inv.Email, &inv.Role, &inv.Token,
		&invitedBy, &inv.InvitedByName, &inv.CreatedAt, &expiresAt, &acceptedBy, &acceptedAt); err != nil {
		return nil, err
	}
	inv.InvitedBy = scanNullableID(invitedBy)
	inv.AcceptedBy = scanNullableID(acceptedBy)
	if expiresAt.Valid {
		t := expiresAt.Time
		inv.ExpiresAt = &t
	}
	if acceptedAt.Valid {
		t := acceptedAt.Time
		inv.AcceptedAt = &t
	}
	return &inv, nil
}
