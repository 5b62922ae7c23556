package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

const (
	PageTypeDepartment = "department"
	PageTypePage       = "page"
)

// Sentinel errors for tree operations. The wiki service maps these onto the
// caller-facing error taxonomy.
var (
	ErrNoPage           = errors.New("wiki page not found")
	ErrNoParent         = errors.New("parent page not found")
	ErrNoComment        = errors.New("comment not found")
	ErrNoParentComment  = errors.New("parent comment not found")
	ErrNoHistoryVersion = errors.New("history version not found")
	ErrCycle            = errors.New("move would create a cycle")
	ErrChildSetMismatch = errors.New("ordered ids do not match current children")
	ErrCrossWorkspace   = errors.New("pages belong to different workspaces")
)

type WikiPage struct {
	ID            int64     `json:"id"`
	WorkspaceID   int64     `json:"workspace_id"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	ParentID      *int64    `json:"parent_id,omitempty"`
	Position      int       `json:"position"`
	Type          string    `json:"type"`
	EpicID        *int64    `json:"epic_id,omitempty"`
	TaskIDs       []int64   `json:"task_ids"`
	Version       int       `json:"version"`
	CreatedBy     int64     `json:"created_by"`
	CreatedByName string    `json:"created_by_name"`
	UpdatedBy     int64     `json:"updated_by"`
	UpdatedByName string    `json:"updated_by_name"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type WikiPageHistory struct {
	ID          int64     `json:"id"`
	PageID      int64     `json:"page_id"`
	Version     int       `json:"version"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	SavedBy     int64     `json:"saved_by"`
	SavedByName string    `json:"saved_by_name"`
	SavedAt     time.Time `json:"saved_at"`
}

type WikiComment struct {
	ID          int64     `json:"id"`
	WorkspaceID int64     `json:"workspace_id"`
	PageID      int64     `json:"page_id"`
	ParentID    *int64    `json:"parent_id,omitempty"`
	FromID      int64     `json:"from_id"`
	FromName    string    `json:"from_name"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
}

// WikiTreeNode is a page with its resolved children, ordered by position.
// ChildIDs is derived from the adjacency rows at read time, so it is always
// consistent with the children's ParentID values.
type WikiTreeNode struct {
	Page     WikiPage        `json:"page"`
	ChildIDs []int64         `json:"child_ids"`
	Children []*WikiTreeNode `json:"children"`
}

type WikiSearchHit struct {
	PageID  int64  `json:"page_id"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

type WikiDeleteReport struct {
	PageIDs         []int64 `json:"page_ids"`
	PagesDeleted    int     `json:"pages_deleted"`
	CommentsDeleted int     `json:"comments_deleted"`
	HistoryDeleted  int     `json:"history_deleted"`
}

type WikiStore interface {
	CreatePage(ctx context.Context, p *WikiPage) (int64, error)
	GetPage(ctx context.Context, id int64) (*WikiPage, error)
	ListChildren(ctx context.Context, workspaceID int64, parentID *int64) ([]WikiPage, error)
	Tree(ctx context.Context, workspaceID int64) ([]*WikiTreeNode, error)
	UpdateContent(ctx context.Context, pageID int64, title, content string, actorID int64, actorName string, historyLimit int) (*WikiPage, error)
	RestoreVersion(ctx context.Context, pageID int64, version int, actorID int64, actorName string) (*WikiPage, error)
	DeleteSubtree(ctx context.Context, pageID int64) (*WikiDeleteReport, error)
	Move(ctx context.Context, pageID, newParentID int64, position int) error
	Reorder(ctx context.Context, parentID int64, orderedChildIDs []int64) error
	Search(ctx context.Context, workspaceID int64, query string) ([]WikiSearchHit, error)

	ListHistory(ctx context.Context, pageID int64) ([]WikiPageHistory, error)

	AddComment(ctx context.Context, c *WikiComment) (int64, error)
	GetComment(ctx context.Context, id int64) (*WikiComment, error)
	ListComments(ctx context.Context, pageID int64) ([]WikiComment, error)
	DeleteCommentTree(ctx context.Context, commentID int64) (int, error)
}

type wikiStore struct {
	db *sql.DB
}

func NewWikiStore(db *sql.DB) WikiStore {
	return &wikiStore{db: db}
}

const wikiPageColumns = `id, workspace_id, title, content, parent_id, position, page_type, epic_id, task_ids, version, created_by, created_by_name, updated_by, updated_by_name, created_at, updated_at`

func (s *wikiStore) CreatePage(ctx context.Context, p *WikiPage) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	p.Type = PageTypeDepartment
	if p.ParentID != nil {
		parent, err := getPageTx(ctx, tx, *p.ParentID)
		if err != nil {
			return 0, err
		}
		if parent == nil {
			return 0, ErrNoParent
		}
		if parent.WorkspaceID != p.WorkspaceID {
			return 0, ErrCrossWorkspace
		}
		p.Type = PageTypePage
	}

	var siblingCount int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM wiki_pages WHERE workspace_id=? AND parent_id IS ?`,
		p.WorkspaceID, nullableID(p.ParentID)).Scan(&siblingCount); err != nil {
		return 0, err
	}
	// Positions are kept dense, so the next rank equals the sibling count.
	p.Position = siblingCount

	now := time.Now().UTC()
	p.Version = 1
	p.CreatedAt = now
	p.UpdatedAt = now
	taskIDs, _ := json.Marshal(p.TaskIDs)
	res, err := tx.ExecContext(ctx, `
		INSERT INTO wiki_pages(workspace_id, title, content, parent_id, position, page_type, epic_id, task_ids, version, created_by, created_by_name, updated_by, updated_by_name, created_at, updated_at)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		p.WorkspaceID, p.Title, p.Content, nullableID(p.ParentID), p.Position, p.Type, nullableID(p.EpicID), string(taskIDs), p.Version,
		p.CreatedBy, p.CreatedByName, p.CreatedBy, p.CreatedByName, now, now)
	if err != nil {
		return 0, err
	}
	id, _ := res.LastInsertId()
	p.ID = id
	if err := upsertFTSTx(ctx, tx, id, p.WorkspaceID, p.Title, p.Content); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *wikiStore) GetPage(ctx context.Context, id int64) (*WikiPage, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+wikiPageColumns+` FROM wiki_pages WHERE id=?`, id)
	return scanWikiPage(row)
}

func (s *wikiStore) ListChildren(ctx context.Context, workspaceID int64, parentID *int64) ([]WikiPage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+wikiPageColumns+` FROM wiki_pages WHERE workspace_id=? AND parent_id IS ? ORDER BY position, id`,
		workspaceID, nullableID(parentID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectWikiPages(rows)
}

func (s *wikiStore) Tree(ctx context.Context, workspaceID int64) ([]*WikiTreeNode, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+wikiPageColumns+` FROM wiki_pages WHERE workspace_id=? ORDER BY position, id`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	pages, err := collectWikiPages(rows)
	if err != nil {
		return nil, err
	}

	nodes := make(map[int64]*WikiTreeNode, len(pages))
	for i := range pages {
		nodes[pages[i].ID] = &WikiTreeNode{Page: pages[i], ChildIDs: []int64{}, Children: []*WikiTreeNode{}}
	}
	var roots []*WikiTreeNode
	for i := range pages {
		n := nodes[pages[i].ID]
		if pages[i].ParentID == nil {
			roots = append(roots, n)
			continue
		}
		parent, ok := nodes[*pages[i].ParentID]
		if !ok {
			// Dangling parent reference; surface the page as a root rather
			// than dropping it.
			roots = append(roots, n)
			continue
		}
		parent.ChildIDs = append(parent.ChildIDs, n.Page.ID)
		parent.Children = append(parent.Children, n)
	}
	if roots == nil {
		roots = []*WikiTreeNode{}
	}
	return roots, nil
}

func (s *wikiStore) UpdateContent(ctx context.Context, pageID int64, title, content string, actorID int64, actorName string, historyLimit int) (*WikiPage, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	cur, err := getPageTx(ctx, tx, pageID)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, ErrNoPage
	}

	now := time.Now().UTC()
	// Snapshot the pre-update state first so that no committed update is
	// observable without its corresponding history row.
	if err := insertHistoryTx(ctx, tx, cur, actorID, actorName, now); err != nil {
		return nil, err
	}
	if historyLimit > 0 {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM wiki_page_history WHERE page_id=? AND id NOT IN (
				SELECT id FROM wiki_page_history WHERE page_id=? ORDER BY version DESC LIMIT ?)`,
			pageID, pageID, historyLimit); err != nil {
			return nil, err
		}
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE wiki_pages SET title=?, content=?, version=version+1, updated_by=?, updated_by_name=?, updated_at=? WHERE id=?`,
		title, content, actorID, actorName, now, pageID); err != nil {
		return nil, err
	}
	if err := upsertFTSTx(ctx, tx, pageID, cur.WorkspaceID, title, content); err != nil {
		return nil, err
	}
	updated, err := getPageTx(ctx, tx, pageID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *wikiStore) RestoreVersion(ctx context.Context, pageID int64, version int, actorID int64, actorName string) (*WikiPage, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	cur, err := getPageTx(ctx, tx, pageID)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, ErrNoPage
	}
	var title, content string
	err = tx.QueryRowContext(ctx,
		`SELECT title, content FROM wiki_page_history WHERE page_id=? AND version=?`,
		pageID, version).Scan(&title, &content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoHistoryVersion
	}
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := insertHistoryTx(ctx, tx, cur, actorID, actorName, now); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE wiki_pages SET title=?, content=?, version=version+1, updated_by=?, updated_by_name=?, updated_at=? WHERE id=?`,
		title, content, actorID, actorName, now, pageID); err != nil {
		return nil, err
	}
	if err := upsertFTSTx(ctx, tx, pageID, cur.WorkspaceID, title, content); err != nil {
		return nil, err
	}
	restored, err := getPageTx(ctx, tx, pageID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return restored, nil
}

func (s *wikiStore) DeleteSubtree(ctx context.Context, pageID int64) (*WikiDeleteReport, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	root, err := getPageTx(ctx, tx, pageID)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, ErrNoPage
	}

	ids, err := collectSubtreeIDsTx(ctx, tx, pageID)
	if err != nil {
		return nil, err
	}
	report := &WikiDeleteReport{PageIDs: ids}

	in := placeholders(len(ids))
	args := int64Args(ids)
	res, err := tx.ExecContext(ctx, `DELETE FROM wiki_comments WHERE page_id IN (`+in+`)`, args...)
	if err != nil {
		return nil, err
	}
	n, _ := res.RowsAffected()
	report.CommentsDeleted = int(n)

	res, err = tx.ExecContext(ctx, `DELETE FROM wiki_page_history WHERE page_id IN (`+in+`)`, args...)
	if err != nil {
		return nil, err
	}
	n, _ = res.RowsAffected()
	report.HistoryDeleted = int(n)

	if _, err := tx.ExecContext(ctx, `DELETE FROM wiki_fts WHERE page_id IN (`+in+`)`, args...); err != nil {
		return nil, err
	}
	res, err = tx.ExecContext(ctx, `DELETE FROM wiki_pages WHERE id IN (`+in+`)`, args...)
	if err != nil {
		return nil, err
	}
	n, _ = res.RowsAffected()
	report.PagesDeleted = int(n)

	if err := renumberSiblingsTx(ctx, tx, root.WorkspaceID, root.ParentID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return report, nil
}

func (s *wikiStore) Move(ctx context.Context, pageID, newParentID int64, position int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	page, err := getPageTx(ctx, tx, pageID)
	if err != nil {
		return err
	}
	if page == nil {
		return ErrNoPage
	}
	parent, err := getPageTx(ctx, tx, newParentID)
	if err != nil {
		return err
	}
	if parent == nil {
		return ErrNoParent
	}
	if parent.WorkspaceID != page.WorkspaceID {
		return ErrCrossWorkspace
	}
	if pageID == newParentID {
		return ErrCycle
	}
	// Walk up from the new parent; hitting the page means it would become
	// its own ancestor.
	for cur := parent; cur != nil && cur.ParentID != nil; {
		if *cur.ParentID == pageID {
			return ErrCycle
		}
		cur, err = getPageTx(ctx, tx, *cur.ParentID)
		if err != nil {
			return err
		}
	}

	oldParentID := page.ParentID
	if _, err := tx.ExecContext(ctx,
		`UPDATE wiki_pages SET parent_id=?, page_type=?, updated_at=? WHERE id=?`,
		newParentID, PageTypePage, time.Now().UTC(), pageID); err != nil {
		return err
	}

	// Renumber the vacated sibling list, then place the page at the requested
	// rank among its new siblings and renumber them densely. Keeping both
	// lists dense is the documented policy for the move operation.
	sameParent := oldParentID != nil && *oldParentID == newParentID
	if !sameParent {
		if err := renumberSiblingsTx(ctx, tx, page.WorkspaceID, oldParentID); err != nil {
			return err
		}
	}
	if err := placeAmongSiblingsTx(ctx, tx, page.WorkspaceID, newParentID, pageID, position); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *wikiStore) Reorder(ctx context.Context, parentID int64, orderedChildIDs []int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	parent, err := getPageTx(ctx, tx, parentID)
	if err != nil {
		return err
	}
	if parent == nil {
		return ErrNoParent
	}
	current, err := childIDsTx(ctx, tx, parent.WorkspaceID, &parentID)
	if err != nil {
		return err
	}
	if len(current) != len(orderedChildIDs) {
		return ErrChildSetMismatch
	}
	seen := make(map[int64]struct{}, len(current))
	for _, id := range current {
		seen[id] = struct{}{}
	}
	for _, id := range orderedChildIDs {
		if _, ok := seen[id]; !ok {
			return ErrChildSetMismatch
		}
		delete(seen, id)
	}
	for idx, id := range orderedChildIDs {
		if _, err := tx.ExecContext(ctx, `UPDATE wiki_pages SET position=? WHERE id=?`, idx, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *wikiStore) Search(ctx context.Context, workspaceID int64, query string) ([]WikiSearchHit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT page_id, title, snippet(wiki_fts, 1, '[', ']', '…', 8)
		FROM wiki_fts WHERE wiki_fts MATCH ? AND workspace_id=? LIMIT 50`, query, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var hits []WikiSearchHit
	for rows.Next() {
		var h WikiSearchHit
		if err := rows.Scan(&h.PageID, &h.Title, &h.Snippet); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (s *wikiStore) ListHistory(ctx context.Context, pageID int64) ([]WikiPageHistory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, page_id, version, title, content, saved_by, saved_by_name, saved_at
		FROM wiki_page_history WHERE page_id=? ORDER BY version DESC`, pageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []WikiPageHistory
	for rows.Next() {
		var h WikiPageHistory
		var savedBy sql.NullInt64
		if err := rows.Scan(&h.ID, &h.PageID, &h.Version, &h.Title, &h.Content, &savedBy, &h.SavedByName, &h.SavedAt); err != nil {
			return nil, err
		}
		if savedBy.Valid {
			h.SavedBy = savedBy.Int64
		}
		res = append(res, h)
	}
	return res, rows.Err()
}

func (s *wikiStore) AddComment(ctx context.Context, c *WikiComment) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	page, err := getPageTx(ctx, tx, c.PageID)
	if err != nil {
		return 0, err
	}
	if page == nil {
		return 0, ErrNoPage
	}
	c.WorkspaceID = page.WorkspaceID
	if c.ParentID != nil {
		var parentPage int64
		err := tx.QueryRowContext(ctx, `SELECT page_id FROM wiki_comments WHERE id=?`, *c.ParentID).Scan(&parentPage)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNoParentComment
		}
		if err != nil {
			return 0, err
		}
		if parentPage != c.PageID {
			return 0, ErrNoParentComment
		}
	}
	c.CreatedAt = time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO wiki_comments(workspace_id, page_id, parent_id, from_id, from_name, content, created_at)
		VALUES(?,?,?,?,?,?,?)`,
		c.WorkspaceID, c.PageID, nullableID(c.ParentID), c.FromID, c.FromName, c.Content, c.CreatedAt)
	if err != nil {
		return 0, err
	}
	id, _ := res.LastInsertId()
	c.ID = id
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *wikiStore) GetComment(ctx context.Context, id int64) (*WikiComment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, workspace_id, page_id, parent_id, from_id, from_name, content, created_at
		FROM wiki_comments WHERE id=?`, id)
	var c WikiComment
	var parent, from sql.NullInt64
	if err := row.Scan(&c.ID, &c.WorkspaceID, &c.PageID, &parent, &from, &c.FromName, &c.Content, &c.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	c.ParentID = scanNullableID(parent)
	if from.Valid {
		c.FromID = from.Int64
	}
	return &c, nil
}

func (s *wikiStore) ListComments(ctx context.Context, pageID int64) ([]WikiComment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workspace_id, page_id, parent_id, from_id, from_name, content, created_at
		FROM wiki_comments WHERE page_id=? ORDER BY created_at, id`, pageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []WikiComment
	for rows.Next() {
		var c WikiComment
		var parent, from sql.NullInt64
		if err := rows.Scan(&c.ID, &c.WorkspaceID, &c.PageID, &parent, &from, &c.FromName, &c.Content, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.ParentID = scanNullableID(parent)
		if from.Valid {
			c.FromID = from.Int64
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (s *wikiStore) DeleteCommentTree(ctx context.Context, commentID int64) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var exists int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM wiki_comments WHERE id=?`, commentID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNoComment
	}
	if err != nil {
		return 0, err
	}

	ids := []int64{commentID}
	frontier := []int64{commentID}
	for len(frontier) > 0 {
		rows, err := tx.QueryContext(ctx,
			`SELECT id FROM wiki_comments WHERE parent_id IN (`+placeholders(len(frontier))+`)`,
			int64Args(frontier)...)
		if err != nil {
			return 0, err
		}
		var next []int64
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return 0, err
			}
			next = append(next, id)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return 0, err
		}
		rows.Close()
		ids = append(ids, next...)
		frontier = next
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM wiki_comments WHERE id IN (`+placeholders(len(ids))+`)`, int64Args(ids)...)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return int(n), nil
}

func getPageTx(ctx context.Context, tx *sql.Tx, id int64) (*WikiPage, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+wikiPageColumns+` FROM wiki_pages WHERE id=?`, id)
	return scanWikiPage(row)
}

func childIDsTx(ctx context.Context, tx *sql.Tx, workspaceID int64, parentID *int64) ([]int64, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM wiki_pages WHERE workspace_id=? AND parent_id IS ? ORDER BY position, id`,
		workspaceID, nullableID(parentID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// renumberSiblingsTx rewrites positions under one parent to a dense 0-based
// ranking in the current order.
func renumberSiblingsTx(ctx context.Context, tx *sql.Tx, workspaceID int64, parentID *int64) error {
	ids, err := childIDsTx(ctx, tx, workspaceID, parentID)
	if err != nil {
		return err
	}
	for idx, id := range ids {
		if _, err := tx.ExecContext(ctx, `UPDATE wiki_pages SET position=? WHERE id=?`, idx, id); err != nil {
			return err
		}
	}
	return nil
}

// placeAmongSiblingsTx assigns pageID the requested rank among the children
// of parentID (clamped to the list bounds) and renumbers the rest densely.
func placeAmongSiblingsTx(ctx context.Context, tx *sql.Tx, workspaceID, parentID, pageID int64, position int) error {
	ids, err := childIDsTx(ctx, tx, workspaceID, &parentID)
	if err != nil {
		return err
	}
	without := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id != pageID {
			without = append(without, id)
		}
	}
	if position < 0 {
		position = 0
	}
	if position > len(without) {
		position = len(without)
	}
	ordered := make([]int64, 0, len(without)+1)
	ordered = append(ordered, without[:position]...)
	ordered = append(ordered, pageID)
	ordered = append(ordered, without[position:]...)
	for idx, id := range ordered {
		if _, err := tx.ExecContext(ctx, `UPDATE wiki_pages SET position=? WHERE id=?`, idx, id); err != nil {
			return err
		}
	}
	return nil
}

func collectSubtreeIDsTx(ctx context.Context, tx *sql.Tx, rootID int64) ([]int64, error) {
	ids := []int64{rootID}
	frontier := []int64{rootID}
	for len(frontier) > 0 {
		rows, err := tx.QueryContext(ctx,
			`SELECT id FROM wiki_pages WHERE parent_id IN (`+placeholders(len(frontier))+`)`,
			int64Args(frontier)...)
		if err != nil {
			return nil, err
		}
		var next []int64
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, err
			}
			next = append(next, id)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
		ids = append(ids, next...)
		frontier = next
	}
	return ids, nil
}

func insertHistoryTx(ctx context.Context, tx *sql.Tx, cur *WikiPage, actorID int64, actorName string, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO wiki_page_history(page_id, version, title, content, saved_by, saved_by_name, saved_at)
		VALUES(?,?,?,?,?,?,?)`,
		cur.ID, cur.Version, cur.Title, cur.Content, actorID, actorName, now)
	return err
}

func upsertFTSTx(ctx context.Context, tx *sql.Tx, pageID, workspaceID int64, title, content string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM wiki_fts WHERE page_id=?`, pageID); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO wiki_fts(title, content, page_id, workspace_id) VALUES(?,?,?,?)`,
		title, content, pageID, workspaceID)
	return err
}

func scanWikiPage(row *sql.Row) (*WikiPage, error) {
	var p WikiPage
	var parent, epic, createdBy, updatedBy sql.NullInt64
	var taskIDs string
	if err := row.Scan(&p.ID, &p.WorkspaceID, &p.Title, &p.Content, &parent, &p.Position, &p.Type, &epic, &taskIDs, &p.Version,
		&createdBy, &p.CreatedByName, &updatedBy, &p.UpdatedByName, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	p.ParentID = scanNullableID(parent)
	p.EpicID = scanNullableID(epic)
	if createdBy.Valid {
		p.CreatedBy = createdBy.Int64
	}
	if updatedBy.Valid {
		p.UpdatedBy = updatedBy.Int64
	}
	if taskIDs != "" {
		_ = json.Unmarshal([]byte(taskIDs), &p.TaskIDs)
	}
	return &p, nil
}

func collectWikiPages(rows *sql.Rows) ([]WikiPage, error) {
	var res []WikiPage
	for rows.Next() {
		var p WikiPage
		var parent, epic, createdBy, updatedBy sql.NullInt64
		var taskIDs string
		if err := rows.Scan(&p.ID, &p.WorkspaceID, &p.Title, &p.Content, &parent, &p.Position, &p.Type, &epic, &taskIDs, &p.Version,
			&createdBy, &p.CreatedByName, &updatedBy, &p.UpdatedByName, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.ParentID = scanNullableID(parent)
		p.EpicID = scanNullableID(epic)
		if createdBy.Valid {
			p.CreatedBy = createdBy.Int64
		}
		if updatedBy.Valid {
			p.UpdatedBy = updatedBy.Int64
		}
		if taskIDs != "" {
			_ = json.Unmarshal([]byte(taskIDs), &p.TaskIDs)
		}
		res = append(res, p)
	}
	return res, rows.Err()
}
