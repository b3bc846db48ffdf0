package pagemill

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// insertRevision snapshots the full entity as JSON inside the caller's
// transaction.
func insertRevision(tx *sql.Tx, e Entity, action string) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = tx.Exec(`INSERT INTO revisions (id, page_id, action, created_at, data) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), e.Node().ID, action, fmtTime(time.Now()), string(data))
	return err
}

// GetHomePage returns the site's root page. There is at most one.
func (s *Store) GetHomePage() (*HomePage, error) {
	row := s.db.QueryRow(`SELECT `+pageColumns+`, h.data
		FROM pages p JOIN home_pages h ON h.page_id = p.id
		WHERE p.kind = ? ORDER BY p.id LIMIT 1`, KindHome)
	var p HomePage
	var data string
	if err := scanPage(row, &p.Page, &data); err != nil {
		return nil, err
	}
	// Extras come from the JSON blob; the page columns stay authoritative.
	page := p.Page
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("decode home page data: %w", err)
	}
	p.Page = page
	return &p, nil
}

// SaveHomePage upserts the root page and its extras and records a revision.
func (s *Store) SaveHomePage(p *HomePage, action string) error {
	p.Kind = KindHome
	p.ParentID = 0
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := upsertPage(tx, &p.Page); err != nil {
		return err
	}
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT INTO home_pages (page_id, data) VALUES (?, ?)
		ON CONFLICT(page_id) DO UPDATE SET data = excluded.data`, p.ID, string(data)); err != nil {
		return err
	}
	if err := insertRevision(tx, p, action); err != nil {
		return err
	}
	return tx.Commit()
}

// EnsureHomePage creates a live default root page when the site has none,
// so a fresh install renders without admin setup.
func (s *Store) EnsureHomePage(title string) (*HomePage, error) {
	p, err := s.GetHomePage()
	if err == nil {
		return p, nil
	}
	if err != ErrNotFound {
		return nil, err
	}
	p = NewHomePage(title)
	p.Live = true
	now := time.Now()
	p.FirstPublishedAt = &now
	if err := s.SaveHomePage(p, ActionCreate); err != nil {
		return nil, err
	}
	return p, nil
}

// GetStaticPage returns a live static page by slug.
func (s *Store) GetStaticPage(slug string) (*StaticPage, error) {
	row := s.db.QueryRow(`SELECT `+pageColumns+` FROM pages p
		WHERE p.kind = ? AND p.slug = ? AND p.live = 1`, KindStatic, slug)
	var p StaticPage
	if err := scanPage(row, &p.Page); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetStaticPageByID returns a static page regardless of publish state (for admin).
func (s *Store) GetStaticPageByID(id int64) (*StaticPage, error) {
	row := s.db.QueryRow(`SELECT `+pageColumns+` FROM pages p
		WHERE p.kind = ? AND p.id = ?`, KindStatic, id)
	var p StaticPage
	if err := scanPage(row, &p.Page); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListStaticPages returns every static page, drafts included, ordered by title.
func (s *Store) ListStaticPages() ([]StaticPage, error) {
	rows, err := s.db.Query(`SELECT `+pageColumns+` FROM pages p
		WHERE p.kind = ? ORDER BY p.title`, KindStatic)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var pages []StaticPage
	for rows.Next() {
		var p StaticPage
		if err := scanPage(rows, &p.Page); err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// SaveStaticPage upserts a static page under the root and records a revision.
func (s *Store) SaveStaticPage(p *StaticPage, action string) error {
	p.Kind = KindStatic
	if p.ParentID == 0 {
		if root, err := s.GetHomePage(); err == nil {
			p.ParentID = root.ID
		}
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := upsertPage(tx, &p.Page); err != nil {
		return err
	}
	if err := insertRevision(tx, p, action); err != nil {
		return err
	}
	return tx.Commit()
}

// GetEntity loads the page variant behind id.
func (s *Store) GetEntity(id int64) (Entity, error) {
	var kind PageKind
	if err := s.db.QueryRow(`SELECT kind FROM pages WHERE id = ?`, id).Scan(&kind); err != nil {
		return nil, err
	}
	switch kind {
	case KindHome:
		return s.GetHomePage()
	case KindPost:
		return s.GetBlogPost(id)
	case KindStatic:
		return s.GetStaticPageByID(id)
	}
	return nil, fmt.Errorf("unknown page kind %q", kind)
}

// PublishPage marks the page live, stamping first_published_at on the first
// publish, and records a publish revision. Returns the published entity.
func (s *Store) PublishPage(id int64) (Entity, error) {
	e, err := s.GetEntity(id)
	if err != nil {
		return nil, err
	}
	n := e.Node()
	n.Live = true
	if n.FirstPublishedAt == nil {
		now := time.Now()
		n.FirstPublishedAt = &now
	}
	return e, s.saveEntity(e, ActionPublish)
}

// UnpublishPage takes the page offline, keeping its first-publish timestamp,
// and records an unpublish revision.
func (s *Store) UnpublishPage(id int64) (Entity, error) {
	e, err := s.GetEntity(id)
	if err != nil {
		return nil, err
	}
	e.Node().Live = false
	return e, s.saveEntity(e, ActionUnpublish)
}

func (s *Store) saveEntity(e Entity, action string) error {
	switch v := e.(type) {
	case *BlogPost:
		return s.SaveBlogPost(v, action)
	case *HomePage:
		return s.SaveHomePage(v, action)
	case *StaticPage:
		return s.SaveStaticPage(v, action)
	}
	return fmt.Errorf("unknown entity type %T", e)
}

// DeletePageTree removes the page and every descendant, along with their
// tag links, variant rows, and revision history.
func (s *Store) DeletePageTree(id int64) error {
	rows, err := s.db.Query(`WITH RECURSIVE tree(id) AS (
			SELECT id FROM pages WHERE id = ?
			UNION ALL
			SELECT p.id FROM pages p JOIN tree t ON p.parent_id = t.id
		) SELECT id FROM tree`, id)
	if err != nil {
		return err
	}
	var ids []int64
	for rows.Next() {
		var pid int64
		if err := rows.Scan(&pid); err != nil {
			rows.Close()
			return err
		}
		ids = append(ids, pid)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, pid := range ids {
		args[i] = pid
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, stmt := range []string{
		`DELETE FROM page_tags WHERE page_id IN (` + placeholders + `)`,
		`DELETE FROM blog_posts WHERE page_id IN (` + placeholders + `)`,
		`DELETE FROM home_pages WHERE page_id IN (` + placeholders + `)`,
		`DELETE FROM revisions WHERE page_id IN (` + placeholders + `)`,
		`DELETE FROM pages WHERE id IN (` + placeholders + `)`,
	} {
		if _, err := tx.Exec(stmt, args...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListRevisions returns a page's revision history, newest first.
func (s *Store) ListRevisions(pageID int64) ([]Revision, error) {
	rows, err := s.db.Query(`SELECT id, page_id, action, created_at, data
		FROM revisions WHERE page_id = ? ORDER BY created_at DESC`, pageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var revs []Revision
	for rows.Next() {
		var r Revision
		var createdAt, data string
		if err := rows.Scan(&r.ID, &r.PageID, &r.Action, &createdAt, &data); err != nil {
			return nil, err
		}
		r.CreatedAt = parseTime(createdAt)
		r.Data = []byte(data)
		revs = append(revs, r)
	}
	return revs, rows.Err()
}

// GetRevision returns one revision snapshot by its id.
func (s *Store) GetRevision(id string) (Revision, error) {
	var r Revision
	var createdAt, data string
	err := s.db.QueryRow(`SELECT id, page_id, action, created_at, data
		FROM revisions WHERE id = ?`, id).
		Scan(&r.ID, &r.PageID, &r.Action, &createdAt, &data)
	if err != nil {
		return Revision{}, err
	}
	r.CreatedAt = parseTime(createdAt)
	r.Data = []byte(data)
	return r, nil
}
