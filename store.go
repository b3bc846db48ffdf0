package pagemill

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by store lookups when no row matches.
var ErrNotFound = sql.ErrNoRows

// Store wraps a SQLite database holding the page tree, blog posts, tags,
// revisions, settings singletons, and uploaded-image metadata.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and runs schema migrations.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Enable WAL mode for concurrent read/write access, set a busy timeout
	// so writers wait instead of returning SQLITE_BUSY immediately, and tune
	// performance: synchronous=NORMAL is safe with WAL and avoids an fsync
	// per transaction; larger cache and mmap reduce disk I/O.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
		PRAGMA cache_size=-8000;
		PRAGMA mmap_size=268435456;
	`); err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS pages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    parent_id INTEGER NOT NULL DEFAULT 0,
    kind TEXT NOT NULL,
    slug TEXT NOT NULL,
    title TEXT NOT NULL,
    meta_description TEXT NOT NULL DEFAULT '',
    meta_keywords TEXT NOT NULL DEFAULT '',
    og_title TEXT NOT NULL DEFAULT '',
    og_description TEXT NOT NULL DEFAULT '',
    og_image TEXT NOT NULL DEFAULT '',
    live INTEGER NOT NULL DEFAULT 0,
    first_published_at TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    body TEXT NOT NULL DEFAULT '[]'
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_pages_parent_slug ON pages(parent_id, slug);

CREATE TABLE IF NOT EXISTS blog_posts (
    page_id INTEGER PRIMARY KEY,
    author TEXT NOT NULL DEFAULT '',
    date TEXT NOT NULL,
    intro TEXT NOT NULL DEFAULT '',
    featured_image TEXT NOT NULL DEFAULT '',
    featured INTEGER NOT NULL DEFAULT 0,
    show_author_bio INTEGER NOT NULL DEFAULT 1,
    show_related INTEGER NOT NULL DEFAULT 1,
    reading_time INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_blog_posts_date ON blog_posts(date);

CREATE TABLE IF NOT EXISTS home_pages (
    page_id INTEGER PRIMARY KEY,
    data TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS tags (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE,
    slug TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS page_tags (
    page_id INTEGER NOT NULL,
    tag_id INTEGER NOT NULL,
    PRIMARY KEY (page_id, tag_id)
);

CREATE TABLE IF NOT EXISTS revisions (
    id TEXT PRIMARY KEY,
    page_id INTEGER NOT NULL,
    action TEXT NOT NULL,
    created_at TEXT NOT NULL,
    data TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_revisions_page ON revisions(page_id, created_at);

CREATE TABLE IF NOT EXISTS settings (
    name TEXT PRIMARY KEY,
    data TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS images (
    filename TEXT PRIMARY KEY,
    original_name TEXT NOT NULL DEFAULT '',
    width INTEGER NOT NULL DEFAULT 0,
    height INTEGER NOT NULL DEFAULT 0,
    size_bytes INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL
);
`)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(`ALTER TABLE blog_posts ADD COLUMN image_caption TEXT NOT NULL DEFAULT '';`); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "duplicate column") {
			return nil
		}
		return err
	}
	return nil
}

const (
	dateLayout = "2006-01-02"
	timeLayout = time.RFC3339
)

func fmtDate(t time.Time) string { return t.Format(dateLayout) }
func fmtTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseDate(s string) time.Time {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// pageColumns is the shared select list for page rows; scanPage must match.
const pageColumns = `p.id, p.parent_id, p.kind, p.slug, p.title,
	p.meta_description, p.meta_keywords, p.og_title, p.og_description, p.og_image,
	p.live, p.first_published_at, p.created_at, p.updated_at, p.body`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPage(row rowScanner, p *Page, extra ...interface{}) error {
	var live int
	var firstPublished sql.NullString
	var createdAt, updatedAt string
	dest := []interface{}{
		&p.ID, &p.ParentID, &p.Kind, &p.Slug, &p.Title,
		&p.MetaDescription, &p.MetaKeywords, &p.OGTitle, &p.OGDescription, &p.OGImage,
		&live, &firstPublished, &createdAt, &updatedAt, &p.Body,
	}
	dest = append(dest, extra...)
	if err := row.Scan(dest...); err != nil {
		return err
	}
	p.Live = live == 1
	if firstPublished.Valid {
		t := parseTime(firstPublished.String)
		p.FirstPublishedAt = &t
	}
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return nil
}

// upsertPage writes the shared page row inside tx and fills p.ID and
// timestamps for new pages.
func upsertPage(tx *sql.Tx, p *Page) error {
	now := time.Now()
	body, err := p.Body.Value()
	if err != nil {
		return err
	}
	var firstPublished interface{}
	if p.FirstPublishedAt != nil {
		firstPublished = fmtTime(*p.FirstPublishedAt)
	}
	if p.ID == 0 {
		p.CreatedAt = now
		res, err := tx.Exec(`INSERT INTO pages
			(parent_id, kind, slug, title, meta_description, meta_keywords,
			 og_title, og_description, og_image, live, first_published_at,
			 created_at, updated_at, body)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ParentID, p.Kind, p.Slug, p.Title, p.MetaDescription, p.MetaKeywords,
			p.OGTitle, p.OGDescription, p.OGImage, boolInt(p.Live), firstPublished,
			fmtTime(now), fmtTime(now), body)
		if err != nil {
			return err
		}
		p.ID, err = res.LastInsertId()
		if err != nil {
			return err
		}
	} else {
		_, err := tx.Exec(`UPDATE pages SET
			parent_id = ?, slug = ?, title = ?, meta_description = ?, meta_keywords = ?,
			og_title = ?, og_description = ?, og_image = ?, live = ?,
			first_published_at = ?, updated_at = ?, body = ?
			WHERE id = ?`,
			p.ParentID, p.Slug, p.Title, p.MetaDescription, p.MetaKeywords,
			p.OGTitle, p.OGDescription, p.OGImage, boolInt(p.Live),
			firstPublished, fmtTime(now), body, p.ID)
		if err != nil {
			return err
		}
	}
	p.UpdatedAt = now
	return nil
}
