package pagemill

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const postColumns = pageColumns + `,
	bp.author, bp.date, bp.intro, bp.featured_image, bp.image_caption,
	bp.featured, bp.show_author_bio, bp.show_related, bp.reading_time`

const postSelect = `SELECT ` + postColumns + ` FROM pages p JOIN blog_posts bp ON bp.page_id = p.id `

const postOrderByDate = ` ORDER BY bp.date DESC, p.id DESC`
const postOrderByPublished = ` ORDER BY p.first_published_at DESC, p.id DESC`

func scanPost(row rowScanner, p *BlogPost) error {
	var date string
	var featured, showBio, showRelated int
	if err := scanPage(row, &p.Page,
		&p.Author, &date, &p.Intro, &p.FeaturedImage, &p.ImageCaption,
		&featured, &showBio, &showRelated, &p.ReadingTime); err != nil {
		return err
	}
	p.Date = parseDate(date)
	p.Featured = featured == 1
	p.ShowAuthorBio = showBio == 1
	p.ShowRelated = showRelated == 1
	return nil
}

func (s *Store) queryPosts(query string, args ...interface{}) ([]BlogPost, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var posts []BlogPost
	for rows.Next() {
		var p BlogPost
		if err := scanPost(rows, &p); err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.attachTags(posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// attachTags fills Tags for each post in one query.
func (s *Store) attachTags(posts []BlogPost) error {
	if len(posts) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(posts)), ",")
	args := make([]interface{}, len(posts))
	for i := range posts {
		args[i] = posts[i].ID
	}
	rows, err := s.db.Query(`SELECT pt.page_id, t.name
		FROM page_tags pt JOIN tags t ON t.id = pt.tag_id
		WHERE pt.page_id IN (`+placeholders+`) ORDER BY t.name`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	byPage := make(map[int64][]string)
	for rows.Next() {
		var pageID int64
		var name string
		if err := rows.Scan(&pageID, &name); err != nil {
			return err
		}
		byPage[pageID] = append(byPage[pageID], name)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for i := range posts {
		posts[i].Tags = byPage[posts[i].ID]
	}
	return nil
}

// GetBlogPost returns a post by id regardless of publish state (for admin).
func (s *Store) GetBlogPost(id int64) (*BlogPost, error) {
	posts, err := s.queryPosts(postSelect+`WHERE p.id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, ErrNotFound
	}
	return &posts[0], nil
}

// GetPostByDateSlug returns the live post whose publication date and slug
// match the canonical date URL.
func (s *Store) GetPostByDateSlug(year, month, day int, slug string) (*BlogPost, error) {
	date := fmt.Sprintf("%04d-%02d-%02d", year, month, day)
	posts, err := s.queryPosts(postSelect+`WHERE p.live = 1 AND bp.date = ? AND p.slug = ?`, date, slug)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, ErrNotFound
	}
	return &posts[0], nil
}

// ListPosts returns all live posts ordered by publication date descending.
func (s *Store) ListPosts() ([]BlogPost, error) {
	return s.queryPosts(postSelect + `WHERE p.live = 1` + postOrderByDate)
}

// ListAllPosts returns every post, drafts included, ordered by publication
// date descending (for the admin dashboard and batch jobs).
func (s *Store) ListAllPosts() ([]BlogPost, error) {
	return s.queryPosts(postSelect + postOrderByDate)
}

// ListRecentPosts returns the most recently published live posts.
func (s *Store) ListRecentPosts(limit int) ([]BlogPost, error) {
	return s.queryPosts(postSelect+`WHERE p.live = 1`+postOrderByPublished+` LIMIT ?`, limit)
}

// ListFeaturedPosts returns the most recently published live posts marked
// featured.
func (s *Store) ListFeaturedPosts(limit int) ([]BlogPost, error) {
	return s.queryPosts(postSelect+`WHERE p.live = 1 AND bp.featured = 1`+postOrderByPublished+` LIMIT ?`, limit)
}

// ListPostsByTag returns live posts carrying the tag slug, newest
// publication date first.
func (s *Store) ListPostsByTag(tagSlug string) ([]BlogPost, error) {
	return s.queryPosts(postSelect+
		`JOIN page_tags pt ON pt.page_id = p.id
		 JOIN tags t ON t.id = pt.tag_id
		 WHERE p.live = 1 AND t.slug = ?`+postOrderByDate, tagSlug)
}

// ListPostsByAuthor looks up live posts by author name. The name is matched
// case-insensitively first; when that finds nothing, a substring probe
// adopts the stored spelling of a similar author and filters by it exactly.
// The returned string is the display name the caller should use.
func (s *Store) ListPostsByAuthor(name string) ([]BlogPost, string, error) {
	posts, err := s.queryPosts(postSelect+
		`WHERE p.live = 1 AND lower(bp.author) = lower(?)`+postOrderByDate, name)
	if err != nil {
		return nil, "", err
	}
	if len(posts) > 0 {
		return posts, name, nil
	}
	var stored string
	err = s.db.QueryRow(`SELECT bp.author FROM pages p JOIN blog_posts bp ON bp.page_id = p.id
		WHERE p.live = 1 AND instr(lower(bp.author), lower(?)) > 0
		ORDER BY bp.date DESC, p.id DESC LIMIT 1`, strings.ToLower(name)).Scan(&stored)
	if err == sql.ErrNoRows {
		return nil, name, nil
	}
	if err != nil {
		return nil, "", err
	}
	posts, err = s.queryPosts(postSelect+
		`WHERE p.live = 1 AND bp.author = ?`+postOrderByDate, stored)
	if err != nil {
		return nil, "", err
	}
	return posts, stored, nil
}

// ListPostsByPeriod returns live posts within a calendar period. month and
// day may be zero to widen the range to the whole year or month.
func (s *Store) ListPostsByPeriod(year, month, day int) ([]BlogPost, error) {
	var start, end time.Time
	switch {
	case month == 0:
		start = time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(1, 0, 0)
	case day == 0:
		start = time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 1, 0)
	default:
		start = time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 0, 1)
	}
	return s.queryPosts(postSelect+
		`WHERE p.live = 1 AND bp.date >= ? AND bp.date < ?`+postOrderByDate,
		fmtDate(start), fmtDate(end))
}

// ListPublishedIDs returns the ids of all live posts in publish order,
// newest first. Adjacent-post lookup walks this list.
func (s *Store) ListPublishedIDs() ([]int64, error) {
	rows, err := s.db.Query(`SELECT p.id FROM pages p JOIN blog_posts bp ON bp.page_id = p.id
		WHERE p.live = 1` + postOrderByPublished)
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

// RelatedPosts returns live posts sharing at least one tag with the given
// post, excluding the post itself, most recently published first.
func (s *Store) RelatedPosts(postID int64, limit int) ([]BlogPost, error) {
	return s.queryPosts(postSelect+
		`WHERE p.live = 1 AND p.id != ? AND p.id IN (
			SELECT pt2.page_id FROM page_tags pt1
			JOIN page_tags pt2 ON pt2.tag_id = pt1.tag_id
			WHERE pt1.page_id = ?
		 )`+postOrderByPublished+` LIMIT ?`, postID, postID, limit)
}

// GetTagBySlug returns a tag by its slug.
func (s *Store) GetTagBySlug(slug string) (Tag, error) {
	var t Tag
	err := s.db.QueryRow(`SELECT id, name, slug FROM tags WHERE slug = ?`, slug).
		Scan(&t.ID, &t.Name, &t.Slug)
	if err != nil {
		return Tag{}, err
	}
	return t, nil
}

// ListTags returns every tag ordered by name.
func (s *Store) ListTags() ([]Tag, error) {
	rows, err := s.db.Query(`SELECT id, name, slug FROM tags ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tags []Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// SaveBlogPost upserts the post, synchronizes its tag links, and records a
// revision, all in one transaction. The post is parented under the root.
func (s *Store) SaveBlogPost(p *BlogPost, action string) error {
	p.Kind = KindPost
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
	if _, err := tx.Exec(`INSERT INTO blog_posts
		(page_id, author, date, intro, featured_image, image_caption,
		 featured, show_author_bio, show_related, reading_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(page_id) DO UPDATE SET
			author = excluded.author, date = excluded.date, intro = excluded.intro,
			featured_image = excluded.featured_image, image_caption = excluded.image_caption,
			featured = excluded.featured, show_author_bio = excluded.show_author_bio,
			show_related = excluded.show_related, reading_time = excluded.reading_time`,
		p.ID, p.Author, fmtDate(p.Date), p.Intro, p.FeaturedImage, p.ImageCaption,
		boolInt(p.Featured), boolInt(p.ShowAuthorBio), boolInt(p.ShowRelated), p.ReadingTime); err != nil {
		return err
	}
	if err := syncTags(tx, p.ID, p.Tags); err != nil {
		return err
	}
	if err := insertRevision(tx, p, action); err != nil {
		return err
	}
	return tx.Commit()
}

// syncTags replaces the post's tag links, creating missing tags by slug.
func syncTags(tx *sql.Tx, pageID int64, tags []string) error {
	if _, err := tx.Exec(`DELETE FROM page_tags WHERE page_id = ?`, pageID); err != nil {
		return err
	}
	for _, name := range tags {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		slug := Slugify(name)
		if _, err := tx.Exec(`INSERT INTO tags (name, slug) VALUES (?, ?)
			ON CONFLICT DO NOTHING`, name, slug); err != nil {
			return err
		}
		var tagID int64
		if err := tx.QueryRow(`SELECT id FROM tags WHERE slug = ?`, slug).Scan(&tagID); err != nil {
			return err
		}
		if _, err := tx.Exec(`INSERT INTO page_tags (page_id, tag_id) VALUES (?, ?)
			ON CONFLICT(page_id, tag_id) DO NOTHING`, pageID, tagID); err != nil {
			return err
		}
	}
	return nil
}

// UpdateReadingTime writes only the reading-time column, for the batch
// recompute command.
func (s *Store) UpdateReadingTime(id int64, minutes int) error {
	_, err := s.db.Exec(`UPDATE blog_posts SET reading_time = ? WHERE page_id = ?`, minutes, id)
	return err
}
