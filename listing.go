package pagemill

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Paginator slices a post collection into fixed-size pages. Requested page
// numbers clamp to the nearest valid page instead of erroring: non-numeric
// and low values land on the first page, high values on the last.
type Paginator struct {
	Posts      []BlogPost // the current page's slice
	Page       int
	PerPage    int
	Total      int
	TotalPages int
}

// NewPaginator paginates posts, selecting the page named by the raw query
// parameter value.
func NewPaginator(posts []BlogPost, perPage int, requested string) Paginator {
	total := len(posts)
	totalPages := (total + perPage - 1) / perPage
	if totalPages < 1 {
		totalPages = 1
	}
	page, err := strconv.Atoi(strings.TrimSpace(requested))
	if err != nil || page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}
	start := (page - 1) * perPage
	end := start + perPage
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}
	return Paginator{
		Posts:      posts[start:end],
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	}
}

func (p Paginator) HasPrev() bool { return p.Page > 1 }
func (p Paginator) HasNext() bool { return p.Page < p.TotalPages }
func (p Paginator) PrevPage() int { return p.Page - 1 }
func (p Paginator) NextPage() int { return p.Page + 1 }

// listingPageSize returns the blog index page size for a view mode: grid
// modes fit 12, list modes 10. Archives always use 10.
func listingPageSize(mode string) int {
	if strings.Contains(mode, "grid") {
		return 12
	}
	return 10
}

const archivePageSize = 10

// SEOMeta is the title/description pair a listing page renders into its head.
type SEOMeta struct {
	Title       string
	Description string
}

func seoAllPosts() SEOMeta {
	return SEOMeta{Title: "Blog - All Posts", Description: "Browse all blog posts"}
}

func seoAuthor(name string) SEOMeta {
	return SEOMeta{
		Title:       fmt.Sprintf("Posts by %s", name),
		Description: fmt.Sprintf("All blog posts written by %s", name),
	}
}

func seoTag(name string) SEOMeta {
	return SEOMeta{
		Title:       fmt.Sprintf(`Posts tagged "%s"`, name),
		Description: fmt.Sprintf("All blog posts tagged with %s", name),
	}
}

func seoYear(year int) SEOMeta {
	return SEOMeta{
		Title:       fmt.Sprintf("Blog Archive - %d", year),
		Description: fmt.Sprintf("Blog posts from %d", year),
	}
}

func seoMonth(year, month int) SEOMeta {
	name := time.Month(month).String()
	return SEOMeta{
		Title:       fmt.Sprintf("Blog Archive - %s %d", name, year),
		Description: fmt.Sprintf("Blog posts from %s %d", name, year),
	}
}

func seoDay(year, month, day int) SEOMeta {
	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC).
		Format("January 02, 2006")
	return SEOMeta{
		Title:       fmt.Sprintf("Blog Archive - %s", date),
		Description: fmt.Sprintf("Blog posts from %s", date),
	}
}

// ArchiveInfo identifies which archive a listing renders and its extras.
type ArchiveInfo struct {
	Type      string // "author", "tag", "year", "month" or "day"
	Author    string
	Tag       Tag
	Year      int
	Month     int
	MonthName string
	Day       int
}

// RecentPosts returns the newest live posts, cached. Query failures are
// logged and render as an empty collection.
func (a *App) RecentPosts(limit int) []BlogPost {
	key := recentPostsKey(limit)
	if posts, ok := a.Cache.Get(key); ok {
		return posts
	}
	posts, err := a.Store.ListRecentPosts(limit)
	if err != nil {
		a.Log.Error().Err(err).Msg("recent posts query failed")
		return nil
	}
	a.Cache.Set(key, posts)
	return posts
}

// FeaturedPosts returns the newest featured live posts, cached, falling
// back to recent posts when the featured query fails.
func (a *App) FeaturedPosts(limit int) []BlogPost {
	key := featuredPostsKey(limit)
	if posts, ok := a.Cache.Get(key); ok {
		return posts
	}
	posts, err := a.Store.ListFeaturedPosts(limit)
	if err != nil {
		a.Log.Warn().Err(err).Msg("featured posts query failed, falling back to recent")
		return a.RecentPosts(limit)
	}
	a.Cache.Set(key, posts)
	return posts
}

// RelatedPosts returns up to three live posts sharing a tag with p,
// excluding p itself, newest publish first, cached per post.
func (a *App) RelatedPosts(p *BlogPost) []BlogPost {
	if len(p.Tags) == 0 {
		return nil
	}
	key := relatedPostsKey(p.ID)
	if posts, ok := a.Cache.Get(key); ok {
		return posts
	}
	posts, err := a.Store.RelatedPosts(p.ID, 3)
	if err != nil {
		a.Log.Error().Err(err).Int64("post", p.ID).Msg("related posts query failed")
		return nil
	}
	a.Cache.Set(key, posts)
	return posts
}

// AdjacentPosts returns p's neighbours in the publish order of all live
// posts: prev is the next-older post, next the next-newer. A post absent
// from that ordering yields neither.
func (a *App) AdjacentPosts(p *BlogPost) (prev, next *BlogPost) {
	ids, err := a.Store.ListPublishedIDs()
	if err != nil {
		a.Log.Error().Err(err).Msg("adjacent posts query failed")
		return nil, nil
	}
	idx := -1
	for i, id := range ids {
		if id == p.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, nil
	}
	if idx+1 < len(ids) {
		if older, err := a.Store.GetBlogPost(ids[idx+1]); err == nil {
			prev = older
		} else {
			a.Log.Error().Err(err).Int64("post", ids[idx+1]).Msg("load previous post failed")
		}
	}
	if idx > 0 {
		if newer, err := a.Store.GetBlogPost(ids[idx-1]); err == nil {
			next = newer
		} else {
			a.Log.Error().Err(err).Int64("post", ids[idx-1]).Msg("load next post failed")
		}
	}
	return prev, next
}

// invalidatePostCaches is the write hook run after every post save: it
// drops the post's related-posts entry and both listing-key families.
func (a *App) invalidatePostCaches(postID int64) {
	a.Cache.Delete(relatedPostsKey(postID))
	a.Cache.DeletePrefix(recentPostsPrefix, featuredPostsPrefix)
}
