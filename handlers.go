package pagemill

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/pagemill/pagemill/content"
)

// HomeContext is passed to the home view.
type HomeContext struct {
	Page          *HomePage
	FeaturedPosts []BlogPost
	RecentPosts   []BlogPost
	Settings      Settings
	Meta          PageMeta
	JSONLD        string
}

// ArchiveContext is passed to the blog index and archive views.
type ArchiveContext struct {
	Paginator Paginator
	Archive   ArchiveInfo
	SEO       SEOMeta
	ViewMode  string
	Settings  Settings
}

// PostContext is passed to the post detail view. Home carries the author
// bio fields for posts that render one.
type PostContext struct {
	Post     *BlogPost
	Home     *HomePage
	Related  []BlogPost
	Prev     *BlogPost
	Next     *BlogPost
	Settings Settings
	Meta     PageMeta
	JSONLD   string
}

// PageContext is passed to the static page view. RecentPosts is populated
// when the page body contains a recent_posts block, sized to the largest
// such block, so templates can hand it to views.BlocksWith.
type PageContext struct {
	Page        *StaticPage
	RecentPosts []BlogPost
	Settings    Settings
	Meta        PageMeta
}

// settings loads the site-wide settings bundle. Load failures are logged
// and the defaults render instead; a bad settings row never breaks a page.
func (a *App) settings() Settings {
	s, err := a.Store.LoadSettings()
	if err != nil {
		a.Log.Error().Err(err).Msg("load settings failed")
	}
	return s
}

func (a *App) handleHome(c echo.Context) error {
	home, err := a.Store.GetHomePage()
	if err != nil {
		return err
	}
	ctx := HomeContext{
		Page:     home,
		Settings: a.settings(),
		Meta:     home.Meta(a.Config.URL),
		JSONLD:   WebsiteJsonLD(a.Config),
	}
	if home.ShowFeatured {
		ctx.FeaturedPosts = a.FeaturedPosts(home.FeaturedCount)
	}
	if home.ShowRecent {
		ctx.RecentPosts = a.RecentPosts(home.RecentCount)
	}
	return Render(c, a.Views.Home(ctx))
}

func (a *App) handleBlogIndex(c echo.Context) error {
	posts, err := a.Store.ListPosts()
	if err != nil {
		return err
	}
	mode := viewMode(c)
	ctx := ArchiveContext{
		Paginator: NewPaginator(posts, listingPageSize(mode), c.QueryParam("page")),
		SEO:       seoAllPosts(),
		ViewMode:  mode,
		Settings:  a.settings(),
	}
	return Render(c, a.Views.BlogIndex(ctx))
}

func (a *App) handleAuthorArchive(c echo.Context) error {
	requested := titleCaseWords(strings.ReplaceAll(c.Param("slug"), "-", " "))
	posts, name, err := a.Store.ListPostsByAuthor(requested)
	if err != nil {
		return err
	}
	ctx := ArchiveContext{
		Paginator: NewPaginator(posts, archivePageSize, c.QueryParam("page")),
		Archive:   ArchiveInfo{Type: "author", Author: name},
		SEO:       seoAuthor(name),
		ViewMode:  viewMode(c),
		Settings:  a.settings(),
	}
	return Render(c, a.Views.Archive(ctx))
}

func (a *App) handleTagArchive(c echo.Context) error {
	tag, err := a.Store.GetTagBySlug(c.Param("slug"))
	if err != nil {
		if err == ErrNotFound {
			return echo.ErrNotFound
		}
		return err
	}
	posts, err := a.Store.ListPostsByTag(tag.Slug)
	if err != nil {
		return err
	}
	ctx := ArchiveContext{
		Paginator: NewPaginator(posts, archivePageSize, c.QueryParam("page")),
		Archive:   ArchiveInfo{Type: "tag", Tag: tag},
		SEO:       seoTag(tag.Name),
		ViewMode:  viewMode(c),
		Settings:  a.settings(),
	}
	return Render(c, a.Views.Archive(ctx))
}

func (a *App) handleYearArchive(c echo.Context) error {
	year, ok := numericParam(c.Param("year"))
	if !ok {
		// A single non-numeric segment is a static page URL.
		return a.servePage(c, c.Param("year"))
	}
	posts, err := a.Store.ListPostsByPeriod(year, 0, 0)
	if err != nil {
		return err
	}
	ctx := ArchiveContext{
		Paginator: NewPaginator(posts, archivePageSize, c.QueryParam("page")),
		Archive:   ArchiveInfo{Type: "year", Year: year},
		SEO:       seoYear(year),
		ViewMode:  viewMode(c),
		Settings:  a.settings(),
	}
	return Render(c, a.Views.Archive(ctx))
}

func (a *App) handleMonthArchive(c echo.Context) error {
	year, okYear := numericParam(c.Param("year"))
	month, okMonth := numericParam(c.Param("month"))
	if !okYear || !okMonth || month < 1 || month > 12 {
		return echo.ErrNotFound
	}
	posts, err := a.Store.ListPostsByPeriod(year, month, 0)
	if err != nil {
		return err
	}
	info := ArchiveInfo{Type: "month", Year: year, Month: month, MonthName: monthName(month)}
	ctx := ArchiveContext{
		Paginator: NewPaginator(posts, archivePageSize, c.QueryParam("page")),
		Archive:   info,
		SEO:       seoMonth(year, month),
		ViewMode:  viewMode(c),
		Settings:  a.settings(),
	}
	return Render(c, a.Views.Archive(ctx))
}

func (a *App) handleDayArchive(c echo.Context) error {
	year, okYear := numericParam(c.Param("year"))
	month, okMonth := numericParam(c.Param("month"))
	day, okDay := numericParam(c.Param("day"))
	if !okYear || !okMonth || !okDay || month < 1 || month > 12 || day < 1 || day > 31 {
		return echo.ErrNotFound
	}
	posts, err := a.Store.ListPostsByPeriod(year, month, day)
	if err != nil {
		return err
	}
	info := ArchiveInfo{Type: "day", Year: year, Month: month, MonthName: monthName(month), Day: day}
	ctx := ArchiveContext{
		Paginator: NewPaginator(posts, archivePageSize, c.QueryParam("page")),
		Archive:   info,
		SEO:       seoDay(year, month, day),
		ViewMode:  viewMode(c),
		Settings:  a.settings(),
	}
	return Render(c, a.Views.Archive(ctx))
}

func (a *App) handlePostDetail(c echo.Context) error {
	year, okYear := numericParam(c.Param("year"))
	month, okMonth := numericParam(c.Param("month"))
	day, okDay := numericParam(c.Param("day"))
	if !okYear || !okMonth || !okDay {
		return echo.ErrNotFound
	}
	post, err := a.Store.GetPostByDateSlug(year, month, day, c.Param("slug"))
	if err != nil {
		if err == ErrNotFound {
			return echo.ErrNotFound
		}
		return err
	}
	ctx := PostContext{
		Post:     post,
		Settings: a.settings(),
		Meta:     post.Meta(a.Config.URL),
		JSONLD:   BlogPostingJsonLD(*post, a.Config),
	}
	if home, err := a.Store.GetHomePage(); err == nil {
		ctx.Home = home
	} else {
		a.Log.Error().Err(err).Msg("load home page for post failed")
	}
	if post.ShowRelated {
		ctx.Related = a.RelatedPosts(post)
	}
	ctx.Prev, ctx.Next = a.AdjacentPosts(post)
	return Render(c, a.Views.Post(ctx))
}

// handlePage is the catch-all for tree-served URLs. Pages live in a flat
// tree under the home page, so only single-segment paths can match.
func (a *App) handlePage(c echo.Context) error {
	slug := strings.Trim(c.Param("*"), "/")
	if slug == "" || strings.Contains(slug, "/") {
		return echo.ErrNotFound
	}
	return a.servePage(c, slug)
}

func (a *App) servePage(c echo.Context, slug string) error {
	page, err := a.Store.GetStaticPage(slug)
	if err != nil {
		if err == ErrNotFound {
			return echo.ErrNotFound
		}
		return err
	}
	ctx := PageContext{
		Page:     page,
		Settings: a.settings(),
		Meta:     page.Meta(a.Config.URL),
	}
	if n := recentPostsWanted(page.Body); n > 0 {
		ctx.RecentPosts = a.RecentPosts(n)
	}
	return Render(c, a.Views.Page(ctx))
}

// recentPostsWanted returns the largest recent_posts block count in the
// stream, or 0 when the stream has none.
func recentPostsWanted(stream content.Stream) int {
	max := 0
	for _, b := range stream {
		if rp, ok := b.Value.(*content.RecentPosts); ok && rp.Count > max {
			max = rp.Count
		}
	}
	return max
}

func (a *App) handleSitemap(c echo.Context) error {
	posts, err := a.Store.ListPosts()
	if err != nil {
		return err
	}
	pages, err := a.Store.ListStaticPages()
	if err != nil {
		return err
	}
	return a.renderSitemap(c, posts, pages)
}

func (a *App) handleFeed(c echo.Context) error {
	posts, err := a.Store.ListRecentPosts(feedItemLimit)
	if err != nil {
		return err
	}
	return a.renderRSS(c, posts)
}

func (a *App) handleFavicon(c echo.Context) error {
	return c.File(a.staticDir + "/favicon.svg")
}

func (a *App) handleRobots(c echo.Context) error {
	return c.File(a.staticDir + "/robots.txt")
}

// numericParam parses an all-digit URL segment. A false result means the
// route captured something that is not part of a date URL.
func numericParam(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	he, ok := err.(*echo.HTTPError)
	if ok && he.Code == http.StatusNotFound {
		_ = RenderStatus(c, http.StatusNotFound, a.Views.NotFound())
		return
	}
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 {
		a.Log.Error().Err(err).Str("path", c.Request().URL.Path).Msg("server error")
		_ = RenderStatus(c, code, a.Views.ServerError())
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}
