package pagemill

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pagemill/pagemill/content"
)

// AdminDashboardContext is passed to the admin dashboard view.
type AdminDashboardContext struct {
	Posts        []BlogPost
	Pages        []StaticPage
	Message      string
	CSRFToken    string
	StatsEnabled bool
}

// AdminPostFormContext is passed to the post create/edit form.
type AdminPostFormContext struct {
	Post      *BlogPost
	IsNew     bool
	Errors    content.FieldErrors
	CSRFToken string
}

// AdminHomeFormContext is passed to the home page edit form.
type AdminHomeFormContext struct {
	Page      *HomePage
	Errors    content.FieldErrors
	CSRFToken string
}

// AdminPageFormContext is passed to the static page create/edit form.
type AdminPageFormContext struct {
	Page      *StaticPage
	IsNew     bool
	Errors    content.FieldErrors
	CSRFToken string
}

// AdminSettingsContext is passed to the settings forms.
type AdminSettingsContext struct {
	Settings  Settings
	Errors    content.FieldErrors
	Message   string
	CSRFToken string
}

// AdminRevisionsContext is passed to a page's revision history view.
type AdminRevisionsContext struct {
	Entity    Entity
	Revisions []Revision
	CSRFToken string
}

func (a *App) handleAdmin(c echo.Context) error {
	if !IsAdmin(c) {
		return Render(c, a.Views.AdminLogin(false, CsrfToken(c)))
	}
	return a.renderAdminDashboard(c, c.QueryParam("msg"))
}

func (a *App) handleAdminLogin(c echo.Context) error {
	ip := c.RealIP()
	if !a.loginLimiter.Check(ip) {
		return c.String(http.StatusTooManyRequests, "Too many login attempts. Try again later.")
	}
	pass := c.FormValue("password")
	if subtle.ConstantTimeCompare([]byte(pass), []byte(a.Config.AdminPassword)) == 1 {
		if err := setAdminSession(c); err != nil {
			return err
		}
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	a.loginLimiter.Record(ip)
	a.Log.Warn().Str("ip", ip).Msg("failed admin login")
	return Render(c, a.Views.AdminLogin(true, CsrfToken(c)))
}

func handleAdminLogout(c echo.Context) error {
	if err := clearAdminSession(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/admin/")
}

func (a *App) renderAdminDashboard(c echo.Context, msg string) error {
	posts, err := a.Store.ListAllPosts()
	if err != nil {
		return err
	}
	pages, err := a.Store.ListStaticPages()
	if err != nil {
		return err
	}
	return Render(c, a.Views.AdminDashboard(AdminDashboardContext{
		Posts:        posts,
		Pages:        pages,
		Message:      msg,
		CSRFToken:    CsrfToken(c),
		StatsEnabled: a.Config.StatsEnabled,
	}))
}

func (a *App) handleAdminPostNew(c echo.Context) error {
	if !IsAdmin(c) {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	post := NewBlogPost("", "")
	post.Author = a.Config.Author
	return Render(c, a.Views.AdminPostForm(AdminPostFormContext{
		Post:      post,
		IsNew:     true,
		CSRFToken: CsrfToken(c),
	}))
}

func (a *App) handleAdminPostEdit(c echo.Context) error {
	if !IsAdmin(c) {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.ErrNotFound
	}
	post, err := a.Store.GetBlogPost(id)
	if err != nil {
		if err == ErrNotFound {
			return echo.ErrNotFound
		}
		return err
	}
	return Render(c, a.Views.AdminPostForm(AdminPostFormContext{
		Post:      post,
		CSRFToken: CsrfToken(c),
	}))
}

func (a *App) handleAdminPostSave(c echo.Context) error {
	if !IsAdmin(c) {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	if err := c.Request().ParseForm(); err != nil {
		return err
	}
	post, errs, err := a.postFromForm(c)
	if err != nil {
		return err
	}
	action := ActionEdit
	if post.ID == 0 {
		action = ActionCreate
	}
	if len(errs) == 0 {
		err := a.SaveBlogPost(post, action)
		if err == nil {
			return a.renderAdminDashboard(c, "saved")
		}
		if ferrs, ok := err.(content.FieldErrors); ok {
			errs = ferrs
		} else if isSlugConflict(err) {
			errs.Add("slug", "a page with this slug already exists")
		} else {
			return err
		}
	}
	return RenderStatus(c, http.StatusUnprocessableEntity, a.Views.AdminPostForm(AdminPostFormContext{
		Post:      post,
		IsNew:     post.ID == 0,
		Errors:    errs,
		CSRFToken: CsrfToken(c),
	}))
}

// postFromForm builds the post being saved: the stored row for edits, a
// fresh draft for creates, with the submitted fields applied over it.
func (a *App) postFromForm(c echo.Context) (*BlogPost, content.FieldErrors, error) {
	var errs content.FieldErrors

	var post *BlogPost
	if id, _ := strconv.ParseInt(c.FormValue("id"), 10, 64); id > 0 {
		existing, err := a.Store.GetBlogPost(id)
		if err != nil {
			return nil, nil, err
		}
		post = existing
	} else {
		post = NewBlogPost("", "")
	}

	post.Title = strings.TrimSpace(c.FormValue("title"))
	post.Slug = strings.TrimSpace(c.FormValue("slug"))
	if post.Slug == "" {
		post.Slug = Slugify(post.Title)
	}
	post.Author = strings.TrimSpace(c.FormValue("author"))
	if d := strings.TrimSpace(c.FormValue("date")); d != "" {
		t, err := time.Parse("2006-01-02", d)
		if err != nil {
			errs.Add("date", "invalid date format, use YYYY-MM-DD")
		} else {
			post.Date = t
		}
	}
	post.Intro = c.FormValue("intro")
	post.FeaturedImage = strings.TrimSpace(c.FormValue("featured_image"))
	post.ImageCaption = c.FormValue("image_caption")
	post.Featured = c.FormValue("featured") != ""
	post.ShowAuthorBio = c.FormValue("show_author_bio") != ""
	post.ShowRelated = c.FormValue("show_related") != ""
	post.Tags = FilterEmpty(strings.Split(c.FormValue("tags"), ","))
	applySEOForm(c, post.Node())
	post.Body = streamFromForm(c, &errs)

	return post, errs, nil
}

func (a *App) handleAdminHomeEdit(c echo.Context) error {
	if !IsAdmin(c) {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	home, err := a.Store.GetHomePage()
	if err != nil {
		return err
	}
	return Render(c, a.Views.AdminHomeForm(AdminHomeFormContext{
		Page:      home,
		CSRFToken: CsrfToken(c),
	}))
}

func (a *App) handleAdminHomeSave(c echo.Context) error {
	if !IsAdmin(c) {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	if err := c.Request().ParseForm(); err != nil {
		return err
	}
	home, err := a.Store.GetHomePage()
	if err != nil {
		return err
	}
	var errs content.FieldErrors

	home.Title = strings.TrimSpace(c.FormValue("title"))
	home.HeroTitle = c.FormValue("hero_title")
	home.HeroSubtitle = c.FormValue("hero_subtitle")
	home.HeroImage = strings.TrimSpace(c.FormValue("hero_image"))
	home.HeroCTAText = c.FormValue("hero_cta_text")
	home.HeroCTALink = strings.TrimSpace(c.FormValue("hero_cta_link"))
	home.AuthorName = strings.TrimSpace(c.FormValue("author_name"))
	home.AuthorBio = c.FormValue("author_bio")
	home.AuthorImage = strings.TrimSpace(c.FormValue("author_image"))
	home.WebsiteURL = strings.TrimSpace(c.FormValue("website_url"))
	home.TwitterURL = strings.TrimSpace(c.FormValue("twitter_url"))
	home.LinkedInURL = strings.TrimSpace(c.FormValue("linkedin_url"))
	home.GitHubURL = strings.TrimSpace(c.FormValue("github_url"))
	home.Email = strings.TrimSpace(c.FormValue("email"))
	home.FeaturedTitle = c.FormValue("featured_title")
	home.FeaturedCount = intField(c, "featured_count", &errs)
	home.ShowFeatured = c.FormValue("show_featured") != ""
	home.RecentTitle = c.FormValue("recent_title")
	home.RecentCount = intField(c, "recent_count", &errs)
	home.ShowRecent = c.FormValue("show_recent") != ""
	home.ShowAuthorSidebar = c.FormValue("show_author_sidebar") != ""
	home.EnableComments = c.FormValue("enable_comments") != ""
	home.CSSClass = strings.TrimSpace(c.FormValue("css_class"))
	applySEOForm(c, home.Node())
	home.Body = streamFromForm(c, &errs)

	if len(errs) == 0 {
		err := a.SaveHomePage(home, ActionEdit)
		if err == nil {
			return a.renderAdminDashboard(c, "saved")
		}
		if ferrs, ok := err.(content.FieldErrors); ok {
			errs = ferrs
		} else {
			return err
		}
	}
	return RenderStatus(c, http.StatusUnprocessableEntity, a.Views.AdminHomeForm(AdminHomeFormContext{
		Page:      home,
		Errors:    errs,
		CSRFToken: CsrfToken(c),
	}))
}

func (a *App) handleAdminPageNew(c echo.Context) error {
	if !IsAdmin(c) {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	return Render(c, a.Views.AdminPageForm(AdminPageFormContext{
		Page:      &StaticPage{Page: Page{Kind: KindStatic}},
		IsNew:     true,
		CSRFToken: CsrfToken(c),
	}))
}

func (a *App) handleAdminPageEdit(c echo.Context) error {
	if !IsAdmin(c) {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.ErrNotFound
	}
	page, err := a.Store.GetStaticPageByID(id)
	if err != nil {
		if err == ErrNotFound {
			return echo.ErrNotFound
		}
		return err
	}
	return Render(c, a.Views.AdminPageForm(AdminPageFormContext{
		Page:      page,
		CSRFToken: CsrfToken(c),
	}))
}

func (a *App) handleAdminPageSave(c echo.Context) error {
	if !IsAdmin(c) {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	if err := c.Request().ParseForm(); err != nil {
		return err
	}
	var errs content.FieldErrors

	var page *StaticPage
	if id, _ := strconv.ParseInt(c.FormValue("id"), 10, 64); id > 0 {
		existing, err := a.Store.GetStaticPageByID(id)
		if err != nil {
			if err == ErrNotFound {
				return echo.ErrNotFound
			}
			return err
		}
		page = existing
	} else {
		page = &StaticPage{Page: Page{Kind: KindStatic}}
	}
	page.Title = strings.TrimSpace(c.FormValue("title"))
	page.Slug = strings.TrimSpace(c.FormValue("slug"))
	if page.Slug == "" {
		page.Slug = Slugify(page.Title)
	}
	applySEOForm(c, page.Node())
	page.Body = streamFromForm(c, &errs)

	action := ActionEdit
	if page.ID == 0 {
		action = ActionCreate
	}
	if len(errs) == 0 {
		err := a.SaveStaticPage(page, action)
		if err == nil {
			return a.renderAdminDashboard(c, "saved")
		}
		if ferrs, ok := err.(content.FieldErrors); ok {
			errs = ferrs
		} else if isSlugConflict(err) {
			errs.Add("slug", "a page with this slug already exists")
		} else {
			return err
		}
	}
	return RenderStatus(c, http.StatusUnprocessableEntity, a.Views.AdminPageForm(AdminPageFormContext{
		Page:      page,
		IsNew:     page.ID == 0,
		Errors:    errs,
		CSRFToken: CsrfToken(c),
	}))
}

func (a *App) handleAdminPublish(c echo.Context) error {
	if !IsAdmin(c) {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.ErrNotFound
	}
	if err := a.PublishPage(id); err != nil {
		if err == ErrNotFound {
			return echo.ErrNotFound
		}
		return err
	}
	return a.renderAdminDashboard(c, "published")
}

func (a *App) handleAdminUnpublish(c echo.Context) error {
	if !IsAdmin(c) {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.ErrNotFound
	}
	if err := a.UnpublishPage(id); err != nil {
		if err == ErrNotFound {
			return echo.ErrNotFound
		}
		return err
	}
	return a.renderAdminDashboard(c, "unpublished")
}

func (a *App) handleAdminDelete(c echo.Context) error {
	if !IsAdmin(c) {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.ErrNotFound
	}
	e, err := a.Store.GetEntity(id)
	if err != nil {
		if err == ErrNotFound {
			return echo.ErrNotFound
		}
		return err
	}
	if e.Node().Kind == KindHome {
		return a.renderAdminDashboard(c, "The home page cannot be deleted.")
	}
	if err := a.DeletePage(id); err != nil {
		return err
	}
	return a.renderAdminDashboard(c, "deleted")
}

func (a *App) handleAdminRevisions(c echo.Context) error {
	if !IsAdmin(c) {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.ErrNotFound
	}
	e, err := a.Store.GetEntity(id)
	if err != nil {
		if err == ErrNotFound {
			return echo.ErrNotFound
		}
		return err
	}
	revs, err := a.Store.ListRevisions(id)
	if err != nil {
		return err
	}
	return Render(c, a.Views.AdminRevisions(AdminRevisionsContext{
		Entity:    e,
		Revisions: revs,
		CSRFToken: CsrfToken(c),
	}))
}

func (a *App) handleAdminSettings(c echo.Context) error {
	if !IsAdmin(c) {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	return Render(c, a.Views.AdminSettings(AdminSettingsContext{
		Settings:  a.settings(),
		Message:   c.QueryParam("msg"),
		CSRFToken: CsrfToken(c),
	}))
}

func (a *App) handleAdminSaveHeader(c echo.Context) error {
	if !IsAdmin(c) {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	if err := c.Request().ParseForm(); err != nil {
		return err
	}
	s := a.settings()
	s.Header.SiteTitle = strings.TrimSpace(c.FormValue("site_title"))
	s.Header.ShowLogo = c.FormValue("show_logo") != ""
	s.Header.LogoSrc = strings.TrimSpace(c.FormValue("logo"))
	s.Header.Nav = navLinksFromForm(c, "nav_text", "nav_url")
	s.Header.ShowSearch = c.FormValue("show_search") != ""
	s.Header.ShowThemeToggle = c.FormValue("show_theme_toggle") != ""
	s.Header.Style = c.FormValue("header_style")

	if err := s.Header.Validate(); err != nil {
		return a.renderSettingsErrors(c, s, err)
	}
	if err := a.Store.SaveSetting(SettingsHeader, s.Header); err != nil {
		return err
	}
	a.Log.Info().Str("name", SettingsHeader).Msg("settings saved")
	return c.Redirect(http.StatusSeeOther, "/admin/settings/?msg=saved")
}

func (a *App) handleAdminSaveFooter(c echo.Context) error {
	if !IsAdmin(c) {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	if err := c.Request().ParseForm(); err != nil {
		return err
	}
	s := a.settings()
	s.Footer.CopyrightText = c.FormValue("copyright_text")
	s.Footer.ShowYear = c.FormValue("show_year") != ""
	s.Footer.ColumnTitle = c.FormValue("footer_col1_title")
	s.Footer.Links = navLinksFromForm(c, "footer_text", "footer_url")
	s.Footer.ShowSocialLinks = c.FormValue("show_social_links") != ""
	s.Footer.TwitterURL = strings.TrimSpace(c.FormValue("twitter_url"))
	s.Footer.GitHubURL = strings.TrimSpace(c.FormValue("github_url"))
	s.Footer.LinkedInURL = strings.TrimSpace(c.FormValue("linkedin_url"))
	s.Footer.Email = strings.TrimSpace(c.FormValue("email_address"))
	s.Footer.Description = c.FormValue("footer_description")

	if err := a.Store.SaveSetting(SettingsFooter, s.Footer); err != nil {
		return err
	}
	a.Log.Info().Str("name", SettingsFooter).Msg("settings saved")
	return c.Redirect(http.StatusSeeOther, "/admin/settings/?msg=saved")
}

func (a *App) handleAdminSaveSite(c echo.Context) error {
	if !IsAdmin(c) {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	if err := c.Request().ParseForm(); err != nil {
		return err
	}
	s := a.settings()
	s.Site.SiteName = strings.TrimSpace(c.FormValue("site_name"))
	s.Site.Tagline = c.FormValue("tagline")
	s.Site.Description = c.FormValue("site_description")
	s.Site.ContactEmail = strings.TrimSpace(c.FormValue("contact_email"))
	s.Site.ContactPhone = strings.TrimSpace(c.FormValue("contact_phone"))
	s.Site.TwitterURL = strings.TrimSpace(c.FormValue("twitter_url"))
	s.Site.LinkedInURL = strings.TrimSpace(c.FormValue("linkedin_url"))
	s.Site.GitHubURL = strings.TrimSpace(c.FormValue("github_url"))
	s.Site.FacebookURL = strings.TrimSpace(c.FormValue("facebook_url"))
	s.Site.InstagramURL = strings.TrimSpace(c.FormValue("instagram_url"))
	s.Site.DefaultMetaDescription = c.FormValue("default_meta_description")
	s.Site.AnalyticsID = strings.TrimSpace(c.FormValue("google_analytics_id"))
	s.Site.FooterText = c.FormValue("footer_text")
	s.Site.CopyrightText = c.FormValue("copyright_text")

	if err := s.Site.Validate(); err != nil {
		return a.renderSettingsErrors(c, s, err)
	}
	if err := a.Store.SaveSetting(SettingsSite, s.Site); err != nil {
		return err
	}
	a.Log.Info().Str("name", SettingsSite).Msg("settings saved")
	return c.Redirect(http.StatusSeeOther, "/admin/settings/?msg=saved")
}

func (a *App) renderSettingsErrors(c echo.Context, s Settings, err error) error {
	ferrs, ok := err.(content.FieldErrors)
	if !ok {
		return err
	}
	return RenderStatus(c, http.StatusUnprocessableEntity, a.Views.AdminSettings(AdminSettingsContext{
		Settings:  s,
		Errors:    ferrs,
		CSRFToken: CsrfToken(c),
	}))
}

// applySEOForm copies the shared SEO form fields onto a page node.
func applySEOForm(c echo.Context, p *Page) {
	p.MetaDescription = c.FormValue("meta_description")
	p.MetaKeywords = c.FormValue("meta_keywords")
	p.OGTitle = c.FormValue("og_title")
	p.OGDescription = c.FormValue("og_description")
	p.OGImage = strings.TrimSpace(c.FormValue("og_image"))
}

// streamFromForm parses the block editor's JSON payload. An empty field
// means an empty stream, not an error.
func streamFromForm(c echo.Context, errs *content.FieldErrors) content.Stream {
	raw := strings.TrimSpace(c.FormValue("body"))
	if raw == "" {
		return content.Stream{}
	}
	stream, err := content.ParseStream([]byte(raw))
	if err != nil {
		errs.Add("body", "invalid content blocks: "+err.Error())
		return content.Stream{}
	}
	return stream
}

// intField parses a numeric form field, recording a field error on bad input.
func intField(c echo.Context, name string, errs *content.FieldErrors) int {
	raw := strings.TrimSpace(c.FormValue(name))
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		errs.Add(name, "must be a whole number")
		return 0
	}
	return n
}

// navLinksFromForm pairs repeated text/url fields into nav links, skipping
// rows with either half blank.
func navLinksFromForm(c echo.Context, textField, urlField string) []NavLink {
	texts := c.Request().PostForm[textField]
	urls := c.Request().PostForm[urlField]
	var links []NavLink
	for i := range texts {
		if i >= len(urls) {
			break
		}
		text := strings.TrimSpace(texts[i])
		u := strings.TrimSpace(urls[i])
		if text == "" || u == "" {
			continue
		}
		links = append(links, NavLink{Text: text, URL: u})
	}
	return links
}

// isSlugConflict reports whether err is the unique-index violation for a
// duplicate sibling slug.
func isSlugConflict(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
