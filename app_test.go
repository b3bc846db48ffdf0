package pagemill

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/pagemill/pagemill/content"
	"github.com/pagemill/pagemill/stats"
)

func textComponent(s string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, s)
		return err
	})
}

// stubViews renders each view as a short marker line so tests can assert on
// what the engine handed to the templates.
func stubViews() ViewFuncs {
	return ViewFuncs{
		Home: func(ctx HomeContext) templ.Component {
			return textComponent(fmt.Sprintf("home:%s featured=%d recent=%d",
				ctx.Page.Title, len(ctx.FeaturedPosts), len(ctx.RecentPosts)))
		},
		BlogIndex: func(ctx ArchiveContext) templ.Component {
			return textComponent(fmt.Sprintf("blog page=%d/%d count=%d view=%s",
				ctx.Paginator.Page, ctx.Paginator.TotalPages, len(ctx.Paginator.Posts), ctx.ViewMode))
		},
		Archive: func(ctx ArchiveContext) templ.Component {
			return textComponent(fmt.Sprintf("archive %s title=%q count=%d",
				ctx.Archive.Type, ctx.SEO.Title, len(ctx.Paginator.Posts)))
		},
		Post: func(ctx PostContext) templ.Component {
			prev, next := "none", "none"
			if ctx.Prev != nil {
				prev = ctx.Prev.Slug
			}
			if ctx.Next != nil {
				next = ctx.Next.Slug
			}
			return textComponent(fmt.Sprintf("post:%s related=%d prev=%s next=%s",
				ctx.Post.Slug, len(ctx.Related), prev, next))
		},
		Page: func(ctx PageContext) templ.Component {
			return textComponent(fmt.Sprintf("page:%s recent=%d", ctx.Page.Slug, len(ctx.RecentPosts)))
		},
		AdminLogin: func(showError bool, csrfToken string) templ.Component {
			return textComponent(fmt.Sprintf("login error=%v", showError))
		},
		AdminDashboard: func(ctx AdminDashboardContext) templ.Component {
			return textComponent(fmt.Sprintf("dashboard posts=%d pages=%d msg=%q",
				len(ctx.Posts), len(ctx.Pages), ctx.Message))
		},
		AdminPostForm: func(ctx AdminPostFormContext) templ.Component {
			return textComponent(fmt.Sprintf("postform new=%v errors=%d", ctx.IsNew, len(ctx.Errors)))
		},
		AdminHomeForm: func(ctx AdminHomeFormContext) templ.Component {
			return textComponent(fmt.Sprintf("homeform errors=%d", len(ctx.Errors)))
		},
		AdminPageForm: func(ctx AdminPageFormContext) templ.Component {
			return textComponent(fmt.Sprintf("pageform new=%v errors=%d", ctx.IsNew, len(ctx.Errors)))
		},
		AdminSettings: func(ctx AdminSettingsContext) templ.Component {
			return textComponent(fmt.Sprintf("settingsform msg=%q errors=%d", ctx.Message, len(ctx.Errors)))
		},
		AdminRevisions: func(ctx AdminRevisionsContext) templ.Component {
			return textComponent(fmt.Sprintf("revisions count=%d", len(ctx.Revisions)))
		},
		AdminImages: func(images []Image, csrfToken string) templ.Component {
			return textComponent(fmt.Sprintf("images count=%d", len(images)))
		},
		NotFound:    func() templ.Component { return textComponent("stub not found page") },
		ServerError: func() templ.Component { return textComponent("stub server error page") },
	}
}

// newServerApp builds an App the way Start does, minus the listener, so
// tests can drive the full middleware and routing stack through ServeHTTP.
func newServerApp(t *testing.T) *App {
	return newServerAppWithConfig(t, nil)
}

func newServerAppWithConfig(t *testing.T, mutate func(*SiteConfig)) *App {
	t.Helper()

	cfg := SiteConfig{
		Name:              "Test Site",
		URL:               "https://example.com",
		Description:       "A site under test",
		DatabasePath:      filepath.Join(t.TempDir(), "site.db"),
		StatsDatabasePath: filepath.Join(t.TempDir(), "stats.db"),
		AdminPassword:     "sesame",
		SessionSecret:     "0123456789abcdef0123456789abcdef",
	}
	if mutate != nil {
		mutate(&cfg)
	}
	a := New(cfg, stubViews(), WithLogger(zerolog.Nop()), WithStaticDir(t.TempDir()))

	store, err := NewStore(a.Config.DatabasePath)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	a.Store = store
	if _, err := store.EnsureHomePage(a.Config.Name); err != nil {
		t.Fatalf("EnsureHomePage: %v", err)
	}
	a.Cache = NewMemoryCache(a.Config.CacheTTL)
	a.loginLimiter = NewRateLimiter(5, time.Minute)
	if a.Config.StatsEnabled {
		statsStore, err := stats.NewStore(a.Config.StatsDatabasePath, a.Log)
		if err != nil {
			t.Fatalf("stats.NewStore: %v", err)
		}
		a.statsStore = statsStore
		if err := statsStore.InitSalt(); err != nil {
			t.Fatalf("InitSalt: %v", err)
		}
	}
	a.setupMiddleware()
	a.setupRoutes()
	t.Cleanup(func() { a.Close() })
	return a
}

// testClient carries cookies between requests like a browser would, so
// sessions and CSRF tokens survive across a test scenario.
type testClient struct {
	t   *testing.T
	app *App
	jar map[string]*http.Cookie
}

func newClient(t *testing.T, a *App) *testClient {
	return &testClient{t: t, app: a, jar: make(map[string]*http.Cookie)}
}

func (tc *testClient) do(req *http.Request) *httptest.ResponseRecorder {
	tc.t.Helper()
	for _, ck := range tc.jar {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	tc.app.Echo.ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		tc.jar[ck.Name] = ck
	}
	return rec
}

func (tc *testClient) get(target string) *httptest.ResponseRecorder {
	tc.t.Helper()
	return tc.do(httptest.NewRequest(http.MethodGet, target, nil))
}

// postForm submits a form POST, attaching the CSRF token from the cookie
// jar the way a rendered form would echo it back.
func (tc *testClient) postForm(target string, form url.Values) *httptest.ResponseRecorder {
	tc.t.Helper()
	if form == nil {
		form = url.Values{}
	}
	if ck, ok := tc.jar["_csrf"]; ok {
		form.Set("_csrf", ck.Value)
	}
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	return tc.do(req)
}

func (tc *testClient) login() {
	tc.t.Helper()
	tc.get("/admin/")
	rec := tc.postForm("/admin/login/", url.Values{"password": {tc.app.Config.AdminPassword}})
	if rec.Code != http.StatusSeeOther {
		tc.t.Fatalf("login status = %d, want %d (body %q)", rec.Code, http.StatusSeeOther, rec.Body.String())
	}
}

func seedFeaturedPost(t *testing.T, s *Store, title string, date time.Time) *BlogPost {
	t.Helper()
	p := NewBlogPost(title, Slugify(title))
	p.Author = "Jane Doe"
	p.Date = date
	p.Live = true
	p.Featured = true
	ts := date
	p.FirstPublishedAt = &ts
	if err := s.SaveBlogPost(p, ActionCreate); err != nil {
		t.Fatalf("SaveBlogPost(%q): %v", title, err)
	}
	return p
}

func TestHomeHandlerLoadsSections(t *testing.T) {
	a := newServerApp(t)
	for i := 1; i <= 4; i++ {
		seedPost(t, a.Store, fmt.Sprintf("Entry %d", i), "Jane Doe", day(2025, 3, i), true)
	}
	seedFeaturedPost(t, a.Store, "Big One", day(2025, 3, 10))
	seedFeaturedPost(t, a.Store, "Big Two", day(2025, 3, 11))

	rec := newClient(t, a).get("/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	// Default home shows 3 featured slots (2 exist) and 5 recent.
	want := "home:Test Site featured=2 recent=5"
	if got := rec.Body.String(); got != want {
		t.Errorf("body = %q, want %q", got, want)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != echo.MIMETextHTMLCharsetUTF8 {
		t.Errorf("Content-Type = %q, want %q", ct, echo.MIMETextHTMLCharsetUTF8)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "public, max-age=3600" {
		t.Errorf("Cache-Control = %q, want public, max-age=3600", cc)
	}
}

func TestBlogIndexViewModesAndPaging(t *testing.T) {
	a := newServerApp(t)
	for i := 1; i <= 15; i++ {
		seedPost(t, a.Store, fmt.Sprintf("Post %d", i), "Jane Doe", day(2025, 1, i), true)
	}
	tc := newClient(t, a)

	rec := tc.get("/blog/")
	if got, want := rec.Body.String(), "blog page=1/2 count=12 view=grid-2"; got != want {
		t.Errorf("default body = %q, want %q", got, want)
	}

	rec = tc.get("/blog/?view=list")
	if got, want := rec.Body.String(), "blog page=1/2 count=10 view=list"; got != want {
		t.Errorf("list body = %q, want %q", got, want)
	}

	// The chosen density sticks in the visitor session.
	rec = tc.get("/blog/")
	if got, want := rec.Body.String(), "blog page=1/2 count=10 view=list"; got != want {
		t.Errorf("sticky body = %q, want %q", got, want)
	}

	rec = tc.get("/blog/?page=99")
	if got, want := rec.Body.String(), "blog page=2/2 count=5 view=list"; got != want {
		t.Errorf("clamped body = %q, want %q", got, want)
	}

	rec = tc.get("/blog/?page=junk")
	if got, want := rec.Body.String(), "blog page=1/2 count=10 view=list"; got != want {
		t.Errorf("junk page body = %q, want %q", got, want)
	}

	// A fresh visitor gets the default density again.
	rec = newClient(t, a).get("/blog/")
	if got, want := rec.Body.String(), "blog page=1/2 count=12 view=grid-2"; got != want {
		t.Errorf("fresh visitor body = %q, want %q", got, want)
	}
}

func TestAuthorArchiveResolvesSlug(t *testing.T) {
	a := newServerApp(t)
	seedPost(t, a.Store, "First", "Jane Doe", day(2025, 2, 1), true)
	seedPost(t, a.Store, "Second", "Jane Doe", day(2025, 2, 2), true)
	seedPost(t, a.Store, "Other", "Bob", day(2025, 2, 3), true)
	seedPost(t, a.Store, "Hidden", "Jane Doe", day(2025, 2, 4), false)
	tc := newClient(t, a)

	rec := tc.get("/blog/author/jane-doe/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	want := `archive author title="Posts by Jane Doe" count=2`
	if got := rec.Body.String(); got != want {
		t.Errorf("body = %q, want %q", got, want)
	}

	// Unknown authors render an empty archive, not an error.
	rec = tc.get("/blog/author/nobody/")
	if rec.Code != http.StatusOK {
		t.Fatalf("unknown author status = %d, want 200", rec.Code)
	}
	want = `archive author title="Posts by Nobody" count=0`
	if got := rec.Body.String(); got != want {
		t.Errorf("unknown author body = %q, want %q", got, want)
	}
}

func TestTagArchive(t *testing.T) {
	a := newServerApp(t)
	seedPost(t, a.Store, "Go One", "Jane Doe", day(2025, 2, 1), true, "go")
	seedPost(t, a.Store, "Go Two", "Jane Doe", day(2025, 2, 2), true, "go", "web")
	seedPost(t, a.Store, "Web Only", "Jane Doe", day(2025, 2, 3), true, "web")
	seedPost(t, a.Store, "Go Draft", "Jane Doe", day(2025, 2, 4), false, "go")
	tc := newClient(t, a)

	rec := tc.get("/blog/tag/go/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	want := `archive tag title="Posts tagged \"go\"" count=2`
	if got := rec.Body.String(); got != want {
		t.Errorf("body = %q, want %q", got, want)
	}

	rec = tc.get("/blog/tag/missing/")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown tag status = %d, want 404", rec.Code)
	}
	if got := rec.Body.String(); got != "stub not found page" {
		t.Errorf("unknown tag body = %q, want the not-found page", got)
	}
}

func TestDateArchives(t *testing.T) {
	a := newServerApp(t)
	for _, title := range []string{"One", "Two", "Three", "Four", "Five"} {
		seedPost(t, a.Store, title, "Jane Doe", day(2025, 10, 19), true)
	}
	seedPost(t, a.Store, "Older", "Jane Doe", day(2024, 6, 10), true)
	tc := newClient(t, a)

	tests := []struct {
		target string
		want   string
	}{
		{"/2025/", `archive year title="Blog Archive - 2025" count=5`},
		{"/2025/10/", `archive month title="Blog Archive - October 2025" count=5`},
		{"/2025/10/19/", `archive day title="Blog Archive - October 19, 2025" count=5`},
		{"/2024/", `archive year title="Blog Archive - 2024" count=1`},
		// Dates with no posts render an empty archive, not an error.
		{"/2025/11/", `archive month title="Blog Archive - November 2025" count=0`},
		{"/2025/10/20/", `archive day title="Blog Archive - October 20, 2025" count=0`},
	}
	for _, tt := range tests {
		rec := tc.get(tt.target)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", tt.target, rec.Code)
			continue
		}
		if got := rec.Body.String(); got != tt.want {
			t.Errorf("GET %s body = %q, want %q", tt.target, got, tt.want)
		}
	}

	for _, target := range []string{"/2025/13/", "/2025/00/", "/2025/10/32/"} {
		if rec := tc.get(target); rec.Code != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", target, rec.Code)
		}
	}
}

func TestRecalculateReadingTimes(t *testing.T) {
	a := newServerApp(t)

	short := seedPost(t, a.Store, "Short Note", "Jane Doe", day(2025, 3, 1), true)
	short.Intro = "hello world"
	if err := a.Store.SaveBlogPost(short, ActionEdit); err != nil {
		t.Fatalf("SaveBlogPost: %v", err)
	}
	if err := a.Store.UpdateReadingTime(short.ID, 1); err != nil {
		t.Fatalf("UpdateReadingTime: %v", err)
	}

	// A draft with a stale stored value; drafts are recomputed too.
	long := seedPost(t, a.Store, "Long Read", "Jane Doe", day(2025, 3, 2), false)
	long.Body = content.Stream{
		{Type: content.TypeRichText, Value: &content.RichText{Text: strings.TrimSpace(strings.Repeat("word ", 450))}},
	}
	if err := a.Store.SaveBlogPost(long, ActionEdit); err != nil {
		t.Fatalf("SaveBlogPost: %v", err)
	}
	if err := a.Store.UpdateReadingTime(long.ID, 7); err != nil {
		t.Fatalf("UpdateReadingTime: %v", err)
	}

	var buf bytes.Buffer
	if err := a.RecalculateReadingTimes(true, &buf); err != nil {
		t.Fatalf("dry run: %v", err)
	}
	for _, want := range []string{
		"Found 2 blog post(s) to process...",
		`  ✓ "Short Note": 1 min (no change needed)`,
		`  "Long Read": 450 words → 7 min → 2 min`,
		"[DRY RUN] Would update 1 of 2 post(s)",
	} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("dry-run output missing %q:\n%s", want, buf.String())
		}
	}
	got, err := a.Store.GetBlogPost(long.ID)
	if err != nil {
		t.Fatalf("GetBlogPost: %v", err)
	}
	if got.ReadingTime != 7 {
		t.Errorf("dry run wrote reading time %d, want 7 untouched", got.ReadingTime)
	}

	buf.Reset()
	if err := a.RecalculateReadingTimes(false, &buf); err != nil {
		t.Fatalf("RecalculateReadingTimes: %v", err)
	}
	if want := "✓ Successfully updated 1 of 2 post(s)"; !strings.Contains(buf.String(), want) {
		t.Errorf("output missing %q:\n%s", want, buf.String())
	}
	got, err = a.Store.GetBlogPost(long.ID)
	if err != nil {
		t.Fatalf("GetBlogPost: %v", err)
	}
	if got.ReadingTime != 2 {
		t.Errorf("reading time = %d, want 2", got.ReadingTime)
	}
}

func TestPostDetail(t *testing.T) {
	a := newServerApp(t)
	seedPost(t, a.Store, "Alpha", "Jane Doe", day(2025, 1, 1), true, "go")
	seedPost(t, a.Store, "Beta", "Jane Doe", day(2025, 2, 2), true, "go")
	seedPost(t, a.Store, "Gamma", "Jane Doe", day(2025, 3, 3), true, "web")
	seedPost(t, a.Store, "Quiet", "Jane Doe", day(2025, 4, 4), false)
	tc := newClient(t, a)

	rec := tc.get("/2025/02/02/beta/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got, want := rec.Body.String(), "post:beta related=1 prev=alpha next=gamma"; got != want {
		t.Errorf("body = %q, want %q", got, want)
	}

	rec = tc.get("/2025/03/03/gamma/")
	if got, want := rec.Body.String(), "post:gamma related=0 prev=beta next=none"; got != want {
		t.Errorf("newest post body = %q, want %q", got, want)
	}

	for _, target := range []string{
		"/2025/02/02/nope/",  // unknown slug
		"/2025/02/03/beta/",  // wrong date
		"/2025/04/04/quiet/", // draft
	} {
		if rec := tc.get(target); rec.Code != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", target, rec.Code)
		}
	}
}

func TestStaticPageServing(t *testing.T) {
	a := newServerApp(t)
	about := NewStaticPage("About", "about")
	about.Live = true
	if err := a.Store.SaveStaticPage(about, ActionCreate); err != nil {
		t.Fatalf("SaveStaticPage: %v", err)
	}
	secret := NewStaticPage("Secret", "secret")
	if err := a.Store.SaveStaticPage(secret, ActionCreate); err != nil {
		t.Fatalf("SaveStaticPage draft: %v", err)
	}
	tc := newClient(t, a)

	rec := tc.get("/about/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got, want := rec.Body.String(), "page:about recent=0"; got != want {
		t.Errorf("body = %q, want %q", got, want)
	}

	for _, target := range []string{"/secret/", "/missing/", "/a/b/"} {
		if rec := tc.get(target); rec.Code != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", target, rec.Code)
		}
	}
}

func TestStaticPagePrefetchesRecentPosts(t *testing.T) {
	a := newServerApp(t)
	for i := 1; i <= 5; i++ {
		seedPost(t, a.Store, fmt.Sprintf("Entry %d", i), "Jane Doe", day(2025, 1, i), true)
	}
	stream, err := content.ParseStream([]byte(`[{"type":"recent_posts","id":"r1","value":{"number_of_posts":4}}]`))
	if err != nil {
		t.Fatalf("ParseStream: %v", err)
	}
	page := NewStaticPage("Updates", "updates")
	page.Live = true
	page.Body = stream
	if err := a.Store.SaveStaticPage(page, ActionCreate); err != nil {
		t.Fatalf("SaveStaticPage: %v", err)
	}

	rec := newClient(t, a).get("/updates/")
	if got, want := rec.Body.String(), "page:updates recent=4"; got != want {
		t.Errorf("body = %q, want %q", got, want)
	}
}

func TestTrailingSlashRedirect(t *testing.T) {
	a := newServerApp(t)
	tc := newClient(t, a)

	rec := tc.get("/blog")
	if rec.Code != http.StatusMovedPermanently {
		t.Fatalf("status = %d, want 301", rec.Code)
	}
	if loc := rec.Header().Get(echo.HeaderLocation); loc != "/blog/" {
		t.Errorf("Location = %q, want /blog/", loc)
	}

	// Well-known file URLs are exempt from the redirect.
	if rec := tc.get("/feed.xml"); rec.Code != http.StatusOK {
		t.Errorf("GET /feed.xml status = %d, want 200", rec.Code)
	}
}

func TestSitemap(t *testing.T) {
	a := newServerApp(t)
	seedPost(t, a.Store, "Hello World", "Jane Doe", day(2025, 3, 7), true)
	seedPost(t, a.Store, "Hidden Draft", "Jane Doe", day(2025, 3, 8), false)
	about := NewStaticPage("About", "about")
	about.Live = true
	if err := a.Store.SaveStaticPage(about, ActionCreate); err != nil {
		t.Fatalf("SaveStaticPage: %v", err)
	}

	rec := newClient(t, a).get("/sitemap.xml")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "application/xml; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "public, max-age=86400" {
		t.Errorf("Cache-Control = %q, want public, max-age=86400", cc)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"<loc>https://example.com/blog/</loc>",
		"<loc>https://example.com/2025/03/07/hello-world/</loc>",
		"<loc>https://example.com/about/</loc>",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("sitemap missing %q", want)
		}
	}
	if strings.Contains(body, "hidden-draft") {
		t.Error("sitemap should not list draft posts")
	}
}

func TestFeed(t *testing.T) {
	a := newServerApp(t)
	p := seedPost(t, a.Store, "Hello World", "Jane Doe", day(2025, 3, 7), true)
	p.Intro = "The first post."
	if err := a.Store.SaveBlogPost(p, ActionEdit); err != nil {
		t.Fatalf("SaveBlogPost: %v", err)
	}

	rec := newClient(t, a).get("/feed.xml")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "application/rss+xml; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`<rss version="2.0">`,
		"<title>Test Site</title>",
		"<title>Hello World</title>",
		"<link>https://example.com/2025/03/07/hello-world/</link>",
		"<description>The first post.</description>",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("feed missing %q", want)
		}
	}
}

func TestStaticAssetRoutes(t *testing.T) {
	a := newServerApp(t)
	robots := "User-agent: *\nDisallow: /admin/\n"
	if err := os.WriteFile(filepath.Join(a.staticDir, "robots.txt"), []byte(robots), 0o644); err != nil {
		t.Fatalf("write robots.txt: %v", err)
	}
	tc := newClient(t, a)

	rec := tc.get("/robots.txt")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != robots {
		t.Errorf("body = %q, want %q", got, robots)
	}

	// No favicon on disk renders the site's not-found page.
	if rec := tc.get("/favicon.svg"); rec.Code != http.StatusNotFound {
		t.Errorf("GET /favicon.svg status = %d, want 404", rec.Code)
	}
}

func TestErrorPages(t *testing.T) {
	a := newServerApp(t)
	tc := newClient(t, a)

	rec := tc.get("/definitely-not-here/")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if got := rec.Body.String(); got != "stub not found page" {
		t.Errorf("body = %q, want the not-found page", got)
	}

	// A failing store surfaces as the 500 page, not a blank error.
	a.Store.Close()
	rec = tc.get("/")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if got := rec.Body.String(); got != "stub server error page" {
		t.Errorf("body = %q, want the server-error page", got)
	}
}

func TestAdminLoginFlow(t *testing.T) {
	a := newServerApp(t)
	tc := newClient(t, a)

	rec := tc.get("/admin/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != "login error=false" {
		t.Errorf("body = %q, want the login page", got)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", cc)
	}

	rec = tc.postForm("/admin/login/", url.Values{"password": {"wrong"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("wrong password status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != "login error=true" {
		t.Errorf("wrong password body = %q", got)
	}

	rec = tc.postForm("/admin/login/", url.Values{"password": {"sesame"}})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("login status = %d, want 303", rec.Code)
	}
	if loc := rec.Header().Get(echo.HeaderLocation); loc != "/admin/" {
		t.Errorf("Location = %q, want /admin/", loc)
	}

	rec = tc.get("/admin/")
	if got, want := rec.Body.String(), `dashboard posts=0 pages=0 msg=""`; got != want {
		t.Errorf("dashboard body = %q, want %q", got, want)
	}

	rec = tc.postForm("/admin/logout/", nil)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("logout status = %d, want 303", rec.Code)
	}
	rec = tc.get("/admin/")
	if got := rec.Body.String(); got != "login error=false" {
		t.Errorf("after logout body = %q, want the login page", got)
	}
}

func TestAdminLoginRateLimit(t *testing.T) {
	a := newServerApp(t)
	tc := newClient(t, a)
	tc.get("/admin/")

	for i := 0; i < 5; i++ {
		rec := tc.postForm("/admin/login/", url.Values{"password": {"wrong"}})
		if rec.Code != http.StatusOK {
			t.Fatalf("attempt %d status = %d, want 200", i+1, rec.Code)
		}
	}

	// Even the right password is refused once the limit is hit.
	rec := tc.postForm("/admin/login/", url.Values{"password": {"sesame"}})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if got := rec.Body.String(); !strings.Contains(got, "Too many login attempts") {
		t.Errorf("body = %q, want a throttle message", got)
	}
}

func TestCSRFTokenRequired(t *testing.T) {
	a := newServerApp(t)

	form := url.Values{"password": {"sesame"}}
	req := httptest.NewRequest(http.MethodPost, "/admin/login/", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if got := rec.Body.String(); got != "Forbidden" {
		t.Errorf("body = %q, want Forbidden", got)
	}
}

func TestAdminGuardsRedirectAnonymous(t *testing.T) {
	a := newServerApp(t)
	tc := newClient(t, a)

	rec := tc.get("/admin/posts/new/")
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if loc := rec.Header().Get(echo.HeaderLocation); loc != "/admin/" {
		t.Errorf("Location = %q, want /admin/", loc)
	}

	// A valid CSRF token without a session still cannot write.
	rec = tc.postForm("/admin/posts/save/", url.Values{"title": {"Sneaky"}})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("save status = %d, want 303", rec.Code)
	}
	posts, err := a.Store.ListAllPosts()
	if err != nil {
		t.Fatalf("ListAllPosts: %v", err)
	}
	if len(posts) != 0 {
		t.Errorf("anonymous save created %d post(s)", len(posts))
	}
}

func TestAdminPostLifecycle(t *testing.T) {
	a := newServerApp(t)
	tc := newClient(t, a)
	tc.login()

	rec := tc.postForm("/admin/posts/save/", url.Values{
		"title":  {"Launch Day"},
		"author": {"Jane Doe"},
		"date":   {"2025-03-07"},
		"intro":  {"We shipped."},
		"tags":   {"go, news"},
		"body":   {`[{"type":"text","id":"b1","value":{"text":"We **shipped** it."}}]`},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("save status = %d, want 200 (body %q)", rec.Code, rec.Body.String())
	}
	if got, want := rec.Body.String(), `dashboard posts=1 pages=0 msg="saved"`; got != want {
		t.Errorf("save body = %q, want %q", got, want)
	}

	// New posts start as drafts.
	if rec := tc.get("/2025/03/07/launch-day/"); rec.Code != http.StatusNotFound {
		t.Errorf("draft GET status = %d, want 404", rec.Code)
	}

	posts, err := a.Store.ListAllPosts()
	if err != nil {
		t.Fatalf("ListAllPosts: %v", err)
	}
	if len(posts) != 1 {
		t.Fatalf("got %d posts, want 1", len(posts))
	}
	saved := posts[0]
	if saved.Slug != "launch-day" {
		t.Errorf("Slug = %q, want launch-day (derived from title)", saved.Slug)
	}
	if saved.ReadingTime < 1 {
		t.Errorf("ReadingTime = %d, want at least 1", saved.ReadingTime)
	}

	rec = tc.postForm(fmt.Sprintf("/admin/pages/%d/publish/", saved.ID), nil)
	if got, want := rec.Body.String(), `dashboard posts=1 pages=0 msg="published"`; got != want {
		t.Errorf("publish body = %q, want %q", got, want)
	}
	if rec := tc.get("/2025/03/07/launch-day/"); rec.Code != http.StatusOK {
		t.Errorf("published GET status = %d, want 200", rec.Code)
	}

	// Editing away the title re-renders the form with field errors.
	rec = tc.postForm("/admin/posts/save/", url.Values{
		"id":     {fmt.Sprint(saved.ID)},
		"title":  {""},
		"author": {"Jane Doe"},
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid save status = %d, want 422", rec.Code)
	}
	body := rec.Body.String()
	if !strings.HasPrefix(body, "postform new=false") || strings.Contains(body, "errors=0") {
		t.Errorf("invalid save body = %q, want a form re-render with errors", body)
	}

	rec = tc.postForm(fmt.Sprintf("/admin/pages/%d/unpublish/", saved.ID), nil)
	if got, want := rec.Body.String(), `dashboard posts=1 pages=0 msg="unpublished"`; got != want {
		t.Errorf("unpublish body = %q, want %q", got, want)
	}
	if rec := tc.get("/2025/03/07/launch-day/"); rec.Code != http.StatusNotFound {
		t.Errorf("unpublished GET status = %d, want 404", rec.Code)
	}

	rec = tc.postForm(fmt.Sprintf("/admin/pages/%d/delete/", saved.ID), nil)
	if got, want := rec.Body.String(), `dashboard posts=0 pages=0 msg="deleted"`; got != want {
		t.Errorf("delete body = %q, want %q", got, want)
	}
}

func TestHomePageCannotBeDeleted(t *testing.T) {
	a := newServerApp(t)
	tc := newClient(t, a)
	tc.login()

	home, err := a.Store.GetHomePage()
	if err != nil {
		t.Fatalf("GetHomePage: %v", err)
	}
	rec := tc.postForm(fmt.Sprintf("/admin/pages/%d/delete/", home.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); !strings.Contains(got, `msg="The home page cannot be deleted."`) {
		t.Errorf("body = %q, want the refusal message", got)
	}
	if _, err := a.Store.GetHomePage(); err != nil {
		t.Errorf("home page gone after refused delete: %v", err)
	}
}

func TestAdminRevisionsView(t *testing.T) {
	a := newServerApp(t)
	tc := newClient(t, a)
	tc.login()

	page := NewStaticPage("Notes", "notes")
	if err := a.Store.SaveStaticPage(page, ActionCreate); err != nil {
		t.Fatalf("SaveStaticPage: %v", err)
	}
	page.Title = "Notes v2"
	if err := a.Store.SaveStaticPage(page, ActionEdit); err != nil {
		t.Fatalf("SaveStaticPage edit: %v", err)
	}

	rec := tc.get(fmt.Sprintf("/admin/pages/%d/revisions/", page.ID))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got, want := rec.Body.String(), "revisions count=2"; got != want {
		t.Errorf("body = %q, want %q", got, want)
	}
}

func TestAdminSettingsSave(t *testing.T) {
	a := newServerApp(t)
	tc := newClient(t, a)
	tc.login()

	rec := tc.postForm("/admin/settings/site/", url.Values{
		"site_name":     {"Rebranded"},
		"contact_email": {"hello@example.com"},
	})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303 (body %q)", rec.Code, rec.Body.String())
	}
	if loc := rec.Header().Get(echo.HeaderLocation); loc != "/admin/settings/?msg=saved" {
		t.Errorf("Location = %q, want /admin/settings/?msg=saved", loc)
	}

	rec = tc.get("/admin/settings/?msg=saved")
	if got, want := rec.Body.String(), `settingsform msg="saved" errors=0`; got != want {
		t.Errorf("body = %q, want %q", got, want)
	}

	s, err := a.Store.LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s.Site.SiteName != "Rebranded" {
		t.Errorf("Site.SiteName = %q, want Rebranded", s.Site.SiteName)
	}

	// An invalid header style re-renders the settings form.
	rec = tc.postForm("/admin/settings/header/", url.Values{
		"site_title":   {"Rebranded"},
		"header_style": {"floating"},
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid header status = %d, want 422", rec.Code)
	}
	if got, want := rec.Body.String(), `settingsform msg="" errors=1`; got != want {
		t.Errorf("invalid header body = %q, want %q", got, want)
	}
}

func TestAdminImageUploadAndDelete(t *testing.T) {
	a := newServerApp(t)
	tc := newClient(t, a)
	tc.login()

	var imgBuf bytes.Buffer
	if err := png.Encode(&imgBuf, image.NewRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatalf("encode png: %v", err)
	}

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	if ck, ok := tc.jar["_csrf"]; ok {
		mw.WriteField("_csrf", ck.Value)
	}
	fw, err := mw.CreateFormFile("image", "Test Photo.PNG")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	fw.Write(imgBuf.Bytes())
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/admin/images/upload/", body)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	rec := tc.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload status = %d, want 200 (body %q)", rec.Code, rec.Body.String())
	}
	if got, want := rec.Body.String(), "images count=1"; got != want {
		t.Errorf("upload body = %q, want %q", got, want)
	}

	// Stored as a slugified JPEG next to the user's static files.
	path := filepath.Join(a.staticDir, "uploads", "test-photo.jpg")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("uploaded file: %v", err)
	}
	imgs, err := a.Store.ListImages()
	if err != nil {
		t.Fatalf("ListImages: %v", err)
	}
	if len(imgs) != 1 {
		t.Fatalf("got %d images, want 1", len(imgs))
	}
	if imgs[0].Filename != "test-photo.jpg" || imgs[0].Width != 4 || imgs[0].Height != 4 {
		t.Errorf("image = %q %dx%d, want test-photo.jpg 4x4",
			imgs[0].Filename, imgs[0].Width, imgs[0].Height)
	}

	rec = tc.postForm("/admin/images/test-photo.jpg/delete/", nil)
	if got, want := rec.Body.String(), "images count=0"; got != want {
		t.Errorf("delete body = %q, want %q", got, want)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("file still on disk after delete: %v", err)
	}
}

func TestStatsRecordingAndDashboard(t *testing.T) {
	a := newServerAppWithConfig(t, func(cfg *SiteConfig) { cfg.StatsEnabled = true })
	tc := newClient(t, a)

	// Two page views; the feed and admin screens are not audience traffic.
	tc.get("/")
	tc.get("/blog/")
	tc.get("/feed.xml")
	tc.get("/admin/")

	// Do Not Track opts the visitor out.
	req := httptest.NewRequest(http.MethodGet, "/blog/", nil)
	req.Header.Set("DNT", "1")
	tc.do(req)

	now := time.Now().UTC()
	sum, err := a.statsStore.Summary(now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.TotalViews != 2 {
		t.Errorf("TotalViews = %d, want 2 (feed, admin and DNT views must not count)", sum.TotalViews)
	}

	tc.login()
	rec := tc.get("/admin/stats/?period=week")
	if rec.Code != http.StatusOK {
		t.Fatalf("stats status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); !strings.HasPrefix(ct, echo.MIMEApplicationJSON) {
		t.Errorf("Content-Type = %q, want JSON", ct)
	}
	body := rec.Body.String()
	for _, want := range []string{`"total_views":2`, `"period_days":7`, `"realtime_visitors"`} {
		if !strings.Contains(body, want) {
			t.Errorf("stats payload missing %s", want)
		}
	}
}

func TestStatsRouteAbsentWhenDisabled(t *testing.T) {
	a := newServerApp(t)
	tc := newClient(t, a)
	tc.login()

	if rec := tc.get("/admin/stats/"); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when stats are off", rec.Code)
	}
}

func TestWithCustomRoutes(t *testing.T) {
	a := newServerApp(t)
	// Start wires custom routes after the built-ins; do the same here.
	WithCustomRoutes(func(app *App) {
		app.Echo.GET("/ping/", func(c echo.Context) error {
			return c.String(http.StatusOK, "pong")
		})
	})(a)
	for _, fn := range a.customRoutes {
		fn(a)
	}

	rec := newClient(t, a).get("/ping/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != "pong" {
		t.Errorf("body = %q, want pong", got)
	}
}
