package pagemill

import (
	"strings"
	"testing"
	"time"

	"github.com/pagemill/pagemill/content"
)

func fieldErrors(t *testing.T, err error) content.FieldErrors {
	t.Helper()
	if err == nil {
		t.Fatal("expected a validation error")
	}
	errs, ok := err.(content.FieldErrors)
	if !ok {
		t.Fatalf("error type = %T, want content.FieldErrors", err)
	}
	return errs
}

func TestDateURLZeroPads(t *testing.T) {
	cases := []struct {
		date time.Time
		slug string
		want string
	}{
		{day(2025, 3, 7), "my-post", "/2025/03/07/my-post/"},
		{day(2025, 12, 25), "xmas", "/2025/12/25/xmas/"},
		{day(2024, 1, 1), "new-year", "/2024/01/01/new-year/"},
	}
	for _, tc := range cases {
		if got := DateURL(tc.date, tc.slug); got != tc.want {
			t.Errorf("DateURL(%v, %q) = %q, want %q", tc.date, tc.slug, got, tc.want)
		}
	}

	p := NewBlogPost("My Post", "my-post")
	p.Date = day(2025, 3, 7)
	if got := p.URL(); got != "/2025/03/07/my-post/" {
		t.Errorf("URL() = %q", got)
	}
}

func TestBlogPostValidate(t *testing.T) {
	valid := func() *BlogPost {
		p := NewBlogPost("Title", "title")
		p.Author = "Jane Doe"
		p.Date = day(2025, 1, 1)
		return p
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("valid post failed validation: %v", err)
	}

	p := valid()
	p.Author = "   "
	errs := fieldErrors(t, p.Validate())
	if errs.Get("author") == "" {
		t.Error("blank author should be rejected")
	}

	p = valid()
	p.Intro = strings.Repeat("é", 250)
	if err := p.Validate(); err != nil {
		t.Errorf("250-rune intro should pass: %v", err)
	}
	p.Intro = strings.Repeat("é", 251)
	errs = fieldErrors(t, p.Validate())
	if errs.Get("intro") == "" {
		t.Error("251-rune intro should be rejected")
	}

	p = valid()
	p.Date = time.Now().AddDate(0, 0, 1)
	errs = fieldErrors(t, p.Validate())
	if errs.Get("date") == "" {
		t.Error("future publication date should be rejected")
	}

	// Today is not in the future.
	if err := NewBlogPost("Today", "today").Validate(); err != nil {
		if fe, ok := err.(content.FieldErrors); !ok || fe.Get("date") != "" {
			t.Errorf("today's date flagged as future: %v", err)
		}
	}

	p = valid()
	p.ReadingTime = -1
	errs = fieldErrors(t, p.Validate())
	if errs.Get("reading_time") == "" {
		t.Error("negative reading time should be rejected")
	}

	p = valid()
	p.Title = ""
	p.Slug = ""
	errs = fieldErrors(t, p.Validate())
	if errs.Get("title") == "" || errs.Get("slug") == "" {
		t.Error("missing title and slug should both be reported")
	}
}

func TestValidateSurfacesBlockErrors(t *testing.T) {
	body, err := content.ParseStream([]byte(`[{"type":"heading","id":"h1","value":{"heading_text":""}}]`))
	if err != nil {
		t.Fatalf("ParseStream: %v", err)
	}
	p := NewBlogPost("Title", "title")
	p.Author = "Jane"
	p.Date = day(2025, 1, 1)
	p.Body = body

	errs := fieldErrors(t, p.Validate())
	if errs.Get("body[0].heading_text") == "" {
		t.Errorf("block error not surfaced, got %v", errs)
	}
}

func TestHomePageValidateCTAPairing(t *testing.T) {
	valid := func() *HomePage { return NewHomePage("Home") }

	if err := valid().Validate(); err != nil {
		t.Fatalf("default home page failed validation: %v", err)
	}

	p := valid()
	p.HeroCTALink = "/blog/"
	errs := fieldErrors(t, p.Validate())
	if errs.Get("hero_cta_text") == "" {
		t.Error("CTA link without text should be rejected")
	}

	p = valid()
	p.HeroCTAText = "Read more"
	errs = fieldErrors(t, p.Validate())
	if errs.Get("hero_cta_link") == "" {
		t.Error("CTA text without link should be rejected")
	}

	p = valid()
	p.HeroCTAText = "Read more"
	p.HeroCTALink = "/blog/"
	if err := p.Validate(); err != nil {
		t.Errorf("paired CTA should pass: %v", err)
	}

	p = valid()
	p.HeroCTAText = "   "
	p.HeroCTALink = "/blog/"
	errs = fieldErrors(t, p.Validate())
	if errs.Get("hero_cta_text") == "" {
		t.Error("whitespace-only CTA text should be rejected")
	}
}

func TestHomePageValidateSectionCounts(t *testing.T) {
	p := NewHomePage("Home")
	p.FeaturedCount = 21
	p.RecentCount = 51
	errs := fieldErrors(t, p.Validate())
	if errs.Get("featured_count") == "" {
		t.Error("featured count above 20 should be rejected")
	}
	if errs.Get("recent_count") == "" {
		t.Error("recent count above 50 should be rejected")
	}

	p = NewHomePage("Home")
	p.FeaturedCount = 0
	p.RecentCount = 0
	if err := p.Validate(); err != nil {
		t.Errorf("zero counts should pass: %v", err)
	}

	p = NewHomePage("Home")
	p.HeroTitle = strings.Repeat("x", 201)
	errs = fieldErrors(t, p.Validate())
	if errs.Get("hero_title") == "" {
		t.Error("hero title above 200 runes should be rejected")
	}
}

func TestHomePageSocialLinks(t *testing.T) {
	p := NewHomePage("Home")
	if links := p.SocialLinks(); len(links) != 0 {
		t.Errorf("no URLs set, got %v", links)
	}

	p.WebsiteURL = "https://example.com"
	p.GitHubURL = "https://github.com/janedoe"
	p.Email = "jane@example.com"
	links := p.SocialLinks()
	if len(links) != 3 {
		t.Fatalf("got %d links, want 3", len(links))
	}
	if links[0].Text != "Website" || links[1].Text != "GitHub" {
		t.Errorf("display order = %v", links)
	}
	if links[2].URL != "mailto:jane@example.com" {
		t.Errorf("email link = %q, want mailto form", links[2].URL)
	}
}

func TestBlogPostMetaFallbacks(t *testing.T) {
	p := NewBlogPost("The Title", "the-title")
	p.Date = day(2025, 3, 7)
	p.Intro = "The intro."
	p.FeaturedImage = "/public/uploads/cover.jpg"

	meta := p.Meta("https://example.com")
	if meta.Title != "The Title" {
		t.Errorf("Title = %q, want the post title", meta.Title)
	}
	if meta.Description != "The intro." {
		t.Errorf("Description = %q, want the intro", meta.Description)
	}
	if meta.Image != "/public/uploads/cover.jpg" {
		t.Errorf("Image = %q, want the featured image", meta.Image)
	}
	if meta.URL != "https://example.com/2025/03/07/the-title/" {
		t.Errorf("URL = %q", meta.URL)
	}
	if meta.OGType != "article" {
		t.Errorf("OGType = %q, want article", meta.OGType)
	}

	p.OGTitle = "OG Title"
	p.MetaDescription = "Meta desc"
	p.OGImage = "/public/uploads/og.jpg"
	meta = p.Meta("https://example.com")
	if meta.Title != "OG Title" || meta.Description != "Meta desc" || meta.Image != "/public/uploads/og.jpg" {
		t.Errorf("explicit OG fields should win: %+v", meta)
	}
}

func TestPageMetaPaths(t *testing.T) {
	about := NewStaticPage("About", "about")
	meta := about.Page.Meta("https://example.com")
	if meta.URL != "https://example.com/about/" {
		t.Errorf("static page URL = %q", meta.URL)
	}
	if meta.OGType != "website" {
		t.Errorf("OGType = %q, want website", meta.OGType)
	}

	home := NewHomePage("Home")
	meta = home.Page.Meta("https://example.com")
	if meta.URL != "https://example.com/" {
		t.Errorf("home URL = %q", meta.URL)
	}
}

func TestStaticPageValidate(t *testing.T) {
	p := NewStaticPage("About", "about")
	if err := p.Validate(); err != nil {
		t.Fatalf("valid page failed: %v", err)
	}

	p.MetaDescription = strings.Repeat("x", 161)
	errs := fieldErrors(t, p.Validate())
	if errs.Get("meta_description") == "" {
		t.Error("meta description above 160 runes should be rejected")
	}
}
