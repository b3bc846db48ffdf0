package pagemill

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pagemill/pagemill/content"
)

// PageKind discriminates the page variants stored in the tree.
type PageKind string

const (
	KindHome   PageKind = "home"
	KindPost   PageKind = "post"
	KindStatic PageKind = "static"
)

// Revision actions recorded in the page history.
const (
	ActionCreate    = "create"
	ActionEdit      = "edit"
	ActionPublish   = "publish"
	ActionUnpublish = "unpublish"
)

// Page is a node in the site's page tree. The home page is the single root;
// blog posts and static pages are its children. Every variant shares these
// fields plus an ordered content stream.
type Page struct {
	ID       int64
	ParentID int64 // 0 for the root home page
	Kind     PageKind
	Slug     string
	Title    string

	MetaDescription string
	MetaKeywords    string
	OGTitle         string
	OGDescription   string
	OGImage         string

	Live             bool
	FirstPublishedAt *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time

	Body content.Stream
}

// Entity is implemented by every page variant.
type Entity interface {
	Node() *Page
	Validate() error
}

func (p *Page) Node() *Page { return p }

func (p *Page) validateCommon(errs *content.FieldErrors) {
	if strings.TrimSpace(p.Title) == "" {
		errs.Add("title", "title is required")
	}
	if strings.TrimSpace(p.Slug) == "" {
		errs.Add("slug", "slug is required")
	}
	if utf8.RuneCountInString(p.MetaDescription) > 160 {
		errs.Add("meta_description", "meta description must be 160 characters or less")
	}
	var ferrs content.FieldErrors
	if err := p.Body.Validate(); err != nil {
		if fe, ok := err.(content.FieldErrors); ok {
			ferrs = fe
		} else {
			errs.Add("body", err.Error())
		}
	}
	for _, fe := range ferrs {
		errs.Add(fe.Field, fe.Message)
	}
}

// BlogPost is a blog entry under the home page. Its canonical URL is
// date-based rather than tree-based.
type BlogPost struct {
	Page

	Author        string
	Date          time.Time // publication date, date precision
	Intro         string
	FeaturedImage string
	ImageCaption  string
	Featured      bool
	ShowAuthorBio bool
	ShowRelated   bool
	Tags          []string

	// ReadingTime is minutes at 200 words per minute, recomputed on save.
	ReadingTime int
}

// NewBlogPost returns a draft post dated today with display toggles on.
func NewBlogPost(title, slug string) *BlogPost {
	now := time.Now()
	return &BlogPost{
		Page:          Page{Kind: KindPost, Title: title, Slug: slug},
		Date:          time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
		ShowAuthorBio: true,
		ShowRelated:   true,
	}
}

// URL returns the canonical date-based path, /YYYY/MM/DD/slug/.
func (p *BlogPost) URL() string {
	return DateURL(p.Date, p.Slug)
}

// Validate checks the post's field contracts and its content stream.
func (p *BlogPost) Validate() error {
	var errs content.FieldErrors
	p.validateCommon(&errs)
	if strings.TrimSpace(p.Author) == "" {
		errs.Add("author", "author is required")
	}
	if utf8.RuneCountInString(p.Intro) > 250 {
		errs.Add("intro", "intro must be 250 characters or less")
	}
	if !p.Date.IsZero() && dateOnly(p.Date).After(dateOnly(time.Now())) {
		errs.Add("date", "publication date cannot be in the future")
	}
	if p.ReadingTime < 0 {
		errs.Add("reading_time", "reading time cannot be negative")
	}
	return errs.Err()
}

// Meta builds the head metadata for the post detail page.
func (p *BlogPost) Meta(baseURL string) PageMeta {
	title := p.OGTitle
	if title == "" {
		title = p.Title
	}
	desc := p.MetaDescription
	if desc == "" {
		desc = p.Intro
	}
	image := p.OGImage
	if image == "" {
		image = p.FeaturedImage
	}
	return PageMeta{
		Title:       title,
		Description: desc,
		URL:         BuildURL(baseURL, p.URL()),
		Image:       image,
		OGType:      "article",
	}
}

// HomePage is the tree root: hero section, author sidebar, and configurable
// featured/recent post sections around its content stream.
type HomePage struct {
	Page

	HeroTitle    string
	HeroSubtitle string
	HeroImage    string
	HeroCTAText  string
	HeroCTALink  string

	AuthorName  string
	AuthorBio   string // markdown
	AuthorImage string
	WebsiteURL  string
	TwitterURL  string
	LinkedInURL string
	GitHubURL   string
	Email       string

	FeaturedTitle string
	FeaturedCount int
	ShowFeatured  bool
	RecentTitle   string
	RecentCount   int
	ShowRecent    bool

	ShowAuthorSidebar bool
	EnableComments    bool
	CSSClass          string
}

// NewHomePage returns a home page with the section defaults applied.
func NewHomePage(title string) *HomePage {
	return &HomePage{
		Page:              Page{Kind: KindHome, Title: title, Slug: "home"},
		FeaturedTitle:     "Featured Posts",
		FeaturedCount:     3,
		ShowFeatured:      true,
		RecentTitle:       "Recent Posts",
		RecentCount:       5,
		ShowRecent:        true,
		ShowAuthorSidebar: true,
	}
}

// Validate checks section counts and hero call-to-action pairing.
func (p *HomePage) Validate() error {
	var errs content.FieldErrors
	p.validateCommon(&errs)
	if utf8.RuneCountInString(p.HeroTitle) > 200 {
		errs.Add("hero_title", "hero title must be 200 characters or less")
	}
	if utf8.RuneCountInString(p.HeroSubtitle) > 300 {
		errs.Add("hero_subtitle", "hero subtitle must be 300 characters or less")
	}
	if utf8.RuneCountInString(p.HeroCTAText) > 50 {
		errs.Add("hero_cta_text", "hero CTA text must be 50 characters or less")
	}
	if p.HeroCTALink != "" && p.HeroCTAText == "" {
		errs.Add("hero_cta_text", "CTA text is required when a CTA link is provided")
	}
	if p.HeroCTAText != "" && strings.TrimSpace(p.HeroCTAText) == "" {
		errs.Add("hero_cta_text", "CTA text cannot be empty or only whitespace")
	}
	if p.HeroCTAText != "" && p.HeroCTALink == "" {
		errs.Add("hero_cta_link", "a CTA link is required when CTA text is provided")
	}
	if p.FeaturedCount < 0 || p.FeaturedCount > 20 {
		errs.Add("featured_count", "featured post count must be between 0 and 20")
	}
	if p.RecentCount < 0 || p.RecentCount > 50 {
		errs.Add("recent_count", "recent post count must be between 0 and 50")
	}
	return errs.Err()
}

// SocialLinks returns the author sidebar's populated links in display order.
func (p *HomePage) SocialLinks() []NavLink {
	links := make([]NavLink, 0, 5)
	add := func(text, url string) {
		if url != "" {
			links = append(links, NavLink{Text: text, URL: url})
		}
	}
	add("Website", p.WebsiteURL)
	add("Twitter", p.TwitterURL)
	add("LinkedIn", p.LinkedInURL)
	add("GitHub", p.GitHubURL)
	if p.Email != "" {
		links = append(links, NavLink{Text: "Email", URL: "mailto:" + p.Email})
	}
	return links
}

// StaticPage is a plain tree page served at its slug.
type StaticPage struct {
	Page
}

// NewStaticPage returns a draft static page.
func NewStaticPage(title, slug string) *StaticPage {
	return &StaticPage{Page: Page{Kind: KindStatic, Title: title, Slug: slug}}
}

// Validate checks the shared page contracts.
func (p *StaticPage) Validate() error {
	var errs content.FieldErrors
	p.validateCommon(&errs)
	return errs.Err()
}

// Meta builds the head metadata for a tree-served page.
func (p *Page) Meta(baseURL string) PageMeta {
	title := p.OGTitle
	if title == "" {
		title = p.Title
	}
	path := "/"
	if p.Kind != KindHome {
		path = "/" + p.Slug + "/"
	}
	return PageMeta{
		Title:       title,
		Description: p.MetaDescription,
		URL:         BuildURL(baseURL, path),
		Image:       p.OGImage,
		OGType:      "website",
	}
}

// Revision is an immutable snapshot of a page's fields at a point in time.
type Revision struct {
	ID        string // uuid
	PageID    int64
	Action    string
	CreatedAt time.Time
	Data      []byte // JSON snapshot of the full entity
}

// Tag is a many-to-many label across blog posts.
type Tag struct {
	ID   int64
	Name string
	Slug string
}

// NavLink is one navigation or social link pair.
type NavLink struct {
	Text string
	URL  string
}

// Image is uploaded-image metadata; the files themselves live under the
// static directory's uploads folder.
type Image struct {
	Filename     string
	OriginalName string
	Width        int
	Height       int
	Size         int
	UploadedAt   string
}

// PageMeta carries per-page OpenGraph and SEO metadata into the <head> template.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	Image       string // og:image, optional
	OGType      string // "website" or "article"
}

// DateURL returns the canonical blog-post path for a publication date and
// slug: /YYYY/MM/DD/slug/ with zero-padded components.
func DateURL(date time.Time, slug string) string {
	return fmt.Sprintf("/%04d/%02d/%02d/%s/", date.Year(), int(date.Month()), date.Day(), slug)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
