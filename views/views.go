// Package views renders page content streams to HTML for user-owned
// templates. The engine never renders a page itself, so sites call Blocks
// (or BlocksWith when a stream needs post data) from their templ
// components and style the emitted class hooks with their own CSS.
package views

import (
	"bytes"
	"context"
	"encoding/json"
	"html"
	"io"
	"strconv"

	"github.com/a-h/templ"

	"github.com/pagemill/pagemill"
	"github.com/pagemill/pagemill/content"
	"github.com/pagemill/pagemill/markdown"
)

// BlockData carries dynamic values for block types that render more than
// their own fields. A recent_posts block shows whatever the caller loaded,
// typically PageContext.RecentPosts.
type BlockData struct {
	RecentPosts []pagemill.BlogPost
}

// Blocks renders a content stream with no dynamic data.
func Blocks(stream content.Stream) templ.Component {
	return BlocksWith(stream, BlockData{})
}

// BlocksWith renders a content stream, feeding data to the block types
// that need it.
func BlocksWith(stream content.Stream, data BlockData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		for _, b := range stream {
			renderBlock(&buf, b, data)
		}
		_, err := w.Write(buf.Bytes())
		return err
	})
}

func renderBlock(buf *bytes.Buffer, b content.Block, data BlockData) {
	switch v := b.Value.(type) {
	case *content.Heading:
		renderHeading(buf, v)
	case *content.RichText:
		renderRichText(buf, v)
	case *content.Image:
		renderImage(buf, v)
	case *content.Quote:
		renderQuote(buf, v)
	case *content.Button:
		renderButton(buf, v)
	case *content.Spacer:
		buf.WriteString(`<div class="spacer spacer-` + cssToken(v.Height, "medium") + `"></div>`)
	case *content.Hero:
		renderHero(buf, v)
	case *content.CallToAction:
		renderCTA(buf, v)
	case *content.AuthorBio:
		renderAuthorBio(buf, v)
	case *content.RecentPosts:
		renderRecentPosts(buf, v, data.RecentPosts)
	}
}

func renderHeading(buf *bytes.Buffer, v *content.Heading) {
	level := v.Level
	switch level {
	case "h1", "h2", "h3", "h4", "h5", "h6":
	default:
		level = "h2"
	}
	buf.WriteString("<" + level + ` class="align-` + cssToken(v.Alignment, "left") + `">`)
	buf.WriteString(html.EscapeString(v.Text))
	buf.WriteString("</" + level + ">")
}

func renderRichText(buf *bytes.Buffer, v *content.RichText) {
	buf.WriteString(`<div class="prose align-` + cssToken(v.Alignment, "left") + `">`)
	markdown.RenderMarkdown(buf, v.Text)
	buf.WriteString("</div>")
}

func renderImage(buf *bytes.Buffer, v *content.Image) {
	src := markdown.SafeURL(v.Src)
	if src == "" {
		return
	}
	buf.WriteString(`<figure class="image image-` + cssToken(v.Alignment, "center") + `">`)
	buf.WriteString(`<img alt="` + html.EscapeString(v.AltText) + `" src="` + src + `" loading="lazy" decoding="async"/>`)
	if v.Caption != "" {
		buf.WriteString("<figcaption>" + markdown.FormatInline(v.Caption) + "</figcaption>")
	}
	buf.WriteString("</figure>")
}

func renderQuote(buf *bytes.Buffer, v *content.Quote) {
	buf.WriteString(`<blockquote class="quote quote-` + cssToken(v.Style, "default") + `">`)
	buf.WriteString("<p>" + html.EscapeString(v.Text) + "</p>")
	if v.Author != "" {
		buf.WriteString("<cite>" + html.EscapeString(v.Author))
		if v.AuthorTitle != "" {
			buf.WriteString(`<span class="cite-title">` + html.EscapeString(v.AuthorTitle) + "</span>")
		}
		buf.WriteString("</cite>")
	}
	buf.WriteString("</blockquote>")
}

func renderButton(buf *bytes.Buffer, v *content.Button) {
	href := markdown.SafeURL(v.URL)
	if href == "" {
		return
	}
	buf.WriteString(`<a class="btn btn-` + cssToken(v.Style, "primary") + ` btn-` + cssToken(v.Size, "md") + `" href="` + href + `"`)
	if v.NewTab {
		buf.WriteString(` target="_blank" rel="noopener noreferrer"`)
	}
	buf.WriteString(">" + html.EscapeString(v.Text) + "</a>")
}

func renderHero(buf *bytes.Buffer, v *content.Hero) {
	buf.WriteString(`<section class="hero hero-` + cssToken(v.Height, "medium") +
		` hero-text-` + cssToken(v.TextColor, "white") + `"`)
	bg := markdown.SafeURL(v.BackgroundSrc)
	if bg != "" {
		buf.WriteString(` style="background-image:url('` + bg + `')"`)
	}
	buf.WriteString(">")
	if bg != "" && v.Overlay {
		buf.WriteString(`<div class="hero-overlay"></div>`)
	}
	buf.WriteString(`<div class="hero-content">`)
	buf.WriteString("<h1>" + html.EscapeString(v.Title) + "</h1>")
	if v.Subtitle != "" {
		buf.WriteString("<p>" + html.EscapeString(v.Subtitle) + "</p>")
	}
	if v.CTAText != "" {
		if href := markdown.SafeURL(v.CTALink); href != "" {
			buf.WriteString(`<a class="btn btn-` + cssToken(v.CTAStyle, "primary") + `" href="` + href + `">` +
				html.EscapeString(v.CTAText) + "</a>")
		}
	}
	buf.WriteString("</div></section>")
}

func renderCTA(buf *bytes.Buffer, v *content.CallToAction) {
	buf.WriteString(`<section class="cta cta-` + cssToken(v.Alignment, "center") +
		` bg-` + cssToken(v.Background, "base-100") + `">`)
	buf.WriteString("<h2>" + html.EscapeString(v.Title) + "</h2>")
	if v.Description != "" {
		buf.WriteString("<p>" + html.EscapeString(v.Description) + "</p>")
	}
	if href := markdown.SafeURL(v.ButtonLink); href != "" {
		buf.WriteString(`<a class="btn btn-` + cssToken(v.ButtonStyle, "primary") + `" href="` + href + `">` +
			html.EscapeString(v.ButtonText) + "</a>")
	}
	buf.WriteString("</section>")
}

func renderAuthorBio(buf *bytes.Buffer, v *content.AuthorBio) {
	buf.WriteString(`<aside class="author-bio">`)
	if src := markdown.SafeURL(v.ImageSrc); src != "" {
		buf.WriteString(`<img alt="` + html.EscapeString(v.Name) + `" src="` + src + `" loading="lazy" decoding="async"/>`)
	}
	buf.WriteString(`<div class="author-bio-body">`)
	buf.WriteString("<h3>" + html.EscapeString(v.Name) + "</h3>")
	buf.WriteString(`<div class="prose">`)
	markdown.RenderMarkdown(buf, v.Bio)
	buf.WriteString("</div>")
	if v.ShowSocialIcons {
		renderSocialLinks(buf, v)
	}
	buf.WriteString("</div></aside>")
}

func renderSocialLinks(buf *bytes.Buffer, v *content.AuthorBio) {
	links := []struct {
		label string
		url   string
	}{
		{"Website", v.WebsiteURL},
		{"Twitter", v.TwitterURL},
		{"LinkedIn", v.LinkedInURL},
		{"GitHub", v.GitHubURL},
	}
	if v.Email != "" {
		links = append(links, struct {
			label string
			url   string
		}{"Email", "mailto:" + v.Email})
	}
	var items bytes.Buffer
	for _, l := range links {
		href := markdown.SafeURL(l.url)
		if href == "" {
			continue
		}
		items.WriteString(`<li><a href="` + href + `" target="_blank" rel="noopener noreferrer">` + l.label + "</a></li>")
	}
	if items.Len() == 0 {
		return
	}
	buf.WriteString(`<ul class="social-links">`)
	buf.Write(items.Bytes())
	buf.WriteString("</ul>")
}

func renderRecentPosts(buf *bytes.Buffer, v *content.RecentPosts, posts []pagemill.BlogPost) {
	if len(posts) > v.Count {
		posts = posts[:v.Count]
	}
	buf.WriteString(`<section class="recent-posts layout-` + cssToken(v.Layout, "cards") + `">`)
	buf.WriteString("<h2>" + html.EscapeString(v.Title) + "</h2>")
	if len(posts) > 0 {
		buf.WriteString(`<div class="recent-posts-items">`)
		for i := range posts {
			renderRecentPostItem(buf, &posts[i], v)
		}
		buf.WriteString("</div>")
	}
	buf.WriteString("</section>")
}

func renderRecentPostItem(buf *bytes.Buffer, p *pagemill.BlogPost, v *content.RecentPosts) {
	buf.WriteString("<article>")
	if v.ShowImage && p.FeaturedImage != "" {
		if src := markdown.SafeURL(p.FeaturedImage); src != "" {
			buf.WriteString(`<img alt="` + html.EscapeString(p.Title) + `" src="` + src + `" loading="lazy" decoding="async"/>`)
		}
	}
	buf.WriteString(`<h3><a href="` + p.URL() + `">` + html.EscapeString(p.Title) + "</a></h3>")
	if v.ShowDate || v.ShowAuthor {
		buf.WriteString(`<p class="post-meta">`)
		if v.ShowDate {
			buf.WriteString("<time datetime=\"" + p.Date.Format("2006-01-02") + "\">" + p.Date.Format("January 2, 2006") + "</time>")
		}
		if v.ShowAuthor && p.Author != "" {
			if v.ShowDate {
				buf.WriteString(" · ")
			}
			buf.WriteString(html.EscapeString(p.Author))
		}
		buf.WriteString("</p>")
	}
	if v.ShowExcerpt && p.Intro != "" {
		buf.WriteString("<p>" + html.EscapeString(p.Intro) + "</p>")
	}
	buf.WriteString("</article>")
}

// cssToken keeps class attributes to single lowercase tokens. Values come
// from the block catalog's fixed choices; anything else falls back.
func cssToken(s, fallback string) string {
	if s == "" {
		return fallback
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '-' {
			return fallback
		}
	}
	return s
}

// ReadingTimeLabel formats a reading-time estimate for display.
func ReadingTimeLabel(minutes int) string {
	if minutes < 1 {
		minutes = 1
	}
	return strconv.Itoa(minutes) + " min read"
}

// StreamJSON renders a content stream as indented JSON for the admin body
// editor. An empty stream renders as an empty string rather than null.
func StreamJSON(s content.Stream) string {
	if len(s) == 0 {
		return ""
	}
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return ""
	}
	return string(b)
}
