package pagemill

import (
	"strings"
	"testing"
)

func TestDefaultHeaderSettings(t *testing.T) {
	h := DefaultHeaderSettings()
	if h.SiteTitle != "My Site" {
		t.Errorf("SiteTitle = %q", h.SiteTitle)
	}
	if h.Style != "sticky" {
		t.Errorf("Style = %q, want sticky", h.Style)
	}
	links := h.NavigationLinks()
	if len(links) != 4 {
		t.Fatalf("default nav has %d links, want 4", len(links))
	}
	if links[0].URL != "/" || links[1].URL != "/blog/" {
		t.Errorf("nav order = %v", links)
	}
	if err := h.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestNavigationLinksSkipIncomplete(t *testing.T) {
	h := HeaderSettings{Nav: []NavLink{
		{Text: "Home", URL: "/"},
		{Text: "", URL: "/orphan/"},
		{Text: "No URL", URL: ""},
		{Text: "Blog", URL: "/blog/"},
	}}
	links := h.NavigationLinks()
	if len(links) != 2 {
		t.Fatalf("got %d links, want 2", len(links))
	}
	if links[0].Text != "Home" || links[1].Text != "Blog" {
		t.Errorf("links = %v", links)
	}
}

func TestHeaderStyleValidation(t *testing.T) {
	h := DefaultHeaderSettings()
	h.Style = "floating"
	errs := fieldErrors(t, h.Validate())
	if errs.Get("header_style") == "" {
		t.Error("unknown header style should be rejected")
	}

	h.Style = "static"
	if err := h.Validate(); err != nil {
		t.Errorf("static style should pass: %v", err)
	}
}

func TestFooterCopyrightLine(t *testing.T) {
	f := DefaultFooterSettings()
	if got := f.Copyright(2025); got != "© 2025 All rights reserved." {
		t.Errorf("Copyright = %q", got)
	}

	f.ShowYear = false
	f.CopyrightText = "Example Industries"
	if got := f.Copyright(2025); got != "© Example Industries" {
		t.Errorf("Copyright without year = %q", got)
	}
}

func TestFooterSocialLinks(t *testing.T) {
	f := FooterSettings{}
	if links := f.SocialLinks(); len(links) != 0 {
		t.Errorf("no URLs set, got %v", links)
	}

	f.GitHubURL = "https://github.com/janedoe"
	f.Email = "jane@example.com"
	links := f.SocialLinks()
	if len(links) != 2 {
		t.Fatalf("got %d links, want 2", len(links))
	}
	if links[0].Text != "GitHub" {
		t.Errorf("first link = %v", links[0])
	}
	if links[1].URL != "mailto:jane@example.com" {
		t.Errorf("email link = %q", links[1].URL)
	}
}

func TestFooterLinksSkipIncomplete(t *testing.T) {
	f := DefaultFooterSettings()
	f.Links = append(f.Links, NavLink{Text: "Half", URL: ""})
	if got := len(f.FooterLinks()); got != 4 {
		t.Errorf("FooterLinks = %d entries, want 4", got)
	}
}

func TestSiteSettingsValidate(t *testing.T) {
	s := DefaultSiteSettings()
	if err := s.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	s.DefaultMetaDescription = strings.Repeat("x", 161)
	errs := fieldErrors(t, s.Validate())
	if errs.Get("default_meta_description") == "" {
		t.Error("long default meta description should be rejected")
	}
}
