package pagemill

import (
	"strconv"
	"unicode/utf8"

	"github.com/pagemill/pagemill/content"
)

// Settings singleton names as stored in the settings table.
const (
	SettingsHeader = "header"
	SettingsFooter = "footer"
	SettingsSite   = "site"
)

// Settings bundles the three site-wide singletons for render contexts.
type Settings struct {
	Header HeaderSettings
	Footer FooterSettings
	Site   SiteSettings
}

// HeaderSettings configures the site header and navigation. Stored as one
// JSON row; absent fields keep their defaults.
type HeaderSettings struct {
	SiteTitle       string    `json:"site_title"`
	ShowLogo        bool      `json:"show_logo"`
	LogoSrc         string    `json:"logo"`
	Nav             []NavLink `json:"nav_links"`
	ShowSearch      bool      `json:"show_search"`
	ShowThemeToggle bool      `json:"show_theme_toggle"`
	Style           string    `json:"header_style"` // sticky or static
}

// DefaultHeaderSettings returns the header defaults used when no row exists.
func DefaultHeaderSettings() HeaderSettings {
	return HeaderSettings{
		SiteTitle: "My Site",
		Nav: []NavLink{
			{Text: "Home", URL: "/"},
			{Text: "Blog", URL: "/blog/"},
			{Text: "About", URL: "/about/"},
			{Text: "Contact", URL: "/contact/"},
		},
		ShowSearch:      true,
		ShowThemeToggle: true,
		Style:           "sticky",
	}
}

// NavigationLinks returns the nav entries that have both text and URL,
// preserving their configured order.
func (h HeaderSettings) NavigationLinks() []NavLink {
	links := make([]NavLink, 0, len(h.Nav))
	for _, l := range h.Nav {
		if l.Text != "" && l.URL != "" {
			links = append(links, l)
		}
	}
	return links
}

// Validate checks the header style choice.
func (h HeaderSettings) Validate() error {
	var errs content.FieldErrors
	if h.Style != "sticky" && h.Style != "static" {
		errs.Add("header_style", "header style must be sticky or static")
	}
	return errs.Err()
}

// FooterSettings configures the site footer.
type FooterSettings struct {
	CopyrightText   string    `json:"copyright_text"`
	ShowYear        bool      `json:"show_year"`
	ColumnTitle     string    `json:"footer_col1_title"`
	Links           []NavLink `json:"footer_links"`
	ShowSocialLinks bool      `json:"show_social_links"`
	TwitterURL      string    `json:"twitter_url"`
	GitHubURL       string    `json:"github_url"`
	LinkedInURL     string    `json:"linkedin_url"`
	Email           string    `json:"email_address"`
	Description     string    `json:"footer_description"`
}

// DefaultFooterSettings returns the footer defaults used when no row exists.
func DefaultFooterSettings() FooterSettings {
	return FooterSettings{
		CopyrightText: "All rights reserved.",
		ShowYear:      true,
		ColumnTitle:   "Quick Links",
		Links: []NavLink{
			{Text: "About", URL: "/about/"},
			{Text: "Contact", URL: "/contact/"},
			{Text: "Privacy Policy", URL: "/privacy/"},
			{Text: "Terms of Service", URL: "/terms/"},
		},
		ShowSocialLinks: true,
	}
}

// FooterLinks returns the footer entries that have both text and URL.
func (f FooterSettings) FooterLinks() []NavLink {
	links := make([]NavLink, 0, len(f.Links))
	for _, l := range f.Links {
		if l.Text != "" && l.URL != "" {
			links = append(links, l)
		}
	}
	return links
}

// SocialLinks returns the populated social entries; the email address is
// returned as a mailto: link.
func (f FooterSettings) SocialLinks() []NavLink {
	links := make([]NavLink, 0, 4)
	if f.TwitterURL != "" {
		links = append(links, NavLink{Text: "Twitter", URL: f.TwitterURL})
	}
	if f.GitHubURL != "" {
		links = append(links, NavLink{Text: "GitHub", URL: f.GitHubURL})
	}
	if f.LinkedInURL != "" {
		links = append(links, NavLink{Text: "LinkedIn", URL: f.LinkedInURL})
	}
	if f.Email != "" {
		links = append(links, NavLink{Text: "Email", URL: "mailto:" + f.Email})
	}
	return links
}

// Copyright renders the copyright line, prefixing the year when enabled.
func (f FooterSettings) Copyright(year int) string {
	if f.ShowYear {
		return "© " + strconv.Itoa(year) + " " + f.CopyrightText
	}
	return "© " + f.CopyrightText
}

// SiteSettings holds site identity and contact fields used in metadata and
// the default footer text.
type SiteSettings struct {
	SiteName               string `json:"site_name"`
	Tagline                string `json:"tagline"`
	Description            string `json:"site_description"`
	ContactEmail           string `json:"contact_email"`
	ContactPhone           string `json:"contact_phone"`
	TwitterURL             string `json:"twitter_url"`
	LinkedInURL            string `json:"linkedin_url"`
	GitHubURL              string `json:"github_url"`
	FacebookURL            string `json:"facebook_url"`
	InstagramURL           string `json:"instagram_url"`
	DefaultMetaDescription string `json:"default_meta_description"`
	AnalyticsID            string `json:"google_analytics_id"`
	FooterText             string `json:"footer_text"`
	CopyrightText          string `json:"copyright_text"`
}

// DefaultSiteSettings returns the site defaults used when no row exists.
func DefaultSiteSettings() SiteSettings {
	return SiteSettings{SiteName: "My Site"}
}

// Validate checks the length contract on the default meta description.
func (s SiteSettings) Validate() error {
	var errs content.FieldErrors
	if utf8.RuneCountInString(s.DefaultMetaDescription) > 160 {
		errs.Add("default_meta_description", "default meta description must be 160 characters or less")
	}
	return errs.Err()
}
