// Package stats provides privacy-first, first-party visit counting.
//
// No cookies and no raw IPs are stored: visitors are identified by a salted
// hash of IP and User-Agent that rotates daily, so visitors cannot be
// tracked across days or correlated with server logs. Bot traffic is kept
// in a separate table so human metrics stay clean.
package stats

import (
	"regexp"
	"strings"
	"time"
)

// Visit is one recorded human page view.
type Visit struct {
	ID        int64     `json:"-"`
	VisitorID string    `json:"visitor_id"`
	IPHash    string    `json:"-"`
	Browser   string    `json:"browser"`
	OS        string    `json:"os"`
	Device    string    `json:"device"`
	Path      string    `json:"path"`
	Referrer  string    `json:"referrer"`
	Timestamp time.Time `json:"timestamp"`
}

// BotVisit is one recorded crawler page view.
type BotVisit struct {
	ID        int64     `json:"-"`
	BotName   string    `json:"bot_name"`
	IPHash    string    `json:"-"`
	UserAgent string    `json:"user_agent"`
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
}

// Summary holds aggregated visit data for a period.
type Summary struct {
	Period         string          `json:"period"`
	TotalViews     int             `json:"total_views"`
	UniqueVisitors int             `json:"unique_visitors"`
	TopPages       []PageStat      `json:"top_pages"`
	Browsers       []DimensionStat `json:"browsers"`
	Systems        []DimensionStat `json:"os"`
	Devices        []DimensionStat `json:"devices"`
	Referrers      []DimensionStat `json:"referrers"`
	Daily          []DailyCount    `json:"daily_views"`
}

// BotSummary holds aggregated crawler data for a period.
type BotSummary struct {
	Period      string          `json:"period"`
	TotalVisits int             `json:"total_visits"`
	TopBots     []DimensionStat `json:"top_bots"`
	TopPages    []PageStat      `json:"top_pages"`
	Daily       []DailyCount    `json:"daily_visits"`
}

// PageStat is a per-path view count.
type PageStat struct {
	Path  string `json:"path"`
	Views int    `json:"views"`
}

// DimensionStat is a count for one value of a dimension (browser, OS, ...).
type DimensionStat struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// DailyCount is the view count for one calendar day.
type DailyCount struct {
	Date  string `json:"date"`
	Views int    `json:"views"`
}

// ParseUserAgent extracts browser, OS, and device from a User-Agent string.
func ParseUserAgent(ua string) (browser, os, device string) {
	ua = strings.ToLower(ua)

	// Order matters: more specific patterns before generic ones.
	switch {
	case strings.Contains(ua, "firefox"):
		browser = "Firefox"
	case strings.Contains(ua, "opera") || strings.Contains(ua, "opr"):
		browser = "Opera"
	case strings.Contains(ua, "edg"):
		browser = "Edge"
	case strings.Contains(ua, "chrome"):
		browser = "Chrome"
	case strings.Contains(ua, "safari"):
		browser = "Safari"
	default:
		browser = "Other"
	}

	// Android before Linux since Android UAs contain "linux".
	switch {
	case strings.Contains(ua, "windows"):
		os = "Windows"
	case strings.Contains(ua, "android"):
		os = "Android"
	case strings.Contains(ua, "iphone") || strings.Contains(ua, "ipad"):
		os = "iOS"
	case strings.Contains(ua, "macintosh") || strings.Contains(ua, "mac os"):
		os = "macOS"
	case strings.Contains(ua, "linux"):
		os = "Linux"
	default:
		os = "Other"
	}

	// iPad UAs contain "mobile", so check tablet first.
	switch {
	case strings.Contains(ua, "tablet") || strings.Contains(ua, "ipad"):
		device = "Tablet"
	case strings.Contains(ua, "mobile"):
		device = "Mobile"
	default:
		device = "Desktop"
	}

	return
}

// IsBot checks if the User-Agent is likely a bot or crawler.
func IsBot(ua string) bool {
	ua = strings.ToLower(ua)
	bots := []string{
		"bot", "crawler", "spider", "crawl", "slurp", "scrape",
		"googlebot", "bingbot", "yandex", "baidu", "duckduckbot",
		"facebookexternalhit", "twitterbot", "linkedinbot",
		"ahrefsbot", "semrushbot", "mj12bot", "dotbot",
	}
	for _, bot := range bots {
		if strings.Contains(ua, bot) {
			return true
		}
	}
	return false
}

// ExtractBotName extracts a display name for a bot from its User-Agent.
func ExtractBotName(ua string) string {
	ua = strings.ToLower(ua)

	botPatterns := map[string]string{
		"googlebot":           "Googlebot",
		"bingbot":             "Bingbot",
		"yandex":              "Yandex",
		"baidu":               "Baidu",
		"duckduckbot":         "DuckDuckBot",
		"facebookexternalhit": "Facebook",
		"twitterbot":          "Twitterbot",
		"linkedinbot":         "LinkedIn",
		"ahrefsbot":           "Ahrefs",
		"semrushbot":          "SEMrush",
		"mj12bot":             "Majestic",
		"dotbot":              "Moz",
		"slurp":               "Yahoo Slurp",
		"crawler":             "Generic Crawler",
		"spider":              "Generic Spider",
	}
	for pattern, name := range botPatterns {
		if strings.Contains(ua, pattern) {
			return name
		}
	}
	if strings.Contains(ua, "bot") {
		return "Other Bot"
	}
	return "Unknown"
}

var referrerDomainRegex = regexp.MustCompile(`^https?://(?:www\.)?([^/]+)`)

// CleanReferrer reduces a referrer URL to its domain, naming the common
// search engines. An empty referrer is a direct visit.
func CleanReferrer(ref string) string {
	if ref == "" {
		return "Direct"
	}

	refLower := strings.ToLower(ref)
	switch {
	case strings.Contains(refLower, "google."):
		return "Google"
	case strings.Contains(refLower, "bing."):
		return "Bing"
	case strings.Contains(refLower, "duckduckgo."):
		return "DuckDuckGo"
	case strings.Contains(refLower, "yahoo."):
		return "Yahoo"
	case strings.Contains(refLower, "github."):
		return "GitHub"
	}

	if m := referrerDomainRegex.FindStringSubmatch(ref); len(m) > 1 {
		return m[1]
	}
	return "Other"
}
