package stats

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "stats.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.InitSalt(); err != nil {
		t.Fatalf("InitSalt: %v", err)
	}
	return s
}

func TestSaltPersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.db")

	first, err := NewStore(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := first.InitSalt(); err != nil {
		t.Fatalf("InitSalt: %v", err)
	}
	salt := first.salt
	if len(salt) != 64 {
		t.Errorf("salt length = %d, want 64 hex chars", len(salt))
	}
	first.Close()

	second, err := NewStore(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	if err := second.InitSalt(); err != nil {
		t.Fatalf("InitSalt after reopen: %v", err)
	}
	if second.salt != salt {
		t.Error("salt changed across reopens; visitor hashes would not be stable")
	}
}

func TestVisitorIDRotatesDaily(t *testing.T) {
	s := newTestStore(t)
	morning := time.Date(2025, 3, 7, 8, 0, 0, 0, time.UTC)
	evening := time.Date(2025, 3, 7, 22, 0, 0, 0, time.UTC)
	nextDay := time.Date(2025, 3, 8, 8, 0, 0, 0, time.UTC)

	id := s.VisitorID("203.0.113.9", chromeWindowsUA, morning)
	if len(id) != 16 {
		t.Errorf("id length = %d, want 16", len(id))
	}
	if got := s.VisitorID("203.0.113.9", chromeWindowsUA, evening); got != id {
		t.Error("same visitor on the same day should keep one id")
	}
	if got := s.VisitorID("203.0.113.9", chromeWindowsUA, nextDay); got == id {
		t.Error("id should rotate at midnight UTC")
	}
	if got := s.VisitorID("203.0.113.10", chromeWindowsUA, morning); got == id {
		t.Error("different IPs should not share an id")
	}
}

func TestHashIP(t *testing.T) {
	s := newTestStore(t)
	h := s.HashIP("203.0.113.9")
	if len(h) != 16 {
		t.Errorf("hash length = %d, want 16", len(h))
	}
	if h != s.HashIP("203.0.113.9") {
		t.Error("hash should be deterministic")
	}
	if h == s.HashIP("203.0.113.10") {
		t.Error("different IPs should hash differently")
	}
}

func TestRecordSeparatesBotsFromHumans(t *testing.T) {
	s := newTestStore(t)
	firefoxUA := "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0"

	if err := s.Record("/blog/", "https://www.google.com/search", "203.0.113.9", chromeWindowsUA); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := s.Record("/blog/", "", "203.0.113.9", chromeWindowsUA); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := s.Record("/about/", "", "203.0.113.10", firefoxUA); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := s.Record("/blog/", "", "198.51.100.7", googlebotUA); err != nil {
		t.Fatalf("Record bot: %v", err)
	}

	now := time.Now().UTC()
	sum, err := s.Summary(now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.TotalViews != 3 {
		t.Errorf("TotalViews = %d, want 3 (bot visit must not count)", sum.TotalViews)
	}
	if sum.UniqueVisitors != 2 {
		t.Errorf("UniqueVisitors = %d, want 2", sum.UniqueVisitors)
	}
	if len(sum.TopPages) == 0 || sum.TopPages[0].Path != "/blog/" || sum.TopPages[0].Views != 2 {
		t.Errorf("TopPages = %+v, want /blog/ with 2 views first", sum.TopPages)
	}
	if len(sum.Browsers) == 0 || sum.Browsers[0].Name != "Chrome" || sum.Browsers[0].Count != 2 {
		t.Errorf("Browsers = %+v, want Chrome with 2 first", sum.Browsers)
	}
	if len(sum.Referrers) == 0 || sum.Referrers[0].Name != "Direct" || sum.Referrers[0].Count != 2 {
		t.Errorf("Referrers = %+v, want Direct with 2 first", sum.Referrers)
	}
	if len(sum.Daily) != 1 || sum.Daily[0].Views != 3 {
		t.Errorf("Daily = %+v, want one day with 3 views", sum.Daily)
	}

	bots, err := s.BotSummary(now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("BotSummary: %v", err)
	}
	if bots.TotalVisits != 1 {
		t.Errorf("TotalVisits = %d, want 1", bots.TotalVisits)
	}
	if len(bots.TopBots) != 1 || bots.TopBots[0].Name != "Googlebot" {
		t.Errorf("TopBots = %+v, want Googlebot", bots.TopBots)
	}
	if len(bots.TopPages) != 1 || bots.TopPages[0].Path != "/blog/" {
		t.Errorf("TopPages = %+v, want /blog/", bots.TopPages)
	}
}

func TestSummaryOutsidePeriodIsEmpty(t *testing.T) {
	s := newTestStore(t)
	if err := s.Record("/blog/", "", "203.0.113.9", chromeWindowsUA); err != nil {
		t.Fatalf("Record: %v", err)
	}

	from := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2020, 2, 1, 0, 0, 0, 0, time.UTC)
	sum, err := s.Summary(from, to)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.TotalViews != 0 || sum.UniqueVisitors != 0 {
		t.Errorf("got %d views / %d visitors, want 0 / 0", sum.TotalViews, sum.UniqueVisitors)
	}
	// Empty aggregates stay as empty slices so the JSON payload never
	// carries nulls.
	if sum.TopPages == nil || sum.Browsers == nil || sum.Daily == nil {
		t.Error("empty summary should carry empty slices, not nil")
	}
	if sum.Period != "2020-01-01 to 2020-02-01" {
		t.Errorf("Period = %q", sum.Period)
	}
}

func TestRealtimeVisitors(t *testing.T) {
	s := newTestStore(t)
	if err := s.Record("/", "", "203.0.113.9", chromeWindowsUA); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := s.Record("/blog/", "", "203.0.113.9", chromeWindowsUA); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := s.Record("/", "", "203.0.113.10", chromeWindowsUA); err != nil {
		t.Fatalf("Record: %v", err)
	}

	n, err := s.RealtimeVisitors()
	if err != nil {
		t.Fatalf("RealtimeVisitors: %v", err)
	}
	if n != 2 {
		t.Errorf("RealtimeVisitors = %d, want 2", n)
	}
}

func TestCleanupOldVisits(t *testing.T) {
	s := newTestStore(t)
	old := time.Now().UTC().AddDate(0, 0, -400).Format(timeLayout)
	_, err := s.db.Exec(`INSERT INTO visits (visitor_id, ip_hash, browser, os, device, path, referrer, timestamp)
		VALUES ('stale', 'h', 'Chrome', 'Linux', 'Desktop', '/old/', 'Direct', ?)`, old)
	if err != nil {
		t.Fatalf("insert old visit: %v", err)
	}
	_, err = s.db.Exec(`INSERT INTO bot_visits (bot_name, ip_hash, user_agent, path, timestamp)
		VALUES ('Googlebot', 'h', 'ua', '/old/', ?)`, old)
	if err != nil {
		t.Fatalf("insert old bot visit: %v", err)
	}
	if err := s.Record("/fresh/", "", "203.0.113.9", chromeWindowsUA); err != nil {
		t.Fatalf("Record: %v", err)
	}

	if err := s.CleanupOldVisits(365); err != nil {
		t.Fatalf("CleanupOldVisits: %v", err)
	}

	wideFrom := time.Now().UTC().AddDate(-2, 0, 0)
	wideTo := time.Now().UTC().Add(time.Hour)
	sum, err := s.Summary(wideFrom, wideTo)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.TotalViews != 1 {
		t.Errorf("TotalViews = %d, want 1 (stale visit should be gone)", sum.TotalViews)
	}
	bots, err := s.BotSummary(wideFrom, wideTo)
	if err != nil {
		t.Fatalf("BotSummary: %v", err)
	}
	if bots.TotalVisits != 0 {
		t.Errorf("TotalVisits = %d, want 0 (stale bot visit should be gone)", bots.TotalVisits)
	}
}

func TestGetSettingMissingKey(t *testing.T) {
	s := newTestStore(t)
	v, err := s.GetSetting("never_set")
	if err != nil {
		t.Fatalf("GetSetting: %v", err)
	}
	if v != "" {
		t.Errorf("GetSetting = %q, want empty", v)
	}
}
