package stats

import (
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339

// Store persists visits in its own SQLite database, kept separate from the
// content database so analytics writes never contend with page loads.
type Store struct {
	db  *sql.DB
	log zerolog.Logger

	saltOnce sync.Once
	salt     string
}

// NewStore opens (creating if necessary) the stats database at path.
func NewStore(path string, log zerolog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create stats db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open stats db: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	s := &Store{db: db, log: log}
	if err := s.ensureSchema(); err != nil {
		return nil, fmt.Errorf("ensure stats schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS visits (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			visitor_id TEXT NOT NULL,
			ip_hash TEXT NOT NULL,
			browser TEXT NOT NULL,
			os TEXT NOT NULL,
			device TEXT NOT NULL,
			path TEXT NOT NULL,
			referrer TEXT NOT NULL DEFAULT '',
			timestamp TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS bot_visits (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			bot_name TEXT NOT NULL,
			ip_hash TEXT NOT NULL,
			user_agent TEXT NOT NULL,
			path TEXT NOT NULL,
			timestamp TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_visits_timestamp ON visits(timestamp);
		CREATE INDEX IF NOT EXISTS idx_visits_visitor_id ON visits(visitor_id);
		CREATE INDEX IF NOT EXISTS idx_visits_path ON visits(path);
		CREATE INDEX IF NOT EXISTS idx_bot_visits_timestamp ON bot_visits(timestamp);
		CREATE INDEX IF NOT EXISTS idx_bot_visits_name ON bot_visits(bot_name);

		CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	return err
}

// GetSetting retrieves a setting value by key, empty string if not found.
func (s *Store) GetSetting(key string) (string, error) {
	var val string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&val)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return val, err
}

// SetSetting stores a setting value by key.
func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(`INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// InitSalt loads or generates the persistent salt for visitor hashing.
// Call once at startup before any requests are recorded.
func (s *Store) InitSalt() error {
	var initErr error
	s.saltOnce.Do(func() {
		salt, err := s.GetSetting("hash_salt")
		if err != nil {
			initErr = fmt.Errorf("read hash salt: %w", err)
			return
		}
		if salt == "" {
			b := make([]byte, 32)
			if _, err := rand.Read(b); err != nil {
				initErr = fmt.Errorf("generate salt: %w", err)
				return
			}
			salt = hex.EncodeToString(b)
			if err := s.SetSetting("hash_salt", salt); err != nil {
				initErr = fmt.Errorf("store hash salt: %w", err)
				return
			}
		}
		s.salt = salt
	})
	return initErr
}

// HashIP returns a salted SHA-256 hash of an IP address.
func (s *Store) HashIP(ip string) string {
	h := sha256.New()
	h.Write([]byte(s.salt + ip))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// VisitorID derives an anonymous visitor identifier from IP and User-Agent.
// The day is part of the hash, so the identifier rotates at midnight UTC
// and visitors cannot be followed across days.
func (s *Store) VisitorID(ip, userAgent string, day time.Time) string {
	h := sha256.New()
	h.Write([]byte(s.salt + day.UTC().Format("2006-01-02") + "|" + ip + "|" + userAgent))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Record stores one page view. Bot traffic goes to its own table.
func (s *Store) Record(path, referrer, ip, userAgent string) error {
	now := time.Now().UTC()
	if IsBot(userAgent) {
		_, err := s.db.Exec(`INSERT INTO bot_visits (bot_name, ip_hash, user_agent, path, timestamp)
			VALUES (?, ?, ?, ?, ?)`,
			ExtractBotName(userAgent), s.HashIP(ip), userAgent, path, now.Format(timeLayout))
		return err
	}
	browser, osName, device := ParseUserAgent(userAgent)
	_, err := s.db.Exec(`INSERT INTO visits (visitor_id, ip_hash, browser, os, device, path, referrer, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.VisitorID(ip, userAgent, now), s.HashIP(ip), browser, osName, device,
		path, CleanReferrer(referrer), now.Format(timeLayout))
	return err
}

// Summary aggregates human visits in [from, to).
func (s *Store) Summary(from, to time.Time) (*Summary, error) {
	lo, hi := from.UTC().Format(timeLayout), to.UTC().Format(timeLayout)
	sum := &Summary{
		Period:    from.Format("2006-01-02") + " to " + to.Format("2006-01-02"),
		TopPages:  []PageStat{},
		Browsers:  []DimensionStat{},
		Systems:   []DimensionStat{},
		Devices:   []DimensionStat{},
		Referrers: []DimensionStat{},
		Daily:     []DailyCount{},
	}

	err := s.db.QueryRow(`SELECT COUNT(*) FROM visits
		WHERE timestamp >= ? AND timestamp < ?`, lo, hi).Scan(&sum.TotalViews)
	if err != nil {
		return nil, fmt.Errorf("count views: %w", err)
	}
	err = s.db.QueryRow(`SELECT COUNT(DISTINCT visitor_id) FROM visits
		WHERE timestamp >= ? AND timestamp < ?`, lo, hi).Scan(&sum.UniqueVisitors)
	if err != nil {
		return nil, fmt.Errorf("count unique visitors: %w", err)
	}

	if sum.TopPages, err = s.pageStats(`SELECT path, COUNT(*) AS views FROM visits
		WHERE timestamp >= ? AND timestamp < ?
		GROUP BY path ORDER BY views DESC LIMIT 10`, lo, hi); err != nil {
		return nil, fmt.Errorf("top pages: %w", err)
	}
	if sum.Browsers, err = s.dimensionStats("browser", lo, hi); err != nil {
		return nil, fmt.Errorf("browser stats: %w", err)
	}
	if sum.Systems, err = s.dimensionStats("os", lo, hi); err != nil {
		return nil, fmt.Errorf("os stats: %w", err)
	}
	if sum.Devices, err = s.dimensionStats("device", lo, hi); err != nil {
		return nil, fmt.Errorf("device stats: %w", err)
	}
	if sum.Referrers, err = s.dimensionStats("referrer", lo, hi); err != nil {
		return nil, fmt.Errorf("referrer stats: %w", err)
	}
	if sum.Daily, err = s.dailyCounts("visits", lo, hi); err != nil {
		return nil, fmt.Errorf("daily views: %w", err)
	}

	return sum, nil
}

// BotSummary aggregates crawler visits in [from, to).
func (s *Store) BotSummary(from, to time.Time) (*BotSummary, error) {
	lo, hi := from.UTC().Format(timeLayout), to.UTC().Format(timeLayout)
	sum := &BotSummary{
		Period:   from.Format("2006-01-02") + " to " + to.Format("2006-01-02"),
		TopBots:  []DimensionStat{},
		TopPages: []PageStat{},
		Daily:    []DailyCount{},
	}

	err := s.db.QueryRow(`SELECT COUNT(*) FROM bot_visits
		WHERE timestamp >= ? AND timestamp < ?`, lo, hi).Scan(&sum.TotalVisits)
	if err != nil {
		return nil, fmt.Errorf("count bot visits: %w", err)
	}

	rows, err := s.db.Query(`SELECT bot_name, COUNT(*) AS count FROM bot_visits
		WHERE timestamp >= ? AND timestamp < ?
		GROUP BY bot_name ORDER BY count DESC LIMIT 10`, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("top bots: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var d DimensionStat
		if err := rows.Scan(&d.Name, &d.Count); err != nil {
			return nil, err
		}
		sum.TopBots = append(sum.TopBots, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if sum.TopPages, err = s.pageStats(`SELECT path, COUNT(*) AS views FROM bot_visits
		WHERE timestamp >= ? AND timestamp < ?
		GROUP BY path ORDER BY views DESC LIMIT 10`, lo, hi); err != nil {
		return nil, fmt.Errorf("top bot pages: %w", err)
	}
	if sum.Daily, err = s.dailyCounts("bot_visits", lo, hi); err != nil {
		return nil, fmt.Errorf("daily bot visits: %w", err)
	}

	return sum, nil
}

func (s *Store) pageStats(query, lo, hi string) ([]PageStat, error) {
	rows, err := s.db.Query(query, lo, hi)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	pages := []PageStat{}
	for rows.Next() {
		var p PageStat
		if err := rows.Scan(&p.Path, &p.Views); err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// dimensionStats aggregates one visits column. The column name is always a
// literal from this package, never caller input.
func (s *Store) dimensionStats(column, lo, hi string) ([]DimensionStat, error) {
	rows, err := s.db.Query(`SELECT `+column+`, COUNT(*) AS count FROM visits
		WHERE timestamp >= ? AND timestamp < ?
		GROUP BY `+column+` ORDER BY count DESC LIMIT 10`, lo, hi)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := []DimensionStat{}
	for rows.Next() {
		var d DimensionStat
		if err := rows.Scan(&d.Name, &d.Count); err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

func (s *Store) dailyCounts(table, lo, hi string) ([]DailyCount, error) {
	rows, err := s.db.Query(`SELECT substr(timestamp, 1, 10) AS day, COUNT(*) FROM `+table+`
		WHERE timestamp >= ? AND timestamp < ?
		GROUP BY day ORDER BY day`, lo, hi)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	days := []DailyCount{}
	for rows.Next() {
		var d DailyCount
		if err := rows.Scan(&d.Date, &d.Views); err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

// RealtimeVisitors returns the number of unique visitors in the last five
// minutes.
func (s *Store) RealtimeVisitors() (int, error) {
	cutoff := time.Now().UTC().Add(-5 * time.Minute).Format(timeLayout)
	var count int
	err := s.db.QueryRow(`SELECT COUNT(DISTINCT visitor_id) FROM visits
		WHERE timestamp >= ?`, cutoff).Scan(&count)
	return count, err
}

// CleanupOldVisits removes visits and bot visits older than retentionDays.
func (s *Store) CleanupOldVisits(retentionDays int) error {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).Format(timeLayout)
	if _, err := s.db.Exec(`DELETE FROM visits WHERE timestamp < ?`, cutoff); err != nil {
		return fmt.Errorf("cleanup visits: %w", err)
	}
	if _, err := s.db.Exec(`DELETE FROM bot_visits WHERE timestamp < ?`, cutoff); err != nil {
		return fmt.Errorf("cleanup bot_visits: %w", err)
	}
	return nil
}

// StartRetentionSweep deletes data past the retention window on a timer.
// The returned function stops the sweep.
func (s *Store) StartRetentionSweep(retentionDays int, interval time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := s.CleanupOldVisits(retentionDays); err != nil {
					s.log.Error().Err(err).Msg("stats retention sweep failed")
				}
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() { close(done) }
}
