package pagemill

import (
	"time"

	"github.com/rs/zerolog"
)

// SiteConfig holds all configuration for a pagemill site.
type SiteConfig struct {
	Name        string // Site name (default "Blog")
	URL         string // Canonical URL (default "http://localhost:3000")
	Description string // Site description for RSS and meta tags
	Author      string // Author name for JSON-LD

	Addr         string // Listen address (default ":3000")
	DatabasePath string // SQLite path (default "data/site.db")

	StatsEnabled      bool   // Enable page-view stats (default false)
	StatsDatabasePath string // Stats SQLite path (default "data/stats.db")

	AdminPassword string // Required: admin login password
	SessionSecret string // Required: session encryption secret
	CookieSecure  bool   // Set true for HTTPS

	CacheBackend  string        // "memory" (default) or "redis"
	RedisAddr     string        // Redis address (default "localhost:6379")
	RedisPassword string        // Redis password, optional
	RedisDB       int           // Redis database number
	CacheTTL      time.Duration // Query cache TTL (default 15min)

	Environment string // "development" enables console logging (default "production")
	LogLevel    string // zerolog level name (default "info")
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Blog"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/site.db"
	}
	if c.StatsDatabasePath == "" {
		c.StatsDatabasePath = "data/stats.db"
	}
	if c.CacheBackend == "" {
		c.CacheBackend = "memory"
	}
	if c.RedisAddr == "" {
		c.RedisAddr = "localhost:6379"
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = CacheTTL
	}
	if c.Environment == "" {
		c.Environment = "production"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App before the server starts.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithStaticDir sets the directory for user-owned static assets (default "public").
func WithStaticDir(dir string) Option {
	return func(a *App) {
		a.staticDir = dir
	}
}

// WithLogger replaces the logger built from SiteConfig.
func WithLogger(log zerolog.Logger) Option {
	return func(a *App) {
		a.Log = log
		a.logSet = true
	}
}

// WithCache replaces the query cache built from SiteConfig.
func WithCache(cache QueryCache) Option {
	return func(a *App) {
		a.Cache = cache
	}
}
