// Package pagemill is a blog/CMS engine built with Go, Echo, and templ.
// It manages a page tree (a home page with blog posts and static pages as
// children) with revisions, tags, date archives, feeds, and site-wide
// settings, and serves it with SEO metadata and reading-time estimates.
//
// Users provide their own templ components via the ViewFuncs struct;
// pagemill handles routing, handlers, middleware, and storage.
package pagemill

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/pagemill/pagemill/stats"
)

// ViewFuncs holds user-provided templ components that the engine calls when
// rendering pages. This is the inversion-of-control mechanism that lets
// users own and customize all templates.
type ViewFuncs struct {
	Home      func(ctx HomeContext) templ.Component
	BlogIndex func(ctx ArchiveContext) templ.Component
	Archive   func(ctx ArchiveContext) templ.Component
	Post      func(ctx PostContext) templ.Component
	Page      func(ctx PageContext) templ.Component

	AdminLogin     func(showError bool, csrfToken string) templ.Component
	AdminDashboard func(ctx AdminDashboardContext) templ.Component
	AdminPostForm  func(ctx AdminPostFormContext) templ.Component
	AdminHomeForm  func(ctx AdminHomeFormContext) templ.Component
	AdminPageForm  func(ctx AdminPageFormContext) templ.Component
	AdminSettings  func(ctx AdminSettingsContext) templ.Component
	AdminRevisions func(ctx AdminRevisionsContext) templ.Component
	AdminImages    func(images []Image, csrfToken string) templ.Component

	NotFound    func() templ.Component
	ServerError func() templ.Component
}

// App is the central pagemill application. It wires together the store,
// query cache, handlers, middleware, and user-provided templates.
type App struct {
	Config SiteConfig
	Echo   *echo.Echo
	Store  *Store
	Cache  QueryCache
	Views  ViewFuncs
	Log    zerolog.Logger

	loginLimiter *RateLimiter
	statsStore   *stats.Store
	customRoutes []func(*App)
	staticDir    string
	logSet       bool
}

// New creates a pagemill App with the given configuration and view functions.
func New(cfg SiteConfig, views ViewFuncs, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config:    cfg,
		Echo:      echo.New(),
		Views:     views,
		staticDir: "public",
	}

	for _, opt := range opts {
		opt(a)
	}
	if !a.logSet {
		a.Log = newLogger(cfg)
	}

	return a
}

// Start initializes the database, cache, middleware, and routes, and starts
// the server. It blocks until the server exits.
func (a *App) Start() error {
	if a.Config.AdminPassword == "" {
		return fmt.Errorf("pagemill: AdminPassword is required")
	}
	if a.Config.SessionSecret == "" {
		return fmt.Errorf("pagemill: SessionSecret is required")
	}

	store, err := NewStore(a.Config.DatabasePath)
	if err != nil {
		return fmt.Errorf("pagemill: init store: %w", err)
	}
	a.Store = store

	// A fresh site gets a live default home page so it renders immediately.
	if _, err := a.Store.EnsureHomePage(a.Config.Name); err != nil {
		return fmt.Errorf("pagemill: ensure home page: %w", err)
	}

	if a.Cache == nil {
		switch a.Config.CacheBackend {
		case "redis":
			cache, err := NewRedisCache(a.Config.RedisAddr, a.Config.RedisPassword,
				a.Config.RedisDB, a.Config.CacheTTL, a.Log)
			if err != nil {
				return fmt.Errorf("pagemill: init cache: %w", err)
			}
			a.Cache = cache
		default:
			a.Cache = NewMemoryCache(a.Config.CacheTTL)
		}
	}

	a.loginLimiter = NewRateLimiter(5, time.Minute)

	if a.Config.StatsEnabled {
		statsStore, err := stats.NewStore(a.Config.StatsDatabasePath, a.Log)
		if err != nil {
			return fmt.Errorf("pagemill: init stats: %w", err)
		}
		a.statsStore = statsStore
		if err := statsStore.InitSalt(); err != nil {
			return fmt.Errorf("pagemill: init stats salt: %w", err)
		}
		stopSweep := statsStore.StartRetentionSweep(365, 24*time.Hour)
		defer stopSweep()
	}

	a.setupMiddleware()
	a.setupRoutes()

	for _, fn := range a.customRoutes {
		fn(a)
	}

	a.Log.Info().Str("addr", a.Config.Addr).Msg("starting server")
	if err := a.Echo.Start(a.Config.Addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (a *App) setupRoutes() {
	e := a.Echo

	// User's static assets
	e.Static("/public", a.staticDir)
	e.GET("/favicon.svg", a.handleFavicon)
	e.GET("/robots.txt", a.handleRobots)

	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)

	// Blog listing and archives
	e.GET("/blog/", a.handleBlogIndex)
	e.GET("/blog/author/:slug/", a.handleAuthorArchive)
	e.GET("/blog/tag/:slug/", a.handleTagArchive)

	// Date-based URLs; non-numeric components fall through to page serving
	e.GET("/:year/:month/:day/:slug/", a.handlePostDetail)
	e.GET("/:year/:month/:day/", a.handleDayArchive)
	e.GET("/:year/:month/", a.handleMonthArchive)
	e.GET("/:year/", a.handleYearArchive)

	e.GET("/", a.handleHome)
	e.GET("/*", a.handlePage)

	// Admin
	e.GET("/admin/", a.handleAdmin)
	e.POST("/admin/login/", a.handleAdminLogin)
	e.POST("/admin/logout/", handleAdminLogout)

	e.GET("/admin/posts/new/", a.handleAdminPostNew)
	e.GET("/admin/posts/:id/", a.handleAdminPostEdit)
	e.POST("/admin/posts/save/", a.handleAdminPostSave)

	e.GET("/admin/home/", a.handleAdminHomeEdit)
	e.POST("/admin/home/save/", a.handleAdminHomeSave)

	e.GET("/admin/pages/new/", a.handleAdminPageNew)
	e.GET("/admin/pages/:id/", a.handleAdminPageEdit)
	e.POST("/admin/pages/save/", a.handleAdminPageSave)

	e.POST("/admin/pages/:id/publish/", a.handleAdminPublish)
	e.POST("/admin/pages/:id/unpublish/", a.handleAdminUnpublish)
	e.POST("/admin/pages/:id/delete/", a.handleAdminDelete)
	e.GET("/admin/pages/:id/revisions/", a.handleAdminRevisions)

	e.GET("/admin/settings/", a.handleAdminSettings)
	e.POST("/admin/settings/header/", a.handleAdminSaveHeader)
	e.POST("/admin/settings/footer/", a.handleAdminSaveFooter)
	e.POST("/admin/settings/site/", a.handleAdminSaveSite)

	e.GET("/admin/images/", a.handleImageList)
	e.POST("/admin/images/upload/", a.handleImageUpload)
	e.POST("/admin/images/:filename/delete/", a.handleImageDelete)

	if a.Config.StatsEnabled && a.statsStore != nil {
		e.GET("/admin/stats/", a.handleAdminStats)
	}
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if a.Store != nil {
		a.Store.Close()
	}
	if a.Cache != nil {
		a.Cache.Close()
	}
	if a.loginLimiter != nil {
		a.loginLimiter.Stop()
	}
	if a.statsStore != nil {
		a.statsStore.Close()
	}
	return nil
}

// EnvOr returns the value of the environment variable key, or fallback if empty.
// This is a convenience function for use in scaffolded main.go files.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// MustEnv returns the value of the environment variable key, or fatally exits if empty.
func MustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("pagemill: required environment variable %s is not set", key)
	}
	return v
}
