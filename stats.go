package pagemill

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// statsMiddleware records successful GET page views after the handler runs.
// Recording failures are logged and never affect the response.
func (a *App) statsMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)
		if err != nil {
			return err
		}
		req := c.Request()
		if req.Method != http.MethodGet || c.Response().Status >= 400 {
			return nil
		}
		if !statsPath(req.URL.Path) || req.Header.Get("DNT") == "1" {
			return nil
		}
		if rerr := a.statsStore.Record(req.URL.Path, req.Referer(), c.RealIP(), req.UserAgent()); rerr != nil {
			a.Log.Error().Err(rerr).Str("path", req.URL.Path).Msg("record visit failed")
		}
		return nil
	}
}

// statsPath reports whether a path counts as a page view. Admin screens,
// assets, and machine endpoints are not audience traffic.
func statsPath(path string) bool {
	if strings.HasPrefix(path, "/admin") || strings.HasPrefix(path, "/public/") {
		return false
	}
	switch path {
	case "/favicon.svg", "/robots.txt", "/sitemap.xml", "/feed.xml":
		return false
	}
	return true
}

func (a *App) handleAdminStats(c echo.Context) error {
	if !IsAdmin(c) {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}

	days := statsPeriodDays(c.QueryParam("period"))
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -days)

	summary, err := a.statsStore.Summary(from, to)
	if err != nil {
		return err
	}
	bots, err := a.statsStore.BotSummary(from, to)
	if err != nil {
		return err
	}
	realtime, err := a.statsStore.RealtimeVisitors()
	if err != nil {
		a.Log.Error().Err(err).Msg("realtime visitors query failed")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"stats":             summary,
		"bots":              bots,
		"realtime_visitors": realtime,
		"period_days":       days,
	})
}

// statsPeriodDays maps the period query parameter to a day span, defaulting
// to the last 30 days.
func statsPeriodDays(period string) int {
	switch period {
	case "today":
		return 1
	case "week":
		return 7
	case "year":
		return 365
	default:
		return 30
	}
}
