package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/yt110010111/market-analysis-LLM/internal/server/middleware"
)

// HealthHandler reports the service and graph store state.
func HealthHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App
	stats, err := app.Store.Stats(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]any{"status": "degraded", "store": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status":        "ok",
		"entities":      stats.Entities,
		"relationships": stats.Relationships,
		"queries":       stats.Queries,
		"async":         app.Queue != nil,
	})
}
