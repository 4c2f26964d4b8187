package server

import (
	"github.com/labstack/echo/v4"

	"github.com/yt110010111/market-analysis-LLM/internal/server/middleware"
	"github.com/yt110010111/market-analysis-LLM/internal/server/routes"
)

func RegisterRoutes(e *echo.Echo) {
	e.GET("/health", routes.HealthHandler)

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Research routes
	apiRoutes.POST("/analyze", routes.AnalyzeHandler, middleware.RequirePermission("research.run"))
	apiRoutes.POST("/analyze/async", routes.AnalyzeAsyncHandler, middleware.RequirePermission("research.run"))
	apiRoutes.GET("/reports/:id", routes.GetReportHandler, middleware.RequireAnyPermission("research.view", "research.run"))

	// Knowledge graph routes
	apiRoutes.GET("/graph", routes.GetGraphHandler, middleware.RequirePermission("graph.view"))
}
