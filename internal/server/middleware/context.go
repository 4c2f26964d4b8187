package middleware

import (
	"context"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/labstack/echo/v4"

	"github.com/yt110010111/market-analysis-LLM/internal/queue"
	"github.com/yt110010111/market-analysis-LLM/internal/storage"
	"github.com/yt110010111/market-analysis-LLM/pkg/research"
	"github.com/yt110010111/market-analysis-LLM/pkg/store"
)

type AppUser struct {
	UserID      string
	Role        string
	Permissions []string
}

// Researcher is satisfied by *research.Orchestrator.
type Researcher interface {
	Run(ctx context.Context, query string) research.Result
}

// App holds the request-independent collaborators. Queue and Key may be
// nil: without a queue async analysis is unavailable, and without a key
// only the master API key authenticates.
type App struct {
	Research     Researcher
	Store        store.GraphStore
	Archive      storage.Archive
	Queue        queue.Publisher
	Key          keyfunc.Keyfunc
	MasterAPIKey string
}

// AuthDisabled reports whether neither JWT nor master key auth is set up.
func (a *App) AuthDisabled() bool {
	return a.Key == nil && a.MasterAPIKey == ""
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return next(&AppContext{Context: c, App: app})
		}
	}
}
