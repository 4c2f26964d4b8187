package routes

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/yt110010111/market-analysis-LLM/internal/server/middleware"
	"github.com/yt110010111/market-analysis-LLM/pkg/common"
	"github.com/yt110010111/market-analysis-LLM/pkg/logger"
	"github.com/yt110010111/market-analysis-LLM/pkg/text"
)

// GetGraphHandler returns the stored subgraph matching the keywords of ?q=.
func GetGraphHandler(c echo.Context) error {
	type getGraphResponse struct {
		Query         string                `json:"query"`
		Keywords      []string              `json:"keywords"`
		Entities      []common.Entity       `json:"entities"`
		Relationships []common.Relationship `json:"relationships"`
	}

	q := strings.TrimSpace(c.QueryParam("q"))
	if q == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Missing query parameter q"})
	}

	keywords := text.Keywords(q, 0)
	if len(keywords) == 0 {
		keywords = []string{q}
	}

	app := c.(*middleware.AppContext).App
	sub, err := app.Store.QueryByKeywords(c.Request().Context(), keywords)
	if err != nil {
		logger.Error("[Server] Graph lookup failed", "query", q, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	res := getGraphResponse{
		Query:         q,
		Keywords:      keywords,
		Entities:      sub.Entities,
		Relationships: sub.Relationships,
	}
	if res.Entities == nil {
		res.Entities = []common.Entity{}
	}
	if res.Relationships == nil {
		res.Relationships = []common.Relationship{}
	}
	return c.JSON(http.StatusOK, res)
}
