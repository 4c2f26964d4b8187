package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	_ "github.com/go-playground/validator"
	"github.com/labstack/echo/v4"

	"github.com/yt110010111/market-analysis-LLM/internal/queue"
	"github.com/yt110010111/market-analysis-LLM/internal/server/middleware"
	"github.com/yt110010111/market-analysis-LLM/internal/storage"
	"github.com/yt110010111/market-analysis-LLM/internal/util"
	"github.com/yt110010111/market-analysis-LLM/pkg/logger"
	"github.com/yt110010111/market-analysis-LLM/pkg/research"
)

type analyzeBody struct {
	Query string `json:"query" validate:"required,max=500"`
}

// AnalyzeHandler runs a research session inside the request and answers
// with the full result. Failed sessions still answer 200 with a fallback
// report; callers branch on the status field. The result is archived under
// its session id.
func AnalyzeHandler(c echo.Context) error {
	data := new(analyzeBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	res := app.Research.Run(ctx, data.Query)

	now := time.Now()
	job := storage.Job{
		ID:        res.SessionID,
		Query:     res.Query,
		Status:    storage.JobDone,
		Attempts:  1,
		Result:    &res,
		CreatedAt: res.StartedAt,
		UpdatedAt: now,
	}
	if res.Status == research.StatusError {
		job.Status = storage.JobFailed
		job.Error = res.Error
	}
	if err := app.Archive.Put(context.WithoutCancel(ctx), job); err != nil {
		logger.Warn("[Server] Failed to archive result", "session", res.SessionID, "err", err)
	}

	return c.JSON(http.StatusOK, res)
}

// AnalyzeAsyncHandler queues a research job and answers with its id. The
// report is fetched later from GET /api/reports/:id.
func AnalyzeAsyncHandler(c echo.Context) error {
	type analyzeAsyncResponse struct {
		JobID  string            `json:"job_id"`
		Status storage.JobStatus `json:"status"`
	}

	data := new(analyzeBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	ac := c.(*middleware.AppContext)
	app := ac.App
	if app.Queue == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Async analysis is not available"})
	}

	ctx := c.Request().Context()
	now := time.Now()
	job := storage.Job{
		ID:        util.NewID("job"),
		Query:     data.Query,
		Status:    storage.JobPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := app.Archive.Put(ctx, job); err != nil {
		logger.Error("[Server] Failed to create job", "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	msg, err := json.Marshal(queue.ResearchJobMsg{
		JobID:       job.ID,
		Query:       job.Query,
		RequestedBy: ac.User.UserID,
		RequestedAt: now,
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
	if err := queue.PublishFIFO(app.Queue, queue.ResearchQueue, msg); err != nil {
		logger.Error("[Server] Failed to queue job", "job", job.ID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	return c.JSON(http.StatusAccepted, analyzeAsyncResponse{JobID: job.ID, Status: job.Status})
}
