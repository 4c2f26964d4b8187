package routes

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/yt110010111/market-analysis-LLM/internal/server/middleware"
	"github.com/yt110010111/market-analysis-LLM/internal/storage"
	"github.com/yt110010111/market-analysis-LLM/pkg/logger"
)

type reportLinker interface {
	Link(ctx context.Context, id string) (string, error)
}

// GetReportHandler returns an archived job. With ?format=markdown it
// returns only the report text once the job has a result, failed jobs
// included.
func GetReportHandler(c echo.Context) error {
	type getReportParams struct {
		ID     string `param:"id" validate:"required,max=64"`
		Format string `query:"format" validate:"omitempty,oneof=json markdown"`
	}
	type getReportResponse struct {
		storage.Job
		DownloadURL string `json:"download_url,omitempty"`
	}

	params := new(getReportParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request params"})
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	job, err := app.Archive.Get(ctx, params.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Report not found"})
	}
	if err != nil {
		logger.Error("[Server] Report lookup failed", "id", params.ID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}

	if params.Format == "markdown" {
		if job.Result == nil {
			return c.JSON(http.StatusConflict, map[string]string{"error": "Report not ready", "status": string(job.Status)})
		}
		return c.Blob(http.StatusOK, "text/markdown; charset=utf-8", []byte(job.Result.Report))
	}

	res := getReportResponse{Job: job}
	if linker, ok := app.Archive.(reportLinker); ok && job.Result != nil {
		if url, err := linker.Link(ctx, job.ID); err == nil {
			res.DownloadURL = url
		} else {
			logger.Warn("[Server] Failed to sign report link", "id", job.ID, "err", err)
		}
	}
	return c.JSON(http.StatusOK, res)
}
