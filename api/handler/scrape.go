package handler

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/shelfscan/crawler"
	"github.com/use-agent/shelfscan/jobs"
	"github.com/use-agent/shelfscan/models"
	"github.com/use-agent/shelfscan/run"
	"github.com/use-agent/shelfscan/webhook"
)

// Runner is the part of run.Runner the handlers need.
type Runner interface {
	Prepare(in run.Input) (*run.Plan, error)
	Execute(ctx context.Context, plan *run.Plan, progress crawler.ProgressFunc) (*run.Result, error)
}

// PostScrape returns a handler for POST /api/v1/scrape.
//
// Input is validated synchronously so bad URLs and unreadable uploads get a
// 400. The crawl itself runs in the background; poll GET /scrape/:id.
func PostScrape(runner Runner, store *jobs.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ScrapeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput, err.Error(), err))
			return
		}
		req.Defaults()

		in := run.Input{
			URL:           req.URL,
			MaxProducts:   req.MaxProducts,
			MaxPages:      req.MaxPages,
			UseBrowser:    req.UseBrowser,
			Headless:      *req.Headless,
			DisableImages: *req.DisableImages,
			Format:        req.Format,
		}
		if req.Upload != nil {
			data, err := base64.StdEncoding.DecodeString(req.Upload.ContentBase64)
			if err != nil {
				respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput, "upload is not valid base64", err))
				return
			}
			in.UploadName = req.Upload.Name
			in.UploadData = data
		}

		plan, err := runner.Prepare(in)
		if err != nil {
			respondError(c, err)
			return
		}

		job, err := store.Create(req.WebhookURL, req.WebhookSecret)
		if err != nil {
			if errors.Is(err, jobs.ErrBusy) {
				err = models.NewScrapeError(models.ErrCodeBusy, "too many scrape jobs running, retry later", err)
			}
			respondError(c, err)
			return
		}

		slog.Info("scrape job started", "id", job.ID, "url", plan.Source.BaseURL, "use_browser", plan.Source.UseBrowser)
		go execute(runner, plan, job)

		c.JSON(http.StatusAccepted, models.ScrapeResponse{ID: job.ID, Status: models.StatusProcessing})
	}
}

// execute runs one job to completion and fires its webhook.
func execute(runner Runner, plan *run.Plan, job *jobs.Job) {
	res, err := runner.Execute(context.Background(), plan, job.SetProgress)
	job.Finish(res, err)

	snap := job.Snapshot()
	if err != nil {
		slog.Error("scrape job failed", "id", job.ID, "error", err)
	} else {
		slog.Info("scrape job finished", "id", job.ID, "status", snap.Status, "rows", snap.NewRows)
	}

	if job.WebhookURL == "" {
		return
	}
	eventType := webhook.EventCompleted
	switch snap.Status {
	case models.StatusEmpty:
		eventType = webhook.EventEmpty
	case models.StatusFailed:
		eventType = webhook.EventFailed
	}
	webhook.DeliverAsync(job.WebhookURL, job.WebhookSecret, &webhook.Event{
		Type:      eventType,
		JobID:     job.ID,
		Timestamp: time.Now().Unix(),
		Data:      snap,
	})
}

// GetScrape returns a handler for GET /api/v1/scrape/:id.
func GetScrape(store *jobs.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, ok := store.Get(c.Param("id"))
		if !ok {
			respondError(c, models.NewScrapeError(models.ErrCodeNotFound, "scrape job not found", nil))
			return
		}
		c.JSON(http.StatusOK, job.Snapshot())
	}
}

// GetExport returns a handler for GET /api/v1/scrape/:id/export.
//
// The file is returned base64-encoded in JSON, or as a raw attachment
// with ?download=1.
func GetExport(store *jobs.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, ok := store.Get(c.Param("id"))
		if !ok {
			respondError(c, models.NewScrapeError(models.ErrCodeNotFound, "scrape job not found", nil))
			return
		}
		if !job.Done() {
			respondError(c, models.NewScrapeError(models.ErrCodeNotFound, "scrape job is still processing", nil))
			return
		}
		res, err := job.Result()
		if err != nil {
			respondError(c, err)
			return
		}
		if res == nil || res.Export == nil {
			respondError(c, models.NewScrapeError(models.ErrCodeEmptyResult, models.EmptyResultGuidance, nil))
			return
		}

		exp := res.Export
		if c.Query("download") == "1" {
			c.Header("Content-Disposition", `attachment; filename="`+exp.Filename+`"`)
			c.Data(http.StatusOK, exp.MimeType(), exp.Data)
			return
		}
		c.JSON(http.StatusOK, models.ExportResponse{
			Filename:      exp.Filename,
			MimeType:      exp.MimeType(),
			ContentBase64: exp.Base64(),
		})
	}
}

// respondError maps an error to its HTTP status and writes a structured
// JSON error response.
func respondError(c *gin.Context, err error) {
	detail := models.DetailOf(err)
	c.JSON(mapErrorToStatus(detail.Code), models.ErrorResponse{Success: false, Error: detail})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(code string) int {
	switch code {
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeNavigation, models.ErrCodeFetch:
		return http.StatusBadGateway // 502
	case models.ErrCodeSetup:
		return http.StatusServiceUnavailable // 503
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeNotFound:
		return http.StatusNotFound // 404
	case models.ErrCodeEmptyResult:
		return http.StatusConflict // 409
	case models.ErrCodeRateLimited, models.ErrCodeBusy:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	default:
		return http.StatusInternalServerError // 500
	}
}
