package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"scribe/internal/blobstore"
	"scribe/internal/config"
	"scribe/internal/logging"
	"scribe/internal/services"
	"scribe/internal/tracker"
	"scribe/internal/workflow"
)

const requestIDHeader = "X-Request-ID"

// Handler serves the job endpoints.
type Handler struct {
	runner *workflow.Runner
	cfg    *config.Config
	logger *slog.Logger
	jobs   *registry

	// base outlives individual requests; background jobs run under it.
	base context.Context
	wg   sync.WaitGroup
}

// NewHandler constructs a Handler. Background jobs stop when ctx is cancelled.
func NewHandler(ctx context.Context, runner *workflow.Runner, cfg *config.Config, logger *slog.Logger) *Handler {
	return &Handler{
		runner: runner,
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "httpapi"),
		jobs:   newRegistry(),
		base:   ctx,
	}
}

// RegisterRoutes attaches the job endpoints to group.
func (h *Handler) RegisterRoutes(group gin.IRoutes) {
	group.POST("", h.createFromUpload)
	group.POST("/ref/*ref", h.createFromRef)
	group.GET("", h.listJobs)
	group.GET("/:id", h.getJob)
}

// Wait blocks until every background job has returned.
func (h *Handler) Wait() {
	h.wg.Wait()
}

func (h *Handler) createFromUpload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, fmt.Errorf("multipart field \"file\" is required: %w", err))
		return
	}
	if limit := int64(h.cfg.API.MaxUploadMiB) << 20; limit > 0 && header.Size > limit {
		respondError(c, http.StatusRequestEntityTooLarge, fmt.Errorf("upload is %d bytes, limit is %d MiB", header.Size, h.cfg.API.MaxUploadMiB))
		return
	}
	quality := c.DefaultPostForm("quality", h.cfg.Transcription.Quality)
	compute := c.DefaultPostForm("compute", h.cfg.Transcription.Compute)

	staged := filepath.Join(h.cfg.Paths.AudioDir, "upload-"+uuid.NewString()+strings.ToLower(filepath.Ext(header.Filename)))
	if err := c.SaveUploadedFile(header, staged); err != nil {
		respondError(c, http.StatusInternalServerError, fmt.Errorf("store upload: %w", err))
		return
	}

	source := tracker.UploadSource(header.Filename, staged, header.Size)
	job, err := h.runner.BeginJobWithSettings(c.Request.Context(), source, quality, compute)
	if err != nil {
		_ = os.Remove(staged)
		h.handleError(c, err)
		return
	}
	h.start(c, job, staged)
}

func (h *Handler) createFromRef(c *gin.Context) {
	ref := strings.TrimPrefix(c.Param("ref"), "/")
	if ref == "" {
		respondError(c, http.StatusBadRequest, errors.New("blob ref is required"))
		return
	}
	job, err := h.runner.BeginJob(c.Request.Context(), tracker.ExternalSource(ref))
	if err != nil {
		h.handleError(c, err)
		return
	}
	h.start(c, job, "")
}

func (h *Handler) start(c *gin.Context, job *workflow.Job, staged string) {
	h.jobs.add(job)
	ctx := services.WithRequestID(h.base, c.GetString(requestIDHeader))
	ctx = services.WithJobID(ctx, job.ID)

	h.wg.Go(func() {
		record, err := h.runner.Run(ctx, job)
		if staged != "" && record.LocalAudioPath != staged {
			if rmErr := os.Remove(staged); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				h.logger.Debug("failed to remove staged upload", logging.Error(rmErr))
			}
		}
		h.jobs.finish(job.ID, err)
		logger := logging.WithContext(ctx, h.logger)
		if err != nil {
			logger.Warn("background job stopped",
				logging.Status(record.Status),
				logging.Error(err),
			)
			return
		}
		logger.Info("background job finished", logging.Status(record.Status))
	})

	entry, _ := h.jobs.get(job.ID)
	c.JSON(http.StatusAccepted, newJobItem(entry))
}

func (h *Handler) getJob(c *gin.Context) {
	entry, ok := h.jobs.get(c.Param("id"))
	if !ok {
		respondError(c, http.StatusNotFound, errors.New("job not found"))
		return
	}
	c.JSON(http.StatusOK, newJobItem(entry))
}

func (h *Handler) listJobs(c *gin.Context) {
	c.JSON(http.StatusOK, newJobList(h.jobs.all()))
}

// handleError maps job creation failures to HTTP statuses.
func (h *Handler) handleError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, tracker.ErrInvalidSetting),
		errors.Is(err, tracker.ErrInvalidPath),
		errors.Is(err, tracker.ErrInvalidValue):
		status = http.StatusBadRequest
	case errors.Is(err, blobstore.ErrNotFound), errors.Is(err, blobstore.ErrInvalidRef):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrExternalSync):
		status = http.StatusBadGateway
	}
	if status >= http.StatusInternalServerError {
		logging.WithContext(c.Request.Context(), h.logger).Error("job creation failed",
			logging.Event("api_error"),
			logging.Error(err),
		)
	}
	respondError(c, status, err)
}

func respondError(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: err.Error()})
}
