package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/ytgrab-go/internal/app"
	"github.com/yourusername/ytgrab-go/internal/domain"
)

// DownloadHandler handles download-related HTTP requests
type DownloadHandler struct {
	service *app.DownloadService
	logger  *zap.Logger
}

// NewDownloadHandler creates a new download handler
func NewDownloadHandler(service *app.DownloadService, logger *zap.Logger) *DownloadHandler {
	return &DownloadHandler{
		service: service,
		logger:  logger,
	}
}

// StartDownloadRequest represents a request to start a download
type StartDownloadRequest struct {
	URL     string `json:"url"`
	Format  string `json:"format,omitempty"`
	Quality string `json:"quality,omitempty"`
}

// StartDownload handles POST /api/download
func (h *DownloadHandler) StartDownload(c *gin.Context) {
	var req StartDownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, &domain.ValidationError{Field: "body", Message: err.Error()})
		return
	}

	job, err := h.service.StartDownload(c.Request.Context(), app.StartDownloadRequest{
		URL:     req.URL,
		Format:  req.Format,
		Quality: req.Quality,
	})
	if err != nil {
		h.logger.Warn("Download rejected", zap.String("url", req.URL), zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"download_id": job.ID,
		"message":     "Download started successfully!",
	})
}

// GetStatus handles GET /api/download/:id/status
func (h *DownloadHandler) GetStatus(c *gin.Context) {
	job, err := h.service.GetJob(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, job)
}

// GetFile handles GET /api/download/:id/file
func (h *DownloadHandler) GetFile(c *gin.Context) {
	file, err := h.service.OpenFile(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.FileAttachment(file.Path, file.Name)
}

// ListDownloads handles GET /api/downloads
func (h *DownloadHandler) ListDownloads(c *gin.Context) {
	respondData(c, h.service.ListJobs())
}

// DeleteDownload handles DELETE /api/download/:id
func (h *DownloadHandler) DeleteDownload(c *gin.Context) {
	if err := h.service.DeleteJob(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Download deleted successfully",
	})
}

// History handles GET /api/history
func (h *DownloadHandler) History(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(c, &domain.ValidationError{Field: "limit", Message: "must be a non-negative integer"})
			return
		}
		limit = n
	}

	records, err := h.service.History(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to read history", zap.Error(err))
		respondError(c, err)
		return
	}
	respondData(c, records)
}
