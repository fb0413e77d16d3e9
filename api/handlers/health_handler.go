package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/ytgrab-go/internal/app"
)

// RootMessage is returned by the liveness endpoint
const RootMessage = "YouTube Downloader API is running! 🚀"

// HealthHandler handles health check requests
type HealthHandler struct {
	service *app.DownloadService
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(service *app.DownloadService) *HealthHandler {
	return &HealthHandler{
		service: service,
	}
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Jobs    int    `json:"jobs"`
	History bool   `json:"history"`
}

// Root handles GET /
func (h *HealthHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": RootMessage})
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Jobs:    h.service.CountJobs(),
		History: h.service.HistoryEnabled(),
	})
}
