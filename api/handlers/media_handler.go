package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yourusername/ytgrab-go/internal/app"
	"github.com/yourusername/ytgrab-go/internal/domain"
)

// MediaHandler serves metadata lookups
type MediaHandler struct {
	service *app.DownloadService
}

// NewMediaHandler creates a new media handler
func NewMediaHandler(service *app.DownloadService) *MediaHandler {
	return &MediaHandler{service: service}
}

// URLRequest is the body of the info endpoints
type URLRequest struct {
	URL string `json:"url"`
}

// VideoInfo handles POST /api/video-info
func (h *MediaHandler) VideoInfo(c *gin.Context) {
	var req URLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, &domain.ValidationError{Field: "body", Message: err.Error()})
		return
	}

	info, err := h.service.VideoInfo(c.Request.Context(), req.URL)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, info)
}

// PlaylistInfo handles POST /api/playlist-info
func (h *MediaHandler) PlaylistInfo(c *gin.Context) {
	var req URLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, &domain.ValidationError{Field: "body", Message: err.Error()})
		return
	}

	info, err := h.service.PlaylistInfo(c.Request.Context(), req.URL)
	if err != nil {
		respondError(c, err)
		return
	}
	respondData(c, info)
}
