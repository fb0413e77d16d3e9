package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/ytgrab-go/internal/app"
	"github.com/yourusername/ytgrab-go/internal/domain"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Success bool   `json:"success"`
	Detail  string `json:"detail"`
}

// statusForError maps a service error to an HTTP status and client message
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrJobNotFound), errors.Is(err, domain.ErrFileNotFound):
		return http.StatusNotFound, err.Error()
	case app.IsClientError(err):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "Internal server error: " + err.Error()
	}
}

// respondError writes err as a JSON error body
func respondError(c *gin.Context, err error) {
	status, detail := statusForError(err)
	_ = c.Error(err)
	c.JSON(status, ErrorResponse{Success: false, Detail: detail})
}

// respondData writes a successful response wrapping data
func respondData(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}
