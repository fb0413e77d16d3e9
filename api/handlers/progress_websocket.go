package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/yourusername/ytgrab-go/internal/app"
	"github.com/yourusername/ytgrab-go/internal/domain"
)

const (
	defaultPollInterval = 500 * time.Millisecond
	writeWait           = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // origins are enforced by the CORS middleware
	},
}

// ProgressFrame is pushed to websocket clients
type ProgressFrame struct {
	ID      string      `json:"id"`
	Job     *domain.Job `json:"data,omitempty"`
	Deleted bool        `json:"deleted,omitempty"`
}

// ProgressWebSocketHandler streams job snapshots to websocket clients
type ProgressWebSocketHandler struct {
	service      *app.DownloadService
	logger       *zap.Logger
	pollInterval time.Duration
}

// NewProgressWebSocketHandler creates a new websocket handler
func NewProgressWebSocketHandler(service *app.DownloadService, logger *zap.Logger) *ProgressWebSocketHandler {
	return &ProgressWebSocketHandler{
		service:      service,
		logger:       logger,
		pollInterval: defaultPollInterval,
	}
}

// HandleWebSocket handles GET /api/download/:id/ws
func (h *ProgressWebSocketHandler) HandleWebSocket(c *gin.Context) {
	id := c.Param("id")
	job, err := h.service.GetJob(id)
	if err != nil {
		respondError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket", zap.Error(err))
		return
	}
	defer conn.Close()

	h.logger.Debug("WebSocket client connected",
		zap.String("id", id),
		zap.String("remote_addr", c.Request.RemoteAddr))

	// drain client frames so close and pong are processed
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := h.send(conn, ProgressFrame{ID: id, Job: &job}); err != nil {
		return
	}

	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	last := job
	for !last.IsTerminal() {
		select {
		case <-ticker.C:
			current, err := h.service.GetJob(id)
			if errors.Is(err, domain.ErrJobNotFound) {
				_ = h.send(conn, ProgressFrame{ID: id, Deleted: true})
				h.close(conn)
				return
			}
			if current == last {
				continue
			}
			if err := h.send(conn, ProgressFrame{ID: id, Job: &current}); err != nil {
				return
			}
			last = current

		case <-done:
			return
		}
	}

	h.close(conn)
}

func (h *ProgressWebSocketHandler) send(conn *websocket.Conn, frame ProgressFrame) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(frame); err != nil {
		h.logger.Debug("Failed to send progress frame", zap.String("id", frame.ID), zap.Error(err))
		return err
	}
	return nil
}

func (h *ProgressWebSocketHandler) close(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
