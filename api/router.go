package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/yourusername/ytgrab-go/api/handlers"
	"github.com/yourusername/ytgrab-go/api/middleware"
	"github.com/yourusername/ytgrab-go/internal/app"
	"github.com/yourusername/ytgrab-go/internal/domain"
)

// SetupRouter sets up the HTTP router
func SetupRouter(service *app.DownloadService, config *domain.ServerConfig, log *zap.Logger) *gin.Engine {
	if log == nil {
		log = zap.NewNop()
	}

	router := gin.New()

	// Middleware
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Logger(log))
	router.Use(middleware.Metrics())
	router.Use(middleware.CORS(config.CORSOrigins))

	// Health endpoints
	healthHandler := handlers.NewHealthHandler(service)
	router.GET("/", healthHandler.Root)
	router.GET("/health", healthHandler.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		mediaHandler := handlers.NewMediaHandler(service)
		api.POST("/video-info", mediaHandler.VideoInfo)
		api.POST("/playlist-info", mediaHandler.PlaylistInfo)

		downloadHandler := handlers.NewDownloadHandler(service, log)
		wsHandler := handlers.NewProgressWebSocketHandler(service, log)
		api.POST("/download", downloadHandler.StartDownload)
		api.GET("/downloads", downloadHandler.ListDownloads)
		api.GET("/history", downloadHandler.History)

		download := api.Group("/download/:id")
		{
			download.GET("/status", downloadHandler.GetStatus)
			download.GET("/file", downloadHandler.GetFile)
			download.GET("/ws", wsHandler.HandleWebSocket)
			download.DELETE("", downloadHandler.DeleteDownload)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		detail := "Not Found"
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			detail = "unknown endpoint: " + c.Request.URL.Path
		}
		c.JSON(http.StatusNotFound, handlers.ErrorResponse{Success: false, Detail: detail})
	})

	return router
}
