package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yourusername/ytgrab-go/api"
	"github.com/yourusername/ytgrab-go/internal/app"
	"github.com/yourusername/ytgrab-go/internal/domain"
	"github.com/yourusername/ytgrab-go/internal/infrastructure"
	"github.com/yourusername/ytgrab-go/pkg/logger"
)

const shutdownTimeout = 30 * time.Second

var (
	configPath string
	host       string
	port       int

	rootCmd = &cobra.Command{
		Use:   "ytgrab-server",
		Short: "ytgrab HTTP server - video metadata and download jobs over yt-dlp",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := app.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if cmd.Flags().Changed("host") {
				config.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				config.Server.Port = port
			}
			return runServer(config)
		},
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	rootCmd.Flags().StringVar(&host, "host", "", "Listen host (overrides config)")
	rootCmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port (overrides config)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServer(config *domain.Config) error {
	log, err := logger.New(logger.Config{
		Level:      config.Logging.Level,
		Format:     config.Logging.Format,
		OutputPath: config.Logging.OutputPath,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	// Categorized event logs are optional
	var multiLog *logger.MultiLogger
	if config.Logging.LogsDir != "" {
		multiLog, err = logger.NewMultiLogger(logger.MultiLoggerConfig{
			Level:   config.Logging.Level,
			LogsDir: config.Logging.LogsDir,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize event logs: %w", err)
		}
		defer multiLog.Close()
	}

	log.Info("Starting ytgrab server",
		zap.String("host", config.Server.Host),
		zap.Int("port", config.Server.Port),
		zap.String("download_dir", config.Download.Dir),
		zap.Int("max_concurrent", config.Download.MaxConcurrent),
		zap.String("ytdlp", config.Extractor.YTDLPBinary))

	if err := os.MkdirAll(config.Download.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create download directory: %w", err)
	}

	history, closeHistory := openHistory(config, log)
	defer closeHistory()

	var extractor domain.Extractor = infrastructure.NewYTDLPExtractor(&config.Extractor, log)
	if config.Cache.Size > 0 {
		extractor = infrastructure.NewCachingExtractor(extractor, config.Cache.Size, config.Cache.TTL)
	}

	store := app.NewJobStore()
	runner := app.NewJobRunner(store, extractor, history, &config.Download, log, multiLog)
	service := app.NewDownloadService(store, runner, extractor, history, config, log, multiLog)

	gin.SetMode(gin.ReleaseMode)
	router := api.SetupRouter(service, &config.Server, log)

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info("Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("HTTP server failed", zap.Error(err))
		_ = runner.Shutdown(context.Background())
		return err
	}

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := runner.Shutdown(shutdownCtx); err != nil {
		log.Error("Jobs did not stop in time", zap.Error(err))
	}

	log.Info("Server exited")
	return nil
}

// openHistory resolves the configured history sink, falling back to a no-op
// sink when disabled or when the database cannot be opened
func openHistory(config *domain.Config, log *zap.Logger) (domain.HistorySink, func()) {
	if !config.History.Enabled {
		log.Info("Download history disabled")
		return app.NopHistorySink{}, func() {}
	}

	store, err := infrastructure.NewSQLiteHistoryStore(config.History.DatabasePath)
	if err != nil {
		log.Warn("History store unavailable, continuing without history",
			zap.String("path", config.History.DatabasePath),
			zap.Error(err))
		return app.NopHistorySink{}, func() {}
	}

	log.Info("Download history enabled", zap.String("path", config.History.DatabasePath))
	return store, func() {
		if err := store.Close(); err != nil {
			log.Warn("Failed to close history store", zap.Error(err))
		}
	}
}
