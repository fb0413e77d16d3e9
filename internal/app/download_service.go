package app

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/ytgrab-go/internal/domain"
	"github.com/yourusername/ytgrab-go/pkg/logger"
)

// DownloadService is the entry point used by the HTTP layer. It validates
// requests, runs the metadata pre-check and hands accepted jobs to the runner.
type DownloadService struct {
	store           *JobStore
	runner          *JobRunner
	extractor       domain.Extractor
	history         domain.HistorySink
	downloadDir     string
	metadataTimeout time.Duration
	logger          *zap.Logger
	multiLogger     *logger.MultiLogger
}

// NewDownloadService creates a new download service
func NewDownloadService(
	store *JobStore,
	runner *JobRunner,
	extractor domain.Extractor,
	history domain.HistorySink,
	config *domain.Config,
	log *zap.Logger,
	multiLogger *logger.MultiLogger,
) *DownloadService {
	if history == nil {
		history = NopHistorySink{}
	}
	return &DownloadService{
		store:           store,
		runner:          runner,
		extractor:       extractor,
		history:         history,
		downloadDir:     config.Download.Dir,
		metadataTimeout: config.Extractor.MetadataTimeout,
		logger:          logger.OrNop(log),
		multiLogger:     multiLogger,
	}
}

// StartDownloadRequest represents a request to start a download
type StartDownloadRequest struct {
	URL     string
	Format  string
	Quality string
}

// FileDownload describes a completed artifact ready to be served
type FileDownload struct {
	Path string
	Name string
}

// VideoInfo fetches metadata for a single video
func (s *DownloadService) VideoInfo(ctx context.Context, rawURL string) (*domain.VideoMetadata, error) {
	if err := ValidateURL(rawURL); err != nil {
		return nil, err
	}
	ctx, cancel := s.withMetadataTimeout(ctx)
	defer cancel()
	return s.extractor.FetchMetadata(ctx, rawURL)
}

// PlaylistInfo fetches a flat listing of a playlist
func (s *DownloadService) PlaylistInfo(ctx context.Context, rawURL string) (*domain.PlaylistMetadata, error) {
	if err := ValidateURL(rawURL); err != nil {
		return nil, err
	}
	ctx, cancel := s.withMetadataTimeout(ctx)
	defer cancel()
	return s.extractor.FetchPlaylist(ctx, rawURL)
}

// StartDownload validates the request, checks the video can be resolved and
// creates a pending job. The job is executed in the background; the returned
// snapshot is taken before the runner touches it.
func (s *DownloadService) StartDownload(ctx context.Context, req StartDownloadRequest) (domain.Job, error) {
	req = normalizeRequest(req)
	if err := ValidateDownloadRequest(req); err != nil {
		return domain.Job{}, err
	}

	info, err := s.VideoInfo(ctx, req.URL)
	if err != nil {
		return domain.Job{}, err
	}

	job := domain.NewJob(req.URL, req.Format, req.Quality, info.Title)
	if err := s.store.Create(job); err != nil {
		return domain.Job{}, fmt.Errorf("failed to create download: %w", err)
	}
	snapshot := *job

	if err := s.runner.Submit(job.ID); err != nil {
		s.store.Delete(job.ID)
		return domain.Job{}, fmt.Errorf("failed to schedule download: %w", err)
	}

	jobsCreatedTotal.Inc()
	s.logger.Info("Download queued",
		zap.String("id", job.ID),
		zap.String("url", job.URL),
		zap.String("format", job.Format),
		zap.String("quality", job.Quality))
	if s.multiLogger != nil {
		s.multiLogger.LogJobEvent("job_created",
			zap.String("id", job.ID),
			zap.String("url", job.URL),
			zap.String("title", job.Title))
	}

	return snapshot, nil
}

// GetJob returns the latest snapshot of a job
func (s *DownloadService) GetJob(id string) (domain.Job, error) {
	job, ok := s.store.Get(id)
	if !ok {
		return domain.Job{}, domain.ErrJobNotFound
	}
	return job, nil
}

// ListJobs returns all jobs in creation order
func (s *DownloadService) ListJobs() []domain.Job {
	return s.store.List()
}

// CountJobs returns the number of live jobs
func (s *DownloadService) CountJobs() int {
	return s.store.Len()
}

// HistoryEnabled reports whether completed jobs are persisted
func (s *DownloadService) HistoryEnabled() bool {
	return s.history.Enabled()
}

// DeleteJob removes a job and its file. File removal failures are logged
// and do not prevent the record from being dropped.
func (s *DownloadService) DeleteJob(id string) error {
	job, ok := s.store.Delete(id)
	if !ok {
		return domain.ErrJobNotFound
	}

	if job.Filename != "" {
		if err := os.Remove(job.Filename); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("Error deleting file", zap.String("id", id), zap.String("file", job.Filename), zap.Error(err))
		}
	}
	if job.Status == domain.StatusDownloading {
		s.removePartials(id)
	}

	s.logger.Info("Download deleted", zap.String("id", id), zap.String("status", string(job.Status)))
	if s.multiLogger != nil {
		s.multiLogger.LogJobEvent("job_deleted", zap.String("id", id), zap.String("status", string(job.Status)))
	}
	return nil
}

// removePartials removes in-flight fragments left by a job that was still downloading
func (s *DownloadService) removePartials(id string) {
	matches, err := filepath.Glob(filepath.Join(s.downloadDir, id+".*"))
	if err != nil {
		return
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
			s.logger.Debug("Failed to remove partial file", zap.String("file", m), zap.Error(err))
		}
	}
}

// OpenFile resolves the artifact of a completed job
func (s *DownloadService) OpenFile(id string) (FileDownload, error) {
	job, ok := s.store.Get(id)
	if !ok {
		return FileDownload{}, domain.ErrJobNotFound
	}
	if job.Status != domain.StatusCompleted {
		return FileDownload{}, domain.ErrJobNotCompleted
	}
	if job.Filename == "" {
		return FileDownload{}, domain.ErrFileNotFound
	}
	info, err := os.Stat(job.Filename)
	if err != nil || info.IsDir() {
		return FileDownload{}, domain.ErrFileNotFound
	}

	return FileDownload{
		Path: job.Filename,
		Name: SafeFilename(job.Title, filepath.Ext(job.Filename)),
	}, nil
}

// History lists persisted records when the sink supports reading them
func (s *DownloadService) History(ctx context.Context, limit int) ([]domain.HistoryRecord, error) {
	reader, ok := s.history.(domain.HistoryReader)
	if !ok || !s.history.Enabled() {
		return []domain.HistoryRecord{}, nil
	}
	records, err := reader.ListHistory(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	return records, nil
}

func (s *DownloadService) withMetadataTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.metadataTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.metadataTimeout)
}

func normalizeRequest(req StartDownloadRequest) StartDownloadRequest {
	req.URL = strings.TrimSpace(req.URL)
	req.Format = strings.ToLower(strings.TrimSpace(req.Format))
	req.Quality = strings.ToLower(strings.TrimSpace(req.Quality))
	if req.Format == "" {
		req.Format = domain.DefaultFormat
	}
	if req.Quality == "" {
		req.Quality = domain.DefaultQuality
	}
	return req
}

// ValidateURL checks that the URL is an absolute http(s) URL
func ValidateURL(rawURL string) error {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return &domain.ValidationError{Field: "url", Message: "url is required"}
	}
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &domain.ValidationError{Field: "url", Message: "must be an absolute http(s) URL"}
	}
	return nil
}

// ValidateDownloadRequest checks format and quality of a normalized request
func ValidateDownloadRequest(req StartDownloadRequest) error {
	if err := ValidateURL(req.URL); err != nil {
		return err
	}
	if !domain.IsAllowedFormat(req.Format) {
		return &domain.ValidationError{Field: "format", Message: "must be one of mp4, webm, mp3, m4a"}
	}
	if req.Quality != domain.QualityBest {
		if _, ok := domain.QualityHeight(req.Quality); !ok {
			return &domain.ValidationError{Field: "quality", Message: `must be "best" or a height like "720p"`}
		}
	}
	return nil
}

// SafeFilename builds a download name from the title with path separators replaced
func SafeFilename(title, ext string) string {
	if title == "" {
		title = "download"
	}
	name := title + ext
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	return name
}

// IsClientError reports whether err should be surfaced as a 400
func IsClientError(err error) bool {
	return domain.IsValidation(err) || domain.IsExtraction(err) || errors.Is(err, domain.ErrJobNotCompleted)
}
