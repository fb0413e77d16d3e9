package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/ytgrab-go/internal/domain"
	"github.com/yourusername/ytgrab-go/pkg/logger"
)

// ErrRunnerStopped is returned by Submit after Shutdown has been called
var ErrRunnerStopped = errors.New("job runner is shutting down")

const historyWriteTimeout = 10 * time.Second

// JobRunner executes download jobs in the background and drives their state
type JobRunner struct {
	store       *JobStore
	extractor   domain.Extractor
	history     domain.HistorySink
	downloadDir string
	logger      *zap.Logger
	multiLogger *logger.MultiLogger
	slots       chan struct{} // nil when concurrency is unlimited

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewJobRunner creates a new job runner
func NewJobRunner(
	store *JobStore,
	extractor domain.Extractor,
	history domain.HistorySink,
	config *domain.DownloadConfig,
	log *zap.Logger,
	multiLogger *logger.MultiLogger,
) *JobRunner {
	if history == nil {
		history = NopHistorySink{}
	}

	var slots chan struct{}
	if config.MaxConcurrent > 0 {
		slots = make(chan struct{}, config.MaxConcurrent)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &JobRunner{
		store:       store,
		extractor:   extractor,
		history:     history,
		downloadDir: config.Dir,
		logger:      logger.OrNop(log),
		multiLogger: multiLogger,
		slots:       slots,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Submit schedules the job with the given id and returns immediately.
// Each id must be submitted at most once.
func (r *JobRunner) Submit(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRunnerStopped
	}
	r.wg.Add(1)
	go r.run(id)
	return nil
}

// Wait blocks until every submitted job has finished
func (r *JobRunner) Wait() {
	r.wg.Wait()
}

// Shutdown stops accepting jobs, cancels running downloads and waits for the
// workers to return or ctx to expire
func (r *JobRunner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run executes a single job from pending to a terminal state
func (r *JobRunner) run(id string) {
	defer r.wg.Done()
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Job panicked", zap.String("id", id), zap.Any("panic", rec))
			r.fail(id, fmt.Errorf("unexpected failure: %v", rec))
		}
	}()

	if r.slots != nil {
		select {
		case r.slots <- struct{}{}:
			defer func() { <-r.slots }()
		case <-r.ctx.Done():
			r.fail(id, r.ctx.Err())
			return
		}
	}

	job, err := r.store.Mutate(id, (*domain.Job).MarkDownloading)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			r.logger.Debug("Job deleted before it started", zap.String("id", id))
			return
		}
		r.logger.Warn("Job cannot start", zap.String("id", id), zap.Error(err))
		return
	}

	jobsActive.Inc()
	defer jobsActive.Dec()

	r.logger.Info("Download started",
		zap.String("id", id),
		zap.String("url", job.URL),
		zap.String("format", job.Format),
		zap.String("quality", job.Quality))
	r.logEvent("job_started", zap.String("id", id), zap.String("url", job.URL))

	req := domain.DownloadRequest{
		URL:            job.URL,
		Format:         job.Format,
		Quality:        job.Quality,
		OutputTemplate: filepath.Join(r.downloadDir, id),
	}

	path, err := r.extractor.Download(r.ctx, req, func(p domain.Progress) {
		r.reportProgress(id, p)
	})
	if err != nil {
		r.fail(id, err)
		return
	}

	r.complete(id, path)
}

// reportProgress writes the latest percentage to the store
func (r *JobRunner) reportProgress(id string, p domain.Progress) {
	percent, ok := p.Percent()
	if !ok {
		return
	}
	_, err := r.store.Mutate(id, func(job *domain.Job) error {
		return job.UpdateProgress(percent)
	})
	if err != nil && !errors.Is(err, domain.ErrJobNotFound) {
		r.logger.Debug("Progress update ignored", zap.String("id", id), zap.Error(err))
	}
}

// complete finalizes a successful download and records it in history
func (r *JobRunner) complete(id, path string) {
	job, err := r.store.Mutate(id, func(job *domain.Job) error {
		return job.MarkCompleted(path)
	})
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			// deleted while downloading; the file it produced has no owner
			r.logger.Info("Job deleted during download, removing file",
				zap.String("id", id), zap.String("file", path))
			if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
				r.logger.Warn("Failed to remove orphaned file", zap.String("file", path), zap.Error(rmErr))
			}
			return
		}
		r.logger.Error("Failed to complete job", zap.String("id", id), zap.Error(err))
		return
	}

	jobsFinishedTotal.WithLabelValues(string(domain.StatusCompleted)).Inc()
	r.logger.Info("Download completed", zap.String("id", id), zap.String("file", path))
	r.logEvent("job_completed", zap.String("id", id), zap.String("file", path))

	r.recordHistory(&job)
}

// fail moves the job into the error state; absent jobs are ignored
func (r *JobRunner) fail(id string, cause error) {
	_, err := r.store.Mutate(id, func(job *domain.Job) error {
		return job.MarkFailed(cause)
	})
	if err != nil {
		if !errors.Is(err, domain.ErrJobNotFound) {
			r.logger.Error("Failed to record job failure", zap.String("id", id), zap.Error(err))
		}
		return
	}

	jobsFinishedTotal.WithLabelValues(string(domain.StatusError)).Inc()
	r.logger.Warn("Download failed", zap.String("id", id), zap.Error(cause))
	r.logEvent("job_failed", zap.String("id", id), zap.Error(cause))
}

// recordHistory writes the job summary to the history sink. Failures and
// panics are logged and never reach the job.
func (r *JobRunner) recordHistory(job *domain.Job) {
	if !r.history.Enabled() {
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			historyWriteFailuresTotal.Inc()
			r.logger.Error("History sink panicked", zap.String("id", job.ID), zap.Any("panic", rec))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
	defer cancel()

	if err := r.history.Record(ctx, domain.NewHistoryRecord(job)); err != nil {
		historyWriteFailuresTotal.Inc()
		r.logger.Warn("Error saving download history", zap.String("id", job.ID), zap.Error(err))
		if r.multiLogger != nil {
			r.multiLogger.LogAppError("history_write_failed", zap.String("id", job.ID), zap.Error(err))
		}
	}
}

func (r *JobRunner) logEvent(event string, fields ...zap.Field) {
	if r.multiLogger != nil {
		r.multiLogger.LogJobEvent(event, fields...)
	}
}

// NopHistorySink discards every record
type NopHistorySink struct{}

// Record does nothing
func (NopHistorySink) Record(context.Context, domain.HistoryRecord) error { return nil }

// Enabled always reports false
func (NopHistorySink) Enabled() bool { return false }
