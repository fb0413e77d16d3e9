package app

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yourusername/ytgrab-go/internal/domain"
)

// fakeExtractor implements domain.Extractor for testing
type fakeExtractor struct {
	mu            sync.Mutex
	metadata      *domain.VideoMetadata
	metadataErr   error
	playlist      *domain.PlaylistMetadata
	playlistErr   error
	downloadFn    func(ctx context.Context, req domain.DownloadRequest, onProgress domain.ProgressFunc) (string, error)
	requests      []domain.DownloadRequest
	metadataCalls int
}

func newFakeExtractor() *fakeExtractor {
	return &fakeExtractor{
		metadata: &domain.VideoMetadata{ID: "X", Title: "Test Video"},
	}
}

func (f *fakeExtractor) FetchMetadata(ctx context.Context, url string) (*domain.VideoMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metadataCalls++
	if f.metadataErr != nil {
		return nil, f.metadataErr
	}
	return f.metadata, nil
}

func (f *fakeExtractor) FetchPlaylist(ctx context.Context, url string) (*domain.PlaylistMetadata, error) {
	if f.playlistErr != nil {
		return nil, f.playlistErr
	}
	return f.playlist, nil
}

func (f *fakeExtractor) Download(ctx context.Context, req domain.DownloadRequest, onProgress domain.ProgressFunc) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	fn := f.downloadFn
	f.mu.Unlock()

	if fn == nil {
		return writeArtifact(req.OutputTemplate + "." + req.Format)
	}
	return fn(ctx, req, onProgress)
}

func (f *fakeExtractor) Requests() []domain.DownloadRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.DownloadRequest(nil), f.requests...)
}

func writeArtifact(path string) (string, error) {
	if err := os.WriteFile(path, []byte("media"), 0644); err != nil {
		return "", err
	}
	return path, nil
}

// recordingHistory implements domain.HistorySink for testing
type recordingHistory struct {
	mu      sync.Mutex
	records []domain.HistoryRecord
	err     error
	panics  bool
}

func (h *recordingHistory) Record(ctx context.Context, record domain.HistoryRecord) error {
	if h.panics {
		panic("history exploded")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	h.records = append(h.records, record)
	return nil
}

func (h *recordingHistory) Enabled() bool { return true }

func (h *recordingHistory) ListHistory(ctx context.Context, limit int) ([]domain.HistoryRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.HistoryRecord(nil), h.records...), nil
}

func (h *recordingHistory) Records() []domain.HistoryRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.HistoryRecord(nil), h.records...)
}

var errBoom = errors.New("boom")

// testEnv wires a store, runner and service around fakes
type testEnv struct {
	dir       string
	store     *JobStore
	runner    *JobRunner
	service   *DownloadService
	extractor *fakeExtractor
	history   *recordingHistory
}

func newTestEnv(t *testing.T, maxConcurrent int) *testEnv {
	t.Helper()

	config := domain.DefaultConfig()
	config.Download.Dir = t.TempDir()
	config.Download.MaxConcurrent = maxConcurrent
	config.Extractor.MetadataTimeout = 5 * time.Second

	env := &testEnv{
		dir:       config.Download.Dir,
		store:     NewJobStore(),
		extractor: newFakeExtractor(),
		history:   &recordingHistory{},
	}
	env.runner = NewJobRunner(env.store, env.extractor, env.history, &config.Download, nil, nil)
	env.service = NewDownloadService(env.store, env.runner, env.extractor, env.history, config, nil, nil)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		env.runner.Shutdown(ctx)
	})
	return env
}

func (e *testEnv) waitForStatus(t *testing.T, id string, status domain.JobStatus) domain.Job {
	t.Helper()
	var job domain.Job
	require.Eventually(t, func() bool {
		var ok bool
		job, ok = e.store.Get(id)
		return ok && job.Status == status
	}, 5*time.Second, 5*time.Millisecond, "job %s never reached %s", id, status)
	return job
}
