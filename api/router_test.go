package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/ytgrab-go/internal/app"
	"github.com/yourusername/ytgrab-go/internal/domain"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubExtractor resolves every URL on valid.example and fails the rest
type stubExtractor struct {
	mu   sync.Mutex
	gate chan struct{}
}

func (s *stubExtractor) FetchMetadata(ctx context.Context, url string) (*domain.VideoMetadata, error) {
	if !strings.Contains(url, "valid.example") || strings.Contains(url, "invalid.example") {
		return nil, &domain.ExtractionError{Op: "metadata", URL: url, Err: errors.New("Unsupported URL: " + url)}
	}
	return &domain.VideoMetadata{ID: "X", Title: "Test/Video", Formats: []domain.MediaFormat{}}, nil
}

func (s *stubExtractor) FetchPlaylist(ctx context.Context, url string) (*domain.PlaylistMetadata, error) {
	return &domain.PlaylistMetadata{ID: "PL", Title: "List", Entries: []domain.PlaylistEntry{{ID: "a"}}}, nil
}

func (s *stubExtractor) Download(ctx context.Context, req domain.DownloadRequest, onProgress domain.ProgressFunc) (string, error) {
	s.mu.Lock()
	gate := s.gate
	s.mu.Unlock()

	onProgress(domain.Progress{DownloadedBytes: 10, TotalBytes: 100})
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	path := req.OutputTemplate + "." + req.Format
	if err := os.WriteFile(path, []byte("media-bytes"), 0644); err != nil {
		return "", err
	}
	return path, nil
}

type testServer struct {
	router    *gin.Engine
	service   *app.DownloadService
	runner    *app.JobRunner
	extractor *stubExtractor
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	config := domain.DefaultConfig()
	config.Download.Dir = t.TempDir()

	store := app.NewJobStore()
	extractor := &stubExtractor{}
	runner := app.NewJobRunner(store, extractor, nil, &config.Download, nil, nil)
	service := app.NewDownloadService(store, runner, extractor, nil, config, nil, nil)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		runner.Shutdown(ctx)
	})

	return &testServer{
		router:    SetupRouter(service, &config.Server, nil),
		service:   service,
		runner:    runner,
		extractor: extractor,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (s *testServer) waitForStatus(t *testing.T, id string, status domain.JobStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		job, err := s.service.GetJob(id)
		return err == nil && job.Status == status
	}, 5*time.Second, 5*time.Millisecond)
}

func TestRoot(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "YouTube Downloader API is running! 🚀", decode(t, w)["message"])
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(0), body["jobs"])
	assert.Equal(t, false, body["history"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	srv.do(t, http.MethodGet, "/health", nil)

	w := srv.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ytgrab_http_requests_total")
}

func TestVideoInfo(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodPost, "/api/video-info", gin.H{"url": "https://valid.example/watch?v=X"})
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Test/Video", body["data"].(map[string]interface{})["title"])

	w = srv.do(t, http.MethodPost, "/api/video-info", gin.H{"url": "https://invalid.example/x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	body = decode(t, w)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["detail"], "Error extracting video info")
}

func TestVideoInfo_MalformedBody(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/video-info", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, decode(t, w)["success"])
}

func TestPlaylistInfo(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodPost, "/api/playlist-info", gin.H{"url": "https://valid.example/playlist?list=PL"})
	assert.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Len(t, data["entries"], 1)
}

func TestDownloadLifecycle(t *testing.T) {
	srv := newTestServer(t)
	gate := make(chan struct{})
	srv.extractor.gate = gate

	w := srv.do(t, http.MethodPost, "/api/download", gin.H{
		"url":     "https://valid.example/watch?v=X",
		"format":  "mp4",
		"quality": "360p",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Download started successfully!", body["message"])
	id := body["download_id"].(string)
	require.NotEmpty(t, id)

	srv.waitForStatus(t, id, domain.StatusDownloading)
	require.Eventually(t, func() bool {
		job, err := srv.service.GetJob(id)
		return err == nil && job.Progress == 10
	}, 5*time.Second, 5*time.Millisecond)

	w = srv.do(t, http.MethodGet, "/api/download/"+id+"/status", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "downloading", data["status"])
	assert.Equal(t, 10.0, data["progress"])
	assert.NotContains(t, data, "filename")

	w = srv.do(t, http.MethodGet, "/api/download/"+id+"/file", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	close(gate)
	srv.waitForStatus(t, id, domain.StatusCompleted)

	w = srv.do(t, http.MethodGet, "/api/download/"+id+"/status", nil)
	data = decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "completed", data["status"])
	assert.Equal(t, 100.0, data["progress"])
	assert.NotEmpty(t, data["filename"])

	w = srv.do(t, http.MethodGet, "/api/download/"+id+"/file", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "media-bytes", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "Test_Video.mp4")

	w = srv.do(t, http.MethodGet, "/api/downloads", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["data"], 1)

	w = srv.do(t, http.MethodDelete, "/api/download/"+id, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Download deleted successfully", decode(t, w)["message"])
	assert.NoFileExists(t, data["filename"].(string))

	w = srv.do(t, http.MethodGet, "/api/download/"+id+"/status", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "download not found", decode(t, w)["detail"])

	w = srv.do(t, http.MethodDelete, "/api/download/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStartDownload_PrecheckFailure(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodPost, "/api/download", gin.H{"url": "https://invalid.example/x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["success"])
	assert.NotContains(t, body, "download_id")
	assert.Equal(t, 0, srv.service.CountJobs())
}

func TestStartDownload_ValidationError(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodPost, "/api/download", gin.H{"url": "https://valid.example/x", "format": "avi"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["detail"], "format")

	w = srv.do(t, http.MethodPost, "/api/download", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["detail"], "url")
}

func TestUnknownDownload(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/api/download/nope/status", "/api/download/nope/file", "/api/download/nope/ws"} {
		w := srv.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
}

func TestFileMissingOnDisk(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodPost, "/api/download", gin.H{"url": "https://valid.example/x", "format": "mp3"})
	require.Equal(t, http.StatusOK, w.Code)
	id := decode(t, w)["download_id"].(string)
	srv.waitForStatus(t, id, domain.StatusCompleted)

	job, err := srv.service.GetJob(id)
	require.NoError(t, err)
	assert.Equal(t, ".mp3", filepath.Ext(job.Filename))
	require.NoError(t, os.Remove(job.Filename))

	w = srv.do(t, http.MethodGet, "/api/download/"+id+"/file", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "file not found", decode(t, w)["detail"])
}

func TestHistory_Disabled(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodGet, "/api/history?limit=5", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["data"])

	w = srv.do(t, http.MethodGet, "/api/history?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/download", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestUnknownRoute(t *testing.T) {
	srv := newTestServer(t)

	w := srv.do(t, http.MethodGet, "/api/nothing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, false, decode(t, w)["success"])
}

func TestProgressWebSocket(t *testing.T) {
	srv := newTestServer(t)
	gate := make(chan struct{})
	srv.extractor.gate = gate

	w := srv.do(t, http.MethodPost, "/api/download", gin.H{"url": "https://valid.example/x"})
	require.Equal(t, http.StatusOK, w.Code)
	id := decode(t, w)["download_id"].(string)

	httpServer := httptest.NewServer(srv.router)
	defer httpServer.Close()

	wsURL := "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/api/download/" + id + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var first map[string]interface{}
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, id, first["id"])

	close(gate)

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var lastStatus string
	for {
		var frame map[string]interface{}
		if err := conn.ReadJSON(&frame); err != nil {
			break
		}
		data := frame["data"].(map[string]interface{})
		lastStatus = data["status"].(string)
	}
	assert.Equal(t, "completed", lastStatus)
}

func TestProgressWebSocket_Deleted(t *testing.T) {
	srv := newTestServer(t)
	gate := make(chan struct{})
	srv.extractor.gate = gate
	defer close(gate)

	w := srv.do(t, http.MethodPost, "/api/download", gin.H{"url": "https://valid.example/x"})
	require.Equal(t, http.StatusOK, w.Code)
	id := decode(t, w)["download_id"].(string)

	httpServer := httptest.NewServer(srv.router)
	defer httpServer.Close()

	wsURL := "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/api/download/" + id + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var first map[string]interface{}
	require.NoError(t, conn.ReadJSON(&first))

	require.NoError(t, srv.service.DeleteJob(id))

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	deleted := false
	for {
		var frame map[string]interface{}
		if err := conn.ReadJSON(&frame); err != nil {
			break
		}
		if frame["deleted"] == true {
			deleted = true
		}
	}
	assert.True(t, deleted)
}
