package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/yourusername/ytgrab-go/internal/domain"
)

// apiClient talks to a running ytgrab server
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 2 * time.Minute},
	}
}

// envelope is the common response shape of the JSON endpoints
type envelope struct {
	Success    bool            `json:"success"`
	Detail     string          `json:"detail"`
	Message    string          `json:"message"`
	DownloadID string          `json:"download_id"`
	Data       json.RawMessage `json:"data"`
}

// apiError is a non-2xx response from the server
type apiError struct {
	Status int
	Detail string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Detail)
}

func (c *apiClient) call(ctx context.Context, method, path string, body interface{}) (*envelope, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= 400 {
			return nil, &apiError{Status: resp.StatusCode, Detail: string(raw)}
		}
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if resp.StatusCode >= 400 || !env.Success {
		return nil, &apiError{Status: resp.StatusCode, Detail: env.Detail}
	}
	return &env, nil
}

func (c *apiClient) callData(ctx context.Context, method, path string, body, out interface{}) error {
	env, err := c.call(ctx, method, path, body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to parse response data: %w", err)
	}
	return nil
}

func (c *apiClient) VideoInfo(ctx context.Context, videoURL string) (*domain.VideoMetadata, error) {
	var meta domain.VideoMetadata
	if err := c.callData(ctx, http.MethodPost, "/api/video-info", map[string]string{"url": videoURL}, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (c *apiClient) PlaylistInfo(ctx context.Context, playlistURL string) (*domain.PlaylistMetadata, error) {
	var meta domain.PlaylistMetadata
	if err := c.callData(ctx, http.MethodPost, "/api/playlist-info", map[string]string{"url": playlistURL}, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (c *apiClient) StartDownload(ctx context.Context, videoURL, format, quality string) (string, error) {
	payload := map[string]string{"url": videoURL}
	if format != "" {
		payload["format"] = format
	}
	if quality != "" {
		payload["quality"] = quality
	}

	env, err := c.call(ctx, http.MethodPost, "/api/download", payload)
	if err != nil {
		return "", err
	}
	return env.DownloadID, nil
}

func (c *apiClient) Status(ctx context.Context, id string) (*domain.Job, error) {
	var job domain.Job
	if err := c.callData(ctx, http.MethodGet, "/api/download/"+url.PathEscape(id)+"/status", nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (c *apiClient) List(ctx context.Context) ([]domain.Job, error) {
	var jobs []domain.Job
	if err := c.callData(ctx, http.MethodGet, "/api/downloads", nil, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

func (c *apiClient) Delete(ctx context.Context, id string) error {
	_, err := c.call(ctx, http.MethodDelete, "/api/download/"+url.PathEscape(id), nil)
	return err
}

func (c *apiClient) History(ctx context.Context, limit int) ([]domain.HistoryRecord, error) {
	var records []domain.HistoryRecord
	path := "/api/history?limit=" + strconv.Itoa(limit)
	if err := c.callData(ctx, http.MethodGet, path, nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// WaitForTerminal polls the job until it completes or fails
func (c *apiClient) WaitForTerminal(ctx context.Context, id string, interval time.Duration, onUpdate func(*domain.Job)) (*domain.Job, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		job, err := c.Status(ctx, id)
		if err != nil {
			return nil, err
		}
		if onUpdate != nil {
			onUpdate(job)
		}
		if job.IsTerminal() {
			return job, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Fetch saves the artifact of a completed job into dir and returns its path
func (c *apiClient) Fetch(ctx context.Context, id, dir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/download/"+url.PathEscape(id)+"/file", nil)
	if err != nil {
		return "", err
	}

	// file transfers are not bounded by the JSON timeout
	client := &http.Client{Transport: c.http.Transport}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var env envelope
		raw, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(raw, &env) == nil && env.Detail != "" {
			return "", &apiError{Status: resp.StatusCode, Detail: env.Detail}
		}
		return "", &apiError{Status: resp.StatusCode, Detail: string(raw)}
	}

	name := id
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		name = filepath.Base(params["filename"])
	}

	path := filepath.Join(dir, name)
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	if _, err := io.Copy(file, resp.Body); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
