package infrastructure

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/yourusername/ytgrab-go/internal/domain"
	"github.com/yourusername/ytgrab-go/pkg/logger"
)

const (
	progressPrefix   = "[progress]"
	progressTemplate = "download:" + progressPrefix +
		" %(progress.downloaded_bytes)s %(progress.total_bytes)s %(progress.total_bytes_estimate)s"
)

// YTDLPExtractor implements domain.Extractor by running the yt-dlp binary
type YTDLPExtractor struct {
	config *domain.ExtractorConfig
	logger *zap.Logger
}

// NewYTDLPExtractor creates a new yt-dlp backed extractor
func NewYTDLPExtractor(config *domain.ExtractorConfig, log *zap.Logger) *YTDLPExtractor {
	return &YTDLPExtractor{
		config: config,
		logger: logger.OrNop(log),
	}
}

// rawVideo mirrors the subset of yt-dlp's info dict that is exposed
type rawVideo struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Uploader    string      `json:"uploader"`
	Duration    float64     `json:"duration"`
	ViewCount   int64       `json:"view_count"`
	Thumbnail   string      `json:"thumbnail"`
	Description string      `json:"description"`
	UploadDate  string      `json:"upload_date"`
	Formats     []rawFormat `json:"formats"`
}

type rawFormat struct {
	FormatID       string  `json:"format_id"`
	Ext            string  `json:"ext"`
	Quality        float64 `json:"quality"`
	Filesize       int64   `json:"filesize"`
	FilesizeApprox int64   `json:"filesize_approx"`
	VCodec         string  `json:"vcodec"`
	ACodec         string  `json:"acodec"`
	FormatNote     string  `json:"format_note"`
}

type rawPlaylist struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Uploader string `json:"uploader"`
	Entries  []struct {
		ID       string  `json:"id"`
		Title    string  `json:"title"`
		URL      string  `json:"url"`
		Duration float64 `json:"duration"`
	} `json:"entries"`
}

// FetchMetadata resolves a single video without downloading it
func (e *YTDLPExtractor) FetchMetadata(ctx context.Context, url string) (*domain.VideoMetadata, error) {
	args := e.baseArgs()
	args = append(args, "--dump-single-json", "--skip-download", "--no-playlist", url)

	var raw rawVideo
	if err := e.runJSON(ctx, args, &raw); err != nil {
		return nil, &domain.ExtractionError{Op: "metadata", URL: url, Err: err}
	}
	return normalizeVideo(&raw), nil
}

// FetchPlaylist lists playlist entries without resolving each item
func (e *YTDLPExtractor) FetchPlaylist(ctx context.Context, url string) (*domain.PlaylistMetadata, error) {
	args := e.baseArgs()
	args = append(args, "--flat-playlist", "--dump-single-json", "--yes-playlist", url)

	var raw rawPlaylist
	if err := e.runJSON(ctx, args, &raw); err != nil {
		return nil, &domain.ExtractionError{Op: "playlist", URL: url, Err: err}
	}

	playlist := &domain.PlaylistMetadata{
		ID:       raw.ID,
		Title:    raw.Title,
		Uploader: raw.Uploader,
		Entries:  make([]domain.PlaylistEntry, 0, len(raw.Entries)),
	}
	for _, entry := range raw.Entries {
		playlist.Entries = append(playlist.Entries, domain.PlaylistEntry{
			ID:       entry.ID,
			Title:    entry.Title,
			URL:      entry.URL,
			Duration: entry.Duration,
		})
	}
	return playlist, nil
}

// Download retrieves the media into req.OutputTemplate plus the container
// extension and returns the final path
func (e *YTDLPExtractor) Download(ctx context.Context, req domain.DownloadRequest, onProgress domain.ProgressFunc) (string, error) {
	if onProgress == nil {
		onProgress = func(domain.Progress) {}
	}
	if err := os.MkdirAll(filepath.Dir(req.OutputTemplate), 0755); err != nil {
		return "", &domain.ExtractionError{Op: "download", URL: req.URL, Err: err}
	}

	args := e.downloadArgs(req)
	e.logger.Debug("Running yt-dlp", zap.String("cmd", ShellEscapeCommand(e.config.YTDLPBinary, args...)))

	cmd := exec.CommandContext(ctx, e.config.YTDLPBinary, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", &domain.ExtractionError{Op: "download", URL: req.URL, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", &domain.ExtractionError{Op: "download", URL: req.URL, Err: err}
	}
	if err := cmd.Start(); err != nil {
		return "", &domain.ExtractionError{Op: "download", URL: req.URL, Err: err}
	}

	var (
		mu        sync.Mutex
		finalPath string
		lastErr   string
		wg        sync.WaitGroup
	)
	handle := func(r io.Reader, isStderr bool) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if p, ok := parseProgressLine(line); ok {
				onProgress(p)
				continue
			}
			mu.Lock()
			switch {
			case !isStderr && strings.HasPrefix(line, req.OutputTemplate):
				finalPath = line
			case isStderr:
				lastErr = line
			}
			mu.Unlock()
		}
	}
	wg.Add(2)
	go handle(stdout, false)
	go handle(stderr, true)
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return "", &domain.ExtractionError{Op: "download", URL: req.URL, Err: ctx.Err()}
		}
		return "", &domain.ExtractionError{Op: "download", URL: req.URL, Err: describeFailure(err, lastErr)}
	}

	if finalPath == "" || !fileExists(finalPath) {
		finalPath = findArtifact(req.OutputTemplate)
	}
	if finalPath == "" {
		return "", &domain.ExtractionError{Op: "download", URL: req.URL, Err: errors.New("no file produced")}
	}
	return finalPath, nil
}

// baseArgs are shared by every invocation
func (e *YTDLPExtractor) baseArgs() []string {
	args := []string{"--no-warnings", "--no-color"}
	if e.config.CookieFile != "" && fileExists(e.config.CookieFile) {
		args = append(args, "--cookies", e.config.CookieFile)
	}
	return args
}

// downloadArgs builds the command line for a download request
func (e *YTDLPExtractor) downloadArgs(req domain.DownloadRequest) []string {
	args := e.baseArgs()
	args = append(args,
		"--no-playlist",
		"--newline",
		"--progress",
		"--progress-template", progressTemplate,
		"--print", "after_move:filepath",
		"-f", formatSelector(req.Format, req.Quality),
		"-o", req.OutputTemplate+".%(ext)s",
	)

	switch {
	case req.Format == domain.FormatMP3:
		args = append(args, "-x", "--audio-format", "mp3", "--audio-quality", e.audioQuality())
	case domain.IsAudioFormat(req.Format):
		args = append(args, "-x", "--audio-format", req.Format)
	default:
		args = append(args, "--merge-output-format", req.Format)
	}

	if e.config.FFmpegLocation != "" {
		args = append(args, "--ffmpeg-location", e.config.FFmpegLocation)
	}
	return append(args, req.URL)
}

func (e *YTDLPExtractor) audioQuality() string {
	q := strings.TrimSuffix(strings.ToUpper(e.config.AudioQuality), "K")
	if q == "" {
		q = "192"
	}
	return q + "K"
}

// runJSON runs yt-dlp and decodes its stdout into v
func (e *YTDLPExtractor) runJSON(ctx context.Context, args []string, v interface{}) error {
	e.logger.Debug("Running yt-dlp", zap.String("cmd", ShellEscapeCommand(e.config.YTDLPBinary, args...)))

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.config.YTDLPBinary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return describeFailure(err, lastLine(stderr.String()))
	}
	if err := json.Unmarshal(stdout.Bytes(), v); err != nil {
		return fmt.Errorf("failed to parse yt-dlp output: %w", err)
	}
	return nil
}

// formatSelector maps a container and quality token to a yt-dlp format selector
func formatSelector(format, quality string) string {
	switch format {
	case domain.FormatMP3:
		return "bestaudio/best"
	case domain.FormatM4A:
		return "bestaudio[ext=m4a]/bestaudio/best"
	}

	height, ok := domain.QualityHeight(quality)
	if !ok {
		return "best"
	}
	return fmt.Sprintf("best[height<=%d][ext=%s]/best[height<=%d]", height, format, height)
}

// parseProgressLine parses a line produced by progressTemplate. yt-dlp prints
// NA for unknown values, which become zero.
func parseProgressLine(line string) (domain.Progress, bool) {
	if !strings.HasPrefix(line, progressPrefix) {
		return domain.Progress{}, false
	}
	fields := strings.Fields(strings.TrimPrefix(line, progressPrefix))
	if len(fields) != 3 {
		return domain.Progress{}, false
	}
	return domain.Progress{
		DownloadedBytes:    parseByteCount(fields[0]),
		TotalBytes:         parseByteCount(fields[1]),
		TotalBytesEstimate: parseByteCount(fields[2]),
	}, true
}

func parseByteCount(s string) int64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0
	}
	return int64(f)
}

// normalizeVideo converts yt-dlp's info dict to domain metadata
func normalizeVideo(raw *rawVideo) *domain.VideoMetadata {
	meta := &domain.VideoMetadata{
		ID:          raw.ID,
		Title:       raw.Title,
		Uploader:    raw.Uploader,
		Duration:    raw.Duration,
		ViewCount:   raw.ViewCount,
		Thumbnail:   raw.Thumbnail,
		Description: domain.TruncateDescription(raw.Description),
		UploadDate:  raw.UploadDate,
		Formats:     make([]domain.MediaFormat, 0, len(raw.Formats)),
	}
	for _, f := range raw.Formats {
		if !domain.IsAllowedFormat(f.Ext) {
			continue
		}
		size := f.Filesize
		if size == 0 {
			size = f.FilesizeApprox
		}
		meta.Formats = append(meta.Formats, domain.MediaFormat{
			FormatID:   f.FormatID,
			Ext:        f.Ext,
			Quality:    f.Quality,
			Filesize:   size,
			VCodec:     f.VCodec,
			ACodec:     f.ACodec,
			FormatNote: f.FormatNote,
		})
	}
	return meta
}

// findArtifact locates the finished file for an output template, skipping
// yt-dlp's in-progress fragments
func findArtifact(template string) string {
	matches, err := filepath.Glob(template + ".*")
	if err != nil {
		return ""
	}
	for _, m := range matches {
		switch filepath.Ext(m) {
		case ".part", ".ytdl", ".temp", ".json":
			continue
		}
		if strings.Contains(filepath.Base(m), ".part-Frag") {
			continue
		}
		return m
	}
	return ""
}

func describeFailure(err error, stderrLine string) error {
	if stderrLine == "" {
		return err
	}
	return errors.New(strings.TrimPrefix(stderrLine, "ERROR: "))
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
