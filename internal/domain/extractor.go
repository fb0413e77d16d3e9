package domain

import "context"

// ProgressFunc receives cumulative byte counts while a download runs.
// It may be invoked from a goroutine other than the caller's.
type ProgressFunc func(Progress)

// DownloadRequest describes a single download handed to the extractor
type DownloadRequest struct {
	URL     string
	Format  string
	Quality string
	// OutputTemplate is the destination path without extension; the extractor
	// appends the extension it ends up producing.
	OutputTemplate string
}

// Extractor defines the interface for the video platform backend
type Extractor interface {
	// FetchMetadata resolves metadata for a single video
	FetchMetadata(ctx context.Context, url string) (*VideoMetadata, error)

	// FetchPlaylist enumerates a playlist without resolving its entries
	FetchPlaylist(ctx context.Context, url string) (*PlaylistMetadata, error)

	// Download retrieves the media and returns the local file path
	Download(ctx context.Context, req DownloadRequest, onProgress ProgressFunc) (string, error)
}
