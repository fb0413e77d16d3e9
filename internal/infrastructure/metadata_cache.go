package infrastructure

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/yourusername/ytgrab-go/internal/domain"
)

var (
	metadataCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ytgrab_metadata_cache_hits_total",
		Help: "Total number of metadata lookups served from the cache.",
	})
	metadataCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ytgrab_metadata_cache_misses_total",
		Help: "Total number of metadata lookups that reached yt-dlp.",
	})
)

// CachingExtractor wraps an Extractor with an expiring LRU cache of video
// metadata keyed by URL. Playlists and downloads pass through.
type CachingExtractor struct {
	next  domain.Extractor
	cache *expirable.LRU[string, *domain.VideoMetadata]
}

// NewCachingExtractor creates a metadata cache holding at most size entries for ttl
func NewCachingExtractor(next domain.Extractor, size int, ttl time.Duration) *CachingExtractor {
	return &CachingExtractor{
		next:  next,
		cache: expirable.NewLRU[string, *domain.VideoMetadata](size, nil, ttl),
	}
}

// FetchMetadata returns cached metadata or resolves and caches it.
// Failures are never cached.
func (c *CachingExtractor) FetchMetadata(ctx context.Context, url string) (*domain.VideoMetadata, error) {
	if meta, ok := c.cache.Get(url); ok {
		metadataCacheHitsTotal.Inc()
		return meta, nil
	}
	metadataCacheMissesTotal.Inc()

	meta, err := c.next.FetchMetadata(ctx, url)
	if err != nil {
		return nil, err
	}
	c.cache.Add(url, meta)
	return meta, nil
}

// FetchPlaylist delegates to the wrapped extractor
func (c *CachingExtractor) FetchPlaylist(ctx context.Context, url string) (*domain.PlaylistMetadata, error) {
	return c.next.FetchPlaylist(ctx, url)
}

// Download delegates to the wrapped extractor
func (c *CachingExtractor) Download(ctx context.Context, req domain.DownloadRequest, onProgress domain.ProgressFunc) (string, error) {
	return c.next.Download(ctx, req, onProgress)
}

// Len returns the number of cached entries
func (c *CachingExtractor) Len() int {
	return c.cache.Len()
}
