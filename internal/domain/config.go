package domain

import "time"

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Download  DownloadConfig  `mapstructure:"download"`
	Extractor ExtractorConfig `mapstructure:"extractor"`
	Cache     CacheConfig     `mapstructure:"cache"`
	History   HistoryConfig   `mapstructure:"history"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Host        string   `mapstructure:"host"`
	Port        int      `mapstructure:"port"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// DownloadConfig contains download-related configuration
type DownloadConfig struct {
	Dir string `mapstructure:"dir"`
	// MaxConcurrent caps simultaneously running jobs; 0 means unlimited
	MaxConcurrent int `mapstructure:"max_concurrent"`
}

// ExtractorConfig contains yt-dlp related configuration
type ExtractorConfig struct {
	YTDLPBinary     string        `mapstructure:"ytdlp_binary"`
	FFmpegLocation  string        `mapstructure:"ffmpeg_location"`
	CookieFile      string        `mapstructure:"cookie_file"`
	MetadataTimeout time.Duration `mapstructure:"metadata_timeout"`
	AudioQuality    string        `mapstructure:"audio_quality"` // kbps for mp3 extraction
}

// CacheConfig contains metadata cache configuration
type CacheConfig struct {
	Size int           `mapstructure:"size"` // 0 disables the cache
	TTL  time.Duration `mapstructure:"ttl"`
}

// HistoryConfig contains history store configuration
type HistoryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	DatabasePath string `mapstructure:"database_path"`
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or file path
	LogsDir    string `mapstructure:"logs_dir"`    // categorized event logs, empty disables
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8001,
			CORSOrigins: []string{"*"},
		},
		Download: DownloadConfig{
			Dir:           "/tmp/downloads",
			MaxConcurrent: 0,
		},
		Extractor: ExtractorConfig{
			YTDLPBinary:     "yt-dlp",
			MetadataTimeout: 60 * time.Second,
			AudioQuality:    "192",
		},
		Cache: CacheConfig{
			Size: 128,
			TTL:  10 * time.Minute,
		},
		History: HistoryConfig{
			Enabled:      false,
			DatabasePath: "$HOME/.ytgrab/history.db",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stdout",
		},
	}
}
