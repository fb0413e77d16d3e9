package domain

// VideoMetadata is the normalized description of a single remote video
type VideoMetadata struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Uploader    string        `json:"uploader"`
	Duration    float64       `json:"duration"`
	ViewCount   int64         `json:"view_count"`
	Thumbnail   string        `json:"thumbnail"`
	Description string        `json:"description"`
	UploadDate  string        `json:"upload_date"`
	Formats     []MediaFormat `json:"formats"`
}

// MediaFormat is one available encoding of a video
type MediaFormat struct {
	FormatID   string  `json:"format_id"`
	Ext        string  `json:"ext"`
	Quality    float64 `json:"quality"`
	Filesize   int64   `json:"filesize"`
	VCodec     string  `json:"vcodec"`
	ACodec     string  `json:"acodec"`
	FormatNote string  `json:"format_note"`
}

// PlaylistMetadata is a flat listing of a remote playlist
type PlaylistMetadata struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Uploader string          `json:"uploader"`
	Entries  []PlaylistEntry `json:"entries"`
}

// PlaylistEntry summarizes one playlist item without resolving it
type PlaylistEntry struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	URL      string  `json:"url"`
	Duration float64 `json:"duration"`
}

// Container formats accepted for downloads and exposed in metadata
const (
	FormatMP4  = "mp4"
	FormatWebM = "webm"
	FormatMP3  = "mp3"
	FormatM4A  = "m4a"
)

// QualityBest removes the resolution constraint
const QualityBest = "best"

// Request defaults
const (
	DefaultFormat  = FormatMP4
	DefaultQuality = "720p"
)

// MaxDescriptionLength bounds the description returned in metadata
const MaxDescriptionLength = 500

// IsAllowedFormat checks if a container is in the allow-list
func IsAllowedFormat(ext string) bool {
	switch ext {
	case FormatMP4, FormatWebM, FormatMP3, FormatM4A:
		return true
	}
	return false
}

// IsAudioFormat checks if a container is audio-only
func IsAudioFormat(ext string) bool {
	return ext == FormatMP3 || ext == FormatM4A
}

// TruncateDescription cuts a description to MaxDescriptionLength runes and marks the cut
func TruncateDescription(s string) string {
	if s == "" {
		return ""
	}
	r := []rune(s)
	if len(r) <= MaxDescriptionLength {
		return s
	}
	return string(r[:MaxDescriptionLength]) + "..."
}

// QualityHeight parses a "<N>p" quality token into its vertical resolution.
// ok is false for "best" and for anything malformed.
func QualityHeight(quality string) (height int, ok bool) {
	if len(quality) < 2 || quality[len(quality)-1] != 'p' {
		return 0, false
	}
	for _, c := range quality[:len(quality)-1] {
		if c < '0' || c > '9' {
			return 0, false
		}
		height = height*10 + int(c-'0')
		if height > 100000 {
			return 0, false
		}
	}
	return height, height > 0
}
