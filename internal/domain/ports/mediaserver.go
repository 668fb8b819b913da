package ports

import (
	"context"
	"time"

	"cinemastream/internal/domain"
)

// ItemQuery narrows a media server catalog search to one file.
type ItemQuery struct {
	Path    string
	Kind    domain.ContentKind
	Season  int
	Episode int
}

type MediaServerItem struct {
	ID   string
	Name string
	Path string
}

type MediaServerStream struct {
	Index        int
	Type         domain.StreamType
	Codec        string
	Language     string
	DisplayTitle string
	Width        int
	Height       int
	Channels     int
	Default      bool
	Forced       bool
	External     bool
	TextSubtitle bool
	DeliveryURL  string
}

type MediaServerSource struct {
	ID                   string
	Path                 string
	Container            string
	Size                 int64
	Bitrate              int64
	RunTimeTicks         int64
	SupportsDirectPlay   bool
	SupportsDirectStream bool
	SupportsTranscoding  bool
	DefaultAudioIndex    int
	Streams              []MediaServerStream
}

type PlaybackNegotiation struct {
	PlaySessionID string
	Source        MediaServerSource
}

type PlaybackRequest struct {
	MaxBitrate          int64
	AudioStreamIndex    *int
	SubtitleStreamIndex *int
}

// StreamOptions parameterise the adaptive stream URL. SubtitleStreamIndex
// is -1 for none.
type StreamOptions struct {
	AudioStreamIndex    int
	SubtitleStreamIndex int
	MaxBitrate          int64
	BurnSubtitles       bool
}

// MediaServer is an external server that owns transcoding for the files it
// has indexed. FindItemByPath returns domain.ErrNotFound on a miss.
type MediaServer interface {
	FindItemByPath(ctx context.Context, q ItemQuery) (MediaServerItem, error)
	NegotiatePlayback(ctx context.Context, itemID string, req PlaybackRequest) (PlaybackNegotiation, error)
	HLSURL(itemID string, n PlaybackNegotiation, opts StreamOptions) string
	DirectURL(itemID string, n PlaybackNegotiation) string
	SubtitleURL(itemID string, n PlaybackNegotiation, s MediaServerStream) string
	Refresh(ctx context.Context) error
	ReportProgress(ctx context.Context, p domain.PlaybackProgress) error
	ReportStopped(ctx context.Context, p domain.PlaybackProgress) error
}

// Cooldown grants key at most once per ttl across the process (or cluster
// when backed by a shared store).
type Cooldown interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}
