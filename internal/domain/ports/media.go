package ports

import (
	"context"

	"cinemastream/internal/domain"
)

type Prober interface {
	Probe(ctx context.Context, path string) (domain.ProbeResult, error)
}

// PlaybackProvider builds the player contract. The local and media-server
// backends both implement it.
type PlaybackProvider interface {
	MoviePlayback(ctx context.Context, tmdbID int) (domain.PlaybackInfo, error)
	EpisodePlayback(ctx context.Context, tmdbID, season, episode int) (domain.PlaybackInfo, error)
}

// ProgressReporter receives position updates. Implementations are best-effort.
type ProgressReporter interface {
	ReportProgress(ctx context.Context, p domain.PlaybackProgress) error
	ReportStopped(ctx context.Context, p domain.PlaybackProgress) error
}
