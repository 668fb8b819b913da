package ports

import (
	"context"

	"cinemastream/internal/domain"
)

//go:generate mockgen -destination=mocks/library_mock.go -package=mocks cinemastream/internal/domain/ports MovieLibrary,SeriesLibrary

// MovieEntry is what the movie library manager knows about a catalog id.
type MovieEntry struct {
	ID      int
	Title   string
	HasFile bool
	Path    string
}

type SeriesEntry struct {
	ID    int
	Title string
}

type EpisodeEntry struct {
	Season        int
	Episode       int
	Title         string
	HasFile       bool
	EpisodeFileID int
}

// MovieLibrary returns domain.ErrNotFound when the catalog id is unknown.
type MovieLibrary interface {
	MovieByTMDB(ctx context.Context, tmdbID int) (MovieEntry, error)
}

type SeriesLibrary interface {
	SeriesByTMDB(ctx context.Context, tmdbID int) (SeriesEntry, error)
	Episodes(ctx context.Context, seriesID int) ([]EpisodeEntry, error)
	EpisodeFilePath(ctx context.Context, episodeFileID int) (string, error)
}

// Resolver maps catalog ids to files on disk.
type Resolver interface {
	Movie(ctx context.Context, tmdbID int) (domain.ResolvedMedia, error)
	Episode(ctx context.Context, tmdbID, season, episode int) (domain.ResolvedMedia, error)
}
