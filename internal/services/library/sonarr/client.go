package sonarr

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"cinemastream/internal/domain"
	"cinemastream/internal/domain/ports"
	"cinemastream/internal/services/httpapi"
)

type Config struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

type Client struct {
	api *httpapi.Client
}

var _ ports.SeriesLibrary = (*Client)(nil)

func NewClient(cfg Config) *Client {
	return &Client{api: httpapi.New(httpapi.Config{
		Service:    "sonarr",
		BaseURL:    cfg.BaseURL,
		AuthHeader: "X-Api-Key",
		APIKey:     cfg.APIKey,
		Client:     cfg.Client,
	})}
}

type seriesResource struct {
	ID     int    `json:"id"`
	Title  string `json:"title"`
	TVDBID int    `json:"tvdbId"`
	TMDBID int    `json:"tmdbId"`
}

type episodeResource struct {
	SeasonNumber  int    `json:"seasonNumber"`
	EpisodeNumber int    `json:"episodeNumber"`
	Title         string `json:"title"`
	HasFile       bool   `json:"hasFile"`
	EpisodeFileID int    `json:"episodeFileId"`
}

type episodeFileResource struct {
	ID   int    `json:"id"`
	Path string `json:"path"`
}

// SeriesByTMDB translates a catalog show id into Sonarr's series id. Sonarr
// does not index series by that id, so the cross-reference lookup endpoint
// is asked first; candidates that are already in the library carry a
// non-zero id. A candidate that is only known by tvdb id is matched against
// the library by that id.
func (c *Client) SeriesByTMDB(ctx context.Context, tmdbID int) (ports.SeriesEntry, error) {
	var candidates []seriesResource
	query := url.Values{"term": {"tmdb:" + strconv.Itoa(tmdbID)}}
	if err := c.api.GetJSON(ctx, "/api/v3/series/lookup", query, &candidates); err != nil {
		return ports.SeriesEntry{}, err
	}

	for _, s := range candidates {
		if s.TMDBID != 0 && s.TMDBID != tmdbID {
			continue
		}
		if s.ID > 0 {
			return ports.SeriesEntry{ID: s.ID, Title: s.Title}, nil
		}
		if s.TVDBID > 0 {
			var library []seriesResource
			q := url.Values{"tvdbId": {strconv.Itoa(s.TVDBID)}}
			if err := c.api.GetJSON(ctx, "/api/v3/series", q, &library); err != nil {
				return ports.SeriesEntry{}, err
			}
			for _, ls := range library {
				if ls.ID > 0 && ls.TVDBID == s.TVDBID {
					return ports.SeriesEntry{ID: ls.ID, Title: ls.Title}, nil
				}
			}
		}
	}
	return ports.SeriesEntry{}, fmt.Errorf("%w: sonarr has no series with tmdb id %d", domain.ErrNotFound, tmdbID)
}

func (c *Client) Episodes(ctx context.Context, seriesID int) ([]ports.EpisodeEntry, error) {
	var episodes []episodeResource
	query := url.Values{"seriesId": {strconv.Itoa(seriesID)}}
	if err := c.api.GetJSON(ctx, "/api/v3/episode", query, &episodes); err != nil {
		return nil, err
	}
	out := make([]ports.EpisodeEntry, 0, len(episodes))
	for _, e := range episodes {
		out = append(out, ports.EpisodeEntry{
			Season:        e.SeasonNumber,
			Episode:       e.EpisodeNumber,
			Title:         e.Title,
			HasFile:       e.HasFile,
			EpisodeFileID: e.EpisodeFileID,
		})
	}
	return out, nil
}

// EpisodeFilePath fetches the file location. The episode listing does not
// carry it.
func (c *Client) EpisodeFilePath(ctx context.Context, episodeFileID int) (string, error) {
	var file episodeFileResource
	if err := c.api.GetJSON(ctx, "/api/v3/episodefile/"+strconv.Itoa(episodeFileID), nil, &file); err != nil {
		return "", err
	}
	path := strings.TrimSpace(file.Path)
	if path == "" {
		return "", fmt.Errorf("%w: episode file %d has no path", domain.ErrNoFile, episodeFileID)
	}
	return path, nil
}
