package radarr

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

var _ ports.MovieLibrary = (*Client)(nil)

func NewClient(cfg Config) *Client {
	return &Client{api: httpapi.New(httpapi.Config{
		Service:    "radarr",
		BaseURL:    cfg.BaseURL,
		AuthHeader: "X-Api-Key",
		APIKey:     cfg.APIKey,
		Client:     cfg.Client,
	})}
}

type movieResource struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	TMDBID    int    `json:"tmdbId"`
	HasFile   bool   `json:"hasFile"`
	MovieFile *struct {
		Path string `json:"path"`
	} `json:"movieFile"`
}

// MovieByTMDB looks the movie up by its catalog id. A movie that is tracked
// but not yet downloaded is returned with HasFile false.
func (c *Client) MovieByTMDB(ctx context.Context, tmdbID int) (ports.MovieEntry, error) {
	var movies []movieResource
	query := url.Values{"tmdbId": {strconv.Itoa(tmdbID)}}
	if err := c.api.GetJSON(ctx, "/api/v3/movie", query, &movies); err != nil {
		return ports.MovieEntry{}, err
	}

	for _, m := range movies {
		if m.TMDBID != 0 && m.TMDBID != tmdbID {
			continue
		}
		entry := ports.MovieEntry{ID: m.ID, Title: m.Title, HasFile: m.HasFile}
		if m.MovieFile != nil {
			entry.Path = strings.TrimSpace(m.MovieFile.Path)
		}
		if entry.Path == "" {
			entry.HasFile = false
		}
		return entry, nil
	}
	return ports.MovieEntry{}, fmt.Errorf("%w: radarr has no movie with tmdb id %d", domain.ErrNotFound, tmdbID)
}
