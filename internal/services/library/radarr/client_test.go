package radarr

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinemastream/internal/domain"
)

func newServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/movie" {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "k", r.Header.Get("X-Api-Key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestMovieByTMDBWithFile(t *testing.T) {
	srv := newServer(t, `[{"id":7,"title":"Fight Club","tmdbId":550,"hasFile":true,"movieFile":{"path":"/data/movies/Fight Club (1999)/Fight Club.mkv"}}]`)
	c := NewClient(Config{BaseURL: srv.URL, APIKey: "k", Client: srv.Client()})

	m, err := c.MovieByTMDB(context.Background(), 550)
	require.NoError(t, err)
	assert.Equal(t, "Fight Club", m.Title)
	assert.True(t, m.HasFile)
	assert.Equal(t, "/data/movies/Fight Club (1999)/Fight Club.mkv", m.Path)
}

func TestMovieByTMDBWithoutFile(t *testing.T) {
	srv := newServer(t, `[{"id":7,"title":"Fight Club","tmdbId":550,"hasFile":false}]`)
	c := NewClient(Config{BaseURL: srv.URL, APIKey: "k", Client: srv.Client()})

	m, err := c.MovieByTMDB(context.Background(), 550)
	require.NoError(t, err)
	assert.False(t, m.HasFile)
	assert.Empty(t, m.Path)
}

func TestMovieByTMDBHasFileFlagWithoutPath(t *testing.T) {
	srv := newServer(t, `[{"id":7,"title":"X","tmdbId":1,"hasFile":true,"movieFile":{"path":" "}}]`)
	c := NewClient(Config{BaseURL: srv.URL, APIKey: "k", Client: srv.Client()})

	m, err := c.MovieByTMDB(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, m.HasFile)
}

func TestMovieByTMDBUnknown(t *testing.T) {
	srv := newServer(t, `[]`)
	c := NewClient(Config{BaseURL: srv.URL, APIKey: "k", Client: srv.Client()})

	_, err := c.MovieByTMDB(context.Background(), 999)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
