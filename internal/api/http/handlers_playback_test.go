package apihttp

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinemastream/internal/domain"
)

func samplePlayback() domain.PlaybackInfo {
	return domain.PlaybackInfo{
		Title:      "Fight Club",
		Kind:       domain.KindMovie,
		Path:       "/media/movies/Fight Club (1999)/Fight Club.mkv",
		DurationMs: 8_340_000,
		Strategy:   domain.StrategyDirect,
		StreamURL:  "/api/stream/direct/%2Fmedia%2Fmovies%2FFight%20Club.mkv",
		Audio:      []domain.AudioTrack{{ID: 0, StreamIndex: 1, Codec: "aac", Channels: 2, Selected: true}},
		Subtitles: []domain.SubtitleTrack{
			{ID: 0, StreamIndex: 2, Format: "subrip", Embedded: true, URL: "/api/subtitles/2:%2Fmedia%2Fmovies%2FFight%20Club.mkv"},
			{ID: 1, Format: "vtt", External: true, URL: "https://cdn.example.com/subs.vtt"},
		},
	}
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestMoviePlaybackReturnsAbsoluteURLs(t *testing.T) {
	provider := &fakePlayback{info: samplePlayback()}
	server := NewServer(WithPlayback(provider, "local"), WithLogger(discardLogger()))

	req := httptest.NewRequest(http.MethodGet, "/api/playback/movie/550", nil)
	req.Host = "stream.local:8080"
	rec := serve(server, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int{550}, provider.movies)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["found"])
	assert.Equal(t, "http://stream.local:8080/api/stream/direct/%2Fmedia%2Fmovies%2FFight%20Club.mkv", body["streamUrl"])
	assert.NotContains(t, body, "path")

	subs := body["subtitles"].([]any)
	require.Len(t, subs, 2)
	assert.Equal(t, "http://stream.local:8080/api/subtitles/2:%2Fmedia%2Fmovies%2FFight%20Club.mkv", subs[0].(map[string]any)["url"])
	assert.Equal(t, "https://cdn.example.com/subs.vtt", subs[1].(map[string]any)["url"])
}

func TestPlaybackHonoursForwardedHeadersAndPublicBase(t *testing.T) {
	provider := &fakePlayback{info: samplePlayback()}

	server := NewServer(WithPlayback(provider, "local"), WithLogger(discardLogger()))
	req := httptest.NewRequest(http.MethodGet, "/api/playback/movie/550", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	req.Header.Set("X-Forwarded-Host", "watch.example.com")
	rec := serve(server, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"streamUrl":"https://watch.example.com/api/stream/direct/`)

	server = NewServer(WithPlayback(provider, "local"), WithPublicBaseURL("https://public.example.com/"), WithLogger(discardLogger()))
	rec = serve(server, httptest.NewRequest(http.MethodGet, "/api/playback/movie/550", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"streamUrl":"https://public.example.com/api/stream/direct/`)
}

func TestEpisodePlaybackPassesCoordinates(t *testing.T) {
	provider := &fakePlayback{info: samplePlayback()}
	server := NewServer(WithPlayback(provider, "jellyfin"), WithLogger(discardLogger()))

	rec := serve(server, httptest.NewRequest(http.MethodGet, "/api/playback/tv/1399/1/2", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, [3]int{1399, 1, 2}, provider.episode)
}

func TestPlaybackFailuresCollapseToNotFound(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		message string
	}{
		{"not in library", domain.ErrNotFound, "unavailable"},
		{"no file", fmt.Errorf("movie 550: %w", domain.ErrNoFile), "not available yet"},
		{"not indexed", domain.ErrNotIndexed, "not available yet"},
		{"probe failed", domain.ErrProbeFailed, "unavailable"},
		{"upstream down", domain.ErrUpstreamUnavailable, "unavailable"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := NewServer(WithPlayback(&fakePlayback{err: tc.err}, "local"), WithLogger(discardLogger()))
			rec := serve(server, httptest.NewRequest(http.MethodGet, "/api/playback/movie/550", nil))

			require.Equal(t, http.StatusNotFound, rec.Code)
			var body playbackNotFound
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.False(t, body.Found)
			assert.Equal(t, tc.message, body.Message)
		})
	}
}

func TestPlaybackRouteRejectsNonNumericIDs(t *testing.T) {
	server := NewServer(WithPlayback(&fakePlayback{}, "local"), WithLogger(discardLogger()))
	for _, p := range []string{"/api/playback/movie/abc", "/api/playback/tv/1399/x/2"} {
		rec := serve(server, httptest.NewRequest(http.MethodGet, p, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, p)
	}
}

func TestPlaybackWithoutProvider(t *testing.T) {
	server := NewServer(WithLogger(discardLogger()))
	rec := serve(server, httptest.NewRequest(http.MethodGet, "/api/playback/movie/550", nil))
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestProgressReport(t *testing.T) {
	reporter := &fakeReporter{}
	server := NewServer(WithProgressReporter(reporter), WithLogger(discardLogger()))

	body := `{"kind":"episode","tmdbId":1399,"season":1,"episode":2,"positionMs":60000,"durationMs":3600000,"playSessionId":"ps1"}`
	rec := serve(server, httptest.NewRequest(http.MethodPost, "/api/playback/progress", strings.NewReader(body)))

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Len(t, reporter.progress, 1)
	got := reporter.progress[0]
	assert.Equal(t, "episode:1399:1:2", got.Key.String())
	assert.EqualValues(t, 60000, got.PositionMs)
	assert.Equal(t, "ps1", got.PlaySessionID)
	assert.False(t, got.Stopped)
}

func TestStoppedReportIsBestEffort(t *testing.T) {
	reporter := &fakeReporter{err: domain.ErrUpstreamUnavailable}
	server := NewServer(WithProgressReporter(reporter), WithLogger(discardLogger()))

	body := `{"kind":"movie","tmdbId":550,"season":3,"positionMs":1000}`
	rec := serve(server, httptest.NewRequest(http.MethodPost, "/api/playback/stopped", strings.NewReader(body)))

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Len(t, reporter.stopped, 1)
	assert.True(t, reporter.stopped[0].Stopped)
	assert.Equal(t, "movie:550", reporter.stopped[0].Key.String())
}

func TestProgressReportValidation(t *testing.T) {
	reporter := &fakeReporter{}
	server := NewServer(WithProgressReporter(reporter), WithLogger(discardLogger()))

	for _, body := range []string{
		`not json`,
		`{"kind":"show","tmdbId":1}`,
		`{"kind":"movie"}`,
		`{"kind":"movie","tmdbId":5,"positionMs":-1}`,
	} {
		rec := serve(server, httptest.NewRequest(http.MethodPost, "/api/playback/progress", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	assert.Empty(t, reporter.progress)
}

func TestProgressWithoutReporterStillAccepted(t *testing.T) {
	server := NewServer(WithLogger(discardLogger()))
	rec := serve(server, httptest.NewRequest(http.MethodPost, "/api/playback/progress", strings.NewReader(`{"kind":"movie","tmdbId":5}`)))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
