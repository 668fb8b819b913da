package apihttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinemastream/internal/domain"
)

const moviePath = "/media/movies/Heat (1995)/Heat.mp4"

func newStreamServer(t *testing.T, extra ...ServerOption) (*Server, afero.Fs) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, moviePath, []byte("0123456789abcdef"), 0o644))
	opts := append([]ServerOption{
		WithFs(fsys),
		WithMediaRoots([]string{"/media"}),
		WithLogger(discardLogger()),
	}, extra...)
	return NewServer(opts...), fsys
}

func directURL(p string) string {
	return "/api/stream/direct/" + domain.EncodePathRef(p)
}

func TestDirectStreamServesWholeFile(t *testing.T) {
	server, _ := newStreamServer(t)

	rec := serve(server, httptest.NewRequest(http.MethodGet, directURL(moviePath), nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
	assert.Equal(t, "bytes", rec.Header().Get("Accept-Ranges"))
	assert.Equal(t, "0123456789abcdef", rec.Body.String())
}

func TestDirectStreamHonoursRange(t *testing.T) {
	server, _ := newStreamServer(t)

	req := httptest.NewRequest(http.MethodGet, directURL(moviePath), nil)
	req.Header.Set("Range", "bytes=4-7")
	rec := serve(server, req)

	require.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "bytes 4-7/16", rec.Header().Get("Content-Range"))
	assert.Equal(t, "4567", rec.Body.String())
}

func TestDirectStreamHead(t *testing.T) {
	server, _ := newStreamServer(t)

	rec := serve(server, httptest.NewRequest(http.MethodHead, directURL(moviePath), nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "16", rec.Header().Get("Content-Length"))
	assert.Zero(t, rec.Body.Len())
}

func TestDirectStreamSniffsUnknownExtension(t *testing.T) {
	server, fsys := newStreamServer(t)
	require.NoError(t, afero.WriteFile(fsys, "/media/notes.bin", []byte("%PDF-1.4\n..."), 0o644))

	rec := serve(server, httptest.NewRequest(http.MethodGet, directURL("/media/notes.bin"), nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF-1.4\n...", rec.Body.String())
}

func TestDirectStreamRejectsPathsOutsideRoots(t *testing.T) {
	server, fsys := newStreamServer(t)
	require.NoError(t, afero.WriteFile(fsys, "/etc/passwd", []byte("root"), 0o644))

	for _, p := range []string{
		"/etc/passwd",
		"/media/../etc/passwd",
		"/mediax/file.mp4",
		"media/movies/Heat (1995)/Heat.mp4",
	} {
		rec := serve(server, httptest.NewRequest(http.MethodGet, directURL(p), nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, p)
		assert.NotContains(t, rec.Body.String(), "root", p)
	}
}

func TestDirectStreamWithoutRootsDeniesEverything(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, moviePath, []byte("x"), 0o644))
	server := NewServer(WithFs(fsys), WithLogger(discardLogger()))

	rec := serve(server, httptest.NewRequest(http.MethodGet, directURL(moviePath), nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDirectStreamMissingFile(t *testing.T) {
	server, _ := newStreamServer(t)
	rec := serve(server, httptest.NewRequest(http.MethodGet, directURL("/media/missing.mkv"), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func hlsURL(p string, query string) string {
	u := "/api/stream/hls/" + domain.EncodePathRef(p) + "/master.m3u8"
	if query != "" {
		u += "?" + query
	}
	return u
}

func TestHLSMasterRedirectsToSessionPlaylist(t *testing.T) {
	sessions := &fakeSessions{session: domain.StreamingSession{ID: "s1"}}
	server, _ := newStreamServer(t, WithSessions(sessions))

	req := httptest.NewRequest(http.MethodGet, hlsURL(moviePath, "audio=2&quality=720p&start=30&client=tv-1"), nil)
	rec := serve(server, req)

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/api/transcode/sessions/s1/index.m3u8", rec.Header().Get("Location"))
	require.Len(t, sessions.requests, 1)
	got := sessions.requests[0]
	assert.Equal(t, moviePath, got.Path)
	assert.Equal(t, 2, got.AudioTrack)
	assert.Equal(t, domain.Quality720p, got.Quality)
	assert.InDelta(t, 30.0, got.StartSeconds, 0.001)
	assert.Equal(t, "tv-1", got.ClientID)
}

func TestHLSMasterDefaults(t *testing.T) {
	sessions := &fakeSessions{session: domain.StreamingSession{ID: "s1"}}
	server, _ := newStreamServer(t, WithSessions(sessions))

	req := httptest.NewRequest(http.MethodGet, hlsURL(moviePath, ""), nil)
	req.Header.Set("X-Client-Id", "browser-7")
	rec := serve(server, req)

	require.Equal(t, http.StatusFound, rec.Code)
	got := sessions.requests[0]
	assert.Equal(t, -1, got.AudioTrack)
	assert.Equal(t, domain.QualityOriginal, got.Quality)
	assert.Equal(t, "browser-7", got.ClientID)
}

func TestHLSMasterRejectsBadQuery(t *testing.T) {
	sessions := &fakeSessions{session: domain.StreamingSession{ID: "s1"}}
	server, _ := newStreamServer(t, WithSessions(sessions))

	for _, q := range []string{"audio=x", "audio=-2", "quality=4k", "start=-5"} {
		rec := serve(server, httptest.NewRequest(http.MethodGet, hlsURL(moviePath, q), nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
	assert.Empty(t, sessions.requests)
}

func TestHLSMasterBusy(t *testing.T) {
	sessions := &fakeSessions{acquireErr: domain.ErrResourceExhausted}
	server, _ := newStreamServer(t, WithSessions(sessions))

	rec := serve(server, httptest.NewRequest(http.MethodGet, hlsURL(moviePath, ""), nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "5", rec.Header().Get("Retry-After"))
	var body errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "server_busy", body.Error.Code)
}

func TestHLSMasterReadyTimeout(t *testing.T) {
	sessions := &fakeSessions{session: domain.StreamingSession{ID: "s1"}, waitErr: context.DeadlineExceeded}
	server, _ := newStreamServer(t, WithSessions(sessions), WithReadyTimeout(20*time.Millisecond))

	rec := serve(server, httptest.NewRequest(http.MethodGet, hlsURL(moviePath, ""), nil))

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Empty(t, sessions.stopped)
}

func TestHLSMasterTranscoderFailureStopsSession(t *testing.T) {
	sessions := &fakeSessions{session: domain.StreamingSession{ID: "s1"}, waitErr: errors.New("ffmpeg exited: status 1")}
	server, _ := newStreamServer(t, WithSessions(sessions))

	rec := serve(server, httptest.NewRequest(http.MethodGet, hlsURL(moviePath, ""), nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, []string{"s1"}, sessions.stopped)
}

func TestHLSMasterOutsideRoots(t *testing.T) {
	sessions := &fakeSessions{session: domain.StreamingSession{ID: "s1"}}
	server, _ := newStreamServer(t, WithSessions(sessions))

	rec := serve(server, httptest.NewRequest(http.MethodGet, hlsURL("/srv/secret.mkv", ""), nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, sessions.requests)
}

func TestSessionFiles(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/sessions/s1/index.m3u8", []byte("#EXTM3U\n"), 0o644))
	require.NoError(t, afero.WriteFile(fsys, "/sessions/s1/seg-00000.ts", []byte("segment"), 0o644))
	sessions := &fakeSessions{fs: fsys, session: domain.StreamingSession{ID: "s1"}}
	server := NewServer(WithSessions(sessions), WithLogger(discardLogger()))

	rec := serve(server, httptest.NewRequest(http.MethodGet, "/api/transcode/sessions/s1/index.m3u8", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.apple.mpegurl", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "#EXTM3U\n", rec.Body.String())

	rec = serve(server, httptest.NewRequest(http.MethodGet, "/api/transcode/sessions/s1/seg-00000.ts", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "video/mp2t", rec.Header().Get("Content-Type"))
	assert.Equal(t, "segment", rec.Body.String())

	rec = serve(server, httptest.NewRequest(http.MethodGet, "/api/transcode/sessions/s1/seg-00009.ts", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(server, httptest.NewRequest(http.MethodGet, "/api/transcode/sessions/gone/index.m3u8", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionSeekStopAndList(t *testing.T) {
	sessions := &fakeSessions{session: domain.StreamingSession{ID: "s1", State: domain.SessionRunning}}
	server := NewServer(WithSessions(sessions), WithLogger(discardLogger()))

	rec := serve(server, httptest.NewRequest(http.MethodGet, "/api/transcode/sessions", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list []domain.StreamingSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "s1", list[0].ID)

	rec = serve(server, httptest.NewRequest(http.MethodPost, "/api/transcode/sessions/s1/seek", strings.NewReader(`{"position":120.5}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []float64{120.5}, sessions.seeks)

	for _, body := range []string{`{}`, `{"position":-1}`, `nope`} {
		rec = serve(server, httptest.NewRequest(http.MethodPost, "/api/transcode/sessions/s1/seek", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}

	rec = serve(server, httptest.NewRequest(http.MethodPost, "/api/transcode/sessions/other/seek", strings.NewReader(`{"position":1}`)))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(server, httptest.NewRequest(http.MethodDelete, "/api/transcode/sessions/s1", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = serve(server, httptest.NewRequest(http.MethodDelete, "/api/transcode/sessions/other", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionRoutesWithoutManager(t *testing.T) {
	server := NewServer(WithLogger(discardLogger()))

	rec := serve(server, httptest.NewRequest(http.MethodGet, "/api/transcode/sessions", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = serve(server, httptest.NewRequest(http.MethodGet, hlsURL(moviePath, ""), nil))
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestEncodedPathStaysOneSegment(t *testing.T) {
	p := "/media/tv/Show/Season 01/Show - S01E02.mkv"
	assert.NotContains(t, strings.TrimPrefix(directURL(p), "/api/stream/direct/"), "/")
	decoded, err := url.PathUnescape(strings.TrimPrefix(directURL(p), "/api/stream/direct/"))
	require.NoError(t, err)
	assert.Equal(t, p, decoded)
}
