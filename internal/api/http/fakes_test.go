package apihttp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path"
	"sync"

	"github.com/spf13/afero"

	"cinemastream/internal/app"
	"cinemastream/internal/domain"
	"cinemastream/internal/services/transcode"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakePlayback struct {
	info    domain.PlaybackInfo
	err     error
	movies  []int
	episode [3]int
}

func (f *fakePlayback) MoviePlayback(_ context.Context, tmdbID int) (domain.PlaybackInfo, error) {
	f.movies = append(f.movies, tmdbID)
	return f.info, f.err
}

func (f *fakePlayback) EpisodePlayback(_ context.Context, tmdbID, season, episode int) (domain.PlaybackInfo, error) {
	f.episode = [3]int{tmdbID, season, episode}
	return f.info, f.err
}

type fakeReporter struct {
	mu       sync.Mutex
	progress []domain.PlaybackProgress
	stopped  []domain.PlaybackProgress
	err      error
}

func (f *fakeReporter) ReportProgress(_ context.Context, p domain.PlaybackProgress) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progress = append(f.progress, p)
	return f.err
}

func (f *fakeReporter) ReportStopped(_ context.Context, p domain.PlaybackProgress) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, p)
	return f.err
}

type fakeSessions struct {
	fs         afero.Fs
	session    domain.StreamingSession
	acquireErr error
	waitErr    error
	seekErr    error
	requests   []transcode.SessionRequest
	stopped    []string
	seeks      []float64
}

func (f *fakeSessions) Acquire(_ context.Context, req transcode.SessionRequest) (domain.StreamingSession, error) {
	f.requests = append(f.requests, req)
	if f.acquireErr != nil {
		return domain.StreamingSession{}, f.acquireErr
	}
	return f.session, nil
}

func (f *fakeSessions) WaitReady(ctx context.Context, _ string) error {
	if errors.Is(f.waitErr, context.DeadlineExceeded) {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.waitErr
}

func (f *fakeSessions) Seek(id string, seconds float64) (domain.StreamingSession, error) {
	if f.seekErr != nil {
		return domain.StreamingSession{}, f.seekErr
	}
	if id != f.session.ID {
		return domain.StreamingSession{}, domain.ErrSessionNotFound
	}
	f.seeks = append(f.seeks, seconds)
	s := f.session
	s.StartSeconds = seconds
	return s, nil
}

func (f *fakeSessions) Stop(id string) error {
	if id != f.session.ID {
		return domain.ErrSessionNotFound
	}
	f.stopped = append(f.stopped, id)
	return nil
}

func (f *fakeSessions) List() []domain.StreamingSession {
	if f.session.ID == "" {
		return nil
	}
	return []domain.StreamingSession{f.session}
}

func (f *fakeSessions) Open(id, name string) (afero.File, error) {
	if id != f.session.ID {
		return nil, domain.ErrSessionNotFound
	}
	file, err := f.fs.Open(path.Join("/sessions", id, name))
	if err != nil {
		return nil, domain.ErrNotFound
	}
	return file, nil
}

type fakeSubtitles struct {
	vtt   []byte
	err   error
	path  string
	index int
}

func (f *fakeSubtitles) Extract(_ context.Context, p string, idx int) ([]byte, error) {
	f.path = p
	f.index = idx
	return f.vtt, f.err
}

type fakeSettings struct {
	current app.TranscodeSettings
	err     error
}

func (f *fakeSettings) Get() app.TranscodeSettings { return f.current }

func (f *fakeSettings) Update(s app.TranscodeSettings) (app.TranscodeSettings, error) {
	if f.err != nil {
		return app.TranscodeSettings{}, f.err
	}
	if s.Preset != "" {
		f.current.Preset = s.Preset
	}
	if s.CRF != 0 {
		f.current.CRF = s.CRF
	}
	if s.AudioBitrate != "" {
		f.current.AudioBitrate = s.AudioBitrate
	}
	return f.current, nil
}
