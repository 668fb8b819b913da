package transcode

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"

	"cinemastream/internal/domain"
)

func newTestSubtitles(t *testing.T, run runFunc) (*Subtitles, afero.Fs) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	if err := afero.WriteFile(fsys, "/media/movie.mkv", []byte("mkv"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := NewSubtitles("ffmpeg", fsys, discardLogger())
	s.run = run
	return s, fsys
}

func TestExtractEmbeddedSubtitle(t *testing.T) {
	var gotArgs []string
	s, _ := newTestSubtitles(t, func(_ context.Context, _ string, args []string) ([]byte, []byte, error) {
		gotArgs = args
		return []byte("WEBVTT\n\n00:00:01.000 --> 00:00:02.000\nHi\n"), nil, nil
	})

	out, err := s.Extract(context.Background(), "/media/movie.mkv", 3)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if string(out[:6]) != "WEBVTT" {
		t.Fatalf("output = %q", out)
	}
	if !containsPair(gotArgs, "-map", "0:3") || !containsPair(gotArgs, "-f", "webvtt") {
		t.Fatalf("args = %v", gotArgs)
	}
}

func TestExtractBitmapSubtitleUnsupported(t *testing.T) {
	s, _ := newTestSubtitles(t, func(context.Context, string, []string) ([]byte, []byte, error) {
		return nil, []byte("Subtitle encoding currently only possible from text to text or bitmap to bitmap"), errors.New("exit status 1")
	})

	_, err := s.Extract(context.Background(), "/media/movie.mkv", 4)
	if !errors.Is(err, domain.ErrUnsupported) {
		t.Fatalf("err = %v, want ErrUnsupported", err)
	}
}

func TestExtractFailure(t *testing.T) {
	s, _ := newTestSubtitles(t, func(context.Context, string, []string) ([]byte, []byte, error) {
		return nil, []byte("Stream map '0:9' matches no streams."), errors.New("exit status 1")
	})
	_, err := s.Extract(context.Background(), "/media/movie.mkv", 9)
	if err == nil || errors.Is(err, domain.ErrUnsupported) {
		t.Fatalf("err = %v, want generic failure", err)
	}
}

func TestExtractSidecarVTTReadsFile(t *testing.T) {
	s, fsys := newTestSubtitles(t, func(context.Context, string, []string) ([]byte, []byte, error) {
		t.Fatal("ffmpeg must not run for a vtt sidecar")
		return nil, nil, nil
	})
	if err := afero.WriteFile(fsys, "/media/movie.en.vtt", []byte("WEBVTT\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := s.Extract(context.Background(), "/media/movie.en.vtt", 0)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if string(out) != "WEBVTT\n" {
		t.Fatalf("output = %q", out)
	}
}

func TestExtractMissingFile(t *testing.T) {
	s, _ := newTestSubtitles(t, nil)
	if _, err := s.Extract(context.Background(), "/media/gone.mkv", 2); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, err := s.Extract(context.Background(), "/media/movie.mkv", -1); !errors.Is(err, domain.ErrInvalidReference) {
		t.Fatalf("err = %v, want ErrInvalidReference", err)
	}
}
