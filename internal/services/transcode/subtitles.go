package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"

	"cinemastream/internal/domain"
)

const extractTimeout = 60 * time.Second

type runFunc func(ctx context.Context, binary string, args []string) (stdout, stderr []byte, err error)

func execRun(ctx context.Context, binary string, args []string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.WaitDelay = killWaitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// Subtitles converts embedded or sidecar subtitle tracks to WebVTT.
type Subtitles struct {
	binary string
	fs     afero.Fs
	logger *slog.Logger
	run    runFunc
}

func NewSubtitles(ffmpegPath string, fsys afero.Fs, logger *slog.Logger) *Subtitles {
	if strings.TrimSpace(ffmpegPath) == "" {
		ffmpegPath = "ffmpeg"
	}
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Subtitles{binary: ffmpegPath, fs: fsys, logger: logger, run: execRun}
}

// Extract returns stream streamIndex of path as WebVTT. Bitmap subtitle codecs
// cannot be converted and yield ErrUnsupported.
func (s *Subtitles) Extract(ctx context.Context, path string, streamIndex int) ([]byte, error) {
	if streamIndex < 0 {
		return nil, fmt.Errorf("%w: negative stream index", domain.ErrInvalidReference)
	}
	info, err := s.fs.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, path)
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", domain.ErrNotFound, path)
	}

	if streamIndex == 0 && strings.EqualFold(filepath.Ext(path), ".vtt") {
		return afero.ReadFile(s.fs, path)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, extractTimeout)
		defer cancel()
	}

	args := []string{
		"-hide_banner",
		"-nostdin",
		"-loglevel", "error",
		"-i", path,
		"-map", "0:" + strconv.Itoa(streamIndex),
		"-f", "webvtt",
		"pipe:1",
	}
	stdout, stderr, err := s.run(ctx, s.binary, args)
	if err != nil {
		diag := strings.TrimSpace(string(stderr))
		if isBitmapSubtitleError(diag) {
			return nil, fmt.Errorf("%w: stream %d is a bitmap subtitle", domain.ErrUnsupported, streamIndex)
		}
		s.logger.Warn("subtitle extraction failed",
			slog.String("path", path),
			slog.Int("stream", streamIndex),
			slog.String("error", err.Error()),
			slog.String("stderr", diag),
		)
		return nil, fmt.Errorf("extract subtitle stream %d: %w", streamIndex, err)
	}
	if !bytes.HasPrefix(bytes.TrimPrefix(stdout, []byte("\ufeff")), []byte("WEBVTT")) {
		return nil, fmt.Errorf("extract subtitle stream %d: unexpected output", streamIndex)
	}
	return stdout, nil
}

func isBitmapSubtitleError(stderr string) bool {
	lower := strings.ToLower(stderr)
	return strings.Contains(lower, "only possible from text to text") ||
		strings.Contains(lower, "bitmap to bitmap")
}
