package ffprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/sync/singleflight"

	"cinemastream/internal/domain"
	"cinemastream/internal/metrics"
)

const maxProbeTimeout = 30 * time.Second

// runFunc executes the probe binary and returns its stdout and stderr.
type runFunc func(ctx context.Context, binary string, args []string) ([]byte, []byte, error)

type Prober struct {
	binary string
	fs     afero.Fs
	logger *slog.Logger
	run    runFunc
	group  singleflight.Group
}

type Option func(*Prober)

func WithFs(fs afero.Fs) Option {
	return func(p *Prober) {
		if fs != nil {
			p.fs = fs
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Prober) {
		if l != nil {
			p.logger = l
		}
	}
}

func New(binary string, opts ...Option) *Prober {
	bin := strings.TrimSpace(binary)
	if bin == "" {
		bin = "ffprobe"
	}
	p := &Prober{
		binary: bin,
		fs:     afero.NewOsFs(),
		logger: slog.Default(),
		run:    execRun,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe extracts container and stream metadata for path. Concurrent calls for
// the same path share one ffprobe process; nothing is cached afterwards.
func (p *Prober) Probe(ctx context.Context, filePath string) (domain.ProbeResult, error) {
	path := strings.TrimSpace(filePath)
	if path == "" {
		return domain.ProbeResult{}, errors.New("file path is required")
	}

	info, err := p.fs.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.ProbeResult{}, fmt.Errorf("%w: %s", domain.ErrNotFound, path)
		}
		return domain.ProbeResult{}, fmt.Errorf("stat media file: %w", err)
	}
	if info.IsDir() {
		return domain.ProbeResult{}, fmt.Errorf("%w: %s is a directory", domain.ErrNotFound, path)
	}

	// The shared run outlives any single caller so one aborted request does
	// not fail the others waiting on it.
	ch := p.group.DoChan(path, func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), maxProbeTimeout)
		defer cancel()
		return p.probeFile(runCtx, path)
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return domain.ProbeResult{}, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return domain.ProbeResult{}, res.Err
	}
	result := res.Val.(domain.ProbeResult)
	// Each caller owns its slice.
	result.Streams = append([]domain.MediaStream(nil), result.Streams...)
	return result, nil
}

func (p *Prober) probeFile(ctx context.Context, path string) (domain.ProbeResult, error) {
	start := time.Now()
	stdout, stderr, runErr := p.run(ctx, p.binary, []string{
		"-v", "error",
		"-probesize", "100M",
		"-analyzeduration", "100M",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		path,
	})
	metrics.ProbeDuration.Observe(time.Since(start).Seconds())

	if runErr != nil {
		metrics.ProbeFailuresTotal.Inc()
		msg := strings.TrimSpace(string(stderr))
		p.logger.Warn("ffprobe failed", slog.String("path", path), slog.String("error", runErr.Error()), slog.String("stderr", msg))
		if msg == "" {
			return domain.ProbeResult{}, fmt.Errorf("%w: ffprobe: %v", domain.ErrProbeFailed, runErr)
		}
		return domain.ProbeResult{}, fmt.Errorf("%w: ffprobe: %v: %s", domain.ErrProbeFailed, runErr, msg)
	}

	result, err := parseProbeOutput(stdout)
	if err != nil {
		metrics.ProbeFailuresTotal.Inc()
		p.logger.Warn("ffprobe output unparseable", slog.String("path", path), slog.String("error", err.Error()))
		return domain.ProbeResult{}, fmt.Errorf("%w: parse ffprobe output: %v", domain.ErrProbeFailed, err)
	}

	if result.Format.Container == "" {
		result.Format.Container = containerFromExt(path)
	}
	if result.Format.Size == 0 {
		if fi, err := p.fs.Stat(path); err == nil {
			result.Format.Size = fi.Size()
		}
	}

	result.Streams = append(result.Streams, p.sidecarSubtitles(path, nextIndex(result.Streams))...)
	return result, nil
}

func execRun(ctx context.Context, binary string, args []string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// probePayload is the subset of ffprobe JSON output we parse.
type probePayload struct {
	Streams []probeStream `json:"streams"`
	Format  *probeFormat  `json:"format"`
}

type probeStream struct {
	Index       int               `json:"index"`
	CodecType   string            `json:"codec_type"`
	CodecName   string            `json:"codec_name"`
	Width       int               `json:"width"`
	Height      int               `json:"height"`
	Channels    int               `json:"channels"`
	Tags        map[string]string `json:"tags"`
	Disposition struct {
		Default     int `json:"default"`
		Forced      int `json:"forced"`
		AttachedPic int `json:"attached_pic"`
	} `json:"disposition"`
}

type probeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
}

// parseProbeOutput parses raw ffprobe JSON output into a domain.ProbeResult.
func parseProbeOutput(data []byte) (domain.ProbeResult, error) {
	var payload probePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return domain.ProbeResult{}, err
	}
	if payload.Format == nil && len(payload.Streams) == 0 {
		return domain.ProbeResult{}, errors.New("no streams or format in output")
	}

	streams := make([]domain.MediaStream, 0, len(payload.Streams))
	for _, s := range payload.Streams {
		st := domain.MediaStream{
			Index:    s.Index,
			Codec:    strings.ToLower(s.CodecName),
			Language: strings.TrimSpace(getTag(s.Tags, "language")),
			Title:    strings.TrimSpace(getTag(s.Tags, "title")),
			Default:  s.Disposition.Default == 1,
			Forced:   s.Disposition.Forced == 1,
		}
		switch s.CodecType {
		case "video":
			// Embedded cover art shows up as a video stream.
			if s.Disposition.AttachedPic == 1 {
				continue
			}
			st.Type = domain.StreamVideo
			st.Width = s.Width
			st.Height = s.Height
		case "audio":
			st.Type = domain.StreamAudio
			st.Channels = s.Channels
		case "subtitle":
			st.Type = domain.StreamSubtitle
		default:
			continue
		}
		streams = append(streams, st)
	}

	var format domain.MediaFormat
	if payload.Format != nil {
		format.Container = containerFromFormatName(payload.Format.FormatName)
		if d, err := strconv.ParseFloat(payload.Format.Duration, 64); err == nil && d > 0 {
			format.DurationTicks = int64(math.Round(d * 1e7))
		}
		if n, err := strconv.ParseInt(payload.Format.Size, 10, 64); err == nil {
			format.Size = n
		}
		if n, err := strconv.ParseInt(payload.Format.BitRate, 10, 64); err == nil {
			format.BitRate = n
		}
	}

	return domain.ProbeResult{Format: format, Streams: streams}, nil
}

// containerFromFormatName picks a single name from ffprobe's comma list.
// Matroska and WebM share a demuxer so the list is ambiguous; the caller
// falls back to the extension in that case.
func containerFromFormatName(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	switch {
	case name == "":
		return ""
	case strings.HasPrefix(name, "matroska"):
		return ""
	case strings.HasPrefix(name, "mov,mp4"):
		return ""
	}
	if i := strings.IndexByte(name, ','); i >= 0 {
		return name[:i]
	}
	return name
}

func containerFromExt(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

func nextIndex(streams []domain.MediaStream) int {
	next := 0
	for _, s := range streams {
		if s.Index >= next {
			next = s.Index + 1
		}
	}
	return next
}

func getTag(tags map[string]string, key string) string {
	if len(tags) == 0 {
		return ""
	}
	if value, ok := tags[key]; ok {
		return value
	}
	if value, ok := tags[strings.ToUpper(key)]; ok {
		return value
	}
	return ""
}
