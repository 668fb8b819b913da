package domain

import "time"

type StreamType string

const (
	StreamVideo    StreamType = "video"
	StreamAudio    StreamType = "audio"
	StreamSubtitle StreamType = "subtitle"
)

// TicksPerMillisecond converts between 100ns ticks and milliseconds.
const TicksPerMillisecond = 10_000

// MediaStream is one decoded track of a file. Index is the container's own
// stream index and is only meaningful for that file.
type MediaStream struct {
	Index    int        `json:"index"`
	Type     StreamType `json:"type"`
	Codec    string     `json:"codec"`
	Language string     `json:"language,omitempty"`
	Title    string     `json:"title,omitempty"`
	Default  bool       `json:"default"`
	Forced   bool       `json:"forced"`

	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`

	Channels int `json:"channels,omitempty"`

	External   bool   `json:"external"`
	SourcePath string `json:"-"`
}

type MediaFormat struct {
	DurationTicks int64  `json:"durationTicks"`
	Size          int64  `json:"size"`
	Container     string `json:"container"`
	BitRate       int64  `json:"bitRate"`
}

func (f MediaFormat) DurationMillis() int64 {
	return f.DurationTicks / TicksPerMillisecond
}

func (f MediaFormat) Duration() time.Duration {
	return time.Duration(f.DurationTicks) * 100
}

// ProbeResult is the output of a single probe call.
type ProbeResult struct {
	Format  MediaFormat   `json:"format"`
	Streams []MediaStream `json:"streams"`
}

func (r ProbeResult) StreamsOf(t StreamType) []MediaStream {
	var out []MediaStream
	for _, s := range r.Streams {
		if s.Type == t {
			out = append(out, s)
		}
	}
	return out
}

// FirstOf returns the first stream of the given type.
func (r ProbeResult) FirstOf(t StreamType) (MediaStream, bool) {
	for _, s := range r.Streams {
		if s.Type == t {
			return s, true
		}
	}
	return MediaStream{}, false
}
