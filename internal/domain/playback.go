package domain

type ContentKind string

const (
	KindMovie   ContentKind = "movie"
	KindEpisode ContentKind = "episode"
)

type Strategy string

const (
	StrategyDirect    Strategy = "direct"
	StrategyRemux     Strategy = "remux"
	StrategyTranscode Strategy = "transcode"
)

// ResolvedMedia is a library entry that has a file on disk.
type ResolvedMedia struct {
	Kind  ContentKind `json:"kind"`
	Title string      `json:"title"`
	Path  string      `json:"-"`
}

type MediaInfo struct {
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	VideoCodec string `json:"videoCodec"`
	AudioCodec string `json:"audioCodec"`
	Container  string `json:"container"`
}

type AudioTrack struct {
	ID          int    `json:"id"`
	StreamIndex int    `json:"streamIndex"`
	Language    string `json:"language"`
	Codec       string `json:"codec"`
	Channels    int    `json:"channels"`
	Title       string `json:"title"`
	Selected    bool   `json:"selected"`
}

type SubtitleTrack struct {
	ID          int    `json:"id"`
	StreamIndex int    `json:"streamIndex"`
	Language    string `json:"language"`
	Format      string `json:"format"`
	Title       string `json:"title"`
	Embedded    bool   `json:"embedded"`
	External    bool   `json:"external"`
	Forced      bool   `json:"forced"`
	URL         string `json:"url,omitempty"`
	// StreamURL is an adaptive stream with this track selected, set when
	// the track has to be burned into the video.
	StreamURL string `json:"streamUrl,omitempty"`
}

// PlaybackInfo is handed to the player. Path stays server side.
type PlaybackInfo struct {
	Found      bool            `json:"found"`
	Message    string          `json:"message,omitempty"`
	Title      string          `json:"title"`
	Kind       ContentKind     `json:"kind"`
	Path       string          `json:"-"`
	DurationMs int64           `json:"durationMs"`
	MediaInfo  MediaInfo       `json:"mediaInfo"`
	Strategy   Strategy        `json:"strategy"`
	StreamURL  string          `json:"streamUrl"`
	Audio      []AudioTrack    `json:"audioTracks"`
	Subtitles  []SubtitleTrack `json:"subtitles"`

	DirectStreamURL string `json:"directStreamUrl,omitempty"`
	ItemID          string `json:"itemId,omitempty"`
	MediaSourceID   string `json:"mediaSourceId,omitempty"`
	PlaySessionID   string `json:"playSessionId,omitempty"`
}

// SelectedAudio returns the default-selected audio track.
func (p PlaybackInfo) SelectedAudio() (AudioTrack, bool) {
	for _, a := range p.Audio {
		if a.Selected {
			return a, true
		}
	}
	return AudioTrack{}, false
}
