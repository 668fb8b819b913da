package jellyfin

// deviceProfile is the subset of Jellyfin's DeviceProfile we send. It
// describes what a mainstream browser can play without help.
type deviceProfile struct {
	Name                string               `json:"Name"`
	MaxStreamingBitrate int64                `json:"MaxStreamingBitrate,omitempty"`
	DirectPlayProfiles  []directPlayProfile  `json:"DirectPlayProfiles"`
	TranscodingProfiles []transcodingProfile `json:"TranscodingProfiles"`
	SubtitleProfiles    []subtitleProfile    `json:"SubtitleProfiles"`
}

type directPlayProfile struct {
	Container  string `json:"Container"`
	Type       string `json:"Type"`
	VideoCodec string `json:"VideoCodec,omitempty"`
	AudioCodec string `json:"AudioCodec,omitempty"`
}

type transcodingProfile struct {
	Container           string `json:"Container"`
	Type                string `json:"Type"`
	VideoCodec          string `json:"VideoCodec"`
	AudioCodec          string `json:"AudioCodec"`
	Protocol            string `json:"Protocol"`
	Context             string `json:"Context"`
	MaxAudioChannels    string `json:"MaxAudioChannels"`
	MinSegments         int    `json:"MinSegments"`
	BreakOnNonKeyFrames bool   `json:"BreakOnNonKeyFrames"`
}

type subtitleProfile struct {
	Format string `json:"Format"`
	Method string `json:"Method"`
}

const browserAudioCodecs = "aac,mp3,opus,flac,vorbis"

func browserProfile(maxBitrate int64) deviceProfile {
	return deviceProfile{
		Name:                "cinemastream-browser",
		MaxStreamingBitrate: maxBitrate,
		DirectPlayProfiles: []directPlayProfile{
			{Container: "mp4,m4v", Type: "Video", VideoCodec: "h264,hevc,av1,vp9", AudioCodec: browserAudioCodecs},
			{Container: "webm", Type: "Video", VideoCodec: "vp8,vp9,av1", AudioCodec: "opus,vorbis"},
		},
		TranscodingProfiles: []transcodingProfile{
			{
				Container:           "ts",
				Type:                "Video",
				VideoCodec:          "h264",
				AudioCodec:          "aac,mp3",
				Protocol:            "hls",
				Context:             "Streaming",
				MaxAudioChannels:    "2",
				MinSegments:         1,
				BreakOnNonKeyFrames: true,
			},
		},
		SubtitleProfiles: []subtitleProfile{
			{Format: "vtt", Method: "External"},
			{Format: "srt", Method: "External"},
			{Format: "ass", Method: "External"},
			{Format: "ssa", Method: "External"},
			{Format: "vtt", Method: "Hls"},
			{Format: "pgssub", Method: "Encode"},
			{Format: "dvdsub", Method: "Encode"},
		},
	}
}
