package jellyfin

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"cinemastream/internal/domain"
	"cinemastream/internal/domain/ports"
	"cinemastream/internal/services/httpapi"
)

const defaultPageSize = 200

type Config struct {
	BaseURL  string
	APIKey   string
	UserID   string
	DeviceID string
	PathMap  PathMap
	Client   *http.Client
	PageSize int
}

type Client struct {
	api      *httpapi.Client
	userID   string
	deviceID string
	pathMap  PathMap
	pageSize int
}

var _ ports.MediaServer = (*Client)(nil)

func NewClient(cfg Config) *Client {
	deviceID := strings.TrimSpace(cfg.DeviceID)
	if deviceID == "" {
		deviceID = uuid.NewString()
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Client{
		api: httpapi.New(httpapi.Config{
			Service:    "jellyfin",
			BaseURL:    cfg.BaseURL,
			AuthHeader: "X-Emby-Token",
			APIKey:     cfg.APIKey,
			Client:     cfg.Client,
		}),
		userID:   strings.TrimSpace(cfg.UserID),
		deviceID: deviceID,
		pathMap:  cfg.PathMap,
		pageSize: pageSize,
	}
}

type itemsResponse struct {
	Items            []itemDTO `json:"Items"`
	TotalRecordCount int       `json:"TotalRecordCount"`
}

type itemDTO struct {
	ID   string `json:"Id"`
	Name string `json:"Name"`
	Path string `json:"Path"`
}

// FindItemByPath pages through the catalog looking for an item whose source
// path equals the local path after path mapping. Episodes are narrowed by
// season and episode number first.
func (c *Client) FindItemByPath(ctx context.Context, q ports.ItemQuery) (ports.MediaServerItem, error) {
	want := normalizePath(c.pathMap.ToServer(q.Path))

	itemType := "Movie"
	if q.Kind == domain.KindEpisode {
		itemType = "Episode"
	}
	params := url.Values{
		"Recursive":        {"true"},
		"IncludeItemTypes": {itemType},
		"Fields":           {"Path"},
		"Limit":            {strconv.Itoa(c.pageSize)},
	}
	if c.userID != "" {
		params.Set("UserId", c.userID)
	}
	if q.Kind == domain.KindEpisode {
		params.Set("ParentIndexNumber", strconv.Itoa(q.Season))
		params.Set("IndexNumber", strconv.Itoa(q.Episode))
	}

	for start := 0; ; start += c.pageSize {
		params.Set("StartIndex", strconv.Itoa(start))
		var page itemsResponse
		if err := c.api.GetJSON(ctx, "/Items", params, &page); err != nil {
			return ports.MediaServerItem{}, err
		}
		for _, it := range page.Items {
			if normalizePath(it.Path) == want {
				return ports.MediaServerItem{ID: it.ID, Name: it.Name, Path: it.Path}, nil
			}
		}
		if len(page.Items) < c.pageSize || start+len(page.Items) >= page.TotalRecordCount {
			break
		}
	}
	return ports.MediaServerItem{}, fmt.Errorf("%w: jellyfin has no item at %s", domain.ErrNotFound, want)
}

type playbackInfoRequest struct {
	UserID              string        `json:"UserId,omitempty"`
	DeviceProfile       deviceProfile `json:"DeviceProfile"`
	MaxStreamingBitrate int64         `json:"MaxStreamingBitrate,omitempty"`
	AudioStreamIndex    *int          `json:"AudioStreamIndex,omitempty"`
	SubtitleStreamIndex *int          `json:"SubtitleStreamIndex,omitempty"`
	EnableDirectPlay    bool          `json:"EnableDirectPlay"`
	EnableDirectStream  bool          `json:"EnableDirectStream"`
	EnableTranscoding   bool          `json:"EnableTranscoding"`
	AutoOpenLiveStream  bool          `json:"AutoOpenLiveStream"`
}

type playbackInfoResponse struct {
	MediaSources  []mediaSourceDTO `json:"MediaSources"`
	PlaySessionID string           `json:"PlaySessionId"`
	ErrorCode     string           `json:"ErrorCode"`
}

type mediaSourceDTO struct {
	ID                      string           `json:"Id"`
	Path                    string           `json:"Path"`
	Container               string           `json:"Container"`
	Size                    int64            `json:"Size"`
	Bitrate                 int64            `json:"Bitrate"`
	RunTimeTicks            int64            `json:"RunTimeTicks"`
	SupportsDirectPlay      bool             `json:"SupportsDirectPlay"`
	SupportsDirectStream    bool             `json:"SupportsDirectStream"`
	SupportsTranscoding     bool             `json:"SupportsTranscoding"`
	DefaultAudioStreamIndex *int             `json:"DefaultAudioStreamIndex"`
	MediaStreams            []mediaStreamDTO `json:"MediaStreams"`
}

type mediaStreamDTO struct {
	Index                int    `json:"Index"`
	Type                 string `json:"Type"`
	Codec                string `json:"Codec"`
	Language             string `json:"Language"`
	DisplayTitle         string `json:"DisplayTitle"`
	Width                int    `json:"Width"`
	Height               int    `json:"Height"`
	Channels             int    `json:"Channels"`
	IsDefault            bool   `json:"IsDefault"`
	IsForced             bool   `json:"IsForced"`
	IsExternal           bool   `json:"IsExternal"`
	IsTextSubtitleStream bool   `json:"IsTextSubtitleStream"`
	DeliveryURL          string `json:"DeliveryUrl"`
}

// NegotiatePlayback declares the browser profile and lets the server pick a
// media source and decide between direct play, remux and transcode.
func (c *Client) NegotiatePlayback(ctx context.Context, itemID string, req ports.PlaybackRequest) (ports.PlaybackNegotiation, error) {
	body := playbackInfoRequest{
		UserID:              c.userID,
		DeviceProfile:       browserProfile(req.MaxBitrate),
		MaxStreamingBitrate: req.MaxBitrate,
		AudioStreamIndex:    req.AudioStreamIndex,
		SubtitleStreamIndex: req.SubtitleStreamIndex,
		EnableDirectPlay:    true,
		EnableDirectStream:  true,
		EnableTranscoding:   true,
	}
	var query url.Values
	if c.userID != "" {
		query = url.Values{"UserId": {c.userID}}
	}

	var resp playbackInfoResponse
	if err := c.api.PostJSON(ctx, "/Items/"+url.PathEscape(itemID)+"/PlaybackInfo", query, body, &resp); err != nil {
		return ports.PlaybackNegotiation{}, err
	}
	if resp.ErrorCode != "" {
		return ports.PlaybackNegotiation{}, fmt.Errorf("%w: jellyfin playback info: %s", domain.ErrUpstreamUnavailable, resp.ErrorCode)
	}
	if len(resp.MediaSources) == 0 {
		return ports.PlaybackNegotiation{}, fmt.Errorf("%w: jellyfin returned no media sources for %s", domain.ErrNotPlayable, itemID)
	}

	src := resp.MediaSources[0]
	return ports.PlaybackNegotiation{PlaySessionID: resp.PlaySessionID, Source: toSource(src)}, nil
}

func toSource(src mediaSourceDTO) ports.MediaServerSource {
	out := ports.MediaServerSource{
		ID:                   src.ID,
		Path:                 src.Path,
		Container:            src.Container,
		Size:                 src.Size,
		Bitrate:              src.Bitrate,
		RunTimeTicks:         src.RunTimeTicks,
		SupportsDirectPlay:   src.SupportsDirectPlay,
		SupportsDirectStream: src.SupportsDirectStream,
		SupportsTranscoding:  src.SupportsTranscoding,
		DefaultAudioIndex:    -1,
		Streams:              make([]ports.MediaServerStream, 0, len(src.MediaStreams)),
	}
	if src.DefaultAudioStreamIndex != nil {
		out.DefaultAudioIndex = *src.DefaultAudioStreamIndex
	}
	for _, s := range src.MediaStreams {
		var typ domain.StreamType
		switch s.Type {
		case "Video":
			typ = domain.StreamVideo
		case "Audio":
			typ = domain.StreamAudio
		case "Subtitle":
			typ = domain.StreamSubtitle
		default:
			continue
		}
		out.Streams = append(out.Streams, ports.MediaServerStream{
			Index:        s.Index,
			Type:         typ,
			Codec:        s.Codec,
			Language:     s.Language,
			DisplayTitle: s.DisplayTitle,
			Width:        s.Width,
			Height:       s.Height,
			Channels:     s.Channels,
			Default:      s.IsDefault,
			Forced:       s.IsForced,
			External:     s.IsExternal,
			TextSubtitle: s.IsTextSubtitleStream,
			DeliveryURL:  s.DeliveryURL,
		})
	}
	return out
}

// HLSURL builds the server's master playlist URL. The api key is embedded so
// the browser can fetch it without headers.
func (c *Client) HLSURL(itemID string, n ports.PlaybackNegotiation, opts ports.StreamOptions) string {
	q := url.Values{
		"MediaSourceId":               {n.Source.ID},
		"PlaySessionId":               {n.PlaySessionID},
		"DeviceId":                    {c.deviceID},
		"api_key":                     {c.api.APIKey()},
		"VideoCodec":                  {"h264"},
		"AudioCodec":                  {"aac,mp3"},
		"TranscodingMaxAudioChannels": {"2"},
		"SegmentContainer":            {"ts"},
		"BreakOnNonKeyFrames":         {"true"},
	}
	if opts.MaxBitrate > 0 {
		q.Set("MaxStreamingBitrate", strconv.FormatInt(opts.MaxBitrate, 10))
	}
	if opts.AudioStreamIndex >= 0 {
		q.Set("AudioStreamIndex", strconv.Itoa(opts.AudioStreamIndex))
	}
	if opts.SubtitleStreamIndex >= 0 {
		q.Set("SubtitleStreamIndex", strconv.Itoa(opts.SubtitleStreamIndex))
		if opts.BurnSubtitles {
			q.Set("SubtitleMethod", "Encode")
		} else {
			q.Set("SubtitleMethod", "Hls")
		}
	}
	return c.api.BaseURL() + "/Videos/" + url.PathEscape(itemID) + "/master.m3u8?" + q.Encode()
}

func (c *Client) DirectURL(itemID string, n ports.PlaybackNegotiation) string {
	q := url.Values{
		"static":        {"true"},
		"MediaSourceId": {n.Source.ID},
		"DeviceId":      {c.deviceID},
		"api_key":       {c.api.APIKey()},
	}
	return c.api.BaseURL() + "/Videos/" + url.PathEscape(itemID) + "/stream?" + q.Encode()
}

// SubtitleURL returns the sidecar file URL for external subtitles and the
// server's WebVTT conversion endpoint for embedded text subtitles. Image
// subtitles cannot be converted and only work burned in, so they get none.
func (c *Client) SubtitleURL(itemID string, n ports.PlaybackNegotiation, s ports.MediaServerStream) string {
	if s.External && s.DeliveryURL != "" {
		return c.withKey(c.api.BaseURL() + s.DeliveryURL)
	}
	if !s.TextSubtitle {
		return ""
	}
	p := fmt.Sprintf("/Videos/%s/%s/Subtitles/%d/0/Stream.vtt", url.PathEscape(itemID), url.PathEscape(n.Source.ID), s.Index)
	return c.withKey(c.api.BaseURL() + p)
}

func (c *Client) withKey(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if q.Get("api_key") == "" {
		q.Set("api_key", c.api.APIKey())
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Client) Refresh(ctx context.Context) error {
	return c.api.PostJSON(ctx, "/Library/Refresh", nil, nil, nil)
}

type playbackReport struct {
	ItemID        string `json:"ItemId"`
	MediaSourceID string `json:"MediaSourceId,omitempty"`
	PlaySessionID string `json:"PlaySessionId,omitempty"`
	PositionTicks int64  `json:"PositionTicks"`
	IsPaused      bool   `json:"IsPaused,omitempty"`
	CanSeek       bool   `json:"CanSeek,omitempty"`
}

func (c *Client) ReportProgress(ctx context.Context, p domain.PlaybackProgress) error {
	return c.api.PostJSON(ctx, "/Sessions/Playing/Progress", nil, reportFrom(p, true), nil)
}

func (c *Client) ReportStopped(ctx context.Context, p domain.PlaybackProgress) error {
	return c.api.PostJSON(ctx, "/Sessions/Playing/Stopped", nil, reportFrom(p, false), nil)
}

func reportFrom(p domain.PlaybackProgress, playing bool) playbackReport {
	r := playbackReport{
		ItemID:        p.ItemID,
		MediaSourceID: p.MediaSourceID,
		PlaySessionID: p.PlaySessionID,
		PositionTicks: p.PositionMs * domain.TicksPerMillisecond,
	}
	if playing {
		r.IsPaused = p.Paused
		r.CanSeek = true
	}
	return r
}

func normalizePath(p string) string {
	p = strings.ReplaceAll(strings.TrimSpace(p), "\\", "/")
	if p == "" {
		return ""
	}
	return path.Clean(p)
}
