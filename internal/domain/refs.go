package domain

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// EncodePathRef turns a server path into a single percent-encoded URL
// segment.
func EncodePathRef(path string) string {
	return url.PathEscape(path)
}

func DecodePathRef(ref string) (string, error) {
	path, err := url.PathUnescape(ref)
	if err != nil || strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidReference, ref)
	}
	return path, nil
}

// subtitleExt is appended by SubtitleRef so players pick the format from the
// URL. Sidecar WebVTT paths keep their own extension underneath it.
const subtitleExt = ".vtt"

// SubtitleRef is "streamIndex:encodedPath.vtt".
func SubtitleRef(streamIndex int, path string) string {
	return strconv.Itoa(streamIndex) + ":" + EncodePathRef(path) + subtitleExt
}

// ParseSubtitleRef reverses SubtitleRef. Exactly one trailing ".vtt" is
// removed, so a ref without it is taken as a bare encoded path.
func ParseSubtitleRef(ref string) (int, string, error) {
	ref = strings.TrimSuffix(ref, subtitleExt)
	idx, encoded, ok := strings.Cut(ref, ":")
	if !ok {
		return 0, "", fmt.Errorf("%w: %q", ErrInvalidReference, ref)
	}
	n, err := strconv.Atoi(idx)
	if err != nil || n < 0 {
		return 0, "", fmt.Errorf("%w: bad stream index %q", ErrInvalidReference, idx)
	}
	path, err := DecodePathRef(encoded)
	if err != nil {
		return 0, "", err
	}
	return n, path, nil
}
