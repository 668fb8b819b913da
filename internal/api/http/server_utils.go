package apihttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"cinemastream/internal/app"
	"cinemastream/internal/domain"
)

type errorEnvelope struct {
	Error errorPayload `json:"error"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorEnvelope{Error: errorPayload{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeDomainError maps sentinel errors from the session and media layers.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrResourceExhausted):
		w.Header().Set("Retry-After", "5")
		writeError(w, http.StatusServiceUnavailable, "server_busy", "transcoding capacity reached, try again shortly")
	case errors.Is(err, domain.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session_not_found", "session not found")
	case errors.Is(err, domain.ErrInvalidReference):
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid media reference")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "not found")
	case errors.Is(err, domain.ErrUnsupported):
		writeError(w, http.StatusUnsupportedMediaType, "unsupported", "unsupported media")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// resolveMediaPath decodes a path reference and checks that it points inside
// one of the configured media roots.
// localOnly guards routes backed by local ffmpeg and filesystem access.
// A delegating backend streams from its own server.
func (s *Server) localOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.backend != app.BackendLocal {
			writeError(w, http.StatusNotImplemented, "not_configured", "local streaming is disabled for the "+s.backend+" backend")
			return
		}
		h(w, r)
	}
}

func (s *Server) resolveMediaPath(ref string) (string, error) {
	path, err := domain.DecodePathRef(ref)
	if err != nil {
		return "", err
	}
	return s.checkMediaPath(path)
}

func (s *Server) checkMediaPath(path string) (string, error) {
	if !filepath.IsAbs(path) {
		return "", fmt.Errorf("%w: path must be absolute", domain.ErrInvalidReference)
	}
	clean := filepath.Clean(path)
	for _, root := range s.mediaRoots {
		if clean == root || strings.HasPrefix(clean, root+string(filepath.Separator)) {
			return clean, nil
		}
	}
	return "", fmt.Errorf("%w: path outside media roots", domain.ErrInvalidReference)
}

// baseURL is PUBLIC_BASE_URL when set, otherwise the scheme and host the
// request arrived on, honouring reverse proxy headers.
func (s *Server) baseURL(r *http.Request) string {
	if s.publicBaseURL != "" {
		return s.publicBaseURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := strings.TrimSpace(strings.Split(r.Header.Get("X-Forwarded-Proto"), ",")[0]); proto != "" {
		scheme = proto
	}
	host := r.Host
	if fwd := strings.TrimSpace(strings.Split(r.Header.Get("X-Forwarded-Host"), ",")[0]); fwd != "" {
		host = fwd
	}
	return scheme + "://" + host
}

func absoluteURL(base, u string) string {
	if u == "" || !strings.HasPrefix(u, "/") || strings.HasPrefix(u, "//") {
		return u
	}
	return base + u
}

func (s *Server) absolutize(r *http.Request, info *domain.PlaybackInfo) {
	base := s.baseURL(r)
	info.StreamURL = absoluteURL(base, info.StreamURL)
	info.DirectStreamURL = absoluteURL(base, info.DirectStreamURL)
	for i := range info.Subtitles {
		info.Subtitles[i].URL = absoluteURL(base, info.Subtitles[i].URL)
		info.Subtitles[i].StreamURL = absoluteURL(base, info.Subtitles[i].StreamURL)
	}
}

// clientID identifies the viewer owning a transcode session.
func clientID(r *http.Request) string {
	if id := strings.TrimSpace(r.URL.Query().Get("client")); id != "" {
		return truncate(id, 64)
	}
	if id := strings.TrimSpace(r.Header.Get("X-Client-Id")); id != "" {
		return truncate(id, 64)
	}
	return clientIP(r)
}
