package apihttp

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"cinemastream/internal/app"
)

func (s *Server) handleGetTranscodeSettings(w http.ResponseWriter, _ *http.Request) {
	if s.settings == nil {
		writeError(w, http.StatusNotImplemented, "not_configured", "transcode settings not configured")
		return
	}
	writeJSON(w, http.StatusOK, s.settings.Get())
}

func (s *Server) handleUpdateTranscodeSettings(w http.ResponseWriter, r *http.Request) {
	if s.settings == nil {
		writeError(w, http.StatusNotImplemented, "not_configured", "transcode settings not configured")
		return
	}

	var body app.TranscodeSettings
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid json")
		return
	}

	updated, err := s.settings.Update(body)
	if err != nil {
		if errors.Is(err, app.ErrInvalidSettings) {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		s.logger.Error("transcode settings update failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to update transcode settings")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
