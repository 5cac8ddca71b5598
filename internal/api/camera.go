package api

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-alexa/internal/stream"
)

// streamWriteSlack is added to the stream write deadline so the transcoder's
// own duration limit ends the response first.
const streamWriteSlack = 10 * time.Second

// handleStream implements GET /camera/{endpointID}/stream.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.streams == nil {
		writeNotFound(w, "camera streaming is not enabled")
		return
	}

	// The server-wide write timeout would cut long streams short.
	if s.streamTime > 0 {
		//nolint:errcheck // Unsupported writers keep the server deadline
		http.NewResponseController(w).SetWriteDeadline(time.Now().Add(s.streamTime + streamWriteSlack))
	}

	s.streams.ServeStream(w, r, endpointParam(r))
}

// handleSnapshot implements GET /camera/{endpointID}/snapshot.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.streams == nil {
		writeNotFound(w, "camera streaming is not enabled")
		return
	}

	endpointID := endpointParam(r)
	err := s.streams.Snapshot(r.Context(), w, endpointID)
	switch {
	case err == nil:
	case errors.Is(err, stream.ErrNotCamera), errors.Is(err, stream.ErrNoSnapshot):
		writeNotFound(w, err.Error())
	default:
		s.logger.Warn("snapshot failed", "endpoint_id", endpointID, "error", err)
		writeInternalError(w, "camera snapshot unavailable")
	}
}

// endpointParam returns the decoded endpointID path parameter. chi matches
// against the raw path when the request escaped characters such as ';'.
func endpointParam(r *http.Request) string {
	raw := chi.URLParam(r, "endpointID")
	if id, err := url.PathUnescape(raw); err == nil {
		return id
	}
	return raw
}

// handleListStreams returns the running transcode sessions.
func (s *Server) handleListStreams(w http.ResponseWriter, _ *http.Request) {
	sessions := []stream.SessionStats{}
	if s.streams != nil {
		sessions = s.streams.Sessions()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"count":    len(sessions),
	})
}
