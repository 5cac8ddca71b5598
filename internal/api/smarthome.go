package api

import (
	"io"
	"net/http"
)

// handleSmartHome implements POST /smarthome. The body is a directive
// envelope; the reply is always 200 with a response or ErrorResponse event.
func (s *Server) handleSmartHome(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeBadRequest(w, "failed to read request body")
		return
	}

	resp := s.directives.Handle(r.Context(), body)
	if resp.IsError() {
		s.logger.Info("directive failed",
			"namespace", resp.Event.Header.Namespace,
			"error_type", resp.ErrorType(),
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
	}
	writeJSON(w, http.StatusOK, resp)
}
