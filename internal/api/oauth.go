package api

import (
	"errors"
	"net/http"

	"github.com/nerrad567/gray-logic-alexa/internal/auth"
)

// handleAuthorize implements GET /oauth/authorize. Every outcome except a
// rejected redirect URI is a 302 to the caller's redirect_uri.
func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	target, err := s.tokens.Authorize(r.Context(), auth.AuthorizeRequest{
		ClientID:     q.Get("client_id"),
		ResponseType: q.Get("response_type"),
		Scope:        q.Get("scope"),
		RedirectURI:  q.Get("redirect_uri"),
		State:        q.Get("state"),
		ResponseMode: q.Get("response_mode"),
	})

	var oerr *auth.OAuthError
	switch {
	case err == nil:
		s.logger.Info("authorization code issued", "client_id", q.Get("client_id"))
	case errors.As(err, &oerr) && target == "":
		writeOAuthError(w, http.StatusBadRequest, oerr.Code, oerr.Description)
		return
	case errors.As(err, &oerr):
		// target carries the error back to the client
	default:
		s.logger.Error("authorize failed", "error", err)
		writeInternalError(w, "failed to issue authorization code")
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, target, http.StatusFound)
}

// handleToken implements POST /oauth/token. Client credentials are read from
// the form or, failing that, HTTP Basic auth.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, http.StatusBadRequest, auth.CodeInvalidRequest, "malformed form body")
		return
	}

	req := auth.TokenRequest{
		GrantType:    r.PostForm.Get("grant_type"),
		ClientID:     r.PostForm.Get("client_id"),
		ClientSecret: r.PostForm.Get("client_secret"),
		Code:         r.PostForm.Get("code"),
		RedirectURI:  r.PostForm.Get("redirect_uri"),
		RefreshToken: r.PostForm.Get("refresh_token"),
	}
	if req.ClientID == "" {
		if id, secret, ok := r.BasicAuth(); ok {
			req.ClientID, req.ClientSecret = id, secret
		}
	}

	resp, err := s.tokens.IssueToken(r.Context(), req)
	if err != nil {
		var oerr *auth.OAuthError
		if errors.As(err, &oerr) {
			s.logger.Warn("token request rejected", "grant_type", req.GrantType, "error", oerr.Code)
			writeOAuthError(w, oerr.Status, oerr.Code, oerr.Description)
			return
		}
		s.logger.Error("token request failed", "grant_type", req.GrantType, "error", err)
		writeOAuthError(w, http.StatusInternalServerError, "server_error", "")
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, resp)
}
