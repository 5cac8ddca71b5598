package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Grant types accepted by the token endpoint.
const (
	GrantAuthorizationCode = "authorization_code"
	GrantRefreshToken      = "refresh_token"
)

// Config configures the local authorization server.
type Config struct {
	ClientID         string
	ClientSecret     string
	Scope            string
	RedirectPrefixes []string
	CodeTTL          time.Duration
}

// Logger is the logging interface used by the auth package.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Service is the token service: authorize, token exchange and bearer
// verification.
type Service struct {
	cfg    Config
	signer *Signer
	codes  CodeRepository
	now    func() time.Time
	logger Logger
}

// NewService creates a token service.
func NewService(cfg Config, signer *Signer, codes CodeRepository) *Service {
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = 5 * time.Minute
	}
	return &Service{
		cfg:    cfg,
		signer: signer,
		codes:  codes,
		now:    time.Now,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the service.
func (s *Service) SetLogger(logger Logger) {
	s.logger = logger
}

// SetClock replaces the time source for the service and its signer.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
	s.signer.SetClock(now)
}

// AuthorizeRequest holds the query parameters of the authorize endpoint.
type AuthorizeRequest struct {
	ClientID     string
	ResponseType string
	Scope        string
	RedirectURI  string
	State        string
	ResponseMode string
}

// Authorize validates an authorization request and returns the URL to
// redirect the user agent to.
//
// Checks run in order: redirect URI allow-list, client_id, response_type,
// scope, response_mode, state. The first failure produces a redirect carrying
// "error" (and "state" when given) but no "code". A redirect URI outside the
// allow-list is never redirected to: the returned URL is empty and the
// *OAuthError has code invalid_redirect_uri.
//
// On success a one-time code is stored and the URL carries "code" and
// "state". A non-OAuth error means the code could not be stored.
func (s *Service) Authorize(ctx context.Context, req AuthorizeRequest) (string, error) {
	target, err := s.checkRedirectURI(req.RedirectURI)
	if err != nil {
		return "", err
	}

	if oerr := s.checkAuthorizeParams(req); oerr != nil {
		s.logger.Warn("authorize request rejected", "error", oerr.Code, "client_id", req.ClientID)
		return redirectWith(target, map[string]string{"state": req.State, "error": oerr.Code}), oerr
	}

	code := uuid.NewString()
	now := s.now()
	err = s.codes.Create(ctx, &AuthorizationCode{
		CodeHash:    HashToken(code),
		ClientID:    req.ClientID,
		RedirectURI: req.RedirectURI,
		ExpiresAt:   now.Add(s.cfg.CodeTTL),
		CreatedAt:   now,
	})
	if err != nil {
		return "", fmt.Errorf("storing authorization code: %w", err)
	}

	return redirectWith(target, map[string]string{"state": req.State, "code": code}), nil
}

func (s *Service) checkRedirectURI(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if raw == "" || err != nil || !u.IsAbs() {
		return nil, oauthError(CodeInvalidRedirectURI, "redirect_uri is not an absolute URL")
	}
	for _, prefix := range s.cfg.RedirectPrefixes {
		if strings.HasPrefix(raw, prefix) {
			return u, nil
		}
	}
	return nil, oauthError(CodeInvalidRedirectURI, "redirect_uri is not allowed")
}

func (s *Service) checkAuthorizeParams(req AuthorizeRequest) *OAuthError {
	switch {
	case !secureEqual(req.ClientID, s.cfg.ClientID):
		return oauthError(CodeUnauthorizedClient, "")
	case req.ResponseType != "code":
		return oauthError(CodeUnsupportedResponseType, "")
	case req.Scope != s.cfg.Scope:
		return oauthError(CodeInvalidScope, "")
	case req.ResponseMode != "" && req.ResponseMode != "query":
		return oauthError(CodeUnsupportedResponseMode, "")
	case req.State == "":
		return oauthError(CodeMissingState, "")
	}
	return nil
}

// redirectWith adds non-empty params to the query of target.
func redirectWith(target *url.URL, params map[string]string) string {
	u := *target
	q := u.Query()
	for k, v := range params {
		if v != "" {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// TokenRequest holds the form fields of the token endpoint.
type TokenRequest struct {
	GrantType    string
	ClientID     string
	ClientSecret string
	Code         string
	RedirectURI  string
	RefreshToken string
}

// TokenResponse is the JSON body of a successful token request.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
}

// IssueToken handles both grant types. Protocol failures are returned as
// *OAuthError; anything else is an internal error.
//
// For refresh_token the supplied refresh token is returned unchanged; its
// own expiry bounds the link.
func (s *Service) IssueToken(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
	if req.GrantType != GrantAuthorizationCode && req.GrantType != GrantRefreshToken {
		return nil, oauthError(CodeInvalidGrantType, "")
	}
	if !secureEqual(req.ClientID, s.cfg.ClientID) || !secureEqual(req.ClientSecret, s.cfg.ClientSecret) {
		return nil, oauthError(CodeInvalidClient, "")
	}

	if req.GrantType == GrantRefreshToken {
		return s.refresh(req)
	}
	return s.exchangeCode(ctx, req)
}

func (s *Service) exchangeCode(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
	if req.Code == "" {
		return nil, oauthError(CodeInvalidRequest, "missing code")
	}

	stored, err := s.codes.Consume(ctx, HashToken(req.Code))
	if err != nil {
		if errors.Is(err, ErrCodeNotFound) {
			return nil, oauthError(CodeInvalidGrant, "unknown or used code")
		}
		return nil, err
	}
	if !s.now().Before(stored.ExpiresAt) {
		return nil, oauthError(CodeInvalidGrant, "code expired")
	}
	if stored.ClientID != req.ClientID {
		return nil, oauthError(CodeInvalidGrant, "code issued to another client")
	}
	if req.RedirectURI != "" && req.RedirectURI != stored.RedirectURI {
		return nil, oauthError(CodeInvalidGrant, "redirect_uri mismatch")
	}

	identity := uuid.NewString()
	access, expires, err := s.signer.Sign(identity, TypeAccessToken)
	if err != nil {
		return nil, err
	}
	refresh, _, err := s.signer.Sign(identity, TypeRefreshToken)
	if err != nil {
		return nil, err
	}

	s.logger.Info("account linked", "identity", identity)
	return s.tokenResponse(access, expires, refresh), nil
}

func (s *Service) refresh(req TokenRequest) (*TokenResponse, error) {
	if req.RefreshToken == "" {
		return nil, oauthError(CodeInvalidRequest, "missing refresh_token")
	}

	claims, err := s.signer.Verify(req.RefreshToken, TypeRefreshToken)
	if err != nil {
		s.logger.Warn("refresh token rejected", "error", err)
		return nil, oauthError(CodeUnauthorized, "invalid refresh_token")
	}

	access, expires, err := s.signer.Sign(claims.Subject, TypeAccessToken)
	if err != nil {
		return nil, err
	}
	return s.tokenResponse(access, expires, req.RefreshToken), nil
}

func (s *Service) tokenResponse(access string, expires time.Time, refresh string) *TokenResponse {
	return &TokenResponse{
		AccessToken:  access,
		TokenType:    "bearer",
		ExpiresIn:    int64(expires.Sub(s.now()).Seconds()),
		RefreshToken: refresh,
		Scope:        s.cfg.Scope,
	}
}

// VerifyAccessToken validates a bearer token presented with a directive or a
// camera URL.
func (s *Service) VerifyAccessToken(token string) (*Claims, error) {
	return s.signer.Verify(token, TypeAccessToken)
}

// VerifyRefreshToken validates a refresh token.
func (s *Service) VerifyRefreshToken(token string) (*Claims, error) {
	return s.signer.Verify(token, TypeRefreshToken)
}

// PurgeExpiredCodes deletes expired authorization codes every interval until
// ctx is cancelled.
func (s *Service) PurgeExpiredCodes(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.codes.DeleteExpired(ctx, s.now())
			if err != nil {
				s.logger.Error("purging authorization codes failed", "error", err)
				continue
			}
			if n > 0 {
				s.logger.Info("purged expired authorization codes", "count", n)
			}
		}
	}
}

func secureEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
