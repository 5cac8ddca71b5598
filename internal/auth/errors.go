package auth

import (
	"errors"
	"net/http"
)

var (
	// ErrTokenInvalid is returned for a malformed, mis-signed or incomplete token.
	ErrTokenInvalid = errors.New("auth: invalid token")

	// ErrTokenExpired is returned for a token whose expiry has passed.
	ErrTokenExpired = errors.New("auth: token expired")

	// ErrWrongTokenType is returned when a token's type claim does not match
	// the expected type.
	ErrWrongTokenType = errors.New("auth: wrong token type")

	// ErrCodeNotFound is returned when an authorization code is unknown or
	// already redeemed.
	ErrCodeNotFound = errors.New("auth: authorization code not found")

	// ErrLinkNotFound is returned when no provider link is stored.
	ErrLinkNotFound = errors.New("auth: provider link not found")

	// ErrMissingAccountLinking is returned when no provider refresh token is
	// on record, i.e. AcceptGrant has never succeeded.
	ErrMissingAccountLinking = errors.New("auth: missing account linking")

	// ErrProviderUnavailable wraps failures talking to the provider token
	// endpoint.
	ErrProviderUnavailable = errors.New("auth: provider token endpoint failed")
)

// OAuth2 error codes returned by the authorize and token endpoints.
const (
	CodeInvalidRedirectURI      = "invalid_redirect_uri"
	CodeUnauthorizedClient      = "unauthorized_client"
	CodeUnsupportedResponseType = "unsupported_response_type"
	CodeInvalidScope            = "invalid_scope"
	CodeUnsupportedResponseMode = "unsupported_response_mode"
	CodeMissingState            = "missing_state"
	CodeInvalidGrantType        = "invalid_grant_type"
	CodeInvalidClient           = "invalid_client"
	CodeInvalidGrant            = "invalid_grant"
	CodeInvalidRequest          = "invalid_request"
	CodeUnauthorized            = "unauthorized"
)

// OAuthError is a protocol-level OAuth2 failure. Status is the HTTP status
// the token endpoint answers with; authorize errors other than
// invalid_redirect_uri are delivered by redirect instead.
type OAuthError struct {
	Code        string
	Description string
	Status      int
}

func (e *OAuthError) Error() string {
	if e.Description == "" {
		return "oauth: " + e.Code
	}
	return "oauth: " + e.Code + ": " + e.Description
}

func oauthError(code, description string) *OAuthError {
	status := http.StatusBadRequest
	switch code {
	case CodeInvalidClient, CodeUnauthorized, CodeUnauthorizedClient:
		status = http.StatusUnauthorized
	}
	return &OAuthError{Code: code, Description: description, Status: status}
}
