package alexa

import "errors"

// ErrorType is the payload.type of an ErrorResponse.
type ErrorType string

// Error types surfaced to the cloud. Business failures are always reported
// with one of these, never as an HTTP error.
const (
	ErrNoSuchEndpoint                 ErrorType = "NO_SUCH_ENDPOINT"
	ErrInvalidValue                   ErrorType = "INVALID_VALUE"
	ErrInvalidDirective               ErrorType = "INVALID_DIRECTIVE"
	ErrExpiredAuthorizationCredential ErrorType = "EXPIRED_AUTHORIZATION_CREDENTIAL"
	ErrBridgeUnreachable              ErrorType = "BRIDGE_UNREACHABLE"
	ErrInternalError                  ErrorType = "INTERNAL_ERROR"
	ErrAcceptGrantFailed              ErrorType = "ACCEPT_GRANT_FAILED"
)

// NameErrorResponse is the header name of every error event.
const NameErrorResponse = "ErrorResponse"

// ErrorPayload is the payload of an ErrorResponse.
type ErrorPayload struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
}

var (
	// ErrSchemaViolation is returned when an inbound envelope does not match
	// the directive schema.
	ErrSchemaViolation = errors.New("alexa: schema violation")
)
