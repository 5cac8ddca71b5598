// Package logging provides structured logging for the Alexa gateway.
//
// It wraps log/slog with the gateway's defaults: JSON output for production,
// text for development, level filtering, and service/version attributes on
// every entry.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Security
//
// Never log bearer tokens, refresh tokens, authorization codes, client
// secrets or camera credentials. Log an endpoint ID or a token's subject
// instead.
package logging
