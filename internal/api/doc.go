// Package api implements the HTTP server of the Alexa gateway.
//
// This package provides:
//   - The directive endpoint the skill's Lambda forwards to (POST /smarthome)
//   - OAuth2 authorize and token endpoints for account linking
//   - Camera stream and snapshot endpoints referenced by stream URIs
//   - A read-only endpoint list and a WebSocket feed of proactive events
//   - Health and Prometheus metrics endpoints
//   - Middleware stack (request ID, logging, recovery, CORS, metrics)
//
// # Authentication
//
// Everything under /api/v1 and the camera endpoints require an access
// token issued by the token endpoint. The camera and WebSocket endpoints
// take it as a "token" query parameter because players and browsers cannot
// set headers on those requests.
//
// # Response Codes
//
// The directive endpoint always answers 200; directive failures are
// ErrorResponse events in the body. The OAuth endpoints answer with the
// status carried by the OAuth error.
package api
