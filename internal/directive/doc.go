// Package directive dispatches Smart Home directives to device adapters.
//
// Architecture:
//
//	POST /smarthome body
//	        │
//	        ▼
//	┌──────────────────┐  schema   ┌───────────────┐
//	│ Router.Handle    │──────────▶│ Validator     │
//	└────────┬─────────┘           └───────────────┘
//	         │ Route{namespace, name}
//	         ▼
//	┌──────────────────┐  token    ┌───────────────┐
//	│ routes table     │──────────▶│ TokenVerifier │
//	└────────┬─────────┘           └───────────────┘
//	         │ endpointId
//	         ▼
//	┌──────────────────┐
//	│ device.Registry  │──▶ Adapter capability ──▶ pointstore
//	└──────────────────┘
//
// Every call to Handle yields exactly one response envelope. Failures are
// reported as Alexa.ErrorResponse events; the router never surfaces a
// transport error for a business failure.
//
// Numeric payloads are clamped into the bounds each interface declares
// rather than rejected.
package directive
