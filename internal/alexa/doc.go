// Package alexa defines the Smart Home API v3 message envelopes exchanged
// with the voice-assistant cloud: inbound directives, response and error
// events, state reports, change reports and discovery documents.
//
// The package has no behaviour beyond building and validating messages.
// Routing lives in internal/directive, discovery assembly in
// internal/discovery.
//
// Every response carries the inbound messageId with "-R" appended, echoes
// the correlation token and echoes the endpoint scope:
//
//	resp := alexa.NewResponse(d, alexa.NamespaceAlexa, "Response", alexa.EmptyPayload{})
//	resp.Context = &alexa.Context{Properties: props}
package alexa
