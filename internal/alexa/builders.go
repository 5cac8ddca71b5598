package alexa

import (
	"time"

	"github.com/google/uuid"
)

// Header names of outbound events.
const (
	NameResponse            = "Response"
	NameStateReport         = "StateReport"
	NameChangeReport        = "ChangeReport"
	NameDiscoverResponse    = "Discover.Response"
	NameAcceptGrantResponse = "AcceptGrant.Response"
	NameDoorbellPress       = "DoorbellPress"
)

// Change causes for ChangeReport events.
const (
	CausePhysicalInteraction = "PHYSICAL_INTERACTION"
	CauseAppInteraction      = "APP_INTERACTION"
)

// replyHeader builds the header of a reply to d: messageId + "-R" and the
// echoed correlation token.
func replyHeader(d *Directive, namespace, name string) Header {
	h := Header{
		Namespace:      namespace,
		Name:           name,
		PayloadVersion: PayloadVersion,
	}
	if d == nil {
		h.MessageID = uuid.NewString()
		return h
	}
	h.MessageID = d.Header.MessageID + "-R"
	if d.Header.MessageID == "" {
		h.MessageID = uuid.NewString()
	}
	h.CorrelationToken = d.Header.CorrelationToken
	return h
}

// replyEndpoint echoes the directive's endpoint with a BearerToken scope.
func replyEndpoint(d *Directive) *Endpoint {
	if d == nil || d.Endpoint == nil {
		return nil
	}
	ep := &Endpoint{EndpointID: d.Endpoint.EndpointID, Cookie: d.Endpoint.Cookie}
	if d.Endpoint.Scope != nil {
		ep.Scope = &Scope{Type: "BearerToken", Token: d.Endpoint.Scope.Token}
	}
	return ep
}

// NewResponse builds a successful reply to d.
func NewResponse(d *Directive, namespace, name string, payload any) *Response {
	if payload == nil {
		payload = EmptyPayload{}
	}
	return &Response{
		Event: Event{
			Header:   replyHeader(d, namespace, name),
			Endpoint: replyEndpoint(d),
			Payload:  payload,
		},
	}
}

// NewErrorResponse builds an Alexa.ErrorResponse addressed to d's endpoint.
// d may be nil when the inbound message could not be parsed.
func NewErrorResponse(d *Directive, typ ErrorType, message string) *Response {
	return newError(d, NamespaceAlexa, typ, message)
}

// NewAcceptGrantError builds the Alexa.Authorization error reply.
func NewAcceptGrantError(d *Directive, message string) *Response {
	if message == "" {
		message = "Unknown access error."
	}
	return newError(d, NamespaceAuthorization, ErrAcceptGrantFailed, message)
}

func newError(d *Directive, namespace string, typ ErrorType, message string) *Response {
	return &Response{
		Event: Event{
			Header:   replyHeader(d, namespace, NameErrorResponse),
			Endpoint: replyEndpoint(d),
			Payload:  ErrorPayload{Type: typ, Message: message},
		},
	}
}

// DiscoverPayload is the payload of Discover.Response.
type DiscoverPayload struct {
	Endpoints []DiscoveryEndpoint `json:"endpoints"`
}

// NewDiscoverResponse wraps endpoints in a Discover.Response. Discovery
// replies carry no endpoint and no correlation token.
func NewDiscoverResponse(d *Directive, endpoints []DiscoveryEndpoint) *Response {
	if endpoints == nil {
		endpoints = []DiscoveryEndpoint{}
	}
	h := replyHeader(d, NamespaceDiscovery, NameDiscoverResponse)
	h.CorrelationToken = ""
	return &Response{
		Event: Event{
			Header:  h,
			Payload: DiscoverPayload{Endpoints: endpoints},
		},
	}
}

// ChangePayload is the payload of a ChangeReport.
type ChangePayload struct {
	Change Change `json:"change"`
}

// Change describes what changed and why.
type Change struct {
	Cause      Cause      `json:"cause"`
	Properties []Property `json:"properties"`
}

// Cause is the reason for a change.
type Cause struct {
	Type string `json:"type"`
}

// NewChangeReport builds a proactive Alexa.ChangeReport for endpointID.
// changed holds the properties that triggered the report; unchanged, if
// non-empty, becomes the context.
func NewChangeReport(endpointID, token string, cause string, changed, unchanged []Property) *Response {
	resp := &Response{
		Event: Event{
			Header: Header{
				Namespace:      NamespaceAlexa,
				Name:           NameChangeReport,
				MessageID:      uuid.NewString(),
				PayloadVersion: PayloadVersion,
			},
			Endpoint: &Endpoint{
				EndpointID: endpointID,
				Scope:      &Scope{Type: "BearerToken", Token: token},
			},
			Payload: ChangePayload{Change: Change{Cause: Cause{Type: cause}, Properties: changed}},
		},
	}
	if len(unchanged) > 0 {
		resp.Context = &Context{Properties: unchanged}
	}
	return resp
}

// DoorbellPressPayload is the payload of a DoorbellPress event.
type DoorbellPressPayload struct {
	Cause     Cause  `json:"cause"`
	Timestamp string `json:"timestamp"`
}

// NewDoorbellPress builds a proactive Alexa.DoorbellEventSource
// DoorbellPress event.
func NewDoorbellPress(endpointID, token string, pressed time.Time) *Response {
	return &Response{
		Event: Event{
			Header: Header{
				Namespace:      NamespaceDoorbellEventSource,
				Name:           NameDoorbellPress,
				MessageID:      uuid.NewString(),
				PayloadVersion: PayloadVersion,
			},
			Endpoint: &Endpoint{
				EndpointID: endpointID,
				Scope:      &Scope{Type: "BearerToken", Token: token},
			},
			Payload: DoorbellPressPayload{
				Cause:     Cause{Type: CausePhysicalInteraction},
				Timestamp: pressed.UTC().Format(time.RFC3339),
			},
		},
	}
}

// HealthProperty reports endpoint connectivity.
func HealthProperty(reachable bool, sampled time.Time) Property {
	v := ConnectivityOK
	if !reachable {
		v = ConnectivityUnreachable
	}
	return NewProperty(NamespaceEndpointHealth, "connectivity", ConnectivityValue{Value: v}, sampled)
}
