package alexa

import (
	"encoding/json"
	"time"
)

// PayloadVersion is the only protocol version spoken.
const PayloadVersion = "3"

// Namespaces handled by the gateway.
const (
	NamespaceAlexa                  = "Alexa"
	NamespaceDiscovery              = "Alexa.Discovery"
	NamespaceAuthorization          = "Alexa.Authorization"
	NamespacePowerController        = "Alexa.PowerController"
	NamespaceBrightnessController   = "Alexa.BrightnessController"
	NamespacePercentageController   = "Alexa.PercentageController"
	NamespaceRangeController        = "Alexa.RangeController"
	NamespaceThermostatController   = "Alexa.ThermostatController"
	NamespaceColorController        = "Alexa.ColorController"
	NamespaceColorTemperature       = "Alexa.ColorTemperatureController"
	NamespaceCameraStreamController = "Alexa.CameraStreamController"
	NamespaceTemperatureSensor      = "Alexa.TemperatureSensor"
	NamespaceMotionSensor           = "Alexa.MotionSensor"
	NamespaceContactSensor          = "Alexa.ContactSensor"
	NamespaceEndpointHealth         = "Alexa.EndpointHealth"
	NamespaceDoorbellEventSource    = "Alexa.DoorbellEventSource"
)

// Header is the common message header.
type Header struct {
	Namespace        string `json:"namespace"`
	Name             string `json:"name"`
	Instance         string `json:"instance,omitempty"`
	MessageID        string `json:"messageId"`
	CorrelationToken string `json:"correlationToken,omitempty"`
	PayloadVersion   string `json:"payloadVersion"`
}

// Scope carries the bearer token of the linked account.
type Scope struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// Endpoint addresses one device.
type Endpoint struct {
	EndpointID string            `json:"endpointId"`
	Scope      *Scope            `json:"scope,omitempty"`
	Cookie     map[string]string `json:"cookie,omitempty"`
}

// Token returns the scope token or "" when there is none.
func (e *Endpoint) Token() string {
	if e == nil || e.Scope == nil {
		return ""
	}
	return e.Scope.Token
}

// Directive is an inbound command.
type Directive struct {
	Header   Header          `json:"header"`
	Endpoint *Endpoint       `json:"endpoint,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// EndpointID returns the addressed endpoint or "".
func (d *Directive) EndpointID() string {
	if d.Endpoint == nil {
		return ""
	}
	return d.Endpoint.EndpointID
}

// DecodePayload unmarshals the directive payload into v. An absent payload
// leaves v untouched.
func (d *Directive) DecodePayload(v any) error {
	if len(d.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(d.Payload, v)
}

// Message is any inbound envelope. Exactly one of Directive (request path)
// or Header (event path, used for internal ReportState calls) is expected.
type Message struct {
	Directive *Directive      `json:"directive,omitempty"`
	Header    *Header         `json:"header,omitempty"`
	Endpoint  *Endpoint       `json:"endpoint,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// AsDirective views an event-path message as a directive so both paths share
// the same handlers.
func (m *Message) AsDirective() *Directive {
	if m.Directive != nil {
		return m.Directive
	}
	if m.Header == nil {
		return nil
	}
	return &Directive{Header: *m.Header, Endpoint: m.Endpoint, Payload: m.Payload}
}

// Event is an outbound event body.
type Event struct {
	Header   Header    `json:"header"`
	Endpoint *Endpoint `json:"endpoint,omitempty"`
	Payload  any       `json:"payload"`
}

// Response is the outbound envelope for every directive.
type Response struct {
	Event   Event    `json:"event"`
	Context *Context `json:"context,omitempty"`
}

// IsError reports whether the response is an ErrorResponse.
func (r *Response) IsError() bool {
	return r.Event.Header.Name == NameErrorResponse
}

// ErrorType returns the error type of an ErrorResponse, or "".
func (r *Response) ErrorType() ErrorType {
	if p, ok := r.Event.Payload.(ErrorPayload); ok {
		return p.Type
	}
	return ""
}

// Context carries the state report attached to a response.
type Context struct {
	Properties []Property `json:"properties"`
}

// Find returns the first property with the given namespace and name.
func (c *Context) Find(namespace, name string) (Property, bool) {
	if c == nil {
		return Property{}, false
	}
	for _, p := range c.Properties {
		if p.Namespace == namespace && p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}

// Property is one reported state value.
type Property struct {
	Namespace                 string `json:"namespace"`
	Instance                  string `json:"instance,omitempty"`
	Name                      string `json:"name"`
	Value                     any    `json:"value"`
	TimeOfSample              string `json:"timeOfSample"`
	UncertaintyInMilliseconds int    `json:"uncertaintyInMilliseconds"`
}

// NewProperty stamps a property with the sample time.
func NewProperty(namespace, name string, value any, sampled time.Time) Property {
	return Property{
		Namespace:    namespace,
		Name:         name,
		Value:        value,
		TimeOfSample: sampled.UTC().Format(time.RFC3339),
	}
}

// EmptyPayload marshals to {}.
type EmptyPayload struct{}

// Temperature is a thermostat or sensor temperature value.
type Temperature struct {
	Value float64 `json:"value"`
	Scale string  `json:"scale"`
}

// Temperature scales.
const (
	ScaleCelsius    = "CELSIUS"
	ScaleFahrenheit = "FAHRENHEIT"
	ScaleKelvin     = "KELVIN"
)

// HSB is a color value.
type HSB struct {
	Hue        float64 `json:"hue"`
	Saturation float64 `json:"saturation"`
	Brightness float64 `json:"brightness"`
}

// Connectivity values for Alexa.EndpointHealth.
const (
	ConnectivityOK          = "OK"
	ConnectivityUnreachable = "UNREACHABLE"
)

// ConnectivityValue is the EndpointHealth connectivity property value.
type ConnectivityValue struct {
	Value string `json:"value"`
}

// Power states.
const (
	PowerOn  = "ON"
	PowerOff = "OFF"
)

// Detection states for motion and contact sensors.
const (
	Detected    = "DETECTED"
	NotDetected = "NOT_DETECTED"
)
