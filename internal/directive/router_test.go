package directive

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-alexa/internal/alexa"
	"github.com/nerrad567/gray-logic-alexa/internal/auth"
	"github.com/nerrad567/gray-logic-alexa/internal/device"
	"github.com/nerrad567/gray-logic-alexa/internal/pointstore"
)

const validToken = "valid-token"

type fakeVerifier struct{}

func (fakeVerifier) VerifyAccessToken(token string) (*auth.Claims, error) {
	if token != validToken {
		return nil, auth.ErrTokenExpired
	}
	return &auth.Claims{Type: auth.TypeAccessToken}, nil
}

type fakeDiscoverer struct{ called bool }

func (f *fakeDiscoverer) Compile(_ context.Context, d *alexa.Directive) *alexa.Response {
	f.called = true
	return alexa.NewDiscoverResponse(d, nil)
}

type fakeGrants struct {
	code string
	err  error
}

func (f *fakeGrants) AcceptGrant(_ context.Context, code string) error {
	f.code = code
	return f.err
}

type fixture struct {
	router    *Router
	store     *pointstore.MemoryStore
	discovery *fakeDiscoverer
	grants    *fakeGrants
}

var testCatalog = &device.Catalog{Devices: []device.Descriptor{
	{Family: device.FamilyHueLight, SourceID: "lamp1", Name: "Kitchen"},
	{Family: device.FamilyHueLight, SourceID: "lamp2", Name: "Desk"},
	{Family: device.FamilyPlug, SourceID: "plug1", Name: "Fan"},
	{Family: device.FamilyBlind, SourceID: "blind1", Name: "Blind"},
	{Family: device.FamilyThermostat, SourceID: "th1", Name: "Bath"},
	{Family: device.FamilyDimmer, SourceID: "dim1", Name: "Hall"},
	{Family: device.FamilyCamera, SourceID: "cam1", Name: "Door", Camera: &device.CameraConfig{
		StreamURL:   "rtsp://cam/stream",
		SnapshotURL: "http://cam/snap.jpg",
	}},
}}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := pointstore.NewMemoryStore(map[string]any{
		"lamp1.action.on":             false,
		"lamp1.action.brightness":     127,
		"lamp2.action.on":             false,
		"plug1.3.STATE":               false,
		"blind1.4.LEVEL":              50,
		"th1.1.SET_POINT_TEMPERATURE": 20.0,
		"th1.1.ACTUAL_TEMPERATURE":    19.0,
		"dim1.1.LEVEL":                0,
	})
	reg := device.NewRegistry()
	if err := reg.Populate(testCatalog, store); err != nil {
		t.Fatalf("Populate() error = %v", err)
	}
	validator, err := alexa.NewValidator()
	if err != nil {
		t.Fatalf("NewValidator() error = %v", err)
	}

	f := &fixture{store: store, discovery: &fakeDiscoverer{}, grants: &fakeGrants{}}
	f.router = NewRouter(Config{
		PublicURL:         "https://gw.example.com/",
		StreamIdleTimeout: 10 * time.Second,
		StreamMaxDuration: time.Minute,
	}, Deps{
		Devices:   reg,
		Tokens:    fakeVerifier{},
		Discovery: f.discovery,
		Grants:    f.grants,
		Validator: validator,
	})
	return f
}

func body(namespace, name, endpointID, token, payload string) []byte {
	if payload == "" {
		payload = "{}"
	}
	return []byte(fmt.Sprintf(`{"directive":{
		"header":{"namespace":%q,"name":%q,"messageId":"msg-1","correlationToken":"corr-1","payloadVersion":"3"},
		"endpoint":{"endpointId":%q,"scope":{"type":"BearerToken","token":%q}},
		"payload":%s}}`, namespace, name, endpointID, token, payload))
}

func id(family, source string) string {
	return alexa.EndpointID(family, source)
}

func (f *fixture) point(t *testing.T, pointID string) any {
	t.Helper()
	v, err := f.store.GetPointValue(context.Background(), pointID)
	if err != nil {
		t.Fatalf("GetPointValue(%s) error = %v", pointID, err)
	}
	return v
}

func TestHandle_TurnOn(t *testing.T) {
	f := newFixture(t)
	lamp := id(device.FamilyHueLight, "lamp1")

	resp := f.router.Handle(context.Background(), body(alexa.NamespacePowerController, "TurnOn", lamp, validToken, ""))

	if resp.IsError() {
		t.Fatalf("TurnOn returned error %q", resp.ErrorType())
	}
	h := resp.Event.Header
	if h.Namespace != alexa.NamespaceAlexa || h.Name != alexa.NameResponse {
		t.Errorf("header = %s.%s, want Alexa.Response", h.Namespace, h.Name)
	}
	if h.MessageID != "msg-1-R" {
		t.Errorf("messageId = %q, want %q", h.MessageID, "msg-1-R")
	}
	if h.CorrelationToken != "corr-1" {
		t.Errorf("correlationToken = %q, want %q", h.CorrelationToken, "corr-1")
	}
	if resp.Event.Endpoint == nil || resp.Event.Endpoint.Token() != validToken {
		t.Errorf("endpoint scope not echoed: %+v", resp.Event.Endpoint)
	}

	p, ok := resp.Context.Find(alexa.NamespacePowerController, "powerState")
	if !ok || p.Value != alexa.PowerOn {
		t.Errorf("context powerState = %v, want ON", p.Value)
	}
	if v := f.point(t, "lamp1.action.on"); v != true {
		t.Errorf("lamp1.action.on = %v, want true", v)
	}
}

func TestHandle_TurnOff(t *testing.T) {
	f := newFixture(t)
	plug := id(device.FamilyPlug, "plug1")
	if err := f.store.SetPointValue(context.Background(), "plug1.3.STATE", true); err != nil {
		t.Fatal(err)
	}

	resp := f.router.Handle(context.Background(), body(alexa.NamespacePowerController, "TurnOff", plug, validToken, ""))

	p, ok := resp.Context.Find(alexa.NamespacePowerController, "powerState")
	if !ok || p.Value != alexa.PowerOff {
		t.Errorf("context powerState = %v, want OFF", p.Value)
	}
}

func TestHandle_BrightnessClamped(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    int
	}{
		{NameSetBrightness, `{"brightness":500}`, 100},
		{NameSetBrightness, `{"brightness":-20}`, 0},
		{NameAdjustBrightness, `{"brightnessDelta":500}`, 100},
		{NameAdjustBrightness, `{"brightnessDelta":-10}`, 40},
		{NameSetBrightness, `{"brightness":1e20}`, 100},
		{NameSetBrightness, `{"brightness":-1e20}`, 0},
		{NameAdjustBrightness, `{"brightnessDelta":1e20}`, 100},
		{NameAdjustBrightness, `{"brightnessDelta":-1e20}`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name+tt.payload, func(t *testing.T) {
			f := newFixture(t)
			dimmer := id(device.FamilyDimmer, "dim1")
			if err := f.store.SetPointValue(context.Background(), "dim1.1.LEVEL", 50); err != nil {
				t.Fatal(err)
			}

			resp := f.router.Handle(context.Background(), body(alexa.NamespaceBrightnessController, tt.name, dimmer, validToken, tt.payload))
			if resp.IsError() {
				t.Fatalf("error %q", resp.ErrorType())
			}
			if v := f.point(t, "dim1.1.LEVEL"); v != tt.want {
				t.Errorf("level = %v, want %d", v, tt.want)
			}
			p, _ := resp.Context.Find(alexa.NamespaceBrightnessController, "brightness")
			if p.Value != tt.want {
				t.Errorf("context brightness = %v, want %d", p.Value, tt.want)
			}
		})
	}
}

func TestHandle_PercentageClamped(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    int
	}{
		{NameSetPercentage, `{"percentage":30.4}`, 30},
		{NameSetPercentage, `{"percentage":1e20}`, 100},
		{NameAdjustPercentage, `{"percentageDelta":25}`, 75},
		{NameAdjustPercentage, `{"percentageDelta":1e20}`, 100},
		{NameAdjustPercentage, `{"percentageDelta":-1e20}`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name+tt.payload, func(t *testing.T) {
			f := newFixture(t)
			dimmer := id(device.FamilyDimmer, "dim1")
			if err := f.store.SetPointValue(context.Background(), "dim1.1.LEVEL", 50); err != nil {
				t.Fatal(err)
			}

			resp := f.router.Handle(context.Background(), body(alexa.NamespacePercentageController, tt.name, dimmer, validToken, tt.payload))
			if resp.IsError() {
				t.Fatalf("error %q", resp.ErrorType())
			}
			if v := f.point(t, "dim1.1.LEVEL"); v != tt.want {
				t.Errorf("level = %v, want %d", v, tt.want)
			}
			p, _ := resp.Context.Find(alexa.NamespacePercentageController, "percentage")
			if p.Value != tt.want {
				t.Errorf("context percentage = %v, want %d", p.Value, tt.want)
			}
		})
	}
}

func TestHandle_PartialStateKeepsContext(t *testing.T) {
	tests := []struct {
		name      string
		namespace string
		directive string
		payload   string
		wantNS    string
		wantName  string
		wantValue any
	}{
		{"turn on", alexa.NamespacePowerController, "TurnOn", "", alexa.NamespacePowerController, "powerState", alexa.PowerOn},
		{"turn off", alexa.NamespacePowerController, "TurnOff", "", alexa.NamespacePowerController, "powerState", alexa.PowerOff},
		{"set brightness", alexa.NamespaceBrightnessController, NameSetBrightness, `{"brightness":30}`, alexa.NamespaceBrightnessController, "brightness", 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			lamp := id(device.FamilyHueLight, "lamp2")

			resp := f.router.Handle(context.Background(), body(tt.namespace, tt.directive, lamp, validToken, tt.payload))
			if resp.IsError() {
				t.Fatalf("error %q", resp.ErrorType())
			}
			if resp.Context == nil || len(resp.Context.Properties) == 0 {
				t.Fatal("response has no context properties")
			}
			first := resp.Context.Properties[0]
			if first.Namespace != tt.wantNS || first.Name != tt.wantName || first.Value != tt.wantValue {
				t.Errorf("properties[0] = %s.%s %v, want %s.%s %v",
					first.Namespace, first.Name, first.Value, tt.wantNS, tt.wantName, tt.wantValue)
			}
		})
	}
}

// writeOnlySwitch accepts power commands but cannot read its state back.
type writeOnlySwitch struct {
	reportErr error
	on        bool
}

func (b *writeOnlySwitch) EndpointID() string   { return "blind-switch" }
func (b *writeOnlySwitch) FriendlyName() string { return "Switch" }
func (b *writeOnlySwitch) Family() string       { return "switch" }
func (b *writeOnlySwitch) Points() []string     { return nil }

func (b *writeOnlySwitch) Describe(context.Context) (alexa.DiscoveryEndpoint, error) {
	return alexa.DiscoveryEndpoint{EndpointID: "blind-switch"}, nil
}

func (b *writeOnlySwitch) ReportState(context.Context) ([]alexa.Property, error) {
	return nil, b.reportErr
}

func (b *writeOnlySwitch) SetPower(_ context.Context, on bool) error {
	b.on = on
	return nil
}

type oneDevice struct{ a device.Adapter }

func (o oneDevice) Get(string) (device.Adapter, error) { return o.a, nil }

func TestHandle_StateUnavailableAfterCommand(t *testing.T) {
	tests := []struct {
		name      string
		reportErr error
	}{
		{"read fails", errors.New("bus timeout")},
		{"nothing reported", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sw := &writeOnlySwitch{reportErr: tt.reportErr}
			r := NewRouter(Config{}, Deps{Devices: oneDevice{sw}, Tokens: fakeVerifier{}})

			resp := r.Handle(context.Background(), body(alexa.NamespacePowerController, "TurnOn", "blind-switch", validToken, ""))
			if resp.IsError() {
				t.Fatalf("error %q", resp.ErrorType())
			}
			if !sw.on {
				t.Error("switch was not turned on")
			}
			if resp.Context == nil || len(resp.Context.Properties) == 0 {
				t.Fatal("response has no context properties")
			}
			if p := resp.Context.Properties[0]; p.Name != "powerState" || p.Value != alexa.PowerOn {
				t.Errorf("properties[0] = %s %v, want powerState ON", p.Name, p.Value)
			}
		})
	}
}

func TestHandle_ReportStateFailureIsError(t *testing.T) {
	sw := &writeOnlySwitch{reportErr: device.ErrUnreachable}
	r := NewRouter(Config{}, Deps{Devices: oneDevice{sw}, Tokens: fakeVerifier{}})

	resp := r.Handle(context.Background(), body(alexa.NamespaceAlexa, NameReportState, "blind-switch", validToken, ""))
	if resp.ErrorType() != alexa.ErrBridgeUnreachable {
		t.Errorf("ErrorType() = %q, want BRIDGE_UNREACHABLE", resp.ErrorType())
	}
}

type panickingDevices struct{}

func (panickingDevices) Get(string) (device.Adapter, error) {
	panic("registry corrupted")
}

func TestDispatch_RecoversHandlerPanic(t *testing.T) {
	r := NewRouter(Config{}, Deps{Devices: panickingDevices{}, Tokens: fakeVerifier{}})

	resp := r.Handle(context.Background(), body(alexa.NamespacePowerController, "TurnOn", id(device.FamilyPlug, "plug1"), validToken, ""))
	if resp.ErrorType() != alexa.ErrInternalError {
		t.Errorf("ErrorType() = %q, want INTERNAL_ERROR", resp.ErrorType())
	}
	if resp.Event.Header.CorrelationToken != "corr-1" {
		t.Errorf("correlationToken = %q, want corr-1", resp.Event.Header.CorrelationToken)
	}
}

func TestMergeProperties(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	power := alexa.NewProperty(alexa.NamespacePowerController, "powerState", alexa.PowerOn, at)
	reportedPower := alexa.NewProperty(alexa.NamespacePowerController, "powerState", alexa.PowerOff, at)
	health := alexa.NewProperty(alexa.NamespaceEndpointHealth, "connectivity", alexa.ConnectivityValue{Value: alexa.ConnectivityOK}, at)
	lift := alexa.NewProperty(alexa.NamespaceRangeController, "rangeValue", 40.0, at)
	lift.Instance = "Blind.Lift"
	tilt := alexa.NewProperty(alexa.NamespaceRangeController, "rangeValue", 10.0, at)
	tilt.Instance = "Blind.Tilt"

	tests := []struct {
		name     string
		set      []alexa.Property
		reported []alexa.Property
		want     []alexa.Property
	}{
		{"nothing", nil, nil, []alexa.Property{}},
		{"reported only", nil, []alexa.Property{health}, []alexa.Property{health}},
		{"commanded missing from report", []alexa.Property{power}, []alexa.Property{health}, []alexa.Property{power, health}},
		{"reported value wins", []alexa.Property{power}, []alexa.Property{health, reportedPower}, []alexa.Property{reportedPower, health}},
		{"instance distinguishes", []alexa.Property{tilt}, []alexa.Property{lift}, []alexa.Property{tilt, lift}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mergeProperties(tt.set, tt.reported)
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestHandle_Errors(t *testing.T) {
	lamp := id(device.FamilyHueLight, "lamp1")
	plug := id(device.FamilyPlug, "plug1")

	tests := []struct {
		name string
		body []byte
		want alexa.ErrorType
	}{
		{
			name: "unknown endpoint",
			body: body(alexa.NamespacePowerController, "TurnOn", "nope", validToken, ""),
			want: alexa.ErrNoSuchEndpoint,
		},
		{
			name: "expired token",
			body: body(alexa.NamespacePowerController, "TurnOn", lamp, "stale", ""),
			want: alexa.ErrExpiredAuthorizationCredential,
		},
		{
			name: "unsupported namespace",
			body: body("Alexa.LockController", "Lock", lamp, validToken, ""),
			want: alexa.ErrInvalidDirective,
		},
		{
			name: "device lacks interface",
			body: body(alexa.NamespaceBrightnessController, NameSetBrightness, plug, validToken, `{"brightness":10}`),
			want: alexa.ErrInvalidDirective,
		},
		{
			name: "unknown directive name",
			body: body(alexa.NamespacePowerController, "Toggle", lamp, validToken, ""),
			want: alexa.ErrInvalidValue,
		},
		{
			name: "missing payload field",
			body: body(alexa.NamespaceBrightnessController, NameSetBrightness, lamp, validToken, `{}`),
			want: alexa.ErrInvalidValue,
		},
		{
			name: "malformed json",
			body: []byte(`{"directive":`),
			want: alexa.ErrInvalidDirective,
		},
		{
			name: "neither directive nor header",
			body: []byte(`{"foo":1}`),
			want: alexa.ErrInvalidDirective,
		},
		{
			name: "schema violation",
			body: []byte(`{"directive":{"header":{"namespace":"NotAlexa","name":"TurnOn","messageId":"m","payloadVersion":"3"}}}`),
			want: alexa.ErrInvalidDirective,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			resp := f.router.Handle(context.Background(), tt.body)
			if got := resp.ErrorType(); got != tt.want {
				t.Errorf("ErrorType() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHandle_ExpiredTokenAddressesEndpoint(t *testing.T) {
	f := newFixture(t)
	lamp := id(device.FamilyHueLight, "lamp1")

	resp := f.router.Handle(context.Background(), body(alexa.NamespacePowerController, "TurnOn", lamp, "stale", ""))

	if resp.Event.Endpoint == nil || resp.Event.Endpoint.EndpointID != lamp {
		t.Errorf("error endpoint = %+v, want %s", resp.Event.Endpoint, lamp)
	}
	if len(f.store.Writes()) != 0 {
		t.Error("rejected directive reached the device")
	}
}

func TestHandle_Unreachable(t *testing.T) {
	f := newFixture(t)
	f.store.SetUnreachable(true)

	resp := f.router.Handle(context.Background(), body(alexa.NamespacePowerController, "TurnOn", id(device.FamilyPlug, "plug1"), validToken, ""))
	if resp.ErrorType() != alexa.ErrBridgeUnreachable {
		t.Errorf("ErrorType() = %q, want BRIDGE_UNREACHABLE", resp.ErrorType())
	}
}

func TestHandle_InternalError(t *testing.T) {
	f := newFixture(t)
	f.store.FailWrites(errors.New("disk on fire"))

	resp := f.router.Handle(context.Background(), body(alexa.NamespacePowerController, "TurnOn", id(device.FamilyPlug, "plug1"), validToken, ""))
	if resp.ErrorType() != alexa.ErrInternalError {
		t.Errorf("ErrorType() = %q, want INTERNAL_ERROR", resp.ErrorType())
	}
}

func TestHandle_ReportState(t *testing.T) {
	f := newFixture(t)
	blind := id(device.FamilyBlind, "blind1")

	resp := f.router.Handle(context.Background(), body(alexa.NamespaceAlexa, NameReportState, blind, validToken, ""))
	if resp.Event.Header.Name != alexa.NameStateReport {
		t.Fatalf("header name = %q, want StateReport", resp.Event.Header.Name)
	}
	p, ok := resp.Context.Find(alexa.NamespaceRangeController, "rangeValue")
	if !ok || p.Instance != device.BlindLift {
		t.Errorf("rangeValue property = %+v, want Blind.Lift", p)
	}
}

func TestHandle_EventPathReportState(t *testing.T) {
	f := newFixture(t)
	plug := id(device.FamilyPlug, "plug1")

	msg := fmt.Sprintf(`{"header":{"namespace":"Alexa","name":"ReportState","messageId":"ev-1","payloadVersion":"3"},
		"endpoint":{"endpointId":%q,"scope":{"type":"BearerToken","token":%q}},"payload":{}}`, plug, validToken)
	resp := f.router.Handle(context.Background(), []byte(msg))

	if resp.IsError() {
		t.Fatalf("error %q", resp.ErrorType())
	}
	if resp.Event.Header.MessageID != "ev-1-R" {
		t.Errorf("messageId = %q, want ev-1-R", resp.Event.Header.MessageID)
	}
}

func TestHandle_EventPathRejectsOtherEvents(t *testing.T) {
	f := newFixture(t)
	msg := `{"header":{"namespace":"Alexa.PowerController","name":"TurnOn","messageId":"ev-1","payloadVersion":"3"}}`

	resp := f.router.Handle(context.Background(), []byte(msg))
	if resp.ErrorType() != alexa.ErrInvalidDirective {
		t.Errorf("ErrorType() = %q, want INVALID_DIRECTIVE", resp.ErrorType())
	}
}

func TestHandle_RangeValue(t *testing.T) {
	f := newFixture(t)
	blind := id(device.FamilyBlind, "blind1")

	b := []byte(strings.Replace(string(body(alexa.NamespaceRangeController, NameAdjustRangeValue, blind, validToken, `{"rangeValueDelta":-80}`)),
		`"payloadVersion":"3"`, `"payloadVersion":"3","instance":"Blind.Lift"`, 1))
	resp := f.router.Handle(context.Background(), b)

	if resp.IsError() {
		t.Fatalf("error %q", resp.ErrorType())
	}
	if v := f.point(t, "blind1.4.LEVEL"); v != 0 {
		t.Errorf("level = %v, want 0", v)
	}
}

func TestHandle_RangeUnknownInstance(t *testing.T) {
	f := newFixture(t)
	blind := id(device.FamilyBlind, "blind1")

	b := []byte(strings.Replace(string(body(alexa.NamespaceRangeController, NameSetRangeValue, blind, validToken, `{"rangeValue":10}`)),
		`"payloadVersion":"3"`, `"payloadVersion":"3","instance":"Blind.Tilt"`, 1))
	resp := f.router.Handle(context.Background(), b)

	if resp.ErrorType() != alexa.ErrInvalidValue {
		t.Errorf("ErrorType() = %q, want INVALID_VALUE", resp.ErrorType())
	}
}

func TestHandle_Thermostat(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    float64
	}{
		{NameSetTargetTemperature, `{"targetSetpoint":{"value":22.5,"scale":"CELSIUS"}}`, 22.5},
		{NameSetTargetTemperature, `{"targetSetpoint":{"value":70,"scale":"FAHRENHEIT"}}`, 21},
		{NameSetTargetTemperature, `{"targetSetpoint":{"value":300,"scale":"KELVIN"}}`, 27},
		{NameSetTargetTemperature, `{"targetSetpoint":{"value":50,"scale":"CELSIUS"}}`, 30},
		{NameAdjustTargetTemperature, `{"targetSetpointDelta":{"value":-2,"scale":"CELSIUS"}}`, 18},
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			f := newFixture(t)
			th := id(device.FamilyThermostat, "th1")

			resp := f.router.Handle(context.Background(), body(alexa.NamespaceThermostatController, tt.name, th, validToken, tt.payload))
			if resp.IsError() {
				t.Fatalf("error %q", resp.ErrorType())
			}
			if v := f.point(t, "th1.1.SET_POINT_TEMPERATURE"); v != tt.want {
				t.Errorf("setpoint = %v, want %v", v, tt.want)
			}
		})
	}
}

func TestHandle_ColorTemperatureClamped(t *testing.T) {
	f := newFixture(t)
	lamp := id(device.FamilyHueLight, "lamp1")

	resp := f.router.Handle(context.Background(), body(alexa.NamespaceColorTemperature, NameSetColorTemperature, lamp, validToken, `{"colorTemperatureInKelvin":12000}`))
	if resp.IsError() {
		t.Fatalf("error %q", resp.ErrorType())
	}
	// The router clamps to 10000, the lamp further to its 6500 maximum.
	if v := f.point(t, "lamp1.action.colorTemperature"); v != 6500 {
		t.Errorf("colorTemperature = %v, want 6500", v)
	}
}

func TestHandle_ColorTemperatureExtremes(t *testing.T) {
	tests := []struct {
		payload string
		want    int
	}{
		{`{"colorTemperatureInKelvin":1e20}`, 6500},
		{`{"colorTemperatureInKelvin":-1e20}`, 2000},
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			f := newFixture(t)
			lamp := id(device.FamilyHueLight, "lamp1")

			resp := f.router.Handle(context.Background(), body(alexa.NamespaceColorTemperature, NameSetColorTemperature, lamp, validToken, tt.payload))
			if resp.IsError() {
				t.Fatalf("error %q", resp.ErrorType())
			}
			if v := f.point(t, "lamp1.action.colorTemperature"); v != tt.want {
				t.Errorf("colorTemperature = %v, want %d", v, tt.want)
			}
		})
	}
}

func TestHandle_Discovery(t *testing.T) {
	f := newFixture(t)
	b := []byte(`{"directive":{"header":{"namespace":"Alexa.Discovery","name":"Discover","messageId":"m","payloadVersion":"3"},
		"payload":{"scope":{"type":"BearerToken","token":"whatever"}}}}`)

	resp := f.router.Handle(context.Background(), b)
	if !f.discovery.called {
		t.Fatal("discovery compiler not called")
	}
	if resp.Event.Header.Name != alexa.NameDiscoverResponse {
		t.Errorf("header name = %q, want Discover.Response", resp.Event.Header.Name)
	}
}

func acceptGrantBody(token string) []byte {
	return []byte(fmt.Sprintf(`{"directive":{"header":{"namespace":"Alexa.Authorization","name":"AcceptGrant","messageId":"m","payloadVersion":"3"},
		"payload":{"grant":{"type":"OAuth2.AuthorizationCode","code":"grant-code"},"grantee":{"type":"BearerToken","token":%q}}}}`, token))
}

func TestHandle_AcceptGrant(t *testing.T) {
	f := newFixture(t)

	resp := f.router.Handle(context.Background(), acceptGrantBody(validToken))
	if resp.IsError() {
		t.Fatalf("error %q", resp.ErrorType())
	}
	if resp.Event.Header.Name != alexa.NameAcceptGrantResponse {
		t.Errorf("header name = %q, want AcceptGrant.Response", resp.Event.Header.Name)
	}
	if f.grants.code != "grant-code" {
		t.Errorf("grant code = %q, want grant-code", f.grants.code)
	}
}

func TestHandle_AcceptGrantFailure(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		grantErr error
	}{
		{"bad grantee token", "stale", nil},
		{"provider exchange fails", validToken, errors.New("provider says no")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.grants.err = tt.grantErr

			resp := f.router.Handle(context.Background(), acceptGrantBody(tt.token))
			if resp.ErrorType() != alexa.ErrAcceptGrantFailed {
				t.Errorf("ErrorType() = %q, want ACCEPT_GRANT_FAILED", resp.ErrorType())
			}
			if resp.Event.Header.Namespace != alexa.NamespaceAuthorization {
				t.Errorf("namespace = %q, want Alexa.Authorization", resp.Event.Header.Namespace)
			}
		})
	}
}

func TestHandle_InitializeCameraStreams(t *testing.T) {
	f := newFixture(t)
	cam := id(device.FamilyCamera, "cam1")

	resp := f.router.Handle(context.Background(), body(alexa.NamespaceCameraStreamController, NameInitializeCameraStreams, cam, validToken,
		`{"cameraStreams":[{"protocol":"RTSP","resolution":{"width":1280,"height":720},"authorizationType":"NONE","videoCodec":"H264","audioCodec":"AAC"}]}`))
	if resp.IsError() {
		t.Fatalf("error %q", resp.ErrorType())
	}

	p, ok := resp.Event.Payload.(CameraStreamsPayload)
	if !ok {
		t.Fatalf("payload type = %T", resp.Event.Payload)
	}
	if len(p.CameraStreams) != 1 {
		t.Fatalf("len(cameraStreams) = %d, want 1", len(p.CameraStreams))
	}
	s := p.CameraStreams[0]
	wantStream, wantSnap := CameraURLs("https://gw.example.com", cam, validToken)
	if s.URI != wantStream {
		t.Errorf("uri = %q, want %q", s.URI, wantStream)
	}
	if p.ImageURI != wantSnap {
		t.Errorf("imageUri = %q, want %q", p.ImageURI, wantSnap)
	}
	if !strings.Contains(s.URI, "?token="+validToken) {
		t.Errorf("uri %q does not carry the token", s.URI)
	}
	if s.IdleTimeoutSeconds != 10 {
		t.Errorf("idleTimeoutSeconds = %d, want 10", s.IdleTimeoutSeconds)
	}
	if _, ok := resp.Context.Find(alexa.NamespaceEndpointHealth, "connectivity"); !ok {
		t.Error("camera reply context lacks connectivity")
	}
}

func TestRouteFor(t *testing.T) {
	tests := []struct {
		h    alexa.Header
		want Route
	}{
		{alexa.Header{Namespace: "Alexa", Name: "ReportState"}, Route{"Alexa", "ReportState"}},
		{alexa.Header{Namespace: "Alexa.PowerController", Name: "TurnOn"}, Route{Namespace: "Alexa.PowerController"}},
	}
	for _, tt := range tests {
		if got := RouteFor(tt.h); got != tt.want {
			t.Errorf("RouteFor(%+v) = %+v, want %+v", tt.h, got, tt.want)
		}
	}
}
