package events

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-alexa/internal/alexa"
	"github.com/nerrad567/gray-logic-alexa/internal/auth"
	"github.com/nerrad567/gray-logic-alexa/internal/device"
	"github.com/nerrad567/gray-logic-alexa/internal/pointstore"
)

var (
	plugID = alexa.EndpointID(device.FamilyPlug, "plug1")
	bellID = alexa.EndpointID(device.FamilyDoorbell, "bell1")
)

type fakeTokens struct {
	token string
	err   error
}

func (f fakeTokens) AccessToken(context.Context) (string, error) {
	return f.token, f.err
}

type fakeHub struct {
	mu       sync.Mutex
	channels []string
}

func (h *fakeHub) Broadcast(channel string, _ any) {
	h.mu.Lock()
	h.channels = append(h.channels, channel)
	h.mu.Unlock()
}

func (h *fakeHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.channels)
}

type captured struct {
	auth string
	body string
}

// gateway is a fake event gateway recording every POST.
type gateway struct {
	*httptest.Server
	status   int
	received chan captured
}

func newGateway(t *testing.T, status int) *gateway {
	t.Helper()
	g := &gateway{status: status, received: make(chan captured, 16)}
	g.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		g.received <- captured{auth: r.Header.Get("Authorization"), body: string(body)}
		w.WriteHeader(g.status)
	}))
	t.Cleanup(g.Close)
	return g
}

func (g *gateway) next(t *testing.T) captured {
	t.Helper()
	select {
	case c := <-g.received:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
		return captured{}
	}
}

func (g *gateway) expectNone(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case c := <-g.received:
		t.Fatalf("unexpected event: %s", c.body)
	case <-time.After(wait):
	}
}

func newTestPublisher(t *testing.T, url string, tokens TokenSource, delay time.Duration) *Publisher {
	t.Helper()

	cat := &device.Catalog{Devices: []device.Descriptor{
		{Family: device.FamilyPlug, SourceID: "plug1", Name: "Fan"},
		{Family: device.FamilyDoorbell, SourceID: "bell1", Name: "Front door"},
	}}
	store := pointstore.NewMemoryStore(map[string]any{
		"plug1.3.STATE":   true,
		"plug1.0.UNREACH": false,
		"bell1.0.UNREACH": false,
	})
	reg := device.NewRegistry()
	if err := reg.Populate(cat, store); err != nil {
		t.Fatalf("Populate() error = %v", err)
	}

	p := NewPublisher(Config{EventGatewayURL: url, ReportDelay: delay}, reg, tokens)
	t.Cleanup(p.Close)
	return p
}

func TestNotify_CoalescesPerEndpoint(t *testing.T) {
	gw := newGateway(t, http.StatusAccepted)
	p := newTestPublisher(t, gw.URL, fakeTokens{token: "provider-token"}, 50*time.Millisecond)

	p.Notify(plugID, "plug1.3.STATE", true)
	p.Notify(plugID, "plug1.3.STATE", false)
	p.Notify(plugID, "plug1.3.STATE", true)

	if p.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1", p.Pending())
	}

	got := gw.next(t)
	if got.auth != "Bearer provider-token" {
		t.Errorf("Authorization = %q, want %q", got.auth, "Bearer provider-token")
	}
	for _, want := range []string{
		`"name":"ChangeReport"`,
		`"cause":{"type":"PHYSICAL_INTERACTION"}`,
		`"name":"powerState","value":"ON"`,
		`"endpointId":"` + plugID + `"`,
	} {
		if !strings.Contains(got.body, want) {
			t.Errorf("body missing %s: %s", want, got.body)
		}
	}

	gw.expectNone(t, 150*time.Millisecond)
}

func TestNotify_DoorbellPress(t *testing.T) {
	gw := newGateway(t, http.StatusAccepted)
	hub := &fakeHub{}
	p := newTestPublisher(t, gw.URL, fakeTokens{token: "tok"}, time.Hour)
	p.SetBroadcaster(hub)
	p.SetClock(func() time.Time { return time.Date(2026, 5, 1, 7, 0, 0, 0, time.UTC) })

	p.Notify(bellID, "bell1.1.PRESS_SHORT", true)

	got := gw.next(t)
	for _, want := range []string{
		`"namespace":"Alexa.DoorbellEventSource"`,
		`"name":"DoorbellPress"`,
		`"timestamp":"2026-05-01T07:00:00Z"`,
	} {
		if !strings.Contains(got.body, want) {
			t.Errorf("body missing %s: %s", want, got.body)
		}
	}
	if p.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0 (press is not delayed)", p.Pending())
	}
	if hub.count() != 1 || hub.channels[0] != ChannelDoorbellPress {
		t.Errorf("broadcast channels = %v, want [%s]", hub.channels, ChannelDoorbellPress)
	}
}

func TestNotify_DoorbellReleaseIsChangeReport(t *testing.T) {
	p := newTestPublisher(t, "http://unused", fakeTokens{token: "tok"}, time.Hour)

	p.Notify(bellID, "bell1.1.PRESS_SHORT", false)
	if p.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1", p.Pending())
	}
}

func TestNotify_UnknownEndpoint(t *testing.T) {
	p := newTestPublisher(t, "http://unused", fakeTokens{token: "tok"}, time.Hour)

	p.Notify("nope", "x", 1)
	if p.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", p.Pending())
	}
}

func TestPublish_MissingAccountLinking(t *testing.T) {
	gw := newGateway(t, http.StatusAccepted)
	hub := &fakeHub{}
	p := newTestPublisher(t, gw.URL, fakeTokens{err: auth.ErrMissingAccountLinking}, time.Hour)
	p.SetBroadcaster(hub)

	if err := p.PublishChangeReport(context.Background(), plugID); err != nil {
		t.Fatalf("PublishChangeReport() error = %v, want nil", err)
	}
	gw.expectNone(t, 50*time.Millisecond)
	if hub.count() != 1 {
		t.Errorf("broadcasts = %d, want 1", hub.count())
	}
}

func TestPublish_Errors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		tokens     fakeTokens
		endpointID string
		wantErr    error
	}{
		{name: "gateway rejects", status: http.StatusForbidden, tokens: fakeTokens{token: "tok"}, endpointID: plugID},
		{name: "provider unavailable", status: http.StatusAccepted, tokens: fakeTokens{err: auth.ErrProviderUnavailable}, endpointID: plugID, wantErr: auth.ErrProviderUnavailable},
		{name: "unknown endpoint", status: http.StatusAccepted, tokens: fakeTokens{token: "tok"}, endpointID: "nope", wantErr: device.ErrDeviceNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := newGateway(t, tt.status)
			p := newTestPublisher(t, gw.URL, tt.tokens, time.Hour)

			err := p.PublishChangeReport(context.Background(), tt.endpointID)
			if err == nil {
				t.Fatal("PublishChangeReport() expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("PublishChangeReport() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestBroadcast_StripsToken(t *testing.T) {
	var got any
	hub := broadcastFunc(func(_ string, payload any) { got = payload })
	p := NewPublisher(Config{}, nil, nil)
	p.SetBroadcaster(hub)

	event := alexa.NewChangeReport("dev-1", "secret", alexa.CausePhysicalInteraction, nil, nil)
	p.broadcast(ChannelChangeReport, event)

	local, ok := got.(alexa.Response)
	if !ok {
		t.Fatalf("broadcast payload type = %T, want alexa.Response", got)
	}
	if local.Event.Endpoint.Scope != nil {
		t.Error("broadcast event still carries the bearer token")
	}
	if event.Event.Endpoint.Scope == nil {
		t.Error("original event was modified")
	}
}

type broadcastFunc func(channel string, payload any)

func (f broadcastFunc) Broadcast(channel string, payload any) { f(channel, payload) }

func TestClose_CancelsPending(t *testing.T) {
	gw := newGateway(t, http.StatusAccepted)
	p := newTestPublisher(t, gw.URL, fakeTokens{token: "tok"}, time.Hour)

	p.Notify(plugID, "plug1.3.STATE", true)
	p.Close()

	if p.Pending() != 0 {
		t.Errorf("Pending() after Close = %d, want 0", p.Pending())
	}
	p.Notify(plugID, "plug1.3.STATE", false)
	if p.Pending() != 0 {
		t.Errorf("Pending() after Notify on closed publisher = %d, want 0", p.Pending())
	}
	gw.expectNone(t, 50*time.Millisecond)
}
