package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-alexa/internal/alexa"
	"github.com/nerrad567/gray-logic-alexa/internal/auth"
	"github.com/nerrad567/gray-logic-alexa/internal/device"
	"github.com/nerrad567/gray-logic-alexa/internal/metrics"
)

// WebSocket channels events are broadcast on.
const (
	ChannelChangeReport  = "alexa.change_report"
	ChannelDoorbellPress = "alexa.doorbell_press"
)

// Result label for events dropped because no account is linked.
const resultUnlinked = "unlinked"

const defaultReportDelay = 2 * time.Second

// Logger defines the logging interface used by the Publisher.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Devices resolves endpoint IDs to adapters.
type Devices interface {
	Get(endpointID string) (device.Adapter, error)
}

// TokenSource yields the gateway's bearer token for the event gateway.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// Broadcaster fans events out to local subscribers.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// Config holds publisher settings.
type Config struct {
	EventGatewayURL string
	ReportDelay     time.Duration
	Timeout         time.Duration
}

// Publisher coalesces point changes into proactive events.
type Publisher struct {
	cfg     Config
	devices Devices
	tokens  TokenSource
	client  *http.Client
	hub     Broadcaster
	logger  Logger
	now     func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	pending map[string]*time.Timer
	closed  bool
}

// NewPublisher creates a publisher posting to cfg.EventGatewayURL.
func NewPublisher(cfg Config, devices Devices, tokens TokenSource) *Publisher {
	if cfg.ReportDelay <= 0 {
		cfg.ReportDelay = defaultReportDelay
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Publisher{
		cfg:     cfg,
		devices: devices,
		tokens:  tokens,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  noopLogger{},
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
		pending: make(map[string]*time.Timer),
	}
}

// SetLogger sets the logger for the publisher.
func (p *Publisher) SetLogger(logger Logger) {
	p.logger = logger
}

// SetBroadcaster sets where events are mirrored locally.
func (p *Publisher) SetBroadcaster(hub Broadcaster) {
	p.hub = hub
}

// SetHTTPClient replaces the event gateway client.
func (p *Publisher) SetHTTPClient(c *http.Client) {
	p.client = c
}

// SetClock replaces the time source used for event timestamps.
func (p *Publisher) SetClock(now func() time.Time) {
	p.now = now
}

// Notify records a change of pointID on endpointID. Unknown endpoints are
// ignored.
func (p *Publisher) Notify(endpointID, pointID string, value any) {
	a, err := p.devices.Get(endpointID)
	if err != nil {
		p.logger.Debug("change for unknown endpoint", "endpoint_id", endpointID, "point_id", pointID)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}

	if bell, ok := a.(device.DoorbellEventSource); ok && bell.IsPress(pointID, value) {
		pressed := p.now()
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			if err := p.PublishDoorbellPress(p.ctx, endpointID, pressed); err != nil {
				p.logger.Error("doorbell press not sent", "endpoint_id", endpointID, "error", err)
			}
		}()
		return
	}

	if _, ok := p.pending[endpointID]; ok {
		return
	}
	p.wg.Add(1)
	p.pending[endpointID] = time.AfterFunc(p.cfg.ReportDelay, func() {
		defer p.wg.Done()
		p.flush(endpointID)
	})
}

func (p *Publisher) flush(endpointID string) {
	p.mu.Lock()
	delete(p.pending, endpointID)
	p.mu.Unlock()

	if err := p.PublishChangeReport(p.ctx, endpointID); err != nil {
		p.logger.Error("change report not sent", "endpoint_id", endpointID, "error", err)
	}
}

// Pending returns the number of endpoints waiting for their report delay.
func (p *Publisher) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// PublishChangeReport reads the endpoint's state and sends it as a
// ChangeReport caused by physical interaction.
//
// Returns:
//   - error: nil when sent or dropped for a missing account link; otherwise
//     the state read or delivery failure
func (p *Publisher) PublishChangeReport(ctx context.Context, endpointID string) error {
	a, err := p.devices.Get(endpointID)
	if err != nil {
		return err
	}
	props, err := a.ReportState(ctx)
	if err != nil {
		return fmt.Errorf("reading state of %s: %w", endpointID, err)
	}

	return p.publish(ctx, alexa.NameChangeReport, ChannelChangeReport, func(token string) *alexa.Response {
		return alexa.NewChangeReport(endpointID, token, alexa.CausePhysicalInteraction, props, nil)
	})
}

// PublishDoorbellPress sends a DoorbellPress event for endpointID.
func (p *Publisher) PublishDoorbellPress(ctx context.Context, endpointID string, pressed time.Time) error {
	return p.publish(ctx, alexa.NameDoorbellPress, ChannelDoorbellPress, func(token string) *alexa.Response {
		return alexa.NewDoorbellPress(endpointID, token, pressed)
	})
}

// publish builds an event with the provider token, mirrors it locally and
// posts it. A missing account link mirrors the token-less event and drops it.
func (p *Publisher) publish(ctx context.Context, name, channel string, build func(token string) *alexa.Response) error {
	token, err := p.tokens.AccessToken(ctx)
	if err != nil {
		if errors.Is(err, auth.ErrMissingAccountLinking) {
			p.broadcast(channel, build(""))
			p.logger.Warn("no linked account, event dropped", "event", name)
			metrics.Events.WithLabelValues(name, resultUnlinked).Inc()
			return nil
		}
		metrics.Events.WithLabelValues(name, metrics.ResultError).Inc()
		return fmt.Errorf("obtaining provider token: %w", err)
	}

	event := build(token)
	p.broadcast(channel, event)

	if err := p.send(ctx, token, event); err != nil {
		metrics.Events.WithLabelValues(name, metrics.ResultError).Inc()
		return err
	}
	metrics.Events.WithLabelValues(name, metrics.ResultOK).Inc()
	p.logger.Debug("event sent", "event", name, "endpoint_id", event.Event.Endpoint.EndpointID)
	return nil
}

func (p *Publisher) broadcast(channel string, event *alexa.Response) {
	if p.hub == nil {
		return
	}
	local := *event
	if local.Event.Endpoint != nil {
		ep := *local.Event.Endpoint
		ep.Scope = nil
		local.Event.Endpoint = &ep
	}
	p.hub.Broadcast(channel, local)
}

func (p *Publisher) send(ctx context.Context, token string, event *alexa.Response) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.EventGatewayURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building event request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("event gateway returned %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}
	return nil
}

// Close cancels pending reports and waits for in-flight sends.
func (p *Publisher) Close() {
	p.mu.Lock()
	p.closed = true
	for id, t := range p.pending {
		if t.Stop() {
			p.wg.Done()
		}
		delete(p.pending, id)
	}
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
}
