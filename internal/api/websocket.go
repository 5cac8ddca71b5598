package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-alexa/internal/alexa"
	"github.com/nerrad567/gray-logic-alexa/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-alexa/internal/infrastructure/logging"
)

// Frame types of the event feed.
const (
	FrameSubscribe   = "subscribe"
	FrameUnsubscribe = "unsubscribe"
	FramePing        = "ping"
	FramePong        = "pong"
	FrameEvent       = "event"
	FrameAck         = "ack"
	FrameError       = "error"

	// feedQueueSize is the per-client outbound frame queue length.
	feedQueueSize = 256
)

// Frame is one message of the event feed, in either direction.
//
// Event frames carry a hub-wide sequence number; a gap tells the client its
// queue overflowed and frames were dropped.
type Frame struct {
	Type       string          `json:"type"`
	ID         string          `json:"id,omitempty"`
	Channel    string          `json:"channel,omitempty"`
	Seq        uint64          `json:"seq,omitempty"`
	EndpointID string          `json:"endpoint_id,omitempty"`
	Time       string          `json:"time,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Subscription selects events by channel and, optionally, endpoint.
// A channel ending in "*" matches every channel with that prefix. An empty
// Endpoints list matches all endpoints.
type Subscription struct {
	Channels  []string `json:"channels"`
	Endpoints []string `json:"endpoints,omitempty"`
}

// Hub fans proactive events out to connected feed clients.
type Hub struct {
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	seq     atomic.Uint64
	dropped atomic.Uint64

	mu      sync.RWMutex
	clients map[*feedClient]struct{}
}

// feedClient is one connected WebSocket.
type feedClient struct {
	hub     *Hub
	conn    *websocket.Conn
	subject string // identity of the token the client connected with

	// mu guards queue closure and the filter.
	mu     sync.Mutex
	queue  chan []byte
	closed bool
	filter eventFilter
}

// eventFilter is the union of a client's subscriptions.
type eventFilter struct {
	channels  map[string]struct{}
	prefixes  map[string]struct{}
	endpoints map[string]struct{}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Connections are authenticated by token, not origin
		return true
	},
}

// NewHub creates a hub. Call Run to tie its lifetime to a context.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*feedClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*feedClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.shutdown()
		if c.conn != nil {
			c.conn.Close()
		}
	}
}

func (h *Hub) register(c *feedClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("event feed client connected", "subject", c.subject, "clients", n)
}

func (h *Hub) unregister(c *feedClient) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	c.shutdown()
	h.logger.Debug("event feed client disconnected", "subject", c.subject, "clients", n)
}

// Broadcast delivers payload on channel to every matching client. Slow
// clients whose queue is full miss the frame.
func (h *Hub) Broadcast(channel string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("encoding feed event failed", "channel", channel, "error", err)
		return
	}

	endpointID := eventEndpoint(payload)
	data, err := json.Marshal(Frame{
		Type:       FrameEvent,
		Channel:    channel,
		Seq:        h.seq.Add(1),
		EndpointID: endpointID,
		Time:       time.Now().UTC().Format(time.RFC3339),
		Payload:    body,
	})
	if err != nil {
		h.logger.Error("encoding feed frame failed", "channel", channel, "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*feedClient, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		if !c.wants(channel, endpointID) {
			continue
		}
		if c.enqueue(data) {
			delivered++
		} else {
			h.dropped.Add(1)
		}
	}
	if delivered > 0 {
		h.logger.Debug("feed event delivered", "channel", channel, "endpoint_id", endpointID, "recipients", delivered)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many frames were discarded for full client queues.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// eventEndpoint extracts the endpoint an event is about, if any.
func eventEndpoint(payload any) string {
	var ep *alexa.Endpoint
	switch v := payload.(type) {
	case alexa.Response:
		ep = v.Event.Endpoint
	case *alexa.Response:
		if v != nil {
			ep = v.Event.Endpoint
		}
	}
	if ep == nil {
		return ""
	}
	return ep.EndpointID
}

// handleWebSocket implements GET /api/v1/ws. The token query parameter has
// already been verified by queryTokenMiddleware.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &feedClient{
		hub:   s.hub,
		conn:  conn,
		queue: make(chan []byte, feedQueueSize),
	}
	if claims := claimsFromContext(r.Context()); claims != nil {
		c.subject = claims.Subject
	}

	s.hub.register(c)

	go c.writeLoop(s.wsCfg)
	go c.readLoop(s.wsCfg)
}

// enqueue queues data without blocking. It returns false when the client is
// gone or its queue is full.
func (c *feedClient) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.queue <- data:
		return true
	default:
		return false
	}
}

// shutdown closes the queue once so writeLoop can exit.
func (c *feedClient) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.queue)
	}
}

func (c *feedClient) wants(channel, endpointID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter.matches(channel, endpointID)
}

func (f *eventFilter) matches(channel, endpointID string) bool {
	if len(f.endpoints) > 0 {
		if _, ok := f.endpoints[endpointID]; !ok {
			return false
		}
	}
	if _, ok := f.channels[channel]; ok {
		return true
	}
	for prefix := range f.prefixes {
		if strings.HasPrefix(channel, prefix) {
			return true
		}
	}
	return false
}

func (f *eventFilter) add(sub Subscription) {
	if f.channels == nil {
		f.channels = make(map[string]struct{})
		f.prefixes = make(map[string]struct{})
		f.endpoints = make(map[string]struct{})
	}
	for _, ch := range sub.Channels {
		if prefix, ok := strings.CutSuffix(ch, "*"); ok {
			f.prefixes[prefix] = struct{}{}
		} else {
			f.channels[ch] = struct{}{}
		}
	}
	for _, id := range sub.Endpoints {
		f.endpoints[id] = struct{}{}
	}
}

func (f *eventFilter) remove(sub Subscription) {
	for _, ch := range sub.Channels {
		if prefix, ok := strings.CutSuffix(ch, "*"); ok {
			delete(f.prefixes, prefix)
		} else {
			delete(f.channels, ch)
		}
	}
	for _, id := range sub.Endpoints {
		delete(f.endpoints, id)
	}
}

// readLoop processes client frames until the connection fails.
func (c *feedClient) readLoop(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	deadline := time.Duration(cfg.PingInterval+cfg.PongTimeout) * time.Second
	extend := func() error { return c.conn.SetReadDeadline(time.Now().Add(deadline)) }

	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	extend() //nolint:errcheck // a failed deadline surfaces on the next read
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("event feed read error", "subject", c.subject, "error", err)
			}
			return
		}
		// Application pings count as liveness too.
		extend() //nolint:errcheck // a failed deadline surfaces on the next read
		c.handle(data)
	}
}

// writeLoop drains the queue and keeps the connection alive with pings.
func (c *feedClient) writeLoop(cfg config.WebSocketConfig) {
	ticker := time.NewTicker(time.Duration(cfg.PingInterval) * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	writeWait := time.Duration(cfg.PongTimeout) * time.Second
	write := func(msgType int, data []byte) error {
		//nolint:errcheck // a failed deadline surfaces on the write
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		return c.conn.WriteMessage(msgType, data)
	}

	for {
		select {
		case data, ok := <-c.queue:
			if !ok {
				write(websocket.CloseMessage, nil) //nolint:errcheck // connection is closing anyway
				return
			}
			if err := write(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handle answers one inbound frame.
func (c *feedClient) handle(data []byte) {
	var in Frame
	if err := json.Unmarshal(data, &in); err != nil {
		c.reply(FrameError, "", map[string]string{"message": "invalid JSON frame"})
		return
	}

	switch in.Type {
	case FramePing:
		c.reply(FramePong, in.ID, nil)
	case FrameSubscribe, FrameUnsubscribe:
		var sub Subscription
		if len(in.Payload) == 0 || json.Unmarshal(in.Payload, &sub) != nil || len(sub.Channels)+len(sub.Endpoints) == 0 {
			c.reply(FrameError, in.ID, map[string]string{"message": "payload must list channels or endpoints"})
			return
		}
		c.mu.Lock()
		if in.Type == FrameSubscribe {
			c.filter.add(sub)
		} else {
			c.filter.remove(sub)
		}
		c.mu.Unlock()
		c.hub.logger.Info("event feed subscription changed",
			"subject", c.subject,
			"action", in.Type,
			"channels", sub.Channels,
			"endpoints", sub.Endpoints,
		)
		c.reply(FrameAck, in.ID, map[string]any{in.Type: sub})
	default:
		c.reply(FrameError, in.ID, map[string]string{"message": "unknown frame type: " + in.Type})
	}
}

// reply queues a control frame for the client.
func (c *feedClient) reply(frameType, id string, payload any) {
	out := Frame{
		Type: frameType,
		ID:   id,
		Time: time.Now().UTC().Format(time.RFC3339),
	}
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return
		}
		out.Payload = body
	}
	data, err := json.Marshal(out)
	if err != nil {
		return
	}
	c.enqueue(data)
}
