package pointstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/nerrad567/gray-logic-alexa/internal/infrastructure/mqtt"
)

// Broker is the part of the MQTT client the store needs. *mqtt.Client
// satisfies it; tests substitute a fake.
type Broker interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
	Topics() mqtt.Topics
}

// Logger is the logging interface used by MQTTStore.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// MQTTStore mirrors retained point values from "<prefix>/state/<point>" into
// memory and publishes writes to "<prefix>/set/<point>".
//
// State payloads are JSON. A bare value (true, 42, "ON") is taken as is; an
// object carrying a "val" key ({"val":42,"ack":true}) is unwrapped. Anything
// that is not valid JSON is stored as a string.
//
// Thread Safety: all methods are safe for concurrent use.
type MQTTStore struct {
	broker Broker
	qos    byte

	mu     sync.RWMutex
	values map[string]any

	listeners listeners
	logger    Logger
}

// NewMQTTStore creates a store on top of a connected broker client.
func NewMQTTStore(broker Broker, qos byte) *MQTTStore {
	return &MQTTStore{
		broker: broker,
		qos:    qos,
		values: make(map[string]any),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the store.
func (s *MQTTStore) SetLogger(logger Logger) {
	s.logger = logger
}

// Start subscribes to all state topics. Retained messages arrive straight
// away and populate the cache.
func (s *MQTTStore) Start(_ context.Context) error {
	if err := s.broker.Subscribe(s.broker.Topics().AllStates(), s.qos, s.handleState); err != nil {
		return fmt.Errorf("subscribing to point states: %w", err)
	}
	return nil
}

func (s *MQTTStore) handleState(topic string, payload []byte) error {
	pointID, ok := s.broker.Topics().PointFromState(topic)
	if !ok {
		return nil
	}
	if len(payload) == 0 {
		// Cleared retained message: the point no longer exists.
		s.mu.Lock()
		delete(s.values, pointID)
		s.mu.Unlock()
		return nil
	}

	value := decodeValue(payload)
	s.mu.Lock()
	old, existed := s.values[pointID]
	s.values[pointID] = value
	s.mu.Unlock()

	if existed && reflect.DeepEqual(old, value) {
		return nil
	}
	s.logger.Debug("point changed", "point", pointID)
	s.listeners.notify(pointID, value)
	return nil
}

// GetPointValue returns the last value seen on the point's state topic.
// ErrUnreachable is returned while the broker is disconnected so stale
// values are never reported as current.
func (s *MQTTStore) GetPointValue(_ context.Context, pointID string) (any, error) {
	if !s.broker.IsConnected() {
		return nil, ErrUnreachable
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[pointID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, pointID)
	}
	return v, nil
}

// SetPointValue publishes value to the point's set topic and updates the
// local cache optimistically so a state report built right after the write
// reflects it. The bridge's next state message overwrites the cache.
func (s *MQTTStore) SetPointValue(ctx context.Context, pointID string, value any) error {
	if pointID == "" {
		return ErrInvalidPoint
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding value for %s: %w", pointID, err)
	}

	if err := s.broker.Publish(s.broker.Topics().Set(pointID), payload, s.qos, false); err != nil {
		if errors.Is(err, mqtt.ErrNotConnected) || errors.Is(err, mqtt.ErrPublishFailed) {
			return fmt.Errorf("%w: %w", ErrUnreachable, err)
		}
		return fmt.Errorf("publishing %s: %w", pointID, err)
	}

	s.mu.Lock()
	s.values[pointID] = value
	s.mu.Unlock()
	return nil
}

// OnPointChange registers fn for changes observed on state topics.
// Optimistic cache updates from SetPointValue do not trigger it.
func (s *MQTTStore) OnPointChange(fn ChangeFunc) {
	s.listeners.add(fn)
}

// Len returns the number of points currently cached.
func (s *MQTTStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

func decodeValue(payload []byte) any {
	var v any
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil || dec.More() {
		return string(payload)
	}
	if obj, ok := v.(map[string]any); ok {
		if val, ok := obj["val"]; ok {
			v = val
		}
	}
	return normalizeNumber(v)
}

// normalizeNumber converts json.Number to int64 when integral, else float64.
func normalizeNumber(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}
