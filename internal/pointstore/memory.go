package pointstore

import (
	"context"
	"fmt"
	"reflect"
	"sync"
)

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	mu          sync.RWMutex
	values      map[string]any
	unreachable bool
	setErr      error
	writes      []Write

	listeners listeners
}

// Write records one SetPointValue call.
type Write struct {
	PointID string
	Value   any
}

// NewMemoryStore creates a store seeded with initial values.
func NewMemoryStore(initial map[string]any) *MemoryStore {
	values := make(map[string]any, len(initial))
	for k, v := range initial {
		values[k] = v
	}
	return &MemoryStore{values: values}
}

// GetPointValue returns the stored value or ErrNotFound.
func (m *MemoryStore) GetPointValue(ctx context.Context, pointID string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.unreachable {
		return nil, ErrUnreachable
	}
	v, ok := m.values[pointID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, pointID)
	}
	return v, nil
}

// SetPointValue stores value and notifies listeners if it changed.
func (m *MemoryStore) SetPointValue(ctx context.Context, pointID string, value any) error {
	if pointID == "" {
		return ErrInvalidPoint
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	if m.unreachable {
		m.mu.Unlock()
		return ErrUnreachable
	}
	if m.setErr != nil {
		err := m.setErr
		m.mu.Unlock()
		return err
	}
	old, existed := m.values[pointID]
	m.values[pointID] = value
	m.writes = append(m.writes, Write{PointID: pointID, Value: value})
	m.mu.Unlock()

	if !existed || !reflect.DeepEqual(old, value) {
		m.listeners.notify(pointID, value)
	}
	return nil
}

// OnPointChange registers fn for every subsequent change.
func (m *MemoryStore) OnPointChange(fn ChangeFunc) {
	m.listeners.add(fn)
}

// SetUnreachable makes every read and write fail with ErrUnreachable.
func (m *MemoryStore) SetUnreachable(v bool) {
	m.mu.Lock()
	m.unreachable = v
	m.mu.Unlock()
}

// FailWrites makes SetPointValue return err (nil restores normal writes).
func (m *MemoryStore) FailWrites(err error) {
	m.mu.Lock()
	m.setErr = err
	m.mu.Unlock()
}

// Writes returns a copy of all recorded writes in call order.
func (m *MemoryStore) Writes() []Write {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Write(nil), m.writes...)
}
