package device

import (
	"fmt"
	"slices"
	"sync"

	"github.com/nerrad567/gray-logic-alexa/internal/pointstore"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry holds the adapters built from the device catalog, keyed by
// endpoint ID, with a reverse index from point ID to endpoint.
//
// The registry is read-mostly: it is populated at startup and then only
// read by directive handlers and the event publisher.
//
// All public methods are thread-safe.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
	byPoint  map[string][]string // point ID → endpoint IDs
	logger   Logger
}

// NewRegistry creates an empty device registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
		byPoint:  make(map[string][]string),
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Populate builds an adapter for every catalog entry and registers it.
//
// Parameters:
//   - cat: Validated device catalog
//   - store: Point store the adapters read and write through
//
// Returns:
//   - error: If an entry cannot be built or two entries share an endpoint ID
func (r *Registry) Populate(cat *Catalog, store pointstore.Store) error {
	for i := range cat.Devices {
		a, err := New(cat.Devices[i], store)
		if err != nil {
			return fmt.Errorf("devices[%d] %s: %w", i, cat.Devices[i].SourceID, err)
		}
		if err := r.Add(a); err != nil {
			return fmt.Errorf("devices[%d] %s: %w", i, cat.Devices[i].SourceID, err)
		}
	}
	r.logger.Info("device registry populated", "count", r.Len())
	return nil
}

// Add registers an adapter.
// Returns ErrDeviceExists if the endpoint ID is already taken.
func (r *Registry) Add(a Adapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := a.EndpointID()
	if _, ok := r.adapters[id]; ok {
		return fmt.Errorf("%w: %s", ErrDeviceExists, id)
	}
	r.adapters[id] = a
	for _, p := range a.Points() {
		r.byPoint[p] = append(r.byPoint[p], id)
	}

	r.logger.Debug("device registered", "endpoint_id", id, "family", a.Family())
	return nil
}

// Get returns the adapter for an endpoint ID.
// Returns ErrDeviceNotFound if no adapter is registered under it.
func (r *Registry) Get(endpointID string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.adapters[endpointID]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	return a, nil
}

// List returns all adapters ordered by endpoint ID.
func (r *Registry) List() []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.adapters))
	for id := range r.adapters {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	out := make([]Adapter, len(ids))
	for i, id := range ids {
		out[i] = r.adapters[id]
	}
	return out
}

// Len returns the number of registered adapters.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.adapters)
}

// FindByPoint returns the adapters that read pointID.
func (r *Registry) FindByPoint(pointID string) []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.byPoint[pointID]
	out := make([]Adapter, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.adapters[id])
	}
	return out
}
