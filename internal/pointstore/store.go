package pointstore

import (
	"context"
	"slices"
	"sync"
)

// ChangeFunc is called with a point ID and its new value whenever a point
// changes. It runs on the goroutine that observed the change and must not
// block.
type ChangeFunc func(pointID string, value any)

// Store is the point access contract consumed by device adapters.
type Store interface {
	GetPointValue(ctx context.Context, pointID string) (any, error)
	SetPointValue(ctx context.Context, pointID string, value any) error
	OnPointChange(fn ChangeFunc)
}

// listeners is a copy-on-notify list of change callbacks, shared by both
// store implementations.
type listeners struct {
	mu  sync.RWMutex
	fns []ChangeFunc
}

func (l *listeners) add(fn ChangeFunc) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.fns = append(l.fns, fn)
	l.mu.Unlock()
}

func (l *listeners) notify(pointID string, value any) {
	l.mu.RLock()
	fns := slices.Clone(l.fns)
	l.mu.RUnlock()

	for _, fn := range fns {
		fn(pointID, value)
	}
}
