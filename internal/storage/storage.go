// Package storage provides key-value storage media shared between several
// contexts (processes, handles) with change notifications.
//
// A medium mirrors browser local storage: string keys map to string values,
// and every write made through one context is announced to the watchers of
// every other context on the same medium. The writing context never sees
// its own writes as events.
package storage

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrQuotaExceeded is returned when a write would exceed the medium capacity.
	ErrQuotaExceeded = errors.New("storage quota exceeded")
	// ErrClosed is returned by operations on a closed medium.
	ErrClosed = errors.New("storage closed")
)

// Storage is one context's handle on a shared key-value medium.
type Storage interface {
	// GetItem returns the value stored under key. ok is false when the key
	// is absent.
	GetItem(ctx context.Context, key string) (value string, ok bool, err error)

	// SetItem stores value under key.
	SetItem(ctx context.Context, key, value string) error

	// RemoveItem deletes key. Removing an absent key is not an error.
	RemoveItem(ctx context.Context, key string) error

	// Watch registers fn for changes made by other contexts. The returned
	// function removes the registration.
	Watch(fn func(Event)) (cancel func())

	// Close releases the context's resources and stops event delivery.
	Close() error
}

// Event describes a change made to a key by another context.
// NewValue is nil when the key was removed.
type Event struct {
	Key      string
	NewValue *string
}

// notifier is the watcher registry shared by every backend.
type notifier struct {
	mu       sync.Mutex
	nextID   int
	watchers map[int]func(Event)
}

func (n *notifier) Watch(fn func(Event)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.watchers == nil {
		n.watchers = make(map[int]func(Event))
	}
	id := n.nextID
	n.nextID++
	n.watchers[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.watchers, id)
			n.mu.Unlock()
		})
	}
}

func (n *notifier) dispatch(ev Event) {
	n.mu.Lock()
	fns := make([]func(Event), 0, len(n.watchers))
	for _, fn := range n.watchers {
		fns = append(fns, fn)
	}
	n.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func (n *notifier) reset() {
	n.mu.Lock()
	n.watchers = nil
	n.mu.Unlock()
}

func valuePtr(s string) *string {
	return &s
}
