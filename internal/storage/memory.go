package storage

import (
	"context"
	"sync"
)

// MemoryBackend is an in-process medium. Each Open call returns a new
// context on the same data, which makes it the reference backend for
// exercising cross-context behaviour in tests.
type MemoryBackend struct {
	mu       sync.Mutex
	items    map[string]string
	quota    int
	contexts map[*Memory]struct{}
}

// MemoryOption configures a MemoryBackend.
type MemoryOption func(*MemoryBackend)

// WithQuota caps the total size of keys plus values, in bytes.
// Zero means unlimited.
func WithQuota(bytes int) MemoryOption {
	return func(b *MemoryBackend) {
		b.quota = bytes
	}
}

// NewMemoryBackend creates an empty in-process medium.
func NewMemoryBackend(opts ...MemoryOption) *MemoryBackend {
	b := &MemoryBackend{
		items:    make(map[string]string),
		contexts: make(map[*Memory]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Open returns a new context on the backend.
func (b *MemoryBackend) Open() *Memory {
	m := &Memory{backend: b}
	b.mu.Lock()
	b.contexts[m] = struct{}{}
	b.mu.Unlock()
	return m
}

func (b *MemoryBackend) size(key, value string) int {
	total := 0
	for k, v := range b.items {
		if k == key {
			continue
		}
		total += len(k) + len(v)
	}
	return total + len(key) + len(value)
}

// others returns every open context except origin. Caller holds b.mu.
func (b *MemoryBackend) others(origin *Memory) []*Memory {
	out := make([]*Memory, 0, len(b.contexts))
	for m := range b.contexts {
		if m != origin {
			out = append(out, m)
		}
	}
	return out
}

// Memory is one context on a MemoryBackend.
type Memory struct {
	notifier
	backend *MemoryBackend

	closeMu sync.Mutex
	closed  bool
}

var _ Storage = (*Memory)(nil)

func (m *Memory) isClosed() bool {
	m.closeMu.Lock()
	defer m.closeMu.Unlock()
	return m.closed
}

// GetItem returns the value stored under key.
func (m *Memory) GetItem(_ context.Context, key string) (string, bool, error) {
	if m.isClosed() {
		return "", false, ErrClosed
	}
	m.backend.mu.Lock()
	defer m.backend.mu.Unlock()
	v, ok := m.backend.items[key]
	return v, ok, nil
}

// SetItem stores value and notifies the other contexts. Writing the value
// already stored is not a change and raises no event.
func (m *Memory) SetItem(_ context.Context, key, value string) error {
	if m.isClosed() {
		return ErrClosed
	}

	b := m.backend
	b.mu.Lock()
	if old, ok := b.items[key]; ok && old == value {
		b.mu.Unlock()
		return nil
	}
	if b.quota > 0 && b.size(key, value) > b.quota {
		b.mu.Unlock()
		return ErrQuotaExceeded
	}
	b.items[key] = value
	targets := b.others(m)
	b.mu.Unlock()

	ev := Event{Key: key, NewValue: valuePtr(value)}
	for _, t := range targets {
		t.dispatch(ev)
	}
	return nil
}

// RemoveItem deletes key and notifies the other contexts.
func (m *Memory) RemoveItem(_ context.Context, key string) error {
	if m.isClosed() {
		return ErrClosed
	}

	b := m.backend
	b.mu.Lock()
	if _, ok := b.items[key]; !ok {
		b.mu.Unlock()
		return nil
	}
	delete(b.items, key)
	targets := b.others(m)
	b.mu.Unlock()

	ev := Event{Key: key}
	for _, t := range targets {
		t.dispatch(ev)
	}
	return nil
}

// Close detaches the context from the backend.
func (m *Memory) Close() error {
	m.closeMu.Lock()
	if m.closed {
		m.closeMu.Unlock()
		return nil
	}
	m.closed = true
	m.closeMu.Unlock()

	m.backend.mu.Lock()
	delete(m.backend.contexts, m)
	m.backend.mu.Unlock()
	m.reset()
	return nil
}
