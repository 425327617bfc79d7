package store

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"touche/internal/codec"
	"touche/internal/storage"
)

// Persistent is a reactive value mirrored into one key of a storage medium.
//
// Every Set or Update replaces the value, notifies each subscriber once in
// subscription order and writes the encoded value to the medium. Writes
// made to the same key by other contexts replace the value wholesale
// (last writer wins) and are broadcast without being written back.
//
// Values handed to subscribers are shared snapshots and must not be mutated.
type Persistent[T any] struct {
	key      string
	medium   storage.Storage
	decode   func(any) T
	fallback func() T
	opts     options
	logger   *log.Entry

	mu        sync.Mutex
	state     T
	subs      []subscriber[T]
	nextSubID int
	pending   []pending[T]
	notifying bool

	stopWatch func()
}

type subscriber[T any] struct {
	id int
	fn func(T)
}

type pending[T any] struct {
	state   T
	subs    []subscriber[T]
	persist bool
	// initial marks the first call of a new subscriber.
	initial bool
}

// NewPersistent loads key from medium, falling back to fallback() when the
// key is absent, unreadable or corrupt, and starts following changes from
// other contexts. A nil medium keeps the value in memory only.
func NewPersistent[T any](medium storage.Storage, key string, decode func(any) T, fallback func() T, opts ...Option) *Persistent[T] {
	p := &Persistent[T]{
		key:      key,
		medium:   medium,
		decode:   decode,
		fallback: fallback,
		opts:     buildOptions(opts),
		logger:   log.WithField("key", key),
	}
	p.state = p.load()

	if medium != nil {
		p.stopWatch = medium.Watch(p.handleEvent)
	}
	return p
}

// Key returns the storage key backing the store.
func (p *Persistent[T]) Key() string {
	return p.key
}

// Subscribe calls fn with the current value and again after every change.
// The first call goes through the same queue as change notifications, so
// when another goroutine is delivering a change fn sees the current value
// right after that delivery, never a stale one. The returned function
// unsubscribes; calling it more than once is harmless.
func (p *Persistent[T]) Subscribe(fn func(T)) func() {
	p.mu.Lock()
	id := p.nextSubID
	p.nextSubID++
	sub := subscriber[T]{id: id, fn: fn}
	p.subs = append(p.subs, sub)
	p.pending = append(p.pending, pending[T]{state: p.state, subs: []subscriber[T]{sub}, initial: true})
	p.mu.Unlock()

	p.drain()

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		for i, s := range p.subs {
			if s.id == id {
				p.subs = append(p.subs[:i:i], p.subs[i+1:]...)
				return
			}
		}
	}
}

// Get returns the current value without subscribing.
func (p *Persistent[T]) Get() T {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Set replaces the value.
func (p *Persistent[T]) Set(v T) {
	p.mutate(func(T) (T, bool) { return v, true })
}

// Update replaces the value with fn(current). fn must be pure; it runs
// while the store is locked and must not call back into the store.
func (p *Persistent[T]) Update(fn func(T) T) {
	p.mutate(func(v T) (T, bool) { return fn(v), true })
}

// mutate is Update for operations that may reject the change: nothing is
// broadcast or written when fn reports no change.
func (p *Persistent[T]) mutate(fn func(T) (T, bool)) {
	if p.apply(fn, true) {
		p.drain()
	}
}

// Reload re-reads the medium and replaces the value with what it holds.
func (p *Persistent[T]) Reload() {
	next := p.load()
	p.apply(func(T) (T, bool) { return next, true }, false)
	p.drain()
}

// Close stops following the medium. The store keeps working in memory.
func (p *Persistent[T]) Close() {
	p.mu.Lock()
	stop := p.stopWatch
	p.stopWatch = nil
	p.mu.Unlock()

	if stop != nil {
		stop()
	}
}

// apply runs fn on the current value and queues the result. The lock is
// released even when fn panics.
func (p *Persistent[T]) apply(fn func(T) (T, bool), persist bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	next, changed := fn(p.state)
	if !changed {
		return false
	}
	p.state = next
	subs := make([]subscriber[T], len(p.subs))
	copy(subs, p.subs)
	p.pending = append(p.pending, pending[T]{state: next, subs: subs, persist: persist})
	return true
}

// drain delivers queued changes in order. Only one goroutine drains at a
// time; changes queued meanwhile, including ones made by subscribers, are
// delivered by that goroutine after the current change. If a subscriber
// panics, the changes still queued are delivered by the next drain.
func (p *Persistent[T]) drain() {
	p.mu.Lock()
	if p.notifying {
		p.mu.Unlock()
		return
	}
	p.notifying = true
	p.mu.Unlock()

	finished := false
	defer func() {
		if !finished {
			p.mu.Lock()
			p.notifying = false
			p.mu.Unlock()
		}
	}()

	for {
		p.mu.Lock()
		if len(p.pending) == 0 {
			p.notifying = false
			p.mu.Unlock()
			finished = true
			return
		}
		next := p.pending[0]
		p.pending = p.pending[1:]
		p.mu.Unlock()

		if next.persist {
			p.persist(next.state)
		}
		for _, s := range next.subs {
			s.fn(next.state)
		}
		if !next.initial {
			p.opts.recorder.IncNotification(p.key)
		}
	}
}

// persist writes v to the medium. Failures are logged and dropped; the
// in-memory value stays authoritative.
func (p *Persistent[T]) persist(v T) {
	if p.medium == nil {
		return
	}

	raw, err := codec.Encode(v)
	if err != nil {
		p.opts.recorder.IncPersistFailure(p.key)
		p.logger.WithError(err).Warn("failed to encode snapshot")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.opts.timeout)
	defer cancel()
	if err := p.medium.SetItem(ctx, p.key, raw); err != nil {
		p.opts.recorder.IncPersistFailure(p.key)
		p.logger.WithError(err).Warn("failed to persist snapshot")
		return
	}
	p.opts.recorder.IncPersist(p.key)
}

func (p *Persistent[T]) load() T {
	if p.medium == nil {
		return p.fallback()
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.opts.timeout)
	defer cancel()

	raw, ok, err := p.medium.GetItem(ctx, p.key)
	if err != nil {
		p.logger.WithError(err).Warn("failed to read storage")
		return p.fallback()
	}
	if !ok || raw == "" {
		return p.fallback()
	}

	v, err := codec.Parse(raw)
	if err != nil {
		p.logger.WithError(err).Warn("discarding corrupt payload")
		return p.fallback()
	}
	return p.decode(v)
}

func (p *Persistent[T]) handleEvent(ev storage.Event) {
	if ev.Key != p.key {
		return
	}
	p.logger.Debug("reconciling with external write")
	p.opts.recorder.IncReconciliation(p.key)
	p.Reload()
}
