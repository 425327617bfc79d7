package store

import (
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"touche/internal/metrics"
	"touche/internal/models"
)

// DefaultTimeout bounds every read and write against the medium.
const DefaultTimeout = 5 * time.Second

type options struct {
	now      func() time.Time
	newUUID  func() (uuid.UUID, error)
	timeout  time.Duration
	recorder metrics.Recorder
}

// Option configures the stores.
type Option func(*options)

// WithClock sets the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithTimeout bounds each storage operation.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithRecorder reports store activity to r.
func WithRecorder(r metrics.Recorder) Option {
	return func(o *options) {
		o.recorder = r
	}
}

// withUUIDSource replaces the id generator; used to exercise the fallback.
func withUUIDSource(fn func() (uuid.UUID, error)) Option {
	return func(o *options) {
		o.newUUID = fn
	}
}

func buildOptions(opts []Option) options {
	o := options{
		now:      time.Now,
		newUUID:  uuid.NewRandom,
		timeout:  DefaultTimeout,
		recorder: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// stamper hands out timestamps that strictly increase, so an entity
// updated right after creation always sorts after its createdAt.
type stamper struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

func newStamper(now func() time.Time) *stamper {
	return &stamper{now: now}
}

// next returns a timestamp later than every one handed out before and later
// than each of after. Entities loaded from another context carry timestamps
// this stamper never produced; passing them keeps updatedAt ahead of them.
// Unparseable values in after are ignored.
func (s *stamper) next(after ...string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	floor := s.last
	for _, ts := range after {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil && t.After(floor) {
			floor = t.UTC()
		}
	}

	t := s.now().UTC().Truncate(time.Millisecond)
	if !t.After(floor) {
		t = floor.Truncate(time.Millisecond).Add(time.Millisecond)
	}
	s.last = t
	return models.FormatTimestamp(t)
}

// newID returns a random UUID, or prefix plus eight pseudo-random base-36
// characters when the secure source fails.
func newID(o options, prefix string) string {
	if id, err := o.newUUID(); err == nil {
		return id.String()
	}

	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteByte('-')
	for i := 0; i < 8; i++ {
		b.WriteByte(alphabet[rand.IntN(len(alphabet))])
	}
	return b.String()
}
