package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"touche/internal/models"
	"touche/internal/storage"
)

// countingRecorder tallies recorder calls across all keys.
type countingRecorder struct {
	mu              sync.Mutex
	notifications   int
	persists        int
	persistFailures int
	reconciliations int
}

func (r *countingRecorder) IncNotification(string) {
	r.mu.Lock()
	r.notifications++
	r.mu.Unlock()
}

func (r *countingRecorder) IncPersist(string) {
	r.mu.Lock()
	r.persists++
	r.mu.Unlock()
}

func (r *countingRecorder) IncPersistFailure(string) {
	r.mu.Lock()
	r.persistFailures++
	r.mu.Unlock()
}

func (r *countingRecorder) IncReconciliation(string) {
	r.mu.Lock()
	r.reconciliations++
	r.mu.Unlock()
}

func newCounter(t *testing.T, medium storage.Storage, opts ...Option) *Persistent[int] {
	t.Helper()
	p := NewPersistent(medium, "test:counter",
		func(v any) int {
			f, _ := v.(float64)
			return int(f)
		},
		func() int { return 0 },
		opts...)
	t.Cleanup(p.Close)
	return p
}

func TestPersistent_SubscribeCallsImmediately(t *testing.T) {
	p := newCounter(t, nil)
	p.Set(7)

	var got []int
	unsubscribe := p.Subscribe(func(v int) { got = append(got, v) })
	defer unsubscribe()

	assert.Equal(t, []int{7}, got)
}

func TestPersistent_EveryChangeNotifiesEverySubscriberInOrder(t *testing.T) {
	p := newCounter(t, nil)

	var a, b []int
	p.Subscribe(func(v int) { a = append(a, v) })
	p.Subscribe(func(v int) { b = append(b, v) })

	p.Set(1)
	p.Set(1)
	p.Update(func(v int) int { return v + 1 })

	assert.Equal(t, []int{0, 1, 1, 2}, a)
	assert.Equal(t, a, b)
}

func TestPersistent_Unsubscribe(t *testing.T) {
	p := newCounter(t, nil)

	var got []int
	unsubscribe := p.Subscribe(func(v int) { got = append(got, v) })
	p.Set(1)
	unsubscribe()
	unsubscribe()
	p.Set(2)

	assert.Equal(t, []int{0, 1}, got)
	assert.Equal(t, 2, p.Get())
}

func TestPersistent_ReentrantSetIsQueued(t *testing.T) {
	p := newCounter(t, nil)

	var first, second []int
	p.Subscribe(func(v int) {
		first = append(first, v)
		if v == 1 {
			p.Set(2)
		}
	})
	p.Subscribe(func(v int) { second = append(second, v) })

	p.Set(1)

	assert.Equal(t, []int{0, 1, 2}, first)
	assert.Equal(t, []int{0, 1, 2}, second, "every subscriber sees the same ordered notifications")
	assert.Equal(t, 2, p.Get())
}

func TestPersistent_NilMediumIsInMemory(t *testing.T) {
	rec := &countingRecorder{}
	p := newCounter(t, nil, WithRecorder(rec))

	p.Set(3)

	assert.Equal(t, 3, p.Get())
	assert.Zero(t, rec.persists)
	assert.Zero(t, rec.persistFailures)
}

func TestPersistent_LoadsAndPersists(t *testing.T) {
	ctx := context.Background()
	medium := storage.NewMemoryBackend().Open()
	require.NoError(t, medium.SetItem(ctx, "test:counter", "41"))

	p := newCounter(t, medium)
	assert.Equal(t, 41, p.Get())

	p.Update(func(v int) int { return v + 1 })

	raw, ok, err := medium.GetItem(ctx, "test:counter")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "42", raw)
}

func TestPersistent_CorruptPayloadFallsBack(t *testing.T) {
	ctx := context.Background()
	medium := storage.NewMemoryBackend().Open()
	require.NoError(t, medium.SetItem(ctx, "test:counter", "{not json"))

	p := newCounter(t, medium)
	assert.Equal(t, 0, p.Get())
}

func TestPersistent_UnreadableMediumFallsBack(t *testing.T) {
	medium := storage.NewMemoryBackend().Open()
	require.NoError(t, medium.Close())

	p := newCounter(t, medium)
	assert.Equal(t, 0, p.Get())

	p.Set(5)
	assert.Equal(t, 5, p.Get(), "write failures leave memory authoritative")
}

func TestPersistent_QuotaFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	rec := &countingRecorder{}
	medium := storage.NewMemoryBackend(storage.WithQuota(len("test:counter") + 2)).Open()

	p := newCounter(t, medium, WithRecorder(rec))

	var got []int
	p.Subscribe(func(v int) { got = append(got, v) })

	p.Set(12)
	p.Set(12345)

	assert.Equal(t, []int{0, 12, 12345}, got)
	assert.Equal(t, 12345, p.Get())
	assert.Equal(t, 1, rec.persists)
	assert.Equal(t, 1, rec.persistFailures)

	raw, _, err := medium.GetItem(ctx, "test:counter")
	require.NoError(t, err)
	assert.Equal(t, "12", raw, "the failed write is lost")
}

func TestPersistent_ReconcilesExternalWrites(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend()
	tab1, tab2 := backend.Open(), backend.Open()

	rec := &countingRecorder{}
	p := newCounter(t, tab1, WithRecorder(rec))
	p.Set(1)

	var got []int
	p.Subscribe(func(v int) { got = append(got, v) })

	require.NoError(t, tab2.SetItem(ctx, "test:counter", "99"))
	require.NoError(t, tab2.SetItem(ctx, "test:other", "5"))

	assert.Equal(t, []int{1, 99}, got)
	assert.Equal(t, 99, p.Get())
	assert.Equal(t, 1, rec.reconciliations)
	assert.Equal(t, 1, rec.persists, "reconciled state is not written back")
}

func TestPersistent_ExternalRemovalFallsBack(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend()
	tab1, tab2 := backend.Open(), backend.Open()

	p := newCounter(t, tab1)
	p.Set(8)

	require.NoError(t, tab2.RemoveItem(ctx, "test:counter"))
	assert.Equal(t, 0, p.Get())
}

func TestPersistent_CloseStopsReconciliation(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend()
	tab1, tab2 := backend.Open(), backend.Open()

	p := newCounter(t, tab1)
	p.Set(1)
	p.Close()

	require.NoError(t, tab2.SetItem(ctx, "test:counter", "2"))
	assert.Equal(t, 1, p.Get())

	p.Set(3)
	assert.Equal(t, 3, p.Get())
}

func TestPersistent_ReconcilesAcrossSQLite(t *testing.T) {
	path := t.TempDir() + "/touche.db"
	a, err := storage.NewSQLite(path, 10*time.Millisecond)
	require.NoError(t, err)
	defer a.Close()
	b, err := storage.NewSQLite(path, 10*time.Millisecond)
	require.NoError(t, err)
	defer b.Close()

	tasksA := NewTasks(a)
	defer tasksA.Close()
	tasksB := NewTasks(b)
	defer tasksB.Close()

	task, ok := tasksA.AddTask(models.TaskDraft{BoardID: models.DefaultBoardID, Title: "Shared"})
	require.True(t, ok)

	require.Eventually(t, func() bool {
		_, found := tasksB.Task(task.ID)
		return found
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStamper_StrictlyIncreasing(t *testing.T) {
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := newStamper(func() time.Time { return fixed })

	first := s.next()
	second := s.next()
	third := s.next()

	assert.Equal(t, "2024-01-01T00:00:00.000Z", first)
	assert.Equal(t, "2024-01-01T00:00:00.001Z", second)
	assert.Less(t, second, third)
}

func TestPersistent_PanickingUpdateReleasesLock(t *testing.T) {
	p := newCounter(t, nil)
	p.Set(1)

	assert.Panics(t, func() {
		p.Update(func(int) int { panic("boom") })
	})

	got := make(chan int, 1)
	go func() { got <- p.Get() }()
	select {
	case v := <-got:
		assert.Equal(t, 1, v)
	case <-time.After(time.Second):
		t.Fatal("store stayed locked after a panicking update")
	}

	p.Set(2)
	assert.Equal(t, 2, p.Get())
}

func TestPersistent_PanickingSubscriberDoesNotStopDelivery(t *testing.T) {
	ctx := context.Background()
	medium := storage.NewMemoryBackend().Open()
	p := newCounter(t, medium)

	p.Subscribe(func(v int) {
		if v == 1 {
			panic("boom")
		}
	})
	assert.Panics(t, func() { p.Set(1) })

	var got []int
	p.Subscribe(func(v int) { got = append(got, v) })
	p.Set(2)
	p.Set(3)

	raw, ok, err := medium.GetItem(ctx, "test:counter")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "3", raw)
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestPersistent_SubscribeDuringDeliverySeesCurrentValueFirst(t *testing.T) {
	p := newCounter(t, nil)

	entered := make(chan struct{})
	release := make(chan struct{})
	p.Subscribe(func(v int) {
		if v == 1 {
			close(entered)
			<-release
		}
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Set(1)
	}()
	<-entered

	var mu sync.Mutex
	var got []int
	p.Subscribe(func(v int) {
		mu.Lock()
		got = append(got, v)
		mu.Unlock()
	})
	p.Set(2)

	close(release)
	<-done

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2}, got, "the first call carries the value current at subscription")
}

func TestStamper_StaysAheadOfGivenTimestamps(t *testing.T) {
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := newStamper(func() time.Time { return fixed })

	assert.Equal(t, "2024-01-01T00:00:05.001Z", s.next("2024-01-01T00:00:05.000Z", "not a time"))
	assert.Equal(t, "2024-01-01T00:00:05.002Z", s.next())
	assert.Equal(t, "2024-01-01T00:00:05.003Z", s.next("2023-12-31T00:00:00.000Z"))
}
