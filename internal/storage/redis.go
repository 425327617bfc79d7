package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Redis is a medium kept in a Redis server. Values live under
// namespace+key; every write also publishes a change notice on
// namespace+"events" that the other contexts subscribe to. A notice whose
// value matches what the context last saw raises no event.
type Redis struct {
	notifier
	rc        *redis.Client
	sub       *redis.PubSub
	namespace string
	channel   string
	origin    string

	mu    sync.Mutex
	known map[string]string

	cancel context.CancelFunc
	done   chan struct{}
}

var _ Storage = (*Redis)(nil)

type changeNotice struct {
	Origin string `json:"origin"`
	Key    string `json:"key"`
}

// NewRedis connects to Redis and subscribes to the namespace's change channel.
func NewRedis(ctx context.Context, opts *redis.Options, namespace string) (*Redis, error) {
	rc := redis.NewClient(opts)
	if err := rc.Ping(ctx).Err(); err != nil {
		rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	r := &Redis{
		rc:        rc,
		namespace: namespace,
		channel:   namespace + "events",
		origin:    uuid.NewString(),
		known:     make(map[string]string),
		done:      make(chan struct{}),
	}

	r.sub = rc.Subscribe(ctx, r.channel)
	// Wait for the subscription to be confirmed so no notice is missed.
	if _, err := r.sub.Receive(ctx); err != nil {
		r.sub.Close()
		rc.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	go r.subscribeLoop(loopCtx)

	return r, nil
}

// GetItem returns the value stored under key.
func (r *Redis) GetItem(ctx context.Context, key string) (string, bool, error) {
	v, err := r.rc.Get(ctx, r.namespace+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	r.remember(key, v, true)
	return v, true, nil
}

func (r *Redis) remember(key, value string, exists bool) {
	r.mu.Lock()
	if exists {
		r.known[key] = value
	} else {
		delete(r.known, key)
	}
	r.mu.Unlock()
}

// changed records the value read for key after a notice and reports whether
// it differs from the last one seen.
func (r *Redis) changed(key, value string, exists bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, had := r.known[key]
	if exists {
		r.known[key] = value
		return !had || old != value
	}
	delete(r.known, key)
	return had
}

// SetItem stores value and publishes a change notice in one transaction.
func (r *Redis) SetItem(ctx context.Context, key, value string) error {
	notice, err := r.notice(key)
	if err != nil {
		return err
	}
	_, err = r.rc.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.namespace+key, value, 0)
		pipe.Publish(ctx, r.channel, notice)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	r.remember(key, value, true)
	return nil
}

// RemoveItem deletes key and publishes a change notice.
func (r *Redis) RemoveItem(ctx context.Context, key string) error {
	notice, err := r.notice(key)
	if err != nil {
		return err
	}
	_, err = r.rc.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.namespace+key)
		pipe.Publish(ctx, r.channel, notice)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	r.remember(key, "", false)
	return nil
}

// Close unsubscribes and closes the client.
func (r *Redis) Close() error {
	if r.cancel != nil {
		r.cancel()
		r.sub.Close()
		<-r.done
		r.cancel = nil
	}
	r.reset()
	return r.rc.Close()
}

func (r *Redis) notice(key string) (string, error) {
	data, err := sonic.ConfigStd.MarshalToString(changeNotice{Origin: r.origin, Key: key})
	if err != nil {
		return "", fmt.Errorf("marshal change notice: %w", err)
	}
	return data, nil
}

func (r *Redis) subscribeLoop(ctx context.Context) {
	defer close(r.done)

	ch := r.sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var notice changeNotice
			if err := sonic.ConfigStd.UnmarshalFromString(msg.Payload, &notice); err != nil {
				log.WithError(err).Warn("unable to parse change notice")
				continue
			}
			if notice.Origin == r.origin {
				continue
			}

			readCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			value, err := r.rc.Get(readCtx, r.namespace+notice.Key).Result()
			cancel()
			exists := true
			if errors.Is(err, redis.Nil) {
				exists, err = false, nil
			}
			if err != nil {
				log.WithError(err).WithField("key", notice.Key).Warn("redis storage read failed")
				continue
			}
			if !r.changed(notice.Key, value, exists) {
				continue
			}

			ev := Event{Key: notice.Key}
			if exists {
				ev.NewValue = valuePtr(value)
			}
			r.dispatch(ev)
		}
	}
}
