package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	log "github.com/sirupsen/logrus"
)

// NATS is a medium kept in a JetStream KeyValue bucket. Every connection is
// a context; changes from other connections arrive through a bucket watch.
type NATS struct {
	notifier
	conn *nats.Conn
	kv   jetstream.KeyValue

	mu    sync.Mutex
	known map[string]string

	watcher jetstream.KeyWatcher
	done    chan struct{}
	once    sync.Once
}

var _ Storage = (*NATS)(nil)

// NewNATS connects to url and opens, or creates, the bucket.
func NewNATS(ctx context.Context, url, bucket string) (*NATS, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	kv, err := js.KeyValue(ctx, bucket)
	if err != nil {
		kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:      bucket,
			Description: "touche local storage",
			History:     1,
		})
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to create KV bucket: %w", err)
		}
		log.WithField("bucket", bucket).Info("created KV bucket")
	}

	watcher, err := kv.WatchAll(context.Background(), jetstream.UpdatesOnly())
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to watch KV bucket: %w", err)
	}

	n := &NATS{
		conn:    conn,
		kv:      kv,
		known:   make(map[string]string),
		watcher: watcher,
		done:    make(chan struct{}),
	}
	go n.watchLoop()

	return n, nil
}

// KV keys are limited to [-/_=.a-zA-Z0-9]; storage keys such as
// "touche:tasks" are carried in unpadded base64url.
func encodeKey(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}

func decodeKey(k string) (string, bool) {
	b, err := base64.RawURLEncoding.DecodeString(k)
	if err != nil {
		return "", false
	}
	return string(b), true
}

// GetItem returns the value stored under key.
func (n *NATS) GetItem(ctx context.Context, key string) (string, bool, error) {
	entry, err := n.kv.Get(ctx, encodeKey(key))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get entry: %w", err)
	}

	value := string(entry.Value())
	n.mu.Lock()
	n.known[key] = value
	n.mu.Unlock()
	return value, true, nil
}

// SetItem puts value into the bucket.
func (n *NATS) SetItem(ctx context.Context, key, value string) error {
	n.mu.Lock()
	prev, hadPrev := n.known[key]
	n.known[key] = value
	n.mu.Unlock()

	if _, err := n.kv.Put(ctx, encodeKey(key), []byte(value)); err != nil {
		n.mu.Lock()
		if hadPrev {
			n.known[key] = prev
		} else {
			delete(n.known, key)
		}
		n.mu.Unlock()
		return fmt.Errorf("failed to put entry: %w", err)
	}
	return nil
}

// RemoveItem deletes key from the bucket.
func (n *NATS) RemoveItem(ctx context.Context, key string) error {
	n.mu.Lock()
	delete(n.known, key)
	n.mu.Unlock()

	if err := n.kv.Delete(ctx, encodeKey(key)); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	return nil
}

// Close stops the watch and closes the connection.
func (n *NATS) Close() error {
	var err error
	n.once.Do(func() {
		err = n.watcher.Stop()
		<-n.done
		n.reset()
		n.conn.Close()
	})
	return err
}

func (n *NATS) watchLoop() {
	defer close(n.done)

	for entry := range n.watcher.Updates() {
		if entry == nil {
			continue
		}
		key, ok := decodeKey(entry.Key())
		if !ok {
			continue
		}

		removed := entry.Operation() == jetstream.KeyValueDelete || entry.Operation() == jetstream.KeyValuePurge
		value := string(entry.Value())

		n.mu.Lock()
		old, had := n.known[key]
		if removed {
			if !had {
				n.mu.Unlock()
				continue
			}
			delete(n.known, key)
		} else {
			if had && old == value {
				n.mu.Unlock()
				continue
			}
			n.known[key] = value
		}
		n.mu.Unlock()

		ev := Event{Key: key}
		if !removed {
			ev.NewValue = valuePtr(value)
		}
		n.dispatch(ev)
	}
}
