package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	log "github.com/sirupsen/logrus"
)

// DefaultPollInterval is how often SQLite contexts look for commits made by
// other connections.
const DefaultPollInterval = 250 * time.Millisecond

// SQLite is a medium stored in a SQLite database file. Several processes may
// open the same file; each SQLite value is one context.
//
// Changes by other connections are detected by polling PRAGMA data_version,
// which only moves when a different connection commits, and diffing the
// table against the last known contents.
type SQLite struct {
	notifier
	db *sql.DB

	mu    sync.Mutex
	known map[string]string

	cancel context.CancelFunc
	done   chan struct{}
}

var _ Storage = (*SQLite)(nil)

// NewSQLite opens (or creates) the database at dbPath and starts watching it.
// A non-positive poll interval uses DefaultPollInterval.
func NewSQLite(dbPath string, poll time.Duration) (*SQLite, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// data_version is per connection, so every statement must share one.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db, known: make(map[string]string)}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	version, err := s.dataVersion(ctx)
	if err != nil {
		cancel()
		db.Close()
		return nil, err
	}
	if err := s.refresh(ctx, false); err != nil {
		cancel()
		db.Close()
		return nil, err
	}

	if poll <= 0 {
		poll = DefaultPollInterval
	}
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.pollLoop(ctx, poll, version)

	return s, nil
}

func (s *SQLite) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// GetItem returns the value stored under key.
func (s *SQLite) GetItem(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get item: %w", err)
	}
	return value, true, nil
}

// SetItem upserts value under key.
func (s *SQLite) SetItem(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set item: %w", err)
	}

	s.mu.Lock()
	s.known[key] = value
	s.mu.Unlock()
	return nil
}

// RemoveItem deletes key.
func (s *SQLite) RemoveItem(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to remove item: %w", err)
	}

	s.mu.Lock()
	delete(s.known, key)
	s.mu.Unlock()
	return nil
}

// Close stops polling and closes the database connection.
func (s *SQLite) Close() error {
	if s.cancel != nil {
		s.cancel()
		<-s.done
		s.cancel = nil
	}
	s.reset()
	return s.db.Close()
}

func (s *SQLite) dataVersion(ctx context.Context) (int64, error) {
	var v int64
	if err := s.db.QueryRowContext(ctx, `PRAGMA data_version`).Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to read data_version: %w", err)
	}
	return v, nil
}

func (s *SQLite) pollLoop(ctx context.Context, interval time.Duration, version int64) {
	defer close(s.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			v, err := s.dataVersion(ctx)
			if err != nil {
				if ctx.Err() == nil {
					log.WithError(err).Warn("sqlite storage poll failed")
				}
				continue
			}
			if v == version {
				continue
			}
			version = v
			if err := s.refresh(ctx, true); err != nil && ctx.Err() == nil {
				log.WithError(err).Warn("sqlite storage refresh failed")
			}
		}
	}
}

// refresh reloads the table and, when emit is set, dispatches an event for
// every key whose value differs from what this context last saw.
func (s *SQLite) refresh(ctx context.Context, emit bool) error {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM kv`)
	if err != nil {
		return fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	current := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return fmt.Errorf("failed to scan item: %w", err)
		}
		current[key] = value
	}
	if err := rows.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	var events []Event
	for key, value := range current {
		if old, ok := s.known[key]; !ok || old != value {
			events = append(events, Event{Key: key, NewValue: valuePtr(value)})
		}
	}
	for key := range s.known {
		if _, ok := current[key]; !ok {
			events = append(events, Event{Key: key})
		}
	}
	s.known = current
	s.mu.Unlock()

	if emit {
		for _, ev := range events {
			s.dispatch(ev)
		}
	}
	return nil
}
