package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

const fileExt = ".json"

// File is a medium kept as one file per key inside a directory. Every
// process opening the same directory is a separate context; changes are
// picked up through fsnotify.
type File struct {
	notifier
	dir     string
	watcher *fsnotify.Watcher

	mu    sync.Mutex
	known map[string]string

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

var _ Storage = (*File)(nil)

// NewFile opens the medium rooted at dir, creating the directory if needed.
func NewFile(dir string) (*File, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage directory: %w", err)
	}
	if err := os.MkdirAll(absDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	// Watch the directory rather than the files so renames and new keys are seen.
	if err := watcher.Add(absDir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch storage directory %s: %w", absDir, err)
	}

	f := &File{
		dir:     absDir,
		watcher: watcher,
		known:   make(map[string]string),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go f.watchLoop()

	return f, nil
}

func (f *File) path(key string) string {
	return filepath.Join(f.dir, url.QueryEscape(key)+fileExt)
}

// keyFromPath reverses path. Files that do not belong to the medium, such as
// in-flight temporary files, report false.
func keyFromPath(name string) (string, bool) {
	base := filepath.Base(name)
	if !strings.HasSuffix(base, fileExt) || strings.HasPrefix(base, ".") {
		return "", false
	}
	key, err := url.QueryUnescape(strings.TrimSuffix(base, fileExt))
	if err != nil {
		return "", false
	}
	return key, true
}

// GetItem reads the file holding key.
func (f *File) GetItem(_ context.Context, key string) (string, bool, error) {
	value, ok, err := f.read(key)
	if err == nil && ok {
		f.mu.Lock()
		f.known[key] = value
		f.mu.Unlock()
	}
	return value, ok, err
}

func (f *File) read(key string) (string, bool, error) {
	b, err := os.ReadFile(f.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read file: %w", err)
	}
	return string(b), true, nil
}

// SetItem writes value through a temporary file and a rename so readers in
// other processes never see a partial payload.
func (f *File) SetItem(_ context.Context, key, value string) error {
	select {
	case <-f.stop:
		return ErrClosed
	default:
	}

	tmp, err := os.CreateTemp(f.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close file: %w", err)
	}

	// Record the value first so the watcher recognises our own write.
	f.mu.Lock()
	prev, hadPrev := f.known[key]
	f.known[key] = value
	f.mu.Unlock()

	if err := os.Rename(tmpName, f.path(key)); err != nil {
		os.Remove(tmpName)
		f.mu.Lock()
		if hadPrev {
			f.known[key] = prev
		} else {
			delete(f.known, key)
		}
		f.mu.Unlock()
		return fmt.Errorf("rename file: %w", err)
	}
	return nil
}

// RemoveItem deletes the file holding key.
func (f *File) RemoveItem(_ context.Context, key string) error {
	f.mu.Lock()
	delete(f.known, key)
	f.mu.Unlock()

	if err := os.Remove(f.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

// Close stops the watcher.
func (f *File) Close() error {
	var err error
	f.once.Do(func() {
		close(f.stop)
		err = f.watcher.Close()
		<-f.done
		f.reset()
	})
	return err
}

func (f *File) watchLoop() {
	defer close(f.done)

	for {
		select {
		case <-f.stop:
			return
		case event, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			key, ok := keyFromPath(event.Name)
			if !ok {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			f.reconcile(key)

		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			log.WithError(err).Warn("file storage watcher error")
		}
	}
}

// reconcile compares the file for key with the last value this context saw
// and dispatches an event when they differ.
func (f *File) reconcile(key string) {
	value, exists, err := f.read(key)
	if err != nil {
		log.WithError(err).WithField("key", key).Warn("file storage read failed")
		return
	}

	f.mu.Lock()
	old, had := f.known[key]
	switch {
	case exists && had && old == value:
		f.mu.Unlock()
		return
	case !exists && !had:
		f.mu.Unlock()
		return
	case exists:
		f.known[key] = value
	default:
		delete(f.known, key)
	}
	f.mu.Unlock()

	ev := Event{Key: key}
	if exists {
		ev.NewValue = valuePtr(value)
	}
	f.dispatch(ev)
}
