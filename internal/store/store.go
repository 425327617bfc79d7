// Package store holds the reactive, storage-backed collections of the
// application: boards, tasks and settings.
package store

import (
	"touche/internal/storage"
)

// Stores bundles the three collections. Build it once at startup with Open
// and pass it to whatever needs the state; Close detaches the collections
// from the medium at shutdown.
type Stores struct {
	Boards   *Boards
	Tasks    *Tasks
	Settings *Settings
}

// Open loads every collection from medium. A nil medium keeps all state in
// memory.
func Open(medium storage.Storage, opts ...Option) *Stores {
	return &Stores{
		Boards:   NewBoards(medium, opts...),
		Tasks:    NewTasks(medium, opts...),
		Settings: NewSettings(medium, opts...),
	}
}

// Close stops following the medium. The medium itself is left open.
func (s *Stores) Close() {
	s.Boards.Close()
	s.Tasks.Close()
	s.Settings.Close()
}
