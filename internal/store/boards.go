package store

import (
	"strings"

	"touche/internal/codec"
	"touche/internal/models"
	"touche/internal/storage"
)

// BoardsKey is the storage key of the board collection.
const BoardsKey = "touche:boards"

// Boards is the board collection. It never becomes empty: a default board
// is synthesized whenever nothing else is available.
type Boards struct {
	*Persistent[[]models.Board]
	opts  options
	stamp *stamper
}

// NewBoards opens the board collection on medium.
func NewBoards(medium storage.Storage, opts ...Option) *Boards {
	o := buildOptions(opts)
	b := &Boards{opts: o, stamp: newStamper(o.now)}
	c := codec.New(o.now)

	b.Persistent = NewPersistent(medium, BoardsKey,
		func(v any) []models.Board { return b.ensureMinimum(c.DecodeBoards(v)) },
		func() []models.Board { return b.ensureMinimum(nil) },
		opts...)
	return b
}

func (b *Boards) ensureMinimum(boards []models.Board) []models.Board {
	if len(boards) == 0 {
		return []models.Board{models.NewDefaultBoard(b.stamp.next())}
	}
	return boards
}

// AddBoard appends a board named after the trimmed draft name. A blank name
// is ignored and reported with false.
func (b *Boards) AddBoard(draft models.BoardDraft) (models.Board, bool) {
	name := strings.TrimSpace(draft.Name)
	if name == "" {
		return models.Board{}, false
	}

	timestamp := b.stamp.next()
	board := models.Board{
		ID:        newID(b.opts, "board"),
		Name:      name,
		CreatedAt: timestamp,
		UpdatedAt: timestamp,
	}

	b.Update(func(boards []models.Board) []models.Board {
		next := make([]models.Board, 0, len(boards)+1)
		next = append(next, boards...)
		return append(next, board)
	})
	return board, true
}

// UpdateBoard applies changes to the board with the given id. A name that
// trims to empty rejects the whole update; unknown ids are ignored.
func (b *Boards) UpdateBoard(id string, changes models.BoardChanges) {
	b.mutate(func(boards []models.Board) ([]models.Board, bool) {
		for i, board := range boards {
			if board.ID != id {
				continue
			}
			updated, ok := board.Apply(changes, b.stamp.next(board.CreatedAt, board.UpdatedAt))
			if !ok {
				return boards, false
			}
			next := make([]models.Board, len(boards))
			copy(next, boards)
			next[i] = updated
			return next, true
		}
		return boards, false
	})
}

// DeleteBoard removes the board with the given id unless it is the last one.
func (b *Boards) DeleteBoard(id string) {
	b.mutate(func(boards []models.Board) ([]models.Board, bool) {
		if len(boards) <= 1 {
			return boards, false
		}

		filtered := make([]models.Board, 0, len(boards))
		for _, board := range boards {
			if board.ID != id {
				filtered = append(filtered, board)
			}
		}
		if len(filtered) == len(boards) {
			return boards, false
		}
		return b.ensureMinimum(filtered), true
	})
}

// Board returns the board with the given id.
func (b *Boards) Board(id string) (models.Board, bool) {
	for _, board := range b.Get() {
		if board.ID == id {
			return board, true
		}
	}
	return models.Board{}, false
}
