package models

import (
	"strings"
)

const (
	// DefaultBoardID is the id of the board synthesized when no board exists.
	DefaultBoardID = "default"
	// DefaultBoardName is the name of the synthesized default board.
	DefaultBoardName = "Board"
)

// Board groups tasks. At least one board always exists.
type Board struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// BoardDraft holds the user supplied fields of a new board.
type BoardDraft struct {
	Name string `json:"name"`
}

// BoardChanges is a partial board update. Nil fields are left untouched.
type BoardChanges struct {
	Name *string `json:"name,omitempty"`
}

// NewDefaultBoard returns the fallback board stamped with the given timestamp.
func NewDefaultBoard(timestamp string) Board {
	return Board{
		ID:        DefaultBoardID,
		Name:      DefaultBoardName,
		CreatedAt: timestamp,
		UpdatedAt: timestamp,
	}
}

// Apply returns the board with changes applied and updatedAt set to timestamp.
// The second result is false, and the board is returned unmodified, when the
// changes would leave the name blank.
func (b Board) Apply(changes BoardChanges, timestamp string) (Board, bool) {
	name := b.Name
	if changes.Name != nil {
		name = strings.TrimSpace(*changes.Name)
	}
	if name == "" {
		return b, false
	}

	b.Name = name
	b.UpdatedAt = timestamp
	return b, true
}

// Blank reports whether s is empty after trimming whitespace.
func Blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
