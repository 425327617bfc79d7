package handlers

import (
	"net/http"

	"touche/internal/models"
)

// ListBoards returns every board in display order.
func (h *Handlers) ListBoards(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.stores.Boards.Get())
}

// CreateBoard appends a board and returns the updated collection. A blank
// name leaves the collection unchanged.
func (h *Handlers) CreateBoard(w http.ResponseWriter, r *http.Request) {
	var draft models.BoardDraft
	if err := decodeJSON(r, &draft); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json")
		return
	}

	h.stores.Boards.AddBoard(draft)
	respondJSON(w, http.StatusOK, h.stores.Boards.Get())
}

// UpdateBoard renames a board.
func (h *Handlers) UpdateBoard(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid board id")
		return
	}

	var changes models.BoardChanges
	if err := decodeJSON(r, &changes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json")
		return
	}

	h.stores.Boards.UpdateBoard(id, changes)
	respondJSON(w, http.StatusOK, h.stores.Boards.Get())
}

// DeleteBoard deletes a board. The last board is never removed. Tasks of
// the deleted board are kept.
func (h *Handlers) DeleteBoard(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid board id")
		return
	}

	h.stores.Boards.DeleteBoard(id)
	respondJSON(w, http.StatusOK, h.stores.Boards.Get())
}
