package handlers

import (
	"net/http"
	"strings"

	"touche/internal/models"
)

// ListTasks returns all tasks, or those of one board when the board query
// parameter is given.
func (h *Handlers) ListTasks(w http.ResponseWriter, r *http.Request) {
	if boardID := r.URL.Query().Get("board"); boardID != "" {
		respondJSON(w, http.StatusOK, h.stores.Tasks.TasksByBoard(boardID))
		return
	}
	respondJSON(w, http.StatusOK, h.stores.Tasks.Get())
}

// CreateTask adds a task to the front of the list. Tasks without a board
// go to the default board.
func (h *Handlers) CreateTask(w http.ResponseWriter, r *http.Request) {
	var draft models.TaskDraft
	if err := decodeJSON(r, &draft); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(draft.BoardID) == "" {
		draft.BoardID = models.DefaultBoardID
	}

	h.stores.Tasks.AddTask(draft)
	respondJSON(w, http.StatusOK, h.stores.Tasks.Get())
}

// UpdateTask applies a partial update to a task.
func (h *Handlers) UpdateTask(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid task id")
		return
	}

	var changes models.TaskChanges
	if err := decodeJSON(r, &changes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json")
		return
	}

	h.stores.Tasks.UpdateTask(id, changes)
	respondJSON(w, http.StatusOK, h.stores.Tasks.Get())
}

// ToggleTask toggles the completion status of a task.
func (h *Handlers) ToggleTask(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid task id")
		return
	}

	h.stores.Tasks.ToggleCompleted(id)
	respondJSON(w, http.StatusOK, h.stores.Tasks.Get())
}

// SetTaskStatus moves a task to another workflow status.
func (h *Handlers) SetTaskStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid task id")
		return
	}

	var payload struct {
		Status models.TaskStatus `json:"status"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if !payload.Status.Valid() {
		respondError(w, http.StatusBadRequest, "invalid status")
		return
	}

	h.stores.Tasks.SetStatus(id, payload.Status)
	respondJSON(w, http.StatusOK, h.stores.Tasks.Get())
}

// DeleteTask deletes a task.
func (h *Handlers) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid task id")
		return
	}

	h.stores.Tasks.DeleteTask(id)
	respondJSON(w, http.StatusOK, h.stores.Tasks.Get())
}

// ClearCompleted removes every done task.
func (h *Handlers) ClearCompleted(w http.ResponseWriter, r *http.Request) {
	h.stores.Tasks.ClearCompleted()
	respondJSON(w, http.StatusOK, h.stores.Tasks.Get())
}
