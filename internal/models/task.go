package models

import (
	"strings"
)

// TaskStatus is the workflow state of a task.
type TaskStatus string

const (
	StatusActive     TaskStatus = "active"
	StatusInProgress TaskStatus = "in_progress"
	StatusDone       TaskStatus = "done"
)

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusActive, StatusInProgress, StatusDone:
		return true
	default:
		return false
	}
}

// StatusFromCompleted maps the legacy completed flag onto a status.
func StatusFromCompleted(completed bool) TaskStatus {
	if completed {
		return StatusDone
	}
	return StatusActive
}

// Task is a single item on a board.
type Task struct {
	ID        string     `json:"id"`
	BoardID   string     `json:"boardId"`
	Title     string     `json:"title"`
	Note      string     `json:"note"`
	Status    TaskStatus `json:"status"`
	CreatedAt string     `json:"createdAt"`
	UpdatedAt string     `json:"updatedAt"`
}

// TaskDraft holds the user supplied fields of a new task.
type TaskDraft struct {
	BoardID string `json:"boardId"`
	Title   string `json:"title"`
	Note    string `json:"note,omitempty"`
}

// TaskChanges is a partial task update. Nil fields are left untouched.
// Completed is the legacy convenience flag; when set it takes precedence
// over Status.
type TaskChanges struct {
	Title     *string     `json:"title,omitempty"`
	Note      *string     `json:"note,omitempty"`
	Status    *TaskStatus `json:"status,omitempty"`
	Completed *bool       `json:"completed,omitempty"`
}

// IsDone reports whether the task is completed.
func (t Task) IsDone() bool {
	return t.Status == StatusDone
}

// Apply returns the task with changes applied and updatedAt set to timestamp.
// A title that trims to empty rejects the whole update and the task is
// returned unmodified with false.
func (t Task) Apply(changes TaskChanges, timestamp string) (Task, bool) {
	title := t.Title
	if changes.Title != nil {
		title = strings.TrimSpace(*changes.Title)
	}
	if title == "" {
		return t, false
	}

	t.Title = title
	if changes.Note != nil {
		t.Note = NormalizeNote(*changes.Note)
	}
	if changes.Status != nil && changes.Status.Valid() {
		t.Status = *changes.Status
	}
	if changes.Completed != nil {
		t.Status = StatusFromCompleted(*changes.Completed)
	}
	t.UpdatedAt = timestamp
	return t, true
}

// Toggled flips between done and active. Any non-done status, in_progress
// included, becomes done.
func (t Task) Toggled(timestamp string) Task {
	if t.Status == StatusDone {
		t.Status = StatusActive
	} else {
		t.Status = StatusDone
	}
	t.UpdatedAt = timestamp
	return t
}

// NormalizeNote trims surrounding whitespace from a note.
func NormalizeNote(note string) string {
	return strings.TrimSpace(note)
}
