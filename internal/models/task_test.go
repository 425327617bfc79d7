package models

import (
	"testing"
)

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func statusPtr(s TaskStatus) *TaskStatus { return &s }

func TestTaskStatus_Valid(t *testing.T) {
	tests := []struct {
		name     string
		status   TaskStatus
		expected bool
	}{
		{name: "active is valid", status: StatusActive, expected: true},
		{name: "in_progress is valid", status: StatusInProgress, expected: true},
		{name: "done is valid", status: StatusDone, expected: true},
		{name: "empty is invalid", status: "", expected: false},
		{name: "unknown is invalid", status: "archived", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.Valid(); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestTask_Apply(t *testing.T) {
	base := Task{
		ID:        "t1",
		BoardID:   DefaultBoardID,
		Title:     "Buy milk",
		Note:      "2 litres",
		Status:    StatusInProgress,
		CreatedAt: "2024-01-01T00:00:00.000Z",
		UpdatedAt: "2024-01-01T00:00:00.000Z",
	}
	const later = "2024-01-02T00:00:00.000Z"

	tests := []struct {
		name       string
		changes    TaskChanges
		wantOK     bool
		wantTitle  string
		wantNote   string
		wantStatus TaskStatus
	}{
		{
			name:       "empty changes still succeed",
			changes:    TaskChanges{},
			wantOK:     true,
			wantTitle:  "Buy milk",
			wantNote:   "2 litres",
			wantStatus: StatusInProgress,
		},
		{
			name:       "title is trimmed",
			changes:    TaskChanges{Title: strPtr("  Buy oat milk  ")},
			wantOK:     true,
			wantTitle:  "Buy oat milk",
			wantNote:   "2 litres",
			wantStatus: StatusInProgress,
		},
		{
			name:       "blank title rejects everything",
			changes:    TaskChanges{Title: strPtr("   "), Note: strPtr("changed")},
			wantOK:     false,
			wantTitle:  "Buy milk",
			wantNote:   "2 litres",
			wantStatus: StatusInProgress,
		},
		{
			name:       "note is normalized",
			changes:    TaskChanges{Note: strPtr("  fresh  ")},
			wantOK:     true,
			wantTitle:  "Buy milk",
			wantNote:   "fresh",
			wantStatus: StatusInProgress,
		},
		{
			name:       "completed true maps to done",
			changes:    TaskChanges{Completed: boolPtr(true)},
			wantOK:     true,
			wantTitle:  "Buy milk",
			wantNote:   "2 litres",
			wantStatus: StatusDone,
		},
		{
			name:       "completed false maps to active",
			changes:    TaskChanges{Completed: boolPtr(false)},
			wantOK:     true,
			wantTitle:  "Buy milk",
			wantNote:   "2 litres",
			wantStatus: StatusActive,
		},
		{
			name:       "completed wins over status",
			changes:    TaskChanges{Status: statusPtr(StatusInProgress), Completed: boolPtr(true)},
			wantOK:     true,
			wantTitle:  "Buy milk",
			wantNote:   "2 litres",
			wantStatus: StatusDone,
		},
		{
			name:       "invalid status is ignored",
			changes:    TaskChanges{Status: statusPtr("archived")},
			wantOK:     true,
			wantTitle:  "Buy milk",
			wantNote:   "2 litres",
			wantStatus: StatusInProgress,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := base.Apply(tt.changes, later)
			if ok != tt.wantOK {
				t.Fatalf("expected ok=%v, got %v", tt.wantOK, ok)
			}
			if got.Title != tt.wantTitle {
				t.Errorf("expected title %q, got %q", tt.wantTitle, got.Title)
			}
			if got.Note != tt.wantNote {
				t.Errorf("expected note %q, got %q", tt.wantNote, got.Note)
			}
			if got.Status != tt.wantStatus {
				t.Errorf("expected status %q, got %q", tt.wantStatus, got.Status)
			}
			if ok && got.UpdatedAt != later {
				t.Errorf("expected updatedAt %q, got %q", later, got.UpdatedAt)
			}
			if !ok && got != base {
				t.Errorf("expected rejected update to return the original task, got %+v", got)
			}
		})
	}
}

func TestTask_Toggled(t *testing.T) {
	tests := []struct {
		name     string
		status   TaskStatus
		expected TaskStatus
	}{
		{name: "active becomes done", status: StatusActive, expected: StatusDone},
		{name: "in_progress becomes done", status: StatusInProgress, expected: StatusDone},
		{name: "done becomes active", status: StatusDone, expected: StatusActive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := Task{ID: "t1", Title: "x", Status: tt.status}
			got := task.Toggled("ts")
			if got.Status != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got.Status)
			}
			if got.UpdatedAt != "ts" {
				t.Errorf("expected updatedAt to be bumped, got %q", got.UpdatedAt)
			}
		})
	}
}

func TestStatusFromCompleted(t *testing.T) {
	if got := StatusFromCompleted(true); got != StatusDone {
		t.Errorf("expected done, got %q", got)
	}
	if got := StatusFromCompleted(false); got != StatusActive {
		t.Errorf("expected active, got %q", got)
	}
}
