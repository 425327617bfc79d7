// Package codec turns untyped storage payloads into typed entities.
//
// Decoding is lossy but safe: items that fail shape validation are dropped,
// fields that are missing or mistyped fall back to defaults, and no error is
// ever returned. Task status is read through two permanent paths: the
// canonical "status" enum, and the older boolean "completed" flag for
// payloads written before the enum existed.
package codec

import (
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"touche/internal/models"
)

// Codec decodes payloads using its clock for missing timestamps.
type Codec struct {
	now func() time.Time
}

// New returns a Codec that stamps missing createdAt values with now().
func New(now func() time.Time) Codec {
	if now == nil {
		now = time.Now
	}
	return Codec{now: now}
}

var std = New(time.Now)

// DecodeBoards decodes boards using the wall clock.
func DecodeBoards(v any) []models.Board { return std.DecodeBoards(v) }

// DecodeTasks decodes tasks using the wall clock.
func DecodeTasks(v any) []models.Task { return std.DecodeTasks(v) }

// DecodeSettings decodes settings.
func DecodeSettings(v any) models.Settings { return std.DecodeSettings(v) }

// Parse parses a raw JSON payload into untyped values.
func Parse(raw string) (any, error) {
	var v any
	if err := sonic.ConfigStd.UnmarshalFromString(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Encode serialises a snapshot to its JSON storage form.
func Encode(v any) (string, error) {
	return sonic.ConfigStd.MarshalToString(v)
}

// DecodeBoards returns every well-formed board in v, in order.
func (c Codec) DecodeBoards(v any) []models.Board {
	items, ok := v.([]any)
	if !ok {
		return []models.Board{}
	}

	boards := make([]models.Board, 0, len(items))
	for _, item := range items {
		rec, ok := item.(map[string]any)
		if !ok {
			continue
		}

		id, ok := requiredString(rec, "id")
		if !ok {
			continue
		}
		name, ok := requiredString(rec, "name")
		if !ok {
			continue
		}

		createdAt, updatedAt := c.timestamps(rec)
		boards = append(boards, models.Board{
			ID:        id,
			Name:      strings.TrimSpace(name),
			CreatedAt: createdAt,
			UpdatedAt: updatedAt,
		})
	}
	return boards
}

// DecodeTasks returns every well-formed task in v, in order.
func (c Codec) DecodeTasks(v any) []models.Task {
	items, ok := v.([]any)
	if !ok {
		return []models.Task{}
	}

	tasks := make([]models.Task, 0, len(items))
	for _, item := range items {
		rec, ok := item.(map[string]any)
		if !ok {
			continue
		}

		id, ok := requiredString(rec, "id")
		if !ok {
			continue
		}
		title, ok := requiredString(rec, "title")
		if !ok {
			continue
		}

		boardID, ok := requiredString(rec, "boardId")
		if !ok {
			boardID = models.DefaultBoardID
		}
		note, _ := rec["note"].(string)

		createdAt, updatedAt := c.timestamps(rec)
		tasks = append(tasks, models.Task{
			ID:        id,
			BoardID:   boardID,
			Title:     strings.TrimSpace(title),
			Note:      note,
			Status:    decodeStatus(rec),
			CreatedAt: createdAt,
			UpdatedAt: updatedAt,
		})
	}
	return tasks
}

// DecodeSettings reads each flag that is a boolean and defaults the rest.
func (c Codec) DecodeSettings(v any) models.Settings {
	settings := models.DefaultSettings()
	rec, ok := v.(map[string]any)
	if !ok {
		return settings
	}

	if b, ok := rec["showCompleted"].(bool); ok {
		settings.ShowCompleted = b
	}
	if b, ok := rec["skipDeleteConfirmation"].(bool); ok {
		settings.SkipDeleteConfirmation = b
	}
	if b, ok := rec["hidePageTitle"].(bool); ok {
		settings.HidePageTitle = b
	}
	return settings
}

func (c Codec) timestamps(rec map[string]any) (createdAt, updatedAt string) {
	createdAt, ok := rec["createdAt"].(string)
	if !ok {
		createdAt = models.FormatTimestamp(c.now())
	}
	updatedAt, ok = rec["updatedAt"].(string)
	if !ok {
		updatedAt = createdAt
	}
	return createdAt, updatedAt
}

func decodeStatus(rec map[string]any) models.TaskStatus {
	if s, ok := rec["status"].(string); ok {
		if status := models.TaskStatus(s); status.Valid() {
			return status
		}
	}

	completed, _ := rec["completed"].(bool)
	return models.StatusFromCompleted(completed)
}

// requiredString returns the field when it is a string that is not blank.
// The value is returned verbatim; callers trim where the schema asks for it.
func requiredString(rec map[string]any, key string) (string, bool) {
	s, ok := rec[key].(string)
	if !ok || models.Blank(s) {
		return "", false
	}
	return s, true
}
