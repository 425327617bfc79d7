package store

import (
	"strings"

	"touche/internal/codec"
	"touche/internal/models"
	"touche/internal/storage"
)

// TasksKey is the storage key of the task collection.
const TasksKey = "touche:tasks"

// Tasks is the task collection, newest first.
type Tasks struct {
	*Persistent[[]models.Task]
	opts  options
	stamp *stamper
}

// NewTasks opens the task collection on medium.
func NewTasks(medium storage.Storage, opts ...Option) *Tasks {
	o := buildOptions(opts)
	t := &Tasks{opts: o, stamp: newStamper(o.now)}
	c := codec.New(o.now)

	t.Persistent = NewPersistent(medium, TasksKey,
		c.DecodeTasks,
		func() []models.Task { return []models.Task{} },
		opts...)
	return t
}

// AddTask puts a new active task at the front of the collection. A blank
// title is ignored and reported with false.
func (t *Tasks) AddTask(draft models.TaskDraft) (models.Task, bool) {
	title := strings.TrimSpace(draft.Title)
	if title == "" {
		return models.Task{}, false
	}

	timestamp := t.stamp.next()
	task := models.Task{
		ID:        newID(t.opts, "task"),
		BoardID:   draft.BoardID,
		Title:     title,
		Note:      models.NormalizeNote(draft.Note),
		Status:    models.StatusActive,
		CreatedAt: timestamp,
		UpdatedAt: timestamp,
	}

	t.Update(func(tasks []models.Task) []models.Task {
		next := make([]models.Task, 0, len(tasks)+1)
		next = append(next, task)
		return append(next, tasks...)
	})
	return task, true
}

// UpdateTask applies changes to the task with the given id and bumps its
// updatedAt, even when changes is empty. A title that trims to empty
// rejects the whole update.
func (t *Tasks) UpdateTask(id string, changes models.TaskChanges) {
	t.replace(id, func(task models.Task) (models.Task, bool) {
		return task.Apply(changes, t.stamp.next(task.CreatedAt, task.UpdatedAt))
	})
}

// ToggleCompleted flips a task between done and active.
func (t *Tasks) ToggleCompleted(id string) {
	t.replace(id, func(task models.Task) (models.Task, bool) {
		return task.Toggled(t.stamp.next(task.CreatedAt, task.UpdatedAt)), true
	})
}

// SetStatus assigns status to the task. Unknown statuses are ignored.
func (t *Tasks) SetStatus(id string, status models.TaskStatus) {
	if !status.Valid() {
		return
	}
	t.replace(id, func(task models.Task) (models.Task, bool) {
		task.Status = status
		task.UpdatedAt = t.stamp.next(task.CreatedAt, task.UpdatedAt)
		return task, true
	})
}

// DeleteTask removes the task with the given id.
func (t *Tasks) DeleteTask(id string) {
	t.remove(func(task models.Task) bool { return task.ID == id })
}

// ClearCompleted removes every done task, keeping the order of the rest.
func (t *Tasks) ClearCompleted() {
	t.remove(models.Task.IsDone)
}

// TasksByBoard returns the tasks of one board from the current snapshot.
func (t *Tasks) TasksByBoard(boardID string) []models.Task {
	var out []models.Task
	for _, task := range t.Get() {
		if task.BoardID == boardID {
			out = append(out, task)
		}
	}
	if out == nil {
		return []models.Task{}
	}
	return out
}

// Task returns the task with the given id.
func (t *Tasks) Task(id string) (models.Task, bool) {
	for _, task := range t.Get() {
		if task.ID == id {
			return task, true
		}
	}
	return models.Task{}, false
}

func (t *Tasks) replace(id string, fn func(models.Task) (models.Task, bool)) {
	t.mutate(func(tasks []models.Task) ([]models.Task, bool) {
		for i, task := range tasks {
			if task.ID != id {
				continue
			}
			updated, ok := fn(task)
			if !ok {
				return tasks, false
			}
			next := make([]models.Task, len(tasks))
			copy(next, tasks)
			next[i] = updated
			return next, true
		}
		return tasks, false
	})
}

func (t *Tasks) remove(match func(models.Task) bool) {
	t.mutate(func(tasks []models.Task) ([]models.Task, bool) {
		next := make([]models.Task, 0, len(tasks))
		for _, task := range tasks {
			if !match(task) {
				next = append(next, task)
			}
		}
		return next, len(next) != len(tasks)
	})
}
