package project

import (
	"fmt"
	"strings"
	"time"
)

// TaskStatus is the progress state of a task.
type TaskStatus string

const (
	TaskNotStarted TaskStatus = "NotStarted"
	TaskInProgress TaskStatus = "InProgress"
	TaskCompleted  TaskStatus = "Completed"
)

var taskStatuses = []TaskStatus{TaskNotStarted, TaskInProgress, TaskCompleted}

// ParseTaskStatus parses a status name case-insensitively. An empty string
// means TaskNotStarted.
func ParseTaskStatus(s string) (TaskStatus, error) {
	if strings.TrimSpace(s) == "" {
		return TaskNotStarted, nil
	}
	for _, st := range taskStatuses {
		if strings.EqualFold(s, string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: unknown task status %q", ErrInvalidStatus, s)
}

// Task is a unit of work, attached to at most one project through that
// project's TaskIDs.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	AssignedTo  string     `json:"assignedTo"`
	CreatedAt   time.Time  `json:"createdAt"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Status      TaskStatus `json:"status"`
}

// Clone returns a deep copy.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	if t.DueDate != nil {
		due := *t.DueDate
		c.DueDate = &due
	}
	return &c
}

// TaskSpec is the caller-supplied description of a task. Status is a raw
// name parsed by Fields.
type TaskSpec struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	AssignedTo  string     `json:"assignedTo"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Status      string     `json:"status,omitempty"`
}

// TaskFields are the validated, writable task fields. CreatedAt is never
// among them.
type TaskFields struct {
	Title       string
	Description string
	AssignedTo  string
	DueDate     *time.Time
	Status      TaskStatus
}

// Fields validates the spec and returns the fields to write.
func (s TaskSpec) Fields() (TaskFields, error) {
	title := strings.TrimSpace(s.Title)
	if title == "" {
		return TaskFields{}, fmt.Errorf("%w: title is required", ErrInvalidTask)
	}
	if strings.TrimSpace(s.AssignedTo) == "" {
		return TaskFields{}, fmt.Errorf("%w: assignedTo is required", ErrInvalidTask)
	}
	status, err := ParseTaskStatus(s.Status)
	if err != nil {
		return TaskFields{}, err
	}
	return TaskFields{
		Title:       title,
		Description: s.Description,
		AssignedTo:  s.AssignedTo,
		DueDate:     s.DueDate,
		Status:      status,
	}, nil
}

// newTask builds an unsaved task stamped with createdAt.
func (f TaskFields) newTask(createdAt time.Time) *Task {
	t := &Task{CreatedAt: createdAt}
	f.apply(t)
	return t
}

func (f TaskFields) apply(t *Task) {
	t.Title = f.Title
	t.Description = f.Description
	t.AssignedTo = f.AssignedTo
	t.DueDate = f.DueDate
	t.Status = f.Status
}

// ApplyTo overwrites the writable fields of t. Store backends use it for
// field-wise updates.
func (f TaskFields) ApplyTo(t *Task) { f.apply(t) }
