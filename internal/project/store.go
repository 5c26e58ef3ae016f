package project

import "context"

// ProjectFilter selects projects. A zero filter matches every project.
type ProjectFilter struct {
	Owner string

	// TaskID restricts to projects whose TaskIDs reference that task.
	TaskID string
}

// Matches reports whether p satisfies the filter.
func (f ProjectFilter) Matches(p *Project) bool {
	if f.Owner != "" && p.Owner != f.Owner {
		return false
	}
	return f.TaskID == "" || p.HasTask(f.TaskID)
}

// TaskFilter selects tasks. IDs, when non-nil, restricts to that id set; an
// empty non-nil slice matches nothing.
type TaskFilter struct {
	IDs        []string
	AssignedTo string
}

// Matches reports whether t satisfies the filter.
func (f TaskFilter) Matches(t *Task) bool {
	if f.AssignedTo != "" && t.AssignedTo != f.AssignedTo {
		return false
	}
	if f.IDs == nil {
		return true
	}
	for _, id := range f.IDs {
		if id == t.ID {
			return true
		}
	}
	return false
}

// Store is the document store contract for the Projects and Tasks
// collections. Absence is reported as ErrNotFound. Each method touches one
// document and is atomic for that document only.
//
// The array operations report modified=false when the document matched but
// was left unchanged.
type Store interface {
	InsertProject(ctx context.Context, p *Project) (string, error)
	FindProject(ctx context.Context, id string) (*Project, error)
	FindProjects(ctx context.Context, filter ProjectFilter) ([]*Project, error)
	UpdateProjectDetails(ctx context.Context, id string, details ProjectDetails) error
	SetProjectStatus(ctx context.Context, id string, status ProjectStatus) error
	DeleteProject(ctx context.Context, id string) error

	// PushTaskID appends taskID to the project's TaskIDs if absent.
	PushTaskID(ctx context.Context, projectID, taskID string) (bool, error)
	// PullTaskID removes taskID from the project's TaskIDs.
	PullTaskID(ctx context.Context, projectID, taskID string) (bool, error)
	// AddMember adds userID to the member set.
	AddMember(ctx context.Context, projectID, userID string) (bool, error)
	// PullMember removes userID from the member set.
	PullMember(ctx context.Context, projectID, userID string) (bool, error)

	InsertTask(ctx context.Context, t *Task) (string, error)
	FindTask(ctx context.Context, id string) (*Task, error)
	FindTasks(ctx context.Context, filter TaskFilter) ([]*Task, error)
	UpdateTaskFields(ctx context.Context, id string, fields TaskFields) error
	DeleteTask(ctx context.Context, id string) error
}
