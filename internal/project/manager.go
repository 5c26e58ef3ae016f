package project

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds each store call when ManagerConfig.Timeout is unset.
const DefaultTimeout = 5 * time.Second

// Manager owns every mutation of projects and tasks. It is the only writer of
// Project.TaskIDs.
type Manager interface {
	// CreateProject validates details and every task spec, inserts the tasks
	// in order, then inserts the project referencing them.
	CreateProject(ctx context.Context, details ProjectDetails, tasks []TaskSpec) (*Project, error)

	// GetProject retrieves a project by ID.
	GetProject(ctx context.Context, id string) (*Project, error)

	// ListProjects returns the projects matching filter.
	ListProjects(ctx context.Context, filter ProjectFilter) ([]*Project, error)

	// UpdateProject overwrites the caller-writable fields. TaskIDs and Status
	// are left untouched.
	UpdateProject(ctx context.Context, id string, details ProjectDetails) (*Project, error)

	// UpdateProjectStatus parses and sets the project status.
	UpdateProjectStatus(ctx context.Context, id, status string) (*Project, error)

	// RemoveProject deletes the project. Its tasks are not deleted.
	RemoveProject(ctx context.Context, id string) error

	// AddMember adds userID to the member set. Adding an existing member
	// succeeds without change.
	AddMember(ctx context.Context, projectID, userID string) error

	// RemoveMember removes userID from the member set.
	RemoveMember(ctx context.Context, projectID, userID string) error

	// CreateTaskStandalone inserts a task without attaching it.
	CreateTaskStandalone(ctx context.Context, spec TaskSpec) (*Task, error)

	// AttachTask appends taskID to the project's TaskIDs. It returns false
	// when the store reports no modification and ErrTaskAttached when another
	// project already references the task.
	AttachTask(ctx context.Context, projectID, taskID string) (bool, error)

	// AddTask creates a task and attaches it to the project.
	AddTask(ctx context.Context, projectID string, spec TaskSpec) (*Task, error)

	// GetTask retrieves a task by ID.
	GetTask(ctx context.Context, id string) (*Task, error)

	// ListProjectTasks returns the project's tasks in TaskIDs order.
	ListProjectTasks(ctx context.Context, projectID string) ([]*Task, error)

	// UpdateTask overwrites the writable task fields. CreatedAt is kept.
	UpdateTask(ctx context.Context, taskID string, spec TaskSpec) (*Task, error)

	// DetachAndDeleteTask removes taskID from the project, then deletes the
	// task record.
	DetachAndDeleteTask(ctx context.Context, projectID, taskID string) error
}

// ManagerConfig configures the Manager.
type ManagerConfig struct {
	// Timeout bounds each store call (default: 5s).
	Timeout time.Duration

	// Now stamps Task.CreatedAt (default: time.Now in UTC).
	Now func() time.Time
}

// manager implements Manager over a Store.
type manager struct {
	store   Store
	timeout time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

// NewManager creates a Manager backed by store.
func NewManager(store Store, cfg ManagerConfig, logger *zap.Logger) (Manager, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &manager{
		store:   store,
		timeout: cfg.Timeout,
		now:     cfg.Now,
		logger:  logger,
	}, nil
}

// bounded runs one store call under the per-call deadline.
func (m *manager) bounded(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	return fn(ctx)
}

func requireID(kind, id string) error {
	if id == "" {
		return fmt.Errorf("%s: %w: %w", kind, ErrNotFound, ErrEmptyID)
	}
	return nil
}

func (m *manager) findProject(ctx context.Context, id string) (*Project, error) {
	if err := requireID("project", id); err != nil {
		return nil, err
	}
	var p *Project
	err := m.bounded(ctx, func(ctx context.Context) error {
		var err error
		p, err = m.store.FindProject(ctx, id)
		return err
	})
	if err != nil {
		return nil, classify(fmt.Sprintf("find project %s", id), err)
	}
	return p, nil
}

func (m *manager) findTask(ctx context.Context, id string) (*Task, error) {
	if err := requireID("task", id); err != nil {
		return nil, err
	}
	var t *Task
	err := m.bounded(ctx, func(ctx context.Context) error {
		var err error
		t, err = m.store.FindTask(ctx, id)
		return err
	})
	if err != nil {
		return nil, classify(fmt.Sprintf("find task %s", id), err)
	}
	return t, nil
}

func (m *manager) insertTask(ctx context.Context, fields TaskFields) (*Task, error) {
	t := fields.newTask(m.now())
	err := m.bounded(ctx, func(ctx context.Context) error {
		id, err := m.store.InsertTask(ctx, t)
		t.ID = id
		return err
	})
	if err != nil {
		return nil, classify("insert task", err)
	}
	return t, nil
}

// CreateProject creates a project and its initial tasks.
func (m *manager) CreateProject(ctx context.Context, details ProjectDetails, specs []TaskSpec) (*Project, error) {
	details = details.Normalize()
	if err := details.Validate(); err != nil {
		return nil, err
	}

	fields := make([]TaskFields, 0, len(specs))
	for i, spec := range specs {
		f, err := spec.Fields()
		if err != nil {
			return nil, fmt.Errorf("task %d: %w", i, err)
		}
		fields = append(fields, f)
	}

	taskIDs := make([]string, 0, len(fields))
	for i, f := range fields {
		t, err := m.insertTask(ctx, f)
		if err != nil {
			m.logOrphans("task insert failed during project creation", taskIDs, zap.Int("task_index", i), zap.Error(err))
			return nil, err
		}
		taskIDs = append(taskIDs, t.ID)
	}

	p := &Project{TaskIDs: taskIDs, Status: ProjectNotStarted}
	details.apply(p)

	err := m.bounded(ctx, func(ctx context.Context) error {
		id, err := m.store.InsertProject(ctx, p)
		p.ID = id
		return err
	})
	if err != nil {
		m.logOrphans("project insert failed", taskIDs, zap.Error(err))
		return nil, classify("insert project", err)
	}

	m.logger.Debug("project created",
		zap.String("project_id", p.ID),
		zap.Int("task_count", len(taskIDs)))
	return p, nil
}

func (m *manager) logOrphans(msg string, taskIDs []string, fields ...zap.Field) {
	if len(taskIDs) == 0 {
		return
	}
	m.logger.Warn(msg, append(fields, zap.Strings("orphaned_task_ids", taskIDs))...)
}

// GetProject retrieves a project by ID.
func (m *manager) GetProject(ctx context.Context, id string) (*Project, error) {
	return m.findProject(ctx, id)
}

// ListProjects returns projects matching filter.
func (m *manager) ListProjects(ctx context.Context, filter ProjectFilter) ([]*Project, error) {
	var projects []*Project
	err := m.bounded(ctx, func(ctx context.Context) error {
		var err error
		projects, err = m.store.FindProjects(ctx, filter)
		return err
	})
	if err != nil {
		return nil, classify("list projects", err)
	}
	return projects, nil
}

// UpdateProject overwrites the caller-writable project fields.
func (m *manager) UpdateProject(ctx context.Context, id string, details ProjectDetails) (*Project, error) {
	details = details.Normalize()
	if err := details.Validate(); err != nil {
		return nil, err
	}

	p, err := m.findProject(ctx, id)
	if err != nil {
		return nil, err
	}

	err = m.bounded(ctx, func(ctx context.Context) error {
		return m.store.UpdateProjectDetails(ctx, id, details)
	})
	if err != nil {
		return nil, classify(fmt.Sprintf("update project %s", id), err)
	}

	details.apply(p)
	return p, nil
}

// UpdateProjectStatus sets the project status.
func (m *manager) UpdateProjectStatus(ctx context.Context, id, status string) (*Project, error) {
	st, err := ParseProjectStatus(status)
	if err != nil {
		return nil, err
	}

	p, err := m.findProject(ctx, id)
	if err != nil {
		return nil, err
	}

	err = m.bounded(ctx, func(ctx context.Context) error {
		return m.store.SetProjectStatus(ctx, id, st)
	})
	if err != nil {
		return nil, classify(fmt.Sprintf("set status of project %s", id), err)
	}

	p.Status = st
	return p, nil
}

// RemoveProject deletes the project document only.
func (m *manager) RemoveProject(ctx context.Context, id string) error {
	p, err := m.findProject(ctx, id)
	if err != nil {
		return err
	}

	err = m.bounded(ctx, func(ctx context.Context) error {
		return m.store.DeleteProject(ctx, id)
	})
	if err != nil {
		return classify(fmt.Sprintf("delete project %s", id), err)
	}

	if len(p.TaskIDs) > 0 {
		m.logger.Info("project removed, tasks kept",
			zap.String("project_id", id),
			zap.Strings("task_ids", p.TaskIDs))
	}
	return nil
}

// AddMember adds userID to the project's member set.
func (m *manager) AddMember(ctx context.Context, projectID, userID string) error {
	if err := requireID("project", projectID); err != nil {
		return err
	}
	if userID == "" {
		return fmt.Errorf("member: %w: %w", ErrInvalidProject, ErrEmptyID)
	}

	var modified bool
	err := m.bounded(ctx, func(ctx context.Context) error {
		var err error
		modified, err = m.store.AddMember(ctx, projectID, userID)
		return err
	})
	if err != nil {
		return classify(fmt.Sprintf("add member to project %s", projectID), err)
	}

	if !modified {
		m.logger.Debug("member already present",
			zap.String("project_id", projectID),
			zap.String("user_id", userID))
	}
	return nil
}

// RemoveMember removes userID from the project's member set.
func (m *manager) RemoveMember(ctx context.Context, projectID, userID string) error {
	if err := requireID("project", projectID); err != nil {
		return err
	}

	var modified bool
	err := m.bounded(ctx, func(ctx context.Context) error {
		var err error
		modified, err = m.store.PullMember(ctx, projectID, userID)
		return err
	})
	if err != nil {
		return classify(fmt.Sprintf("remove member from project %s", projectID), err)
	}
	if !modified {
		return fmt.Errorf("remove member %s from project %s: %w", userID, projectID, ErrNotAMember)
	}
	return nil
}

// CreateTaskStandalone inserts an unattached task.
func (m *manager) CreateTaskStandalone(ctx context.Context, spec TaskSpec) (*Task, error) {
	f, err := spec.Fields()
	if err != nil {
		return nil, err
	}
	return m.insertTask(ctx, f)
}

// AttachTask appends taskID to the project's TaskIDs.
func (m *manager) AttachTask(ctx context.Context, projectID, taskID string) (bool, error) {
	if _, err := m.findProject(ctx, projectID); err != nil {
		return false, err
	}
	if _, err := m.findTask(ctx, taskID); err != nil {
		return false, err
	}

	var owners []*Project
	err := m.bounded(ctx, func(ctx context.Context) error {
		var err error
		owners, err = m.store.FindProjects(ctx, ProjectFilter{TaskID: taskID})
		return err
	})
	if err != nil {
		return false, classify(fmt.Sprintf("find projects referencing task %s", taskID), err)
	}
	for _, p := range owners {
		if p.ID != projectID {
			return false, fmt.Errorf("attach task %s to project %s: %w", taskID, projectID, ErrTaskAttached)
		}
	}

	var modified bool
	err = m.bounded(ctx, func(ctx context.Context) error {
		var err error
		modified, err = m.store.PushTaskID(ctx, projectID, taskID)
		return err
	})
	if err != nil {
		return false, classify(fmt.Sprintf("attach task %s to project %s", taskID, projectID), err)
	}
	return modified, nil
}

// AddTask creates a task and attaches it to the project.
func (m *manager) AddTask(ctx context.Context, projectID string, spec TaskSpec) (*Task, error) {
	f, err := spec.Fields()
	if err != nil {
		return nil, err
	}
	if _, err := m.findProject(ctx, projectID); err != nil {
		return nil, err
	}

	t, err := m.insertTask(ctx, f)
	if err != nil {
		return nil, err
	}

	attached, err := m.AttachTask(ctx, projectID, t.ID)
	if err != nil {
		m.logOrphans("attach failed after task insert", []string{t.ID},
			zap.String("project_id", projectID), zap.Error(err))
		return nil, err
	}
	if !attached {
		m.logOrphans("attach reported no modification", []string{t.ID},
			zap.String("project_id", projectID))
		return nil, fmt.Errorf("attach task %s to project %s: %w", t.ID, projectID, ErrInternal)
	}
	return t, nil
}

// GetTask retrieves a task by ID.
func (m *manager) GetTask(ctx context.Context, id string) (*Task, error) {
	return m.findTask(ctx, id)
}

// ListProjectTasks returns the project's tasks in TaskIDs order.
func (m *manager) ListProjectTasks(ctx context.Context, projectID string) ([]*Task, error) {
	p, err := m.findProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if len(p.TaskIDs) == 0 {
		return []*Task{}, nil
	}

	var tasks []*Task
	err = m.bounded(ctx, func(ctx context.Context) error {
		var err error
		tasks, err = m.store.FindTasks(ctx, TaskFilter{IDs: p.TaskIDs})
		return err
	})
	if err != nil {
		return nil, classify(fmt.Sprintf("list tasks of project %s", projectID), err)
	}

	byID := make(map[string]*Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}
	ordered := make([]*Task, 0, len(p.TaskIDs))
	for _, id := range p.TaskIDs {
		t, ok := byID[id]
		if !ok {
			m.logger.Warn("project references a missing task",
				zap.String("project_id", projectID),
				zap.String("task_id", id))
			continue
		}
		ordered = append(ordered, t)
	}
	return ordered, nil
}

// UpdateTask overwrites the writable task fields.
func (m *manager) UpdateTask(ctx context.Context, taskID string, spec TaskSpec) (*Task, error) {
	f, err := spec.Fields()
	if err != nil {
		return nil, err
	}

	t, err := m.findTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	err = m.bounded(ctx, func(ctx context.Context) error {
		return m.store.UpdateTaskFields(ctx, taskID, f)
	})
	if err != nil {
		return nil, classify(fmt.Sprintf("update task %s", taskID), err)
	}

	f.apply(t)
	return t, nil
}

// DetachAndDeleteTask pulls the reference first, then deletes the record.
func (m *manager) DetachAndDeleteTask(ctx context.Context, projectID, taskID string) error {
	p, err := m.findProject(ctx, projectID)
	if err != nil {
		return err
	}
	if !p.HasTask(taskID) {
		return fmt.Errorf("detach task %s from project %s: %w", taskID, projectID, ErrTaskNotAttached)
	}

	var modified bool
	err = m.bounded(ctx, func(ctx context.Context) error {
		var err error
		modified, err = m.store.PullTaskID(ctx, projectID, taskID)
		return err
	})
	if err != nil {
		return classify(fmt.Sprintf("detach task %s from project %s", taskID, projectID), err)
	}
	if !modified {
		// Detached concurrently; the other caller owns the delete.
		return fmt.Errorf("detach task %s from project %s: %w", taskID, projectID, ErrTaskNotAttached)
	}

	err = m.bounded(ctx, func(ctx context.Context) error {
		return m.store.DeleteTask(ctx, taskID)
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		m.logger.Warn("detached task had no record",
			zap.String("project_id", projectID),
			zap.String("task_id", taskID))
		return nil
	default:
		m.logger.Error("task detached but not deleted",
			zap.String("project_id", projectID),
			zap.String("orphaned_task_id", taskID),
			zap.Error(err))
		return classify(fmt.Sprintf("delete task %s", taskID), err)
	}
}
