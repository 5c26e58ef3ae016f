package orchestrator

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projectd/internal/access"
	"github.com/fyrsmithlabs/projectd/internal/events"
	"github.com/fyrsmithlabs/projectd/internal/logging"
	"github.com/fyrsmithlabs/projectd/internal/project"
)

const instrumentationName = "github.com/fyrsmithlabs/projectd/internal/orchestrator"

// Authorizer checks a caller's access to a project and returns the project
// the decision was based on.
type Authorizer interface {
	Project(ctx context.Context, userID, projectID string) (*project.Project, error)
}

var _ Authorizer = (*access.Evaluator)(nil)

// Config configures the Orchestrator.
type Config struct {
	// Metrics defaults to DefaultMetrics().
	Metrics *Metrics

	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
}

// Orchestrator sequences access checks, manager calls and notifications.
type Orchestrator struct {
	access  Authorizer
	manager project.Manager
	emitter events.Emitter
	metrics *Metrics
	tracer  trace.Tracer
	logger  *zap.Logger
}

// New creates an Orchestrator.
func New(authz Authorizer, mgr project.Manager, em events.Emitter, cfg Config, logger *zap.Logger) (*Orchestrator, error) {
	if authz == nil {
		return nil, errors.New("authorizer is required")
	}
	if mgr == nil {
		return nil, errors.New("project manager is required")
	}
	if em == nil {
		return nil, errors.New("event emitter is required")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = DefaultMetrics()
	}
	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		access:  authz,
		manager: mgr,
		emitter: em,
		metrics: cfg.Metrics,
		tracer:  tp.Tracer(instrumentationName),
		logger:  logger,
	}, nil
}

// Outcome labels an operation result for metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, project.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, project.ErrForbidden):
		return "forbidden"
	case errors.Is(err, project.ErrNotFound):
		return "not_found"
	case errors.Is(err, project.ErrInvalidStatus),
		errors.Is(err, project.ErrInvalidProject),
		errors.Is(err, project.ErrInvalidTask):
		return "invalid"
	case errors.Is(err, project.ErrNotAMember),
		errors.Is(err, project.ErrTaskNotAttached),
		errors.Is(err, project.ErrTaskAttached):
		return "conflict"
	case errors.Is(err, project.ErrTimeout):
		return "timeout"
	default:
		return "internal"
	}
}

// run wraps one operation in a span and records its metrics.
func (o *Orchestrator) run(ctx context.Context, op, userID string, attrs []attribute.KeyValue, fn func(ctx context.Context) error) error {
	ctx, span := o.tracer.Start(ctx, "orchestrator."+op,
		trace.WithAttributes(append(attrs, attribute.String("user.id", userID))...))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	outcome := Outcome(err)

	o.metrics.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	o.metrics.OperationsTotal.WithLabelValues(op, outcome).Inc()
	span.SetAttributes(attribute.String("outcome", outcome))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		if outcome == "internal" || outcome == "timeout" {
			o.log(ctx).Error("operation failed",
				zap.String("operation", op),
				zap.String("user_id", userID),
				zap.Error(err))
		} else {
			o.log(ctx).Debug("operation rejected",
				zap.String("operation", op),
				zap.String("user_id", userID),
				zap.String("outcome", outcome),
				zap.Error(err))
		}
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// log returns the logger annotated with the request's correlation fields.
func (o *Orchestrator) log(ctx context.Context) *zap.Logger {
	return o.logger.With(logging.ContextFields(ctx)...)
}

// emit publishes a notification after a committed change. Failures are
// logged and counted, never returned.
func (o *Orchestrator) emit(ctx context.Context, changeType events.Type, payload any) {
	if err := o.emitter.Emit(ctx, changeType, payload); err != nil {
		o.metrics.EventPublishFailuresTotal.WithLabelValues(string(changeType)).Inc()
		trace.SpanFromContext(ctx).AddEvent("event publish failed",
			trace.WithAttributes(attribute.String("event.type", string(changeType))))
		o.log(ctx).Error("event publish failed",
			zap.String("event_type", string(changeType)),
			zap.Error(err))
		return
	}
	o.metrics.EventsPublishedTotal.WithLabelValues(string(changeType)).Inc()
}

func (o *Orchestrator) authorize(ctx context.Context, userID, projectID string) (*project.Project, error) {
	return o.access.Project(ctx, userID, projectID)
}

func requireCaller(userID string) error {
	if userID == "" {
		return project.ErrUnauthorized
	}
	return nil
}

func projectAttr(id string) attribute.KeyValue { return attribute.String("project.id", id) }
func taskAttr(id string) attribute.KeyValue    { return attribute.String("task.id", id) }

// CreateProject creates a project with its initial tasks. An empty owner
// defaults to the caller.
func (o *Orchestrator) CreateProject(ctx context.Context, userID string, details project.ProjectDetails, tasks []project.TaskSpec) (*project.Project, error) {
	var created *project.Project
	err := o.run(ctx, "create_project", userID, nil, func(ctx context.Context) error {
		if err := requireCaller(userID); err != nil {
			return err
		}
		if details.Owner == "" {
			details.Owner = userID
		}
		p, err := o.manager.CreateProject(ctx, details, tasks)
		if err != nil {
			return err
		}
		created = p
		o.emit(ctx, events.ProjectCreated, p)
		return nil
	})
	return created, err
}

// GetProject returns a project the caller can access.
func (o *Orchestrator) GetProject(ctx context.Context, userID, projectID string) (*project.Project, error) {
	var p *project.Project
	err := o.run(ctx, "get_project", userID, []attribute.KeyValue{projectAttr(projectID)}, func(ctx context.Context) error {
		var err error
		p, err = o.authorize(ctx, userID, projectID)
		return err
	})
	return p, err
}

// ListProjects lists projects for any authenticated caller. The result is
// not filtered by access.
func (o *Orchestrator) ListProjects(ctx context.Context, userID string, filter project.ProjectFilter) ([]*project.Project, error) {
	var projects []*project.Project
	err := o.run(ctx, "list_projects", userID, nil, func(ctx context.Context) error {
		if err := requireCaller(userID); err != nil {
			return err
		}
		var err error
		projects, err = o.manager.ListProjects(ctx, filter)
		return err
	})
	return projects, err
}

// UpdateProject overwrites the caller-writable project fields.
func (o *Orchestrator) UpdateProject(ctx context.Context, userID, projectID string, details project.ProjectDetails) (*project.Project, error) {
	var updated *project.Project
	err := o.run(ctx, "update_project", userID, []attribute.KeyValue{projectAttr(projectID)}, func(ctx context.Context) error {
		if _, err := o.authorize(ctx, userID, projectID); err != nil {
			return err
		}
		p, err := o.manager.UpdateProject(ctx, projectID, details)
		if err != nil {
			return err
		}
		updated = p
		o.emit(ctx, events.ProjectUpdated, p)
		return nil
	})
	return updated, err
}

// UpdateProjectStatus sets the project status.
func (o *Orchestrator) UpdateProjectStatus(ctx context.Context, userID, projectID, status string) (*project.Project, error) {
	var updated *project.Project
	err := o.run(ctx, "update_project_status", userID, []attribute.KeyValue{projectAttr(projectID)}, func(ctx context.Context) error {
		if _, err := o.authorize(ctx, userID, projectID); err != nil {
			return err
		}
		p, err := o.manager.UpdateProjectStatus(ctx, projectID, status)
		if err != nil {
			return err
		}
		updated = p
		o.emit(ctx, events.ProjectUpdated, p)
		return nil
	})
	return updated, err
}

// RemoveProject deletes a project. Its tasks are kept.
func (o *Orchestrator) RemoveProject(ctx context.Context, userID, projectID string) error {
	return o.run(ctx, "remove_project", userID, []attribute.KeyValue{projectAttr(projectID)}, func(ctx context.Context) error {
		if _, err := o.authorize(ctx, userID, projectID); err != nil {
			return err
		}
		if err := o.manager.RemoveProject(ctx, projectID); err != nil {
			return err
		}
		o.emit(ctx, events.ProjectDeleted, events.ProjectRef{ProjectID: projectID})
		return nil
	})
}

// AddMember adds memberID to the project.
func (o *Orchestrator) AddMember(ctx context.Context, userID, projectID, memberID string) error {
	return o.run(ctx, "add_member", userID, []attribute.KeyValue{projectAttr(projectID)}, func(ctx context.Context) error {
		if _, err := o.authorize(ctx, userID, projectID); err != nil {
			return err
		}
		if err := o.manager.AddMember(ctx, projectID, memberID); err != nil {
			return err
		}
		o.emit(ctx, events.MemberAdded, events.MemberChange{ProjectID: projectID, UserID: memberID})
		return nil
	})
}

// RemoveMember removes memberID from the project.
func (o *Orchestrator) RemoveMember(ctx context.Context, userID, projectID, memberID string) error {
	return o.run(ctx, "remove_member", userID, []attribute.KeyValue{projectAttr(projectID)}, func(ctx context.Context) error {
		if _, err := o.authorize(ctx, userID, projectID); err != nil {
			return err
		}
		if err := o.manager.RemoveMember(ctx, projectID, memberID); err != nil {
			return err
		}
		o.emit(ctx, events.MemberRemoved, events.MemberChange{ProjectID: projectID, UserID: memberID})
		return nil
	})
}

// CreateTask creates a task that belongs to no project yet. No notification
// is sent until it is attached.
func (o *Orchestrator) CreateTask(ctx context.Context, userID string, spec project.TaskSpec) (*project.Task, error) {
	var created *project.Task
	err := o.run(ctx, "create_task", userID, nil, func(ctx context.Context) error {
		if err := requireCaller(userID); err != nil {
			return err
		}
		t, err := o.manager.CreateTaskStandalone(ctx, spec)
		if err != nil {
			return err
		}
		created = t
		return nil
	})
	return created, err
}

// AttachTask attaches an existing task to the project. It reports false when
// the task was already attached; no notification is sent in that case. A task
// referenced by another project is rejected with ErrTaskAttached.
func (o *Orchestrator) AttachTask(ctx context.Context, userID, projectID, taskID string) (bool, error) {
	var attached bool
	err := o.run(ctx, "attach_task", userID, []attribute.KeyValue{projectAttr(projectID), taskAttr(taskID)}, func(ctx context.Context) error {
		if _, err := o.authorize(ctx, userID, projectID); err != nil {
			return err
		}
		ok, err := o.manager.AttachTask(ctx, projectID, taskID)
		if err != nil {
			return err
		}
		attached = ok
		if !ok {
			return nil
		}
		t, err := o.manager.GetTask(ctx, taskID)
		if err != nil {
			o.log(ctx).Warn("attached task could not be read for notification",
				zap.String("project_id", projectID),
				zap.String("task_id", taskID),
				zap.Error(err))
			t = &project.Task{ID: taskID}
		}
		o.emit(ctx, events.TaskAdded, events.TaskChange{ProjectID: projectID, Task: t})
		return nil
	})
	return attached, err
}

// AddTask creates a task and attaches it to the project.
func (o *Orchestrator) AddTask(ctx context.Context, userID, projectID string, spec project.TaskSpec) (*project.Task, error) {
	var created *project.Task
	err := o.run(ctx, "add_task", userID, []attribute.KeyValue{projectAttr(projectID)}, func(ctx context.Context) error {
		if _, err := o.authorize(ctx, userID, projectID); err != nil {
			return err
		}
		t, err := o.manager.AddTask(ctx, projectID, spec)
		if err != nil {
			return err
		}
		created = t
		o.emit(ctx, events.TaskAdded, events.TaskChange{ProjectID: projectID, Task: t})
		return nil
	})
	return created, err
}

// GetTask returns a task attached to a project the caller can access.
func (o *Orchestrator) GetTask(ctx context.Context, userID, projectID, taskID string) (*project.Task, error) {
	var t *project.Task
	err := o.run(ctx, "get_task", userID, []attribute.KeyValue{projectAttr(projectID), taskAttr(taskID)}, func(ctx context.Context) error {
		p, err := o.authorize(ctx, userID, projectID)
		if err != nil {
			return err
		}
		if !p.HasTask(taskID) {
			return project.ErrNotFound
		}
		t, err = o.manager.GetTask(ctx, taskID)
		return err
	})
	return t, err
}

// ListProjectTasks returns the project's tasks in order.
func (o *Orchestrator) ListProjectTasks(ctx context.Context, userID, projectID string) ([]*project.Task, error) {
	var tasks []*project.Task
	err := o.run(ctx, "list_project_tasks", userID, []attribute.KeyValue{projectAttr(projectID)}, func(ctx context.Context) error {
		if _, err := o.authorize(ctx, userID, projectID); err != nil {
			return err
		}
		var err error
		tasks, err = o.manager.ListProjectTasks(ctx, projectID)
		return err
	})
	return tasks, err
}

// UpdateTask overwrites the writable fields of a task attached to a project
// the caller can access.
func (o *Orchestrator) UpdateTask(ctx context.Context, userID, projectID, taskID string, spec project.TaskSpec) (*project.Task, error) {
	var updated *project.Task
	err := o.run(ctx, "update_task", userID, []attribute.KeyValue{projectAttr(projectID), taskAttr(taskID)}, func(ctx context.Context) error {
		p, err := o.authorize(ctx, userID, projectID)
		if err != nil {
			return err
		}
		if !p.HasTask(taskID) {
			return project.ErrNotFound
		}
		t, err := o.manager.UpdateTask(ctx, taskID, spec)
		if err != nil {
			return err
		}
		updated = t
		o.emit(ctx, events.TaskUpdated, events.TaskChange{ProjectID: projectID, Task: t})
		return nil
	})
	return updated, err
}

// DeleteTask detaches the task from the project and deletes it.
func (o *Orchestrator) DeleteTask(ctx context.Context, userID, projectID, taskID string) error {
	return o.run(ctx, "delete_task", userID, []attribute.KeyValue{projectAttr(projectID), taskAttr(taskID)}, func(ctx context.Context) error {
		if _, err := o.authorize(ctx, userID, projectID); err != nil {
			return err
		}
		if err := o.manager.DetachAndDeleteTask(ctx, projectID, taskID); err != nil {
			return err
		}
		o.emit(ctx, events.TaskDeleted, events.TaskRef{ProjectID: projectID, TaskID: taskID})
		return nil
	})
}
