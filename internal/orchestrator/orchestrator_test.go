package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fyrsmithlabs/projectd/internal/access"
	"github.com/fyrsmithlabs/projectd/internal/events"
	"github.com/fyrsmithlabs/projectd/internal/logging"
	"github.com/fyrsmithlabs/projectd/internal/project"
	"github.com/fyrsmithlabs/projectd/internal/store/memory"
)

type capturePublisher struct {
	mu   sync.Mutex
	envs []events.Envelope
	err  error
}

func (p *capturePublisher) Publish(_ context.Context, msg events.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	var env events.Envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		return err
	}
	p.envs = append(p.envs, env)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func (p *capturePublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.envs))
	for _, e := range p.envs {
		out = append(out, e.MessageType)
	}
	return out
}

type harness struct {
	orch     *Orchestrator
	store    *memory.Store
	pub      *capturePublisher
	metrics  *Metrics
	recorder *tracetest.SpanRecorder
	logs     *observer.ObservedLogs
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	store := memory.New()
	mgr, err := project.NewManager(store, project.ManagerConfig{Timeout: time.Second}, logger)
	require.NoError(t, err)
	eval, err := access.NewEvaluator(access.ManagerFinder{Manager: mgr}, logger)
	require.NoError(t, err)

	pub := &capturePublisher{}
	em, err := events.NewEmitter(pub, events.EmitterConfig{Timeout: time.Second}, logger)
	require.NoError(t, err)

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	metrics := NewMetrics(prometheus.NewRegistry())
	orch, err := New(eval, mgr, em, Config{Metrics: metrics, TracerProvider: tp}, logger)
	require.NoError(t, err)

	return &harness{orch: orch, store: store, pub: pub, metrics: metrics, recorder: recorder, logs: logs}
}

func sampleDetails(owner string, members ...string) project.ProjectDetails {
	return project.ProjectDetails{
		Name:      "Apollo",
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Owner:     owner,
		Members:   members,
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, nil, nil, Config{}, nil)
	assert.Error(t, err)
}

func TestOrchestrator_CreateAndAddTaskScenario(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	p, err := h.orch.CreateProject(ctx, "u1", sampleDetails("u1", "u2"), []project.TaskSpec{
		{Title: "T1", AssignedTo: "u2", Status: "NotStarted"},
	})
	require.NoError(t, err)
	require.Len(t, p.TaskIDs, 1)

	task, err := h.orch.AddTask(ctx, "u2", p.ID, project.TaskSpec{Title: "T2", AssignedTo: "u1"})
	require.NoError(t, err)

	got, err := h.orch.GetProject(ctx, "u1", p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{p.TaskIDs[0], task.ID}, got.TaskIDs)

	assert.Equal(t, []events.Type{events.ProjectCreated, events.TaskAdded}, h.pub.types())

	var payload events.TaskChange
	require.NoError(t, json.Unmarshal(h.pub.envs[1].Payload, &payload))
	assert.Equal(t, p.ID, payload.ProjectID)
	assert.Equal(t, task.ID, payload.Task.ID)

	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.OperationsTotal.WithLabelValues("create_project", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.EventsPublishedTotal.WithLabelValues("TaskAdded")))
}

func TestOrchestrator_CreateProjectDefaultsOwner(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	d := sampleDetails("")
	p, err := h.orch.CreateProject(ctx, "u5", d, nil)
	require.NoError(t, err)
	assert.Equal(t, "u5", p.Owner)

	_, err = h.orch.CreateProject(ctx, "", d, nil)
	assert.ErrorIs(t, err, project.ErrUnauthorized)
}

func TestOrchestrator_ForbiddenCallerChangesNothing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	p, err := h.orch.CreateProject(ctx, "u1", sampleDetails("u1", "u2"), []project.TaskSpec{{Title: "T", AssignedTo: "u1"}})
	require.NoError(t, err)
	before := len(h.pub.types())

	_, err = h.orch.AddTask(ctx, "u3", p.ID, project.TaskSpec{Title: "X", AssignedTo: "u3"})
	assert.ErrorIs(t, err, project.ErrForbidden)

	err = h.orch.DeleteTask(ctx, "u3", p.ID, p.TaskIDs[0])
	assert.ErrorIs(t, err, project.ErrForbidden)

	_, err = h.orch.UpdateProject(ctx, "u3", p.ID, sampleDetails("u3"))
	assert.ErrorIs(t, err, project.ErrForbidden)

	err = h.orch.AddMember(ctx, "u3", p.ID, "u3")
	assert.ErrorIs(t, err, project.ErrForbidden)

	err = h.orch.AddMember(ctx, "", p.ID, "u3")
	assert.ErrorIs(t, err, project.ErrUnauthorized)

	got, err := h.store.FindProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.TaskIDs, got.TaskIDs)
	assert.Equal(t, []string{"u2"}, got.Members)
	assert.Equal(t, "u1", got.Owner)

	_, tasks := h.store.Len()
	assert.Equal(t, 1, tasks)
	assert.Len(t, h.pub.types(), before, "no notification for rejected operations")
	assert.Equal(t, 4.0, testutil.ToFloat64(h.metrics.OperationsTotal.WithLabelValues("add_task", "forbidden"))+
		testutil.ToFloat64(h.metrics.OperationsTotal.WithLabelValues("delete_task", "forbidden"))+
		testutil.ToFloat64(h.metrics.OperationsTotal.WithLabelValues("update_project", "forbidden"))+
		testutil.ToFloat64(h.metrics.OperationsTotal.WithLabelValues("add_member", "forbidden")))
}

func TestOrchestrator_MissingProject(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.orch.GetProject(ctx, "u1", "000000000000000000000000")
	assert.ErrorIs(t, err, project.ErrNotFound)
	assert.Empty(t, h.pub.types())
}

func TestOrchestrator_EmitFailureIsSwallowed(t *testing.T) {
	ctx := logging.WithRequestID(context.Background(), "req-42")
	h := newHarness(t)
	h.pub.err = errors.New("broker down")

	p, err := h.orch.CreateProject(ctx, "u1", sampleDetails("u1"), nil)
	require.NoError(t, err, "committed mutation reports success")

	stored, err := h.store.FindProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Apollo", stored.Name)

	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.EventPublishFailuresTotal.WithLabelValues("ProjectCreated")))
	failures := h.logs.FilterMessage("event publish failed").All()
	require.Len(t, failures, 1)
	fields := failures[0].ContextMap()
	assert.Equal(t, "req-42", fields["request.id"])
	assert.NotEmpty(t, fields["trace_id"])
}

func TestOrchestrator_MemberLifecycle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	p, err := h.orch.CreateProject(ctx, "u1", sampleDetails("u1"), nil)
	require.NoError(t, err)

	require.NoError(t, h.orch.AddMember(ctx, "u1", p.ID, "u2"))

	// The new member now passes the access check.
	_, err = h.orch.GetProject(ctx, "u2", p.ID)
	require.NoError(t, err)

	require.NoError(t, h.orch.RemoveMember(ctx, "u1", p.ID, "u2"))
	err = h.orch.RemoveMember(ctx, "u1", p.ID, "u2")
	assert.ErrorIs(t, err, project.ErrNotAMember)

	_, err = h.orch.GetProject(ctx, "u2", p.ID)
	assert.ErrorIs(t, err, project.ErrForbidden)

	assert.Equal(t, []events.Type{events.ProjectCreated, events.MemberAdded, events.MemberRemoved}, h.pub.types())
}

func TestOrchestrator_TaskLifecycle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	p, err := h.orch.CreateProject(ctx, "u1", sampleDetails("u1"), nil)
	require.NoError(t, err)

	task, err := h.orch.CreateTask(ctx, "u1", project.TaskSpec{Title: "T", AssignedTo: "u1"})
	require.NoError(t, err)

	_, err = h.orch.GetTask(ctx, "u1", p.ID, task.ID)
	assert.ErrorIs(t, err, project.ErrNotFound, "unattached task is not visible through the project")

	attached, err := h.orch.AttachTask(ctx, "u1", p.ID, task.ID)
	require.NoError(t, err)
	assert.True(t, attached)

	attached, err = h.orch.AttachTask(ctx, "u1", p.ID, task.ID)
	require.NoError(t, err)
	assert.False(t, attached)

	got, err := h.orch.GetTask(ctx, "u1", p.ID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "T", got.Title)

	updated, err := h.orch.UpdateTask(ctx, "u1", p.ID, task.ID, project.TaskSpec{Title: "T2", AssignedTo: "u1", Status: "completed"})
	require.NoError(t, err)
	assert.Equal(t, project.TaskCompleted, updated.Status)

	tasks, err := h.orch.ListProjectTasks(ctx, "u1", p.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	require.NoError(t, h.orch.DeleteTask(ctx, "u1", p.ID, task.ID))
	err = h.orch.DeleteTask(ctx, "u1", p.ID, task.ID)
	assert.ErrorIs(t, err, project.ErrTaskNotAttached)

	_, err = h.orch.UpdateProjectStatus(ctx, "u1", p.ID, "Completed")
	require.NoError(t, err)

	require.NoError(t, h.orch.RemoveProject(ctx, "u1", p.ID))

	assert.Equal(t, []events.Type{
		events.ProjectCreated,
		events.TaskAdded,
		events.TaskUpdated,
		events.TaskDeleted,
		events.ProjectUpdated,
		events.ProjectDeleted,
	}, h.pub.types())
}

func TestOrchestrator_ForeignTaskIsOutOfReach(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	theirs, err := h.orch.CreateProject(ctx, "alice", sampleDetails("alice"), []project.TaskSpec{
		{Title: "secret", AssignedTo: "alice"},
	})
	require.NoError(t, err)
	taskID := theirs.TaskIDs[0]

	mine, err := h.orch.CreateProject(ctx, "mallory", sampleDetails("mallory"), nil)
	require.NoError(t, err)
	before := len(h.pub.types())

	attached, err := h.orch.AttachTask(ctx, "mallory", mine.ID, taskID)
	assert.ErrorIs(t, err, project.ErrTaskAttached)
	assert.False(t, attached)

	_, err = h.orch.GetTask(ctx, "mallory", mine.ID, taskID)
	assert.ErrorIs(t, err, project.ErrNotFound)

	_, err = h.orch.UpdateTask(ctx, "mallory", mine.ID, taskID, project.TaskSpec{Title: "pwned", AssignedTo: "mallory"})
	assert.ErrorIs(t, err, project.ErrNotFound)

	err = h.orch.DeleteTask(ctx, "mallory", mine.ID, taskID)
	assert.ErrorIs(t, err, project.ErrTaskNotAttached)

	stored, err := h.store.FindTask(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, "secret", stored.Title)
	assert.Equal(t, "alice", stored.AssignedTo)

	got, err := h.store.FindProject(ctx, mine.ID)
	require.NoError(t, err)
	assert.Empty(t, got.TaskIDs)
	got, err = h.store.FindProject(ctx, theirs.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{taskID}, got.TaskIDs)

	assert.Len(t, h.pub.types(), before, "no notification for rejected operations")
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.OperationsTotal.WithLabelValues("attach_task", "conflict")))
}

func TestOrchestrator_ListProjectsRequiresCaller(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.orch.CreateProject(ctx, "u1", sampleDetails("u1"), nil)
	require.NoError(t, err)

	all, err := h.orch.ListProjects(ctx, "u9", project.ProjectFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1, "listing is not filtered by access")

	_, err = h.orch.ListProjects(ctx, "", project.ProjectFilter{})
	assert.ErrorIs(t, err, project.ErrUnauthorized)
}

func TestOrchestrator_Spans(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.orch.CreateProject(ctx, "u1", sampleDetails("u1"), nil)
	require.NoError(t, err)
	_, err = h.orch.GetProject(ctx, "u2", "000000000000000000000000")
	require.Error(t, err)

	spans := h.recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "orchestrator.create_project", spans[0].Name())
	assert.Equal(t, "orchestrator.get_project", spans[1].Name())
	assert.Equal(t, "Error", spans[1].Status().Code.String())
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "success"},
		{project.ErrUnauthorized, "unauthorized"},
		{project.ErrForbidden, "forbidden"},
		{project.ErrNotFound, "not_found"},
		{project.ErrInvalidTask, "invalid"},
		{project.ErrTaskNotAttached, "conflict"},
		{project.ErrTaskAttached, "conflict"},
		{project.ErrTimeout, "timeout"},
		{errors.New("other"), "internal"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Outcome(tt.err))
	}
}
