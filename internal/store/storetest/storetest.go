// Package storetest holds the behavioural contract every project.Store
// backend must satisfy.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/projectd/internal/project"
)

// Factory returns an empty store for one subtest.
type Factory func(t *testing.T) project.Store

// missingID is well-formed but never assigned.
const missingID = "0123456789abcdef01234567"

// Run exercises fresh stores from newStore against the contract.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("ProjectLifecycle", func(t *testing.T) { testProjectLifecycle(t, newStore(t)) })
	t.Run("ProjectFilter", func(t *testing.T) { testProjectFilter(t, newStore(t)) })
	t.Run("ArrayOperations", func(t *testing.T) { testArrayOperations(t, newStore(t)) })
	t.Run("ConcurrentPush", func(t *testing.T) { testConcurrentPush(t, newStore(t)) })
	t.Run("TaskLifecycle", func(t *testing.T) { testTaskLifecycle(t, newStore(t)) })
	t.Run("TaskFilter", func(t *testing.T) { testTaskFilter(t, newStore(t)) })
	t.Run("MissingDocuments", func(t *testing.T) { testMissingDocuments(t, newStore(t)) })
}

func day(d int) time.Time {
	return time.Date(2025, 1, d, 0, 0, 0, 0, time.UTC)
}

func testProjectLifecycle(t *testing.T, s project.Store) {
	ctx := context.Background()
	end := day(20)

	id, err := s.InsertProject(ctx, &project.Project{
		Name:      "alpha",
		StartDate: day(1),
		EndDate:   &end,
		Owner:     "u1",
		Members:   []string{"u2"},
		Status:    project.ProjectNotStarted,
	})
	require.NoError(t, err)
	assert.Len(t, id, 24)

	got, err := s.FindProject(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "alpha", got.Name)
	assert.True(t, day(1).Equal(got.StartDate))
	require.NotNil(t, got.EndDate)
	assert.True(t, end.Equal(*got.EndDate))
	assert.Equal(t, []string{"u2"}, got.Members)
	assert.NotNil(t, got.TaskIDs)
	assert.Empty(t, got.TaskIDs)

	_, err = s.PushTaskID(ctx, id, "t1")
	require.NoError(t, err)

	require.NoError(t, s.UpdateProjectDetails(ctx, id, project.ProjectDetails{
		Name:      "beta",
		StartDate: day(2),
		Owner:     "u9",
		Members:   []string{"u3"},
	}))
	require.NoError(t, s.SetProjectStatus(ctx, id, project.ProjectPendingReview))

	got, err = s.FindProject(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "beta", got.Name)
	assert.Nil(t, got.EndDate, "details update clears the end date")
	assert.Equal(t, "u9", got.Owner)
	assert.Equal(t, []string{"u3"}, got.Members)
	assert.Equal(t, []string{"t1"}, got.TaskIDs, "details update leaves task ids alone")
	assert.Equal(t, project.ProjectPendingReview, got.Status)

	require.NoError(t, s.DeleteProject(ctx, id))
	_, err = s.FindProject(ctx, id)
	assert.ErrorIs(t, err, project.ErrNotFound)
	assert.ErrorIs(t, s.DeleteProject(ctx, id), project.ErrNotFound)
}

func testProjectFilter(t *testing.T, s project.Store) {
	ctx := context.Background()

	var ids []string
	for i, owner := range []string{"a", "b", "a"} {
		id, err := s.InsertProject(ctx, &project.Project{Name: fmt.Sprintf("p%d", i), Owner: owner, StartDate: day(1)})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	all, err := s.FindProjects(ctx, project.ProjectFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, p := range all {
		assert.Equal(t, ids[i], p.ID, "insertion order")
	}

	owned, err := s.FindProjects(ctx, project.ProjectFilter{Owner: "a"})
	require.NoError(t, err)
	require.Len(t, owned, 2)
	assert.Equal(t, ids[0], owned[0].ID)
	assert.Equal(t, ids[2], owned[1].ID)

	none, err := s.FindProjects(ctx, project.ProjectFilter{Owner: "zz"})
	require.NoError(t, err)
	assert.Empty(t, none)

	const taskID = "0123456789abcdef0123456a"
	ok, err := s.PushTaskID(ctx, ids[1], taskID)
	require.NoError(t, err)
	require.True(t, ok)

	referencing, err := s.FindProjects(ctx, project.ProjectFilter{TaskID: taskID})
	require.NoError(t, err)
	require.Len(t, referencing, 1)
	assert.Equal(t, ids[1], referencing[0].ID)

	both, err := s.FindProjects(ctx, project.ProjectFilter{Owner: "a", TaskID: taskID})
	require.NoError(t, err)
	assert.Empty(t, both)

	unreferenced, err := s.FindProjects(ctx, project.ProjectFilter{TaskID: "0123456789abcdef0123456b"})
	require.NoError(t, err)
	assert.Empty(t, unreferenced)
}

func testArrayOperations(t *testing.T, s project.Store) {
	ctx := context.Background()

	id, err := s.InsertProject(ctx, &project.Project{Name: "p", Owner: "o", StartDate: day(1)})
	require.NoError(t, err)

	steps := []struct {
		name string
		op   func() (bool, error)
		want bool
	}{
		{"push t1", func() (bool, error) { return s.PushTaskID(ctx, id, "t1") }, true},
		{"push t2", func() (bool, error) { return s.PushTaskID(ctx, id, "t2") }, true},
		{"push t1 again", func() (bool, error) { return s.PushTaskID(ctx, id, "t1") }, false},
		{"pull absent", func() (bool, error) { return s.PullTaskID(ctx, id, "t9") }, false},
		{"pull t1", func() (bool, error) { return s.PullTaskID(ctx, id, "t1") }, true},
		{"add m1", func() (bool, error) { return s.AddMember(ctx, id, "m1") }, true},
		{"add m1 again", func() (bool, error) { return s.AddMember(ctx, id, "m1") }, false},
		{"pull m2", func() (bool, error) { return s.PullMember(ctx, id, "m2") }, false},
		{"add m2", func() (bool, error) { return s.AddMember(ctx, id, "m2") }, true},
		{"pull m1", func() (bool, error) { return s.PullMember(ctx, id, "m1") }, true},
	}
	for _, step := range steps {
		modified, err := step.op()
		require.NoError(t, err, step.name)
		assert.Equal(t, step.want, modified, step.name)
	}

	got, err := s.FindProject(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"t2"}, got.TaskIDs)
	assert.Equal(t, []string{"m2"}, got.Members)
}

func testConcurrentPush(t *testing.T, s project.Store) {
	ctx := context.Background()

	id, err := s.InsertProject(ctx, &project.Project{Name: "p", Owner: "o", StartDate: day(1)})
	require.NoError(t, err)

	const n = 20
	want := make([]string, n)
	var wg sync.WaitGroup
	for i := range n {
		want[i] = fmt.Sprintf("task-%02d", i)
		wg.Add(1)
		go func(taskID string) {
			defer wg.Done()
			_, err := s.PushTaskID(ctx, id, taskID)
			assert.NoError(t, err)
		}(want[i])
	}
	wg.Wait()

	got, err := s.FindProject(ctx, id)
	require.NoError(t, err)
	assert.ElementsMatch(t, want, got.TaskIDs)
}

func testTaskLifecycle(t *testing.T, s project.Store) {
	ctx := context.Background()
	due := day(10)

	id, err := s.InsertTask(ctx, &project.Task{
		Title:      "write",
		AssignedTo: "u1",
		CreatedAt:  day(1),
		DueDate:    &due,
		Status:     project.TaskNotStarted,
	})
	require.NoError(t, err)
	assert.Len(t, id, 24)

	got, err := s.FindTask(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "write", got.Title)
	assert.True(t, day(1).Equal(got.CreatedAt))
	require.NotNil(t, got.DueDate)

	require.NoError(t, s.UpdateTaskFields(ctx, id, project.TaskFields{
		Title:      "review",
		AssignedTo: "u2",
		Status:     project.TaskInProgress,
	}))

	got, err = s.FindTask(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "review", got.Title)
	assert.Equal(t, "u2", got.AssignedTo)
	assert.Nil(t, got.DueDate)
	assert.Equal(t, project.TaskInProgress, got.Status)
	assert.True(t, day(1).Equal(got.CreatedAt), "created at is preserved")

	require.NoError(t, s.DeleteTask(ctx, id))
	_, err = s.FindTask(ctx, id)
	assert.ErrorIs(t, err, project.ErrNotFound)
	assert.ErrorIs(t, s.DeleteTask(ctx, id), project.ErrNotFound)
}

func testTaskFilter(t *testing.T, s project.Store) {
	ctx := context.Background()

	var ids []string
	for i, who := range []string{"a", "b", "a"} {
		id, err := s.InsertTask(ctx, &project.Task{Title: fmt.Sprintf("t%d", i), AssignedTo: who, CreatedAt: day(1)})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	all, err := s.FindTasks(ctx, project.TaskFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	some, err := s.FindTasks(ctx, project.TaskFilter{IDs: []string{ids[2], ids[0], missingID}})
	require.NoError(t, err)
	require.Len(t, some, 2)
	assert.Equal(t, ids[0], some[0].ID)
	assert.Equal(t, ids[2], some[1].ID)

	none, err := s.FindTasks(ctx, project.TaskFilter{IDs: []string{}})
	require.NoError(t, err)
	assert.Empty(t, none)

	assigned, err := s.FindTasks(ctx, project.TaskFilter{IDs: ids, AssignedTo: "b"})
	require.NoError(t, err)
	require.Len(t, assigned, 1)
	assert.Equal(t, ids[1], assigned[0].ID)
}

func testMissingDocuments(t *testing.T, s project.Store) {
	ctx := context.Background()

	for _, id := range []string{missingID, "not-an-object-id"} {
		_, err := s.FindProject(ctx, id)
		assert.ErrorIs(t, err, project.ErrNotFound, id)
		_, err = s.FindTask(ctx, id)
		assert.ErrorIs(t, err, project.ErrNotFound, id)

		_, err = s.PushTaskID(ctx, id, "t")
		assert.ErrorIs(t, err, project.ErrNotFound, id)
		_, err = s.PullTaskID(ctx, id, "t")
		assert.ErrorIs(t, err, project.ErrNotFound, id)
		_, err = s.AddMember(ctx, id, "u")
		assert.ErrorIs(t, err, project.ErrNotFound, id)
		_, err = s.PullMember(ctx, id, "u")
		assert.ErrorIs(t, err, project.ErrNotFound, id)

		assert.ErrorIs(t, s.UpdateProjectDetails(ctx, id, project.ProjectDetails{Name: "x", Owner: "o"}), project.ErrNotFound, id)
		assert.ErrorIs(t, s.SetProjectStatus(ctx, id, project.ProjectActive), project.ErrNotFound, id)
		assert.ErrorIs(t, s.UpdateTaskFields(ctx, id, project.TaskFields{Title: "x", AssignedTo: "u"}), project.ErrNotFound, id)
	}
}
