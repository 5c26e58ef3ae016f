package mongo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/fyrsmithlabs/projectd/internal/project"
)

func TestStatusOrdinals(t *testing.T) {
	tests := []struct {
		status project.ProjectStatus
		want   int32
	}{
		{project.ProjectNotStarted, 0},
		{project.ProjectActive, 1},
		{project.ProjectCompleted, 2},
		{project.ProjectPendingReview, 3},
		{project.ProjectArchived, 4},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			n := ordinal(projectStatusOrder, tt.status)
			assert.Equal(t, tt.want, n)

			back, err := fromOrdinal(projectStatusOrder, n)
			require.NoError(t, err)
			assert.Equal(t, tt.status, back)
		})
	}

	assert.Equal(t, int32(2), ordinal(taskStatusOrder, project.TaskCompleted))

	_, err := fromOrdinal(taskStatusOrder, 7)
	assert.ErrorIs(t, err, project.ErrInternal)
	_, err = fromOrdinal(projectStatusOrder, -1)
	assert.ErrorIs(t, err, project.ErrInternal)
}

func TestProjectDoc_Layout(t *testing.T) {
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.FixedZone("CET", 3600))
	doc := newProjectDoc(&project.Project{
		Name:      "alpha",
		StartDate: start,
		Owner:     "u1",
		Status:    project.ProjectActive,
	})
	doc.ID = primitive.NewObjectID()

	raw, err := bson.Marshal(doc)
	require.NoError(t, err)

	var m bson.M
	require.NoError(t, bson.Unmarshal(raw, &m))
	assert.Equal(t, "alpha", m[fieldName])
	assert.Equal(t, "u1", m[fieldOwner])
	assert.Equal(t, int32(1), m[fieldStatus])
	assert.Equal(t, bson.A{}, m[fieldMembers])
	assert.Equal(t, bson.A{}, m[fieldTaskIDs])
	assert.Nil(t, m[fieldEndDate])
	assert.NotContains(t, m, fieldDescription)

	assert.Equal(t, time.UTC, doc.StartDate.Location())
	assert.True(t, start.Equal(doc.StartDate))
}

func TestProjectDoc_LegacyNullArrays(t *testing.T) {
	raw, err := bson.Marshal(bson.M{
		fieldID:      primitive.NewObjectID(),
		fieldName:    "legacy",
		fieldOwner:   "u1",
		fieldMembers: nil,
		fieldTaskIDs: nil,
		fieldStatus:  int32(4),
	})
	require.NoError(t, err)

	var doc projectDoc
	require.NoError(t, bson.Unmarshal(raw, &doc))

	p, err := doc.toProject()
	require.NoError(t, err)
	assert.Equal(t, []string{}, p.Members)
	assert.Equal(t, []string{}, p.TaskIDs)
	assert.Equal(t, project.ProjectArchived, p.Status)
	assert.Equal(t, doc.ID.Hex(), p.ID)
}

func TestTaskDoc_RoundTrip(t *testing.T) {
	due := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	in := &project.Task{
		Title:      "write",
		AssignedTo: "u2",
		CreatedAt:  time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		DueDate:    &due,
		Status:     project.TaskInProgress,
	}
	doc := newTaskDoc(in)
	doc.ID = primitive.NewObjectID()

	raw, err := bson.Marshal(doc)
	require.NoError(t, err)
	var decoded taskDoc
	require.NoError(t, bson.Unmarshal(raw, &decoded))

	out, err := decoded.toTask()
	require.NoError(t, err)
	assert.Equal(t, doc.ID.Hex(), out.ID)
	assert.Equal(t, in.Title, out.Title)
	assert.Equal(t, project.TaskInProgress, out.Status)
	require.NotNil(t, out.DueDate)
	assert.True(t, due.Equal(*out.DueDate))
}

func TestObjectID(t *testing.T) {
	oid := primitive.NewObjectID()
	got, err := objectID("project", oid.Hex())
	require.NoError(t, err)
	assert.Equal(t, oid, got)

	_, err = objectID("project", "nope")
	assert.ErrorIs(t, err, project.ErrNotFound)
}
