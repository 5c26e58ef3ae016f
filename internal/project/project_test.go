package project

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProjectStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    ProjectStatus
		wantErr bool
	}{
		{in: "Active", want: ProjectActive},
		{in: "pendingreview", want: ProjectPendingReview},
		{in: "ARCHIVED", want: ProjectArchived},
		{in: "", wantErr: true},
		{in: "Done", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseProjectStatus(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidStatus)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTaskStatus(t *testing.T) {
	got, err := ParseTaskStatus("inprogress")
	require.NoError(t, err)
	assert.Equal(t, TaskInProgress, got)

	got, err = ParseTaskStatus("")
	require.NoError(t, err)
	assert.Equal(t, TaskNotStarted, got)

	_, err = ParseTaskStatus("Blocked")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestProject_HasAccess(t *testing.T) {
	p := &Project{Owner: "owner", Members: []string{"m1", "m2"}}

	assert.True(t, p.HasAccess("owner"))
	assert.True(t, p.HasAccess("m2"))
	assert.False(t, p.HasAccess("stranger"))
	assert.False(t, p.HasAccess(""))

	var nilProject *Project
	assert.False(t, nilProject.HasAccess("owner"))
}

func TestProjectDetails_Validate(t *testing.T) {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	before := start.Add(-time.Hour)
	after := start.Add(time.Hour)

	tests := []struct {
		name    string
		details ProjectDetails
		wantErr bool
	}{
		{name: "valid", details: ProjectDetails{Name: "p", Owner: "o", StartDate: start, EndDate: &after}},
		{name: "no end date", details: ProjectDetails{Name: "p", Owner: "o", StartDate: start}},
		{name: "blank name", details: ProjectDetails{Name: "  ", Owner: "o"}, wantErr: true},
		{name: "no owner", details: ProjectDetails{Name: "p"}, wantErr: true},
		{name: "end before start", details: ProjectDetails{Name: "p", Owner: "o", StartDate: start, EndDate: &before}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.details.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidProject)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestProjectDetails_NormalizeDedupesMembers(t *testing.T) {
	d := ProjectDetails{Name: " p ", Members: []string{"a", "b", "a", "", "c", "b"}}.Normalize()
	assert.Equal(t, "p", d.Name)
	assert.Equal(t, []string{"a", "b", "c"}, d.Members)
}

func TestTaskSpec_Fields(t *testing.T) {
	f, err := TaskSpec{Title: "write docs", AssignedTo: "u1", Status: "completed"}.Fields()
	require.NoError(t, err)
	assert.Equal(t, TaskCompleted, f.Status)

	_, err = TaskSpec{AssignedTo: "u1"}.Fields()
	assert.ErrorIs(t, err, ErrInvalidTask)

	_, err = TaskSpec{Title: "t"}.Fields()
	assert.ErrorIs(t, err, ErrInvalidTask)

	_, err = TaskSpec{Title: "t", AssignedTo: "u1", Status: "nope"}.Fields()
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestClone_IsDeep(t *testing.T) {
	end := time.Now()
	p := &Project{Members: []string{"a"}, TaskIDs: []string{"t"}, EndDate: &end}
	c := p.Clone()
	c.Members[0] = "z"
	c.TaskIDs[0] = "z"
	*c.EndDate = end.Add(time.Hour)

	assert.Equal(t, "a", p.Members[0])
	assert.Equal(t, "t", p.TaskIDs[0])
	assert.Equal(t, end, *p.EndDate)
}

func TestGetCollectionName(t *testing.T) {
	name, err := GetCollectionName("", CollectionProjects)
	require.NoError(t, err)
	assert.Equal(t, "Projects", name)

	name, err = GetCollectionName("staging", CollectionTasks)
	require.NoError(t, err)
	assert.Equal(t, "staging_Tasks", name)

	name, err = GetCollectionName("Team-A", CollectionProjects)
	require.NoError(t, err)
	assert.Equal(t, "team_a_Projects", name)

	_, err = GetCollectionName("x", "")
	assert.Error(t, err)

	names, err := GetAllCollectionNames("")
	require.NoError(t, err)
	assert.Equal(t, []string{"Projects", "Tasks"}, names)
}

func TestProjectFilter_Matches(t *testing.T) {
	p := &Project{Owner: "o1", TaskIDs: []string{"t1", "t2"}}

	assert.True(t, ProjectFilter{}.Matches(p))
	assert.True(t, ProjectFilter{Owner: "o1", TaskID: "t2"}.Matches(p))
	assert.False(t, ProjectFilter{Owner: "o2"}.Matches(p))
	assert.False(t, ProjectFilter{TaskID: "t3"}.Matches(p))
	assert.False(t, ProjectFilter{Owner: "o2", TaskID: "t1"}.Matches(p))
}
