package mongo

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/fyrsmithlabs/projectd/internal/project"
)

// Document field names. They match the layout written by earlier versions
// of the service so existing databases stay readable.
const (
	fieldID          = "_id"
	fieldName        = "Name"
	fieldDescription = "Description"
	fieldStartDate   = "StartDate"
	fieldEndDate     = "EndDate"
	fieldMembers     = "ProjectMembers"
	fieldOwner       = "ProjectOwner"
	fieldTaskIDs     = "TaskIds"
	fieldStatus      = "Status"

	fieldTitle      = "Title"
	fieldAssignedTo = "AssignedTo"
	fieldDueDate    = "DueDate"
)

// Statuses are stored as ordinals in declaration order.
var (
	projectStatusOrder = []project.ProjectStatus{
		project.ProjectNotStarted,
		project.ProjectActive,
		project.ProjectCompleted,
		project.ProjectPendingReview,
		project.ProjectArchived,
	}
	taskStatusOrder = []project.TaskStatus{
		project.TaskNotStarted,
		project.TaskInProgress,
		project.TaskCompleted,
	}
)

func ordinal[S comparable](order []S, s S) int32 {
	for i, v := range order {
		if v == s {
			return int32(i)
		}
	}
	return 0
}

func fromOrdinal[S any](order []S, n int32) (S, error) {
	if n < 0 || int(n) >= len(order) {
		var zero S
		return zero, fmt.Errorf("%w: stored status ordinal %d out of range", project.ErrInternal, n)
	}
	return order[n], nil
}

type projectDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Name        string             `bson:"Name"`
	Description string             `bson:"Description,omitempty"`
	StartDate   time.Time          `bson:"StartDate"`
	EndDate     *time.Time         `bson:"EndDate"`
	Members     []string           `bson:"ProjectMembers"`
	Owner       string             `bson:"ProjectOwner"`
	TaskIDs     []string           `bson:"TaskIds"`
	Status      int32              `bson:"Status"`
}

func newProjectDoc(p *project.Project) projectDoc {
	d := projectDoc{
		Name:        p.Name,
		Description: p.Description,
		StartDate:   p.StartDate.UTC(),
		EndDate:     utcPtr(p.EndDate),
		Members:     nonNil(p.Members),
		Owner:       p.Owner,
		TaskIDs:     nonNil(p.TaskIDs),
		Status:      ordinal(projectStatusOrder, p.Status),
	}
	return d
}

func (d projectDoc) toProject() (*project.Project, error) {
	status, err := fromOrdinal(projectStatusOrder, d.Status)
	if err != nil {
		return nil, err
	}
	return &project.Project{
		ID:          d.ID.Hex(),
		Name:        d.Name,
		Description: d.Description,
		StartDate:   d.StartDate,
		EndDate:     d.EndDate,
		Members:     nonNil(d.Members),
		Owner:       d.Owner,
		TaskIDs:     nonNil(d.TaskIDs),
		Status:      status,
	}, nil
}

type taskDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Title       string             `bson:"Title"`
	Description string             `bson:"Description,omitempty"`
	AssignedTo  string             `bson:"AssignedTo"`
	CreatedAt   time.Time          `bson:"CreatedAt"`
	DueDate     *time.Time         `bson:"DueDate"`
	Status      int32              `bson:"Status"`
}

func newTaskDoc(t *project.Task) taskDoc {
	return taskDoc{
		Title:       t.Title,
		Description: t.Description,
		AssignedTo:  t.AssignedTo,
		CreatedAt:   t.CreatedAt.UTC(),
		DueDate:     utcPtr(t.DueDate),
		Status:      ordinal(taskStatusOrder, t.Status),
	}
}

func (d taskDoc) toTask() (*project.Task, error) {
	status, err := fromOrdinal(taskStatusOrder, d.Status)
	if err != nil {
		return nil, err
	}
	return &project.Task{
		ID:          d.ID.Hex(),
		Title:       d.Title,
		Description: d.Description,
		AssignedTo:  d.AssignedTo,
		CreatedAt:   d.CreatedAt,
		DueDate:     d.DueDate,
		Status:      status,
	}, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
