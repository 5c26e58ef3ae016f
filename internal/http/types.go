package http

import (
	"time"

	"github.com/fyrsmithlabs/projectd/internal/project"
)

// ProjectRequest is the body of POST /api/projects and PUT /api/projects/:id.
// Tasks are only read on create.
type ProjectRequest struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	StartDate   time.Time          `json:"startDate"`
	EndDate     *time.Time         `json:"endDate,omitempty"`
	Members     []string           `json:"members"`
	Owner       string             `json:"owner,omitempty"`
	Tasks       []project.TaskSpec `json:"tasks,omitempty"`
}

// Details converts the request into caller-writable project fields.
func (r ProjectRequest) Details() project.ProjectDetails {
	return project.ProjectDetails{
		Name:        r.Name,
		Description: r.Description,
		StartDate:   r.StartDate,
		EndDate:     r.EndDate,
		Members:     r.Members,
		Owner:       r.Owner,
	}
}

// StatusRequest is the body of PUT /api/projects/:id/status.
type StatusRequest struct {
	Status string `json:"status"`
}

// MemberRequest is the body of the member endpoints. The userId query
// parameter takes precedence.
type MemberRequest struct {
	UserID string `json:"userId"`
}

// AttachResponse is the body of POST /api/projects/:id/tasks/:taskId/attach.
type AttachResponse struct {
	Attached bool `json:"attached"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}
