package project

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// ProjectStatus is the caller-driven lifecycle state of a project.
type ProjectStatus string

const (
	ProjectNotStarted    ProjectStatus = "NotStarted"
	ProjectActive        ProjectStatus = "Active"
	ProjectCompleted     ProjectStatus = "Completed"
	ProjectPendingReview ProjectStatus = "PendingReview"
	ProjectArchived      ProjectStatus = "Archived"
)

var projectStatuses = []ProjectStatus{
	ProjectNotStarted,
	ProjectActive,
	ProjectCompleted,
	ProjectPendingReview,
	ProjectArchived,
}

// ParseProjectStatus parses a status name case-insensitively.
func ParseProjectStatus(s string) (ProjectStatus, error) {
	for _, st := range projectStatuses {
		if strings.EqualFold(s, string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: unknown project status %q", ErrInvalidStatus, s)
}

// Project is an aggregate owning a member set, an owner and an ordered list
// of task references.
type Project struct {
	// ID is the store-assigned 24-hex identifier.
	ID string `json:"id"`

	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	StartDate   time.Time  `json:"startDate"`
	EndDate     *time.Time `json:"endDate,omitempty"`

	// Members has set semantics; stored order is preserved.
	Members []string `json:"members"`
	Owner   string   `json:"owner"`

	// TaskIDs is written only by the Manager.
	TaskIDs []string `json:"taskIds"`

	Status ProjectStatus `json:"status"`
}

// HasAccess reports whether userID is the owner or a member.
func (p *Project) HasAccess(userID string) bool {
	if p == nil || userID == "" {
		return false
	}
	return p.Owner == userID || p.IsMember(userID)
}

// IsMember reports whether userID is in the member set.
func (p *Project) IsMember(userID string) bool {
	return slices.Contains(p.Members, userID)
}

// HasTask reports whether taskID is referenced by the project.
func (p *Project) HasTask(taskID string) bool {
	return slices.Contains(p.TaskIDs, taskID)
}

// Clone returns a deep copy.
func (p *Project) Clone() *Project {
	if p == nil {
		return nil
	}
	c := *p
	c.Members = slices.Clone(p.Members)
	c.TaskIDs = slices.Clone(p.TaskIDs)
	if p.EndDate != nil {
		end := *p.EndDate
		c.EndDate = &end
	}
	return &c
}

// ProjectDetails holds the caller-writable project fields. TaskIDs and Status
// are deliberately absent.
type ProjectDetails struct {
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	StartDate   time.Time  `json:"startDate"`
	EndDate     *time.Time `json:"endDate,omitempty"`
	Members     []string   `json:"members"`
	Owner       string     `json:"owner"`
}

// Normalize trims the name and collapses duplicate or empty members,
// keeping first occurrences in order.
func (d ProjectDetails) Normalize() ProjectDetails {
	d.Name = strings.TrimSpace(d.Name)
	d.Members = dedupe(d.Members)
	return d
}

// Validate checks required fields and date ordering.
func (d ProjectDetails) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidProject)
	}
	if d.Owner == "" {
		return fmt.Errorf("%w: owner is required", ErrInvalidProject)
	}
	if d.EndDate != nil && d.EndDate.Before(d.StartDate) {
		return fmt.Errorf("%w: end date %s is before start date %s",
			ErrInvalidProject, d.EndDate.Format(time.RFC3339), d.StartDate.Format(time.RFC3339))
	}
	return nil
}

func (d ProjectDetails) apply(p *Project) {
	p.Name = d.Name
	p.Description = d.Description
	p.StartDate = d.StartDate
	p.EndDate = d.EndDate
	p.Members = slices.Clone(d.Members)
	p.Owner = d.Owner
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
