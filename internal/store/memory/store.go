// Package memory provides an in-memory project.Store used by tests and
// single-process deployments.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/fyrsmithlabs/projectd/internal/project"
)

var _ project.Store = (*Store)(nil)

// Store keeps projects and tasks in maps guarded by one mutex. Every method
// holds the lock for its whole body, which gives the per-document atomicity
// the persistent backends provide.
type Store struct {
	mu       sync.RWMutex
	projects map[string]*project.Project
	tasks    map[string]*project.Task
	order    map[string]int64
	seq      int64
}

// New creates an empty store.
func New() *Store {
	return &Store{
		projects: make(map[string]*project.Project),
		tasks:    make(map[string]*project.Task),
		order:    make(map[string]int64),
	}
}

func (s *Store) nextID() string {
	id := primitive.NewObjectID().Hex()
	s.seq++
	s.order[id] = s.seq
	return id
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, project.ErrNotFound)
}

// InsertProject stores a copy of p under a fresh id.
func (s *Store) InsertProject(ctx context.Context, p *project.Project) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c := p.Clone()
	c.ID = s.nextID()
	if c.Members == nil {
		c.Members = []string{}
	}
	if c.TaskIDs == nil {
		c.TaskIDs = []string{}
	}
	s.projects[c.ID] = c
	return c.ID, nil
}

// FindProject returns a copy of the project.
func (s *Store) FindProject(ctx context.Context, id string) (*project.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[id]
	if !ok {
		return nil, notFound("project", id)
	}
	return p.Clone(), nil
}

// FindProjects returns copies of matching projects in insertion order.
func (s *Store) FindProjects(ctx context.Context, filter project.ProjectFilter) ([]*project.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*project.Project, 0, len(s.projects))
	for _, p := range s.projects {
		if filter.Matches(p) {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return s.order[out[i].ID] < s.order[out[j].ID] })
	return out, nil
}

// UpdateProjectDetails overwrites the caller-writable fields.
func (s *Store) UpdateProjectDetails(ctx context.Context, id string, details project.ProjectDetails) error {
	return s.mutateProject(ctx, id, func(p *project.Project) {
		p.Name = details.Name
		p.Description = details.Description
		p.StartDate = details.StartDate
		p.EndDate = details.EndDate
		p.Members = slices.Clone(details.Members)
		if p.Members == nil {
			p.Members = []string{}
		}
		p.Owner = details.Owner
	})
}

// SetProjectStatus sets the status field.
func (s *Store) SetProjectStatus(ctx context.Context, id string, status project.ProjectStatus) error {
	return s.mutateProject(ctx, id, func(p *project.Project) {
		p.Status = status
	})
}

// DeleteProject removes the project.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[id]; !ok {
		return notFound("project", id)
	}
	delete(s.projects, id)
	delete(s.order, id)
	return nil
}

// PushTaskID appends taskID when absent.
func (s *Store) PushTaskID(ctx context.Context, projectID, taskID string) (bool, error) {
	var modified bool
	err := s.mutateProject(ctx, projectID, func(p *project.Project) {
		if slices.Contains(p.TaskIDs, taskID) {
			return
		}
		p.TaskIDs = append(p.TaskIDs, taskID)
		modified = true
	})
	return modified, err
}

// PullTaskID removes every occurrence of taskID.
func (s *Store) PullTaskID(ctx context.Context, projectID, taskID string) (bool, error) {
	var modified bool
	err := s.mutateProject(ctx, projectID, func(p *project.Project) {
		n := len(p.TaskIDs)
		p.TaskIDs = slices.DeleteFunc(p.TaskIDs, func(id string) bool { return id == taskID })
		modified = len(p.TaskIDs) != n
	})
	return modified, err
}

// AddMember adds userID to the member set.
func (s *Store) AddMember(ctx context.Context, projectID, userID string) (bool, error) {
	var modified bool
	err := s.mutateProject(ctx, projectID, func(p *project.Project) {
		if slices.Contains(p.Members, userID) {
			return
		}
		p.Members = append(p.Members, userID)
		modified = true
	})
	return modified, err
}

// PullMember removes userID from the member set.
func (s *Store) PullMember(ctx context.Context, projectID, userID string) (bool, error) {
	var modified bool
	err := s.mutateProject(ctx, projectID, func(p *project.Project) {
		n := len(p.Members)
		p.Members = slices.DeleteFunc(p.Members, func(id string) bool { return id == userID })
		modified = len(p.Members) != n
	})
	return modified, err
}

// mutateProject applies fn to the stored project under the write lock.
func (s *Store) mutateProject(ctx context.Context, id string, fn func(p *project.Project)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[id]
	if !ok {
		return notFound("project", id)
	}
	fn(p)
	return nil
}

// InsertTask stores a copy of t under a fresh id.
func (s *Store) InsertTask(ctx context.Context, t *project.Task) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c := t.Clone()
	c.ID = s.nextID()
	s.tasks[c.ID] = c
	return c.ID, nil
}

// FindTask returns a copy of the task.
func (s *Store) FindTask(ctx context.Context, id string) (*project.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, notFound("task", id)
	}
	return t.Clone(), nil
}

// FindTasks returns copies of matching tasks in insertion order.
func (s *Store) FindTasks(ctx context.Context, filter project.TaskFilter) ([]*project.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*project.Task, 0)
	for _, t := range s.tasks {
		if filter.Matches(t) {
			out = append(out, t.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return s.order[out[i].ID] < s.order[out[j].ID] })
	return out, nil
}

// UpdateTaskFields overwrites the writable task fields.
func (s *Store) UpdateTaskFields(ctx context.Context, id string, fields project.TaskFields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return notFound("task", id)
	}
	fields.ApplyTo(t)
	return nil
}

// DeleteTask removes the task.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return notFound("task", id)
	}
	delete(s.tasks, id)
	delete(s.order, id)
	return nil
}

// Len returns the number of stored projects and tasks.
func (s *Store) Len() (projects, tasks int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.projects), len(s.tasks)
}
