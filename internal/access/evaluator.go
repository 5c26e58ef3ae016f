// Package access decides whether a caller may act on a project. A user has
// access iff they are the project's owner or one of its members.
package access

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projectd/internal/project"
)

// ProjectFinder is the read side of project.Store the evaluator needs.
type ProjectFinder interface {
	FindProject(ctx context.Context, id string) (*project.Project, error)
}

// Evaluator answers access questions against the current stored state.
type Evaluator struct {
	projects ProjectFinder
	logger   *zap.Logger
}

// NewEvaluator creates an Evaluator reading projects through finder. A
// project.Store satisfies ProjectFinder directly.
func NewEvaluator(finder ProjectFinder, logger *zap.Logger) (*Evaluator, error) {
	if finder == nil {
		return nil, errors.New("project finder is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{projects: finder, logger: logger}, nil
}

// ManagerFinder adapts a project.Manager to ProjectFinder so lookups share
// the manager's deadlines and error classification.
type ManagerFinder struct {
	Manager project.Manager
}

// FindProject implements ProjectFinder.
func (f ManagerFinder) FindProject(ctx context.Context, id string) (*project.Project, error) {
	return f.Manager.GetProject(ctx, id)
}

// HasAccess reports whether userID may act on projectID. It fails closed:
// an empty user, a missing project or any lookup error yields false.
func (e *Evaluator) HasAccess(ctx context.Context, userID, projectID string) bool {
	return e.Authorize(ctx, userID, projectID) == nil
}

// Authorize is the typed form of HasAccess. It returns
// project.ErrUnauthorized for an empty user, project.ErrNotFound for a
// missing project, project.ErrForbidden when the user is neither owner nor
// member, and project.ErrTimeout or project.ErrInternal for lookup failures.
func (e *Evaluator) Authorize(ctx context.Context, userID, projectID string) error {
	_, err := e.Project(ctx, userID, projectID)
	return err
}

// Project authorizes userID and returns the project it was checked against.
func (e *Evaluator) Project(ctx context.Context, userID, projectID string) (*project.Project, error) {
	if userID == "" {
		return nil, project.ErrUnauthorized
	}

	p, err := e.projects.FindProject(ctx, projectID)
	switch {
	case err == nil:
	case errors.Is(err, project.ErrNotFound),
		errors.Is(err, project.ErrTimeout),
		errors.Is(err, project.ErrInternal):
		return nil, err
	case errors.Is(err, context.DeadlineExceeded):
		return nil, fmt.Errorf("access lookup %s: %w: %w", projectID, project.ErrTimeout, err)
	default:
		e.logger.Warn("access lookup failed",
			zap.String("project_id", projectID),
			zap.Error(err))
		return nil, fmt.Errorf("access lookup %s: %w: %w", projectID, project.ErrInternal, err)
	}

	if !p.HasAccess(userID) {
		e.logger.Debug("access denied",
			zap.String("project_id", projectID),
			zap.String("user_id", userID))
		return nil, fmt.Errorf("project %s: %w", projectID, project.ErrForbidden)
	}
	return p, nil
}
