package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/fyrsmithlabs/projectd/internal/project"
	"github.com/fyrsmithlabs/projectd/pkg/auth"
)

// requireObjectIDs answers 404 for project or task ids that are not 24 hex
// characters.
func requireObjectIDs(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		for _, name := range c.ParamNames() {
			if name != "id" && name != "taskId" {
				continue
			}
			if !primitive.IsValidObjectID(c.Param(name)) {
				return echo.NewHTTPError(http.StatusNotFound, "not found")
			}
		}
		return next(c)
	}
}

func caller(c echo.Context) string {
	id, _ := auth.UserID(c)
	return id
}

func bindBody(c echo.Context, v any) error {
	if err := (&echo.DefaultBinder{}).BindBody(c, v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body").SetInternal(err)
	}
	return nil
}

// memberID reads the userId query parameter, falling back to the body.
func memberID(c echo.Context) (string, error) {
	if id := c.QueryParam("userId"); id != "" {
		return id, nil
	}
	var req MemberRequest
	if c.Request().ContentLength != 0 {
		if err := bindBody(c, &req); err != nil {
			return "", err
		}
	}
	return req.UserID, nil
}

// handleHealth returns a simple liveness response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Version: s.config.Version})
}

func (s *Server) handleListProjects(c echo.Context) error {
	filter := project.ProjectFilter{Owner: c.QueryParam("owner")}
	projects, err := s.service.ListProjects(c.Request().Context(), caller(c), filter)
	if err != nil {
		return err
	}
	if projects == nil {
		projects = []*project.Project{}
	}
	return c.JSON(http.StatusOK, projects)
}

func (s *Server) handleCreateProject(c echo.Context) error {
	var req ProjectRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	p, err := s.service.CreateProject(c.Request().Context(), caller(c), req.Details(), req.Tasks)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

func (s *Server) handleGetProject(c echo.Context) error {
	p, err := s.service.GetProject(c.Request().Context(), caller(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) handleUpdateProject(c echo.Context) error {
	var req ProjectRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	p, err := s.service.UpdateProject(c.Request().Context(), caller(c), c.Param("id"), req.Details())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) handleUpdateProjectStatus(c echo.Context) error {
	var req StatusRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	p, err := s.service.UpdateProjectStatus(c.Request().Context(), caller(c), c.Param("id"), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) handleRemoveProject(c echo.Context) error {
	if err := s.service.RemoveProject(c.Request().Context(), caller(c), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleAddMember(c echo.Context) error {
	id, err := memberID(c)
	if err != nil {
		return err
	}
	if err := s.service.AddMember(c.Request().Context(), caller(c), c.Param("id"), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleRemoveMember(c echo.Context) error {
	id, err := memberID(c)
	if err != nil {
		return err
	}
	if err := s.service.RemoveMember(c.Request().Context(), caller(c), c.Param("id"), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleListProjectTasks(c echo.Context) error {
	tasks, err := s.service.ListProjectTasks(c.Request().Context(), caller(c), c.Param("id"))
	if err != nil {
		return err
	}
	if tasks == nil {
		tasks = []*project.Task{}
	}
	return c.JSON(http.StatusOK, tasks)
}

func (s *Server) handleAddTask(c echo.Context) error {
	var spec project.TaskSpec
	if err := bindBody(c, &spec); err != nil {
		return err
	}
	t, err := s.service.AddTask(c.Request().Context(), caller(c), c.Param("id"), spec)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, t)
}

func (s *Server) handleCreateTask(c echo.Context) error {
	var spec project.TaskSpec
	if err := bindBody(c, &spec); err != nil {
		return err
	}
	t, err := s.service.CreateTask(c.Request().Context(), caller(c), spec)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, t)
}

func (s *Server) handleGetTask(c echo.Context) error {
	t, err := s.service.GetTask(c.Request().Context(), caller(c), c.Param("id"), c.Param("taskId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

func (s *Server) handleUpdateTask(c echo.Context) error {
	var spec project.TaskSpec
	if err := bindBody(c, &spec); err != nil {
		return err
	}
	t, err := s.service.UpdateTask(c.Request().Context(), caller(c), c.Param("id"), c.Param("taskId"), spec)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

func (s *Server) handleDeleteTask(c echo.Context) error {
	if err := s.service.DeleteTask(c.Request().Context(), caller(c), c.Param("id"), c.Param("taskId")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleAttachTask(c echo.Context) error {
	attached, err := s.service.AttachTask(c.Request().Context(), caller(c), c.Param("id"), c.Param("taskId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, AttachResponse{Attached: attached})
}
