// Package http serves the projectd REST API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projectd/internal/logging"
	"github.com/fyrsmithlabs/projectd/internal/project"
	"github.com/fyrsmithlabs/projectd/pkg/auth"
)

// Service is the set of operations the API exposes. The orchestrator
// implements it.
type Service interface {
	CreateProject(ctx context.Context, userID string, details project.ProjectDetails, tasks []project.TaskSpec) (*project.Project, error)
	GetProject(ctx context.Context, userID, projectID string) (*project.Project, error)
	ListProjects(ctx context.Context, userID string, filter project.ProjectFilter) ([]*project.Project, error)
	UpdateProject(ctx context.Context, userID, projectID string, details project.ProjectDetails) (*project.Project, error)
	UpdateProjectStatus(ctx context.Context, userID, projectID, status string) (*project.Project, error)
	RemoveProject(ctx context.Context, userID, projectID string) error
	AddMember(ctx context.Context, userID, projectID, memberID string) error
	RemoveMember(ctx context.Context, userID, projectID, memberID string) error
	CreateTask(ctx context.Context, userID string, spec project.TaskSpec) (*project.Task, error)
	AttachTask(ctx context.Context, userID, projectID, taskID string) (bool, error)
	AddTask(ctx context.Context, userID, projectID string, spec project.TaskSpec) (*project.Task, error)
	GetTask(ctx context.Context, userID, projectID, taskID string) (*project.Task, error)
	ListProjectTasks(ctx context.Context, userID, projectID string) ([]*project.Task, error)
	UpdateTask(ctx context.Context, userID, projectID, taskID string, spec project.TaskSpec) (*project.Task, error)
	DeleteTask(ctx context.Context, userID, projectID, taskID string) error
}

// Config holds HTTP server configuration.
type Config struct {
	Host      string
	Port      int
	Version   string
	BodyLimit string
	RateLimit RateLimitConfig

	// Registerer and Gatherer back the HTTP metrics and /metrics. They
	// default to the Prometheus default registry.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

// Server provides HTTP endpoints for projectd.
type Server struct {
	echo     *echo.Echo
	service  Service
	verifier *auth.Verifier
	logger   *zap.Logger
	config   *Config
}

// NewServer creates a new HTTP server.
func NewServer(service Service, verifier *auth.Verifier, logger *zap.Logger, cfg *Config) (*Server, error) {
	if service == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}
	if verifier == nil {
		return nil, fmt.Errorf("token verifier cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Host: "localhost", Port: 8080}
	}
	if cfg.BodyLimit == "" {
		cfg.BodyLimit = "1M"
	}
	if cfg.Registerer == nil {
		cfg.Registerer = prometheus.DefaultRegisterer
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:     e,
		service:  service,
		verifier: verifier,
		logger:   logger,
		config:   cfg,
	}
	e.HTTPErrorHandler = s.errorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		RequestIDHandler: func(c echo.Context, id string) {
			c.SetRequest(c.Request().WithContext(logging.WithRequestID(c.Request().Context(), id)))
		},
	}))
	e.Use(s.requestLogger())
	e.Use(NewHTTPMetrics(cfg.Registerer).MetricsMiddleware())

	s.registerRoutes()

	return s, nil
}

// requestLogger logs one line per request once the response is final.
func (s *Server) requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			fields := []zap.Field{
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
			}
			fields = append(fields, logging.ContextFields(c.Request().Context())...)
			s.logger.Info("http request", fields...)

			return err
		}
	}
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{})))

	api := s.echo.Group("/api",
		middleware.BodyLimit(s.config.BodyLimit),
		s.verifier.Middleware(),
	)
	if s.config.RateLimit.Enabled {
		api.Use(newRateLimiter(s.config.RateLimit, s.logger).middleware())
	}

	api.GET("/projects", s.handleListProjects)
	api.POST("/projects", s.handleCreateProject)
	api.POST("/tasks", s.handleCreateTask)

	p := api.Group("/projects/:id", requireObjectIDs)
	p.GET("", s.handleGetProject)
	p.PUT("", s.handleUpdateProject)
	p.DELETE("", s.handleRemoveProject)
	p.PUT("/status", s.handleUpdateProjectStatus)
	p.POST("/members", s.handleAddMember)
	p.DELETE("/members", s.handleRemoveMember)
	p.GET("/tasks", s.handleListProjectTasks)
	p.POST("/tasks", s.handleAddTask)
	p.GET("/tasks/:taskId", s.handleGetTask)
	p.PUT("/tasks/:taskId", s.handleUpdateTask)
	p.DELETE("/tasks/:taskId", s.handleDeleteTask)
	p.POST("/tasks/:taskId/attach", s.handleAttachTask)
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server. It returns nil after Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
