// Package postgres provides a Postgres-backed project.Store that keeps each
// project and task as a JSONB document.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projectd/internal/project"
)

var _ project.Store = (*Store)(nil)

// JSON keys of the stored documents.
const (
	keyMembers    = "members"
	keyOwner      = "owner"
	keyTaskIDs    = "taskIds"
	keyStatus     = "status"
	keyAssignedTo = "assignedTo"
)

// Config holds connection parameters.
type Config struct {
	DSN         string
	MaxConns    int32
	TablePrefix string
}

// Store keeps projects and tasks in two tables of (id, seq, doc). Array
// operations are single UPDATE statements whose predicates Postgres
// re-checks after acquiring the row lock, so concurrent callers never lose
// writes or duplicate entries.
type Store struct {
	pool     *pgxpool.Pool
	owned    bool
	projects string
	tasks    string
	logger   *zap.Logger
}

// Open connects, verifies the connection and creates the tables.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	if cfg.DSN == "" {
		return nil, errors.New("postgres dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	poolCfg.ConnConfig.RuntimeParams["application_name"] = "projectd"

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s, err := New(pool, cfg.TablePrefix, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	s.owned = true

	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	s.logger.Info("connected to postgres",
		zap.String("database", poolCfg.ConnConfig.Database),
		zap.String("projects_table", s.projects),
		zap.String("tasks_table", s.tasks))
	return s, nil
}

// New wraps pool. The caller keeps ownership of the pool.
func New(pool *pgxpool.Pool, prefix string, logger *zap.Logger) (*Store, error) {
	if pool == nil {
		return nil, errors.New("postgres pool is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	projects, tasks, err := tableNames(prefix)
	if err != nil {
		return nil, err
	}
	return &Store{
		pool:     pool,
		projects: projects,
		tasks:    tasks,
		logger:   logger,
	}, nil
}

// tableNames returns the quoted table identifiers for prefix.
func tableNames(prefix string) (projects, tasks string, err error) {
	p, err := project.GetCollectionName(prefix, project.CollectionProjects)
	if err != nil {
		return "", "", err
	}
	t, err := project.GetCollectionName(prefix, project.CollectionTasks)
	if err != nil {
		return "", "", err
	}
	return pgx.Identifier{p}.Sanitize(), pgx.Identifier{t}.Sanitize(), nil
}

// EnsureSchema creates both tables and their filter indexes.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id  TEXT PRIMARY KEY,
			seq BIGSERIAL NOT NULL,
			doc JSONB NOT NULL
		)`, s.projects),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id  TEXT PRIMARY KEY,
			seq BIGSERIAL NOT NULL,
			doc JSONB NOT NULL
		)`, s.tasks),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s ((doc->>'%s'))`,
			indexName(s.projects, keyOwner), s.projects, keyOwner),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s ((doc->>'%s'))`,
			indexName(s.tasks, keyAssignedTo), s.tasks, keyAssignedTo),
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// indexName derives an index identifier from a quoted table name.
func indexName(table, key string) string {
	raw := table[1 : len(table)-1]
	return pgx.Identifier{raw + "_" + key + "_idx"}.Sanitize()
}

// Close closes the pool if Open created it.
func (s *Store) Close() {
	if s.owned {
		s.pool.Close()
	}
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, project.ErrNotFound)
}

func newID() string {
	return primitive.NewObjectID().Hex()
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// InsertProject stores p under a fresh id.
func (s *Store) InsertProject(ctx context.Context, p *project.Project) (string, error) {
	doc := p.Clone()
	doc.ID = newID()
	doc.StartDate = doc.StartDate.UTC()
	doc.EndDate = utcPtr(doc.EndDate)
	doc.Members = nonNil(doc.Members)
	doc.TaskIDs = nonNil(doc.TaskIDs)

	raw, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode project: %w", err)
	}
	if _, err := s.pool.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, doc) VALUES ($1, $2::jsonb)`, s.projects),
		doc.ID, raw); err != nil {
		return "", fmt.Errorf("insert project: %w", err)
	}
	return doc.ID, nil
}

func scanProject(row pgx.CollectableRow) (*project.Project, error) {
	var (
		id  string
		raw []byte
	)
	if err := row.Scan(&id, &raw); err != nil {
		return nil, err
	}
	var p project.Project
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode project %s: %w", id, err)
	}
	p.ID = id
	p.Members = nonNil(p.Members)
	p.TaskIDs = nonNil(p.TaskIDs)
	return &p, nil
}

// FindProject returns one project.
func (s *Store) FindProject(ctx context.Context, id string) (*project.Project, error) {
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT id, doc FROM %s WHERE id = $1`, s.projects), id)
	if err != nil {
		return nil, fmt.Errorf("find project: %w", err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanProject)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("project", id)
	}
	if err != nil {
		return nil, fmt.Errorf("find project: %w", err)
	}
	return p, nil
}

// FindProjects returns matching projects in insertion order.
func (s *Store) FindProjects(ctx context.Context, filter project.ProjectFilter) ([]*project.Project, error) {
	var (
		where []string
		args  []any
	)
	if filter.Owner != "" {
		args = append(args, filter.Owner)
		where = append(where, fmt.Sprintf(`doc->>'%s' = $%d`, keyOwner, len(args)))
	}
	if filter.TaskID != "" {
		args = append(args, filter.TaskID)
		where = append(where, fmt.Sprintf(`COALESCE(doc->'%s', '[]') ? $%d`, keyTaskIDs, len(args)))
	}

	query := fmt.Sprintf(`SELECT id, doc FROM %s`, s.projects)
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY seq`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find projects: %w", err)
	}
	out, err := pgx.CollectRows(rows, scanProject)
	if err != nil {
		return nil, fmt.Errorf("find projects: %w", err)
	}
	if out == nil {
		out = []*project.Project{}
	}
	return out, nil
}

// UpdateProjectDetails merges the caller-writable fields into the document.
func (s *Store) UpdateProjectDetails(ctx context.Context, id string, details project.ProjectDetails) error {
	return s.mergeDoc(ctx, s.projects, "project", id, map[string]any{
		"name":        details.Name,
		"description": details.Description,
		"startDate":   details.StartDate.UTC(),
		"endDate":     utcPtr(details.EndDate),
		keyMembers:    nonNil(details.Members),
		keyOwner:      details.Owner,
	})
}

// SetProjectStatus sets the status field.
func (s *Store) SetProjectStatus(ctx context.Context, id string, status project.ProjectStatus) error {
	return s.mergeDoc(ctx, s.projects, "project", id, map[string]any{
		keyStatus: status,
	})
}

// mergeDoc overwrites the top-level keys of fields in one document.
func (s *Store) mergeDoc(ctx context.Context, table, kind, id string, fields map[string]any) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode %s update: %w", kind, err)
	}
	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET doc = doc || $2::jsonb WHERE id = $1`, table),
		id, raw)
	if err != nil {
		return fmt.Errorf("update %s: %w", kind, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(kind, id)
	}
	return nil
}

// DeleteProject removes the project row only.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	return s.deleteRow(ctx, s.projects, "project", id)
}

func (s *Store) deleteRow(ctx context.Context, table, kind, id string) error {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, table), id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", kind, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(kind, id)
	}
	return nil
}

// PushTaskID appends taskID if absent.
func (s *Store) PushTaskID(ctx context.Context, projectID, taskID string) (bool, error) {
	return s.addToArray(ctx, projectID, keyTaskIDs, taskID)
}

// PullTaskID removes taskID.
func (s *Store) PullTaskID(ctx context.Context, projectID, taskID string) (bool, error) {
	return s.pullFromArray(ctx, projectID, keyTaskIDs, taskID)
}

// AddMember adds userID to the member set.
func (s *Store) AddMember(ctx context.Context, projectID, userID string) (bool, error) {
	return s.addToArray(ctx, projectID, keyMembers, userID)
}

// PullMember removes userID from the member set.
func (s *Store) PullMember(ctx context.Context, projectID, userID string) (bool, error) {
	return s.pullFromArray(ctx, projectID, keyMembers, userID)
}

func (s *Store) addToArray(ctx context.Context, projectID, key, value string) (bool, error) {
	query := fmt.Sprintf(`UPDATE %[1]s
		SET doc = jsonb_set(doc, '{%[2]s}', COALESCE(doc->'%[2]s', '[]'::jsonb) || to_jsonb($2::text))
		WHERE id = $1 AND NOT COALESCE(doc->'%[2]s', '[]'::jsonb) ? $2`, s.projects, key)
	return s.updateArray(ctx, projectID, "add to "+key, query, value)
}

func (s *Store) pullFromArray(ctx context.Context, projectID, key, value string) (bool, error) {
	query := fmt.Sprintf(`UPDATE %[1]s
		SET doc = jsonb_set(doc, '{%[2]s}', doc->'%[2]s' - $2::text)
		WHERE id = $1 AND COALESCE(doc->'%[2]s', '[]'::jsonb) ? $2`, s.projects, key)
	return s.updateArray(ctx, projectID, "pull from "+key, query, value)
}

// updateArray runs a conditional array update. When no row changed it
// distinguishes a missing project from a no-op.
func (s *Store) updateArray(ctx context.Context, projectID, op, query, value string) (bool, error) {
	tag, err := s.pool.Exec(ctx, query, projectID, value)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	var exists bool
	if err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`, s.projects),
		projectID).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if !exists {
		return false, notFound("project", projectID)
	}
	return false, nil
}

// InsertTask stores t under a fresh id.
func (s *Store) InsertTask(ctx context.Context, t *project.Task) (string, error) {
	doc := t.Clone()
	doc.ID = newID()
	doc.CreatedAt = doc.CreatedAt.UTC()
	doc.DueDate = utcPtr(doc.DueDate)

	raw, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode task: %w", err)
	}
	if _, err := s.pool.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, doc) VALUES ($1, $2::jsonb)`, s.tasks),
		doc.ID, raw); err != nil {
		return "", fmt.Errorf("insert task: %w", err)
	}
	return doc.ID, nil
}

func scanTask(row pgx.CollectableRow) (*project.Task, error) {
	var (
		id  string
		raw []byte
	)
	if err := row.Scan(&id, &raw); err != nil {
		return nil, err
	}
	var t project.Task
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("decode task %s: %w", id, err)
	}
	t.ID = id
	return &t, nil
}

// FindTask returns one task.
func (s *Store) FindTask(ctx context.Context, id string) (*project.Task, error) {
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT id, doc FROM %s WHERE id = $1`, s.tasks), id)
	if err != nil {
		return nil, fmt.Errorf("find task: %w", err)
	}
	t, err := pgx.CollectExactlyOneRow(rows, scanTask)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("task", id)
	}
	if err != nil {
		return nil, fmt.Errorf("find task: %w", err)
	}
	return t, nil
}

// FindTasks returns matching tasks in insertion order.
func (s *Store) FindTasks(ctx context.Context, filter project.TaskFilter) ([]*project.Task, error) {
	if filter.IDs != nil && len(filter.IDs) == 0 {
		return []*project.Task{}, nil
	}

	query := fmt.Sprintf(`SELECT id, doc FROM %s WHERE TRUE`, s.tasks)
	var args []any
	if filter.IDs != nil {
		args = append(args, filter.IDs)
		query += fmt.Sprintf(` AND id = ANY($%d)`, len(args))
	}
	if filter.AssignedTo != "" {
		args = append(args, filter.AssignedTo)
		query += fmt.Sprintf(` AND doc->>'%s' = $%d`, keyAssignedTo, len(args))
	}
	query += ` ORDER BY seq`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find tasks: %w", err)
	}
	out, err := pgx.CollectRows(rows, scanTask)
	if err != nil {
		return nil, fmt.Errorf("find tasks: %w", err)
	}
	if out == nil {
		out = []*project.Task{}
	}
	return out, nil
}

// UpdateTaskFields merges the writable task fields. createdAt is untouched.
func (s *Store) UpdateTaskFields(ctx context.Context, id string, fields project.TaskFields) error {
	return s.mergeDoc(ctx, s.tasks, "task", id, map[string]any{
		"title":       fields.Title,
		"description": fields.Description,
		keyAssignedTo: fields.AssignedTo,
		"dueDate":     utcPtr(fields.DueDate),
		keyStatus:     fields.Status,
	})
}

// DeleteTask removes one task.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	return s.deleteRow(ctx, s.tasks, "task", id)
}
