// Package mongo provides the MongoDB-backed project.Store.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	driver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projectd/internal/project"
)

var _ project.Store = (*Store)(nil)

// Config holds connection parameters.
type Config struct {
	URI              string
	Database         string
	CollectionPrefix string
}

// Store keeps projects and tasks in two collections. Array operations are
// single-document updates, so concurrent callers never lose writes.
type Store struct {
	client   *driver.Client // nil when the caller owns the client
	projects *driver.Collection
	tasks    *driver.Collection
	logger   *zap.Logger
}

// Open connects to MongoDB, verifies the connection and ensures indexes.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	if cfg.URI == "" {
		return nil, errors.New("mongo uri is required")
	}
	if cfg.Database == "" {
		return nil, errors.New("mongo database is required")
	}

	client, err := driver.Connect(ctx, options.Client().ApplyURI(cfg.URI).SetAppName("projectd"))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	s, err := New(client.Database(cfg.Database), cfg.CollectionPrefix, logger)
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	s.client = client

	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	s.logger.Info("connected to mongo",
		zap.String("database", cfg.Database),
		zap.String("projects_collection", s.projects.Name()),
		zap.String("tasks_collection", s.tasks.Name()))
	return s, nil
}

// New wraps collections in db. The caller keeps ownership of the client.
func New(db *driver.Database, prefix string, logger *zap.Logger) (*Store, error) {
	if db == nil {
		return nil, errors.New("mongo database is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	projects, err := project.GetCollectionName(prefix, project.CollectionProjects)
	if err != nil {
		return nil, err
	}
	tasks, err := project.GetCollectionName(prefix, project.CollectionTasks)
	if err != nil {
		return nil, err
	}
	return &Store{
		projects: db.Collection(projects),
		tasks:    db.Collection(tasks),
		logger:   logger,
	}, nil
}

// EnsureIndexes creates the secondary indexes used by list filters.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	if _, err := s.projects.Indexes().CreateOne(ctx, driver.IndexModel{
		Keys: bson.D{{Key: fieldOwner, Value: 1}},
	}); err != nil {
		return fmt.Errorf("create %s index: %w", fieldOwner, err)
	}
	if _, err := s.tasks.Indexes().CreateOne(ctx, driver.IndexModel{
		Keys: bson.D{{Key: fieldAssignedTo, Value: 1}},
	}); err != nil {
		return fmt.Errorf("create %s index: %w", fieldAssignedTo, err)
	}
	return nil
}

// Close disconnects the client if Open created it.
func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, project.ErrNotFound)
}

// objectID parses a hex id. Malformed ids cannot exist, so they are reported
// as not found.
func objectID(kind, id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, notFound(kind, id)
	}
	return oid, nil
}

// wrapErr makes driver timeouts recognizable as context deadlines.
func wrapErr(op string, err error) error {
	if driver.IsTimeout(err) && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", op, context.DeadlineExceeded, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// InsertProject stores p under a fresh ObjectID.
func (s *Store) InsertProject(ctx context.Context, p *project.Project) (string, error) {
	doc := newProjectDoc(p)
	doc.ID = primitive.NewObjectID()
	if _, err := s.projects.InsertOne(ctx, doc); err != nil {
		return "", wrapErr("insert project", err)
	}
	return doc.ID.Hex(), nil
}

// FindProject returns one project.
func (s *Store) FindProject(ctx context.Context, id string) (*project.Project, error) {
	oid, err := objectID("project", id)
	if err != nil {
		return nil, err
	}
	var doc projectDoc
	if err := s.projects.FindOne(ctx, bson.M{fieldID: oid}).Decode(&doc); err != nil {
		if errors.Is(err, driver.ErrNoDocuments) {
			return nil, notFound("project", id)
		}
		return nil, wrapErr("find project", err)
	}
	return doc.toProject()
}

// FindProjects returns matching projects in insertion order.
func (s *Store) FindProjects(ctx context.Context, filter project.ProjectFilter) ([]*project.Project, error) {
	query := bson.M{}
	if filter.Owner != "" {
		query[fieldOwner] = filter.Owner
	}
	if filter.TaskID != "" {
		query[fieldTaskIDs] = filter.TaskID
	}
	cur, err := s.projects.Find(ctx, query, options.Find().SetSort(bson.D{{Key: fieldID, Value: 1}}))
	if err != nil {
		return nil, wrapErr("find projects", err)
	}
	var docs []projectDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, wrapErr("decode projects", err)
	}

	out := make([]*project.Project, 0, len(docs))
	for _, d := range docs {
		p, err := d.toProject()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// UpdateProjectDetails sets the caller-writable fields.
func (s *Store) UpdateProjectDetails(ctx context.Context, id string, details project.ProjectDetails) error {
	return s.setProject(ctx, id, "update project", bson.M{
		fieldName:        details.Name,
		fieldDescription: details.Description,
		fieldStartDate:   details.StartDate.UTC(),
		fieldEndDate:     utcPtr(details.EndDate),
		fieldMembers:     nonNil(details.Members),
		fieldOwner:       details.Owner,
	})
}

// SetProjectStatus sets the status field.
func (s *Store) SetProjectStatus(ctx context.Context, id string, status project.ProjectStatus) error {
	return s.setProject(ctx, id, "set project status", bson.M{
		fieldStatus: ordinal(projectStatusOrder, status),
	})
}

func (s *Store) setProject(ctx context.Context, id, op string, fields bson.M) error {
	oid, err := objectID("project", id)
	if err != nil {
		return err
	}
	res, err := s.projects.UpdateOne(ctx, bson.M{fieldID: oid}, bson.M{"$set": fields})
	if err != nil {
		return wrapErr(op, err)
	}
	if res.MatchedCount == 0 {
		return notFound("project", id)
	}
	return nil
}

// DeleteProject removes the project document only.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	oid, err := objectID("project", id)
	if err != nil {
		return err
	}
	res, err := s.projects.DeleteOne(ctx, bson.M{fieldID: oid})
	if err != nil {
		return wrapErr("delete project", err)
	}
	if res.DeletedCount == 0 {
		return notFound("project", id)
	}
	return nil
}

// PushTaskID appends taskID if absent.
func (s *Store) PushTaskID(ctx context.Context, projectID, taskID string) (bool, error) {
	return s.updateArray(ctx, projectID, "push task id", bson.M{"$addToSet": bson.M{fieldTaskIDs: taskID}})
}

// PullTaskID removes taskID.
func (s *Store) PullTaskID(ctx context.Context, projectID, taskID string) (bool, error) {
	return s.updateArray(ctx, projectID, "pull task id", bson.M{"$pull": bson.M{fieldTaskIDs: taskID}})
}

// AddMember adds userID to the member set.
func (s *Store) AddMember(ctx context.Context, projectID, userID string) (bool, error) {
	return s.updateArray(ctx, projectID, "add member", bson.M{"$addToSet": bson.M{fieldMembers: userID}})
}

// PullMember removes userID from the member set.
func (s *Store) PullMember(ctx context.Context, projectID, userID string) (bool, error) {
	return s.updateArray(ctx, projectID, "pull member", bson.M{"$pull": bson.M{fieldMembers: userID}})
}

func (s *Store) updateArray(ctx context.Context, projectID, op string, update bson.M) (bool, error) {
	oid, err := objectID("project", projectID)
	if err != nil {
		return false, err
	}
	res, err := s.projects.UpdateOne(ctx, bson.M{fieldID: oid}, update)
	if err != nil {
		return false, wrapErr(op, err)
	}
	if res.MatchedCount == 0 {
		return false, notFound("project", projectID)
	}
	return res.ModifiedCount > 0, nil
}

// InsertTask stores t under a fresh ObjectID.
func (s *Store) InsertTask(ctx context.Context, t *project.Task) (string, error) {
	doc := newTaskDoc(t)
	doc.ID = primitive.NewObjectID()
	if _, err := s.tasks.InsertOne(ctx, doc); err != nil {
		return "", wrapErr("insert task", err)
	}
	return doc.ID.Hex(), nil
}

// FindTask returns one task.
func (s *Store) FindTask(ctx context.Context, id string) (*project.Task, error) {
	oid, err := objectID("task", id)
	if err != nil {
		return nil, err
	}
	var doc taskDoc
	if err := s.tasks.FindOne(ctx, bson.M{fieldID: oid}).Decode(&doc); err != nil {
		if errors.Is(err, driver.ErrNoDocuments) {
			return nil, notFound("task", id)
		}
		return nil, wrapErr("find task", err)
	}
	return doc.toTask()
}

// FindTasks returns matching tasks in insertion order.
func (s *Store) FindTasks(ctx context.Context, filter project.TaskFilter) ([]*project.Task, error) {
	query := bson.M{}
	if filter.IDs != nil {
		oids := make([]primitive.ObjectID, 0, len(filter.IDs))
		for _, id := range filter.IDs {
			if oid, err := primitive.ObjectIDFromHex(id); err == nil {
				oids = append(oids, oid)
			}
		}
		if len(oids) == 0 {
			return []*project.Task{}, nil
		}
		query[fieldID] = bson.M{"$in": oids}
	}
	if filter.AssignedTo != "" {
		query[fieldAssignedTo] = filter.AssignedTo
	}

	cur, err := s.tasks.Find(ctx, query, options.Find().SetSort(bson.D{{Key: fieldID, Value: 1}}))
	if err != nil {
		return nil, wrapErr("find tasks", err)
	}
	var docs []taskDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, wrapErr("decode tasks", err)
	}

	out := make([]*project.Task, 0, len(docs))
	for _, d := range docs {
		t, err := d.toTask()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// UpdateTaskFields sets the writable task fields. CreatedAt is untouched.
func (s *Store) UpdateTaskFields(ctx context.Context, id string, fields project.TaskFields) error {
	oid, err := objectID("task", id)
	if err != nil {
		return err
	}
	res, err := s.tasks.UpdateOne(ctx, bson.M{fieldID: oid}, bson.M{"$set": bson.M{
		fieldTitle:       fields.Title,
		fieldDescription: fields.Description,
		fieldAssignedTo:  fields.AssignedTo,
		fieldDueDate:     utcPtr(fields.DueDate),
		fieldStatus:      ordinal(taskStatusOrder, fields.Status),
	}})
	if err != nil {
		return wrapErr("update task", err)
	}
	if res.MatchedCount == 0 {
		return notFound("task", id)
	}
	return nil
}

// DeleteTask removes one task.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	oid, err := objectID("task", id)
	if err != nil {
		return err
	}
	res, err := s.tasks.DeleteOne(ctx, bson.M{fieldID: oid})
	if err != nil {
		return wrapErr("delete task", err)
	}
	if res.DeletedCount == 0 {
		return notFound("task", id)
	}
	return nil
}
