// Package readmodel maintains the denormalized projects/repositories view
// fed off the replication log (C6 read path, SPEC_FULL.md §11): a Mongo
// collection kept up to date by its own log subscription, so list/lookup
// queries don't have to round-trip through the opaque Storage interface on
// the hot path.
package readmodel

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/opendogma/dogma/common/mlog"
	"github.com/opendogma/dogma/internal/command"
	"github.com/opendogma/dogma/internal/replication"
)

// Project is the denormalized view of one project.
type Project struct {
	Name      string `bson:"_id"`
	CreatedAt int64  `bson:"createdAt"`
	Removed   bool   `bson:"removed"`
}

// Repository is the denormalized view of one repository, keyed by
// "project/repo" so the natural Mongo _id also sorts by project.
type Repository struct {
	ID        string `bson:"_id"`
	Project   string `bson:"project"`
	Name      string `bson:"name"`
	CreatedAt int64  `bson:"createdAt"`
	Removed   bool   `bson:"removed"`
	UpdatedAt int64  `bson:"updatedAt"`
}

func repoID(project, repo string) string { return project + "/" + repo }

// Option configures a Projector.
type Option func(*Projector)

func WithLogger(l mlog.Logger) Option { return func(p *Projector) { p.logger = l } }

// Projector subscribes to the replication log from seq 0 and keeps the
// projects/repositories collections converged with every applied command.
type Projector struct {
	projects     *mongo.Collection
	repositories *mongo.Collection
	logger       mlog.Logger
}

// New builds a Projector against database on client.
func New(client *mongo.Client, database string, opts ...Option) *Projector {
	db := client.Database(database)

	p := &Projector{
		projects:     db.Collection("projects"),
		repositories: db.Collection("repositories"),
		logger:       &mlog.NoneLogger{},
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Run streams committed entries and applies each to the read model until
// ctx is canceled or the log closes its subscription.
func (p *Projector) Run(ctx context.Context, log replication.Log) error {
	entries, cancel := log.Subscribe(0)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case entry, ok := <-entries:
			if !ok {
				return nil
			}

			if err := p.apply(ctx, entry); err != nil {
				p.logger.Errorf("readmodel: failed to apply seq=%d: %v", entry.Seq, err)
			}
		}
	}
}

func (p *Projector) apply(ctx context.Context, entry replication.Entry) error {
	switch c := entry.Command.(type) {
	case *command.CreateProject:
		return p.upsertProject(ctx, c.ProjectName, c.Timestamp, false)
	case *command.RemoveProject:
		return p.setProjectRemoved(ctx, c.ProjectName, true)
	case *command.UnremoveProject:
		return p.setProjectRemoved(ctx, c.ProjectName, false)
	case *command.PurgeProject:
		_, err := p.projects.DeleteOne(ctx, bson.M{"_id": c.ProjectName})
		return err

	case *command.CreateRepository:
		return p.upsertRepository(ctx, c.ProjectName, c.RepositoryName, c.Timestamp)
	case *command.RemoveRepository:
		return p.setRepositoryRemoved(ctx, c.ProjectName, c.RepositoryName, true)
	case *command.UnremoveRepository:
		return p.setRepositoryRemoved(ctx, c.ProjectName, c.RepositoryName, false)
	case *command.PurgeRepository:
		_, err := p.repositories.DeleteOne(ctx, bson.M{"_id": repoID(c.ProjectName, c.RepositoryName)})
		return err
	case *command.CreateRollingRepository:
		return p.upsertRepository(ctx, c.ProjectName, c.RepositoryName, entry.Committed.UnixMilli())

	case *command.NormalizingPush:
		return p.touchRepository(ctx, c.ProjectName, c.RepositoryName, entry.Committed.UnixMilli())
	case *command.PushAsIs:
		return p.touchRepository(ctx, c.ProjectName, c.RepositoryName, entry.Committed.UnixMilli())
	case *command.Transform:
		return p.touchRepository(ctx, c.ProjectName, c.RepositoryName, entry.Committed.UnixMilli())
	}

	return nil
}

func (p *Projector) upsertProject(ctx context.Context, name string, ts int64, removed bool) error {
	_, err := p.projects.UpdateOne(ctx,
		bson.M{"_id": name},
		bson.M{"$set": bson.M{"removed": removed}, "$setOnInsert": bson.M{"createdAt": ts}},
		options.Update().SetUpsert(true))

	return err
}

func (p *Projector) setProjectRemoved(ctx context.Context, name string, removed bool) error {
	_, err := p.projects.UpdateOne(ctx, bson.M{"_id": name}, bson.M{"$set": bson.M{"removed": removed}})
	return err
}

func (p *Projector) upsertRepository(ctx context.Context, project, repo string, ts int64) error {
	id := repoID(project, repo)

	_, err := p.repositories.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$set": bson.M{"project": project, "name": repo, "removed": false, "updatedAt": ts},
			"$setOnInsert": bson.M{"createdAt": ts},
		},
		options.Update().SetUpsert(true))

	return err
}

func (p *Projector) setRepositoryRemoved(ctx context.Context, project, repo string, removed bool) error {
	_, err := p.repositories.UpdateOne(ctx,
		bson.M{"_id": repoID(project, repo)}, bson.M{"$set": bson.M{"removed": removed}})

	return err
}

func (p *Projector) touchRepository(ctx context.Context, project, repo string, ts int64) error {
	_, err := p.repositories.UpdateOne(ctx,
		bson.M{"_id": repoID(project, repo)}, bson.M{"$set": bson.M{"updatedAt": ts}})

	return err
}

// ListProjects returns every non-removed project.
func (p *Projector) ListProjects(ctx context.Context) ([]Project, error) {
	cur, err := p.projects.Find(ctx, bson.M{"removed": false})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []Project
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}

	return out, nil
}

// ListRepositories returns every non-removed repository in project.
func (p *Projector) ListRepositories(ctx context.Context, project string) ([]Repository, error) {
	cur, err := p.repositories.Find(ctx, bson.M{"project": project, "removed": false})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []Repository
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}

	return out, nil
}
