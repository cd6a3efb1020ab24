// Package executor implements the local command executor (C4): admission
// control (started/writable gating), dispatch to storage on a bounded
// worker pool, and translation of storage errors into the taxonomy of
// spec.md §7. It is the single-replica correctness core that both
// standalone mode and the replicated executor (C6) build on.
package executor

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/opendogma/dogma/common"
	"github.com/opendogma/dogma/common/mlog"
	"github.com/opendogma/dogma/common/mopentelemetry"
	"github.com/opendogma/dogma/internal/command"
	"github.com/opendogma/dogma/internal/status"
	"github.com/opendogma/dogma/internal/storage"
)

// Result is what a dispatched command produces. Most lifecycle commands
// leave Revision/Changes zero; pushes and transforms populate them.
type Result struct {
	Revision  command.Revision
	Changes   []command.Change
	Redundant bool
	ForcePush bool
}

// SessionSink persists session/token mutations for C8. It is injected
// rather than hard-wired so the executor has no compile-time dependency
// on the SQL-backed session store; a nil sink (or SessionsEnabled=false)
// makes session commands no-ops, per spec.md §4.4.
type SessionSink interface {
	CreateSession(ctx context.Context, session command.Session) error
	RemoveSession(ctx context.Context, id string) error
	CreateMasterKey(ctx context.Context, mk command.MasterKey) error
	CreateToken(ctx context.Context, token command.Token) error
	DeactivateToken(ctx context.Context, appID string) error
	DeleteToken(ctx context.Context, appID string) error
}

// Option configures an Executor.
type Option func(*Executor)

// WithWorkers sets the bounded pool size (default 16, spec.md §4.4).
func WithWorkers(n int) Option {
	return func(e *Executor) { e.poolSize = n }
}

// WithSessionSink wires the session/token durable store (C8).
func WithSessionSink(sink SessionSink) Option {
	return func(e *Executor) { e.sessions = sink }
}

// WithSessionsEnabled toggles whether session commands are dispatched at
// all; disabled replicas treat them as a no-op success (spec.md §4.4).
func WithSessionsEnabled(enabled bool) Option {
	return func(e *Executor) { e.sessionsEnabled = enabled }
}

// WithLogger attaches a logger.
func WithLogger(l mlog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithClock overrides the clock used for Header.Normalize (tests only).
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// Executor is the local command executor (C4).
type Executor struct {
	storage         storage.Storage
	status          *status.Manager
	pool            *pool
	poolSize        int
	sessions        SessionSink
	sessionsEnabled bool
	logger          mlog.Logger
	now             func() time.Time
}

// New constructs an Executor bound to storage and a status.Manager (the
// caller owns starting/stopping the Manager; Executor only reads it).
func New(st storage.Storage, sm *status.Manager, opts ...Option) *Executor {
	e := &Executor{
		storage:  st,
		status:   sm,
		poolSize: 16,
		logger:   &mlog.NoneLogger{},
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	e.pool = newPool(e.poolSize)

	return e
}

// Stop lets queued work drain; it does not cancel in-flight storage calls
// (spec.md §5: cancellation never aborts a started storage op).
func (e *Executor) Stop() {
	e.pool.stop()
}

type dispatchOutcome struct {
	result Result
	err    error
}

// Execute admits, dispatches, and waits for cmd per spec.md §4.4. The
// returned error is always a *common.DogmaError carrying one of the
// Kind values in §7 (or the ctx's own cancellation error on timeout).
func (e *Executor) Execute(ctx context.Context, cmd command.Command) (Result, error) {
	header := cmd.CommandHeader()
	header.Normalize(e.now)

	tracer := common.NewTracerFromContext(ctx)
	ctx, span := tracer.Start(ctx, "executor.Execute")
	span.SetAttributes(attribute.String("command.type", cmd.CommandType()))

	defer span.End()

	if !e.status.Started() {
		err := common.NewReadOnlyError()
		mopentelemetry.HandleSpanError(&span, "not started", err)

		return Result{}, err
	}

	administrative := command.IsAdministrative(cmd)
	if !e.status.IsWritable() && !administrative {
		err := common.NewReadOnlyError()
		mopentelemetry.HandleSpanError(&span, "read-only", err)

		return Result{}, err
	}

	resultCh := make(chan dispatchOutcome, 1)
	dispatchCtx := context.WithoutCancel(ctx)

	e.pool.submit(func() {
		res, err := e.dispatch(dispatchCtx, cmd)
		resultCh <- dispatchOutcome{res, err}
	})

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case out := <-resultCh:
		if out.err != nil {
			mopentelemetry.HandleSpanError(&span, "dispatch failed", out.err)
		}

		return out.result, out.err
	}
}

// dispatch is the flat match statement spec.md §9 calls for: one case per
// wire type, calling exactly the storage operation that type names.
func (e *Executor) dispatch(ctx context.Context, cmd command.Command) (Result, error) {
	switch c := cmd.(type) {
	case *command.ForcePush:
		res, err := e.dispatch(ctx, c.Unwrap())
		res.ForcePush = true

		return res, err

	case *command.CreateProject:
		return Result{}, e.storage.CreateProject(ctx, c.ProjectName, c.Timestamp, c.Author)
	case *command.RemoveProject:
		return Result{}, e.storage.RemoveProject(ctx, c.ProjectName)
	case *command.UnremoveProject:
		return Result{}, e.storage.UnremoveProject(ctx, c.ProjectName)
	case *command.PurgeProject:
		return Result{}, e.storage.PurgeProject(ctx, c.ProjectName)

	case *command.ResetMetaRepository:
		// Accepted on decode, rejected here (spec.md Open Question; see DESIGN.md).
		return Result{}, common.NewDeprecatedError(c.CommandType())

	case *command.CreateRepository:
		return Result{}, e.storage.CreateRepository(ctx, c.ProjectName, c.RepositoryName, c.Timestamp, c.Author)
	case *command.RemoveRepository:
		return Result{}, e.storage.RemoveRepository(ctx, c.ProjectName, c.RepositoryName)
	case *command.UnremoveRepository:
		return Result{}, e.storage.UnremoveRepository(ctx, c.ProjectName, c.RepositoryName)
	case *command.PurgeRepository:
		return Result{}, e.storage.PurgeRepository(ctx, c.ProjectName, c.RepositoryName)
	case *command.CreateRollingRepository:
		return Result{}, e.storage.CreateRollingRepository(ctx, c.ProjectName, c.RepositoryName, c.InitialRevision,
			storage.RollingRetention{
				MinRetentionCommits: c.Retention.MinRetentionCommits,
				MinRetentionDays:    c.Retention.MinRetentionDays,
			})
	case *command.RotateWdek:
		return Result{}, e.storage.RotateWdek(ctx, c.ProjectName, c.RepositoryName, c.Wdek)
	case *command.UpdateRepositoryStatus:
		return Result{}, e.storage.UpdateRepositoryStatus(ctx, c.ProjectName, c.RepositoryName, c.ReplicationStatus)

	case *command.NormalizingPush:
		return e.dispatchPush(ctx, c.ProjectName, c.RepositoryName, c.BaseRevision, c.Timestamp, c.Author,
			c.Summary, c.Detail, c.Markup, c.Changes, true)
	case *command.PushAsIs:
		return e.dispatchPush(ctx, c.ProjectName, c.RepositoryName, c.BaseRevision, c.Timestamp, c.Author,
			c.Summary, c.Detail, c.Markup, c.Changes, false)
	case *command.Transform:
		res, err := e.storage.ApplyTransform(ctx, storage.TransformRequest{
			Project:      c.ProjectName,
			Repository:   c.RepositoryName,
			BaseRevision: c.BaseRevision,
			Timestamp:    c.Timestamp,
			Author:       c.Author,
			Summary:      c.Summary,
			Detail:       c.Detail,
			Markup:       c.Markup,
			Transformer:  c.Transformer,
		})

		return fromCommit(res), err

	case *command.CreateSession:
		if !e.sessionsEnabled || e.sessions == nil {
			return Result{}, nil
		}

		return Result{}, e.sessions.CreateSession(ctx, c.Session)
	case *command.RemoveSession:
		if !e.sessionsEnabled || e.sessions == nil {
			return Result{}, nil
		}

		return Result{}, e.sessions.RemoveSession(ctx, c.SessionID)
	case *command.CreateSessionMasterKey:
		if !e.sessionsEnabled || e.sessions == nil {
			return Result{}, nil
		}

		return Result{}, e.sessions.CreateMasterKey(ctx, c.MasterKey)

	case *command.CreateToken:
		if !e.sessionsEnabled || e.sessions == nil {
			return Result{}, nil
		}

		return Result{}, e.sessions.CreateToken(ctx, c.Token)
	case *command.DeactivateToken:
		if !e.sessionsEnabled || e.sessions == nil {
			return Result{}, nil
		}

		return Result{}, e.sessions.DeactivateToken(ctx, c.AppID)
	case *command.DeleteToken:
		if !e.sessionsEnabled || e.sessions == nil {
			return Result{}, nil
		}

		return Result{}, e.sessions.DeleteToken(ctx, c.AppID)

	case *command.UpdateServerStatus:
		if c.Writable != nil {
			e.status.SetWritable(*c.Writable)
		}

		if c.Replicating != nil {
			e.status.SetReplicating(*c.Replicating)
		}

		return Result{}, nil

	default:
		return Result{}, common.NewInvalidCommandError("unsupported command type " + cmd.CommandType())
	}
}

func (e *Executor) dispatchPush(
	ctx context.Context,
	project, repo string,
	base command.Revision,
	ts int64,
	author command.Author,
	summary, detail string,
	markup command.Markup,
	changes []command.Change,
	normalize bool,
) (Result, error) {
	for _, ch := range changes {
		if err := command.ValidateChange(ch); err != nil {
			return Result{}, common.NewInvalidCommandError(err.Error())
		}
	}

	res, err := e.storage.Commit(ctx, storage.CommitRequest{
		Project:      project,
		Repository:   repo,
		BaseRevision: base,
		Timestamp:    ts,
		Author:       author,
		Summary:      summary,
		Detail:       detail,
		Markup:       markup,
		Changes:      changes,
		Normalize:    normalize,
	})

	return fromCommit(res), err
}

func fromCommit(res storage.CommitResult) Result {
	return Result{Revision: res.Revision, Changes: res.Changes, Redundant: res.Redundant}
}
