// Package storage defines the opaque contract the command pipeline uses to
// reach the Git-backed repository store (spec.md §1, §4.2). The on-disk
// format, Git plumbing, and transform registry are the storage layer's own
// concern; this package only states the operations C4 dispatches against.
package storage

import (
	"context"

	"github.com/opendogma/dogma/internal/command"
)

// CommitResult is the new head plus the post-normalization change set
// (spec.md §3).
type CommitResult struct {
	Revision command.Revision
	Changes  []command.Change
	// Redundant is set when the requested changes produced no diff against
	// HEAD; Revision is then the unchanged HEAD (spec.md §7 RedundantChange).
	Redundant bool
}

// CommitRequest carries everything storage needs to apply a push.
type CommitRequest struct {
	Project        string
	Repository     string
	BaseRevision   command.Revision
	Timestamp      int64
	Author         command.Author
	Summary        string
	Detail         string
	Markup         command.Markup
	Changes        []command.Change
	ForcePush      bool
	// Normalize, when true, means changes should be normalized against HEAD
	// before applying (NormalizingPush); when false, changes are applied
	// verbatim (PushAsIs, used for replication replay).
	Normalize bool
}

// TransformRequest asks storage to compute a commit by applying a named,
// server-side transform to the content at BaseRevision.
type TransformRequest struct {
	Project      string
	Repository   string
	BaseRevision command.Revision
	Timestamp    int64
	Author       command.Author
	Summary      string
	Detail       string
	Markup       command.Markup
	Transformer  command.ContentTransformer
}

// RollingRetention mirrors command.RollingRepositoryRetention at the
// storage boundary.
type RollingRetention struct {
	MinRetentionCommits int64
	MinRetentionDays    int64
}

// Entry is a single committed change set, as returned by History.
type Entry struct {
	Revision  command.Revision
	Author    command.Author
	Timestamp int64
	Summary   string
	Changes   []command.Change
}

// Storage is the capability the command executor (C4) dispatches every
// repository-affecting operation through. Implementations must serialize
// Commit/ApplyTransform/lifecycle operations per (project, repository)
// themselves: the executor's worker pool does not lock per repository, so
// up to one call per worker may be in flight at once, including several
// for the same repository. The memory store holds a single lock for all
// repositories.
//
//go:generate mockgen --destination=storagemock/storage_mock.go --package=storagemock . Storage
type Storage interface {
	CreateProject(ctx context.Context, project string, ts int64, author command.Author) error
	RemoveProject(ctx context.Context, project string) error
	UnremoveProject(ctx context.Context, project string) error
	PurgeProject(ctx context.Context, project string) error

	CreateRepository(ctx context.Context, project, repo string, ts int64, author command.Author) error
	RemoveRepository(ctx context.Context, project, repo string) error
	UnremoveRepository(ctx context.Context, project, repo string) error
	PurgeRepository(ctx context.Context, project, repo string) error
	CreateRollingRepository(ctx context.Context, project, repo string, initial command.Revision, retention RollingRetention) error

	// Commit applies a push (NormalizingPush or PushAsIs) and returns the
	// new head. Conflict is returned when req.BaseRevision doesn't match
	// HEAD at apply time and req.Normalize is false (verbatim replay
	// cannot rebase); a NormalizingPush instead rebases and never
	// conflicts except on genuinely overlapping edits.
	Commit(ctx context.Context, req CommitRequest) (CommitResult, error)

	// PreviewDiff normalizes changes against base without committing.
	PreviewDiff(ctx context.Context, project, repo string, base command.Revision, changes []command.Change) ([]command.Change, error)

	// ApplyTransform computes and commits a change set from a registered
	// server-side transform.
	ApplyTransform(ctx context.Context, req TransformRequest) (CommitResult, error)

	// NormalizeRevision resolves a relative revision (spec.md §3) to an
	// absolute one.
	NormalizeRevision(ctx context.Context, project, repo string, rev command.Revision) (command.Revision, error)

	// GetFile returns the raw content of path as of rev.
	GetFile(ctx context.Context, project, repo string, rev command.Revision, path string) ([]byte, error)

	// History returns commits in (from, to] order, spanning the primary
	// tier and, for rolling repositories, the secondary archive tier on
	// cache miss (spec.md §9 Rolling repository).
	History(ctx context.Context, project, repo string, from, to command.Revision) ([]Entry, error)

	// RotateWdek records a new wrapped data-encryption key. The wrapping
	// primitives themselves are out of scope (spec.md §1); storage only
	// persists the pointer to the current key details.
	RotateWdek(ctx context.Context, project, repo string, wdek command.WdekDetails) error

	// UpdateRepositoryStatus records the replica-local replication health
	// of a repository.
	UpdateRepositoryStatus(ctx context.Context, project, repo string, status command.ReplicationStatus) error

	// GC compacts a repository's on-disk representation and returns the
	// head after compaction.
	GC(ctx context.Context, project, repo string) (command.Revision, error)
}
