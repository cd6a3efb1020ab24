package replicator_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opendogma/dogma/internal/command"
	"github.com/opendogma/dogma/internal/executor"
	"github.com/opendogma/dogma/internal/replication"
	"github.com/opendogma/dogma/internal/replicator"
	"github.com/opendogma/dogma/internal/status"
	"github.com/opendogma/dogma/internal/storage/memory"
)

func newTestReplicator(t *testing.T) (*replicator.Replicator, context.CancelFunc) {
	t.Helper()

	sm := status.New(nil)
	require.NoError(t, sm.Start(true))

	store := memory.New()
	exec := executor.New(store, sm, executor.WithClock(func() time.Time { return time.UnixMilli(1000) }))
	t.Cleanup(exec.Stop)

	log := replication.NewStandaloneLog("r1")
	repl := replicator.New(exec, store, log, "r1", nil)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, repl.Start(ctx))

	return repl, cancel
}

func push(base command.Revision, project, repo string, changes []command.Change) *command.NormalizingPush {
	return command.NewNormalizingPush(command.PushFields{
		ProjectName: project, RepositoryName: repo, BaseRevision: base, Changes: changes,
	})
}

func TestLeaderExecuteAppliesBeforeCompleting(t *testing.T) {
	repl, cancel := newTestReplicator(t)
	defer cancel()

	ctx := context.Background()

	_, err := repl.Execute(ctx, &command.CreateProject{ProjectName: "foo"})
	require.NoError(t, err)

	_, err = repl.Execute(ctx, &command.CreateRepository{ProjectName: "foo", RepositoryName: "bar"})
	require.NoError(t, err)

	res, err := repl.Execute(ctx, push(command.Revision{Major: 1}, "foo", "bar",
		[]command.Change{&command.UpsertText{Path: "/x.txt", Content: "hi\n"}}))
	require.NoError(t, err)
	assert.Equal(t, command.Revision{Major: 2}, res.Revision)

	// Read-after-write: a read issued right after Execute returns must see
	// the just-applied revision, with no extra waiting.
	content, err := repl.GetFile(ctx, "foo", "bar", command.Revision{Major: 2}, "/x.txt")
	require.NoError(t, err)
	assert.Equal(t, "hi\n", string(content))

	assert.Equal(t, int64(3), repl.AppliedSeq())
}

func TestExecutePropagatesBusinessErrors(t *testing.T) {
	repl, cancel := newTestReplicator(t)
	defer cancel()

	ctx := context.Background()

	_, err := repl.Execute(ctx, &command.CreateProject{ProjectName: "foo"})
	require.NoError(t, err)

	// Repository doesn't exist yet: Commit must fail with a business
	// error, not hang or get treated as a replication divergence.
	_, err = repl.Execute(ctx, push(command.Revision{Major: 1}, "foo", "bar",
		[]command.Change{&command.UpsertText{Path: "/x.txt", Content: "hi\n"}}))
	require.Error(t, err)
}
