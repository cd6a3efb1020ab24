package executor_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opendogma/dogma/common"
	"github.com/opendogma/dogma/internal/command"
	"github.com/opendogma/dogma/internal/executor"
	"github.com/opendogma/dogma/internal/status"
	"github.com/opendogma/dogma/internal/storage/memory"
)

func newTestExecutor(t *testing.T) (*executor.Executor, *status.Manager) {
	t.Helper()

	sm := status.New(nil)
	require.NoError(t, sm.Start(true))

	store := memory.New()
	exec := executor.New(store, sm, executor.WithClock(func() time.Time { return time.UnixMilli(1000) }))

	t.Cleanup(exec.Stop)

	return exec, sm
}

func push(base command.Revision, project, repo string, changes []command.Change) *command.NormalizingPush {
	return command.NewNormalizingPush(command.PushFields{
		ProjectName: project, RepositoryName: repo, BaseRevision: base, Changes: changes,
	})
}

// Scenario 1 (spec.md §8): create-push-read.
func TestCreatePushRead(t *testing.T) {
	exec, _ := newTestExecutor(t)
	ctx := context.Background()

	mustExec(t, exec, &command.CreateProject{ProjectName: "foo"})
	mustExec(t, exec, &command.CreateRepository{ProjectName: "foo", RepositoryName: "bar"})

	res, err := exec.Execute(ctx, push(command.Revision{Major: 1}, "foo", "bar",
		[]command.Change{&command.UpsertText{Path: "/x.txt", Content: "hi\n"}}))
	require.NoError(t, err)
	assert.Equal(t, command.Revision{Major: 2}, res.Revision)
}

// Scenario 2: conflict on stale base.
func TestConflictOnStaleBase(t *testing.T) {
	exec, _ := newTestExecutor(t)
	ctx := context.Background()

	mustExec(t, exec, &command.CreateProject{ProjectName: "foo"})
	mustExec(t, exec, &command.CreateRepository{ProjectName: "foo", RepositoryName: "bar"})
	mustExec(t, exec, push(command.Revision{Major: 1}, "foo", "bar",
		[]command.Change{&command.UpsertText{Path: "/x.txt", Content: "hi\n"}}))

	_, err := exec.Execute(ctx, push(command.Revision{Major: 1}, "foo", "bar",
		[]command.Change{&command.UpsertText{Path: "/x.txt", Content: "bye\n"}}))
	require.Error(t, err)
	assert.Equal(t, common.KindConflict, common.KindOf(err))
}

// Scenario 3: force-push succeeds in read-only mode, ordinary push doesn't.
func TestForcePushInReadOnly(t *testing.T) {
	exec, sm := newTestExecutor(t)
	ctx := context.Background()

	mustExec(t, exec, &command.CreateProject{ProjectName: "foo"})
	mustExec(t, exec, &command.CreateRepository{ProjectName: "foo", RepositoryName: "bar"})
	mustExec(t, exec, push(command.Revision{Major: 1}, "foo", "bar",
		[]command.Change{&command.UpsertText{Path: "/x.txt", Content: "hi\n"}}))

	sm.SetWritable(false)

	_, err := exec.Execute(ctx, push(command.Revision{Major: 2}, "foo", "bar",
		[]command.Change{&command.UpsertText{Path: "/y.txt", Content: "hi\n"}}))
	require.Error(t, err)
	assert.Equal(t, common.KindReadOnly, common.KindOf(err))

	res, err := exec.Execute(ctx, &command.ForcePush{Inner: push(command.Revision{Major: 2}, "foo", "bar",
		[]command.Change{&command.UpsertText{Path: "/y.txt", Content: "hi\n"}})})
	require.NoError(t, err)
	assert.Equal(t, command.Revision{Major: 3}, res.Revision)
	assert.True(t, res.ForcePush)
}

func TestNotStartedRejectsEverything(t *testing.T) {
	sm := status.New(nil)
	store := memory.New()
	exec := executor.New(store, sm)
	t.Cleanup(exec.Stop)

	_, err := exec.Execute(context.Background(), &command.CreateProject{ProjectName: "foo"})
	require.Error(t, err)
	assert.Equal(t, common.KindReadOnly, common.KindOf(err))
}

func TestResetMetaRepositoryDeprecated(t *testing.T) {
	exec, _ := newTestExecutor(t)

	_, err := exec.Execute(context.Background(), &command.ResetMetaRepository{ProjectName: "foo"})
	require.Error(t, err)
	assert.Equal(t, common.KindDeprecated, common.KindOf(err))
}

func TestRedundantChangeIsSuccess(t *testing.T) {
	exec, _ := newTestExecutor(t)
	ctx := context.Background()

	mustExec(t, exec, &command.CreateProject{ProjectName: "foo"})
	mustExec(t, exec, &command.CreateRepository{ProjectName: "foo", RepositoryName: "bar"})
	mustExec(t, exec, push(command.Revision{Major: 1}, "foo", "bar",
		[]command.Change{&command.UpsertText{Path: "/x.txt", Content: "hi\n"}}))

	res, err := exec.Execute(ctx, push(command.Revision{Major: 0}, "foo", "bar",
		[]command.Change{&command.UpsertText{Path: "/x.txt", Content: "hi\n"}}))
	require.NoError(t, err)
	assert.True(t, res.Redundant)
	assert.Equal(t, command.Revision{Major: 2}, res.Revision)
}

func mustExec(t *testing.T, exec *executor.Executor, cmd command.Command) executor.Result {
	t.Helper()

	res, err := exec.Execute(context.Background(), cmd)
	require.NoError(t, err)

	return res
}
