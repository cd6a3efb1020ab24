package mirror

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opendogma/dogma/internal/command"
)

type fakeSource struct {
	mirrors []Mirror
}

func (f fakeSource) ListMirrors(context.Context) ([]Mirror, error) {
	return f.mirrors, nil
}

type fakeRemote struct {
	mu      sync.Mutex
	pulled  []command.Change
	pushed  int
	pullErr error
}

func (f *fakeRemote) Pull(context.Context, Mirror, int, int64) ([]command.Change, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.pulled, f.pullErr
}

func (f *fakeRemote) Push(context.Context, Mirror, []command.Change) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.pushed++

	return nil
}

type fakeLeadership struct {
	leader     bool
	zoneLeader map[string]bool
}

func (f fakeLeadership) IsLeader() bool { return f.leader }

func (f fakeLeadership) IsZoneLeader(zone string) bool { return f.zoneLeader[zone] }

type fakeExecutor struct {
	mu       sync.Mutex
	executed []command.Command
	done     chan struct{}
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{done: make(chan struct{}, 16)}
}

func (f *fakeExecutor) Execute(_ context.Context, cmd command.Command) error {
	f.mu.Lock()
	f.executed = append(f.executed, cmd)
	f.mu.Unlock()

	f.done <- struct{}{}

	return nil
}

// Scenario 6 (spec.md §8): remote-to-local mirror pushes pulled content
// through the command pipeline as a NormalizingPush. Calls runMirror
// directly rather than waiting on cron/jitter; the jitter bound is
// exercised separately by TestJitterForIsBoundedByOneMinute.
func TestRemoteToLocalMirrorSubmitsPush(t *testing.T) {
	remote := &fakeRemote{pulled: []command.Change{&command.UpsertText{Path: "/a.txt", Content: "A"}}}
	exec := newFakeExecutor()

	m := Mirror{ID: "m1", Enabled: true, ProjectName: "proj", LocalRepo: "repo", Direction: RemoteToLocal, Schedule: "@every 1h"}

	sched := New(fakeSource{mirrors: []Mirror{m}}, remote, exec, fakeLeadership{leader: true}, WithWorkers(2))
	require.NoError(t, sched.Start(context.Background()))

	defer sched.Stop()

	sched.runMirror(m)

	select {
	case <-exec.done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for mirror task to execute a command")
	}

	require.Len(t, exec.executed, 1)

	push, ok := exec.executed[0].(*command.NormalizingPush)
	require.True(t, ok)
	assert.Equal(t, "proj", push.ProjectName)
	assert.Equal(t, "repo", push.RepositoryName)
	assert.Len(t, push.Changes, 1)
}

func TestFollowerSkipsMirrorTask(t *testing.T) {
	remote := &fakeRemote{pulled: []command.Change{&command.UpsertText{Path: "/a.txt", Content: "A"}}}
	exec := newFakeExecutor()

	m := Mirror{ID: "m1", Enabled: true, ProjectName: "proj", LocalRepo: "repo", Direction: RemoteToLocal, Schedule: "@every 1h"}

	sched := New(fakeSource{mirrors: []Mirror{m}}, remote, exec, fakeLeadership{leader: false}, WithWorkers(2))
	require.NoError(t, sched.Start(context.Background()))

	defer sched.Stop()

	sched.runMirror(m)

	select {
	case <-exec.done:
		t.Fatal("follower must not run mirror tasks")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestZoneLeaderGating(t *testing.T) {
	remote := &fakeRemote{pulled: []command.Change{&command.UpsertText{Path: "/a.txt", Content: "A"}}}
	exec := newFakeExecutor()

	m := Mirror{ID: "m1", Enabled: true, Zone: "eu", Direction: RemoteToLocal, Schedule: "@every 1h"}

	sched := New(fakeSource{}, remote, exec, fakeLeadership{leader: false, zoneLeader: map[string]bool{"eu": true}}, WithWorkers(1))
	require.NoError(t, sched.Start(context.Background()))

	defer sched.Stop()

	sched.runMirror(m)

	select {
	case <-exec.done:
	case <-time.After(time.Second):
		t.Fatal("zone leader should run mirror tasks scoped to its zone")
	}
}

func TestLocalToRemoteMirrorPushes(t *testing.T) {
	remote := &fakeRemote{}
	exec := newFakeExecutor()

	m := Mirror{ID: "m2", Enabled: true, Direction: LocalToRemote, Schedule: "@every 1h"}

	sched := New(fakeSource{mirrors: []Mirror{m}}, remote, exec, fakeLeadership{leader: true}, WithWorkers(1))
	require.NoError(t, sched.Start(context.Background()))

	defer sched.Stop()

	sched.runMirror(m)

	assert.Eventually(t, func() bool {
		remote.mu.Lock()
		defer remote.mu.Unlock()

		return remote.pushed == 1
	}, time.Second, 10*time.Millisecond)
}

func TestJitterForIsBoundedByOneMinute(t *testing.T) {
	s := New(fakeSource{}, &fakeRemote{}, newFakeExecutor(), fakeLeadership{})

	for i := 0; i < 50; i++ {
		j := s.jitterFor("@every 1h")
		assert.GreaterOrEqual(t, j, time.Duration(0))
		assert.Less(t, j, maxJitter)
	}
}
