package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opendogma/dogma/internal/command"
)

type fakeLister struct {
	expired []string
	err     error
}

func (f fakeLister) ListExpiredSessions(context.Context, int64) ([]string, error) {
	return f.expired, f.err
}

type fakeExec struct {
	mu       sync.Mutex
	removed  []string
	executed chan struct{}
}

func newFakeExec(buf int) *fakeExec {
	return &fakeExec{executed: make(chan struct{}, buf)}
}

func (f *fakeExec) Execute(_ context.Context, cmd command.Command) error {
	rm, ok := cmd.(*command.RemoveSession)
	if !ok {
		return nil
	}

	f.mu.Lock()
	f.removed = append(f.removed, rm.SessionID)
	f.mu.Unlock()

	f.executed <- struct{}{}

	return nil
}

func TestSweepOnceRemovesExpiredSessions(t *testing.T) {
	lister := fakeLister{expired: []string{"s1", "s2"}}
	exec := newFakeExec(2)

	sw := NewSweeper(lister, exec, WithNow(func() time.Time { return time.UnixMilli(1000) }))
	sw.sweepOnce()

	exec.mu.Lock()
	defer exec.mu.Unlock()

	assert.ElementsMatch(t, []string{"s1", "s2"}, exec.removed)
}

func TestSweepOnceNoExpiredSessionsIsNoOp(t *testing.T) {
	lister := fakeLister{}
	exec := newFakeExec(1)

	sw := NewSweeper(lister, exec)
	sw.sweepOnce()

	exec.mu.Lock()
	defer exec.mu.Unlock()

	assert.Empty(t, exec.removed)
}

func TestSweeperStartRunsOnSchedule(t *testing.T) {
	lister := fakeLister{expired: []string{"s1"}}
	exec := newFakeExec(1)

	sw := NewSweeper(lister, exec, WithSchedule("@every 10ms"))
	require.NoError(t, sw.Start())

	defer sw.Stop()

	select {
	case <-exec.executed:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not fire on schedule")
	}
}
