package replication

import (
	"context"
	"sync"
	"time"

	"github.com/opendogma/dogma/internal/command"
)

// StandaloneLog is the degenerate single-replica backend named in spec.md
// §2 ("a degenerate 'standalone' mode skips the log entirely"): it still
// satisfies the Log contract (so C6/C7 never special-case it) but holds
// its entries in memory and is always leader of its one-member cluster.
// Selected by Config.Method == MethodNone.
type StandaloneLog struct {
	mu         sync.Mutex
	entries    []Entry
	subs       map[int]chan Entry
	nextSubID  int
	replicaID  string
	leadership []LeadershipListener
	now        func() time.Time
}

// NewStandaloneLog returns a Log that is always leader of a single-member
// cluster. Also used as the in-memory test double for multi-replica C6/C7
// scenarios that don't need a real quorum backend to exercise sequencing.
func NewStandaloneLog(replicaID string) *StandaloneLog {
	return &StandaloneLog{
		subs:      make(map[int]chan Entry),
		replicaID: replicaID,
		now:       time.Now,
	}
}

func (l *StandaloneLog) Start(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, listener := range l.leadership {
		listener.OnTakeLeadership()
	}

	return nil
}

func (l *StandaloneLog) Stop(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, sub := range l.subs {
		close(sub)
	}

	l.subs = make(map[int]chan Entry)

	return nil
}

func (l *StandaloneLog) Append(_ context.Context, cmd command.Command) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := Entry{
		Seq:       int64(len(l.entries)) + 1,
		Committed: l.now(),
		Command:   cmd,
	}

	l.entries = append(l.entries, entry)

	for _, sub := range l.subs {
		sub <- entry
	}

	return entry, nil
}

func (l *StandaloneLog) Subscribe(after int64) (<-chan Entry, func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch := make(chan Entry, 256)
	id := l.nextSubID
	l.nextSubID++
	l.subs[id] = ch

	for _, e := range l.entries {
		if e.Seq > after {
			ch <- e
		}
	}

	cancel := func() {
		l.mu.Lock()
		defer l.mu.Unlock()

		if sub, ok := l.subs[id]; ok {
			close(sub)
			delete(l.subs, id)
		}
	}

	return ch, cancel
}

func (l *StandaloneLog) IsLeader() bool { return true }

func (l *StandaloneLog) Leader() (string, bool) { return l.replicaID, true }

func (l *StandaloneLog) IsZoneLeader(string) bool { return true }

func (l *StandaloneLog) AppliedSeq() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	return int64(len(l.entries))
}

func (l *StandaloneLog) OnLeadership(listener LeadershipListener) {
	l.mu.Lock()
	l.leadership = append(l.leadership, listener)
	l.mu.Unlock()
}

func (l *StandaloneLog) OnZoneLeadership(ZoneLeadershipListener) {}

var _ Log = (*StandaloneLog)(nil)
