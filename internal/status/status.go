// Package status implements the per-replica status manager (C3): the
// three-flag {started, writable, replicating} state machine that C4/C6
// gate every command against (spec.md §4.3).
package status

import (
	"sync"

	"github.com/opendogma/dogma/common/mlog"
)

// Listener is notified, at most once per transition, when a flag changes.
// Registered listeners fire fire-and-forget on their own goroutine so a
// slow listener never blocks the status manager's single writer (spec.md
// §9 "Callbacks for leadership transitions" — the same single-flight-per-
// transition listener-set pattern, generalized to all three flags).
type Listener func(started, writable, replicating bool)

// Manager is the single writer of {started, writable, replicating}; every
// other component reads through RWMutex-guarded getters (spec.md §5
// Shared-resource policy).
type Manager struct {
	mu          sync.RWMutex
	started     bool
	writable    bool
	replicating bool

	startOnce   *sync.Once
	startErr    error
	pendingStop int

	listeners []Listener
	logger    mlog.Logger
}

// New returns a Manager in the idle state.
func New(logger mlog.Logger) *Manager {
	if logger == nil {
		logger = &mlog.NoneLogger{}
	}

	return &Manager{startOnce: new(sync.Once), logger: logger}
}

// OnChange registers a Listener invoked after every transition.
func (m *Manager) OnChange(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.listeners = append(m.listeners, l)
}

// Start moves the manager to the started state, writable only if
// initiallyWritable is true. Concurrent
// callers share one underlying transition (spec.md §4.3 "start is
// idempotent; concurrent calls share one future").
func (m *Manager) Start(initiallyWritable bool) error {
	m.startOnce.Do(func() {
		m.mu.Lock()
		m.started = true
		m.writable = initiallyWritable
		m.mu.Unlock()

		if !initiallyWritable {
			m.logger.Warn("status: starting in read-only mode")
		}

		m.notify()
	})

	return m.startErr
}

// Stop moves the manager back to idle. Each call increments a pending-stop
// counter so callers can observe overlapping stop requests; the state
// itself only flips once.
func (m *Manager) Stop() {
	m.mu.Lock()
	m.pendingStop++
	was := m.started
	m.started = false
	m.writable = false
	m.replicating = false
	m.startOnce = new(sync.Once)
	m.mu.Unlock()

	if was {
		m.notify()
	}
}

// SetWritable flips the writable flag immediately; in-flight writes admitted
// before the flip complete on their own (the executor doesn't re-check
// mid-dispatch), but no new non-administrative write is admitted after it
// returns (spec.md §4.3).
func (m *Manager) SetWritable(w bool) {
	m.mu.Lock()
	changed := m.writable != w
	m.writable = w
	m.mu.Unlock()

	if !w {
		m.logger.Warn("status: replica set to read-only")
	}

	if changed {
		m.notify()
	}
}

// SetReplicating flips the replicating flag. Its only caller is the
// executor's handling of an UpdateServerStatus command.
func (m *Manager) SetReplicating(r bool) {
	m.mu.Lock()
	changed := m.replicating != r
	m.replicating = r
	m.mu.Unlock()

	if changed {
		m.notify()
	}
}

// Started reports whether Start has run and Stop has not since.
func (m *Manager) Started() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.started
}

// Writable reports the raw writable flag, independent of Started.
func (m *Manager) Writable() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.writable
}

// Replicating reports the replicating flag last set by SetReplicating.
func (m *Manager) Replicating() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.replicating
}

// IsWritable is started && writable (spec.md §4.3).
func (m *Manager) IsWritable() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.started && m.writable
}

// Snapshot is the {started, writable, replicating} triple exposed to the
// health/admin surface (spec.md §4.3).
type Snapshot struct {
	Started     bool `json:"started"`
	Writable    bool `json:"writable"`
	Replicating bool `json:"replicating"`
}

// Snapshot returns a consistent read of all three flags.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Snapshot{Started: m.started, Writable: m.writable, Replicating: m.replicating}
}

func (m *Manager) notify() {
	snap := m.Snapshot()

	m.mu.RLock()
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.RUnlock()

	for _, l := range listeners {
		go l(snap.Started, snap.Writable, snap.Replicating)
	}
}
