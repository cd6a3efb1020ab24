// Package mirror implements the mirroring scheduler (C7, spec.md §4.7): a
// cron-driven set of per-mirror timers that translate remote↔local Git
// content into commands fed back through the replicated executor (C6).
package mirror

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/opendogma/dogma/common/mlog"
	"github.com/opendogma/dogma/internal/command"
)

// Direction is a Mirror's sync direction (spec.md §3 Mirror).
type Direction string

const (
	LocalToRemote Direction = "LOCAL_TO_REMOTE"
	RemoteToLocal Direction = "REMOTE_TO_LOCAL"
)

// Mirror is one configured remote↔local sync (spec.md §3 Mirror): created
// by a push to the meta-repo, never mutated in place, only replaced.
type Mirror struct {
	ID            string
	Enabled       bool
	ProjectName   string
	LocalRepo     string
	LocalPath     string
	Direction     Direction
	Schedule      string
	RemoteScheme  string
	RemoteURL     string
	RemotePath    string
	RemoteBranch  string
	Gitignore     []string
	CredentialRef string
	Zone          string
}

// Source lists the mirrors currently configured in the meta-repository.
type Source interface {
	ListMirrors(ctx context.Context) ([]Mirror, error)
}

// RemoteSync does the actual Git plumbing against the external remote;
// out of scope for this module (spec.md §1 "touched only where it
// interacts with the executor"), so it's an interface here and a fake in
// tests.
type RemoteSync interface {
	// Pull fetches remote content, bounded by maxFiles/maxBytes, and
	// returns it as a change set relative to the mirror's local path.
	Pull(ctx context.Context, m Mirror, maxFiles int, maxBytes int64) ([]command.Change, error)
	// Push writes local content to the remote. The scheduler calls it
	// with a nil change set; it does not read the local repository itself.
	Push(ctx context.Context, m Mirror, changes []command.Change) error
}

// commandExecutor is the subset of the replicated executor (C6) a mirror
// task needs: submit a command, observe only success/failure. Declared
// narrowly here (rather than importing internal/replicator's Result type)
// so this package has no dependency on C6's concrete return shape.
type commandExecutor interface {
	Execute(ctx context.Context, cmd command.Command) error
}

// LeadershipSource reports whether this replica should run mirror tasks
// (spec.md §4.7 "Only the (zone) leader runs mirror tasks").
type LeadershipSource interface {
	IsLeader() bool
	IsZoneLeader(zone string) bool
}

const (
	defaultMaxNumFilesPerMirror = 8192
	defaultMaxNumBytesPerMirror = 32 * 1024 * 1024
	defaultNumMirroringThreads  = 16
	maxJitter                   = time.Minute
)

// Option configures a Scheduler.
type Option func(*Scheduler)

func WithMaxFiles(n int) Option       { return func(s *Scheduler) { s.maxFiles = n } }
func WithMaxBytes(n int64) Option     { return func(s *Scheduler) { s.maxBytes = n } }
func WithWorkers(n int) Option        { return func(s *Scheduler) { s.workers = n } }
func WithLogger(l mlog.Logger) Option { return func(s *Scheduler) { s.logger = l } }
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// Scheduler is the C7 mirroring scheduler.
type Scheduler struct {
	source     Source
	remote     RemoteSync
	exec       commandExecutor
	leadership LeadershipSource
	logger     mlog.Logger
	now        func() time.Time

	maxFiles int
	maxBytes int64
	workers  int

	cron *cron.Cron

	mu      sync.Mutex
	running map[string]cron.EntryID
	jobs    chan func()
	stop    chan struct{}
	wg      sync.WaitGroup
}

// New builds a Scheduler. exec only needs to expose Execute(ctx, cmd)
// error; pass a thin adapter over *replicator.Replicator if its Result
// isn't needed by the caller.
func New(source Source, remote RemoteSync, exec commandExecutor, leadership LeadershipSource, opts ...Option) *Scheduler {
	s := &Scheduler{
		source:     source,
		remote:     remote,
		exec:       exec,
		leadership: leadership,
		logger:     &mlog.NoneLogger{},
		now:        time.Now,
		maxFiles:   defaultMaxNumFilesPerMirror,
		maxBytes:   defaultMaxNumBytesPerMirror,
		workers:    defaultNumMirroringThreads,
		running:    make(map[string]cron.EntryID),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start loads the current mirror set and schedules a cron entry per
// mirror, each perturbed by a bounded random jitter (spec.md §4.7) so
// mirrors sharing a period don't all fire at once.
func (s *Scheduler) Start(ctx context.Context) error {
	s.cron = cron.New()
	s.jobs = make(chan func(), s.workers*4)
	s.stop = make(chan struct{})

	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)

		go s.runWorker()
	}

	mirrors, err := s.source.ListMirrors(ctx)
	if err != nil {
		return fmt.Errorf("listing mirrors: %w", err)
	}

	for _, m := range mirrors {
		if !m.Enabled {
			continue
		}

		if err := s.schedule(ctx, m); err != nil {
			s.logger.Errorf("mirror: failed to schedule %s: %v", m.ID, err)
		}
	}

	s.cron.Start()

	return nil
}

// Stop halts the cron scheduler and the mirroring worker pool. In-flight
// tasks are allowed to finish.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		cronCtx := s.cron.Stop()
		<-cronCtx.Done()
	}

	close(s.stop)
	s.wg.Wait()
}

func (s *Scheduler) schedule(ctx context.Context, m Mirror) error {
	jitter := s.jitterFor(m.Schedule)

	id, err := s.cron.AddFunc(m.Schedule, func() {
		if jitter > 0 {
			select {
			case <-time.After(jitter):
			case <-s.stop:
				return
			}
		}

		s.submit(m)
	})
	if err != nil {
		return fmt.Errorf("parsing schedule %q: %w", m.Schedule, err)
	}

	s.mu.Lock()
	s.running[m.ID] = id
	s.mu.Unlock()

	return nil
}

// jitterFor returns a random delay in [0, min(period guess, 1 minute)).
// The cron library doesn't expose the parsed period directly, so this
// uses the configured cap as the jitter ceiling, matching spec.md §4.7's
// "capped at 1 minute" rule without needing to reverse-engineer the cron
// expression's actual period.
func (s *Scheduler) jitterFor(string) time.Duration {
	return time.Duration(rand.Int63n(int64(maxJitter)))
}

func (s *Scheduler) runWorker() {
	defer s.wg.Done()

	for {
		select {
		case <-s.stop:
			return
		case job := <-s.jobs:
			job()
		}
	}
}

func (s *Scheduler) submit(m Mirror) {
	select {
	case s.jobs <- func() { s.runMirror(m) }:
	default:
		s.logger.Warnf("mirror: dropping tick for %s, worker pool saturated", m.ID)
	}
}

// runMirror executes one mirror tick (spec.md §4.7). Only the (zone)
// leader runs the task; followers skip it so a remote doesn't get pushed
// twice.
func (s *Scheduler) runMirror(m Mirror) {
	if !s.isEligible(m) {
		return
	}

	ctx := context.Background()

	var err error

	switch m.Direction {
	case RemoteToLocal:
		err = s.runRemoteToLocal(ctx, m)
	case LocalToRemote:
		err = s.runLocalToRemote(ctx, m)
	default:
		err = fmt.Errorf("unknown mirror direction %q", m.Direction)
	}

	if err != nil {
		s.logger.Errorf("mirror: task %s failed: %v", m.ID, err)
	}
}

func (s *Scheduler) isEligible(m Mirror) bool {
	if m.Zone != "" {
		return s.leadership.IsZoneLeader(m.Zone)
	}

	return s.leadership.IsLeader()
}

// runRemoteToLocal pulls the remote's current content and submits it as a
// NormalizingPush through C6 (spec.md §4.7).
func (s *Scheduler) runRemoteToLocal(ctx context.Context, m Mirror) error {
	changes, err := s.remote.Pull(ctx, m, s.maxFiles, s.maxBytes)
	if err != nil {
		return fmt.Errorf("pulling remote: %w", err)
	}

	if len(changes) == 0 {
		return nil
	}

	push := command.NewNormalizingPush(command.PushFields{
		Header:         command.Header{Timestamp: s.now().UnixMilli(), Author: command.SystemAuthor},
		ProjectName:    m.ProjectName,
		RepositoryName: m.LocalRepo,
		Summary:        "mirror: " + m.ID,
		Changes:        changes,
	})

	if err := s.exec.Execute(ctx, push); err != nil {
		return fmt.Errorf("applying mirrored changes: %w", err)
	}

	return nil
}

// runLocalToRemote hands the mirror to RemoteSync.Push with a nil change
// set, bypassing the command pipeline on the way out (spec.md §4.7: "local→remote into a
// direct Git push using cached credentials").
func (s *Scheduler) runLocalToRemote(ctx context.Context, m Mirror) error {
	return s.remote.Push(ctx, m, nil)
}
