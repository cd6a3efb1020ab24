package session

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/opendogma/dogma/common/mlog"
	"github.com/opendogma/dogma/internal/command"
)

// defaultSweepSchedule runs every 4 hours at :30 (spec.md §4.8). Expressed
// in the standard 5-field cron form robfig/cron/v3's default parser
// accepts (minute hour day month weekday).
const defaultSweepSchedule = "30 */4 * * *"

// commandExecutor is the subset of the replicated executor (C6) the
// sweeper needs.
type commandExecutor interface {
	Execute(ctx context.Context, cmd command.Command) error
}

// ExpiredLister is the subset of Store the sweeper needs, split out so
// tests can exercise the sweep logic without a real Postgres connection.
type ExpiredLister interface {
	ListExpiredSessions(ctx context.Context, asOf int64) ([]string, error)
}

// Sweeper walks the session collection on a cron schedule and issues
// RemoveSession for every entry past its expiration time (spec.md §4.8).
type Sweeper struct {
	store    ExpiredLister
	exec     commandExecutor
	schedule string
	now      func() time.Time
	logger   mlog.Logger

	cron *cron.Cron
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

func WithSchedule(spec string) SweeperOption { return func(sw *Sweeper) { sw.schedule = spec } }
func WithNow(now func() time.Time) SweeperOption {
	return func(sw *Sweeper) { sw.now = now }
}
func WithSweeperLogger(l mlog.Logger) SweeperOption {
	return func(sw *Sweeper) { sw.logger = l }
}

// NewSweeper builds a Sweeper. exec only needs Execute(ctx, cmd) error;
// wrap *replicator.Replicator with an adapter that discards Result.
func NewSweeper(store ExpiredLister, exec commandExecutor, opts ...SweeperOption) *Sweeper {
	sw := &Sweeper{
		store:    store,
		exec:     exec,
		schedule: defaultSweepSchedule,
		now:      time.Now,
		logger:   &mlog.NoneLogger{},
	}

	for _, opt := range opts {
		opt(sw)
	}

	return sw
}

// Start schedules the sweep.
func (sw *Sweeper) Start() error {
	sw.cron = cron.New()

	if _, err := sw.cron.AddFunc(sw.schedule, sw.sweepOnce); err != nil {
		return err
	}

	sw.cron.Start()

	return nil
}

// Stop halts the cron scheduler, letting an in-flight sweep finish.
func (sw *Sweeper) Stop() {
	if sw.cron != nil {
		<-sw.cron.Stop().Done()
	}
}

func (sw *Sweeper) sweepOnce() {
	ctx := context.Background()

	expired, err := sw.store.ListExpiredSessions(ctx, sw.now().UnixMilli())
	if err != nil {
		sw.logger.Errorf("session: sweep failed to list expired sessions: %v", err)
		return
	}

	for _, id := range expired {
		if err := sw.exec.Execute(ctx, &command.RemoveSession{SessionID: id}); err != nil {
			sw.logger.Warnf("session: sweep failed to remove session %s: %v", id, err)
		}
	}
}
