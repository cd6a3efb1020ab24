package bootstrap

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/opendogma/dogma/common"
	"github.com/opendogma/dogma/common/mlog"
	"github.com/opendogma/dogma/common/mmongo"
	"github.com/opendogma/dogma/common/mpostgres"
	"github.com/opendogma/dogma/common/mredis"
	"github.com/opendogma/dogma/common/mzap"
	"github.com/opendogma/dogma/internal/cache"
	"github.com/opendogma/dogma/internal/command"
	"github.com/opendogma/dogma/internal/executor"
	"github.com/opendogma/dogma/internal/mirror"
	"github.com/opendogma/dogma/internal/readmodel"
	"github.com/opendogma/dogma/internal/replication"
	"github.com/opendogma/dogma/internal/replicator"
	"github.com/opendogma/dogma/internal/session"
	"github.com/opendogma/dogma/internal/status"
	"github.com/opendogma/dogma/internal/storage"
	"github.com/opendogma/dogma/internal/storage/memory"
)

// Service is the fully wired application: every long-running App this
// process hosts, started together by a common.Launcher (same shape as the
// teacher's own Service.Run).
type Service struct {
	Logger mlog.Logger

	status  *status.Manager
	repl    *replicator.Replicator
	replLog replication.Log
	mirror  *mirror.Scheduler
	sweep   *session.Sweeper
	model   *readmodel.Projector

	server *fiber.App
	addr   string
}

// replExecAdapter discards executor.Result so *replicator.Replicator
// satisfies the narrow Execute(ctx, cmd) error interfaces internal/mirror
// and internal/session depend on, without either package importing
// internal/replicator or internal/executor directly.
type replExecAdapter struct{ repl *replicator.Replicator }

func (a replExecAdapter) Execute(ctx context.Context, cmd command.Command) error {
	_, err := a.repl.Execute(ctx, cmd)
	return err
}

// noMirrorSource is the mirror configuration source in the absence of a
// wired meta-repository: the actual config-file format mirrors are
// declared in is the storage layer's concern, out of scope here (spec.md
// §1). A real deployment supplies its own Source reading that format.
type noMirrorSource struct{}

func (noMirrorSource) ListMirrors(context.Context) ([]mirror.Mirror, error) { return nil, nil }

// noRemoteSync rejects mirror tasks until a real Git transport is wired
// in; the transport itself is out of scope (spec.md §1).
type noRemoteSync struct{}

func (noRemoteSync) Pull(context.Context, mirror.Mirror, int, int64) ([]command.Change, error) {
	return nil, errors.New("mirror: no Git remote transport configured")
}

func (noRemoteSync) Push(context.Context, mirror.Mirror, []command.Change) error {
	return errors.New("mirror: no Git remote transport configured")
}

// Build loads every connection hub and constructs the full component
// graph. It does not start anything; call Run to begin serving.
func Build(cfg *Config) (*Service, error) {
	logger, err := mzap.InitializeLoggerWithError()
	if err != nil {
		return nil, err
	}

	sm := status.New(logger)

	var st storage.Storage = memory.New()

	if cfg.RedisAddr != "" {
		redisConn := &mredis.RedisConnection{ConnectionStringSource: cfg.RedisAddr, Logger: logger}

		client, err := redisConn.GetDB(context.Background())
		if err != nil {
			return nil, err
		}

		st = cache.New(st, client, cache.WithLogger(logger))
	}

	log, err := buildReplicationLog(cfg, logger)
	if err != nil {
		return nil, err
	}

	var sessionStore *session.Store

	execOpts := []executor.Option{executor.WithWorkers(int(cfg.NumRepositoryWorkers)), executor.WithLogger(logger)}

	if cfg.SessionsEnabled && cfg.PostgresHost != "" {
		sessionStore, err = buildSessionStore(cfg, logger)
		if err != nil {
			return nil, err
		}

		execOpts = append(execOpts, executor.WithSessionSink(sessionStore), executor.WithSessionsEnabled(true))
	}

	exec := executor.New(st, sm, execOpts...)

	servers, err := cfg.replicationServers()
	if err != nil {
		return nil, err
	}

	repl := replicator.New(exec, st, log, cfg.ReplicationServerID, servers, replicator.WithLogger(logger))

	svc := &Service{
		Logger: logger, status: sm, repl: repl, replLog: log,
		addr: cfg.ServerAddress, server: buildServer(repl, sm),
	}

	if cfg.MirroringEnabled {
		svc.mirror = mirror.New(noMirrorSource{}, noRemoteSync{}, replExecAdapter{repl}, log,
			mirror.WithWorkers(int(cfg.NumMirroringThreads)),
			mirror.WithMaxFiles(int(cfg.MaxNumFilesPerMirror)),
			mirror.WithMaxBytes(cfg.MaxNumBytesPerMirror),
			mirror.WithLogger(logger))
	}

	if sessionStore != nil {
		svc.sweep = session.NewSweeper(sessionStore, replExecAdapter{repl},
			session.WithSchedule(cfg.SessionValidationSchedule), session.WithSweeperLogger(logger))
	}

	if cfg.MongoDBHost != "" {
		mongoConn := &mmongo.MongoConnection{
			ConnectionStringSource: cfg.mongoConnectionString(), Database: cfg.MongoDBName, Logger: logger,
		}

		client, err := mongoConn.GetDB(context.Background())
		if err != nil {
			return nil, err
		}

		svc.model = readmodel.New(client, cfg.MongoDBName, readmodel.WithLogger(logger))
	}

	return svc, nil
}

func buildSessionStore(cfg *Config, logger mlog.Logger) (*session.Store, error) {
	pg := &mpostgres.PostgresConnection{
		ConnectionString: cfg.postgresConnectionString(), DBName: cfg.PostgresDBName, Logger: logger,
	}

	pool, err := pg.GetDB(context.Background())
	if err != nil {
		return nil, err
	}

	store, err := session.New(pool, session.WithCacheSize(int(cfg.SessionCacheSize)), session.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	if err := store.EnsureSchema(context.Background()); err != nil {
		return nil, err
	}

	return store, nil
}

func buildReplicationLog(cfg *Config, logger mlog.Logger) (replication.Log, error) {
	if cfg.ReplicationMethod != string(replication.MethodQuorum) {
		return replication.NewStandaloneLog(cfg.ReplicationServerID), nil
	}

	servers, err := cfg.replicationServers()
	if err != nil {
		return nil, err
	}

	endpoints, err := cfg.etcdEndpoints()
	if err != nil {
		return nil, err
	}

	rc := replication.DefaultConfig()
	rc.Method = replication.MethodQuorum
	rc.ReplicaID = cfg.ReplicationServerID
	rc.Zone = cfg.ReplicationZone
	rc.Servers = servers
	rc.Secret = cfg.ReplicationSecret
	rc.Endpoints = endpoints
	rc.MaxLogCount = cfg.ReplicationMaxLogCount
	rc.CommitTimeout = time.Duration(cfg.ReplicationTimeoutMillis) * time.Millisecond
	rc.MinLogAge = time.Duration(cfg.ReplicationMinLogAgeDays) * 24 * time.Hour

	return replication.NewEtcdLog(rc, logger), nil
}

// shutdowner is satisfied by every App wrapper in app.go; signalled on
// SIGINT/SIGTERM so the launcher's Run() can return and the process exits
// cleanly instead of being killed mid-write.
type shutdowner interface {
	Shutdown()
}

// Run starts every long-running component under a common.Launcher and
// blocks until they all exit, mirroring the teacher's Server.Run(launcher).
// A SIGINT/SIGTERM triggers an orderly Shutdown of every app before Run
// returns.
func (s *Service) Run() {
	apps := []shutdowner{
		&serverApp{addr: s.addr, server: s.server},
		&replicatorApp{repl: s, done: make(chan struct{})},
	}

	opts := []common.LauncherOption{
		common.WithLogger(s.Logger),
		common.RunApp("server", apps[0].(common.App)),
		common.RunApp("replicator", apps[1].(common.App)),
	}

	if s.mirror != nil {
		a := &mirrorApp{sched: s.mirror}
		apps = append(apps, a)
		opts = append(opts, common.RunApp("mirror", a))
	}

	if s.sweep != nil {
		a := &sweeperApp{sweep: s.sweep, stopped: make(chan struct{})}
		apps = append(apps, a)
		opts = append(opts, common.RunApp("session-sweeper", a))
	}

	if s.model != nil {
		model, log := s.model, s.replLog
		a := &readmodelApp{run: func(ctx context.Context) error { return model.Run(ctx, log) }}
		apps = append(apps, a)
		opts = append(opts, common.RunApp("readmodel", a))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		s.Logger.Info("bootstrap: shutdown signal received")

		for _, a := range apps {
			a.Shutdown()
		}
	}()

	common.NewLauncher(opts...).Run()
}

func buildServer(repl *replicator.Replicator, sm *status.Manager) *fiber.App {
	app := fiber.New()

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(sm.Snapshot())
	})

	app.Get("/metrics", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"appliedSeq": repl.AppliedSeq()})
	})

	app.Post("/internal/commands", repl.ForwardHandler)

	return app
}
