package bootstrap

import (
	"context"

	"github.com/opendogma/dogma/common"
)

// Each of the long-running components starts a background goroutine and
// returns immediately from its own Start/Run method; common.App.Run is
// expected to block until told to stop, so every wrapper here owns a
// context it cancels (or a stop channel it closes) on Shutdown and blocks
// on that until the component has actually wound down.

type replicatorApp struct {
	repl   *Service
	cancel context.CancelFunc
	done   chan struct{}
}

func (a *replicatorApp) Run(*common.Launcher) error {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	defer close(a.done)

	if err := a.repl.repl.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	return a.repl.repl.Stop(context.Background())
}

func (a *replicatorApp) Shutdown() {
	if a.cancel != nil {
		a.cancel()
		<-a.done
	}
}

type mirrorApp struct {
	sched  interface {
		Start(ctx context.Context) error
		Stop()
	}
	cancel context.CancelFunc
}

func (a *mirrorApp) Run(*common.Launcher) error {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if err := a.sched.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	a.sched.Stop()

	return nil
}

func (a *mirrorApp) Shutdown() {
	if a.cancel != nil {
		a.cancel()
	}
}

type sweeperApp struct {
	sweep interface {
		Start() error
		Stop()
	}
	stopped chan struct{}
}

func (a *sweeperApp) Run(*common.Launcher) error {
	if err := a.sweep.Start(); err != nil {
		return err
	}

	<-a.stopped

	return nil
}

func (a *sweeperApp) Shutdown() {
	a.sweep.Stop()
	close(a.stopped)
}

type readmodelApp struct {
	run    func(ctx context.Context) error
	cancel context.CancelFunc
}

func (a *readmodelApp) Run(*common.Launcher) error {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	err := a.run(ctx)
	if err == context.Canceled {
		return nil
	}

	return err
}

func (a *readmodelApp) Shutdown() {
	if a.cancel != nil {
		a.cancel()
	}
}

type serverApp struct {
	addr   string
	server interface {
		Listen(addr string) error
		ShutdownWithContext(ctx context.Context) error
	}
}

func (a *serverApp) Run(*common.Launcher) error {
	if err := a.server.Listen(a.addr); err != nil {
		return err
	}

	return nil
}

func (a *serverApp) Shutdown() {
	_ = a.server.ShutdownWithContext(context.Background())
}
