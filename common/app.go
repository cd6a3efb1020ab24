package common

import (
	"fmt"
	"sync"

	"github.com/opendogma/dogma/common/console"
	"github.com/opendogma/dogma/common/mlog"
)

// App is a long-running daemon registered with a Launcher: the replication
// apply loop, the mirroring scheduler, and the session-sweep cron are each
// one App. The HTTP admin server is a separate App too, so a graceful
// shutdown can stop them independently of each other.
type App interface {
	Run(launcher *Launcher) error
}

// LauncherOption configures a Launcher.
type LauncherOption func(l *Launcher)

// WithLogger attaches a logger to the launcher.
func WithLogger(logger mlog.Logger) LauncherOption {
	return func(l *Launcher) {
		l.Logger = logger
	}
}

// RunApp registers an App to start when the launcher runs.
func RunApp(name string, app App) LauncherOption {
	return func(l *Launcher) {
		l.Add(name, app)
	}
}

// Launcher starts and waits on every registered App concurrently.
type Launcher struct {
	Logger mlog.Logger
	apps   map[string]App
	wg     *sync.WaitGroup
}

// Add registers an App under name.
func (l *Launcher) Add(name string, a App) *Launcher {
	l.apps[name] = a
	return l
}

// Run starts every registered App in its own goroutine and blocks until all return.
func (l *Launcher) Run() {
	count := len(l.apps)
	l.wg.Add(count)

	fmt.Println(console.Title("dogmad"))
	l.Logger.Infof("Starting %d app(s)", count)

	for name, app := range l.apps {
		go func(name string, app App) {
			defer l.wg.Done()

			l.Logger.Infof("app (%s) starting", name)

			if err := app.Run(l); err != nil {
				l.Logger.Errorf("app (%s) exited with error: %v", name, err)
			}

			l.Logger.Infof("app (%s) finished", name)
		}(name, app)
	}

	l.wg.Wait()
	l.Logger.Info("launcher: all apps terminated")
}

// NewLauncher creates a Launcher ready to accept Apps.
func NewLauncher(opts ...LauncherOption) *Launcher {
	l := &Launcher{
		apps: make(map[string]App),
		wg:   new(sync.WaitGroup),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}
