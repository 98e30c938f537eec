// Copyright (c) 2012-2016 The Revel Framework Authors, All rights reserved.
// Revel Framework source code and usage is governed by a MIT style
// license that can be found in the LICENSE file.

// Package harness runs the backend server and the live reload proxy in
// front of it.
//
// A Launcher owns one backend process and one proxy. Several launchers can
// run in the same process.
package harness

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/revel/devproxy/events"
	"github.com/revel/devproxy/livereload"
	"github.com/revel/devproxy/logger"
	"github.com/revel/devproxy/metrics"
	"github.com/revel/devproxy/model"
	"github.com/revel/devproxy/proxy"
	"github.com/revel/devproxy/utils"
	"github.com/revel/devproxy/watcher"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// errBackendDone ends a backend-only run after a clean exit.
var errBackendDone = errors.New("backend exited")

// Launcher starts the backend and the proxy, and tracks the launch state.
type Launcher struct {
	config      model.LaunchConfig
	output      io.Writer
	withBackend bool
	withProxy   bool
	bus         *events.Bus
	metrics     *metrics.Metrics
	hub         *livereload.Hub
	log         logger.MultiLogger

	mu      sync.Mutex
	state   model.LaunchState
	app     *App
	cmd     *AppCmd
	server  *proxy.Server
	watcher *watcher.Watcher
	ready   chan struct{}
	relayed chan struct{}
}

// Option configures a Launcher.
type Option func(*Launcher)

// WithOutput sets where the backend output is written, os.Stdout by default.
func WithOutput(w io.Writer) Option {
	return func(l *Launcher) { l.output = w }
}

// WithBackend enables or disables the backend process.
func WithBackend(enabled bool) Option {
	return func(l *Launcher) { l.withBackend = enabled }
}

// WithProxy enables or disables the proxy and the watcher.
func WithProxy(enabled bool) Option {
	return func(l *Launcher) { l.withProxy = enabled }
}

// WithEventBus publishes the launcher events on bus instead of a private one.
func WithEventBus(bus *events.Bus) Option {
	return func(l *Launcher) { l.bus = bus }
}

// NewLauncher creates a launcher for a copy of cfg.
func NewLauncher(cfg *model.LaunchConfig, opts ...Option) *Launcher {
	l := &Launcher{
		config:      *cfg,
		output:      os.Stdout,
		withBackend: true,
		withProxy:   true,
		metrics:     metrics.New(),
		log:         utils.Logger.New("section", "launcher"),
		ready:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.bus == nil {
		l.bus = events.New()
	}
	l.hub = livereload.NewHub(l.bus)
	return l
}

// State returns the current launch state.
func (l *Launcher) State() model.LaunchState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Ready is closed when the launcher reaches Running.
func (l *Launcher) Ready() <-chan struct{} {
	return l.ready
}

// Bus carries the lifecycle events of this launcher.
func (l *Launcher) Bus() *events.Bus {
	return l.bus
}

// Metrics of this launcher.
func (l *Launcher) Metrics() *metrics.Metrics {
	return l.metrics
}

// Hub is the live reload hub of the proxy.
func (l *Launcher) Hub() *livereload.Hub {
	return l.hub
}

// ProxyAddr is the bound proxy address, nil before Running or without proxy.
func (l *Launcher) ProxyAddr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.server == nil {
		return nil
	}
	return l.server.Addr()
}

// Backend is the running backend command, nil without backend.
func (l *Launcher) Backend() *AppCmd {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cmd
}

// Run starts the enabled components and blocks until ctx is done or the
// proxy fails. Start failures (SpawnError, BindError) are returned before
// anything keeps running. A backend crash leaves the proxy serving; without
// a proxy Run returns once the backend exits, with a BackendCrash when the
// exit code is not zero.
func (l *Launcher) Run(ctx context.Context) error {
	if !l.withBackend && !l.withProxy {
		return model.ErrNothingToRun
	}
	if !l.transition(model.NotStarted, model.Starting, nil) {
		return model.ErrAlreadyStarted
	}
	detach := l.metrics.Attach(l.bus)
	defer detach()

	if err := l.start(ctx); err != nil {
		l.teardown()
		return err
	}
	l.transition(model.Starting, model.Running, nil)
	close(l.ready)

	g, gctx := errgroup.WithContext(ctx)
	if l.cmd != nil {
		cmd := l.cmd
		g.Go(func() error {
			<-l.relayed
			return nil
		})
		g.Go(func() error {
			return l.superviseBackend(gctx, cmd)
		})
	}
	if l.server != nil {
		reloads := watcher.Coalesce(gctx, l.countChanges(gctx, l.watcher.Events()), l.config.WatchDelay, l.config.StyleExtensions)
		g.Go(func() error {
			l.hub.Run(gctx, reloads)
			return nil
		})
		g.Go(func() error {
			return l.superviseProxy(gctx)
		})
	}
	// Teardown unblocks the goroutines above that wait on the components.
	g.Go(func() error {
		<-gctx.Done()
		l.teardown()
		return nil
	})

	err := g.Wait()
	if errors.Is(err, errBackendDone) {
		return nil
	}
	if err == nil && ctx.Err() != nil {
		l.transition(model.Running, model.Stopped, nil)
	}
	return err
}

func (l *Launcher) start(ctx context.Context) error {
	if l.withBackend {
		app := NewApp(&l.config)
		cmd, err := app.Start()
		if err != nil {
			l.log.Error("Backend failed to start", "error", err)
			return err
		}
		l.mu.Lock()
		l.app, l.cmd = app, cmd
		l.mu.Unlock()

		// Relay right away, a full pipe would keep the backend from exiting.
		l.relayed = make(chan struct{})
		go func() {
			defer close(l.relayed)
			Relay(l.output, cmd.Output(), l.metrics)
		}()
	}

	if l.withProxy {
		w, err := watcher.NewWatcher(l.config.WorkDir, l.config.WatchPatterns)
		if err != nil {
			return err
		}
		server, err := proxy.Serve(&l.config, l.hub, l.metrics)
		if err != nil {
			l.log.Error("Proxy failed to start", "error", err)
			return err
		}
		l.mu.Lock()
		l.server = server
		l.mu.Unlock()
		if err := w.Listen(ctx); err != nil {
			return err
		}
		l.mu.Lock()
		l.watcher = w
		l.mu.Unlock()
		l.log.Info("Proxy listening", "addr", server.Addr().String(), "backend", l.config.BackendAddress())
	}
	return nil
}

// superviseBackend reports the backend exit. The exit only ends Run when no
// proxy is running.
func (l *Launcher) superviseBackend(ctx context.Context, cmd *AppCmd) error {
	select {
	case <-ctx.Done():
		return nil
	case <-cmd.Done():
	}

	crash := cmd.Crash()
	l.bus.Publish(events.BackendExitedEvent{
		Pid: crash.Pid, ExitCode: crash.ExitCode, Status: crash.Status, Killed: cmd.Killed(),
	})
	if cmd.Killed() || ctx.Err() != nil {
		return nil
	}

	l.log.Error("Backend exited", "pid", crash.Pid, "status", crash.Status)
	l.transition(model.Running, model.BackendCrashed, crash)
	if l.withProxy {
		l.log.Warn("Proxy keeps running, requests will fail until devproxy is restarted")
		return nil
	}
	if crash.ExitCode == 0 {
		return errBackendDone
	}
	return crash
}

// countChanges counts the watched changes on their way to the coalescer.
func (l *Launcher) countChanges(ctx context.Context, in <-chan model.ChangeEvent) <-chan model.ChangeEvent {
	out := make(chan model.ChangeEvent)
	go func() {
		defer close(out)
		for ev := range in {
			l.metrics.WatchedChanges.WithLabelValues(ev.Kind.String()).Inc()
			l.log.Debug("Changed", "path", ev.Path, "kind", ev.Kind)
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// superviseProxy returns the error that stopped the proxy.
func (l *Launcher) superviseProxy(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return nil
	case <-l.server.Done():
	}
	err := l.server.Err()
	if err == nil || ctx.Err() != nil {
		return nil
	}
	l.transition(model.Running, model.ProxyFailed, err)
	return utils.Wrapf(err, "proxy")
}

// teardown stops whatever was started. Safe to call more than once.
func (l *Launcher) teardown() {
	l.mu.Lock()
	app, server, w := l.app, l.server, l.watcher
	l.mu.Unlock()

	if w != nil {
		_ = w.Close()
	}
	l.hub.Close()
	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := server.Shutdown(ctx); err != nil {
			l.log.Warn("Proxy shutdown", "error", err)
		}
		cancel()
	}
	if app != nil {
		app.Kill()
	}
}

// transition moves from -> to. It reports false when the launcher is not in
// from, which leaves terminal states untouched.
func (l *Launcher) transition(from, to model.LaunchState, cause error) bool {
	l.mu.Lock()
	if l.state != from || !model.CanTransition(from, to) {
		l.mu.Unlock()
		return false
	}
	l.state = to
	l.mu.Unlock()

	ev := events.StateChangedEvent{From: from, To: to}
	if cause != nil {
		ev.Error = cause.Error()
	}
	l.log.Debug("State", "from", from, "to", to)
	l.bus.Publish(ev)
	return true
}
