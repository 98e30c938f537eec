// Copyright (c) 2012-2016 The Revel Framework Authors, All rights reserved.
// Revel Framework source code and usage is governed by a MIT style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/agtorre/gocolorize"
	"github.com/revel/devproxy/harness"
	"github.com/revel/devproxy/livereload"
	"github.com/revel/devproxy/logger"
	"github.com/revel/devproxy/model"
	"github.com/revel/devproxy/proxy"
	"github.com/revel/devproxy/utils"
)

var cmdRun = &Command{
	UsageLine: "run",
	Short:     "run the backend behind the live reload proxy",
	Long: `
Run the backend server and the live reload proxy in front of it. This is what
devproxy does when no command is given.

The backend command is started from the working directory with the virtualenv
activated. Its output is copied to the terminal. Browse the proxy port; pages
reload when a watched file changes, stylesheets are refreshed in place.

    devproxy -C ~/src/openfec --proxy-port 3000`,
}

var cmdBackend = &Command{
	UsageLine: "backend",
	Short:     "run only the backend server",
	Long: `
Run only the backend server, without proxy or watcher. devproxy exits with the
backend.`,
}

var cmdProxy = &Command{
	UsageLine: "proxy",
	Short:     "run only the live reload proxy and watcher",
	Long: `
Run only the proxy and the watcher, for a backend started some other way.`,
}

func init() {
	cmdRun.RunWith = func(c *model.CommandConfig, out io.Writer) error {
		return launch(c, out, harness.WithBackend(true), harness.WithProxy(true))
	}
	cmdBackend.RunWith = func(c *model.CommandConfig, out io.Writer) error {
		return launch(c, out, harness.WithBackend(true), harness.WithProxy(false))
	}
	cmdProxy.RunWith = func(c *model.CommandConfig, out io.Writer) error {
		return launch(c, out, harness.WithBackend(false), harness.WithProxy(true))
	}
}

// loadConfig reads the launch configuration and routes the logger as the
// config file says.
func loadConfig(c *model.CommandConfig) (*model.LaunchConfig, error) {
	lc, cc, err := model.LoadLaunchConfig(c.BasePath, c.ConfigFile)
	if err != nil {
		return nil, err
	}
	level := logger.LvlWarn
	if c.Verbose {
		level = logger.LvlDebug
	}
	utils.InitLoggerFromConfig(c.BasePath, level, cc)

	if err := c.Apply(lc); err != nil {
		return nil, err
	}
	utils.Logger.Debug("Base path:", "path", lc.BasePath, "workdir", lc.WorkDir)
	return lc, nil
}

// launch runs a launcher until SIGINT or SIGTERM.
func launch(c *model.CommandConfig, out io.Writer, opts ...harness.Option) error {
	lc, err := loadConfig(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The banner and the backend output share out.
	out = &lockedWriter{w: out}
	l := harness.NewLauncher(lc, append(opts, harness.WithOutput(out))...)
	announced := make(chan struct{})
	go func() {
		defer close(announced)
		select {
		case <-l.Ready():
			banner(out, l, lc)
		case <-ctx.Done():
		}
	}()
	err = l.Run(ctx)
	stop()
	<-announced
	return err
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (lw *lockedWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.w.Write(p)
}

func banner(out io.Writer, l *harness.Launcher, lc *model.LaunchConfig) {
	blue := gocolorize.NewColor("blue")
	green := gocolorize.NewColor("green")
	if l.Backend() != nil {
		fmt.Fprintf(out, "%s %s (pid %d)\n", blue.Paint("devproxy: backend"), green.Paint(lc.BackendAddress()), l.Backend().Pid())
	}
	if addr := l.ProxyAddr(); addr != nil {
		fmt.Fprintf(out, "%s %s -> %s\n", blue.Paint("devproxy: proxy  "), green.Paint("http://"+addr.String()), lc.UpstreamURL())
		fmt.Fprintf(out, "%s %s, metrics on %s\n", blue.Paint("devproxy: reload "), livereload.SocketPath, proxy.MetricsPath)
	}
}
