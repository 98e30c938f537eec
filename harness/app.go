// Copyright (c) 2012-2016 The Revel Framework Authors, All rights reserved.
// Revel Framework source code and usage is governed by a MIT style
// license that can be found in the LICENSE file.

package harness

import (
	"bufio"
	"errors"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/mattn/go-shellwords"
	"github.com/revel/devproxy/logger"
	"github.com/revel/devproxy/model"
	"github.com/revel/devproxy/utils"
)

const (
	outputBuffer = 64
	// How long a terminated backend gets before it is killed.
	killTimeout = 3 * time.Second
)

// App contains the configuration for running the backend. (Not the backend itself)
// Its only purpose is constructing and tracking the command to execute.
type App struct {
	Config *model.LaunchConfig
	cmd    *AppCmd // The last cmd started.
}

// NewApp returns app instance for the launch configuration
func NewApp(cfg *model.LaunchConfig) *App {
	return &App{Config: cfg}
}

// Start builds and starts the backend command. It does not wait for it.
func (a *App) Start() (*AppCmd, error) {
	cmd, err := NewAppCmd(a.Config)
	if err != nil {
		return nil, err
	}
	if err = cmd.Start(); err != nil {
		return nil, err
	}
	a.cmd = cmd
	return cmd, nil
}

// Kill the last app command started.
func (a *App) Kill() {
	if a.cmd != nil {
		a.cmd.Kill()
	}
}

// AppCmd manages one run of the backend server.
type AppCmd struct {
	cmd     *exec.Cmd
	line    string
	output  chan model.OutputLine
	done    chan struct{}
	waitErr error
	killed  bool
	mu      sync.Mutex
	log     logger.MultiLogger
}

// NewAppCmd returns the AppCmd for the configuration. A SpawnError is
// returned when the command cannot be run from the working directory.
func NewAppCmd(cfg *model.LaunchConfig) (*AppCmd, error) {
	line, err := cfg.CommandLine()
	if err != nil {
		return nil, utils.NewSpawnError(err, cfg.BackendCommand, cfg.WorkDir)
	}
	if !utils.DirExists(cfg.WorkDir) {
		return nil, utils.NewSpawnError(model.ErrNoWorkDir, line, cfg.WorkDir)
	}
	args, err := shellwords.Parse(line)
	if err != nil {
		return nil, utils.NewSpawnError(err, line, cfg.WorkDir)
	}
	if len(args) == 0 {
		return nil, utils.NewSpawnError(model.ErrEmptyCommand, line, cfg.WorkDir)
	}

	env := utils.CmdEnv(cfg.Virtualenv, cfg.Env)
	path, err := utils.LookPath(args[0], cfg.WorkDir, env)
	if err != nil {
		return nil, utils.NewSpawnError(err, line, cfg.WorkDir)
	}

	cmd := exec.Command(path, args[1:]...)
	cmd.Dir = cfg.WorkDir
	cmd.Env = env
	setProcessGroup(cmd)
	return &AppCmd{
		cmd:    cmd,
		line:   line,
		output: make(chan model.OutputLine, outputBuffer),
		done:   make(chan struct{}),
		log:    utils.Logger.New("section", "backend"),
	}, nil
}

// Start the backend and relay its output. It returns as soon as the
// process exists; Output must be consumed from then on.
func (cmd *AppCmd) Start() error {
	stdout, err := cmd.cmd.StdoutPipe()
	if err != nil {
		return utils.NewSpawnError(err, cmd.line, cmd.cmd.Dir)
	}
	stderr, err := cmd.cmd.StderrPipe()
	if err != nil {
		return utils.NewSpawnError(err, cmd.line, cmd.cmd.Dir)
	}

	cmd.log.Info("Exec backend:", "path", cmd.cmd.Path, "args", cmd.cmd.Args, "dir", cmd.cmd.Dir)
	if err := cmd.cmd.Start(); err != nil {
		return utils.NewSpawnError(err, cmd.line, cmd.cmd.Dir)
	}

	var streams sync.WaitGroup
	streams.Add(2)
	go cmd.relay(stdout, model.Stdout, &streams)
	go cmd.relay(stderr, model.Stderr, &streams)

	go func() {
		// Wait must follow the pipe reads, it closes them.
		streams.Wait()
		close(cmd.output)
		err := cmd.cmd.Wait()
		cmd.mu.Lock()
		cmd.waitErr = err
		cmd.mu.Unlock()
		close(cmd.done)
	}()
	return nil
}

// relay publishes the stream chunk by chunk, each ending in a newline
// except possibly the last.
func (cmd *AppCmd) relay(r io.Reader, stream model.OutputStream, wg *sync.WaitGroup) {
	defer wg.Done()
	reader := bufio.NewReader(r)
	for {
		chunk, err := reader.ReadBytes('\n')
		if len(chunk) > 0 {
			cmd.output <- model.OutputLine{Stream: stream, Data: chunk}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				cmd.log.Debug("Output stream closed", "stream", stream, "error", err)
			}
			return
		}
	}
}

// Output carries both streams. It is closed when both reached EOF.
func (cmd *AppCmd) Output() <-chan model.OutputLine {
	return cmd.output
}

// Done is closed once the process exited and its output was drained.
func (cmd *AppCmd) Done() <-chan struct{} {
	return cmd.done
}

// Pid of the backend process.
func (cmd *AppCmd) Pid() int {
	if cmd.cmd.Process == nil {
		return 0
	}
	return cmd.cmd.Process.Pid
}

// Exited reports whether the process has ended.
func (cmd *AppCmd) Exited() bool {
	select {
	case <-cmd.done:
		return true
	default:
		return false
	}
}

// Killed reports whether Kill terminated the process.
func (cmd *AppCmd) Killed() bool {
	cmd.mu.Lock()
	defer cmd.mu.Unlock()
	return cmd.killed
}

// Crash describes how the process ended. Only valid after Done.
func (cmd *AppCmd) Crash() *utils.BackendCrash {
	crash := &utils.BackendCrash{Pid: cmd.Pid(), ExitCode: -1, Status: "unknown"}
	if state := cmd.cmd.ProcessState; state != nil {
		crash.ExitCode = state.ExitCode()
		crash.Status = state.String()
	}
	return crash
}

// Kill terminates the backend if it's running, forcibly after a timeout.
func (cmd *AppCmd) Kill() {
	if cmd.cmd.Process == nil || cmd.Exited() {
		return
	}
	cmd.mu.Lock()
	cmd.killed = true
	cmd.mu.Unlock()

	cmd.log.Info("Killing backend", "pid", cmd.Pid())
	if err := terminate(cmd.cmd.Process); err != nil {
		cmd.log.Debug("Terminate failed", "pid", cmd.Pid(), "error", err)
	}
	select {
	case <-cmd.done:
		return
	case <-time.After(killTimeout):
	}
	if err := kill(cmd.cmd.Process); err != nil {
		cmd.log.Error("Failed to kill backend", "pid", cmd.Pid(), "error", err)
	}
	<-cmd.done
}
