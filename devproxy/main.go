// Copyright (c) 2012-2016 The Revel Framework Authors, All rights reserved.
// Revel Framework source code and usage is governed by a MIT style
// license that can be found in the LICENSE file.

// The command line tool that runs a development backend behind a live
// reload proxy.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/agtorre/gocolorize"
	"github.com/jessevdk/go-flags"
	"github.com/revel/devproxy/logger"
	"github.com/revel/devproxy/model"
	"github.com/revel/devproxy/utils"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// Command structure cribbed from the genius organization of the "go" command.
type Command struct {
	RunWith                func(c *model.CommandConfig, out io.Writer) error
	UsageLine, Short, Long string
}

// Name returns command name from usage line
func (cmd *Command) Name() string {
	name := cmd.UsageLine
	i := strings.Index(name, " ")
	if i >= 0 {
		name = name[:i]
	}
	return name
}

// The commands
var commands = []*Command{
	nil, // Safety net, prevent missing index from running
	cmdRun,
	cmdBackend,
	cmdProxy,
	cmdVersion,
}

func main() {
	if runtime.GOOS == "windows" {
		gocolorize.SetPlain(true)
	}
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the command line args and returns the process exit code.
func execute(args []string, stdout, stderr io.Writer) int {
	wd, _ := os.Getwd()
	utils.InitLogger(wd, logger.LvlError)

	c, err := parseArgs(args)
	if err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			fmt.Fprintln(stdout, ferr.Message)
			return exitOK
		}
		fmt.Fprintln(stderr, "Command line error:", err.Error())
		return exitUsage
	}

	if c.BasePath == "" {
		c.BasePath = wd
	}
	if c.BasePath, err = filepath.Abs(c.BasePath); err != nil {
		fmt.Fprintln(stderr, "Command line error:", err.Error())
		return exitUsage
	}

	// Switch based on the verbose flag
	if c.Verbose {
		utils.InitLogger(c.BasePath, logger.LvlDebug)
	} else {
		utils.InitLogger(c.BasePath, logger.LvlWarn)
	}
	utils.Logger.Debug("devproxy executing", "command", commands[c.Index].Short)

	if err := commands[c.Index].RunWith(c, stdout); err != nil {
		if utils.IsFatal(err) {
			utils.Logger.Error("devproxy failed", "error", err)
		} else {
			utils.Logger.Warn("Backend exited", "error", err)
		}
		return exitFailure
	}
	return exitOK
}

// parseArgs fills a CommandConfig from args. No command means run.
func parseArgs(args []string) (*model.CommandConfig, error) {
	c := &model.CommandConfig{}
	parser := flags.NewParser(c, flags.HelpFlag|flags.PassDoubleDash)
	parser.Name = "devproxy"
	parser.SubcommandsOptional = true

	rest, err := parser.ParseArgs(args)
	if err != nil {
		return nil, err
	}
	if len(rest) > 0 {
		return nil, fmt.Errorf("unexpected arguments %q", rest)
	}
	if c.BackendPort < 0 || c.ProxyPort < 0 {
		return nil, fmt.Errorf("ports must be positive")
	}

	c.Index = model.RUN
	if parser.Active != nil {
		switch parser.Active.Name {
		case "backend":
			c.Index = model.BACKEND
		case "proxy":
			c.Index = model.PROXY
		case "version":
			c.Index = model.VERSION
		}
	}
	return c, nil
}
