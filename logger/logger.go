// Package logger is the structured logger used by every devproxy package.
//
// It is a thin layer over log15: messages carry key/value context and child
// loggers are created with New. Handlers are built from a config.Context
// by InitializeFromConfig.
package logger

import (
	"fmt"
	"os"

	"github.com/revel/log15"
)

// LogLevel is the severity of a log record.
type LogLevel log15.Lvl

const (
	LvlCrit  = LogLevel(log15.LvlCrit)
	LvlError = LogLevel(log15.LvlError)
	LvlWarn  = LogLevel(log15.LvlWarn)
	LvlInfo  = LogLevel(log15.LvlInfo)
	LvlDebug = LogLevel(log15.LvlDebug)
)

// String returns the short name used in config options, e.g. "warn".
func (l LogLevel) String() string {
	switch l {
	case LvlCrit:
		return "crit"
	case LvlError:
		return "error"
	case LvlWarn:
		return "warn"
	case LvlInfo:
		return "info"
	case LvlDebug:
		return "debug"
	}
	return "unknown"
}

// LogHandler receives the records of a logger.
type LogHandler = log15.Handler

// MultiLogger is the logger interface handed around the code base.
type MultiLogger interface {
	// New returns a child logger carrying the extra context.
	New(ctx ...interface{}) MultiLogger
	SetHandler(h LogHandler)

	Debug(msg string, ctx ...interface{})
	Debugf(msg string, params ...interface{})
	Info(msg string, ctx ...interface{})
	Infof(msg string, params ...interface{})
	Warn(msg string, ctx ...interface{})
	Warnf(msg string, params ...interface{})
	Error(msg string, ctx ...interface{})
	Errorf(msg string, params ...interface{})
	Crit(msg string, ctx ...interface{})
	Critf(msg string, params ...interface{})

	// Fatal logs at crit level and exits the process.
	Fatal(msg string, ctx ...interface{})
	Fatalf(msg string, params ...interface{})
}

type multiLogger struct {
	log15.Logger
}

// New creates a root logger with the given context.
func New(ctx ...interface{}) MultiLogger {
	return &multiLogger{log15.New(ctx...)}
}

func (l *multiLogger) New(ctx ...interface{}) MultiLogger {
	return &multiLogger{l.Logger.New(ctx...)}
}

func (l *multiLogger) SetHandler(h LogHandler) {
	l.Logger.SetHandler(h)
}

func (l *multiLogger) Debugf(msg string, params ...interface{}) {
	l.Debug(fmt.Sprintf(msg, params...))
}

func (l *multiLogger) Infof(msg string, params ...interface{}) {
	l.Info(fmt.Sprintf(msg, params...))
}

func (l *multiLogger) Warnf(msg string, params ...interface{}) {
	l.Warn(fmt.Sprintf(msg, params...))
}

func (l *multiLogger) Errorf(msg string, params ...interface{}) {
	l.Error(fmt.Sprintf(msg, params...))
}

func (l *multiLogger) Critf(msg string, params ...interface{}) {
	l.Crit(fmt.Sprintf(msg, params...))
}

func (l *multiLogger) Fatal(msg string, ctx ...interface{}) {
	l.Crit(msg, ctx...)
	os.Exit(1)
}

func (l *multiLogger) Fatalf(msg string, params ...interface{}) {
	l.Fatal(fmt.Sprintf(msg, params...))
}
