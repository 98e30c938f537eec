package logger

import (
	"io"
	"path/filepath"

	"github.com/mattn/go-colorable"
	"github.com/revel/config"
	"github.com/revel/log15"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Levels in the order their output options are read.
var levels = []LogLevel{LvlDebug, LvlInfo, LvlWarn, LvlError, LvlCrit}

// InitializeFromConfig builds a handler from the "log.<level>.output" options.
//
// An output is "stdout", "stderr", "off" (or empty), or a file path. Relative
// file paths are resolved against basePath. Files are rotated using the
// "log.maxsize" (megabytes), "log.maxage" (days), "log.maxbackups" and
// "log.compress" options.
func InitializeFromConfig(basePath string, c *config.Context) LogHandler {
	handlers := []LogHandler{}
	for _, lvl := range levels {
		output := c.StringDefault("log."+lvl.String()+".output", "off")
		h := outputHandler(basePath, output, c)
		if h == nil {
			continue
		}
		handlers = append(handlers, levelHandler(lvl, h))
	}
	if len(handlers) == 0 {
		return log15.DiscardHandler()
	}
	return log15.MultiHandler(handlers...)
}

func outputHandler(basePath, name string, c *config.Context) LogHandler {
	switch name {
	case "", "off":
		return nil
	case "stdout":
		return log15.StreamHandler(colorable.NewColorableStdout(), log15.TerminalFormat())
	case "stderr":
		return log15.StreamHandler(colorable.NewColorableStderr(), log15.TerminalFormat())
	}
	if !filepath.IsAbs(name) {
		name = filepath.Join(basePath, name)
	}
	return log15.StreamHandler(NewRotatingWriter(name, c), log15.LogfmtFormat())
}

// NewRotatingWriter returns a size rotated file writer configured from c.
func NewRotatingWriter(filename string, c *config.Context) io.Writer {
	return &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    c.IntDefault("log.maxsize", 100),
		MaxAge:     c.IntDefault("log.maxage", 14),
		MaxBackups: c.IntDefault("log.maxbackups", 3),
		Compress:   c.BoolDefault("log.compress", false),
	}
}

// levelHandler passes only the records of exactly lvl to h.
func levelHandler(lvl LogLevel, h LogHandler) LogHandler {
	return log15.FilterHandler(func(r *log15.Record) bool {
		return r.Lvl == log15.Lvl(lvl)
	}, h)
}
