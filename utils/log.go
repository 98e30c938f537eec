package utils

import (
	"github.com/revel/config"
	"github.com/revel/devproxy/logger"
)

var Logger = logger.New("module", "devproxy")

// InitLogger routes the logger output for the given level to the console.
func InitLogger(basePath string, logLevel logger.LogLevel) {
	InitLoggerFromConfig(basePath, logLevel, nil)
}

// InitLoggerFromConfig is InitLogger with the "log.*" options of a loaded
// config file taking precedence over the console defaults.
func InitLoggerFromConfig(basePath string, logLevel logger.LogLevel, c *config.Context) {
	if c == nil {
		c = config.NewContext()
	}
	setDefault := func(option, value string) {
		if _, found := c.String(option); !found {
			c.SetOption(option, value)
		}
	}
	if logLevel == logger.LvlDebug {
		setDefault("log.debug.output", "stdout")
	} else {
		setDefault("log.debug.output", "off")
	}
	if logLevel >= logger.LvlInfo {
		setDefault("log.info.output", "stdout")
	} else {
		setDefault("log.info.output", "off")
	}

	setDefault("log.warn.output", "stderr")
	setDefault("log.error.output", "stderr")
	setDefault("log.crit.output", "stderr")
	Logger.SetHandler(logger.InitializeFromConfig(basePath, c))
}
