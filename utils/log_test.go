package utils_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/revel/config"
	"github.com/revel/devproxy/logger"
	"github.com/revel/devproxy/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLoggerKeepsConfiguredDebugOutput(t *testing.T) {
	dir := t.TempDir()
	t.Cleanup(func() { utils.InitLogger(dir, logger.LvlError) })

	c := config.NewContext()
	c.SetOption("log.debug.output", "debug.log")
	c.SetOption("log.info.output", "info.log")
	utils.InitLoggerFromConfig(dir, logger.LvlWarn, c)

	utils.Logger.Debug("debug record", "key", "one")
	utils.Logger.Info("info record", "key", "two")

	debug, err := os.ReadFile(filepath.Join(dir, "debug.log"))
	require.NoError(t, err)
	assert.Contains(t, string(debug), "debug record")
	info, err := os.ReadFile(filepath.Join(dir, "info.log"))
	require.NoError(t, err)
	assert.Contains(t, string(info), "info record")
}

func TestInitLoggerDefaultsFollowLevel(t *testing.T) {
	dir := t.TempDir()
	t.Cleanup(func() { utils.InitLogger(dir, logger.LvlError) })

	c := config.NewContext()
	utils.InitLoggerFromConfig(dir, logger.LvlWarn, c)
	assert.Equal(t, "off", c.StringDefault("log.debug.output", ""))
	assert.Equal(t, "off", c.StringDefault("log.info.output", ""))
	assert.Equal(t, "stderr", c.StringDefault("log.warn.output", ""))

	c = config.NewContext()
	utils.InitLoggerFromConfig(dir, logger.LvlDebug, c)
	assert.Equal(t, "stdout", c.StringDefault("log.debug.output", ""))
	assert.Equal(t, "stdout", c.StringDefault("log.info.output", ""))
}
