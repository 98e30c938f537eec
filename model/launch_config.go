package model

import (
	"bytes"
	"net"
	"net/url"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/pkg/errors"
	"github.com/revel/config"
	"github.com/revel/devproxy/utils"
)

const (
	// DefaultConfigFile is read from the project root when present.
	DefaultConfigFile = "devproxy.conf"
	// ConfigSection holds the overrides inside the config file.
	ConfigSection = "dev"
)

// LaunchConfig describes one launch. It is built once at startup and must not
// be modified after a launcher has been created from it.
type LaunchConfig struct {
	BasePath        string        // The project root
	WorkDir         string        // The backend working directory, also the watch root
	BackendHost     string        // The backend bind host
	BackendPort     int           // The backend bind port
	BackendCommand  string        // The backend command line template
	Virtualenv      string        // Python virtualenv activated for the backend, if it exists
	Env             []string      // Ordered KEY=VALUE overrides for the backend
	ProxyHost       string        // The proxy listen host, empty for all interfaces
	ProxyPort       int           // The proxy listen port
	WatchPatterns   []string      // Globs relative to WorkDir
	StyleExtensions []string      // Extensions refreshed in place instead of reloading
	WatchDelay      time.Duration // Window in which changes are coalesced
}

// DefaultLaunchConfig returns the built in configuration rooted at basePath.
func DefaultLaunchConfig(basePath string) *LaunchConfig {
	return &LaunchConfig{
		BasePath:       basePath,
		WorkDir:        filepath.Join(basePath, "fec"),
		BackendHost:    "0.0.0.0",
		BackendPort:    8000,
		BackendCommand: "python manage.py runserver {{.Address}}",
		Virtualenv:     utils.ExpandHome("~/.virtualenvs/fec"),
		Env:            []string{"PYTHONUNBUFFERED=1"},
		ProxyPort:      8010,
		WatchPatterns: []string{
			"**/*.css",
			"**/*.html",
			"**/*.js",
			"**/*.less",
			"**/*.py",
		},
		StyleExtensions: []string{".css"},
		WatchDelay:      100 * time.Millisecond,
	}
}

// LoadLaunchConfig reads configFile (or the default file in basePath when
// configFile is empty) on top of the defaults. The loaded context is returned
// so the caller can configure logging from it.
func LoadLaunchConfig(basePath, configFile string) (*LaunchConfig, *config.Context, error) {
	if configFile == "" {
		configFile = filepath.Join(basePath, DefaultConfigFile)
		if !utils.Exists(configFile) {
			c := config.NewContext()
			lc, err := NewLaunchConfig(basePath, c)
			return lc, c, err
		}
	} else {
		if !filepath.IsAbs(configFile) {
			configFile = filepath.Join(basePath, configFile)
		}
		// LoadContext ignores missing files.
		if !utils.Exists(configFile) {
			return nil, nil, errors.Errorf("config file %s not found", configFile)
		}
	}

	c, err := config.LoadContext(filepath.Base(configFile), []string{filepath.Dir(configFile)})
	if err != nil {
		return nil, nil, errors.Wrapf(err, "load config %s", configFile)
	}
	// Options missing from [dev] are read from DEFAULT.
	if c.HasSection(ConfigSection) {
		c.SetSection(ConfigSection)
	}
	lc, err := NewLaunchConfig(basePath, c)
	return lc, c, err
}

// NewLaunchConfig builds a configuration from the options in c.
func NewLaunchConfig(basePath string, c *config.Context) (*LaunchConfig, error) {
	lc := DefaultLaunchConfig(basePath)

	lc.WorkDir = c.StringDefault("backend.workdir", lc.WorkDir)
	if !filepath.IsAbs(lc.WorkDir) {
		lc.WorkDir = filepath.Join(basePath, lc.WorkDir)
	}
	lc.BackendHost = c.StringDefault("backend.host", lc.BackendHost)
	lc.BackendPort = c.IntDefault("backend.port", lc.BackendPort)
	lc.BackendCommand = c.StringDefault("backend.command", lc.BackendCommand)
	lc.Virtualenv = utils.ExpandHome(c.StringDefault("backend.virtualenv", lc.Virtualenv))
	lc.ProxyHost = c.StringDefault("proxy.host", lc.ProxyHost)
	lc.ProxyPort = c.IntDefault("proxy.port", lc.ProxyPort)
	if patterns := utils.SplitList(c.StringDefault("watch.patterns", "")); len(patterns) > 0 {
		lc.WatchPatterns = patterns
	}
	if exts := utils.SplitList(c.StringDefault("watch.style", "")); len(exts) > 0 {
		lc.StyleExtensions = exts
	}
	lc.WatchDelay = time.Duration(c.IntDefault("watch.delay", int(lc.WatchDelay/time.Millisecond))) * time.Millisecond

	// backend.env.NAME = value, applied in name order after the defaults.
	const envPrefix = "backend.env."
	names := c.Options(envPrefix)
	sort.Strings(names)
	for _, name := range names {
		key := strings.TrimPrefix(name, envPrefix)
		if key == "" {
			continue
		}
		lc.Env = append(lc.Env, key+"="+c.StringDefault(name, ""))
	}

	return lc, lc.Validate()
}

// Validate checks the values a launch cannot work without.
func (lc *LaunchConfig) Validate() error {
	if strings.TrimSpace(lc.BackendCommand) == "" {
		return ErrEmptyCommand
	}
	for _, port := range []int{lc.BackendPort, lc.ProxyPort} {
		if port < 0 || port > 65535 {
			return errors.Wrapf(ErrInvalidPort, "%d", port)
		}
	}
	if len(lc.WatchPatterns) == 0 {
		return ErrNoPatterns
	}
	return nil
}

// BackendAddress is the address the backend is told to bind.
func (lc *LaunchConfig) BackendAddress() string {
	return net.JoinHostPort(lc.BackendHost, strconv.Itoa(lc.BackendPort))
}

// ProxyAddress is the address the proxy listens on.
func (lc *LaunchConfig) ProxyAddress() string {
	return net.JoinHostPort(lc.ProxyHost, strconv.Itoa(lc.ProxyPort))
}

// UpstreamURL is where the proxy forwards to. A wildcard backend host is
// reached through the loopback interface.
func (lc *LaunchConfig) UpstreamURL() *url.URL {
	host := lc.BackendHost
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "127.0.0.1"
	}
	return &url.URL{Scheme: "http", Host: net.JoinHostPort(host, strconv.Itoa(lc.BackendPort))}
}

// CommandLine renders the backend command template.
func (lc *LaunchConfig) CommandLine() (string, error) {
	tmpl, err := template.New("backend.command").Option("missingkey=error").Parse(lc.BackendCommand)
	if err != nil {
		return "", errors.Wrap(err, "parse backend.command")
	}
	var b bytes.Buffer
	err = tmpl.Execute(&b, map[string]interface{}{
		"Address": lc.BackendAddress(),
		"Host":    lc.BackendHost,
		"Port":    lc.BackendPort,
	})
	if err != nil {
		return "", errors.Wrap(err, "render backend.command")
	}
	return b.String(), nil
}
