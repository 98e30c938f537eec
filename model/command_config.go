package model

type (
	// The devproxy command type
	COMMAND int

	// The Command config for the line input
	CommandConfig struct {
		Index       COMMAND // The index
		Verbose     bool    `short:"v" long:"debug" description:"If set the logger is set to verbose"`
		ConfigFile  string  `short:"c" long:"config" description:"Config file, defaults to devproxy.conf in the project root when present"`
		BasePath    string  `short:"C" long:"chdir" description:"Project root, defaults to the current directory"`
		BackendPort int     `long:"backend-port" description:"Overrides backend.port"`
		ProxyPort   int     `long:"proxy-port" description:"Overrides proxy.port"`
		// The backend command
		Backend struct{} `command:"backend" description:"Run only the backend server"`
		// The proxy command
		Proxy struct{} `command:"proxy" description:"Run only the live reload proxy and watcher"`
		// The version command
		Version struct{} `command:"version" description:"Print the version"`
	}
)

const (
	RUN COMMAND = iota + 1
	BACKEND
	PROXY
	VERSION
)

// Apply copies the command line overrides onto lc.
func (c *CommandConfig) Apply(lc *LaunchConfig) error {
	if c.BackendPort > 0 {
		lc.BackendPort = c.BackendPort
	}
	if c.ProxyPort > 0 {
		lc.ProxyPort = c.ProxyPort
	}
	return lc.Validate()
}
