package livereload

// The LiveReload 7 protocol, as spoken by livereload.js and browser
// extensions: both sides send "hello", then the server sends "reload".

const (
	// ProtocolOfficial7 is the protocol identifier sent in hello messages.
	ProtocolOfficial7 = "http://livereload.com/protocols/official-7"

	// ScriptPath serves the client script injected into HTML pages.
	ScriptPath = "/__devproxy/livereload.js"
	// SocketPath is the websocket endpoint of the client.
	SocketPath = "/__devproxy/livereload"

	serverName = "devproxy"
)

type (
	// Message is the envelope of every message, used to read the command.
	Message struct {
		Command string `json:"command"`
	}

	// HelloMessage opens a session in both directions.
	HelloMessage struct {
		Command    string   `json:"command"`
		Protocols  []string `json:"protocols"`
		ServerName string   `json:"serverName,omitempty"`
	}

	// ReloadMessage asks a browser to reload path. With LiveCSS set a
	// stylesheet path is refreshed in place.
	ReloadMessage struct {
		Command string `json:"command"`
		Path    string `json:"path"`
		LiveCSS bool   `json:"liveCSS"`
	}
)

func newHello() HelloMessage {
	return HelloMessage{Command: "hello", Protocols: []string{ProtocolOfficial7}, ServerName: serverName}
}
