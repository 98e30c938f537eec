package model

import "fmt"

type (
	// OutputStream identifies one of the backend output pipes.
	OutputStream int

	// OutputLine is one chunk of backend output, normally a full line
	// including its trailing newline. The last chunk before EOF may be partial.
	OutputLine struct {
		Stream OutputStream
		Data   []byte
	}

	// ChangeKind is the kind of filesystem change.
	ChangeKind int

	// ChangeEvent is a change of one watched path.
	ChangeEvent struct {
		Path string // Slash separated, relative to the working directory.
		Kind ChangeKind
	}

	// ReloadEvent is what the browsers are told after a burst of changes.
	ReloadEvent struct {
		Paths   []string
		LiveCSS bool // Only stylesheets changed; refresh them in place.
	}

	// LaunchState is the state of a launcher.
	LaunchState int
)

const (
	Stdout OutputStream = iota
	Stderr
)

const (
	Create ChangeKind = iota
	Modify
	Delete
)

const (
	NotStarted LaunchState = iota
	Starting
	Running
	BackendCrashed
	ProxyFailed
	Stopped
)

func (s OutputStream) String() string {
	if s == Stderr {
		return "stderr"
	}
	return "stdout"
}

func (k ChangeKind) String() string {
	switch k {
	case Create:
		return "create"
	case Modify:
		return "modify"
	case Delete:
		return "delete"
	}
	return fmt.Sprintf("ChangeKind(%d)", int(k))
}

func (s LaunchState) String() string {
	switch s {
	case NotStarted:
		return "not-started"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case BackendCrashed:
		return "backend-crashed"
	case ProxyFailed:
		return "proxy-failed"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("LaunchState(%d)", int(s))
}

// Terminal reports whether no transition leaves the state.
func (s LaunchState) Terminal() bool {
	return s == BackendCrashed || s == ProxyFailed || s == Stopped
}

// CanTransition reports whether from -> to is a legal launcher transition.
func CanTransition(from, to LaunchState) bool {
	switch from {
	case NotStarted:
		return to == Starting
	case Starting:
		return to == Running
	case Running:
		return to.Terminal()
	}
	return false
}
