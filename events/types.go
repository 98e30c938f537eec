package events

import "github.com/revel/devproxy/model"

// Event type constants for kelindar/event.
const (
	TypeStateChanged uint32 = iota + 1
	TypeBackendExited
	TypeReloadBroadcast
	TypeClientConnected
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// StateChangedEvent is published on every launcher state transition.
type StateChangedEvent struct {
	From  model.LaunchState
	To    model.LaunchState
	Error string // The failure that caused the transition, if any.
}

// Type returns the event type identifier for StateChangedEvent.
func (e StateChangedEvent) Type() uint32 { return TypeStateChanged }

// BackendExitedEvent is published when the backend process ends.
type BackendExitedEvent struct {
	Pid      int
	ExitCode int
	Status   string
	Killed   bool // True when the launcher terminated it.
}

// Type returns the event type identifier for BackendExitedEvent.
func (e BackendExitedEvent) Type() uint32 { return TypeBackendExited }

// ReloadBroadcastEvent is published after browsers were told to reload.
type ReloadBroadcastEvent struct {
	Reload  model.ReloadEvent
	Clients int
}

// Type returns the event type identifier for ReloadBroadcastEvent.
func (e ReloadBroadcastEvent) Type() uint32 { return TypeReloadBroadcast }

// ClientConnectedEvent is published when a live reload client connects or leaves.
type ClientConnectedEvent struct {
	ID        string
	Connected bool
	Clients   int
}

// Type returns the event type identifier for ClientConnectedEvent.
func (e ClientConnectedEvent) Type() uint32 { return TypeClientConnected }
