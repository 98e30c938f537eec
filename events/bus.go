// Package events carries launcher lifecycle notifications between components.
package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting.
// Each launcher owns its own bus.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers.
// Delivery is asynchronous.
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case StateChangedEvent:
		event.Publish(b.dispatcher, e)
	case BackendExitedEvent:
		event.Publish(b.dispatcher, e)
	case ReloadBroadcastEvent:
		event.Publish(b.dispatcher, e)
	case ClientConnectedEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function.
// The handler type determines which events it receives.
// Returns an unsubscribe function.
// Usage: unsub := bus.Subscribe(func(e StateChangedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(StateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(BackendExitedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ReloadBroadcastEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ClientConnectedEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
