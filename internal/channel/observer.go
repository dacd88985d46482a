package channel

import (
	"github.com/google/uuid"

	"github.com/dokzlo13/rgbd/internal/color"
)

// EventType is the lifecycle stage an Event reports.
type EventType string

const (
	EventStarted   EventType = "transition_started"
	EventCompleted EventType = "transition_completed"
	EventCancelled EventType = "transition_cancelled"
)

// Event describes a transition lifecycle change on a channel.
type Event struct {
	Type       EventType
	Channel    string
	Transition uuid.UUID
	Kind       Kind
	Target     color.Color
}

// Observer receives transition events. It is called on the channel's thread
// and must not block.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// Observe implements Observer.
func (f ObserverFunc) Observe(e Event) {
	f(e)
}
