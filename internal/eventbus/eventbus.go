// Package eventbus provides in-process fan-out of run progress events.
package eventbus

// Event is any value passed on the untyped bus.
type Event any

// EventBus is the untyped publish/subscribe bus shared by the optimizer
// stages and the metrics collector.
type EventBus interface {
	Publish(Event)
	Subscribe() <-chan Event
	Unsubscribe(<-chan Event)
	Close()
}

// DefaultBuffer is the channel capacity of each subscriber.
const DefaultBuffer = 64

// Bus is the default EventBus implementation.
type Bus = TypedBus[Event]

// New creates an untyped bus with DefaultBuffer.
func New() *Bus { return NewTyped[Event]() }

var _ EventBus = (*Bus)(nil)
