package bus

import "time"

// EventBus is a thread-safe, in-process pub/sub bus the sync engine uses to
// announce entity lifecycle changes to the rest of the client (UI, audio)
// without handing out registry access.
//
// Delivery is synchronous: Publish calls handlers in the caller's goroutine,
// so handlers should be quick or offload heavy work. Handler errors are
// joined and returned from Publish but never stop delivery to the remaining
// handlers.
type EventBus interface {
	Publish(event Event) error
	Subscribe(eventType string, handler EventHandler) (Subscription, error)
	Unsubscribe(sub Subscription) error
}

// Event is what travels over the bus.
type Event interface {
	Type() string
	Source() string
	Timestamp() time.Time
	Data() any
}

// EventHandler consumes a delivered event.
type EventHandler func(event Event) error

// Subscription is the cancellation handle returned by Subscribe.
type Subscription interface {
	ID() string
	EventType() string
	IsActive() bool
	Cancel() error
}
