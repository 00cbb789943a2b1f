package kumitate

import "reflect"

// EventBus provides a simple, type-safe multicast for decoupled
// communication. Listeners subscribe to a concrete event type and every
// publish of that type invokes them synchronously, in subscription order.
// The Builder's pre- and post-build notifications ride on an EventBus, and
// it is equally usable standalone.
//
// The zero value is ready to use.
type EventBus struct {
	handlers map[reflect.Type][]any
}

// Subscribe registers a handler function to be called when an event of type
// `T` is published. Handlers for one event type are invoked in the order
// they were subscribed.
//
// Parameters:
//   - bus: The EventBus instance to subscribe to.
//   - handler: A function that takes a single argument of type `T`.
func Subscribe[T any](bus *EventBus, handler func(T)) {
	t := reflect.TypeFor[T]()
	if bus.handlers == nil {
		bus.handlers = make(map[reflect.Type][]any, 4)
	}
	bus.handlers[t] = append(bus.handlers[t], handler)
}

// Publish broadcasts an event of type `T` to all registered handlers for
// that type. The handlers are called synchronously in subscription order;
// publishing a type nobody subscribed to is a no-op.
//
// Parameters:
//   - bus: The EventBus instance to publish to.
//   - event: The event data of type `T` to be sent to handlers.
func Publish[T any](bus *EventBus, event T) {
	if bus.handlers == nil {
		return
	}
	for _, h := range bus.handlers[reflect.TypeFor[T]()] {
		h.(func(T))(event)
	}
}
