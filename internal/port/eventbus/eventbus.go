// Package eventbus defines the host event bus port (interface).
package eventbus

import "context"

// Signals the notifier subscribes to.
const (
	SignalTicketCreated      = "ticket.created"
	SignalThreadEntryCreated = "threadentry.created"
)

// Signals lists every signal the notifier understands.
var Signals = []string{SignalTicketCreated, SignalThreadEntryCreated}

// Handler processes one event delivered on a signal.
// The context carries request-scoped values such as the request ID.
type Handler func(ctx context.Context, signal string, data []byte) error

// Bus is the port interface for the host event bus.
type Bus interface {
	// Publish emits an event on the given signal.
	Publish(ctx context.Context, signal string, data []byte) error

	// Subscribe registers a handler for events on the given signal.
	// The returned function cancels the subscription.
	Subscribe(ctx context.Context, signal string, handler Handler) (cancel func(), err error)

	// Drain gracefully drains all subscriptions before closing.
	Drain() error

	// Close shuts down the bus connection immediately.
	Close() error

	// IsConnected reports whether the bus is currently connected.
	IsConnected() bool
}
