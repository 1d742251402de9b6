// Package database defines the host database ports (interfaces).
package database

import (
	"context"

	"github.com/Strob0t/ticketslack/internal/domain/ticket"
)

// SettingsStore is the key-value plugin configuration store.
type SettingsStore interface {
	LoadSettings(ctx context.Context) (map[string]string, error)
	SaveSettings(ctx context.Context, values map[string]string) error
}

// TicketLookup resolves tickets from the host database. Implementations
// return an error wrapping domain.ErrNotFound for missing tickets.
type TicketLookup interface {
	GetTicket(ctx context.Context, id int64) (*ticket.Ticket, error)
	TicketForThread(ctx context.Context, threadID int64) (*ticket.Ticket, error)
}

// HostLog is the host application's system log. Calls are fire-and-forget.
type HostLog interface {
	LogError(ctx context.Context, title, message string)
	LogDebug(ctx context.Context, title, message string)
}

// Store is everything the notifier reads from or writes to the host database.
type Store interface {
	SettingsStore
	TicketLookup
	HostLog
}
