package postgres

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/ticketslack/internal/port/database"
)

// Compile-time interface check.
var _ database.Store = (*Store)(nil)

// Store implements database.Store on the host's PostgreSQL schema.
type Store struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewStore creates a new Store backed by the given connection pool.
// log receives host log writes that could not be persisted.
func NewStore(pool *pgxpool.Pool, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{pool: pool, log: log}
}
