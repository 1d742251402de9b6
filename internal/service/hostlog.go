package service

import (
	"context"
	"log/slog"

	"github.com/Strob0t/ticketslack/internal/port/database"
)

// Compile-time interface check.
var _ database.HostLog = slogHostLog{}

// slogHostLog stands in for the host system log when none is wired.
type slogHostLog struct {
	log *slog.Logger
}

func (h slogHostLog) LogError(ctx context.Context, title, message string) {
	h.log.ErrorContext(ctx, title, "host_log", true, "message", message)
}

func (h slogHostLog) LogDebug(ctx context.Context, title, message string) {
	h.log.DebugContext(ctx, title, "host_log", true, "message", message)
}
