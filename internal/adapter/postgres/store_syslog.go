package postgres

import (
	"context"
	"log/slog"
)

// Log levels as the host's system log names them.
const (
	logTypeError = "Error"
	logTypeDebug = "Debug"
)

// LogError writes an error entry to the host system log.
func (s *Store) LogError(ctx context.Context, title, message string) {
	s.writeLog(ctx, logTypeError, title, message)
}

// LogDebug writes a debug entry to the host system log.
func (s *Store) LogDebug(ctx context.Context, title, message string) {
	s.writeLog(ctx, logTypeDebug, title, message)
}

// writeLog never fails the caller. A failed insert is reported on the
// diagnostic log instead.
func (s *Store) writeLog(ctx context.Context, logType, title, message string) {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO syslog (log_type, title, log, logger, created_at)
		 VALUES ($1, $2, $3, 'ticketslack', NOW())`,
		logType, title, message)
	if err != nil {
		s.log.LogAttrs(ctx, slog.LevelWarn, "host log write failed",
			slog.String("log_type", logType),
			slog.String("title", title),
			slog.String("error", err.Error()),
		)
	}
}
