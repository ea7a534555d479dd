package shared

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ActivityEntry represents a record stored in activity_logs.
type ActivityEntry struct {
	PrincipalID int64
	Event       string
	Description string
	Meta        map[string]any
	At          time.Time
}

// ActivityLogger writes records into activity_logs. Login and elevation
// decisions never depend on it: RecordAsync swallows failures after logging
// them.
type ActivityLogger struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewActivityLogger returns a new ActivityLogger.
func NewActivityLogger(pool *pgxpool.Pool, logger *slog.Logger) *ActivityLogger {
	return &ActivityLogger{pool: pool, logger: logger}
}

// Record persists the log entry.
func (l *ActivityLogger) Record(ctx context.Context, entry ActivityEntry) error {
	if l == nil || l.pool == nil {
		return errors.New("activity logger not initialised")
	}
	if entry.Event == "" {
		return errors.New("activity log requires an event")
	}
	metaJSON, err := json.Marshal(entry.Meta)
	if err != nil {
		return err
	}
	_, err = l.pool.Exec(ctx,
		`INSERT INTO activity_logs (principal_id, event, description, meta, occurred_at) VALUES ($1, $2, $3, $4, COALESCE(NULLIF($5, '0001-01-01 00:00:00+00'::timestamptz), NOW()))`,
		entry.PrincipalID, entry.Event, entry.Description, metaJSON, entry.At)
	return err
}

// RecordAsync is the fire-and-forget path used on every auth decision. The
// write happens off the request goroutine so a slow or unavailable log table
// never delays the authorization answer.
func (l *ActivityLogger) RecordAsync(ctx context.Context, entry ActivityEntry) {
	if l == nil {
		return
	}
	detached := context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(detached, 5*time.Second)
		defer cancel()
		if err := l.Record(ctx, entry); err != nil {
			if l.logger != nil {
				l.logger.Warn("activity log record", slog.String("event", entry.Event), slog.Any("error", err))
			}
		}
	}()
}
