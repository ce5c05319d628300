package correlation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Layered combines the keyed database with the thread-embedded marker.
// Records go to both; the database is the fast consistent path for reads
// and the marker is the redundancy channel that survives a lost database
// file (resolved threads are backfilled on the way through).
type Layered struct {
	db     Store
	thread Store
	logger *slog.Logger
}

// NewLayered creates a layered store. logger may be nil.
func NewLayered(db, thread Store, logger *slog.Logger) *Layered {
	if logger == nil {
		logger = slog.Default()
	}
	return &Layered{db: db, thread: thread, logger: logger}
}

// Record writes the mapping to the database first, then posts the marker.
// Either failure propagates: an orphaned ticket must surface loudly rather
// than silently succeed.
func (l *Layered) Record(ctx context.Context, threadID, ticketID string) error {
	if err := l.db.Record(ctx, threadID, ticketID); err != nil {
		return err
	}
	if err := l.thread.Record(ctx, threadID, ticketID); err != nil {
		return fmt.Errorf("mapping stored but marker post failed: %w", err)
	}
	return nil
}

// Resolve tries the database, then falls back to scanning the thread for
// the marker. A fallback hit is written back to the database.
func (l *Layered) Resolve(ctx context.Context, threadID string) (string, error) {
	ticketID, err := l.db.Resolve(ctx, threadID)
	if err == nil {
		return ticketID, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", err
	}

	ticketID, err = l.thread.Resolve(ctx, threadID)
	if err != nil {
		return "", err
	}

	if err := l.db.Record(ctx, threadID, ticketID); err != nil {
		// Backfill is best effort; the caller already has its answer.
		l.logger.Warn("correlation backfill failed", "thread", threadID, "error", err)
	}
	return ticketID, nil
}
