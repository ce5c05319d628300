// Package reconcile periodically repairs the correlation database from the
// markers embedded in active threads, covering db resets and threads
// created by earlier deployments.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/forumdesk-io/forumdesk/internal/correlation"
)

// ThreadLister returns the ids of the support forum's active threads.
type ThreadLister interface {
	ActiveThreads(ctx context.Context) ([]string, error)
}

// Reconciler backfills thread → ticket mappings into the database.
type Reconciler struct {
	threads  ThreadLister
	db       correlation.Store
	markers  correlation.Store
	interval time.Duration
	cron     *cron.Cron
	logger   *slog.Logger
}

// New creates a reconciler. markers should resolve from the in-thread
// marker without a long retry budget; db is the keyed store being
// repaired. logger may be nil.
func New(threads ThreadLister, db, markers correlation.Store, interval time.Duration, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		threads:  threads,
		db:       db,
		markers:  markers,
		interval: interval,
		cron:     cron.New(),
		logger:   logger,
	}
}

// Start schedules periodic runs. Blocks until context is cancelled.
func (r *Reconciler) Start(ctx context.Context) error {
	_, err := r.cron.AddFunc(fmt.Sprintf("@every %s", r.interval), func() {
		if err := r.Run(ctx); err != nil {
			r.logger.Error("reconcile pass failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("reconcile: schedule: %w", err)
	}

	r.cron.Start()
	r.logger.Info("reconciler started", "interval", r.interval)

	<-ctx.Done()
	r.cron.Stop()
	r.logger.Info("reconciler stopped")
	return ctx.Err()
}

// Run executes a single reconciliation pass.
func (r *Reconciler) Run(ctx context.Context) error {
	threadIDs, err := r.threads.ActiveThreads(ctx)
	if err != nil {
		return fmt.Errorf("reconcile: list active threads: %w", err)
	}

	repaired := 0
	for _, threadID := range threadIDs {
		if err := ctx.Err(); err != nil {
			return err
		}

		if _, err := r.db.Resolve(ctx, threadID); err == nil {
			continue
		} else if !errors.Is(err, correlation.ErrNotFound) {
			return err
		}

		ticketID, err := r.markers.Resolve(ctx, threadID)
		if err != nil {
			if errors.Is(err, correlation.ErrNotFound) {
				// Thread without a marker: it was never bridged.
				continue
			}
			r.logger.Warn("marker scan failed", "thread", threadID, "error", err)
			continue
		}

		if err := r.db.Record(ctx, threadID, ticketID); err != nil {
			return fmt.Errorf("reconcile: backfill %s: %w", threadID, err)
		}
		r.logger.Info("mapping backfilled", "thread", threadID, "ticket", ticketID)
		repaired++
	}

	if repaired > 0 {
		r.logger.Info("reconcile pass complete", "threads", len(threadIDs), "repaired", repaired)
	}
	return nil
}
