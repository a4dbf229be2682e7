// Package janitor purges resolved outbox entries past the retention window.
package janitor

import (
	"context"
	"time"

	"github.com/matheus3301/smsd/internal/store"
	"go.uber.org/zap"
)

// Janitor periodically deletes sent/failed outbox entries older than the
// retention window. Pending entries are never touched, so it is safe to run
// alongside the inbound pipeline and the relay's poll/ack traffic.
type Janitor struct {
	db            *store.DB
	interval      time.Duration
	retentionDays int
	logger        *zap.Logger
	cancel        context.CancelFunc
}

// New creates a janitor. Interval defaults to an hour, retention to 7 days.
func New(db *store.DB, interval time.Duration, retentionDays int, logger *zap.Logger) *Janitor {
	if interval <= 0 {
		interval = time.Hour
	}
	if retentionDays <= 0 {
		retentionDays = 7
	}
	return &Janitor{
		db:            db,
		interval:      interval,
		retentionDays: retentionDays,
		logger:        logger,
	}
}

// Start begins the cleanup loop. The first sweep runs immediately.
func (j *Janitor) Start(ctx context.Context) {
	ctx, j.cancel = context.WithCancel(ctx)
	go j.loop(ctx)
}

// Stop stops the cleanup loop.
func (j *Janitor) Stop() {
	if j.cancel != nil {
		j.cancel()
	}
}

func (j *Janitor) loop(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.sweep()
	for {
		select {
		case <-ticker.C:
			j.sweep()
		case <-ctx.Done():
			return
		}
	}
}

func (j *Janitor) sweep() {
	deleted, err := j.db.CleanupOutbox(j.retentionDays)
	if err != nil {
		j.logger.Error("outbox cleanup failed", zap.Error(err))
		return
	}
	if deleted > 0 {
		j.logger.Info("outbox cleanup",
			zap.Int64("deleted", deleted),
			zap.Int("retention_days", j.retentionDays))
	}
}
