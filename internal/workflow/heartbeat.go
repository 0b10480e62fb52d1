package workflow

import (
	"context"
	"errors"
	"time"

	"log/slog"

	"showrunner/internal/logging"
	"showrunner/internal/store"
)

// HeartbeatMonitor renews job leases while stages execute and returns jobs
// whose holder went quiet back to the queue.
type HeartbeatMonitor struct {
	store    *store.Store
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration
}

// NewHeartbeatMonitor creates a monitor. A non-positive interval disables
// lease renewal; a non-positive timeout disables reclaiming.
func NewHeartbeatMonitor(st *store.Store, logger *slog.Logger, interval, timeout time.Duration) *HeartbeatMonitor {
	return &HeartbeatMonitor{
		store:    st,
		logger:   logging.NewComponentLogger(logger, "workflow-heartbeat"),
		interval: interval,
		timeout:  timeout,
	}
}

// ReclaimStale returns running jobs with expired heartbeats to pending.
func (h *HeartbeatMonitor) ReclaimStale(ctx context.Context, logger *slog.Logger) {
	if h.timeout <= 0 {
		return
	}
	cutoff := time.Now().UTC().Add(-h.timeout)
	reclaimed, err := h.store.ReclaimStaleJobs(ctx, cutoff)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warn("failed to reclaim stale jobs", logging.Error(err))
		}
		return
	}
	if reclaimed > 0 {
		logger.Info("reclaimed stale jobs", logging.Int64("count", reclaimed))
	}
}

// Run renews the job's lease until the context ends. Losing the lease calls
// onLost and stops: the work belongs to whoever reclaimed the job.
func (h *HeartbeatMonitor) Run(ctx context.Context, job *store.Job, onLost func()) {
	if h.interval <= 0 {
		return
	}
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := h.store.HeartbeatJob(ctx, job)
			if err == nil {
				continue
			}
			if errors.Is(err, store.ErrLeaseConflict) {
				h.logger.Warn("job lease lost; cancelling stage execution",
					logging.Int64(logging.FieldJobID, job.ID),
				)
				if onLost != nil {
					onLost()
				}
				return
			}
			if ctx.Err() != nil {
				return
			}
			h.logger.Warn("job heartbeat failed",
				logging.Int64(logging.FieldJobID, job.ID),
				logging.Error(err),
			)
		}
	}
}
