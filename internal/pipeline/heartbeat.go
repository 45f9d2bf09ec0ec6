package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"overdub/internal/jobs"
	"overdub/internal/logging"
)

// HeartbeatMonitor manages job claims and stale claim reclamation.
type HeartbeatMonitor struct {
	store             *jobs.Store
	logger            *slog.Logger
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
}

// NewHeartbeatMonitor creates a new monitor.
func NewHeartbeatMonitor(store *jobs.Store, logger *slog.Logger, interval, timeout time.Duration) *HeartbeatMonitor {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &HeartbeatMonitor{
		store:             store,
		logger:            logger,
		heartbeatInterval: interval,
		heartbeatTimeout:  timeout,
	}
}

// ReclaimStale releases claims whose worker has stopped heartbeating. The job
// keeps its status, so it re-enters the pipeline at the stage it was in.
func (h *HeartbeatMonitor) ReclaimStale(ctx context.Context, logger *slog.Logger) error {
	if h.heartbeatTimeout <= 0 {
		return nil
	}
	reclaimed, err := h.store.ReclaimStale(ctx, h.heartbeatTimeout)
	if err != nil {
		return err
	}
	if reclaimed > 0 {
		logger.Info("reclaimed stale job claims", logging.Int("count", reclaimed))
	}
	return nil
}

// StartLoop refreshes the claim on a specific job until context cancellation.
func (h *HeartbeatMonitor) StartLoop(ctx context.Context, wg *sync.WaitGroup, jobID string) {
	defer wg.Done()
	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()

	logger := h.logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.With(
		logging.String(logging.FieldComponent, "pipeline-heartbeat"),
		logging.String(logging.FieldJobID, jobID),
	)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.store.UpdateHeartbeat(ctx, jobID); err != nil {
				if errors.Is(err, context.Canceled) {
					logger.Debug("shutdown cancelled heartbeat update")
				} else {
					logger.Warn("heartbeat update failed", logging.Error(err))
				}
			}
		}
	}
}
