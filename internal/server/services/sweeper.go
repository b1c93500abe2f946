package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/dropbox/internal/logging"
)

// DefaultSweepInterval replaces a non-positive interval.
const DefaultSweepInterval = time.Minute

// Sweeper periodically auto-finalizes idle capture sessions and purges
// stale pairing codes.
type Sweeper struct {
	capture  *CaptureService
	pairing  *PairingService
	interval time.Duration
	logger   logging.Logger
}

func NewSweeper(capture *CaptureService, pairing *PairingService, interval time.Duration, logger logging.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		capture:  capture,
		pairing:  pairing,
		interval: interval,
		logger:   logger.With("module", "sweeper"),
	}
}

// Run sweeps every interval until ctx is cancelled. Failures are logged and
// retried on the next tick.
func (w *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info(ctx, "sweeper started", "interval", w.interval.String())
	for {
		select {
		case <-ctx.Done():
			w.logger.Info(ctx, "sweeper stopped")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep.
func (w *Sweeper) RunOnce(ctx context.Context) {
	n, err := w.capture.AutoFinalizeSessions(ctx)
	if err != nil {
		w.logger.Error(ctx, "auto-finalize failed", "error", err, "finalized", n)
	} else if n > 0 {
		w.logger.Info(ctx, "idle sessions finalized", "count", n)
	}

	if w.pairing == nil {
		return
	}
	purged, err := w.pairing.PurgeExpiredCodes(ctx)
	if err != nil {
		w.logger.Error(ctx, "pairing code purge failed", "error", err)
		return
	}
	if purged > 0 {
		w.logger.Debug(ctx, "expired pairing codes purged", "count", purged)
	}
}
