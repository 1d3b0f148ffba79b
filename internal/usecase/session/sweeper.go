package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/tablefinder/internal/metrics"
)

// Sweeper periodically removes idle sessions.
// Single process only: sessions live in memory.
type Sweeper struct {
	store    Store
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
	logger   *zap.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewSweeper creates a sweeper that runs every interval.
func NewSweeper(store Store, ttl, interval time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		store:    store,
		ttl:      ttl,
		interval: interval,
		now:      time.Now,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the sweep loop in the background.
func (w *Sweeper) Start(ctx context.Context) {
	w.logger.Info("Session sweeper starting",
		zap.Duration("interval", w.interval),
		zap.Duration("ttl", w.ttl),
	)
	go w.run(ctx)
}

// Stop signals the loop to exit and waits for it.
func (w *Sweeper) Stop() {
	select {
	case <-w.stopCh:
	default:
		close(w.stopCh)
	}
	<-w.doneCh
	w.logger.Info("Session sweeper stopped")
}

func (w *Sweeper) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.Sweep(ctx)
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Sweep runs one expiry pass and returns the number of sessions removed.
func (w *Sweeper) Sweep(ctx context.Context) int {
	removed := w.store.ExpireSweep(ctx, w.now(), w.ttl)
	stats := w.store.Stats(ctx)

	metrics.SessionsExpiredTotal.Add(float64(removed))
	metrics.SessionsActive.Set(float64(stats.Sessions))

	if removed > 0 {
		w.logger.Info("Expired idle sessions",
			zap.Int("removed", removed),
			zap.Int("remaining", stats.Sessions),
		)
	}
	return removed
}
