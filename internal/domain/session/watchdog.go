package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"zapdesk/services/routing-api/internal/infrastructure/metrics"
)

// Watchdog sweeps sessions stuck in AWAITING_SCAN past their QR deadline
// and reverts them to STOPPED. The timeout is reported, never retried
// automatically.
type Watchdog struct {
	store     Store
	interval  time.Duration
	log       zerolog.Logger
	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewWatchdog creates a QR expiry watchdog.
func NewWatchdog(store Store, interval time.Duration, log zerolog.Logger) *Watchdog {
	return &Watchdog{
		store:    store,
		interval: interval,
		log:      log.With().Str("component", "session-watchdog").Logger(),
		done:     make(chan struct{}),
	}
}

// Start begins the sweep loop in background.
// Safe to call multiple times - only the first call starts the watchdog.
func (w *Watchdog) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		w.wg.Add(1)
		go w.run(ctx)
		w.log.Info().Dur("interval", w.interval).Msg("session watchdog started")
	})
}

// Stop gracefully shuts down the watchdog.
func (w *Watchdog) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.wg.Wait()
		w.log.Info().Msg("session watchdog stopped")
	})
}

func (w *Watchdog) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// sweep reverts every expired AWAITING_SCAN session to STOPPED.
func (w *Watchdog) sweep(ctx context.Context) {
	expired, err := w.store.ListExpiredAwaitingScan(ctx, time.Now())
	if err != nil {
		w.log.Error().Err(err).Msg("failed to list expired sessions")
		return
	}

	for _, sess := range expired {
		sess.Status = StatusStopped
		sess.ClearQR()
		if err := w.store.Update(ctx, sess); err != nil {
			w.log.Error().Err(err).Str("session", sess.Name).Msg("failed to revert expired session")
			continue
		}
		metrics.SessionQRExpirations.Inc()
		w.log.Warn().
			Str("tenant_id", sess.TenantID).
			Str("session", sess.Name).
			Msg("QR scan window expired, session reverted to STOPPED")
	}
}
