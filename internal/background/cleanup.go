package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/JonathanArroyaveGonzalez/sapfi-auth/internal/metrics"
)

// Reclaimer is one store's expired-row sweep
type Reclaimer interface {
	Reclaim(ctx context.Context) (int64, error)
}

// ReclaimerFunc adapts a function to the Reclaimer interface
type ReclaimerFunc func(ctx context.Context) (int64, error)

func (f ReclaimerFunc) Reclaim(ctx context.Context) (int64, error) { return f(ctx) }

type sweep struct {
	store     string
	reclaimer Reclaimer
}

// CleanupManager periodically sweeps expired rows out of the time-bounded
// stores. Sweeps are isolated: a failure in one store never stops the rest,
// and a failed cycle is retried on the next tick.
type CleanupManager struct {
	sweeps   []sweep
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(logger *slog.Logger, interval time.Duration) *CleanupManager {
	return &CleanupManager{
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Register adds a store's sweep under the given name
func (cm *CleanupManager) Register(store string, reclaimer Reclaimer) {
	cm.sweeps = append(cm.sweeps, sweep{store: store, reclaimer: reclaimer})
}

// Start begins the periodic reclamation task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.runCycle(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCycle(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// runCycle runs every registered sweep once
func (cm *CleanupManager) runCycle(ctx context.Context) {
	cm.logger.Info("starting reclamation cycle")

	for _, sw := range cm.sweeps {
		cm.runSweep(ctx, sw)
	}
}

func (cm *CleanupManager) runSweep(ctx context.Context, sw sweep) {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rowsDeleted, err := sw.reclaimer.Reclaim(sweepCtx)
	if err != nil {
		metrics.ReclamationFailures.WithLabelValues(sw.store).Inc()
		cm.logger.Error("reclamation sweep failed",
			slog.String("store", sw.store),
			slog.Any("error", err))
		return
	}

	metrics.ReclaimedRows.WithLabelValues(sw.store).Add(float64(rowsDeleted))
	if rowsDeleted > 0 {
		cm.logger.Info("reclamation sweep completed",
			slog.String("store", sw.store),
			slog.Int64("rows_deleted", rowsDeleted))
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
