package transcript

import (
	"context"
	"log/slog"
	"time"
)

// PruneWorker periodically removes exchanges older than the retention window.
type PruneWorker struct {
	store  Store
	cfg    Config
	logger *slog.Logger
	stopCh chan struct{}
}

// NewPruneWorker creates a prune worker for the given store.
func NewPruneWorker(store Store, cfg Config) *PruneWorker {
	if cfg.PruneInterval <= 0 {
		cfg.PruneInterval = DefaultConfig().PruneInterval
	}
	return &PruneWorker{
		store:  store,
		cfg:    cfg,
		logger: slog.Default().With(slog.String("component", "transcript.prune")),
		stopCh: make(chan struct{}),
	}
}

// Start begins the periodic prune loop. Call Stop() to terminate.
func (w *PruneWorker) Start() {
	go w.run()
}

// Stop terminates the prune worker.
func (w *PruneWorker) Stop() {
	close(w.stopCh)
}

func (w *PruneWorker) run() {
	ticker := time.NewTicker(w.cfg.PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if _, err := w.RunOnce(ctx); err != nil {
				w.logger.Warn("prune failed", slog.Any("error", err))
			}
			cancel()
		}
	}
}

// RunOnce executes a single prune pass. A zero retention keeps everything.
func (w *PruneWorker) RunOnce(ctx context.Context) (*PruneResult, error) {
	if w.cfg.Retention <= 0 {
		return &PruneResult{}, nil
	}

	result, err := w.store.Prune(ctx, time.Now().Add(-w.cfg.Retention))
	if err != nil {
		return nil, err
	}
	if result.Removed > 0 {
		w.logger.Info("pruned exchanges",
			slog.Int("removed", result.Removed),
			slog.Int("remaining", result.TotalExchanges),
		)
	}
	return result, nil
}
