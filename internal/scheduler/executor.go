package scheduler

import (
	"context"
	"log/slog"

	"github.com/clawinfra/qbank/internal/qstore"
)

// StoreExecutor runs maintenance actions against a Q-value store.
type StoreExecutor struct {
	store  *qstore.Store
	logger *slog.Logger
}

// NewStoreExecutor wraps a store for use by the scheduler.
func NewStoreExecutor(store *qstore.Store, logger *slog.Logger) *StoreExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreExecutor{
		store:  store,
		logger: logger.With("component", "maintenance"),
	}
}

// Snapshot exports the full Q-table to a JSON file.
func (e *StoreExecutor) Snapshot(ctx context.Context, outPath string) error {
	return e.store.ExportJSON(ctx, outPath)
}

// LogStats logs row counts per agent type.
func (e *StoreExecutor) LogStats(ctx context.Context) error {
	st, err := e.store.Stats(ctx)
	if err != nil {
		return err
	}
	e.logger.Info("q-table stats",
		"entries", st.TotalEntries,
		"visits", st.TotalVisits,
		"agentTypes", len(st.PerAgentType))
	return nil
}

// Vacuum reclaims free database pages.
func (e *StoreExecutor) Vacuum(ctx context.Context) error {
	return e.store.Vacuum(ctx)
}
