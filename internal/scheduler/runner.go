package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Executor performs job actions against the store.
type Executor interface {
	Snapshot(ctx context.Context, outPath string) error
	LogStats(ctx context.Context) error
	Vacuum(ctx context.Context) error
}

// JobRunner executes a single job on schedule.
type JobRunner struct {
	job      *Job
	ticker   *time.Ticker
	logger   *slog.Logger
	executor Executor
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewJobRunner creates a runner for one job.
func NewJobRunner(job *Job, executor Executor, log *slog.Logger) *JobRunner {
	if log == nil {
		log = slog.Default()
	}
	return &JobRunner{
		job:      job,
		executor: executor,
		logger:   log.With("job", job.ID),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins executing the job on schedule. Blocks until the
// context is cancelled or Stop is called; run it in a goroutine.
func (r *JobRunner) Start(ctx context.Context) {
	defer close(r.doneCh)

	if !r.job.Enabled {
		r.logger.Debug("job disabled, not starting")
		return
	}

	nextRun, err := r.job.NextRun(time.Now())
	if err != nil {
		r.logger.Error("failed to calculate next run", "error", err)
		return
	}
	r.job.State.NextRunAt = nextRun
	r.logger.Info("job runner started", "next_run", nextRun.Format(time.RFC3339))

	var tickerDuration time.Duration
	switch r.job.Schedule.Kind {
	case "interval":
		tickerDuration = time.Duration(r.job.Schedule.IntervalMs) * time.Millisecond
	case "cron", "at":
		// Poll once a minute and compare against NextRunAt.
		tickerDuration = 1 * time.Minute
	}

	r.ticker = time.NewTicker(tickerDuration)
	defer r.ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("job runner stopped (context cancelled)")
			return
		case <-r.stopCh:
			r.logger.Info("job runner stopped")
			return
		case now := <-r.ticker.C:
			shouldRun := r.job.Schedule.Kind == "interval" || !now.Before(r.job.State.NextRunAt)
			if !shouldRun {
				continue
			}

			r.executeJob(ctx)

			nextRun, err := r.job.NextRun(time.Now())
			if err != nil {
				r.logger.Error("failed to calculate next run", "error", err)
			} else {
				r.job.State.NextRunAt = nextRun
				r.logger.Debug("next run scheduled", "next_run", nextRun.Format(time.RFC3339))
			}
		}
	}
}

// Stop stops the job runner and waits for it to finish.
func (r *JobRunner) Stop() {
	close(r.stopCh)
	<-r.doneCh
}

// executeJob runs the job's action once and records the outcome in
// the job state.
func (r *JobRunner) executeJob(ctx context.Context) {
	start := time.Now()
	r.logger.Info("executing job", "action", r.job.Action.Kind)

	err := r.runAction(ctx)

	r.job.State.LastRunAt = start
	r.job.State.LastDuration = time.Since(start)
	r.job.State.RunCount++

	if err != nil {
		r.job.State.ErrorCount++
		r.job.State.LastError = err.Error()
		r.logger.Error("job failed", "error", err, "duration", r.job.State.LastDuration)
		return
	}
	r.job.State.LastError = ""
	r.logger.Info("job completed", "duration", r.job.State.LastDuration)
}

func (r *JobRunner) runAction(ctx context.Context) error {
	switch r.job.Action.Kind {
	case "snapshot":
		return r.executor.Snapshot(ctx, r.job.Action.OutPath)
	case "stats":
		return r.executor.LogStats(ctx)
	case "vacuum":
		return r.executor.Vacuum(ctx)
	default:
		return fmt.Errorf("unknown action kind: %s", r.job.Action.Kind)
	}
}
