// Package jobs contains the scheduled jobs of the booking service.
package jobs

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/alem-hub/mentorship-hub/internal/application/command"
	"github.com/alem-hub/mentorship-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILE MENTOR STATS JOB
// ══════════════════════════════════════════════════════════════════════════════

// ReconcileJobName is the registered name of ReconcileMentorStatsJob.
const ReconcileJobName = "reconcile_mentor_stats"

// Reconciler recomputes the stats of every mentor.
type Reconciler interface {
	ReconcileAll(ctx context.Context) (*command.ReconcileResult, error)
}

// ReconcileRun summarises one pass.
type ReconcileRun struct {
	StartedAt time.Time
	Duration  time.Duration
	Result    command.ReconcileResult
}

// ReconcileMentorStatsJob rewrites stored mentor aggregates from the session
// set. Drift is logged by the handler; a pass with failed mentors fails the
// job so the scheduler records it.
type ReconcileMentorStatsJob struct {
	reconciler Reconciler
	log        *logger.Logger
	timeout    time.Duration

	lastRun atomic.Pointer[ReconcileRun]
}

// NewReconcileMentorStatsJob creates the job. timeout bounds one pass; zero
// means no bound.
func NewReconcileMentorStatsJob(reconciler Reconciler, log *logger.Logger, timeout time.Duration) *ReconcileMentorStatsJob {
	if log == nil {
		log = logger.Nop()
	}
	return &ReconcileMentorStatsJob{
		reconciler: reconciler,
		log:        log.With(logger.Component("job"), logger.String("job", ReconcileJobName)),
		timeout:    timeout,
	}
}

// Name returns the job name.
func (j *ReconcileMentorStatsJob) Name() string {
	return ReconcileJobName
}

// Description returns a human-readable description.
func (j *ReconcileMentorStatsJob) Description() string {
	return "Recomputes rating, chat count and earnings of every mentor from completed sessions"
}

// Run executes one reconciliation pass.
func (j *ReconcileMentorStatsJob) Run(ctx context.Context) error {
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	startedAt := time.Now()
	res, err := j.reconciler.ReconcileAll(ctx)
	if err != nil {
		return fmt.Errorf("reconcile mentor stats: %w", err)
	}

	run := &ReconcileRun{StartedAt: startedAt, Duration: time.Since(startedAt), Result: *res}
	j.lastRun.Store(run)

	j.log.Info("reconciliation pass finished",
		logger.Int("checked", res.Checked),
		logger.Int("changed", res.Changed),
		logger.Int("failed", len(res.Failed)),
		logger.Duration("duration", run.Duration),
	)
	if len(res.Failed) > 0 {
		return fmt.Errorf("reconcile mentor stats: %d mentors failed: %v", len(res.Failed), res.Failed)
	}
	return nil
}

// LastRun returns the most recent completed pass, or nil.
func (j *ReconcileMentorStatsJob) LastRun() *ReconcileRun {
	return j.lastRun.Load()
}
