// Package main is the entry point of the background worker. It keeps stored
// mentor stats equal to what the session set implies.
//
// Usage:
//
//	worker                 run the reconcile job on SCHEDULER_RECONCILE_INTERVAL
//	worker -once           run one pass over every mentor and exit
//	worker -mentor <id>    recompute one mentor and exit
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/alem-hub/mentorship-hub/config"
	"github.com/alem-hub/mentorship-hub/internal/application/command"
	"github.com/alem-hub/mentorship-hub/internal/infrastructure/persistence"
	"github.com/alem-hub/mentorship-hub/internal/infrastructure/scheduler"
	"github.com/alem-hub/mentorship-hub/internal/infrastructure/scheduler/jobs"
	"github.com/alem-hub/mentorship-hub/pkg/logger"
	"github.com/alem-hub/mentorship-hub/pkg/timeutil"
)

func main() {
	mentorID := flag.String("mentor", "", "recompute the stats of one mentor and exit")
	once := flag.Bool("once", false, "run one reconcile pass over every mentor and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *mentorID, *once); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, mentorID string, once bool) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := newLogger(cfg).With(logger.Component("worker"))

	storage, err := persistence.Open(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer storage.Close()

	deps := command.Deps{
		Tx:       storage.Tx,
		Sessions: storage.Sessions,
		Mentors:  storage.Mentors,
		Clock:    timeutil.SystemClock{},
		Location: cfg.App.Location,
		Logger:   log,
	}
	if cache := persistence.OpenCache(ctx, cfg.Redis, log); cache != nil {
		defer cache.Close()
		deps.Profiles = persistence.ProfileCache(cache, cfg.Booking.ProfileCacheTTL, log)
	}
	recalc := command.NewRecalculateMentorStatsHandler(deps)

	// ─────────────────────────────────────────────────────────────────────────
	// One-shot modes
	// ─────────────────────────────────────────────────────────────────────────
	if mentorID != "" {
		res, err := recalc.Handle(ctx, command.RecalculateMentorStatsCommand{MentorID: mentorID})
		if err != nil {
			return fmt.Errorf("recalculate %s: %w", mentorID, err)
		}
		log.Info("mentor stats recalculated",
			logger.MentorID(res.MentorID),
			logger.Bool("changed", res.Changed),
			logger.Float64("rating", res.Stats.Rating),
			logger.Int("rated_sessions", res.Stats.RatedSessions),
			logger.Int("chats_completed", res.Stats.ChatsCompleted),
		)
		return nil
	}

	job := jobs.NewReconcileMentorStatsJob(recalc, log, cfg.Scheduler.JobTimeout)
	if once {
		return job.Run(ctx)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Scheduled mode
	// ─────────────────────────────────────────────────────────────────────────
	if !cfg.Scheduler.Enabled {
		log.Info("scheduler disabled, nothing to do")
		return nil
	}

	sched := scheduler.NewScheduler(scheduler.SchedulerConfig{Logger: log})
	if err := sched.Register(job, scheduler.Every(cfg.Scheduler.ReconcileInterval)); err != nil {
		return fmt.Errorf("register %s: %w", job.Name(), err)
	}
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	log.Info("worker running",
		logger.String("job", job.Name()),
		logger.Duration("interval", cfg.Scheduler.ReconcileInterval),
	)

	<-ctx.Done()
	log.Info("received shutdown signal")
	return sched.Stop()
}

func newLogger(cfg *config.Config) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	opts.Format = logger.Format(cfg.Observability.LogFormat)
	if cfg.App.Debug {
		opts.Level = logger.LevelDebug
	}
	return logger.New(opts).With(
		logger.String("service", cfg.App.Name),
		logger.String("env", string(cfg.App.Environment)),
	)
}
