// Package main is the entry point of the booking API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/alem-hub/mentorship-hub/config"
	"github.com/alem-hub/mentorship-hub/internal/application/command"
	"github.com/alem-hub/mentorship-hub/internal/application/eventhandler"
	"github.com/alem-hub/mentorship-hub/internal/application/query"
	"github.com/alem-hub/mentorship-hub/internal/infrastructure/messaging"
	"github.com/alem-hub/mentorship-hub/internal/infrastructure/persistence"
	"github.com/alem-hub/mentorship-hub/internal/infrastructure/persistence/redis"
	httpserver "github.com/alem-hub/mentorship-hub/internal/interface/http"
	"github.com/alem-hub/mentorship-hub/internal/interface/http/handlers"
	"github.com/alem-hub/mentorship-hub/pkg/logger"
	"github.com/alem-hub/mentorship-hub/pkg/timeutil"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. Configuration & logging
	// ─────────────────────────────────────────────────────────────────────────
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := newLogger(cfg)
	log.Info("starting mentorship hub API",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.String("timezone", cfg.App.Location.String()),
		logger.String("driver", cfg.Database.Driver),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. Storage
	// ─────────────────────────────────────────────────────────────────────────
	storage, err := persistence.Open(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database connection")
		_ = storage.Close()
	}()

	cache := persistence.OpenCache(ctx, cfg.Redis, log)
	if cache != nil {
		defer cache.Close()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. Event bus & notification trigger points
	// ─────────────────────────────────────────────────────────────────────────
	busConfig := messaging.DefaultInMemoryEventBusConfig()
	busConfig.Logger = log
	bus := messaging.NewInMemoryEventBus(busConfig)
	defer func() {
		log.Info("closing event bus")
		_ = bus.Close()
	}()

	var notifier eventhandler.Notifier = eventhandler.LogNotifier{Log: log}
	if cache != nil {
		notifier = redis.NewNotificationPublisher(cache)
	}
	if err := eventhandler.NewNotificationTrigger(notifier, log).Register(bus); err != nil {
		return fmt.Errorf("register notification trigger: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. Application layer
	// ─────────────────────────────────────────────────────────────────────────
	clock := timeutil.SystemClock{}
	deps := command.Deps{
		Tx:        storage.Tx,
		Sessions:  storage.Sessions,
		Mentors:   storage.Mentors,
		Clock:     clock,
		Location:  cfg.App.Location,
		Publisher: bus,
		Logger:    log,
		Lookahead: cfg.Booking.Lookahead(),
	}

	var profileCache query.ProfileCache
	if cache != nil {
		pc := persistence.ProfileCache(cache, cfg.Booking.ProfileCacheTTL, log)
		profileCache = pc
		deps.Profiles = pc
	}

	health := handlers.NewCompositeHealthChecker(cfg.App.Version)
	health.AddCheck("database", handlers.PingCheck(storage))
	if cache != nil {
		health.AddCheck("redis", handlers.PingCheck(cache))
	}

	httpDeps := httpserver.Dependencies{
		CreateBooking:    command.NewCreateBookingRequestHandler(deps),
		ApproveBooking:   command.NewApproveBookingHandler(deps),
		RejectBooking:    command.NewRejectBookingHandler(deps),
		CancelSession:    command.NewCancelSessionHandler(deps),
		CompleteSession:  command.NewCompleteSessionHandler(deps),
		MarkNoShow:       command.NewMarkNoShowHandler(deps),
		RateSession:      command.NewRateSessionHandler(deps),
		RecalculateStats: command.NewRecalculateMentorStatsHandler(deps),
		UpsertMentor:     command.NewUpsertMentorProfileHandler(deps),

		GetAvailableSlots: query.NewGetAvailableSlotsHandler(storage.Mentors, storage.Sessions, clock, cfg.App.Location, cfg.Booking.Lookahead()),
		GetMentorProfile: query.NewGetMentorProfileHandler(storage.Mentors, storage.Sessions, profileCache, log).
			WithRecentReviews(cfg.Booking.RecentReviews),
		GetSession:   query.NewGetSessionHandler(storage.Sessions, clock),
		ListSessions: query.NewListSessionsHandler(storage.Sessions, storage.Mentors, clock),

		Auth:          handlers.NewJWTAuth(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer),
		HealthChecker: health,
		Logger:        log,
		Clock:         clock,
	}
	if len(cfg.Auth.AdminAPIKeyHashes) > 0 {
		httpDeps.AdminAuth = handlers.NewAPIKeyAuth("X-API-Key", cfg.Auth.AdminAPIKeyHashes)
	} else {
		log.Warn("no admin API keys configured, admin routes disabled")
	}
	if cache != nil && cfg.HTTP.RateLimit > 0 {
		httpDeps.RateLimiter = redis.NewRateLimiter(cache, cfg.HTTP.RateLimit, cfg.HTTP.RateLimitWindow)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. HTTP server
	// ─────────────────────────────────────────────────────────────────────────
	httpConfig := httpserver.DefaultConfig()
	httpConfig.Host = cfg.HTTP.Host
	httpConfig.Port = cfg.HTTP.Port
	httpConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	httpConfig.WriteTimeout = cfg.HTTP.WriteTimeout
	httpConfig.IdleTimeout = cfg.HTTP.IdleTimeout
	httpConfig.RequestTimeout = cfg.HTTP.RequestTimeout
	httpConfig.RateLimit = cfg.HTTP.RateLimit
	httpConfig.RateLimitWindow = cfg.HTTP.RateLimitWindow
	httpConfig.AllowedOrigins = cfg.HTTP.CORSAllowedOrigins
	httpConfig.Location = cfg.App.Location
	httpConfig.Version = cfg.App.Version

	server := httpserver.NewServer(httpConfig, httpDeps)
	errCh := server.StartAsync()

	// ─────────────────────────────────────────────────────────────────────────
	// 6. Graceful shutdown
	// ─────────────────────────────────────────────────────────────────────────
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", logger.Err(err))
		return err
	}
	log.Info("shutdown complete")
	return nil
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
