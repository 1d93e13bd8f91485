// Package persistence selects and opens the configured storage backend.
package persistence

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/alem-hub/mentorship-hub/config"
	"github.com/alem-hub/mentorship-hub/internal/domain/mentor"
	"github.com/alem-hub/mentorship-hub/internal/domain/session"
	"github.com/alem-hub/mentorship-hub/internal/domain/shared"
	"github.com/alem-hub/mentorship-hub/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/mentorship-hub/internal/infrastructure/persistence/sqlite"
	"github.com/alem-hub/mentorship-hub/pkg/logger"
	"github.com/alem-hub/mentorship-hub/pkg/retry"
)

// Storage bundles the repositories of one backend with its transactor.
type Storage struct {
	Driver   string
	Tx       shared.Transactor
	Sessions session.Repository
	Mentors  mentor.Repository

	ping  func(ctx context.Context) error
	close func() error
}

// Ping checks the backend connection.
func (s *Storage) Ping(ctx context.Context) error {
	return s.ping(ctx)
}

// Close releases the backend connection.
func (s *Storage) Close() error {
	return s.close()
}

// Open connects to the backend named by cfg.Driver. PostgreSQL connections
// are retried while the database starts up.
func Open(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*Storage, error) {
	if log == nil {
		log = logger.Nop()
	}
	log = log.With(logger.Component("storage"), logger.String("driver", cfg.Driver))

	switch cfg.Driver {
	case config.DriverPostgres:
		return openPostgres(ctx, cfg, log)
	case config.DriverSQLite:
		return openSQLite(cfg, log)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

func openPostgres(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*Storage, error) {
	settings := postgres.DefaultPoolSettings()
	if cfg.MaxOpenConns > 0 {
		settings.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		settings.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		settings.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	if cfg.ConnMaxIdleTime > 0 {
		settings.MaxConnIdleTime = cfg.ConnMaxIdleTime
	}

	retrier := retry.ConnectRetrier(func(attempt int, err error, delay time.Duration) {
		log.Warn("database not ready, retrying",
			logger.Int("attempt", attempt),
			logger.Duration("delay", delay),
			logger.Err(err),
		)
	})

	var conn *postgres.Connection
	err := retrier.Do(ctx, func(ctx context.Context) error {
		var err error
		conn, err = postgres.NewConnection(ctx, cfg.URL, settings)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if cfg.AutoMigrate {
		if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
			conn.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		log.Info("migrations applied")
	}

	log.Info("database connection established")
	return &Storage{
		Driver:   config.DriverPostgres,
		Tx:       conn,
		Sessions: postgres.NewSessionRepository(conn),
		Mentors:  postgres.NewMentorRepository(conn),
		ping:     conn.Ping,
		close: func() error {
			conn.Close()
			return nil
		},
	}, nil
}

func openSQLite(cfg config.DatabaseConfig, log *logger.Logger) (*Storage, error) {
	if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	store, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		return nil, err
	}

	log.Info("database opened", logger.String("path", cfg.SQLitePath))
	return &Storage{
		Driver:   config.DriverSQLite,
		Tx:       store,
		Sessions: store.Sessions(),
		Mentors:  store.Mentors(),
		ping:     store.Ping,
		close:    store.Close,
	}, nil
}
