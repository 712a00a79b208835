// Package app wires configuration, logging, storage and the engine together
// for the binaries under cmd/.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/budget-service/internal/config"
	"github.com/Dan9191/budget-service/internal/notify"
	"github.com/Dan9191/budget-service/internal/repository"
	"github.com/Dan9191/budget-service/internal/service"
	"github.com/Dan9191/budget-service/internal/store"
	"github.com/Dan9191/budget-service/internal/store/memory"
)

// NewLogger builds the JSON logger at the configured level
func NewLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)
	return logger
}

// OpenStore connects the configured storage driver. The returned closer
// releases the connection.
func OpenStore(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (store.Store, io.Closer, error) {
	switch cfg.StorageDriver {
	case config.DriverMemory:
		logger.Warn("Using in-memory storage, data is lost on restart")
		return memory.NewStore(), nopCloser{}, nil
	case config.DriverPostgres:
		db, err := sql.Open("postgres", cfg.DBConn)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to ping database: %w", err)
		}
		repo := repository.NewRepository(db)
		if err := repo.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		return repo, db, nil
	}
	return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
}

// NewNotifier returns the email sender when notices are enabled
func NewNotifier(cfg *config.Config, logger *logrus.Logger) notify.Notifier {
	if !cfg.NotifyEnabled {
		return notify.Nop{}
	}
	return notify.NewSender(cfg, logger)
}

// NewService builds the engine over st using the configured zone, grace
// days and notifier
func NewService(cfg *config.Config, st store.Store, logger *logrus.Logger) (*service.Service, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return service.NewService(st, logger,
		service.WithLocation(loc),
		service.WithOverdueGraceDays(cfg.OverdueGraceDays),
		service.WithNotifier(NewNotifier(cfg, logger)),
	), nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
