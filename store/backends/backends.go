// Package backends opens the leave.Backend selected by configuration.
package backends

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/warp/leave-engine/config"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/memory"
	"github.com/warp/leave-engine/store/postgres"
	"github.com/warp/leave-engine/store/sqlite"
)

// Open returns the backend for cfg.Driver. The caller closes it.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (leave.Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Driver {
	case config.DriverSQLite:
		if cfg.Path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
		st, err := sqlite.New(cfg.Path)
		if err != nil {
			return nil, err
		}
		logger.Info("database opened", zap.String("driver", cfg.Driver), zap.String("path", cfg.Path))
		return st, nil

	case config.DriverPostgres:
		st, err := postgres.New(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		logger.Info("database opened", zap.String("driver", cfg.Driver))
		return st, nil

	case config.DriverMemory:
		logger.Warn("using in-memory store, data is lost on exit")
		return memory.New(), nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}
