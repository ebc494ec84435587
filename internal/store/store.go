// Package store opens the directory and access log backend selected by
// DB_DRIVER.
package store

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/roster/internal/config"
	"github.com/JonMunkholm/roster/internal/core"
	"github.com/JonMunkholm/roster/internal/store/memory"
	"github.com/JonMunkholm/roster/internal/store/postgres"
	"github.com/JonMunkholm/roster/internal/store/sqlite"
)

// Backend bundles the stores of one driver. Close releases its connections.
type Backend struct {
	Driver    string
	Directory core.Directory
	AccessLog core.AccessLog

	close func()
}

// Close releases the backend's resources. It is safe to call more than once.
func (b *Backend) Close() {
	if b.close != nil {
		b.close()
		b.close = nil
	}
}

// Open connects to the configured backend and applies migrations.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Backend, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return &Backend{
			Driver:    cfg.Driver,
			Directory: memory.NewDirectory(),
			AccessLog: memory.NewAccessLog(),
		}, nil

	case config.DriverSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		w := sqlite.NewWorker(db)
		return &Backend{
			Driver:    cfg.Driver,
			Directory: sqlite.NewDirectory(db, w),
			AccessLog: sqlite.NewAccessLog(db, w),
			close: func() {
				w.Close()
				_ = db.Close()
			},
		}, nil

	case config.DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return &Backend{
			Driver:    cfg.Driver,
			Directory: postgres.NewDirectory(pool),
			AccessLog: postgres.NewAccessLog(pool),
			close:     pool.Close,
		}, nil
	}

	return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}
