package modules

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"

	migrationdata "github.com/kohanai/kohana/db"
	"github.com/kohanai/kohana/internal/clock"
	"github.com/kohanai/kohana/internal/config"
	"github.com/kohanai/kohana/internal/db"
	"github.com/kohanai/kohana/internal/logger"
)

// InfraModule provides config, logging, the database pool (migrated on
// startup), and the wall clock.
var InfraModule = fx.Module(
	"infra",
	fx.Provide(
		provideConfig,
		provideLogger,
		provideDBConn,
		provideClock,
	),
)

func provideConfig() (config.Config, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBConn(lc fx.Lifecycle, log *slog.Logger, cfg config.Config) (*pgxpool.Pool, error) {
	migrations, err := fs.Sub(migrationdata.MigrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("migrations fs: %w", err)
	}
	if err := db.Migrate(log, cfg.Postgres, migrations); err != nil {
		return nil, fmt.Errorf("db migrate: %w", err)
	}

	conn, err := db.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			conn.Close()
			return nil
		},
	})
	return conn, nil
}

func provideClock() clock.Clock {
	return clock.System()
}
