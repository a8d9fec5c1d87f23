package postgres

import (
	"context"
	"fmt"

	"signal_bot/internal/modules/config"
	"signal_bot/internal/modules/postgres/service"
	"signal_bot/pkg/db"
	"signal_bot/pkg/logger"

	"go.uber.org/fx"
)

// NewSignals возвращает nil, если db.dsn не задан: Postgres опционален.
func NewSignals(lc fx.Lifecycle, cfg *config.Config) (*service.Signals, error) {
	if cfg.DB.DSN == "" {
		logger.Info("[DB] dsn is empty, postgres disabled")
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DB.ConnectTimeout)
	defer cancel()

	pool, err := db.NewPool(ctx, db.PoolConfig{
		DSN:            cfg.DB.DSN,
		MaxConns:       cfg.DB.MaxConns,
		ConnectTimeout: cfg.DB.ConnectTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}

	tm := db.NewPgTxManager(pool)
	repo := service.NewSignals(tm)
	if err := repo.EnsureSchema(ctx); err != nil {
		tm.Close()
		return nil, err
	}
	logger.Info("[DB] postgres connected, schema ready")

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			tm.Close()
			return nil
		},
	})
	return repo, nil
}

func Module() fx.Option {
	return fx.Module("postgres",
		fx.Provide(
			NewSignals,
		),
	)
}
