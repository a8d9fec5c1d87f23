package config

import (
	"context"

	"signal_bot/pkg/logger"
	"signal_bot/pkg/tracing"

	"go.uber.org/fx"
)

// Module регистрирует конфиг как fx-провайдер и поднимает логгер с трейсером.
func Module() fx.Option {
	return fx.Module("config",
		fx.Provide(
			NewConfig,
		),
		fx.Invoke(InitObservability),
	)
}

func InitObservability(lc fx.Lifecycle, cfg *Config) error {
	if err := logger.Init(cfg.Log.Level, cfg.Service.Name); err != nil {
		return err
	}
	closeTracer, err := tracing.Init(cfg.Service.Name, cfg.Tracing)
	if err != nil {
		return err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			closeTracer()
			logger.Sync()
			return nil
		},
	})
	return nil
}
