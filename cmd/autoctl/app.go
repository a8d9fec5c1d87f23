package main

import (
	"context"
	"time"

	"signal_bot/internal/modules/config"
	executormod "signal_bot/internal/modules/executor"
	"signal_bot/internal/modules/feed"
	"signal_bot/internal/modules/postgres"
	"signal_bot/internal/modules/signal"
	"signal_bot/internal/modules/source"
	"signal_bot/internal/modules/storage"
	telegram "signal_bot/internal/modules/telegram_bot"

	"go.uber.org/fx"
)

const stopTimeout = 15 * time.Second

// oneShot глушит фоновые части бота: CLI не должен слушать Telegram и рассылать.
func oneShot(cfg *config.Config) *config.Config {
	c := *cfg
	c.Telegram.Polling = false
	c.Dispatch.Broadcast = false
	return &c
}

// storageApp — конфиг, журналы и состояние без сети.
func storageApp(opts ...fx.Option) *fx.App {
	return fx.New(append([]fx.Option{
		fx.NopLogger,
		config.Module(),
		postgres.Module(),
		storage.Module(),
		fx.Provide(executormod.NewSummaryLog),
	}, opts...)...)
}

// pipelineApp — всё, кроме HTTP. Планировщик добавляет вызывающий.
func pipelineApp(opts ...fx.Option) *fx.App {
	return fx.New(append([]fx.Option{
		fx.NopLogger,
		config.Module(),
		feed.Module(),
		postgres.Module(),
		storage.Module(),
		source.Module(),
		telegram.Module(),
		signal.Module(),
	}, opts...)...)
}

// withApp стартует app, выполняет fn и всегда останавливает app.
func withApp(ctx context.Context, app *fx.App, fn func(ctx context.Context) error) error {
	if err := app.Err(); err != nil {
		return err
	}
	if err := app.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		_ = app.Stop(stopCtx)
	}()
	return fn(ctx)
}
