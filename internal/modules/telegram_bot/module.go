package telegram

import (
	"context"

	"signal_bot/internal/dispatch"
	"signal_bot/internal/executor"
	"signal_bot/internal/modules/config"
	signal "signal_bot/internal/modules/signal/service"
	source "signal_bot/internal/modules/source/service"
	"signal_bot/internal/modules/telegram_bot/service"
	"signal_bot/pkg/logger"

	"go.uber.org/fx"
)

// NewNotifier: без токена сообщения уходят в лог.
func NewNotifier(cfg *config.Config) (service.Notifier, *service.Telegram, error) {
	if cfg.Telegram.Token == "" {
		logger.Warn("[TG] TELEGRAM_BOT_TOKEN is not set, using stdout notifier")
		return service.NewStdout(), nil, nil
	}
	t, err := service.NewTelegram(cfg.Telegram.Token)
	if err != nil {
		return nil, nil, err
	}
	return t, t, nil
}

func NewPublisher(cfg *config.Config, guard *dispatch.Guard, n service.Notifier) *service.Publisher {
	return service.NewPublisher(guard, n, cfg.Telegram.ChatID, cfg.Dispatch.Enabled)
}

func NewHandler(n service.Notifier, s *signal.Session, guard *dispatch.Guard, eng *source.Engine) *service.Handler {
	return service.NewHandler(n, s, guard, service.WithLive(eng))
}

func Module() fx.Option {
	return fx.Module("telegram",
		fx.Provide(
			NewNotifier,
			NewPublisher,
			NewHandler,
			func(p *service.Publisher) executor.Publisher { return p },
		),
		fx.Invoke(func(
			lc fx.Lifecycle,
			cfg *config.Config,
			bot *service.Telegram,
			h *service.Handler,
			pub *service.Publisher,
			eng *source.Engine,
		) {
			ctx, cancel := context.WithCancel(context.Background())
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					if bot != nil && cfg.Telegram.Polling {
						logger.Info("[TG] long polling enabled")
						go h.Listen(ctx, bot.Updates())
					}
					if cfg.Dispatch.Broadcast {
						logger.Info("[TG] broadcaster every %s", cfg.Dispatch.Interval)
						go service.NewBroadcaster(eng, pub).Run(ctx, cfg.Dispatch.Interval)
					}
					return nil
				},
				OnStop: func(context.Context) error {
					cancel()
					if bot != nil && cfg.Telegram.Polling {
						bot.Stop()
					}
					return nil
				},
			})
		}),
	)
}
