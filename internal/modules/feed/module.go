package feed

import (
	"context"

	"signal_bot/internal/modules/config"
	"signal_bot/internal/modules/feed/service"
	"signal_bot/pkg/logger"

	"go.uber.org/fx"
)

func NewClient(cfg *config.Config) *service.Client {
	return service.NewClient(service.ClientConfig{
		BaseURL:           cfg.Feed.BaseURL,
		APIKey:            cfg.Feed.APIKey,
		Timeout:           cfg.Feed.Timeout,
		Retries:           cfg.Feed.Retries,
		RequestsPerMinute: cfg.Feed.RequestsPerMinute,
		FailureThreshold:  cfg.Feed.FailureThreshold,
	})
}

func NewMonitor(cfg *config.Config, c *service.Client) *service.Monitor {
	return service.NewMonitor(c, cfg.Feed.Symbol, cfg.Path(cfg.Storage.FeedHealth), cfg.Feed.FailureThreshold)
}

// Module поднимает клиент Twelve Data, монитор здоровья и (опционально) websocket-стрим.
func Module() fx.Option {
	return fx.Module("feed",
		fx.Provide(
			NewClient,
			NewMonitor,
		),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, m *service.Monitor) {
			ctx, cancel := context.WithCancel(context.Background())
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					if cfg.Feed.APIKey == "" {
						logger.Warn("[FEED] api key is not set, health monitor disabled")
						return nil
					}
					go m.Run(ctx, cfg.Feed.HealthInterval)
					if cfg.Feed.Stream {
						s := service.NewStream(cfg.Feed.StreamURL, cfg.Feed.APIKey, []string{cfg.Feed.Symbol}, m)
						go s.Run(ctx)
					}
					return nil
				},
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})
		}),
	)
}
