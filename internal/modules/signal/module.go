package signal

import (
	"signal_bot/internal/gate"
	"signal_bot/internal/models"
	"signal_bot/internal/modules/config"
	"signal_bot/internal/modules/signal/service"
	source "signal_bot/internal/modules/source/service"
	telegram "signal_bot/internal/modules/telegram_bot/service"

	"go.uber.org/fx"
)

func NewSession(cfg *config.Config, g *gate.Gate, eng *source.Engine, pub *telegram.Publisher) *service.Session {
	return service.NewSession(g, eng, models.ExecutionMode(cfg.ExecutionMode()), cfg.Auto.MaxLatency,
		service.WithPublisher(pub),
	)
}

func Module() fx.Option {
	return fx.Module("signal",
		fx.Provide(
			NewSession,
		),
	)
}
