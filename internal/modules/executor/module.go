package executor

import (
	"context"

	"signal_bot/internal/executor"
	"signal_bot/internal/gate"
	"signal_bot/internal/models"
	"signal_bot/internal/modules/config"
	source "signal_bot/internal/modules/source/service"
	"signal_bot/pkg/logger"

	"go.uber.org/fx"
)

func Mode(cfg *config.Config) models.ExecutionMode {
	if cfg.Auto.LiveMode {
		return models.ModeLive
	}
	return models.ModeDemo
}

func NewSummaryLog(cfg *config.Config) *executor.SummaryLog {
	return executor.NewSummaryLog(cfg.Path(cfg.Storage.SummaryLog))
}

func NewExecutor(cfg *config.Config, g *gate.Gate, src source.Source, pub executor.Publisher) *executor.Executor {
	return executor.New(g, src,
		executor.NewValidator(cfg.Auto.SignalTTL, g.Now),
		executor.NewSimulation(Mode(cfg), cfg.Auto.MaxLatency, g.Now),
		executor.WithPublisher(pub),
		executor.WithKillSwitch(cfg.AutoEnabled),
	)
}

func NewScheduler(cfg *config.Config, e *executor.Executor, g *gate.Gate, l *executor.SummaryLog) *executor.Scheduler {
	return executor.NewScheduler(e, g, l, cfg.Auto.PollInterval)
}

// Module — AUTO-планировщик внутри бота. Стартует, только если включён kill switch.
func Module() fx.Option {
	return fx.Module("executor",
		fx.Provide(
			NewSummaryLog,
			NewExecutor,
			NewScheduler,
		),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, s *executor.Scheduler) {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					if !cfg.AutoEnabled() {
						logger.Info("[AUTO] disabled (AUTO_V0_ENABLED=false)")
						close(done)
						return nil
					}
					// без ключа фида не стартуем
					if err := cfg.RequireFeedKey(); err != nil {
						close(done)
						return err
					}
					go func() {
						defer close(done)
						s.Run(ctx)
					}()
					return nil
				},
				OnStop: func(stopCtx context.Context) error {
					cancel()
					select {
					case <-done:
					case <-stopCtx.Done():
					}
					return nil
				},
			})
		}),
	)
}
