package source

import (
	"fmt"

	"signal_bot/internal/modules/config"
	feed "signal_bot/internal/modules/feed/service"
	pg "signal_bot/internal/modules/postgres/service"
	"signal_bot/internal/modules/source/service"
	"signal_bot/internal/strategy"

	"go.uber.org/fx"
)

func NewEngine(cfg *config.Config, client *feed.Client, repo *pg.Signals) *service.Engine {
	var opts []service.EngineOption
	if repo != nil {
		opts = append(opts, service.WithSaver(repo))
	}
	return service.NewEngine(
		client,
		strategy.NewEngine(cfg.Strategy),
		cfg.Feed.Symbol,
		cfg.Feed.Timeframe,
		cfg.Feed.Bars,
		opts...,
	)
}

// NewSource выбирает адаптер по source.kind.
func NewSource(cfg *config.Config, eng *service.Engine, repo *pg.Signals) (service.Source, error) {
	switch cfg.Source.Kind {
	case "rest":
		if cfg.Source.APIBase == "" {
			return nil, fmt.Errorf("source.api_base is required for rest source")
		}
		return service.NewREST(cfg.Source.APIBase, cfg.Source.Timeout), nil
	case "supabase":
		if repo == nil {
			return nil, fmt.Errorf("db.dsn is required for supabase source")
		}
		return service.NewSupabase(repo), nil
	default:
		return eng, nil
	}
}

func Module() fx.Option {
	return fx.Module("source",
		fx.Provide(
			NewEngine,
			NewSource,
		),
	)
}
