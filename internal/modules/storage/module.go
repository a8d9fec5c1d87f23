package storage

import (
	"context"
	"fmt"

	"signal_bot/internal/dispatch"
	"signal_bot/internal/gate"
	"signal_bot/internal/metrics"
	"signal_bot/internal/modules/config"
	pg "signal_bot/internal/modules/postgres/service"
	"signal_bot/pkg/lock"
	"signal_bot/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

// Lockers — отдельные блокировки для гейта и dispatch guard.
type Lockers struct {
	Gate     lock.Locker
	Dispatch lock.Locker
}

func NewLockers(lc fx.Lifecycle, cfg *config.Config) (Lockers, error) {
	switch cfg.Lock.Kind {
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Lock.RedisAddr})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			_ = rdb.Close()
			return Lockers{}, fmt.Errorf("redis ping %s: %w", cfg.Lock.RedisAddr, err)
		}
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error { return rdb.Close() },
		})
		logger.Info("[LOCK] redis %s", cfg.Lock.RedisAddr)
		return Lockers{
			Gate:     lock.WithWait(lock.NewRedis(rdb, cfg.Lock.KeyPrefix+":gate", cfg.Lock.TTL), cfg.Lock.Wait),
			Dispatch: lock.WithWait(lock.NewRedis(rdb, cfg.Lock.KeyPrefix+":dispatch", cfg.Lock.TTL), cfg.Lock.Wait),
		}, nil
	case "none":
		return Lockers{Gate: lock.Nop{}, Dispatch: lock.Nop{}}, nil
	default:
		return Lockers{
			Gate:     lock.WithWait(lock.NewFile(cfg.Path("gate.lock")), cfg.Lock.Wait),
			Dispatch: lock.WithWait(lock.NewFile(cfg.Path("dispatch.lock")), cfg.Lock.Wait),
		}, nil
	}
}

func NewGate(cfg *config.Config, l Lockers, repo *pg.Signals) *gate.Gate {
	opts := []gate.Option{gate.WithFailOpen(cfg.Auto.FailOpen)}
	// nil *Signals в интерфейсе не nil, поэтому проверяем явно
	if repo != nil {
		opts = append(opts, gate.WithClaimer(repo))
	}
	return gate.New(cfg.Path(cfg.Storage.ExecutionLog), cfg.Path(cfg.Storage.GateLog), l.Gate, opts...)
}

func NewDispatchGuard(cfg *config.Config, l Lockers) *dispatch.Guard {
	return dispatch.New(
		dispatch.NewStateStore(cfg.Path(cfg.Storage.DispatchState)),
		l.Dispatch,
		cfg.Dispatch.MinConfidence,
		cfg.Dispatch.Cooldown,
		dispatch.WithObserver(func(r dispatch.Reason) {
			metrics.DispatchTotal.WithLabelValues(string(r)).Inc()
		}),
	)
}

func Module() fx.Option {
	return fx.Module("storage",
		fx.Provide(
			NewLockers,
			NewGate,
			NewDispatchGuard,
		),
	)
}
