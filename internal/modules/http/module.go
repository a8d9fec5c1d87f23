package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"signal_bot/internal/dispatch"
	"signal_bot/internal/modules/config"
	feed "signal_bot/internal/modules/feed/service"
	signal "signal_bot/internal/modules/signal/service"
	source "signal_bot/internal/modules/source/service"
	telegram "signal_bot/internal/modules/telegram_bot/service"
	"signal_bot/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

func NewHandler(
	cfg *config.Config,
	state *State,
	session *signal.Session,
	webhook *telegram.Handler,
	monitor *feed.Monitor,
	engine *source.Engine,
	guard *dispatch.Guard,
) *Handler {
	return &Handler{
		state:       state,
		session:     session,
		webhook:     webhook,
		feed:        monitor,
		engine:      engine,
		dispatch:    guard,
		telegramSet: cfg.Telegram.Token != "",
		autoEnabled: cfg.AutoEnabled,
		now:         time.Now,
	}
}

func NewEcho(h *Handler, state *State) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = sonicSerializer{}

	e.Use(recoverMiddleware())
	e.Use(requestLogging(state))

	h.RegisterRoutes(e)
	return e
}

func RunHTTP(lc fx.Lifecycle, cfg *config.Config, e *echo.Echo, state *State) {
	addr := fmt.Sprintf("%s:%d", cfg.Service.Host, cfg.Service.Port)
	e.Server.ReadHeaderTimeout = 5 * time.Second

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return err
			}
			e.Listener = ln
			go func() {
				if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("[HTTP] server: %v", err)
				}
			}()
			state.SetReady(true)
			logger.Info("[HTTP] listening on %s", addr)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			state.SetReady(false)
			return e.Shutdown(ctx)
		},
	})
}

func Module() fx.Option {
	return fx.Module("http",
		fx.Provide(
			NewState,
			NewHandler,
			NewEcho,
		),
		fx.Invoke(RunHTTP),
	)
}
