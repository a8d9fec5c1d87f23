package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"signal_bot/internal/dispatch"
	"signal_bot/internal/metrics"
	"signal_bot/internal/models"
	signal "signal_bot/internal/modules/signal/service"
	source "signal_bot/internal/modules/source/service"
	"signal_bot/pkg/logger"

	"github.com/labstack/echo/v4"
)

type Session interface {
	Active(ctx context.Context) (*models.ExecutionRecord, error)
	Execute(ctx context.Context) (*models.ExecutionRecord, error)
	MarketOpen() bool
}

type Webhook interface {
	HandleRaw(ctx context.Context, body []byte) error
}

type FeedStatus interface {
	Status() models.FeedHealth
}

type SignalSource interface {
	Latest(ctx context.Context) (*models.Signal, error)
}

type DispatchStats interface {
	Stats() (dispatch.Stats, error)
}

type Handler struct {
	state    *State
	session  Session
	webhook  Webhook
	feed     FeedStatus
	engine   SignalSource
	dispatch DispatchStats

	telegramSet bool
	autoEnabled func() bool
	now         func() time.Time
}

func status(s string) map[string]string {
	return map[string]string{"status": s}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.GET("/livez", h.Livez)
	e.GET("/readyz", h.Readyz)

	e.GET("/signal/latest", h.Latest)
	e.POST("/signal/execute", h.Execute)
	e.POST("/telegram/webhook", h.Telegram)

	e.GET("/data-feed/health", h.FeedHealth)
	e.GET("/dispatch/stats", h.DispatchStats)
	e.GET("/api/v1/signal/latest", h.EngineLatest)

	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
}

func (h *Handler) Health(c echo.Context) error {
	auto := false
	if h.autoEnabled != nil {
		auto = h.autoEnabled()
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status":             "ok",
		"market_open":        h.session.MarketOpen(),
		"telegram_token_set": h.telegramSet,
		"auto_enabled":       auto,
		"feed":               h.feed.Status().Status,
		"uptime_sec":         int64(h.state.Uptime().Seconds()),
		"requests":           h.state.Counters(),
	})
}

func (h *Handler) Livez(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func (h *Handler) Readyz(c echo.Context) error {
	if !h.state.Ready() {
		return c.String(http.StatusServiceUnavailable, "not ready")
	}
	return c.String(http.StatusOK, "ready")
}

// Latest — исполненный сегодня сигнал, 404 пока его нет.
func (h *Handler) Latest(c echo.Context) error {
	rec, err := h.session.Active(c.Request().Context())
	if err != nil {
		logger.Error("[HTTP] active signal: %v", err)
		return c.JSON(http.StatusInternalServerError, status("error"))
	}
	if rec == nil {
		return c.JSON(http.StatusNotFound, status("AWAITING_EXECUTION"))
	}
	return c.JSON(http.StatusOK, rec.Signal())
}

func (h *Handler) Execute(c echo.Context) error {
	rec, err := h.session.Execute(c.Request().Context())
	switch {
	case errors.Is(err, signal.ErrMarketClosed):
		return c.JSON(http.StatusForbidden, status("MARKET_CLOSED"))
	case errors.Is(err, signal.ErrAlreadyExecuted):
		return c.JSON(http.StatusConflict, status("ALREADY_EXECUTED"))
	case err != nil:
		logger.Error("[HTTP] execute: %v", err)
		return c.JSON(http.StatusInternalServerError, status("error"))
	}
	return c.JSON(http.StatusOK, rec.Signal())
}

// Telegram — ответ всегда 200 {"ok":true}.
func (h *Handler) Telegram(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, 1<<20))
	if err != nil {
		logger.Error("[HTTP] webhook body: %v", err)
	} else if err := h.webhook.HandleRaw(c.Request().Context(), body); err != nil {
		logger.Error("[HTTP] webhook: %v", err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) FeedHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, h.feed.Status())
}

func (h *Handler) DispatchStats(c echo.Context) error {
	st, err := h.dispatch.Stats()
	if err != nil {
		logger.Error("[HTTP] dispatch stats: %v", err)
		return c.JSON(http.StatusInternalServerError, status("error"))
	}
	return c.JSON(http.StatusOK, st)
}

// EngineLatest — свежий расчёт движка в конверте API.
func (h *Handler) EngineLatest(c echo.Context) error {
	sig, err := h.engine.Latest(c.Request().Context())
	if err != nil {
		logger.Error("[HTTP] engine latest: %v", err)
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status":  "error",
			"message": "market data unavailable",
		})
	}
	if sig == nil {
		return c.JSON(http.StatusOK, status("market_closed"))
	}
	return c.JSON(http.StatusOK, source.Envelope(*sig, models.MetaFresh, h.now()))
}
