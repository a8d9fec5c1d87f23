package service

import (
	"context"
	"time"

	"signal_bot/internal/dispatch"
	"signal_bot/internal/formatter"
	"signal_bot/internal/models"
	"signal_bot/internal/strategy"
	"signal_bot/pkg/logger"

	"github.com/bytedance/sonic"
	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
)

// ActiveReader — сегодняшнее исполнение, если оно было.
type ActiveReader interface {
	Active(ctx context.Context) (*models.ExecutionRecord, error)
}

// Handler — команды /start, /signal, /stats и inline-кнопки.
type Handler struct {
	n      Notifier
	active ActiveReader
	live   SignalSource
	guard  *dispatch.Guard
	now    func() time.Time
}

type HandlerOption func(*Handler)

// WithLive — свежий расчёт движка, когда сегодня ещё не исполняли.
func WithLive(src SignalSource) HandlerOption {
	return func(h *Handler) { h.live = src }
}

func NewHandler(n Notifier, active ActiveReader, guard *dispatch.Guard, opts ...HandlerOption) *Handler {
	h := &Handler{n: n, active: active, guard: guard, now: time.Now}
	for _, o := range opts {
		o(h)
	}
	return h
}

// HandleRaw разбирает тело вебхука.
func (h *Handler) HandleRaw(ctx context.Context, body []byte) error {
	var upd tgbot.Update
	if err := sonic.Unmarshal(body, &upd); err != nil {
		return errors.Wrap(err, "decode update")
	}
	h.HandleUpdate(ctx, upd)
	return nil
}

// Listen — long polling до отмены ctx.
func (h *Handler) Listen(ctx context.Context, updates tgbot.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			h.HandleUpdate(ctx, upd)
		}
	}
}

func (h *Handler) HandleUpdate(ctx context.Context, update tgbot.Update) {
	// 1) команды
	if msg := update.Message; msg != nil && msg.Chat != nil {
		if !msg.IsCommand() {
			return
		}
		chatID := msg.Chat.ID
		var err error
		switch msg.Command() {
		case "start", "help":
			err = h.send(ctx, chatID, startText)
		case "signal":
			err = h.handleSignal(ctx, chatID)
		case "stats":
			err = h.handleStats(ctx, chatID)
		}
		if err != nil {
			logger.Error("[TG] /%s: %v", msg.Command(), err)
		}
		return
	}

	// 2) inline-кнопки
	if cb := update.CallbackQuery; cb != nil {
		if err := h.n.AnswerCallback(ctx, cb.ID, ""); err != nil {
			logger.Warn("[TG] answer callback: %v", err)
		}
		if cb.Message == nil || cb.Message.Chat == nil {
			return
		}
		chatID := cb.Message.Chat.ID
		var err error
		switch cb.Data {
		case formatter.CallbackRefresh:
			err = h.handleSignal(ctx, chatID)
		case formatter.CallbackStats:
			err = h.handleStats(ctx, chatID)
		}
		if err != nil {
			logger.Error("[TG] callback %s: %v", cb.Data, err)
		}
	}
}

const startText = "👋 <b>Forex signal bot</b>\n\n" +
	"/signal — today's executed signal\n" +
	"/stats — dispatch statistics"

func (h *Handler) handleSignal(ctx context.Context, chatID int64) error {
	rec, err := h.active.Active(ctx)
	if err != nil {
		return errors.Wrap(err, "active signal")
	}
	if rec == nil {
		return h.sendLive(ctx, chatID)
	}

	sig := rec.Signal()
	msg := formatter.Payload(chatID, sig)
	msg.Text = formatter.ExecutionReport(sig) + "\n\n" + formatter.MessageWithID(sig)
	return h.n.SendMessage(ctx, msg)
}

// sendLive: сигнал движка, если он есть, иначе статус рынка.
func (h *Handler) sendLive(ctx context.Context, chatID int64) error {
	if h.live != nil {
		sig, err := h.live.Latest(ctx)
		switch {
		case err != nil:
			logger.Warn("[TG] live signal: %v", err)
		case sig != nil:
			msg := formatter.Payload(chatID, *sig)
			msg.Text = formatter.LiveMessage(*sig)
			return h.n.SendMessage(ctx, msg)
		}
	}
	return h.send(ctx, chatID, formatter.StatusMessage(strategy.MarketOpen(h.now())))
}

func (h *Handler) handleStats(ctx context.Context, chatID int64) error {
	st, err := h.guard.Stats()
	if err != nil {
		return errors.Wrap(err, "dispatch stats")
	}
	return h.send(ctx, chatID, formatter.StatsMessage(st.State))
}

func (h *Handler) send(ctx context.Context, chatID int64, text string) error {
	msg := tgbot.NewMessage(chatID, text)
	msg.ParseMode = tgbot.ModeHTML
	return h.n.SendMessage(ctx, msg)
}
