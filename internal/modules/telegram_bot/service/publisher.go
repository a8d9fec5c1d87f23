package service

import (
	"context"
	"time"

	"signal_bot/internal/dispatch"
	"signal_bot/internal/formatter"
	"signal_bot/internal/models"
	source "signal_bot/internal/modules/source/service"
	"signal_bot/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

// Publisher — сигнал уходит в канал только с разрешения dispatch guard.
type Publisher struct {
	guard   *dispatch.Guard
	n       Notifier
	chatID  int64
	enabled bool
	now     func() time.Time
}

func NewPublisher(guard *dispatch.Guard, n Notifier, chatID int64, enabled bool) *Publisher {
	return &Publisher{guard: guard, n: n, chatID: chatID, enabled: enabled, now: time.Now}
}

// Publish — для записи исполнения.
func (p *Publisher) Publish(ctx context.Context, rec models.ExecutionRecord) error {
	_, err := p.PublishSignal(ctx, rec.Signal())
	return err
}

// PublishSignal возвращает true, если сообщение ушло.
func (p *Publisher) PublishSignal(ctx context.Context, sig models.Signal) (bool, error) {
	if !p.enabled {
		logger.Debug("[TG] dispatch disabled, skip %s", sig.Asset)
		return false, nil
	}

	raw, err := sonic.Marshal(source.Envelope(sig, models.MetaFresh, p.now()))
	if err != nil {
		return false, errors.Wrap(err, "encode envelope")
	}

	ok, reason := p.guard.Evaluate(ctx, raw)
	if !ok {
		logger.Info("[TG] suppressed %s %s: %s", sig.Asset, sig.Timeframe, reason)
		return false, nil
	}

	if err := p.n.SendMessage(ctx, formatter.Payload(p.chatID, sig)); err != nil {
		return false, errors.Wrap(err, "send signal")
	}
	logger.Info("[TG] sent %s %s %s (%d%%)", sig.Asset, sig.Timeframe, sig.Direction, sig.Confidence)
	return true, nil
}
