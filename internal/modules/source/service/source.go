package service

import (
	"context"
	"time"

	"signal_bot/internal/models"
)

// Source — откуда берётся последний сигнал. nil без ошибки значит «сигнала нет».
type Source interface {
	Latest(ctx context.Context) (*models.Signal, error)
	Name() string
}

// Envelope упаковывает сигнал в ответ API, который разбирает dispatch guard.
func Envelope(sig models.Signal, meta string, now time.Time) models.Envelope {
	return models.Envelope{
		Status: "ok",
		Source: sig.Source,
		Asset:  sig.Asset,
		Payload: models.Payload{
			Signal: sig,
			Symbol: sig.Asset,
			Meta: models.Meta{
				Status:      meta,
				GeneratedAt: now.UTC(),
			},
		},
	}
}
