package service

import (
	"context"
	"time"

	"signal_bot/internal/models"
	"signal_bot/pkg/logger"
)

type SignalSource interface {
	Latest(ctx context.Context) (*models.Signal, error)
}

// Broadcaster периодически гоняет свежий сигнал движка через Publisher.
type Broadcaster struct {
	src SignalSource
	pub *Publisher
}

func NewBroadcaster(src SignalSource, pub *Publisher) *Broadcaster {
	return &Broadcaster{src: src, pub: pub}
}

func (b *Broadcaster) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		b.Tick(ctx)
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func (b *Broadcaster) Tick(ctx context.Context) {
	sig, err := b.src.Latest(ctx)
	if err != nil {
		logger.Error("[BROADCAST] latest signal: %v", err)
		return
	}
	if sig == nil {
		return
	}
	if _, err := b.pub.PublishSignal(ctx, *sig); err != nil {
		logger.Error("[BROADCAST] publish: %v", err)
	}
}
