package executor

import (
	"context"
	"time"

	"signal_bot/internal/models"

	"github.com/google/uuid"
)

const DefaultMaxLatency = 5 * time.Second

// Adapter отправляет сигнал исполнителю. Решений не принимает.
type Adapter interface {
	Execute(ctx context.Context, sig models.Signal) (models.ExecutionRecord, error)
}

// Simulation — исполнение без брокера: цена входа = цена сигнала.
type Simulation struct {
	mode       models.ExecutionMode
	maxLatency time.Duration
	now        func() time.Time
}

func NewSimulation(mode models.ExecutionMode, maxLatency time.Duration, now func() time.Time) *Simulation {
	if maxLatency <= 0 {
		maxLatency = DefaultMaxLatency
	}
	if now == nil {
		now = time.Now
	}
	return &Simulation{mode: mode, maxLatency: maxLatency, now: now}
}

func (s *Simulation) Execute(_ context.Context, sig models.Signal) (models.ExecutionRecord, error) {
	start := s.now().UTC()

	rec := models.ExecutionRecord{
		SignalID:       sig.SignalID,
		SignalTime:     sig.Time(),
		ExecutedAt:     start,
		Asset:          sig.Asset,
		Timeframe:      sig.Timeframe,
		Direction:      sig.Direction,
		SignalPrice:    sig.Entry,
		ExecutionPrice: sig.Entry.Value(),
		TP:             sig.TP,
		SL:             sig.SL,
		Confidence:     sig.Confidence,
		Strategy:       sig.Strategy,
		Status:         models.StatusExecuted,
		OrderID:        "SIM-" + uuid.NewString(),
		Mode:           s.mode,
	}

	latency := s.now().UTC().Sub(start)
	rec.LatencyMs = latency.Milliseconds()
	if latency > s.maxLatency {
		rec.Status = models.StatusExecutedHighLatency
	}
	return rec, nil
}
