// Package service — состояние «сигнал дня» для HTTP и бота.
//
// Вместо глобальной переменной процесса источником истины служит журнал
// исполнений гейта; Session лишь кэширует сегодняшнюю запись до смены даты.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"signal_bot/internal/executor"
	"signal_bot/internal/gate"
	"signal_bot/internal/metrics"
	"signal_bot/internal/models"
	"signal_bot/internal/strategy"
	"signal_bot/pkg/logger"
	"signal_bot/pkg/tracing"
)

var (
	ErrMarketClosed    = errors.New("market closed")
	ErrAlreadyExecuted = gate.ErrAlreadyExecuted
)

type Generator interface {
	Generate(ctx context.Context, now time.Time) (models.Signal, error)
}

type Session struct {
	gate       *gate.Gate
	gen        Generator
	adapter    executor.Adapter
	publisher  executor.Publisher
	marketOpen func(time.Time) bool

	mu        sync.Mutex
	cacheDate string
	cached    *models.ExecutionRecord
}

type Option func(*Session)

func WithPublisher(p executor.Publisher) Option {
	return func(s *Session) { s.publisher = p }
}

func WithMarket(open func(time.Time) bool) Option {
	return func(s *Session) { s.marketOpen = open }
}

func NewSession(g *gate.Gate, gen Generator, mode models.ExecutionMode, maxLatency time.Duration, opts ...Option) *Session {
	s := &Session{
		gate:       g,
		gen:        gen,
		adapter:    executor.NewSimulation(mode, maxLatency, g.Now),
		marketOpen: strategy.MarketOpen,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Active — сегодняшнее исполнение или nil.
func (s *Session) Active(ctx context.Context) (*models.ExecutionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := s.gate.Today()
	if s.cacheDate == today && s.cached != nil {
		return s.cached, nil
	}
	s.cacheDate, s.cached = today, nil

	rec, err := s.gate.TodayExecution(ctx)
	if err != nil {
		return nil, err
	}
	s.cached = rec
	return rec, nil
}

func (s *Session) MarketOpen() bool {
	return s.marketOpen(s.gate.Now())
}

// Execute — ручное исполнение: 403 при закрытом рынке, 409 если день уже занят.
func (s *Session) Execute(ctx context.Context) (_ *models.ExecutionRecord, err error) {
	span, ctx := tracing.StartSpan(ctx, "signal.execute")
	defer func() { tracing.Finish(span, err) }()

	now := s.gate.Now()
	if !s.marketOpen(now) {
		return nil, ErrMarketClosed
	}

	var out models.ExecutionRecord
	err = s.gate.Guard(ctx, func(ctx context.Context) error {
		if s.gate.HasExecutedToday(ctx) {
			return ErrAlreadyExecuted
		}

		sig, err := s.gen.Generate(ctx, now)
		if err != nil {
			return err
		}
		sig.SignalID = "live-" + now.Format("20060102") + "-001"

		s.gate.LogDecision(sig.SignalID, models.DecisionExecute, "manual execute")
		metrics.GateDecisionsTotal.WithLabelValues(string(models.DecisionExecute)).Inc()

		rec, err := s.adapter.Execute(ctx, sig)
		if err != nil {
			return err
		}
		if err := s.gate.RecordExecution(ctx, rec); err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.ExecutionsTotal.WithLabelValues(string(out.Status), string(out.Mode)).Inc()
	logger.Info("[SIGNAL] executed %s %s %s", out.SignalID, out.Asset, out.Direction)

	s.mu.Lock()
	s.cacheDate, s.cached = out.Date(), &out
	s.mu.Unlock()

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, out); err != nil {
			logger.Error("[SIGNAL] publish %s: %v", out.SignalID, err)
		}
	}
	return &out, nil
}
