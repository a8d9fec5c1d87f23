package service

import (
	"context"
	"time"

	"signal_bot/internal/models"
	"signal_bot/internal/strategy"
	"signal_bot/pkg/logger"

	"github.com/pkg/errors"
)

type CandleFetcher interface {
	TimeSeries(ctx context.Context, symbol, timeframe string, n int) ([]models.Candle, error)
}

// Saver — куда складываем сгенерированные сигналы (Supabase). Опционально.
type Saver interface {
	Save(ctx context.Context, sig models.Signal) (int64, error)
}

type EngineOption func(*Engine)

func WithSaver(s Saver) EngineOption {
	return func(e *Engine) { e.saver = s }
}

func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// Engine гоняет rule engine по свежим свечам Twelve Data.
type Engine struct {
	feed      CandleFetcher
	engine    *strategy.Engine
	symbol    string
	timeframe string
	bars      int
	saver     Saver
	now       func() time.Time
}

func NewEngine(feed CandleFetcher, engine *strategy.Engine, symbol, timeframe string, bars int, opts ...EngineOption) *Engine {
	e := &Engine{
		feed:      feed,
		engine:    engine,
		symbol:    symbol,
		timeframe: timeframe,
		bars:      bars,
		now:       time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Engine) Name() string { return "engine" }

func (e *Engine) Symbol() string { return e.symbol }

func (e *Engine) Timeframe() string { return e.timeframe }

// Latest возвращает nil, пока рынок закрыт.
func (e *Engine) Latest(ctx context.Context) (*models.Signal, error) {
	now := e.now().UTC()
	if !strategy.MarketOpen(now) {
		logger.Debug("[SOURCE] market closed at %s", now.Format(time.RFC3339))
		return nil, nil
	}
	sig, err := e.Generate(ctx, now)
	if err != nil {
		return nil, err
	}
	return &sig, nil
}

// Generate считает сигнал без проверки рынка.
func (e *Engine) Generate(ctx context.Context, now time.Time) (models.Signal, error) {
	candles, err := e.feed.TimeSeries(ctx, e.symbol, e.timeframe, e.bars)
	if err != nil {
		return models.Signal{}, errors.Wrap(err, "fetch candles")
	}

	sig, err := e.engine.Generate(e.symbol, e.timeframe, candles, now)
	if err != nil {
		return models.Signal{}, errors.Wrap(err, "generate signal")
	}

	if e.saver != nil {
		if _, err := e.saver.Save(ctx, sig); err != nil {
			logger.Warn("[SOURCE] persist signal: %v", err)
		}
	}
	return sig, nil
}
