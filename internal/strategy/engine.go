package strategy

import (
	"errors"
	"math"
	"strings"
	"time"

	"signal_bot/internal/models"

	"github.com/shopspring/decimal"
)

var ErrNoCandles = errors.New("no candles")

const maxConfidence = 95

// Params — настройки rule engine.
type Params struct {
	EMAFast      int     `yaml:"ema_fast" default:"20" validate:"gt=0"`
	EMASlow      int     `yaml:"ema_slow" default:"50" validate:"gt=0"`
	RSIPeriod    int     `yaml:"rsi_period" default:"14" validate:"gt=0"`
	ATRPeriod    int     `yaml:"atr_period" default:"14" validate:"gt=0"`
	TPMultiplier float64 `yaml:"tp_atr_mult" default:"2.0" validate:"gt=0"`
	SLMultiplier float64 `yaml:"sl_atr_mult" default:"1.2" validate:"gt=0"`
	MinTPPips    float64 `yaml:"min_tp_pips" default:"15" validate:"gte=0"`
	MinSLPips    float64 `yaml:"min_sl_pips" default:"10" validate:"gte=0"`
	Name         string  `yaml:"name" default:"EMA/RSI/ATR Rule Engine"`
}

// Engine — чистая функция свечи -> сигнал, без состояния.
type Engine struct {
	p Params
}

func NewEngine(p Params) *Engine {
	return &Engine{p: p}
}

func (e *Engine) Params() Params { return e.p }

// Generate считает сигнал по свечам (от старых к новым).
func (e *Engine) Generate(asset, timeframe string, candles []models.Candle, now time.Time) (models.Signal, error) {
	if len(candles) == 0 {
		return models.Signal{}, ErrNoCandles
	}

	cl := closes(candles)
	price := cl[len(cl)-1]

	fast := EMA(cl, e.p.EMAFast)
	slow := EMA(cl, e.p.EMASlow)
	rsi := RSI(cl, e.p.RSIPeriod)
	atr := ATR(candles, e.p.ATRPeriod)

	side := models.SideSell
	if fast > slow {
		side = models.SideBuy
	}

	conf := Confidence(Inputs{
		Side:    side,
		Price:   price,
		EMAFast: fast,
		EMASlow: slow,
		RSI:     rsi,
		ATR:     atr,
		At:      now,
	})

	tp, sl := e.Levels(asset, side, price, atr)
	places := pricePlaces(asset)

	return models.Signal{
		Asset:      asset,
		Timeframe:  timeframe,
		Direction:  side,
		Confidence: conf,
		Entry:      models.Price(round(price, places)),
		TP:         tp,
		SL:         sl,
		Strategy:   e.p.Name,
		Session:    SessionName(now),
		Source:     "engine",
		Validity:   models.ValidityActive,
		Timestamp:  now.UTC().Format(time.RFC3339),
		Volatility: volatility(atr, price),
	}, nil
}

// Levels — TP/SL от entry: множитель ATR, но не ближе минимума в пипсах.
func (e *Engine) Levels(asset string, side models.Side, entry, atr float64) (tp, sl float64) {
	pip := PipSize(asset)
	tpDist := math.Max(e.p.TPMultiplier*atr, e.p.MinTPPips*pip)
	slDist := math.Max(e.p.SLMultiplier*atr, e.p.MinSLPips*pip)

	if side == models.SideSell {
		tpDist, slDist = -tpDist, -slDist
	}

	places := pricePlaces(asset)
	return round(entry+tpDist, places), round(entry-slDist, places)
}

// Inputs — всё, что нужно для подсчёта уверенности.
type Inputs struct {
	Side    models.Side
	Price   float64
	EMAFast float64
	EMASlow float64
	RSI     float64
	ATR     float64
	At      time.Time
}

// Confidence — сумма баллов, не больше 95.
func Confidence(in Inputs) int {
	score := 0

	// тренд
	if in.EMASlow != 0 && math.Abs(in.EMAFast-in.EMASlow)/in.EMASlow > 0.0005 {
		score += 30
	} else {
		score += 15
	}

	score += rsiScore(in.Side, in.RSI)

	// волатильность
	if in.Price > 0 && in.ATR/in.Price >= 0.0005 {
		score += 15
	} else {
		score += 5
	}

	// цена по ту же сторону EMA, что и сигнал
	if (in.Side == models.SideBuy && in.Price > in.EMAFast) || (in.Side == models.SideSell && in.Price < in.EMAFast) {
		score += 15
	}

	score += sessionScore(in.At)

	if score > maxConfidence {
		score = maxConfidence
	}
	return score
}

func rsiScore(side models.Side, rsi float64) int {
	switch side {
	case models.SideBuy:
		switch {
		case rsi > 70:
			return 5
		case rsi >= 50:
			return 20
		}
	case models.SideSell:
		switch {
		case rsi < 30:
			return 5
		case rsi <= 50:
			return 20
		}
	}
	return 10
}

func volatility(atr, price float64) *models.Volatility {
	if price <= 0 {
		return nil
	}
	pct := atr / price * 100
	state := "normal"
	switch {
	case pct < 0.05:
		state = "low"
	case pct >= 0.15:
		state = "high"
	}
	return &models.Volatility{ATRPercent: round(pct, 3), State: state}
}

// PipSize — 0.01 для JPY-пар, иначе 0.0001.
func PipSize(asset string) float64 {
	if strings.Contains(strings.ToUpper(asset), "JPY") {
		return 0.01
	}
	return 0.0001
}

func pricePlaces(asset string) int32 {
	if strings.Contains(strings.ToUpper(asset), "JPY") {
		return 3
	}
	return 5
}

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
