// Package executor — AUTO-режим: цикл gate → fetch → validate → execute → log.
package executor

import (
	"context"
	"errors"
	"time"

	"signal_bot/internal/gate"
	"signal_bot/internal/metrics"
	"signal_bot/internal/models"
	"signal_bot/pkg/logger"
	"signal_bot/pkg/tracing"

	"github.com/google/uuid"
)

const noSignalID = "N/A"

type Source interface {
	Latest(ctx context.Context) (*models.Signal, error)
}

// Publisher получает запись после успешного исполнения (dispatch → канал).
type Publisher interface {
	Publish(ctx context.Context, rec models.ExecutionRecord) error
}

type CycleResult string

const (
	ResultDisabled        CycleResult = "disabled"
	ResultAlreadyExecuted CycleResult = "already_executed"
	ResultNoSignal        CycleResult = "no_signal"
	ResultInvalid         CycleResult = "invalid"
	ResultExecuted        CycleResult = "executed"
	ResultError           CycleResult = "error"
)

type Executor struct {
	gate      *gate.Gate
	source    Source
	validator Validator
	adapter   Adapter
	publisher Publisher
	enabled   func() bool
}

type Option func(*Executor)

func WithPublisher(p Publisher) Option {
	return func(e *Executor) { e.publisher = p }
}

// WithKillSwitch — проверяется перед каждым циклом.
func WithKillSwitch(enabled func() bool) Option {
	return func(e *Executor) { e.enabled = enabled }
}

func New(g *gate.Gate, src Source, v Validator, a Adapter, opts ...Option) *Executor {
	e := &Executor{
		gate:      g,
		source:    src,
		validator: v,
		adapter:   a,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// RunCycle — один полный проход. Вся секция идёт под gate.Guard.
func (e *Executor) RunCycle(ctx context.Context) (res CycleResult, err error) {
	span, ctx := tracing.StartSpan(ctx, "auto.cycle")
	defer func() {
		tracing.Finish(span, err)
		metrics.CyclesTotal.WithLabelValues(string(res)).Inc()
	}()

	if e.enabled != nil && !e.enabled() {
		logger.Warn("[AUTO] disabled via kill switch (AUTO_V0_ENABLED=false)")
		return ResultDisabled, nil
	}

	err = e.gate.Guard(ctx, func(ctx context.Context) error {
		var cerr error
		res, cerr = e.cycle(ctx)
		return cerr
	})
	switch {
	case errors.Is(err, gate.ErrAlreadyExecuted):
		logger.Warn("[AUTO] day already claimed elsewhere")
		return ResultAlreadyExecuted, nil
	case err != nil:
		logger.Error("[AUTO] cycle failed: %v", err)
		return ResultError, err
	}
	return res, nil
}

func (e *Executor) cycle(ctx context.Context) (CycleResult, error) {
	if e.gate.HasExecutedToday(ctx) {
		logger.Info("[AUTO] daily execution cap reached (1/day)")
		return ResultAlreadyExecuted, nil
	}

	sig, err := e.source.Latest(ctx)
	if err != nil {
		logger.Error("[AUTO] fetch signal: %v", err)
	}
	if sig == nil {
		e.decide(noSignalID, models.DecisionSkip, "No signal available")
		return ResultNoSignal, nil
	}

	// один id и в журнале решений, и в журнале исполнений
	s := *sig
	if s.SignalID == "" {
		s.SignalID = AutoSignalID(e.gate.Now())
	}

	if reason := e.validator.Check(&s); reason != "" {
		e.decide(s.SignalID, models.DecisionSkip, "Signal invalid or expired: "+reason)
		return ResultInvalid, nil
	}

	e.decide(s.SignalID, models.DecisionExecute, "Signal valid, gate open, executing")

	rec, err := e.adapter.Execute(ctx, s)
	if err != nil {
		return ResultError, err
	}
	if err := e.gate.RecordExecution(ctx, rec); err != nil {
		return ResultError, err
	}
	metrics.ExecutionsTotal.WithLabelValues(string(rec.Status), string(rec.Mode)).Inc()
	logger.Info("[AUTO] executed %s %s %s latency=%dms", rec.SignalID, rec.Asset, rec.Direction, rec.LatencyMs)

	if e.publisher != nil {
		if err := e.publisher.Publish(ctx, rec); err != nil {
			logger.Error("[AUTO] publish %s: %v", rec.SignalID, err)
		}
	}
	return ResultExecuted, nil
}

// AutoSignalID — id для сигнала без signal_id: auto-YYYYMMDD-<8 hex>.
func AutoSignalID(now time.Time) string {
	return "auto-" + now.UTC().Format("20060102") + "-" + uuid.NewString()[:8]
}

func (e *Executor) decide(id string, d models.Decision, reason string) {
	e.gate.LogDecision(id, d, reason)
	metrics.GateDecisionsTotal.WithLabelValues(string(d)).Inc()
}
