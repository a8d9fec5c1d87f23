// Package gate — не больше одного исполнения за UTC-сутки.
//
// Состояние хранится в двух append-only журналах: исполнения и решения гейта.
// Секция check-then-act выполняется под Guard, который держит и локальный
// мьютекс, и межпроцессный lock.Locker. Если журнал исполнений не читается,
// гейт считает, что сегодня уже исполняли (fail closed), пока не включён failOpen.
package gate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"signal_bot/internal/models"
	"signal_bot/pkg/jsonl"
	"signal_bot/pkg/lock"
	"signal_bot/pkg/logger"
)

var ErrAlreadyExecuted = errors.New("already executed today")

// Claimer — внешнее подтверждение «день занят» (например, unique в Postgres).
type Claimer interface {
	ClaimDay(ctx context.Context, date, signalID string) (bool, error)
}

type Option func(*Gate)

func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

func WithClaimer(c Claimer) Option {
	return func(g *Gate) { g.claimer = c }
}

func WithFailOpen(v bool) Option {
	return func(g *Gate) { g.failOpen = v }
}

type Gate struct {
	executions *jsonl.Log[models.ExecutionRecord]
	decisions  *jsonl.Log[models.GateDecision]
	locker     lock.Locker
	claimer    Claimer
	now        func() time.Time
	failOpen   bool

	mu sync.Mutex
}

func New(executionLog, decisionLog string, locker lock.Locker, opts ...Option) *Gate {
	if locker == nil {
		locker = lock.Nop{}
	}
	g := &Gate{
		executions: jsonl.New[models.ExecutionRecord](executionLog),
		decisions:  jsonl.New[models.GateDecision](decisionLog),
		locker:     locker,
		now:        time.Now,
	}
	for _, o := range opts {
		o(g)
	}

	g.executions.OnBadLine = badLine(executionLog)
	g.decisions.OnBadLine = badLine(decisionLog)
	return g
}

func badLine(path string) jsonl.BadLineFunc {
	return func(line int, err error) {
		logger.Warn("[GATE] skip malformed line %d in %s: %v", line, path, err)
	}
}

// Today — текущая UTC-дата.
func (g *Gate) Today() string {
	return g.now().UTC().Format(models.DateLayout)
}

func (g *Gate) Now() time.Time { return g.now().UTC() }

// HasExecutedToday — линейный проход по журналу исполнений.
func (g *Gate) HasExecutedToday(ctx context.Context) bool {
	today := g.Today()
	found := false

	err := g.executions.Each(func(r models.ExecutionRecord) bool {
		if r.Date() == today {
			found = true
			return false
		}
		return true
	})
	if err != nil {
		logger.Error("[GATE] read %s: %v (fail_open=%v)", g.executions.Path(), err, g.failOpen)
		return !g.failOpen
	}
	return found
}

// LogDecision пишет решение гейта. Ошибка записи только логируется.
func (g *Gate) LogDecision(signalID string, decision models.Decision, reason string) {
	now := g.Now()
	d := models.GateDecision{
		SignalID:  signalID,
		Decision:  decision,
		Reason:    reason,
		Date:      now.Format(models.DateLayout),
		Timestamp: now,
	}
	if err := g.decisions.Append(d); err != nil {
		logger.Error("[GATE] log decision %s/%s: %v", signalID, decision, err)
		return
	}
	logger.Info("[GATE] %s %s: %s", decision, signalID, reason)
}

// RecordExecution дописывает исполнение. При наличии Claimer сначала занимает день.
func (g *Gate) RecordExecution(ctx context.Context, rec models.ExecutionRecord) error {
	if g.claimer != nil {
		ok, err := g.claimer.ClaimDay(ctx, rec.Date(), rec.SignalID)
		if err != nil {
			return fmt.Errorf("claim day %s: %w", rec.Date(), err)
		}
		if !ok {
			return ErrAlreadyExecuted
		}
	}

	if err := g.executions.Append(rec); err != nil {
		return fmt.Errorf("append execution: %w", err)
	}
	logger.Info("[GATE] recorded execution %s (%s)", rec.SignalID, rec.Status)
	return nil
}

// Guard выполняет fn эксклюзивно для всех вызывающих, в том числе в других процессах.
func (g *Gate) Guard(ctx context.Context, fn func(ctx context.Context) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	unlock, err := g.locker.Lock(ctx)
	if err != nil {
		return fmt.Errorf("gate lock: %w", err)
	}
	defer unlock()

	return fn(ctx)
}

// TodayExecution — последняя запись за сегодня, nil если нет.
func (g *Gate) TodayExecution(ctx context.Context) (*models.ExecutionRecord, error) {
	today := g.Today()
	rec, ok, err := g.executions.Last(func(r models.ExecutionRecord) bool {
		return r.Date() == today
	})
	if err != nil || !ok {
		return nil, err
	}
	return &rec, nil
}

func (g *Gate) Executions(date string) ([]models.ExecutionRecord, error) {
	var out []models.ExecutionRecord
	err := g.executions.Each(func(r models.ExecutionRecord) bool {
		if date == "" || r.Date() == date {
			out = append(out, r)
		}
		return true
	})
	return out, err
}

func (g *Gate) Decisions(date string) ([]models.GateDecision, error) {
	var out []models.GateDecision
	err := g.decisions.Each(func(d models.GateDecision) bool {
		if date == "" || d.Date == date {
			out = append(out, d)
		}
		return true
	})
	return out, err
}
