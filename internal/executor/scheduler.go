package executor

import (
	"context"
	"fmt"
	"time"

	"signal_bot/internal/gate"
	"signal_bot/pkg/logger"
)

const DefaultPollInterval = 60 * time.Second

// Scheduler — один поток: цикл, сон, снова цикл. Упавший цикл не валит петлю.
type Scheduler struct {
	exec      *Executor
	gate      *gate.Gate
	summaries *SummaryLog
	interval  time.Duration

	cycles      int
	summaryDate string
}

func NewScheduler(exec *Executor, g *gate.Gate, summaries *SummaryLog, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Scheduler{exec: exec, gate: g, summaries: summaries, interval: interval}
}

func (s *Scheduler) Cycles() int { return s.cycles }

// Run блокируется до отмены ctx, затем пишет итог текущего дня.
func (s *Scheduler) Run(ctx context.Context) {
	logger.Info("[SCHED] started, poll every %s", s.interval)

	t := time.NewTicker(s.interval)
	defer t.Stop()

	for {
		s.tick(ctx)

		select {
		case <-ctx.Done():
			logger.Info("[SCHED] stopping after %d cycles", s.cycles)
			s.flush(s.gate.Today())
			return
		case <-t.C:
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("[SCHED] cycle panic: %v", r)
		}
	}()

	if ctx.Err() != nil {
		return
	}

	s.cycles++
	res, err := s.exec.RunCycle(ctx)
	if err != nil {
		logger.Error("[SCHED] cycle #%d: %v", s.cycles, err)
	} else {
		logger.Info("[SCHED] cycle #%d: %s", s.cycles, res)
	}
	if res == ResultDisabled {
		return
	}

	// итог за закрытый день пишется при смене даты
	today := s.gate.Today()
	if s.summaryDate != "" && s.summaryDate != today {
		s.flush(s.summaryDate)
	}
	s.summaryDate = today
}

func (s *Scheduler) flush(date string) {
	if s.summaries == nil {
		return
	}
	if _, err := WriteSummary(s.gate, s.summaries, date); err != nil {
		logger.Error("[SUMMARY] %v", fmt.Errorf("write %s: %w", date, err))
	}
}
