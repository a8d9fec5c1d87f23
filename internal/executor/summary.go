package executor

import (
	"fmt"
	"time"

	"signal_bot/internal/gate"
	"signal_bot/internal/models"
	"signal_bot/pkg/jsonl"
	"signal_bot/pkg/logger"
)

// Summarize считает итоги дня по журналам гейта.
func Summarize(g *gate.Gate, date string, now time.Time) (models.DailySummary, error) {
	execs, err := g.Executions(date)
	if err != nil {
		return models.DailySummary{}, fmt.Errorf("read executions: %w", err)
	}
	decisions, err := g.Decisions(date)
	if err != nil {
		return models.DailySummary{}, fmt.Errorf("read decisions: %w", err)
	}

	s := models.DailySummary{
		Date:        date,
		Executions:  len(execs),
		Violations:  []string{},
		GeneratedAt: now.UTC(),
	}

	approved := map[string]bool{}
	for _, d := range decisions {
		switch d.Decision {
		case models.DecisionExecute:
			s.SignalsSeen++
			approved[d.SignalID] = true
		case models.DecisionSkip:
			s.Skipped++
			if d.SignalID != noSignalID {
				s.SignalsSeen++
			}
		}
	}

	if len(execs) > 1 {
		s.Violations = append(s.Violations, fmt.Sprintf("daily cap exceeded: %d executions", len(execs)))
	}
	for _, r := range execs {
		if !approved[r.SignalID] {
			s.Violations = append(s.Violations, fmt.Sprintf("execution %s has no EXECUTE decision", r.SignalID))
		}
	}
	return s, nil
}

// SummaryLog — append-only журнал итогов дня.
type SummaryLog struct {
	log *jsonl.Log[models.DailySummary]
}

func NewSummaryLog(path string) *SummaryLog {
	l := jsonl.New[models.DailySummary](path)
	l.OnBadLine = func(line int, err error) {
		logger.Warn("[SUMMARY] skip malformed line %d in %s: %v", line, path, err)
	}
	return &SummaryLog{log: l}
}

func (l *SummaryLog) Append(s models.DailySummary) error {
	return l.log.Append(s)
}

// Last — последний итог, nil если журнал пуст.
func (l *SummaryLog) Last() (*models.DailySummary, error) {
	s, ok, err := l.log.Last(func(models.DailySummary) bool { return true })
	if err != nil || !ok {
		return nil, err
	}
	return &s, nil
}

// WriteSummary считает и дописывает итоги дня.
func WriteSummary(g *gate.Gate, l *SummaryLog, date string) (models.DailySummary, error) {
	s, err := Summarize(g, date, g.Now())
	if err != nil {
		return s, err
	}
	if err := l.Append(s); err != nil {
		return s, fmt.Errorf("append summary: %w", err)
	}
	logger.Info("[SUMMARY] %s: seen=%d executions=%d skipped=%d violations=%d",
		s.Date, s.SignalsSeen, s.Executions, s.Skipped, len(s.Violations))
	return s, nil
}
