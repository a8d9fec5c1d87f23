package models

import "time"

type ExecutionStatus string

const (
	StatusExecuted            ExecutionStatus = "EXECUTED"
	StatusExecutedHighLatency ExecutionStatus = "EXECUTED_HIGH_LATENCY"
)

type ExecutionMode string

const (
	ModeLive       ExecutionMode = "LIVE"
	ModeSimulation ExecutionMode = "SIMULATION"
	ModeDemo       ExecutionMode = "DEMO_SIMULATION"
)

// ExecutionRecord — строка журнала исполнений. Не обновляется после записи.
type ExecutionRecord struct {
	SignalID       string          `json:"signal_id"`
	SignalTime     string          `json:"signal_time,omitempty"`
	ExecutedAt     time.Time       `json:"executed_at"`
	Asset          string          `json:"asset"`
	Timeframe      string          `json:"timeframe,omitempty"`
	Direction      Side            `json:"direction"`
	SignalPrice    Entry           `json:"signal_price"`
	ExecutionPrice float64         `json:"execution_price"`
	TP             float64         `json:"tp"`
	SL             float64         `json:"sl"`
	Confidence     int             `json:"confidence"`
	Strategy       string          `json:"strategy,omitempty"`
	Status         ExecutionStatus `json:"status"`
	LatencyMs      int64           `json:"latency_ms"`
	OrderID        string          `json:"order_id,omitempty"`
	Mode           ExecutionMode   `json:"execution_mode"`
}

// Date — UTC-дата исполнения в формате 2006-01-02.
func (r ExecutionRecord) Date() string {
	return r.ExecutedAt.UTC().Format(DateLayout)
}

// Signal — плоское представление для /signal/latest и форматтера.
func (r ExecutionRecord) Signal() Signal {
	return Signal{
		SignalID:   r.SignalID,
		Asset:      r.Asset,
		Timeframe:  r.Timeframe,
		Direction:  r.Direction,
		Confidence: r.Confidence,
		Entry:      r.SignalPrice,
		TP:         r.TP,
		SL:         r.SL,
		Strategy:   r.Strategy,
		Validity:   ValidityActive,
		Timestamp:  r.SignalTime,
		ExecutedAt: r.ExecutedAt.UTC().Format(time.RFC3339),
		Status:     string(r.Status),
		Mode:       string(r.Mode),
	}
}

type Decision string

const (
	DecisionExecute Decision = "EXECUTE"
	DecisionSkip    Decision = "SKIP"
)

const DateLayout = "2006-01-02"

// GateDecision — одна строка журнала решений гейта.
type GateDecision struct {
	SignalID  string    `json:"signal_id"`
	Decision  Decision  `json:"decision"`
	Reason    string    `json:"reason"`
	Date      string    `json:"date"`
	Timestamp time.Time `json:"timestamp"`
}

// DailySummary — итоги дня AUTO-режима.
type DailySummary struct {
	Date        string    `json:"date"`
	SignalsSeen int       `json:"signals_seen"`
	Executions  int       `json:"executions"`
	Skipped     int       `json:"skipped"`
	Violations  []string  `json:"violations"`
	GeneratedAt time.Time `json:"generated_at"`
}

type Outcome string

const (
	OutcomeWin     Outcome = "WIN"
	OutcomeLoss    Outcome = "LOSS"
	OutcomePending Outcome = "PENDING"
)
