// Package proof собирает отчёт о состоянии AUTO-режима из журналов и /health.
package proof

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"signal_bot/internal/dispatch"
	"signal_bot/internal/executor"
	"signal_bot/internal/gate"
	"signal_bot/internal/models"
	feed "signal_bot/internal/modules/feed/service"
	"signal_bot/internal/strategy"

	"github.com/bytedance/sonic"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v2"
)

type Packet struct {
	GeneratedAt    time.Time      `yaml:"generated_at"`
	Health         map[string]any `yaml:"health,omitempty"`
	Feed           *Feed          `yaml:"feed,omitempty"`
	TodayExecution *Execution     `yaml:"today_execution,omitempty"`
	LastDecision   *Decision      `yaml:"last_decision,omitempty"`
	LastSummary    *Summary       `yaml:"last_summary,omitempty"`
	Dispatch       *Dispatch      `yaml:"dispatch,omitempty"`
	Config         ConfigView     `yaml:"config"`
	Errors         []string       `yaml:"errors,omitempty"`
}

type Feed struct {
	Status      string    `yaml:"status"`
	Symbol      string    `yaml:"symbol"`
	LastPrice   float64   `yaml:"last_price"`
	LastSuccess time.Time `yaml:"last_success"`
	Failures    int       `yaml:"consecutive_failures"`
}

type Execution struct {
	SignalID  string `yaml:"signal_id"`
	Asset     string `yaml:"asset"`
	Direction string `yaml:"direction"`
	Status    string `yaml:"status"`
	Mode      string `yaml:"mode"`
	LatencyMs int64  `yaml:"latency_ms"`
	At        string `yaml:"executed_at"`
	Outcome   string `yaml:"outcome,omitempty"`
}

type Decision struct {
	SignalID  string    `yaml:"signal_id"`
	Decision  string    `yaml:"decision"`
	Reason    string    `yaml:"reason"`
	Date      string    `yaml:"date"`
	Timestamp time.Time `yaml:"timestamp"`
}

type Summary struct {
	Date        string   `yaml:"date"`
	SignalsSeen int      `yaml:"signals_seen"`
	Executions  int      `yaml:"executions"`
	Skipped     int      `yaml:"skipped"`
	Violations  []string `yaml:"violations"`
}

type Dispatch struct {
	TotalSignals int      `yaml:"total_signals"`
	Pairs        []string `yaml:"pairs"`
}

// ConfigView — без секретов, только факт наличия.
type ConfigView struct {
	APIKeySet    bool   `yaml:"api_key_set"`
	TelegramSet  bool   `yaml:"telegram_set"`
	AutoEnabled  bool   `yaml:"auto_enabled"`
	LiveMode     bool   `yaml:"live_mode"`
	Source       string `yaml:"source"`
	Lock         string `yaml:"lock"`
	PollInterval string `yaml:"poll_interval"`
	SignalTTL    string `yaml:"signal_ttl"`
}

type Inputs struct {
	Gate           *gate.Gate
	Summaries      *executor.SummaryLog
	Guard          *dispatch.Guard
	FeedHealthPath string
	HealthURL      string
	Config         ConfigView
	HTTP           *http.Client
}

// Build собирает секции параллельно; ошибка секции не валит отчёт.
func Build(ctx context.Context, in Inputs) Packet {
	p := Packet{GeneratedAt: in.Gate.Now(), Config: in.Config}

	var mu sync.Mutex
	fail := func(section string, err error) {
		mu.Lock()
		p.Errors = append(p.Errors, fmt.Sprintf("%s: %v", section, err))
		mu.Unlock()
	}

	var today *models.ExecutionRecord
	g, ctx := errgroup.WithContext(ctx)

	if in.HealthURL != "" {
		g.Go(func() error {
			h, err := fetchHealth(ctx, in.HTTP, in.HealthURL)
			if err != nil {
				fail("health", err)
				return nil
			}
			p.Health = h
			return nil
		})
	}

	g.Go(func() error {
		h, err := feed.LoadHealth(in.FeedHealthPath)
		if err != nil {
			fail("feed", err)
			return nil
		}
		p.Feed = &Feed{
			Status:      string(h.Status),
			Symbol:      h.Symbol,
			LastPrice:   h.LastPrice,
			LastSuccess: h.LastSuccess,
			Failures:    h.ConsecutiveFailures,
		}
		return nil
	})

	g.Go(func() error {
		rec, err := in.Gate.TodayExecution(ctx)
		if err != nil {
			fail("execution", err)
			return nil
		}
		if rec != nil {
			today = rec
			p.TodayExecution = &Execution{
				SignalID:  rec.SignalID,
				Asset:     rec.Asset,
				Direction: string(rec.Direction),
				Status:    string(rec.Status),
				Mode:      string(rec.Mode),
				LatencyMs: rec.LatencyMs,
				At:        rec.ExecutedAt.UTC().Format(time.RFC3339),
			}
		}
		return nil
	})

	g.Go(func() error {
		ds, err := in.Gate.Decisions("")
		if err != nil {
			fail("decisions", err)
			return nil
		}
		if len(ds) > 0 {
			p.LastDecision = decisionView(ds[len(ds)-1])
		}
		return nil
	})

	if in.Summaries != nil {
		g.Go(func() error {
			s, err := in.Summaries.Last()
			if err != nil {
				fail("summary", err)
				return nil
			}
			if s != nil {
				p.LastSummary = &Summary{
					Date:        s.Date,
					SignalsSeen: s.SignalsSeen,
					Executions:  s.Executions,
					Skipped:     s.Skipped,
					Violations:  s.Violations,
				}
			}
			return nil
		})
	}

	if in.Guard != nil {
		g.Go(func() error {
			st, err := in.Guard.Stats()
			if err != nil {
				fail("dispatch", err)
				return nil
			}
			p.Dispatch = &Dispatch{TotalSignals: st.TotalSignals, Pairs: st.Pairs}
			return nil
		})
	}

	_ = g.Wait()

	// исход по последней цене фида
	if today != nil && p.Feed != nil && p.Feed.LastPrice > 0 {
		p.TodayExecution.Outcome = string(strategy.CheckOutcome(today.Signal(), p.Feed.LastPrice))
	}
	return p
}

func (p Packet) YAML() ([]byte, error) {
	return yaml.Marshal(p)
}

func decisionView(d models.GateDecision) *Decision {
	return &Decision{
		SignalID:  d.SignalID,
		Decision:  string(d.Decision),
		Reason:    d.Reason,
		Date:      d.Date,
		Timestamp: d.Timestamp,
	}
}

func fetchHealth(ctx context.Context, client *http.Client, url string) (map[string]any, error) {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http %d", resp.StatusCode)
	}
	var out map[string]any
	if err := sonic.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	return out, nil
}
