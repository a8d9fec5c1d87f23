package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"signal_bot/internal/models"
	"signal_bot/pkg/logger"

	"github.com/bytedance/sonic"
)

type PriceFetcher interface {
	Price(ctx context.Context, symbol string) (float64, error)
}

// Monitor следит за здоровьем фида и пишет data_feed_health.json.
type Monitor struct {
	fetcher   PriceFetcher
	symbol    string
	path      string
	threshold int
	now       func() time.Time

	mu     sync.RWMutex
	health models.FeedHealth
}

func NewMonitor(fetcher PriceFetcher, symbol, path string, threshold int) *Monitor {
	if threshold < 1 {
		threshold = 2
	}
	return &Monitor{
		fetcher:   fetcher,
		symbol:    symbol,
		path:      path,
		threshold: threshold,
		now:       time.Now,
		health: models.FeedHealth{
			Status: models.FeedDown,
			Source: "twelvedata",
			Symbol: symbol,
		},
	}
}

// Check — одна проверка цены, обновляет статус и файл.
func (m *Monitor) Check(ctx context.Context) models.FeedHealth {
	start := m.now()
	price, err := m.fetcher.Price(ctx, m.symbol)
	latency := m.now().Sub(start)

	m.mu.Lock()
	h := &m.health
	h.LastCheck = m.now().UTC()
	h.LatencyMs = latency.Milliseconds()
	if err != nil {
		h.ConsecutiveFailures++
		h.LastError = err.Error()
		if h.ConsecutiveFailures >= m.threshold {
			h.Status = models.FeedDown
		} else {
			h.Status = models.FeedDegraded
		}
	} else {
		h.ConsecutiveFailures = 0
		h.LastError = ""
		h.LastPrice = price
		h.LastSuccess = h.LastCheck
		h.Status = models.FeedOK
	}
	snap := *h
	m.mu.Unlock()

	if err != nil {
		logger.Warn("[FEED] health check %s failed (%d in a row): %v", m.symbol, snap.ConsecutiveFailures, err)
		if snap.ConsecutiveFailures == m.threshold {
			logger.Error("[ALERT] market data unavailable for %s after %d consecutive failures", m.symbol, m.threshold)
		}
	}

	if err := m.save(snap); err != nil {
		logger.Error("[FEED] save health: %v", err)
	}
	return snap
}

func (m *Monitor) Status() models.FeedHealth {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.health
}

// ObservePrice — цена из websocket-стрима.
func (m *Monitor) ObservePrice(symbol string, price float64, at time.Time) {
	if symbol != m.symbol || price <= 0 {
		return
	}
	m.mu.Lock()
	m.health.LastPrice = price
	m.health.LastSuccess = at.UTC()
	m.health.ConsecutiveFailures = 0
	m.health.LastError = ""
	m.health.Status = models.FeedOK
	m.mu.Unlock()
}

func (m *Monitor) SetStreamConnected(v bool) {
	m.mu.Lock()
	m.health.StreamConnected = v
	m.mu.Unlock()
}

// Run проверяет фид раз в interval до отмены ctx.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	m.Check(ctx)

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Check(ctx)
		}
	}
}

func (m *Monitor) save(h models.FeedHealth) error {
	if m.path == "" {
		return nil
	}
	if dir := filepath.Dir(m.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	b, err := sonic.ConfigStd.MarshalIndent(h, "", "  ")
	if err != nil {
		return fmt.Errorf("encode health: %w", err)
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, m.path)
}

// LoadHealth читает сохранённый data_feed_health.json (для CLI).
func LoadHealth(path string) (models.FeedHealth, error) {
	var h models.FeedHealth
	b, err := os.ReadFile(path)
	if err != nil {
		return h, err
	}
	err = sonic.Unmarshal(b, &h)
	return h, err
}
