// Package dispatch — антиспам перед отправкой сигнала в канал.
package dispatch

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"signal_bot/internal/models"
	"signal_bot/pkg/lock"
	"signal_bot/pkg/logger"

	"github.com/tidwall/gjson"
)

const (
	DefaultAsset     = "EUR/USD"
	DefaultTimeframe = "M15"
)

// Reason — почему отправка разрешена или отклонена.
type Reason string

const (
	Approved        Reason = "approved"
	RejectStatus    Reason = "status_not_ok"
	RejectReplay    Reason = "replay"
	RejectLowConf   Reason = "low_confidence"
	RejectCooldown  Reason = "cooldown"
	RejectStateRead Reason = "state_unreadable"
	RejectStateSave Reason = "state_unwritable"
	RejectLock      Reason = "lock_failed"
)

type Option func(*Guard)

func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

// WithObserver — колбэк на каждое решение (метрики).
func WithObserver(fn func(Reason)) Option {
	return func(g *Guard) { g.observe = fn }
}

type Guard struct {
	store         *StateStore
	locker        lock.Locker
	now           func() time.Time
	observe       func(Reason)
	minConfidence int
	cooldown      time.Duration

	mu sync.Mutex
}

func New(store *StateStore, locker lock.Locker, minConfidence int, cooldown time.Duration, opts ...Option) *Guard {
	if locker == nil {
		locker = lock.Nop{}
	}
	g := &Guard{
		store:         store,
		locker:        locker,
		now:           time.Now,
		minConfidence: minConfidence,
		cooldown:      cooldown,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Key — asset_timeframe, asset без разделителей: EUR/USD -> EURUSD.
func Key(asset, timeframe string) string {
	if asset == "" {
		asset = DefaultAsset
	}
	if timeframe == "" {
		timeframe = DefaultTimeframe
	}
	a := strings.NewReplacer("/", "", "-", "", " ", "").Replace(strings.ToUpper(asset))
	return a + "_" + strings.ToUpper(timeframe)
}

// ShouldDispatch — true, если сигнал можно отправить. При одобрении состояние уже сохранено.
func (g *Guard) ShouldDispatch(ctx context.Context, raw []byte) bool {
	ok, _ := g.Evaluate(ctx, raw)
	return ok
}

// Evaluate применяет правила по порядку, первое несработавшее — отказ.
func (g *Guard) Evaluate(ctx context.Context, raw []byte) (bool, Reason) {
	reason := g.evaluate(ctx, raw)
	if g.observe != nil {
		g.observe(reason)
	}
	return reason == Approved, reason
}

func (g *Guard) evaluate(ctx context.Context, raw []byte) Reason {
	doc := gjson.ParseBytes(raw)

	// только успешный ответ API
	if doc.Get("status").String() != "ok" {
		logger.Info("[DISPATCH] envelope status %q", doc.Get("status").String())
		return RejectStatus
	}

	p := doc.Get("payload")
	asset := p.Get("symbol").String()
	if asset == "" {
		asset = p.Get("asset").String()
	}
	if asset == "" {
		asset = DefaultAsset
	}
	key := Key(asset, p.Get("timeframe").String())

	// повтор старого сигнала не шлём
	if p.Get("meta.status").String() == models.MetaReplay {
		logger.Info("[DISPATCH] replay blocked for %s", key)
		return RejectReplay
	}

	// порог уверенности
	conf := p.Get("confidence").Float()
	if conf < float64(g.minConfidence) {
		logger.Info("[DISPATCH] low confidence %.0f%% for %s (min %d%%)", conf, key, g.minConfidence)
		return RejectLowConf
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	unlock, err := g.locker.Lock(ctx)
	if err != nil {
		logger.Error("[DISPATCH] lock: %v", err)
		return RejectLock
	}
	defer unlock()

	state, err := g.store.Load()
	if err != nil {
		logger.Error("[DISPATCH] load state: %v", err)
		return RejectStateRead
	}

	// кулдаун по паре
	now := g.now().UTC()
	if last, ok := state[key]; ok && now.Sub(last.LastSent) < g.cooldown {
		logger.Info("[DISPATCH] cooldown: %s already sent at %s", key, last.LastSent.Format(time.RFC3339))
		return RejectCooldown
	}

	var entry models.Entry
	if e := p.Get("entry"); e.Exists() {
		if err := entry.UnmarshalJSON([]byte(e.Raw)); err != nil {
			logger.Warn("[DISPATCH] entry for %s: %v", key, err)
		}
	}

	state[key] = models.DispatchEntry{
		LastSent:   now,
		Direction:  p.Get("direction").String(),
		Entry:      entry,
		Confidence: int(conf),
	}
	if err := g.store.Save(state); err != nil {
		logger.Error("[DISPATCH] save state: %v", err)
		return RejectStateSave
	}

	logger.Info("[DISPATCH] approved %s @ %.0f%%", key, conf)
	return Approved
}

type Stats struct {
	TotalSignals int                  `json:"total_signals" yaml:"total_signals"`
	Pairs        []string             `json:"pairs" yaml:"pairs"`
	State        models.DispatchState `json:"state" yaml:"state"`
}

func (g *Guard) Stats() (Stats, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	state, err := g.store.Load()
	if err != nil {
		return Stats{}, err
	}
	pairs := make([]string, 0, len(state))
	for k := range state {
		pairs = append(pairs, k)
	}
	sort.Strings(pairs)
	return Stats{TotalSignals: len(state), Pairs: pairs, State: state}, nil
}

func (g *Guard) Reset(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	unlock, err := g.locker.Lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if err := g.store.Reset(); err != nil {
		return err
	}
	logger.Info("[DISPATCH] state reset")
	return nil
}
