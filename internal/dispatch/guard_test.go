package dispatch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"signal_bot/internal/models"
	"signal_bot/pkg/lock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)

func envelope(symbol, tf string, conf int, meta string) []byte {
	return []byte(fmt.Sprintf(`{"status":"ok","source":"engine","payload":{"symbol":%q,"timeframe":%q,
		"direction":"BUY","entry":1.0850,"tp":1.0880,"sl":1.0830,"confidence":%d,"meta":{"status":%q}}}`,
		symbol, tf, conf, meta))
}

func newGuard(t *testing.T, at time.Time) (*Guard, *StateStore) {
	t.Helper()
	store := NewStateStore(filepath.Join(t.TempDir(), "dispatch_state.json"))
	g := New(store, nil, 60, 24*time.Hour, WithClock(func() time.Time { return at }))
	return g, store
}

func TestRules(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want Reason
	}{
		{"status not ok", `{"status":"error","payload":{"confidence":90}}`, RejectStatus},
		{"empty body", ``, RejectStatus},
		{"replay", string(envelope("EURUSD", "M15", 90, "replay")), RejectReplay},
		{"missing confidence", `{"status":"ok","payload":{"asset":"EUR/USD"}}`, RejectLowConf},
		{"fresh", string(envelope("EURUSD", "M15", 90, "fresh")), Approved},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g, _ := newGuard(t, now)
			ok, reason := g.Evaluate(context.Background(), []byte(tc.raw))
			assert.Equal(t, tc.want, reason)
			assert.Equal(t, tc.want == Approved, ok)
		})
	}
}

func TestConfidenceBoundary(t *testing.T) {
	g, _ := newGuard(t, now)
	assert.False(t, g.ShouldDispatch(context.Background(), envelope("EURUSD", "M15", 59, "fresh")))

	g, _ = newGuard(t, now)
	assert.True(t, g.ShouldDispatch(context.Background(), envelope("EURUSD", "M15", 60, "fresh")))
}

func TestCooldownBoundary(t *testing.T) {
	cases := []struct {
		ago  time.Duration
		want bool
	}{
		{23 * time.Hour, false},
		{24*time.Hour - time.Second, false},
		{24 * time.Hour, true},
		{24*time.Hour + time.Second, true},
	}
	for _, tc := range cases {
		t.Run(tc.ago.String(), func(t *testing.T) {
			g, store := newGuard(t, now)
			require.NoError(t, store.Save(models.DispatchState{
				"EURUSD_M15": {LastSent: now.Add(-tc.ago), Direction: "SELL", Entry: models.Price(1.08), Confidence: 70},
			}))

			assert.Equal(t, tc.want, g.ShouldDispatch(context.Background(), envelope("EURUSD", "M15", 75, "fresh")))
		})
	}
}

func TestApprovalPersistsState(t *testing.T) {
	g, store := newGuard(t, now)
	ctx := context.Background()

	require.True(t, g.ShouldDispatch(ctx, envelope("EUR/USD", "M15", 80, "fresh")))
	// тот же ключ сразу после — отказ
	assert.False(t, g.ShouldDispatch(ctx, envelope("EURUSD", "M15", 80, "fresh")))
	// другой таймфрейм — другой ключ
	assert.True(t, g.ShouldDispatch(ctx, envelope("EURUSD", "H1", 80, "fresh")))

	state, err := store.Load()
	require.NoError(t, err)
	require.Contains(t, state, "EURUSD_M15")
	assert.True(t, now.Equal(state["EURUSD_M15"].LastSent))
	assert.Equal(t, "BUY", state["EURUSD_M15"].Direction)
	assert.Equal(t, 80, state["EURUSD_M15"].Confidence)
	assert.Equal(t, models.Price(1.0850), state["EURUSD_M15"].Entry)

	st, err := g.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, st.TotalSignals)
	assert.Equal(t, []string{"EURUSD_H1", "EURUSD_M15"}, st.Pairs)
}

func TestKeyDefaults(t *testing.T) {
	assert.Equal(t, "EURUSD_M15", Key("", ""))
	assert.Equal(t, "GBPUSD_H1", Key("gbp/usd", "h1"))

	g, store := newGuard(t, now)
	require.True(t, g.ShouldDispatch(context.Background(), []byte(`{"status":"ok","payload":{"confidence":61}}`)))
	state, err := store.Load()
	require.NoError(t, err)
	assert.Contains(t, state, "EURUSD_M15")
}

func TestUnreadableStateRejects(t *testing.T) {
	g, store := newGuard(t, now)
	require.NoError(t, os.WriteFile(store.Path(), []byte("{garbage"), 0o644))

	ok, reason := g.Evaluate(context.Background(), envelope("EURUSD", "M15", 90, "fresh"))
	assert.False(t, ok)
	assert.Equal(t, RejectStateRead, reason)
}

func TestReset(t *testing.T) {
	g, store := newGuard(t, now)
	ctx := context.Background()
	require.True(t, g.ShouldDispatch(ctx, envelope("EURUSD", "M15", 90, "fresh")))

	require.NoError(t, g.Reset(ctx))
	_, err := os.Stat(store.Path())
	assert.True(t, os.IsNotExist(err))
	assert.True(t, g.ShouldDispatch(ctx, envelope("EURUSD", "M15", 90, "fresh")))
	assert.NoError(t, g.Reset(ctx))
	assert.NoError(t, g.Reset(ctx))
}

func TestConcurrentCallersSendOnce(t *testing.T) {
	dir := t.TempDir()
	store := NewStateStore(filepath.Join(dir, "dispatch_state.json"))
	var approved atomic.Int32

	guards := make([]*Guard, 3)
	for i := range guards {
		guards[i] = New(store, lock.NewFile(filepath.Join(dir, "dispatch.lock")), 60, 24*time.Hour,
			WithClock(func() time.Time { return now }),
			WithObserver(func(r Reason) {
				if r == Approved {
					approved.Add(1)
				}
			}))
	}

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func(g *Guard) {
			defer wg.Done()
			g.ShouldDispatch(context.Background(), envelope("EURUSD", "M15", 90, "fresh"))
		}(guards[i%len(guards)])
	}
	wg.Wait()

	assert.Equal(t, int32(1), approved.Load())
}
