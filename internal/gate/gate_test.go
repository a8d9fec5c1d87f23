package gate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"signal_bot/internal/models"
	"signal_bot/pkg/lock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Add(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newGate(t *testing.T, c *clock, opts ...Option) (*Gate, string) {
	t.Helper()
	dir := t.TempDir()
	opts = append([]Option{WithClock(c.Now)}, opts...)
	g := New(
		filepath.Join(dir, "auto_execution_log.jsonl"),
		filepath.Join(dir, "daily_gate_log.jsonl"),
		lock.NewFile(filepath.Join(dir, "gate.lock")),
		opts...,
	)
	return g, dir
}

func record(id string, at time.Time) models.ExecutionRecord {
	return models.ExecutionRecord{
		SignalID:    id,
		ExecutedAt:  at,
		Asset:       "EUR/USD",
		Direction:   models.SideBuy,
		SignalPrice: models.Price(1.08),
		Status:      models.StatusExecuted,
		Mode:        models.ModeDemo,
	}
}

// один цикл: check-then-act под Guard
func cycle(ctx context.Context, g *Gate, id string) error {
	return g.Guard(ctx, func(ctx context.Context) error {
		if g.HasExecutedToday(ctx) {
			return nil
		}
		g.LogDecision(id, models.DecisionExecute, "all checks passed")
		return g.RecordExecution(ctx, record(id, g.Now()))
	})
}

func TestAtMostOneExecutionPerDay(t *testing.T) {
	c := &clock{t: time.Date(2025, 1, 6, 0, 5, 0, 0, time.UTC)}
	g, _ := newGate(t, c)
	ctx := context.Background()

	for i := 0; i < 48; i++ {
		require.NoError(t, cycle(ctx, g, "sig"))
		c.Add(29 * time.Minute)
	}

	recs, err := g.Executions("2025-01-06")
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	// следующий день — снова можно
	c.t = time.Date(2025, 1, 7, 0, 1, 0, 0, time.UTC)
	assert.False(t, g.HasExecutedToday(ctx))
	require.NoError(t, cycle(ctx, g, "sig-2"))
	assert.True(t, g.HasExecutedToday(ctx))

	all, err := g.Executions("")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestConcurrentGatesShareFiles(t *testing.T) {
	c := &clock{t: time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)}
	g1, dir := newGate(t, c)
	ctx := context.Background()

	gates := []*Gate{g1}
	for i := 0; i < 3; i++ {
		gates = append(gates, New(
			filepath.Join(dir, "auto_execution_log.jsonl"),
			filepath.Join(dir, "daily_gate_log.jsonl"),
			lock.NewFile(filepath.Join(dir, "gate.lock")),
			WithClock(c.Now),
		))
	}

	var wg sync.WaitGroup
	for i, g := range gates {
		for j := 0; j < 5; j++ {
			wg.Add(1)
			go func(g *Gate, n int) {
				defer wg.Done()
				assert.NoError(t, cycle(ctx, g, "sig"))
			}(g, i*10+j)
		}
	}
	wg.Wait()

	recs, err := g1.Executions(g1.Today())
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestUnreadableLogFailsClosed(t *testing.T) {
	c := &clock{t: time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)}
	dir := t.TempDir()
	// директория вместо файла: open проходит, чтение падает
	execPath := filepath.Join(dir, "auto_execution_log.jsonl")
	require.NoError(t, os.Mkdir(execPath, 0o755))

	closed := New(execPath, filepath.Join(dir, "gate.jsonl"), nil, WithClock(c.Now))
	assert.True(t, closed.HasExecutedToday(context.Background()))

	open := New(execPath, filepath.Join(dir, "gate.jsonl"), nil, WithClock(c.Now), WithFailOpen(true))
	assert.False(t, open.HasExecutedToday(context.Background()))
}

func TestLogDecisionSwallowsWriteErrors(t *testing.T) {
	c := &clock{t: time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)}
	dir := t.TempDir()
	decPath := filepath.Join(dir, "daily_gate_log.jsonl")
	require.NoError(t, os.Mkdir(decPath, 0o755))

	g := New(filepath.Join(dir, "exec.jsonl"), decPath, nil, WithClock(c.Now))
	assert.NotPanics(t, func() {
		g.LogDecision("sig", models.DecisionSkip, "no signal")
	})
}

func TestDecisionsAndMalformedLines(t *testing.T) {
	c := &clock{t: time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)}
	g, dir := newGate(t, c)

	g.LogDecision("a", models.DecisionSkip, "validation failed")
	f, err := os.OpenFile(filepath.Join(dir, "daily_gate_log.jsonl"), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, _ = f.WriteString("{not json\n")
	require.NoError(t, f.Close())
	g.LogDecision("b", models.DecisionExecute, "ok")

	ds, err := g.Decisions("2025-01-06")
	require.NoError(t, err)
	require.Len(t, ds, 2)
	assert.Equal(t, "a", ds[0].SignalID)
	assert.Equal(t, models.DecisionExecute, ds[1].Decision)
	assert.Equal(t, "2025-01-06", ds[1].Date)
}

func TestTodayExecution(t *testing.T) {
	c := &clock{t: time.Date(2025, 1, 6, 23, 0, 0, 0, time.UTC)}
	g, _ := newGate(t, c)
	ctx := context.Background()

	require.NoError(t, g.RecordExecution(ctx, record("yesterday", c.Now().Add(-24*time.Hour))))
	rec, err := g.TodayExecution(ctx)
	require.NoError(t, err)
	assert.Nil(t, rec)

	require.NoError(t, g.RecordExecution(ctx, record("today", c.Now())))
	rec, err = g.TodayExecution(ctx)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "today", rec.SignalID)
}

type claimerMock struct{ mock.Mock }

func (m *claimerMock) ClaimDay(ctx context.Context, date, id string) (bool, error) {
	args := m.Called(ctx, date, id)
	return args.Bool(0), args.Error(1)
}

func TestClaimerRejectsSecondExecution(t *testing.T) {
	c := &clock{t: time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)}
	cl := &claimerMock{}
	g, _ := newGate(t, c, WithClaimer(cl))
	ctx := context.Background()

	cl.On("ClaimDay", mock.Anything, "2025-01-06", "first").Return(true, nil).Once()
	cl.On("ClaimDay", mock.Anything, "2025-01-06", "second").Return(false, nil).Once()
	cl.On("ClaimDay", mock.Anything, "2025-01-06", "broken").Return(false, errors.New("db down")).Once()

	require.NoError(t, g.RecordExecution(ctx, record("first", c.Now())))
	assert.ErrorIs(t, g.RecordExecution(ctx, record("second", c.Now())), ErrAlreadyExecuted)
	assert.Error(t, g.RecordExecution(ctx, record("broken", c.Now())))

	recs, err := g.Executions("2025-01-06")
	require.NoError(t, err)
	assert.Len(t, recs, 1)
	cl.AssertExpectations(t)
}
