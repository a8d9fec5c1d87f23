package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"signal_bot/internal/gate"
	"signal_bot/internal/models"
	"signal_bot/pkg/lock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type generatorMock struct{ mock.Mock }

func (m *generatorMock) Generate(ctx context.Context, now time.Time) (models.Signal, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(models.Signal), args.Error(1)
}

type publisherMock struct{ mock.Mock }

func (m *publisherMock) Publish(ctx context.Context, rec models.ExecutionRecord) error {
	return m.Called(ctx, rec).Error(0)
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func engineSignal() models.Signal {
	return models.Signal{
		Asset:      "EUR/USD",
		Timeframe:  "M15",
		Direction:  models.SideBuy,
		Confidence: 74,
		Entry:      models.Price(1.0850),
		TP:         1.0870,
		SL:         1.0838,
		Validity:   models.ValidityActive,
		Timestamp:  "2025-01-06T10:00:00Z",
	}
}

func newSession(t *testing.T, c *clock, gen Generator, opts ...Option) (*Session, *gate.Gate) {
	t.Helper()
	dir := t.TempDir()
	g := gate.New(
		filepath.Join(dir, "auto_execution_log.jsonl"),
		filepath.Join(dir, "daily_gate_log.jsonl"),
		lock.NewFile(filepath.Join(dir, "gate.lock")),
		gate.WithClock(c.Now),
	)
	return NewSession(g, gen, models.ModeSimulation, 5*time.Second, opts...), g
}

func TestExecute_OncePerDay(t *testing.T) {
	c := &clock{t: time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)}
	gen := &generatorMock{}
	gen.On("Generate", mock.Anything, mock.Anything).Return(engineSignal(), nil)
	pub := &publisherMock{}
	pub.On("Publish", mock.Anything, mock.Anything).Return(nil).Once()

	s, g := newSession(t, c, gen, WithPublisher(pub))
	ctx := context.Background()

	active, err := s.Active(ctx)
	require.NoError(t, err)
	assert.Nil(t, active)

	rec, err := s.Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, "live-20250106-001", rec.SignalID)
	assert.Equal(t, models.ModeSimulation, rec.Mode)
	assert.Equal(t, models.StatusExecuted, rec.Status)

	_, err = s.Execute(ctx)
	assert.ErrorIs(t, err, ErrAlreadyExecuted)

	active, err = s.Active(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, rec.SignalID, active.SignalID)

	decisions, err := g.Decisions(g.Today())
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, models.DecisionExecute, decisions[0].Decision)

	gen.AssertNumberOfCalls(t, "Generate", 1)
	pub.AssertExpectations(t)
}

func TestExecute_MarketClosed(t *testing.T) {
	c := &clock{t: time.Date(2025, 1, 4, 12, 0, 0, 0, time.UTC)} // суббота
	gen := &generatorMock{}

	s, _ := newSession(t, c, gen)
	_, err := s.Execute(context.Background())
	assert.ErrorIs(t, err, ErrMarketClosed)
	assert.False(t, s.MarketOpen())
	gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestExecute_GeneratorError(t *testing.T) {
	c := &clock{t: time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)}
	gen := &generatorMock{}
	gen.On("Generate", mock.Anything, mock.Anything).Return(models.Signal{}, errors.New("feed down"))

	s, g := newSession(t, c, gen)
	_, err := s.Execute(context.Background())
	assert.ErrorContains(t, err, "feed down")
	assert.False(t, g.HasExecutedToday(context.Background()))
}

func TestActive_ResetsOnNewDay(t *testing.T) {
	c := &clock{t: time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)}
	gen := &generatorMock{}
	gen.On("Generate", mock.Anything, mock.Anything).Return(engineSignal(), nil)

	s, _ := newSession(t, c, gen)
	ctx := context.Background()

	_, err := s.Execute(ctx)
	require.NoError(t, err)

	c.Set(time.Date(2025, 1, 7, 0, 0, 1, 0, time.UTC))
	active, err := s.Active(ctx)
	require.NoError(t, err)
	assert.Nil(t, active)

	rec, err := s.Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, "live-20250107-001", rec.SignalID)
}

func TestExecute_ConcurrentCallersGetOneExecution(t *testing.T) {
	c := &clock{t: time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)}
	gen := &generatorMock{}
	gen.On("Generate", mock.Anything, mock.Anything).Return(engineSignal(), nil)

	s, g := newSession(t, c, gen)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Execute(context.Background()); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	execs, err := g.Executions("")
	require.NoError(t, err)
	assert.Len(t, execs, 1)
}
